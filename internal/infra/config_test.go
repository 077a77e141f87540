package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: geisten-bot
  version: "1.0"
trading:
  symbol: BTCUSDT
  initial_cash: "1000"
api:
  ws_url: wss://stream.example.com/ws
  rest_url: https://api.example.com
  api_key: file-key
  secret_key: file-secret
strategy:
  name: rsi
  params:
    buy_limit: 0.25
    sell_limit: 0.05
    moving_average_window: 5
    rsi_window: 5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Trading.Symbol != "BTCUSDT" {
		t.Errorf("symbol: got %q", cfg.Trading.Symbol)
	}
	if cfg.Strategy.Name != "rsi" {
		t.Errorf("strategy name: got %q", cfg.Strategy.Name)
	}
	if cfg.Strategy.Params["buy_limit"] != 0.25 {
		t.Errorf("buy_limit: got %v", cfg.Strategy.Params["buy_limit"])
	}
	cash, err := cfg.InitialCash()
	if err != nil {
		t.Fatalf("InitialCash: %v", err)
	}
	if cash.String() != "1000" {
		t.Errorf("initial cash: got %s", cash)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.RecvWindow != 5000 {
		t.Errorf("recv_window default: got %d", cfg.API.RecvWindow)
	}
	if cfg.Engine.SubmitIntervalMS != 500 {
		t.Errorf("submit interval default: got %d", cfg.Engine.SubmitIntervalMS)
	}
	if cfg.Engine.PollIntervalMS != 2000 {
		t.Errorf("poll interval default: got %d", cfg.Engine.PollIntervalMS)
	}
	if cfg.Engine.ReconnectBudget != 5 {
		t.Errorf("reconnect budget default: got %d", cfg.Engine.ReconnectBudget)
	}
	if cfg.Engine.MaxSubmitAttempts != 3 {
		t.Errorf("max submit attempts default: got %d", cfg.Engine.MaxSubmitAttempts)
	}
	if cfg.Book.SellThreshold != 0.2 || cfg.Book.Spread != 1.2 || cfg.Book.PriceCeiling != 2000 {
		t.Errorf("book defaults: got %+v", cfg.Book)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level default: got %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("GEISTEN_API_KEY", "env-key")
	t.Setenv("GEISTEN_SECRET_KEY", "env-secret")
	t.Setenv("GEISTEN_SYMBOL", "ETHUSDT")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.APIKey != "env-key" {
		t.Errorf("api key: environment must win, got %q", cfg.API.APIKey)
	}
	if cfg.API.SecretKey != "env-secret" {
		t.Errorf("secret key: environment must win, got %q", cfg.API.SecretKey)
	}
	if cfg.Trading.Symbol != "ETHUSDT" {
		t.Errorf("symbol: environment must win, got %q", cfg.Trading.Symbol)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "trading: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing symbol", func(c *Config) { c.Trading.Symbol = "" }},
		{"bad ws url", func(c *Config) { c.API.WSURL = "http://not-a-socket" }},
		{"bad rest url", func(c *Config) { c.API.RestURL = "ftp://example.com" }},
		{"missing strategy", func(c *Config) { c.Strategy.Name = "" }},
		{"garbled cash", func(c *Config) { c.Trading.InitialCash = "lots" }},
		{"negative cash", func(c *Config) { c.Trading.InitialCash = "-5" }},
		{"negative budget", func(c *Config) { c.Engine.ReconnectBudget = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestInitialCash_EmptyIsZero(t *testing.T) {
	var cfg Config
	cash, err := cfg.InitialCash()
	if err != nil {
		t.Fatalf("InitialCash: %v", err)
	}
	if !cash.IsZero() {
		t.Errorf("empty initial cash must parse as zero, got %s", cash)
	}
}
