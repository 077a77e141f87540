package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Secrets may be set
// in the file but environment variables take precedence over it.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Symbol      string `yaml:"symbol"`
		InitialCash string `yaml:"initial_cash"`
	} `yaml:"trading"`

	API struct {
		WSURL      string `yaml:"ws_url"`
		RestURL    string `yaml:"rest_url"`
		APIKey     string `yaml:"api_key"`
		SecretKey  string `yaml:"secret_key"`
		RecvWindow int    `yaml:"recv_window"`
	} `yaml:"api"`

	Engine struct {
		SubmitIntervalMS  int `yaml:"submit_interval_ms"`
		PollIntervalMS    int `yaml:"poll_interval_ms"`
		ReconnectBudget   int `yaml:"reconnect_budget"`
		MaxSubmitAttempts int `yaml:"max_submit_attempts"`
	} `yaml:"engine"`

	Book struct {
		SellThreshold float64 `yaml:"sell_threshold"`
		Spread        float64 `yaml:"spread"`
		PriceCeiling  float64 `yaml:"price_ceiling"`
	} `yaml:"book"`

	Strategy struct {
		Name   string             `yaml:"name"`
		Params map[string]float64 `yaml:"params"`
	} `yaml:"strategy"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.RecvWindow == 0 {
		c.API.RecvWindow = 5000
	}
	if c.Engine.SubmitIntervalMS == 0 {
		c.Engine.SubmitIntervalMS = 500
	}
	if c.Engine.PollIntervalMS == 0 {
		c.Engine.PollIntervalMS = 2000
	}
	if c.Engine.ReconnectBudget == 0 {
		c.Engine.ReconnectBudget = 5
	}
	if c.Engine.MaxSubmitAttempts == 0 {
		c.Engine.MaxSubmitAttempts = 3
	}
	if c.Book.SellThreshold == 0 {
		c.Book.SellThreshold = 0.2
	}
	if c.Book.Spread == 0 {
		c.Book.Spread = 1.2
	}
	if c.Book.PriceCeiling == 0 {
		c.Book.PriceCeiling = 2000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading symbol is required")
	}
	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("invalid websocket URL: %s", c.API.WSURL)
	}
	if !strings.HasPrefix(c.API.RestURL, "http://") && !strings.HasPrefix(c.API.RestURL, "https://") {
		return fmt.Errorf("invalid REST URL: %s", c.API.RestURL)
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy name not set")
	}
	if _, err := c.InitialCash(); err != nil {
		return fmt.Errorf("invalid initial cash: %w", err)
	}
	if c.Engine.ReconnectBudget < 0 {
		return fmt.Errorf("reconnect budget must not be negative")
	}
	return nil
}

// InitialCash parses the starting cash balance.
func (c *Config) InitialCash() (decimal.Decimal, error) {
	if c.Trading.InitialCash == "" {
		return decimal.Zero, nil
	}
	cash, err := decimal.NewFromString(c.Trading.InitialCash)
	if err != nil {
		return decimal.Zero, err
	}
	if cash.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative: %s", cash)
	}
	return cash, nil
}

// SubmitInterval returns the submitter cycle period.
func (c *Config) SubmitInterval() time.Duration {
	return time.Duration(c.Engine.SubmitIntervalMS) * time.Millisecond
}

// PollInterval returns the reconciler cycle period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMS) * time.Millisecond
}

// overrideWithEnv applies environment variables over file values.
// Secrets belong in the environment, not in the config file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("GEISTEN_API_KEY"); key != "" {
		cfg.API.APIKey = key
	}
	if secret := os.Getenv("GEISTEN_SECRET_KEY"); secret != "" {
		cfg.API.SecretKey = secret
	}
	if symbol := os.Getenv("GEISTEN_SYMBOL"); symbol != "" {
		cfg.Trading.Symbol = symbol
	}
}

// ResolveConfigPath locates the config file.
// Priority: 1. current directory, 2. OS config dir.
func ResolveConfigPath() string {
	defaultPath := filepath.Join("configs", "config.yaml")

	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	configRoot, err := os.UserConfigDir()
	if err == nil {
		osPath := filepath.Join(configRoot, "geisten-bot", "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// Let LoadConfig surface the "file not found" if it is really missing.
	return defaultPath
}
