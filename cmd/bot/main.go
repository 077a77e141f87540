package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/engine"
	"github.com/geisten/bot/internal/feed"
	"github.com/geisten/bot/internal/infra"
	"github.com/geisten/bot/internal/journal"
	"github.com/geisten/bot/internal/strategy"
	"github.com/geisten/bot/internal/venue"
)

func main() {
	// Local development: secrets from .env if present.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(infra.NewLogger(cfg))

	cash, err := cfg.InitialCash()
	if err != nil {
		slog.Error("invalid initial cash", slog.Any("error", err))
		os.Exit(1)
	}

	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		slog.Error("strategy setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	b := book.New(strat, cash, book.Config{
		SellThreshold: cfg.Book.SellThreshold,
		Spread:        decimal.NewFromFloat(cfg.Book.Spread),
		PriceCeiling:  decimal.NewFromFloat(cfg.Book.PriceCeiling),
	})

	signer := venue.NewSigner(cfg.API.APIKey, cfg.API.SecretKey)
	defer signer.Wipe()
	client := venue.NewClient(cfg.API.RestURL, cfg.Trading.Symbol, cfg.API.RecvWindow, signer)

	streamURL := fmt.Sprintf("%s/%s@aggTrade", cfg.API.WSURL, strings.ToLower(cfg.Trading.Symbol))
	worker := feed.NewWorker(streamURL, func(t feed.Tick) {
		b.OnSignal(t.Price)
	})

	var recorder engine.Recorder
	if cfg.Journal.Path != "" {
		jnl, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			slog.Error("journal open failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer jnl.Close()
		recorder = jnl
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	slog.Info("starting trader",
		slog.String("symbol", cfg.Trading.Symbol),
		slog.String("strategy", cfg.Strategy.Name),
		slog.String("cash", cash.String()))

	session := engine.Start(ctx, b, client, worker, recorder, engine.Config{
		SubmitInterval:    cfg.SubmitInterval(),
		PollInterval:      cfg.PollInterval(),
		ReconnectBudget:   cfg.Engine.ReconnectBudget,
		MaxSubmitAttempts: cfg.Engine.MaxSubmitAttempts,
	})

	err = session.Wait()

	slog.Info("session finished",
		slog.String("cash", session.Cash().String()),
		slog.Int("completed_orders", len(session.Completed())))

	if err != nil {
		slog.Error("session failed", slog.Any("error", err))
		os.Exit(1)
	}
}
