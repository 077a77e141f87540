package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/geisten/bot/backtest"
	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/infra"
	"github.com/geisten/bot/internal/strategy"
)

func main() {
	cashFlag := flag.String("cash", "1000", "available cash to trade")
	configFlag := flag.String("strategy", "", "strategy config file (yaml)")
	csvFlag := flag.String("csv", "", "price series CSV file (default: stdin)")
	flag.Parse()

	_ = godotenv.Load()

	if *configFlag == "" {
		fmt.Fprintln(os.Stderr, "backtest: --strategy config file is required")
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig(*configFlag)
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	cash, err := decimal.NewFromString(*cashFlag)
	if err != nil || cash.IsNegative() {
		fmt.Fprintf(os.Stderr, "backtest: invalid cash value %q\n", *cashFlag)
		os.Exit(2)
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

	input := os.Stdin
	if *csvFlag != "" {
		f, err := os.Open(*csvFlag)
		if err != nil {
			slog.Error("failed to open CSV", slog.Any("error", err))
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}

	fmt.Printf("run backtesting: %q\n", cfg.Strategy.Name)

	replayer := backtest.NewReplayer(b, true)
	rows, err := replayer.Run(input)
	if err != nil {
		slog.Error("replay failed", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf(`
Backtest Report
================
Prices:    %d
Cash:      %s
Completed: %d orders
`, rows, b.Cash().Round(2), len(b.CompletedOrders()))
}
