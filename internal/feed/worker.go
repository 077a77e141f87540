package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// ErrDisconnected signals a recoverable loss of the price stream. The
// worker does not retry on its own; reconnection policy belongs to the
// scheduler.
var ErrDisconnected = errors.New("feed: disconnected")

// Tick is one observed trade price.
type Tick struct {
	Price decimal.Decimal
	Time  time.Time
}

// Handler consumes ticks in arrival order.
type Handler func(Tick)

// tradeMessage is the wire format of the venue's trade stream: price as
// a decimal string, trade time in epoch milliseconds.
type tradeMessage struct {
	Price string `json:"p"`
	Time  int64  `json:"T"`
}

// Worker consumes the websocket price stream for a single symbol and
// hands each tick to the handler. One Run call covers one connection;
// it returns ErrDisconnected when the transport drops.
type Worker struct {
	url     string
	handler Handler
	ticks   atomic.Uint64

	ReadTimeout      time.Duration
	HandshakeTimeout time.Duration
}

// NewWorker creates a stream worker for the given websocket URL.
func NewWorker(url string, handler Handler) *Worker {
	return &Worker{
		url:              url,
		handler:          handler,
		ReadTimeout:      60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Run connects and reads ticks until the context is cancelled or the
// connection drops. Waiting for the next message is the sole suspension
// point of this component.
func (w *Worker) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.url, http.Header{})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: dial %s: %v", ErrDisconnected, w.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the session is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Info("feed connected", slog.String("url", w.url))

	for {
		conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}

		tick, err := parseTick(msg)
		if err != nil {
			slog.Warn("feed message skipped", slog.Any("error", err))
			continue
		}

		w.ticks.Add(1)
		w.handler(tick)
	}
}

// Ticks reports how many ticks this worker has delivered across all
// connections. The scheduler uses it to tell a dead feed from one that
// was healthy before dropping.
func (w *Worker) Ticks() uint64 {
	return w.ticks.Load()
}

func parseTick(msg []byte) (Tick, error) {
	var trade tradeMessage
	if err := json.Unmarshal(msg, &trade); err != nil {
		return Tick{}, fmt.Errorf("malformed trade event: %w", err)
	}
	if trade.Price == "" {
		return Tick{}, fmt.Errorf("trade event without price: %s", msg)
	}
	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return Tick{}, fmt.Errorf("invalid trade price %q: %w", trade.Price, err)
	}
	return Tick{
		Price: price,
		Time:  time.UnixMilli(trade.Time).UTC(),
	}, nil
}
