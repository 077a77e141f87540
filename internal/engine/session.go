package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/domain"
	"github.com/geisten/bot/internal/feed"
	"github.com/geisten/bot/internal/infra"
	"github.com/geisten/bot/internal/journal"
	"github.com/geisten/bot/internal/venue"
)

// VenueClient is the outbound half of the venue: signed submission and
// status polling.
type VenueClient interface {
	Submit(ctx context.Context, side domain.Side, order domain.Order) (venue.Ack, error)
	Status(ctx context.Context, orderID string) (string, error)
}

// FeedRunner is one price-stream connection cycle.
type FeedRunner interface {
	Run(ctx context.Context) error
	Ticks() uint64
}

// Recorder appends order-lifecycle events to the journal. May be nil.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// Config holds the scheduler timing and retry bounds.
type Config struct {
	SubmitInterval    time.Duration
	PollInterval      time.Duration
	ReconnectBudget   int
	MaxSubmitAttempts int
}

// Session runs the order lifecycle: the stream ingestor, the order
// submitter and the status reconciler as three concurrent loops over
// one shared book. A failure in one loop does not silently stop the
// others; only a ledger invariant violation or an exhausted reconnect
// budget terminates the session.
type Session struct {
	book    *book.Book
	venue   VenueClient
	feed    FeedRunner
	journal Recorder
	cfg     Config

	cancel  context.CancelFunc
	errs    chan error
	wg      sync.WaitGroup
	pending []pendingSubmit
}

// Start launches the three loops and returns the running session.
func Start(ctx context.Context, b *book.Book, vc VenueClient, fr FeedRunner, rec Recorder, cfg Config) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		book:    b,
		venue:   vc,
		feed:    fr,
		journal: rec,
		cfg:     cfg,
		cancel:  cancel,
		errs:    make(chan error, 3),
	}

	s.wg.Add(3)
	go s.ingestLoop(ctx)
	go s.submitLoop(ctx)
	go s.reconcileLoop(ctx)

	slog.Info("session started",
		slog.Duration("submit_interval", cfg.SubmitInterval),
		slog.Duration("poll_interval", cfg.PollInterval))
	return s
}

// Stop cancels the session. In-flight requests are abandoned; their
// late responses are discarded without touching the book.
func (s *Session) Stop() {
	s.cancel()
}

// Wait blocks until all loops have exited and returns the fatal error,
// if any. A session stopped via Stop or parent cancellation returns nil.
func (s *Session) Wait() error {
	s.wg.Wait()
	select {
	case err := <-s.errs:
		return err
	default:
		return nil
	}
}

// Cash returns the current cash balance of the session's book.
func (s *Session) Cash() decimal.Decimal {
	return s.book.Cash()
}

// Completed returns a read-only view of the settled orders.
func (s *Session) Completed() map[string]book.Entry {
	return s.book.CompletedOrders()
}

// fail records a fatal error and tears the whole session down.
func (s *Session) fail(err error) {
	slog.Error("session fatal", slog.Any("error", err))
	select {
	case s.errs <- err:
	default:
	}
	s.cancel()
}

// record journals an event, tolerating a missing or failing journal.
func (s *Session) record(ctx context.Context, ev journal.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		slog.Warn("journal write failed", slog.Any("error", err))
	}
}

// ingestLoop keeps the price stream alive. A disconnect is recoverable
// within the reconnect budget; the trend survives reconnects because it
// lives in the book, not in the connection.
func (s *Session) ingestLoop(ctx context.Context) {
	defer s.wg.Done()

	attempts := 0
	lastTicks := s.feed.Ticks()

	for {
		err := s.feed.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		// A connection that delivered ticks earns a fresh budget.
		if t := s.feed.Ticks(); t > lastTicks {
			lastTicks = t
			attempts = 0
		}

		if err == nil || !errors.Is(err, feed.ErrDisconnected) {
			s.fail(fmt.Errorf("ingest: %w", err))
			return
		}

		if attempts >= s.cfg.ReconnectBudget {
			s.fail(fmt.Errorf("ingest: reconnect budget of %d exhausted: %w", s.cfg.ReconnectBudget, err))
			return
		}

		delay := infra.Backoff(attempts)
		attempts++
		slog.Warn("feed disconnected, reconnecting",
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if !infra.Sleep(ctx.Done(), delay) {
			return
		}
	}
}
