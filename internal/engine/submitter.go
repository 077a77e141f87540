package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/journal"
	"github.com/geisten/bot/internal/venue"
)

// pendingSubmit carries an order through its bounded submission
// attempts. The queue is owned by the submit loop alone; retried orders
// stay at the front, freshly drained ones append behind them.
type pendingSubmit struct {
	entry    book.Entry
	attempts int
}

// submitLoop drains newly created orders each cycle and sends them to
// the venue.
func (s *Session) submitLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SubmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.submitCycle(ctx); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

// submitCycle processes the pending queue once. It returns an error
// only for ledger invariant violations, which are fatal.
func (s *Session) submitCycle(ctx context.Context) error {
	for _, entry := range s.book.DrainNew() {
		s.record(ctx, journal.Event{
			Kind:  journal.KindCreated,
			Side:  entry.Side.String(),
			Price: entry.Order.Price.String(),
			Qty:   entry.Order.Amount.String(),
		})
		s.pending = append(s.pending, pendingSubmit{entry: entry})
	}

	var keep []pendingSubmit
	for _, p := range s.pending {
		if ctx.Err() != nil {
			// Cancellation observed: no further book mutation.
			s.pending = nil
			return nil
		}

		ack, err := s.venue.Submit(ctx, p.entry.Side, p.entry.Order)

		var rejected *venue.RejectedError
		switch {
		case err == nil:
			if ctx.Err() != nil {
				s.pending = nil
				return nil
			}
			if placeErr := s.book.Place(ack.OrderID, p.entry); placeErr != nil {
				return placeErr
			}
			slog.Info("order placed",
				slog.String("order_id", ack.OrderID),
				slog.String("side", p.entry.Side.String()),
				slog.String("price", p.entry.Order.Price.String()),
				slog.String("qty", p.entry.Order.Amount.String()))
			s.record(ctx, journal.Event{
				Kind:    journal.KindPlaced,
				OrderID: ack.OrderID,
				Side:    p.entry.Side.String(),
				Price:   p.entry.Order.Price.String(),
				Qty:     p.entry.Order.Amount.String(),
			})

		case errors.As(err, &rejected):
			// Authoritative rejection: dropped, not retried. Retry is a
			// strategy decision on the next signal.
			slog.Warn("order rejected",
				slog.String("side", p.entry.Side.String()),
				slog.String("price", p.entry.Order.Price.String()),
				slog.String("qty", p.entry.Order.Amount.String()),
				slog.String("reason", rejected.Reason))
			s.record(ctx, journal.Event{
				Kind:   journal.KindRejected,
				Side:   p.entry.Side.String(),
				Price:  p.entry.Order.Price.String(),
				Qty:    p.entry.Order.Amount.String(),
				Detail: rejected.Reason,
			})

		default:
			// Transport error: retry next cycle within the bound.
			p.attempts++
			if p.attempts < s.cfg.MaxSubmitAttempts {
				keep = append(keep, p)
				continue
			}
			slog.Warn("order submission failed",
				slog.String("side", p.entry.Side.String()),
				slog.String("price", p.entry.Order.Price.String()),
				slog.String("qty", p.entry.Order.Amount.String()),
				slog.Int("attempts", p.attempts),
				slog.Any("error", err))
			s.record(ctx, journal.Event{
				Kind:   journal.KindSubmitFailed,
				Side:   p.entry.Side.String(),
				Price:  p.entry.Order.Price.String(),
				Qty:    p.entry.Order.Amount.String(),
				Detail: err.Error(),
			})
		}
	}
	s.pending = keep
	return nil
}
