package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/domain"
	"github.com/geisten/bot/internal/journal"
	"github.com/geisten/bot/internal/venue"
)

// reconcileLoop polls the status of placed orders each cycle and moves
// settled ones into the completed set.
func (s *Session) reconcileLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.reconcileCycle(ctx); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

// reconcileCycle polls every placed order once against the venue.
// Transport errors leave the order in place for the next cycle; only
// ledger invariant violations are returned, and they are fatal.
func (s *Session) reconcileCycle(ctx context.Context) error {
	for orderID, entry := range s.book.SnapshotPlaced() {
		if ctx.Err() != nil {
			return nil
		}

		status, err := s.venue.Status(ctx, orderID)
		if err != nil {
			if errors.Is(err, venue.ErrOrderNotFound) {
				// Placed locally, unknown remotely: reconcile explicitly
				// instead of polling forever.
				if err := s.markLost(ctx, orderID, entry, "not found at venue"); err != nil {
					return err
				}
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("status poll failed",
				slog.String("order_id", orderID),
				slog.Any("error", err))
			continue
		}

		switch status {
		case domain.StatusFilled:
			if err := s.book.Complete(orderID); err != nil {
				return err
			}
			slog.Info("order completed",
				slog.String("order_id", orderID),
				slog.String("side", entry.Side.String()),
				slog.String("price", entry.Order.Price.String()),
				slog.String("qty", entry.Order.Amount.String()))
			s.record(ctx, journal.Event{
				Kind:    journal.KindCompleted,
				OrderID: orderID,
				Side:    entry.Side.String(),
				Price:   entry.Order.Price.String(),
				Qty:     entry.Order.Amount.String(),
			})

		case domain.StatusNew, domain.StatusPartiallyFilled:
			// Unsettled: retained for the next cycle.

		case domain.StatusCanceled, domain.StatusExpired, domain.StatusRejected:
			if err := s.markLost(ctx, orderID, entry, status); err != nil {
				return err
			}

		default:
			slog.Warn("unknown venue status",
				slog.String("order_id", orderID),
				slog.String("status", status))
		}
	}
	return nil
}

// markLost removes an order from the placed set without crediting and
// reports it.
func (s *Session) markLost(ctx context.Context, orderID string, entry book.Entry, reason string) error {
	if err := s.book.Drop(orderID); err != nil {
		return err
	}
	slog.Warn("order lost",
		slog.String("order_id", orderID),
		slog.String("side", entry.Side.String()),
		slog.String("price", entry.Order.Price.String()),
		slog.String("qty", entry.Order.Amount.String()),
		slog.String("reason", reason))
	s.record(ctx, journal.Event{
		Kind:    journal.KindLost,
		OrderID: orderID,
		Side:    entry.Side.String(),
		Price:   entry.Order.Price.String(),
		Qty:     entry.Order.Amount.String(),
		Detail:  reason,
	})
	return nil
}
