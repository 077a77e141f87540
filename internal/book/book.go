package book

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/geisten/bot/internal/domain"
	"github.com/geisten/bot/internal/strategy"
)

// Ledger invariant violations. These indicate a bug in the caller, not a
// transient condition, and must terminate the session.
var (
	ErrInvalidQuantity  = errors.New("book: invalid quantity")
	ErrDuplicateOrderID = errors.New("book: duplicate order id")
	ErrUnknownOrderID   = errors.New("book: unknown order id")
)

// Entry associates an order with its direction. Orders are immutable;
// lifecycle transitions move the Entry between collections.
type Entry struct {
	Side  domain.Side
	Order domain.Order
}

// Config holds the trading calibration of the book.
type Config struct {
	// SellThreshold is the absolute impulse magnitude a strategy signal
	// must exceed before the book acts on it.
	SellThreshold float64
	// Spread is the minimum profit margin before a completed ask is
	// covered by a new bid.
	Spread decimal.Decimal
	// PriceCeiling is the safety valve: above it the book asks
	// regardless of the strategy impulse.
	PriceCeiling decimal.Decimal
}

// DefaultConfig returns the reference calibration.
func DefaultConfig() Config {
	return Config{
		SellThreshold: 0.2,
		Spread:        decimal.NewFromFloat(1.2),
		PriceCeiling:  decimal.NewFromInt(2000),
	}
}

// Book is the authoritative in-memory ledger of orders and cash.
// Three concurrent activities share it: the stream ingestor (OnSignal),
// the order submitter (DrainNew/Place) and the status reconciler
// (SnapshotPlaced/Complete/Drop). Every exported operation holds the
// mutex for its full read-modify-write span, so callers never observe
// an intermediate state.
type Book struct {
	mu sync.Mutex

	strategy strategy.Strategy
	cfg      Config

	cash      decimal.Decimal
	trend     []float64
	new       []Entry
	placed    map[string]Entry
	completed map[string]Entry
}

// New creates a book with the given strategy, starting cash and calibration.
func New(strat strategy.Strategy, initialCash decimal.Decimal, cfg Config) *Book {
	return &Book{
		strategy:  strat,
		cfg:       cfg,
		cash:      initialCash,
		placed:    make(map[string]Entry),
		completed: make(map[string]Entry),
	}
}

// Ask creates a sell-side order and queues it for submission.
func (b *Book) Ask(price, qty decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enqueue(domain.Ask, price, qty)
}

// Bid creates a buy-side order and queues it for submission.
func (b *Book) Bid(price, qty decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enqueue(domain.Bid, price, qty)
}

// enqueue appends a new entry. Caller must hold b.mu.
func (b *Book) enqueue(side domain.Side, price, qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: %s qty %s", ErrInvalidQuantity, side, qty)
	}
	order := domain.NewOrder(price, qty)
	b.new = append(b.new, Entry{Side: side, Order: order})
	slog.Info("order created",
		slog.String("side", side.String()),
		slog.String("price", price.String()),
		slog.String("qty", qty.String()))
	return nil
}

// OnSignal is the decision step: it appends the price to the trend,
// evaluates the strategy against the full trend and applies the
// resulting ledger mutation. The whole step runs under one lock so that
// no other operation can observe the trend updated but cash not yet.
func (b *Book) OnSignal(price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, _ := price.Float64()
	b.trend = append(b.trend, value)
	impulse := b.strategy(b.trend)

	switch {
	case impulse > b.cfg.SellThreshold:
		amount := b.coverableAmount(price)
		if amount.LessThanOrEqual(decimal.Zero) {
			return
		}
		remaining := b.cash.Sub(amount.Mul(price))
		if remaining.IsNegative() {
			slog.Warn("bid skipped, insufficient cash",
				slog.String("price", price.String()),
				slog.String("amount", amount.String()),
				slog.String("cash", b.cash.String()))
			return
		}
		if err := b.enqueue(domain.Bid, price, amount); err != nil {
			return
		}
		b.cash = remaining

	case impulse < -b.cfg.SellThreshold || price.GreaterThan(b.cfg.PriceCeiling):
		if price.LessThanOrEqual(decimal.Zero) {
			return
		}
		amount := b.cash.Div(price)
		if amount.LessThanOrEqual(decimal.Zero) {
			return
		}
		// Cash is not debited here; it is released only when the venue
		// confirms settlement (see Complete).
		_ = b.enqueue(domain.Ask, price, amount)
	}
}

// coverableAmount sums the quantity of completed asks whose price plus
// spread exceeds the current price. Caller must hold b.mu.
func (b *Book) coverableAmount(price decimal.Decimal) decimal.Decimal {
	amount := decimal.Zero
	for _, entry := range b.completed {
		if entry.Side != domain.Ask {
			continue
		}
		if entry.Order.Price.Add(b.cfg.Spread).GreaterThan(price) {
			amount = amount.Add(entry.Order.Amount)
		}
	}
	return amount
}

// Place records venue acceptance of a submitted order under the
// venue-assigned id.
func (b *Book) Place(orderID string, entry Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.placed[orderID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateOrderID, orderID)
	}
	if _, ok := b.completed[orderID]; ok {
		return fmt.Errorf("%w: %q already completed", ErrDuplicateOrderID, orderID)
	}
	b.placed[orderID] = entry
	return nil
}

// Complete moves a placed order into the completed set. A filled bid
// releases its escrowed shares back into cash.
func (b *Book) Complete(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.placed[orderID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrderID, orderID)
	}
	delete(b.placed, orderID)
	b.completed[orderID] = entry

	if entry.Side == domain.Bid {
		b.cash = b.cash.Add(entry.Order.Amount)
	}
	return nil
}

// Drop removes a placed order without crediting anything. Used when the
// venue reports the order canceled, expired, rejected or unknown.
func (b *Book) Drop(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.placed[orderID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrderID, orderID)
	}
	delete(b.placed, orderID)
	return nil
}

// DrainNew atomically returns and clears the queue of unsubmitted
// orders, so concurrently created orders are neither submitted twice
// nor lost between the read and the clear.
func (b *Book) DrainNew() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	drained := b.new
	b.new = nil
	return drained
}

// SnapshotPlaced returns a copy of the placed set for the reconciler to
// poll against without blocking new placements.
func (b *Book) SnapshotPlaced() map[string]Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make(map[string]Entry, len(b.placed))
	for id, entry := range b.placed {
		snapshot[id] = entry
	}
	return snapshot
}

// Cash returns the current cash balance.
func (b *Book) Cash() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

// CompletedOrders returns a copy of the completed set for reporting.
func (b *Book) CompletedOrders() map[string]Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Entry, len(b.completed))
	for id, entry := range b.completed {
		out[id] = entry
	}
	return out
}

// TrendSize reports how many prices the book has observed.
func (b *Book) TrendSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trend)
}
