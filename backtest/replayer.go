package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/geisten/bot/internal/book"
)

// Replayer drives the book from a CSV price series: one decision step
// per row, no scheduler, no venue. It is the simplified non-concurrent
// harness for strategy calibration.
type Replayer struct {
	book     *book.Book
	autoFill bool
	nextID   int
}

// NewReplayer creates a replayer over the given book. With autoFill
// enabled every created order settles instantly under a synthetic id,
// so the buy-back ladder is exercised offline.
func NewReplayer(b *book.Book, autoFill bool) *Replayer {
	return &Replayer{book: b, autoFill: autoFill}
}

// Run consumes CSV rows of the form `timestamp,price`. The first row is
// treated as a header and skipped. Returns the number of prices replayed.
func (r *Replayer) Run(rd io.Reader) (int, error) {
	reader := csv.NewReader(rd)
	reader.FieldsPerRecord = -1

	// Header row.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	rows := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("failed to read row %d: %w", rows+2, err)
		}
		if len(row) < 2 {
			return rows, fmt.Errorf("row %d: expected timestamp,price got %d fields", rows+2, len(row))
		}

		price, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			return rows, fmt.Errorf("row %d: invalid price %q: %w", rows+2, row[1], err)
		}

		r.book.OnSignal(price)
		if r.autoFill {
			r.fillCreated()
		}
		rows++
	}
}

// fillCreated settles every freshly created order immediately.
func (r *Replayer) fillCreated() {
	for _, entry := range r.book.DrainNew() {
		r.nextID++
		id := fmt.Sprintf("sim-%d", r.nextID)
		if err := r.book.Place(id, entry); err != nil {
			continue
		}
		_ = r.book.Complete(id)
	}
}
