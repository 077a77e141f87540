package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Event kinds recorded over an order's lifecycle.
const (
	KindCreated      = "created"
	KindPlaced       = "placed"
	KindCompleted    = "completed"
	KindRejected     = "rejected"
	KindSubmitFailed = "submit_failed"
	KindLost         = "lost"
)

// Event is one journaled order-lifecycle event. Price and Qty are kept
// as decimal strings so the journal never rounds what the book traded.
type Event struct {
	ID      int64
	Time    time.Time
	Kind    string
	OrderID string
	Side    string
	Price   string
	Qty     string
	Detail  string
}

// Journal persists order-lifecycle events to SQLite for post-session
// reporting. It is an audit log, not the source of truth; the book does
// not read from it.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY,
			ts INTEGER NOT NULL,
			kind TEXT NOT NULL,
			order_id TEXT NOT NULL,
			side TEXT NOT NULL,
			price TEXT NOT NULL,
			qty TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create order_events table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO order_events (ts, kind, order_id, side, price, qty, detail) VALUES (?, ?, ?, ?, ?, ?, ?)",
		ts.UnixMicro(), ev.Kind, ev.OrderID, ev.Side, ev.Price, ev.Qty, ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order event: %w", err)
	}
	return nil
}

// Events returns all journaled events in insertion order.
func (j *Journal) Events(ctx context.Context) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, ts, kind, order_id, side, price, qty, detail FROM order_events ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts int64
		if err := rows.Scan(&ev.ID, &ts, &ev.Kind, &ev.OrderID, &ev.Side, &ev.Price, &ev.Qty, &ev.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		ev.Time = time.UnixMicro(ts).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
