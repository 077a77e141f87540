package backtest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/geisten/bot/internal/book"
	"github.com/geisten/bot/internal/domain"
	"github.com/geisten/bot/internal/strategy"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func rsiBook(t *testing.T, cash string) *book.Book {
	t.Helper()
	strat, err := strategy.New("rsi", strategy.Params{
		"buy_limit":             0.25,
		"sell_limit":            0.05,
		"moving_average_window": 5,
		"rsi_window":            5,
	})
	if err != nil {
		t.Fatalf("strategy.New failed: %v", err)
	}
	return book.New(strat, mustDecimal(t, cash), book.DefaultConfig())
}

func TestReplayer_DipTriggersFilledAsk(t *testing.T) {
	b := rsiBook(t, "1000")
	replayer := NewReplayer(b, true)

	// Ten flat prices warm the indicators up; the dip to 60 fires the
	// buy impulse, which the book expresses as an ask of the full cash.
	var sb strings.Builder
	sb.WriteString("timestamp,price\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("1700000000,100\n")
	}
	sb.WriteString("1700000010,60\n")

	rows, err := replayer.Run(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rows != 11 {
		t.Errorf("rows: got %d, want 11", rows)
	}
	if b.TrendSize() != 11 {
		t.Errorf("trend size: got %d, want 11", b.TrendSize())
	}

	completed := b.CompletedOrders()
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed order, got %d", len(completed))
	}
	entry, ok := completed["sim-1"]
	if !ok {
		t.Fatalf("expected synthetic id sim-1, got %v", completed)
	}
	if entry.Side != domain.Ask {
		t.Errorf("expected ASK, got %s", entry.Side)
	}
	wantAmount := mustDecimal(t, "1000").Div(mustDecimal(t, "60"))
	if !entry.Order.Amount.Equal(wantAmount) {
		t.Errorf("amount: got %s, want %s", entry.Order.Amount, wantAmount)
	}
	if got := len(b.DrainNew()); got != 0 {
		t.Errorf("autoFill must leave no unsubmitted orders, got %d", got)
	}
}

func TestReplayer_WithoutAutoFillOrdersStayNew(t *testing.T) {
	b := rsiBook(t, "1000")
	replayer := NewReplayer(b, false)

	var sb strings.Builder
	sb.WriteString("timestamp,price\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("1700000000,100\n")
	}
	sb.WriteString("1700000010,60\n")

	if _, err := replayer.Run(strings.NewReader(sb.String())); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := len(b.CompletedOrders()); got != 0 {
		t.Errorf("nothing must settle without autoFill, got %d", got)
	}
	if got := len(b.DrainNew()); got != 1 {
		t.Errorf("expected 1 unsubmitted order, got %d", got)
	}
}

func TestReplayer_HeaderOnly(t *testing.T) {
	b := rsiBook(t, "1000")

	rows, err := NewReplayer(b, true).Run(strings.NewReader("timestamp,price\n"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows: got %d, want 0", rows)
	}
}

func TestReplayer_EmptyInput(t *testing.T) {
	b := rsiBook(t, "1000")

	rows, err := NewReplayer(b, true).Run(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty input is not an error, got %v", err)
	}
	if rows != 0 {
		t.Errorf("rows: got %d, want 0", rows)
	}
}

func TestReplayer_MalformedRows(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"missing price column", "timestamp,price\n1700000000\n"},
		{"garbled price", "timestamp,price\n1700000000,cheap\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := rsiBook(t, "1000")
			if _, err := NewReplayer(b, true).Run(strings.NewReader(tc.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReplayer_WhitespaceTolerant(t *testing.T) {
	b := rsiBook(t, "1000")

	rows, err := NewReplayer(b, true).Run(strings.NewReader("timestamp,price\n1700000000, 100\n"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("rows: got %d, want 1", rows)
	}
	if b.TrendSize() != 1 {
		t.Errorf("trend size: got %d, want 1", b.TrendSize())
	}
}
