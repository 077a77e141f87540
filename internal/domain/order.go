package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	Ask Side = iota + 1
	Bid
)

func (s Side) String() string {
	switch s {
	case Ask:
		return "ASK"
	case Bid:
		return "BID"
	default:
		return "UNKNOWN"
	}
}

// VenueSide maps a Side to the wire value the venue expects.
func (s Side) VenueSide() string {
	if s == Bid {
		return "BUY"
	}
	return "SELL"
}

// Venue order statuses as reported by the status endpoint.
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusExpired         = "EXPIRED"
	StatusRejected        = "REJECTED"
)

// Order is an immutable order value. State transitions move the
// (side, order) association between book collections; the Order itself
// is never mutated after creation.
type Order struct {
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// NewOrder stamps an order with the current time.
func NewOrder(price, amount decimal.Decimal) Order {
	return Order{
		Amount:    amount,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}
}

// UnixMilli returns the order timestamp in milliseconds, the unit the
// venue's recvWindow check operates on.
func (o Order) UnixMilli() int64 {
	return o.Timestamp.UnixMilli()
}

func (o Order) String() string {
	return fmt.Sprintf("time=%s, price=%s, amount=%s",
		o.Timestamp.Format(time.RFC3339Nano), o.Price, o.Amount)
}
