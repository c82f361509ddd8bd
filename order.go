package book

import (
	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls how long an order may stay in the book.
type TimeInForce string

const (
	// GoodTillCancel rests in the book until filled or canceled.
	GoodTillCancel TimeInForce = "gtc"
	// ImmediateOrCancel matches as much as immediately possible; any
	// remainder is discarded instead of resting.
	ImmediateOrCancel TimeInForce = "ioc"
)

// Order is a single order, incoming or resting. Once accepted by a Book the
// book is the sole owner; callers must not mutate it afterwards.
type Order struct {
	ID          string          `json:"id"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	Initial     decimal.Decimal `json:"initial"`   // quantity at submission
	Remaining   decimal.Decimal `json:"remaining"` // 0 <= Remaining <= Initial
	Timestamp   int64           `json:"timestamp"` // unix nano, set at acceptance

	// Intrusive FIFO links inside a price level (ignored by JSON).
	next *Order
	prev *Order
}

// NewOrder builds an order with Remaining initialized to the full quantity.
func NewOrder(id string, side Side, tif TimeInForce, price, quantity decimal.Decimal) *Order {
	return &Order{
		ID:          id,
		Side:        side,
		TimeInForce: tif,
		Price:       price,
		Initial:     quantity,
		Remaining:   quantity,
	}
}

// Fill reduces the remaining quantity. Asking for more than remains is a
// broken matching invariant, reported as ErrInvalidFill.
func (o *Order) Fill(quantity decimal.Decimal) error {
	if quantity.GreaterThan(o.Remaining) {
		return ErrInvalidFill
	}
	o.Remaining = o.Remaining.Sub(quantity)
	return nil
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining.IsZero()
}

// FilledQuantity returns how much of the order has executed so far.
func (o *Order) FilledQuantity() decimal.Decimal {
	return o.Initial.Sub(o.Remaining)
}
