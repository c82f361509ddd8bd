package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeReject LogType = "reject"
)

// RejectReason explains why an order never entered the book.
type RejectReason string

const (
	RejectReasonNone           RejectReason = ""
	RejectReasonDuplicateOrder RejectReason = "duplicate_order"  // an order with the same ID is already resident
	RejectReasonUnknownOrder   RejectReason = "unknown_order"    // modify referenced an absent ID
	RejectReasonNoMatch        RejectReason = "no_match"         // IOC order that cannot cross at all
)

// BookLog is one event in the book's life. SequenceID increases by one for
// every event and lets downstream consumers order, deduplicate, and rebuild.
// Match events are emitted per leg: Side, Price, and Size describe what that
// leg's order executed at its own limit price, and CounterOrderID names the
// other leg. Reject events do not affect book state.
type BookLog struct {
	SequenceID     uint64          `json:"seq_id"`
	TradeID        uint64          `json:"trade_id,omitempty"` // set for match events only
	Type           LogType         `json:"type"`
	Instrument     string          `json:"instrument"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	OrderID        string          `json:"order_id"`
	CounterOrderID string          `json:"counter_order_id,omitempty"`
	TimeInForce    TimeInForce     `json:"time_in_force,omitempty"`
	RejectReason   RejectReason    `json:"reject_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

// releaseBookLog resets the log and returns it to the pool. The decimal zero
// value (nil internal pointer) is a valid zero, so a struct reset suffices.
func releaseBookLog(log *BookLog) {
	*log = BookLog{}
	bookLogPool.Put(log)
}

func newOpenLog(seqID uint64, instrument string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Instrument = instrument
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.TimeInForce = order.TimeInForce
	log.CreatedAt = time.Now().UTC()
	return log
}

func newMatchLog(seqID, tradeID uint64, instrument string, order, counter *Order, quantity decimal.Decimal) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.Instrument = instrument
	log.Side = order.Side
	log.Price = order.Price
	log.Size = quantity
	log.OrderID = order.ID
	log.CounterOrderID = counter.ID
	log.TimeInForce = order.TimeInForce
	log.CreatedAt = time.Now().UTC()
	return log
}

func newCancelLog(seqID uint64, instrument string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.Instrument = instrument
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.TimeInForce = order.TimeInForce
	log.CreatedAt = time.Now().UTC()
	return log
}

func newRejectLog(seqID uint64, instrument string, order *Order, reason RejectReason) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeReject
	log.Instrument = instrument
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.Remaining
	log.OrderID = order.ID
	log.TimeInForce = order.TimeInForce
	log.RejectReason = reason
	log.CreatedAt = time.Now().UTC()
	return log
}
