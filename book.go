package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book is a single-instrument limit order book with price-time priority
// matching. It is a synchronous, single-owner structure: no operation blocks,
// and no internal locking is performed. Concurrent callers must serialize
// access themselves or go through LiveBook, which runs the book behind a
// single-writer loop.
type Book struct {
	instrument string
	bids       *queue
	asks       *queue
	seqID      uint64
	tradeID    uint64
	publish    PublishLog
}

// Depth is a point-in-time aggregate of the book, price levels best-to-worst
// per side.
type Depth struct {
	UpdateID uint64      `json:"update_id"`
	Bids     []DepthItem `json:"bids"`
	Asks     []DepthItem `json:"asks"`
}

// NewBook creates an empty book. publish may be nil when no event consumer
// exists.
func NewBook(instrument string, publish PublishLog) *Book {
	if publish == nil {
		publish = NewDiscardPublishLog()
	}
	return &Book{
		instrument: instrument,
		bids:       newBidQueue(),
		asks:       newAskQueue(),
		publish:    publish,
	}
}

// Instrument returns the instrument this book trades.
func (b *Book) Instrument() string {
	return b.instrument
}

// Size returns the number of live resting orders across both sides.
func (b *Book) Size() int {
	return int(b.bids.orderCount() + b.asks.orderCount())
}

// BestBid returns the highest bid price; ok is false when the side is empty.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	return b.bids.bestPrice()
}

// BestAsk returns the lowest ask price; ok is false when the side is empty.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	return b.asks.bestPrice()
}

// Order returns the resting order with the given ID, or nil.
func (b *Book) Order(id string) *Order {
	if order := b.bids.order(id); order != nil {
		return order
	}
	return b.asks.order(id)
}

// Depth aggregates up to limit price levels per side, best-to-worst.
// limit <= 0 returns all levels.
func (b *Book) Depth(limit int) *Depth {
	return &Depth{
		UpdateID: b.seqID,
		Bids:     b.bids.depth(limit),
		Asks:     b.asks.depth(limit),
	}
}

// canMatch reports whether an order on the given side at the given price
// would cross the best price on the opposite side.
func (b *Book) canMatch(side Side, price decimal.Decimal) bool {
	if side == Buy {
		bestAsk, ok := b.asks.bestPrice()
		return ok && price.GreaterThanOrEqual(bestAsk)
	}
	bestBid, ok := b.bids.bestPrice()
	return ok && price.LessThanOrEqual(bestBid)
}

// Submit accepts a fully constructed order and returns the trades it
// produced, possibly none. Duplicate IDs and IOC orders that cannot cross are
// rejected silently: no trades, no state change. The only error returned is
// ErrInvalidFill, which signals corrupted book state.
func (b *Book) Submit(order *Order) ([]Trade, error) {
	if order == nil || order.ID == "" || !order.Remaining.IsPositive() {
		return nil, ErrInvalidParam
	}

	logs := make([]*BookLog, 0, 8)

	if b.Order(order.ID) != nil {
		logs = append(logs, newRejectLog(b.nextSeqID(), b.instrument, order, RejectReasonDuplicateOrder))
		b.flush(logs)
		return nil, nil
	}

	if order.TimeInForce == ImmediateOrCancel && !b.canMatch(order.Side, order.Price) {
		logs = append(logs, newRejectLog(b.nextSeqID(), b.instrument, order, RejectReasonNoMatch))
		b.flush(logs)
		return nil, nil
	}

	order.Timestamp = time.Now().UnixNano()
	b.sideQueue(order.Side).insertOrder(order)
	logs = append(logs, newOpenLog(b.nextSeqID(), b.instrument, order))

	trades, logs, err := b.matchOrders(logs)
	b.flush(logs)
	if err != nil {
		logger.Error("matching aborted", "instrument", b.instrument, "order_id", order.ID, "error", err)
		return trades, err
	}
	return trades, nil
}

// Cancel removes the order from the book if present. Canceling an unknown or
// already-canceled ID is a no-op; cancellation is idempotent.
func (b *Book) Cancel(id string) {
	order := b.bids.removeOrder(id)
	if order == nil {
		order = b.asks.removeOrder(id)
	}
	if order == nil {
		return
	}
	b.flush([]*BookLog{newCancelLog(b.nextSeqID(), b.instrument, order)})
}

// Modify replaces an existing order: the resident order is canceled and the
// new one submitted fresh, which re-queues it at the back of its price level.
// Time priority is intentionally forfeited. An unknown ID is rejected with no
// trades and no state change.
func (b *Book) Modify(order *Order) ([]Trade, error) {
	// Reject malformed replacements up front; validating only inside
	// Submit would destroy the resident order first.
	if order == nil || order.ID == "" || !order.Remaining.IsPositive() {
		return nil, ErrInvalidParam
	}

	if b.Order(order.ID) == nil {
		b.flush([]*BookLog{newRejectLog(b.nextSeqID(), b.instrument, order, RejectReasonUnknownOrder)})
		return nil, nil
	}

	b.Cancel(order.ID)
	return b.Submit(order)
}

// matchOrders crosses the book until the best bid no longer meets the best
// ask. Each iteration pairs the two head orders, decides the trade quantity,
// then mutates: fill both legs, drop filled orders and emptied levels. When a
// best level is exhausted the loop re-evaluates both best prices, since an
// exhausted level can expose a new best. Afterwards an unfilled IOC order
// left at either best head is canceled so it never rests past its
// submission.
func (b *Book) matchOrders(logs []*BookLog) ([]Trade, []*BookLog, error) {
	var trades []Trade

	for {
		bidLevel := b.bids.headLevel()
		askLevel := b.asks.headLevel()
		if bidLevel == nil || askLevel == nil {
			break
		}
		if bidLevel.price.LessThan(askLevel.price) {
			break
		}

		for bidLevel.count > 0 && askLevel.count > 0 {
			bid := bidLevel.head
			ask := askLevel.head
			quantity := decimal.Min(bid.Remaining, ask.Remaining)

			if err := b.bids.fillOrder(bid, quantity); err != nil {
				return trades, logs, err
			}
			if err := b.asks.fillOrder(ask, quantity); err != nil {
				return trades, logs, err
			}

			tradeID := b.nextTradeID()
			trades = append(trades, Trade{
				TradeID: tradeID,
				Bid:     TradeLeg{OrderID: bid.ID, Price: bid.Price, Quantity: quantity},
				Ask:     TradeLeg{OrderID: ask.ID, Price: ask.Price, Quantity: quantity},
			})
			logs = append(logs, newMatchLog(b.nextSeqID(), tradeID, b.instrument, bid, ask, quantity))
			logs = append(logs, newMatchLog(b.nextSeqID(), tradeID, b.instrument, ask, bid, quantity))
		}
	}

	logs = b.cancelRestingIOC(b.bids, logs)
	logs = b.cancelRestingIOC(b.asks, logs)

	return trades, logs, nil
}

// cancelRestingIOC removes the side's head order when it is an IOC that did
// not fully fill. Only the exposed best head is checked, matching the
// reference cleanup behavior.
func (b *Book) cancelRestingIOC(q *queue, logs []*BookLog) []*BookLog {
	head := q.headOrder()
	if head == nil || head.TimeInForce != ImmediateOrCancel || head.IsFilled() {
		return logs
	}
	q.removeOrder(head.ID)
	return append(logs, newCancelLog(b.nextSeqID(), b.instrument, head))
}

func (b *Book) sideQueue(side Side) *queue {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) nextSeqID() uint64 {
	b.seqID++
	return b.seqID
}

func (b *Book) nextTradeID() uint64 {
	b.tradeID++
	return b.tradeID
}

// flush publishes the logs and recycles them to the pool.
func (b *Book) flush(logs []*BookLog) {
	if len(logs) == 0 {
		return
	}
	b.publish.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}
