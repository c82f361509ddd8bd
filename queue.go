package book

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceLevel is the FIFO of resting orders sharing one price, kept as an
// intrusive doubly-linked list so removal by order pointer is O(1).
type priceLevel struct {
	price     decimal.Decimal
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

// DepthItem is one aggregated price level in a depth snapshot.
type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// queue holds one side of the book: a skip list of price levels in
// best-to-worst order, a map from canonical price to its skip list element,
// and a map from order ID to the resting order for O(1) lookup and cancel.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	levelList   *skiplist.SkipList
	priceIndex  map[string]*skiplist.Element
	orders      map[string]*Order
}

// priceKey returns the canonical map key for a price. decimal.Decimal is not
// usable as a map key directly, equal values can differ internally.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

// newBidQueue creates the bid side; levels are ordered highest price first.
func newBidQueue() *queue {
	return &queue{
		side: Buy,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		priceIndex: make(map[string]*skiplist.Element),
		orders:     make(map[string]*Order),
	}
}

// newAskQueue creates the ask side; levels are ordered lowest price first.
func newAskQueue() *queue {
	return &queue{
		side: Sell,
		levelList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		priceIndex: make(map[string]*skiplist.Element),
		orders:     make(map[string]*Order),
	}
}

// order finds a resting order by ID, or nil.
func (q *queue) order(id string) *Order {
	return q.orders[id]
}

// insertOrder appends the order to the tail of its price level, creating the
// level when absent. Tail insertion is the time-priority component of
// price-time priority.
func (q *queue) insertOrder(order *Order) {
	key := priceKey(order.Price)
	el, ok := q.priceIndex[key]
	if ok {
		lvl, _ := el.Value.(*priceLevel)
		order.prev = lvl.tail
		order.next = nil
		if lvl.tail != nil {
			lvl.tail.next = order
		}
		lvl.tail = order
		if lvl.head == nil {
			lvl.head = order
		}
		lvl.totalSize = lvl.totalSize.Add(order.Remaining)
		lvl.count++
	} else {
		lvl := &priceLevel{
			price:     order.Price,
			totalSize: order.Remaining,
			head:      order,
			tail:      order,
			count:     1,
		}
		order.next = nil
		order.prev = nil
		q.priceIndex[key] = q.levelList.Set(order.Price, lvl)
		q.depths++
	}

	q.orders[order.ID] = order
	q.totalOrders++
}

// removeOrder unlinks the order from its level and drops the level when it
// becomes empty. Unknown IDs are a no-op returning nil.
func (q *queue) removeOrder(id string) *Order {
	order, ok := q.orders[id]
	if !ok {
		return nil
	}

	key := priceKey(order.Price)
	el, ok := q.priceIndex[key]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		lvl.head = order.next
	}
	if order.next != nil {
		order.next.prev = order.prev
	} else {
		lvl.tail = order.prev
	}
	order.next = nil
	order.prev = nil

	lvl.totalSize = lvl.totalSize.Sub(order.Remaining)
	lvl.count--
	delete(q.orders, id)
	q.totalOrders--

	if lvl.count == 0 {
		q.levelList.RemoveElement(el)
		delete(q.priceIndex, key)
		q.depths--
	}

	return order
}

// fillOrder executes quantity against a resting order, keeping the level
// aggregate in sync. Fully filled orders leave the queue.
func (q *queue) fillOrder(order *Order, quantity decimal.Decimal) error {
	if err := order.Fill(quantity); err != nil {
		return err
	}

	if el, ok := q.priceIndex[priceKey(order.Price)]; ok {
		lvl, _ := el.Value.(*priceLevel)
		lvl.totalSize = lvl.totalSize.Sub(quantity)
	}

	if order.IsFilled() {
		q.removeOrder(order.ID)
	}
	return nil
}

// headLevel returns the best price level, or nil when the side is empty.
func (q *queue) headLevel() *priceLevel {
	el := q.levelList.Front()
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// headOrder returns the order with the highest price-time priority.
func (q *queue) headOrder() *Order {
	lvl := q.headLevel()
	if lvl == nil {
		return nil
	}
	return lvl.head
}

// bestPrice returns the best price on this side; ok is false when empty.
func (q *queue) bestPrice() (decimal.Decimal, bool) {
	lvl := q.headLevel()
	if lvl == nil {
		return decimal.Decimal{}, false
	}
	return lvl.price, true
}

// orderCount returns the number of resting orders on this side.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels on this side.
func (q *queue) depthCount() int64 {
	return q.depths
}

// depth aggregates up to limit price levels in best-to-worst order.
// limit <= 0 means all levels. The pre-allocation is bounded by the actual
// level count, so an oversized limit cannot drive a huge allocation.
func (q *queue) depth(limit int) []DepthItem {
	if limit <= 0 || int64(limit) > q.depths {
		limit = int(q.depths)
	}
	result := make([]DepthItem, 0, limit)

	for el := q.levelList.Front(); el != nil && len(result) < limit; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		result = append(result, DepthItem{
			Price: lvl.price,
			Size:  lvl.totalSize,
		})
	}

	return result
}

// toSnapshot copies every resting order in priority order, levels
// best-to-worst and FIFO within each level.
func (q *queue) toSnapshot() []Order {
	snapshot := make([]Order, 0, q.totalOrders)

	for el := q.levelList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		for order := lvl.head; order != nil; order = order.next {
			cpy := *order
			cpy.next = nil
			cpy.prev = nil
			snapshot = append(snapshot, cpy)
		}
	}

	return snapshot
}
