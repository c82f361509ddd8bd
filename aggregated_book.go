package book

import (
	"sync"
	"sync/atomic"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a depth-only view of the order book: price levels
// and their aggregated sizes, no individual orders. It is meant for
// downstream consumers that rebuild book state from BookLog events received
// off-process, e.g. a market data feed.
type AggregatedBook struct {
	mu    sync.RWMutex
	seqID atomic.Uint64 // last applied SequenceID, for dedup and gap detection
	ask   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
	bid   *treemap.TreeMap[decimal.Decimal, decimal.Decimal]
}

// NewAggregatedBook creates an AggregatedBook with empty sides.
func NewAggregatedBook() *AggregatedBook {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}
	return &AggregatedBook{
		ask: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
		bid: treemap.NewWithKeyCompare[decimal.Decimal, decimal.Decimal](less),
	}
}

// SequenceID returns the last applied sequence ID.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID.Load()
}

// Rebuild resets the book from a depth snapshot taken at the given sequence
// ID. Call it before replaying events newer than the snapshot.
func (ab *AggregatedBook) Rebuild(depth *Depth, seqID uint64) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.bid.Clear()
	ab.ask.Clear()
	for _, item := range depth.Bids {
		ab.bid.Set(item.Price, item.Size)
	}
	for _, item := range depth.Asks {
		ab.ask.Set(item.Price, item.Size)
	}
	ab.seqID.Store(seqID)
}

// Replay applies one BookLog event. Events at or below the current sequence
// ID are duplicates and are skipped; a jump past the next expected ID returns
// ErrSequenceGap without mutating state. Reject events carry no depth change
// but still advance the sequence ID.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	last := ab.seqID.Load()
	if log.SequenceID <= last {
		return nil
	}
	if log.SequenceID != last+1 {
		return ErrSequenceGap
	}

	change := CalculateDepthChange(log)

	ab.mu.Lock()
	defer ab.mu.Unlock()

	if !change.SizeDiff.IsZero() {
		side := ab.sideMap(change.Side)
		size, _ := side.Get(change.Price)
		size = size.Add(change.SizeDiff)
		switch {
		case size.IsNegative():
			return ErrDepthUnderflow
		case size.IsZero():
			side.Del(change.Price)
		default:
			side.Set(change.Price, size)
		}
	}

	ab.seqID.Store(log.SequenceID)
	return nil
}

// Depth returns the aggregated size resting at one price level, zero when
// the level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) decimal.Decimal {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	size, ok := ab.sideMap(side).Get(price)
	if !ok {
		return decimal.Zero
	}
	return size
}

// Levels returns up to limit price levels for the side in best-to-worst
// order. limit <= 0 means all levels.
func (ab *AggregatedBook) Levels(side Side, limit int) []DepthItem {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	m := ab.sideMap(side)
	if limit <= 0 || limit > m.Len() {
		limit = m.Len()
	}
	result := make([]DepthItem, 0, limit)

	if side == Buy {
		// Bids are best-first from the high end of the map.
		for it := m.Reverse(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, DepthItem{Price: it.Key(), Size: it.Value()})
		}
	} else {
		for it := m.Iterator(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, DepthItem{Price: it.Key(), Size: it.Value()})
		}
	}

	return result
}

func (ab *AggregatedBook) sideMap(side Side) *treemap.TreeMap[decimal.Decimal, decimal.Decimal] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}
