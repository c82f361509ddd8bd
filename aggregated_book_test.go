package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replayAll feeds every published log into the aggregated book.
func replayAll(t *testing.T, ab *AggregatedBook, publish *MemoryPublishLog) {
	t.Helper()
	for _, log := range publish.Logs() {
		require.NoError(t, ab.Replay(log))
	}
}

// assertDepthEqual compares the aggregated view against the book's own depth.
func assertDepthEqual(t *testing.T, b *Book, ab *AggregatedBook) {
	t.Helper()

	depth := b.Depth(0)
	bids := ab.Levels(Buy, 0)
	asks := ab.Levels(Sell, 0)

	require.Len(t, bids, len(depth.Bids))
	require.Len(t, asks, len(depth.Asks))
	for i, item := range depth.Bids {
		assert.True(t, item.Price.Equal(bids[i].Price), "bid level %d price", i)
		assert.True(t, item.Size.Equal(bids[i].Size), "bid level %d size", i)
	}
	for i, item := range depth.Asks {
		assert.True(t, item.Price.Equal(asks[i].Price), "ask level %d price", i)
		assert.True(t, item.Size.Equal(asks[i].Size), "ask level %d size", i)
	}
}

func TestAggregatedBookReplayMatchesBookDepth(t *testing.T) {
	publish := NewMemoryPublishLog()
	b := NewBook("BTC-USD", publish)

	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10)
	submit(t, b, "buy-2", Buy, GoodTillCancel, 100, 3)
	submit(t, b, "buy-3", Buy, GoodTillCancel, 95, 7)
	submit(t, b, "sell-1", Sell, GoodTillCancel, 110, 4)
	submit(t, b, "sell-2", Sell, GoodTillCancel, 100, 6) // crosses, partial fill
	b.Cancel("buy-3")

	ab := NewAggregatedBook()
	replayAll(t, ab, publish)

	assertDepthEqual(t, b, ab)
	assert.Equal(t, publish.Get(publish.Count()-1).SequenceID, ab.SequenceID())
}

func TestAggregatedBookReplaySkipsDuplicates(t *testing.T) {
	publish := NewMemoryPublishLog()
	b := NewBook("BTC-USD", publish)
	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10)

	ab := NewAggregatedBook()
	log := publish.Get(0)
	require.NoError(t, ab.Replay(log))
	require.NoError(t, ab.Replay(log)) // duplicate, no-op

	assert.Equal(t, "10", ab.Depth(Buy, decimal.NewFromInt(100)).String())
}

func TestAggregatedBookReplayDetectsGap(t *testing.T) {
	publish := NewMemoryPublishLog()
	b := NewBook("BTC-USD", publish)
	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10)
	submit(t, b, "buy-2", Buy, GoodTillCancel, 100, 5)
	submit(t, b, "buy-3", Buy, GoodTillCancel, 100, 2)

	ab := NewAggregatedBook()
	require.NoError(t, ab.Replay(publish.Get(0)))

	// Skipping an event surfaces as a gap, and state stays untouched.
	err := ab.Replay(publish.Get(2))
	require.ErrorIs(t, err, ErrSequenceGap)
	assert.Equal(t, publish.Get(0).SequenceID, ab.SequenceID())
	assert.Equal(t, "10", ab.Depth(Buy, decimal.NewFromInt(100)).String())
}

func TestAggregatedBookRebuildThenReplay(t *testing.T) {
	publish := NewMemoryPublishLog()
	b := NewBook("BTC-USD", publish)

	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10)
	submit(t, b, "sell-1", Sell, GoodTillCancel, 110, 4)

	// Snapshot at the current sequence, then continue mutating.
	snapDepth := b.Depth(0)
	snapSeq := publish.Get(publish.Count() - 1).SequenceID
	before := publish.Count()

	submit(t, b, "sell-2", Sell, GoodTillCancel, 100, 3)
	b.Cancel("sell-1")

	ab := NewAggregatedBook()
	ab.Rebuild(snapDepth, snapSeq)
	for _, log := range publish.Logs()[before:] {
		require.NoError(t, ab.Replay(log))
	}

	assertDepthEqual(t, b, ab)
}

func TestAggregatedBookRejectAdvancesSequenceOnly(t *testing.T) {
	publish := NewMemoryPublishLog()
	b := NewBook("BTC-USD", publish)

	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10)
	submit(t, b, "buy-1", Buy, GoodTillCancel, 100, 10) // duplicate, rejected

	ab := NewAggregatedBook()
	replayAll(t, ab, publish)

	assert.Equal(t, publish.Get(publish.Count()-1).SequenceID, ab.SequenceID())
	assert.Equal(t, "10", ab.Depth(Buy, decimal.NewFromInt(100)).String())
}

func TestAggregatedBookUnderflow(t *testing.T) {
	ab := NewAggregatedBook()
	ab.Rebuild(&Depth{
		Bids: []DepthItem{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
	}, 10)

	err := ab.Replay(&BookLog{
		SequenceID: 11,
		Type:       LogTypeCancel,
		Side:       Buy,
		Price:      decimal.NewFromInt(100),
		Size:       decimal.NewFromInt(5),
	})
	require.ErrorIs(t, err, ErrDepthUnderflow)
}

func TestAggregatedBookLevelsOversizedLimit(t *testing.T) {
	ab := NewAggregatedBook()
	ab.Rebuild(&Depth{
		Bids: []DepthItem{{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)}},
	}, 1)

	levels := ab.Levels(Buy, 50_000_000)
	require.Len(t, levels, 1)
	assert.LessOrEqual(t, cap(levels), 1)
}

func TestAggregatedBookLevelsOrdering(t *testing.T) {
	ab := NewAggregatedBook()
	ab.Rebuild(&Depth{
		Bids: []DepthItem{
			{Price: decimal.NewFromInt(100), Size: decimal.NewFromInt(1)},
			{Price: decimal.NewFromInt(90), Size: decimal.NewFromInt(2)},
			{Price: decimal.NewFromInt(95), Size: decimal.NewFromInt(3)},
		},
		Asks: []DepthItem{
			{Price: decimal.NewFromInt(110), Size: decimal.NewFromInt(1)},
			{Price: decimal.NewFromInt(105), Size: decimal.NewFromInt(2)},
		},
	}, 1)

	bids := ab.Levels(Buy, 2)
	require.Len(t, bids, 2)
	assert.Equal(t, "100", bids[0].Price.String())
	assert.Equal(t, "95", bids[1].Price.String())

	asks := ab.Levels(Sell, 0)
	require.Len(t, asks, 2)
	assert.Equal(t, "105", asks[0].Price.String())
	assert.Equal(t, "110", asks[1].Price.String())
}
