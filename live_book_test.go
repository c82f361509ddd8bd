package book

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLiveBook(t *testing.T) *LiveBook {
	t.Helper()

	lb := NewLiveBook("BTC-USD", NewDiscardPublishLog())
	go func() {
		_ = lb.Start()
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lb.Shutdown(ctx)
	})
	return lb
}

func TestLiveBookSubmitAndMatch(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	trades, err := lb.Submit(ctx, NewOrder("sell-1", Sell, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(10)))
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = lb.Submit(ctx, NewOrder("buy-1", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(10)))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	size, err := lb.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestLiveBookSubmitInvalidParam(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	_, err := lb.Submit(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = lb.Submit(ctx, NewOrder("", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(1)))
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestLiveBookCancel(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	_, err := lb.Submit(ctx, NewOrder("buy-1", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(10)))
	require.NoError(t, err)

	require.NoError(t, lb.Cancel(ctx, "buy-1"))
	require.NoError(t, lb.Cancel(ctx, "buy-1"))
	require.NoError(t, lb.Cancel(ctx, ""))

	size, err := lb.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestLiveBookDepth(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	_, err := lb.Submit(ctx, NewOrder("buy-1", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(3)))
	require.NoError(t, err)
	_, err = lb.Submit(ctx, NewOrder("buy-2", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(7)))
	require.NoError(t, err)

	depth, err := lb.Depth(ctx, 10)
	require.NoError(t, err)
	require.Len(t, depth.Bids, 1)
	assert.Equal(t, "10", depth.Bids[0].Size.String())
}

func TestLiveBookConcurrentSubmitters(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("w%d-o%d", w, i)
				side := Buy
				price := decimal.NewFromInt(int64(90 + w))
				if w%2 == 1 {
					side = Sell
					price = decimal.NewFromInt(int64(110 + w))
				}
				_, err := lb.Submit(ctx, NewOrder(id, side, GoodTillCancel, price, decimal.NewFromInt(1)))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	// Sides never cross (bids < 100 < asks), so everything rests.
	size, err := lb.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, size)
}

func TestLiveBookShutdownRejectsNewCommands(t *testing.T) {
	lb := NewLiveBook("BTC-USD", NewDiscardPublishLog())
	go func() {
		_ = lb.Start()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, lb.Shutdown(ctx))

	_, err := lb.Submit(context.Background(), NewOrder("late", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(1)))
	assert.ErrorIs(t, err, ErrShutdown)

	// Shutdown is idempotent.
	require.NoError(t, lb.Shutdown(ctx))
}

func TestLiveBookSnapshotRoundTrip(t *testing.T) {
	lb := startLiveBook(t)
	ctx := context.Background()

	_, err := lb.Submit(ctx, NewOrder("buy-1", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(5)))
	require.NoError(t, err)
	_, err = lb.Submit(ctx, NewOrder("sell-1", Sell, GoodTillCancel, decimal.NewFromInt(110), decimal.NewFromInt(5)))
	require.NoError(t, err)

	snap, err := lb.TakeSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)

	restored := NewLiveBook("BTC-USD", NewDiscardPublishLog())
	restored.Restore(snap)
	go func() {
		_ = restored.Start()
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = restored.Shutdown(sctx)
	}()

	size, err := restored.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	depth, err := restored.Depth(ctx, 0)
	require.NoError(t, err)
	require.Len(t, depth.Bids, 1)
	require.Len(t, depth.Asks, 1)
}

func TestLiveBookContextExpiry(t *testing.T) {
	lb := startLiveBook(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Submission still usually wins the channel send race, but an already
	// canceled context must never hang the caller. The returned error keeps
	// the context cause so callers can tell cancellation from a deadline.
	_, err := lb.Depth(ctx, 0)
	if err != nil {
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestLiveBookDeadlineExceeded(t *testing.T) {
	lb := startLiveBook(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := lb.Depth(ctx, 0)
	if err != nil {
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}
