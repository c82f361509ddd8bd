package book

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
)

type commandType int

const (
	cmdSubmit commandType = iota
	cmdCancel
	cmdModify
	cmdDepth
	cmdSize
	cmdSnapshot
)

// command is the unified message sent to the book loop. A single channel
// keeps command ordering deterministic.
type command struct {
	kind       commandType
	order      *Order
	orderID    string
	depthLimit int
	resp       chan any
}

type submitResult struct {
	trades []Trade
	err    error
}

// LiveBook runs a Book behind a single-writer command loop so multiple
// goroutines can use it concurrently. Every operation is forwarded to the
// loop and answered synchronously; the Book itself is never touched from
// more than one goroutine.
type LiveBook struct {
	book             *Book
	isShutdown       atomic.Bool
	cmdChan          chan command
	done             chan struct{}
	shutdownComplete chan struct{}
}

// NewLiveBook wraps a fresh Book for the instrument. Call Start on its own
// goroutine before submitting.
func NewLiveBook(instrument string, publish PublishLog) *LiveBook {
	return &LiveBook{
		book:             NewBook(instrument, publish),
		cmdChan:          make(chan command, 32768),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the book loop until Shutdown is called, then drains pending
// commands and returns nil.
func (lb *LiveBook) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-lb.done:
			return lb.drain()
		case cmd := <-lb.cmdChan:
			lb.handle(cmd)
		}
	}
}

// Shutdown stops the loop and blocks until pending commands are drained or
// the context expires.
func (lb *LiveBook) Shutdown(ctx context.Context) error {
	if lb.isShutdown.CompareAndSwap(false, true) {
		close(lb.done)
	}

	select {
	case <-lb.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit forwards the order to the book loop and returns the resulting
// trades. Returns ErrShutdown when the book is shutting down.
func (lb *LiveBook) Submit(ctx context.Context, order *Order) ([]Trade, error) {
	if order == nil || order.ID == "" {
		return nil, ErrInvalidParam
	}
	res, err := lb.roundTrip(ctx, command{kind: cmdSubmit, order: order})
	if err != nil {
		return nil, err
	}
	result, _ := res.(submitResult)
	return result.trades, result.err
}

// Cancel requests removal of the order; unknown IDs are a silent no-op.
func (lb *LiveBook) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := lb.roundTrip(ctx, command{kind: cmdCancel, orderID: id})
	return err
}

// Modify cancels the resident order with the same ID and submits the new one
// fresh; the order loses its time priority.
func (lb *LiveBook) Modify(ctx context.Context, order *Order) ([]Trade, error) {
	if order == nil || order.ID == "" {
		return nil, ErrInvalidParam
	}
	res, err := lb.roundTrip(ctx, command{kind: cmdModify, order: order})
	if err != nil {
		return nil, err
	}
	result, _ := res.(submitResult)
	return result.trades, result.err
}

// Depth returns the current depth up to limit levels per side.
func (lb *LiveBook) Depth(ctx context.Context, limit int) (*Depth, error) {
	res, err := lb.roundTrip(ctx, command{kind: cmdDepth, depthLimit: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := res.(*Depth)
	return depth, nil
}

// Size returns the count of live resting orders.
func (lb *LiveBook) Size(ctx context.Context) (int, error) {
	res, err := lb.roundTrip(ctx, command{kind: cmdSize})
	if err != nil {
		return 0, err
	}
	size, _ := res.(int)
	return size, nil
}

// TakeSnapshot captures the book state through the loop, so it is consistent
// with respect to in-flight commands.
func (lb *LiveBook) TakeSnapshot(ctx context.Context) (*Snapshot, error) {
	res, err := lb.roundTrip(ctx, command{kind: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := res.(*Snapshot)
	return snap, nil
}

// Restore rebuilds the book from a snapshot. Must be called before Start.
func (lb *LiveBook) Restore(snap *Snapshot) {
	lb.book.Restore(snap)
}

// roundTrip enqueues the command and waits for its response. The response
// channel is buffered so the loop never blocks on a caller that gave up.
func (lb *LiveBook) roundTrip(ctx context.Context, cmd command) (any, error) {
	if lb.isShutdown.Load() {
		return nil, ErrShutdown
	}

	cmd.resp = make(chan any, 1)

	select {
	case lb.cmdChan <- cmd:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}

	select {
	case res := <-cmd.resp:
		return res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

func (lb *LiveBook) handle(cmd command) {
	var res any

	switch cmd.kind {
	case cmdSubmit:
		trades, err := lb.book.Submit(cmd.order)
		res = submitResult{trades: trades, err: err}
	case cmdModify:
		trades, err := lb.book.Modify(cmd.order)
		res = submitResult{trades: trades, err: err}
	case cmdCancel:
		lb.book.Cancel(cmd.orderID)
	case cmdDepth:
		res = lb.book.Depth(cmd.depthLimit)
	case cmdSize:
		res = lb.book.Size()
	case cmdSnapshot:
		res = lb.book.createSnapshot()
	}

	if cmd.resp != nil {
		select {
		case cmd.resp <- res:
		default:
		}
	}
}

// drain answers every queued command before completing shutdown, so no
// caller is left waiting.
func (lb *LiveBook) drain() error {
	defer close(lb.shutdownComplete)

	for {
		select {
		case cmd := <-lb.cmdChan:
			lb.handle(cmd)
		default:
			return nil
		}
	}
}
