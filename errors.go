package book

import "errors"

var (
	// ErrInvalidFill reports an attempt to fill an order past its remaining
	// quantity. The match loop never produces such a fill; seeing this error
	// means book state is corrupt and the operation must be aborted.
	ErrInvalidFill = errors.New("fill exceeds the order's remaining quantity")

	ErrInvalidParam     = errors.New("the param is invalid")
	ErrTimeout          = errors.New("timeout")
	ErrShutdown         = errors.New("order book is shutting down")
	ErrBookClosed       = errors.New("order book is closed")
	ErrSequenceGap      = errors.New("book log sequence gap detected")
	ErrDepthUnderflow   = errors.New("replay drove a price level size below zero")
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)
