package book

import (
	"github.com/shopspring/decimal"
)

// DepthChange is the aggregate-size delta a single book event applies to one
// price level.
type DepthChange struct {
	Side     Side
	Price    decimal.Decimal
	SizeDiff decimal.Decimal
}

// CalculateDepthChange maps a BookLog to the depth mutation it implies.
// Match logs are per leg, so each one reduces liquidity on its own side at
// its own price. Reject logs never touched the book and yield a zero change.
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size,
		}
	case LogTypeMatch, LogTypeCancel:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size.Neg(),
		}
	case LogTypeReject:
		return DepthChange{}
	}

	return DepthChange{}
}
