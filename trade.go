package book

import (
	"github.com/shopspring/decimal"
)

// TradeLeg is one side's view of an execution. Price is the leg order's own
// limit price, so the two legs of a trade may carry different prices when the
// book crosses.
type TradeLeg struct {
	OrderID  string          `json:"order_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Trade records one match between a bid and an ask. Trades are created by the
// match loop, returned to the caller, and never mutated or retained by the
// book afterwards.
type Trade struct {
	TradeID uint64   `json:"trade_id"`
	Bid     TradeLeg `json:"bid"`
	Ask     TradeLeg `json:"ask"`
}
