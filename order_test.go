package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderFill(t *testing.T) {
	order := NewOrder("o-1", Buy, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(10))

	require.NoError(t, order.Fill(decimal.NewFromInt(4)))
	assert.Equal(t, "6", order.Remaining.String())
	assert.Equal(t, "4", order.FilledQuantity().String())
	assert.False(t, order.IsFilled())

	require.NoError(t, order.Fill(decimal.NewFromInt(6)))
	assert.True(t, order.IsFilled())
	assert.Equal(t, "10", order.FilledQuantity().String())
}

func TestOrderFillPastRemaining(t *testing.T) {
	order := NewOrder("o-1", Sell, GoodTillCancel, decimal.NewFromInt(100), decimal.NewFromInt(5))

	err := order.Fill(decimal.NewFromInt(6))
	assert.ErrorIs(t, err, ErrInvalidFill)

	// A failed fill must not touch the remaining quantity.
	assert.Equal(t, "5", order.Remaining.String())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}
