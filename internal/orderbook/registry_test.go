package orderbook

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/orbitdex/dexbook/pkg/models"
)

var (
	testBookID = models.OrderBookID{Exchange: "DEX", Base: "XOR", Quote: "DAI"}
	testBase   = models.Asset{ID: "XOR", Precision: models.DivisibleWithScale(8)}
	testQuote  = models.Asset{ID: "DAI", Precision: models.DivisibleWithScale(8)}
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(testLimits(), zaptest.NewLogger(t))
}

func createTestBook(t *testing.T, r *Registry) {
	t.Helper()
	err := r.CreateOrderBook(testBookID, testBase, testQuote,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
		decimal.NewFromInt(1000000))
	require.NoError(t, err)
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)
	createTestBook(t, r)

	book, err := r.GetOrderBook(testBookID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTrading, book.Status)
	assert.Equal(t, uint64(0), book.LastOrderID)
	assert.Equal(t, testBase.ID, book.Base.ID)

	err = r.CreateOrderBook(testBookID, testBase, testQuote,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
		decimal.NewFromInt(1000000))
	require.ErrorIs(t, err, ErrOrderBookAlreadyExists)

	_, err = r.GetOrderBook(models.OrderBookID{Exchange: "DEX", Base: "VAL", Quote: "DAI"})
	require.ErrorIs(t, err, ErrUnknownOrderBook)
}

func TestRegistryCreateRejectsBadAttributes(t *testing.T) {
	r := newTestRegistry(t)

	// min above max
	err := r.CreateOrderBook(testBookID, testBase, testQuote,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.001"),
		decimal.NewFromInt(10),
		decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInvalidLotSize)

	// zero tick
	err = r.CreateOrderBook(testBookID, testBase, testQuote,
		decimal.Zero,
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
		decimal.NewFromInt(1000000))
	require.ErrorIs(t, err, ErrInvalidTickSize)

	// nothing registered after the failures
	assert.Empty(t, r.ListOrderBooks())
}

func TestRegistryUpdate(t *testing.T) {
	r := newTestRegistry(t)
	createTestBook(t, r)

	err := r.UpdateOrderBook(testBookID,
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(500000))
	require.NoError(t, err)

	book, err := r.GetOrderBook(testBookID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(book.TickSize))
	assert.True(t, decimal.NewFromInt(500000).Equal(book.MaxLotSize))

	// A failed update leaves the book untouched.
	err = r.UpdateOrderBook(testBookID,
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(10),
		decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInvalidLotSize)
	book, _ = r.GetOrderBook(testBookID)
	assert.True(t, decimal.NewFromInt(500000).Equal(book.MaxLotSize))

	err = r.UpdateOrderBook(models.OrderBookID{Exchange: "DEX", Base: "VAL", Quote: "DAI"},
		decimal.RequireFromString("0.05"),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(500000))
	require.ErrorIs(t, err, ErrUnknownOrderBook)
}

func TestRegistryChangeStatus(t *testing.T) {
	r := newTestRegistry(t)
	createTestBook(t, r)

	require.NoError(t, r.ChangeStatus(testBookID, models.StatusStop))
	book, _ := r.GetOrderBook(testBookID)
	assert.Equal(t, models.StatusStop, book.Status)

	// Any transition between valid statuses is allowed.
	require.NoError(t, r.ChangeStatus(testBookID, models.StatusTrading))

	require.ErrorIs(t, r.ChangeStatus(testBookID, models.BookStatus("HALTED")), ErrInvalidStatus)
	require.ErrorIs(t, r.ChangeStatus(models.OrderBookID{Exchange: "DEX", Base: "VAL", Quote: "DAI"}, models.StatusStop), ErrUnknownOrderBook)
}

func TestRegistryDelete(t *testing.T) {
	r := newTestRegistry(t)
	createTestBook(t, r)

	st, err := r.state(testBookID)
	require.NoError(t, err)
	order := newTestOrder(models.SideBuy, 10, 100)
	require.NoError(t, st.storage.InsertLimitOrder(order))

	require.ErrorIs(t, r.DeleteOrderBook(testBookID), ErrOrderBookIsNotEmpty)

	require.NoError(t, st.storage.DeleteLimitOrder(order.ID))
	require.NoError(t, r.DeleteOrderBook(testBookID))
	_, err = r.GetOrderBook(testBookID)
	require.ErrorIs(t, err, ErrUnknownOrderBook)

	require.ErrorIs(t, r.DeleteOrderBook(testBookID), ErrUnknownOrderBook)
}

func TestRegistryList(t *testing.T) {
	r := newTestRegistry(t)
	createTestBook(t, r)
	other := models.OrderBookID{Exchange: "DEX", Base: "VAL", Quote: "DAI"}
	err := r.CreateOrderBook(other,
		models.Asset{ID: "VAL", Precision: models.DivisibleWithScale(8)}, testQuote,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.001"),
		decimal.NewFromInt(1000000))
	require.NoError(t, err)

	ids := r.ListOrderBooks()
	require.Len(t, ids, 2)
	assert.Equal(t, "DEX:VAL/DAI", ids[0].String())
	assert.Equal(t, "DEX:XOR/DAI", ids[1].String())
}
