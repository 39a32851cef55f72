// Package orderbook implements the order book core: per-pair registry,
// arena-owned limit order storage with derived price-level, aggregation and
// expiration indices, a price-time priority matching engine and batched
// atomic settlement against the external ledger.
package orderbook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orbitdex/dexbook/pkg/models"
)

// Clock provides the chain time the engine runs on.
type Clock interface {
	Now() time.Time
	CurrentBlock() uint64
}

// OrderBook is the per-pair aggregate: trading constraints, status and the
// order id counter. LastOrderID is mutated only through the engine's
// placement path.
type OrderBook struct {
	ID          models.OrderBookID `json:"id"`
	Base        models.Asset       `json:"base"`
	Quote       models.Asset       `json:"quote"`
	TickSize    decimal.Decimal    `json:"tick_size"`
	StepLotSize decimal.Decimal    `json:"step_lot_size"`
	MinLotSize  decimal.Decimal    `json:"min_lot_size"`
	MaxLotSize  decimal.Decimal    `json:"max_lot_size"`
	Status      models.BookStatus  `json:"status"`
	LastOrderID uint64             `json:"last_order_id"`
}

// Validate enforces the attribute invariants: positive tick aligned to the
// quote precision, positive lot sizes aligned to the base precision, min<=max
// and min/max multiples of step.
func (b *OrderBook) Validate() error {
	if !b.TickSize.IsPositive() || !b.Quote.Precision.IsAligned(b.TickSize) {
		return ErrInvalidTickSize
	}
	if !b.StepLotSize.IsPositive() || !b.Base.Precision.IsAligned(b.StepLotSize) {
		return ErrInvalidLotSize
	}
	if !b.MinLotSize.IsPositive() || !b.MaxLotSize.IsPositive() {
		return ErrInvalidLotSize
	}
	if b.MinLotSize.GreaterThan(b.MaxLotSize) {
		return ErrInvalidLotSize
	}
	if !b.MinLotSize.Mod(b.StepLotSize).IsZero() || !b.MaxLotSize.Mod(b.StepLotSize).IsZero() {
		return ErrInvalidLotSize
	}
	return nil
}

// checkPrice reports whether price is a valid limit price for this book.
func (b *OrderBook) checkPrice(price decimal.Decimal) error {
	if !price.IsPositive() || !price.Mod(b.TickSize).IsZero() {
		return ErrInvalidPrice
	}
	return nil
}

// checkAmount reports whether amount is a valid order volume for this book.
func (b *OrderBook) checkAmount(amount decimal.Decimal) error {
	if amount.LessThan(b.MinLotSize) || amount.GreaterThan(b.MaxLotSize) {
		return ErrInvalidOrderAmount
	}
	if !amount.Mod(b.StepLotSize).IsZero() {
		return ErrInvalidOrderAmount
	}
	if !b.Base.Precision.IsAligned(amount) {
		return ErrInvalidOrderAmount
	}
	return nil
}

// LimitOrder is one open order. The storage arena's order map is the single
// owner of this value; every other index refers to it by id.
type LimitOrder struct {
	ID             uint64          `json:"id"`
	Owner          uuid.UUID       `json:"owner"`
	Side           models.Side     `json:"side"`
	Price          decimal.Decimal `json:"price"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Amount         decimal.Decimal `json:"amount"`
	PlacedAt       time.Time       `json:"placed_at"`
	Lifespan       time.Duration   `json:"lifespan"`
	ExpiresAt      time.Time       `json:"expires_at"`
	PlacedAtBlock  uint64          `json:"placed_at_block"`
	ExpiresAtBlock uint64          `json:"expires_at_block"`
}

// LockedAsset returns the asset and amount this order keeps escrowed for its
// remaining volume: price*amount of quote for a buy, amount of base for a
// sell.
func (o *LimitOrder) LockedAsset(book *OrderBook) (models.AssetID, decimal.Decimal) {
	if o.Side == models.SideBuy {
		return book.Quote.ID, o.Price.Mul(o.Amount)
	}
	return book.Base.ID, o.Amount
}

// Trade is one maker fill produced by a matching pass, reported back to the
// host for event emission.
type Trade struct {
	MakerOrderID uint64          `json:"maker_order_id"`
	Maker        uuid.UUID       `json:"maker"`
	Price        decimal.Decimal `json:"price"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	QuoteAmount  decimal.Decimal `json:"quote_amount"`
}

// PriceVolume is one rung of an aggregated side: total resting volume at a
// price.
type PriceVolume struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// PlacementResult reports what happened to a placed limit order.
type PlacementResult struct {
	OrderID   uint64          `json:"order_id"`
	Executed  decimal.Decimal `json:"executed"`  // base volume filled at placement
	Remaining decimal.Decimal `json:"remaining"` // base volume resting; zero when fully filled
	Trades    []Trade         `json:"trades"`
}

// MarketOrder is a request to execute immediately against resting liquidity.
type MarketOrder struct {
	Owner  uuid.UUID       `json:"owner"`
	Side   models.Side     `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	// AmountIsInput selects the desired-input variant (Amount is what the
	// taker spends) over the desired-output variant (Amount is what the
	// taker wants to receive).
	AmountIsInput bool `json:"amount_is_input"`
	// AllowPartial accepts a partial fill instead of failing with
	// ErrInsufficientLiquidity when the book cannot satisfy Amount.
	AllowPartial bool `json:"allow_partial"`
}

// MarketOrderResult reports the settled amounts of a market order.
type MarketOrderResult struct {
	Input        decimal.Decimal `json:"input"`  // what the taker spent
	Output       decimal.Decimal `json:"output"` // what the taker received
	AveragePrice decimal.Decimal `json:"average_price"`
	Trades       []Trade         `json:"trades"`
}

// QuoteResult is the read-only counterpart of MarketOrderResult: the exact
// fill sequence an execution would produce on the current book state.
type QuoteResult struct {
	Input        decimal.Decimal `json:"input"`
	Output       decimal.Decimal `json:"output"`
	AveragePrice decimal.Decimal `json:"average_price"`
	// Levels is the consumed depth, best price first.
	Levels []PriceVolume `json:"levels"`
}
