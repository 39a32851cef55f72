package orderbook

import "errors"

// Validation errors: caller mistakes detected before any state change.
var (
	ErrOrderBookAlreadyExists = errors.New("order book already exists")
	ErrUnknownOrderBook       = errors.New("unknown order book")
	ErrUnknownLimitOrder      = errors.New("unknown limit order")
	ErrInvalidTickSize        = errors.New("invalid tick size")
	ErrInvalidLotSize         = errors.New("invalid lot size")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidOrderAmount     = errors.New("invalid order amount")
	ErrInvalidLifespan        = errors.New("invalid order lifespan")
	ErrInvalidStatus          = errors.New("invalid order book status")
	ErrUnauthorized           = errors.New("order does not belong to caller")
	ErrPlaceOrderIsNotAllowed = errors.New("order book status does not allow placing orders")
	ErrExecutionIsNotAllowed  = errors.New("order book status does not allow trading")
)

// Capacity errors: bounded-collection exhaustion, no state change.
var (
	ErrPriceReachedMaxOrdersNumber   = errors.New("price level reached the maximum number of orders")
	ErrUserReachedMaxOrdersNumber    = errors.New("user reached the maximum number of open orders")
	ErrBlockReachedMaxExpiringOrders = errors.New("block reached the maximum number of expiring orders")
	ErrSideReachedMaxPriceLevels     = errors.New("side reached the maximum number of price levels")
	ErrOrderBookIsNotEmpty           = errors.New("order book still has resting orders")
)

// Liquidity errors.
var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity to satisfy market order")
)

// Internal errors: a broken invariant, never expected on a healthy book.
var (
	ErrStorageCorrupted = errors.New("order book storage invariant violated")
)
