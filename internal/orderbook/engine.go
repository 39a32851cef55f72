package orderbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orbitdex/dexbook/internal/config"
	"github.com/orbitdex/dexbook/internal/ledger"
	"github.com/orbitdex/dexbook/pkg/metrics"
	"github.com/orbitdex/dexbook/pkg/models"
)

// Engine is the order book state machine. All state-mutating calls arrive
// serialized from the host chain; each call is one atomic step. The engine
// plans matching read-only, flushes the payment batch to the ledger, and only
// then applies the infallible in-memory storage mutations, so storage and
// ledger cannot diverge.
type Engine struct {
	registry *Registry
	ledger   ledger.Ledger
	clock    Clock
	limits   config.Limits
	logger   *zap.Logger
}

// NewEngine creates an engine over the given registry, ledger and clock.
func NewEngine(registry *Registry, l ledger.Ledger, clock Clock, limits config.Limits, logger *zap.Logger) *Engine {
	return &Engine{
		registry: registry,
		ledger:   l,
		clock:    clock,
		limits:   limits,
		logger:   logger.Named("engine"),
	}
}

// Registry exposes the registry for lifecycle calls.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// clampLifespan applies the configured lifespan bounds. A zero lifespan means
// "as long as allowed"; negative lifespans are rejected by the caller.
func (e *Engine) clampLifespan(lifespan time.Duration) time.Duration {
	if lifespan == 0 || lifespan > e.limits.MaxLifespan {
		return e.limits.MaxLifespan
	}
	if lifespan < e.limits.MinLifespan {
		return e.limits.MinLifespan
	}
	return lifespan
}

// expiryBlock quantizes an absolute lifespan to block granularity, rounding
// up so an order never expires before its ExpiresAt moment.
func (e *Engine) expiryBlock(currentBlock uint64, lifespan time.Duration) uint64 {
	blocks := uint64((lifespan + e.limits.BlockDuration - 1) / e.limits.BlockDuration)
	if blocks == 0 {
		blocks = 1
	}
	return currentBlock + blocks
}

// PlaceLimitOrder validates and places a limit order. An order whose price
// crosses the spread executes immediately against resting liquidity up to its
// limit price; the unfilled remainder, if any, rests. The assigned order id
// is returned even when the order fills completely at placement.
func (e *Engine) PlaceLimitOrder(ctx context.Context, owner uuid.UUID, bookID models.OrderBookID, side models.Side, price, amount decimal.Decimal, lifespan time.Duration) (*PlacementResult, error) {
	start := time.Now()
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}
	book := st.book

	if !book.Status.AllowsPlacement() {
		return nil, ErrPlaceOrderIsNotAllowed
	}
	if !side.Valid() {
		return nil, ErrInvalidOrderAmount
	}
	if err := book.checkPrice(price); err != nil {
		return nil, err
	}
	if err := book.checkAmount(amount); err != nil {
		return nil, err
	}
	if lifespan < 0 {
		return nil, ErrInvalidLifespan
	}
	lifespan = e.clampLifespan(lifespan)

	now := e.clock.Now()
	block := e.clock.CurrentBlock()
	expiresAtBlock := e.expiryBlock(block, lifespan)

	if err := st.storage.CheckCapacity(owner, side, price, expiresAtBlock); err != nil {
		return nil, err
	}

	// Eager crossing: sweep the opposite side within the limit price before
	// resting the remainder.
	crosses := false
	if side == models.SideBuy {
		if best, ok := st.storage.BestAsk(); ok && price.GreaterThanOrEqual(best.Price) {
			crosses = true
		}
	} else {
		if best, ok := st.storage.BestBid(); ok && price.LessThanOrEqual(best.Price) {
			crosses = true
		}
	}
	if crosses && !book.Status.AllowsExecution() {
		return nil, ErrPlaceOrderIsNotAllowed
	}

	var trades []Trade
	executedBase, executedQuote := decimal.Zero, decimal.Zero
	remaining := amount
	if crosses {
		fills, rest := planSweep(st, side, amount, true, price)
		trades, err = expandFills(st, side, fills)
		if err != nil {
			return nil, err
		}
		executedBase, executedQuote = sumFills(fills)
		remaining = rest
	}

	payment := NewPayment()
	if side == models.SideBuy {
		// The full deal amount is escrowed at the limit price; fills at
		// better prices release the surplus back to the owner.
		payment.Lock(book.Quote.ID, owner, price.Mul(amount))
		for _, t := range trades {
			payment.Transfer(book.Quote.ID, owner, t.Maker, t.QuoteAmount)
			payment.Transfer(book.Base.ID, t.Maker, owner, t.BaseAmount)
		}
		surplus := price.Mul(executedBase).Sub(executedQuote)
		payment.Unlock(book.Quote.ID, owner, surplus)
	} else {
		payment.Lock(book.Base.ID, owner, amount)
		for _, t := range trades {
			payment.Transfer(book.Base.ID, owner, t.Maker, t.BaseAmount)
			payment.Transfer(book.Quote.ID, t.Maker, owner, t.QuoteAmount)
		}
	}

	if err := payment.Flush(e.ledger); err != nil {
		return nil, err
	}

	// Past this point only infallible in-memory mutations remain.
	if err := e.applyTrades(st, trades); err != nil {
		return nil, err
	}

	book.LastOrderID++
	orderID := book.LastOrderID
	if remaining.IsPositive() {
		order := &LimitOrder{
			ID:             orderID,
			Owner:          owner,
			Side:           side,
			Price:          price,
			OriginalAmount: amount,
			Amount:         remaining,
			PlacedAt:       now,
			Lifespan:       lifespan,
			ExpiresAt:      now.Add(lifespan),
			PlacedAtBlock:  block,
			ExpiresAtBlock: expiresAtBlock,
		}
		if err := st.storage.InsertLimitOrder(order); err != nil {
			// Capacity was verified before the flush and matching only
			// removed orders since.
			return nil, fmt.Errorf("%w: insert after settlement: %v", ErrStorageCorrupted, err)
		}
	}

	metrics.OrdersPlaced.WithLabelValues(string(side)).Inc()
	metrics.MatchLatency.Observe(time.Since(start).Seconds())
	metrics.RestingOrders.WithLabelValues(bookID.String()).Set(float64(st.storage.OrderCount()))

	e.logger.Info("limit order placed",
		zap.String("book", bookID.String()),
		zap.Uint64("order_id", orderID),
		zap.String("owner", owner.String()),
		zap.String("side", string(side)),
		zap.String("price", price.String()),
		zap.String("amount", amount.String()),
		zap.String("executed", executedBase.String()),
		zap.String("remaining", remaining.String()),
		zap.Int("trades", len(trades)))

	return &PlacementResult{
		OrderID:   orderID,
		Executed:  executedBase,
		Remaining: remaining,
		Trades:    trades,
	}, nil
}

// CancelLimitOrder removes the caller's resting order and releases its
// escrow. Cancellation is permitted in every book status.
func (e *Engine) CancelLimitOrder(ctx context.Context, owner uuid.UUID, bookID models.OrderBookID, orderID uint64) error {
	st, err := e.registry.state(bookID)
	if err != nil {
		return err
	}
	if !st.book.Status.AllowsCancellation() {
		return ErrInvalidStatus
	}

	order, err := st.storage.GetLimitOrder(orderID)
	if err != nil {
		return err
	}
	if order.Owner != owner {
		return ErrUnauthorized
	}

	payment := NewPayment()
	asset, locked := order.LockedAsset(st.book)
	payment.Unlock(asset, owner, locked)
	if err := payment.Flush(e.ledger); err != nil {
		return err
	}
	if err := st.storage.DeleteLimitOrder(orderID); err != nil {
		return fmt.Errorf("%w: delete after settlement: %v", ErrStorageCorrupted, err)
	}

	metrics.OrdersCancelled.WithLabelValues(string(order.Side)).Inc()
	metrics.RestingOrders.WithLabelValues(bookID.String()).Set(float64(st.storage.OrderCount()))

	e.logger.Info("limit order cancelled",
		zap.String("book", bookID.String()),
		zap.Uint64("order_id", orderID),
		zap.String("owner", owner.String()),
		zap.String("unlocked", locked.String()))
	return nil
}

// CancelAllUserOrders removes every resting order of owner in the book with a
// single settlement flush.
func (e *Engine) CancelAllUserOrders(ctx context.Context, owner uuid.UUID, bookID models.OrderBookID) (int, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return 0, err
	}
	if !st.book.Status.AllowsCancellation() {
		return 0, ErrInvalidStatus
	}

	ids := st.storage.UserLimitOrders(owner)
	if len(ids) == 0 {
		return 0, nil
	}

	payment := NewPayment()
	orders := make([]*LimitOrder, 0, len(ids))
	for _, id := range ids {
		order, err := st.storage.GetLimitOrder(id)
		if err != nil {
			return 0, fmt.Errorf("%w: user index lists order %d: %v", ErrStorageCorrupted, id, err)
		}
		asset, locked := order.LockedAsset(st.book)
		payment.Unlock(asset, owner, locked)
		orders = append(orders, order)
	}
	if err := payment.Flush(e.ledger); err != nil {
		return 0, err
	}
	for _, order := range orders {
		if err := st.storage.DeleteLimitOrder(order.ID); err != nil {
			return 0, fmt.Errorf("%w: delete after settlement: %v", ErrStorageCorrupted, err)
		}
		metrics.OrdersCancelled.WithLabelValues(string(order.Side)).Inc()
	}
	metrics.RestingOrders.WithLabelValues(bookID.String()).Set(float64(st.storage.OrderCount()))

	e.logger.Info("user orders cancelled",
		zap.String("book", bookID.String()),
		zap.String("owner", owner.String()),
		zap.Int("count", len(ids)))
	return len(ids), nil
}

// ExecuteMarketOrder sweeps the opposite side best price first, filling
// resting orders in price-time priority, and settles everything in one
// payment flush.
func (e *Engine) ExecuteMarketOrder(ctx context.Context, bookID models.OrderBookID, mo MarketOrder) (*MarketOrderResult, error) {
	start := time.Now()
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}
	book := st.book

	if !book.Status.AllowsExecution() {
		return nil, ErrExecutionIsNotAllowed
	}
	if !mo.Side.Valid() || !mo.Amount.IsPositive() {
		return nil, ErrInvalidOrderAmount
	}

	targetIsBase := (mo.Side == models.SideBuy) != mo.AmountIsInput
	if targetIsBase {
		if !mo.Amount.Mod(book.StepLotSize).IsZero() {
			return nil, ErrInvalidOrderAmount
		}
	} else if !book.Quote.Precision.IsAligned(mo.Amount) {
		return nil, ErrInvalidOrderAmount
	}

	fills, remaining := planSweep(st, mo.Side, mo.Amount, targetIsBase, decimal.Zero)
	if len(fills) == 0 {
		return nil, ErrInsufficientLiquidity
	}
	if remaining.IsPositive() && !mo.AllowPartial {
		return nil, ErrInsufficientLiquidity
	}

	trades, err := expandFills(st, mo.Side, fills)
	if err != nil {
		return nil, err
	}
	baseTotal, quoteTotal := sumFills(fills)

	payment := NewPayment()
	if mo.Side == models.SideBuy {
		payment.Lock(book.Quote.ID, mo.Owner, quoteTotal)
		for _, t := range trades {
			payment.Transfer(book.Quote.ID, mo.Owner, t.Maker, t.QuoteAmount)
			payment.Transfer(book.Base.ID, t.Maker, mo.Owner, t.BaseAmount)
		}
	} else {
		payment.Lock(book.Base.ID, mo.Owner, baseTotal)
		for _, t := range trades {
			payment.Transfer(book.Base.ID, mo.Owner, t.Maker, t.BaseAmount)
			payment.Transfer(book.Quote.ID, t.Maker, mo.Owner, t.QuoteAmount)
		}
	}
	if err := payment.Flush(e.ledger); err != nil {
		return nil, err
	}
	if err := e.applyTrades(st, trades); err != nil {
		return nil, err
	}

	result := &MarketOrderResult{Trades: trades}
	if mo.Side == models.SideBuy {
		result.Input, result.Output = quoteTotal, baseTotal
	} else {
		result.Input, result.Output = baseTotal, quoteTotal
	}
	if baseTotal.IsPositive() {
		result.AveragePrice = quoteTotal.Div(baseTotal)
	}

	metrics.MatchLatency.Observe(time.Since(start).Seconds())
	metrics.RestingOrders.WithLabelValues(bookID.String()).Set(float64(st.storage.OrderCount()))

	e.logger.Info("market order executed",
		zap.String("book", bookID.String()),
		zap.String("owner", mo.Owner.String()),
		zap.String("side", string(mo.Side)),
		zap.String("input", result.Input.String()),
		zap.String("output", result.Output.String()),
		zap.Int("trades", len(trades)))
	return result, nil
}

// applyTrades decrements or removes the maker orders of a settled matching
// pass.
func (e *Engine) applyTrades(st *bookState, trades []Trade) error {
	for _, t := range trades {
		order, err := st.storage.GetLimitOrder(t.MakerOrderID)
		if err != nil {
			return fmt.Errorf("%w: settled maker %d missing: %v", ErrStorageCorrupted, t.MakerOrderID, err)
		}
		if err := st.storage.UpdateLimitOrderAmount(t.MakerOrderID, order.Amount.Sub(t.BaseAmount)); err != nil {
			return fmt.Errorf("%w: settled maker %d: %v", ErrStorageCorrupted, t.MakerOrderID, err)
		}
		metrics.TradesExecuted.Inc()
	}
	return nil
}

// OnBlock drains the expiration schedule for block across every book:
// matured orders are removed and their escrow released, batched into one
// payment flush per book. The host must call this before matching any of the
// block's incoming orders so expired orders never act as counterparties.
// One book's anomaly is logged and does not starve the others.
func (e *Engine) OnBlock(block uint64) {
	for _, st := range e.registry.allStates() {
		ids := st.storage.TakeExpiringOrders(block)
		if len(ids) == 0 {
			continue
		}

		payment := NewPayment()
		orders := make([]*LimitOrder, 0, len(ids))
		for _, id := range ids {
			order, err := st.storage.GetLimitOrder(id)
			if err != nil {
				e.logger.Error("expiration schedule lists unknown order",
					zap.String("book", st.book.ID.String()),
					zap.Uint64("order_id", id),
					zap.Uint64("block", block))
				continue
			}
			asset, locked := order.LockedAsset(st.book)
			payment.Unlock(asset, order.Owner, locked)
			orders = append(orders, order)
		}
		if err := payment.Flush(e.ledger); err != nil {
			e.logger.Error("expiration settlement failed, orders left resting",
				zap.String("book", st.book.ID.String()),
				zap.Uint64("block", block),
				zap.Error(err))
			continue
		}
		for _, order := range orders {
			if err := st.storage.DeleteLimitOrder(order.ID); err != nil {
				e.logger.Error("failed to remove expired order",
					zap.String("book", st.book.ID.String()),
					zap.Uint64("order_id", order.ID),
					zap.Error(err))
				continue
			}
			metrics.OrdersExpired.Inc()
		}
		metrics.RestingOrders.WithLabelValues(st.book.ID.String()).Set(float64(st.storage.OrderCount()))

		e.logger.Info("expired orders removed",
			zap.String("book", st.book.ID.String()),
			zap.Uint64("block", block),
			zap.Int("count", len(orders)))
	}
}

// IsKnownOrder reports whether orderID rests in the book.
func (e *Engine) IsKnownOrder(bookID models.OrderBookID, orderID uint64) bool {
	st, err := e.registry.state(bookID)
	if err != nil {
		return false
	}
	_, err = st.storage.GetLimitOrder(orderID)
	return err == nil
}

// GetLimitOrder returns a copy of a resting order.
func (e *Engine) GetLimitOrder(bookID models.OrderBookID, orderID uint64) (LimitOrder, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return LimitOrder{}, err
	}
	order, err := st.storage.GetLimitOrder(orderID)
	if err != nil {
		return LimitOrder{}, err
	}
	return *order, nil
}

// IsCapacityError reports whether err is one of the bounded-collection
// errors. Used by hosts that map capacity failures to a distinct outcome.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrPriceReachedMaxOrdersNumber) ||
		errors.Is(err, ErrUserReachedMaxOrdersNumber) ||
		errors.Is(err, ErrBlockReachedMaxExpiringOrders) ||
		errors.Is(err, ErrSideReachedMaxPriceLevels)
}
