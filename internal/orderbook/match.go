package orderbook

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/orbitdex/dexbook/pkg/models"
)

// levelFill is one consumed rung of the opposite side: base volume taken at
// one price and the exact quote countervalue.
type levelFill struct {
	price decimal.Decimal
	base  decimal.Decimal
	quote decimal.Decimal
}

// planSweep walks the side a taker on takerSide matches against, best price
// first, and computes the per-level consumption needed to satisfy target.
// The walk is read-only; quoting and execution share it, which is what makes
// their fill sequences identical by construction.
//
// When targetIsBase, target is base volume (buy desired-output, sell
// desired-input); otherwise target is quote volume (buy desired-input, sell
// desired-output). Base taken from a level is always a multiple of step, so
// partial consumption never splits below the book's lot granularity.
//
// limitPrice bounds the walk for crossing limit orders: a buyer does not
// consume above it, a seller not below it. Pass zero for no bound.
//
// Returns the fills and the unsatisfied remainder of target.
func planSweep(st *bookState, takerSide models.Side, target decimal.Decimal, targetIsBase bool, limitPrice decimal.Decimal) ([]levelFill, decimal.Decimal) {
	step := st.book.StepLotSize
	remaining := target
	var fills []levelFill

	st.storage.scanMatchSide(takerSide, func(lvl *priceLevel) bool {
		if remaining.IsZero() {
			return false
		}
		if !limitPrice.IsZero() {
			if takerSide == models.SideBuy && lvl.price.GreaterThan(limitPrice) {
				return false
			}
			if takerSide == models.SideSell && lvl.price.LessThan(limitPrice) {
				return false
			}
		}

		var base decimal.Decimal
		if targetIsBase {
			base = decimal.Min(remaining, lvl.volume)
			remaining = remaining.Sub(base)
		} else {
			levelQuote := lvl.volume.Mul(lvl.price)
			if levelQuote.LessThanOrEqual(remaining) {
				base = lvl.volume
				remaining = remaining.Sub(levelQuote)
			} else if takerSide == models.SideBuy {
				// Spend as much of the remaining quote budget as whole
				// steps allow; never charge beyond the budget.
				base = affordableSteps(remaining, lvl.price, step)
				remaining = remaining.Sub(base.Mul(lvl.price))
				if base.IsZero() {
					return false
				}
				// Deeper levels are worse priced, the leftover budget
				// cannot afford a step there either.
				fills = append(fills, levelFill{price: lvl.price, base: base, quote: base.Mul(lvl.price)})
				return false
			} else {
				// Deliver at least the remaining desired quote, rounded
				// up to whole steps of base input.
				base = coveringSteps(remaining, lvl.price, step)
				remaining = decimal.Zero
			}
		}

		if base.IsPositive() {
			fills = append(fills, levelFill{price: lvl.price, base: base, quote: base.Mul(lvl.price)})
		}
		return !remaining.IsZero()
	})

	return fills, remaining
}

// affordableSteps returns the largest multiple of step whose cost at price
// does not exceed budget. Division rounding is guarded by re-deriving the
// cost from the candidate, so the result never overdraws the budget.
func affordableSteps(budget, price, step decimal.Decimal) decimal.Decimal {
	steps := budget.Div(price.Mul(step)).Floor()
	base := steps.Mul(step)
	for base.IsPositive() && base.Mul(price).GreaterThan(budget) {
		base = base.Sub(step)
	}
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// coveringSteps returns the smallest multiple of step whose value at price
// covers the wanted quote amount.
func coveringSteps(wanted, price, step decimal.Decimal) decimal.Decimal {
	steps := wanted.Div(price.Mul(step)).Ceil()
	base := steps.Mul(step)
	for base.Mul(price).LessThan(wanted) {
		base = base.Add(step)
	}
	return base
}

// expandFills resolves level fills into per-order maker trades, walking each
// level's FIFO queue so earlier orders always fill first.
func expandFills(st *bookState, takerSide models.Side, fills []levelFill) ([]Trade, error) {
	var trades []Trade
	for _, fill := range fills {
		lvl, ok := st.storage.level(takerSide.Opposite(), fill.price)
		if !ok {
			return nil, fmt.Errorf("%w: missing price level %s during expansion", ErrStorageCorrupted, fill.price)
		}
		remaining := fill.base
		for _, orderID := range lvl.orderIDs {
			if remaining.IsZero() {
				break
			}
			order, err := st.storage.GetLimitOrder(orderID)
			if err != nil {
				return nil, fmt.Errorf("%w: order %d listed at level %s", ErrStorageCorrupted, orderID, fill.price)
			}
			base := decimal.Min(remaining, order.Amount)
			trades = append(trades, Trade{
				MakerOrderID: orderID,
				Maker:        order.Owner,
				Price:        fill.price,
				BaseAmount:   base,
				QuoteAmount:  base.Mul(fill.price),
			})
			remaining = remaining.Sub(base)
		}
		if !remaining.IsZero() {
			return nil, fmt.Errorf("%w: level %s volume under its aggregate by %s", ErrStorageCorrupted, fill.price, remaining)
		}
	}
	return trades, nil
}

// sumFills totals the base and quote volumes of a fill plan.
func sumFills(fills []levelFill) (base, quote decimal.Decimal) {
	base, quote = decimal.Zero, decimal.Zero
	for _, f := range fills {
		base = base.Add(f.base)
		quote = quote.Add(f.quote)
	}
	return base, quote
}
