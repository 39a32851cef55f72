package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/orbitdex/dexbook/pkg/models"
)

// Quote computes the cost or proceeds of a market order without touching
// anything: it runs the same planning sweep execution uses, over the
// aggregated side only, so the quoted fill sequence is exactly what an
// execution on the same book state would settle. Liquidity routers use this
// to compare the venue against others before committing a trade.
func (e *Engine) Quote(bookID models.OrderBookID, side models.Side, amount decimal.Decimal, amountIsInput bool) (*QuoteResult, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}
	book := st.book

	if !book.Status.AllowsExecution() {
		return nil, ErrExecutionIsNotAllowed
	}
	if !side.Valid() || !amount.IsPositive() {
		return nil, ErrInvalidOrderAmount
	}

	targetIsBase := (side == models.SideBuy) != amountIsInput
	if targetIsBase {
		if !amount.Mod(book.StepLotSize).IsZero() {
			return nil, ErrInvalidOrderAmount
		}
	} else if !book.Quote.Precision.IsAligned(amount) {
		return nil, ErrInvalidOrderAmount
	}

	fills, remaining := planSweep(st, side, amount, targetIsBase, decimal.Zero)
	if len(fills) == 0 || remaining.IsPositive() {
		return nil, ErrInsufficientLiquidity
	}

	baseTotal, quoteTotal := sumFills(fills)
	result := &QuoteResult{Levels: make([]PriceVolume, 0, len(fills))}
	for _, f := range fills {
		result.Levels = append(result.Levels, PriceVolume{Price: f.price, Volume: f.base})
	}
	if side == models.SideBuy {
		result.Input, result.Output = quoteTotal, baseTotal
	} else {
		result.Input, result.Output = baseTotal, quoteTotal
	}
	if baseTotal.IsPositive() {
		result.AveragePrice = quoteTotal.Div(baseTotal)
	}
	return result, nil
}

// DepthSnapshot is the top of the aggregated book: bids best first
// (descending price), asks best first (ascending price).
type DepthSnapshot struct {
	Bids []PriceVolume `json:"bids"`
	Asks []PriceVolume `json:"asks"`
}

// MarketDepth returns up to limit aggregated price levels per side.
func (e *Engine) MarketDepth(bookID models.OrderBookID, limit int) (*DepthSnapshot, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}

	bids := st.storage.AggregatedBids()
	asks := st.storage.AggregatedAsks()

	// Bids come back ascending; best bid first means reversing.
	snapshot := &DepthSnapshot{
		Bids: make([]PriceVolume, 0, limit),
		Asks: make([]PriceVolume, 0, limit),
	}
	for i := len(bids) - 1; i >= 0 && len(snapshot.Bids) < limit; i-- {
		snapshot.Bids = append(snapshot.Bids, bids[i])
	}
	for i := 0; i < len(asks) && len(snapshot.Asks) < limit; i++ {
		snapshot.Asks = append(snapshot.Asks, asks[i])
	}
	return snapshot, nil
}

// BestBid returns the highest resting bid.
func (e *Engine) BestBid(bookID models.OrderBookID) (PriceVolume, bool, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return PriceVolume{}, false, err
	}
	pv, ok := st.storage.BestBid()
	return pv, ok, nil
}

// BestAsk returns the lowest resting ask.
func (e *Engine) BestAsk(bookID models.OrderBookID) (PriceVolume, bool, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return PriceVolume{}, false, err
	}
	pv, ok := st.storage.BestAsk()
	return pv, ok, nil
}

// AggregatedBids returns the full bid-side price->volume view, ascending.
func (e *Engine) AggregatedBids(bookID models.OrderBookID) ([]PriceVolume, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}
	return st.storage.AggregatedBids(), nil
}

// AggregatedAsks returns the full ask-side price->volume view, ascending.
func (e *Engine) AggregatedAsks(bookID models.OrderBookID) ([]PriceVolume, error) {
	st, err := e.registry.state(bookID)
	if err != nil {
		return nil, err
	}
	return st.storage.AggregatedAsks(), nil
}
