package orderbook

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/orbitdex/dexbook/pkg/models"
)

func (s *EngineSuite) TestQuoteMatchesExecution() {
	s.place(s.bob, models.SideSell, "10", "30")
	s.place(s.carol, models.SideSell, "11", "30")

	quote, err := s.engine.Quote(testBookID, models.SideBuy, s.d("50"), false)
	s.Require().NoError(err)
	s.True(s.d("520").Equal(quote.Input)) // 30*10 + 20*11
	s.True(s.d("50").Equal(quote.Output))
	s.Require().Len(quote.Levels, 2)
	s.True(s.d("10").Equal(quote.Levels[0].Price))
	s.True(s.d("30").Equal(quote.Levels[0].Volume))
	s.True(s.d("11").Equal(quote.Levels[1].Price))
	s.True(s.d("20").Equal(quote.Levels[1].Volume))

	// Quoting is read-only.
	s.True(s.d("1000000").Equal(s.ledger.FreeBalance(testQuote.ID, s.alice)))
	ask, ok, err := s.engine.BestAsk(testBookID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(s.d("30").Equal(ask.Volume))

	// Executing the quoted request settles exactly the quoted amounts.
	res, err := s.engine.ExecuteMarketOrder(context.Background(), testBookID, MarketOrder{
		Owner: s.alice, Side: models.SideBuy, Amount: s.d("50"),
	})
	s.Require().NoError(err)
	s.True(quote.Input.Equal(res.Input))
	s.True(quote.Output.Equal(res.Output))
	s.True(quote.AveragePrice.Equal(res.AveragePrice))
}

func (s *EngineSuite) TestQuoteDesiredInputSell() {
	s.place(s.alice, models.SideBuy, "10", "60")

	quote, err := s.engine.Quote(testBookID, models.SideSell, s.d("40"), true)
	s.Require().NoError(err)
	s.True(s.d("40").Equal(quote.Input))
	s.True(s.d("400").Equal(quote.Output))
	s.True(s.d("10").Equal(quote.AveragePrice))
}

func (s *EngineSuite) TestQuoteInsufficientLiquidity() {
	_, err := s.engine.Quote(testBookID, models.SideBuy, s.d("10"), false)
	s.Require().ErrorIs(err, ErrInsufficientLiquidity)

	// A quote never answers partially.
	s.place(s.bob, models.SideSell, "10", "30")
	_, err = s.engine.Quote(testBookID, models.SideBuy, s.d("50"), false)
	s.Require().ErrorIs(err, ErrInsufficientLiquidity)
}

func (s *EngineSuite) TestQuoteValidation() {
	s.place(s.bob, models.SideSell, "10", "30")

	_, err := s.engine.Quote(testBookID, models.SideBuy, decimal.Zero, false)
	s.Require().ErrorIs(err, ErrInvalidOrderAmount)
	_, err = s.engine.Quote(testBookID, models.SideBuy, s.d("1.0005"), false)
	s.Require().ErrorIs(err, ErrInvalidOrderAmount)

	s.Require().NoError(s.registry.ChangeStatus(testBookID, models.StatusPlaceAndCancelOnly))
	_, err = s.engine.Quote(testBookID, models.SideBuy, s.d("10"), false)
	s.Require().ErrorIs(err, ErrExecutionIsNotAllowed)
}

func (s *EngineSuite) TestMarketDepth() {
	s.place(s.alice, models.SideBuy, "9", "10")
	s.place(s.alice, models.SideBuy, "10", "20")
	s.place(s.bob, models.SideSell, "11", "30")
	s.place(s.bob, models.SideSell, "12", "40")
	s.place(s.bob, models.SideSell, "13", "50")

	depth, err := s.engine.MarketDepth(testBookID, 2)
	s.Require().NoError(err)

	// Best first on both sides, truncated to the requested depth.
	s.Require().Len(depth.Bids, 2)
	s.True(s.d("10").Equal(depth.Bids[0].Price))
	s.True(s.d("9").Equal(depth.Bids[1].Price))
	s.Require().Len(depth.Asks, 2)
	s.True(s.d("11").Equal(depth.Asks[0].Price))
	s.True(s.d("12").Equal(depth.Asks[1].Price))

	_, err = s.engine.MarketDepth(models.OrderBookID{Exchange: "DEX", Base: "VAL", Quote: "DAI"}, 2)
	s.Require().ErrorIs(err, ErrUnknownOrderBook)
}
