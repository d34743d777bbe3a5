package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/cycle-trader/internal/logger"
	"github.com/amirphl/cycle-trader/internal/position"
)

func openBuy(t *testing.T, book *position.Book, symbol string, price, amountUSD float64) *position.Position {
	t.Helper()
	p, err := book.Open(position.OpenRequest{
		Symbol: symbol, Side: position.Buy, Price: price, AmountUSD: amountUSD,
		StopLossPct: 0.02, TakeProfitPct: 0.03,
	})
	require.NoError(t, err)
	return p
}

func TestStopLossPrecedesTakeProfit(t *testing.T) {
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	// Buy at 100: SL=98, TP=105 (TP at 105 via ATR=4 extension).
	p, err := book.Open(position.OpenRequest{
		Symbol: "BTCUSDT", Side: position.Buy, Price: 100, AmountUSD: 100,
		StopLossPct: 0.02, TakeProfitPct: 0.03, ATR: 4,
	})
	require.NoError(t, err)
	require.InDelta(t, 98, p.StopLoss, 1e-9)
	require.InDelta(t, 105, p.TakeProfit, 1e-9)

	// Price series [99, 97, 106]: the 97 tick must close with stop_loss and
	// the 106 tick must find nothing left to close.
	res := ctl.Evaluate(book, "BTCUSDT", 99, 10000)
	assert.Empty(t, res.Closed)

	res = ctl.Evaluate(book, "BTCUSDT", 97, 10000)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, position.CloseStopLoss, res.Closed[0].CloseReason)

	res = ctl.Evaluate(book, "BTCUSDT", 106, 10000)
	assert.Empty(t, res.Closed)
}

func TestTakeProfitTriggers(t *testing.T) {
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	openBuy(t, book, "BTCUSDT", 100, 100) // TP=103

	res := ctl.Evaluate(book, "BTCUSDT", 103, 10000)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, position.CloseTakeProfit, res.Closed[0].CloseReason)
	assert.InDelta(t, 3, res.Closed[0].RealizedProfit, 1e-9)
}

func TestSellSideTriggersMirror(t *testing.T) {
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	// Sell at 100: SL=102, TP=97.
	_, err := book.Open(position.OpenRequest{
		Symbol: "BTCUSDT", Side: position.Sell, Price: 100, AmountUSD: 100,
		StopLossPct: 0.02, TakeProfitPct: 0.03,
	})
	require.NoError(t, err)

	res := ctl.Evaluate(book, "BTCUSDT", 102.5, 10000)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, position.CloseStopLoss, res.Closed[0].CloseReason)

	_, err = book.Open(position.OpenRequest{
		Symbol: "BTCUSDT", Side: position.Sell, Price: 100, AmountUSD: 100,
		StopLossPct: 0.02, TakeProfitPct: 0.03,
	})
	require.NoError(t, err)
	res = ctl.Evaluate(book, "BTCUSDT", 96, 10000)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, position.CloseTakeProfit, res.Closed[0].CloseReason)
}

func TestOnlyActiveSymbolEvaluated(t *testing.T) {
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	openBuy(t, book, "BTCUSDT", 100, 100)
	other := openBuy(t, book, "ETHUSDT", 100, 100)

	// 50 would stop out both, but only the active symbol is checked.
	res := ctl.Evaluate(book, "BTCUSDT", 50, 10000)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, "BTCUSDT", res.Closed[0].Symbol)
	assert.True(t, book.HasOpenForSymbol("ETHUSDT"))
	assert.True(t, other.IsOpen())
}

func TestDrawdownBreaker(t *testing.T) {
	// Closes bring the balance just past the 5% limit.
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	p, err := book.Open(position.OpenRequest{
		Symbol: "BTCUSDT", Side: position.Buy, Price: 100, AmountUSD: 1000,
		StopLossPct: 0.02, TakeProfitPct: 0.03,
	})
	require.NoError(t, err)
	// 10 units; closing at 49.999 realizes -500.01, balance 9499.99.
	_, err = book.Close(p.ID, 49.999, position.CloseManual)
	require.NoError(t, err)
	require.InDelta(t, 9499.99, book.Balance(), 1e-6)

	res := ctl.Evaluate(book, "BTCUSDT", 100, 10000)
	assert.True(t, res.DrawdownBreached)
	assert.Greater(t, res.Drawdown, 0.05)
}

func TestDrawdownUsesBalanceAfterCloses(t *testing.T) {
	book := position.NewBook(10000, nil)
	ctl := NewController(0.05, logger.NewNop())

	// 10 units bought at 100; a drop to 40 stops out with a 600 USD loss,
	// breaching 5% in the same evaluation that closed the position.
	_, err := book.Open(position.OpenRequest{
		Symbol: "BTCUSDT", Side: position.Buy, Price: 100, AmountUSD: 1000,
		StopLossPct: 0.02, TakeProfitPct: 0.03,
	})
	require.NoError(t, err)

	res := ctl.Evaluate(book, "BTCUSDT", 40, 10000)
	require.Len(t, res.Closed, 1)
	assert.True(t, res.DrawdownBreached)
	assert.InDelta(t, 600.0/10000, res.Drawdown, 1e-9)
}

func TestZeroInitialBalanceSkipsDrawdown(t *testing.T) {
	book := position.NewBook(0, nil)
	ctl := NewController(0.05, logger.NewNop())

	res := ctl.Evaluate(book, "BTCUSDT", 100, 0)
	assert.False(t, res.DrawdownBreached)
	assert.Zero(t, res.Drawdown)
}
