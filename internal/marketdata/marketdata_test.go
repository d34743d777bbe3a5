package marketdata

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesCandles(n int) []Candle {
	out := make([]Candle, n)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			price -= 0.5
		} else {
			price += 1.0
		}
		out[i] = Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}

func TestBuildSnapshot(t *testing.T) {
	candles := seriesCandles(60)
	snap, err := BuildSnapshot("BTCUSDT", "1h", candles)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.InDelta(t, candles[59].Close, snap.Close, 1e-9)
	assert.Len(t, snap.Closes, 60)

	for _, name := range []string{
		fmt.Sprintf("RSI_%d", RSIPeriod),
		fmt.Sprintf("ATR_%d", ATRPeriod),
		fmt.Sprintf("MACD_%d_%d_%d", MACDFast, MACDSlow, MACDSignal),
		fmt.Sprintf("BB_UPPER_%d", BollingerPeriod),
		fmt.Sprintf("STOCHK_%d", StochasticPeriodK),
		fmt.Sprintf("STOCHD_%d", StochasticPeriodK),
	} {
		v, ok := snap.Indicator(name)
		assert.True(t, ok, "expected indicator %s", name)
		assert.False(t, v != v, "indicator %s is NaN", name)
	}

	assert.Greater(t, snap.ATR(), 0.0)
}

func TestBuildSnapshotShortSeries(t *testing.T) {
	// Too short for any indicator, but the close is still usable.
	snap, err := BuildSnapshot("BTCUSDT", "1h", seriesCandles(3))
	require.NoError(t, err)
	assert.Greater(t, snap.Close, 0.0)
	_, ok := snap.Indicator("RSI_14")
	assert.False(t, ok)
	assert.Zero(t, snap.ATR())
}

func TestBuildSnapshotEmpty(t *testing.T) {
	_, err := BuildSnapshot("BTCUSDT", "1h", nil)
	require.ErrorIs(t, err, ErrNoData)
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizeSymbol("btc/usdt"))
	assert.Equal(t, "BTCUSDT", normalizeSymbol("BTC-USDT"))
	assert.Equal(t, "5", normalizeTimeframe("5m"))
	assert.Equal(t, "60", normalizeTimeframe("1h"))
	assert.Equal(t, "D", normalizeTimeframe("1d"))
}
