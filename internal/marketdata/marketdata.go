// Package marketdata
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amirphl/cycle-trader/internal/indicator"
)

// ErrNoData marks a recoverable acquisition failure: the scheduler waits a
// retry interval and tries again next cycle.
var ErrNoData = errors.New("no market data available")

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Snapshot is one symbol's market state at the top of a cycle: the latest
// close plus derived indicator values keyed by name ("ATR_14", "RSI_14",
// "MACD_12_26_9", "BB_UPPER_20", ...).
type Snapshot struct {
	Symbol     string
	Timeframe  string
	Close      float64
	FetchedAt  time.Time
	Closes     []float64
	indicators map[string]float64
}

// Indicator returns the named indicator value. The second return is false
// when the series was too short to compute it.
func (s *Snapshot) Indicator(name string) (float64, bool) {
	v, ok := s.indicators[name]
	return v, ok
}

// ATR returns the latest ATR, or 0 when unavailable. Used to widen
// take-profit distances; 0 degrades to the plain percent target.
func (s *Snapshot) ATR() float64 {
	v, _ := s.indicators[fmt.Sprintf("ATR_%d", ATRPeriod)]
	return v
}

// Source supplies market snapshots for a symbol. Implementations apply a
// bounded timeout so the cycle loop can never block forever.
type Source interface {
	Fetch(ctx context.Context, symbol string, lookback int) (*Snapshot, error)
}

// Standard indicator parameters, matching the names in Snapshot keys.
const (
	ATRPeriod       = 14
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerStdDev = 2.0

	StochasticPeriodK = 14
	StochasticSmoothK = 1
	StochasticPeriodD = 3
)

// NewStaticSnapshot builds a snapshot from precomputed values. Used by
// fixed-price sources and tests.
func NewStaticSnapshot(symbol string, close float64, indicators map[string]float64) *Snapshot {
	ind := make(map[string]float64, len(indicators))
	for k, v := range indicators {
		ind[k] = v
	}
	return &Snapshot{
		Symbol:     symbol,
		Close:      close,
		FetchedAt:  time.Now().UTC(),
		Closes:     []float64{close},
		indicators: ind,
	}
}

// BuildSnapshot derives a Snapshot from a candle series. The series must be
// sorted by timestamp ascending; an empty series returns ErrNoData.
func BuildSnapshot(symbol, timeframe string, candles []Candle) (*Snapshot, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, timeframe)
	}

	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	ind := make(map[string]float64)
	put := func(name string, series []float64) {
		if len(series) == 0 {
			return
		}
		last := series[len(series)-1]
		if !math.IsNaN(last) {
			ind[name] = last
		}
	}

	put(fmt.Sprintf("RSI_%d", RSIPeriod), indicator.CalculateRSI(closes, RSIPeriod))
	put(fmt.Sprintf("ATR_%d", ATRPeriod), indicator.CalculateATR(highs, lows, closes, ATRPeriod))

	macd, signal := indicator.CalculateMACD(closes, MACDFast, MACDSlow, MACDSignal)
	put(fmt.Sprintf("MACD_%d_%d_%d", MACDFast, MACDSlow, MACDSignal), macd)
	put(fmt.Sprintf("MACDS_%d_%d_%d", MACDFast, MACDSlow, MACDSignal), signal)

	mid, upper, lower := indicator.CalculateBollinger(closes, BollingerPeriod, BollingerStdDev)
	put(fmt.Sprintf("BB_MID_%d", BollingerPeriod), mid)
	put(fmt.Sprintf("BB_UPPER_%d", BollingerPeriod), upper)
	put(fmt.Sprintf("BB_LOWER_%d", BollingerPeriod), lower)

	if stoch := indicator.CalculateStochastic(highs, lows, closes, StochasticPeriodK, StochasticSmoothK, StochasticPeriodD); stoch != nil {
		put(fmt.Sprintf("STOCHK_%d", StochasticPeriodK), stoch.K)
		put(fmt.Sprintf("STOCHD_%d", StochasticPeriodK), stoch.D)
	}

	return &Snapshot{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Close:      closes[n-1],
		FetchedAt:  time.Now().UTC(),
		Closes:     closes,
		indicators: ind,
	}, nil
}
