package indicator

import "math"

// CalculateATR computes the Average True Range with Wilder smoothing.
// The returned slice is aligned with the inputs; the first period elements
// are NaN. Returns nil when the series is shorter than period+1.
func CalculateATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	if period <= 0 || n != len(high) || n != len(low) || n < period+1 {
		return nil
	}

	// True range needs the previous close, so it starts at index 1.
	tr := make([]float64, n)
	tr[0] = math.NaN()
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	atr := make([]float64, n)
	for i := 0; i < period; i++ {
		atr[i] = math.NaN()
	}

	// Seed with the simple average of the first period true ranges.
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr[period] = sum / float64(period)

	for i := period + 1; i < n; i++ {
		atr[i] = (atr[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return atr
}

// LastATR returns the most recent ATR value, or 0 when the series is too
// short to compute one.
func LastATR(high, low, close []float64, period int) float64 {
	atr := CalculateATR(high, low, close, period)
	if len(atr) == 0 {
		return 0
	}
	last := atr[len(atr)-1]
	if math.IsNaN(last) {
		return 0
	}
	return last
}
