package indicator

import "math"

// StochasticResult holds the %K and %D lines of the stochastic oscillator,
// aligned with the input series.
type StochasticResult struct {
	K []float64
	D []float64
}

// CalculateStochastic computes the Stochastic Oscillator. Raw %K is
// 100 * (close - lowestLow) / (highestHigh - lowestLow) over periodK bars,
// smoothed by an SMA of smoothK; %D is an SMA of %K over periodD. Leading
// elements without enough history are NaN. Returns nil when the series is
// shorter than periodK or any period is non-positive.
func CalculateStochastic(high, low, close []float64, periodK, smoothK, periodD int) *StochasticResult {
	n := len(close)
	if periodK <= 0 || smoothK <= 0 || periodD <= 0 || n != len(high) || n != len(low) || n < periodK {
		return nil
	}

	raw := make([]float64, n)
	for i := 0; i < periodK-1; i++ {
		raw[i] = math.NaN()
	}
	for i := periodK - 1; i < n; i++ {
		lowest := low[i-periodK+1]
		highest := high[i-periodK+1]
		for j := i - periodK + 2; j <= i; j++ {
			if low[j] < lowest {
				lowest = low[j]
			}
			if high[j] > highest {
				highest = high[j]
			}
		}
		if highest == lowest {
			// No range in the window, sit in the middle.
			raw[i] = 50.0
		} else {
			raw[i] = 100.0 * (close[i] - lowest) / (highest - lowest)
		}
	}

	res := &StochasticResult{
		K: sma(raw, smoothK),
		D: nil,
	}
	res.D = sma(res.K, periodD)
	return res
}

// sma smooths the series with a simple moving average, propagating NaN
// until a full window of valid values exists.
func sma(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if !valid {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}
