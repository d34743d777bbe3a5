package indicator

import "math"

// CalculateEMA computes an exponential moving average. The first period-1
// elements are NaN; the seed is the simple average of the first period
// values.
func CalculateEMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	ema := make([]float64, len(values))
	for i := 0; i < period-1; i++ {
		ema[i] = math.NaN()
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema[period-1] = sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema[i] = values[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// CalculateMACD computes the MACD line (fast EMA - slow EMA) and its signal
// line. Standard parameters are 12, 26, 9.
func CalculateMACD(prices []float64, fast, slow, signal int) (macd, signalLine []float64) {
	if fast <= 0 || slow <= fast || len(prices) < slow+signal {
		return nil, nil
	}
	fastEMA := CalculateEMA(prices, fast)
	slowEMA := CalculateEMA(prices, slow)

	macd = make([]float64, len(prices))
	for i := range prices {
		if math.IsNaN(fastEMA[i]) || math.IsNaN(slowEMA[i]) {
			macd[i] = math.NaN()
			continue
		}
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line is an EMA over the valid part of the MACD line.
	valid := macd[slow-1:]
	sig := CalculateEMA(valid, signal)
	signalLine = make([]float64, len(prices))
	for i := 0; i < slow-1; i++ {
		signalLine[i] = math.NaN()
	}
	copy(signalLine[slow-1:], sig)
	return macd, signalLine
}
