package indicator

import "math"

// CalculateBollinger computes Bollinger Bands: a simple moving average with
// upper/lower bands at stdDevs standard deviations. The first period-1
// elements of each slice are NaN.
func CalculateBollinger(prices []float64, period int, stdDevs float64) (middle, upper, lower []float64) {
	if period <= 0 || len(prices) < period {
		return nil, nil, nil
	}
	n := len(prices)
	middle = make([]float64, n)
	upper = make([]float64, n)
	lower = make([]float64, n)
	for i := 0; i < period-1; i++ {
		middle[i], upper[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
	}

	for i := period - 1; i < n; i++ {
		window := prices[i-period+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDevs*sd
		lower[i] = mean - stdDevs*sd
	}
	return middle, upper, lower
}
