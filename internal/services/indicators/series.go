package indicators

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the mean of the last n values, or NaN when fewer than n are available.
func Mean(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return math.NaN()
	}
	return stat.Mean(values[len(values)-n:], nil)
}

// StdDev returns the sample standard deviation of the last n values.
func StdDev(values []float64, n int) float64 {
	if n <= 1 || len(values) < n {
		return math.NaN()
	}
	return stat.StdDev(values[len(values)-n:], nil)
}

// RollingMean returns the n-window moving average; the first n-1 entries are NaN.
// A window containing NaN is NaN.
func RollingMean(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < n-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(values[i-n+1:i+1], nil)
	}
	return out
}

// EMASeries is the adjusted exponentially weighted mean with span n,
// weight 2/(n+1) on the newest observation.
func EMASeries(values []float64, span int) []float64 {
	alpha := 2 / (float64(span) + 1)
	decay := 1 - alpha
	out := make([]float64, len(values))
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// RollingMin returns the minimum of the last n values.
func RollingMin(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return math.NaN()
	}
	m := math.Inf(1)
	for _, v := range values[len(values)-n:] {
		m = math.Min(m, v)
	}
	return m
}

// RollingMax returns the maximum of the last n values.
func RollingMax(values []float64, n int) float64 {
	if n <= 0 || len(values) < n {
		return math.NaN()
	}
	m := math.Inf(-1)
	for _, v := range values[len(values)-n:] {
		m = math.Max(m, v)
	}
	return m
}

// SimpleReturns computes c[i]/c[i-1]-1.
func SimpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// Percentile returns the p-th percentile with linear interpolation between
// closest ranks, the same definition numpy uses by default.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	h := (float64(len(sorted)) - 1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Annualize scales a daily standard deviation to an annual percentage.
func Annualize(dailyStd float64) float64 {
	return dailyStd * math.Sqrt(TradingDays) * 100
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
