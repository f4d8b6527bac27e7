package neural

import (
	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/indicators"
)

const (
	// DefaultLookBack is the window length fed to the sequence model.
	DefaultLookBack = 60
	// DefaultMinPoints is the fewest closes left after outlier filtering.
	DefaultMinPoints = 200

	trainFraction = 0.8
	iqrFactor     = 1.5
)

// Scaler maps prices linearly onto [0, 1].
type Scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FitScaler records the range of values.
func FitScaler(values []float64) Scaler {
	return Scaler{Min: indicators.RollingMin(values, len(values)), Max: indicators.RollingMax(values, len(values))}
}

// Transform scales v; a flat range maps everything to 0.
func (s Scaler) Transform(v float64) float64 {
	if s.Max == s.Min {
		return 0
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// Inverse maps a scaled value back to price.
func (s Scaler) Inverse(v float64) float64 {
	return s.Min + v*(s.Max-s.Min)
}

// Dataset holds supervised windows cut from a normalized close series.
type Dataset struct {
	TrainX     [][]float64
	TrainY     []float64
	TestX      [][]float64
	TestY      []float64
	Normalized []float64
	Prices     []float64
	Scaler     Scaler
	LookBack   int
}

// FilterOutliers drops values outside [Q1 - 1.5 IQR, Q3 + 1.5 IQR], keeping order.
func FilterOutliers(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	q1 := indicators.Percentile(values, 25)
	q3 := indicators.Percentile(values, 75)
	iqr := q3 - q1
	lo, hi := q1-iqrFactor*iqr, q3+iqrFactor*iqr
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

// Windows turns data into (x, y) pairs where x is the lookBack values before y.
func Windows(data []float64, lookBack int) ([][]float64, []float64) {
	if lookBack <= 0 || len(data) <= lookBack {
		return nil, nil
	}
	xs := make([][]float64, 0, len(data)-lookBack)
	ys := make([]float64, 0, len(data)-lookBack)
	for i := lookBack; i < len(data); i++ {
		xs = append(xs, data[i-lookBack:i])
		ys = append(ys, data[i])
	}
	return xs, ys
}

// Prepare filters, normalizes and splits the closes of series in time order.
// The test windows start lookBack values before the split so the first test
// target is the first value after the training range.
func Prepare(series *models.PriceSeries, lookBack, minPoints int) (*Dataset, error) {
	if lookBack <= 0 {
		lookBack = DefaultLookBack
	}
	if minPoints <= 0 {
		minPoints = DefaultMinPoints
	}
	prices := FilterOutliers(series.Closes())
	if len(prices) < minPoints {
		return nil, models.ModelUnavailablef("%d valid points after outlier filtering, need %d", len(prices), minPoints)
	}

	scaler := FitScaler(prices)
	normalized := make([]float64, len(prices))
	for i, p := range prices {
		normalized[i] = scaler.Transform(p)
	}

	trainSize := int(float64(len(normalized)) * trainFraction)
	if trainSize <= lookBack {
		return nil, models.ModelUnavailablef("training range of %d points does not cover a %d look-back", trainSize, lookBack)
	}
	trainX, trainY := Windows(normalized[:trainSize], lookBack)
	testX, testY := Windows(normalized[trainSize-lookBack:], lookBack)

	return &Dataset{
		TrainX:     trainX,
		TrainY:     trainY,
		TestX:      testX,
		TestY:      testY,
		Normalized: normalized,
		Prices:     prices,
		Scaler:     scaler,
		LookBack:   lookBack,
	}, nil
}
