package confidence

import (
	"math"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/indicators"
)

const (
	consistencyWindow = 20
	consistencySkip   = 5
	neutralVolume     = 50
)

// Components are the raw sub-scores, each 0..100.
type Components struct {
	DataQuality      float64 `json:"data_quality"`
	VolatilityScore  float64 `json:"volatility_score"`
	TrendConsistency float64 `json:"trend_consistency"`
	VolumeScore      float64 `json:"volume_score"`
}

// Estimator scores how much the heuristic projection can be trusted per bucket.
type Estimator struct{}

// NewEstimator creates a confidence estimator.
func NewEstimator() *Estimator { return &Estimator{} }

// Estimate combines the sub-scores with bucket-specific weights.
func (e *Estimator) Estimate(series *models.PriceSeries, set models.IndicatorSet) models.ConfidenceScores {
	return Weigh(e.Components(series, set))
}

// Components computes the sub-scores.
func (e *Estimator) Components(series *models.PriceSeries, set models.IndicatorSet) Components {
	c := Components{
		DataQuality:      math.Min(100, float64(series.Len())/indicators.TradingDays*100),
		TrendConsistency: TrendConsistency(series.Closes()),
		VolumeScore:      neutralVolume,
	}
	if vol, ok := set.Get(models.IndVolatility); ok {
		c.VolatilityScore = math.Max(0, 100-2*vol)
	}
	if ratio, ok := set.Get(models.IndVolumeRatio); ok && series.HasVolume() {
		c.VolumeScore = VolumeScore(ratio)
	}
	return c
}

// Weigh applies the per-bucket weights.
func Weigh(c Components) models.ConfidenceScores {
	return models.ConfidenceScores{
		ShortTerm:  0.2*c.DataQuality + 0.3*c.VolatilityScore + 0.3*c.TrendConsistency + 0.2*c.VolumeScore,
		MediumTerm: 0.3*c.DataQuality + 0.2*c.VolatilityScore + 0.4*c.TrendConsistency + 0.1*c.VolumeScore,
		LongTerm:   0.4*c.DataQuality + 0.1*c.VolatilityScore + 0.5*c.TrendConsistency,
	}
}

// VolumeScore rewards a volume ratio close to its average.
func VolumeScore(ratio float64) float64 {
	switch {
	case ratio >= 0.8 && ratio <= 1.5:
		return 80
	case ratio >= 0.5 && ratio <= 2.0:
		return 60
	default:
		return 30
	}
}

// TrendConsistency is the share of the 15 bars at offsets 5..19 of the last 20
// where close, SMA5 and SMA20 are strictly ordered in the same direction.
// Bars whose averages are not yet defined do not count.
func TrendConsistency(closes []float64) float64 {
	if len(closes) < consistencyWindow {
		return 0
	}
	sma5 := indicators.RollingMean(closes, 5)
	sma20 := indicators.RollingMean(closes, 20)
	start := len(closes) - consistencyWindow
	aligned := 0
	for i := start + consistencySkip; i < len(closes); i++ {
		p, a, b := closes[i], sma5[i], sma20[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		if (p > a && a > b) || (p < a && a < b) {
			aligned++
		}
	}
	return float64(aligned) / float64(consistencyWindow-consistencySkip) * 100
}
