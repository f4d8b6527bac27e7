package trend

import (
	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/indicators"
)

// Signal names, in evaluation order.
const (
	SignalAboveSMA5      = "price_above_sma5"
	SignalAboveSMA20     = "price_above_sma20"
	SignalAboveSMA50     = "price_above_sma50"
	SignalSMA5OverSMA20  = "sma5_above_sma20"
	SignalSMA20OverSMA50 = "sma20_above_sma50"
)

const levelWindow = 20

// Scorer classifies a series by moving-average alignment. It holds no state.
type Scorer struct{}

// NewScorer creates a trend scorer.
func NewScorer() *Scorer { return &Scorer{} }

type rule struct {
	name        string
	left, right string
}

var rules = []rule{
	{SignalAboveSMA5, "", models.IndSMA5},
	{SignalAboveSMA20, "", models.IndSMA20},
	{SignalAboveSMA50, "", models.IndSMA50},
	{SignalSMA5OverSMA20, models.IndSMA5, models.IndSMA20},
	{SignalSMA20OverSMA50, models.IndSMA20, models.IndSMA50},
}

// Score awards one point per satisfied rule. A rule with a missing input is not satisfied.
func (s *Scorer) Score(series *models.PriceSeries, set models.IndicatorSet) models.TrendAssessment {
	closes := series.Closes()
	last := closes[len(closes)-1]

	score := 0
	signals := make([]string, 0, len(rules))
	for _, r := range rules {
		left := last
		if r.left != "" {
			v, ok := set.Get(r.left)
			if !ok {
				continue
			}
			left = v
		}
		right, ok := set.Get(r.right)
		if !ok {
			continue
		}
		if left > right {
			score++
			signals = append(signals, r.name)
		}
	}

	window := levelWindow
	if len(closes) < window {
		window = len(closes)
	}
	return models.TrendAssessment{
		Direction:       DirectionFor(score),
		Strength:        StrengthFor(score),
		Score:           score,
		Signals:         signals,
		Momentum5D:      Momentum(closes, 5),
		Momentum20D:     Momentum(closes, 20),
		SupportLevel:    indicators.RollingMin(closes, window),
		ResistanceLevel: indicators.RollingMax(closes, window),
	}
}

// DirectionFor maps a 0..5 score to a direction.
func DirectionFor(score int) models.Direction {
	switch {
	case score >= 3:
		return models.Bullish
	case score <= 1:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// StrengthFor maps a 0..5 score to a strength.
func StrengthFor(score int) models.Strength {
	switch {
	case score >= 4:
		return models.StrongBullish
	case score == 3:
		return models.ModerateBullish
	case score == 2:
		return models.NeutralStrength
	case score == 1:
		return models.ModerateBearish
	default:
		return models.StrongBearish
	}
}

// Momentum is the percent change of the last close over the close bars earlier,
// or over the first close when the series is shorter.
func Momentum(closes []float64, bars int) float64 {
	if len(closes) < 2 {
		return 0
	}
	ref := len(closes) - 1 - bars
	if ref < 0 {
		ref = 0
	}
	return (closes[len(closes)-1]/closes[ref] - 1) * 100
}
