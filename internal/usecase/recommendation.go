package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"PriceCast/internal/domain/models"
)

// Recommendation actions.
const (
	ActionStrongBuy  = "Strong Buy"
	ActionBuy        = "Buy"
	ActionHold       = "Hold"
	ActionSell       = "Sell"
	ActionStrongSell = "Strong Sell"
)

// Thresholds are the absolute percent changes for a moderate and a strong call.
type Thresholds struct {
	Moderate float64
	Strong   float64
}

// BucketThresholds scale with the horizon of the bucket.
var BucketThresholds = map[models.Bucket]Thresholds{
	models.ShortTerm:  {Moderate: 2, Strong: 5},
	models.MediumTerm: {Moderate: 5, Strong: 10},
	models.LongTerm:   {Moderate: 10, Strong: 20},
}

// Action maps an expected change and its confidence to a call.
// Below minConfidence the call is always Hold.
func Action(changePct, confidence, minConfidence float64, t Thresholds) string {
	if confidence < minConfidence {
		return ActionHold
	}
	switch {
	case changePct >= t.Strong:
		return ActionStrongBuy
	case changePct >= t.Moderate:
		return ActionBuy
	case changePct <= -t.Strong:
		return ActionStrongSell
	case changePct <= -t.Moderate:
		return ActionSell
	default:
		return ActionHold
	}
}

// recommend derives one call per reported bucket from its representative horizon.
// The medium-term call follows the primary prediction when the neural forecast was promoted.
func (o *ForecastOrchestrator) recommend(r *models.ForecastReport) map[models.Bucket]models.Recommendation {
	out := make(map[models.Bucket]models.Recommendation, len(r.ForecastsByBucket))
	for _, b := range models.Buckets {
		fc, ok := r.ForecastsByBucket.Lookup(b, models.RepresentativeHorizon[b])
		if !ok {
			continue
		}
		change, days := fc.ChangePct, fc.HorizonDays
		if b == models.MediumTerm && r.MethodUsed == models.MethodNeural {
			change, days = r.Primary.ChangePct, r.Primary.HorizonDays
		}
		conf := r.ConfidenceScores.For(b)
		action := Action(change, conf, o.minConfidence.For(b), BucketThresholds[b])
		out[b] = models.Recommendation{
			Action:     action,
			ChangePct:  change,
			Confidence: conf,
			Rationale:  rationale(action, change, conf, o.minConfidence.For(b), days),
		}
	}
	return out
}

func rationale(action string, change, conf, minConf float64, days int) string {
	pct := decimal.NewFromFloat(change).Round(2)
	c := decimal.NewFromFloat(conf).Round(1)
	if conf < minConf {
		return fmt.Sprintf("%s: confidence %s%% is below the %s%% required; expected change %s%% over %d days",
			action, c.StringFixed(1), decimal.NewFromFloat(minConf).StringFixed(0), pct.StringFixed(2), days)
	}
	return fmt.Sprintf("%s: expected change %s%% over %d days at %s%% confidence",
		action, pct.StringFixed(2), days, c.StringFixed(1))
}
