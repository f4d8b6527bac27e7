package models

import (
	"math"
	"sort"
)

// Bucket groups horizons into short, medium and long term.
type Bucket string

const (
	ShortTerm  Bucket = "short_term"
	MediumTerm Bucket = "medium_term"
	LongTerm   Bucket = "long_term"
)

// Buckets lists buckets from nearest to furthest.
var Buckets = []Bucket{ShortTerm, MediumTerm, LongTerm}

// HeuristicHorizons are the canonical heuristic horizons in days, grouped by bucket.
var HeuristicHorizons = map[Bucket][]int{
	ShortTerm:  {1, 3, 7},
	MediumTerm: {14, 30, 60},
	LongTerm:   {90, 180},
}

// NeuralHorizons are the horizons reported by the sequence model, grouped by bucket.
var NeuralHorizons = map[Bucket][]int{
	ShortTerm:  {1, 3, 7},
	MediumTerm: {14, 30},
	LongTerm:   {60, 90},
}

// RepresentativeHorizon is the horizon used to summarize a bucket.
var RepresentativeHorizon = map[Bucket]int{
	ShortTerm:  7,
	MediumTerm: 30,
	LongTerm:   90,
}

// ConfidenceInterval bounds a predicted price.
type ConfidenceInterval struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	UncertaintyPct float64 `json:"uncertainty_pct"`
}

// HorizonForecast is a price projection for one horizon.
type HorizonForecast struct {
	HorizonDays        int                 `json:"horizon_days"`
	PredictedPrice     float64             `json:"predicted_price"`
	ChangePct          float64             `json:"change_pct"`
	ChangeAmount       float64             `json:"change_amount"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
}

// Valid reports whether the predicted price is finite and strictly positive.
func (f HorizonForecast) Valid() bool {
	if !isPositive(f.PredictedPrice) || math.IsNaN(f.ChangePct) || math.IsInf(f.ChangePct, 0) {
		return false
	}
	if ci := f.ConfidenceInterval; ci != nil {
		return isPositive(ci.Lower) && isPositive(ci.Upper)
	}
	return true
}

// NewHorizonForecast derives change figures from the current and predicted price.
func NewHorizonForecast(days int, current, predicted float64) HorizonForecast {
	return HorizonForecast{
		HorizonDays:    days,
		PredictedPrice: predicted,
		ChangeAmount:   predicted - current,
		ChangePct:      (predicted/current - 1) * 100,
	}
}

// BucketForecasts maps bucket to horizon days to forecast.
type BucketForecasts map[Bucket]map[int]HorizonForecast

// Horizons returns the horizons available in a bucket in ascending order.
func (b BucketForecasts) Horizons(bucket Bucket) []int {
	hs := make([]int, 0, len(b[bucket]))
	for h := range b[bucket] {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

// Lookup finds the forecast in bucket whose horizon is nearest to days.
// Ties resolve to the shorter horizon.
func (b BucketForecasts) Lookup(bucket Bucket, days int) (HorizonForecast, bool) {
	h, ok := NearestHorizon(b.Horizons(bucket), days)
	if !ok {
		return HorizonForecast{}, false
	}
	return b[bucket][h], true
}

// NearestHorizon picks the element of sorted horizons closest to days.
func NearestHorizon(horizons []int, days int) (int, bool) {
	if len(horizons) == 0 {
		return 0, false
	}
	best := horizons[0]
	for _, h := range horizons[1:] {
		if abs(h-days) < abs(best-days) {
			best = h
		}
	}
	return best, true
}

// ConfidenceScores holds one 0..100 score per bucket.
type ConfidenceScores struct {
	ShortTerm  float64 `json:"short_term"`
	MediumTerm float64 `json:"medium_term"`
	LongTerm   float64 `json:"long_term"`
}

// For returns the score of a bucket.
func (c ConfidenceScores) For(b Bucket) float64 {
	switch b {
	case ShortTerm:
		return c.ShortTerm
	case MediumTerm:
		return c.MediumTerm
	default:
		return c.LongTerm
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
