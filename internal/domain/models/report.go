package models

import "time"

// Method tags which forecaster produced the primary prediction.
type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodNeural    Method = "neural"
)

// Recommendation is the textual call for one bucket.
type Recommendation struct {
	Action     string  `json:"action"`
	ChangePct  float64 `json:"change_pct"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// PrimaryPrediction is the headline projection of a report.
type PrimaryPrediction struct {
	Method         Method  `json:"method"`
	HorizonDays    int     `json:"horizon_days"`
	PredictedPrice float64 `json:"predicted_price"`
	ChangePct      float64 `json:"change_percent"`
}

// NeuralSummary is attached when the sequence model produced a usable forecast.
type NeuralSummary struct {
	Trend            Direction         `json:"trend"`
	Confidence       float64           `json:"confidence"`
	Forecasts        BucketForecasts   `json:"forecasts"`
	TrainRMSE        float64           `json:"train_rmse"`
	TestRMSE         float64           `json:"test_rmse"`
	DataPoints       int               `json:"data_points"`
	TrainedAt        time.Time         `json:"trained_at"`
	Runtime          string            `json:"runtime"`
	DailyPredictions []float64         `json:"daily_predictions,omitempty"`
	// Omitted maps neural buckets dropped for invalid projections to the reason.
	Omitted          map[Bucket]string `json:"omitted_buckets,omitempty"`
}

// ForecastReport is the transient aggregate returned for one request.
type ForecastReport struct {
	ID                string                    `json:"id"`
	Instrument        string                    `json:"instrument"`
	CurrentPrice      float64                   `json:"current_price"`
	Indicators        IndicatorSet              `json:"indicators"`
	Trend             TrendAssessment           `json:"trend"`
	Risk              RiskProfile               `json:"risk"`
	RiskError         string                    `json:"risk_error,omitempty"`
	ForecastsByBucket BucketForecasts           `json:"forecasts_by_bucket"`
	ConfidenceScores  ConfidenceScores          `json:"confidence_scores"`
	Recommendations   map[Bucket]Recommendation `json:"recommendations"`
	MethodUsed        Method                    `json:"method_used"`
	Primary           PrimaryPrediction         `json:"primary"`
	Neural            *NeuralSummary            `json:"neural,omitempty"`
	NeuralError       string                    `json:"neural_error,omitempty"`
	OmittedBuckets    map[Bucket]string         `json:"omitted_buckets,omitempty"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}
