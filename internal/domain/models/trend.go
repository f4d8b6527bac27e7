package models

// Direction is the coarse trend classification shared by both forecasters.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Strength is the five-level trend classification.
type Strength string

const (
	StrongBullish   Strength = "strong_bullish"
	ModerateBullish Strength = "moderate_bullish"
	NeutralStrength Strength = "neutral"
	ModerateBearish Strength = "moderate_bearish"
	StrongBearish   Strength = "strong_bearish"
)

// TrendAssessment is derived fresh for every request.
type TrendAssessment struct {
	Direction       Direction `json:"direction"`
	Strength        Strength  `json:"strength"`
	Score           int       `json:"score"`
	Signals         []string  `json:"signals"`
	Momentum5D      float64   `json:"momentum_5d"`
	Momentum20D     float64   `json:"momentum_20d"`
	SupportLevel    float64   `json:"support_level"`
	ResistanceLevel float64   `json:"resistance_level"`
}
