package models

// RiskLevel is ordinal: LOW < MEDIUM < HIGH < VERY_HIGH.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// Rank returns the ordinal position of the level, or -1 if unknown.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskVeryHigh:
		return 3
	default:
		return -1
	}
}

// RiskProfile summarizes the return distribution of an instrument.
type RiskProfile struct {
	RiskLevel      RiskLevel `json:"risk_level"`
	VolatilityPct  float64   `json:"volatility_pct"`
	VaR95Pct       float64   `json:"var_95_pct"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	Beta           float64   `json:"beta"`
}
