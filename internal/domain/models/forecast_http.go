package models

// Requests for forecast HTTP endpoints. Kept in the domain for reuse by the Kafka handler.

type ForecastRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Bars    int    `query:"bars" json:"bars" default:"500" validate:"gte=20,lte=5000"`
	Neural  bool   `query:"neural" json:"neural" default:"true"`
	Refresh bool   `query:"refresh" json:"refresh"`
}

type IndicatorsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Bars   int    `query:"bars" json:"bars" default:"250" validate:"gte=20,lte=5000"`
}

type RiskRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,max=32"`
	Bars      int    `query:"bars" json:"bars" default:"252" validate:"gte=11,lte=5000"`
	Benchmark string `query:"benchmark" json:"benchmark" validate:"max=32"`
}
