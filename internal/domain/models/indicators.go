package models

// Indicator keys produced by the indicator engine.
const (
	IndSMA5          = "sma_5"
	IndSMA20         = "sma_20"
	IndSMA50         = "sma_50"
	IndSMA200        = "sma_200"
	IndEMA12         = "ema_12"
	IndEMA26         = "ema_26"
	IndMACD          = "macd"
	IndMACDSignal    = "macd_signal"
	IndMACDHistogram = "macd_histogram"
	IndRSI           = "rsi"
	IndBBUpper       = "bb_upper"
	IndBBMiddle      = "bb_middle"
	IndBBLower       = "bb_lower"
	IndBBPosition    = "bb_position"
	IndStochK        = "stoch_k"
	IndStochD        = "stoch_d"
	IndWilliamsR     = "williams_r"
	IndATR           = "atr"
	IndVolumeSMA     = "volume_sma"
	IndVolumeRatio   = "volume_ratio"
	IndOBV           = "obv"
	IndOBVTrend      = "obv_trend"
	IndVolatility    = "volatility"
)

// IndicatorSet maps indicator names to their value at the last bar.
// Indicators that could not be computed are absent.
type IndicatorSet map[string]float64

// Get returns the value and whether it is present.
func (s IndicatorSet) Get(key string) (float64, bool) {
	v, ok := s[key]
	return v, ok
}

// Has reports whether all keys are present.
func (s IndicatorSet) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}
