package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one daily OHLCV sample.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DatedReturn is a simple fractional return observed at the close of Time.
type DatedReturn struct {
	Time  time.Time
	Value float64
}

// PriceSeries is a validated, immutable OHLCV series ordered by time.
type PriceSeries struct {
	symbol string
	bars   []Bar
}

// NewPriceSeries validates bars and returns a series that owns a private copy of them.
// Timestamps must be strictly increasing, closes finite and positive, volumes non-negative.
func NewPriceSeries(symbol string, bars []Bar) (*PriceSeries, error) {
	if symbol == "" {
		return nil, fmt.Errorf("price series: symbol required")
	}
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	for i, b := range cp {
		if !isPositive(b.Close) {
			return nil, fmt.Errorf("price series %s: bar %d: invalid close %v", symbol, i, b.Close)
		}
		if math.IsNaN(b.Volume) || b.Volume < 0 {
			return nil, fmt.Errorf("price series %s: bar %d: invalid volume %v", symbol, i, b.Volume)
		}
		if i > 0 && !b.Time.After(cp[i-1].Time) {
			return nil, fmt.Errorf("price series %s: bar %d: timestamp %s not after %s",
				symbol, i, b.Time.Format(time.RFC3339), cp[i-1].Time.Format(time.RFC3339))
		}
	}
	return &PriceSeries{symbol: symbol, bars: cp}, nil
}

// Symbol returns the instrument identifier.
func (s *PriceSeries) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.bars) }

// Bar returns the i-th bar; negative indexes count from the end.
func (s *PriceSeries) Bar(i int) Bar {
	if i < 0 {
		i += len(s.bars)
	}
	return s.bars[i]
}

// Last returns the most recent bar.
func (s *PriceSeries) Last() Bar { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the bars.
func (s *PriceSeries) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 { return s.column(func(b Bar) float64 { return b.Close }) }

// Highs returns the high column.
func (s *PriceSeries) Highs() []float64 { return s.column(func(b Bar) float64 { return b.High }) }

// Lows returns the low column.
func (s *PriceSeries) Lows() []float64 { return s.column(func(b Bar) float64 { return b.Low }) }

// Volumes returns the volume column.
func (s *PriceSeries) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

// HasVolume reports whether any bar carries traded volume.
func (s *PriceSeries) HasVolume() bool {
	for _, b := range s.bars {
		if b.Volume > 0 {
			return true
		}
	}
	return false
}

// Returns computes simple daily returns r_t = C_t / C_{t-1} - 1 stamped with the later bar's time.
func (s *PriceSeries) Returns() []DatedReturn {
	if len(s.bars) < 2 {
		return nil
	}
	out := make([]DatedReturn, 0, len(s.bars)-1)
	for i := 1; i < len(s.bars); i++ {
		out = append(out, DatedReturn{
			Time:  s.bars[i].Time,
			Value: s.bars[i].Close/s.bars[i-1].Close - 1,
		})
	}
	return out
}

// Tail returns a new series holding at most the last n bars.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= len(s.bars) {
		return s
	}
	return &PriceSeries{symbol: s.symbol, bars: s.bars[len(s.bars)-n:]}
}

func (s *PriceSeries) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}

// ReturnValues strips timestamps from dated returns.
func ReturnValues(rs []DatedReturn) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Value
	}
	return out
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
