package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/pkg/util"
)

// CSVProvider reads <dir>/<SYMBOL>.csv files with a
// date,open,high,low,close[,volume] header. Dates are YYYY-MM-DD, RFC 3339 or unix seconds.
type CSVProvider struct {
	dir   string
	files map[string]string
}

var _ domrepo.MarketDataProvider = (*CSVProvider)(nil)

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir, files: map[string]string{}}
}

// WithFile maps symbol to an explicit file path.
func (p *CSVProvider) WithFile(symbol, path string) *CSVProvider {
	p.files[strings.ToUpper(symbol)] = path
	return p
}

func (p *CSVProvider) Name() string { return "csv" }

func (p *CSVProvider) DailyBars(_ context.Context, symbol string, n int) (*models.PriceSeries, error) {
	path, ok := p.files[strings.ToUpper(symbol)]
	if !ok {
		path = filepath.Join(p.dir, strings.ToUpper(symbol)+".csv")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrDataUnavailable, path, err)
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	series, err := models.NewPriceSeries(strings.ToUpper(symbol), bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	return series, nil
}

// ReadBars parses bars in file order. Column names are matched case-insensitively.
func ReadBars(r io.Reader) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	volIdx, hasVol := col["volume"]

	var bars []models.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var b models.Bar
		if b.Time, err = parseDate(rec[col["date"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := []struct {
			dst *float64
			idx int
		}{
			{&b.Open, col["open"]},
			{&b.High, col["high"]},
			{&b.Low, col["low"]},
			{&b.Close, col["close"]},
		}
		if hasVol {
			fields = append(fields, struct {
				dst *float64
				idx int
			}{&b.Volume, volIdx})
		}
		for _, fl := range fields {
			if *fl.dst, err = strconv.ParseFloat(strings.TrimSpace(rec[fl.idx]), 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
