package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

// barsClient is the subset of *marketdata.Client the provider calls.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider loads split and dividend adjusted daily bars from the Alpaca data API.
type AlpacaProvider struct {
	client barsClient
	feed   string
	now    func() time.Time
	l      *applogger.Logger
}

var _ domrepo.MarketDataProvider = (*AlpacaProvider)(nil)

type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Feed      string
}

func NewAlpacaProvider(cfg AlpacaConfig, l *applogger.Logger) *AlpacaProvider {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return newAlpacaProvider(client, cfg.Feed, l)
}

func newAlpacaProvider(client barsClient, feed string, l *applogger.Logger) *AlpacaProvider {
	if l == nil {
		l = applogger.Nop()
	}
	return &AlpacaProvider{client: client, feed: feed, now: time.Now, l: l}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

// DailyBars requests a calendar window wide enough to hold n sessions and keeps the last n.
func (p *AlpacaProvider) DailyBars(ctx context.Context, symbol string, n int) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	end := p.now().UTC()
	start := end.AddDate(0, 0, -calendarDays(n))

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Adjustment: marketdata.Adjustment("all"),
	}
	if p.feed != "" {
		req.Feed = marketdata.Feed(p.feed)
	}
	raw, err := p.client.GetBars(symbol, req)
	if err != nil {
		p.l.Error("alpaca get_bars error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: alpaca bars %s: %w", models.ErrDataUnavailable, symbol, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: alpaca returned no bars for %s", models.ErrDataUnavailable, symbol)
	}
	if len(raw) > n {
		raw = raw[len(raw)-n:]
	}

	bars := make([]models.Bar, len(raw))
	for i, b := range raw {
		bars[i] = models.Bar{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		}
	}
	series, err := models.NewPriceSeries(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	p.l.Debug("alpaca bars loaded",
		applogger.String("symbol", symbol),
		applogger.Int("bars", series.Len()),
	)
	return series, nil
}

// calendarDays covers n sessions with room for weekends and holidays.
func calendarDays(n int) int {
	return int(math.Ceil(float64(n)*365/252)) + 10
}
