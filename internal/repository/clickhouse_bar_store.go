package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const insertChunk = 2000

// CHBarStore serves daily bars from a ClickHouse table.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.MarketDataProvider = (*CHBarStore)(nil)

func NewCHBarStore(ch *pkgch.Client, table string) *CHBarStore {
	return NewCHBarStoreFromDB(ch.DB(), table)
}

// NewCHBarStoreFromDB uses an already opened database handle.
func NewCHBarStoreFromDB(db *sql.DB, table string) *CHBarStore {
	if table == "" {
		table = "pricecast.daily_bars"
	}
	return &CHBarStore{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHBarStore) Name() string { return "clickhouse" }

// Schema returns the DDL for the bar table.
func (s *CHBarStore) Schema() []string {
	db := "pricecast"
	if i := strings.IndexByte(s.table, '.'); i > 0 {
		db = s.table[:i]
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            day    Date,
            symbol LowCardinality(String),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, day)`, s.table),
	}
}

// DailyBars returns the latest n bars of symbol in ascending time order.
func (s *CHBarStore) DailyBars(ctx context.Context, symbol string, n int) (*models.PriceSeries, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, latestBarsQuery(s.table), symbol, n)
	if err != nil {
		s.l.Error("clickhouse daily_bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: clickhouse daily bars: %w", models.ErrDataUnavailable, err)
	}
	defer rows.Close()

	bars := make([]models.Bar, 0, n)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan bar: %w", models.ErrDataUnavailable, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", models.ErrDataUnavailable, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", models.ErrDataUnavailable, symbol)
	}
	// reverse to ASC
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	s.l.Info("clickhouse daily_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	series, err := models.NewPriceSeries(symbol, bars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	return series, nil
}

// StoreBars upserts bars for symbol with multi-row inserts.
func (s *CHBarStore) StoreBars(ctx context.Context, symbol string, bars []models.Bar) error {
	for start := 0; start < len(bars); start += insertChunk {
		end := min(start+insertChunk, len(bars))
		q, args := insertBarsQuery(s.table, symbol, bars[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_bars error",
				applogger.String("symbol", symbol),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func latestBarsQuery(table string) string {
	return fmt.Sprintf(`
        SELECT day, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY day DESC
        LIMIT ?
    `, table)
}

func insertBarsQuery(table, symbol string, bars []models.Bar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*7)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, util.TradingDay(b.Time), symbol, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (day, symbol, open, high, low, close, volume) VALUES %s", table, strings.Join(values, ","))
	return q, args
}
