package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
)

const insertChunkSize = 2000

// CHPriceSource reads and writes daily closes in a ClickHouse table.
type CHPriceSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHPriceSource serves closes from database.table.
func NewCHPriceSource(ch *pkgch.Client, table string, l *applogger.Logger) *CHPriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceSource{
		db:    ch.DB(),
		table: ch.Database() + "." + table,
		l:     l,
	}
}

// Schema returns the DDL for the closes table.
func (s *CHPriceSource) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol LowCardinality(String),
            d Date,
            close Float64,
            ingested_at DateTime DEFAULT now()
        ) ENGINE = ReplacingMergeTree(ingested_at)
        ORDER BY (symbol, d)
    `, s.table)}
}

func (s *CHPriceSource) DailyCloses(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	const qtpl = `
        SELECT d, argMax(close, ingested_at) AS close
        FROM %s
        WHERE symbol = ? AND d >= ? AND d <= ?
        GROUP BY d
        ORDER BY d ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse daily_closes query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("daily closes: %w", err)
	}
	defer rows.Close()

	series := models.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			s.l.Error("clickhouse daily_closes scan error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return models.PriceSeries{}, fmt.Errorf("scan close: %w", err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return models.PriceSeries{}, fmt.Errorf("rows: %w", err)
	}
	if series.Len() == 0 {
		return models.PriceSeries{}, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
	}
	return series, nil
}

// StoreCloses upserts the series; duplicates collapse on (symbol, d).
func (s *CHPriceSource) StoreCloses(ctx context.Context, series models.PriceSeries) error {
	for start := 0; start < series.Len(); start += insertChunkSize {
		end := start + insertChunkSize
		if end > series.Len() {
			end = series.Len()
		}
		q, args := buildCloseInsert(s.table, series.Symbol, series.Points[start:end])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_closes error",
				applogger.String("symbol", series.Symbol),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("store closes: %w", err)
		}
	}
	return nil
}

// buildCloseInsert renders one multi-row INSERT, skipping zero dates.
func buildCloseInsert(table, symbol string, points []models.PricePoint) (string, []interface{}) {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*3)
	for _, p := range points {
		if p.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?)")
		args = append(args, symbol, p.Date, p.Close)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, d, close) VALUES %s", table, strings.Join(values, ","))
	return q, args
}
