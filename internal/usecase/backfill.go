package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// Backfill copies daily closes from an upstream source into a local sink.
type Backfill struct {
	source drepo.PriceSource
	sink   drepo.PriceSink
	log    *applogger.Logger
	now    func() time.Time
}

func NewBackfill(source drepo.PriceSource, sink drepo.PriceSink, l *applogger.Logger) *Backfill {
	if l == nil {
		l = applogger.Nop()
	}
	return &Backfill{source: source, sink: sink, log: l, now: time.Now}
}

// Run copies the last days of closes for each symbol and returns the number
// of points written. A failing symbol is logged and skipped.
func (b *Backfill) Run(ctx context.Context, symbols []string, days int) (int, error) {
	from, to := util.DayRange(b.now(), days)
	written, failed := 0, 0
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		series, err := b.source.DailyCloses(ctx, sym, from, to)
		if err == nil {
			series.Symbol = sym
			err = b.sink.StoreCloses(ctx, series)
		}
		if err != nil {
			failed++
			b.log.Warn("backfill symbol failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		written += series.Len()
		b.log.Info("backfilled", applogger.String("symbol", sym), applogger.Int("points", series.Len()))
	}
	if failed == len(symbols) && failed > 0 {
		return 0, fmt.Errorf("backfill: all %d symbols failed", failed)
	}
	return written, nil
}
