package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
)

// PriceSource provides daily close history for a symbol.
type PriceSource interface {
	// DailyCloses returns closes in [from, to], oldest first. An unknown symbol
	// yields models.ErrSymbolNotFound.
	DailyCloses(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
}

// PriceSink stores daily closes so later reads can be served locally.
type PriceSink interface {
	StoreCloses(ctx context.Context, series models.PriceSeries) error
}

// ArtifactStore persists trained models as a single unit.
type ArtifactStore interface {
	Load(ctx context.Context, key string) (*models.Artifact, error) // models.ErrArtifactNotFound when absent
	Save(ctx context.Context, key string, a *models.Artifact) error
}

type EventPublisher interface {
	PublishForecast(ctx context.Context, ev *models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordForecast(variant, result string, seconds float64)
	RecordTraining(variant, result string, seconds float64)
	RecordError(kind string)
	RecordLastForecast(symbol string, price float64)
	SetModelInfo(variant, version string)
}
