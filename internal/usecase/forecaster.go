package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	drepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/predictor"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

// ModelProvider hands out the model that should serve the next request.
type ModelProvider interface {
	Current() (*predictor.Model, error)
}

// ForecasterConfig bounds requests and shapes the result.
type ForecasterConfig struct {
	MaxHorizon      int
	HistoryDays     int
	HistoryWindow   int
	DisplayAccuracy float64
}

// Forecaster runs the autoregressive pipeline against the serving model.
type Forecaster struct {
	models    ModelProvider
	source    drepo.PriceSource
	publisher drepo.EventPublisher
	metrics   drepo.Metrics
	log       *applogger.Logger
	cfg       ForecasterConfig
	assembler forecast.Assembler
	now       func() time.Time
}

func NewForecaster(
	provider ModelProvider,
	source drepo.PriceSource,
	publisher drepo.EventPublisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
	cfg ForecasterConfig,
) *Forecaster {
	if l == nil {
		l = applogger.Nop()
	}
	return &Forecaster{
		models:    provider,
		source:    source,
		publisher: publisher,
		metrics:   metrics,
		log:       l,
		cfg:       cfg,
		assembler: forecast.NewAssembler(cfg.DisplayAccuracy, cfg.HistoryWindow),
		now:       time.Now,
	}
}

// ForecastSymbol fetches the recent history of symbol and forecasts it.
func (f *Forecaster) ForecastSymbol(ctx context.Context, symbol string, horizon int) models.ForecastResult {
	from, to := util.DayRange(f.now(), f.cfg.HistoryDays)
	series, err := f.source.DailyCloses(ctx, symbol, from, to)
	if err != nil {
		f.metrics.RecordError("fetch_history")
		return f.failed(symbol, "", err)
	}
	series.Symbol = symbol
	return f.Forecast(ctx, series, horizon)
}

// Forecast never returns a Go error: any failure is reported in the result.
func (f *Forecaster) Forecast(ctx context.Context, series models.PriceSeries, horizon int) models.ForecastResult {
	start := time.Now()
	m, err := f.models.Current()
	if err != nil {
		return f.failed(series.Symbol, "", err)
	}
	variant := string(m.Variant)

	res, err := f.run(m, series, horizon)
	if err != nil {
		f.metrics.RecordForecast(variant, "error", time.Since(start).Seconds())
		return f.failed(series.Symbol, variant, err)
	}
	res.Model = &models.ModelInfo{Variant: variant, Version: m.Version()}
	f.metrics.RecordForecast(variant, "ok", time.Since(start).Seconds())
	if len(res.Forecast.Prices) > 0 {
		f.metrics.RecordLastForecast(series.Symbol, res.Forecast.Prices[0])
	}
	f.publish(ctx, m, res)
	return res
}

func (f *Forecaster) run(m *predictor.Model, series models.PriceSeries, horizon int) (models.ForecastResult, error) {
	if horizon < 1 || (f.cfg.MaxHorizon > 0 && horizon > f.cfg.MaxHorizon) {
		return models.ForecastResult{}, fmt.Errorf("%w: got %d, allowed 1..%d", models.ErrInvalidHorizon, horizon, f.cfg.MaxHorizon)
	}
	if err := series.Validate(); err != nil {
		return models.ForecastResult{}, err
	}

	norm := m.Scaler.TransformAll(series.Closes())
	run, err := forecast.Autoregressive{Builder: m.Builder, Predictor: m.Predictor}.Run(norm, horizon)
	if err != nil {
		return models.ForecastResult{}, err
	}

	// A series exactly one look-back long forecasts fine but has no in-sample pairs.
	pairs, err := m.Builder.TrainingPairs(norm)
	if err != nil && !errors.Is(err, models.ErrInsufficientData) {
		return models.ForecastResult{}, err
	}
	if err != nil {
		pairs = features.TrainingSet{}
	}

	return f.assembler.Assemble(forecast.Input{
		Series:    series,
		Scaler:    m.Scaler,
		Pairs:     pairs,
		Predictor: m.Predictor,
		Run:       run,
	})
}

func (f *Forecaster) failed(symbol, variant string, err error) models.ForecastResult {
	switch {
	case models.IsTraining(err):
		f.log.Debug("forecast while training", applogger.String("symbol", symbol))
	case errors.Is(err, models.ErrInsufficientData), errors.Is(err, models.ErrInvalidHorizon),
		errors.Is(err, models.ErrSymbolNotFound):
		f.log.Info("forecast rejected", applogger.String("symbol", symbol), applogger.Error(err))
	default:
		f.metrics.RecordError("forecast")
		f.log.Error("forecast failed",
			applogger.String("symbol", symbol),
			applogger.String("variant", variant),
			applogger.Error(err))
	}
	return models.FailedResult(symbol, err)
}

// publish is best effort; a broker outage must not fail the request.
func (f *Forecaster) publish(ctx context.Context, m *predictor.Model, res models.ForecastResult) {
	if f.publisher == nil {
		return
	}
	ev := &models.ForecastEvent{
		Symbol:      res.Symbol,
		Variant:     string(m.Variant),
		Version:     m.Version(),
		Dates:       res.Forecast.Dates,
		Prices:      res.Forecast.Prices,
		Confidence:  res.Metrics.Confidence,
		GeneratedAt: f.now().UTC(),
	}
	if err := f.publisher.PublishForecast(ctx, ev); err != nil {
		f.metrics.RecordError("publish")
		f.log.Warn("publish forecast event", applogger.String("symbol", res.Symbol), applogger.Error(err))
	}
}
