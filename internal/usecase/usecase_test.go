package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/predictor"
)

var day0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func dailySeries(symbol string, closes ...float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{Date: day0.AddDate(0, 0, i), Close: c})
	}
	return s
}

func wave(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + 10*math.Sin(float64(i)/4) + 0.2*float64(i)
	}
	return out
}

type fakeSource struct {
	mu     sync.Mutex
	series map[string]models.PriceSeries
	calls  int
}

func (f *fakeSource) DailyCloses(_ context.Context, symbol string, _, _ time.Time) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.series[symbol]
	if !ok {
		return models.PriceSeries{}, models.ErrSymbolNotFound
	}
	return s, nil
}

type memStore struct {
	mu        sync.Mutex
	artifacts map[string]*models.Artifact
	saveErr   error
	saves     int
}

func newMemStore() *memStore { return &memStore{artifacts: map[string]*models.Artifact{}} }

func (s *memStore) Load(_ context.Context, key string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[key]
	if !ok {
		return nil, models.ErrArtifactNotFound
	}
	return a, nil
}

func (s *memStore) Save(_ context.Context, key string, a *models.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.artifacts[key] = a
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	forecasts map[string]int
	trainings map[string]int
	errs      map[string]int
	info      string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{forecasts: map[string]int{}, trainings: map[string]int{}, errs: map[string]int{}}
}

func (m *fakeMetrics) RecordForecast(variant, result string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecasts[variant+"/"+result]++
}

func (m *fakeMetrics) RecordTraining(variant, result string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings[variant+"/"+result]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *fakeMetrics) RecordLastForecast(string, float64) {}

func (m *fakeMetrics) SetModelInfo(variant, version string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = version
}

type fakePublisher struct {
	events []*models.ForecastEvent
	err    error
}

func (p *fakePublisher) PublishForecast(_ context.Context, ev *models.ForecastEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type stubTrainer struct {
	mu    sync.Mutex
	model *predictor.Model
	err   error
	calls int
	gate  chan struct{}
}

func (s *stubTrainer) Train(context.Context) (*predictor.Model, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.model, s.err
}

type staticProvider struct {
	m   *predictor.Model
	err error
}

func (p staticProvider) Current() (*predictor.Model, error) { return p.m, p.err }

// lineModel fits a linear predictor on 10..20 with look-back 5.
func lineModel(t *testing.T, trainedAt time.Time) (*predictor.Model, models.PriceSeries) {
	t.Helper()
	series := dailySeries("LINE", 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20)
	scaler, err := features.FitScaler(series.Closes())
	require.NoError(t, err)
	b, err := features.NewBuilder(features.FamilyIndicators, 5)
	require.NoError(t, err)
	ts, err := b.TrainingPairs(scaler.TransformAll(series.Closes()))
	require.NoError(t, err)
	p, err := predictor.FitLinear(ts)
	require.NoError(t, err)
	m, err := predictor.NewModel(p, scaler, b, predictor.ModelMeta{Symbols: []string{"LINE"}, TrainedAt: trainedAt})
	require.NoError(t, err)
	return m, series
}

func testTrainerConfig(symbols ...string) TrainerConfig {
	return TrainerConfig{
		Symbols:      symbols,
		PeriodDays:   365,
		TestFraction: 0.2,
		Seed:         42,
		Variant:      predictor.VariantLinear,
		Options:      predictor.Options{LookBack: 10},
	}
}

func TestTrainer_SkipsFailingSymbols(t *testing.T) {
	src := &fakeSource{series: map[string]models.PriceSeries{
		"AAA":   dailySeries("", wave(120, 100)...),
		"BBB":   dailySeries("", wave(120, 200)...),
		"SHORT": dailySeries("", 1, 2, 3),
	}}
	metrics := newFakeMetrics()
	tr := NewTrainer(src, metrics, nil, testTrainerConfig("AAA", "MISSING", "BBB", "SHORT"))

	m, err := tr.Train(context.Background())
	require.NoError(t, err)

	a := m.Artifact()
	assert.Equal(t, []string{"AAA", "BBB"}, a.Symbols)
	assert.Equal(t, "linear", a.Variant)
	require.NotNil(t, a.Evaluation)
	// 2 symbols x (120-10) pairs, 20% held out
	assert.Equal(t, 220, a.Evaluation.TrainSize+a.Evaluation.TestSize)
	assert.InDelta(t, 44, a.Evaluation.TestSize, 1)
	assert.Greater(t, a.Evaluation.R2, 0.9)
	assert.Equal(t, 1, metrics.trainings["linear/ok"])

	// the scaler spans the whole corpus
	assert.Less(t, a.Scaler.Min, 100.0)
	assert.Greater(t, a.Scaler.Max, 200.0)
}

func TestTrainer_NoTrainingData(t *testing.T) {
	src := &fakeSource{series: map[string]models.PriceSeries{}}
	metrics := newFakeMetrics()
	tr := NewTrainer(src, metrics, nil, testTrainerConfig("A", "B"))

	_, err := tr.Train(context.Background())
	assert.ErrorIs(t, err, models.ErrNoTrainingData)
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	assert.Equal(t, 1, metrics.trainings["linear/error"])
	assert.Equal(t, 2, src.calls)
}

func TestRegistry_TinyCorpusArtifactEncodes(t *testing.T) {
	closes := make([]float64, 0, 13)
	for c := 10.0; c <= 22; c++ {
		closes = append(closes, c)
	}
	src := &fakeSource{series: map[string]models.PriceSeries{"TINY": dailySeries("TINY", closes...)}}
	tr := NewTrainer(src, newFakeMetrics(), nil, testTrainerConfig("TINY"))
	reg := NewModelRegistry(newMemStore(), tr, newFakeMetrics(), "k")

	m, err := reg.Retrain(context.Background(), "test")
	require.NoError(t, err)
	require.NotNil(t, m.Artifact().Evaluation)
	assert.Equal(t, 1, m.Artifact().Evaluation.TestSize)

	_, err = json.Marshal(m.Artifact())
	require.NoError(t, err)
	_, err = json.Marshal(reg.Status())
	require.NoError(t, err)
}

func TestRegistry_TrainsOnFirstUse(t *testing.T) {
	m, _ := lineModel(t, day0)
	store := newMemStore()
	trainer := &stubTrainer{model: m, gate: make(chan struct{})}
	metrics := newFakeMetrics()
	reg := NewModelRegistry(store, trainer, metrics, "general-forecaster")

	require.NoError(t, reg.Warmup(context.Background()))
	assert.True(t, reg.Training())

	_, err := reg.Current()
	assert.ErrorIs(t, err, models.ErrModelTraining)
	assert.False(t, reg.StartTraining("again", false), "single flight")

	close(trainer.gate)
	reg.Wait()

	got, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, m.Version(), got.Version())
	assert.Equal(t, 1, trainer.calls)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, m.Version(), metrics.info)

	st := reg.Status()
	assert.True(t, st.Ready)
	assert.False(t, st.Training)
	assert.Equal(t, "linear", st.Variant)
}

func TestRegistry_WarmupLoadsPersistedModel(t *testing.T) {
	m, _ := lineModel(t, day0)
	store := newMemStore()
	store.artifacts["k"] = m.Artifact()
	trainer := &stubTrainer{}
	reg := NewModelRegistry(store, trainer, newFakeMetrics(), "k")

	require.NoError(t, reg.Warmup(context.Background()))
	got, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, m.Version(), got.Version())
	assert.Equal(t, 0, trainer.calls)
}

func TestRegistry_FailedRetrainKeepsModel(t *testing.T) {
	m, _ := lineModel(t, day0)
	store := newMemStore()
	store.artifacts["k"] = m.Artifact()
	trainer := &stubTrainer{err: models.ErrNoTrainingData}
	metrics := newFakeMetrics()
	reg := NewModelRegistry(store, trainer, metrics, "k")
	require.NoError(t, reg.Warmup(context.Background()))

	_, err := reg.Retrain(context.Background(), "test")
	assert.ErrorIs(t, err, models.ErrNoTrainingData)

	got, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, m.Version(), got.Version())
	assert.Same(t, m.Artifact(), store.artifacts["k"])
	assert.Contains(t, reg.Status().LastError, "no training data")
	assert.Equal(t, 1, metrics.errs["retrain"])
}

func TestRegistry_FailedSaveDoesNotSwap(t *testing.T) {
	old, _ := lineModel(t, day0)
	fresh, _ := lineModel(t, day0.Add(time.Hour))
	store := newMemStore()
	store.artifacts["k"] = old.Artifact()
	reg := NewModelRegistry(store, &stubTrainer{model: fresh}, newFakeMetrics(), "k")
	require.NoError(t, reg.Warmup(context.Background()))

	store.saveErr = errors.New("disk full")
	_, err := reg.Retrain(context.Background(), "test")
	require.Error(t, err)

	got, _ := reg.Current()
	assert.Equal(t, old.Version(), got.Version())
}

func TestRegistry_FailedFirstTrainingReportsCause(t *testing.T) {
	src := &fakeSource{series: map[string]models.PriceSeries{}}
	tr := NewTrainer(src, newFakeMetrics(), nil, testTrainerConfig("A"))
	reg := NewModelRegistry(newMemStore(), tr, newFakeMetrics(), "k", WithRetryBackoff(time.Minute))
	clock := day0
	reg.now = func() time.Time { return clock }

	_, err := reg.Current()
	assert.ErrorIs(t, err, models.ErrModelTraining)
	reg.Wait()
	assert.Equal(t, 1, src.calls)

	for i := 0; i < 3; i++ {
		_, err = reg.Current()
		require.Error(t, err)
		assert.False(t, models.IsTraining(err))
		assert.ErrorIs(t, err, models.ErrModelUnavailable)
		assert.ErrorIs(t, err, models.ErrNoTrainingData)
		assert.False(t, reg.Training())
	}
	reg.Wait()
	assert.Equal(t, 1, src.calls, "no new run inside the backoff")

	res := models.FailedResult("X", err)
	assert.Empty(t, res.Status)
	assert.Contains(t, res.Error, "no training data")

	clock = clock.Add(2 * time.Minute)
	_, err = reg.Current()
	assert.ErrorIs(t, err, models.ErrModelTraining)
	reg.Wait()
	assert.Equal(t, 2, src.calls)
}

type denyLocker struct{}

func (denyLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (denyLocker) Unlock(context.Context, string) error                          { return nil }

func TestRegistry_LockHeldElsewhere(t *testing.T) {
	m, _ := lineModel(t, day0)
	trainer := &stubTrainer{model: m}
	reg := NewModelRegistry(newMemStore(), trainer, newFakeMetrics(), "k", WithLocker(denyLocker{}))

	_, err := reg.Retrain(context.Background(), "test")
	assert.ErrorIs(t, err, models.ErrModelTraining)
	assert.Equal(t, 0, trainer.calls)
}

func newTestForecaster(p ModelProvider, src *fakeSource, pub *fakePublisher) (*Forecaster, *fakeMetrics) {
	metrics := newFakeMetrics()
	f := NewForecaster(p, src, pub, metrics, nil, ForecasterConfig{
		MaxHorizon:      30,
		HistoryDays:     180,
		HistoryWindow:   30,
		DisplayAccuracy: 97.5,
	})
	return f, metrics
}

func TestForecaster_ContinuesLine(t *testing.T) {
	m, series := lineModel(t, day0)
	pub := &fakePublisher{}
	f, metrics := newTestForecaster(staticProvider{m: m}, nil, pub)

	res := f.Forecast(context.Background(), series, 2)
	require.True(t, res.Success, res.Error)

	require.Len(t, res.Forecast.Prices, 2)
	assert.InDelta(t, 21, res.Forecast.Prices[0], 1e-6)
	assert.InDelta(t, 22, res.Forecast.Prices[1], 1e-6)
	assert.Equal(t, []string{"2026-01-16", "2026-01-17"}, res.Forecast.Dates)

	require.Len(t, res.Historical.Prices, 11)
	for i, p := range res.Historical.Predictions {
		if i < 5 {
			assert.Nil(t, p)
			continue
		}
		require.NotNil(t, p)
		assert.InDelta(t, res.Historical.Prices[i], *p, 1e-6)
	}
	assert.InDelta(t, 0, res.Metrics.RMSE, 1e-6)
	assert.Equal(t, 97.5, res.Metrics.Accuracy)
	assert.GreaterOrEqual(t, res.Metrics.Confidence, 90.0)
	assert.LessOrEqual(t, res.Metrics.Confidence, 97.5)
	assert.Equal(t, m.Version(), res.Model.Version)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "LINE", pub.events[0].Symbol)
	assert.Equal(t, 1, metrics.forecasts["linear/ok"])
}

func TestForecaster_Failures(t *testing.T) {
	m, series := lineModel(t, day0)
	f, _ := newTestForecaster(staticProvider{m: m}, nil, nil)

	res := f.Forecast(context.Background(), series, 0)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "horizon")

	res = f.Forecast(context.Background(), series, 31)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, models.ErrInvalidHorizon)

	wide := NewForecaster(staticProvider{m: m}, nil, nil, newFakeMetrics(), nil, ForecasterConfig{MaxHorizon: 40, HistoryWindow: 30, DisplayAccuracy: 97.5})
	res = wide.Forecast(context.Background(), series, 31)
	assert.True(t, res.Success, res.Error)
	assert.Len(t, res.Forecast.Prices, 31)

	res = f.Forecast(context.Background(), dailySeries("S", 1, 2, 3), 4)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, models.ErrInsufficientData.Error())

	unordered := dailySeries("U", 1, 2, 3, 4, 5, 6)
	unordered.Points[3].Date = unordered.Points[1].Date
	res = f.Forecast(context.Background(), unordered, 4)
	assert.False(t, res.Success)

	training, _ := newTestForecaster(staticProvider{err: models.ErrModelTraining}, nil, nil)
	res = training.Forecast(context.Background(), series, 4)
	assert.False(t, res.Success)
	assert.Equal(t, models.StatusTraining, res.Status)
}

func TestForecaster_ExactlyOneWindow(t *testing.T) {
	m, _ := lineModel(t, day0)
	f, _ := newTestForecaster(staticProvider{m: m}, nil, nil)

	res := f.Forecast(context.Background(), dailySeries("W", 15, 16, 17, 18, 19), 3)
	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Forecast.Prices, 3)
	for _, p := range res.Historical.Predictions {
		assert.Nil(t, p)
	}
}

func TestForecaster_ForecastSymbol(t *testing.T) {
	m, series := lineModel(t, day0)
	src := &fakeSource{series: map[string]models.PriceSeries{"LINE": series}}
	pub := &fakePublisher{err: errors.New("broker down")}
	f, metrics := newTestForecaster(staticProvider{m: m}, src, pub)

	res := f.ForecastSymbol(context.Background(), "LINE", 4)
	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Forecast.Dates, 4)
	assert.Equal(t, 1, metrics.errs["publish"])

	res = f.ForecastSymbol(context.Background(), "NOPE", 4)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, models.ErrSymbolNotFound.Error())
}

type recordingStarter struct {
	reasons []string
	force   []bool
}

func (r *recordingStarter) StartTraining(reason string, force bool) bool {
	r.reasons = append(r.reasons, reason)
	r.force = append(r.force, force)
	return true
}

func TestRetrainHandler(t *testing.T) {
	starter := &recordingStarter{}
	metrics := newFakeMetrics()
	h := NewRetrainHandler("pricecast.retrain", starter, metrics, nil)
	assert.Equal(t, "pricecast.retrain", h.Topic())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"reason":"nightly","requested_by":"cron"}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{}`)))
	assert.Equal(t, []string{"nightly", "kafka"}, starter.reasons)
	assert.Equal(t, []bool{true, true}, starter.force)

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Equal(t, 1, metrics.errs["consumer_unmarshal"])
}

type memSink struct {
	stored map[string]int
	err    error
}

func (s *memSink) StoreCloses(_ context.Context, series models.PriceSeries) error {
	if s.err != nil {
		return s.err
	}
	s.stored[series.Symbol] += series.Len()
	return nil
}

func TestBackfill(t *testing.T) {
	src := &fakeSource{series: map[string]models.PriceSeries{
		"AAA": dailySeries("", 1, 2, 3),
		"BBB": dailySeries("", 4, 5),
	}}
	sink := &memSink{stored: map[string]int{}}
	n, err := NewBackfill(src, sink, nil).Run(context.Background(), []string{"AAA", "MISSING", "BBB"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, map[string]int{"AAA": 3, "BBB": 2}, sink.stored)

	_, err = NewBackfill(src, &memSink{err: errors.New("down")}, nil).Run(context.Background(), []string{"AAA"}, 30)
	assert.Error(t, err)
}
