package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/predictor"
)

func dailySeries(symbol string, start time.Time, closes ...float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{Date: start.AddDate(0, 0, i), Close: c})
	}
	return s
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/4) + 0.2*float64(i)
	}
	return out
}

func TestRun_LinearContinuesLine(t *testing.T) {
	raw := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	scaler, err := features.FitScaler(raw)
	require.NoError(t, err)
	norm := scaler.TransformAll(raw)
	b := features.Builder{Family: features.FamilyIndicators, LookBack: 5}

	ts, err := b.TrainingPairs(norm)
	require.NoError(t, err)
	assert.Equal(t, 6, ts.Len())

	p, err := predictor.FitLinear(ts)
	require.NoError(t, err)

	run, err := Autoregressive{Builder: b, Predictor: p}.Run(norm, 2)
	require.NoError(t, err)
	require.Equal(t, 2, run.Steps)

	prices := scaler.InverseTransformAll(run.Outputs)
	assert.InDelta(t, 21, prices[0], 1e-6)
	assert.InDelta(t, 22, prices[1], 1e-6)
}

func TestRun_HorizonInvariant(t *testing.T) {
	raw := wave(120)
	scaler, err := features.FitScaler(raw)
	require.NoError(t, err)
	norm := scaler.TransformAll(raw)
	opts := predictor.Options{
		LookBack: 10,
		Forest:   predictor.ForestOptions{Trees: 10, Seed: 42},
		Sequence: predictor.SequenceOptions{Reservoir: 16, Seed: 42},
	}

	for _, v := range []predictor.Variant{predictor.VariantLinear, predictor.VariantWindowed, predictor.VariantSequence, predictor.VariantHybrid} {
		t.Run(string(v), func(t *testing.T) {
			b := features.Builder{Family: opts.Family(v), LookBack: 10}
			ts, err := b.TrainingPairs(norm)
			require.NoError(t, err)
			p, err := predictor.Fit(v, ts, opts)
			require.NoError(t, err)

			ar := Autoregressive{Builder: b, Predictor: p}
			for _, h := range []int{1, 4, 30} {
				run, err := ar.Run(norm, h)
				require.NoError(t, err)
				assert.Equal(t, h, run.Steps)
				assert.Len(t, run.Outputs, h)
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	b := features.Builder{Family: features.FamilyIndicators, LookBack: 5}
	norm := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	ts, err := b.TrainingPairs(norm)
	require.NoError(t, err)
	p, err := predictor.FitLinear(ts)
	require.NoError(t, err)
	ar := Autoregressive{Builder: b, Predictor: p}

	_, err = ar.Run(norm, 0)
	assert.ErrorIs(t, err, models.ErrInvalidHorizon)

	_, err = ar.Run(norm[:3], 2)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	wrong := Autoregressive{Builder: features.Builder{Family: features.FamilySequence, LookBack: 5}, Predictor: p}
	_, err = wrong.Run(norm, 2)
	assert.True(t, models.IsShapeMismatch(err))
}

func assemble(t *testing.T, closes []float64, horizon int) models.ForecastResult {
	t.Helper()
	series := dailySeries("TEST.NS", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), closes...)
	scaler, err := features.FitScaler(closes)
	require.NoError(t, err)
	norm := scaler.TransformAll(closes)
	b := features.Builder{Family: features.FamilyIndicators, LookBack: 5}
	ts, err := b.TrainingPairs(norm)
	require.NoError(t, err)
	p, err := predictor.FitLinear(ts)
	require.NoError(t, err)
	run, err := Autoregressive{Builder: b, Predictor: p}.Run(norm, horizon)
	require.NoError(t, err)

	res, err := NewAssembler(97.5, 30).Assemble(Input{Series: series, Scaler: scaler, Pairs: ts, Predictor: p, Run: run})
	require.NoError(t, err)
	return res
}

func TestAssemble_Shape(t *testing.T) {
	res := assemble(t, wave(60), 4)
	require.True(t, res.Success)
	assert.Equal(t, "TEST.NS", res.Symbol)

	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"}, res.Forecast.Dates)
	assert.Len(t, res.Forecast.Prices, 4)

	require.Len(t, res.Historical.Prices, 30)
	require.Len(t, res.Historical.Predictions, 30)
	assert.Equal(t, "2024-02-29", res.Historical.Dates[29])
	for _, p := range res.Historical.Predictions {
		assert.NotNil(t, p)
	}
	assert.Equal(t, 97.5, res.Metrics.Accuracy)
	assert.GreaterOrEqual(t, res.Metrics.RMSE, 0.0)
}

func TestAssemble_ShortHistoryLeavesGaps(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	res := assemble(t, closes, 2)

	require.Len(t, res.Historical.Prices, 11)
	for i, p := range res.Historical.Predictions {
		if i < 5 {
			assert.Nil(t, p, "index %d", i)
			continue
		}
		require.NotNil(t, p)
		assert.InDelta(t, closes[i], *p, 1e-6)
	}
	assert.InDelta(t, 0, res.Metrics.RMSE, 1e-6)
	assert.InDelta(t, 21, res.Forecast.Prices[0], 1e-6)
	assert.InDelta(t, 22, res.Forecast.Prices[1], 1e-6)
}

func TestConfidence_Bounds(t *testing.T) {
	a := NewAssembler(97.5, 30)

	assert.Equal(t, 97.5, a.Confidence([]float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}))
	assert.Equal(t, 97.5, a.Confidence([]float64{1, 2, 3}), "fewer than 10 points means no discount")

	calm := []float64{100, 101, 100, 101, 100, 101, 100, 101, 100, 101}
	c := a.Confidence(calm)
	assert.InDelta(t, 97.5-0.5/100.5*100, c, 1e-9)

	wild := []float64{10, 100, 10, 100, 10, 100, 10, 100, 10, 100}
	assert.Equal(t, 90.0, a.Confidence(wild))

	for _, series := range [][]float64{calm, wild, wave(40)} {
		c := a.Confidence(series)
		assert.GreaterOrEqual(t, c, 90.0)
		assert.LessOrEqual(t, c, 97.5)
	}
}
