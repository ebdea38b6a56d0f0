package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func TestFitScaler_RoundTrip(t *testing.T) {
	prices := []float64{101.5, 99.25, 130, 87.125, 112.75, 95}
	s, err := FitScaler(prices)
	require.NoError(t, err)

	for _, p := range append(prices, 60, 180) {
		back := s.InverseTransform(s.Transform(p))
		assert.InDelta(t, p, back, math.Abs(p)*1e-9)
	}
	assert.Equal(t, 0.0, s.Transform(87.125))
	assert.Equal(t, 1.0, s.Transform(130))
}

func TestScaler_NoClamping(t *testing.T) {
	s, err := FitScaler([]float64{10, 20})
	require.NoError(t, err)

	assert.InDelta(t, 1.5, s.Transform(25), 1e-12)
	assert.InDelta(t, -0.5, s.Transform(5), 1e-12)
	assert.InDelta(t, 21, s.InverseTransform(1.1), 1e-9)
}

func TestFitScaler_Errors(t *testing.T) {
	_, err := FitScaler(nil)
	assert.ErrorIs(t, err, models.ErrEmptySeries)

	_, err = FitScaler([]float64{42, 42, 42})
	assert.ErrorIs(t, err, models.ErrDegenerateRange)
}

func TestScalerFromParams(t *testing.T) {
	s, err := FitScaler([]float64{3, 9, 6})
	require.NoError(t, err)

	restored, err := ScalerFromParams(s.Params())
	require.NoError(t, err)
	assert.Equal(t, s.Fingerprint(), restored.Fingerprint())

	other, err := FitScaler([]float64{3, 9.0000001})
	require.NoError(t, err)
	assert.NotEqual(t, s.Fingerprint(), other.Fingerprint())

	_, err = ScalerFromParams(models.ScalerParams{Min: 5, Max: 5})
	assert.ErrorIs(t, err, models.ErrDegenerateRange)
}
