package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

func fitModel(t *testing.T) *Model {
	t.Helper()
	raw := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	scaler, err := features.FitScaler(raw)
	require.NoError(t, err)
	b := features.Builder{Family: features.FamilyIndicators, LookBack: 5}
	ts, err := b.TrainingPairs(scaler.TransformAll(raw))
	require.NoError(t, err)
	p, err := FitLinear(ts)
	require.NoError(t, err)

	m, err := NewModel(p, scaler, b, ModelMeta{
		Symbols:   []string{"TEST"},
		TrainedAt: time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return m
}

func TestNewModel_Artifact(t *testing.T) {
	m := fitModel(t)
	a := m.Artifact()
	assert.Equal(t, "linear-20261019T083000Z", a.Version)
	assert.Equal(t, "linear", a.Variant)
	assert.Equal(t, models.FeatureSpec{Family: "indicators", LookBack: 5}, a.Features)
	assert.Equal(t, models.ScalerParams{Min: 10, Max: 20}, a.Scaler)
	assert.Equal(t, m.Scaler.Fingerprint(), a.ScalerFingerprint)
	assert.Equal(t, models.ModelInfo{Variant: "linear", Version: a.Version}, m.Info())
}

func TestNewModel_WidthMismatch(t *testing.T) {
	m := fitModel(t)
	_, err := NewModel(m.Predictor, m.Scaler, features.Builder{Family: features.FamilySequence, LookBack: 5}, ModelMeta{})
	assert.True(t, models.IsArtifactMismatch(err))
}

func TestModelFromArtifact(t *testing.T) {
	m := fitModel(t)

	restored, err := ModelFromArtifact(m.Artifact())
	require.NoError(t, err)
	x, err := restored.Builder.LatestVector(restored.Scaler.TransformAll([]float64{16, 17, 18, 19, 20}))
	require.NoError(t, err)
	got, err := restored.Predictor.Predict(x)
	require.NoError(t, err)
	want, _ := m.Predictor.Predict(x)
	assert.Equal(t, want, got)
}

func TestModelFromArtifact_Mismatch(t *testing.T) {
	cases := map[string]func(a *models.Artifact){
		"swapped scaler": func(a *models.Artifact) { a.Scaler = models.ScalerParams{Min: 0, Max: 50} },
		"degenerate":     func(a *models.Artifact) { a.Scaler = models.ScalerParams{Min: 5, Max: 5} },
		"look-back":      func(a *models.Artifact) { a.Features.LookBack = 7 },
		"family":         func(a *models.Artifact) { a.Features.Family = "sequence" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := *fitModel(t).Artifact()
			mutate(&a)
			_, err := ModelFromArtifact(&a)
			assert.True(t, models.IsArtifactMismatch(err), "got %v", err)
		})
	}

	a := *fitModel(t).Artifact()
	a.Variant = "prophet"
	_, err := ModelFromArtifact(&a)
	assert.ErrorIs(t, err, models.ErrUnknownVariant)

	_, err = ModelFromArtifact(nil)
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
}
