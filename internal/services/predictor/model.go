package predictor

import (
	"fmt"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
)

// Model is a predictor together with the scaler and feature builder it was
// fit against. It is immutable and shared read-only across requests.
type Model struct {
	Variant   Variant
	Scaler    features.Scaler
	Builder   features.Builder
	Predictor service.Predictor
	artifact  *models.Artifact
}

// ModelMeta is the non-learned part of a new model.
type ModelMeta struct {
	Symbols    []string
	Evaluation *models.Evaluation
	TrainedAt  time.Time
}

// NewModel pairs a freshly fit predictor with its scaler and builder and
// snapshots the persisted form.
func NewModel(p service.Predictor, scaler features.Scaler, builder features.Builder, meta ModelMeta) (*Model, error) {
	v, err := VariantOf(p)
	if err != nil {
		return nil, err
	}
	if p.InputWidth() != builder.Width() {
		return nil, &models.ArtifactMismatchError{
			Reason: fmt.Sprintf("predictor width %d does not match %s features of width %d", p.InputWidth(), builder.Family, builder.Width()),
		}
	}
	state, err := Encode(p)
	if err != nil {
		return nil, err
	}
	trainedAt := meta.TrainedAt.UTC()
	a := &models.Artifact{
		Version:           fmt.Sprintf("%s-%s", v, trainedAt.Format("20060102T150405Z")),
		Variant:           string(v),
		Features:          models.FeatureSpec{Family: string(builder.Family), LookBack: builder.LookBack},
		Scaler:            scaler.Params(),
		ScalerFingerprint: scaler.Fingerprint(),
		State:             state,
		Symbols:           meta.Symbols,
		Evaluation:        meta.Evaluation,
		TrainedAt:         trainedAt,
	}
	return &Model{Variant: v, Scaler: scaler, Builder: builder, Predictor: p, artifact: a}, nil
}

// ModelFromArtifact restores a model and rejects any artifact whose parts do
// not belong together.
func ModelFromArtifact(a *models.Artifact) (*Model, error) {
	if a == nil {
		return nil, models.ErrArtifactNotFound
	}
	v, err := ParseVariant(a.Variant)
	if err != nil {
		return nil, err
	}
	scaler, err := features.ScalerFromParams(a.Scaler)
	if err != nil {
		return nil, &models.ArtifactMismatchError{Reason: err.Error()}
	}
	if scaler.Fingerprint() != a.ScalerFingerprint {
		return nil, &models.ArtifactMismatchError{
			Reason: fmt.Sprintf("predictor was fit against scaler %q, artifact carries %q", a.ScalerFingerprint, scaler.Fingerprint()),
		}
	}
	builder, err := features.NewBuilder(features.Family(a.Features.Family), a.Features.LookBack)
	if err != nil {
		return nil, &models.ArtifactMismatchError{Reason: err.Error()}
	}
	p, err := Decode(v, a.State)
	if err != nil {
		return nil, err
	}
	if p.InputWidth() != builder.Width() {
		return nil, &models.ArtifactMismatchError{
			Reason: fmt.Sprintf("%s expects width %d, %s features with look-back %d have width %d",
				p.Name(), p.InputWidth(), builder.Family, builder.LookBack, builder.Width()),
		}
	}
	return &Model{Variant: v, Scaler: scaler, Builder: builder, Predictor: p, artifact: a}, nil
}

// Artifact returns the persisted form of the model.
func (m *Model) Artifact() *models.Artifact { return m.artifact }

func (m *Model) Version() string { return m.artifact.Version }

func (m *Model) Info() models.ModelInfo {
	return models.ModelInfo{Variant: string(m.Variant), Version: m.artifact.Version}
}
