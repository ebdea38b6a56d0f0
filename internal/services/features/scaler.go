package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"PriceCast/internal/domain/models"
)

// Scaler maps prices to [0,1] using bounds fitted on a training corpus.
// Values outside the fitted range map outside [0,1]; nothing is clamped.
type Scaler struct {
	min float64
	max float64
}

// FitScaler fits min-max bounds over values.
func FitScaler(values []float64) (Scaler, error) {
	if len(values) == 0 {
		return Scaler{}, models.ErrEmptySeries
	}
	lo, hi := floats.Min(values), floats.Max(values)
	if hi == lo {
		return Scaler{}, fmt.Errorf("%w: all %d values equal %g", models.ErrDegenerateRange, len(values), lo)
	}
	return Scaler{min: lo, max: hi}, nil
}

// ScalerFromParams restores a persisted scaler.
func ScalerFromParams(p models.ScalerParams) (Scaler, error) {
	if math.IsNaN(p.Min) || math.IsNaN(p.Max) || p.Max <= p.Min {
		return Scaler{}, fmt.Errorf("%w: min=%g max=%g", models.ErrDegenerateRange, p.Min, p.Max)
	}
	return Scaler{min: p.Min, max: p.Max}, nil
}

func (s Scaler) Params() models.ScalerParams {
	return models.ScalerParams{Min: s.min, Max: s.max}
}

func (s Scaler) Transform(x float64) float64 {
	return (x - s.min) / (s.max - s.min)
}

func (s Scaler) InverseTransform(z float64) float64 {
	return z*(s.max-s.min) + s.min
}

func (s Scaler) TransformAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.Transform(x)
	}
	return out
}

func (s Scaler) InverseTransformAll(zs []float64) []float64 {
	out := make([]float64, len(zs))
	for i, z := range zs {
		out[i] = s.InverseTransform(z)
	}
	return out
}

// Fingerprint identifies the exact fitted bounds. Predictors record it at fit
// time so a mismatched pairing can be detected on load.
func (s Scaler) Fingerprint() string {
	return fmt.Sprintf("minmax:%016x:%016x", math.Float64bits(s.min), math.Float64bits(s.max))
}
