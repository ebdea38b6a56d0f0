package predictor

import (
	"encoding/json"
	"fmt"
	"strings"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
)

// Variant names a predictor family in config and persisted artifacts.
type Variant string

const (
	VariantLinear   Variant = "linear"
	VariantWindowed Variant = "windowed"
	VariantSequence Variant = "sequence"
	VariantHybrid   Variant = "hybrid"
)

func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VariantLinear, VariantWindowed, VariantSequence, VariantHybrid:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrUnknownVariant, s)
}

// Options carries per-variant fitting parameters.
type Options struct {
	LookBack int
	Residual Variant // hybrid only
	Forest   ForestOptions
	Sequence SequenceOptions
}

func (o Options) residual() Variant {
	if o.Residual == "" || o.Residual == VariantHybrid {
		return VariantWindowed
	}
	return o.Residual
}

// Family returns the feature layout variant v consumes.
func (o Options) Family(v Variant) features.Family {
	switch v {
	case VariantSequence:
		return features.FamilySequence
	case VariantHybrid:
		return o.Family(o.residual())
	default:
		return features.FamilyIndicators
	}
}

// Fit trains a predictor of variant v on ts.
func Fit(v Variant, ts features.TrainingSet, opts Options) (service.Predictor, error) {
	switch v {
	case VariantLinear:
		return FitLinear(ts)
	case VariantWindowed:
		return FitForest(ts, opts.Forest)
	case VariantSequence:
		if _, err := checkTrainingSet(ts); err != nil {
			return nil, err
		}
		if opts.LookBack > 0 && len(ts.Inputs[0]) != opts.LookBack {
			return nil, &models.ShapeMismatchError{Want: opts.LookBack, Got: len(ts.Inputs[0])}
		}
		return FitSequence(ts, opts.Sequence)
	case VariantHybrid:
		lookBack := opts.LookBack
		if lookBack <= 0 && len(ts.Inputs) > 0 {
			lookBack = len(ts.Inputs[0])
		}
		return FitHybrid(ts, lookBack, func(r features.TrainingSet) (service.Predictor, error) {
			return Fit(opts.residual(), r, opts)
		})
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownVariant, v)
}

// VariantOf maps a fitted predictor back to its variant name.
func VariantOf(p service.Predictor) (Variant, error) {
	switch p.(type) {
	case *LinearRegressor:
		return VariantLinear, nil
	case *WindowedRegressor:
		return VariantWindowed, nil
	case *SequenceRegressor:
		return VariantSequence, nil
	case *HybridTrendResidual:
		return VariantHybrid, nil
	}
	return "", fmt.Errorf("%w: %T", models.ErrUnknownVariant, p)
}

// Encode serialises predictor state for an artifact.
func Encode(p service.Predictor) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Name(), err)
	}
	return b, nil
}

// Decode restores a predictor of variant v from its encoded state.
func Decode(v Variant, state json.RawMessage) (service.Predictor, error) {
	var p service.Predictor
	switch v {
	case VariantLinear:
		p = &LinearRegressor{}
	case VariantWindowed:
		p = &WindowedRegressor{}
	case VariantSequence:
		p = &SequenceRegressor{}
	case VariantHybrid:
		p = &HybridTrendResidual{}
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownVariant, v)
	}
	if err := json.Unmarshal(state, p); err != nil {
		return nil, fmt.Errorf("decode %s state: %w", v, err)
	}
	return p, nil
}
