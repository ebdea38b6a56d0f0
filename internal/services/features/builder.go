package features

import (
	"fmt"

	"PriceCast/internal/domain/models"
)

// Family selects the feature layout.
type Family string

const (
	// FamilyIndicators is the lag window followed by SMA-short, SMA-long,
	// momentum and volatility.
	FamilyIndicators Family = "indicators"
	// FamilySequence is the lag window only, for recurrent models.
	FamilySequence Family = "sequence"
)

// Vector is one fixed-width feature vector in the normalized domain.
type Vector []float64

// TrainingSet holds supervised pairs: Inputs[i] predicts Targets[i].
type TrainingSet struct {
	Inputs  []Vector
	Targets []float64
}

func (ts TrainingSet) Len() int { return len(ts.Targets) }

// Subset returns the pairs at idx, sharing the vectors.
func (ts TrainingSet) Subset(idx []int) TrainingSet {
	out := TrainingSet{Inputs: make([]Vector, len(idx)), Targets: make([]float64, len(idx))}
	for k, i := range idx {
		out.Inputs[k] = ts.Inputs[i]
		out.Targets[k] = ts.Targets[i]
	}
	return out
}

// Append concatenates other onto ts.
func (ts TrainingSet) Append(other TrainingSet) TrainingSet {
	return TrainingSet{
		Inputs:  append(ts.Inputs, other.Inputs...),
		Targets: append(ts.Targets, other.Targets...),
	}
}

// Builder turns normalized series into feature vectors.
type Builder struct {
	Family   Family
	LookBack int
}

func NewBuilder(family Family, lookBack int) (Builder, error) {
	if lookBack < 1 {
		return Builder{}, fmt.Errorf("look-back must be at least 1, got %d", lookBack)
	}
	switch family {
	case FamilyIndicators, FamilySequence:
	default:
		return Builder{}, fmt.Errorf("unknown feature family %q", family)
	}
	return Builder{Family: family, LookBack: lookBack}, nil
}

// Width is the length of every vector this builder produces.
func (b Builder) Width() int {
	if b.Family == FamilyIndicators {
		return b.LookBack + IndicatorCount
	}
	return b.LookBack
}

// TrainingPairs builds one pair per window [i, i+LookBack) with target series[i+LookBack].
func (b Builder) TrainingPairs(series []float64) (TrainingSet, error) {
	if len(series) < b.LookBack+1 {
		return TrainingSet{}, fmt.Errorf("%w: need at least %d points for look-back %d, got %d",
			models.ErrInsufficientData, b.LookBack+1, b.LookBack, len(series))
	}
	n := len(series) - b.LookBack
	ts := TrainingSet{Inputs: make([]Vector, n), Targets: make([]float64, n)}
	for i := 0; i < n; i++ {
		ts.Inputs[i] = b.vectorAt(series, i)
		ts.Targets[i] = series[i+b.LookBack]
	}
	return ts, nil
}

// LatestVector builds the vector for the final window, used to seed forecasting.
func (b Builder) LatestVector(series []float64) (Vector, error) {
	if len(series) < b.LookBack {
		return nil, fmt.Errorf("%w: need at least %d points for look-back %d, got %d",
			models.ErrInsufficientData, b.LookBack, b.LookBack, len(series))
	}
	return b.vectorAt(series, len(series)-b.LookBack), nil
}

// Update shifts the lag window left, appends next and recomputes the derived
// values on the shifted window. The input vector is left untouched.
func (b Builder) Update(v Vector, next float64) (Vector, error) {
	if len(v) != b.Width() {
		return nil, &models.ShapeMismatchError{Want: b.Width(), Got: len(v)}
	}
	window := make([]float64, b.LookBack, b.Width())
	copy(window, v[1:b.LookBack])
	window[b.LookBack-1] = next
	if b.Family == FamilySequence {
		return window, nil
	}
	return appendIndicators(window, window, windowMomentum(window)), nil
}

func (b Builder) vectorAt(series []float64, i int) Vector {
	v := make(Vector, b.LookBack, b.Width())
	copy(v, series[i:i+b.LookBack])
	if b.Family == FamilySequence {
		return v
	}
	return appendIndicators(v, v[:b.LookBack], seriesMomentum(series, i, b.LookBack))
}
