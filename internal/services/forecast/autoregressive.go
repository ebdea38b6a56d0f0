package forecast

import (
	"fmt"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
)

// Autoregressive feeds each prediction back as the newest observation.
type Autoregressive struct {
	Builder   features.Builder
	Predictor service.Predictor
}

// Run is the outcome of a multi-step forecast in the normalized domain.
type Run struct {
	Outputs []float64
	Steps   int
}

// Run seeds a vector from the normalized tail and iterates exactly horizon steps.
func (a Autoregressive) Run(tail []float64, horizon int) (Run, error) {
	if horizon <= 0 {
		return Run{}, fmt.Errorf("%w: got %d", models.ErrInvalidHorizon, horizon)
	}
	if a.Predictor.InputWidth() != a.Builder.Width() {
		return Run{}, &models.ShapeMismatchError{Want: a.Predictor.InputWidth(), Got: a.Builder.Width()}
	}
	state, err := a.Builder.LatestVector(tail)
	if err != nil {
		return Run{}, err
	}

	run := Run{Outputs: make([]float64, 0, horizon)}
	for run.Steps < horizon {
		p, err := a.Predictor.Predict(state)
		if err != nil {
			return Run{}, fmt.Errorf("step %d: %w", run.Steps+1, err)
		}
		run.Outputs = append(run.Outputs, p)
		if state, err = a.Builder.Update(state, p); err != nil {
			return Run{}, fmt.Errorf("step %d: %w", run.Steps+1, err)
		}
		run.Steps++
	}
	return run, nil
}
