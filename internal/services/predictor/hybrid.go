package predictor

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
)

// HybridTrendResidual adds a local linear drift, extrapolated from the lag
// window, to a residual model fit on what the drift does not explain.
type HybridTrendResidual struct {
	lookBack int
	residual service.Predictor
}

func FitHybrid(ts features.TrainingSet, lookBack int, fitResidual func(features.TrainingSet) (service.Predictor, error)) (*HybridTrendResidual, error) {
	width, err := checkTrainingSet(ts)
	if err != nil {
		return nil, err
	}
	if lookBack < 1 || lookBack > width {
		return nil, &models.ShapeMismatchError{Want: lookBack, Got: width}
	}
	detrended := features.TrainingSet{Inputs: ts.Inputs, Targets: make([]float64, ts.Len())}
	for i, x := range ts.Inputs {
		detrended.Targets[i] = ts.Targets[i] - trendStep(x[:lookBack])
	}
	residual, err := fitResidual(detrended)
	if err != nil {
		return nil, fmt.Errorf("hybrid residual: %w", err)
	}
	return &HybridTrendResidual{lookBack: lookBack, residual: residual}, nil
}

// trendStep fits a least-squares line through lags at t=0..n-1 and evaluates it at t=n.
func trendStep(lags []float64) float64 {
	if len(lags) == 1 {
		return lags[0]
	}
	t := make([]float64, len(lags))
	for i := range t {
		t[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(t, lags, nil, false)
	return alpha + beta*float64(len(lags))
}

func (h *HybridTrendResidual) Name() string    { return "HybridTrendResidual" }
func (h *HybridTrendResidual) InputWidth() int { return h.residual.InputWidth() }

func (h *HybridTrendResidual) Predict(x []float64) (float64, error) {
	if len(x) != h.InputWidth() {
		return 0, &models.ShapeMismatchError{Want: h.InputWidth(), Got: len(x)}
	}
	r, err := h.residual.Predict(x)
	if err != nil {
		return 0, err
	}
	return trendStep(x[:h.lookBack]) + r, nil
}

type hybridState struct {
	LookBack int             `json:"look_back"`
	Residual Variant         `json:"residual"`
	State    json.RawMessage `json:"state"`
}

func (h *HybridTrendResidual) MarshalJSON() ([]byte, error) {
	v, err := VariantOf(h.residual)
	if err != nil {
		return nil, err
	}
	state, err := json.Marshal(h.residual)
	if err != nil {
		return nil, err
	}
	return json.Marshal(hybridState{LookBack: h.lookBack, Residual: v, State: state})
}

func (h *HybridTrendResidual) UnmarshalJSON(b []byte) error {
	var st hybridState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if st.Residual == VariantHybrid {
		return fmt.Errorf("hybrid: residual cannot itself be hybrid")
	}
	residual, err := Decode(st.Residual, st.State)
	if err != nil {
		return fmt.Errorf("hybrid residual: %w", err)
	}
	if st.LookBack < 1 || st.LookBack > residual.InputWidth() {
		return fmt.Errorf("hybrid: look-back %d exceeds residual width %d", st.LookBack, residual.InputWidth())
	}
	h.lookBack, h.residual = st.LookBack, residual
	return nil
}
