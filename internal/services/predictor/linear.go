package predictor

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

// singular values below rcond*max(s) are treated as zero
const rcond = 1e-10

// LinearRegressor is ordinary least squares with an intercept. Collinear
// features (the moving averages are combinations of the lags) are resolved by
// taking the minimum-norm solution.
type LinearRegressor struct {
	weights   []float64
	intercept float64
}

func FitLinear(ts features.TrainingSet) (*LinearRegressor, error) {
	width, err := checkTrainingSet(ts)
	if err != nil {
		return nil, err
	}
	n, cols := ts.Len(), width+1

	a := mat.NewDense(n, cols, nil)
	for i, x := range ts.Inputs {
		row := a.RawRowView(i)
		copy(row, x)
		row[width] = 1
	}
	y := mat.NewVecDense(n, append([]float64(nil), ts.Targets...))

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("linear: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	cut := rcond * s[0]
	for i, sv := range s {
		if sv > cut {
			uty.SetVec(i, uty.AtVec(i)/sv)
		} else {
			uty.SetVec(i, 0)
		}
	}
	var w mat.VecDense
	w.MulVec(&v, &uty)

	coef := make([]float64, cols)
	for i := range coef {
		coef[i] = w.AtVec(i)
	}
	return &LinearRegressor{weights: coef[:width], intercept: coef[width]}, nil
}

func (l *LinearRegressor) Name() string    { return "LinearRegressor" }
func (l *LinearRegressor) InputWidth() int { return len(l.weights) }

func (l *LinearRegressor) Predict(x []float64) (float64, error) {
	if len(x) != len(l.weights) {
		return 0, &models.ShapeMismatchError{Want: len(l.weights), Got: len(x)}
	}
	return floats.Dot(l.weights, x) + l.intercept, nil
}

type linearState struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

func (l *LinearRegressor) MarshalJSON() ([]byte, error) {
	return json.Marshal(linearState{Weights: l.weights, Intercept: l.intercept})
}

func (l *LinearRegressor) UnmarshalJSON(b []byte) error {
	var st linearState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if len(st.Weights) == 0 {
		return fmt.Errorf("linear: state has no weights")
	}
	l.weights, l.intercept = st.Weights, st.Intercept
	return nil
}

// checkTrainingSet validates a non-empty set of equal-width vectors and returns the width.
func checkTrainingSet(ts features.TrainingSet) (int, error) {
	if ts.Len() == 0 || len(ts.Inputs) != ts.Len() {
		return 0, fmt.Errorf("%w: training set has %d inputs and %d targets",
			models.ErrInsufficientData, len(ts.Inputs), ts.Len())
	}
	width := len(ts.Inputs[0])
	if width == 0 {
		return 0, &models.ShapeMismatchError{Want: 1, Got: 0}
	}
	for _, x := range ts.Inputs[1:] {
		if len(x) != width {
			return 0, &models.ShapeMismatchError{Want: width, Got: len(x)}
		}
	}
	return width, nil
}
