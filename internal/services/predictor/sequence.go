package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

type SequenceOptions struct {
	Reservoir      int
	SpectralRadius float64
	InputScale     float64
	Density        float64
	Leak           float64
	Ridge          float64
	Seed           int64
}

func (o SequenceOptions) withDefaults() SequenceOptions {
	if o.Reservoir <= 0 {
		o.Reservoir = 64
	}
	if o.SpectralRadius <= 0 {
		o.SpectralRadius = 0.9
	}
	if o.InputScale <= 0 {
		o.InputScale = 1
	}
	if o.Density <= 0 || o.Density > 1 {
		o.Density = 0.2
	}
	if o.Leak <= 0 || o.Leak > 1 {
		o.Leak = 1
	}
	if o.Ridge <= 0 {
		o.Ridge = 1e-6
	}
	return o
}

// SequenceRegressor is an echo state network. The lag window is fed one value
// at a time through a fixed random reservoir and a ridge-regression readout
// maps the final reservoir state (plus the last lag and a bias) to the next value.
type SequenceRegressor struct {
	lookBack int
	size     int
	leak     float64
	win      []float64
	bias     []float64
	w        *mat.Dense
	readout  []float64 // size reservoir weights, last-lag weight, intercept
}

func FitSequence(ts features.TrainingSet, opts SequenceOptions) (*SequenceRegressor, error) {
	width, err := checkTrainingSet(ts)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	s, err := newReservoir(width, opts)
	if err != nil {
		return nil, err
	}

	cols := s.size + 2
	h := mat.NewDense(ts.Len(), cols, nil)
	for i, x := range ts.Inputs {
		s.project(x, h.RawRowView(i))
	}

	var gram mat.SymDense
	gram.SymOuterK(1, h.T())
	for i := 0; i < cols; i++ {
		gram.SetSym(i, i, gram.At(i, i)+opts.Ridge)
	}
	var rhs mat.VecDense
	rhs.MulVec(h.T(), mat.NewVecDense(len(ts.Targets), append([]float64(nil), ts.Targets...)))

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.New("sequence: readout system is not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return nil, fmt.Errorf("sequence: solve readout: %w", err)
	}
	s.readout = make([]float64, cols)
	for i := range s.readout {
		s.readout[i] = w.AtVec(i)
	}
	return s, nil
}

func newReservoir(lookBack int, opts SequenceOptions) (*SequenceRegressor, error) {
	rng := rand.New(rand.NewSource(opts.Seed))
	n := opts.Reservoir
	s := &SequenceRegressor{
		lookBack: lookBack,
		size:     n,
		leak:     opts.Leak,
		win:      make([]float64, n),
		bias:     make([]float64, n),
		w:        mat.NewDense(n, n, nil),
	}
	for i := 0; i < n; i++ {
		s.win[i] = (rng.Float64()*2 - 1) * opts.InputScale
		s.bias[i] = (rng.Float64()*2 - 1) * 0.1
		for j := 0; j < n; j++ {
			if rng.Float64() < opts.Density {
				s.w.Set(i, j, rng.Float64()*2-1)
			}
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(s.w, mat.EigenNone); !ok {
		return nil, errors.New("sequence: reservoir eigendecomposition failed")
	}
	radius := 0.0
	for _, v := range eig.Values(nil) {
		radius = math.Max(radius, cmplx.Abs(v))
	}
	if radius > 0 {
		s.w.Scale(opts.SpectralRadius/radius, s.w)
	}
	return s, nil
}

// project runs x through the reservoir and writes [state..., x_last, 1] into dst.
func (s *SequenceRegressor) project(x []float64, dst []float64) {
	state := mat.NewVecDense(s.size, nil)
	var pre mat.VecDense
	for _, u := range x {
		pre.MulVec(s.w, state)
		for i := 0; i < s.size; i++ {
			a := math.Tanh(pre.AtVec(i) + s.win[i]*u + s.bias[i])
			state.SetVec(i, (1-s.leak)*state.AtVec(i)+s.leak*a)
		}
	}
	for i := 0; i < s.size; i++ {
		dst[i] = state.AtVec(i)
	}
	dst[s.size] = x[len(x)-1]
	dst[s.size+1] = 1
}

func (s *SequenceRegressor) Name() string    { return "SequenceRegressor" }
func (s *SequenceRegressor) InputWidth() int { return s.lookBack }

func (s *SequenceRegressor) Predict(x []float64) (float64, error) {
	if len(x) != s.lookBack {
		return 0, &models.ShapeMismatchError{Want: s.lookBack, Got: len(x)}
	}
	h := make([]float64, s.size+2)
	s.project(x, h)
	out := 0.0
	for i, v := range h {
		out += v * s.readout[i]
	}
	return out, nil
}

type sequenceState struct {
	LookBack int       `json:"look_back"`
	Size     int       `json:"size"`
	Leak     float64   `json:"leak"`
	Win      []float64 `json:"win"`
	Bias     []float64 `json:"bias"`
	W        []float64 `json:"w"`
	Readout  []float64 `json:"readout"`
}

func (s *SequenceRegressor) MarshalJSON() ([]byte, error) {
	return json.Marshal(sequenceState{
		LookBack: s.lookBack,
		Size:     s.size,
		Leak:     s.leak,
		Win:      s.win,
		Bias:     s.bias,
		W:        s.w.RawMatrix().Data,
		Readout:  s.readout,
	})
}

func (s *SequenceRegressor) UnmarshalJSON(b []byte) error {
	var st sequenceState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	n := st.Size
	if st.LookBack <= 0 || n <= 0 || len(st.Win) != n || len(st.Bias) != n ||
		len(st.W) != n*n || len(st.Readout) != n+2 {
		return fmt.Errorf("sequence: inconsistent state for reservoir size %d", n)
	}
	*s = SequenceRegressor{
		lookBack: st.LookBack,
		size:     n,
		leak:     st.Leak,
		win:      st.Win,
		bias:     st.Bias,
		w:        mat.NewDense(n, n, st.W),
		readout:  st.Readout,
	}
	return nil
}
