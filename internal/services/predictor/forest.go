package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/features"
)

type ForestOptions struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // 0 picks sqrt(width)
	Seed           int64
}

func (o ForestOptions) withDefaults() ForestOptions {
	if o.Trees <= 0 {
		o.Trees = 200
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 20
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = 1
	}
	return o
}

// WindowedRegressor is a random forest over windowed feature vectors: each
// tree is grown on a bootstrap sample with per-split feature subsampling and
// predictions are averaged.
type WindowedRegressor struct {
	width int
	trees []*regressionTree
}

// FitForest grows the ensemble. Tree seeds are drawn up front from opts.Seed
// so the result does not depend on goroutine scheduling.
func FitForest(ts features.TrainingSet, opts ForestOptions) (*WindowedRegressor, error) {
	width, err := checkTrainingSet(ts)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	mtry := opts.MaxFeatures
	if mtry <= 0 || mtry > width {
		mtry = max(1, int(math.Sqrt(float64(width))))
	}

	master := rand.New(rand.NewSource(opts.Seed))
	seeds := make([]int64, opts.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*regressionTree, opts.Trees)
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[i]))
			n := ts.Len()
			sample := make([]int, n)
			for k := range sample {
				sample[k] = rng.Intn(n)
			}
			grower := &treeGrower{
				inputs:   ts.Inputs,
				targets:  ts.Targets,
				rng:      rng,
				width:    width,
				mtry:     mtry,
				maxDepth: opts.MaxDepth,
				minLeaf:  opts.MinSamplesLeaf,
			}
			trees[i] = grower.grow(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &WindowedRegressor{width: width, trees: trees}, nil
}

func (f *WindowedRegressor) Name() string    { return "WindowedRegressor" }
func (f *WindowedRegressor) InputWidth() int { return f.width }

func (f *WindowedRegressor) Predict(x []float64) (float64, error) {
	if len(x) != f.width {
		return 0, &models.ShapeMismatchError{Want: f.width, Got: len(x)}
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees)), nil
}

type forestState struct {
	Width int               `json:"width"`
	Trees []*regressionTree `json:"trees"`
}

func (f *WindowedRegressor) MarshalJSON() ([]byte, error) {
	return json.Marshal(forestState{Width: f.width, Trees: f.trees})
}

func (f *WindowedRegressor) UnmarshalJSON(b []byte) error {
	var st forestState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if st.Width <= 0 || len(st.Trees) == 0 {
		return fmt.Errorf("forest: state has width %d and %d trees", st.Width, len(st.Trees))
	}
	for i, t := range st.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d is empty", i)
		}
	}
	f.width, f.trees = st.Width, st.Trees
	return nil
}
