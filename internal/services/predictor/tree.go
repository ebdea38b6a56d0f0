package predictor

import (
	"math/rand"
	"sort"

	"PriceCast/internal/services/features"
)

const leaf = -1

type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// regressionTree is a CART tree stored as a flat node slice; node 0 is the root.
type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeGrower struct {
	inputs   []features.Vector
	targets  []float64
	rng      *rand.Rand
	width    int
	mtry     int
	maxDepth int
	minLeaf  int
	nodes    []treeNode
}

func (g *treeGrower) grow(idx []int) *regressionTree {
	g.nodes = g.nodes[:0]
	g.split(idx, 0)
	return &regressionTree{Nodes: g.nodes}
}

func (g *treeGrower) split(idx []int, depth int) int {
	id := len(g.nodes)
	sum := 0.0
	for _, i := range idx {
		sum += g.targets[i]
	}
	mean := sum / float64(len(idx))
	g.nodes = append(g.nodes, treeNode{Feature: leaf, Value: mean})

	if (g.maxDepth > 0 && depth >= g.maxDepth) || len(idx) < 2*g.minLeaf {
		return id
	}
	feature, threshold, ok := g.bestSplit(idx, sum)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if g.inputs[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.split(left, depth+1)
	r := g.split(right, depth+1)
	g.nodes[id] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return id
}

// bestSplit maximises sL²/nL + sR²/nR, equivalent to minimising the summed
// squared error of the children, over a random subset of mtry features.
func (g *treeGrower) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	parent := total * total / float64(n)
	best := parent + 1e-12
	bestFeature, bestThreshold, found := 0, 0.0, false

	sorted := make([]int, n)
	for _, f := range g.rng.Perm(g.width)[:g.mtry] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return g.inputs[sorted[a]][f] < g.inputs[sorted[b]][f]
		})

		sumLeft := 0.0
		for k := 1; k < n; k++ {
			sumLeft += g.targets[sorted[k-1]]
			if k < g.minLeaf || n-k < g.minLeaf {
				continue
			}
			lo, hi := g.inputs[sorted[k-1]][f], g.inputs[sorted[k]][f]
			if lo == hi {
				continue
			}
			sumRight := total - sumLeft
			score := sumLeft*sumLeft/float64(k) + sumRight*sumRight/float64(n-k)
			if score > best {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best, bestFeature, bestThreshold, found = score, f, threshold, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
