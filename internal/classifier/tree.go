package classifier

import (
	"math/rand"
	"slices"
)

// minGain is the smallest impurity decrease accepted for a split.
const minGain = 1e-12

// node is an entry in a flattened regression tree. Leaves have Feature < 0.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) leaf(x []float64) int {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

func (t *tree) predict(x []float64) float64 {
	return t.Nodes[t.leaf(x)].Value
}

type treeConfig struct {
	maxDepth        int // 0 is unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // features considered per split
}

// grower builds a CART regression tree minimizing squared error. On 0/1
// targets the split ordering equals gini, and leaf values are class-1 rates.
type grower struct {
	X          [][]float64
	target     []float64
	cfg        treeConfig
	rng        *rand.Rand
	importance []float64
	t          *tree
}

// growTree fits a tree on the samples in idx. Impurity decreases are added to
// importance per feature.
func growTree(X [][]float64, target []float64, idx []int, cfg treeConfig, rng *rand.Rand, importance []float64) *tree {
	g := &grower{X: X, target: target, cfg: cfg, rng: rng, importance: importance, t: &tree{}}
	g.grow(idx, 0)
	return g.t
}

type candidate struct {
	feature   int
	threshold float64
	gain      float64
	pos       int
	order     []int
}

func (g *grower) grow(idx []int, depth int) int {
	n := len(idx)
	sum, sq := 0.0, 0.0
	for _, i := range idx {
		v := g.target[i]
		sum += v
		sq += v * v
	}
	id := len(g.t.Nodes)
	g.t.Nodes = append(g.t.Nodes, node{Feature: -1, Value: sum / float64(n)})

	if g.cfg.maxDepth > 0 && depth >= g.cfg.maxDepth {
		return id
	}
	if n < g.cfg.minSamplesSplit || n < 2*g.cfg.minSamplesLeaf {
		return id
	}
	parent := sq - sum*sum/float64(n)
	if parent <= minGain {
		return id
	}

	best := candidate{feature: -1, gain: minGain}
	for _, f := range g.features() {
		g.bestSplit(idx, f, parent, &best)
	}
	if best.feature < 0 {
		return id
	}

	g.importance[best.feature] += best.gain
	left := slices.Clone(best.order[:best.pos])
	right := slices.Clone(best.order[best.pos:])
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.t.Nodes[id] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r, Value: g.t.Nodes[id].Value}
	return id
}

func (g *grower) features() []int {
	p := len(g.X[0])
	k := g.cfg.maxFeatures
	if k <= 0 || k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return g.rng.Perm(p)[:k]
}

func (g *grower) bestSplit(idx []int, f int, parent float64, best *candidate) {
	order := slices.Clone(idx)
	slices.SortStableFunc(order, func(a, b int) int {
		switch va, vb := g.X[a][f], g.X[b][f]; {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	})

	n := len(order)
	total, totalSq := 0.0, 0.0
	for _, i := range order {
		total += g.target[i]
		totalSq += g.target[i] * g.target[i]
	}

	ls, lsq := 0.0, 0.0
	minLeaf := max(1, g.cfg.minSamplesLeaf)
	for k := 1; k < n; k++ {
		v := g.target[order[k-1]]
		ls += v
		lsq += v * v
		lo, hi := g.X[order[k-1]][f], g.X[order[k]][f]
		if lo == hi || k < minLeaf || n-k < minLeaf {
			continue
		}
		rs, rsq := total-ls, totalSq-lsq
		nl, nr := float64(k), float64(n-k)
		gain := parent - (lsq - ls*ls/nl) - (rsq - rs*rs/nr)
		if gain > best.gain {
			*best = candidate{feature: f, threshold: (lo + hi) / 2, gain: gain, pos: k, order: order}
		}
	}
}
