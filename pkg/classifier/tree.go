// pkg/classifier/tree.go
package classifier

import (
	"fmt"
	"sort"
)

const leafNode = -1

// DecisionTree is a CART classifier using Gini impurity. Nodes are stored
// in a flat slice so the fitted tree serialises as plain JSON.
type DecisionTree struct {
	MaxDepth        int `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`

	NFeatures int        `json:"n_features,omitempty"`
	Nodes     []treeNode `json:"nodes,omitempty"`
}

// treeNode is a split (x[Feature] <= Threshold goes Left) or a leaf
// holding the fraction of label 1 among its training rows.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
}

// NewDecisionTree returns a tree with default hyperparameters
func NewDecisionTree() *DecisionTree {
	return &DecisionTree{
		MaxDepth:        5,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (t *DecisionTree) Name() string { return EstimatorTree }

// Clone returns an unfitted copy
func (t *DecisionTree) Clone() Estimator {
	return &DecisionTree{
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		MinSamplesLeaf:  t.MinSamplesLeaf,
	}
}

// Fit grows the tree
func (t *DecisionTree) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	t.NFeatures = len(X[0])
	t.Nodes = t.Nodes[:0]

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	t.grow(X, y, indices, 0)
	return nil
}

// grow appends the subtree for indices and returns its root position
func (t *DecisionTree) grow(X [][]float64, y []int, indices []int, depth int) int {
	positives := 0
	for _, i := range indices {
		positives += y[i]
	}
	n := len(indices)

	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{
		Feature: leafNode,
		Left:    leafNode,
		Right:   leafNode,
		Value:   float64(positives) / float64(n),
		Samples: n,
	})

	pure := positives == 0 || positives == n
	if pure || n < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return pos
	}

	feature, threshold, ok := t.bestSplit(X, y, indices, positives)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftPos := t.grow(X, y, left, depth+1)
	rightPos := t.grow(X, y, right, depth+1)

	t.Nodes[pos].Feature = feature
	t.Nodes[pos].Threshold = threshold
	t.Nodes[pos].Left = leftPos
	t.Nodes[pos].Right = rightPos
	return pos
}

// bestSplit finds the split with the lowest weighted Gini impurity. Only
// splits that strictly reduce impurity are accepted; the first best split
// found wins ties.
func (t *DecisionTree) bestSplit(X [][]float64, y []int, indices []int, positives int) (int, float64, bool) {
	n := len(indices)
	best := gini(positives, n)
	bestFeature, bestThreshold, found := 0, 0.0, false

	minLeaf := t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	sorted := make([]int, n)
	for f := 0; f < t.NFeatures; f++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X[sorted[a]][f] < X[sorted[b]][f]
		})

		leftPos := 0
		for k := 1; k < n; k++ {
			leftPos += y[sorted[k-1]]
			lo, hi := X[sorted[k-1]][f], X[sorted[k]][f]
			if lo == hi || k < minLeaf || n-k < minLeaf {
				continue
			}

			impurity := (float64(k)*gini(leftPos, k) + float64(n-k)*gini(positives-leftPos, n-k)) / float64(n)
			if impurity < best {
				best = impurity
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func gini(positives, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(positives) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}

// PredictProba returns the leaf value reached by each row
func (t *DecisionTree) PredictProba(X [][]float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != t.NFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), t.NFeatures)
		}
		node := t.Nodes[0]
		for node.Feature != leafNode {
			if row[node.Feature] <= node.Threshold {
				node = t.Nodes[node.Left]
			} else {
				node = t.Nodes[node.Right]
			}
		}
		out[i] = node.Value
	}
	return out, nil
}
