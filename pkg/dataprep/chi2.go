// pkg/dataprep/chi2.go
package dataprep

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNegativeInput is returned when chi-squared scoring sees a negative value
var ErrNegativeInput = errors.New("chi-squared input must be non-negative")

// Chi2 scores each feature of X (row-major) against the class labels y, which
// index into nClasses classes. For every feature the observed per-class sums
// are compared with the sums expected from the class frequencies. A feature
// that is zero everywhere scores NaN.
func Chi2(X [][]float64, y []int, nClasses int) (scores, pvalues []float64, err error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("X has %d rows, y has %d", len(X), len(y))
	}
	if len(X) == 0 {
		return nil, nil, errors.New("chi-squared needs at least one row")
	}

	nFeatures := len(X[0])
	observed := make([][]float64, nClasses)
	for c := range observed {
		observed[c] = make([]float64, nFeatures)
	}
	featureSum := make([]float64, nFeatures)
	classCount := make([]float64, nClasses)

	for i, row := range X {
		c := y[i]
		if c < 0 || c >= nClasses {
			return nil, nil, fmt.Errorf("label %d out of range for %d classes", c, nClasses)
		}
		classCount[c]++
		for j, v := range row {
			if v < 0 {
				return nil, nil, fmt.Errorf("%w: row %d, feature %d = %v", ErrNegativeInput, i, j, v)
			}
			observed[c][j] += v
			featureSum[j] += v
		}
	}

	n := float64(len(X))
	scores = make([]float64, nFeatures)
	pvalues = make([]float64, nFeatures)
	dist := distuv.ChiSquared{K: float64(nClasses - 1)}

	for j := 0; j < nFeatures; j++ {
		var stat float64
		for c := 0; c < nClasses; c++ {
			expected := classCount[c] / n * featureSum[j]
			diff := observed[c][j] - expected
			stat += diff * diff / expected
		}
		scores[j] = stat
		if nClasses < 2 || math.IsNaN(stat) {
			pvalues[j] = math.NaN()
		} else {
			pvalues[j] = dist.Survival(stat)
		}
	}

	return scores, pvalues, nil
}

// SelectKBest keeps the k features with the highest chi-squared scores
type SelectKBest struct {
	K         int   `json:"k"`
	NFeatures int   `json:"n_features"`
	Support   []int `json:"support"` // selected feature indices, ascending

	Scores  []float64 `json:"-"`
	PValues []float64 `json:"-"`

	logger *zap.Logger
}

// NewSelectKBest creates a selector for the top k features
func NewSelectKBest(k int, logger *zap.Logger) *SelectKBest {
	if logger == nil {
		logger = zap.L()
	}
	return &SelectKBest{K: k, logger: logger.Named("select-k-best")}
}

// Fit scores the features and records which ones are kept
func (s *SelectKBest) Fit(X [][]float64, y []int, nClasses int) error {
	scores, pvalues, err := Chi2(X, y, nClasses)
	if err != nil {
		return err
	}
	s.Scores = scores
	s.PValues = pvalues
	s.NFeatures = len(scores)
	s.Support = topK(scores, s.K)

	if s.K > s.NFeatures && s.logger != nil {
		s.logger.Warn("k is greater than the number of features, all features are kept",
			zap.Int("k", s.K),
			zap.Int("n_features", s.NFeatures))
	}
	return nil
}

// topK returns the ascending indices of the k best scores. Scores are ranked
// with a stable ascending sort and the last k are taken, so among equal
// scores the later feature wins. NaN ranks below every number.
func topK(scores []float64, k int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	clean := func(v float64) float64 {
		if math.IsNaN(v) {
			return -math.MaxFloat64
		}
		return v
	}
	sort.SliceStable(order, func(a, b int) bool {
		return clean(scores[order[a]]) < clean(scores[order[b]])
	})

	if k > len(order) {
		k = len(order)
	}
	if k < 0 {
		k = 0
	}
	selected := make([]int, k)
	copy(selected, order[len(order)-k:])
	sort.Ints(selected)
	return selected
}

// Transform keeps the selected columns of X
func (s *SelectKBest) Transform(X [][]float64) ([][]float64, error) {
	if s.Support == nil {
		return nil, ErrNotFitted
	}

	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != s.NFeatures {
			return nil, fmt.Errorf("row %d has %d features, selector was fitted on %d", i, len(row), s.NFeatures)
		}
		kept := make([]float64, len(s.Support))
		for j, idx := range s.Support {
			kept[j] = row[idx]
		}
		out[i] = kept
	}
	return out, nil
}

// SelectedNames returns the names of the kept features
func (s *SelectKBest) SelectedNames(names []string) []string {
	out := make([]string, 0, len(s.Support))
	for _, idx := range s.Support {
		if idx < len(names) {
			out = append(out, names[idx])
		}
	}
	return out
}
