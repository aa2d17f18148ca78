// pkg/classifier/logistic.go
package classifier

import (
	"fmt"
	"math"
)

// LogisticRegression is a binary logistic regression trained with batch
// gradient descent on standardised inputs and an L2 penalty of 1/C.
type LogisticRegression struct {
	LearningRate float64 `json:"learning_rate"`
	MaxIter      int     `json:"max_iter"`
	C            float64 `json:"c"`
	Tol          float64 `json:"tol"`

	Mean    []float64 `json:"mean,omitempty"`
	Scale   []float64 `json:"scale,omitempty"`
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias"`
}

// NewLogisticRegression returns a model with default hyperparameters
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.1,
		MaxIter:      1000,
		C:            1.0,
		Tol:          1e-6,
	}
}

func (m *LogisticRegression) Name() string { return EstimatorLogistic }

// Clone returns an unfitted copy
func (m *LogisticRegression) Clone() Estimator {
	return &LogisticRegression{
		LearningRate: m.LearningRate,
		MaxIter:      m.MaxIter,
		C:            m.C,
		Tol:          m.Tol,
	}
}

// Fit learns the weights. Starting from zero weights keeps training deterministic.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	nFeatures := len(X[0])
	n := float64(len(X))

	m.Mean, m.Scale = standardScaler(X, nFeatures)
	Xs := m.standardise(X)

	m.Weights = make([]float64, nFeatures)
	m.Bias = 0

	gradW := make([]float64, nFeatures)
	for iter := 0; iter < m.MaxIter; iter++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i, row := range Xs {
			d := sigmoid(m.linear(row)) - float64(y[i])
			for j, v := range row {
				gradW[j] += d * v
			}
			gradB += d
		}

		maxGrad := math.Abs(gradB / n)
		for j := range m.Weights {
			g := gradW[j]/n + m.Weights[j]/(m.C*n)
			maxGrad = math.Max(maxGrad, math.Abs(g))
			m.Weights[j] -= m.LearningRate * g
		}
		m.Bias -= m.LearningRate * gradB / n

		if maxGrad < m.Tol {
			break
		}
	}
	return nil
}

// PredictProba returns P(y=1) for each row
func (m *LogisticRegression) PredictProba(X [][]float64) ([]float64, error) {
	if m.Weights == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), len(m.Weights))
		}
		out[i] = sigmoid(m.linear(m.standardiseRow(row)))
	}
	return out, nil
}

func (m *LogisticRegression) linear(row []float64) float64 {
	z := m.Bias
	for j, v := range row {
		z += m.Weights[j] * v
	}
	return z
}

func (m *LogisticRegression) standardise(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = m.standardiseRow(row)
	}
	return out
}

func (m *LogisticRegression) standardiseRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - m.Mean[j]) / m.Scale[j]
	}
	return out
}

// standardScaler returns per-feature mean and standard deviation. Constant
// features get a scale of 1.
func standardScaler(X [][]float64, nFeatures int) ([]float64, []float64) {
	n := float64(len(X))
	mean := make([]float64, nFeatures)
	scale := make([]float64, nFeatures)

	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
