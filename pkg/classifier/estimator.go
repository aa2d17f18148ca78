// pkg/classifier/estimator.go
package classifier

import (
	"errors"
	"fmt"
)

// Estimator names accepted by NewEstimator
const (
	EstimatorLogistic = "logistic"
	EstimatorTree     = "tree"
)

var (
	// ErrNotBinary is returned when the target does not have exactly two classes
	ErrNotBinary = errors.New("target must have exactly two classes")

	// ErrNotFitted is returned when predicting with an unfitted model
	ErrNotFitted = errors.New("model is not fitted")
)

// Estimator is a binary classifier over a dense feature matrix. Labels are
// 0 or 1 and PredictProba returns the probability of label 1 for each row.
type Estimator interface {
	Name() string
	Fit(X [][]float64, y []int) error
	PredictProba(X [][]float64) ([]float64, error)

	// Clone returns an unfitted estimator with the same hyperparameters
	Clone() Estimator
}

// NewEstimator returns an unfitted estimator with default hyperparameters
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case EstimatorLogistic:
		return NewLogisticRegression(), nil
	case EstimatorTree:
		return NewDecisionTree(), nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
}

func checkShape(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("cannot fit on an empty dataset")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X has %d rows, y has %d", len(X), len(y))
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("label %d at row %d is not binary", label, i)
		}
	}
	return nil
}
