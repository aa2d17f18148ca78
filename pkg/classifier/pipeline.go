// pkg/classifier/pipeline.go
package classifier

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/dataprep"
	"github.com/David-Botos/credit-risk/pkg/model"
)

// Pipeline chains the column transformer, the chi-squared selector and an
// estimator, and maps the string target onto its two sorted classes.
type Pipeline struct {
	Classes      []string
	Preprocessor *dataprep.ColumnTransformer
	Selector     *dataprep.SelectKBest
	Estimator    Estimator
}

// NewPipeline creates an unfitted pipeline
func NewPipeline(preprocessor *dataprep.ColumnTransformer, selector *dataprep.SelectKBest, estimator Estimator) *Pipeline {
	return &Pipeline{
		Preprocessor: preprocessor,
		Selector:     selector,
		Estimator:    estimator,
	}
}

// Clone returns an unfitted pipeline with the same configuration
func (p *Pipeline) Clone() *Pipeline {
	pre := &dataprep.ColumnTransformer{
		Categorical: append([]string(nil), p.Preprocessor.Categorical...),
		Numerical:   append([]string(nil), p.Preprocessor.Numerical...),
		Encoder:     &dataprep.OrdinalEncoder{},
	}
	return NewPipeline(pre, dataprep.NewSelectKBest(p.Selector.K, zap.L()), p.Estimator.Clone())
}

// Fit learns the label classes, the encoder categories, the selected
// features and the estimator
func (p *Pipeline) Fit(X *model.Dataset, y []string) error {
	if X.Len() != len(y) {
		return fmt.Errorf("X has %d rows, y has %d", X.Len(), len(y))
	}

	classes := uniqueSorted(y)
	if len(classes) != 2 {
		return fmt.Errorf("%w: got %d (%v)", ErrNotBinary, len(classes), classes)
	}
	p.Classes = classes

	labels := make([]int, len(y))
	for i, v := range y {
		if v == classes[1] {
			labels[i] = 1
		}
	}

	features, err := p.Preprocessor.FitTransform(X)
	if err != nil {
		return fmt.Errorf("failed to fit preprocessor: %w", err)
	}

	if err := p.Selector.Fit(features, labels, len(classes)); err != nil {
		return fmt.Errorf("failed to fit feature selector: %w", err)
	}
	selected, err := p.Selector.Transform(features)
	if err != nil {
		return err
	}

	if err := p.Estimator.Fit(selected, labels); err != nil {
		return fmt.Errorf("failed to fit %s estimator: %w", p.Estimator.Name(), err)
	}
	return nil
}

// PredictProba returns, for each row, the probabilities of the first and
// second sorted class
func (p *Pipeline) PredictProba(X *model.Dataset) ([][2]float64, error) {
	if p.Classes == nil {
		return nil, ErrNotFitted
	}

	features, err := p.Preprocessor.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("failed to transform features: %w", err)
	}
	selected, err := p.Selector.Transform(features)
	if err != nil {
		return nil, err
	}

	positive, err := p.Estimator.PredictProba(selected)
	if err != nil {
		return nil, err
	}

	out := make([][2]float64, len(positive))
	for i, v := range positive {
		out[i] = [2]float64{1 - v, v}
	}
	return out, nil
}

// Predict returns the predicted class label for each row
func (p *Pipeline) Predict(X *model.Dataset) ([]string, error) {
	proba, err := p.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return p.Labels(proba), nil
}

// Labels maps probabilities from PredictProba to class labels
func (p *Pipeline) Labels(proba [][2]float64) []string {
	out := make([]string, len(proba))
	for i, pr := range proba {
		if pr[1] > 0.5 {
			out[i] = p.Classes[1]
		} else {
			out[i] = p.Classes[0]
		}
	}
	return out
}

// SelectedFeatures returns the names of the features the estimator sees
func (p *Pipeline) SelectedFeatures() []string {
	return p.Selector.SelectedNames(p.Preprocessor.FeatureNamesOut())
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
