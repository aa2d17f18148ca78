// pkg/dataprep/transformer.go
package dataprep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrNotNumeric is returned when a passthrough column holds a non-numeric cell
var ErrNotNumeric = errors.New("value is not numeric")

// ColumnTransformer ordinal-encodes the categorical columns and passes the
// numerical columns through. Output columns are the categorical columns in
// feature order followed by the numerical columns in configured order. Any
// other input column is dropped.
type ColumnTransformer struct {
	Categorical []string        `json:"categorical"`
	Numerical   []string        `json:"numerical"`
	Encoder     *OrdinalEncoder `json:"encoder"`
}

// CreateDataPreprocessor builds an unfitted transformer for the given feature
// columns. Every numerical column must be one of the feature columns; all the
// remaining feature columns are treated as categorical.
func CreateDataPreprocessor(allFeatureColumns, numerical []string) (*ColumnTransformer, error) {
	isFeature := make(map[string]bool, len(allFeatureColumns))
	for _, col := range allFeatureColumns {
		isFeature[col] = true
	}

	isNumeric := make(map[string]bool, len(numerical))
	for _, col := range numerical {
		if !isFeature[col] {
			return nil, fmt.Errorf("%w: numerical column %s", model.ErrColumnNotFound, col)
		}
		isNumeric[col] = true
	}

	var categorical []string
	for _, col := range allFeatureColumns {
		if !isNumeric[col] {
			categorical = append(categorical, col)
		}
	}

	return &ColumnTransformer{
		Categorical: categorical,
		Numerical:   append([]string(nil), numerical...),
		Encoder:     &OrdinalEncoder{},
	}, nil
}

// FeatureNamesOut returns the output column names
func (t *ColumnTransformer) FeatureNamesOut() []string {
	names := make([]string, 0, len(t.Categorical)+len(t.Numerical))
	names = append(names, t.Categorical...)
	return append(names, t.Numerical...)
}

// Fit learns the categories of the categorical columns
func (t *ColumnTransformer) Fit(X *model.Dataset) error {
	columns, err := t.categoricalColumns(X)
	if err != nil {
		return err
	}
	t.Encoder.Fit(columns)
	return nil
}

// Transform returns the row-major feature matrix for X
func (t *ColumnTransformer) Transform(X *model.Dataset) ([][]float64, error) {
	columns, err := t.categoricalColumns(X)
	if err != nil {
		return nil, err
	}
	codes, err := t.Encoder.Transform(columns)
	if err != nil {
		return nil, err
	}

	numIdx := make([]int, len(t.Numerical))
	for k, name := range t.Numerical {
		numIdx[k] = X.ColumnIndex(name)
		if numIdx[k] < 0 {
			return nil, fmt.Errorf("%w: %s", model.ErrColumnNotFound, name)
		}
	}

	nCat := len(t.Categorical)
	out := make([][]float64, X.Len())
	for i, row := range X.Rows {
		features := make([]float64, nCat+len(numIdx))
		for j := 0; j < nCat; j++ {
			features[j] = float64(codes[j][i])
		}
		for k, idx := range numIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s, row %d: %q", ErrNotNumeric, t.Numerical[k], i, row[idx])
			}
			features[nCat+k] = v
		}
		out[i] = features
	}
	return out, nil
}

// FitTransform fits on X and returns its transform
func (t *ColumnTransformer) FitTransform(X *model.Dataset) ([][]float64, error) {
	if err := t.Fit(X); err != nil {
		return nil, err
	}
	return t.Transform(X)
}

func (t *ColumnTransformer) categoricalColumns(X *model.Dataset) ([][]string, error) {
	columns := make([][]string, len(t.Categorical))
	for j, name := range t.Categorical {
		col, err := X.Column(name)
		if err != nil {
			return nil, err
		}
		columns[j] = col
	}
	return columns, nil
}
