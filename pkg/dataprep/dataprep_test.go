package dataprep

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

const trainCSV = ` checking_status,duration ,purpose,age,credit_amount,class
<0,6,radio/tv,67,1169,good
0<=X<200,48,radio/tv,22,5951,bad
no checking,12,education,49,2096,good
<0,42,furniture,45,7882,good
<0,24,new car,53,4870,bad
no checking,36,education,35,9055,good
`

func testConfig() *config.Config {
	return &config.Config{
		Storage:          &config.StorageConfig{},
		TargetColumn:     "class",
		NumericalColumns: []string{"duration", "credit_amount", "age"},
		RandomState:      100,
		SelectK:          3,
	}
}

func newTestPreparer(t *testing.T) (*Preparer, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte(trainCSV), 0o644))

	cfg := testConfig()
	resolver := storage.NewResolver(cfg.Storage, storage.NewLocalStore(), nil, zap.NewNop())
	return NewPreparer(cfg, resolver, nil, zap.NewNop()), dir
}

func TestOrdinalEncoder(t *testing.T) {
	enc := &OrdinalEncoder{}
	enc.Fit([][]string{{"b", "a", "", "b", "c"}})

	assert.Equal(t, [][]string{{"a", "b", "c", ""}}, enc.Categories)

	codes, err := enc.Transform([][]string{{"a", "c", "", "z"}})
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{0, 2, 3, UnknownCategory}}, codes)
}

func TestOrdinalEncoder_NumericCategories(t *testing.T) {
	enc := &OrdinalEncoder{}
	enc.Fit([][]string{
		{"2", "10", "9", "", "10"},
		{"4", "A14", "1"},
	})

	assert.Equal(t, [][]string{{"2", "9", "10", ""}, {"1", "4", "A14"}}, enc.Categories)

	codes, err := enc.Transform([][]string{{"2", "9", "10", ""}, {"A14", "4", "1"}})
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{0, 1, 2, 3}, {2, 1, 0}}, codes)
}

func TestOrdinalEncoder_NotFitted(t *testing.T) {
	enc := &OrdinalEncoder{}
	_, err := enc.Transform([][]string{{"a"}})
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestChi2(t *testing.T) {
	X := [][]float64{
		{1, 0, 1, 0},
		{0, 1, 1, 0},
		{1, 0, 1, 0},
		{0, 1, 1, 0},
	}
	y := []int{0, 1, 0, 1}

	scores, pvalues, err := Chi2(X, y, 2)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, scores[0], 1e-12)
	assert.InDelta(t, 2.0, scores[1], 1e-12)
	assert.InDelta(t, 0.0, scores[2], 1e-12)
	assert.True(t, math.IsNaN(scores[3]))

	assert.InDelta(t, 0.157299, pvalues[0], 1e-6)
	assert.InDelta(t, 1.0, pvalues[2], 1e-12)
	assert.True(t, math.IsNaN(pvalues[3]))
}

func TestChi2_NegativeInput(t *testing.T) {
	_, _, err := Chi2([][]float64{{1}, {-1}}, []int{0, 1}, 2)
	assert.ErrorIs(t, err, ErrNegativeInput)
}

func TestTopK(t *testing.T) {
	scores := []float64{1, 3, 3, math.NaN(), 2}

	assert.Equal(t, []int{1, 2}, topK(scores, 2))
	// Ties go to the later feature
	assert.Equal(t, []int{2}, topK(scores, 1))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, topK(scores, 10))
}

func TestSelectKBest(t *testing.T) {
	sel := NewSelectKBest(1, zap.NewNop())
	X := [][]float64{{5, 1}, {0, 1}, {5, 1}, {0, 1}}
	y := []int{0, 1, 0, 1}

	require.NoError(t, sel.Fit(X, y, 2))
	assert.Equal(t, []int{0}, sel.Support)

	out, err := sel.Transform([][]float64{{7, 9}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{7}}, out)
	assert.Equal(t, []string{"a"}, sel.SelectedNames([]string{"a", "b"}))

	_, err = sel.Transform([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}

func TestCreateDataPreprocessor(t *testing.T) {
	features := []string{"age", "checking_status", "duration", "purpose"}

	ct, err := CreateDataPreprocessor(features, []string{"duration", "age"})
	require.NoError(t, err)
	assert.Equal(t, []string{"checking_status", "purpose"}, ct.Categorical)
	assert.Equal(t, []string{"checking_status", "purpose", "duration", "age"}, ct.FeatureNamesOut())

	_, err = CreateDataPreprocessor(features, []string{"credit_amount"})
	assert.ErrorIs(t, err, model.ErrColumnNotFound)
}

func TestColumnTransformer(t *testing.T) {
	X, err := model.NewDataset(
		[]string{"age", "checking_status", "duration", "purpose"},
		[][]string{
			{"67", "<0", "6", "radio/tv"},
			{"22", "no checking", "48", "education"},
		})
	require.NoError(t, err)

	ct, err := CreateDataPreprocessor(X.Columns, []string{"duration", "age"})
	require.NoError(t, err)

	out, err := ct.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 1, 6, 67},
		{1, 0, 48, 22},
	}, out)

	unseen, err := model.NewDataset(X.Columns, [][]string{{"30", "other", "12", "radio/tv"}})
	require.NoError(t, err)
	out, err = ct.Transform(unseen)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1, 1, 12, 30}}, out)

	bad, err := model.NewDataset(X.Columns, [][]string{{"old", "<0", "6", "radio/tv"}})
	require.NoError(t, err)
	_, err = ct.Transform(bad)
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestPreparer_LoadTrainData(t *testing.T) {
	p, dir := newTestPreparer(t)
	path := filepath.Join(dir, "train.csv")

	first, err := p.LoadTrainData(context.Background(), path)
	require.NoError(t, err)
	second, err := p.LoadTrainData(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)

	raw, err := p.LoadNewData(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, raw.Len(), first.Len())

	key := func(rows [][]string) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r[len(r)-2])
		}
		sort.Strings(out)
		return out
	}
	assert.Equal(t, key(raw.Rows), key(first.Rows))
}

func TestPreparer_PrepareData(t *testing.T) {
	p, dir := newTestPreparer(t)

	ds, err := p.LoadNewData(context.Background(), filepath.Join(dir, "train.csv"))
	require.NoError(t, err)

	X, Y, err := p.PrepareData(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "checking_status", "credit_amount", "duration", "purpose"}, X.Columns)
	assert.Equal(t, []string{"good", "bad", "good", "good", "bad", "good"}, Y)
	// Column names of the source dataset are stripped in place
	assert.Contains(t, ds.Columns, "checking_status")
	assert.Contains(t, ds.Columns, "duration")
}

func TestPreparer_PrepareDataMissingTarget(t *testing.T) {
	p, _ := newTestPreparer(t)

	ds, err := model.NewDataset([]string{"age", "duration"}, [][]string{{"1", "2"}})
	require.NoError(t, err)

	_, _, err = p.PrepareData(context.Background(), ds)
	assert.ErrorIs(t, err, model.ErrColumnNotFound)

	X, err := p.PrepareFeatures(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "duration"}, X.Columns)
}

func TestPreparer_LoadMissingFile(t *testing.T) {
	p, dir := newTestPreparer(t)

	_, err := p.LoadNewData(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
