package predict

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/dataprep"
	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/registry"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

type stubLoader struct {
	pipeline *classifier.Pipeline
	err      error
	calls    int
}

func (s *stubLoader) LoadModel(_ context.Context, name, stage string) (*classifier.Pipeline, *registry.ModelVersion, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.pipeline, &registry.ModelVersion{Name: name, Version: "7", CurrentStage: stage}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Storage:          &config.StorageConfig{},
		TargetColumn:     "class",
		NumericalColumns: []string{"duration", "age"},
		RandomState:      100,
		SelectK:          2,
		CVFolds:          5,
		CVWorkers:        2,
	}
}

// writeCreditCSV writes rows where checking status "<0" marks a bad risk
func writeCreditCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("checking_status, duration,age,purpose,class\n")
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&sb, "<0,%d,%d,radio/tv,bad\n", 24+i, 30+i)
		} else {
			fmt.Fprintf(&sb, "no checking,%d,%d,education,good\n", 12+i, 35+i)
		}
	}
	path := filepath.Join(dir, "credit.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func newTestPredictor(t *testing.T, loader ModelLoader) *Predictor {
	t.Helper()
	cfg := testConfig()
	resolver := storage.NewResolver(cfg.Storage, storage.NewLocalStore(), nil, zap.NewNop())
	preparer := dataprep.NewPreparer(cfg, resolver, nil, zap.NewNop())
	return NewPredictor(cfg, preparer, loader, zap.NewNop())
}

func newTestPipeline(t *testing.T, p *Predictor, X *model.Dataset) *classifier.Pipeline {
	t.Helper()
	pre, err := p.preparer.CreateDataPreprocessor(X.Columns)
	require.NoError(t, err)
	return classifier.NewPipeline(pre, p.preparer.FeatureSelector(), classifier.NewDecisionTree())
}

func TestStratifiedKFold(t *testing.T) {
	folds, err := StratifiedKFold([]string{"a", "a", "b", "a", "b", "b", "a", "b"}, 2)
	require.NoError(t, err)
	require.Len(t, folds, 2)

	assert.Equal(t, 1, folds[0].Number)
	assert.Equal(t, []int{0, 1, 2, 4}, folds[0].Test)
	assert.Equal(t, []int{3, 5, 6, 7}, folds[0].Train)
	assert.Equal(t, []int{3, 5, 6, 7}, folds[1].Test)
}

func TestStratifiedKFold_Uneven(t *testing.T) {
	y := []string{"x", "x", "x", "x", "x", "x", "x", "y", "y", "y"}
	folds, err := StratifiedKFold(y, 3)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, len(y), len(f.Train)+len(f.Test))
		classes := make(map[string]int)
		for _, i := range f.Test {
			seen[i]++
			classes[y[i]]++
		}
		assert.Equal(t, 1, classes["y"], "fold %d", f.Number)
	}
	assert.Len(t, seen, len(y))
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d", i)
	}
	assert.Len(t, folds[0].Test, 4)
}

func TestStratifiedKFold_Invalid(t *testing.T) {
	_, err := StratifiedKFold([]string{"a", "b"}, 3)
	assert.Error(t, err)

	_, err = StratifiedKFold([]string{"a", "a", "b", "b"}, 3)
	assert.Error(t, err)

	_, err = StratifiedKFold([]string{"a", "b"}, 1)
	assert.Error(t, err)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 2, workerCount(2, 10))
	assert.Equal(t, 3, workerCount(8, 3))
	assert.GreaterOrEqual(t, workerCount(-1, 10), 1)
}

func TestMakeCVPredictions(t *testing.T) {
	p := newTestPredictor(t, nil)
	path := writeCreditCSV(t, t.TempDir(), 40)

	ds, err := p.preparer.LoadTrainData(context.Background(), path)
	require.NoError(t, err)
	X, Y, err := p.preparer.PrepareData(context.Background(), ds)
	require.NoError(t, err)

	pred, err := p.MakeCVPredictions(context.Background(), newTestPipeline(t, p, X), X, Y)
	require.NoError(t, err)
	assert.Equal(t, Y, pred)

	m := p.Metrics()
	assert.Equal(t, 1, m.SuccessfulRuns)
	assert.Len(t, m.FoldDurations, 5)
	assert.Contains(t, m.GenerateMetricsReport(), "Fold 5")
}

func TestMakeCVPredictions_TooManyFolds(t *testing.T) {
	p := newTestPredictor(t, nil)
	path := writeCreditCSV(t, t.TempDir(), 4)

	ds, err := p.preparer.LoadNewData(context.Background(), path)
	require.NoError(t, err)
	X, Y, err := p.preparer.PrepareData(context.Background(), ds)
	require.NoError(t, err)

	_, err = p.MakeCVPredictions(context.Background(), newTestPipeline(t, p, X), X, Y)
	assert.Error(t, err)
	assert.Equal(t, 1, p.Metrics().FailedRuns)
}

func TestMakePredictions(t *testing.T) {
	p := newTestPredictor(t, nil)
	dir := t.TempDir()
	path := writeCreditCSV(t, dir, 20)

	ds, err := p.preparer.LoadNewData(context.Background(), path)
	require.NoError(t, err)
	X, Y, err := p.preparer.PrepareData(context.Background(), ds)
	require.NoError(t, err)
	pipeline := newTestPipeline(t, p, X)
	require.NoError(t, pipeline.Fit(X, Y))

	out := filepath.Join(dir, "predictions.csv")
	scored, err := p.MakePredictions(context.Background(), pipeline, ds, out)
	require.NoError(t, err)

	assert.Equal(t, PredictionsColumn, scored.Columns[len(scored.Columns)-2])
	assert.Equal(t, PredictionProbsColumn, scored.Columns[len(scored.Columns)-1])
	preds, err := scored.Column(PredictionsColumn)
	require.NoError(t, err)
	assert.Equal(t, Y, preds)

	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	header := strings.SplitN(string(saved), "\n", 2)[0]
	assert.Equal(t, "checking_status,duration,age,purpose,class,predictions,prediction_probs", header)
}

func TestMakePredictionsWithRegistryModel(t *testing.T) {
	dir := t.TempDir()
	path := writeCreditCSV(t, dir, 20)

	trainer := newTestPredictor(t, nil)
	ds, err := trainer.preparer.LoadNewData(context.Background(), path)
	require.NoError(t, err)
	X, Y, err := trainer.preparer.PrepareData(context.Background(), ds)
	require.NoError(t, err)
	pipeline := newTestPipeline(t, trainer, X)
	require.NoError(t, pipeline.Fit(X, Y))

	loader := &stubLoader{pipeline: pipeline}
	p := newTestPredictor(t, loader)
	out := filepath.Join(dir, "scored.csv")

	scored, err := p.MakePredictionsWithRegistryModel(context.Background(), "credit", path, out, "")
	require.NoError(t, err)
	assert.True(t, scored.HasColumn(PredictionsColumn))
	assert.FileExists(t, out)

	run := p.Metrics().Runs[0]
	assert.True(t, run.Success)
	assert.Equal(t, "models:/credit/Production", run.ModelURI)
	assert.Equal(t, "7", run.ModelVersion)
}

func TestMakePredictionsWithRegistryModel_NoModel(t *testing.T) {
	dir := t.TempDir()
	path := writeCreditCSV(t, dir, 10)
	out := filepath.Join(dir, "scored.csv")

	p := newTestPredictor(t, &stubLoader{err: errors.New("RESOURCE_DOES_NOT_EXIST")})

	data, err := p.MakePredictionsWithRegistryModel(context.Background(), "credit", path, out, "Staging")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.False(t, data.HasColumn(PredictionsColumn))
	assert.Equal(t, 10, data.Len())
	assert.NoFileExists(t, out)

	run := p.Metrics().Runs[0]
	assert.False(t, run.Success)
	require.Len(t, run.Errors, 1)
	assert.True(t, run.Errors[0].Swallowed)
	assert.Equal(t, ErrorCategoryModelLoad, run.Errors[0].Category)
	assert.Equal(t, []string{"No predictions were made; No model in Staging stage."}, run.Warnings)
}

func TestMakePredictionsWithRegistryModel_SaveFails(t *testing.T) {
	dir := t.TempDir()
	path := writeCreditCSV(t, dir, 20)

	trainer := newTestPredictor(t, nil)
	ds, err := trainer.preparer.LoadNewData(context.Background(), path)
	require.NoError(t, err)
	X, Y, err := trainer.preparer.PrepareData(context.Background(), ds)
	require.NoError(t, err)
	pipeline := newTestPipeline(t, trainer, X)
	require.NoError(t, pipeline.Fit(X, Y))

	p := newTestPredictor(t, &stubLoader{pipeline: pipeline})

	// The output path is a directory, so creating the file fails
	scored, err := p.MakePredictionsWithRegistryModel(context.Background(), "credit", path, dir, "")
	require.NoError(t, err)
	require.NotNil(t, scored)
	assert.True(t, scored.HasColumn(PredictionsColumn))
	assert.True(t, scored.HasColumn(PredictionProbsColumn))

	run := p.Metrics().Runs[0]
	assert.False(t, run.Success)
	require.Len(t, run.Errors, 1)
	assert.Equal(t, ErrorCategoryStorage, run.Errors[0].Category)
	assert.Equal(t, dir, run.Errors[0].Location)
	assert.True(t, run.Errors[0].Swallowed)
	assert.Contains(t, p.Metrics().GenerateMetricsReport(), "[Storage] Location: "+dir)
}

func TestMakeCVPredictions_FoldFailure(t *testing.T) {
	p := newTestPredictor(t, nil)
	p.cfg.CVFolds = 2
	p.cfg.NumericalColumns = []string{"duration"}

	X, err := model.NewDataset([]string{"duration"},
		[][]string{{"6"}, {"12"}, {"24"}, {"7"}, {"13"}, {"25"}})
	require.NoError(t, err)
	Y := []string{"bad", "good", "unknown", "bad", "good", "unknown"}

	_, err = p.MakeCVPredictions(context.Background(), newTestPipeline(t, p, X), X, Y)
	require.Error(t, err)

	var foldErr *FoldError
	require.ErrorAs(t, err, &foldErr)
	assert.ErrorIs(t, err, classifier.ErrNotBinary)

	run := p.Metrics().Runs[0]
	require.Len(t, run.Errors, 1)
	assert.Equal(t, foldErr.Fold, run.Errors[0].Fold)
	assert.Positive(t, run.Errors[0].Fold)
	require.Len(t, run.Warnings, 1)
	assert.Contains(t, run.Warnings[0], "k=2 is greater than n_features=1")

	report := p.Metrics().GenerateMetricsReport()
	assert.Contains(t, report, fmt.Sprintf("Fold: %d", foldErr.Fold))
	assert.Contains(t, report, "k=2 is greater than n_features=1")
}

func TestMakePredictionsWithRegistryModel_MissingData(t *testing.T) {
	p := newTestPredictor(t, &stubLoader{})

	_, err := p.MakePredictionsWithRegistryModel(context.Background(), "credit", filepath.Join(t.TempDir(), "none.csv"), "out.csv", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunMetrics_ToJSON(t *testing.T) {
	m := NewRunMetrics(zap.NewNop())
	run := NewRun(RunKindPredict)
	run.Rows = 3
	run.Complete(true)
	m.RecordRun(run)

	failed := NewRun(RunKindRegistryPredict)
	failed.AddError(NewErrorRecord(errors.New("boom"), ErrorCategoryModelLoad))
	failed.Complete(true)
	m.RecordRun(failed)

	data, err := m.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rowsScored":3`)
	assert.Contains(t, string(data), `"ModelLoad":1`)
	assert.NotEmpty(t, run.ID)
	assert.Contains(t, failed.Errors[0].String(), "[ModelLoad]")
}
