// pkg/predict/predict.go
package predict

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/dataprep"
	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/registry"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

// Output columns added to scored datasets
const (
	PredictionsColumn     = "predictions"
	PredictionProbsColumn = "prediction_probs"
)

// ModelLoader resolves a registered model by name and stage
type ModelLoader interface {
	LoadModel(ctx context.Context, name, stage string) (*classifier.Pipeline, *registry.ModelVersion, error)
}

// Predictor makes and persists predictions
type Predictor struct {
	cfg      *config.Config
	preparer *dataprep.Preparer
	models   ModelLoader
	metrics  *RunMetrics
	logger   *zap.Logger
}

// NewPredictor creates a Predictor. models may be nil when registry
// predictions are not needed.
func NewPredictor(cfg *config.Config, preparer *dataprep.Preparer, models ModelLoader, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("predict")
	return &Predictor{
		cfg:      cfg,
		preparer: preparer,
		models:   models,
		metrics:  NewRunMetrics(logger),
		logger:   logger,
	}
}

// Metrics returns the run metrics collected so far
func (p *Predictor) Metrics() *RunMetrics {
	return p.metrics
}

// MakeCVPredictions returns one cross-validated prediction per row of X, in
// input order, using stratified folds without shuffling
func (p *Predictor) MakeCVPredictions(ctx context.Context, pipeline *classifier.Pipeline, X *model.Dataset, Y []string) ([]string, error) {
	run := NewRun(RunKindCrossValidation)
	run.Rows = X.Len()
	run.Folds = p.cfg.CVFolds
	defer func() { p.metrics.RecordRun(run) }()

	if X.Len() != len(Y) {
		err := fmt.Errorf("X has %d rows, Y has %d", X.Len(), len(Y))
		run.AddError(NewErrorRecord(err, ErrorCategoryData))
		run.Complete(false)
		return nil, err
	}

	folds, err := StratifiedKFold(Y, p.cfg.CVFolds)
	if err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryData))
		run.Complete(false)
		return nil, err
	}

	if nFeatures := len(pipeline.Preprocessor.FeatureNamesOut()); pipeline.Selector.K > nFeatures {
		run.AddWarning(fmt.Sprintf("k=%d is greater than n_features=%d. All the features will be returned.",
			pipeline.Selector.K, nFeatures))
	}

	predictions, err := p.crossValPredict(ctx, pipeline, X, Y, folds)
	if err != nil {
		record := NewErrorRecord(err, ErrorCategoryPrediction)
		var foldErr *FoldError
		if errors.As(err, &foldErr) {
			record = record.WithFold(foldErr.Fold)
		}
		run.AddError(record)
		run.Complete(false)
		return nil, fmt.Errorf("cross-validation failed: %w", err)
	}

	run.Complete(true)
	return predictions, nil
}

// SaveModelPredictions writes the scored dataset to path, trying the local
// filesystem before the object store
func (p *Predictor) SaveModelPredictions(ctx context.Context, ds *model.Dataset, path string) (storage.Source, error) {
	source, err := p.preparer.Resolver().WriteDataset(ctx, path, ds)
	if err != nil {
		return "", fmt.Errorf("failed to save predictions: %w", err)
	}

	fields := []zap.Field{zap.String("path", path), zap.Int("rows", ds.Len())}
	switch source {
	case storage.SourceLocal:
		p.logger.Info("Saving predictions locally", fields...)
	case storage.SourceRemote:
		p.logger.Info("Saving predictions to S3 bucket", fields...)
	default:
		p.logger.Info("Saving predictions to table", fields...)
	}
	return source, nil
}

// MakePredictions scores ds with a fitted pipeline, adds the predictions and
// prediction_probs columns, saves the result and returns it
func (p *Predictor) MakePredictions(ctx context.Context, pipeline *classifier.Pipeline, ds *model.Dataset, path string) (*model.Dataset, error) {
	run := NewRun(RunKindPredict)
	run.Output = path
	defer func() { p.metrics.RecordRun(run) }()

	X, _, err := p.preparer.PrepareData(ctx, ds)
	if err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryData))
		run.Complete(false)
		return nil, err
	}

	if err := p.score(pipeline, X, ds); err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryPrediction))
		run.Complete(false)
		return nil, err
	}

	run.OutputSource, err = p.SaveModelPredictions(ctx, ds, path)
	if err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryStorage).WithLocation(path))
		run.Complete(false)
		return nil, err
	}

	run.Rows = ds.Len()
	run.Complete(true)
	return ds, nil
}

// MakePredictionsWithRegistryModel loads new data, scores it with the model
// registered under name in stage and saves the result to outputPath.
//
// Failures to load the data are returned. When the model cannot be loaded,
// fails to predict or the scored data cannot be saved, the failure is logged
// and the data is returned with a nil error. It carries the prediction
// columns only when scoring succeeded.
func (p *Predictor) MakePredictionsWithRegistryModel(ctx context.Context, name, dataPath, outputPath, stage string) (*model.Dataset, error) {
	if stage == "" {
		stage = registry.DefaultStage
	}

	run := NewRun(RunKindRegistryPredict)
	run.Input = dataPath
	run.Output = outputPath
	run.ModelURI = registry.FormatModelURI(name, stage)
	defer func() { p.metrics.RecordRun(run) }()

	data, err := p.preparer.LoadNewData(ctx, dataPath)
	if err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryData).WithLocation(dataPath))
		run.Complete(false)
		return nil, err
	}

	X, _, err := p.preparer.PrepareData(ctx, data)
	if err != nil {
		run.AddError(NewErrorRecord(err, ErrorCategoryData).WithLocation(dataPath))
		run.Complete(false)
		return nil, err
	}

	noPredictions := func(record ErrorRecord) (*model.Dataset, error) {
		msg := fmt.Sprintf("No predictions were made; No model in %s stage.", stage)
		run.AddError(record.AsSwallowed())
		run.AddWarning(msg)
		run.Complete(false)
		p.logger.Warn(msg,
			zap.String("model_uri", run.ModelURI),
			zap.String("category", record.Category.String()),
			zap.Error(record.Error))
		return data, nil
	}

	if p.models == nil {
		err := fmt.Errorf("no model registry configured")
		return noPredictions(NewErrorRecord(err, ErrorCategoryModelLoad).WithLocation(run.ModelURI))
	}

	pipeline, mv, err := p.models.LoadModel(ctx, name, stage)
	if err != nil {
		return noPredictions(NewErrorRecord(err, ErrorCategoryModelLoad).WithLocation(run.ModelURI))
	}
	run.ModelVersion = mv.Version

	if err := p.score(pipeline, X, data); err != nil {
		return noPredictions(NewErrorRecord(err, ErrorCategoryPrediction).WithLocation(run.ModelURI))
	}

	run.OutputSource, err = p.SaveModelPredictions(ctx, data, outputPath)
	if err != nil {
		return noPredictions(NewErrorRecord(err, ErrorCategoryStorage).WithLocation(outputPath))
	}

	run.Rows = data.Len()
	run.Complete(true)
	return data, nil
}

// score predicts X and appends the prediction columns to ds. ds is only
// modified once both columns have been computed.
func (p *Predictor) score(pipeline *classifier.Pipeline, X, ds *model.Dataset) error {
	proba, err := pipeline.PredictProba(X)
	if err != nil {
		return fmt.Errorf("failed to predict: %w", err)
	}
	labels := pipeline.Labels(proba)

	probs := make([]string, len(proba))
	for i, pr := range proba {
		probs[i] = strconv.FormatFloat(pr[1], 'f', -1, 64)
	}

	if err := ds.WithColumn(PredictionsColumn, labels); err != nil {
		return err
	}
	return ds.WithColumn(PredictionProbsColumn, probs)
}
