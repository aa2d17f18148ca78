// pkg/dataprep/prepare.go
package dataprep

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/cleaner"
	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

// Preparer loads datasets and splits them into features and target
type Preparer struct {
	cfg      *config.Config
	resolver *storage.Resolver
	cleaner  *cleaner.DataCleaner
	logger   *zap.Logger
}

// NewPreparer creates a Preparer. A nil cleaner logs cleaning operations only.
func NewPreparer(cfg *config.Config, resolver *storage.Resolver, dataCleaner *cleaner.DataCleaner, logger *zap.Logger) *Preparer {
	if logger == nil {
		logger = zap.L()
	}
	if dataCleaner == nil {
		// Without a database NewDataCleaner cannot fail
		dataCleaner, _ = cleaner.NewDataCleaner(context.Background(), nil, logger)
	}
	return &Preparer{
		cfg:      cfg,
		resolver: resolver,
		cleaner:  dataCleaner,
		logger:   logger.Named("dataprep"),
	}
}

// Resolver returns the storage resolver used for loading
func (p *Preparer) Resolver() *storage.Resolver {
	return p.resolver
}

// LoadTrainData reads the training data and shuffles it once with the
// configured random state
func (p *Preparer) LoadTrainData(ctx context.Context, path string) (*model.Dataset, error) {
	ds, err := p.load(ctx, path, "train")
	if err != nil {
		return nil, err
	}

	shuffled := ds.Shuffle(p.cfg.RandomState)
	p.logger.Debug("Shuffled train data", zap.Int64("random_state", p.cfg.RandomState))
	return shuffled, nil
}

// LoadNewData reads data to score, keeping its row order
func (p *Preparer) LoadNewData(ctx context.Context, path string) (*model.Dataset, error) {
	return p.load(ctx, path, "test")
}

func (p *Preparer) load(ctx context.Context, path, kind string) (*model.Dataset, error) {
	ds, source, err := p.resolver.ReadDataset(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s data: %w", kind, err)
	}

	fields := []zap.Field{
		zap.String("path", path),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns)),
	}
	switch source {
	case storage.SourceLocal:
		p.logger.Info(fmt.Sprintf("Loading %s data locally", kind), fields...)
	case storage.SourceRemote:
		p.logger.Info(fmt.Sprintf("Loading %s data from S3 bucket", kind), fields...)
	default:
		p.logger.Info(fmt.Sprintf("Loading %s data from table", kind), fields...)
	}
	return ds, nil
}

// PrepareFeatures strips the column names of ds in place and returns the
// feature columns: every column except the target, sorted by name. The
// target column does not have to be present.
func (p *Preparer) PrepareFeatures(ctx context.Context, ds *model.Dataset) (*model.Dataset, error) {
	ops, err := p.cleaner.CleanColumnNames(ds, "dataset")
	if err != nil {
		return nil, err
	}
	if err := p.cleaner.RecordCleaningOperations(ctx, ops); err != nil {
		p.logger.Warn("Failed to record cleaning operations", zap.Error(err))
	}

	return ds.Select(ds.Difference(p.cfg.TargetColumn)...)
}

// PrepareData splits ds into features X and target Y. The target column
// must be present.
func (p *Preparer) PrepareData(ctx context.Context, ds *model.Dataset) (*model.Dataset, []string, error) {
	X, err := p.PrepareFeatures(ctx, ds)
	if err != nil {
		return nil, nil, err
	}

	Y, err := ds.Column(p.cfg.TargetColumn)
	if err != nil {
		return nil, nil, fmt.Errorf("target column missing: %w", err)
	}

	return X, Y, nil
}

// FeatureSelector returns an unfitted chi-squared selector for the
// configured number of features
func (p *Preparer) FeatureSelector() *SelectKBest {
	return NewSelectKBest(p.cfg.SelectK, p.logger)
}

// CreateDataPreprocessor returns an unfitted column transformer using the
// configured numerical columns
func (p *Preparer) CreateDataPreprocessor(allFeatureColumns []string) (*ColumnTransformer, error) {
	return CreateDataPreprocessor(allFeatureColumns, p.cfg.NumericalColumns)
}
