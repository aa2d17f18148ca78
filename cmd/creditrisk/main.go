// cmd/creditrisk/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/cleaner"
	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/connector"
	"github.com/David-Botos/credit-risk/pkg/dataprep"
	"github.com/David-Botos/credit-risk/pkg/observability"
	"github.com/David-Botos/credit-risk/pkg/predict"
	"github.com/David-Botos/credit-risk/pkg/registry"
	"github.com/David-Botos/credit-risk/pkg/server"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

const usage = `Usage: creditrisk <command> [flags]

Commands:
  train     Cross-validate and fit a model, then write its artifact
  predict   Score new data with a model from the registry
  serve     Serve predictions over HTTP

Run "creditrisk <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(ctx, os.Args[2:])
	case "predict":
		err = runPredict(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "creditrisk %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// app holds the components shared by every command
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	resolver   *storage.Resolver
	connectors []connector.DatabaseConnector
	preparer   *dataprep.Preparer
	registry   *registry.Client
	predictor  *predict.Predictor
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.LoadConfigFromFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting credit-risk",
		zap.String("mlflow_tracking_uri", cfg.Registry.TrackingURI),
		zap.String("s3_endpoint_url", cfg.Storage.EndpointURL),
		zap.String("dataset_storage_url_prefix", cfg.Storage.URLPrefix))

	resolver := storage.NewResolverFromConfig(cfg.Storage, logger)

	factory := connector.NewConnectorFactory(cfg, logger)
	connectors, err := factory.RegisterConfigured(ctx, resolver)
	if err != nil {
		return nil, err
	}

	var cleaningDB *sqlx.DB
	for _, c := range connectors {
		if pg, ok := c.(*connector.PostgresConnector); ok {
			cleaningDB = pg.DB()
		}
	}
	dataCleaner, err := cleaner.NewDataCleaner(ctx, cleaningDB, logger)
	if err != nil {
		for _, c := range connectors {
			c.Close()
		}
		return nil, fmt.Errorf("failed to create data cleaner: %w", err)
	}

	preparer := dataprep.NewPreparer(cfg, resolver, dataCleaner, logger)
	client := registry.NewClient(cfg.Registry, resolver.Remote(), logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		resolver:   resolver,
		connectors: connectors,
		preparer:   preparer,
		registry:   client,
		predictor:  predict.NewPredictor(cfg, preparer, client, logger),
	}, nil
}

func (a *app) close() {
	for _, c := range a.connectors {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close connector", zap.Error(err))
		}
	}
	fmt.Print(a.predictor.Metrics().GenerateMetricsReport())
	_ = a.logger.Sync()
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	envFile := fs.String("env", config.DefaultEnvFile, "dotenv file to load")
	dataPath := fs.String("data", "", "training data location (path, s3://, snowflake:// or postgres://)")
	modelOut := fs.String("model-out", classifier.ArtifactFileName, "where to write the model artifact")
	estimatorName := fs.String("estimator", classifier.EstimatorLogistic, "estimator: logistic or tree")
	cvOut := fs.String("cv-out", "", "optional location for the cross-validated predictions")
	positive := fs.String("positive", "", "class reported as positive in the metrics (defaults to the second sorted class)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return errors.New("-data is required")
	}

	a, err := newApp(ctx, *envFile)
	if err != nil {
		return err
	}
	defer a.close()

	ds, err := a.preparer.LoadTrainData(ctx, *dataPath)
	if err != nil {
		return err
	}
	X, Y, err := a.preparer.PrepareData(ctx, ds)
	if err != nil {
		return err
	}

	preprocessor, err := a.preparer.CreateDataPreprocessor(X.Columns)
	if err != nil {
		return err
	}
	estimator, err := classifier.NewEstimator(*estimatorName)
	if err != nil {
		return err
	}
	pipeline := classifier.NewPipeline(preprocessor, a.preparer.FeatureSelector(), estimator)

	cvPredictions, err := a.predictor.MakeCVPredictions(ctx, pipeline, X, Y)
	if err != nil {
		return err
	}

	if *positive == "" {
		*positive = secondClass(Y)
	}
	report, err := classifier.Evaluate(Y, cvPredictions, *positive)
	if err != nil {
		return err
	}
	a.logger.Info("Cross-validation results",
		zap.String("estimator", *estimatorName),
		zap.Int("folds", a.cfg.CVFolds),
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("precision", report.Precision),
		zap.Float64("recall", report.Recall),
		zap.Float64("f1", report.F1),
		zap.Any("confusion", report.Confusion))

	if *cvOut != "" {
		scored := ds.Clone()
		if err := scored.WithColumn(predict.PredictionsColumn, cvPredictions); err != nil {
			return err
		}
		if _, err := a.predictor.SaveModelPredictions(ctx, scored, *cvOut); err != nil {
			return err
		}
	}

	if err := pipeline.Fit(X, Y); err != nil {
		return fmt.Errorf("failed to fit final model: %w", err)
	}

	w, source, err := a.resolver.Create(ctx, *modelOut)
	if err != nil {
		return fmt.Errorf("failed to create model artifact: %w", err)
	}
	if err := classifier.Save(w, pipeline); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}

	a.logger.Info("Model artifact written",
		zap.String("location", *modelOut),
		zap.String("source", string(source)),
		zap.Strings("selected_features", pipeline.SelectedFeatures()))
	return nil
}

// secondClass returns the second of the sorted distinct labels, the class
// whose probability the pipeline reports
func secondClass(labels []string) string {
	seen := make(map[string]bool)
	var classes []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	if len(classes) < 2 {
		return ""
	}
	return classes[1]
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	envFile := fs.String("env", config.DefaultEnvFile, "dotenv file to load")
	name := fs.String("model", "", "registered model name (defaults to MODEL_NAME)")
	stage := fs.String("stage", "", "model stage (defaults to MODEL_STAGE)")
	dataPath := fs.String("data", "", "location of the data to score")
	outPath := fs.String("out", "", "location for the scored data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" || *outPath == "" {
		return errors.New("-data and -out are required")
	}

	a, err := newApp(ctx, *envFile)
	if err != nil {
		return err
	}
	defer a.close()

	if *name == "" {
		*name = a.cfg.ModelName
	}
	if *stage == "" {
		*stage = a.cfg.ModelStage
	}
	if *name == "" {
		return errors.New("-model or MODEL_NAME is required")
	}

	_, err = a.predictor.MakePredictionsWithRegistryModel(ctx, *name, *dataPath, *outPath, *stage)
	return err
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	envFile := fs.String("env", config.DefaultEnvFile, "dotenv file to load")
	addr := fs.String("addr", "", "listen address (defaults to HTTP_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, *envFile)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.ModelName == "" {
		return errors.New("MODEL_NAME is required to serve")
	}
	if *addr == "" {
		*addr = a.cfg.HTTPAddr
	}

	srv := server.New(a.cfg.ModelName, a.cfg.ModelStage, a.registry, observability.NewMetrics(), a.logger)
	if _, err := srv.LoadModel(ctx); err != nil {
		a.logger.Warn(fmt.Sprintf("No model in %s stage; serving 503 until reloaded", a.cfg.ModelStage), zap.Error(err))
	}

	return srv.Run(ctx, *addr)
}
