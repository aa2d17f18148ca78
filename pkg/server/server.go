// pkg/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/classifier"
	"github.com/David-Botos/credit-risk/pkg/observability"
	"github.com/David-Botos/credit-risk/pkg/predict"
	"github.com/David-Botos/credit-risk/pkg/registry"
)

// ErrNoModel is returned when no model has been loaded yet
var ErrNoModel = errors.New("no model loaded")

const shutdownTimeout = 15 * time.Second

// servedModel is the pipeline currently answering requests
type servedModel struct {
	pipeline *classifier.Pipeline
	version  *registry.ModelVersion
	loadedAt time.Time
}

// Server serves predictions from a registry model over HTTP
type Server struct {
	name    string
	stage   string
	models  predict.ModelLoader
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	current *servedModel

	engine *gin.Engine
}

// New creates a server for the model registered under name in stage
func New(name, stage string, models predict.ModelLoader, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	if stage == "" {
		stage = registry.DefaultStage
	}

	s := &Server{
		name:    name,
		stage:   stage,
		models:  models,
		metrics: metrics,
		logger:  logger.Named("server"),
	}
	s.engine = s.setupRoutes()
	return s
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// LoadModel fetches the configured model from the registry and swaps it in.
// The previous model keeps serving when loading fails.
func (s *Server) LoadModel(ctx context.Context) (*registry.ModelVersion, error) {
	pipeline, mv, err := s.models.LoadModel(ctx, s.name, s.stage)
	if err != nil {
		s.metrics.ModelLoadFailures.Inc()
		return nil, fmt.Errorf("failed to load %s: %w", registry.FormatModelURI(s.name, s.stage), err)
	}

	s.mu.Lock()
	s.current = &servedModel{pipeline: pipeline, version: mv, loadedAt: time.Now()}
	s.mu.Unlock()

	s.logger.Info("Model loaded",
		zap.String("model_uri", registry.FormatModelURI(s.name, s.stage)),
		zap.String("version", mv.Version),
		zap.Strings("selected_features", pipeline.SelectedFeatures()))
	return mv, nil
}

func (s *Server) model() (*servedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoModel
	}
	return s.current, nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
