// pkg/storage/factory.go
package storage

import (
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
)

// NewResolverFromConfig wires the local store and, when a storage prefix or
// endpoint is configured, the S3 store used for fallbacks and s3:// locations.
func NewResolverFromConfig(cfg *config.StorageConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.L()
	}

	var remote Store
	if cfg.URLPrefix != "" || cfg.EndpointURL != "" {
		remote = NewS3Store(cfg, logger)
	}

	logger.Info("Dataset storage configured",
		zap.String("endpoint", cfg.EndpointURL),
		zap.String("prefix", cfg.URLPrefix),
		zap.Bool("remote_enabled", remote != nil))

	return NewResolver(cfg, NewLocalStore(), remote, logger)
}
