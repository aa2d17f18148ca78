// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

var (
	_ DatabaseConnector = (*SnowflakeConnector)(nil)
	_ DatabaseConnector = (*PostgresConnector)(nil)
)

// ConnectorFactory creates the table stores enabled in the configuration
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// RegisterConfigured connects every configured database and registers it on
// the resolver. The returned connectors must be closed by the caller.
func (f *ConnectorFactory) RegisterConfigured(ctx context.Context, resolver *storage.Resolver) ([]DatabaseConnector, error) {
	var connectors []DatabaseConnector

	closeAll := func() {
		for _, c := range connectors {
			c.Close()
		}
	}

	if f.cfg.Snowflake != nil {
		snowConn, err := f.CreateSnowflakeConnector(ctx)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, snowConn)
		resolver.RegisterTableStore(storage.SchemeSnowflake, snowConn)
	}

	if f.cfg.Postgres != nil {
		pgConn, err := f.CreatePostgresConnector(ctx)
		if err != nil {
			closeAll() // Clean up the Snowflake connection if PostgreSQL fails
			return nil, err
		}
		connectors = append(connectors, pgConn)
		resolver.RegisterTableStore(storage.SchemePostgres, pgConn)
	}

	return connectors, nil
}
