// pkg/connector/snowflake.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/converter"
	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrReadOnly is returned when writing to a store that only supports reads
var ErrReadOnly = errors.New("table store is read-only")

// SnowflakeConnector reads datasets from Snowflake tables
type SnowflakeConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
	conv   *converter.TypeConverter
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig, logger *zap.Logger) (*SnowflakeConnector, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("snowflake-connector")

	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	db, err := sqlx.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db.DB, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	connector := &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
		conv:   converter.NewTypeConverter(logger),
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the Snowflake connection and the configured database
func (c *SnowflakeConnector) Validate(ctx context.Context) error {
	var role, database, warehouse string
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").Scan(
		&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake access: %w", err)
	}

	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("connected to wrong database: %s (expected: %s)",
			database, c.cfg.Database)
	}

	return nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db.DB)
	return c.db.Close()
}

// ReadTable loads a whole table. Column names are lower-cased because
// Snowflake upper-cases unquoted identifiers.
func (c *SnowflakeConnector) ReadTable(ctx context.Context, schema, table string) (*model.Dataset, error) {
	if schema == "" {
		schema = c.cfg.Schema
	}
	if !validIdentifier(schema) || !validIdentifier(table) {
		return nil, fmt.Errorf("invalid Snowflake identifier %s.%s", schema, table)
	}

	query := fmt.Sprintf("SELECT * FROM %s.%s", schema, table)

	queryCtx := ctx
	if c.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}

	rows, err := c.db.QueryxContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	ds, err := scanDataset(rows, c.conv, true)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Loaded table from Snowflake",
		zap.String("table", schema+"."+table),
		zap.Int("rows", ds.Len()))
	return ds, nil
}

// WriteTable is not supported; Snowflake is a training-data source only
func (c *SnowflakeConnector) WriteTable(_ context.Context, schema, table string, _ *model.Dataset) error {
	return fmt.Errorf("%w: snowflake %s.%s", ErrReadOnly, schema, table)
}
