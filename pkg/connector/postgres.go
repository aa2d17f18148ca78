// pkg/connector/postgres.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/converter"
	"github.com/David-Botos/credit-risk/pkg/model"
)

const defaultPostgresSchema = "public"

// ErrRowCountMismatch is returned when a table holds a different number of
// rows than were copied into it
var ErrRowCountMismatch = errors.New("row count mismatch")

// PostgresConnector reads and writes datasets in PostgreSQL tables
type PostgresConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
	conv   *converter.TypeConverter
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig, logger *zap.Logger) (*PostgresConnector, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("postgres-connector")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	db, err := sqlx.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	if err := PingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := &PostgresConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
		conv:   converter.NewTypeConverter(logger),
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return connector, nil
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// Validate verifies the PostgreSQL connection
func (c *PostgresConnector) Validate(ctx context.Context) error {
	var version string
	if err := c.db.GetContext(ctx, &version, "SELECT version()"); err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))
	return nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db.DB)
	return c.db.Close()
}

// ReadTable loads a whole table
func (c *PostgresConnector) ReadTable(ctx context.Context, schema, table string) (*model.Dataset, error) {
	if schema == "" {
		schema = defaultPostgresSchema
	}

	ctx, cancel := c.withStatementTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT * FROM %s.%s", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))
	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	ds, err := scanDataset(rows, c.conv, false)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Loaded table from PostgreSQL",
		zap.String("table", schema+"."+table),
		zap.Int("rows", ds.Len()))
	return ds, nil
}

// WriteTable replaces the contents of a table with the dataset, creating the
// schema and table when missing. Rows are streamed with COPY in one transaction.
func (c *PostgresConnector) WriteTable(ctx context.Context, schema, table string, ds *model.Dataset) (err error) {
	if schema == "" {
		schema = defaultPostgresSchema
	}
	fullTableName := fmt.Sprintf("%s.%s", pq.QuoteIdentifier(schema), pq.QuoteIdentifier(table))

	ctx, cancel := c.withStatementTimeout(ctx)
	defer cancel()

	colSchema := InferSchema(ds)

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		fullTableName, strings.Join(c.conv.GenerateColumnDefinitions(colSchema), ", "))
	if _, err = tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", fullTableName, err)
	}

	if _, err = tx.ExecContext(ctx, "TRUNCATE "+fullTableName); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fullTableName, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(schema, table, ds.Columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for i, row := range ds.Rows {
		args := make([]interface{}, len(row))
		for j, cell := range row {
			args[j], err = c.conv.FromCell(cell, colSchema.Columns[j].Kind)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("row %d, column %s: %w", i, ds.Columns[j], err)
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %d: %w", i, err)
		}
	}

	// Flush buffered COPY data
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy statement: %w", err)
	}

	var written int64
	if err = tx.GetContext(ctx, &written, "SELECT COUNT(*) FROM "+fullTableName); err != nil {
		return fmt.Errorf("failed to count rows in %s: %w", fullTableName, err)
	}
	if written != int64(ds.Len()) {
		c.logger.Warn("Row count mismatch",
			zap.String("table", fullTableName),
			zap.Int("sourceCount", ds.Len()),
			zap.Int64("targetCount", written))
		err = fmt.Errorf("%w: wrote %d rows to %s, expected %d", ErrRowCountMismatch, written, fullTableName, ds.Len())
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.logger.Info("Wrote table to PostgreSQL",
		zap.String("table", fullTableName),
		zap.Int("rows", ds.Len()))
	return nil
}

func (c *PostgresConnector) withStatementTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StatementTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.StatementTimeout)
	}
	return context.WithCancel(ctx)
}
