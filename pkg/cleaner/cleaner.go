// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// DataCleaner normalises dataset headers before feature preparation and keeps
// a record of every change it makes
type DataCleaner struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewDataCleaner creates a DataCleaner. When db is non-nil the cleaning
// operations are also written to the cleaned_on_ingress tracking table.
func NewDataCleaner(ctx context.Context, db *sqlx.DB, logger *zap.Logger) (*DataCleaner, error) {
	if logger == nil {
		logger = zap.L()
	}

	cleaner := &DataCleaner{
		db:     db,
		logger: logger.Named("cleaner"),
	}

	if db != nil {
		if err := cleaner.setupCleaningTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to setup cleaning table: %w", err)
		}
	}

	return cleaner, nil
}

// setupCleaningTable ensures the cleaned_on_ingress tracking table exists
func (c *DataCleaner) setupCleaningTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.cleaned_on_ingress (
			id SERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			column_name TEXT NOT NULL,
			original_value TEXT,
			new_value TEXT NOT NULL,
			cleaning_operation TEXT NOT NULL,
			cleaning_reason TEXT NOT NULL,
			cleaned_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := c.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}

	c.logger.Info("Ensured cleaned_on_ingress table exists")
	return nil
}

// CleanColumnNames strips surrounding whitespace from every column name in
// place and returns the operations performed. Two columns that end up with
// the same name, whether repeated in the raw header or collapsed by
// stripping, are rejected with ErrDuplicateColumn rather than renamed with a
// ".1" suffix, and the dataset is left untouched.
func (c *DataCleaner) CleanColumnNames(ds *model.Dataset, source string) ([]model.CleaningOperation, error) {
	cleaned := make([]string, len(ds.Columns))
	seen := make(map[string]string, len(ds.Columns))
	var operations []model.CleaningOperation

	for i, name := range ds.Columns {
		newName, op, changed := stripColumnName(name)
		if prev, dup := seen[newName]; dup {
			return nil, fmt.Errorf("%w: %q and %q both become %q", ErrDuplicateColumn, prev, name, newName)
		}
		seen[newName] = name
		cleaned[i] = newName

		if changed {
			op.Source = source
			operations = append(operations, op)
		}
	}

	ds.Columns = cleaned

	if len(operations) > 0 {
		c.logger.Debug("Cleaned column names",
			zap.String("source", source),
			zap.Int("changed", len(operations)))
	}
	return operations, nil
}

// RecordCleaningOperations batch inserts cleaning operations into the tracking
// table. Without a database the operations are only logged.
func (c *DataCleaner) RecordCleaningOperations(ctx context.Context, operations []model.CleaningOperation) (err error) {
	if len(operations) == 0 {
		return nil
	}

	if c.db == nil {
		for _, op := range operations {
			c.logger.Info("Cleaning operation",
				zap.String("source", op.Source),
				zap.String("column", op.ColumnName),
				zap.String("original", op.OriginalValue),
				zap.String("operation", op.CleaningOperation),
				zap.String("reason", op.CleaningReason))
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO public.cleaned_on_ingress
		(source, column_name, original_value, new_value, cleaning_operation, cleaning_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, op := range operations {
		if _, err = stmt.ExecContext(ctx,
			op.Source,
			op.ColumnName,
			op.OriginalValue,
			op.NewValue,
			op.CleaningOperation,
			op.CleaningReason,
		); err != nil {
			return fmt.Errorf("failed to insert cleaning operation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.logger.Info("Recorded cleaning operations", zap.Int("count", len(operations)))
	return nil
}
