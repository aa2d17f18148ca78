// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/converter"
	"github.com/David-Botos/credit-risk/pkg/model"
	"github.com/David-Botos/credit-risk/pkg/storage"
)

// DatabaseConnector defines the interface for database connectors
type DatabaseConnector interface {
	storage.TableStore

	// DB returns the underlying database connection
	DB() *sqlx.DB

	// Validate verifies the connection and permissions
	Validate(ctx context.Context) error

	// Close closes the connection and releases resources
	Close() error
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sql.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if pingCtx.Err() != nil {
			return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
		}
		return err
	}
	return nil
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// validIdentifier reports whether name can be interpolated into SQL unquoted
func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// scanDataset reads every row of a result set into a Dataset
func scanDataset(rows *sqlx.Rows, conv *converter.TypeConverter, lowerNames bool) (*model.Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	if lowerNames {
		for i, col := range columns {
			columns[i] = strings.ToLower(col)
		}
	}

	var data [][]string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(data), err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = conv.ToCell(v)
		}
		data = append(data, cells)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return model.NewDataset(columns, data)
}

// InferSchema classifies columns as numeric when every non-empty cell parses
// as a number. Columns with no values are treated as text.
func InferSchema(ds *model.Dataset) *model.Schema {
	var numeric []string
	for j, col := range ds.Columns {
		seen := false
		isNumeric := true
		for _, row := range ds.Rows {
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isNumeric = false
				break
			}
		}
		if seen && isNumeric {
			numeric = append(numeric, col)
		}
	}
	return model.NewSchema(ds.Columns, "", numeric)
}
