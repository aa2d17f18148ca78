// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// TypeConverter maps between SQL values and dataset cells
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Layout used to render timestamps as cells
	TimestampLayout string
	// Whether empty cells are written as NULL
	EmptyStringAsNull bool
	// Column type for numeric features in created tables
	NumericType string
	// Column type for everything else
	TextType string
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		TimestampLayout:   "2006-01-02T15:04:05Z07:00",
		EmptyStringAsNull: true,
		NumericType:       "DOUBLE PRECISION",
		TextType:          "TEXT",
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// PostgresType returns the column type used for a column of the given kind
func (c *TypeConverter) PostgresType(kind model.ColumnKind) string {
	if kind == model.KindNumeric {
		return c.config.NumericType
	}
	return c.config.TextType
}

// GenerateColumnDefinitions creates PostgreSQL column definitions for a schema
func (c *TypeConverter) GenerateColumnDefinitions(schema *model.Schema) []string {
	definitions := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		definitions = append(definitions, fmt.Sprintf("%s %s NULL",
			QuoteIdentifier(col.Name),
			c.PostgresType(col.Kind)))
	}
	return definitions
}

// QuoteIdentifier properly quotes and escapes a PostgreSQL identifier
func QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(name, "\"", "\"\""))
}
