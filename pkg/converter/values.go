// pkg/converter/values.go
package converter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// ToCell converts a value scanned from a database driver to a dataset cell.
// NULL becomes the empty cell, which the CSV codec writes as an empty field.
func (c *TypeConverter) ToCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", v)
	case time.Time:
		return v.Format(c.config.TimestampLayout)
	case fmt.Stringer:
		return v.String()
	default:
		// Try JSON marshaling for complex types
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			c.logger.Debug("Falling back to fmt for cell value", zap.String("type", fmt.Sprintf("%T", v)))
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

// FromCell converts a dataset cell to a value suitable for an INSERT parameter
func (c *TypeConverter) FromCell(cell string, kind model.ColumnKind) (interface{}, error) {
	if isNull(cell) && c.config.EmptyStringAsNull {
		return nil, nil
	}

	if kind != model.KindNumeric {
		return cell, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return nil, fmt.Errorf("cannot convert string '%s' to numeric", cell)
	}
	return value, nil
}

// isNull determines if a cell should be treated as NULL
func isNull(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "null", "NULL", "nil", "NIL", "NaN":
		return true
	}
	return false
}
