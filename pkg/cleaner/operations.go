// pkg/cleaner/operations.go
package cleaner

import (
	"errors"
	"strings"
	"unicode"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrDuplicateColumn is returned when two column names are equal after
// cleaning, including names already repeated in the raw header
var ErrDuplicateColumn = errors.New("duplicate column name")

const (
	opStripWhitespace    = "strip_whitespace"
	reasonPaddedName     = "padded_column_name"
	reasonNonBreakingPad = "non_breaking_space_in_column_name"
)

// stripColumnName trims leading and trailing whitespace from a header cell
func stripColumnName(name string) (string, model.CleaningOperation, bool) {
	trimmed := strings.TrimFunc(name, unicode.IsSpace)
	if trimmed == name {
		return name, model.CleaningOperation{}, false
	}

	reason := reasonPaddedName
	if strings.ContainsRune(name, '\u00a0') {
		reason = reasonNonBreakingPad
	}

	return trimmed, model.CleaningOperation{
		ColumnName:        trimmed,
		OriginalValue:     name,
		NewValue:          trimmed,
		CleaningOperation: opStripWhitespace,
		CleaningReason:    reason,
	}, true
}
