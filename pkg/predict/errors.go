// pkg/predict/errors.go
package predict

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCategory classifies failures recorded on a run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryData
	ErrorCategoryModelLoad
	ErrorCategoryPrediction
	ErrorCategoryStorage
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryData:
		return "Data"
	case ErrorCategoryModelLoad:
		return "ModelLoad"
	case ErrorCategoryPrediction:
		return "Prediction"
	case ErrorCategoryStorage:
		return "Storage"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// MarshalText lets categories key JSON maps by name
func (ec ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// ErrorRecord represents a single failure during a run
type ErrorRecord struct {
	Category  ErrorCategory
	Location  string
	Fold      int // 1-based, 0 when not fold specific
	Error     error
	Message   string // Derived from Error but stored for serialization
	Timestamp time.Time
	Swallowed bool // Logged and not returned to the caller
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: time.Now(),
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithLocation adds the dataset or model location to the error record
func (r ErrorRecord) WithLocation(location string) ErrorRecord {
	r.Location = location
	return r
}

// WithFold adds the cross-validation fold to the error record
func (r ErrorRecord) WithFold(fold int) ErrorRecord {
	r.Fold = fold
	return r
}

// AsSwallowed marks the error as logged but not returned
func (r ErrorRecord) AsSwallowed() ErrorRecord {
	r.Swallowed = true
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s ", r.Location))
	}

	if r.Fold > 0 {
		sb.WriteString(fmt.Sprintf("Fold: %d ", r.Fold))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.Swallowed {
		sb.WriteString(" (swallowed)")
	}

	return sb.String()
}
