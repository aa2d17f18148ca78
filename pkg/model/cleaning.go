// pkg/model/cleaning.go
package model

// CleaningOperation records a single change made while cleaning a dataset
type CleaningOperation struct {
	Source            string // Dataset location the change applies to
	ColumnName        string // Column name after cleaning
	OriginalValue     string // Value before cleaning
	NewValue          string // Value after cleaning
	CleaningOperation string // Type of cleaning performed (e.g., "strip_whitespace")
	CleaningReason    string // Reason for cleaning (e.g., "padded_column_name")
}
