// pkg/model/schema.go
package model

import "strings"

// ColumnKind distinguishes how a feature column is preprocessed
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindTarget      ColumnKind = "target"
)

// Schema describes the feature layout of a dataset
type Schema struct {
	Columns []Column
	Target  string
}

// Column represents metadata about a dataset column
type Column struct {
	Name string
	Kind ColumnKind
}

// NewSchema classifies feature columns as numeric when listed in numerical,
// categorical otherwise. The target column is recorded but not a feature.
func NewSchema(columns []string, target string, numerical []string) *Schema {
	isNumeric := make(map[string]bool, len(numerical))
	for _, name := range numerical {
		isNumeric[normalizeColumnName(name)] = true
	}

	schema := &Schema{Target: target}
	for _, name := range columns {
		kind := KindCategorical
		switch {
		case name == target:
			kind = KindTarget
		case isNumeric[normalizeColumnName(name)]:
			kind = KindNumeric
		}
		schema.Columns = append(schema.Columns, Column{Name: name, Kind: kind})
	}
	return schema
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (s *Schema) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range s.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &s.Columns[i]
		}
	}
	return nil
}

// Names returns the names of the columns of the given kind, in schema order
func (s *Schema) Names(kind ColumnKind) []string {
	var names []string
	for _, col := range s.Columns {
		if col.Kind == kind {
			names = append(names, col.Name)
		}
	}
	return names
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
