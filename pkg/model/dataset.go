// pkg/model/dataset.go
package model

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrColumnNotFound is returned when a named column is absent from a Dataset
var ErrColumnNotFound = errors.New("column not found")

// Dataset is a tabular dataset with ordered columns and string cells.
// Row order is the only identity a row has.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// NewDataset creates a dataset, checking every row has one cell per column
func NewDataset(columns []string, rows [][]string) (*Dataset, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
	}
	return &Dataset{Columns: columns, Rows: rows}, nil
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// ColumnIndex returns the position of a column, or -1
func (d *Dataset) ColumnIndex(name string) int {
	for i, col := range d.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset has the named column
func (d *Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column's cells
func (d *Dataset) Column(name string) ([]string, error) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Select returns a new dataset holding only the named columns, in that order
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		idx := d.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		indices[i] = idx
	}

	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		selected := make([]string, len(indices))
		for j, idx := range indices {
			selected[j] = row[idx]
		}
		rows[i] = selected
	}

	return &Dataset{Columns: append([]string(nil), names...), Rows: rows}, nil
}

// Difference returns the column names not in exclude, sorted ascending
func (d *Dataset) Difference(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	seen := make(map[string]bool, len(d.Columns))
	result := make([]string, 0, len(d.Columns))
	for _, col := range d.Columns {
		if skip[col] || seen[col] {
			continue
		}
		seen[col] = true
		result = append(result, col)
	}
	sort.Strings(result)
	return result
}

// Drop returns a new dataset without the named columns
func (d *Dataset) Drop(names ...string) *Dataset {
	skip := make(map[string]bool, len(names))
	for _, name := range names {
		skip[name] = true
	}

	var keep []string
	for _, col := range d.Columns {
		if !skip[col] {
			keep = append(keep, col)
		}
	}

	// Every kept column exists, Select cannot fail
	out, _ := d.Select(keep...)
	return out
}

// WithColumn sets a derived column in place, replacing it when it already exists
func (d *Dataset) WithColumn(name string, values []string) error {
	if len(values) != len(d.Rows) {
		return fmt.Errorf("column %s has %d values, dataset has %d rows", name, len(values), len(d.Rows))
	}

	idx := d.ColumnIndex(name)
	if idx >= 0 {
		for i := range d.Rows {
			d.Rows[i][idx] = values[i]
		}
		return nil
	}

	d.Columns = append(d.Columns, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], values[i])
	}
	return nil
}

// Take returns a new dataset with the rows at the given positions
func (d *Dataset) Take(indices []int) *Dataset {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = d.Rows[idx]
	}
	return &Dataset{Columns: d.Columns, Rows: rows}
}

// Shuffle returns a new dataset with rows permuted by a seeded source.
// The same seed always yields the same order.
func (d *Dataset) Shuffle(seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	return d.Take(rng.Perm(len(d.Rows)))
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return &Dataset{Columns: append([]string(nil), d.Columns...), Rows: rows}
}
