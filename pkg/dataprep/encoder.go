// pkg/dataprep/encoder.go
package dataprep

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// UnknownCategory is the code assigned to values not seen during Fit
const UnknownCategory = -1

// ErrNotFitted is returned when a transform runs before Fit
var ErrNotFitted = errors.New("transformer is not fitted")

// OrdinalEncoder maps each categorical column's values to integer codes.
// Categories are sorted ascending with the empty cell ordered last. A column
// whose non-empty values all parse as numbers is sorted numerically. Values
// unseen during Fit encode to UnknownCategory.
type OrdinalEncoder struct {
	Categories [][]string `json:"categories"`

	index []map[string]int
}

// Fit learns the categories of each column. columns is column-major.
func (e *OrdinalEncoder) Fit(columns [][]string) {
	e.Categories = make([][]string, len(columns))
	for j, col := range columns {
		seen := make(map[string]bool)
		hasEmpty := false
		var cats []string
		for _, v := range col {
			if v == "" {
				hasEmpty = true
				continue
			}
			if !seen[v] {
				seen[v] = true
				cats = append(cats, v)
			}
		}
		sortCategories(cats)
		if hasEmpty {
			cats = append(cats, "")
		}
		e.Categories[j] = cats
	}
	e.buildIndex()
}

// sortCategories orders cats numerically when every value is a number and
// lexically otherwise
func sortCategories(cats []string) {
	nums := make(map[string]float64, len(cats))
	for _, v := range cats {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			sort.Strings(cats)
			return
		}
		nums[v] = f
	}
	sort.Slice(cats, func(a, b int) bool {
		if nums[cats[a]] != nums[cats[b]] {
			return nums[cats[a]] < nums[cats[b]]
		}
		return cats[a] < cats[b]
	})
}

func (e *OrdinalEncoder) buildIndex() {
	e.index = make([]map[string]int, len(e.Categories))
	for j, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for code, v := range cats {
			m[v] = code
		}
		e.index[j] = m
	}
}

// UnmarshalJSON restores the categories and the lookup index
func (e *OrdinalEncoder) UnmarshalJSON(data []byte) error {
	var doc struct {
		Categories [][]string `json:"categories"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	e.Categories = doc.Categories
	e.buildIndex()
	return nil
}

// Encode returns the code for value in column j
func (e *OrdinalEncoder) Encode(j int, value string) int64 {
	if j >= len(e.index) {
		return UnknownCategory
	}
	if code, ok := e.index[j][value]; ok {
		return int64(code)
	}
	return UnknownCategory
}

// Transform encodes column-major input into column-major codes
func (e *OrdinalEncoder) Transform(columns [][]string) ([][]int64, error) {
	if e.Categories == nil || len(e.index) != len(e.Categories) {
		return nil, ErrNotFitted
	}
	if len(columns) != len(e.Categories) {
		return nil, errors.New("column count does not match fitted encoder")
	}

	out := make([][]int64, len(columns))
	for j, col := range columns {
		codes := make([]int64, len(col))
		for i, v := range col {
			codes[i] = e.Encode(j, v)
		}
		out[j] = codes
	}
	return out, nil
}
