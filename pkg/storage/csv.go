// pkg/storage/csv.go
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrEmptyDataset is returned when a CSV has no header row
var ErrEmptyDataset = errors.New("no columns to parse from file")

// ReadCSV parses a CSV with a header row into a Dataset
func ReadCSV(r io.Reader) (*model.Dataset, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, record)
	}

	return model.NewDataset(header, rows)
}

// WriteCSV writes a Dataset as CSV with a header row and no index column
func WriteCSV(w io.Writer, ds *model.Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(ds.Rows); err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}

	return nil
}
