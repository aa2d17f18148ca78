// pkg/storage/store.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrNotFound is returned when the object or file at a location does not exist
var ErrNotFound = errors.New("object not found")

// Store reads and writes whole objects addressed by path
type Store interface {
	// Open returns a reader for the object at path
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create returns a writer that persists the object when closed
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// TableStore reads and writes datasets held in database tables
type TableStore interface {
	ReadTable(ctx context.Context, schema, table string) (*model.Dataset, error)
	WriteTable(ctx context.Context, schema, table string, ds *model.Dataset) error
}

// Location schemes understood by the Resolver
const (
	SchemeFile      = ""
	SchemeS3        = "s3"
	SchemeSnowflake = "snowflake"
	SchemePostgres  = "postgres"
)

// Location is a parsed dataset address
type Location struct {
	Scheme string
	Host   string // bucket for s3, schema for table stores
	Path   string // key for s3, table for table stores, file path otherwise
	Raw    string
}

// ParseLocation splits a dataset address into scheme, host and path.
// Addresses without a known scheme are treated as file paths.
func ParseLocation(raw string) (Location, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Path: raw, Raw: raw}, nil
	}

	switch scheme {
	case SchemeS3:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, fmt.Errorf("invalid s3 location %q: want s3://bucket/key", raw)
		}
		return Location{Scheme: scheme, Host: bucket, Path: key, Raw: raw}, nil

	case SchemeSnowflake, SchemePostgres:
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch len(parts) {
		case 1:
			if parts[0] == "" {
				return Location{}, fmt.Errorf("invalid %s location %q: missing table", scheme, raw)
			}
			return Location{Scheme: scheme, Path: parts[0], Raw: raw}, nil
		case 2:
			return Location{Scheme: scheme, Host: parts[0], Path: parts[1], Raw: raw}, nil
		default:
			return Location{}, fmt.Errorf("invalid %s location %q: want %s://schema/table", scheme, raw, scheme)
		}

	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q in %q", scheme, raw)
	}
}

// String returns the address the location was parsed from
func (l Location) String() string {
	return l.Raw
}
