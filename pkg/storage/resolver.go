// pkg/storage/resolver.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/model"
)

// ErrNoRemoteStore is returned when a location needs S3 but none is configured
var ErrNoRemoteStore = errors.New("no remote store configured")

// Source identifies where a dataset was read from or written to
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "s3"
	SourceTable  Source = "table"
)

// Resolver dispatches dataset reads and writes between the local filesystem,
// the object store under the configured prefix, and registered table stores.
//
// Plain paths are tried locally first. Only a missing file (or, for writes, a
// missing directory) falls back to the object store; every other local error
// is returned to the caller.
type Resolver struct {
	local  Store
	remote Store
	cfg    *config.StorageConfig
	tables map[string]TableStore
	logger *zap.Logger
}

// NewResolver creates a resolver. remote may be nil to disable the S3 fallback.
func NewResolver(cfg *config.StorageConfig, local, remote Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.L()
	}
	if local == nil {
		local = NewLocalStore()
	}
	return &Resolver{
		local:  local,
		remote: remote,
		cfg:    cfg,
		tables: make(map[string]TableStore),
		logger: logger.Named("resolver"),
	}
}

// RegisterTableStore makes scheme:// locations resolve to the given table store
func (r *Resolver) RegisterTableStore(scheme string, store TableStore) {
	r.tables[scheme] = store
}

// Remote returns the object store, or nil
func (r *Resolver) Remote() Store {
	return r.remote
}

// Open returns a reader for a file or s3 location, applying the local-then-remote fallback
func (r *Resolver) Open(ctx context.Context, location string) (io.ReadCloser, Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, "", err
	}

	switch loc.Scheme {
	case SchemeS3:
		if r.remote == nil {
			return nil, "", fmt.Errorf("%w for %s", ErrNoRemoteStore, location)
		}
		rc, err := r.remote.Open(ctx, location)
		return rc, SourceRemote, err
	case SchemeFile:
	default:
		return nil, "", fmt.Errorf("location %s is a table, not an object", location)
	}

	rc, err := r.local.Open(ctx, loc.Path)
	if err == nil {
		return rc, SourceLocal, nil
	}
	if !errors.Is(err, ErrNotFound) || r.remote == nil {
		return nil, "", err
	}

	remotePath := r.cfg.RemotePath(loc.Path)
	r.logger.Debug("Local file missing, trying object store",
		zap.String("path", loc.Path),
		zap.String("remote", remotePath))

	rc, err = r.remote.Open(ctx, remotePath)
	if err != nil {
		return nil, "", err
	}
	return rc, SourceRemote, nil
}

// Create returns a writer for a file or s3 location, applying the local-then-remote fallback
func (r *Resolver) Create(ctx context.Context, location string) (io.WriteCloser, Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, "", err
	}

	switch loc.Scheme {
	case SchemeS3:
		if r.remote == nil {
			return nil, "", fmt.Errorf("%w for %s", ErrNoRemoteStore, location)
		}
		wc, err := r.remote.Create(ctx, location)
		return wc, SourceRemote, err
	case SchemeFile:
	default:
		return nil, "", fmt.Errorf("location %s is a table, not an object", location)
	}

	wc, err := r.local.Create(ctx, loc.Path)
	if err == nil {
		return wc, SourceLocal, nil
	}
	if !errors.Is(err, ErrNotFound) || r.remote == nil {
		return nil, "", err
	}

	wc, err = r.remote.Create(ctx, r.cfg.RemotePath(loc.Path))
	if err != nil {
		return nil, "", err
	}
	return wc, SourceRemote, nil
}

// ReadDataset loads a dataset from a file, s3 or table location
func (r *Resolver) ReadDataset(ctx context.Context, location string) (*model.Dataset, Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, "", err
	}

	if ts, ok := r.tables[loc.Scheme]; ok {
		ds, err := ts.ReadTable(ctx, loc.Host, loc.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", location, err)
		}
		return ds, SourceTable, nil
	}

	rc, source, err := r.Open(ctx, location)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", location, err)
	}
	defer rc.Close()

	ds, err := ReadCSV(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", location, err)
	}

	r.logger.Debug("Read dataset",
		zap.String("location", location),
		zap.String("source", string(source)),
		zap.Int("rows", ds.Len()),
		zap.Int("columns", len(ds.Columns)))

	return ds, source, nil
}

// WriteDataset persists a dataset to a file, s3 or table location
func (r *Resolver) WriteDataset(ctx context.Context, location string, ds *model.Dataset) (Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return "", err
	}

	if ts, ok := r.tables[loc.Scheme]; ok {
		if err := ts.WriteTable(ctx, loc.Host, loc.Path, ds); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", location, err)
		}
		return SourceTable, nil
	}

	wc, source, err := r.Create(ctx, location)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", location, err)
	}

	if err := WriteCSV(wc, ds); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to write %s: %w", location, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to persist %s: %w", location, err)
	}

	r.logger.Debug("Wrote dataset",
		zap.String("location", location),
		zap.String("source", string(source)),
		zap.Int("rows", ds.Len()))

	return source, nil
}
