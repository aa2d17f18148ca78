// pkg/storage/local.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// LocalStore implements Store on the local filesystem
type LocalStore struct{}

// NewLocalStore creates a filesystem store
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Open opens a local file for reading
func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return f, nil
}

// Create creates or truncates a local file. The parent directory must exist.
func (s *LocalStore) Create(_ context.Context, path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return f, nil
}
