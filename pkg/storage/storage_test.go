package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
	"github.com/David-Botos/credit-risk/pkg/model"
)

// memStore is an in-memory Store keyed by full path
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	opened  []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, path)
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Create(_ context.Context, path string) (io.WriteCloser, error) {
	return &memWriter{store: m, path: path}, nil
}

type memWriter struct {
	bytes.Buffer
	store *memStore
	path  string
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.path] = w.Bytes()
	return nil
}

type memTables struct {
	written map[string]*model.Dataset
}

func (t *memTables) ReadTable(_ context.Context, schema, table string) (*model.Dataset, error) {
	ds, ok := t.written[schema+"."+table]
	if !ok {
		return nil, ErrNotFound
	}
	return ds, nil
}

func (t *memTables) WriteTable(_ context.Context, schema, table string, ds *model.Dataset) error {
	t.written[schema+"."+table] = ds
	return nil
}

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{URLPrefix: "s3://mlops", Region: "us-east-1", UsePathStyle: true}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw    string
		want   Location
		hasErr bool
	}{
		{raw: "data/credit.csv", want: Location{Scheme: SchemeFile, Path: "data/credit.csv"}},
		{raw: "s3://mlops/data/credit.csv", want: Location{Scheme: SchemeS3, Host: "mlops", Path: "data/credit.csv"}},
		{raw: "snowflake://CREDIT_TRAIN", want: Location{Scheme: SchemeSnowflake, Path: "CREDIT_TRAIN"}},
		{raw: "postgres://scoring/predictions", want: Location{Scheme: SchemePostgres, Host: "scoring", Path: "predictions"}},
		{raw: "s3://mlops", hasErr: true},
		{raw: "postgres://a/b/c", hasErr: true},
		{raw: "ftp://host/file", hasErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.hasErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("\ufeffage, class\n30,good\n45,bad\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"age", " class"}, ds.Columns)
	assert.Equal(t, 2, ds.Len())

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	ds, err := model.NewDataset([]string{"purpose", "class"}, [][]string{{"radio, tv", "good"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	assert.Equal(t, "purpose,class\n\"radio, tv\",good\n", buf.String())
}

func TestResolver_LocalFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credit.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,class\n30,good\n"), 0o644))

	remote := newMemStore()
	r := NewResolver(testStorageConfig(), nil, remote, zap.NewNop())

	ds, source, err := r.ReadDataset(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, source)
	assert.Equal(t, 1, ds.Len())
}

func TestResolver_RemoteFallback(t *testing.T) {
	remote := newMemStore()
	remote.objects["s3://mlops/data/credit.csv"] = []byte("age,class\n30,good\n41,bad\n")
	r := NewResolver(testStorageConfig(), nil, remote, zap.NewNop())

	ds, source, err := r.ReadDataset(context.Background(), "data/credit.csv")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)
	assert.Equal(t, 2, ds.Len())

	// Writes fall back when the local directory does not exist
	source, err = r.WriteDataset(context.Background(), filepath.Join("missing-dir", "out.csv"), ds)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, source)
	assert.Contains(t, remote.objects, "s3://mlops/missing-dir/out.csv")
}

func TestResolver_LocalErrorNotMasked(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "malformed.csv")
	require.NoError(t, os.WriteFile(malformed, []byte("age,class\n30\n"), 0o644))

	unreadable := filepath.Join(dir, "unreadable.csv")
	require.NoError(t, os.WriteFile(unreadable, []byte("age,class\n30,good\n"), 0o000))

	tests := []struct {
		name     string
		path     string
		needsUID bool
	}{
		{name: "malformed csv", path: malformed},
		{name: "permission denied", path: unreadable, needsUID: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.needsUID && os.Geteuid() == 0 {
				t.Skip("root can read files without permission bits")
			}

			remote := newMemStore()
			remote.objects[testStorageConfig().RemotePath(tt.path)] = []byte("age,class\n41,bad\n")
			r := NewResolver(testStorageConfig(), nil, remote, zap.NewNop())

			_, _, err := r.ReadDataset(context.Background(), tt.path)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.Empty(t, remote.opened, "local failure must not fall back to the object store")
		})
	}
}

func TestResolver_NoRemote(t *testing.T) {
	r := NewResolver(testStorageConfig(), nil, nil, zap.NewNop())

	_, _, err := r.ReadDataset(context.Background(), filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = r.ReadDataset(context.Background(), "s3://mlops/credit.csv")
	assert.ErrorIs(t, err, ErrNoRemoteStore)
}

func TestResolver_Tables(t *testing.T) {
	tables := &memTables{written: make(map[string]*model.Dataset)}
	r := NewResolver(testStorageConfig(), nil, nil, zap.NewNop())
	r.RegisterTableStore(SchemePostgres, tables)

	ds, err := model.NewDataset([]string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	source, err := r.WriteDataset(context.Background(), "postgres://scoring/predictions", ds)
	require.NoError(t, err)
	assert.Equal(t, SourceTable, source)

	got, source, err := r.ReadDataset(context.Background(), "postgres://scoring/predictions")
	require.NoError(t, err)
	assert.Equal(t, SourceTable, source)
	assert.Same(t, ds, got)

	_, _, err = r.Open(context.Background(), "snowflake://CREDIT")
	assert.Error(t, err)
}

// fakeS3 serves path-style GetObject and PutObject requests
func fakeS3(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	var mu sync.Mutex
	objects := map[string][]byte{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			data, ok := objects[r.URL.Path]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			objects[r.URL.Path] = body
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, objects
}

func TestS3Store(t *testing.T) {
	srv, objects := fakeS3(t)
	objects["/mlops/data/credit.csv"] = []byte("age,class\n30,good\n")

	cfg := testStorageConfig()
	cfg.EndpointURL = srv.URL
	store := NewS3Store(cfg, zap.NewNop())
	ctx := context.Background()

	rc, err := store.Open(ctx, "s3://mlops/data/credit.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "age,class\n30,good\n", string(data))

	_, err = store.Open(ctx, "s3://mlops/data/missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	wc, err := store.Create(ctx, "s3://mlops/out/predictions.csv")
	require.NoError(t, err)
	_, err = io.WriteString(wc, "a\n1\n")
	require.NoError(t, err)
	require.NoError(t, wc.Close())
	assert.Equal(t, "a\n1\n", string(objects["/mlops/out/predictions.csv"]))

	_, err = store.Open(ctx, "data/credit.csv")
	assert.Error(t, err)
}
