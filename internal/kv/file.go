package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/safar/go-storefront/internal/database"
)

const fileExt = ".json"

type fileRecord struct {
	Version int64           `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// FileBackend stores one JSON file per key under Dir. It is the on-disk
// counterpart of a browser's local storage: every process pointed at the
// same directory shares state, and version checks only catch a concurrent
// writer that finished before our read-compare-rename.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) Dir() string { return f.dir }

func (f *FileBackend) Get(ctx context.Context, key string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read(key)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Value: []byte(rec.Value), Version: rec.Version}, nil
}

func (f *FileBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var current int64
	rec, err := f.read(key)
	switch {
	case err == nil:
		current = rec.Version
	case errors.Is(err, ErrNotFound):
	default:
		return 0, err
	}
	if current != expectedVersion {
		return 0, database.ErrOptimisticLockFailed
	}

	next := expectedVersion + 1
	data, err := json.Marshal(fileRecord{Version: next, Value: value})
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return 0, fmt.Errorf("rename %s: %w", key, err)
	}
	return next, nil
}

// read treats an unparseable file as a value at version 0 so the store's
// malformed-state fallback can take over and the next write repairs it.
func (f *FileBackend) read(key string) (fileRecord, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fileRecord{}, ErrNotFound
	}
	if err != nil {
		return fileRecord{}, fmt.Errorf("read %s: %w", key, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fileRecord{Value: data}, nil
	}
	return rec, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileExt)
}

// keyFromPath reverses path; ok is false for files the backend does not own.
func keyFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}
