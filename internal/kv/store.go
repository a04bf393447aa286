package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/safar/go-storefront/internal/database"
	"go.uber.org/zap"
)

type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Data          json.RawMessage `json:"data"`
}

// Store mirrors backend entries in memory for the life of the process.
// Loads are served from the mirror; writes go through to the backend first
// and update the mirror only once the backend accepted them.
//
// When the backend is a Versioner, a mirrored entry is served only while its
// version still matches the backend's, so writes by other processes become
// visible on the next access. Other backends rely on Invalidate, which the
// file Watcher calls.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu     sync.Mutex
	mirror map[string]Entry
}

func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger.Named("kv"),
		mirror:  make(map[string]Entry),
	}
}

// Load decodes the value stored under key into out, which must be a
// non-nil pointer. A missing key or a value that cannot be decoded leaves
// out at its zero value; only backend failures are returned.
func (s *Store) Load(ctx context.Context, key string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entryLocked(ctx, key)
	if err != nil {
		return err
	}
	s.decode(key, entry, out)
	return nil
}

// Update performs a read-modify-write of key. out is loaded as in Load,
// fn mutates it, and the result is written back conditioned on the version
// that was read. fn must not call back into the Store.
func (s *Store) Update(ctx context.Context, key string, out any, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entryLocked(ctx, key)
	if err != nil {
		return err
	}
	s.decode(key, entry, out)

	if err := fn(); err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	value, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	version, err := s.backend.Put(ctx, key, value, entry.Version)
	if err != nil {
		if errors.Is(err, database.ErrOptimisticLockFailed) {
			delete(s.mirror, key)
			s.logger.Warn("stale write rejected",
				zap.String("key", key),
				zap.Int64("version", entry.Version))
		}
		return fmt.Errorf("put %s: %w", key, err)
	}

	s.mirror[key] = Entry{Value: value, Version: version}
	return nil
}

// Invalidate drops mirrored entries so the next access rereads the backend.
// Without keys the whole mirror is dropped.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		s.mirror = make(map[string]Entry)
		return
	}
	for _, k := range keys {
		delete(s.mirror, k)
	}
}

func (s *Store) entryLocked(ctx context.Context, key string) (Entry, error) {
	if e, ok := s.mirror[key]; ok {
		current, err := s.mirrorCurrent(ctx, key, e)
		if err != nil {
			return Entry{}, err
		}
		if current {
			return e, nil
		}
		delete(s.mirror, key)
	}

	e, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	s.mirror[key] = e
	return e, nil
}

func (s *Store) mirrorCurrent(ctx context.Context, key string, e Entry) (bool, error) {
	v, ok := s.backend.(Versioner)
	if !ok {
		return true, nil
	}
	version, err := v.Version(ctx, key)
	if err != nil {
		return false, fmt.Errorf("version %s: %w", key, err)
	}
	if version != e.Version {
		s.logger.Debug("mirror entry outdated",
			zap.String("key", key),
			zap.Int64("mirrored", e.Version),
			zap.Int64("current", version))
		return false, nil
	}
	return true, nil
}

func (s *Store) decode(key string, entry Entry, out any) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		panic(fmt.Sprintf("kv: decode target for %q must be a non-nil pointer", key))
	}
	rv.Elem().Set(reflect.Zero(rv.Elem().Type()))

	if entry.Value == nil {
		return
	}

	var env envelope
	if err := json.Unmarshal(entry.Value, &env); err != nil {
		s.malformed(key, err)
		return
	}
	if env.SchemaVersion != SchemaVersion {
		s.malformed(key, fmt.Errorf("unsupported schema version %d", env.SchemaVersion))
		return
	}
	if len(env.Data) == 0 {
		return
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
		s.malformed(key, err)
	}
}

func (s *Store) malformed(key string, err error) {
	s.logger.Warn("malformed persisted state, using default",
		zap.String("key", key),
		zap.Error(err))
}
