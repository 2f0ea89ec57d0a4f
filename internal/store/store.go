// Package store is the persistent key-value layer behind the export and
// match run state. Values are JSON documents, one file per key, written
// atomically. Two directories back the store: a primary area and a fallback
// used when the primary is not writable; once a write falls back, later
// reads and writes for that store prefer the fallback.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys.
const (
	KeyExportState   = "export_state"
	KeyExportPartial = "export_partial"
	KeyExportPayload = "export_payload"
	KeyMatchState    = "match_state"
	KeyMatchResults  = "match_results"
	KeyFollowState   = "follow_state"
	KeyAuthToken     = "auth_token"
)

type Store struct {
	mu       sync.Mutex
	primary  string
	fallback string
	degraded bool

	watchMu  sync.Mutex
	watchers map[int]func(key string)
	nextID   int
}

// Open prepares a store over the two areas. The fallback may be empty, in
// which case primary write failures are returned to the caller.
func Open(primary, fallback string) (*Store, error) {
	if primary == "" {
		return nil, errors.New("store: primary dir required")
	}

	if err := os.MkdirAll(primary, 0755); err != nil {
		if fallback == "" {
			return nil, fmt.Errorf("store: %w", err)
		}
		if err := os.MkdirAll(fallback, 0755); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	return &Store{
		primary:  primary,
		fallback: fallback,
		watchers: map[int]func(string){},
	}, nil
}

// Get reads the value stored under key into v. The second return is false
// when the key is absent in both areas.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	paths := s.readOrder(key)
	s.mu.Unlock()

	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			// absent or unreadable area; the other one may still hold it
			continue
		}

		if err := json.Unmarshal(b, v); err != nil {
			return false, fmt.Errorf("store: decode %s: %w", key, err)
		}

		return true, nil
	}

	return false, nil
}

// Set persists v under key and notifies watchers.
func (s *Store) Set(key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}

	s.mu.Lock()
	err = writeAtomic(s.activeDir(), key, b)
	if err != nil && s.fallback != "" && !s.degraded {
		if ferr := writeAtomic(s.fallback, key, b); ferr == nil {
			s.degraded = true
			err = nil
		}
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}

	s.notify(key)

	return nil
}

// Delete removes the keys from both areas. Missing keys are not an error.
func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	dirs := []string{s.primary}
	if s.fallback != "" {
		dirs = append(dirs, s.fallback)
	}
	s.mu.Unlock()

	for _, key := range keys {
		for _, dir := range dirs {
			if err := os.Remove(filepath.Join(dir, key+".json")); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("store: delete %s: %w", key, err)
			}
		}
		s.notify(key)
	}

	return nil
}

// Watch registers a change callback invoked with the key on every Set and
// Delete. The returned func unregisters it.
func (s *Store) Watch(fn func(key string)) func() {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Store) notify(key string) {
	s.watchMu.Lock()
	fns := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

func (s *Store) activeDir() string {
	if s.degraded && s.fallback != "" {
		return s.fallback
	}

	return s.primary
}

func (s *Store) readOrder(key string) []string {
	first, second := s.primary, s.fallback
	if s.degraded && s.fallback != "" {
		first, second = s.fallback, s.primary
	}

	paths := []string{filepath.Join(first, key+".json")}
	if second != "" {
		paths = append(paths, filepath.Join(second, key+".json"))
	}

	return paths
}

func writeAtomic(dir, key string, b []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, key+".json"))
}
