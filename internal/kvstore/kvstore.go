// Package kvstore is a small string-keyed store backed by one file per key.
package kvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store is a string-keyed value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// FileStore keeps each key in its own file under Dir. A lock file serializes
// access between processes sharing the directory.
type FileStore struct {
	Dir  string
	lock *flock.Flock
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		Dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

// Get returns the value for key. The bool is false when the key was never set.
func (s *FileStore) Get(key string) (string, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}

	if err := s.lock.RLock(); err != nil {
		return "", false, fmt.Errorf("acquire read lock: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set replaces the value for key. The write goes to a temp file first and is
// renamed into place so readers never see a partial value.
func (s *FileStore) Set(key, value string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer s.lock.Unlock()

	tmp, err := os.CreateTemp(s.Dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *FileStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	values map[string]string
	// SetErr, when non-nil, is returned by every Set.
	SetErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	return nil
}
