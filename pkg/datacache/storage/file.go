package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const entrySuffix = ".entry"

// fileStore stores one file per item below dir. LocalAdapter and
// SessionAdapter differ only in where dir lives and how long it is kept.
type fileStore struct {
	fs     afero.Fs
	dir    string
	prefix string

	mu sync.RWMutex
}

func newFileStore(fs afero.Fs, dir, prefix string) (*fileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create directory %s: %v", ErrStorageUnavailable, dir, err)
	}

	return &fileStore{fs: fs, dir: dir, prefix: prefix}, nil
}

func (s *fileStore) getItem(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

func (s *fileStore) setItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(s.path(key), value); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *fileStore) removeItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// clear removes only files carrying this store's prefix.
func (s *fileStore) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryNames()
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		if err := s.fs.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.entryNames()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		encoded := strings.TrimSuffix(strings.TrimPrefix(name, s.prefix), entrySuffix)
		key, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			// Not one of ours.
			continue
		}
		keys = append(keys, string(key))
	}
	sort.Strings(keys)
	return keys, nil
}

// entryNames lists file names under dir that belong to this prefix (must be
// called with lock held).
func (s *fileStore) entryNames() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, s.prefix) || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// path maps a key to its file. Keys may contain any byte, so the name is the
// prefix plus the unpadded URL-safe base64 of the key.
func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, s.prefix+base64.RawURLEncoding.EncodeToString([]byte(key))+entrySuffix)
}

func (s *fileStore) writeFile(path string, data []byte) error {
	// Write to temp file first, then rename
	tempPath := path + ".tmp"

	if err := afero.WriteFile(s.fs, tempPath, data, 0o600); err != nil {
		_ = s.fs.Remove(tempPath)
		return err
	}

	return s.fs.Rename(tempPath, path)
}
