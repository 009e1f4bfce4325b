package storage

import (
	"fmt"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/afero"
)

// LocalAdapter persists items as files in a directory that survives process
// restarts. Several caches may share the directory as long as their prefixes
// differ.
type LocalAdapter struct {
	store *fileStore
}

// DefaultLocalDir returns the per-user data directory used when no storage
// directory is configured.
func DefaultLocalDir() (string, error) {
	dirs, err := gap.NewScope(gap.User, "datacache").DataDirs()
	if err != nil {
		return "", fmt.Errorf("%w: find data directory: %v", ErrStorageUnavailable, err)
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("%w: no data directory", ErrStorageUnavailable)
	}
	return filepath.Join(dirs[0], "local"), nil
}

// NewLocalAdapter creates a local adapter rooted at dir on fs. A nil fs uses
// the operating system's filesystem; an empty dir uses DefaultLocalDir.
func NewLocalAdapter(fs afero.Fs, dir, prefix string) (*LocalAdapter, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultLocalDir(); err != nil {
			return nil, err
		}
	}

	store, err := newFileStore(fs, dir, prefix)
	if err != nil {
		return nil, err
	}
	return &LocalAdapter{store: store}, nil
}

// Dir returns the adapter's directory.
func (a *LocalAdapter) Dir() string { return a.store.dir }

func (a *LocalAdapter) GetItem(key string) ([]byte, error)    { return a.store.getItem(key) }
func (a *LocalAdapter) SetItem(key string, value []byte) error { return a.store.setItem(key, value) }
func (a *LocalAdapter) RemoveItem(key string) error            { return a.store.removeItem(key) }
func (a *LocalAdapter) Clear() error                           { return a.store.clear() }
func (a *LocalAdapter) Keys() ([]string, error)                { return a.store.keys() }

// Close is a no-op; every write is already on disk.
func (a *LocalAdapter) Close() error { return nil }
