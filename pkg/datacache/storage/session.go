package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// SessionAdapter persists items for the duration of one session. Items live
// in a directory named after the session id below the temp directory.
//
// A session whose id was generated belongs to this adapter: Close ends it and
// removes the directory. A caller-supplied id (for example one exported by a
// shell) is shared and outlives the adapter.
type SessionAdapter struct {
	store *fileStore

	sessionID string
	startTime time.Time
	owned     bool
}

// SessionsDir returns the directory holding all session directories.
func SessionsDir() string {
	return filepath.Join(os.TempDir(), "datacache-sessions")
}

// NewSessionAdapter creates a session adapter. An empty sessionID generates a
// new process-scoped session. An empty baseDir uses SessionsDir.
func NewSessionAdapter(fs afero.Fs, baseDir, sessionID, prefix string) (*SessionAdapter, error) {
	if baseDir == "" {
		baseDir = SessionsDir()
	}

	owned := sessionID == ""
	if owned {
		sessionID = generateSessionID()
	}

	store, err := newFileStore(fs, filepath.Join(baseDir, sessionID), prefix)
	if err != nil {
		return nil, err
	}

	return &SessionAdapter{
		store:     store,
		sessionID: sessionID,
		startTime: time.Now(),
		owned:     owned,
	}, nil
}

// SessionID returns the id of the session this adapter writes to.
func (a *SessionAdapter) SessionID() string { return a.sessionID }

// Duration returns how long the adapter has been open.
func (a *SessionAdapter) Duration() time.Duration { return time.Since(a.startTime) }

func (a *SessionAdapter) GetItem(key string) ([]byte, error)    { return a.store.getItem(key) }
func (a *SessionAdapter) SetItem(key string, value []byte) error { return a.store.setItem(key, value) }
func (a *SessionAdapter) RemoveItem(key string) error            { return a.store.removeItem(key) }
func (a *SessionAdapter) Clear() error                           { return a.store.clear() }
func (a *SessionAdapter) Keys() ([]string, error)                { return a.store.keys() }

// PruneStale removes other sessions' directories that have not been modified
// for maxAge. It returns the number of sessions removed.
func (a *SessionAdapter) PruneStale(maxAge time.Duration) (int, error) {
	baseDir := filepath.Dir(a.store.dir)

	infos, err := afero.ReadDir(a.store.fs, baseDir)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	var errs []error
	for _, info := range infos {
		if !info.IsDir() || info.Name() == a.sessionID || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := a.store.fs.RemoveAll(filepath.Join(baseDir, info.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned++
	}
	return pruned, errors.Join(errs...)
}

// Close ends an owned session by removing its directory.
func (a *SessionAdapter) Close() error {
	if !a.owned {
		return nil
	}

	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if err := a.store.fs.RemoveAll(a.store.dir); err != nil {
		return fmt.Errorf("end session %s: %w", a.sessionID, err)
	}
	return nil
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	timestamp := time.Now().UnixNano()
	data := fmt.Sprintf("session-%d-%d", timestamp, os.Getpid())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
