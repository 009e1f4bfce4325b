package storage

import "errors"

// Common errors for storage adapters
var (
	// ErrNotFound is returned by GetItem when no value is stored for a key
	ErrNotFound = errors.New("item not found")

	// ErrStorageUnavailable is returned when the backing store cannot be used
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DefaultPrefix is the namespace applied to persisted keys when none is set.
const DefaultPrefix = "dataCache_"

// Adapter is the persistence capability set a cache mirrors its entries to.
// Keys passed to an adapter are unprefixed; the adapter applies its own
// namespace so unrelated data in the same backing store is never touched.
type Adapter interface {
	// GetItem returns the stored value or ErrNotFound.
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error

	// Clear removes every item under this adapter's prefix and nothing else.
	Clear() error

	// Keys lists the unprefixed keys currently stored.
	Keys() ([]string, error)

	Close() error
}

// NopAdapter discards writes and stores nothing. Caches fall back to it when
// their configured storage is unavailable.
type NopAdapter struct{}

func (NopAdapter) GetItem(string) ([]byte, error) { return nil, ErrNotFound }
func (NopAdapter) SetItem(string, []byte) error   { return nil }
func (NopAdapter) RemoveItem(string) error        { return nil }
func (NopAdapter) Clear() error                   { return nil }
func (NopAdapter) Keys() ([]string, error)        { return nil, nil }
func (NopAdapter) Close() error                   { return nil }
