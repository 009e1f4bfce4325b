package datacache

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/pkg/datacache/storage"
	"github.com/spf13/afero"
)

// StorageType selects the adapter a cache mirrors its entries to
type StorageType string

const (
	// StorageMemory keeps entries in process memory only
	StorageMemory StorageType = "memory"

	// StorageLocal persists entries in a directory that survives restarts
	StorageLocal StorageType = "local"

	// StorageSession persists entries for the current session
	StorageSession StorageType = "session"

	// StorageMulti pairs a memory primary with a local secondary
	StorageMulti StorageType = "multi"
)

// String returns the string representation of the storage type
func (t StorageType) String() string { return string(t) }

// EvictionPolicy selects which entry is removed when a cache is full
type EvictionPolicy string

const (
	// EvictLRU removes the entry that was read least recently
	EvictLRU EvictionPolicy = "lru"

	// EvictLFU removes the entry that was read the fewest times
	EvictLFU EvictionPolicy = "lfu"

	// EvictFIFO removes the entry that was inserted first
	EvictFIFO EvictionPolicy = "fifo"
)

// String returns the string representation of the eviction policy
func (p EvictionPolicy) String() string { return string(p) }

// Entry is one cached item.
type Entry[V any] struct {
	Key   string
	Value V

	// ExpiryAt is zero for entries that never expire.
	ExpiryAt       time.Time
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64

	Metadata map[string]any
}

// Expired reports whether the entry is past its expiry at now.
func (e *Entry[V]) Expired(now time.Time) bool {
	return !e.ExpiryAt.IsZero() && !now.Before(e.ExpiryAt)
}

// KeyValue is a live key and its value.
type KeyValue[V any] struct {
	Key   string
	Value V
}

// Stats is a snapshot of cache metrics
type Stats struct {
	// Counters
	Hits          int64
	Misses        int64
	Sets          int64
	Deletes       int64
	Evictions     int64
	Expirations   int64
	PersistErrors int64
	HitRate       float64 // hits / (hits + misses)

	// Current state
	ItemCount       int
	ExpiredCount    int // past expiry, not yet removed
	ApproxSizeBytes int64

	// Age and usage
	OldestItemAge      time.Duration
	NewestItemAge      time.Duration
	AverageAccessCount float64

	// Configuration
	StorageType    StorageType
	EvictionPolicy EvictionPolicy
}

// Config holds configuration for cache instances
type Config struct {
	// Expiry and capacity
	DefaultTTL   time.Duration // TTL for Set calls without WithTTL (0 = never expire)
	MaxEntries   int           // Capacity bound, at least 1
	MaxSizeBytes int64         // Optional bound on ApproxSizeBytes (0 = none)

	EvictionPolicy EvictionPolicy

	// Persistence
	StorageType   StorageType
	StoragePrefix string
	StorageDir    string // Local directory (default: user data dir)
	SessionID     string // Session identity (default: generated per process)

	// Adapter overrides StorageType when set
	Adapter storage.Adapter

	// Fs backs the file adapters (default: OS filesystem)
	Fs afero.Fs

	// Serialization of persisted records
	Codec                Codec
	CompressionThreshold int // Zstd-compress records larger than this (0 = never)

	// Cleanup settings
	CleanupInterval time.Duration // How often the reaper runs (0 = disabled)

	Logger *log.Logger
	Clock  func() time.Time
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL:           5 * time.Minute,
		MaxEntries:           1000,
		EvictionPolicy:       EvictLRU,
		StorageType:          StorageMemory,
		StoragePrefix:        storage.DefaultPrefix,
		Codec:                JSONCodec{},
		CompressionThreshold: 10 * 1024,
		CleanupInterval:      time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageLocal, StorageSession, StorageMulti:
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.StorageType)
	}

	switch c.EvictionPolicy {
	case EvictLRU, EvictLFU, EvictFIFO:
	default:
		return fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidConfig, c.EvictionPolicy)
	}

	if c.MaxEntries < 1 {
		return fmt.Errorf("%w: max entries must be at least 1, got %d", ErrInvalidConfig, c.MaxEntries)
	}
	if c.MaxSizeBytes < 0 {
		return fmt.Errorf("%w: max size must not be negative, got %d", ErrInvalidConfig, c.MaxSizeBytes)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: default TTL must not be negative, got %s", ErrInvalidConfig, c.DefaultTTL)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("%w: cleanup interval must not be negative, got %s", ErrInvalidConfig, c.CleanupInterval)
	}
	if c.CompressionThreshold < 0 {
		return fmt.Errorf("%w: compression threshold must not be negative, got %d", ErrInvalidConfig, c.CompressionThreshold)
	}

	return nil
}

// withDefaults fills unset optional fields.
func (c Config) withDefaults() Config {
	if c.StorageType == "" {
		c.StorageType = StorageMemory
	}
	if c.EvictionPolicy == "" {
		c.EvictionPolicy = EvictLRU
	}
	if c.StoragePrefix == "" {
		c.StoragePrefix = storage.DefaultPrefix
	}
	if c.Codec == nil {
		c.Codec = JSONCodec{}
	}
	if c.Logger == nil {
		c.Logger = log.Default().WithPrefix("datacache")
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}
