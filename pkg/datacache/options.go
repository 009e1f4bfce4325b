package datacache

import "time"

// SetOption customizes a single Set or GetOrSet call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl      time.Duration
	ttlSet   bool
	metadata map[string]any
}

// WithTTL overrides the configured default TTL. Zero means the entry never
// expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithMetadata attaches metadata to the stored entry.
func WithMetadata(metadata map[string]any) SetOption {
	return func(o *setOptions) {
		o.metadata = metadata
	}
}
