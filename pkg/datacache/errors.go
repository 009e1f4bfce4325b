package datacache

import (
	"errors"
	"fmt"
)

// Common errors for cache operations
var (
	// ErrInvalidConfig is returned when a Config fails validation
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrItemTooLarge is returned when a value alone exceeds MaxSizeBytes
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrSerialization is wrapped around codec failures
	ErrSerialization = errors.New("serialization failed")
)

// SweepError reports a failure while the reaper handled one entry.
type SweepError struct {
	Key string
	Err error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep %q: %v", e.Key, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }
