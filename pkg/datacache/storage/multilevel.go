package storage

import (
	"errors"
	"fmt"
	"sort"
)

// MultiLevelAdapter pairs a fast primary with a persistent secondary. Reads
// check the primary first and promote secondary hits; writes go to both.
type MultiLevelAdapter struct {
	primary   Adapter
	secondary Adapter
}

// NewMultiLevelAdapter creates a two-level adapter.
func NewMultiLevelAdapter(primary, secondary Adapter) *MultiLevelAdapter {
	return &MultiLevelAdapter{primary: primary, secondary: secondary}
}

// GetItem reads from the primary, falling back to the secondary.
func (a *MultiLevelAdapter) GetItem(key string) ([]byte, error) {
	if value, err := a.primary.GetItem(key); err == nil {
		return value, nil
	}

	value, err := a.secondary.GetItem(key)
	if err != nil {
		return nil, err
	}

	// Promotion is best-effort
	_ = a.primary.SetItem(key, value)
	return value, nil
}

// SetItem writes both levels. A secondary failure is returned, but the
// primary write stands.
func (a *MultiLevelAdapter) SetItem(key string, value []byte) error {
	if err := a.primary.SetItem(key, value); err != nil {
		return fmt.Errorf("primary set: %w", err)
	}
	if err := a.secondary.SetItem(key, value); err != nil {
		return fmt.Errorf("secondary set: %w", err)
	}
	return nil
}

// RemoveItem removes the key from both levels.
func (a *MultiLevelAdapter) RemoveItem(key string) error {
	var errs []error

	if err := a.primary.RemoveItem(key); err != nil {
		errs = append(errs, fmt.Errorf("primary remove: %w", err))
	}
	if err := a.secondary.RemoveItem(key); err != nil {
		errs = append(errs, fmt.Errorf("secondary remove: %w", err))
	}
	return errors.Join(errs...)
}

// Clear clears both levels.
func (a *MultiLevelAdapter) Clear() error {
	var errs []error

	if err := a.primary.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("primary clear: %w", err))
	}
	if err := a.secondary.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("secondary clear: %w", err))
	}
	return errors.Join(errs...)
}

// Keys returns the union of both levels' keys.
func (a *MultiLevelAdapter) Keys() ([]string, error) {
	seen := make(map[string]struct{})

	primaryKeys, err := a.primary.Keys()
	if err != nil {
		return nil, fmt.Errorf("primary keys: %w", err)
	}
	secondaryKeys, err := a.secondary.Keys()
	if err != nil {
		return nil, fmt.Errorf("secondary keys: %w", err)
	}

	keys := make([]string, 0, len(primaryKeys)+len(secondaryKeys))
	for _, k := range append(primaryKeys, secondaryKeys...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes both levels.
func (a *MultiLevelAdapter) Close() error {
	return errors.Join(a.primary.Close(), a.secondary.Close())
}
