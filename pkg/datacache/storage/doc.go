// Package storage provides the persistence adapters a datacache mirrors its
// entries to: a process-local memory map, a local directory that survives
// restarts, a per-session directory, and a two-level combination.
package storage
