// Package store keeps the history of completed update-expired runs.
package store

import (
	"context"
	"time"
)

// DefaultSize is the number of records kept when no size is configured.
const DefaultSize = 100

// Record describes one settled remote call. Cache hits are never recorded.
type Record struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	UpdatedCount int       `json:"updated_count"`
	Failed       bool      `json:"failed"`
	Error        string    `json:"error,omitempty"`
	Forced       bool      `json:"forced"`
}

// Store is the interface for persisting run history.
type Store interface {
	// Append records a completed run. Older records beyond the store's
	// capacity are dropped.
	Append(ctx context.Context, r Record) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	// Close releases any resources held by the store.
	Close() error
}
