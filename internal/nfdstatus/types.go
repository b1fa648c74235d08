package nfdstatus

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_remote.go -package=mocks -source=types.go

// RemoteClient performs the backend calls the coordinator mediates.
type RemoteClient interface {
	// UpdateExpired marks every expired record and returns how many changed.
	// An application-level "success: false" answer is reported as an error.
	UpdateExpired(ctx context.Context) (int, error)
	// CheckExpired returns a read-only preview of the expired records.
	CheckExpired(ctx context.Context) (Preview, error)
}

// Outcome is the result of one remote update attempt. The zero value means
// no attempt has completed yet.
type Outcome struct {
	UpdatedCount int       `json:"updated_count"`
	Failed       bool      `json:"failed"`
	Error        string    `json:"error,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	Forced       bool      `json:"forced"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
}

// Changed reports whether the attempt marked at least one record.
func (o Outcome) Changed() bool {
	return !o.Failed && o.UpdatedCount > 0
}

// Preview is the read-only answer of the check-expired endpoint.
type Preview struct {
	TotalExpired int    `json:"total_expired"`
	Message      string `json:"message,omitempty"`
}

// Snapshot is a point-in-time copy of the coordinator state.
type Snapshot struct {
	// LastRunAt is when the last remote call completed; zero if none has.
	LastRunAt   time.Time
	InFlight    bool
	LastOutcome Outcome
	TTL         time.Duration
}

// HasRun reports whether any remote call has completed.
func (s Snapshot) HasRun() bool {
	return !s.LastRunAt.IsZero()
}

// ExpiresAt is when the cached outcome stops short-circuiting AutoUpdate.
// It is the zero time if nothing has run yet.
func (s Snapshot) ExpiresAt() time.Time {
	if !s.HasRun() {
		return time.Time{}
	}
	return s.LastRunAt.Add(s.TTL)
}

// SkipReason says why a call did not reach the backend.
type SkipReason string

const (
	// SkipInFlight means another caller's remote call was still running.
	SkipInFlight SkipReason = "in_flight"
	// SkipCached means the last outcome is still inside the TTL window.
	SkipCached SkipReason = "cached"
)

// Observer is notified about coordinator decisions. Calls happen outside the
// coordinator's lock and must not block for long.
type Observer interface {
	OnSkip(reason SkipReason)
	OnSettle(outcome Outcome, elapsed time.Duration)
}
