package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
)

// writeTimeout bounds a single history write.
const writeTimeout = 5 * time.Second

// Enqueuer runs work asynchronously (see scheduler.TaskQueue).
type Enqueuer interface {
	Enqueue(fn func())
}

// Recorder is a nfdstatus.Observer that appends every settled run to a Store
// off the caller's path.
type Recorder struct {
	store  Store
	queue  Enqueuer
	logger *logrus.Entry
}

// compile-time check
var _ nfdstatus.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to st through queue.
func NewRecorder(st Store, queue Enqueuer, logger *logrus.Entry) *Recorder {
	return &Recorder{
		store:  st,
		queue:  queue,
		logger: logger.WithField("component", "history"),
	}
}

// OnSkip is a no-op; cache hits are not history.
func (r *Recorder) OnSkip(nfdstatus.SkipReason) {}

// OnSettle queues the outcome for writing.
func (r *Recorder) OnSettle(o nfdstatus.Outcome, elapsed time.Duration) {
	rec := RecordFromOutcome(o, elapsed)
	r.queue.Enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.store.Append(ctx, rec); err != nil {
			r.logger.WithError(err).WithField("run_id", rec.RunID).Error("failed to record run")
		}
	})
}

// RecordFromOutcome converts a settled outcome into a history record.
func RecordFromOutcome(o nfdstatus.Outcome, elapsed time.Duration) Record {
	return Record{
		RunID:        o.RunID,
		StartedAt:    o.CompletedAt.Add(-elapsed),
		CompletedAt:  o.CompletedAt,
		UpdatedCount: o.UpdatedCount,
		Failed:       o.Failed,
		Error:        o.Error,
		Forced:       o.Forced,
	}
}
