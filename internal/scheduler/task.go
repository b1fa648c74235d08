package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is a unit of background work run on an interval, on demand, or both.
//
// Triggers coalesce: while one is pending, further Trigger calls are dropped,
// so a burst of N triggers during a run causes at most one extra run.
type Task struct {
	// Name is a human-readable identifier used in log messages.
	Name string
	// Interval is the period between scheduled runs. Zero means the task only
	// runs when triggered.
	Interval time.Duration
	// RunFunc does the work. Errors are logged and never stop the task.
	RunFunc func(ctx context.Context) error

	pending chan struct{}
	logger  *logrus.Entry
}

// NewTask creates a task. A non-positive interval makes it trigger-only.
func NewTask(name string, interval time.Duration, runFunc func(ctx context.Context) error, logger *logrus.Entry) *Task {
	if interval < 0 {
		interval = 0
	}
	return &Task{
		Name:     name,
		Interval: interval,
		RunFunc:  runFunc,
		pending:  make(chan struct{}, 1),
		logger:   logger.WithField("task", name),
	}
}

// Trigger asks for one run as soon as the task is free. It never blocks and
// reports false when a run was already pending.
func (t *Task) Trigger() bool {
	select {
	case t.pending <- struct{}{}:
		return true
	default:
		t.logger.Debug("run already pending, trigger coalesced")
		return false
	}
}

// Run executes the task until ctx is done. Interval tasks fire once on start.
func (t *Task) Run(ctx context.Context) {
	var tick <-chan time.Time
	if t.Interval > 0 {
		t.logger.WithField("interval", t.Interval).Info("task started")
		t.execute(ctx, "start")

		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		t.logger.Info("task started (trigger only)")
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("task stopping (context cancelled)")
			return
		case <-tick:
			t.execute(ctx, "interval")
		case <-t.pending:
			t.execute(ctx, "trigger")
		}
	}
}

func (t *Task) execute(ctx context.Context, reason string) {
	start := time.Now()
	err := t.RunFunc(ctx)
	log := t.logger.WithFields(logrus.Fields{
		"reason":   reason,
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		log.WithError(err).Error("task run failed")
		return
	}
	log.Debug("task run completed")
}
