// Package nfdstatus decides when the backend's bulk "mark expired records"
// operation actually runs. Page mounts call AutoUpdate freely; the
// Coordinator lets at most one remote call run at a time and at most one per
// TTL window, and turns failures into cached outcomes instead of errors.
package nfdstatus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a completed update short-circuits AutoUpdate.
const DefaultTTL = 30 * time.Minute

// Coordinator is the single-flight, TTL-gated invoker of
// RemoteClient.UpdateExpired. It is safe for concurrent use.
type Coordinator struct {
	client    RemoteClient
	ttl       time.Duration
	now       func() time.Time
	observers []Observer
	logger    *logrus.Entry

	mu          sync.Mutex
	lastRunAt   time.Time
	inFlight    bool
	lastOutcome Outcome
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithTTL sets the cache validity window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// New creates a Coordinator around client.
func New(client RemoteClient, logger *logrus.Entry, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.WithField("component", "nfd_status"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AutoUpdate runs the remote update unless one is already running or the
// last one completed less than TTL ago; in both of those cases it returns the
// last outcome without blocking. It never returns an error: failures come
// back as an Outcome with Failed set and are cached like successes.
func (c *Coordinator) AutoUpdate(ctx context.Context) Outcome {
	return c.update(ctx, false)
}

// ForceUpdate is AutoUpdate without the TTL check. A call that arrives while
// another remote call is running still gets the last outcome back.
func (c *Coordinator) ForceUpdate(ctx context.Context) Outcome {
	return c.update(ctx, true)
}

// CheckExpired asks the backend for a preview. It bypasses the cache and the
// in-flight guard and returns errors to the caller.
func (c *Coordinator) CheckExpired(ctx context.Context) (Preview, error) {
	p, err := c.client.CheckExpired(ctx)
	if err != nil {
		return Preview{}, fmt.Errorf("checking expired records: %w", err)
	}
	return p, nil
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		LastRunAt:   c.lastRunAt,
		InFlight:    c.inFlight,
		LastOutcome: c.lastOutcome,
		TTL:         c.ttl,
	}
}

// TTL returns the configured cache validity window.
func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

func (c *Coordinator) update(ctx context.Context, force bool) Outcome {
	c.mu.Lock()
	if c.inFlight {
		out := c.lastOutcome
		c.mu.Unlock()
		c.notifySkip(SkipInFlight)
		return out
	}
	if !force && !c.lastRunAt.IsZero() && c.now().Sub(c.lastRunAt) < c.ttl {
		out := c.lastOutcome
		c.mu.Unlock()
		c.notifySkip(SkipCached)
		return out
	}
	c.inFlight = true
	c.mu.Unlock()

	return c.run(ctx, force)
}

// run performs the remote call. The caller has already set inFlight; the
// deferred settle clears it on every exit path, panics included.
func (c *Coordinator) run(ctx context.Context, forced bool) (out Outcome) {
	runID := uuid.NewString()
	start := c.now()
	log := c.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"forced": forced,
	})
	log.Debug("calling update-expired")

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Failed: true, Error: fmt.Sprintf("update-expired panicked: %v", r)}
		}
		completed := c.now()
		out.RunID = runID
		out.Forced = forced
		out.CompletedAt = completed

		c.mu.Lock()
		c.lastOutcome = out
		c.lastRunAt = completed
		c.inFlight = false
		c.mu.Unlock()

		elapsed := completed.Sub(start)
		fields := logrus.Fields{
			"updated_count": out.UpdatedCount,
			"duration":      elapsed.Round(time.Millisecond),
		}
		if out.Failed {
			log.WithFields(fields).WithField("error", out.Error).Warn("update-expired failed, caching failure until next window")
		} else {
			log.WithFields(fields).Info("update-expired completed")
		}

		for _, o := range c.observers {
			o.OnSettle(out, elapsed)
		}
	}()

	// The call is never cancelled by the caller going away; the client's own
	// timeout bounds it.
	count, err := c.client.UpdateExpired(context.WithoutCancel(ctx))
	if err != nil {
		return Outcome{Failed: true, Error: err.Error()}
	}
	if count < 0 {
		return Outcome{Failed: true, Error: fmt.Sprintf("backend reported negative updated count %d", count)}
	}
	return Outcome{UpdatedCount: count}
}

func (c *Coordinator) notifySkip(reason SkipReason) {
	c.logger.WithField("reason", reason).Trace("update-expired skipped")
	for _, o := range c.observers {
		o.OnSkip(reason)
	}
}
