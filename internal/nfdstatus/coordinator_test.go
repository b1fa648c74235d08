package nfdstatus_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus/mocks"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newCoordinator(client nfdstatus.RemoteClient, clock *fakeClock, opts ...nfdstatus.Option) *nfdstatus.Coordinator {
	opts = append([]nfdstatus.Option{nfdstatus.WithClock(clock.Now)}, opts...)
	return nfdstatus.New(client, testLogger(), opts...)
}

func TestCoordinator_FirstCallInvokesBackend(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(3, nil).Times(1)

	clock := newFakeClock()
	c := newCoordinator(client, clock)

	out := c.AutoUpdate(context.Background())

	assert.Equal(t, 3, out.UpdatedCount)
	assert.False(t, out.Failed)
	assert.Empty(t, out.Error)
	assert.True(t, out.Changed())
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, clock.Now(), out.CompletedAt)

	snap := c.Snapshot()
	assert.False(t, snap.InFlight)
	assert.True(t, snap.HasRun())
	assert.Equal(t, clock.Now(), snap.LastRunAt)
	assert.Equal(t, out, snap.LastOutcome)
}

func TestCoordinator_CacheHitWithinTTL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(2, nil).Times(1)

	clock := newFakeClock()
	c := newCoordinator(client, clock, nfdstatus.WithTTL(time.Minute))

	first := c.AutoUpdate(context.Background())
	clock.Advance(59 * time.Second)
	second := c.AutoUpdate(context.Background())

	assert.Equal(t, first, second)
}

func TestCoordinator_TTLExpiry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().UpdateExpired(gomock.Any()).Return(1, nil),
		client.EXPECT().UpdateExpired(gomock.Any()).Return(0, nil),
	)

	clock := newFakeClock()
	c := newCoordinator(client, clock, nfdstatus.WithTTL(time.Minute))

	first := c.AutoUpdate(context.Background())
	clock.Advance(time.Minute)
	second := c.AutoUpdate(context.Background())

	assert.Equal(t, 1, first.UpdatedCount)
	assert.Equal(t, 0, second.UpdatedCount)
	assert.False(t, second.Changed())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestCoordinator_ExampleTimeline(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(3, nil).Times(2)

	clock := newFakeClock()
	c := newCoordinator(client, clock, nfdstatus.WithTTL(time.Second))

	assert.True(t, c.AutoUpdate(context.Background()).Changed())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, c.AutoUpdate(context.Background()).Changed())

	clock.Advance(time.Second)
	assert.True(t, c.AutoUpdate(context.Background()).Changed())
}

func TestCoordinator_ForceBypassesTTL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().UpdateExpired(gomock.Any()).Return(4, nil),
		client.EXPECT().UpdateExpired(gomock.Any()).Return(1, nil),
	)

	clock := newFakeClock()
	c := newCoordinator(client, clock)

	auto := c.AutoUpdate(context.Background())
	clock.Advance(time.Second)
	forced := c.ForceUpdate(context.Background())

	assert.Equal(t, 4, auto.UpdatedCount)
	assert.False(t, auto.Forced)
	assert.Equal(t, 1, forced.UpdatedCount)
	assert.True(t, forced.Forced)
	assert.Equal(t, clock.Now(), c.Snapshot().LastRunAt)
}

func TestCoordinator_FailureIsCachedNotReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(0, errors.New("connection refused")).Times(1)

	clock := newFakeClock()
	c := newCoordinator(client, clock)

	first := c.AutoUpdate(context.Background())
	require.True(t, first.Failed)
	assert.Equal(t, 0, first.UpdatedCount)
	assert.Equal(t, "connection refused", first.Error)
	assert.False(t, first.Changed())

	clock.Advance(10 * time.Minute)
	second := c.AutoUpdate(context.Background())

	assert.Equal(t, first, second)
	assert.False(t, c.Snapshot().InFlight)
}

func TestCoordinator_ForceRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().UpdateExpired(gomock.Any()).Return(0, errors.New("boom")),
		client.EXPECT().UpdateExpired(gomock.Any()).Return(5, nil),
	)

	c := newCoordinator(client, newFakeClock())

	assert.True(t, c.AutoUpdate(context.Background()).Failed)
	out := c.ForceUpdate(context.Background())
	assert.False(t, out.Failed)
	assert.Equal(t, 5, out.UpdatedCount)
}

func TestCoordinator_NegativeCountIsFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(-1, nil)

	out := newCoordinator(client, newFakeClock()).AutoUpdate(context.Background())

	assert.True(t, out.Failed)
	assert.Equal(t, 0, out.UpdatedCount)
}

func TestCoordinator_PanicReleasesGuard(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().UpdateExpired(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
			panic("nil map")
		}),
		client.EXPECT().UpdateExpired(gomock.Any()).Return(2, nil),
	)

	c := newCoordinator(client, newFakeClock())

	var out nfdstatus.Outcome
	require.NotPanics(t, func() { out = c.AutoUpdate(context.Background()) })
	assert.True(t, out.Failed)
	assert.Contains(t, out.Error, "nil map")
	assert.False(t, c.Snapshot().InFlight)

	assert.Equal(t, 2, c.ForceUpdate(context.Background()).UpdatedCount)
}

func TestCoordinator_InFlightShortCircuits(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	client.EXPECT().UpdateExpired(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		close(started)
		<-release
		return 7, nil
	}).Times(1)

	c := newCoordinator(client, newFakeClock())

	done := make(chan nfdstatus.Outcome, 1)
	go func() { done <- c.AutoUpdate(context.Background()) }()
	<-started

	assert.True(t, c.Snapshot().InFlight)

	// Neither a plain nor a forced call may start a second request, and
	// neither waits for the running one.
	for i := 0; i < 10; i++ {
		assert.Equal(t, nfdstatus.Outcome{}, c.AutoUpdate(context.Background()))
	}
	assert.Equal(t, nfdstatus.Outcome{}, c.ForceUpdate(context.Background()))

	close(release)
	out := <-done
	assert.Equal(t, 7, out.UpdatedCount)
	assert.False(t, c.Snapshot().InFlight)
}

func TestCoordinator_InFlightReturnsPreviousOutcome(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		client.EXPECT().UpdateExpired(gomock.Any()).Return(1, nil),
		client.EXPECT().UpdateExpired(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
			close(started)
			<-release
			return 9, nil
		}),
	)

	c := newCoordinator(client, newFakeClock())
	first := c.AutoUpdate(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.ForceUpdate(context.Background())
	}()
	<-started

	assert.Equal(t, first, c.AutoUpdate(context.Background()))

	close(release)
	<-done
	assert.Equal(t, 9, c.Snapshot().LastOutcome.UpdatedCount)
}

func TestCoordinator_ConcurrentCallersSingleFlight(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).DoAndReturn(func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 3, nil
	}).AnyTimes()

	c := newCoordinator(client, newFakeClock())

	const callers = 50
	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			c.AutoUpdate(context.Background())
		}()
	}
	close(gate)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 3, c.AutoUpdate(context.Background()).UpdatedCount)
}

func TestCoordinator_CallerCancellationDoesNotAbortCall(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newCoordinator(client, newFakeClock()).AutoUpdate(ctx)

	assert.False(t, out.Failed)
	assert.Equal(t, 1, out.UpdatedCount)
}

func TestCoordinator_CheckExpired(t *testing.T) {
	t.Parallel()

	t.Run("passes preview through without touching state", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		client := mocks.NewMockRemoteClient(ctrl)
		client.EXPECT().CheckExpired(gomock.Any()).Return(nfdstatus.Preview{TotalExpired: 12}, nil).Times(2)

		c := newCoordinator(client, newFakeClock())

		for i := 0; i < 2; i++ {
			p, err := c.CheckExpired(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 12, p.TotalExpired)
		}
		assert.False(t, c.Snapshot().HasRun())
	})

	t.Run("propagates errors", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		client := mocks.NewMockRemoteClient(ctrl)
		sentinel := errors.New("503")
		client.EXPECT().CheckExpired(gomock.Any()).Return(nfdstatus.Preview{}, sentinel)

		_, err := newCoordinator(client, newFakeClock()).CheckExpired(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestCoordinator_Observer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockRemoteClient(ctrl)
	client.EXPECT().UpdateExpired(gomock.Any()).Return(2, nil)

	obs := mocks.NewMockObserver(ctrl)
	gomock.InOrder(
		obs.EXPECT().OnSettle(gomock.Any(), time.Duration(0)).Do(func(o nfdstatus.Outcome, _ time.Duration) {
			assert.Equal(t, 2, o.UpdatedCount)
		}),
		obs.EXPECT().OnSkip(nfdstatus.SkipCached),
	)

	c := newCoordinator(client, newFakeClock(), nfdstatus.WithObserver(obs))
	c.AutoUpdate(context.Background())
	c.AutoUpdate(context.Background())
}

func TestSnapshot_ExpiresAt(t *testing.T) {
	t.Parallel()

	var empty nfdstatus.Snapshot
	assert.True(t, empty.ExpiresAt().IsZero())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := nfdstatus.Snapshot{LastRunAt: at, TTL: time.Hour}
	assert.Equal(t, at.Add(time.Hour), s.ExpiresAt())
}

func TestNew_DefaultTTL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := nfdstatus.New(mocks.NewMockRemoteClient(ctrl), testLogger(), nfdstatus.WithTTL(-time.Second))

	assert.Equal(t, nfdstatus.DefaultTTL, c.TTL())
}
