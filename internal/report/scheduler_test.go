package report

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("not a schedule", service.RealClock{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestSchedulerNextRun(t *testing.T) {
	clock := service.FixedClock{T: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}
	s, err := NewScheduler("0 18 * * *", clock, func(context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC), s.NextRun())
}

func TestSchedulerRunNow(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler("@daily", service.RealClock{}, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.RunNow(context.Background()))
	require.NoError(t, s.RunNow(context.Background()))
	assert.Equal(t, int32(2), runs.Load())
}

// tickClock hands Start a controllable timer channel so a test can fire
// scheduled ticks on demand.
type tickClock struct {
	now  time.Time
	tick chan time.Time
}

func (c *tickClock) Now() time.Time { return c.now }

func (c *tickClock) After(time.Duration) <-chan time.Time { return c.tick }

func TestSchedulerStartFiresOnTick(t *testing.T) {
	clock := &tickClock{
		now:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		tick: make(chan time.Time, 1),
	}
	ran := make(chan struct{}, 1)
	s, err := NewScheduler("0 18 * * *", clock, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	clock.tick <- time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not fire on the scheduled tick")
	}

	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestSchedulerStopUnblocksStart(t *testing.T) {
	s, err := NewScheduler("@daily", service.RealClock{}, func(context.Context) error { return nil })
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestSchedulerContextCancel(t *testing.T) {
	s, err := NewScheduler("@daily", service.RealClock{}, func(context.Context) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
