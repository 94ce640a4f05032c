package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/robfig/cron/v3"
)

// Runner produces one report run. It must be safe to call repeatedly.
type Runner func(ctx context.Context) error

// Scheduler fires a Runner on a cron schedule. Runs never overlap: a
// scheduled tick that arrives while a run is in flight waits its turn.
type Scheduler struct {
	schedule cron.Schedule
	clock    service.Clock
	run      Runner
	mu       sync.Mutex
	done     chan struct{}
	once     sync.Once
}

// NewScheduler parses spec as a standard five-field cron expression.
func NewScheduler(spec string, clock service.Clock, run Runner) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %v", common.ErrInvalidConfig, spec, err)
	}
	return &Scheduler{
		schedule: schedule,
		clock:    clock,
		run:      run,
		done:     make(chan struct{}),
	}, nil
}

// NextRun reports when the schedule fires next, relative to the injected
// clock.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(s.clock.Now())
}

// RunNow triggers an immediate run, serialized against scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx)
}

// Start blocks, firing the runner at each scheduled tick until the context
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := s.NextRun()
		wait := next.Sub(s.clock.Now())
		if wait < 0 {
			wait = 0
		}
		common.LogDebug("Scheduler waiting", common.Fields{"next_run": next})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-s.clock.After(wait):
		}

		if err := s.RunNow(ctx); err != nil {
			common.LogError(err, "Scheduled report run failed", nil)
		} else {
			common.LogInfo("Scheduled report run complete", common.Fields{"fired_at": next})
		}
	}
}

// Stop makes Start return after any in-flight run finishes.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}
