// Package scheduler drives TaskMessages to registered runners at the
// moments prescribed by each task's cron expression, persisting every
// firing to Storage along the way. It is the Scheduler component of
// the system overview: a one-shot-timer state machine per task
// (Idle -> Armed(deadline) -> Firing -> Armed(deadline')), adapted
// from this codebase's own time.AfterFunc-per-task idiom rather than
// a fixed-tick poll loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nugget/pulse/internal/pclock"
	"github.com/nugget/pulse/internal/pulsedb"
)

// TaskMessage identifies a schedulable action. It carries no payload;
// a TaskRunner matches on the value to decide whether to act.
type TaskMessage string

const (
	// TaskCheckDiskUsage is accepted in task configuration, but
	// SystemMonitor samples on its own fixed tick rather than via
	// the Scheduler, so no runner currently registers for it.
	TaskCheckDiskUsage TaskMessage = "check-disk-usage"
	// TaskFetchNews triggers NewsService.Run.
	TaskFetchNews TaskMessage = "fetch-news"
)

// ScheduledTask pairs a parsed cron expression with the message fired
// at each occurrence.
type ScheduledTask struct {
	Cron    *pclock.CronExpr
	Message TaskMessage
}

// TaskRunner accepts one fired TaskMessage. A runner error is logged
// by the Scheduler and never aborts dispatch to the remaining runners.
type TaskRunner interface {
	Run(ctx context.Context, msg TaskMessage) error
}

// Scheduler fires ScheduledTasks against every registered TaskRunner.
type Scheduler struct {
	store  pulsedb.Storage
	clock  pclock.Clock
	logger *slog.Logger
	tasks  []ScheduledTask

	mu      sync.Mutex
	runners []TaskRunner
	arming  []*armedTask // one slot per task, replaced on each re-arm
	started bool
}

// New constructs a Scheduler. Cron parsing happens before this point
// (see pulseconfig.BuildScheduledTasks); an unparseable task never
// reaches here.
func New(store pulsedb.Storage, clock pclock.Clock, logger *slog.Logger, tasks []ScheduledTask) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, clock: clock, logger: logger, tasks: tasks}
}

// Register appends a runner. Schedulers built before any firing see
// every runner registered before Start; registering after Start is
// also safe — the next firing will include it.
func (s *Scheduler) Register(r TaskRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runners = append(s.runners, r)
}

// Start arms every configured task's first fire. It returns
// immediately; firings happen on their own timers until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.arming = make([]*armedTask, len(s.tasks))
	s.mu.Unlock()

	for i, t := range s.tasks {
		s.arm(ctx, i, t)
	}
}

// Stop cancels every pending one-shot fire. Firings already in
// progress are allowed to complete but are not rescheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.arming {
		if a != nil {
			a.cancel()
		}
	}
	s.arming = nil
	s.started = false
}

// arm schedules t's next fire at t.Cron.DurationUntilNext(now). If the
// cron has no further instant (an exhausted explicit year list), the
// task is dropped silently here; nothing is logged for it.
func (s *Scheduler) arm(ctx context.Context, i int, t ScheduledTask) {
	now := s.clock.Now()
	d, ok := t.Cron.DurationUntilNext(now)
	if !ok {
		return
	}

	at := newArmedTask(ctx, d, func() {
		s.fire(ctx, t)
		s.arm(ctx, i, t)
	})

	s.mu.Lock()
	if !s.started || i >= len(s.arming) {
		s.mu.Unlock()
		at.cancel()
		return
	}
	s.arming[i] = at
	s.mu.Unlock()
}

// fire persists the firing and fans it out to every registered
// runner. Storage failures are logged, not fatal — persistence is
// best-effort observational logging, never a gate on dispatch.
func (s *Scheduler) fire(ctx context.Context, t ScheduledTask) {
	if _, err := s.store.InsertTask(ctx, pulsedb.NewTask{Task: string(t.Message)}); err != nil {
		s.logger.Error("scheduler: failed to persist task firing", "message", t.Message, "error", err)
	}

	s.mu.Lock()
	runners := make([]TaskRunner, len(s.runners))
	copy(runners, s.runners)
	s.mu.Unlock()

	for _, r := range runners {
		if err := r.Run(ctx, t.Message); err != nil {
			s.logger.Error("scheduler: runner failed", "message", t.Message, "error", err)
		}
	}
}
