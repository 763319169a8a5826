package scheduler

import (
	"context"
	"time"
)

// armedTask is a single pending one-shot fire: the "Armed(deadline)"
// state in the scheduler's per-task state machine.
type armedTask struct {
	timer *time.Timer
}

// newArmedTask schedules fn to run after d, unless ctx is cancelled
// first. fn itself is responsible for re-arming the next occurrence.
func newArmedTask(ctx context.Context, d time.Duration, fn func()) *armedTask {
	timer := time.AfterFunc(d, func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn()
		}
	})
	return &armedTask{timer: timer}
}

func (a *armedTask) cancel() {
	a.timer.Stop()
}
