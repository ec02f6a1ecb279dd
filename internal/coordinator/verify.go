package coordinator

import (
	"context"
	"time"

	"github.com/tiagfernandes/aldes-bridge/internal/models"
)

// defaultVerifyDelay leaves the device enough time to apply a command and
// report it back before the bridge re-checks.
const defaultVerifyDelay = 15 * time.Second

// verifyTask is one pending commanded-state verification.
type verifyTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// VerifyCheck reports whether the snapshot reflects the commanded state.
type VerifyCheck func(*models.DeviceSnapshot) bool

// VerifyResend re-issues the original command.
type VerifyResend func(context.Context) error

// ScheduleVerification arms a delayed re-check for one control element:
// after the delay it fetches fresh state and, if the command is still not
// reflected, re-sends it exactly once. A newer command for the same
// control cancels and replaces the pending task (last-writer-wins).
func (c *Coordinator) ScheduleVerification(control string, delay time.Duration, check VerifyCheck, resend VerifyResend) {
	if delay <= 0 {
		delay = defaultVerifyDelay
	}

	ctx, cancel := context.WithCancel(c.runContext())
	task := &verifyTask{cancel: cancel, done: make(chan struct{})}

	c.verifyMu.Lock()
	if prev, ok := c.verify[control]; ok {
		prev.cancel()
	}
	c.verify[control] = task
	c.verifyMu.Unlock()

	go func() {
		defer close(task.done)
		defer c.clearVerification(control, task)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := c.refresh(ctx); err != nil {
			c.log.Warnw("verification fetch failed", "control", control, "err", err)
			return
		}
		snap := c.Snapshot()
		if snap == nil || check(snap) {
			return
		}

		c.log.Warnw("command not reflected by device, re-sending once", "control", control)
		if err := resend(ctx); err != nil {
			c.log.Errorw("command re-send failed", "control", control, "err", err)
		}
	}()
}

func (c *Coordinator) clearVerification(control string, task *verifyTask) {
	c.verifyMu.Lock()
	defer c.verifyMu.Unlock()
	if c.verify[control] == task {
		delete(c.verify, control)
	}
}
