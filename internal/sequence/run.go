package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/fcch/access-control/internal/gpio"
	"github.com/fcch/access-control/internal/logger"
)

// Run is one execution of a Sequence on its own goroutine.
type Run struct {
	// ctx carries the logger; it does not cancel the run.
	ctx context.Context //nolint:containedctx // Logger carrier for the run goroutine.
	// seq is the sequence being executed.
	seq Sequence
	// pins performs hardware steps.
	pins gpio.Pins
	// notify is called once when the run ends, before Wait returns.
	notify func(*Run)

	// cancel is closed to request cancellation.
	cancel chan struct{}
	// cancelOnce guards close(cancel).
	cancelOnce sync.Once
	// done is closed after notify has returned.
	done chan struct{}
	// cancelled records whether the run stopped before its last step.
	cancelled bool
}

// Start launches seq on a new goroutine. notify may be nil.
func Start(ctx context.Context, seq Sequence, pins gpio.Pins, notify func(*Run)) *Run {
	r := &Run{
		ctx:    ctx,
		seq:    seq,
		pins:   pins,
		notify: notify,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go r.execute()

	return r
}

// Execute runs seq and blocks until it ends. Cancelling ctx cancels the run.
func Execute(ctx context.Context, seq Sequence, pins gpio.Pins) {
	r := Start(ctx, seq, pins, nil)

	select {
	case <-r.done:
	case <-ctx.Done():
		r.Cancel()
		r.Wait()
	}
}

// Cancel asks the run to stop before its next step. It does not wait.
// Calling it more than once, or after the run ended, is harmless.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		close(r.cancel)
	})
}

// Wait blocks until the run has ended and its owner has been notified.
func (r *Run) Wait() {
	<-r.done
}

// Done is closed when Wait would return.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancelled reports whether the run was stopped early. Valid after Done.
func (r *Run) Cancelled() bool {
	<-r.done

	return r.cancelled
}

func (r *Run) execute() {
	defer close(r.done)

	defer func() {
		if r.notify != nil {
			r.notify(r)
		}
	}()

	var pending time.Duration

	for _, step := range r.seq {
		if r.wait(pending) {
			r.cancelled = true
			logger.DebugKV(r.ctx, "Sequence cancelled", "next_step", step.String())

			return
		}

		if sleep, ok := step.(Sleep); ok {
			pending = sleep.Duration
			continue
		}

		pending = 0
		r.perform(step)
	}
}

// wait blocks for up to d and reports whether cancellation arrived first.
// With d == 0 it only checks for a pending cancellation.
func (r *Run) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-r.cancel:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-r.cancel:
		return true
	case <-timer.C:
		return false
	}
}

// perform executes a non-sleep step. Hardware errors are logged and the
// sequence continues, so later steps that restore a safe state still run.
func (r *Run) perform(step Step) {
	var err error

	switch s := step.(type) {
	case SetOutputMode:
		err = r.pins.SetOutputMode(s.Pin)
	case SetOutputValue:
		err = r.pins.SetOutputValue(s.Pin, s.Level)
	case Log:
		logger.Infof(r.ctx, "LogStep: %s", s.Message)
	}

	if err != nil {
		logger.ErrorKV(r.ctx, "Sequence step failed", "step", step.String(), "error", err)
	}
}
