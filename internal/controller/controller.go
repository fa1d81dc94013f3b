package controller

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/fcch/access-control/internal/access"
	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/gpio"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/reader"
	"github.com/fcch/access-control/internal/sequence"
)

// Validator decides whether a tag is on an allow-list.
type Validator interface {
	Check(ctx context.Context, allowList string, tag uint64) access.Decision
}

// Sequences holds the configured action sequences.
type Sequences struct {
	// Init runs once at startup.
	Init sequence.Sequence
	// Authorized runs for tags on the allow-list.
	Authorized sequence.Sequence
	// Unauthorized runs for every other tag.
	Unauthorized sequence.Sequence
}

// Options configures a Controller.
type Options struct {
	// AllowList is the allow-list name sent with every check.
	AllowList string
	// RestartOnAuthorized lets an authorized tag preempt a running sequence.
	RestartOnAuthorized bool
	// Sequences are the action sequences to run.
	Sequences Sequences
}

// Controller is the per-device state machine. It implements reader.Handler.
type Controller struct {
	// validator performs the access check.
	validator Validator
	// pins drives the hardware.
	pins gpio.Pins
	// opts is immutable after New.
	opts Options

	// mu guards active and lastTag. It is never held across a join or a check.
	mu sync.Mutex
	// active is the running sequence, nil when idle.
	active *sequence.Run
	// lastTag is the last tag that reached the controller.
	lastTag *rfid.TagEvent
}

// New creates an idle controller.
func New(validator Validator, pins gpio.Pins, opts Options) *Controller {
	return &Controller{
		validator: validator,
		pins:      pins,
		opts:      opts,
	}
}

// Init runs the init sequence and returns when it has finished.
// Tags are not processed yet, so nothing can preempt it, and a canceled ctx
// does not cut it short: the outputs always reach their initial state.
func (c *Controller) Init(ctx context.Context) {
	logger.Info(ctx, "Running init sequence")
	sequence.Execute(context.WithoutCancel(ctx), c.opts.Sequences.Init, c.pins)
	logger.Info(ctx, "Completed init sequence")
}

// HandleTag checks tag and starts the matching sequence.
func (c *Controller) HandleTag(ctx context.Context, tag rfid.TagEvent) {
	ctx = logger.WithKV(ctx, "tag", tag.ID)
	logger.Info(ctx, "Tag received")

	decision := c.validator.Check(ctx, c.opts.AllowList, tag.ID)
	if decision.Authorized {
		logger.Info(ctx, "Tag authorized")
	} else {
		logger.Info(ctx, "Tag NOT authorized")
	}

	c.mu.Lock()
	c.lastTag = &tag
	previous := c.active
	c.mu.Unlock()

	if previous != nil {
		if !decision.Authorized || !c.opts.RestartOnAuthorized {
			logger.Info(ctx, "Ignored, sequence running")
			return
		}

		logger.Info(ctx, "Cancelling running sequence")

		// The run's completion callback takes mu, so the join must happen without it.
		previous.Cancel()
		previous.Wait()

		c.mu.Lock()
		if c.active == previous {
			c.active = nil
		}
		c.mu.Unlock()
	}

	seq := c.opts.Sequences.Unauthorized
	if decision.Authorized {
		seq = c.opts.Sequences.Authorized
	}

	c.mu.Lock()
	c.active = sequence.Start(ctx, seq, c.pins, c.sequenceComplete)
	c.mu.Unlock()
}

// HandleDiagnostic logs decoder diagnostics according to their class.
func (c *Controller) HandleDiagnostic(ctx context.Context, ev reader.Event) {
	err := ev.Fault()

	switch fault.ClassOf(err) {
	case fault.Informational:
		logger.DebugKV(ctx, "Reader noise", "error", err)
	default:
		logger.WarnKV(ctx, "Reader frame dropped", "kind", ev.Kind.String(), "error", err)
	}
}

// sequenceComplete runs on the finished sequence's goroutine.
func (c *Controller) sequenceComplete(run *sequence.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == run {
		c.active = nil
	}
}

// Active returns the running sequence, or nil.
func (c *Controller) Active() *sequence.Run {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// LastTag returns the last tag the controller handled.
func (c *Controller) LastTag() (rfid.TagEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastTag == nil {
		return rfid.TagEvent{}, false
	}

	return *c.lastTag, true
}

// Drain waits for the running sequence, if any, to finish on its own.
// It must be called after the ingest loop has returned, so no tag can start
// another run. The sequence is not cancelled, so its final steps, which
// relock the door, always run.
func (c *Controller) Drain(ctx context.Context) {
	run := c.Active()
	if run == nil {
		return
	}

	logger.Info(ctx, "Waiting for the running sequence to finish")
	run.Wait()
}

// Run feeds source through the decoder and rate limiter into the controller
// until the source fails or ctx ends. Failures other than cancellation are
// runtime faults; so is a panic inside the loop.
func (c *Controller) Run(ctx context.Context, source io.ByteReader, profile rfid.Profile) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.Wrapf(fault.Runtime, "ingest loop panic: %v\n%s", r, debug.Stack())
		}
	}()

	r := reader.New(source, profile, reader.NewRateLimiter(c))

	err = r.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return fault.Wrap(fault.Runtime, fmt.Errorf("ingest loop: %w", err))
}
