package sequence

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/gpio"
)

// call is one recorded hardware operation.
type call struct {
	// op is "mode" or "value".
	op string
	// pin is the board pin.
	pin int
	// level is set for value calls.
	level gpio.Level
	// at is when the call happened.
	at time.Time
}

// recordingPins is a gpio.Pins that records every call.
type recordingPins struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (p *recordingPins) SetOutputMode(pin int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, call{op: "mode", pin: pin, at: time.Now()})

	return p.err
}

func (p *recordingPins) SetOutputValue(pin int, level gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, call{op: "value", pin: pin, level: level, at: time.Now()})

	return p.err
}

func (p *recordingPins) snapshot() []call {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]call(nil), p.calls...)
}

// TestRun_CompletesWithDelays runs a sequence and checks each step's timing.
func TestRun_CompletesWithDelays(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		pins := new(recordingPins)
		seq := Sequence{
			SetOutputMode{Pin: 7},
			SetOutputValue{Pin: 7, Level: gpio.High},
			Sleep{Duration: 5 * time.Second},
			SetOutputValue{Pin: 7, Level: gpio.Low},
			Log{Message: "relocked"},
		}

		var (
			notified []*Run
			mu       sync.Mutex
		)

		start := time.Now()
		run := Start(context.Background(), seq, pins, func(r *Run) {
			mu.Lock()
			defer mu.Unlock()

			notified = append(notified, r)
		})

		run.Wait()

		calls := pins.snapshot()
		require.Len(t, calls, 3)
		require.Equal(t, start, calls[0].at)
		require.Equal(t, start, calls[1].at)
		require.Equal(t, gpio.High, calls[1].level)
		require.Equal(t, start.Add(5*time.Second), calls[2].at)
		require.Equal(t, gpio.Low, calls[2].level)

		require.False(t, run.Cancelled())
		require.Equal(t, []*Run{run}, notified)
	})
}

// TestRun_CancelDuringSleepSkipsOutput cancels inside the delay before an output step.
func TestRun_CancelDuringSleepSkipsOutput(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		pins := new(recordingPins)
		seq := Sequence{
			Sleep{Duration: 100 * time.Millisecond},
			SetOutputValue{Pin: 4, Level: gpio.High},
		}

		var count int

		run := Start(context.Background(), seq, pins, func(*Run) { count++ })

		time.Sleep(10 * time.Millisecond)
		run.Cancel()
		run.Wait()

		require.Empty(t, pins.snapshot())
		require.True(t, run.Cancelled())
		require.Equal(t, 1, count)

		// Late or repeated cancellation must not notify again.
		run.Cancel()
		time.Sleep(time.Second)
		require.Equal(t, 1, count)
		require.Empty(t, pins.snapshot())
	})
}

// TestRun_StepErrorsDoNotStopSequence keeps going after a failing hardware call.
func TestRun_StepErrorsDoNotStopSequence(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		pins := &recordingPins{err: gpio.ErrUnknownPin}
		seq := Sequence{
			SetOutputValue{Pin: 1, Level: gpio.High},
			SetOutputValue{Pin: 1, Level: gpio.Low},
		}

		run := Start(context.Background(), seq, pins, nil)
		run.Wait()

		require.Len(t, pins.snapshot(), 2)
	})
}

// TestExecute blocks until the sequence ends and honours context cancellation.
func TestExecute(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		pins := new(recordingPins)
		seq := Sequence{
			SetOutputMode{Pin: 7},
			Sleep{Duration: time.Second},
			SetOutputValue{Pin: 7, Level: gpio.Low},
		}

		start := time.Now()
		Execute(context.Background(), seq, pins)
		require.Equal(t, start.Add(time.Second), time.Now())
		require.Len(t, pins.snapshot(), 2)

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		pins = new(recordingPins)
		Execute(ctx, seq, pins)
		require.Len(t, pins.snapshot(), 1)
	})
}
