package reader

import (
	"context"
	"time"

	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
)

// Kind identifies what a decoder event carries.
type Kind int

const (
	// KindNone means the byte was consumed without producing an event.
	KindNone Kind = iota
	// KindTag carries a validated tag.
	KindTag
	// KindDataOutsideFrame reports a byte received before any start marker.
	KindDataOutsideFrame
	// KindFrameTimeout reports a frame that took too long to complete.
	KindFrameTimeout
	// KindOverlongFrame reports a frame longer than the profile allows.
	KindOverlongFrame
	// KindValidationError reports a complete frame with a bad length, checksum or id.
	KindValidationError
)

// String returns the name used in logs.
func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindDataOutsideFrame:
		return "data outside frame"
	case KindFrameTimeout:
		return "frame timeout"
	case KindOverlongFrame:
		return "overlong frame"
	case KindValidationError:
		return "validation error"
	default:
		return "none"
	}
}

// Event is the result of feeding one byte to a Decoder.
type Event struct {
	// Kind tells which of the other fields are meaningful.
	Kind Kind
	// Tag is set for KindTag.
	Tag rfid.TagEvent
	// Data is the offending byte or partial buffer for diagnostics.
	Data []byte
	// Err explains a KindValidationError.
	Err error
}

// Fault returns the classified error of a diagnostic event, nil for tags.
func (e Event) Fault() error {
	switch e.Kind {
	case KindNone, KindTag:
		return nil
	case KindDataOutsideFrame:
		return fault.Wrapf(fault.Informational, "%s: %q", e.Kind, e.Data)
	case KindValidationError:
		return fault.Wrapf(fault.Framing, "%s: %q: %w", e.Kind, e.Data, e.Err)
	default:
		return fault.Wrapf(fault.Framing, "%s: %q", e.Kind, e.Data)
	}
}

// Handler consumes decoder output.
type Handler interface {
	// HandleTag is called for every tag that reaches this stage.
	HandleTag(ctx context.Context, tag rfid.TagEvent)
	// HandleDiagnostic is called for every non-tag event.
	HandleDiagnostic(ctx context.Context, ev Event)
}

// Dispatch routes ev to the matching Handler method.
func Dispatch(ctx context.Context, h Handler, ev Event) {
	switch ev.Kind {
	case KindNone:
	case KindTag:
		h.HandleTag(ctx, ev.Tag)
	default:
		h.HandleDiagnostic(ctx, ev)
	}
}

// Printer is a Handler that writes every event to a line-oriented sink.
// It backs the tag monitor.
type Printer struct {
	// Printf receives one formatted line per event.
	Printf func(format string, args ...any)
}

// HandleTag prints the tag and the time its frame started.
func (p Printer) HandleTag(_ context.Context, tag rfid.TagEvent) {
	p.Printf("TAG: %d %s", tag.ID, tag.ObservedAt.Format(time.RFC3339Nano))
}

// HandleDiagnostic prints the diagnostic kind and payload.
func (p Printer) HandleDiagnostic(_ context.Context, ev Event) {
	if ev.Err != nil {
		p.Printf("%s: %q (%v)", ev.Kind, ev.Data, ev.Err)
		return
	}

	p.Printf("%s: %q", ev.Kind, ev.Data)
}
