package reader

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fcch/access-control/internal/domain/rfid"
)

// FrameTimeout is how long a frame may take from start marker to end marker.
const FrameTimeout = 200 * time.Millisecond

var (
	// errFrameLength is reported when a terminated frame has the wrong size.
	errFrameLength = errors.New("frame length mismatch")
	// errChecksum is reported when the XOR of the hex pairs is not zero.
	errChecksum = errors.New("checksum mismatch")
	// errZeroTag is reported for a frame that decodes to tag id 0.
	errZeroTag = errors.New("zero tag id")
)

// Decoder is the framing state machine for one reader profile.
// It is not safe for concurrent use.
type Decoder struct {
	// profile holds the markers and field lengths.
	profile rfid.Profile
	// timeout bounds the time between start marker and end marker.
	timeout time.Duration

	// armed is true once a start marker has been seen.
	armed bool
	// buf accumulates payload bytes of the current frame.
	buf []byte
	// startedAt is when the current frame's start marker arrived.
	startedAt time.Time
}

// NewDecoder creates an idle decoder for the profile.
func NewDecoder(profile rfid.Profile) *Decoder {
	return &Decoder{
		profile: profile,
		timeout: FrameTimeout,
		buf:     make([]byte, 0, profile.FrameLen()),
	}
}

// Profile returns the profile the decoder was built for.
func (d *Decoder) Profile() rfid.Profile {
	return d.profile
}

// Armed reports whether a frame is in progress.
func (d *Decoder) Armed() bool {
	return d.armed
}

// Feed consumes byte c received at time t.
func (d *Decoder) Feed(c byte, t time.Time) Event {
	switch {
	case c == d.profile.Start:
		d.arm(t)

		return Event{Kind: KindNone}

	case !d.armed:
		return Event{Kind: KindDataOutsideFrame, Data: []byte{c}}

	case t.Sub(d.startedAt) >= d.timeout:
		ev := Event{Kind: KindFrameTimeout, Data: d.take()}
		d.reset()

		return ev

	case c == d.profile.End:
		startedAt := d.startedAt
		frame := d.take()
		d.reset()

		id, err := d.validate(frame)
		if err != nil {
			return Event{Kind: KindValidationError, Data: frame, Err: err}
		}

		return Event{Kind: KindTag, Tag: rfid.TagEvent{ID: id, ObservedAt: startedAt}}

	case len(d.buf) >= d.profile.FrameLen():
		ev := Event{Kind: KindOverlongFrame, Data: d.take()}
		d.reset()

		return ev

	default:
		d.buf = append(d.buf, c)

		return Event{Kind: KindNone}
	}
}

// arm starts a new frame, dropping whatever was buffered.
func (d *Decoder) arm(t time.Time) {
	d.armed = true
	d.buf = d.buf[:0]
	d.startedAt = t
}

// reset returns the decoder to idle.
func (d *Decoder) reset() {
	d.armed = false
	d.buf = d.buf[:0]
	d.startedAt = time.Time{}
}

// take returns a copy of the buffered bytes.
func (d *Decoder) take() []byte {
	out := make([]byte, len(d.buf))
	copy(out, d.buf)

	return out
}

// validate checks length and checksum and extracts the tag id.
func (d *Decoder) validate(frame []byte) (uint64, error) {
	p := d.profile

	if len(frame) != p.FrameLen() {
		return 0, fmt.Errorf("%w: got %d, want %d", errFrameLength, len(frame), p.FrameLen())
	}

	if p.ChecksumLen > 0 {
		if err := verifyXOR(frame); err != nil {
			return 0, err
		}
	}

	digits := string(frame[p.LeaderLen : p.LeaderLen+p.TagLen])

	id, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tag %q: %w", digits, err)
	}

	if id == 0 {
		return 0, errZeroTag
	}

	return id, nil
}

// verifyXOR requires the XOR of all two-digit hex groups of frame to be zero.
func verifyXOR(frame []byte) error {
	var sum uint64

	for i := 0; i < len(frame); i += 2 {
		group := string(frame[i:min(i+2, len(frame))])

		v, err := strconv.ParseUint(group, 16, 8)
		if err != nil {
			return fmt.Errorf("parse checksum group %q: %w", group, err)
		}

		sum ^= v
	}

	if sum != 0 {
		return fmt.Errorf("%w: residue %02X", errChecksum, sum)
	}

	return nil
}
