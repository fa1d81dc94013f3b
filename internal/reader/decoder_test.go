package reader

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
)

// base is the arrival time of the first byte in decoder tests.
var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// rdmPayload builds an RDM6300 payload with a correct XOR checksum.
func rdmPayload(leader, tag string) string {
	body := leader + tag

	var sum uint64

	for i := 0; i < len(body); i += 2 {
		var v uint64

		_, _ = fmt.Sscanf(body[i:i+2], "%02X", &v)
		sum ^= v
	}

	return fmt.Sprintf("%s%02X", body, sum)
}

// feed pushes every byte of s with 1ms spacing and returns the non-empty events.
func feed(d *Decoder, s string, start time.Time) []Event {
	var events []Event

	for i := 0; i < len(s); i++ {
		ev := d.Feed(s[i], start.Add(time.Duration(i)*time.Millisecond))
		if ev.Kind != KindNone {
			events = append(events, ev)
		}
	}

	return events
}

// TestDecoder_ParallaxFrame decodes a checksum-less frame.
func TestDecoder_ParallaxFrame(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n0100BC614E\r", base)
	require.Len(t, events, 1)
	require.Equal(t, KindTag, events[0].Kind)
	require.Equal(t, uint64(12345678), events[0].Tag.ID)
	require.Equal(t, base, events[0].Tag.ObservedAt)
	require.False(t, d.Armed())
}

// TestDecoder_RDM6300Frame decodes a frame whose checksum validates.
func TestDecoder_RDM6300Frame(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.RDM6300)
	payload := rdmPayload("01", "00BC614E")
	require.Equal(t, "0100BC614E92", payload)

	events := feed(d, "\x02"+payload+"\x03", base)
	require.Len(t, events, 1)
	require.Equal(t, KindTag, events[0].Kind)
	require.Equal(t, uint64(12345678), events[0].Tag.ID)
}

// TestDecoder_ValidFramesAlwaysDecode covers a spread of tag ids for both profiles.
func TestDecoder_ValidFramesAlwaysDecode(t *testing.T) {
	t.Parallel()

	ids := []uint64{1, 0xFF, 0x1234ABCD, 0xFFFFFFFF, 12345678, 0x0A0B0C0D}
	for _, id := range ids {
		tag := fmt.Sprintf("%08X", id)

		d := NewDecoder(rfid.RDM6300)
		events := feed(d, "\x02"+rdmPayload("3C", tag)+"\x03", base)
		require.Len(t, events, 1, tag)
		require.Equal(t, id, events[0].Tag.ID)

		d = NewDecoder(rfid.Parallax)
		events = feed(d, "\n3C"+tag+"\r", base)
		require.Len(t, events, 1, tag)
		require.Equal(t, id, events[0].Tag.ID)
	}
}

// TestDecoder_WrongLengthNeverDecodes ensures every off-by-n frame is rejected.
func TestDecoder_WrongLengthNeverDecodes(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 16; n++ {
		if n == rfid.RDM6300.FrameLen() {
			continue
		}

		d := NewDecoder(rfid.RDM6300)
		events := feed(d, "\x02"+strings.Repeat("1", n)+"\x03", base)

		for _, ev := range events {
			require.NotEqual(t, KindTag, ev.Kind, "length %d", n)
		}

		require.NotEmpty(t, events, "length %d", n)
	}
}

// TestDecoder_BadChecksum rejects a frame whose XOR residue is not zero.
func TestDecoder_BadChecksum(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.RDM6300)

	events := feed(d, "\x020100BC614E93\x03", base)
	require.Len(t, events, 1)
	require.Equal(t, KindValidationError, events[0].Kind)
	require.ErrorIs(t, events[0].Err, errChecksum)
	require.Equal(t, []byte("0100BC614E93"), events[0].Data)
	require.True(t, fault.Is(events[0].Fault(), fault.Framing))
}

// TestDecoder_NonHexPayload reports a validation error instead of failing.
func TestDecoder_NonHexPayload(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n01ZZBC614E\r", base)
	require.Len(t, events, 1)
	require.Equal(t, KindValidationError, events[0].Kind)

	d = NewDecoder(rfid.RDM6300)

	events = feed(d, "\x02GG00BC614E92\x03", base)
	require.Len(t, events, 1)
	require.Equal(t, KindValidationError, events[0].Kind)
}

// TestDecoder_ZeroTag rejects a frame that decodes to id 0.
func TestDecoder_ZeroTag(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n0100000000\r", base)
	require.Len(t, events, 1)
	require.ErrorIs(t, events[0].Err, errZeroTag)
}

// TestDecoder_DataOutsideFrame reports bytes before the first start marker.
func TestDecoder_DataOutsideFrame(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.RDM6300)

	events := feed(d, "ab", base)
	require.Len(t, events, 2)
	require.Equal(t, KindDataOutsideFrame, events[0].Kind)
	require.Equal(t, []byte("a"), events[0].Data)
	require.True(t, fault.Is(events[1].Fault(), fault.Informational))
}

// TestDecoder_Timeout drops a frame whose bytes arrive too late.
func TestDecoder_Timeout(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	require.Equal(t, KindNone, d.Feed('\n', base).Kind)
	require.Equal(t, KindNone, d.Feed('0', base.Add(50*time.Millisecond)).Kind)
	require.Equal(t, KindNone, d.Feed('1', base.Add(199*time.Millisecond)).Kind)

	ev := d.Feed('2', base.Add(FrameTimeout))
	require.Equal(t, KindFrameTimeout, ev.Kind)
	require.Equal(t, []byte("01"), ev.Data)
	require.False(t, d.Armed())

	// The byte that tripped the timeout is dropped; the next one is outside a frame.
	require.Equal(t, KindDataOutsideFrame, d.Feed('3', base.Add(time.Second)).Kind)
}

// TestDecoder_TimeoutBeatsEndMarker checks that a late end marker still times out.
func TestDecoder_TimeoutBeatsEndMarker(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n0100BC614E", base)
	require.Empty(t, events)

	ev := d.Feed('\r', base.Add(time.Second))
	require.Equal(t, KindFrameTimeout, ev.Kind)
}

// TestDecoder_Overlong reports a frame that runs past the expected length.
func TestDecoder_Overlong(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n0100BC614E77", base)
	require.Len(t, events, 2)
	require.Equal(t, KindOverlongFrame, events[0].Kind)
	require.Equal(t, []byte("0100BC614E"), events[0].Data)
	require.Equal(t, KindDataOutsideFrame, events[1].Kind)
}

// TestDecoder_StartMarkerRestartsFrame discards a partial frame on a new start marker.
func TestDecoder_StartMarkerRestartsFrame(t *testing.T) {
	t.Parallel()

	d := NewDecoder(rfid.Parallax)

	events := feed(d, "\n01\n0100BC614E\r", base)
	require.Len(t, events, 1)
	require.Equal(t, KindTag, events[0].Kind)
	require.Equal(t, base.Add(3*time.Millisecond), events[0].Tag.ObservedAt)
}
