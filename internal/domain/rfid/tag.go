package rfid

import (
	"strconv"
	"time"
)

// TagEvent is a validated tag read.
type TagEvent struct {
	// ID is the tag identifier decoded from the frame.
	ID uint64
	// ObservedAt is when the frame's start marker arrived.
	ObservedAt time.Time
}

// String returns the decimal form used by allow-lists and the access check.
func (e TagEvent) String() string {
	return strconv.FormatUint(e.ID, 10)
}
