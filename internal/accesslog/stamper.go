package accesslog

import (
	"strconv"
	"sync"
	"time"
)

// StampLayout is the second-resolution part of a stamp.
const StampLayout = "20060102T150405"

// Stamper produces unique, ordered stamps of the form YYYYMMDDTHHMMSS.<n>,
// where n counts checks within the same second starting from 0.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last string
	seq  int
}

// NewStamper returns a stamper reading the wall clock. now may be nil.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}

	return &Stamper{now: now}
}

// Next returns the stamp for the current instant and the time it was taken.
func (s *Stamper) Next() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	second := t.Format(StampLayout)

	if second == s.last {
		s.seq++
	} else {
		s.seq = 0
		s.last = second
	}

	return second + "." + strconv.Itoa(s.seq), t
}
