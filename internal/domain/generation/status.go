package generation

import (
	"errors"
	"maps"
	"time"
)

// Status is the outcome of one generation run.
type Status struct {
	// GeneratedAt is when the run started.
	GeneratedAt time.Time
	// Source is where the membership table was read from.
	Source string
	// Success is true when every list was written.
	Success bool
	// Error describes the failure when Success is false.
	Error string
	// Counts maps each written list to its number of tags.
	Counts map[string]int
}

// Clone returns a deep copy of the status. A nil status clones to nil.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Counts = maps.Clone(s.Counts)

	return &cloned
}

// Total returns the number of tag entries across all lists.
func (s *Status) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}

	return total
}

// ErrAlreadyRunning is returned when a generation is requested while one is in progress.
var ErrAlreadyRunning = errors.New("already running")
