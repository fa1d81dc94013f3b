package reader

import (
	"context"
	"time"

	"github.com/fcch/access-control/internal/domain/rfid"
)

// RepeatDelay is the cooldown during which a repeated tag is dropped.
const RepeatDelay = 2 * time.Second

// RateLimiter is a Handler that forwards a tag unless it repeats the last
// forwarded tag within the cooldown. Diagnostics pass through untouched.
type RateLimiter struct {
	// next receives forwarded events.
	next Handler
	// delay is the cooldown window.
	delay time.Duration

	// seen is false until the first tag is forwarded.
	seen bool
	// lastID is the id of the last forwarded tag.
	lastID uint64
	// lastAt is the observation time of the last forwarded tag.
	lastAt time.Time
}

// NewRateLimiter wraps next with the default cooldown.
func NewRateLimiter(next Handler) *RateLimiter {
	return &RateLimiter{
		next:  next,
		delay: RepeatDelay,
	}
}

// Allow reports whether tag passes the filter and records it if so.
func (r *RateLimiter) Allow(tag rfid.TagEvent) bool {
	if r.seen && tag.ID == r.lastID && tag.ObservedAt.Before(r.lastAt.Add(r.delay)) {
		return false
	}

	r.seen = true
	r.lastID = tag.ID
	r.lastAt = tag.ObservedAt

	return true
}

// HandleTag forwards tag when Allow accepts it.
func (r *RateLimiter) HandleTag(ctx context.Context, tag rfid.TagEvent) {
	if !r.Allow(tag) {
		return
	}

	r.next.HandleTag(ctx, tag)
}

// HandleDiagnostic forwards ev unchanged.
func (r *RateLimiter) HandleDiagnostic(ctx context.Context, ev Event) {
	r.next.HandleDiagnostic(ctx, ev)
}
