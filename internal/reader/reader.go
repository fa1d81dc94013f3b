package reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fcch/access-control/internal/domain/rfid"
)

// Reader pulls bytes from a source one at a time and feeds them through a
// Decoder into a Handler.
type Reader struct {
	// source yields the raw serial bytes.
	source io.ByteReader
	// decoder frames the bytes.
	decoder *Decoder
	// handler receives events.
	handler Handler
	// now stamps each byte on arrival.
	now func() time.Time
}

// Option configures a Reader.
type Option func(*Reader)

// WithClock replaces the time source used to stamp bytes.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Reader for the profile.
func New(source io.ByteReader, profile rfid.Profile, handler Handler, opts ...Option) *Reader {
	r := &Reader{
		source:  source,
		decoder: NewDecoder(profile),
		handler: handler,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run reads until the source fails or ctx is cancelled. Cancellation alone
// cannot interrupt a blocked read; callers close the source to unblock it.
// A context error is returned in preference to the read error it caused.
func (r *Reader) Run(ctx context.Context) error {
	for {
		c, err := r.source.ReadByte()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			return fmt.Errorf("read byte: %w", err)
		}

		Dispatch(ctx, r.handler, r.decoder.Feed(c, r.now()))
	}
}
