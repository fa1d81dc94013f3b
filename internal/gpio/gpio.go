package gpio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fcch/access-control/internal/logger"
)

// Level is the logical value of an output pin.
type Level int

const (
	// Low drives the pin to 0.
	Low Level = 0
	// High drives the pin to 1.
	High Level = 1
)

// String returns "LOW" or "HIGH".
func (l Level) String() string {
	if l == High {
		return "HIGH"
	}

	return "LOW"
}

// Pins sets up and drives output pins.
type Pins interface {
	// SetOutputMode configures pin as an output.
	SetOutputMode(pin int) error
	// SetOutputValue drives pin to level.
	SetOutputValue(pin int, level Level) error
}

// Backend names accepted by Open.
const (
	BackendAuto    = "auto"
	BackendCdev    = "cdev"
	BackendConsole = "console"
)

// ErrUnknownBackend is returned by Open for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown gpio backend")

// Options selects and configures a backend.
type Options struct {
	// Backend is one of auto, cdev or console.
	Backend string
	// Chip names the GPIO character device, DefaultChip if empty.
	Chip string
}

// Open returns the backend named in opts. In auto mode the character device
// backend is used when the chip can be opened and the console backend otherwise.
//
//nolint:ireturn // Callers only need the capability.
func Open(ctx context.Context, opts Options) (Pins, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendAuto:
		pins, err := NewCdev(opts.Chip)
		if err == nil {
			return pins, nil
		}

		logger.WarnKV(ctx, "GPIO chip unavailable, emulating all GPIO accesses", "error", err)

		return NewConsole(ctx), nil
	case BackendCdev:
		pins, err := NewCdev(opts.Chip)
		if err != nil {
			return nil, err
		}

		return pins, nil
	case BackendConsole:
		return NewConsole(ctx), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Close releases the backend if it holds any resources.
func Close(p Pins) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Console logs GPIO operations instead of performing them.
type Console struct {
	// ctx carries the logger used for the emulated operations.
	ctx context.Context //nolint:containedctx // Logger carrier only.
}

// NewConsole creates a console backend logging through ctx's logger.
func NewConsole(ctx context.Context) *Console {
	return &Console{ctx: logger.WithName(ctx, "gpio-console")}
}

// SetOutputMode logs the setup call.
func (c *Console) SetOutputMode(pin int) error {
	logger.InfoKV(c.ctx, "GPIO setup", "pin", pin, "direction", "out")

	return nil
}

// SetOutputValue logs the output call.
func (c *Console) SetOutputValue(pin int, level Level) error {
	logger.InfoKV(c.ctx, "GPIO output", "pin", pin, "level", level.String())

	return nil
}
