package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const (
	// DefaultChip is the GPIO character device of the Raspberry Pi header.
	DefaultChip = "gpiochip0"
	// Consumer labels the lines this process holds, as shown by gpioinfo.
	Consumer = "access-control"
)

// outputLine is the part of a requested line the backend drives.
type outputLine interface {
	SetValue(value int) error
	Close() error
}

// requestFunc requests offset as an output driven to value.
type requestFunc func(offset, value int) (outputLine, error)

// Cdev drives pins through the GPIO character device.
// Lines are requested on first use and held until Close.
type Cdev struct {
	// request asks the kernel for an output line.
	request requestFunc
	// release closes the chip, nil when there is none.
	release func() error

	// mu guards lines.
	mu sync.Mutex
	// lines are the requested lines by BCM offset.
	lines map[int]outputLine
}

// NewCdev opens chip (DefaultChip if empty).
func NewCdev(chip string) (*Cdev, error) {
	if chip == "" {
		chip = DefaultChip
	}

	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	return newCdev(func(offset, value int) (outputLine, error) {
		return c.RequestLine(offset, gpiocdev.AsOutput(value))
	}, c.Close), nil
}

func newCdev(request requestFunc, release func() error) *Cdev {
	return &Cdev{
		request: request,
		release: release,
		lines:   make(map[int]outputLine),
	}
}

// SetOutputMode requests the pin as an output driven low.
// A pin that is already an output keeps its level.
func (c *Cdev) SetOutputMode(pin int) error {
	_, err := c.line(pin, Low)

	return err
}

// SetOutputValue drives the pin, requesting it at that level if needed.
func (c *Cdev) SetOutputValue(pin int, level Level) error {
	l, err := c.line(pin, level)
	if err != nil {
		return err
	}

	if err = l.SetValue(int(level)); err != nil {
		return fmt.Errorf("set pin %d %s: %w", pin, level, err)
	}

	return nil
}

// Close releases every line and the chip. The lines keep their last level.
func (c *Cdev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	for offset, l := range c.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release line %d: %w", offset, err))
		}

		delete(c.lines, offset)
	}

	if c.release != nil {
		errs = append(errs, c.release())
		c.release = nil
	}

	return errors.Join(errs...)
}

func (c *Cdev) line(pin int, initial Level) (outputLine, error) {
	offset, err := BCM(pin)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.lines[offset]; ok {
		return l, nil
	}

	l, err := c.request(offset, int(initial))
	if err != nil {
		return nil, fmt.Errorf("request pin %d (line %d): %w", pin, offset, err)
	}

	c.lines[offset] = l

	return l, nil
}
