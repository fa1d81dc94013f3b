package serial

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrUnsupportedBaud is returned for a baud rate the line discipline cannot set.
var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// readBufferSize is small because readers emit a few dozen bytes per tag.
const readBufferSize = 64

// Port is an open serial line. ReadByte blocks until a byte arrives;
// Close unblocks a pending read with an error.
type Port struct {
	// path is the device path, kept for error messages.
	path string
	// file is the open tty.
	file *os.File
	// buf batches reads from the tty.
	buf *bufio.Reader
}

var _ io.ByteReader = (*Port)(nil)

// Open opens path, switches it to raw 8N1 mode at baud and returns the port.
func Open(path string, baud int) (*Port, error) {
	speed, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}

	file, err := openTTY(path)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	if err := makeRaw(file, speed); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("configure serial port %s: %w", path, err)
	}

	return &Port{
		path: path,
		file: file,
		buf:  bufio.NewReaderSize(file, readBufferSize),
	}, nil
}

// Path returns the device path the port was opened with.
func (p *Port) Path() string {
	return p.path
}

// ReadByte returns the next byte from the line.
func (p *Port) ReadByte() (byte, error) {
	return p.buf.ReadByte()
}

// Close releases the tty.
func (p *Port) Close() error {
	return p.file.Close()
}

// SupportedBauds lists the baud rates Open accepts, ascending.
func SupportedBauds() []int {
	res := make([]int, 0, len(baudRates))
	for baud := range baudRates {
		res = append(res, baud)
	}

	sort.Ints(res)

	return res
}
