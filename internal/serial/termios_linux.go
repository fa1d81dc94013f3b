//go:build linux

package serial

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

//nolint:gochecknoglobals // Lookup table.
var baudRates = map[int]uint32{
	1200:   unix.B1200,
	2400:   unix.B2400,
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

func openTTY(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
}

// makeRaw puts the line in non-canonical 8N1 mode without echo or flow
// control. A read returns as soon as one byte is available.
//
// The ioctls go through SyscallConn so the descriptor stays non-blocking and
// registered with the runtime poller; Close can then interrupt a pending read.
func makeRaw(file *os.File, speed uint32) error {
	rc, err := file.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw conn: %w", err)
	}

	var termErr error

	err = rc.Control(func(fd uintptr) {
		termErr = setRaw(int(fd), speed)
	})
	if err != nil {
		return fmt.Errorf("raw conn: %w", err)
	}

	return termErr
}

func setRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios (TCGETS): %w", err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios (TCSETS): %w", err)
	}

	return nil
}
