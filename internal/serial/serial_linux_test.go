//go:build linux

package serial

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openPTY returns the master side of a new pseudo-terminal and the path of its slave.
func openPTY(t *testing.T) (*os.File, string) {
	t.Helper()

	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = master.Close()
	})

	rc, err := master.SyscallConn()
	require.NoError(t, err)

	var (
		n        int
		ioctlErr error
	)

	require.NoError(t, rc.Control(func(fd uintptr) {
		if ioctlErr = unix.IoctlSetPointerInt(int(fd), unix.TIOCSPTLCK, 0); ioctlErr != nil {
			return
		}

		n, ioctlErr = unix.IoctlGetInt(int(fd), unix.TIOCGPTN)
	}))
	require.NoError(t, ioctlErr)

	return master, fmt.Sprintf("/dev/pts/%d", n)
}

// TestPort_CloseUnblocksRead returns a pending read as soon as the port is closed.
func TestPort_CloseUnblocksRead(t *testing.T) {
	t.Parallel()

	_, slave := openPTY(t)

	p, err := Open(slave, 9600)
	require.NoError(t, err)
	require.Equal(t, slave, p.Path())

	read := make(chan error, 1)

	go func() {
		_, err := p.ReadByte()
		read <- err
	}()

	// Give the reader time to park in the poller.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.Close())

	select {
	case err = <-read:
		require.True(t, errors.Is(err, os.ErrClosed), "unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadByte still blocked after Close")
	}
}

// TestPort_ReadsRawBytes passes frame markers through without line discipline translation.
func TestPort_ReadsRawBytes(t *testing.T) {
	t.Parallel()

	master, slave := openPTY(t)

	p, err := Open(slave, 2400)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close()
	})

	frame := []byte("\n0100BC614E\r\x02\x03")
	_, err = master.Write(frame)
	require.NoError(t, err)

	got := make([]byte, 0, len(frame))
	for range frame {
		b, err := p.ReadByte()
		require.NoError(t, err)

		got = append(got, b)
	}

	require.Equal(t, frame, got)
}
