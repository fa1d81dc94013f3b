package doorcontroller

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/access"
	"github.com/fcch/access-control/internal/controller"
	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/gpio"
	"github.com/fcch/access-control/internal/sequence"
)

var errReaderUnplugged = errors.New("reader unplugged")

// pipeSource is a closable byte source fed by the test.
type pipeSource struct {
	*bufio.Reader
	pipe *io.PipeReader
}

func (p pipeSource) Close() error {
	return p.pipe.Close()
}

func newPipe() (pipeSource, *io.PipeWriter) {
	pr, pw := io.Pipe()

	return pipeSource{Reader: bufio.NewReader(pr), pipe: pr}, pw
}

// pinLog records pin operations as strings.
type pinLog struct {
	mu  sync.Mutex
	ops []string
}

func (p *pinLog) SetOutputMode(pin int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ops = append(p.ops, fmt.Sprintf("setup %d", pin))

	return nil
}

func (p *pinLog) SetOutputValue(pin int, level gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ops = append(p.ops, fmt.Sprintf("out %d %s", pin, level))

	return nil
}

func (p *pinLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.ops...)
}

// TestServeDoor unlocks for an allowed tag and stops cleanly on cancel.
func TestServeDoor(t *testing.T) {
	t.Parallel()

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/check-access/door/12345678" {
			_, _ = w.Write([]byte("True"))
			return
		}

		_, _ = w.Write([]byte("False"))
	}))
	t.Cleanup(auth.Close)

	client, err := access.New(auth.URL)
	require.NoError(t, err)

	parse := func(name string, entries ...string) sequence.Sequence {
		seq, err := sequence.Parse(name, entries)
		require.NoError(t, err)

		return seq
	}

	pins := new(pinLog)
	ctrl := controller.New(client, pins, controller.Options{
		AllowList: "door",
		Sequences: controller.Sequences{
			Init:         parse("init", "gpio.setup.out,7"),
			Authorized:   parse("authorized", "gpio.out,7,1"),
			Unauthorized: parse("unauthorized", "gpio.out,8,1"),
		},
	})

	src, pw := newPipe()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	go func() {
		served <- serveDoor(ctx, ctrl, src, rfid.Parallax)
	}()

	_, err = pw.Write([]byte("\n0100BC614E\r"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(pins.snapshot()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"setup 7", "out 7 HIGH"}, pins.snapshot())

	cancel()

	select {
	case err = <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}

// TestServeDoor_SourceFailure reports a broken reader as a runtime fault.
func TestServeDoor_SourceFailure(t *testing.T) {
	t.Parallel()

	ctrl := controller.New(nil, new(pinLog), controller.Options{})

	src, pw := newPipe()
	require.NoError(t, pw.Close())

	err := serveDoor(context.Background(), ctrl, src, rfid.RDM6300)
	require.True(t, fault.Is(err, fault.Runtime))
}

// allowAll authorizes every tag.
type allowAll struct{}

func (allowAll) Check(context.Context, string, uint64) access.Decision {
	return access.Decision{Authorized: true}
}

// TestServeDoor_RelocksOnExit finishes the unlock sequence when the reader fails
// or a shutdown arrives in the middle of it.
func TestServeDoor_RelocksOnExit(t *testing.T) {
	t.Parallel()

	for name, stop := range map[string]func(cancel context.CancelFunc, pw *io.PipeWriter){
		"source failure": func(_ context.CancelFunc, pw *io.PipeWriter) {
			_ = pw.CloseWithError(errReaderUnplugged)
		},
		"shutdown": func(cancel context.CancelFunc, _ *io.PipeWriter) {
			cancel()
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			synctest.Test(t, func(t *testing.T) {
				authorized, err := sequence.Parse("authorized", []string{"gpio.out,7,1", "sleep,5000", "gpio.out,7,0"})
				require.NoError(t, err)

				pins := new(pinLog)
				ctrl := controller.New(allowAll{}, pins, controller.Options{
					AllowList: "door",
					Sequences: controller.Sequences{Authorized: authorized},
				})

				src, pw := newPipe()
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				served := make(chan error, 1)
				start := time.Now()

				go func() {
					served <- serveDoor(ctx, ctrl, src, rfid.Parallax)
				}()

				_, err = pw.Write([]byte("\n0100BC614E\r"))
				require.NoError(t, err)
				synctest.Wait()
				require.Equal(t, []string{"out 7 HIGH"}, pins.snapshot())

				time.Sleep(time.Second)
				stop(cancel, pw)

				err = <-served
				require.Equal(t, []string{"out 7 HIGH", "out 7 LOW"}, pins.snapshot())
				require.Equal(t, 5*time.Second, time.Since(start))

				if name == "shutdown" {
					require.NoError(t, err)
				} else {
					require.True(t, fault.Is(err, fault.Runtime))
				}
			})
		})
	}
}

// TestMonitor prints tags and diagnostics.
func TestMonitor(t *testing.T) {
	t.Parallel()

	src, pw := newPipe()

	go func() {
		_, _ = pw.Write([]byte("x\x020100BC614E92\x03"))
		_ = pw.Close()
	}()

	var out bytes.Buffer

	err := monitor(context.Background(), src, rfid.RDM6300, &out)
	require.Error(t, err)

	require.Contains(t, out.String(), `data outside frame: "x"`)
	require.Contains(t, out.String(), "TAG: 12345678 ")
}

// TestResolve picks the device section for the hostname and applies overrides.
func TestResolve(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
controller:
  devices:
    default:
      reader_type: rdm6300
      auth_url: http://auth:8080
      acl: door
    laser-pi:
      reader_type: parallax
      auth_url: http://auth:8080
      acl: laser
`), 0o600))

	_, res, err := resolve(context.Background(), &Options{ConfigPath: path, Hostname: "laser-pi", SerialPort: "/dev/ttyUSB0"})
	require.NoError(t, err)
	require.Equal(t, "laser-pi", res.section)
	require.Equal(t, rfid.Parallax, res.profile)
	require.Equal(t, "/dev/ttyUSB0", res.device.SerialPort)

	_, res, err = resolve(context.Background(), &Options{ConfigPath: path, Hostname: "front-pi"})
	require.NoError(t, err)
	require.Equal(t, "default", res.section)
	require.Equal(t, "door", res.device.ACL)

	profile, port, err := monitorTarget(context.Background(), &MonitorOptions{
		Options:    Options{SerialPort: "/dev/ttyS0"},
		ReaderType: "rdm6300",
	})
	require.NoError(t, err)
	require.Equal(t, rfid.RDM6300, profile)
	require.Equal(t, "/dev/ttyS0", port)
}

// TestRun_ConfigError fails before touching hardware.
func TestRun_ConfigError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
controller:
  devices:
    default:
      reader_type: wiegand
      auth_url: http://auth:8080
      acl: door
`), 0o600))

	err := Run(context.Background(), &Options{ConfigPath: path})
	require.True(t, fault.Is(err, fault.Config))
}
