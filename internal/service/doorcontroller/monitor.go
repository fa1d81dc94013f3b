package doorcontroller

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap/zapcore"

	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/reader"
	"github.com/fcch/access-control/internal/serial"
)

// MonitorOptions controls the tag monitor.
type MonitorOptions struct {
	Options

	// Out receives one line per event.
	Out io.Writer
	// ReaderType overrides the configured reader profile. With both
	// ReaderType and SerialPort set, no settings file is needed.
	ReaderType string
}

// Monitor prints every decoder event from the reader until ctx is canceled.
// It touches neither GPIO nor the auth server.
func Monitor(ctx context.Context, opts *MonitorOptions) error {
	ctx = logger.ToContext(ctx, logger.FromContext(ctx).Named("monitor").WithOptions(logger.WithLevel(zapcore.DebugLevel)))

	profile, port, err := monitorTarget(ctx, opts)
	if err != nil {
		return err
	}

	src, err := serial.Open(port, profile.Baud)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Monitoring reader", "reader", profile.Name, "serial_port", port)
	logger.DebugKV(ctx, "Reader settings", "baud", profile.Baud)

	return monitor(ctx, src, profile, opts.Out)
}

// monitorTarget picks the profile and port from flags, or from the device section.
func monitorTarget(ctx context.Context, opts *MonitorOptions) (rfid.Profile, string, error) {
	if opts.ReaderType != "" && opts.SerialPort != "" {
		profile, err := rfid.ProfileByName(opts.ReaderType)

		return profile, opts.SerialPort, err
	}

	_, res, err := resolve(ctx, &opts.Options)
	if err != nil {
		return rfid.Profile{}, "", err
	}

	profile := res.profile
	if opts.ReaderType != "" {
		if profile, err = rfid.ProfileByName(opts.ReaderType); err != nil {
			return rfid.Profile{}, "", err
		}
	}

	return profile, res.device.SerialPort, nil
}

func monitor(ctx context.Context, src source, profile rfid.Profile, out io.Writer) error {
	defer func() {
		_ = src.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = src.Close()
	})
	defer stop()

	printer := reader.Printer{Printf: func(format string, args ...any) {
		_, _ = fmt.Fprintf(out, format+"\n", args...)
	}}

	err := reader.New(src, profile, reader.NewRateLimiter(printer)).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
