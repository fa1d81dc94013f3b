package doorcontroller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fcch/access-control/internal/access"
	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/controller"
	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/gpio"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/serial"
	"github.com/fcch/access-control/internal/version"
)

// Options controls the door-controller process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// Hostname selects the device section; the machine hostname by default.
	Hostname string
	// SerialPort overrides the configured serial device.
	SerialPort string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// source is a byte stream that can be closed to unblock a pending read.
type source interface {
	io.ByteReader
	io.Closer
}

// resolved is a validated device section with everything derived from it.
type resolved struct {
	hostname string
	section  string
	device   config.Device
	profile  rfid.Profile
	seqs     config.DeviceSequences
}

// resolve loads settings and selects the device section for this host.
func resolve(ctx context.Context, opts *Options) (*config.Config, *resolved, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	hostname := opts.Hostname
	if hostname == "" {
		if hostname, err = os.Hostname(); err != nil {
			logger.WarnKV(ctx, "Unable to read hostname, using the default device", "error", err)
		}
	}

	if opts.SerialPort != "" {
		settings.Controller.Overrides.SerialPort = opts.SerialPort
	}

	device, section, err := settings.Controller.Device(hostname)
	if err != nil {
		return nil, nil, err
	}

	// Validate has already parsed both, so these cannot fail.
	profile, _ := device.Profile()
	seqs, _ := device.Sequences()

	return settings, &resolved{
		hostname: hostname,
		section:  section,
		device:   device,
		profile:  profile,
		seqs:     seqs,
	}, nil
}

// Run drives the door until ctx is canceled or the reader fails.
// Configuration errors are reported before any hardware is touched.
func Run(ctx context.Context, opts *Options) error {
	settings, res, err := resolve(ctx, opts)
	if err != nil {
		return err
	}

	logLevel := settings.Controller.LogLevel
	if opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}

	closer, ok := logger.Configure(logLevel, settings.Controller.LogFile)
	defer func() {
		_ = closer.Close()
	}()

	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "log_level", logLevel)
	}

	// The logger is final now, so the named copy sees the configured sinks.
	ctx = logger.WithKV(logger.WithName(ctx, "door-controller"), "device", res.section)

	clientOpts := []access.Option{access.WithCallTimeout(res.device.AuthTimeout)}
	if res.device.AuthSecret != "" {
		clientOpts = append(clientOpts, access.WithTokenSecret(res.device.AuthSecret, res.hostname))
	}

	client, err := access.New(res.device.AuthURL, clientOpts...)
	if err != nil {
		return fault.Wrap(fault.Config, err)
	}

	pins, err := gpio.Open(ctx, gpio.Options{Backend: res.device.GPIO, Chip: res.device.GPIOChip})
	if err != nil {
		return fault.Wrap(fault.Runtime, fmt.Errorf("open gpio: %w", err))
	}

	defer func() {
		if closeErr := gpio.Close(pins); closeErr != nil {
			logger.WarnKV(ctx, "Unable to release GPIO", "error", closeErr)
		}
	}()

	port, err := serial.Open(res.device.SerialPort, res.profile.Baud)
	if err != nil {
		return fault.Wrap(fault.Runtime, err)
	}

	logger.InfoKV(ctx, "Door controller starting",
		"version", version.Short(),
		"reader", res.profile.Name,
		"serial_port", res.device.SerialPort,
		"auth_url", res.device.AuthURL,
		"acl", res.device.ACL,
		"restart_action", res.device.RestartAction,
	)

	ctrl := controller.New(client, pins, controller.Options{
		AllowList:           res.device.ACL,
		RestartOnAuthorized: res.device.RestartAction,
		Sequences: controller.Sequences{
			Init:         res.seqs.Init,
			Authorized:   res.seqs.Authorized,
			Unauthorized: res.seqs.Unauthorized,
		},
	})

	return serveDoor(ctx, ctrl, port, res.profile)
}

// serveDoor runs the init sequence and then the ingest loop on src until
// ctx ends or src fails. Either way src is closed and the active sequence
// runs to its end before serveDoor returns, so the door is relocked.
func serveDoor(ctx context.Context, ctrl *controller.Controller, src source, profile rfid.Profile) error {
	defer func() {
		_ = src.Close()
	}()

	ctrl.Init(ctx)

	// Closing the source is the only way to interrupt a blocked read.
	stop := context.AfterFunc(ctx, func() {
		_ = src.Close()
	})
	defer stop()

	err := ctrl.Run(ctx, src, profile)

	ctrl.Drain(ctx)

	if errors.Is(err, context.Canceled) {
		logger.Info(ctx, "Door controller stopped")

		return nil
	}

	logger.ErrorKV(ctx, "Door controller failed", "error", err, "class", fault.ClassOf(err).String())

	return err
}
