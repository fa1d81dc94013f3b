package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fcch/access-control/internal/acl"
	"github.com/fcch/access-control/internal/domain/rfid"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/gpio"
	"github.com/fcch/access-control/internal/sequence"
)

// DefaultDevice is the device section used when none matches the hostname.
const DefaultDevice = "default"

// DefaultSerialPort is the Raspberry Pi primary UART.
const DefaultSerialPort = "/dev/ttyAMA0"

var (
	// errNoDevice is returned when neither the hostname nor the default section exists.
	errNoDevice = errors.New("no device section for this host")
	// errAuthURLRequired is returned when a device has no auth server URL.
	errAuthURLRequired = errors.New("auth_url must be provided")
	// errInvalidAuthURL is returned for a non-http(s) auth server URL.
	errInvalidAuthURL = errors.New("auth_url must be an http or https URL")
	// errNegativeAuthTimeout is returned for an auth_timeout below zero.
	errNegativeAuthTimeout = errors.New("auth_timeout must not be negative")
)

// Controller holds the door controller settings.
type Controller struct {
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level" toml:"log_level" env:"ACCESS_LOG_LEVEL"`
	// LogFile, when set, receives a rotated copy of the log.
	LogFile string `yaml:"log_file,omitempty" toml:"log_file,omitempty" env:"ACCESS_LOG_FILE"`
	// Devices maps hostnames to device settings.
	Devices map[string]Device `yaml:"devices" toml:"devices"`
	// Overrides are read from the environment only.
	Overrides DeviceOverrides `yaml:"-" toml:"-"`
}

// DeviceOverrides replace device settings when set.
type DeviceOverrides struct {
	// SerialPort overrides Device.SerialPort.
	SerialPort string `env:"ACCESS_SERIAL_PORT"`
	// AuthURL overrides Device.AuthURL.
	AuthURL string `env:"ACCESS_AUTH_URL"`
	// AuthSecret overrides Device.AuthSecret.
	AuthSecret string `env:"ACCESS_AUTH_SECRET"`
	// GPIO overrides Device.GPIO.
	GPIO string `env:"ACCESS_GPIO"`
}

// Device holds the settings of one door.
type Device struct {
	// ReaderType names the reader profile: parallax or rdm6300.
	ReaderType string `yaml:"reader_type" toml:"reader_type"`
	// SerialPort is the tty the reader is attached to.
	SerialPort string `yaml:"serial_port" toml:"serial_port"`
	// AuthURL is the base URL of the auth server.
	AuthURL string `yaml:"auth_url" toml:"auth_url"`
	// AuthSecret signs check requests when set.
	AuthSecret string `yaml:"auth_secret,omitempty" toml:"auth_secret,omitempty"`
	// AuthTimeout bounds one access check. Zero leaves it to the HTTP transport.
	AuthTimeout time.Duration `yaml:"auth_timeout,omitempty" toml:"auth_timeout,omitempty"`
	// ACL is the allow-list checked for this door.
	ACL string `yaml:"acl" toml:"acl"`
	// RestartAction lets an authorized tag restart a running sequence.
	RestartAction bool `yaml:"restart_action" toml:"restart_action"`
	// GPIO selects the backend: auto, cdev or console.
	GPIO string `yaml:"gpio" toml:"gpio"`
	// GPIOChip names the GPIO character device, gpiochip0 by default.
	GPIOChip string `yaml:"gpio_chip,omitempty" toml:"gpio_chip,omitempty"`
	// Init runs once at startup.
	Init []string `yaml:"init" toml:"init"`
	// Authorized runs for allowed tags. Sleep steps are in milliseconds:
	// "sleep,5000" holds the door open for five seconds.
	Authorized []string `yaml:"authorized" toml:"authorized"`
	// Unauthorized runs for all other tags.
	Unauthorized []string `yaml:"unauthorized" toml:"unauthorized"`
}

// Device returns the validated section for hostname, or the default one,
// with environment overrides applied. Failures are fault.Config errors.
func (c *Controller) Device(hostname string) (Device, string, error) {
	name := hostname

	device, ok := c.Devices[name]
	if !ok {
		name = DefaultDevice

		device, ok = c.Devices[name]
		if !ok {
			return Device{}, "", fault.Wrap(fault.Config, fmt.Errorf("%w: %q", errNoDevice, hostname))
		}
	}

	c.Overrides.apply(&device)

	if err := device.Validate(); err != nil {
		return Device{}, name, fault.Wrap(fault.Config, fmt.Errorf("device %s: %w", name, err))
	}

	return device, name, nil
}

func (o DeviceOverrides) apply(d *Device) {
	if o.SerialPort != "" {
		d.SerialPort = o.SerialPort
	}

	if o.AuthURL != "" {
		d.AuthURL = o.AuthURL
	}

	if o.AuthSecret != "" {
		d.AuthSecret = o.AuthSecret
	}

	if o.GPIO != "" {
		d.GPIO = o.GPIO
	}
}

// Validate fills defaults and checks every field, including the action lists.
func (d *Device) Validate() error {
	if d.SerialPort == "" {
		d.SerialPort = DefaultSerialPort
	}

	if d.GPIO == "" {
		d.GPIO = gpio.BackendAuto
	}

	if d.AuthTimeout < 0 {
		return fmt.Errorf("%w: %s", errNegativeAuthTimeout, d.AuthTimeout)
	}

	if _, err := rfid.ProfileByName(d.ReaderType); err != nil {
		return err
	}

	if d.AuthURL == "" {
		return errAuthURLRequired
	}

	u, err := url.Parse(d.AuthURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidAuthURL, d.AuthURL)
	}

	if !acl.ValidName(d.ACL) {
		return fmt.Errorf("%w: %q", acl.ErrInvalidName, d.ACL)
	}

	switch strings.ToLower(d.GPIO) {
	case gpio.BackendAuto, gpio.BackendCdev, gpio.BackendConsole:
	default:
		return fmt.Errorf("%w: %q", gpio.ErrUnknownBackend, d.GPIO)
	}

	_, err = d.Sequences()

	return err
}

// Profile returns the reader profile named by ReaderType.
func (d *Device) Profile() (rfid.Profile, error) {
	return rfid.ProfileByName(d.ReaderType)
}

// Sequences parses the three action lists.
func (d *Device) Sequences() (DeviceSequences, error) {
	var (
		res DeviceSequences
		err error
	)

	if res.Init, err = sequence.Parse("init", d.Init); err != nil {
		return DeviceSequences{}, err
	}

	if res.Authorized, err = sequence.Parse("authorized", d.Authorized); err != nil {
		return DeviceSequences{}, err
	}

	if res.Unauthorized, err = sequence.Parse("unauthorized", d.Unauthorized); err != nil {
		return DeviceSequences{}, err
	}

	return res, nil
}

// DeviceSequences are the parsed action lists of a device.
type DeviceSequences struct {
	Init         sequence.Sequence
	Authorized   sequence.Sequence
	Unauthorized sequence.Sequence
}
