package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/fcch/access-control/internal/fault"
)

// Config holds the settings of every binary in the system.
type Config struct {
	// Controller configures door-controller instances.
	Controller Controller `yaml:"controller" toml:"controller"`
	// AuthServer configures the auth-server binary.
	AuthServer AuthServer `yaml:"auth_server" toml:"auth_server"`
	// Generator configures allow-list generation.
	Generator Generator `yaml:"generator" toml:"generator"`
}

const (
	// DefaultConfigFilename is the default settings file.
	DefaultConfigFilename = "access-control.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	extYAML = ".yaml"
	extYML  = ".yml"
	extTOML = ".toml"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownFormat is returned for files that are neither YAML nor TOML.
	errUnknownFormat = errors.New("unknown settings format")
	// errUnknownKeys is returned when a TOML file holds keys no field accepts.
	errUnknownKeys = errors.New("unknown settings keys")
)

// Load reads configuration from the provided path and applies environment
// overrides. Sections are validated by the binaries that use them.
// Failures are fault.Config errors.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, fault.Wrap(fault.Config, err)
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config

	switch strings.ToLower(filepath.Ext(path)) {
	case extYAML, extYML:
		decoder := yaml.NewDecoder(bytes.NewReader(contents))
		decoder.KnownFields(true)

		if err = decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case extTOML:
		meta, err := toml.Decode(string(contents), &cfg)
		if err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: %v", errUnknownKeys, undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownFormat, path)
	}

	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &cfg, nil
}

// Save writes cfg to the provided path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case extYAML, extYML:
		data, err = yaml.Marshal(cfg)
	case extTOML:
		var buf bytes.Buffer

		err = toml.NewEncoder(&buf).Encode(cfg)
		data = buf.Bytes()
	default:
		return fmt.Errorf("%w: %s", errUnknownFormat, path)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold the token secret.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// durationOr returns d, or fallback when d is not positive.
func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
