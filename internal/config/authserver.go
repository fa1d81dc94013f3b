package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"
)

const (
	// DefaultListenAddress is where the auth server accepts HTTP requests.
	DefaultListenAddress = ":8080"
	// DefaultVarDir holds lists, logs and status by default.
	DefaultVarDir = "var"
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

var errListenAddressInvalid = errors.New("invalid listen address")

// AuthServer holds the auth server settings.
type AuthServer struct {
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level" toml:"log_level" env:"ACCESS_LOG_LEVEL"`
	// LogFile, when set, receives a rotated copy of the log.
	LogFile string `yaml:"log_file,omitempty" toml:"log_file,omitempty" env:"ACCESS_LOG_FILE"`
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" toml:"listen" env:"ACCESS_LISTEN"`
	// GRPCAddress, when set, serves gRPC health checks.
	GRPCAddress string `yaml:"grpc_address,omitempty" toml:"grpc_address,omitempty" env:"ACCESS_GRPC_ADDRESS"`
	// ACLDir holds the allow-list files.
	ACLDir string `yaml:"acl_dir" toml:"acl_dir" env:"ACCESS_ACL_DIR"`
	// LogDir holds the monthly access logs.
	LogDir string `yaml:"log_dir" toml:"log_dir" env:"ACCESS_LOG_DIR"`
	// AuthSecret, when set, is required as an HS256 bearer token on checks.
	AuthSecret string `yaml:"auth_secret,omitempty" toml:"auth_secret,omitempty" env:"ACCESS_AUTH_SECRET"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty"`
}

// Validate fills defaults and checks the listen addresses.
func (a *AuthServer) Validate() error {
	if a.Listen == "" {
		a.Listen = DefaultListenAddress
	}

	if a.ACLDir == "" {
		a.ACLDir = filepath.Join(DefaultVarDir, "acls")
	}

	if a.LogDir == "" {
		a.LogDir = filepath.Join(DefaultVarDir, "log")
	}

	a.ShutdownTimeout = durationOr(a.ShutdownTimeout, DefaultShutdownTimeout)

	if _, err := net.ResolveTCPAddr("tcp", a.Listen); err != nil {
		return fmt.Errorf("%w %q: %w", errListenAddressInvalid, a.Listen, err)
	}

	if a.GRPCAddress == "" {
		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", a.GRPCAddress); err != nil {
		return fmt.Errorf("%w %q: %w", errListenAddressInvalid, a.GRPCAddress, err)
	}

	return nil
}
