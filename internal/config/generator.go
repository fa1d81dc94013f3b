package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/fcch/access-control/internal/acl"
)

const (
	// DefaultFetchTimeout bounds downloading the membership table.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMarkerFilename guards against concurrent generator runs.
	DefaultMarkerFilename = "acl-generator.marker"
	// DefaultStatusFilename records the last generation result.
	DefaultStatusFilename = "acl-status.json"
)

var (
	errSourceRequired = errors.New("generator source must be provided")
	errInvalidSource  = errors.New("invalid generator source URL")
)

// Generator holds the allow-list generator settings.
type Generator struct {
	// Source is a CSV file path or an http(s) URL of the membership table.
	Source string `yaml:"source" toml:"source" env:"ACCESS_GENERATOR_SOURCE"`
	// ACLDir receives the generated lists.
	ACLDir string `yaml:"acl_dir" toml:"acl_dir" env:"ACCESS_ACL_DIR"`
	// StatusFile records the last generation result.
	StatusFile string `yaml:"status_file" toml:"status_file"`
	// MarkerFile exists while a generation runs.
	MarkerFile string `yaml:"marker_file" toml:"marker_file"`
	// Always lists are granted to every member with a tag.
	Always []string `yaml:"always,omitempty" toml:"always,omitempty"`
	// Rename maps table column names to list names.
	Rename map[string]string `yaml:"rename,omitempty" toml:"rename,omitempty"`
	// FetchTimeout bounds downloading the table.
	FetchTimeout time.Duration `yaml:"fetch_timeout,omitempty" toml:"fetch_timeout,omitempty"`
}

// Validate fills defaults and checks list names and the source.
func (g *Generator) Validate() error {
	if g.Source == "" {
		return errSourceRequired
	}

	if u, err := url.Parse(g.Source); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return fmt.Errorf("%w: %q", errInvalidSource, g.Source)
	}

	if g.ACLDir == "" {
		g.ACLDir = filepath.Join(DefaultVarDir, "acls")
	}

	if g.StatusFile == "" {
		g.StatusFile = filepath.Join(DefaultVarDir, DefaultStatusFilename)
	}

	if g.MarkerFile == "" {
		g.MarkerFile = filepath.Join(DefaultVarDir, DefaultMarkerFilename)
	}

	g.FetchTimeout = durationOr(g.FetchTimeout, DefaultFetchTimeout)

	for _, name := range g.Always {
		if !acl.ValidName(name) {
			return fmt.Errorf("always: %w: %q", acl.ErrInvalidName, name)
		}
	}

	for column, name := range g.Rename {
		if !acl.ValidName(name) {
			return fmt.Errorf("rename %s: %w: %q", column, acl.ErrInvalidName, name)
		}
	}

	return nil
}
