package generator

import (
	"context"
	"fmt"

	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/repository/status"
	"github.com/fcch/access-control/internal/version"
)

// Options controls the acl-generator process.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// Source overrides the configured membership table.
	Source string
	// OutputDir overrides the configured allow-list directory.
	OutputDir string
}

// Run regenerates the allow-lists once.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "acl-generator")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	cfg := settings.Generator
	if opts.Source != "" {
		cfg.Source = opts.Source
	}

	if opts.OutputDir != "" {
		cfg.ACLDir = opts.OutputDir
	}

	if err = cfg.Validate(); err != nil {
		return fault.Wrap(fault.Config, fmt.Errorf("generator settings: %w", err))
	}

	logger.InfoKV(ctx, "Generator starting", "version", version.Short(), "acl_dir", cfg.ACLDir)

	st, err := New(cfg, status.NewFileRepository(cfg.StatusFile)).Run(ctx)
	if err != nil {
		return fmt.Errorf("generate allow-lists: %w", err)
	}

	logger.Infof(ctx, "Allow-lists generated OK at %s", st.GeneratedAt.Format("20060102T150405"))

	return nil
}
