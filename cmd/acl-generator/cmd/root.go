package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/service/generator"
	"github.com/fcch/access-control/internal/version"
)

var (
	// configPath to the settings file.
	configPath string
	// source overrides the configured membership table.
	source string
	// logLevel sets the log level.
	logLevel string

	// rootCmd regenerates the allow-lists once.
	rootCmd = &cobra.Command{
		Use:   "acl-generator [output-dir]",
		Short: "Generate the allow-lists from the membership table.",
		Long: `Reads the membership table (a CSV file or URL whose header starts with RFID
followed by one column per allow-list) and rewrites every allow-list file.
Lists that no longer appear in the table are removed.
Only one generator may run at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if lvl, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(lvl)
			}

			var outputDir string
			if len(args) > 0 {
				outputDir = args[0]
			}

			return generator.Run(ctx, &generator.Options{
				ConfigPath: configPath,
				Source:     source,
				OutputDir:  outputDir,
			})
		},
	}
)

// Execute runs the acl-generator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&source, "source", "s", "", "membership table file or URL")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}
