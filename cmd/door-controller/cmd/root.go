package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/service/doorcontroller"
	"github.com/fcch/access-control/internal/version"
)

var (
	// configPath to the settings file.
	configPath string
	// hostname selects the device section.
	hostname string
	// serialPort overrides the configured serial device.
	serialPort string
	// logLevel overrides the configured log level.
	logLevel string
	// readerType overrides the configured reader for the monitor.
	readerType string

	// rootCmd runs the door controller.
	rootCmd = &cobra.Command{
		Use:   "door-controller",
		Short: "Unlock a door for RFID tags on an allow-list.",
		Long: `Reads RFID tags from a serial reader, asks the auth server whether each tag
is on the door's allow-list, and runs the configured GPIO sequence.

The device section is picked by hostname, falling back to "default".
Configuration errors stop the controller before any GPIO pin is touched.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return doorcontroller.Run(ctx, &doorcontroller.Options{
				ConfigPath: configPath,
				Hostname:   hostname,
				SerialPort: serialPort,
				LogLevel:   logLevel,
			})
		},
	}

	// monitorCmd prints reader events without driving the door.
	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Print every tag and reader diagnostic.",
		Long: `Prints each decoded tag and every framing diagnostic from the reader.
Neither GPIO nor the auth server is used, so it is safe on a live door.
With --reader-type and --serial-port set, no settings file is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel()

			return doorcontroller.Monitor(ctx, &doorcontroller.MonitorOptions{
				Options: doorcontroller.Options{
					ConfigPath: configPath,
					Hostname:   hostname,
					SerialPort: serialPort,
				},
				Out:        cmd.OutOrStdout(),
				ReaderType: readerType,
			})
		},
	}
)

// applyLogLevel sets the global level from the flag, if valid.
func applyLogLevel() {
	if lvl, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(lvl)
	}
}

// Execute runs the door-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&hostname, "hostname", "", "device section to use instead of the hostname")
	rootCmd.PersistentFlags().StringVarP(&serialPort, "serial-port", "p", "", "serial device of the reader")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	monitorCmd.Flags().StringVarP(&readerType, "reader-type", "r", "", "reader type: parallax or rdm6300")
}
