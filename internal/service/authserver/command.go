package authserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fcch/access-control/internal/accesslog"
	"github.com/fcch/access-control/internal/acl"
	api "github.com/fcch/access-control/internal/api/http/acl"
	"github.com/fcch/access-control/internal/config"
	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/repository/status"
	"github.com/fcch/access-control/internal/service/generator"
	"github.com/fcch/access-control/internal/version"
)

// Options controls the auth-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// ListenAddress overrides the configured HTTP listen address.
	ListenAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// Run starts the HTTP and gRPC health servers and blocks until ctx is
// canceled or a server fails.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	cfg := settings.AuthServer
	if opts.ListenAddress != "" {
		cfg.Listen = opts.ListenAddress
	}

	if err = cfg.Validate(); err != nil {
		return fault.Wrap(fault.Config, fmt.Errorf("auth server settings: %w", err))
	}

	logLevel := cfg.LogLevel
	if opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}

	closer, ok := logger.Configure(logLevel, cfg.LogFile)
	defer func() {
		_ = closer.Close()
	}()

	if !ok {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "log_level", logLevel)
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "auth-server")

	genCfg := settings.Generator
	if genCfg.ACLDir == "" {
		genCfg.ACLDir = cfg.ACLDir
	}

	statusFile := genCfg.StatusFile
	if statusFile == "" {
		statusFile = filepath.Join(config.DefaultVarDir, config.DefaultStatusFilename)
	}

	var up updater

	if genCfg.Source != "" {
		if err = genCfg.Validate(); err != nil {
			return fault.Wrap(fault.Config, fmt.Errorf("generator settings: %w", err))
		}

		statusFile = genCfg.StatusFile
	}

	repo := status.NewFileRepository(statusFile)

	if genCfg.Source != "" {
		gen := generator.New(genCfg, repo)
		defer gen.Wait()

		up = gen
	}

	svc := newService(
		acl.NewStore(cfg.ACLDir),
		accesslog.New(cfg.LogDir, accesslog.NewStamper(nil)),
		up,
		repo,
	)

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	var grpcListener net.Listener

	if cfg.GRPCAddress != "" {
		grpcListener, err = lc.Listen(ctx, "tcp", cfg.GRPCAddress)
		if err != nil {
			_ = httpListener.Close()

			return fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
		}
	}

	logger.InfoKV(ctx, "Auth server listening",
		"version", version.Short(),
		"listen_address", cfg.Listen,
		"grpc_address", cfg.GRPCAddress,
		"acl_dir", cfg.ACLDir,
		"log_dir", cfg.LogDir,
		"generation", up != nil,
	)

	handler := api.NewServer(svc, cfg.AuthSecret).Routes()

	return serve(ctx, handler, httpListener, grpcListener, cfg.ShutdownTimeout)
}

// serve runs the HTTP server on httpListener and, when grpcListener is not
// nil, the gRPC health service. Both stop when ctx is canceled.
func serve(
	ctx context.Context,
	handler http.Handler,
	httpListener, grpcListener net.Listener,
	shutdownTimeout time.Duration,
) error {
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	if grpcListener != nil {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

		group.Go(func() error {
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}

			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down servers")

		healthServer.Shutdown()
		grpcServer.GracefulStop()

		// The parent context is already done, so shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}

		return nil
	})

	err := group.Wait()

	logger.Info(ctx, "Servers stopped")

	return err
}
