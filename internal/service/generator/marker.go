package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/fcch/access-control/internal/domain/generation"
	"github.com/fcch/access-control/internal/logger"
)

// markerPermissions is applied to the marker file.
const markerPermissions = 0o644

// acquireMarker creates the marker file holding this process id. An existing
// marker blocks the run only while the process it names is still alive; a
// stale marker is removed. The returned function removes the marker.
func acquireMarker(ctx context.Context, path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create marker directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerPermissions)
		if err == nil {
			_, err = f.WriteString(strconv.Itoa(os.Getpid()))
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				_ = os.Remove(path)

				return nil, fmt.Errorf("write marker: %w", err)
			}

			return func() { _ = os.Remove(path) }, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create marker: %w", err)
		}

		if holderAlive(ctx, path) {
			return nil, generation.ErrAlreadyRunning
		}

		logger.Info(ctx, "The generation marker is stale, removing it")

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	}

	return nil, generation.ErrAlreadyRunning
}

// holderAlive reports whether the process named in the marker still runs.
// Unreadable markers count as held so that two runs never overlap.
func holderAlive(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(path)
	if err != nil {
		return !errors.Is(err, os.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		logger.WarnKV(ctx, "Generation marker holds no process id", "path", path)

		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Unable to look up marker holder", "pid", pid, "error", err)

		return true
	}

	return process != nil
}
