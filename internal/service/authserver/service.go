package authserver

import (
	"context"
	"errors"

	"github.com/fcch/access-control/internal/accesslog"
	"github.com/fcch/access-control/internal/acl"
	"github.com/fcch/access-control/internal/domain/generation"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/repository/status"
)

// errUpdatesDisabled is returned when no generator source is configured.
var errUpdatesDisabled = errors.New("allow-list generation is not configured")

// updater starts background generations.
type updater interface {
	Start(ctx context.Context) error
	Running() bool
}

// service encapsulates the auth server business logic.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// store holds the allow-lists.
	store *acl.Store
	// log records every check.
	log *accesslog.Log
	// updater regenerates the lists; nil when disabled.
	updater updater
	// repo holds the last generation status.
	repo status.Repository
}

// newService creates a service over the provided components. up may be nil.
func newService(store *acl.Store, log *accesslog.Log, up updater, repo status.Repository) *service {
	return &service{
		store:   store,
		log:     log,
		updater: up,
		repo:    repo,
	}
}

// CheckAccess looks tag up in allowList and records the check. Malformed
// names and tags are rejected before the store or the log is touched. A
// failure to write the access log is reported but does not change the answer.
func (s *service) CheckAccess(ctx context.Context, allowList, tag string) (bool, error) {
	ok, err := s.store.Contains(allowList, tag)
	if err != nil {
		return false, err
	}

	result := accesslog.Result(ok)

	if err = s.log.Record(allowList, tag, result); err != nil {
		logger.ErrorKV(ctx, "Unable to record access check", "error", err)
	}

	logger.InfoKV(ctx, "Access checked", "acl", allowList, "tag", tag, "result", result)

	return ok, nil
}

// RecordRemoteCheck logs a check that a controller answered by itself.
func (s *service) RecordRemoteCheck(ctx context.Context, allowList, tag, result string) error {
	if err := accesslog.ValidateEntry(allowList, tag, result); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Remote access check", "acl", allowList, "tag", tag, "result", result)

	return s.log.Record(allowList, tag, result)
}

// ReadList returns the raw content of allowList.
func (s *service) ReadList(_ context.Context, allowList string) ([]byte, error) {
	return s.store.Read(allowList)
}

// ListNames returns all list names.
func (s *service) ListNames(_ context.Context) ([]string, error) {
	return s.store.List()
}

// StartUpdate begins a background regeneration.
func (s *service) StartUpdate(ctx context.Context) error {
	if s.updater == nil {
		return errUpdatesDisabled
	}

	if err := s.updater.Start(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Allow-list generation started")

	return nil
}

// UpdateStatus returns the last recorded generation and whether one is running.
func (s *service) UpdateStatus(ctx context.Context) (*generation.Status, bool, error) {
	running := s.updater != nil && s.updater.Running()

	last, err := s.repo.Load(ctx)

	return last, running, err
}
