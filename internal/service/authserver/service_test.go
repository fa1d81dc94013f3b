package authserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/accesslog"
	"github.com/fcch/access-control/internal/acl"
	api "github.com/fcch/access-control/internal/api/http/acl"
	"github.com/fcch/access-control/internal/domain/generation"
	"github.com/fcch/access-control/internal/repository/status"
)

var errTestStart = errors.New("test start error")

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// status is returned from Load.
	status *generation.Status
}

func (m *memoryRepository) Load(context.Context) (*generation.Status, error) {
	if m.status == nil {
		return nil, status.ErrNotFound
	}

	return m.status, nil
}

func (m *memoryRepository) Save(_ context.Context, s *generation.Status) error {
	m.status = s

	return nil
}

// stubUpdater records Start calls.
type stubUpdater struct {
	started int
	running bool
	err     error
}

func (u *stubUpdater) Start(context.Context) error {
	if u.err != nil {
		return u.err
	}

	u.started++

	return nil
}

func (u *stubUpdater) Running() bool {
	return u.running
}

// fixedClock always returns the same instant.
func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
}

func newTestService(t *testing.T, up updater) (*service, *accesslog.Log) {
	t.Helper()

	dir := t.TempDir()
	store := acl.NewStore(filepath.Join(dir, "acls"))
	require.NoError(t, store.Write("door", []uint64{42, 12345678}, fixedClock()))

	log := accesslog.New(filepath.Join(dir, "log"), accesslog.NewStamper(fixedClock))

	return newService(store, log, up, new(memoryRepository)), log
}

// TestService_CheckAccess answers from the list and logs each check.
func TestService_CheckAccess(t *testing.T) {
	t.Parallel()

	s, log := newTestService(t, nil)

	ok, err := s.CheckAccess(context.Background(), "door", "12345678")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CheckAccess(context.Background(), "door", "7")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.CheckAccess(context.Background(), "missing", "7")
	require.ErrorIs(t, err, acl.ErrNotFound)

	_, err = s.CheckAccess(context.Background(), "../x", "7")
	require.ErrorIs(t, err, acl.ErrInvalidName)

	require.NoError(t, s.RecordRemoteCheck(context.Background(), "door", "99", "True"))
	require.ErrorIs(t, s.RecordRemoteCheck(context.Background(), "Bad,Name", "99", "True"), acl.ErrInvalidName)

	// Neither a header line nor an embedded newline reaches the store or the log.
	_, err = s.CheckAccess(context.Background(), "door", "# Generated at 20240305T070809")
	require.ErrorIs(t, err, acl.ErrInvalidTag)
	_, err = s.CheckAccess(context.Background(), "door", "1\n20240305T070809.9,check,door,1")
	require.ErrorIs(t, err, acl.ErrInvalidTag)
	require.ErrorIs(t, s.RecordRemoteCheck(context.Background(), "door", "9,9", "True"), acl.ErrInvalidTag)
	require.ErrorIs(t, s.RecordRemoteCheck(context.Background(), "door", "99", "True\n"), accesslog.ErrInvalidResult)

	data, err := log.Read(fixedClock())
	require.NoError(t, err)
	require.Equal(t, []string{
		"20240305T070809.0,check,door,12345678,True",
		"20240305T070809.1,check,door,7,False",
		"20240305T070809.2,check,door,99,True",
	}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

// TestService_RejectsMalformedPaths answers 400 for tags and results that
// could forge access-log lines, and writes nothing.
func TestService_RejectsMalformedPaths(t *testing.T) {
	t.Parallel()

	s, log := newTestService(t, nil)

	srv := httptest.NewServer(api.NewServer(s, "").Routes())
	t.Cleanup(srv.Close)

	cases := map[string]string{
		"/check-access/door/%23%20Generated%20at%2020240305T070809": "Invalid tag",
		"/check-access/door/42%0A20240305T070809.9,check,door,1":    "Invalid tag",
		"/api/log-remote-access-check-0/door/42,1/True":             "Invalid tag",
		"/api/log-remote-access-check-0/door/42/True%0Ax":           "Invalid result",
		"/api/log-remote-access-check-0/door/42/maybe":              "Invalid result",
	}

	for path, want := range cases {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err, path)

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		require.NoError(t, err, path)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		require.Equal(t, want, string(body), path)
	}

	_, err := log.Read(fixedClock())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestService_Lists exposes list names and contents.
func TestService_Lists(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, nil)

	names, err := s.ListNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"door"}, names)

	data, err := s.ReadList(context.Background(), "door")
	require.NoError(t, err)
	require.Equal(t, "# Generated at 20240305T070809\n42\n12345678\n", string(data))
}

// TestService_Update delegates to the updater and reports its state.
func TestService_Update(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t, nil)
	require.ErrorIs(t, s.StartUpdate(context.Background()), errUpdatesDisabled)

	_, running, err := s.UpdateStatus(context.Background())
	require.ErrorIs(t, err, status.ErrNotFound)
	require.False(t, running)

	up := &stubUpdater{running: true}
	s, _ = newTestService(t, up)

	require.NoError(t, s.StartUpdate(context.Background()))
	require.Equal(t, 1, up.started)

	require.NoError(t, s.repo.Save(context.Background(), &generation.Status{Success: true}))

	last, running, err := s.UpdateStatus(context.Background())
	require.NoError(t, err)
	require.True(t, running)
	require.True(t, last.Success)

	up.err = errTestStart
	require.ErrorIs(t, s.StartUpdate(context.Background()), errTestStart)
}
