package acl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fcch/access-control/internal/access"
	"github.com/fcch/access-control/internal/accesslog"
	aclstore "github.com/fcch/access-control/internal/acl"
	"github.com/fcch/access-control/internal/domain/generation"
	"github.com/fcch/access-control/internal/logger"
	"github.com/fcch/access-control/internal/repository/status"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	CheckAccess(ctx context.Context, allowList, tag string) (bool, error)
	RecordRemoteCheck(ctx context.Context, allowList, tag, result string) error
	ReadList(ctx context.Context, allowList string) ([]byte, error)
	ListNames(ctx context.Context) ([]string, error)
	StartUpdate(ctx context.Context) error
	UpdateStatus(ctx context.Context) (last *generation.Status, running bool, err error)
}

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json"

	paramACL    = "acl"
	paramTag    = "tag"
	paramResult = "result"
)

// Server implements the auth server HTTP API.
type Server struct {
	// service provides the business logic.
	service Service
	// secret, when set, is required as a bearer token on checks and updates.
	secret []byte
}

// NewServer wires the provided service implementation into an HTTP handler.
// An empty secret disables token checks.
func NewServer(service Service, secret string) *Server {
	s := &Server{service: service}
	if secret != "" {
		s.secret = []byte(secret)
	}

	return s
}

// Routes returns the router serving every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/check-access/{acl}/{tag}", s.checkAccess)
		r.Get("/api/check-access-0/{acl}/{tag}", s.checkAccess)
		r.Post("/api/update-acls-0", s.updateLists)
	})

	r.Get("/api/log-remote-access-check-0/{acl}/{tag}/{result}", s.recordRemoteCheck)
	r.Get("/api/get-acl-0/{acl}", s.getList)
	r.Get("/api/acls-0", s.listNames)
	r.Get("/api/acl-update-status-0", s.updateStatus)

	return r
}

func (s *Server) checkAccess(w http.ResponseWriter, r *http.Request) {
	ok, err := s.service.CheckAccess(r.Context(), chi.URLParam(r, paramACL), chi.URLParam(r, paramTag))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if ok {
		writeText(w, http.StatusOK, access.AnswerTrue)
	} else {
		writeText(w, http.StatusOK, access.AnswerFalse)
	}
}

func (s *Server) recordRemoteCheck(w http.ResponseWriter, r *http.Request) {
	err := s.service.RecordRemoteCheck(r.Context(),
		chi.URLParam(r, paramACL), chi.URLParam(r, paramTag), chi.URLParam(r, paramResult))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeText(w, http.StatusOK, "")
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.ReadList(r.Context(), chi.URLParam(r, paramACL))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) listNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListNames(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	body := strings.Join(names, "\n")
	if body != "" {
		body += "\n"
	}

	writeText(w, http.StatusOK, body)
}

func (s *Server) updateLists(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StartUpdate(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeText(w, http.StatusAccepted, "Started")
}

// statusResponse is the body of the update status endpoint.
type statusResponse struct {
	Running bool            `json:"running"`
	Last    json.RawMessage `json:"last,omitempty"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	last, running, err := s.service.UpdateStatus(r.Context())
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		writeError(r.Context(), w, err)
		return
	}

	resp := statusResponse{Running: running}

	if last != nil {
		if resp.Last, err = status.MarshalJSON(last); err != nil {
			writeError(r.Context(), w, err)
			return
		}
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// requireToken rejects requests without a valid bearer token when a secret is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == nil {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeText(w, http.StatusUnauthorized, "Missing token")
			return
		}

		subject, err := access.VerifyToken(s.secret, strings.TrimSpace(raw))
		if err != nil {
			logger.WarnKV(r.Context(), "Rejected token", "error", err)
			writeText(w, http.StatusUnauthorized, "Invalid token")

			return
		}

		next.ServeHTTP(w, r.WithContext(logger.WithKV(r.Context(), "subject", subject)))
	})
}

// requestLogger attaches a request-scoped logger and logs each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithFields(r.Context(),
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.DebugKV(ctx, "Request served", "status", ww.Status())
	})
}

// writeError maps service errors to status codes.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aclstore.ErrInvalidName):
		writeText(w, http.StatusBadRequest, "Invalid ACL name")
	case errors.Is(err, aclstore.ErrInvalidTag):
		writeText(w, http.StatusBadRequest, "Invalid tag")
	case errors.Is(err, accesslog.ErrInvalidResult):
		writeText(w, http.StatusBadRequest, "Invalid result")
	case errors.Is(err, aclstore.ErrNotFound):
		writeText(w, http.StatusNotFound, "ACL not found")
	case errors.Is(err, generation.ErrAlreadyRunning):
		writeText(w, http.StatusConflict, "Already running")
	default:
		logger.ErrorKV(ctx, "Request failed", "error", err)
		writeText(w, http.StatusInternalServerError, "Internal error")
	}
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
