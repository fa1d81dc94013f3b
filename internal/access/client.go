package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/logger"
)

const (
	// CheckPath is the path prefix of the access query.
	CheckPath = "check-access"
	// Audience is the JWT audience of access-check tokens.
	Audience = "check-access"
	// AnswerTrue is the body that grants access.
	AnswerTrue = "True"
	// AnswerFalse is the body that denies access.
	AnswerFalse = "False"

	// maxAnswerBytes caps how much of the response body is read.
	maxAnswerBytes = 64
)

var (
	// errBaseURLRequired is returned when no service URL is configured.
	errBaseURLRequired = errors.New("authorization service URL must be provided")
	// errUnexpectedStatus is reported for non-200 responses.
	errUnexpectedStatus = errors.New("unexpected http status")
	// errUnexpectedAnswer is reported for bodies other than True or False.
	errUnexpectedAnswer = errors.New("unexpected answer")
)

// Decision is the outcome of an access check.
type Decision struct {
	// Authorized is true only for an explicit True answer.
	Authorized bool
	// Err is a fault.Validator error when the check could not be completed.
	Err error
}

// Client queries the authorization service over HTTP.
type Client struct {
	// baseURL is the service root, e.g. http://auth:8080.
	baseURL *url.URL
	// http performs the requests.
	http *http.Client
	// callTimeout bounds one check; zero leaves it to the transport.
	callTimeout time.Duration
	// secret signs bearer tokens when non-empty.
	secret []byte
	// subject names this device in signed tokens.
	subject string
	// now is the token clock.
	now func() time.Time
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a deadline for each check.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSecret signs every request with an HS256 token for subject.
func WithTokenSecret(secret, subject string) Option {
	return func(c *Client) {
		if secret != "" {
			c.secret = []byte(secret)
			c.subject = subject
		}
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errBaseURLRequired
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse authorization service URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse authorization service URL: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    http.DefaultClient,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Check asks whether tag is on allowList. It never returns an error; see Decision.
func (c *Client) Check(ctx context.Context, allowList string, tag uint64) Decision {
	authorized, err := c.check(ctx, allowList, tag)
	if err != nil {
		err = fault.Wrap(fault.Validator, err)
		logger.WarnKV(ctx, "Access check failed, denying", "acl", allowList, "tag", tag, "error", err)

		return Decision{Authorized: false, Err: err}
	}

	return Decision{Authorized: authorized}
}

func (c *Client) check(ctx context.Context, allowList string, tag uint64) (bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	endpoint := c.baseURL.JoinPath(CheckPath, allowList, strconv.FormatUint(tag, 10))

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	if len(c.secret) > 0 {
		token, signErr := SignToken(c.secret, c.subject, c.now())
		if signErr != nil {
			return false, signErr
		}

		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request %s: %w", endpoint.Redacted(), err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch answer := strings.TrimSpace(string(body)); answer {
	case AnswerTrue:
		return true, nil
	case AnswerFalse:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", errUnexpectedAnswer, answer)
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
