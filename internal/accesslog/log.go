package accesslog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fcch/access-control/internal/acl"
)

const (
	// fileLayout names the monthly log file.
	fileLayout = "access-2006-01.log"

	// fileMode is applied to created log files.
	fileMode os.FileMode = 0o644
)

const (
	resultTrue  = "True"
	resultFalse = "False"
)

// ErrInvalidResult is returned for a result other than True or False.
var ErrInvalidResult = errors.New("result must be True or False")

// ValidResult reports whether result is True or False.
func ValidResult(result string) bool {
	return result == resultTrue || result == resultFalse
}

// Result is the textual outcome of a check as it appears in the log.
func Result(authorized bool) string {
	if authorized {
		return resultTrue
	}

	return resultFalse
}

// Log appends check lines to access-YYYY-MM.log files in a directory.
type Log struct {
	dir     string
	stamper *Stamper

	// mu serializes appends so lines never interleave.
	mu sync.Mutex
}

// New returns a log writing into dir with stamps from stamper.
func New(dir string, stamper *Stamper) *Log {
	return &Log{dir: dir, stamper: stamper}
}

// ValidateEntry checks the fields of a log line.
func ValidateEntry(allowList, tag, result string) error {
	switch {
	case !acl.ValidName(allowList):
		return fmt.Errorf("%w: %q", acl.ErrInvalidName, allowList)
	case !acl.ValidTag(tag):
		return fmt.Errorf("%w: %q", acl.ErrInvalidTag, tag)
	case !ValidResult(result):
		return fmt.Errorf("%w: %q", ErrInvalidResult, result)
	default:
		return nil
	}
}

// FileName returns the log file name for the month of t.
func FileName(t time.Time) string {
	return t.Format(fileLayout)
}

// Path returns the current month's log file path.
func (l *Log) Path(t time.Time) string {
	return filepath.Join(l.dir, FileName(t))
}

// Record appends "<stamp>,check,<acl>,<tag>,<result>" to the current month's file.
// Every field is validated first, so a line always has exactly five fields.
func (l *Log) Record(allowList, tag, result string) error {
	if err := ValidateEntry(allowList, tag, result); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stamp, now := l.stamper.Next()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create access log directory: %w", err)
	}

	f, err := os.OpenFile(l.Path(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}

	line := strings.Join([]string{stamp, "check", allowList, tag, result}, ",") + "\n"

	if _, err = f.WriteString(line); err != nil {
		_ = f.Close()

		return fmt.Errorf("write access log: %w", err)
	}

	return f.Close()
}

// Read returns the content of the log file for the month of t.
func (l *Log) Read(t time.Time) ([]byte, error) {
	return os.ReadFile(l.Path(t))
}
