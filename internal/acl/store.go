package acl

import (
	"bufio"
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// FilePrefix starts the file name of every list.
	FilePrefix = "acl-"

	// HeaderPrefix starts the first line of every list.
	HeaderPrefix = "# Generated at "

	// TimestampLayout formats the generation time in the header.
	TimestampLayout = "20060102T150405"

	// FileMode is applied to written list files.
	FileMode os.FileMode = 0o644

	// ChecksumFunction verifies rewritten files.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var (
	// ErrInvalidName is returned for a list name outside [a-z0-9_.-].
	ErrInvalidName = errors.New("invalid allow-list name")

	// ErrInvalidTag is returned for a tag that is not a decimal number.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrNotFound is returned when no file exists for a valid list name.
	ErrNotFound = errors.New("allow-list not found")

	errHashUnavailable = errors.New("hash function unavailable")
)

//nolint:gochecknoglobals // Compiled once.
var (
	namePattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)
	tagPattern  = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// ValidName reports whether name may be used as a list name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ValidTag reports whether tag is a decimal tag id as written in list files.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Store is a directory of allow-list files.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the lists.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path of list name.
func (s *Store) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, FilePrefix+name), nil
}

// Read returns the raw file content of list name.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err != nil {
		return nil, fmt.Errorf("read allow-list %s: %w", name, err)
	}

	return data, nil
}

// Contains reports whether tag is listed in list name. Tags that are not
// decimal numbers are rejected with ErrInvalidTag before the list is read.
func (s *Store) Contains(name, tag string) (bool, error) {
	if !ValidTag(tag) {
		return false, fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}

	data, err := s.Read(name)
	if err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == tag {
			return true, nil
		}
	}

	if err = scanner.Err(); err != nil {
		return false, fmt.Errorf("scan allow-list %s: %w", name, err)
	}

	return false, nil
}

// List returns the names of all lists, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list allow-lists: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		name, ok := strings.CutPrefix(entry.Name(), FilePrefix)
		if !ok || entry.IsDir() || !ValidName(name) {
			continue
		}

		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}

// Write replaces list name with ids, sorted ascending without duplicates.
func (s *Store) Write(name string, ids []uint64, generatedAt time.Time) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create allow-list directory: %w", err)
	}

	content := Render(ids, generatedAt)

	checksum, err := checksumOf(content)
	if err != nil {
		return err
	}

	// go-update replaces an existing file, so an empty one is created first.
	if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(path, nil, FileMode); err != nil {
			return fmt.Errorf("create allow-list %s: %w", name, err)
		}
	}

	//nolint:exhaustruct // Defaults are fine for the remaining options.
	options := goupdate.Options{
		TargetPath: path,
		TargetMode: FileMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(content), options); err != nil {
		return fmt.Errorf("replace allow-list %s: %w", name, err)
	}

	return nil
}

// Replace writes every list in lists and removes list files that are not in it.
func (s *Store) Replace(lists map[string][]uint64, generatedAt time.Time) error {
	names := make([]string, 0, len(lists))
	for name := range lists {
		if !ValidName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}

		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err := s.Write(name, lists[name], generatedAt); err != nil {
			return err
		}
	}

	existing, err := s.List()
	if err != nil {
		return err
	}

	for _, name := range existing {
		if _, ok := lists[name]; ok {
			continue
		}

		if err = os.Remove(filepath.Join(s.dir, FilePrefix+name)); err != nil {
			return fmt.Errorf("remove obsolete allow-list %s: %w", name, err)
		}
	}

	return nil
}

// Render produces the file content for ids.
func Render(ids []uint64, generatedAt time.Time) []byte {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var buf bytes.Buffer

	buf.WriteString(HeaderPrefix)
	buf.WriteString(generatedAt.Format(TimestampLayout))
	buf.WriteByte('\n')

	for _, id := range sorted {
		buf.WriteString(strconv.FormatUint(id, 10))
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}

func checksumOf(content []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	hasher.Write(content)

	return hasher.Sum(nil), nil
}
