package status

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/fcch/access-control/internal/domain/generation"
)

// Repository defines persistence operations for the generation status.
type Repository interface {
	Load(ctx context.Context) (*generation.Status, error)
	Save(ctx context.Context, status *generation.Status) error
}

// FileRepository persists the generation status to a JSON file on disk.
// The file is a protobuf Struct encoded with protojson; the generation time is
// the protojson form of a Timestamp.
type FileRepository struct {
	// path is the filesystem location of the JSON status file.
	path string
	// mu protects concurrent access to the status file.
	mu sync.Mutex
}

const (
	keyGeneratedAt = "generated_at"
	keySource      = "source"
	keySuccess     = "success"
	keyError       = "error"
	keyCounts      = "counts"

	// filePermissions is applied to the written status file.
	filePermissions = 0o644
)

var (
	// ErrNotFound is returned when the status file does not exist yet.
	ErrNotFound = errors.New("status not found")

	errBadField = errors.New("unexpected field type")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the status file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the status from disk.
func (r *FileRepository) Load(_ context.Context) (*generation.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read status file: %w", err)
	}

	var record structpb.Struct
	if err = protojson.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}

	return fromProto(&record)
}

// Save writes the status to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, status *generation.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := toProto(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	return nil
}

// MarshalJSON renders status the same way the file stores it.
func MarshalJSON(status *generation.Status) ([]byte, error) {
	record, err := toProto(status)
	if err != nil {
		return nil, err
	}

	return protojson.Marshal(record)
}

// fromProto converts the stored Struct into the domain Status model.
func fromProto(record *structpb.Struct) (*generation.Status, error) {
	fields := record.GetFields()

	status := &generation.Status{
		Source:  fields[keySource].GetStringValue(),
		Success: fields[keySuccess].GetBoolValue(),
		Error:   fields[keyError].GetStringValue(),
	}

	if raw := fields[keyGeneratedAt].GetStringValue(); raw != "" {
		var ts timestamppb.Timestamp
		if err := protojson.Unmarshal([]byte(`"`+raw+`"`), &ts); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keyGeneratedAt, err)
		}

		status.GeneratedAt = ts.AsTime()
	}

	if counts := fields[keyCounts].GetStructValue(); counts != nil {
		status.Counts = make(map[string]int, len(counts.GetFields()))

		for name, value := range counts.GetFields() {
			if _, ok := value.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, fmt.Errorf("%w: %s.%s", errBadField, keyCounts, name)
			}

			status.Counts[name] = int(value.GetNumberValue())
		}
	}

	return status, nil
}

// toProto converts the domain Status model into a Struct.
func toProto(status *generation.Status) (*structpb.Struct, error) {
	counts := make(map[string]any, len(status.Counts))
	for name, n := range status.Counts {
		counts[name] = n
	}

	generatedAt := ""

	if !status.GeneratedAt.IsZero() {
		raw, err := protojson.Marshal(timestamppb.New(status.GeneratedAt.In(time.UTC)))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", keyGeneratedAt, err)
		}

		// protojson renders a Timestamp as a quoted RFC 3339 string.
		generatedAt = string(raw[1 : len(raw)-1])
	}

	return structpb.NewStruct(map[string]any{
		keyGeneratedAt: generatedAt,
		keySource:      status.Source,
		keySuccess:     status.Success,
		keyError:       status.Error,
		keyCounts:      counts,
	})
}
