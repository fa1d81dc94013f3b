package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fcch/access-control/internal/acl"
)

const (
	// headerRFID must be the first header cell.
	headerRFID = "RFID"
	// granted is the cell value that grants access.
	granted = "y"
	// idSeparator splits several tags held by one member.
	idSeparator = ","
)

var (
	errEmptyTable = errors.New("no values found in membership table")
	errBadHeader  = errors.New("first header cell is not " + headerRFID)
)

// TableOptions adjusts how the membership table maps to lists.
type TableOptions struct {
	// Always lists receive every member that has a tag.
	Always []string
	// Rename maps column names to list names.
	Rename map[string]string
}

// ParseTable reads the membership table and returns the tags of every list.
// Every column yields a list, even an empty one.
func ParseTable(r io.Reader, opts TableOptions) (map[string][]uint64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyTable
	}

	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")) != headerRFID {
		return nil, fmt.Errorf("%w: %q", errBadHeader, header[0])
	}

	columns := make([]string, 0, len(header)-1)
	lists := make(map[string][]uint64, len(header)-1+len(opts.Always))

	for _, cell := range header[1:] {
		name := strings.TrimSpace(cell)
		if renamed, ok := opts.Rename[name]; ok {
			name = renamed
		}

		if !acl.ValidName(name) {
			return nil, fmt.Errorf("column %q: %w", cell, acl.ErrInvalidName)
		}

		columns = append(columns, name)
		lists[name] = nil
	}

	for _, name := range opts.Always {
		lists[name] = nil
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		ids := parseIDs(row[0])
		if len(ids) == 0 {
			continue
		}

		for i, name := range columns {
			col := i + 1
			if col >= len(row) {
				break
			}

			if row[col] != granted {
				continue
			}

			lists[name] = append(lists[name], ids...)
		}

		for _, name := range opts.Always {
			lists[name] = append(lists[name], ids...)
		}
	}

	return lists, nil
}

// parseIDs splits a cell holding one or more tags. Leading zeros are
// dropped and cells that are not positive integers are skipped.
func parseIDs(cell string) []uint64 {
	var ids []uint64

	for _, raw := range strings.Split(cell, idSeparator) {
		raw = strings.TrimLeft(strings.TrimSpace(raw), "0")
		if raw == "" {
			continue
		}

		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids
}
