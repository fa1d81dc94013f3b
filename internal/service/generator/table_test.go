package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/acl"
)

const membership = `RFID,door,Laser Cutter,woodshop
0012345678,y,y,
"42, 0043",y,,y
,y,y,y
garbage,y,y,y
7,n,y
`

// TestParseTable grants lists per cell and skips rows without tags.
func TestParseTable(t *testing.T) {
	t.Parallel()

	lists, err := ParseTable(strings.NewReader(membership), TableOptions{
		Rename: map[string]string{"Laser Cutter": "laser"},
	})
	require.NoError(t, err)

	require.Equal(t, map[string][]uint64{
		"door":     {12345678, 42, 43},
		"laser":    {12345678, 7},
		"woodshop": {42, 43},
	}, lists)
}

// TestParseTable_Always grants the always lists to every member with a tag.
func TestParseTable_Always(t *testing.T) {
	t.Parallel()

	lists, err := ParseTable(strings.NewReader("RFID,laser\n5,\n6,y\n,y\n"), TableOptions{
		Always: []string{"door"},
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 6}, lists["door"])
	require.Equal(t, []uint64{6}, lists["laser"])
}

// TestParseTable_EmptyLists keeps columns nobody is granted.
func TestParseTable_EmptyLists(t *testing.T) {
	t.Parallel()

	lists, err := ParseTable(strings.NewReader("\ufeffRFID,door,laser\n"), TableOptions{})
	require.NoError(t, err)
	require.Len(t, lists, 2)
	require.Contains(t, lists, "laser")
}

// TestParseTable_Errors rejects malformed headers.
func TestParseTable_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseTable(strings.NewReader(""), TableOptions{})
	require.ErrorIs(t, err, errEmptyTable)

	_, err = ParseTable(strings.NewReader("Name,door\n"), TableOptions{})
	require.ErrorIs(t, err, errBadHeader)

	_, err = ParseTable(strings.NewReader("RFID,Laser Cutter\n"), TableOptions{})
	require.ErrorIs(t, err, acl.ErrInvalidName)
}

// TestParseIDs strips zeros and blanks and skips junk.
func TestParseIDs(t *testing.T) {
	t.Parallel()

	require.Equal(t, []uint64{1, 20}, parseIDs(" 001 ,x, 0020,,000"))
	require.Empty(t, parseIDs(""))
}
