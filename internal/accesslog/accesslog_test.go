package accesslog

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcch/access-control/internal/acl"
)

// steppingClock returns the given instants in order, repeating the last one.
func steppingClock(instants ...time.Time) func() time.Time {
	i := 0

	return func() time.Time {
		t := instants[min(i, len(instants)-1)]
		i++

		return t
	}
}

// TestStamper_Sequence restarts the counter every new second.
func TestStamper_Sequence(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	s := NewStamper(steppingClock(
		base,
		base.Add(100*time.Millisecond),
		base.Add(900*time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second+time.Millisecond),
	))

	var stamps []string
	for range 5 {
		stamp, _ := s.Next()
		stamps = append(stamps, stamp)
	}

	require.Equal(t, []string{
		"20240305T070809.0",
		"20240305T070809.1",
		"20240305T070809.2",
		"20240305T070810.0",
		"20240305T070810.1",
	}, stamps)
}

// TestLog_Record appends lines to the monthly file.
func TestLog_Record(t *testing.T) {
	t.Parallel()

	march := time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC)
	april := march.Add(time.Second)

	dir := t.TempDir()
	l := New(dir, NewStamper(steppingClock(march, march, april)))

	require.NoError(t, l.Record("door", "12345678", Result(true)))
	require.NoError(t, l.Record("door", "42", Result(false)))
	require.NoError(t, l.Record("laser", "42", "True"))

	data, err := l.Read(march)
	require.NoError(t, err)
	require.Equal(t,
		"20240331T235959.0,check,door,12345678,True\n"+
			"20240331T235959.1,check,door,42,False\n",
		string(data))

	data, err = l.Read(april)
	require.NoError(t, err)
	require.Equal(t, "20240401T000000.0,check,laser,42,True\n", string(data))

	require.Equal(t, "access-2024-04.log", FileName(april))
}

// TestLog_RecordRejectsInjection refuses fields that would break the line format.
func TestLog_RecordRejectsInjection(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 5, 7, 8, 10, 0, time.UTC)
	l := New(t.TempDir(), NewStamper(func() time.Time { return now }))

	cases := []struct {
		list, tag, result string
		want              error
	}{
		{list: "door", tag: "42\n20240101T000000.0,check,door,1", result: "True", want: acl.ErrInvalidTag},
		{list: "door", tag: "42,True", result: "True", want: acl.ErrInvalidTag},
		{list: "door", tag: "# Generated at 20240131T120000", result: "True", want: acl.ErrInvalidTag},
		{list: "door", tag: "42", result: "True\nx", want: ErrInvalidResult},
		{list: "door", tag: "42", result: "yes", want: ErrInvalidResult},
		{list: "door,x", tag: "42", result: "True", want: acl.ErrInvalidName},
	}

	for _, tc := range cases {
		require.ErrorIs(t, l.Record(tc.list, tc.tag, tc.result), tc.want, tc.tag+"/"+tc.result)
	}

	_, err := l.Read(now)
	require.ErrorIs(t, err, os.ErrNotExist)
}
