package rfid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Profile describes how a reader model frames tag transmissions.
type Profile struct {
	// Name is the configuration name of the reader model.
	Name string
	// Baud is the serial line speed.
	Baud int
	// Start marks the beginning of a frame.
	Start byte
	// End marks the end of a frame.
	End byte
	// LeaderLen is the number of hex digits before the tag id.
	LeaderLen int
	// TagLen is the number of hex digits of the tag id.
	TagLen int
	// ChecksumLen is the number of trailing checksum hex digits, 0 when none.
	ChecksumLen int
}

// FrameLen returns the number of payload bytes between the markers.
func (p Profile) FrameLen() int {
	return p.LeaderLen + p.TagLen + p.ChecksumLen
}

var (
	// Parallax is the 2400 baud Parallax reader, without checksum.
	Parallax = Profile{
		Name:        "parallax",
		Baud:        2400,
		Start:       '\n',
		End:         '\r',
		LeaderLen:   2,
		TagLen:      8,
		ChecksumLen: 0,
	}

	// RDM6300 is the 9600 baud RDM6300 module with an XOR checksum.
	RDM6300 = Profile{
		Name:        "rdm6300",
		Baud:        9600,
		Start:       0x02,
		End:         0x03,
		LeaderLen:   2,
		TagLen:      8,
		ChecksumLen: 2,
	}
)

// ErrUnknownProfile is returned for reader types that have no profile.
var ErrUnknownProfile = errors.New("unknown reader type")

// profiles indexes the supported reader models by name.
//
//nolint:gochecknoglobals // Read-only lookup table.
var profiles = map[string]Profile{
	Parallax.Name: Parallax,
	RDM6300.Name:  RDM6300,
}

// ProfileByName resolves a reader type from configuration.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownProfile, name, strings.Join(ProfileNames(), ", "))
	}

	return p, nil
}

// ProfileNames lists the supported reader types in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
