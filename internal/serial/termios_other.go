//go:build !linux

package serial

import (
	"errors"
	"os"
)

var errNotSupported = errors.New("serial ports are only supported on linux")

//nolint:gochecknoglobals // Lookup table.
var baudRates = map[int]uint32{
	2400: 0,
	9600: 0,
}

func openTTY(string) (*os.File, error) {
	return nil, errNotSupported
}

func makeRaw(*os.File, uint32) error {
	return errNotSupported
}
