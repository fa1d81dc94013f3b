package gpio

import (
	"errors"
	"fmt"
)

// ErrUnknownPin is returned for board pins that are not GPIO capable.
var ErrUnknownPin = errors.New("board pin is not a GPIO")

// boardToBCM maps the physical pins of the 40-pin Raspberry Pi header to
// Broadcom GPIO numbers, which are also the line offsets on gpiochip0.
//
//nolint:gochecknoglobals,mnd // Read-only hardware table.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// BCM returns the Broadcom GPIO number of a physical header pin.
func BCM(boardPin int) (int, error) {
	bcm, ok := boardToBCM[boardPin]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPin, boardPin)
	}

	return bcm, nil
}
