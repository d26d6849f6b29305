package core

import (
	"fmt"
	"strconv"
)

// NumChannels is the number of PWM/capture lanes on the peripheral.
const NumChannels = 8

// Channel identifies one PWM/capture lane, 0 through 7.
type Channel int

// Validate returns ErrInvalidChannel if ch is out of range.
func (ch Channel) Validate() error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("%w: %d (valid 0-%d)", ErrInvalidChannel, int(ch), NumChannels-1)
	}
	return nil
}

// PairOf returns the channel that shares ch's clock configuration register.
func PairOf(ch Channel) Channel {
	return ch ^ 1
}

func (ch Channel) String() string {
	return "PWM" + strconv.Itoa(int(ch))
}
