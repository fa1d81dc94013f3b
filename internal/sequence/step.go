package sequence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fcch/access-control/internal/fault"
	"github.com/fcch/access-control/internal/gpio"
)

// Step is one action of a Sequence. The set of implementations is closed.
type Step interface {
	fmt.Stringer

	isStep()
}

// Sleep delays the next step. In configuration the delay is written in
// milliseconds: "sleep,5000" is five seconds, "sleep,5" is five milliseconds.
type Sleep struct {
	// Duration is how long the following step waits.
	Duration time.Duration
}

// SetOutputMode configures a pin as an output.
type SetOutputMode struct {
	// Pin is the physical header pin number.
	Pin int
}

// SetOutputValue drives a pin.
type SetOutputValue struct {
	// Pin is the physical header pin number.
	Pin int
	// Level is the value to drive.
	Level gpio.Level
}

// Log writes a message to the controller log.
type Log struct {
	// Message is logged verbatim.
	Message string
}

func (Sleep) isStep()          {}
func (SetOutputMode) isStep()  {}
func (SetOutputValue) isStep() {}
func (Log) isStep()            {}

// Step kinds as written in configuration.
const (
	KindSleep    = "sleep"
	KindSetupOut = "gpio.setup.out"
	KindOutput   = "gpio.out"
	KindLog      = "log"
)

// argSeparator separates the kind and arguments of a step tuple.
const argSeparator = ","

func (s Sleep) String() string {
	return KindSleep + argSeparator + strconv.FormatInt(s.Duration.Milliseconds(), 10)
}

func (s SetOutputMode) String() string {
	return KindSetupOut + argSeparator + strconv.Itoa(s.Pin)
}

func (s SetOutputValue) String() string {
	return KindOutput + argSeparator + strconv.Itoa(s.Pin) + argSeparator + strconv.Itoa(int(s.Level))
}

func (s Log) String() string {
	return KindLog + argSeparator + s.Message
}

var (
	// ErrUnknownAction is returned for an unsupported step kind.
	ErrUnknownAction = errors.New("invalid action")
	// ErrArgumentCount is returned when a step has the wrong number of arguments.
	ErrArgumentCount = errors.New("invalid argument count")
	// ErrArgument is returned when an argument cannot be converted.
	ErrArgument = errors.New("invalid arguments")
)

// argCounts is the number of arguments each step kind takes.
//
//nolint:gochecknoglobals // Read-only lookup table.
var argCounts = map[string]int{
	KindSleep:    1,
	KindSetupOut: 1,
	KindOutput:   2,
	KindLog:      1,
}

// ParseStep parses one "kind,arg..." tuple.
//
//nolint:ireturn // Step is a closed sum type.
func ParseStep(entry string) (Step, error) {
	parts := strings.Split(entry, argSeparator)
	kind, args := strings.TrimSpace(parts[0]), parts[1:]

	want, ok := argCounts[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, kind)
	}

	if len(args) != want {
		return nil, fmt.Errorf("%w %d for %s, want %d", ErrArgumentCount, len(args), kind, want)
	}

	switch kind {
	case KindSleep:
		ms, err := parseInt(args[0])
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("%w: sleep %q", ErrArgument, args[0])
		}

		return Sleep{Duration: time.Duration(ms) * time.Millisecond}, nil
	case KindSetupOut:
		pin, err := parseInt(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: pin %q", ErrArgument, args[0])
		}

		return SetOutputMode{Pin: pin}, nil
	case KindOutput:
		pin, err := parseInt(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: pin %q", ErrArgument, args[0])
		}

		level, err := parseInt(args[1])
		if err != nil || (level != int(gpio.Low) && level != int(gpio.High)) {
			return nil, fmt.Errorf("%w: level %q", ErrArgument, args[1])
		}

		return SetOutputValue{Pin: pin, Level: gpio.Level(level)}, nil
	default:
		return Log{Message: args[0]}, nil
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// Sequence is an ordered list of steps. Treat it as immutable once built.
type Sequence []Step

// Parse builds a sequence from configuration tuples. name prefixes error
// positions as name.index, and every error is a configuration fault.
func Parse(name string, entries []string) (Sequence, error) {
	seq := make(Sequence, 0, len(entries))

	for i, entry := range entries {
		step, err := ParseStep(entry)
		if err != nil {
			return nil, fault.Wrapf(fault.Config, "%s.%d: %w", name, i, err)
		}

		seq = append(seq, step)
	}

	return seq, nil
}

// Strings renders the sequence back into configuration tuples.
func (s Sequence) Strings() []string {
	out := make([]string, len(s))
	for i, step := range s {
		out[i] = step.String()
	}

	return out
}
