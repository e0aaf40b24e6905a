package schedule

import (
	"fmt"
	"strings"
)

// DelayContext selects the clock a task waits on.
type DelayContext int

const (
	// None never suspends.
	None DelayContext = iota
	// SampleBased waits on the sample clock.
	SampleBased
	// BufferBased waits on the buffer cycle clock.
	BufferBased
)

func (c DelayContext) String() string {
	switch c {
	case None:
		return "none"
	case SampleBased:
		return "sample_based"
	case BufferBased:
		return "buffer_based"
	default:
		return fmt.Sprintf("delay(%d)", int(c))
	}
}

// ParseDelayContext maps a name to a DelayContext.
func ParseDelayContext(name string) (DelayContext, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return None, nil
	case "sample_based", "sample", "samples":
		return SampleBased, nil
	case "buffer_based", "buffer", "cycles":
		return BufferBased, nil
	}
	return None, fmt.Errorf("unknown delay context %q", name)
}

// Delay is a suspension request.
type Delay struct {
	Context DelayContext
	Units   uint64
}

// Samples returns a delay of n sample frames.
func Samples(n uint64) Delay {
	return Delay{Context: SampleBased, Units: n}
}

// Cycles returns a delay of n buffer cycles.
func Cycles(n uint64) Delay {
	return Delay{Context: BufferBased, Units: n}
}
