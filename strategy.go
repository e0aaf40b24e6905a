package cycle

import (
	"fmt"
	"strings"
)

// Strategy defines how operations of a cycle are sequenced.
type Strategy int

const (
	// Phased runs all capture operations, then all process operations.
	Phased Strategy = iota
	// Streaming runs operations in order, feeding every fresh result to
	// the next process operation right away.
	Streaming
	// Parallel is reserved for concurrent capture. Not implemented.
	Parallel
	// Reactive is reserved for event-driven execution. Not implemented.
	Reactive
)

func (s Strategy) String() string {
	switch s {
	case Phased:
		return "phased"
	case Streaming:
		return "streaming"
	case Parallel:
		return "parallel"
	case Reactive:
		return "reactive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Implemented reports whether the strategy can be executed.
func (s Strategy) Implemented() bool {
	return s == Phased || s == Streaming
}

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "phased", "":
		return Phased, nil
	case "streaming":
		return Streaming, nil
	case "parallel":
		return Parallel, nil
	case "reactive":
		return Reactive, nil
	}
	return Phased, fmt.Errorf("unknown strategy %q", name)
}

// DataState is the lifecycle state of an operation result within a cycle.
type DataState int

const (
	// Empty means nothing was produced this cycle.
	Empty DataState = iota
	// Ready means the result was produced and not consumed yet.
	Ready
	// Consumed means the result was used.
	Consumed
	// Expired means transient data outlived its cycle.
	Expired
)

func (s DataState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Consumed:
		return "consumed"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
