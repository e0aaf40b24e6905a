package cycle

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

// CaptureMode defines how freshly extracted samples merge with the data
// captured before.
type CaptureMode int

const (
	// Transient replaces stored data on every extraction.
	Transient CaptureMode = iota
	// Accumulate appends every extraction.
	Accumulate
	// Triggered keeps an extraction only when the stop condition holds.
	Triggered
	// Windowed keeps a rolling window with overlap.
	Windowed
	// Circular keeps the latest extractions up to a capacity.
	Circular
)

func (m CaptureMode) String() string {
	switch m {
	case Transient:
		return "transient"
	case Accumulate:
		return "accumulate"
	case Triggered:
		return "triggered"
	case Windowed:
		return "windowed"
	case Circular:
		return "circular"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ProcessingControl defines whether a capture triggers the default
// processing of its source buffer.
type ProcessingControl int

const (
	// Automatic leaves buffer processing to its owner.
	Automatic ProcessingControl = iota
	// OnCapture runs the buffer default processor before every extraction.
	OnCapture
	// Manual never processes the buffer.
	Manual
)

const (
	// DefaultCircularSize is the capacity used by AsCircular(0).
	DefaultCircularSize = 4096
	// DefaultWindowSize is the window used by WithWindow(0, ...).
	DefaultWindowSize = 512
	// DefaultBlockSize is the buffer size of file captures.
	DefaultBlockSize = 512
)

type (
	// DataFunc receives captured data with the cycle it was produced in.
	DataFunc func(data signal.Variant, cycle uint64)
	// CycleFunc receives a cycle number.
	CycleFunc func(cycle uint64)
)

// Capture describes how to pull data out of a source buffer and how long
// to keep it.
type Capture struct {
	source          *buffer.Buffer
	mode            CaptureMode
	control         ProcessingControl
	cycleCount      uint32
	windowSize      int
	overlap         float64
	circularSize    int
	stop            func() bool
	onDataReady     DataFunc
	onCycleComplete CycleFunc
	onDataExpired   DataFunc
	tag             string
	metadata        map[string]string
	err             error
}

// CaptureFrom returns a transient capture of source.
func CaptureFrom(source *buffer.Buffer) *Capture {
	c := &Capture{
		source:       source,
		cycleCount:   1,
		windowSize:   DefaultWindowSize,
		circularSize: DefaultCircularSize,
		metadata:     make(map[string]string),
	}
	if source == nil {
		c.err = fmt.Errorf("%w: capture source buffer", ErrNilReference)
	}
	return c
}

// CaptureInput captures the input buffer of channel registered on m.
// Accumulate with zero cycles becomes a circular capture of default size.
func CaptureInput(m *buffer.Manager, channel int, mode CaptureMode, cycles uint32) *Capture {
	if m == nil {
		c := CaptureFrom(nil)
		c.err = fmt.Errorf("%w: input capture needs buffer manager", ErrNoBufferManager)
		return c
	}
	c := CaptureFrom(m.RegisterInput(channel)).WithMode(mode)
	if mode == Accumulate && cycles == 0 {
		return c.AsCircular(DefaultCircularSize)
	}
	return c.ForCycles(cycles)
}

// CaptureStream captures consecutive blocks of a stream channel. Every
// extraction reads the next block through the buffer default processor.
func CaptureStream(s *stream.Stream, channel, blockSize int, cycles uint32) *Capture {
	if s == nil {
		return CaptureFrom(nil)
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	b := buffer.New(channel, blockSize)
	b.SetDefaultProcessor(buffer.NewStreamReader(s, channel, false))
	c := CaptureFrom(b).
		WithProcessing(OnCapture).
		ForCycles(cycles)
	if cycles > 0 {
		return c.WithMode(Accumulate)
	}
	return c
}

// CaptureFile loads a wav or aiff file and captures its channel block by
// block.
func CaptureFile(path string, channel int, cycles uint32) (*Capture, error) {
	s, err := stream.Load(path)
	if err != nil {
		return nil, err
	}
	return CaptureStream(s, channel, DefaultBlockSize, cycles).WithMetadata("path", path), nil
}

// WithMode sets capture mode.
func (c *Capture) WithMode(mode CaptureMode) *Capture {
	c.mode = mode
	return c
}

// WithProcessing sets processing control.
func (c *Capture) WithProcessing(control ProcessingControl) *Capture {
	c.control = control
	return c
}

// ForCycles sets the number of extractions within one pipeline cycle.
// Zero means one.
func (c *Capture) ForCycles(n uint32) *Capture {
	c.cycleCount = n
	return c
}

// WithWindow switches to windowed mode. Zero size means DefaultWindowSize.
// Overlap ratio is clamped to [0, 1).
func (c *Capture) WithWindow(size int, overlap float64) *Capture {
	if size <= 0 {
		size = DefaultWindowSize
	}
	switch {
	case overlap < 0:
		overlap = 0
	case overlap >= 1:
		overlap = 0.99
	}
	c.windowSize, c.overlap = size, overlap
	c.mode = Windowed
	return c
}

// AsCircular switches to circular mode. Zero size means
// DefaultCircularSize.
func (c *Capture) AsCircular(size int) *Capture {
	if size <= 0 {
		size = DefaultCircularSize
	}
	c.circularSize = size
	c.mode = Circular
	return c
}

// UntilCondition switches to triggered mode. An extraction is kept only
// when stop returns true.
func (c *Capture) UntilCondition(stop func() bool) *Capture {
	c.stop = stop
	c.mode = Triggered
	return c
}

// OnDataReady sets the callback invoked after every merge.
func (c *Capture) OnDataReady(fn DataFunc) *Capture {
	c.onDataReady = fn
	return c
}

// OnCycleComplete sets the callback invoked after all extractions of a
// pipeline cycle.
func (c *Capture) OnCycleComplete(fn CycleFunc) *Capture {
	c.onCycleComplete = fn
	return c
}

// OnDataExpired sets the callback invoked at the end of a cycle for
// transient data that no operation consumed.
func (c *Capture) OnDataExpired(fn DataFunc) *Capture {
	c.onDataExpired = fn
	return c
}

// WithTag names the capture.
func (c *Capture) WithTag(tag string) *Capture {
	c.tag = tag
	return c
}

// WithMetadata stores a value under key.
func (c *Capture) WithMetadata(key, value string) *Capture {
	c.metadata[key] = value
	return c
}

// Metadata returns the value stored under key.
func (c *Capture) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Source returns the captured buffer.
func (c *Capture) Source() *buffer.Buffer {
	return c.source
}

// Mode returns the active capture mode.
func (c *Capture) Mode() CaptureMode {
	return c.mode
}

// Processing returns processing control.
func (c *Capture) Processing() ProcessingControl {
	return c.control
}

// Iterations returns the number of extractions per pipeline cycle.
func (c *Capture) Iterations() int {
	return max(1, int(c.cycleCount))
}

// WindowSize returns the window size.
func (c *Capture) WindowSize() int {
	return c.windowSize
}

// OverlapRatio returns the window overlap ratio.
func (c *Capture) OverlapRatio() float64 {
	return c.overlap
}

// Hop returns the number of samples evicted from a full window.
func (c *Capture) Hop() int {
	return max(1, int(float64(c.windowSize)*(1-c.overlap)))
}

// CircularSize returns the circular capacity.
func (c *Capture) CircularSize() int {
	return c.circularSize
}

// Tag returns the capture tag.
func (c *Capture) Tag() string {
	return c.tag
}

// Operation wraps the capture into a CAPTURE operation.
func (c *Capture) Operation() *Operation {
	op := newOperation(KindCapture)
	op.capture = c
	op.tag = c.tag
	op.err = c.err
	return op
}

// extract pulls current samples out of the source buffer.
func (c *Capture) extract() signal.Variant {
	if c.control == OnCapture {
		c.source.ProcessDefault()
	}
	return signal.Float64s(c.source.Snapshot())
}

// merge combines stored data with a fresh extraction. It returns false if
// the extraction was discarded.
func (c *Capture) merge(stored, fresh signal.Variant, l logrus.FieldLogger) (signal.Variant, bool) {
	switch c.mode {
	case Accumulate:
		merged, err := stored.Append(fresh)
		if err != nil {
			l.WithError(err).Warn("accumulate failed, replacing captured data")
			return fresh, true
		}
		return merged, true
	case Circular:
		merged, err := stored.Append(fresh)
		if err != nil {
			l.WithError(err).Warn("circular append failed, replacing captured data")
			merged = fresh
		}
		if merged.Len() > c.circularSize {
			merged = merged.Tail(c.circularSize)
		}
		return merged, true
	case Windowed:
		if stored.Len() >= c.windowSize {
			stored = stored.Slice(c.Hop(), stored.Len())
		}
		merged, err := stored.Append(fresh)
		if err != nil {
			l.WithError(err).Warn("window append failed, replacing captured data")
			merged = fresh
		}
		if merged.Len() > c.windowSize {
			merged = merged.Tail(c.windowSize)
		}
		return merged, true
	case Triggered:
		if c.stop != nil && c.stop() {
			return fresh, true
		}
		l.Debug("trigger condition not met, extraction discarded")
		return stored, false
	default:
		return fresh, true
	}
}

// persistent reports whether captured data survives the start of a
// cycle.
func (c *Capture) persistent() bool {
	return c.mode == Triggered
}
