package cycle

import (
	"fmt"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

// Kind is the kind of an operation.
type Kind int

const (
	// KindCapture pulls data out of a buffer.
	KindCapture Kind = iota
	// KindTransform applies a function to its input.
	KindTransform
	// KindRoute writes its input to a buffer or a stream.
	KindRoute
	// KindLoad reads a span of a stream into a buffer.
	KindLoad
	// KindFuse combines several sources into one result.
	KindFuse
	// KindDispatch hands its input to an external handler.
	KindDispatch
	// KindModify attaches an in-place processor to a buffer.
	KindModify
	// KindCondition gates the operations declared after it.
	KindCondition
	// KindBranch dispatches a sub-pipeline.
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindTransform:
		return "transform"
	case KindRoute:
		return "route"
	case KindLoad:
		return "load"
	case KindFuse:
		return "fuse"
	case KindDispatch:
		return "dispatch"
	case KindModify:
		return "modify"
	case KindCondition:
		return "condition"
	case KindBranch:
		return "branch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// produces reports whether operations of this kind store a result that
// following operations read.
func (k Kind) produces() bool {
	switch k {
	case KindCapture, KindTransform, KindLoad, KindFuse:
		return true
	}
	return false
}

// PhaseHint overrides phase classification of an operation.
type PhaseHint int

const (
	// Auto classifies the operation by its kind.
	Auto PhaseHint = iota
	// CapturePhase forces the capture phase.
	CapturePhase
	// ProcessPhase forces the process phase.
	ProcessPhase
)

const (
	// DefaultPriority is the priority of new operations.
	DefaultPriority uint8 = 128
	// ParallelPriority is the priority of operations added with Parallel.
	ParallelPriority uint8 = 255
)

type (
	// TransformFunc maps input data to a new result.
	TransformFunc func(data signal.Variant, cycle uint64) signal.Variant
	// FuseFunc combines data of several sources.
	FuseFunc func(sources []signal.Variant, cycle uint64) signal.Variant
	// DispatchFunc consumes data.
	DispatchFunc func(data signal.Variant, cycle uint64)
	// ConditionFunc decides whether a cycle passes.
	ConditionFunc func(cycle uint64) bool
)

// Operable is anything that can be added to a pipeline.
type Operable interface {
	Operation() *Operation
}

// Operation is a unit of work of a pipeline. Only the fields of its kind
// are set. Operations are addressed by their position in the pipeline.
type Operation struct {
	kind      Kind
	phase     PhaseHint
	priority  uint8
	token     buffer.Token
	interval  uint64
	tag       string
	streaming bool
	inputTag  string
	err       error

	capture *Capture

	transform TransformFunc

	targetBuffer  *buffer.Buffer
	targetStream  *stream.Stream
	targetChannel int

	sourceStream  *stream.Stream
	sourceChannel int
	startFrame    int
	length       int
	seeked       bool

	fuseBuffers  []*buffer.Buffer
	fuseStreams  []*stream.Stream
	fuseChannels []int
	fuse         FuseFunc

	condition ConditionFunc
	handler   DispatchFunc

	modifier   buffer.InPlaceFunc
	lifetime   uint64
	handle     *buffer.Handle
	attachedAt uint64
	detached   bool

	branch *branch
}

func newOperation(kind Kind) *Operation {
	return &Operation{
		kind:     kind,
		priority: DefaultPriority,
		token:    buffer.AudioBackend,
		interval: 1,
	}
}

// Operation implements Operable.
func (op *Operation) Operation() *Operation {
	return op
}

func (op *Operation) fail(format string, args ...interface{}) *Operation {
	if op.err == nil {
		op.err = fmt.Errorf("%s: %w: %s", op.kind, ErrNilReference, fmt.Sprintf(format, args...))
	}
	return op
}

// Transform applies fn to the input of the operation.
func Transform(fn TransformFunc) *Operation {
	op := newOperation(KindTransform)
	op.transform = fn
	if fn == nil {
		return op.fail("transform function")
	}
	return op
}

// RouteToBuffer writes the input of the operation into target.
func RouteToBuffer(target *buffer.Buffer) *Operation {
	op := newOperation(KindRoute)
	op.targetBuffer = target
	if target == nil {
		return op.fail("target buffer")
	}
	return op
}

// RouteToStream appends the input of the operation to channel of target.
func RouteToStream(target *stream.Stream, channel int) *Operation {
	op := newOperation(KindRoute)
	op.targetStream = target
	op.targetChannel = channel
	if target == nil {
		return op.fail("target stream")
	}
	return op
}

// FileToStream loads a wav or aiff file and routes all of its frames into
// channel of target on the first execution. A mono file feeds any channel,
// a multichannel file feeds channel from its own channel with that index.
func FileToStream(path string, target *stream.Stream, channel int) (*Operation, error) {
	source, err := stream.Load(path)
	if err != nil {
		return nil, err
	}
	sourceChannel, err := channelOf(source, channel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	op := RouteToStream(target, channel)
	op.sourceStream = source
	op.sourceChannel = sourceChannel
	op.length = source.NumFrames()
	return op, nil
}

// LoadFromStream reads length frames of source into target on every
// execution, starting from startFrame. Zero length reads one target
// buffer. Frames are read from the source channel matching the channel
// of target, or from the only channel of a mono source.
func LoadFromStream(source *stream.Stream, target *buffer.Buffer, startFrame, length int) *Operation {
	op := newOperation(KindLoad)
	op.sourceStream = source
	op.targetBuffer = target
	op.startFrame = startFrame
	op.length = length
	switch {
	case source == nil:
		return op.fail("source stream")
	case target == nil:
		return op.fail("target buffer")
	}
	channel, err := channelOf(source, target.Channel())
	if err != nil {
		op.err = fmt.Errorf("%s: %w", op.kind, err)
		return op
	}
	op.sourceChannel = channel
	return op
}

// FuseBuffers combines the samples of sources with fn and writes the
// result into target.
func FuseBuffers(sources []*buffer.Buffer, fn FuseFunc, target *buffer.Buffer) *Operation {
	op := newOperation(KindFuse)
	op.fuseBuffers = sources
	op.fuse = fn
	op.targetBuffer = target
	switch {
	case fn == nil:
		return op.fail("fuse function")
	case target == nil:
		return op.fail("target buffer")
	}
	for i, s := range sources {
		if s == nil {
			return op.fail("source buffer %d", i)
		}
	}
	return op
}

// FuseStreams combines the remaining frames of sources with fn and
// appends the result to target.
func FuseStreams(sources []*stream.Stream, fn FuseFunc, target *stream.Stream) *Operation {
	op := newOperation(KindFuse)
	op.fuseStreams = sources
	op.fuse = fn
	op.targetStream = target
	switch {
	case fn == nil:
		return op.fail("fuse function")
	case target == nil:
		return op.fail("target stream")
	}
	for i, s := range sources {
		if s == nil {
			return op.fail("source stream %d", i)
		}
		channel, err := channelOf(s, op.targetChannel)
		if err != nil {
			op.err = fmt.Errorf("%s: source stream %d: %w", op.kind, i, err)
			return op
		}
		op.fuseChannels = append(op.fuseChannels, channel)
	}
	return op
}

// channelOf returns the channel of s that feeds channel of a single
// channel target. Mono sources feed every channel.
func channelOf(s *stream.Stream, channel int) (int, error) {
	switch {
	case s.Channels() == 1:
		return 0, nil
	case channel < 0 || channel >= s.Channels():
		return 0, fmt.Errorf("%w: %d of %d", stream.ErrChannelOutOfRange, channel, s.Channels())
	}
	return channel, nil
}

// Dispatch hands the input of the operation to handler.
func Dispatch(handler DispatchFunc) *Operation {
	op := newOperation(KindDispatch)
	op.handler = handler
	if handler == nil {
		return op.fail("dispatch handler")
	}
	return op
}

// Modify attaches fn as an in-place processor of target on first
// execution. The pipeline buffer manager runs it.
func Modify(target *buffer.Buffer, fn buffer.InPlaceFunc) *Operation {
	op := newOperation(KindModify)
	op.targetBuffer = target
	op.modifier = fn
	switch {
	case target == nil:
		return op.fail("target buffer")
	case fn == nil:
		return op.fail("modifier function")
	}
	return op
}

// When gates all operations declared after it with condition.
func When(condition ConditionFunc) *Operation {
	op := newOperation(KindCondition)
	op.condition = condition
	if condition == nil {
		return op.fail("condition")
	}
	return op
}

// WithPriority sets scheduling priority.
func (op *Operation) WithPriority(priority uint8) *Operation {
	op.priority = priority
	return op
}

// OnToken sets the processing token of the operation.
func (op *Operation) OnToken(token buffer.Token) *Operation {
	op.token = token
	return op
}

// EveryNCycles runs the operation on cycles divisible by n.
func (op *Operation) EveryNCycles(n uint64) *Operation {
	op.interval = max(1, n)
	return op
}

// WithTag names the operation.
func (op *Operation) WithTag(tag string) *Operation {
	op.tag = tag
	return op
}

// ForCycles sets extractions per cycle of a capture or the number of
// pipeline cycles a modifier stays attached.
func (op *Operation) ForCycles(n uint64) *Operation {
	switch op.kind {
	case KindCapture:
		op.capture.ForCycles(uint32(n))
	case KindModify:
		op.lifetime = n
	}
	return op
}

// AsCapturePhase forces the capture phase.
func (op *Operation) AsCapturePhase() *Operation {
	op.phase = CapturePhase
	return op
}

// AsProcessPhase forces the process phase.
func (op *Operation) AsProcessPhase() *Operation {
	op.phase = ProcessPhase
	return op
}

// AsStreaming marks the operation as streaming. A streaming modifier runs
// in the capture phase and stays attached for the rest of a bounded run.
func (op *Operation) AsStreaming() *Operation {
	op.streaming = true
	return op
}

// InputFrom reads input from the preceding operation tagged tag instead
// of the nearest preceding producer.
func (op *Operation) InputFrom(tag string) *Operation {
	op.inputTag = tag
	return op
}

// Kind returns operation kind.
func (op *Operation) Kind() Kind {
	return op.kind
}

// Tag returns operation tag.
func (op *Operation) Tag() string {
	return op.tag
}

// Priority returns scheduling priority.
func (op *Operation) Priority() uint8 {
	return op.priority
}

// Token returns the processing token.
func (op *Operation) Token() buffer.Token {
	return op.token
}

// Interval returns the cycle interval.
func (op *Operation) Interval() uint64 {
	return op.interval
}

// Capture returns the capture of a CAPTURE operation or nil.
func (op *Operation) Capture() *Capture {
	return op.capture
}

// Err returns the construction error of the operation.
func (op *Operation) Err() error {
	return op.err
}

// inCapturePhase classifies the operation for the capture phase.
func (op *Operation) inCapturePhase() bool {
	switch op.phase {
	case CapturePhase:
		return true
	case ProcessPhase:
		return false
	}
	return op.kind == KindCapture || (op.kind == KindModify && op.streaming)
}

// inProcessPhase classifies the operation for the process phase.
func (op *Operation) inProcessPhase() bool {
	switch op.phase {
	case ProcessPhase:
		return true
	case CapturePhase:
		return false
	}
	switch op.kind {
	case KindTransform, KindRoute, KindLoad, KindDispatch, KindFuse:
		return true
	case KindModify:
		return !op.streaming
	}
	return false
}

// gating reports whether the operation gates rather than produces.
func (op *Operation) gating() bool {
	return op.kind == KindCondition || op.kind == KindBranch
}
