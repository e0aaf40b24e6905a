package cycle

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/log"
	"pipelined.dev/cycle/metric"
	"pipelined.dev/cycle/schedule"
	"pipelined.dev/cycle/signal"
)

// slot holds the latest result of an operation.
type slot struct {
	data  signal.Variant
	cycle uint64
	ok    bool
}

// Pipeline is an ordered sequence of operations executed cycle by cycle
// inside a scheduler task.
type Pipeline struct {
	id      string
	logger  logrus.FieldLogger
	sched   *schedule.Scheduler
	manager *buffer.Manager

	ops    []*Operation
	inputs []int
	states []DataState
	slots  []slot
	gates  []bool

	branches    []*branch
	branchTasks []*schedule.Task

	onCycleStart CycleFunc
	onCycleEnd   CycleFunc

	strategy      Strategy
	captureTiming schedule.DelayContext
	processTiming schedule.DelayContext
	runTiming     schedule.DelayContext

	task         *schedule.Task
	currentCycle uint64
	maxCycles    uint64
	executed     uint64
	awaited      bool
	continuous   atomic.Bool
	keepRunning  atomic.Bool

	meters     map[Kind]metric.MeasureFunc
	cycleMeter metric.MeasureFunc
	err        error
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithManager sets the buffer manager used by MODIFY operations.
func WithManager(m *buffer.Manager) Option {
	return func(p *Pipeline) {
		p.manager = m
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithStrategy sets the execution strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Pipeline) {
		p.strategy = s
	}
}

// WithCaptureTiming sets the delay awaited after every capture
// iteration.
func WithCaptureTiming(c schedule.DelayContext) Option {
	return func(p *Pipeline) {
		p.captureTiming = c
	}
}

// WithProcessTiming sets the delay awaited after every process
// operation.
func WithProcessTiming(c schedule.DelayContext) Option {
	return func(p *Pipeline) {
		p.processTiming = c
	}
}

// New returns an empty pipeline running on sched.
func New(sched *schedule.Scheduler, options ...Option) *Pipeline {
	p := &Pipeline{
		id:            xid.New().String(),
		sched:         sched,
		strategy:      Phased,
		captureTiming: schedule.BufferBased,
		processTiming: schedule.SampleBased,
	}
	for _, option := range options {
		option(p)
	}
	if p.logger == nil {
		p.logger = log.GetLogger()
	}
	p.logger = p.logger.WithField("pipeline", p.id)
	if sched == nil {
		p.err = ErrNoScheduler
	}
	return p
}

// ID returns unique pipeline id.
func (p *Pipeline) ID() string {
	return p.id
}

// Then appends an operation. The first construction error of appended
// operations is kept and returned by execution methods.
func (p *Pipeline) Then(o Operable) *Pipeline {
	if o == nil {
		p.setErr(fmt.Errorf("%w: operation", ErrNilReference))
		return p
	}
	op := o.Operation()
	if op.err != nil {
		p.setErr(op.err)
	}
	if op.kind == KindModify && p.manager == nil {
		p.setErr(fmt.Errorf("%s: %w", op.kind, ErrNoBufferManager))
	}
	input, err := p.resolveInput(op)
	if err != nil {
		p.setErr(err)
	}
	p.ops = append(p.ops, op)
	p.inputs = append(p.inputs, input)
	if op.branch != nil {
		p.branches = append(p.branches, op.branch)
	}
	return p
}

// Parallel appends operations with ParallelPriority.
func (p *Pipeline) Parallel(ops ...Operable) *Pipeline {
	for _, o := range ops {
		if o == nil {
			p.Then(nil)
			continue
		}
		p.Then(o.Operation().WithPriority(ParallelPriority))
	}
	return p
}

// WithLifecycle sets callbacks invoked at the start and at the end of
// every cycle.
func (p *Pipeline) WithLifecycle(onCycleStart, onCycleEnd CycleFunc) *Pipeline {
	p.onCycleStart = onCycleStart
	p.onCycleEnd = onCycleEnd
	return p
}

// Err returns the first construction error.
func (p *Pipeline) Err() error {
	return p.err
}

// Operations returns number of operations.
func (p *Pipeline) Operations() int {
	return len(p.ops)
}

// Strategy returns the execution strategy.
func (p *Pipeline) Strategy() Strategy {
	return p.strategy
}

// CurrentCycle returns the number of the next cycle to execute.
func (p *Pipeline) CurrentCycle() uint64 {
	return p.currentCycle
}

// IsActive reports whether the pipeline task is running.
func (p *Pipeline) IsActive() bool {
	return p.task != nil && p.task.IsActive()
}

// State returns data state of operation at index i.
func (p *Pipeline) State(i int) DataState {
	if i < 0 || i >= len(p.states) {
		return Empty
	}
	return p.states[i]
}

// Result returns the latest stored result of operation at index i.
func (p *Pipeline) Result(i int) (signal.Variant, bool) {
	if i < 0 || i >= len(p.slots) || !p.slots[i].ok {
		return signal.Variant{}, false
	}
	return p.slots[i].data, true
}

// HasPendingData reports whether any result is ready and not consumed.
func (p *Pipeline) HasPendingData() bool {
	for _, s := range p.states {
		if s == Ready {
			return true
		}
	}
	return false
}

// MarkDataConsumed marks all ready results consumed.
func (p *Pipeline) MarkDataConsumed() {
	for i, s := range p.states {
		if s == Ready {
			p.states[i] = Consumed
		}
	}
}

// MarkConsumed marks the result of operation at index i consumed if it's
// ready. It reports whether the state changed.
func (p *Pipeline) MarkConsumed(i int) bool {
	if i < 0 || i >= len(p.states) || p.states[i] != Ready {
		return false
	}
	p.states[i] = Consumed
	return true
}

// Close stops execution and detaches all processors attached by MODIFY
// operations.
func (p *Pipeline) Close() {
	p.Stop()
	for _, op := range p.ops {
		if op.kind == KindModify {
			p.detach(op)
		}
	}
	for _, b := range p.branches {
		b.pipeline.Close()
	}
}

func (p *Pipeline) setErr(err error) {
	p.logger.WithError(err).Error("invalid operation")
	if p.err == nil {
		p.err = err
	}
}

// resolveInput finds the index of the operation whose result op reads.
func (p *Pipeline) resolveInput(op *Operation) (int, error) {
	if op.inputTag != "" {
		for i := len(p.ops) - 1; i >= 0; i-- {
			if p.ops[i].tag == op.inputTag {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %q", ErrUnknownTag, op.inputTag)
	}
	for i := len(p.ops) - 1; i >= 0; i-- {
		if p.ops[i].kind.produces() {
			return i, nil
		}
	}
	return -1, nil
}

// prepare grows per operation state to match operations.
func (p *Pipeline) prepare() {
	for len(p.states) < len(p.ops) {
		p.states = append(p.states, Empty)
		p.slots = append(p.slots, slot{})
		p.gates = append(p.gates, true)
	}
}

// input returns the latest result of the predecessor of operation i.
func (p *Pipeline) input(i int) signal.Variant {
	if j := p.inputs[i]; j >= 0 && p.slots[j].ok {
		return p.slots[j].data
	}
	return signal.Variant{}
}

// store keeps the result of operation i and marks it ready.
func (p *Pipeline) store(i int, data signal.Variant, cycle uint64) {
	p.slots[i] = slot{data: data, cycle: cycle, ok: true}
	p.states[i] = Ready
}

// evaluateGates evaluates conditions once for the cycle. Every operation
// is gated by all conditions declared before it.
func (p *Pipeline) evaluateGates(cycle uint64) {
	pass := true
	for i, op := range p.ops {
		p.gates[i] = pass
		if op.kind == KindCondition && pass {
			pass = p.check(op, cycle)
		}
	}
}

func (p *Pipeline) check(op *Operation, cycle uint64) (pass bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("cycle", cycle).Errorf("condition panic: %v", r)
			pass = false
		}
	}()
	return op.condition(cycle)
}

// eligible reports whether operation i runs in cycle.
func (p *Pipeline) eligible(i int, cycle uint64) bool {
	return cycle%p.ops[i].interval == 0 && p.gates[i]
}
