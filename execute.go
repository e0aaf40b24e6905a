package cycle

import (
	"fmt"

	"pipelined.dev/cycle/metric"
	"pipelined.dev/cycle/schedule"
)

// ExecuteOnce runs a single cycle.
func (p *Pipeline) ExecuteOnce() error {
	_, err := p.start(1, 0, p.captureTiming)
	return err
}

// ExecuteForCycles runs n cycles.
func (p *Pipeline) ExecuteForCycles(n uint64) error {
	_, err := p.start(max(1, n), 0, p.captureTiming)
	return err
}

// ExecuteContinuous runs cycles until StopContinuous or Stop is called.
func (p *Pipeline) ExecuteContinuous() error {
	if p.IsActive() {
		return ErrRunning
	}
	p.continuous.Store(true)
	p.keepRunning.Store(true)
	if _, err := p.start(0, 0, p.captureTiming); err != nil {
		p.continuous.Store(false)
		return err
	}
	return nil
}

// StopContinuous lets the current cycle complete and ends continuous
// execution.
func (p *Pipeline) StopContinuous() {
	p.keepRunning.Store(false)
}

// ExecuteScheduled runs up to maxCycles cycles, zero means unbounded, and
// awaits samplesPerOp sample frames between operations.
func (p *Pipeline) ExecuteScheduled(maxCycles, samplesPerOp uint64) error {
	_, err := p.start(maxCycles, samplesPerOp, p.captureTiming)
	return err
}

// ExecuteScheduledAtRate is ExecuteScheduled with the delay between
// operations given in seconds.
func (p *Pipeline) ExecuteScheduledAtRate(maxCycles uint64, seconds float64) error {
	if p.sched == nil {
		return ErrNoScheduler
	}
	return p.ExecuteScheduled(maxCycles, p.sched.SecondsToSamples(seconds))
}

// ExecuteBufferRate runs up to maxCycles cycles, zero means unbounded,
// and awaits one buffer cycle after every capture iteration. The capture
// timing of the pipeline is left as is for later runs.
func (p *Pipeline) ExecuteBufferRate(maxCycles uint64) error {
	_, err := p.start(maxCycles, 0, schedule.BufferBased)
	return err
}

// Stop cancels execution of the pipeline and its branches. The running
// cycle completes without further suspension.
func (p *Pipeline) Stop() {
	p.keepRunning.Store(false)
	if p.task != nil {
		p.task.Cancel()
	}
	for _, t := range p.branchTasks {
		t.Cancel()
	}
}

// start submits the execution routine unless the pipeline is already
// running. captureTiming applies to this run only.
func (p *Pipeline) start(maxCycles, samplesPerOp uint64, captureTiming schedule.DelayContext) (*schedule.Task, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.IsActive() {
		return nil, ErrRunning
	}
	p.maxCycles = maxCycles
	p.executed = 0
	return p.submit(p.routine(maxCycles, samplesPerOp), captureTiming)
}

// validate returns the error that prevents the pipeline from running.
func (p *Pipeline) validate() error {
	switch {
	case p.err != nil:
		return p.err
	case !p.strategy.Implemented():
		return fmt.Errorf("%w: %v", ErrNotImplemented, p.strategy)
	case len(p.ops) == 0:
		return ErrEmptyPipeline
	}
	return nil
}

// submit starts routine as the pipeline task. The submitted task keeps
// the pipeline reachable until the routine returns.
func (p *Pipeline) submit(routine schedule.Routine, captureTiming schedule.DelayContext) (*schedule.Task, error) {
	p.runTiming = captureTiming
	p.startMeters()
	t, err := p.sched.Submit("pipeline "+p.id, routine)
	if err != nil {
		return nil, err
	}
	p.task = t
	return t, nil
}

func (p *Pipeline) routine(maxCycles, samplesPerOp uint64) schedule.Routine {
	return func(ctx *schedule.Context) {
		defer p.finish()
		for p.proceed(maxCycles) {
			if ctx.ShouldTerminate() {
				return
			}
			p.runCycle(ctx, samplesPerOp)
			if !p.awaited && p.proceed(maxCycles) {
				ctx.Await(schedule.Cycles(1))
			}
		}
	}
}

// runCycle executes one cycle with the pipeline strategy.
func (p *Pipeline) runCycle(ctx *schedule.Context, samplesPerOp uint64) {
	p.awaited = false
	switch p.strategy {
	case Streaming:
		p.streamingCycle(ctx, samplesPerOp)
	default:
		p.phasedCycle(ctx, samplesPerOp)
	}
	p.executed++
}

// proceed is the loop continuation test.
func (p *Pipeline) proceed(maxCycles uint64) bool {
	return (maxCycles == 0 || p.executed < maxCycles) &&
		(!p.continuous.Load() || p.keepRunning.Load())
}

func (p *Pipeline) finish() {
	p.continuous.Store(false)
	for _, op := range p.ops {
		if op.kind == KindModify && op.expired(p.currentCycle) {
			p.detach(op)
		}
	}
	p.reapBranches()
	p.logger.WithField("cycles", p.executed).Debug("pipeline done")
}

// awaitCapture suspends after a capture iteration.
func (p *Pipeline) awaitCapture(ctx *schedule.Context, samples uint64) {
	switch p.runTiming {
	case schedule.BufferBased:
		p.await(ctx, schedule.Cycles(1))
	case schedule.SampleBased:
		if samples > 0 {
			p.await(ctx, schedule.Samples(samples))
		}
	}
}

// awaitProcess suspends after a process operation.
func (p *Pipeline) awaitProcess(ctx *schedule.Context, samples uint64) {
	if samples == 0 {
		return
	}
	switch p.processTiming {
	case schedule.BufferBased:
		p.await(ctx, schedule.Cycles(1))
	case schedule.SampleBased:
		p.await(ctx, schedule.Samples(samples))
	}
}

func (p *Pipeline) await(ctx *schedule.Context, d schedule.Delay) {
	p.awaited = true
	ctx.Await(d)
}

func (p *Pipeline) startMeters() {
	if p.meters != nil {
		return
	}
	p.meters = make(map[Kind]metric.MeasureFunc)
	p.cycleMeter = metric.Meter("pipeline", p.sched.SampleRate())()
}

// measure counts an execution of an operation of kind k.
func (p *Pipeline) measure(k Kind, samples int) {
	m, ok := p.meters[k]
	if !ok {
		m = metric.Meter(k, p.sched.SampleRate())()
		p.meters[k] = m
	}
	m(int64(samples))
}
