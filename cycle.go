package cycle

import (
	"github.com/sirupsen/logrus"

	"pipelined.dev/cycle/metric"
	"pipelined.dev/cycle/schedule"
)

// phasedCycle runs all capture operations, then all process operations,
// then branches.
func (p *Pipeline) phasedCycle(ctx *schedule.Context, samples uint64) {
	cycle := p.beginCycle()

	for i, op := range p.ops {
		if op.gating() || !op.inCapturePhase() || !p.eligible(i, cycle) {
			continue
		}
		if op.kind != KindCapture {
			p.execute(i, cycle, 0)
			continue
		}
		for it := 0; it < op.capture.Iterations(); it++ {
			p.execute(i, cycle, it)
			p.awaitCapture(ctx, samples)
		}
		p.completeCapture(op, cycle)
	}

	for i, op := range p.ops {
		if op.gating() || !op.inProcessPhase() {
			continue
		}
		if p.states[i] == Consumed || !p.eligible(i, cycle) {
			continue
		}
		p.execute(i, cycle, 0)
		p.awaitProcess(ctx, samples)
	}

	p.dispatchBranches(ctx, cycle, true)
	p.endCycle(cycle)
}

// streamingCycle runs operations in declaration order. After every
// execution the next operation runs right away if it belongs to the
// process phase.
func (p *Pipeline) streamingCycle(ctx *schedule.Context, samples uint64) {
	cycle := p.beginCycle()

	done := make(map[int]bool)
	for i, op := range p.ops {
		if done[i] || op.gating() || p.states[i] == Consumed || !p.eligible(i, cycle) {
			continue
		}
		iterations := 1
		if op.kind == KindCapture {
			iterations = op.capture.Iterations()
		}
		for it := 0; it < iterations; it++ {
			p.execute(i, cycle, it)
			if j := i + 1; p.followsFresh(j, cycle) {
				p.execute(j, cycle, 0)
				done[j] = true
			}
			if op.kind == KindCapture {
				p.awaitCapture(ctx, samples)
			} else {
				p.awaitProcess(ctx, samples)
			}
		}
		if op.kind == KindCapture {
			p.completeCapture(op, cycle)
		}
	}

	p.dispatchBranches(ctx, cycle, false)
	p.endCycle(cycle)
}

// followsFresh reports whether operation j can consume a result produced
// right before it.
func (p *Pipeline) followsFresh(j int, cycle uint64) bool {
	if j >= len(p.ops) {
		return false
	}
	op := p.ops[j]
	return !op.gating() && op.inProcessPhase() && p.states[j] != Consumed && p.eligible(j, cycle)
}

// beginCycle resets data states, evaluates conditions and returns the
// cycle number. Captured data is dropped too, except for triggered
// captures, so a capture holds at most one cycle of iterations.
func (p *Pipeline) beginCycle() uint64 {
	cycle := p.currentCycle
	p.prepare()
	if p.onCycleStart != nil {
		p.call("cycle start", cycle, func() { p.onCycleStart(cycle) })
	}
	for i, op := range p.ops {
		p.states[i] = Empty
		if op.kind == KindCapture && !op.capture.persistent() {
			p.slots[i] = slot{}
		}
	}
	p.evaluateGates(cycle)
	return cycle
}

// endCycle expires transient data nobody consumed, drops stale results
// and advances the cycle counter.
func (p *Pipeline) endCycle(cycle uint64) {
	p.reapBranches()
	for i, op := range p.ops {
		switch op.kind {
		case KindCapture:
			c := op.capture
			if c.mode != Transient || p.states[i] != Ready {
				continue
			}
			if c.onDataExpired != nil && p.slots[i].ok {
				data := p.slots[i].data
				p.call("data expired", cycle, func() { c.onDataExpired(data, cycle) })
			}
			p.states[i] = Expired
		case KindModify:
			if op.expired(cycle + 1) {
				p.detach(op)
			}
		}
	}
	for i := range p.slots {
		if p.slots[i].ok && cycle-p.slots[i].cycle > 2 {
			p.slots[i] = slot{}
		}
	}
	if p.onCycleEnd != nil {
		p.call("cycle end", cycle, func() { p.onCycleEnd(cycle) })
	}
	p.cycleMeter(0)
	p.currentCycle++
}

func (p *Pipeline) completeCapture(op *Operation, cycle uint64) {
	if fn := op.capture.onCycleComplete; fn != nil {
		p.call("capture complete", cycle, func() { fn(cycle) })
	}
}

// execute runs operation i. Panics are logged and counted, they never
// abort the cycle.
func (p *Pipeline) execute(i int, cycle uint64, iteration int) {
	op := p.ops[i]
	defer func() {
		if r := recover(); r != nil {
			p.opLogger(i, cycle).Errorf("operation panic: %v", r)
			metric.Fail(op.kind)
		}
	}()
	n := p.dispatch(i, op, cycle, iteration)
	if !op.kind.produces() {
		p.states[i] = Consumed
	}
	p.measure(op.kind, n)
}

// call runs a user callback and recovers its panic.
func (p *Pipeline) call(name string, cycle uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("cycle", cycle).Errorf("%s callback panic: %v", name, r)
		}
	}()
	fn()
}

func (p *Pipeline) opLogger(i int, cycle uint64) logrus.FieldLogger {
	return p.logger.WithFields(logrus.Fields{
		"op":    i,
		"kind":  p.ops[i].kind,
		"cycle": cycle,
	})
}
