package cycle

import (
	"fmt"

	"pipelined.dev/cycle/schedule"
)

// branch is a sub-pipeline dispatched on cycles where its condition
// holds. Dispatches that arrive while the sub-pipeline is still running
// are queued and executed by the same task, one cycle each.
type branch struct {
	pipeline     *Pipeline
	synchronous  bool
	samplesPerOp uint64
	queued       int
}

// BranchIf adds a branch. build populates the sub-pipeline, which shares
// scheduler, buffer manager, logger, strategy and timings with p. Every
// dispatch executes one cycle of the sub-pipeline, none is dropped. A
// synchronous branch blocks the cycle that dispatched it until it
// finishes.
func (p *Pipeline) BranchIf(condition ConditionFunc, build func(*Pipeline), synchronous bool, samplesPerOp uint64) *Pipeline {
	op := newOperation(KindBranch)
	op.condition = condition
	sub := New(p.sched,
		WithManager(p.manager),
		WithLogger(p.logger),
		WithStrategy(p.strategy),
		WithCaptureTiming(p.captureTiming),
		WithProcessTiming(p.processTiming),
	)
	switch {
	case condition == nil:
		op.fail("branch condition")
	case build == nil:
		op.fail("branch builder")
	default:
		build(sub)
		if sub.err != nil {
			op.err = fmt.Errorf("branch: %w", sub.err)
		}
	}
	op.branch = &branch{
		pipeline:     sub,
		synchronous:  synchronous,
		samplesPerOp: samplesPerOp,
	}
	return p.Then(op)
}

// dispatchBranches starts branches whose condition holds. Synchronous
// branches are awaited when wait is set.
func (p *Pipeline) dispatchBranches(ctx *schedule.Context, cycle uint64, wait bool) {
	var pending []*schedule.Task
	for i, op := range p.ops {
		if op.kind != KindBranch || !p.eligible(i, cycle) || !p.check(op, cycle) {
			continue
		}
		t, fresh, err := op.branch.dispatch()
		if err != nil {
			p.opLogger(i, cycle).WithError(err).Warn("branch not dispatched")
			continue
		}
		if fresh {
			p.branchTasks = append(p.branchTasks, t)
		}
		if op.branch.synchronous && wait {
			pending = append(pending, t)
		}
	}
	for active(pending) && !ctx.ShouldTerminate() {
		p.await(ctx, schedule.Cycles(1))
	}
}

// dispatch queues one cycle of the sub-pipeline. A new task is submitted
// only if the sub-pipeline is idle, otherwise the running task picks the
// cycle up. fresh reports whether the task was submitted by this call.
func (b *branch) dispatch() (t *schedule.Task, fresh bool, err error) {
	sub := b.pipeline
	b.queued++
	if sub.IsActive() {
		return sub.task, false, nil
	}
	if err := sub.validate(); err != nil {
		b.queued = 0
		return nil, false, err
	}
	sub.executed = 0
	t, err = sub.submit(b.routine(), sub.captureTiming)
	if err != nil {
		b.queued = 0
		return nil, false, err
	}
	return t, true, nil
}

// routine runs queued cycles until none is left.
func (b *branch) routine() schedule.Routine {
	sub := b.pipeline
	return func(ctx *schedule.Context) {
		defer sub.finish()
		for b.queued > 0 {
			if ctx.ShouldTerminate() {
				b.queued = 0
				return
			}
			b.queued--
			sub.maxCycles = sub.executed + 1
			sub.runCycle(ctx, b.samplesPerOp)
			if !sub.awaited && b.queued > 0 {
				ctx.Await(schedule.Cycles(1))
			}
		}
	}
}

// reapBranches forgets finished branch tasks.
func (p *Pipeline) reapBranches() {
	running := p.branchTasks[:0]
	for _, t := range p.branchTasks {
		if t.IsActive() {
			running = append(running, t)
		}
	}
	clear(p.branchTasks[len(running):])
	p.branchTasks = running
}

func active(tasks []*schedule.Task) bool {
	for _, t := range tasks {
		if t.IsActive() {
			return true
		}
	}
	return false
}
