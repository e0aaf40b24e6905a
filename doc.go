/*
Package cycle allows to build and execute cycle-driven dataflow pipelines
over live sample buffers and streams.

Concept

A pipeline is an ordered list of operations executed once per pipeline
cycle. Every cycle has two phases:

    Capture - pull samples out of source buffers;
    Process - transform, route, load, fuse and dispatch captured data;

It implies the following constraints:

    All capture operations of a cycle complete before any process operation runs;
    Operations within a phase execute in declaration order;
    Conditions gate every operation declared after them.

Pipelines don't own goroutines. Execution is a routine submitted to a
cooperative scheduler (see schedule package), which suspends it between
capture iterations and between operations. The routine is resumed when the
scheduler clock advances, so the driver of the scheduler decides the pace:

    sched := schedule.New(48000)
    defer sched.Close()

    p := cycle.New(sched).
        Then(cycle.CaptureFrom(input).ForCycles(4).WithMode(cycle.Accumulate)).
        Then(cycle.Transform(gain)).
        Then(cycle.RouteToStream(output, 0))

    if err := p.ExecuteForCycles(10); err != nil {
        return err
    }
    for p.IsActive() {
        sched.Process(512)
    }

Capture

A capture extracts samples from a buffer a configured number of times per
pipeline cycle. These iterations are nested inside one pipeline cycle:
ForCycles(4) on a capture means "extract four times within each pipeline
cycle", not "run for four pipeline cycles". Extracted samples are merged
with previously captured data according to the capture mode.

Data lifecycle

Each operation has a data state slot: EMPTY, READY, CONSUMED or EXPIRED.
Slots are reset at the start of every cycle. Results of operations are kept
in slots indexed by operation position, and every operation reads its input
from the nearest preceding producer, or from the operation selected with
InputFrom.

Branches

A branch is a sub-pipeline dispatched as a separate task on cycles where
its condition holds. Synchronous branches block the parent cycle until they
finish, asynchronous branches run alongside it.
*/
package cycle
