// Package schedule implements a cooperative scheduler. Each task runs in
// its own goroutine, but only one goroutine runs at a time: the scheduler
// hands control to a task and waits until the task suspends or returns.
// Tasks suspend on two clocks, sample frames and buffer cycles, advanced
// by whoever drives the scheduler.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/cycle/log"
)

// ErrClosed is returned when a task is submitted to closed scheduler.
var ErrClosed = errors.New("scheduler is closed")

// Routine is a task body. It must return once ctx.ShouldTerminate
// reports true.
type Routine func(ctx *Context)

// Scheduler runs tasks. It must be driven from a single goroutine.
type Scheduler struct {
	logger     logrus.FieldLogger
	sampleRate int

	samples atomic.Uint64
	cycles  atomic.Uint64

	m      sync.Mutex
	tasks  []*Task
	closed bool
}

// Option configures a scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New returns a scheduler with provided sample rate.
func New(sampleRate int, options ...Option) *Scheduler {
	s := &Scheduler{
		sampleRate: sampleRate,
		logger:     log.GetLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// SampleRate returns the sample rate of the sample clock.
func (s *Scheduler) SampleRate() int {
	return s.sampleRate
}

// SecondsToSamples converts wall-clock seconds to sample frames.
func (s *Scheduler) SecondsToSamples(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds * float64(s.sampleRate))
}

// CurrentSample returns the sample clock.
func (s *Scheduler) CurrentSample() uint64 {
	return s.samples.Load()
}

// CurrentCycle returns the buffer cycle clock.
func (s *Scheduler) CurrentCycle() uint64 {
	return s.cycles.Load()
}

// Active returns number of tasks that did not return yet.
func (s *Scheduler) Active() int {
	s.m.Lock()
	defer s.m.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.IsActive() {
			n++
		}
	}
	return n
}

// Submit starts a task. The routine runs immediately until its first
// suspension.
func (s *Scheduler) Submit(name string, routine Routine) (*Task, error) {
	s.m.Lock()
	if s.closed {
		s.m.Unlock()
		return nil, ErrClosed
	}
	t := newTask(s, name)
	s.tasks = append(s.tasks, t)
	s.m.Unlock()

	go t.run(routine)
	t.step()
	s.reap()
	return t, nil
}

// ProcessSamples advances the sample clock by n frames and resumes
// every task whose sample delay elapsed, in submission order.
func (s *Scheduler) ProcessSamples(n uint64) {
	target := s.samples.Load() + n
	for {
		next, ok := s.nextWake(SampleBased)
		if !ok || next > target {
			s.samples.Store(target)
			break
		}
		if next > s.samples.Load() {
			s.samples.Store(next)
		}
		s.resumeReady(SampleBased, s.samples.Load())
	}
	s.reap()
}

// ProcessBufferCycle advances the buffer cycle clock by one and resumes
// every task whose cycle delay elapsed, in submission order.
func (s *Scheduler) ProcessBufferCycle() {
	now := s.cycles.Add(1)
	s.resumeReady(BufferBased, now)
	s.reap()
}

// Process advances the sample clock by bufferSize frames, then the
// buffer cycle clock by one.
func (s *Scheduler) Process(bufferSize uint64) {
	s.ProcessSamples(bufferSize)
	s.ProcessBufferCycle()
}

// Close cancels all tasks and resumes them until they return. No new
// tasks are accepted after Close.
func (s *Scheduler) Close() {
	s.m.Lock()
	s.closed = true
	s.m.Unlock()
	for {
		tasks := s.snapshot()
		if len(tasks) == 0 {
			return
		}
		for _, t := range tasks {
			t.Cancel()
			if !t.running.Load() {
				t.step()
			}
		}
		s.reap()
	}
}

func (s *Scheduler) snapshot() []*Task {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]*Task(nil), s.tasks...)
}

func (s *Scheduler) nextWake(ctx DelayContext) (uint64, bool) {
	var (
		next  uint64
		found bool
	)
	now := s.samples.Load()
	for _, t := range s.snapshot() {
		if !t.IsActive() || t.running.Load() {
			continue
		}
		var at uint64
		switch {
		case t.cancelled.Load():
			at = now
		case t.wait.Context == ctx:
			at = t.wakeAt
		default:
			continue
		}
		if !found || at < next {
			next, found = at, true
		}
	}
	return next, found
}

func (s *Scheduler) resumeReady(ctx DelayContext, now uint64) {
	for _, t := range s.snapshot() {
		if t.ready(ctx, now) {
			t.step()
		}
	}
}

// reap drops returned tasks.
func (s *Scheduler) reap() {
	s.m.Lock()
	defer s.m.Unlock()
	active := s.tasks[:0]
	for _, t := range s.tasks {
		if t.IsActive() {
			active = append(active, t)
		}
	}
	clear(s.tasks[len(active):])
	s.tasks = active
}

// Task is a submitted routine.
type Task struct {
	id    string
	name  string
	sched *Scheduler

	resume chan struct{}
	yield  chan struct{}
	done   chan struct{}

	active    atomic.Bool
	running   atomic.Bool
	cancelled atomic.Bool

	// set by the task goroutine before it yields
	wait   Delay
	wakeAt uint64
	err    error
}

func newTask(s *Scheduler, name string) *Task {
	t := &Task{
		id:     xid.New().String(),
		name:   name,
		sched:  s,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.active.Store(true)
	return t
}

// ID returns unique task id.
func (t *Task) ID() string {
	return t.id
}

// Name returns the name the task was submitted with.
func (t *Task) Name() string {
	return t.name
}

// IsActive reports whether the routine did not return yet.
func (t *Task) IsActive() bool {
	return t.active.Load()
}

// Cancel requests termination. The routine observes it through
// ShouldTerminate and every pending Await returns immediately.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
}

// Done is closed when the routine returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the recovered panic of the routine, if any.
func (t *Task) Err() error {
	if t.IsActive() {
		return nil
	}
	return t.err
}

func (t *Task) ready(ctx DelayContext, now uint64) bool {
	if !t.IsActive() || t.running.Load() {
		return false
	}
	if t.cancelled.Load() {
		return true
	}
	return t.wait.Context == ctx && t.wakeAt <= now
}

// step hands control to the task and blocks until it suspends or
// returns.
func (t *Task) step() {
	if !t.IsActive() {
		return
	}
	t.running.Store(true)
	t.resume <- struct{}{}
	<-t.yield
	t.running.Store(false)
}

func (t *Task) run(routine Routine) {
	<-t.resume
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("task %s panic: %v", t.name, r)
			t.sched.logger.WithField("task", t.name).Error(t.err)
		}
		t.active.Store(false)
		close(t.done)
		t.yield <- struct{}{}
	}()
	routine(&Context{task: t})
}

// Context is passed to a routine.
type Context struct {
	task *Task
}

// Task returns the task running the routine.
func (c *Context) Task() *Task {
	return c.task
}

// Scheduler returns the scheduler running the routine.
func (c *Context) Scheduler() *Scheduler {
	return c.task.sched
}

// ShouldTerminate reports whether the task was cancelled.
func (c *Context) ShouldTerminate() bool {
	return c.task.cancelled.Load()
}

// Await suspends the routine until the delay elapses. It returns
// immediately for None delays and for cancelled tasks. Zero units wait
// for the next tick of the clock.
func (c *Context) Await(d Delay) {
	t := c.task
	if d.Context == None || t.cancelled.Load() {
		return
	}
	units := max(d.Units, 1)
	switch d.Context {
	case SampleBased:
		t.wakeAt = t.sched.samples.Load() + units
	default:
		t.wakeAt = t.sched.cycles.Load() + units
	}
	t.wait = d
	t.yield <- struct{}{}
	<-t.resume
}
