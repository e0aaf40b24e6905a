package cycle

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/log"
	"pipelined.dev/cycle/schedule"
)

// BufferFunc receives a buffer.
type BufferFunc func(*buffer.Buffer)

// Coordinator drives several pipelines at a shared cadence and tracks
// transient data of buffers.
type Coordinator struct {
	sched  *schedule.Scheduler
	logger logrus.FieldLogger
}

// CoordinatorOption configures a coordinator.
type CoordinatorOption func(*Coordinator)

// CoordinatorLogger sets the coordinator logger.
func CoordinatorLogger(l logrus.FieldLogger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator returns a coordinator running on sched.
func NewCoordinator(sched *schedule.Scheduler, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{sched: sched}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.GetLogger()
	}
	return c
}

// SyncPipelines executes one cycle of every pipeline each everyNCycles
// buffer cycles, up to maxSyncs times, zero means unbounded. Pipelines
// that still hold unconsumed data when the next sync is due are logged.
func (c *Coordinator) SyncPipelines(pipelines []*Pipeline, everyNCycles, maxSyncs uint64) (*schedule.Task, error) {
	if c.sched == nil {
		return nil, ErrNoScheduler
	}
	for i, p := range pipelines {
		if p == nil {
			return nil, fmt.Errorf("%w: pipeline %d", ErrNilReference, i)
		}
	}
	interval := max(1, everyNCycles)
	return c.sched.Submit("sync", func(ctx *schedule.Context) {
		for sync := uint64(0); maxSyncs == 0 || sync < maxSyncs; sync++ {
			if ctx.ShouldTerminate() {
				return
			}
			for _, p := range pipelines {
				if err := p.ExecuteOnce(); err != nil {
					c.logger.WithError(err).WithField("pipeline", p.ID()).Warn("sync skipped")
				}
			}
			ctx.Await(schedule.Cycles(interval))
			for _, p := range pipelines {
				if p.HasPendingData() {
					c.logger.WithField("pipeline", p.ID()).Warn("pipeline has unconsumed data")
				}
			}
		}
	})
}

// ManageTransient watches buffer b every buffer cycle. onReady is called
// when b gets new data, onExpired when that data is still unread one
// cycle later, and b is marked consumed then. Either callback may be nil.
func (c *Coordinator) ManageTransient(b *buffer.Buffer, onReady, onExpired BufferFunc) (*schedule.Task, error) {
	if c.sched == nil {
		return nil, ErrNoScheduler
	}
	if b == nil {
		return nil, fmt.Errorf("%w: buffer", ErrNilReference)
	}
	return c.sched.Submit("transient", func(ctx *schedule.Context) {
		announced := false
		for !ctx.ShouldTerminate() {
			switch ready := b.HasDataReady(); {
			case ready && !announced:
				if onReady != nil {
					onReady(b)
				}
				announced = true
			case ready && announced:
				if onExpired != nil {
					onExpired(b)
				}
				b.MarkConsumed()
				announced = false
			default:
				announced = false
			}
			ctx.Await(schedule.Cycles(1))
		}
	})
}
