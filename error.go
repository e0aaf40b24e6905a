package cycle

import "errors"

var (
	// ErrNotImplemented is returned by execution methods for strategies
	// that have no semantics yet.
	ErrNotImplemented = errors.New("execution strategy is not implemented")
	// ErrNilReference is returned when an operation is built with nil
	// source, target or function.
	ErrNilReference = errors.New("nil reference")
	// ErrNoBufferManager is returned when a MODIFY operation is added to a
	// pipeline without buffer manager.
	ErrNoBufferManager = errors.New("buffer manager is required")
	// ErrNoScheduler is returned when a pipeline has no scheduler.
	ErrNoScheduler = errors.New("scheduler is required")
	// ErrRunning is returned when execution is requested for a pipeline
	// that is already running.
	ErrRunning = errors.New("pipeline is already running")
	// ErrEmptyPipeline is returned when a pipeline without operations is
	// executed.
	ErrEmptyPipeline = errors.New("pipeline has no operations")
	// ErrUnknownTag is returned when an operation reads input from a tag
	// that no preceding operation has.
	ErrUnknownTag = errors.New("unknown operation tag")
)
