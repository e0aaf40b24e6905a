// Package buffer provides fixed-size live sample buffers and a manager
// that runs their default and attached processors each cycle.
package buffer

import (
	"sync"
)

// Token selects the processing domain a buffer or processor belongs to.
type Token int

const (
	// AudioBackend buffers are processed at audio rate.
	AudioBackend Token = iota
	// GraphicsBackend buffers are processed at frame rate.
	GraphicsBackend
	// Custom buffers are processed on demand.
	Custom
)

func (t Token) String() string {
	switch t {
	case AudioBackend:
		return "audio"
	case GraphicsBackend:
		return "graphics"
	default:
		return "custom"
	}
}

// Processor fills or modifies a buffer.
type Processor interface {
	Process(*Buffer)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(*Buffer)

// Process calls f(b).
func (f ProcessorFunc) Process(b *Buffer) {
	f(b)
}

// Buffer is a fixed-size block of samples for a single channel. It is
// marked ready when new data is written and consumed when read.
type Buffer struct {
	m         sync.Mutex
	channel   int
	data      []float64
	ready     bool
	processor Processor
}

// New returns a zeroed buffer.
func New(channel, size int) *Buffer {
	return &Buffer{
		channel: channel,
		data:    make([]float64, size),
	}
}

// Channel returns buffer channel id.
func (b *Buffer) Channel() int {
	return b.channel
}

// Size returns number of samples in the buffer.
func (b *Buffer) Size() int {
	b.m.Lock()
	defer b.m.Unlock()
	return len(b.data)
}

// Data returns the live sample view. Modifications are visible to every
// reader of the buffer.
func (b *Buffer) Data() []float64 {
	b.m.Lock()
	defer b.m.Unlock()
	return b.data
}

// Snapshot returns a copy of samples and clears the ready flag.
func (b *Buffer) Snapshot() []float64 {
	b.m.Lock()
	defer b.m.Unlock()
	b.ready = false
	return append([]float64(nil), b.data...)
}

// Write replaces buffer contents with samples and marks data ready. The
// buffer takes the length of samples.
func (b *Buffer) Write(samples []float64) {
	b.m.Lock()
	defer b.m.Unlock()
	if cap(b.data) >= len(samples) {
		b.data = b.data[:len(samples)]
	} else {
		b.data = make([]float64, len(samples))
	}
	copy(b.data, samples)
	b.ready = true
}

// Overwrite copies samples over the beginning of the buffer without
// changing its size or ready flag. It returns number of copied samples.
func (b *Buffer) Overwrite(samples []float64) int {
	b.m.Lock()
	defer b.m.Unlock()
	return copy(b.data, samples)
}

// Clear zeroes samples.
func (b *Buffer) Clear() {
	b.m.Lock()
	defer b.m.Unlock()
	clear(b.data)
}

// HasDataReady reports whether new data arrived since the last read.
func (b *Buffer) HasDataReady() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.ready
}

// MarkReady flags the buffer as holding unread data.
func (b *Buffer) MarkReady() {
	b.m.Lock()
	defer b.m.Unlock()
	b.ready = true
}

// MarkConsumed clears the ready flag.
func (b *Buffer) MarkConsumed() {
	b.m.Lock()
	defer b.m.Unlock()
	b.ready = false
}

// SetDefaultProcessor sets the processor run before any attached ones.
func (b *Buffer) SetDefaultProcessor(p Processor) {
	b.m.Lock()
	defer b.m.Unlock()
	b.processor = p
}

// DefaultProcessor returns the default processor or nil.
func (b *Buffer) DefaultProcessor() Processor {
	b.m.Lock()
	defer b.m.Unlock()
	return b.processor
}

// ProcessDefault runs the default processor if set.
func (b *Buffer) ProcessDefault() {
	if p := b.DefaultProcessor(); p != nil {
		p.Process(b)
	}
}
