// Package mock provides counting doubles for pipeline functions and
// allows to execute integration tests.
package mock

import (
	"sync"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/signal"
)

// counter counts executions and samples.
type counter struct {
	m          sync.Mutex
	executions int
	samples    int
	cycles     []uint64
}

func (c *counter) advance(samples int, cycle uint64) {
	c.m.Lock()
	defer c.m.Unlock()
	c.executions++
	c.samples += samples
	c.cycles = append(c.cycles, cycle)
}

// Count returns number of executions and processed samples.
func (c *counter) Count() (int, int) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.executions, c.samples
}

// Executions returns number of executions.
func (c *counter) Executions() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.executions
}

// Cycles returns cycle numbers of all executions.
func (c *counter) Cycles() []uint64 {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]uint64(nil), c.cycles...)
}

// Reset resets counter's metrics.
func (c *counter) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.executions, c.samples, c.cycles = 0, 0, nil
}

// Source fills buffers with Value until Limit samples were produced.
// Zero limit means no limit.
type Source struct {
	counter
	Value float64
	Limit int
	cycle uint64
}

// Process implements buffer.Processor.
func (m *Source) Process(b *buffer.Buffer) {
	size := b.Size()
	if m.Limit > 0 {
		_, produced := m.Count()
		if left := m.Limit - produced; left < size {
			size = max(0, left)
		}
	}
	samples := make([]float64, size)
	for i := range samples {
		samples[i] = m.Value
	}
	b.Write(samples)
	m.advance(size, m.cycle)
	m.cycle++
}

// Transformer scales float64 data by Gain.
type Transformer struct {
	counter
	Gain float64
}

// Transform can be used as transform function.
func (m *Transformer) Transform(data signal.Variant, cycle uint64) signal.Variant {
	m.advance(data.Len(), cycle)
	samples, err := data.Float64()
	if err != nil {
		return data
	}
	result := make([]float64, len(samples))
	for i := range samples {
		result[i] = samples[i] * m.Gain
	}
	return signal.Float64s(result)
}

// Handler records dispatched data.
type Handler struct {
	counter
	lm   sync.Mutex
	last signal.Variant
}

// Handle can be used as dispatch handler.
func (m *Handler) Handle(data signal.Variant, cycle uint64) {
	m.advance(data.Len(), cycle)
	m.lm.Lock()
	m.last = data
	m.lm.Unlock()
}

// Last returns the last dispatched data.
func (m *Handler) Last() signal.Variant {
	m.lm.Lock()
	defer m.lm.Unlock()
	return m.last
}

// Condition passes every Nth cycle and counts evaluations.
type Condition struct {
	counter
	N uint64
}

// Check can be used as condition function.
func (m *Condition) Check(cycle uint64) bool {
	m.advance(0, cycle)
	return m.N == 0 || cycle%m.N == 0
}

// Modifier adds Offset to samples in place.
type Modifier struct {
	counter
	Offset float64
}

// Modify can be used as in-place processor.
func (m *Modifier) Modify(samples []float64) {
	for i := range samples {
		samples[i] += m.Offset
	}
	m.advance(len(samples), 0)
}

// Lifecycle records cycle start and end callbacks.
type Lifecycle struct {
	m      sync.Mutex
	starts []uint64
	ends   []uint64
}

// Start can be used as cycle start callback.
func (m *Lifecycle) Start(cycle uint64) {
	m.m.Lock()
	defer m.m.Unlock()
	m.starts = append(m.starts, cycle)
}

// End can be used as cycle end callback.
func (m *Lifecycle) End(cycle uint64) {
	m.m.Lock()
	defer m.m.Unlock()
	m.ends = append(m.ends, cycle)
}

// Starts returns recorded cycle starts.
func (m *Lifecycle) Starts() []uint64 {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]uint64(nil), m.starts...)
}

// Ends returns recorded cycle ends.
func (m *Lifecycle) Ends() []uint64 {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]uint64(nil), m.ends...)
}
