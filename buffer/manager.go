package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/xid"
)

var (
	// ErrUnknownHandle is returned when detaching a processor that is not
	// attached to the target buffer.
	ErrUnknownHandle = errors.New("unknown processor handle")
	// ErrNilTarget is returned when a processor is attached to nil buffer.
	ErrNilTarget = errors.New("nil target buffer")
	// ErrNilProcessor is returned when nil processor is attached.
	ErrNilProcessor = errors.New("nil processor")
)

// InPlaceFunc modifies samples in place.
type InPlaceFunc func([]float64)

// Handle identifies an attached processor.
type Handle struct {
	ID    string
	Token Token
}

type attachment struct {
	Handle
	fn InPlaceFunc
}

// Manager owns buffer registration, input listeners and in-place
// processors attached to buffers.
type Manager struct {
	m          sync.Mutex
	bufferSize int
	buffers    map[Token][]*Buffer
	inputs     map[int]*Buffer
	attached   map[*Buffer][]attachment
}

// NewManager returns a manager that creates input buffers of bufferSize.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		bufferSize: bufferSize,
		buffers:    make(map[Token][]*Buffer),
		inputs:     make(map[int]*Buffer),
		attached:   make(map[*Buffer][]attachment),
	}
}

// BufferSize returns size of input buffers.
func (m *Manager) BufferSize() int {
	return m.bufferSize
}

// Add registers buffer for processing under token.
func (m *Manager) Add(b *Buffer, token Token) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, existing := range m.buffers[token] {
		if existing == b {
			return
		}
	}
	m.buffers[token] = append(m.buffers[token], b)
}

// Remove unregisters buffer from token.
func (m *Manager) Remove(b *Buffer, token Token) {
	m.m.Lock()
	defer m.m.Unlock()
	buffers := m.buffers[token]
	for i := range buffers {
		if buffers[i] == b {
			m.buffers[token] = append(buffers[:i], buffers[i+1:]...)
			return
		}
	}
}

// Buffers returns buffers registered under token.
func (m *Manager) Buffers(token Token) []*Buffer {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]*Buffer(nil), m.buffers[token]...)
}

// RegisterInput returns the input buffer of channel, creating it on the
// first call. Input buffers are processed under AudioBackend.
func (m *Manager) RegisterInput(channel int) *Buffer {
	m.m.Lock()
	b, ok := m.inputs[channel]
	if !ok {
		b = New(channel, m.bufferSize)
		m.inputs[channel] = b
	}
	m.m.Unlock()
	if !ok {
		m.Add(b, AudioBackend)
	}
	return b
}

// UnregisterInput stops listening to channel.
func (m *Manager) UnregisterInput(channel int) {
	m.m.Lock()
	b, ok := m.inputs[channel]
	delete(m.inputs, channel)
	m.m.Unlock()
	if ok {
		m.Remove(b, AudioBackend)
	}
}

// WriteInput delivers samples to the input buffer of channel. It returns
// false if nobody listens to the channel.
func (m *Manager) WriteInput(channel int, samples []float64) bool {
	m.m.Lock()
	b, ok := m.inputs[channel]
	m.m.Unlock()
	if !ok {
		return false
	}
	b.Write(samples)
	return true
}

// AttachInPlace attaches fn to target. It runs after the target's
// default processor every time the target is processed.
func (m *Manager) AttachInPlace(fn InPlaceFunc, target *Buffer, token Token) (Handle, error) {
	if fn == nil {
		return Handle{}, ErrNilProcessor
	}
	if target == nil {
		return Handle{}, ErrNilTarget
	}
	h := Handle{
		ID:    xid.New().String(),
		Token: token,
	}
	m.m.Lock()
	m.attached[target] = append(m.attached[target], attachment{Handle: h, fn: fn})
	m.m.Unlock()
	m.Add(target, token)
	return h, nil
}

// Detach removes the processor identified by handle from target.
func (m *Manager) Detach(h Handle, target *Buffer) error {
	m.m.Lock()
	defer m.m.Unlock()
	attachments := m.attached[target]
	for i := range attachments {
		if attachments[i].ID == h.ID {
			m.attached[target] = append(attachments[:i], attachments[i+1:]...)
			if len(m.attached[target]) == 0 {
				delete(m.attached, target)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownHandle, h.ID)
}

// Attached returns number of processors attached to target.
func (m *Manager) Attached(target *Buffer) int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.attached[target])
}

// Process runs every buffer registered under token: the default
// processor first, then attached processors of the token in order.
func (m *Manager) Process(token Token) {
	for _, b := range m.Buffers(token) {
		m.process(b, token)
	}
}

// ProcessBuffer runs the default and all attached processors of b.
func (m *Manager) ProcessBuffer(b *Buffer) {
	m.process(b, -1)
}

func (m *Manager) process(b *Buffer, token Token) {
	b.ProcessDefault()
	m.m.Lock()
	attachments := append([]attachment(nil), m.attached[b]...)
	m.m.Unlock()
	if len(attachments) == 0 {
		return
	}
	data := b.Data()
	for _, a := range attachments {
		if token >= 0 && a.Token != token {
			continue
		}
		a.fn(data)
	}
	b.MarkReady()
}
