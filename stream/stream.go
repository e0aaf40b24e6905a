// Package stream provides a growable multichannel frame container with
// an optional circular capacity.
package stream

import (
	"errors"
	"fmt"
	"sync"

	"pipelined.dev/cycle/signal"
)

var (
	// ErrChannelOutOfRange is returned when a channel index exceeds the
	// number of channels in the stream.
	ErrChannelOutOfRange = errors.New("channel out of range")
	// ErrShortBuffer is returned when the output buffer of a read cannot
	// hold the requested frames.
	ErrShortBuffer = errors.New("output buffer too short")
)

// Stream stores non-interleaved frames. All channels have the same
// number of frames. Writes beyond the end grow the stream when auto
// resize is enabled. A circular stream keeps at most its capacity of
// frames and drops the oldest frames first.
type Stream struct {
	mu         sync.RWMutex
	data       signal.Float64
	sampleRate int
	cursors    []int
	readPos    int
	autoResize bool
	circular   bool
	capacity   int
}

// Option configures a stream.
type Option func(*Stream)

// WithCircular makes the stream circular with provided capacity.
func WithCircular(capacity int) Option {
	return func(s *Stream) {
		s.setCircular(capacity)
	}
}

// WithAutoResize toggles growth on writes past the end.
func WithAutoResize(enabled bool) Option {
	return func(s *Stream) {
		s.autoResize = enabled
	}
}

// WithFrames preallocates zeroed frames.
func WithFrames(frames int) Option {
	return func(s *Stream) {
		s.expand(frames)
	}
}

// New creates an empty stream.
func New(numChannels, sampleRate int, options ...Option) *Stream {
	if numChannels < 1 {
		numChannels = 1
	}
	s := &Stream{
		data:       signal.EmptyFloat64(numChannels, 0),
		cursors:    make([]int, numChannels),
		sampleRate: sampleRate,
		autoResize: true,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// FromFloat64 creates a stream that holds a copy of provided signal.
func FromFloat64(floats signal.Float64, sampleRate int) *Stream {
	s := New(floats.NumChannels(), sampleRate)
	for ch := range floats {
		s.Append(floats[ch], ch)
	}
	return s
}

// Channels returns number of channels.
func (s *Stream) Channels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// SampleRate returns the stream sample rate.
func (s *Stream) SampleRate() int {
	return s.sampleRate
}

// NumFrames returns number of stored frames.
func (s *Stream) NumFrames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Size()
}

// Position returns the read position.
func (s *Stream) Position() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readPos
}

// Remaining returns number of frames after the read position.
func (s *Stream) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Size() - s.readPos
}

// Seek moves the read position. It's clamped to stored frames.
func (s *Stream) Seek(frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case frame < 0:
		frame = 0
	case frame > s.data.Size():
		frame = s.data.Size()
	}
	s.readPos = frame
}

// SetAutoResize toggles growth on writes past the end.
func (s *Stream) SetAutoResize(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoResize = enabled
}

// SetCircular makes the stream circular. Capacity 0 disables it.
func (s *Stream) SetCircular(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCircular(capacity)
}

func (s *Stream) setCircular(capacity int) {
	if capacity <= 0 {
		s.circular, s.capacity = false, 0
		return
	}
	s.circular, s.capacity = true, capacity
	s.trim()
}

// IsCircular reports whether the stream has a fixed capacity.
func (s *Stream) IsCircular() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.circular
}

// CircularCapacity returns the capacity of a circular stream or 0.
func (s *Stream) CircularCapacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// WriteFrames writes samples into channel starting at startFrame and
// returns number of frames written. Without auto resize, frames past the
// end are not written.
func (s *Stream) WriteFrames(samples []float64, startFrame, channel int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFrames(samples, startFrame, channel)
}

// Append writes samples after the last frame written to channel.
func (s *Stream) Append(samples []float64, channel int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= len(s.data) {
		return 0, fmt.Errorf("%w: %d of %d", ErrChannelOutOfRange, channel, len(s.data))
	}
	return s.writeFrames(samples, s.cursors[channel], channel)
}

func (s *Stream) writeFrames(samples []float64, startFrame, channel int) (int, error) {
	if channel < 0 || channel >= len(s.data) {
		return 0, fmt.Errorf("%w: %d of %d", ErrChannelOutOfRange, channel, len(s.data))
	}
	if len(samples) == 0 || startFrame < 0 {
		return 0, nil
	}
	n := len(samples)
	end := startFrame + n
	if end > s.data.Size() {
		if s.autoResize {
			s.expand(end)
		} else {
			n = s.data.Size() - startFrame
			if n <= 0 {
				return 0, nil
			}
			end = startFrame + n
		}
	}
	copy(s.data[channel][startFrame:end], samples[:n])
	if end > s.cursors[channel] {
		s.cursors[channel] = end
	}
	s.trim()
	return n, nil
}

// ReadFrames reads up to count frames from the read position into out,
// interleaved by channel, and advances the position. It returns number
// of frames read.
func (s *Stream) ReadFrames(out []float64, count int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	numChannels := len(s.data)
	if count <= 0 {
		return 0, nil
	}
	if available := s.data.Size() - s.readPos; count > available {
		count = available
	}
	if len(out) < count*numChannels {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, count*numChannels, len(out))
	}
	for i := 0; i < count; i++ {
		for ch := range s.data {
			out[i*numChannels+ch] = s.data[ch][s.readPos+i]
		}
	}
	s.readPos += count
	return count, nil
}

// ReadChannel returns up to count frames of channel from the read
// position and moves it past them. Zero count reads all remaining frames.
func (s *Stream) ReadChannel(channel, count int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= len(s.data) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChannelOutOfRange, channel, len(s.data))
	}
	available := s.data.Size() - s.readPos
	if count <= 0 || count > available {
		count = available
	}
	if count <= 0 {
		return nil, nil
	}
	out := append([]float64(nil), s.data[channel][s.readPos:s.readPos+count]...)
	s.readPos += count
	return out, nil
}

// Frames returns a copy of count frames of channel starting at start. It
// does not move the read position.
func (s *Stream) Frames(channel, start, count int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if channel < 0 || channel >= len(s.data) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChannelOutOfRange, channel, len(s.data))
	}
	size := s.data.Size()
	if start < 0 || start >= size {
		return nil, nil
	}
	end := start + count
	if count <= 0 || end > size {
		end = size
	}
	return append([]float64(nil), s.data[channel][start:end]...), nil
}

// Channel returns a copy of all frames of channel.
func (s *Stream) Channel(channel int) ([]float64, error) {
	return s.Frames(channel, 0, 0)
}

// Float64 returns a copy of all frames.
func (s *Stream) Float64() signal.Float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(signal.Float64, len(s.data))
	for ch := range s.data {
		result[ch] = append([]float64(nil), s.data[ch]...)
	}
	return result
}

// Reset drops all frames.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = signal.EmptyFloat64(len(s.data), 0)
	s.cursors = make([]int, len(s.data))
	s.readPos = 0
}

func (s *Stream) expand(frames int) {
	for ch := range s.data {
		if grow := frames - len(s.data[ch]); grow > 0 {
			s.data[ch] = append(s.data[ch], make([]float64, grow)...)
		}
	}
}

// trim drops oldest frames of a circular stream above its capacity.
func (s *Stream) trim() {
	if !s.circular {
		return
	}
	excess := s.data.Size() - s.capacity
	if excess <= 0 {
		return
	}
	for ch := range s.data {
		s.data[ch] = append(s.data[ch][:0], s.data[ch][excess:]...)
	}
	for ch := range s.cursors {
		s.cursors[ch] = max(0, s.cursors[ch]-excess)
	}
	s.readPos = max(0, s.readPos-excess)
}
