package buffer

import (
	"pipelined.dev/cycle/stream"
)

// StreamReader is a default processor that fills a buffer with the next
// block of a stream channel on every call. Past the end of the stream the
// buffer is zero padded, or wrapped to the start when looping.
type StreamReader struct {
	source  *stream.Stream
	channel int
	pos     int
	loop    bool
}

// NewStreamReader returns a reader of source channel.
func NewStreamReader(source *stream.Stream, channel int, loop bool) *StreamReader {
	return &StreamReader{
		source:  source,
		channel: channel,
		loop:    loop,
	}
}

// Process implements Processor.
func (r *StreamReader) Process(b *Buffer) {
	size := b.Size()
	block := make([]float64, 0, size)
	for len(block) < size {
		frames, err := r.source.Frames(r.channel, r.pos, size-len(block))
		if err != nil || len(frames) == 0 {
			if r.loop && r.pos > 0 && err == nil {
				r.pos = 0
				continue
			}
			break
		}
		r.pos += len(frames)
		block = append(block, frames...)
	}
	block = block[:size]
	b.Write(block)
}

// Position returns the next frame to read.
func (r *StreamReader) Position() int {
	return r.pos
}

// Exhausted reports whether a non-looping reader reached the end.
func (r *StreamReader) Exhausted() bool {
	return !r.loop && r.pos >= r.source.NumFrames()
}
