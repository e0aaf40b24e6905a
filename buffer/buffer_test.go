package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/cycle/buffer"
	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

func TestBufferReadyFlag(t *testing.T) {
	b := buffer.New(0, 4)
	assert.Equal(t, 4, b.Size())
	assert.False(t, b.HasDataReady())

	b.Write([]float64{1, 2})
	assert.True(t, b.HasDataReady())
	assert.Equal(t, 2, b.Size())

	snapshot := b.Snapshot()
	assert.Equal(t, []float64{1, 2}, snapshot)
	assert.False(t, b.HasDataReady())

	snapshot[0] = 10
	assert.Equal(t, 1.0, b.Data()[0])

	assert.Equal(t, 2, b.Overwrite([]float64{5, 6, 7}))
	assert.Equal(t, []float64{5, 6}, b.Data())
	assert.False(t, b.HasDataReady())

	b.Clear()
	assert.Equal(t, []float64{0, 0}, b.Data())
}

func TestDefaultProcessor(t *testing.T) {
	b := buffer.New(1, 3)
	calls := 0
	b.SetDefaultProcessor(buffer.ProcessorFunc(func(b *buffer.Buffer) {
		calls++
		b.Write([]float64{1, 1, 1})
	}))
	b.ProcessDefault()
	b.ProcessDefault()
	assert.Equal(t, 2, calls)
	assert.True(t, b.HasDataReady())
}

func TestStreamReader(t *testing.T) {
	s := stream.FromFloat64(signal.Float64{{1, 2, 3, 4, 5}}, 48000)
	tests := []struct {
		loop     bool
		expected [][]float64
	}{
		{
			loop:     false,
			expected: [][]float64{{1, 2}, {3, 4}, {5, 0}, {0, 0}},
		},
		{
			loop:     true,
			expected: [][]float64{{1, 2}, {3, 4}, {5, 1}, {2, 3}},
		},
	}
	for _, test := range tests {
		b := buffer.New(0, 2)
		r := buffer.NewStreamReader(s, 0, test.loop)
		b.SetDefaultProcessor(r)
		for _, expected := range test.expected {
			b.ProcessDefault()
			assert.Equal(t, expected, b.Snapshot())
		}
		assert.Equal(t, !test.loop, r.Exhausted())
	}
}

func TestManagerAttachDetach(t *testing.T) {
	m := buffer.NewManager(4)
	target := buffer.New(0, 4)
	target.Write([]float64{1, 1, 1, 1})

	h, err := m.AttachInPlace(func(data []float64) {
		for i := range data {
			data[i] *= 2
		}
	}, target, buffer.AudioBackend)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, 1, m.Attached(target))

	m.Process(buffer.AudioBackend)
	assert.Equal(t, []float64{2, 2, 2, 2}, target.Data())
	m.Process(buffer.GraphicsBackend)
	assert.Equal(t, []float64{2, 2, 2, 2}, target.Data())

	require.NoError(t, m.Detach(h, target))
	assert.Equal(t, 0, m.Attached(target))
	assert.ErrorIs(t, m.Detach(h, target), buffer.ErrUnknownHandle)

	m.ProcessBuffer(target)
	assert.Equal(t, []float64{2, 2, 2, 2}, target.Data())

	_, err = m.AttachInPlace(nil, target, buffer.AudioBackend)
	assert.ErrorIs(t, err, buffer.ErrNilProcessor)
	_, err = m.AttachInPlace(func([]float64) {}, nil, buffer.AudioBackend)
	assert.ErrorIs(t, err, buffer.ErrNilTarget)
}

func TestManagerInputs(t *testing.T) {
	m := buffer.NewManager(8)
	assert.False(t, m.WriteInput(0, []float64{1}))

	in := m.RegisterInput(0)
	assert.Same(t, in, m.RegisterInput(0))
	assert.Equal(t, 8, in.Size())
	assert.Len(t, m.Buffers(buffer.AudioBackend), 1)

	assert.True(t, m.WriteInput(0, []float64{1, 2, 3, 4, 5, 6, 7, 8}))
	assert.True(t, in.HasDataReady())

	m.UnregisterInput(0)
	assert.Empty(t, m.Buffers(buffer.AudioBackend))
	assert.False(t, m.WriteInput(0, []float64{1}))
}
