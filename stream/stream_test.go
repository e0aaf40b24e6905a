package stream_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

func ramp(n int, scale float64) []float64 {
	result := make([]float64, n)
	for i := range result {
		result[i] = float64(i) * scale
	}
	return result
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := stream.New(1, 48000)
	samples := ramp(512, 1)
	n, err := s.WriteFrames(samples, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, 512, s.NumFrames())

	out := make([]float64, 512)
	read, err := s.ReadFrames(out, 512)
	require.NoError(t, err)
	assert.Equal(t, 512, read)
	assert.Equal(t, samples, out)
	assert.Equal(t, 0, s.Remaining())
}

func TestReadFramesInterleaved(t *testing.T) {
	s := stream.FromFloat64(signal.Float64{{1, 2, 3}, {4, 5, 6}}, 44100)
	out := make([]float64, 4)
	read, err := s.ReadFrames(out, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, read)
	assert.Equal(t, []float64{1, 4, 2, 5}, out)

	read, err = s.ReadFrames(out, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, read)
	assert.Equal(t, []float64{3, 6}, out[:2])

	_, err = s.ReadFrames(make([]float64, 1), 1)
	assert.NoError(t, err)
	s.Seek(0)
	_, err = s.ReadFrames(make([]float64, 1), 1)
	assert.ErrorIs(t, err, stream.ErrShortBuffer)
}

func TestReadChannel(t *testing.T) {
	s := stream.FromFloat64(signal.Float64{{1, 2, 3}, {4, 5, 6}}, 44100)
	right, err := s.ReadChannel(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, right)
	assert.Equal(t, 2, s.Position())

	left, err := s.ReadChannel(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, left)
	assert.Equal(t, 0, s.Remaining())

	left, err = s.ReadChannel(0, 1)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = s.ReadChannel(2, 1)
	assert.ErrorIs(t, err, stream.ErrChannelOutOfRange)
}

func TestAppend(t *testing.T) {
	s := stream.New(2, 48000)
	for i := 0; i < 3; i++ {
		_, err := s.Append(ramp(4, 1), 0)
		require.NoError(t, err)
	}
	_, err := s.Append(ramp(2, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, 12, s.NumFrames())

	right, err := s.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 0}, right[:4])

	_, err = s.Append(ramp(2, 1), 2)
	assert.ErrorIs(t, err, stream.ErrChannelOutOfRange)
}

func TestWriteWithoutAutoResize(t *testing.T) {
	s := stream.New(1, 48000, stream.WithFrames(4), stream.WithAutoResize(false))
	n, err := s.WriteFrames(ramp(8, 1), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, s.NumFrames())

	n, err = s.WriteFrames(ramp(8, 1), 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCircular(t *testing.T) {
	s := stream.New(1, 48000, stream.WithCircular(1024))
	assert.True(t, s.IsCircular())
	assert.Equal(t, 1024, s.CircularCapacity())
	for i := 0; i < 5; i++ {
		_, err := s.Append(ramp(512, 1), 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 1024, s.NumFrames())

	s.SetCircular(256)
	assert.Equal(t, 256, s.NumFrames())
	last, err := s.Frames(0, 255, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{511}, last)

	s.SetCircular(0)
	assert.False(t, s.IsCircular())
}

func TestSeekAndFrames(t *testing.T) {
	s := stream.FromFloat64(signal.Float64{ramp(10, 1)}, 48000)
	s.Seek(8)
	assert.Equal(t, 2, s.Remaining())
	s.Seek(100)
	assert.Equal(t, 10, s.Position())
	s.Seek(-1)
	assert.Equal(t, 0, s.Position())

	frames, err := s.Frames(0, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9}, frames)
	frames, err = s.Frames(0, 10, 1)
	require.NoError(t, err)
	assert.Nil(t, frames)

	s.Reset()
	assert.Equal(t, 0, s.NumFrames())
}

func TestWavRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
		channels int
	}{
		{bitDepth: signal.BitDepth16, channels: 1},
		{bitDepth: signal.BitDepth16, channels: 2},
		{bitDepth: signal.BitDepth32, channels: 2},
	}
	for _, test := range tests {
		floats := signal.EmptyFloat64(test.channels, 0)
		for ch := range floats {
			floats[ch] = ramp(1000, 0.0005*float64(ch+1))
		}
		in := stream.FromFloat64(floats, 44100)
		path := filepath.Join(t.TempDir(), "out.wav")
		require.NoError(t, in.SaveWav(path, test.bitDepth))

		out, err := stream.Load(path)
		require.NoError(t, err)
		assert.Equal(t, test.channels, out.Channels())
		assert.Equal(t, 1000, out.NumFrames())
		assert.Equal(t, 44100, out.SampleRate())
		for ch := 0; ch < test.channels; ch++ {
			expected, _ := in.Channel(ch)
			actual, _ := out.Channel(ch)
			assert.InEpsilon(t, signal.Float64s(expected).Energy(), signal.Float64s(actual).Energy(), 1e-3)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := stream.Load("file.mp3")
	assert.ErrorIs(t, err, stream.ErrUnsupportedFormat)
	_, err = stream.LoadWav(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)

	s := stream.New(1, 44100)
	assert.ErrorIs(t, s.SaveWav(filepath.Join(t.TempDir(), "x.wav"), signal.BitDepth8), stream.ErrUnsupportedBitDepth)
}
