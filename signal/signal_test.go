package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/cycle/signal"
)

const max24 = 1<<23 - 1

func TestInterIntAsFloat64(t *testing.T) {
	tests := []struct {
		name        string
		ints        []int
		numChannels int
		bitDepth    signal.BitDepth
		expected    signal.Float64
	}{
		{
			name:        "stereo",
			ints:        []int{1, 2, 1, 2, 1, 2},
			numChannels: 2,
			expected:    signal.Float64{{1, 1, 1}, {2, 2, 2}},
		},
		{
			name:        "incomplete frame is zero padded",
			ints:        []int{1, 2, 1, 2, 1},
			numChannels: 2,
			expected:    signal.Float64{{1, 1, 1}, {2, 2, 0}},
		},
		{
			name:        "16 bit",
			ints:        []int{math.MaxInt16, -math.MaxInt16},
			numChannels: 2,
			bitDepth:    signal.BitDepth16,
			expected:    signal.Float64{{1}, {-1}},
		},
		{
			name:        "24 bit",
			ints:        []int{max24, -max24, max24 / 2},
			numChannels: 1,
			bitDepth:    signal.BitDepth24,
			expected:    signal.Float64{{1, -1, float64(max24/2) / max24}},
		},
		{
			name:        "no channels",
			ints:        []int{1, 2, 3},
			numChannels: 0,
		},
		{
			name:        "nil data",
			numChannels: 2,
		},
		{
			name:        "more channels than samples",
			ints:        []int{1, 2},
			numChannels: 3,
			expected:    signal.Float64{{1}, {2}, {0}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ints := signal.InterInt{
				Data:        test.ints,
				NumChannels: test.numChannels,
				BitDepth:    test.bitDepth,
			}
			assert.Equal(t, test.expected, ints.AsFloat64())
		})
	}
}

func TestFloat64AsInterInt(t *testing.T) {
	tests := []struct {
		name     string
		floats   signal.Float64
		bitDepth signal.BitDepth
		expected []int
	}{
		{
			name:     "stereo",
			floats:   signal.Float64{{1, 1}, {2, 2}},
			expected: []int{1, 2, 1, 2},
		},
		{
			name:     "short channel is zero padded",
			floats:   signal.Float64{{1, 1, 1}, {2}},
			expected: []int{1, 2, 1, 0, 1, 0},
		},
		{
			name:     "16 bit",
			floats:   signal.Float64{{1}, {-1}},
			bitDepth: signal.BitDepth16,
			expected: []int{math.MaxInt16 - 1, -(math.MaxInt16 - 1)},
		},
		{
			name:     "24 bit",
			floats:   signal.Float64{{1, -0.5}},
			bitDepth: signal.BitDepth24,
			expected: []int{max24 - 1, -(max24 - 1) / 2},
		},
		{
			name:     "out of range samples are scaled, not clipped",
			floats:   signal.Float64{{2, -1.5}},
			bitDepth: signal.BitDepth8,
			expected: []int{2 * (math.MaxInt8 - 1), int(-1.5 * (math.MaxInt8 - 1))},
		},
		{
			name: "nil",
		},
		{
			name:     "empty channels",
			floats:   signal.Float64{{}, {}},
			expected: []int{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.floats.AsInterInt(test.bitDepth))
		})
	}
}

func TestBitDepthRoundTrip(t *testing.T) {
	floats := signal.Float64{{0.25, -0.75, 0.999}, {0, 0.5, -1}}
	for _, bitDepth := range []signal.BitDepth{signal.BitDepth16, signal.BitDepth24, signal.BitDepth32} {
		ints := signal.InterInt{
			Data:        floats.AsInterInt(bitDepth),
			NumChannels: floats.NumChannels(),
			BitDepth:    bitDepth,
		}
		result := ints.AsFloat64()
		assert.Equal(t, floats.Size(), result.Size())
		for i := range floats {
			assert.InDeltaSlice(t, floats[i], result[i], 1e-3)
		}
	}
}

func TestEmptyFloat64(t *testing.T) {
	floats := signal.EmptyFloat64(3, 4)
	assert.Equal(t, 3, floats.NumChannels())
	assert.Equal(t, 4, floats.Size())
	assert.Equal(t, 0, signal.Float64(nil).Size())
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(44100, 44100))
	assert.Equal(t, 500*time.Millisecond, signal.DurationOf(48000, 24000))
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 100))
}
