package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/cycle/schedule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmitRunsUntilFirstAwait(t *testing.T) {
	s := schedule.New(48000)
	defer s.Close()

	var steps []int
	task, err := s.Submit("steps", func(ctx *schedule.Context) {
		for i := 0; i < 3 && !ctx.ShouldTerminate(); i++ {
			steps = append(steps, i)
			ctx.Await(schedule.Cycles(1))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, steps)
	assert.True(t, task.IsActive())
	assert.NotEmpty(t, task.ID())
	assert.Equal(t, "steps", task.Name())

	s.ProcessBufferCycle()
	assert.Equal(t, []int{0, 1}, steps)
	s.ProcessBufferCycle()
	s.ProcessBufferCycle()
	assert.Equal(t, []int{0, 1, 2}, steps)
	assert.False(t, task.IsActive())
	assert.Equal(t, 0, s.Active())
	<-task.Done()
}

func TestSampleDelay(t *testing.T) {
	s := schedule.New(1000)
	defer s.Close()

	var wakes []uint64
	_, err := s.Submit("samples", func(ctx *schedule.Context) {
		for !ctx.ShouldTerminate() {
			ctx.Await(schedule.Samples(100))
			wakes = append(wakes, ctx.Scheduler().CurrentSample())
		}
	})
	require.NoError(t, err)

	s.ProcessSamples(350)
	assert.Equal(t, []uint64{100, 200, 300}, wakes)
	assert.Equal(t, uint64(350), s.CurrentSample())
	s.ProcessSamples(50)
	assert.Equal(t, []uint64{100, 200, 300, 400}, wakes)
	assert.Equal(t, uint64(250), s.SecondsToSamples(0.25))
}

func TestProcessInterleavesClocks(t *testing.T) {
	s := schedule.New(48000)
	defer s.Close()

	var order []string
	_, err := s.Submit("cycles", func(ctx *schedule.Context) {
		ctx.Await(schedule.Cycles(1))
		order = append(order, "cycle")
	})
	require.NoError(t, err)
	_, err = s.Submit("samples", func(ctx *schedule.Context) {
		ctx.Await(schedule.Samples(512))
		order = append(order, "samples")
	})
	require.NoError(t, err)

	s.Process(512)
	assert.Equal(t, []string{"samples", "cycle"}, order)
	assert.Equal(t, uint64(1), s.CurrentCycle())
}

func TestCancel(t *testing.T) {
	s := schedule.New(48000)
	defer s.Close()

	iterations := 0
	task, err := s.Submit("forever", func(ctx *schedule.Context) {
		for !ctx.ShouldTerminate() {
			iterations++
			ctx.Await(schedule.Cycles(10))
		}
	})
	require.NoError(t, err)
	task.Cancel()
	s.ProcessBufferCycle()
	assert.False(t, task.IsActive())
	assert.Equal(t, 1, iterations)
}

func TestNestedSubmit(t *testing.T) {
	s := schedule.New(48000)
	defer s.Close()

	var child *schedule.Task
	var order []string
	_, err := s.Submit("parent", func(ctx *schedule.Context) {
		order = append(order, "parent")
		child, _ = ctx.Scheduler().Submit("child", func(ctx *schedule.Context) {
			order = append(order, "child")
			ctx.Await(schedule.Cycles(1))
			order = append(order, "child done")
		})
		for child.IsActive() && !ctx.ShouldTerminate() {
			ctx.Await(schedule.Cycles(1))
		}
		order = append(order, "parent done")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"parent", "child"}, order)

	s.ProcessBufferCycle()
	s.ProcessBufferCycle()
	assert.Equal(t, []string{"parent", "child", "child done", "parent done"}, order)
}

func TestPanicIsRecovered(t *testing.T) {
	s := schedule.New(48000)
	defer s.Close()

	task, err := s.Submit("panic", func(ctx *schedule.Context) {
		panic("boom")
	})
	require.NoError(t, err)
	assert.False(t, task.IsActive())
	assert.Error(t, task.Err())
}

func TestClose(t *testing.T) {
	s := schedule.New(48000)
	_, err := s.Submit("forever", func(ctx *schedule.Context) {
		for !ctx.ShouldTerminate() {
			ctx.Await(schedule.Samples(1))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Active())
	s.Close()
	assert.Equal(t, 0, s.Active())

	_, err = s.Submit("late", func(*schedule.Context) {})
	assert.ErrorIs(t, err, schedule.ErrClosed)
}

func TestParseDelayContext(t *testing.T) {
	tests := []struct {
		name     string
		expected schedule.DelayContext
		err      bool
	}{
		{name: "sample_based", expected: schedule.SampleBased},
		{name: "BUFFER_BASED", expected: schedule.BufferBased},
		{name: "none", expected: schedule.None},
		{name: "event", err: true},
	}
	for _, test := range tests {
		ctx, err := schedule.ParseDelayContext(test.name)
		if test.err {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, test.expected, ctx)
		assert.Equal(t, test.expected.String(), ctx.String())
	}
}
