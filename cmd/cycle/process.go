package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"pipelined.dev/cycle"
	"pipelined.dev/cycle/metric"
	"pipelined.dev/cycle/schedule"
	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

type processCommand struct {
	app      *app
	in       string
	out      string
	gain     float64
	bitDepth int
}

func newProcessCmd(a *app) *cobra.Command {
	p := &processCommand{app: a}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process an audio file through per-channel pipelines",
		Long: `Process captures every channel of the input file block by block,
applies gain and routes the result into the output wav file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return p.run()
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&p.in, "in", "i", "", "input wav or aiff file (required)")
	flags.StringVarP(&p.out, "out", "o", "", "output wav file (required)")
	flags.Float64VarP(&p.gain, "gain", "g", 1, "gain applied to every sample")
	flags.IntVar(&p.bitDepth, "bit-depth", int(signal.BitDepth16), "output bit depth")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (p *processCommand) run() error {
	c, logger := p.app.config, p.app.logger
	src, err := stream.Load(p.in)
	if err != nil {
		return err
	}
	frames := src.NumFrames()
	if frames == 0 {
		return fmt.Errorf("%s: no frames", p.in)
	}
	cycles := uint64((frames + c.BufferSize - 1) / c.BufferSize)
	if c.Cycles > 0 {
		cycles = min(cycles, c.Cycles)
	}

	sched := schedule.New(src.SampleRate(), schedule.WithLogger(logger))
	defer sched.Close()
	out := stream.New(src.Channels(), src.SampleRate())
	options := append(c.PipelineOptions(), cycle.WithLogger(logger))
	pipelines := make([]*cycle.Pipeline, 0, src.Channels())
	for ch := 0; ch < src.Channels(); ch++ {
		pipeline := cycle.New(sched, options...).
			Then(cycle.CaptureStream(src, ch, c.BufferSize, 0).WithTag("in")).
			Then(cycle.Transform(gain(p.gain))).
			Then(cycle.RouteToStream(out, ch))
		if err := pipeline.ExecuteScheduled(cycles, c.SamplesPerOperation); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		pipelines = append(pipelines, pipeline)
	}
	for running(pipelines) {
		sched.Process(uint64(c.BufferSize))
	}

	result := make(signal.Float64, out.Channels())
	for ch := range result {
		if result[ch], err = out.Frames(ch, 0, frames); err != nil {
			return err
		}
	}
	if err := stream.FromFloat64(result, src.SampleRate()).SaveWav(p.out, signal.BitDepth(p.bitDepth)); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"in":       p.in,
		"out":      p.out,
		"channels": src.Channels(),
		"frames":   result.Size(),
		"cycles":   cycles,
	}).Info("processed")
	for component, counters := range metric.GetAll() {
		logger.WithField("component", component).Debugf("%v", counters)
	}
	return nil
}

// gain returns a transform that scales float64 samples by g.
func gain(g float64) cycle.TransformFunc {
	return func(data signal.Variant, _ uint64) signal.Variant {
		samples := data.AsFloat64()
		floats.Scale(g, samples)
		return signal.Float64s(samples)
	}
}

func running(pipelines []*cycle.Pipeline) bool {
	for _, p := range pipelines {
		if p.IsActive() {
			return true
		}
	}
	return false
}
