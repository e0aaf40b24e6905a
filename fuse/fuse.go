// Package fuse provides N-ary fusion functions for FUSE operations.
// Sources are reduced as float64 samples; shorter sources contribute only
// to the samples they have.
package fuse

import (
	"gonum.org/v1/gonum/floats"

	"pipelined.dev/cycle/signal"
)

// Mix averages sources sample by sample. Every output sample is divided
// by the number of sources that have it.
func Mix(sources []signal.Variant, _ uint64) signal.Variant {
	sum, count := accumulate(sources)
	if sum == nil {
		return signal.Variant{}
	}
	floats.Div(sum, count)
	return signal.Float64s(sum)
}

// Sum adds sources sample by sample.
func Sum(sources []signal.Variant, _ uint64) signal.Variant {
	sum, _ := accumulate(sources)
	if sum == nil {
		return signal.Variant{}
	}
	return signal.Float64s(sum)
}

// Max keeps the largest sample of all sources at each position.
func Max(sources []signal.Variant, _ uint64) signal.Variant {
	var result []float64
	for _, source := range sources {
		samples := source.AsFloat64()
		if len(samples) > len(result) {
			result = append(result, samples[len(result):]...)
		}
		for i := range samples {
			result[i] = max(result[i], samples[i])
		}
	}
	if result == nil {
		return signal.Variant{}
	}
	return signal.Float64s(result)
}

// Concat appends sources in order.
func Concat(sources []signal.Variant, _ uint64) signal.Variant {
	var result []float64
	for _, source := range sources {
		result = append(result, source.AsFloat64()...)
	}
	if result == nil {
		return signal.Variant{}
	}
	return signal.Float64s(result)
}

// Gain returns a fusion that scales the mix of sources by g.
func Gain(g float64) func([]signal.Variant, uint64) signal.Variant {
	return func(sources []signal.Variant, cycle uint64) signal.Variant {
		mixed, err := Mix(sources, cycle).Float64()
		if err != nil {
			return signal.Variant{}
		}
		floats.Scale(g, mixed)
		return signal.Float64s(mixed)
	}
}

// accumulate returns per sample sums and number of contributing sources.
func accumulate(sources []signal.Variant) ([]float64, []float64) {
	size := 0
	for _, source := range sources {
		size = max(size, source.Len())
	}
	if size == 0 {
		return nil, nil
	}
	sum := make([]float64, size)
	count := make([]float64, size)
	ones := make([]float64, size)
	for i := range ones {
		ones[i] = 1
	}
	for _, source := range sources {
		samples := source.AsFloat64()
		n := len(samples)
		if n == 0 {
			continue
		}
		floats.Add(sum[:n], samples)
		floats.Add(count[:n], ones[:n])
	}
	return sum, count
}
