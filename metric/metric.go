// Package metric publishes expvar counters for pipeline components. A
// component is any value identified by its label: either a string or the
// type name of the value.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/cycle/signal"
)

const componentsLabel = "cycle.components"

const (
	// ExecutionCounter measures number of executions.
	ExecutionCounter = "Executions"
	// SampleCounter measures number of produced samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between executions.
	LatencyCounter = "Latency"
	// DurationCounter counts the duration of produced signal.
	DurationCounter = "Duration"
	// FailureCounter counts recovered failures.
	FailureCounter = "Failures"
	// ComponentCounter counts number of metered instances.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		ExecutionCounter,
		SampleCounter,
		LatencyCounter,
		DurationCounter,
		FailureCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component.
func Get(component interface{}) map[string]string {
	return getCounters(label(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(component string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(component, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// ResetFunc returns new Measure closure. This closure is needed to postpone metrics
// capture until component is actually running.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when component is executed.
type MeasureFunc func(samples int64)

// Meter creates new meter closure to capture component counters.
func Meter(component interface{}, sampleRate int) ResetFunc {
	metric := components.get(label(component))
	metric.components.Add(1)
	return func() MeasureFunc {
		calledAt := time.Now()
		var (
			size     int64
			duration time.Duration
		)
		return func(s int64) {
			metric.latency.set(time.Since(calledAt))
			metric.executions.Add(1)
			metric.samples.Add(s)
			// recalculate duration only when size has changed
			if size != s {
				size = s
				duration = signal.DurationOf(sampleRate, s)
			}
			metric.duration.add(duration)
			calledAt = time.Now()
		}
	}
}

// Fail counts a recovered failure of component.
func Fail(component interface{}) {
	components.get(label(component)).failures.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(component string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[component]; ok {
		return metric
	}
	metric := newMetric(component)
	m.m[component] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	executions *expvar.Int
	samples    *expvar.Int
	failures   *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(component string) metric {
	m := metric{
		components: expvar.NewInt(key(component, ComponentCounter)),
		executions: expvar.NewInt(key(component, ExecutionCounter)),
		samples:    expvar.NewInt(key(component, SampleCounter)),
		failures:   expvar.NewInt(key(component, FailureCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(component, LatencyCounter), m.latency)
	expvar.Publish(key(component, DurationCounter), m.duration)
	return m
}

func key(component, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, component, counter)
}

func label(component interface{}) string {
	switch v := component.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
