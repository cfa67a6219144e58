// Copyright 2025 Joseph Cumines
//
// Metrics registry for observability

package telemetry

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Registry provides thread-safe metrics collection for the automation agent:
// tool invocation counts and latencies, locator outcomes, and recorder event
// throughput, exportable in Prometheus text format.
type Registry struct {
	counters   map[string]*counter
	histograms map[string]*histogram
	gauges     map[string]*gauge
	mu         sync.RWMutex
}

type counter struct {
	values map[string]uint64
	mu     sync.RWMutex
}

type histogram struct {
	counts  map[string][]uint64
	sums    map[string]float64
	totals  map[string]uint64
	buckets []float64
	mu      sync.RWMutex
}

type gauge struct {
	values map[string]float64
	mu     sync.RWMutex
}

// Latency buckets in seconds, sized for UI automation calls: locators poll
// for seconds, single accessibility reads finish in milliseconds.
var defaultLatencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

// NewRegistry creates a registry with the agent's standard metrics.
func NewRegistry() *Registry {
	r := &Registry{
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
		gauges:     make(map[string]*gauge),
	}

	r.registerCounter("agent_tool_calls_total")
	r.registerCounter("agent_locator_resolutions_total")
	r.registerCounter("agent_recorder_events_total")
	r.registerCounter("agent_recorder_dropped_total")
	r.registerHistogram("agent_tool_duration_seconds", defaultLatencyBuckets)
	r.registerHistogram("agent_locator_duration_seconds", defaultLatencyBuckets)
	r.registerGauge("agent_recorder_queue_depth")
	r.registerGauge("agent_workflow_steps_active")

	return r
}

func (r *Registry) registerCounter(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] = &counter{values: make(map[string]uint64)}
}

func (r *Registry) registerHistogram(name string, buckets []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[name] = &histogram{
		buckets: buckets,
		counts:  make(map[string][]uint64),
		sums:    make(map[string]float64),
		totals:  make(map[string]uint64),
	}
}

func (r *Registry) registerGauge(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = &gauge{values: make(map[string]float64)}
}

// IncrementCounter increments a counter by 1 for the given label combination.
// Labels are formatted as: key1="value1",key2="value2"
func (r *Registry) IncrementCounter(name string, labels string) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	c.values[labels]++
	c.mu.Unlock()
}

// ObserveHistogram records a value in a histogram for the given labels.
func (r *Registry) ObserveHistogram(name string, labels string, value float64) {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.counts[labels]; !exists {
		h.counts[labels] = make([]uint64, len(h.buckets)+1) // +1 for +Inf
	}

	h.sums[labels] += value
	h.totals[labels]++

	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[labels][i]++
		}
	}
	h.counts[labels][len(h.buckets)]++
}

// SetGauge sets a gauge to a specific value.
func (r *Registry) SetGauge(name string, labels string, value float64) {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.values[labels] = value
	g.mu.Unlock()
}

// IncrementGauge adds delta to a gauge.
func (r *Registry) IncrementGauge(name string, labels string, delta float64) {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.values[labels] += delta
	g.mu.Unlock()
}

// WritePrometheus writes all metrics in Prometheus text format.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.RLock()
		if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", name); err != nil {
			c.mu.RUnlock()
			return err
		}
		for _, l := range sortedKeys(c.values) {
			if err := writeSample(w, name, l, fmt.Sprintf("%d", c.values[l])); err != nil {
				c.mu.RUnlock()
				return err
			}
		}
		c.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.RLock()
		if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", name); err != nil {
			g.mu.RUnlock()
			return err
		}
		for _, l := range sortedKeys(g.values) {
			if err := writeSample(w, name, l, fmt.Sprintf("%g", g.values[l])); err != nil {
				g.mu.RUnlock()
				return err
			}
		}
		g.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.histograms) {
		h := r.histograms[name]
		h.mu.RLock()
		if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", name); err != nil {
			h.mu.RUnlock()
			return err
		}
		for _, l := range sortedKeys(h.counts) {
			labelPrefix := ""
			if l != "" {
				labelPrefix = l + ","
			}
			var cumulative uint64
			for i, bound := range h.buckets {
				cumulative += h.counts[l][i]
				if _, err := fmt.Fprintf(w, "%s_bucket{%sle=\"%g\"} %d\n", name, labelPrefix, bound, cumulative); err != nil {
					h.mu.RUnlock()
					return err
				}
			}
			cumulative += h.counts[l][len(h.buckets)]
			if _, err := fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", name, labelPrefix, cumulative); err != nil {
				h.mu.RUnlock()
				return err
			}
			if err := writeSample(w, name+"_sum", l, fmt.Sprintf("%g", h.sums[l])); err != nil {
				h.mu.RUnlock()
				return err
			}
			if err := writeSample(w, name+"_count", l, fmt.Sprintf("%d", h.totals[l])); err != nil {
				h.mu.RUnlock()
				return err
			}
		}
		h.mu.RUnlock()
	}

	return nil
}

func writeSample(w io.Writer, name, labels, value string) error {
	var err error
	if labels == "" {
		_, err = fmt.Fprintf(w, "%s %s\n", name, value)
	} else {
		_, err = fmt.Fprintf(w, "%s{%s} %s\n", name, labels, value)
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordToolCall records one tool invocation with count and latency.
// This is the main instrumentation entry point for the dispatch layer.
func (r *Registry) RecordToolCall(tool string, status string, duration time.Duration) {
	labels := fmt.Sprintf(`tool="%s",status="%s"`, tool, status)
	r.IncrementCounter("agent_tool_calls_total", labels)

	toolLabels := fmt.Sprintf(`tool="%s"`, tool)
	r.ObserveHistogram("agent_tool_duration_seconds", toolLabels, duration.Seconds())
}

// RecordLocatorResolution records a locator outcome and its latency.
func (r *Registry) RecordLocatorResolution(outcome string, duration time.Duration) {
	r.IncrementCounter("agent_locator_resolutions_total", fmt.Sprintf(`outcome="%s"`, outcome))
	r.ObserveHistogram("agent_locator_duration_seconds", "", duration.Seconds())
}

// RecordRecorderEvent counts one emitted recorder event by type.
func (r *Registry) RecordRecorderEvent(eventType string) {
	r.IncrementCounter("agent_recorder_events_total", fmt.Sprintf(`type="%s"`, eventType))
}

// RecordRecorderDrop counts one dropped recorder event or request.
func (r *Registry) RecordRecorderDrop(stage string) {
	r.IncrementCounter("agent_recorder_dropped_total", fmt.Sprintf(`stage="%s"`, stage))
}

// SetRecorderQueueDepth reports the hook-to-processor queue occupancy.
func (r *Registry) SetRecorderQueueDepth(depth int) {
	r.SetGauge("agent_recorder_queue_depth", "", float64(depth))
}

// Global registry instance
var defaultRegistry = NewRegistry()

// Default returns the global registry.
func Default() *Registry {
	return defaultRegistry
}
