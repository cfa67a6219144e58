// Copyright 2025 Joseph Cumines

package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestRecordToolCall(t *testing.T) {
	r := NewRegistry()
	r.RecordToolCall("click_element", "success", 30*time.Millisecond)
	r.RecordToolCall("click_element", "success", 70*time.Millisecond)
	r.RecordToolCall("click_element", "error", 10*time.Millisecond)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		`agent_tool_calls_total{tool="click_element",status="success"} 2`,
		`agent_tool_calls_total{tool="click_element",status="error"} 1`,
		`agent_tool_duration_seconds_count{tool="click_element"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestHistogramBucketsCumulative(t *testing.T) {
	r := NewRegistry()
	r.ObserveHistogram("agent_locator_duration_seconds", "", 0.003)
	r.ObserveHistogram("agent_locator_duration_seconds", "", 0.2)
	r.ObserveHistogram("agent_locator_duration_seconds", "", 20.0) // beyond last bound

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	tests := []struct {
		line string
	}{
		{`agent_locator_duration_seconds_bucket{le="0.001"} 0`},
		{`agent_locator_duration_seconds_bucket{le="0.005"} 1`},
		{`agent_locator_duration_seconds_bucket{le="0.25"} 2`},
		{`agent_locator_duration_seconds_bucket{le="10"} 2`},
		{`agent_locator_duration_seconds_bucket{le="+Inf"} 3`},
		{`agent_locator_duration_seconds_count 3`},
	}
	for _, tt := range tests {
		if !strings.Contains(out, tt.line) {
			t.Errorf("output missing %q\n%s", tt.line, out)
		}
	}
}

func TestGauges(t *testing.T) {
	r := NewRegistry()
	r.SetRecorderQueueDepth(5)
	r.IncrementGauge("agent_workflow_steps_active", "", 2)
	r.IncrementGauge("agent_workflow_steps_active", "", -1)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := sb.String()

	if !strings.Contains(out, "agent_recorder_queue_depth 5") {
		t.Errorf("queue depth gauge missing:\n%s", out)
	}
	if !strings.Contains(out, "agent_workflow_steps_active 1") {
		t.Errorf("workflow gauge missing:\n%s", out)
	}
}

func TestUnknownMetricsIgnored(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("nonexistent", "")
	r.ObserveHistogram("nonexistent", "", 1)
	r.SetGauge("nonexistent", "", 1)

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if strings.Contains(sb.String(), "nonexistent") {
		t.Errorf("unregistered metric leaked into output:\n%s", sb.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.RecordRecorderEvent("Click")
				r.RecordLocatorResolution("found", time.Millisecond)
				r.SetRecorderQueueDepth(j)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(sb.String(), `agent_recorder_events_total{type="Click"} 800`) {
		t.Errorf("expected 800 recorder events:\n%s", sb.String())
	}
}
