package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.RecordRequest("tools/list", "stdio", "ok", 10*time.Millisecond)
	m.RecordRequest("tools/list", "stdio", "error", 20*time.Millisecond)
	m.RecordToolCall("search", "ok", 5*time.Millisecond)
	m.RecordTransportEvent("sse", "reconnect")
	m.RecordLaunch(2 * time.Second)
	m.ProcessStarted()
	m.ProcessStarted()
	m.ProcessStopped()
	m.RecordError("timeout")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]bool)
	for _, f := range families {
		byName[f.GetName()] = true
	}
	assert.True(t, byName["test_request_duration_seconds"])
	assert.True(t, byName["test_requests_total"])
	assert.True(t, byName["test_tool_call_duration_seconds"])
	assert.True(t, byName["test_transport_events_total"])
	assert.True(t, byName["test_launch_duration_seconds"])
	assert.True(t, byName["test_active_processes"])
	assert.True(t, byName["test_errors_total"])

	for _, f := range families {
		if f.GetName() == "test_active_processes" {
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, float64(1), f.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("tools/list", "stdio", "ok", time.Millisecond)
	m.RecordToolCall("search", "ok", time.Millisecond)
	m.RecordTransportEvent("sse", "connect")
	m.RecordLaunch(time.Second)
	m.ProcessStarted()
	m.ProcessStopped()
	m.RecordError("process")
}
