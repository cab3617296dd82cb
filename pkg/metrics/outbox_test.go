package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetricsRecordsPasses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.ObservePass(3, 1, 0, 20*time.Millisecond)
	m.ObservePass(1, 0, 2, 10*time.Millisecond)
	m.IncPassFailure()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	published, err := fetchCounterValue(mfs, "assetledger_outbox_events_total", "outcome", "published")
	require.NoError(t, err)
	assert.Equal(t, 4.0, published)
	dead, err := fetchCounterValue(mfs, "assetledger_outbox_events_total", "outcome", "dead_lettered")
	require.NoError(t, err)
	assert.Equal(t, 2.0, dead)

	failures := findMetricFamily(mfs, "assetledger_outbox_pass_failures_total")
	require.NotNil(t, failures)
	assert.Equal(t, 1.0, failures.GetMetric()[0].GetCounter().GetValue())
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.ObservePass(1, 1, 1, time.Second)
	m.IncPassFailure()
	NewOutboxMetrics(nil).IncPassFailure()
}
