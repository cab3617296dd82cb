package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	at := time.Unix(1_760_000_000, 0)
	m.ObserveRun("inventory-reconcile", JobResultFindings, 250*time.Millisecond, at)
	m.ObserveRun("inventory-reconcile", JobResultFailure, time.Second, at.Add(time.Hour))
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "assetledger_cron_job_runs_total", "result", JobResultFindings)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
	got, err = fetchCounterValue(mfs, "assetledger_cron_job_runs_total", "result", JobResultFailure)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	sum, err := fetchHistogramSum(mfs, "assetledger_cron_job_duration_seconds", "job", "inventory-reconcile")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, sum, 1e-9)

	last := findMetricFamily(mfs, "assetledger_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	assert.Equal(t, float64(at.Unix()), last.GetMetric()[0].GetGauge().GetValue())

	skipped := findMetricFamily(mfs, "assetledger_cron_cycles_skipped_total")
	require.NotNil(t, skipped)
	assert.Equal(t, 1.0, skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", JobResultSuccess, time.Second, time.Now())
	m.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("x", JobResultSuccess, time.Second, time.Now())
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
