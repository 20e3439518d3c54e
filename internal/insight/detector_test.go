package insight

import (
	"testing"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func observeCPU(d *Detector, values []float64) models.Insight {
	var last models.Insight
	for i, v := range values {
		last = d.Observe(&models.Sample{
			Target:     models.SystemTarget,
			TS:         t0.Add(time.Duration(i) * 5 * time.Second),
			CPUPercent: v,
		})
	}
	return last
}

func cpuAnomaly(in models.Insight) *models.Anomaly {
	for i := range in.Anomalies {
		if in.Anomalies[i].Metric == models.MetricCPUPercent {
			return &in.Anomalies[i]
		}
	}
	return nil
}

func TestFlatSeriesNeverAnomalous(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	in := observeCPU(d, []float64{50, 50, 50, 50, 50, 50})
	assert.Empty(t, in.Anomalies)
	assert.Equal(t, "all metrics nominal", in.Summary)
}

func TestFlatBaselineSpikeSkipped(t *testing.T) {
	// The baseline excludes the newest sample, so a spike after a flat
	// run still hits the sigma=0 guard.
	d := NewDetector(60*time.Second, 2.0)
	in := observeCPU(d, []float64{50, 50, 50, 50, 99})
	assert.Empty(t, in.Anomalies)
}

func TestWarnBand(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	// baseline mean 50, stddev ~1.41; z(53) ~2.12 sits in [z, 2z).
	in := observeCPU(d, []float64{48, 50, 52, 50, 53})
	a := cpuAnomaly(in)
	require.NotNil(t, a)
	assert.Equal(t, models.SeverityWarn, a.Severity)
	assert.Contains(t, a.Message, "cpu_percent")
}

func TestCritBand(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	// z(57) ~4.95 >= 2 * threshold.
	in := observeCPU(d, []float64{48, 50, 52, 50, 57})
	a := cpuAnomaly(in)
	require.NotNil(t, a)
	assert.Equal(t, models.SeverityCrit, a.Severity)
}

func TestHardCeilingEscalatesDisk(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	var last models.Insight
	// Warn-band z-score, but the raw value crosses the 95% disk ceiling.
	values := []float64{91, 95, 93, 94, 97.4}
	for i, v := range values {
		last = d.Observe(&models.Sample{
			Target: models.SystemTarget,
			TS:     t0.Add(time.Duration(i) * 5 * time.Second),
			Disk:   []models.DiskUsage{{Mount: "/", Percent: v}},
		})
	}
	var a *models.Anomaly
	for i := range last.Anomalies {
		if last.Anomalies[i].Metric == models.DiskMetric("/") {
			a = &last.Anomalies[i]
		}
	}
	require.NotNil(t, a)
	assert.Equal(t, models.SeverityCrit, a.Severity)
}

func TestColdStartSuppressed(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	in := observeCPU(d, []float64{48, 50, 52, 99})
	assert.Empty(t, in.Anomalies)
}

func TestWindowEvictionIsTimeBased(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	observeCPU(d, []float64{48, 50, 52, 50, 51})

	// After a gap larger than the window the old baseline is gone, so
	// even a wild value restarts from the cold-start guard.
	in := d.Observe(&models.Sample{
		Target:     models.SystemTarget,
		TS:         t0.Add(10 * time.Minute),
		CPUPercent: 99,
	})
	assert.Empty(t, in.Anomalies)
}

func TestAnomalyReferencesSampleMetric(t *testing.T) {
	d := NewDetector(60*time.Second, 2.0)
	in := observeCPU(d, []float64{48, 50, 52, 50, 57})
	sample := &models.Sample{CPUPercent: 57}
	names := map[string]bool{}
	for _, mv := range models.Metrics(sample) {
		names[mv.Metric] = true
	}
	for _, a := range in.Anomalies {
		assert.True(t, names[a.Metric], "anomaly %q must reference a sample metric", a.Metric)
	}
}
