package insight

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

const (
	// DefaultWindow is the trailing baseline window.
	DefaultWindow = 60 * time.Second
	// DefaultZThreshold is the |z| at which a value becomes anomalous.
	DefaultZThreshold = 2.0
	// minSamples guards the cold start: fewer points yields no verdict.
	minSamples = 5
)

// Hard ceilings per metric family. A value at or above its ceiling is
// critical regardless of how the baseline looks.
var ceilings = []struct {
	prefix  string
	ceiling float64
}{
	{models.MetricCPUPercent, 98},
	{models.MetricMemPercent, 97},
	{"disk_percent:", 95},
	{"gpu_temp_c:", 92},
}

// Detector flags samples that are statistical outliers against a rolling
// per-metric baseline. Series are evicted by age, not by count, so the
// baseline always reflects the configured window regardless of sampling
// cadence.
type Detector struct {
	mu         sync.Mutex
	window     time.Duration
	zThreshold float64
	series     map[seriesKey][]models.Point
}

type seriesKey struct {
	target string
	metric string
}

func NewDetector(window time.Duration, zThreshold float64) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if zThreshold <= 0 {
		zThreshold = DefaultZThreshold
	}
	return &Detector{
		window:     window,
		zThreshold: zThreshold,
		series:     make(map[seriesKey][]models.Point),
	}
}

// Observe folds a sample into the rolling windows and returns the insight
// for the current tick. Insights are not stored: only the snapshot computed
// from the newest sample is meaningful.
func (d *Detector) Observe(sample *models.Sample) models.Insight {
	d.mu.Lock()
	defer d.mu.Unlock()

	var anomalies []models.Anomaly
	for _, mv := range models.Metrics(sample) {
		if !evaluated(mv.Metric) {
			continue
		}
		key := seriesKey{sample.Target, mv.Metric}
		points := d.advance(key, models.Point{TS: sample.TS, Value: mv.Value})
		if a := evaluate(mv.Metric, points, d.zThreshold); a != nil {
			anomalies = append(anomalies, *a)
		}
	}

	summary := "all metrics nominal"
	if n := len(anomalies); n > 0 {
		summary = fmt.Sprintf("%d metric(s) outside baseline", n)
	}
	return models.Insight{Summary: summary, Anomalies: anomalies}
}

// DropTarget forgets all series of a target.
func (d *Detector) DropTarget(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.series {
		if key.target == target {
			delete(d.series, key)
		}
	}
}

// advance appends the newest point and evicts everything older than the
// window relative to it.
func (d *Detector) advance(key seriesKey, p models.Point) []models.Point {
	points := append(d.series[key], p)
	cutoff := p.TS.Add(-d.window)
	start := 0
	for start < len(points) && points[start].TS.Before(cutoff) {
		start++
	}
	points = points[start:]
	d.series[key] = points
	return points
}

// evaluate decides whether the newest point of a series is anomalous. The
// baseline excludes the newest point so a genuine spike cannot drag its own
// reference toward itself.
func evaluate(metric string, points []models.Point, zThreshold float64) *models.Anomaly {
	if len(points) < minSamples {
		return nil
	}

	latest := points[len(points)-1].Value
	baseline := points[:len(points)-1]

	mean, stddev := stats(baseline)
	if stddev == 0 {
		// Flat series: no divide-by-zero, no spurious flags.
		return nil
	}

	z := (latest - mean) / stddev
	if math.Abs(z) < zThreshold {
		return nil
	}

	severity := models.SeverityWarn
	if math.Abs(z) >= 2*zThreshold || aboveCeiling(metric, latest) {
		severity = models.SeverityCrit
	}
	return &models.Anomaly{
		Metric:   metric,
		Severity: severity,
		Message:  fmt.Sprintf("%s at %.1f deviates from baseline %.1f (z=%.2f)", metric, latest, mean, z),
	}
}

// stats returns mean and population standard deviation.
func stats(points []models.Point) (mean, stddev float64) {
	n := float64(len(points))
	for _, p := range points {
		mean += p.Value
	}
	mean /= n

	var variance float64
	for _, p := range points {
		d := p.Value - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func aboveCeiling(metric string, value float64) bool {
	for _, c := range ceilings {
		if strings.HasPrefix(metric, c.prefix) && value >= c.ceiling {
			return true
		}
	}
	return false
}

// evaluated reports whether a metric participates in anomaly detection.
// Raw network byte counters grow monotonically and have no meaningful
// z-score, so they are tracked for charts but never flagged.
func evaluated(metric string) bool {
	switch {
	case metric == models.MetricCPUPercent, metric == models.MetricMemPercent:
		return true
	case strings.HasPrefix(metric, "disk_percent:"),
		strings.HasPrefix(metric, "gpu_percent:"),
		strings.HasPrefix(metric, "gpu_temp_c:"):
		return true
	}
	return false
}
