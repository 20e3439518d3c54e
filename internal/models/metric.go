package models

import "strconv"

// Metric names shared by the history rings and the anomaly detector.
const (
	MetricCPUPercent   = "cpu_percent"
	MetricMemPercent   = "mem_percent"
	MetricNetBytesSent = "net_bytes_sent"
	MetricNetBytesRecv = "net_bytes_recv"
)

// DiskMetric names the per-mount disk usage series, e.g. "disk_percent:/".
func DiskMetric(mount string) string {
	return "disk_percent:" + mount
}

// GPUMetric names the per-device utilization series, e.g. "gpu_percent:0".
func GPUMetric(index int) string {
	return "gpu_percent:" + strconv.Itoa(index)
}

// GPUTempMetric names the per-device temperature series.
func GPUTempMetric(index int) string {
	return "gpu_temp_c:" + strconv.Itoa(index)
}

// MetricValue is one (metric, value) pair extracted from a sample.
type MetricValue struct {
	Metric string
	Value  float64
}

// Metrics flattens a sample into the series tracked per target. Every
// anomaly the detector emits references one of these names, so the set here
// is the single source of what "a metric" means.
func Metrics(s *Sample) []MetricValue {
	out := []MetricValue{
		{MetricCPUPercent, s.CPUPercent},
		{MetricMemPercent, s.MemPercent},
		{MetricNetBytesSent, float64(s.Net.BytesSent)},
		{MetricNetBytesRecv, float64(s.Net.BytesRecv)},
	}
	for _, d := range s.Disk {
		out = append(out, MetricValue{DiskMetric(d.Mount), d.Percent})
	}
	for _, g := range s.GPU {
		out = append(out, MetricValue{GPUMetric(g.Index), g.Percent})
		out = append(out, MetricValue{GPUTempMetric(g.Index), g.TempC})
	}
	return out
}
