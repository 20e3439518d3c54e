package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sample is one point-in-time reading for a target. Samples are immutable
// once emitted; the newest sample per target is the "latest" value shown to
// consumers. Optional fields (gpu, top_processes, load) are omitted when
// collection is unavailable rather than treated as errors.
type Sample struct {
	Target        string        `json:"target"`
	TS            time.Time     `json:"ts"`
	CPUPercent    float64       `json:"cpu_percent"`
	MemPercent    float64       `json:"mem_percent"`
	Disk          []DiskUsage   `json:"disk"`
	Net           NetCounters   `json:"net"`
	GPU           []GPUStat     `json:"gpu,omitempty"`
	Load          *LoadAvg      `json:"load,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	TopProcesses  []ProcessStat `json:"top_processes,omitempty"`
}

type DiskUsage struct {
	Mount     string  `json:"mount"`
	Percent   float64 `json:"percent"`
	FreeBytes uint64  `json:"free_bytes"`
}

type NetCounters struct {
	BytesSent uint64 `json:"bytes_sent"`
	BytesRecv uint64 `json:"bytes_recv"`
}

type GPUStat struct {
	Index      int     `json:"index"`
	Percent    float64 `json:"percent"`
	TempC      float64 `json:"temp_c"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemTotalMB float64 `json:"mem_total_mb"`
}

type LoadAvg struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

type ProcessStat struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float32 `json:"mem_percent"`
}

// SampleRecord is the durable mirror of a Sample. Rows older than the
// configured retention are pruned on a maintenance cadence.
type SampleRecord struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Target        string         `gorm:"not null;index:idx_sample_target_ts" json:"target"`
	TS            time.Time      `gorm:"not null;index:idx_sample_target_ts" json:"ts"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemPercent    float64        `json:"mem_percent"`
	NetBytesSent  uint64         `json:"net_bytes_sent"`
	NetBytesRecv  uint64         `json:"net_bytes_recv"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Disk          datatypes.JSON `json:"disk"`
	GPU           datatypes.JSON `json:"gpu"`
}

// Point is one value of a target/metric series, ordered oldest first.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}
