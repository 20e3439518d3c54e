package sampler

import (
	"sort"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// topProcessCount bounds the per-sample process list.
const topProcessCount = 5

// Collect gathers one sample for the local system. Optional readings that
// fail (no GPU, no permission for a mount) are omitted from the sample,
// never treated as errors.
func Collect(target string) *models.Sample {
	s := &models.Sample{Target: target, TS: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
	}
	if parts, err := disk.Partitions(false); err == nil {
		for _, p := range parts {
			usage, err := disk.Usage(p.Mountpoint)
			if err != nil {
				continue
			}
			s.Disk = append(s.Disk, models.DiskUsage{
				Mount:     p.Mountpoint,
				Percent:   usage.UsedPercent,
				FreeBytes: usage.Free,
			})
		}
	}
	if counters, err := net.IOCounters(false); err == nil && len(counters) > 0 {
		s.Net = models.NetCounters{
			BytesSent: counters[0].BytesSent,
			BytesRecv: counters[0].BytesRecv,
		}
	}
	if up, err := host.Uptime(); err == nil {
		s.UptimeSeconds = int64(up)
	}
	if avg, err := load.Avg(); err == nil {
		s.Load = &models.LoadAvg{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}
	s.GPU = collectGPU()
	s.TopProcesses = topProcesses()
	return s
}

func topProcesses() []models.ProcessStat {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}

	stats := make([]models.ProcessStat, 0, len(procs))
	for _, p := range procs {
		cpuPct, err := p.CPUPercent()
		if err != nil {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		memPct, _ := p.MemoryPercent()
		stats = append(stats, models.ProcessStat{
			PID:        p.Pid,
			Name:       name,
			CPUPercent: cpuPct,
			MemPercent: memPct,
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].CPUPercent > stats[j].CPUPercent })
	if len(stats) > topProcessCount {
		stats = stats[:topProcessCount]
	}
	return stats
}
