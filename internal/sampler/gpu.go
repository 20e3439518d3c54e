package sampler

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hostpulse/hostpulse/internal/models"
)

const gpuQueryTimeout = 2 * time.Second

// collectGPU shells out to nvidia-smi. Machines without NVIDIA hardware
// return nil, which drops the gpu field from the sample entirely.
func collectGPU() []models.GPUStat {
	ctx, cancel := context.WithTimeout(context.Background(), gpuQueryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil
	}
	return parseNvidiaSMI(string(out))
}

// parseNvidiaSMI parses one CSV row per GPU:
//
//	0, 37, 61, 4096, 24576
func parseNvidiaSMI(out string) []models.GPUStat {
	var gpus []models.GPUStat
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		util, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		temp, _ := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		memUsed, _ := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		memTotal, _ := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		gpus = append(gpus, models.GPUStat{
			Index:      idx,
			Percent:    util,
			TempC:      temp,
			MemUsedMB:  memUsed,
			MemTotalMB: memTotal,
		})
	}
	return gpus
}
