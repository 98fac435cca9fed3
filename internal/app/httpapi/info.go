package httpapi

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// infoProvider assembles the /info payload: service identity plus host
// statistics.
type infoProvider struct {
	version    string
	chainCount int
	startedAt  time.Time
}

func newInfoProvider(version string, chainCount int) *infoProvider {
	if version == "" {
		version = "dev"
	}
	return &infoProvider{
		version:    version,
		chainCount: chainCount,
		startedAt:  time.Now(),
	}
}

func (p *infoProvider) snapshot() map[string]any {
	info := map[string]any{
		"service": "tvl-service",
		"version": p.version,
		"uptime":  time.Since(p.startedAt).Round(time.Second).String(),
		"chains":  p.chainCount,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = map[string]any{
			"total_bytes":  vm.Total,
			"used_bytes":   vm.Used,
			"used_percent": vm.UsedPercent,
		}
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}

	return info
}
