package collector

import (
	"context"

	"codeberg.org/mutker/macstatd/internal/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1e9

// CollectMemory reports used and total physical memory in decimal gigabytes.
func CollectMemory(ctx context.Context) (MemoryInfo, error) {
	stat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		errFactory := errors.New()
		return MemoryInfo{}, errFactory.Wrap(ErrMemoryRead, err)
	}

	return MemoryInfo{
		UsedGB:  float64(stat.Used) / bytesPerGB,
		TotalGB: float64(stat.Total) / bytesPerGB,
	}, nil
}
