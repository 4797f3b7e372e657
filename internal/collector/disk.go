package collector

import (
	"context"

	"codeberg.org/mutker/macstatd/internal/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

// CollectDisk reports free and total space of the root volume in decimal
// gigabytes.
func CollectDisk(ctx context.Context) (DiskInfo, error) {
	stat, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		errFactory := errors.New()
		return DiskInfo{}, errFactory.Wrap(ErrDiskRead, err)
	}

	return DiskInfo{
		FreeGB:  float64(stat.Free) / bytesPerGB,
		TotalGB: float64(stat.Total) / bytesPerGB,
	}, nil
}
