package sampler

import (
	"context"

	"codeberg.org/mutker/macstatd/internal/collector"
)

// CPUSource reports host CPU utilization in percent.
type CPUSource interface {
	Collect(ctx context.Context) (float64, error)
}

// NetworkSource reports throughput for an interface selection and can
// atomically reseed its counter baseline.
type NetworkSource interface {
	Collect(ctx context.Context, selected string) (collector.NetworkRates, error)
	Refresh(ctx context.Context) error
}

// ProcessSource ranks processes by CPU and by memory.
type ProcessSource interface {
	TopCPU(ctx context.Context, n int) ([]collector.ProcessEntry, error)
	TopMemory(ctx context.Context, n int) ([]collector.ProcessEntry, error)
}

// PowerRegistrySource reads UPS and battery state from the platform power
// registry.
type PowerRegistrySource interface {
	CollectUPS(ctx context.Context) (collector.UPSInfo, error)
	CollectBattery(ctx context.Context) (collector.BatteryInfo, error)
}

// PowerDrawSource reports power draw; the second return value is the SoC
// temperature in Celsius when the source provides one, 0 otherwise.
type PowerDrawSource interface {
	Collect(ctx context.Context, cpuUsage float64) (collector.PowerConsumptionInfo, float64)
}

// SystemSource reports host identity and lifetime facts.
type SystemSource interface {
	Collect(ctx context.Context) (collector.SystemInfo, error)
}

// Observer is invoked synchronously after every full-snapshot publication.
type Observer interface {
	Observe(snapshot collector.Snapshot)
}
