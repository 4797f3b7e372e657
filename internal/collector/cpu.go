package collector

import (
	"context"
	"sync"

	"codeberg.org/mutker/macstatd/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUCollector derives host utilization from kernel tick deltas. It is not
// reentrant: at most one sampling cycle may call Collect at a time, which the
// internal mutex enforces.
type CPUCollector struct {
	mu     sync.Mutex
	prev   cpu.TimesStat
	seeded bool
	times  func(ctx context.Context) ([]cpu.TimesStat, error)
}

func NewCPUCollector() *CPUCollector {
	return &CPUCollector{times: hostCPUTimes}
}

func hostCPUTimes(ctx context.Context) ([]cpu.TimesStat, error) {
	return cpu.TimesWithContext(ctx, false)
}

// Collect returns CPU utilization in percent. The first call seeds the tick
// baseline and returns 0; the baseline is re-seeded on every call, including
// when the delta is unusable.
func (c *CPUCollector) Collect(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	times, err := c.times(ctx)
	if err != nil {
		errFactory := errors.New()
		return 0, errFactory.Wrap(ErrCPURead, err)
	}
	if len(times) == 0 {
		errFactory := errors.New()
		return 0, errFactory.New(ErrCPURead)
	}

	cur := times[0]
	usage := 0.0
	if c.seeded {
		usage = usageBetween(c.prev, cur)
	}
	c.prev = cur
	c.seeded = true

	return usage, nil
}

func usageBetween(prev, cur cpu.TimesStat) float64 {
	user := cur.User - prev.User
	system := cur.System - prev.System
	nice := cur.Nice - prev.Nice
	idle := cur.Idle - prev.Idle

	total := user + system + idle + nice
	if total <= 0 {
		return 0
	}

	usage := (user + system + nice) / total * 100
	switch {
	case usage < 0:
		return 0
	case usage > 100:
		return 100
	}

	return usage
}
