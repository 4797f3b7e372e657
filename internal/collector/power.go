package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/macstatd/internal/command"
)

// Tier-3 model constants: idle floor and full-load ceiling of the quadratic
// power curve, in watts.
const (
	estimateIdleWatts    = 5.0
	estimateCeilingWatts = 85.0
)

// powerToolPaths are the known install locations of the power-metrics
// helper, probed in order; the bare name falls back to $PATH.
var powerToolPaths = []string{
	"/opt/homebrew/bin/macmon",
	"/usr/local/bin/macmon",
	"/opt/local/bin/macmon",
	"macmon",
}

var (
	instantPowerRe = regexp.MustCompile(`InstantaneousPower\s*=\s*(\d+)`)
	wattageRe      = regexp.MustCompile(`Wattage\s*=\s*(\d+)`)
	voltageRe      = regexp.MustCompile(`Voltage\s*=\s*(\d+)`)
	currentRe      = regexp.MustCompile(`Current\s*=\s*(\d+)`)
)

// toolSample is one structured sample from the power-metrics helper.
type toolSample struct {
	CPUPower    float64  `json:"cpu_power"`
	GPUPower    float64  `json:"gpu_power"`
	ANEPower    float64  `json:"ane_power"`
	RAMPower    float64  `json:"ram_power"`
	GPURAMPower float64  `json:"gpu_ram_power"`
	SysPower    *float64 `json:"sys_power"`
	Temp        struct {
		CPUTempAvg float64 `json:"cpu_temp_avg"`
	} `json:"temp"`
}

// PowerCollector reports system power draw through a three-tier fallback:
// the external power-metrics helper, the AC adapter registry, and a modeled
// estimate from CPU utilization. The last tier is pure computation, so a
// result is always produced.
type PowerCollector struct {
	mu       sync.Mutex
	toolPath string
	runner   command.Runner
	now      func() time.Time
}

func NewPowerCollector(runner command.Runner) *PowerCollector {
	return &PowerCollector{
		runner: runner,
		now:    time.Now,
	}
}

// Collect returns the current power draw and, when the helper tool provided
// one, the SoC average temperature in Celsius (0 otherwise). cpuUsage feeds
// the tier-3 model.
func (p *PowerCollector) Collect(ctx context.Context, cpuUsage float64) (PowerConsumptionInfo, float64) {
	if info, temp, ok := p.collectFromTool(ctx); ok {
		return info, temp
	}

	if info, ok := p.collectFromAdapter(ctx); ok {
		return info, 0
	}

	return p.estimate(cpuUsage), 0
}

func (p *PowerCollector) collectFromTool(ctx context.Context) (PowerConsumptionInfo, float64, bool) {
	for _, path := range p.toolCandidates() {
		sample, err := p.sampleTool(ctx, path)
		if err != nil {
			continue
		}

		p.setToolPath(path)

		info := PowerConsumptionInfo{
			CPUWatts:  sample.CPUPower,
			GPUWatts:  sample.GPUPower,
			Timestamp: p.now(),
		}
		if sample.SysPower != nil {
			info.TotalWatts = *sample.SysPower
		} else {
			info.TotalWatts = sample.CPUPower + sample.GPUPower + sample.ANEPower +
				sample.RAMPower + sample.GPURAMPower
			info.IsEstimate = true
		}

		return info, sample.Temp.CPUTempAvg, true
	}

	p.setToolPath("")

	return PowerConsumptionInfo{}, 0, false
}

// toolCandidates returns only the cached path once one has worked; a failure
// clears the cache so the full list is probed again next cycle.
func (p *PowerCollector) toolCandidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.toolPath != "" {
		return []string{p.toolPath}
	}

	return powerToolPaths
}

func (p *PowerCollector) setToolPath(path string) {
	p.mu.Lock()
	p.toolPath = path
	p.mu.Unlock()
}

func (p *PowerCollector) sampleTool(ctx context.Context, path string) (toolSample, error) {
	out, err := p.runner.Output(ctx, path, "pipe", "-s", "1")
	if err != nil {
		return toolSample{}, err
	}

	var sample toolSample
	line := bytes.TrimSpace(out)
	if idx := bytes.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if err := json.Unmarshal(line, &sample); err != nil {
		return toolSample{}, err
	}

	return sample, nil
}

// collectFromAdapter reads the AC adapter descriptor. An instantaneous
// power field wins over the rated wattage; without either, watts are
// computed from millivolts and milliamps. The adapter wattage is split into
// nominal CPU (40%) and GPU (20%) shares.
func (p *PowerCollector) collectFromAdapter(ctx context.Context) (PowerConsumptionInfo, bool) {
	out, err := p.runner.Output(ctx, "pmset", "-g", "ac")
	if err != nil {
		return PowerConsumptionInfo{}, false
	}

	watts, ok := adapterWatts(out)
	if !ok || watts <= 0 {
		return PowerConsumptionInfo{}, false
	}

	return PowerConsumptionInfo{
		CPUWatts:   watts * 0.40,
		GPUWatts:   watts * 0.20,
		TotalWatts: watts,
		Timestamp:  p.now(),
	}, true
}

func adapterWatts(out []byte) (float64, bool) {
	if m := instantPowerRe.FindSubmatch(out); m != nil {
		return parseWatts(m[1])
	}

	if m := wattageRe.FindSubmatch(out); m != nil {
		return parseWatts(m[1])
	}

	v := voltageRe.FindSubmatch(out)
	c := currentRe.FindSubmatch(out)
	if v != nil && c != nil {
		mv, errV := strconv.ParseFloat(string(v[1]), 64)
		ma, errC := strconv.ParseFloat(string(c[1]), 64)
		if errV == nil && errC == nil {
			return (mv / 1000) * (ma / 1000), true
		}
	}

	return 0, false
}

func parseWatts(raw []byte) (float64, bool) {
	w, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}

	return w, true
}

// estimate maps CPU utilization through a quadratic curve between the idle
// floor and the full-load ceiling. The CPU share grows from 45% to 50% with
// load while the GPU share shrinks from 20% to 15%.
func (p *PowerCollector) estimate(cpuUsage float64) PowerConsumptionInfo {
	switch {
	case cpuUsage < 0:
		cpuUsage = 0
	case cpuUsage > 100:
		cpuUsage = 100
	}

	load := cpuUsage / 100
	total := estimateIdleWatts + (estimateCeilingWatts-estimateIdleWatts)*load*load

	return PowerConsumptionInfo{
		CPUWatts:   total * (0.45 + 0.05*load),
		GPUWatts:   total * (0.20 - 0.05*load),
		TotalWatts: total,
		Timestamp:  p.now(),
		IsEstimate: true,
	}
}
