package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerCollectorToolWithSystemPower(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["/opt/homebrew/bin/macmon pipe -s 1"] = `{"cpu_power":4.2,"gpu_power":1.1,"ane_power":0.1,"ram_power":0.8,"gpu_ram_power":0.2,"sys_power":12.5,"temp":{"cpu_temp_avg":48.5}}`

	p := NewPowerCollector(runner)
	info, temp := p.Collect(context.Background(), 50)

	assert.False(t, info.IsEstimate)
	assert.Equal(t, 12.5, info.TotalWatts)
	assert.Equal(t, 4.2, info.CPUWatts)
	assert.Equal(t, 1.1, info.GPUWatts)
	assert.Equal(t, 48.5, temp)
	assert.False(t, info.Timestamp.IsZero())
}

func TestPowerCollectorToolWithoutSystemPower(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["/usr/local/bin/macmon pipe -s 1"] = `{"cpu_power":4.0,"gpu_power":1.0,"ane_power":0.5,"ram_power":0.5,"gpu_ram_power":0.25,"temp":{"cpu_temp_avg":42.0}}`

	p := NewPowerCollector(runner)
	info, temp := p.Collect(context.Background(), 50)

	assert.True(t, info.IsEstimate)
	assert.InDelta(t, 6.25, info.TotalWatts, 0.001)
	assert.Equal(t, 42.0, temp)
}

func TestPowerCollectorCachesToolPath(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["/usr/local/bin/macmon pipe -s 1"] = `{"cpu_power":1.0,"gpu_power":1.0,"sys_power":5.0}`

	p := NewPowerCollector(runner)
	p.Collect(context.Background(), 10)
	firstProbes := len(runner.calls)

	p.Collect(context.Background(), 10)

	// the second cycle goes straight to the cached path
	assert.Equal(t, firstProbes+1, len(runner.calls))
	assert.Equal(t, "/usr/local/bin/macmon pipe -s 1", runner.calls[len(runner.calls)-1])
}

func TestPowerCollectorAdapterWattage(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["pmset -g ac"] = ` AC Charger Information:
 Connected = TRUE
 Wattage = 96
`

	p := NewPowerCollector(runner)
	info, temp := p.Collect(context.Background(), 50)

	assert.False(t, info.IsEstimate)
	assert.Equal(t, 96.0, info.TotalWatts)
	assert.InDelta(t, 38.4, info.CPUWatts, 0.001)
	assert.InDelta(t, 19.2, info.GPUWatts, 0.001)
	assert.Zero(t, temp)
}

func TestPowerCollectorAdapterVoltsAmps(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["pmset -g ac"] = ` AC Charger Information:
 Connected = TRUE
 Voltage = 20000
 Current = 4500
`

	p := NewPowerCollector(runner)
	info, _ := p.Collect(context.Background(), 50)

	assert.False(t, info.IsEstimate)
	assert.InDelta(t, 90.0, info.TotalWatts, 0.001)
}

func TestPowerCollectorEstimateCurve(t *testing.T) {
	p := NewPowerCollector(newFakeRunner())

	idle, _ := p.Collect(context.Background(), 0)
	assert.True(t, idle.IsEstimate)
	assert.InDelta(t, 5.0, idle.TotalWatts, 0.001)
	assert.InDelta(t, 5.0*0.45, idle.CPUWatts, 0.001)
	assert.InDelta(t, 5.0*0.20, idle.GPUWatts, 0.001)

	full, _ := p.Collect(context.Background(), 100)
	assert.InDelta(t, 85.0, full.TotalWatts, 0.001)
	assert.InDelta(t, 85.0*0.50, full.CPUWatts, 0.001)
	assert.InDelta(t, 85.0*0.15, full.GPUWatts, 0.001)
}

func TestPowerCollectorEstimateMonotonic(t *testing.T) {
	p := NewPowerCollector(newFakeRunner())

	prev := -1.0
	for usage := 0.0; usage <= 100; usage += 10 {
		info, _ := p.Collect(context.Background(), usage)
		assert.GreaterOrEqual(t, info.TotalWatts, prev)
		prev = info.TotalWatts
	}
}

func TestPowerCollectorEstimateClampsInput(t *testing.T) {
	p := NewPowerCollector(newFakeRunner())

	under, _ := p.Collect(context.Background(), -20)
	assert.InDelta(t, 5.0, under.TotalWatts, 0.001)

	over, _ := p.Collect(context.Background(), 250)
	assert.InDelta(t, 85.0, over.TotalWatts, 0.001)
}
