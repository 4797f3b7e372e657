package collector

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
)

var (
	drawingFromRe   = regexp.MustCompile(`Now drawing from '([^']+)'`)
	chargePctRe     = regexp.MustCompile(`(\d+)%`)
	clockRemainRe   = regexp.MustCompile(`(\d+):(\d+) remaining`)
	registryFieldRe = regexp.MustCompile(`"(\w+)"\s*=\s*(\S+)`)
)

// timeToChargeUnknown is the registry sentinel for an unsettled estimate.
const timeToChargeUnknown = 65535

// PowerSourceCollector reads battery and UPS state from the platform power
// registry and the power-management CLI.
type PowerSourceCollector struct {
	runner command.Runner
}

func NewPowerSourceCollector(runner command.Runner) *PowerSourceCollector {
	return &PowerSourceCollector{runner: runner}
}

// CollectUPS reports the first attached UPS and the active power-source
// label. Without a UPS the result still carries the label, so subscribers
// can track AC/battery transitions on any hardware.
func (p *PowerSourceCollector) CollectUPS(ctx context.Context) (UPSInfo, error) {
	info := UPSInfo{
		PowerSource:   PowerSourceUnknown,
		TimeRemaining: TimeRemainingUnknown,
	}

	out, err := p.runner.Output(ctx, "pmset", "-g", "ps")
	if err != nil {
		errFactory := errors.New()
		return info, errFactory.Wrap(ErrPowerSourceRead, err)
	}

	info.PowerSource = parsePowerSourceLabel(out)

	for _, line := range strings.Split(string(out), "\n") {
		name, status, ok := parseSourceRow(line)
		if !ok || strings.Contains(name, "InternalBattery") {
			continue
		}

		info.Present = true
		info.Name = name
		info.ChargePercent, info.Charging, info.TimeRemaining = parseSourceStatus(status)

		break
	}

	return info, nil
}

// CollectBattery reports the internal battery from the IORegistry.
// Temperature arrives in tenths of a Kelvin and is converted to Celsius.
func (p *PowerSourceCollector) CollectBattery(ctx context.Context) (BatteryInfo, error) {
	info := BatteryInfo{
		PowerSource:   PowerSourceUnknown,
		TimeRemaining: TimeRemainingUnknown,
	}

	out, err := p.runner.Output(ctx, "ioreg", "-rn", "AppleSmartBattery")
	if err != nil {
		errFactory := errors.New()
		return info, errFactory.Wrap(ErrPowerSourceRead, err)
	}

	fields := parseRegistryFields(out)
	if len(fields) == 0 {
		return info, nil
	}

	info.Present = true
	info.Charging = registryBool(fields, "IsCharging")

	if registryBool(fields, "ExternalConnected") {
		info.PowerSource = PowerSourceAC
	} else {
		info.PowerSource = PowerSourceBattery
	}

	cur, hasCur := registryFloat(fields, "CurrentCapacity")
	max, hasMax := registryFloat(fields, "MaxCapacity")
	if hasCur && hasMax && max > 0 {
		info.ChargePercent = cur / max * 100
	}

	key := "AvgTimeToEmpty"
	if info.Charging {
		key = "AvgTimeToFull"
	}
	if minutes, ok := registryFloat(fields, key); ok && minutes < timeToChargeUnknown {
		info.TimeRemaining = int(minutes)
	}

	if raw, ok := registryFloat(fields, "Temperature"); ok {
		info.Temperature = raw/10 - 273.15
	}

	return info, nil
}

func parsePowerSourceLabel(out []byte) string {
	m := drawingFromRe.FindSubmatch(out)
	if m == nil {
		return PowerSourceUnknown
	}

	switch label := string(m[1]); label {
	case PowerSourceAC, PowerSourceUPS, PowerSourceBattery:
		return label
	default:
		return PowerSourceUnknown
	}
}

// parseSourceRow splits a pmset source row like
// " -Back-UPS ES 750 (id=12345678)\t85%; discharging; 1:20 remaining" into
// the source name and its status text.
func parseSourceRow(line string) (name, status string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "-") {
		return "", "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "-")

	if idx := strings.Index(trimmed, "(id="); idx >= 0 {
		end := strings.IndexByte(trimmed[idx:], ')')
		if end < 0 {
			return "", "", false
		}

		return strings.TrimSpace(trimmed[:idx]), strings.TrimSpace(trimmed[idx+end+1:]), true
	}

	if idx := strings.IndexByte(trimmed, '\t'); idx >= 0 {
		return strings.TrimSpace(trimmed[:idx]), strings.TrimSpace(trimmed[idx+1:]), true
	}

	return "", "", false
}

func parseSourceStatus(status string) (pct float64, charging bool, minutes int) {
	minutes = TimeRemainingUnknown

	if m := chargePctRe.FindStringSubmatch(status); m != nil {
		pct, _ = strconv.ParseFloat(m[1], 64)
	}

	charging = strings.Contains(status, "; charging")

	if m := clockRemainRe.FindStringSubmatch(status); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		minutes = h*60 + mm
	}

	return pct, charging, minutes
}

// parseRegistryFields extracts "Key" = value pairs from ioreg output. The
// first occurrence of a key wins, which keeps top-level battery fields from
// being shadowed by nested dictionaries.
func parseRegistryFields(out []byte) map[string]string {
	fields := make(map[string]string)
	for _, m := range registryFieldRe.FindAllSubmatch(out, -1) {
		key := string(m[1])
		if _, seen := fields[key]; !seen {
			fields[key] = string(m[2])
		}
	}

	return fields
}

func registryFloat(fields map[string]string, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func registryBool(fields map[string]string, key string) bool {
	return fields[key] == "Yes"
}
