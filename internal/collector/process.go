package collector

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
)

// processNoiseFloor filters rows whose usage is indistinguishable from idle.
const processNoiseFloor = 0.1

// memoryScanSlack is how many extra rows beyond N the memory ranking scans.
const memoryScanSlack = 5

// ProcessCollector ranks processes by CPU or memory usage from the platform
// process listing.
type ProcessCollector struct {
	runner command.Runner
}

func NewProcessCollector(runner command.Runner) *ProcessCollector {
	return &ProcessCollector{runner: runner}
}

// TopCPU returns the top n processes by CPU usage, descending. Rows below
// the noise floor are kept only while fewer than n candidates exist, so the
// result always has n entries when the process table does.
func (p *ProcessCollector) TopCPU(ctx context.Context, n int) ([]ProcessEntry, error) {
	out, err := p.runner.Output(ctx, "ps", "-Aceo", "pid,pcpu,pmem,comm", "-r")
	if err != nil {
		errFactory := errors.New()
		return nil, errFactory.Wrap(ErrProcessList, err)
	}

	var kept []ProcessEntry
	for _, row := range processRows(out) {
		entry, ok := parseProcessRow(row)
		if !ok {
			continue
		}
		if entry.CPU > processNoiseFloor || len(kept) < n {
			kept = append(kept, entry)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].CPU > kept[j].CPU })
	if len(kept) > n {
		kept = kept[:n]
	}

	return kept, nil
}

// TopMemory returns the first n processes above the noise floor from the
// memory-sorted listing, in source order. Only the first n+5 rows are
// scanned; the listing is trusted to be sorted by resident size already.
func (p *ProcessCollector) TopMemory(ctx context.Context, n int) ([]ProcessEntry, error) {
	out, err := p.runner.Output(ctx, "ps", "-Aceo", "pid,pcpu,pmem,comm", "-m")
	if err != nil {
		errFactory := errors.New()
		return nil, errFactory.Wrap(ErrProcessList, err)
	}

	rows := processRows(out)
	if limit := n + memoryScanSlack; len(rows) > limit {
		rows = rows[:limit]
	}

	var kept []ProcessEntry
	for _, row := range rows {
		entry, ok := parseProcessRow(row)
		if !ok {
			continue
		}
		if entry.Memory > processNoiseFloor {
			kept = append(kept, entry)
			if len(kept) == n {
				break
			}
		}
	}

	return kept, nil
}

// processRows drops the header line of a ps listing.
func processRows(out []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) <= 1 {
		return nil
	}

	return lines[1:]
}

// parseProcessRow parses "pid %cpu %mem command"; the command may contain
// spaces. Malformed rows are skipped, not fatal.
func parseProcessRow(row string) (ProcessEntry, bool) {
	fields := strings.Fields(row)
	if len(fields) < 4 {
		return ProcessEntry{}, false
	}

	pid, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return ProcessEntry{}, false
	}
	cpuPct, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return ProcessEntry{}, false
	}
	memPct, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return ProcessEntry{}, false
	}

	return ProcessEntry{
		PID:    int32(pid),
		Name:   strings.Join(fields[3:], " "),
		CPU:    cpuPct,
		Memory: memPct,
	}, true
}
