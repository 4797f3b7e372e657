package collector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// NetworkCollector converts cumulative interface byte counters into
// bytes-per-second rates for either all interfaces combined or one selected
// interface. Bonded interfaces are resolved to their member interfaces and
// aggregated. The counter baseline is private state; Collect and Refresh are
// serialized by the internal mutex.
type NetworkCollector struct {
	mu       sync.Mutex
	prev     map[string]InterfaceCounters
	lastAt   time.Time
	runner   command.Runner
	counters func(ctx context.Context) ([]gopsnet.IOCountersStat, error)
	now      func() time.Time
}

func NewNetworkCollector(runner command.Runner) *NetworkCollector {
	return &NetworkCollector{
		prev:     make(map[string]InterfaceCounters),
		runner:   runner,
		counters: hostNetCounters,
		now:      time.Now,
	}
}

func hostNetCounters(ctx context.Context) ([]gopsnet.IOCountersStat, error) {
	return gopsnet.IOCountersWithContext(ctx, true)
}

// Collect reads current counters for the selected scope, computes rates
// against the previous baseline, and commits the fresh counters as the new
// baseline. The first call after construction or Refresh returns zero rates.
// Counter resets clamp to zero rather than going negative.
func (c *NetworkCollector) Collect(ctx context.Context, selected string) (NetworkRates, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.read(ctx)
	if err != nil {
		return NetworkRates{}, err
	}

	now := c.now()
	elapsed := now.Sub(c.lastAt).Seconds()
	prev := c.prev
	seeded := !c.lastAt.IsZero()

	c.prev = current
	c.lastAt = now

	if !seeded || elapsed <= 0 {
		return NetworkRates{}, nil
	}

	var inDelta, outDelta float64
	if selected == AllInterfaces {
		curIn, curOut := totalCounters(current)
		prevIn, prevOut := totalCounters(prev)
		inDelta = clampDelta(curIn, prevIn)
		outDelta = clampDelta(curOut, prevOut)
	} else if _, direct := current[selected]; !direct && isBondName(selected) {
		for _, member := range c.bondMembers(ctx, selected, current) {
			in, out := counterDeltas(current, prev, member)
			inDelta += in
			outDelta += out
		}
	} else {
		inDelta, outDelta = counterDeltas(current, prev, selected)
	}

	return NetworkRates{
		Upload:   outDelta / elapsed,
		Download: inDelta / elapsed,
	}, nil
}

// Refresh atomically replaces the counter baseline with fresh readings so
// the next Collect does not compute a rate against a stale baseline. Called
// when the interface selection changes.
func (c *NetworkCollector) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.read(ctx)
	if err != nil {
		return err
	}

	c.prev = current
	c.lastAt = c.now()

	return nil
}

// Interfaces returns the known interface names, sorted.
func (c *NetworkCollector) Interfaces(ctx context.Context) ([]string, error) {
	stats, err := c.counters(ctx)
	if err != nil {
		errFactory := errors.New()
		return nil, errFactory.Wrap(ErrNetworkRead, err)
	}

	names := make([]string, 0, len(stats))
	for _, st := range stats {
		names = append(names, st.Name)
	}
	sort.Strings(names)

	return names, nil
}

func (c *NetworkCollector) read(ctx context.Context) (map[string]InterfaceCounters, error) {
	stats, err := c.counters(ctx)
	if err != nil {
		errFactory := errors.New()
		return nil, errFactory.Wrap(ErrNetworkRead, err)
	}

	current := make(map[string]InterfaceCounters, len(stats))
	for _, st := range stats {
		current[st.Name] = InterfaceCounters{
			BytesIn:  st.BytesRecv,
			BytesOut: st.BytesSent,
		}
	}

	return current, nil
}

// bondMembers resolves the member interfaces of a bonded interface, first
// from ifconfig membership lines, then by the bondN naming heuristic.
func (c *NetworkCollector) bondMembers(ctx context.Context, bond string, known map[string]InterfaceCounters) []string {
	out, err := c.runner.Output(ctx, "ifconfig", bond)
	if err == nil {
		if members := parseBondMembers(out); len(members) > 0 {
			return members
		}
	}

	return heuristicBondMembers(bond, known)
}

func parseBondMembers(out []byte) []string {
	var members []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "member:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			members = append(members, fields[1])
		}
	}

	return members
}

// heuristicBondMembers guesses bondN members as en(2N) and en(2N+1),
// filtered to currently known interfaces. Best effort only, used when
// ifconfig reports no membership lines.
func heuristicBondMembers(bond string, known map[string]InterfaceCounters) []string {
	n, err := strconv.Atoi(strings.TrimPrefix(bond, "bond"))
	if err != nil || n < 0 {
		return nil
	}

	var members []string
	for _, name := range []string{fmt.Sprintf("en%d", 2*n), fmt.Sprintf("en%d", 2*n+1)} {
		if _, ok := known[name]; ok {
			members = append(members, name)
		}
	}

	return members
}

func isBondName(name string) bool {
	return strings.HasPrefix(name, "bond")
}

func totalCounters(counters map[string]InterfaceCounters) (in, out uint64) {
	for _, c := range counters {
		in += c.BytesIn
		out += c.BytesOut
	}

	return in, out
}

// counterDeltas returns the clamped byte deltas for one interface. An
// interface absent from the baseline contributes nothing.
func counterDeltas(current, prev map[string]InterfaceCounters, name string) (in, out float64) {
	p, ok := prev[name]
	if !ok {
		return 0, 0
	}
	c := current[name]

	return clampDelta(c.BytesIn, p.BytesIn), clampDelta(c.BytesOut, p.BytesOut)
}

func clampDelta(cur, prev uint64) float64 {
	if cur <= prev {
		return 0
	}

	return float64(cur - prev)
}
