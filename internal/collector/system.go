package collector

import (
	"context"
	"strings"
	"time"

	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// SystemCollector reads host identity and lifetime facts. Each field is
// best effort; an error is returned only when the hardware identity could
// not be read at all.
type SystemCollector struct {
	runner command.Runner
	info   func(ctx context.Context) (*host.InfoStat, error)
}

func NewSystemCollector(runner command.Runner) *SystemCollector {
	return &SystemCollector{
		runner: runner,
		info:   host.InfoWithContext,
	}
}

func (s *SystemCollector) Collect(ctx context.Context) (SystemInfo, error) {
	var out SystemInfo

	model, modelErr := s.sysctl(ctx, "hw.model")
	out.Model = model

	chip, chipErr := s.sysctl(ctx, "machdep.cpu.brand_string")
	out.Chip = chip

	if hi, err := s.info(ctx); err == nil {
		out.Uptime = time.Duration(hi.Uptime) * time.Second
		out.BootTime = time.Unix(int64(hi.BootTime), 0)
	}

	out.LocalIP = localIP(ctx)

	if modelErr != nil && chipErr != nil {
		errFactory := errors.New()
		return out, errFactory.Wrap(ErrSystemInfoRead, modelErr)
	}

	return out, nil
}

func (s *SystemCollector) sysctl(ctx context.Context, key string) (string, error) {
	out, err := s.runner.Output(ctx, "sysctl", "-n", key)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}

// localIP returns the first non-loopback IPv4 address, or "" when none is
// assigned.
func localIP(ctx context.Context) string {
	ifaces, err := gopsnet.InterfacesWithContext(ctx)
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			ip := strings.Split(addr.Addr, "/")[0]
			if strings.Contains(ip, ".") && !strings.HasPrefix(ip, "127.") {
				return ip
			}
		}
	}

	return ""
}
