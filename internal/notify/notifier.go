package notify

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/macstatd/internal/collector"
	"codeberg.org/mutker/macstatd/internal/format"
	"codeberg.org/mutker/macstatd/internal/logger"
)

const (
	DefaultCooldown = 300 * time.Second

	timestampLayout = "2006-01-02 15:04:05"
)

// Sender delivers one rendered notification. Implementations own the
// transport; the notifier only renders human-readable messages.
type Sender interface {
	Send(subject, body, to, from, fromName string) error
}

type Config struct {
	Enabled  bool
	To       string
	From     string
	FromName string
	Cooldown time.Duration
}

// Notifier watches the UPS power source across published snapshots and
// dispatches a notification on each AC/battery transition. Power-loss
// notifications are rate limited; restorations always go out.
type Notifier struct {
	log    logger.Logger
	sender Sender
	cfg    Config
	now    func() time.Time

	mu             sync.Mutex
	seeded         bool
	onBattery      bool
	onBatterySince time.Time
	lastNotified   time.Time
}

func New(cfg Config, sender Sender, log logger.Logger) *Notifier {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Notifier{
		log:    log,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Observe inspects one published snapshot. It stays inert until data has
// actually loaded, and the first loaded observation only seeds the previous
// state so startup never produces a notification.
func (n *Notifier) Observe(snap collector.Snapshot) {
	if !snap.DataLoaded {
		return
	}

	onBattery := snap.UPS.PowerSource == collector.PowerSourceUPS

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.seeded {
		n.seeded = true
		n.onBattery = onBattery
		if onBattery {
			n.onBatterySince = n.now()
		}

		return
	}

	if onBattery == n.onBattery {
		return
	}
	n.onBattery = onBattery

	now := n.now()
	if onBattery {
		n.onBatterySince = now
		n.notifyLoss(snap, now)

		return
	}

	n.notifyRestore(snap, now)
}

func (n *Notifier) notifyLoss(snap collector.Snapshot, now time.Time) {
	if !n.cfg.Enabled || n.sender == nil {
		return
	}
	if !n.lastNotified.IsZero() && now.Sub(n.lastNotified) < n.cfg.Cooldown {
		n.log.Debug().
			Time("last_notified", n.lastNotified).
			Msg("power-loss notification suppressed by cooldown")

		return
	}

	name := upsLabel(snap.UPS)
	subject := fmt.Sprintf("Power Loss: %s running on battery", name)
	body := fmt.Sprintf(
		"Power loss detected at %s.\n\nUPS: %s\nCharge: %.0f%%\nEstimated runtime: %s\n",
		now.Format(timestampLayout), name, snap.UPS.ChargePercent,
		format.TimeRemaining(snap.UPS.TimeRemaining),
	)

	n.deliver(subject, body, now)
}

func (n *Notifier) notifyRestore(snap collector.Snapshot, now time.Time) {
	if !n.cfg.Enabled || n.sender == nil {
		return
	}

	name := upsLabel(snap.UPS)
	subject := fmt.Sprintf("Power Restored: %s back on AC", name)
	body := fmt.Sprintf("Power restored at %s", now.Format(timestampLayout))
	if !n.onBatterySince.IsZero() {
		body += fmt.Sprintf(" after %s", now.Sub(n.onBatterySince).Truncate(time.Second))
	}
	body += fmt.Sprintf(".\n\nUPS: %s\nCharge: %.0f%%\n", name, snap.UPS.ChargePercent)

	n.deliver(subject, body, now)
}

// deliver stamps lastNotified before sending; a failed send is logged but
// never rolled back or retried here.
func (n *Notifier) deliver(subject, body string, now time.Time) {
	n.lastNotified = now

	if err := n.sender.Send(subject, body, n.cfg.To, n.cfg.From, n.cfg.FromName); err != nil {
		n.log.Error().
			Err(err).
			Str("subject", subject).
			Msg("notification delivery failed")

		return
	}

	n.log.Info().Str("subject", subject).Msg("notification delivered")
}

func upsLabel(ups collector.UPSInfo) string {
	if ups.Name != "" {
		return ups.Name
	}

	return "UPS"
}
