package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/macstatd/internal/collector"
	"codeberg.org/mutker/macstatd/internal/errors"
	"codeberg.org/mutker/macstatd/internal/logger"
)

type sentMessage struct {
	subject  string
	body     string
	to       string
	from     string
	fromName string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (f *fakeSender) Send(subject, body, to, from, fromName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{subject, body, to, from, fromName})

	return f.err
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)

	return out
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestNotifier(cfg Config) (*Notifier, *fakeSender, *fakeClock) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
	n := New(cfg, sender, logger.Default())
	n.now = clock.Now

	return n, sender, clock
}

func enabledConfig() Config {
	return Config{
		Enabled:  true,
		To:       "ops@example.net",
		From:     "macstatd@example.net",
		FromName: "macstatd",
	}
}

func upsSnapshot(source string) collector.Snapshot {
	return collector.Snapshot{
		UPS: collector.UPSInfo{
			Present:       true,
			Name:          "Back-UPS ES 750",
			ChargePercent: 85,
			TimeRemaining: 80,
			PowerSource:   source,
		},
		DataLoaded: true,
	}
}

func TestInertUntilDataLoaded(t *testing.T) {
	n, sender, _ := newTestNotifier(enabledConfig())

	unloaded := upsSnapshot(collector.PowerSourceUPS)
	unloaded.DataLoaded = false
	n.Observe(unloaded)

	// The first loaded sample seeds; the unloaded one above must not have.
	n.Observe(upsSnapshot(collector.PowerSourceAC))
	assert.Empty(t, sender.messages())

	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].subject, "Power Loss")
}

func TestFirstLoadedObservationSeedsSilently(t *testing.T) {
	n, sender, _ := newTestNotifier(enabledConfig())

	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	assert.Empty(t, sender.messages())

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].subject, "Power Restored")
}

func TestPowerLossNotification(t *testing.T) {
	n, sender, clock := newTestNotifier(enabledConfig())

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	clock.advance(30 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Power Loss: Back-UPS ES 750 running on battery", msgs[0].subject)
	assert.Contains(t, msgs[0].body, "2026-03-14 15:09:56")
	assert.Contains(t, msgs[0].body, "Charge: 85%")
	assert.Contains(t, msgs[0].body, "Estimated runtime: 1:20")
	assert.Equal(t, "ops@example.net", msgs[0].to)
	assert.Equal(t, "macstatd@example.net", msgs[0].from)
	assert.Equal(t, "macstatd", msgs[0].fromName)
}

func TestLossNotificationUnsettledRuntime(t *testing.T) {
	n, sender, _ := newTestNotifier(enabledConfig())

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	snap := upsSnapshot(collector.PowerSourceUPS)
	snap.UPS.TimeRemaining = collector.TimeRemainingUnknown
	n.Observe(snap)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].body, "Calculating…")
}

func TestLossCooldown(t *testing.T) {
	n, sender, clock := newTestNotifier(enabledConfig())

	n.Observe(upsSnapshot(collector.PowerSourceAC))

	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	require.Len(t, sender.messages(), 1)

	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceAC))
	require.Len(t, sender.messages(), 2)

	// A second loss inside the cooldown window is suppressed.
	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	require.Len(t, sender.messages(), 2)

	// Restoration is never suppressed.
	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceAC))
	require.Len(t, sender.messages(), 3)

	clock.advance(301 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	msgs := sender.messages()
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[3].subject, "Power Loss")
}

func TestDeliveryFailureAdvancesState(t *testing.T) {
	n, sender, clock := newTestNotifier(enabledConfig())
	errFactory := errors.New()
	sender.err = errFactory.New(ErrDeliveryFailed)

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	require.Len(t, sender.messages(), 1)

	// Same state again: the failed delivery must not re-fire.
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	require.Len(t, sender.messages(), 1)

	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceAC))
	require.Len(t, sender.messages(), 2)

	// The failed attempts still stamped lastNotified, so a loss right
	// after stays inside the cooldown window.
	clock.advance(10 * time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	assert.Len(t, sender.messages(), 2)
}

func TestDisabledTracksStateSilently(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	n, sender, _ := newTestNotifier(cfg)

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	n.Observe(upsSnapshot(collector.PowerSourceAC))

	assert.Empty(t, sender.messages())
}

func TestRestoreIncludesOutageDuration(t *testing.T) {
	n, sender, clock := newTestNotifier(enabledConfig())

	n.Observe(upsSnapshot(collector.PowerSourceAC))
	clock.advance(time.Minute)
	n.Observe(upsSnapshot(collector.PowerSourceUPS))
	clock.advance(22*time.Minute + 29*time.Second)
	n.Observe(upsSnapshot(collector.PowerSourceAC))

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].body, "after 22m29s")
	assert.Contains(t, msgs[1].body, "Power restored at")
}

func TestWebhookSenderPostsPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		methods  []string
		payloads []webhookPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		mu.Lock()
		methods = append(methods, r.Method)
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL)
	require.NoError(t, sender.Send("Power Loss", "body text", "ops@example.net", "macstatd@example.net", "macstatd"))
	require.NoError(t, sender.Send("Power Restored", "body text", "ops@example.net", "macstatd@example.net", "macstatd"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 2)
	assert.Equal(t, []string{http.MethodPost, http.MethodPost}, methods)
	assert.Equal(t, "Power Loss", payloads[0].Subject)
	assert.Equal(t, "body text", payloads[0].Body)
	assert.Equal(t, "ops@example.net", payloads[0].To)
	assert.Equal(t, "macstatd@example.net", payloads[0].From)
	assert.Equal(t, "macstatd", payloads[0].FromName)
	assert.NotEmpty(t, payloads[0].MessageID)
	assert.NotEqual(t, payloads[0].MessageID, payloads[1].MessageID)
	assert.False(t, payloads[0].SentAt.IsZero())
}

func TestWebhookSenderRejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL)
	err := sender.Send("subject", "body", "to@example.net", "from@example.net", "name")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrWebhookResponse))
}
