package sampler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/macstatd/internal/collector"
	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/errors"
	"codeberg.org/mutker/macstatd/internal/history"
	"codeberg.org/mutker/macstatd/internal/logger"
)

const (
	DefaultFastInterval = 2 * time.Second
	DefaultSlowInterval = 30 * time.Second
	DefaultTopProcesses = 5

	subscriberBuffer = 8
)

// Config is the sampling-relevant subset of the daemon configuration.
type Config struct {
	FastInterval time.Duration
	SlowInterval time.Duration
	Interface    string
	TopProcesses int
}

func (c Config) withDefaults() Config {
	if c.FastInterval <= 0 {
		c.FastInterval = DefaultFastInterval
	}
	if c.SlowInterval <= 0 {
		c.SlowInterval = DefaultSlowInterval
	}
	if c.Interface == "" {
		c.Interface = collector.AllInterfaces
	}
	if c.TopProcesses <= 0 {
		c.TopProcesses = DefaultTopProcesses
	}

	return c
}

type UpdateKind int

const (
	UpdateFull UpdateKind = iota
	UpdatePower
)

// Update is one publication to subscribers. Full updates carry a complete
// snapshot from a fast cycle or refresh; power updates carry only the power
// fields from a slow cycle.
type Update struct {
	Kind     UpdateKind
	Snapshot collector.Snapshot
	Power    collector.PowerConsumptionInfo
}

// HistorySet is a copy of the bounded history series, oldest first.
type HistorySet struct {
	CPU      []float64
	CPUTemp  []float64
	Upload   []float64
	Download []float64
}

// Engine drives two independent sampling cadences: a fast cycle for general
// stats and a slow cycle for power draw. It owns all collector baselines and
// the latest merged snapshot; snapshots are published whole, never field by
// field.
type Engine struct {
	log logger.Logger

	// lifecycle, configuration, and subscriber state
	mu        sync.Mutex
	cfg       Config
	running   bool
	fastStop  chan struct{}
	slowStop  chan struct{}
	subs      []chan Update
	observers []Observer

	// telemetry state; generation stamps a running session so results
	// arriving after Stop are discarded
	stateMu    sync.RWMutex
	generation uint64
	latest     collector.Snapshot
	socTemp    float64
	dataLoaded bool
	histCPU    *history.Series
	histTemp   *history.Series
	histUp     *history.Series
	histDown   *history.Series

	cpu      CPUSource
	network  NetworkSource
	process  ProcessSource
	registry PowerRegistrySource
	power    PowerDrawSource
	system   SystemSource
	memory   func(ctx context.Context) (collector.MemoryInfo, error)
	disk     func(ctx context.Context) (collector.DiskInfo, error)
}

func New(cfg Config, runner command.Runner, log logger.Logger) *Engine {
	return &Engine{
		log:      log,
		cfg:      cfg.withDefaults(),
		latest:   emptySnapshot(),
		histCPU:  history.NewSeries(history.DefaultCapacity),
		histTemp: history.NewSeries(history.DefaultCapacity),
		histUp:   history.NewSeries(history.DefaultCapacity),
		histDown: history.NewSeries(history.DefaultCapacity),
		cpu:      collector.NewCPUCollector(),
		network:  collector.NewNetworkCollector(runner),
		process:  collector.NewProcessCollector(runner),
		registry: collector.NewPowerSourceCollector(runner),
		power:    collector.NewPowerCollector(runner),
		system:   collector.NewSystemCollector(runner),
		memory:   collector.CollectMemory,
		disk:     collector.CollectDisk,
	}
}

// emptySnapshot carries the canonical absence values, not zero strings.
func emptySnapshot() collector.Snapshot {
	return collector.Snapshot{
		UPS: collector.UPSInfo{
			PowerSource:   collector.PowerSourceUnknown,
			TimeRemaining: collector.TimeRemainingUnknown,
		},
		Battery: collector.BatteryInfo{
			PowerSource:   collector.PowerSourceUnknown,
			TimeRemaining: collector.TimeRemainingUnknown,
		},
	}
}

// Start runs one immediate fast and slow sample, then arms both periodic
// timers. Calling Start while running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.log.Debug().Msg("sampling already running")

		return
	}
	e.running = true
	e.fastStop = make(chan struct{})
	e.slowStop = make(chan struct{})
	fastStop, slowStop := e.fastStop, e.slowStop
	fast, slow := e.cfg.FastInterval, e.cfg.SlowInterval
	gen := e.currentGeneration()
	e.mu.Unlock()

	go e.fastLoop(fastStop, fast, gen)
	go e.slowLoop(slowStop, slow, gen)

	e.log.Info().
		Dur("fast_interval", fast).
		Dur("slow_interval", slow).
		Msg("sampling started")
}

// Stop cancels both timers. In-flight collector calls are not interrupted;
// their results are discarded on arrival. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()

		return
	}
	e.running = false
	close(e.fastStop)
	close(e.slowStop)
	e.fastStop, e.slowStop = nil, nil
	e.mu.Unlock()

	e.stateMu.Lock()
	e.generation++
	e.stateMu.Unlock()

	e.log.Info().Msg("sampling stopped")
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

// SetFastInterval restarts the engine with the new fast interval, per the
// stop-then-start semantics of the fast path.
func (e *Engine) SetFastInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	e.mu.Lock()
	e.cfg.FastInterval = d
	running := e.running
	e.mu.Unlock()

	if running {
		e.Stop()
		e.Start()
	}
}

// SetSlowInterval rearms only the slow timer; the fast timer keeps ticking.
func (e *Engine) SetSlowInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	e.mu.Lock()
	e.cfg.SlowInterval = d
	if e.running {
		close(e.slowStop)
		e.slowStop = make(chan struct{})
		go e.slowLoop(e.slowStop, d, e.currentGeneration())
	}
	e.mu.Unlock()
}

// SetInterface changes the selected network interface and atomically
// reseeds the counter baseline so the next cycle does not report a spike.
func (e *Engine) SetInterface(ctx context.Context, name string) error {
	if name == "" {
		name = collector.AllInterfaces
	}

	e.mu.Lock()
	changed := e.cfg.Interface != name
	e.cfg.Interface = name
	e.mu.Unlock()

	if !changed {
		return nil
	}

	if err := e.network.Refresh(ctx); err != nil {
		errFactory := errors.New()

		return errFactory.Wrap(ErrBaselineRefresh, err)
	}

	return nil
}

// ApplyConfig applies a changed configuration: interval changes rearm their
// timers, an interface change reseeds the network baseline, and a refresh
// publishes one merged snapshot under the new settings.
func (e *Engine) ApplyConfig(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	e.mu.Lock()
	old := e.cfg
	e.cfg.TopProcesses = cfg.TopProcesses
	e.mu.Unlock()

	var refreshErr error
	if cfg.Interface != old.Interface {
		refreshErr = e.SetInterface(ctx, cfg.Interface)
	}
	if cfg.FastInterval != old.FastInterval {
		e.SetFastInterval(cfg.FastInterval)
	}
	if cfg.SlowInterval != old.SlowInterval {
		e.SetSlowInterval(cfg.SlowInterval)
	}

	e.RefreshAll(ctx)

	return refreshErr
}

// Subscribe returns a channel of publications. Delivery is best effort: a
// subscriber that falls behind misses updates rather than blocking the
// sampling cycle.
func (e *Engine) Subscribe() <-chan Update {
	ch := make(chan Update, subscriberBuffer)

	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()

	return ch
}

// AddObserver registers an observer run synchronously after each full
// publication, in registration order.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Snapshot returns the latest published snapshot.
func (e *Engine) Snapshot() collector.Snapshot {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return e.latest
}

// History returns copies of the bounded history series.
func (e *Engine) History() HistorySet {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return HistorySet{
		CPU:      e.histCPU.Values(),
		CPUTemp:  e.histTemp.Values(),
		Upload:   e.histUp.Values(),
		Download: e.histDown.Values(),
	}
}

// Interfaces lists the currently known network interface names.
func (e *Engine) Interfaces(ctx context.Context) ([]string, error) {
	lister, ok := e.network.(interface {
		Interfaces(ctx context.Context) ([]string, error)
	})
	if !ok {
		return nil, nil
	}

	return lister.Interfaces(ctx)
}

// RefreshAll runs every collector concurrently and publishes one merged
// snapshot with DataLoaded set. Used at cold start and after configuration
// changes; independent of the periodic cycles, it works while stopped.
func (e *Engine) RefreshAll(ctx context.Context) collector.Snapshot {
	cfg := e.config()

	var (
		wg       sync.WaitGroup
		usage    float64
		memInfo  collector.MemoryInfo
		diskInfo collector.DiskInfo
		rates    collector.NetworkRates
		topCPU   []collector.ProcessEntry
		topMem   []collector.ProcessEntry
		ups      collector.UPSInfo
		battery  collector.BatteryInfo
		sysInfo  collector.SystemInfo
		power    collector.PowerConsumptionInfo
		socTemp  float64
	)

	prevCPU := e.Snapshot().CPUUsage

	tasks := []func(){
		func() { usage = e.collectCPU(ctx) },
		func() { memInfo = e.collectMemory(ctx) },
		func() { diskInfo = e.collectDisk(ctx) },
		func() { rates = e.collectNetwork(ctx, cfg.Interface) },
		func() { topCPU = e.collectTopCPU(ctx, cfg.TopProcesses) },
		func() { topMem = e.collectTopMemory(ctx, cfg.TopProcesses) },
		func() { ups = e.collectUPS(ctx) },
		func() { battery = e.collectBattery(ctx) },
		func() { sysInfo = e.collectSystem(ctx) },
		func() { power, socTemp = e.power.Collect(ctx, prevCPU) },
	}

	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(run func()) {
			defer wg.Done()
			run()
		}(task)
	}
	wg.Wait()

	snap := collector.Snapshot{
		CPUUsage:   usage,
		Memory:     memInfo,
		Disk:       diskInfo,
		Network:    rates,
		TopCPU:     topCPU,
		TopMemory:  topMem,
		UPS:        ups,
		Battery:    battery,
		Power:      power,
		System:     sysInfo,
		SampledAt:  time.Now(),
		DataLoaded: true,
	}

	e.stateMu.Lock()
	e.socTemp = socTemp
	e.dataLoaded = true
	snap.CPUTemperature = socTemp
	e.pushHistoryLocked(snap)
	e.latest = snap
	e.stateMu.Unlock()

	e.publish(Update{Kind: UpdateFull, Snapshot: snap})
	e.notifyObservers(snap)

	return snap
}

func (e *Engine) config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cfg
}

func (e *Engine) currentGeneration() uint64 {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	return e.generation
}

func (e *Engine) fastLoop(stop <-chan struct{}, interval time.Duration, gen uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.runFastCycle(gen)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.runFastCycle(gen)
		}
	}
}

func (e *Engine) slowLoop(stop <-chan struct{}, interval time.Duration, gen uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.runSlowCycle(gen)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.runSlowCycle(gen)
		}
	}
}

// runFastCycle performs every fast collector, merges the results into one
// snapshot, publishes it, and runs the observers. A result arriving after
// Stop is discarded unpublished.
func (e *Engine) runFastCycle(gen uint64) {
	ctx := context.Background()
	cfg := e.config()

	snap := collector.Snapshot{SampledAt: time.Now()}
	snap.CPUUsage = e.collectCPU(ctx)
	snap.Memory = e.collectMemory(ctx)
	snap.Disk = e.collectDisk(ctx)
	snap.Network = e.collectNetwork(ctx, cfg.Interface)
	snap.TopCPU = e.collectTopCPU(ctx, cfg.TopProcesses)
	snap.TopMemory = e.collectTopMemory(ctx, cfg.TopProcesses)
	snap.UPS = e.collectUPS(ctx)
	snap.Battery = e.collectBattery(ctx)
	snap.System = e.collectSystem(ctx)

	e.stateMu.Lock()
	if e.generation != gen {
		e.stateMu.Unlock()

		return
	}
	snap.CPUTemperature = e.socTemp
	snap.Power = e.latest.Power
	snap.DataLoaded = e.dataLoaded
	e.pushHistoryLocked(snap)
	e.latest = snap
	e.stateMu.Unlock()

	e.publish(Update{Kind: UpdateFull, Snapshot: snap})
	e.notifyObservers(snap)
}

// runSlowCycle performs only the power collector and publishes a power-only
// delta. It never touches the other snapshot fields.
func (e *Engine) runSlowCycle(gen uint64) {
	ctx := context.Background()

	info, socTemp := e.power.Collect(ctx, e.Snapshot().CPUUsage)

	e.stateMu.Lock()
	if e.generation != gen {
		e.stateMu.Unlock()

		return
	}
	e.latest.Power = info
	e.socTemp = socTemp
	e.stateMu.Unlock()

	e.publish(Update{Kind: UpdatePower, Power: info})
}

func (e *Engine) pushHistoryLocked(snap collector.Snapshot) {
	e.histCPU.Push(snap.CPUUsage)
	e.histTemp.Push(snap.CPUTemperature)
	e.histUp.Push(snap.Network.Upload)
	e.histDown.Push(snap.Network.Download)
}

func (e *Engine) publish(u Update) {
	e.mu.Lock()
	subs := make([]chan Update, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (e *Engine) notifyObservers(snap collector.Snapshot) {
	e.mu.Lock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, o := range observers {
		o.Observe(snap)
	}
}

func (e *Engine) collectCPU(ctx context.Context) float64 {
	usage, err := e.cpu.Collect(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("cpu collection failed")
	}

	return usage
}

func (e *Engine) collectMemory(ctx context.Context) collector.MemoryInfo {
	info, err := e.memory(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("memory collection failed")
	}

	return info
}

func (e *Engine) collectDisk(ctx context.Context) collector.DiskInfo {
	info, err := e.disk(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("disk collection failed")
	}

	return info
}

func (e *Engine) collectNetwork(ctx context.Context, selected string) collector.NetworkRates {
	rates, err := e.network.Collect(ctx, selected)
	if err != nil {
		e.log.Debug().Err(err).Str("interface", selected).Msg("network collection failed")
	}

	return rates
}

func (e *Engine) collectTopCPU(ctx context.Context, n int) []collector.ProcessEntry {
	entries, err := e.process.TopCPU(ctx, n)
	if err != nil {
		e.log.Debug().Err(err).Msg("cpu process ranking failed")
	}

	return entries
}

func (e *Engine) collectTopMemory(ctx context.Context, n int) []collector.ProcessEntry {
	entries, err := e.process.TopMemory(ctx, n)
	if err != nil {
		e.log.Debug().Err(err).Msg("memory process ranking failed")
	}

	return entries
}

func (e *Engine) collectUPS(ctx context.Context) collector.UPSInfo {
	info, err := e.registry.CollectUPS(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("ups collection failed")
	}

	return info
}

func (e *Engine) collectBattery(ctx context.Context) collector.BatteryInfo {
	info, err := e.registry.CollectBattery(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("battery collection failed")
	}

	return info
}

func (e *Engine) collectSystem(ctx context.Context) collector.SystemInfo {
	info, err := e.system.Collect(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("system info collection failed")
	}

	return info
}
