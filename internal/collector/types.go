package collector

import "time"

// Power-source labels reported by the platform registry.
const (
	PowerSourceAC      = "AC Power"
	PowerSourceUPS     = "UPS Power"
	PowerSourceBattery = "Battery Power"
	PowerSourceUnknown = "Unknown"
)

// TimeRemainingUnknown is reported while a charge estimate has not settled.
const TimeRemainingUnknown = -1

// AllInterfaces selects the combined rate across every known interface.
const AllInterfaces = "All"

// ProcessEntry is one row of a top-process ranking. Identity is structural;
// entries are not tracked across samples.
type ProcessEntry struct {
	PID    int32
	Name   string
	CPU    float64
	Memory float64
}

type MemoryInfo struct {
	UsedGB  float64
	TotalGB float64
}

type DiskInfo struct {
	FreeGB  float64
	TotalGB float64
}

// NetworkRates are bytes per second for the selected interface scope.
type NetworkRates struct {
	Upload   float64
	Download float64
}

// InterfaceCounters are cumulative byte counters for one interface at a
// point in time.
type InterfaceCounters struct {
	BytesIn  uint64
	BytesOut uint64
}

// BatteryInfo describes the internal battery. Present=false is the canonical
// absence value. TimeRemaining is minutes; TimeRemainingUnknown while the
// estimate is unsettled. Temperature is degrees Celsius.
type BatteryInfo struct {
	Present       bool
	ChargePercent float64
	Charging      bool
	TimeRemaining int
	Temperature   float64
	PowerSource   string
}

// UPSInfo describes an attached UPS. Present=false is the canonical absence
// value; PowerSource always carries a label, defaulting to "Unknown".
type UPSInfo struct {
	Present       bool
	Name          string
	ChargePercent float64
	Charging      bool
	TimeRemaining int
	PowerSource   string
}

// PowerConsumptionInfo reports system power draw in watts. IsEstimate
// distinguishes measured values from modeled ones.
type PowerConsumptionInfo struct {
	CPUWatts   float64
	GPUWatts   float64
	TotalWatts float64
	Timestamp  time.Time
	IsEstimate bool
}

type SystemInfo struct {
	Model    string
	Chip     string
	Uptime   time.Duration
	BootTime time.Time
	LocalIP  string
}

// Snapshot is one consistent, immutable bundle of all currently-known
// telemetry values. It is produced atomically per sampling cycle and never
// mutated after publication.
type Snapshot struct {
	CPUUsage       float64
	CPUTemperature float64
	Memory         MemoryInfo
	Disk           DiskInfo
	Network        NetworkRates
	TopCPU         []ProcessEntry
	TopMemory      []ProcessEntry
	UPS            UPSInfo
	Battery        BatteryInfo
	Power          PowerConsumptionInfo
	System         SystemInfo
	SampledAt      time.Time
	DataLoaded     bool
}
