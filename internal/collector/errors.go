package collector

import "codeberg.org/mutker/macstatd/internal/errors"

const (
	// Host statistics errors
	ErrCPURead     = errors.ErrorCode("collector_cpu_read_failed")
	ErrMemoryRead  = errors.ErrorCode("collector_memory_read_failed")
	ErrDiskRead    = errors.ErrorCode("collector_disk_read_failed")
	ErrNetworkRead = errors.ErrorCode("collector_network_read_failed")

	// Process listing errors
	ErrProcessList = errors.ErrorCode("collector_process_list_failed")

	// Power registry errors
	ErrPowerSourceRead = errors.ErrorCode("collector_power_source_read_failed")
	ErrPowerToolFailed = errors.ErrorCode("collector_power_tool_failed")

	// System identification errors
	ErrSystemInfoRead = errors.ErrorCode("collector_system_info_failed")
)
