package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
)

const (
	// Initialization and Lifecycle Errors
	ErrNotInitialized = errors.ErrorCode("gpu_not_initialized")
	ErrInitFailed     = errors.ErrorCode("gpu_init_failed")
	ErrShutdownFailed = errors.ErrorCode("gpu_shutdown_failed")

	// Device Discovery Errors
	ErrDeviceCountFailed  = errors.ErrorCode("gpu_device_count_failed")
	ErrDeviceNotFound     = errors.ErrorCode("gpu_device_not_found")
	ErrIdentityReadFailed = errors.ErrorCode("gpu_identity_read_failed")

	// Telemetry Read Errors
	ErrMemoryReadFailed      = errors.ErrorCode("gpu_memory_read_failed")
	ErrGetFanSpeedFailed     = errors.ErrorCode("gpu_fan_speed_failed")
	ErrTemperatureReadFailed = errors.ErrorCode("gpu_temperature_read_failed")
	ErrPerformanceStateRead  = errors.ErrorCode("gpu_performance_state_read_failed")
	ErrPowerReadFailed       = errors.ErrorCode("gpu_power_read_failed")
	ErrEnergyReadFailed      = errors.ErrorCode("gpu_energy_read_failed")
	ErrPCIeReplayReadFailed  = errors.ErrorCode("gpu_pcie_replay_read_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
