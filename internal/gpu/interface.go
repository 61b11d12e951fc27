package gpu

// Querier abstracts the device-query subsystem. Discovery re-initializes it
// from scratch on every pass so hot-plugged devices are picked up.
type Querier interface {
	Init() error
	Shutdown() error
	DeviceCount() (int, error)
	DeviceByIndex(index int) (Device, error)
}

// Device is the per-device query surface. Every read can fail independently.
type Device interface {
	UUID() (string, error)
	Name() (string, error)
	PCIBusID() (string, error)
	MemoryInfo() (MemoryInfo, error)
	FanSpeed(index int) (uint32, error)
	Temperature() (uint32, error)
	PerformanceState() (PState, error)
	PowerUsage() (uint32, error)
	EnforcedPowerLimit() (uint32, error)
	TotalEnergyConsumption() (uint64, error)
	PCIeReplayCounter() (int, error)
}

// MemoryInfo holds the device memory triple in bytes.
type MemoryInfo struct {
	Free  uint64
	Used  uint64
	Total uint64
}

// PState is the hardware performance state, 0 (highest performance) through
// 15 (lowest). Values follow the NVML enum, where unknown is 32.
type PState int32

const (
	PState0 PState = iota
	PState1
	PState2
	PState3
	PState4
	PState5
	PState6
	PState7
	PState8
	PState9
	PState10
	PState11
	PState12
	PState13
	PState14
	PState15

	PStateUnknown PState = 32
)
