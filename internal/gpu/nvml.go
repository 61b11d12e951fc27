package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
)

type nvmlQuerier struct {
	initialized bool
}

// NewQuerier returns a Querier backed by the NVML library.
func NewQuerier() Querier {
	return &nvmlQuerier{}
}

func (q *nvmlQuerier) Init() error {
	errFactory := errors.New()
	if q.initialized {
		return nil
	}

	ret := nvml.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	q.initialized = true

	return nil
}

func (q *nvmlQuerier) Shutdown() error {
	errFactory := errors.New()
	if !q.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	q.initialized = false

	return nil
}

func (q *nvmlQuerier) DeviceCount() (int, error) {
	errFactory := errors.New()
	if !q.initialized {
		return 0, errFactory.New(ErrNotInitialized)
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	return count, nil
}

func (q *nvmlQuerier) DeviceByIndex(index int) (Device, error) {
	errFactory := errors.New()
	if !q.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return &nvmlDevice{device: device}, nil
}

// nvmlDevice adapts an NVML device handle to the Device interface.
type nvmlDevice struct {
	device nvml.Device
}

func (d *nvmlDevice) UUID() (string, error) {
	errFactory := errors.New()
	uuid, ret := d.device.GetUUID()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrIdentityReadFailed, newNVMLError(ret))
	}

	return uuid, nil
}

func (d *nvmlDevice) Name() (string, error) {
	errFactory := errors.New()
	name, ret := d.device.GetName()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrIdentityReadFailed, newNVMLError(ret))
	}

	return name, nil
}

func (d *nvmlDevice) PCIBusID() (string, error) {
	errFactory := errors.New()
	info, ret := d.device.GetPciInfo()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrIdentityReadFailed, newNVMLError(ret))
	}

	return pciBusID(info), nil
}

func (d *nvmlDevice) MemoryInfo() (MemoryInfo, error) {
	errFactory := errors.New()
	memory, ret := d.device.GetMemoryInfo()
	if !IsNVMLSuccess(ret) {
		return MemoryInfo{}, errFactory.Wrap(ErrMemoryReadFailed, newNVMLError(ret))
	}

	return MemoryInfo{
		Free:  memory.Free,
		Used:  memory.Used,
		Total: memory.Total,
	}, nil
}

func (d *nvmlDevice) FanSpeed(index int) (uint32, error) {
	errFactory := errors.New()
	speed, ret := d.device.GetFanSpeed_v2(index)
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
	}

	return speed, nil
}

func (d *nvmlDevice) Temperature() (uint32, error) {
	errFactory := errors.New()
	temp, ret := d.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return temp, nil
}

func (d *nvmlDevice) PerformanceState() (PState, error) {
	errFactory := errors.New()
	state, ret := d.device.GetPerformanceState()
	if !IsNVMLSuccess(ret) {
		return PStateUnknown, errFactory.Wrap(ErrPerformanceStateRead, newNVMLError(ret))
	}

	return PState(state), nil
}

func (d *nvmlDevice) PowerUsage() (uint32, error) {
	errFactory := errors.New()
	power, ret := d.device.GetPowerUsage()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret))
	}

	return power, nil
}

func (d *nvmlDevice) EnforcedPowerLimit() (uint32, error) {
	errFactory := errors.New()
	limit, ret := d.device.GetEnforcedPowerLimit()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret))
	}

	return limit, nil
}

func (d *nvmlDevice) TotalEnergyConsumption() (uint64, error) {
	errFactory := errors.New()
	energy, ret := d.device.GetTotalEnergyConsumption()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrEnergyReadFailed, newNVMLError(ret))
	}

	return energy, nil
}

func (d *nvmlDevice) PCIeReplayCounter() (int, error) {
	errFactory := errors.New()
	count, ret := d.device.GetPcieReplayCounter()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrPCIeReplayReadFailed, newNVMLError(ret))
	}

	return count, nil
}

// pciBusID extracts the NUL-terminated bus id string from the NVML struct.
func pciBusID(info nvml.PciInfo) string {
	buf := make([]byte, 0, len(info.BusId))
	for _, c := range info.BusId {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}

	return string(buf)
}
