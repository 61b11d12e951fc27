package collector

import (
	"strconv"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/metrics"
)

// Sampler reads all telemetry fields of one device handle in a single pass
// and publishes them into the registry.
type Sampler struct {
	registry *metrics.Registry
}

func NewSampler(registry *metrics.Registry) *Sampler {
	return &Sampler{registry: registry}
}

// Update executes one full read-and-publish pass for a device. Any read
// failure aborts the pass with the underlying error; values already written
// earlier in the same pass are not rolled back.
func (s *Sampler) Update(handle *gpu.Handle) error {
	identity := handle.Identity()
	labels := []string{identity.UUID, identity.Name, identity.PCIBusID}
	device := handle.Device()

	memory, err := device.MemoryInfo()
	if err != nil {
		return err
	}
	if err := s.setGauge(metrics.MemoryFreeBytes, float64(memory.Free), labels); err != nil {
		return err
	}
	if err := s.setGauge(metrics.MemoryUsedBytes, float64(memory.Used), labels); err != nil {
		return err
	}
	if err := s.setGauge(metrics.MemoryTotalBytes, float64(memory.Total), labels); err != nil {
		return err
	}

	for fan := 0; fan < handle.FanCount(); fan++ {
		speed, err := device.FanSpeed(fan)
		if err != nil {
			return err
		}
		fanLabels := append(labels[:len(labels):len(labels)], strconv.Itoa(fan))
		if err := s.setGauge(metrics.FanSpeed, float64(speed)/100, fanLabels); err != nil {
			return err
		}
	}

	temperature, err := device.Temperature()
	if err != nil {
		return err
	}
	if err := s.setGauge(metrics.Temperature, float64(temperature), labels); err != nil {
		return err
	}

	state, err := device.PerformanceState()
	if err != nil {
		return err
	}
	if err := s.setGauge(metrics.PerformanceState, float64(performanceStateValue(state)), labels); err != nil {
		return err
	}

	power, err := device.PowerUsage()
	if err != nil {
		return err
	}
	if err := s.setGauge(metrics.PowerUsage, float64(power), labels); err != nil {
		return err
	}

	limit, err := device.EnforcedPowerLimit()
	if err != nil {
		return err
	}
	if err := s.setGauge(metrics.PowerMax, float64(limit), labels); err != nil {
		return err
	}

	energy, err := device.TotalEnergyConsumption()
	if err != nil {
		return err
	}
	if err := s.bumpCounter(metrics.EnergyUsed, float64(energy), labels); err != nil {
		return err
	}

	replays, err := device.PCIeReplayCounter()
	if err != nil {
		return err
	}
	if err := s.bumpCounter(metrics.PCIReplay, float64(replays), labels); err != nil {
		return err
	}

	return nil
}

func (s *Sampler) setGauge(name string, value float64, labels []string) error {
	gauge, err := s.registry.Gauge(name, labels...)
	if err != nil {
		return err
	}
	gauge.Set(value)

	return nil
}

// bumpCounter mirrors a monotonic hardware counter into an increment-only
// registry counter. The first sample publishes the full hardware value as an
// increment from zero. A negative delta means the hardware counter went
// backwards, e.g. after a device reset; the increment is skipped and the
// series holds its value until the hardware catches up.
func (s *Sampler) bumpCounter(name string, current float64, labels []string) error {
	counter, err := s.registry.Counter(name, labels...)
	if err != nil {
		return err
	}

	previous, err := counter.Get()
	if err != nil {
		return err
	}

	delta := current - previous
	if delta < 0 {
		logger.Warn().
			Str("metric", name).
			Float64("previous", previous).
			Float64("current", current).
			Msg("Hardware counter regression, skipping increment")
		return nil
	}

	return counter.Add(delta)
}
