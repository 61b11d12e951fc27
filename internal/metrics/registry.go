package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
)

// Metric names exposed to the collector. The names and label schema are the
// wire contract consumers depend on and must remain stable.
const (
	MemoryFreeBytes  = "nvml_memory_free_bytes"
	MemoryUsedBytes  = "nvml_memory_used_bytes"
	MemoryTotalBytes = "nvml_memory_total_bytes"
	FanSpeed         = "nvml_fan_speed"
	Temperature      = "nvml_temp"
	PerformanceState = "nvml_performance_state"
	PowerUsage       = "nvml_power_usage_current_mw"
	PowerMax         = "nvml_power_usage_max_mw"
	EnergyUsed       = "nvml_power_used_total_mj"
	PCIReplay        = "nvml_pci_replay"
)

var (
	// GPULabels is the label tuple carried by every device series.
	GPULabels = []string{"uuid", "name", "pci"}

	// fanLabels additionally carries the fan sensor index.
	fanLabels = []string{"uuid", "name", "pci", "fan"}
)

// Gauge is a last-write-wins series handle.
type Gauge interface {
	Set(value float64)
}

// Counter is a monotonic series handle. It is exposed via increments only;
// Add rejects negative deltas.
type Counter interface {
	Get() (float64, error)
	Add(delta float64) error
}

// Registry is the process-wide set of metric series, constructed explicitly
// at startup and shared by the collection loop and the HTTP responder. The
// underlying prometheus registry serializes internally, so it is safe to
// gather concurrently with the single collection goroutine writing to it.
type Registry struct {
	prom     *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
	counters map[string]*prometheus.CounterVec
}

// NewRegistry builds a registry with the full metric catalog registered.
func NewRegistry() *Registry {
	r := &Registry{
		prom:     prometheus.NewRegistry(),
		gauges:   make(map[string]*prometheus.GaugeVec),
		counters: make(map[string]*prometheus.CounterVec),
	}

	gauge := func(name, help string, labels []string) {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
		r.prom.MustRegister(vec)
		r.gauges[name] = vec
	}
	counter := func(name, help string, labels []string) {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		r.prom.MustRegister(vec)
		r.counters[name] = vec
	}

	gauge(MemoryFreeBytes, "Free memory in bytes.", GPULabels)
	gauge(MemoryUsedBytes, "Used memory in bytes.", GPULabels)
	gauge(MemoryTotalBytes, "Total memory in bytes.", GPULabels)
	gauge(FanSpeed, "Fan speed as a ratio (0-1).", fanLabels)
	gauge(Temperature, "GPU die temperature in degrees Celsius.", GPULabels)
	gauge(PerformanceState, "Performance state, between 15 (low) and 0 (high), -1 if unknown.", GPULabels)
	gauge(PowerUsage, "Current power usage in milliwatts.", GPULabels)
	gauge(PowerMax, "Enforced power limit in milliwatts.", GPULabels)
	counter(EnergyUsed, "Energy used in total, in millijoules.", GPULabels)
	counter(PCIReplay, "PCIe replay count in total.", GPULabels)

	return r
}

// Gatherer exposes the registry for the metrics exposition handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.prom
}

// Gauge returns the gauge series for the given label values, creating it on
// first use.
func (r *Registry) Gauge(name string, labelValues ...string) (Gauge, error) {
	errFactory := errors.New()

	vec, ok := r.gauges[name]
	if !ok {
		return nil, errFactory.WithData(ErrUnknownMetric, name)
	}

	series, err := vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return nil, errFactory.Wrap(ErrSeriesLookupFailed, err)
	}

	return series, nil
}

// Counter returns the counter series for the given label values, creating it
// on first use.
func (r *Registry) Counter(name string, labelValues ...string) (Counter, error) {
	errFactory := errors.New()

	vec, ok := r.counters[name]
	if !ok {
		return nil, errFactory.WithData(ErrUnknownMetric, name)
	}

	series, err := vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return nil, errFactory.Wrap(ErrSeriesLookupFailed, err)
	}

	return counterHandle{series: series}, nil
}

type counterHandle struct {
	series prometheus.Counter
}

// Get reads the counter's current value through the wire model.
func (h counterHandle) Get() (float64, error) {
	errFactory := errors.New()

	var metric dto.Metric
	if err := h.series.Write(&metric); err != nil {
		return 0, errFactory.Wrap(ErrCounterReadFailed, err)
	}

	return metric.GetCounter().GetValue(), nil
}

func (h counterHandle) Add(delta float64) error {
	errFactory := errors.New()

	if delta < 0 {
		return errFactory.WithData(ErrNegativeIncrement, delta)
	}
	h.series.Add(delta)

	return nil
}
