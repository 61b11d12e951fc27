package gpu

import (
	"github.com/jcaesar/prometheus-nvml-exporter/internal/errors"
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
)

// fanProbeLimit caps the sequential fan sensor probe.
const fanProbeLimit = 10000

// Identity is the immutable label triple of one physical device. It is also
// the label tuple of every metric series belonging to the device.
type Identity struct {
	UUID     string
	Name     string
	PCIBusID string
}

// Handle wraps one physical device together with its identity and the number
// of addressable fan sensors, both read once at construction. Handles are
// replaced wholesale on every discovery pass.
type Handle struct {
	device   Device
	identity Identity
	fanCount int
}

// NewHandle reads the device identity and probes fan sensors sequentially
// from index 0 until the first failing index or the probe cap. An identity
// read failure is fatal to discovery.
func NewHandle(device Device) (*Handle, error) {
	errFactory := errors.New()

	uuid, err := device.UUID()
	if err != nil {
		return nil, errFactory.Wrap(ErrIdentityReadFailed, err)
	}

	name, err := device.Name()
	if err != nil {
		return nil, errFactory.Wrap(ErrIdentityReadFailed, err)
	}

	busID, err := device.PCIBusID()
	if err != nil {
		return nil, errFactory.Wrap(ErrIdentityReadFailed, err)
	}

	h := &Handle{
		device: device,
		identity: Identity{
			UUID:     uuid,
			Name:     name,
			PCIBusID: busID,
		},
	}

	for h.fanCount < fanProbeLimit {
		if _, err := device.FanSpeed(h.fanCount); err != nil {
			break
		}
		h.fanCount++
	}

	logger.Debug().
		Str("uuid", h.identity.UUID).
		Str("name", h.identity.Name).
		Str("pci", h.identity.PCIBusID).
		Int("fans", h.fanCount).
		Msg("Device handle created")

	return h, nil
}

// Identity returns the device's label triple.
func (h *Handle) Identity() Identity {
	return h.identity
}

// FanCount returns the number of addressable fan sensors.
func (h *Handle) FanCount() int {
	return h.fanCount
}

// Device returns the underlying query surface.
func (h *Handle) Device() Device {
	return h.device
}
