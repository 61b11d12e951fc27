package gpu_test

import (
	"fmt"
	"testing"

	"github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDevice simulates the per-device query surface. Fan sensor reads
// succeed for indices below fans and fail above, mirroring how real
// hardware rejects out-of-range sensor indices.
type stubDevice struct {
	uuid string
	name string
	pci  string
	fans int

	uuidErr error
	nameErr error
	pciErr  error
}

func (d *stubDevice) UUID() (string, error) {
	if d.uuidErr != nil {
		return "", d.uuidErr
	}
	return d.uuid, nil
}

func (d *stubDevice) Name() (string, error) {
	if d.nameErr != nil {
		return "", d.nameErr
	}
	return d.name, nil
}

func (d *stubDevice) PCIBusID() (string, error) {
	if d.pciErr != nil {
		return "", d.pciErr
	}
	return d.pci, nil
}

func (d *stubDevice) MemoryInfo() (gpu.MemoryInfo, error) {
	return gpu.MemoryInfo{Free: 1 << 30, Used: 1 << 29, Total: 3 << 29}, nil
}

func (d *stubDevice) FanSpeed(index int) (uint32, error) {
	if index >= d.fans {
		return 0, fmt.Errorf("no fan at index %d", index)
	}
	return 40, nil
}

func (d *stubDevice) Temperature() (uint32, error) {
	return 55, nil
}

func (d *stubDevice) PerformanceState() (gpu.PState, error) {
	return gpu.PState2, nil
}

func (d *stubDevice) PowerUsage() (uint32, error) {
	return 120000, nil
}

func (d *stubDevice) EnforcedPowerLimit() (uint32, error) {
	return 250000, nil
}

func (d *stubDevice) TotalEnergyConsumption() (uint64, error) {
	return 1000, nil
}

func (d *stubDevice) PCIeReplayCounter() (int, error) {
	return 0, nil
}

func TestNewHandleIdentity(t *testing.T) {
	device := &stubDevice{
		uuid: "GPU-00000000-1111-2222-3333-444444444444",
		name: "NVIDIA GeForce RTX 3080",
		pci:  "00000000:2D:00.0",
		fans: 2,
	}

	handle, err := gpu.NewHandle(device)
	require.NoError(t, err)

	identity := handle.Identity()
	assert.Equal(t, device.uuid, identity.UUID)
	assert.Equal(t, device.name, identity.Name)
	assert.Equal(t, device.pci, identity.PCIBusID)
}

func TestNewHandleFanProbeStopsAtFirstFailure(t *testing.T) {
	handle, err := gpu.NewHandle(&stubDevice{uuid: "u", name: "n", pci: "p", fans: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, handle.FanCount())
}

func TestNewHandleFanProbeRespectsCap(t *testing.T) {
	// The device reports more sensors than the probe cap allows.
	handle, err := gpu.NewHandle(&stubDevice{uuid: "u", name: "n", pci: "p", fans: 20000})
	require.NoError(t, err)
	assert.Equal(t, 10000, handle.FanCount())
}

func TestNewHandleIdentityReadError(t *testing.T) {
	readErr := fmt.Errorf("device fell off the bus")

	for _, device := range []*stubDevice{
		{uuidErr: readErr, name: "n", pci: "p"},
		{uuid: "u", nameErr: readErr, pci: "p"},
		{uuid: "u", name: "n", pciErr: readErr},
	} {
		handle, err := gpu.NewHandle(device)
		require.Error(t, err)
		assert.Nil(t, handle)
		assert.ErrorIs(t, err, readErr)
	}
}
