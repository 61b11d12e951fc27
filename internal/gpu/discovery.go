package gpu

import (
	"github.com/jcaesar/prometheus-nvml-exporter/internal/logger"
)

// Discover re-initializes the query subsystem from scratch, enumerates all
// present devices and builds a handle for each. There is no partial-success
// mode: any failure aborts the whole pass.
func Discover(querier Querier) ([]*Handle, error) {
	if err := querier.Shutdown(); err != nil {
		return nil, err
	}

	if err := querier.Init(); err != nil {
		return nil, err
	}

	count, err := querier.DeviceCount()
	if err != nil {
		return nil, err
	}

	handles := make([]*Handle, 0, count)
	for i := 0; i < count; i++ {
		device, err := querier.DeviceByIndex(i)
		if err != nil {
			return nil, err
		}

		handle, err := NewHandle(device)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	logger.Info().Int("devices", len(handles)).Msg("Device discovery complete")

	return handles, nil
}
