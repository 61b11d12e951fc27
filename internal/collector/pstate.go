package collector

import "github.com/jcaesar/prometheus-nvml-exporter/internal/gpu"

// performanceStateValue maps the hardware performance state enum to the
// exported integer: 0 (highest performance) through 15 (lowest), -1 for
// unknown. The switch covers all 17 variants explicitly; an unmappable
// value falls through to -1.
func performanceStateValue(state gpu.PState) int64 {
	switch state {
	case gpu.PState0:
		return 0
	case gpu.PState1:
		return 1
	case gpu.PState2:
		return 2
	case gpu.PState3:
		return 3
	case gpu.PState4:
		return 4
	case gpu.PState5:
		return 5
	case gpu.PState6:
		return 6
	case gpu.PState7:
		return 7
	case gpu.PState8:
		return 8
	case gpu.PState9:
		return 9
	case gpu.PState10:
		return 10
	case gpu.PState11:
		return 11
	case gpu.PState12:
		return 12
	case gpu.PState13:
		return 13
	case gpu.PState14:
		return 14
	case gpu.PState15:
		return 15
	case gpu.PStateUnknown:
		return -1
	default:
		return -1
	}
}
