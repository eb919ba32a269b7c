package utils

import (
	"fmt"

	"github.com/parlab/vecadd/device"
)

// CreateTestDevice creates a Device for testing, preferring accelerated
// backends and falling back to the in-process Parallel backend, which is
// always available.
func CreateTestDevice() device.Device {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
		`{"mode": "Parallel"}`,
	}

	for _, props := range backends {
		dev, err := device.New(props)
		if err == nil {
			fmt.Printf("Created %s Device\n", dev.Mode())
			return dev
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}
