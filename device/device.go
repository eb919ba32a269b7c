// Package device abstracts the parallel accelerator: a Device owns a
// separate memory space, hands out Memory allocations, and launches
// registered kernels over a work-group Grid. Two backends implement the
// interface: an OCCA backend (Serial, OpenMP, CUDA, OpenCL, ...) and an
// in-process Parallel backend that maps work-groups onto goroutines.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"unsafe"
)

// ErrFreed is returned when a device or memory object is used after Free.
var ErrFreed = errors.New("device: use after free")

// Device is one accelerator with its own memory space. Every call blocks
// from the host's point of view. A Device is driven by a single
// goroutine; implementations do not synchronize host-side access.
type Device interface {
	// Mode reports the backend name, e.g. "CUDA" or "Parallel".
	Mode() string

	// MemAlloc reserves bytes of device memory. The contents are
	// unspecified until a CopyFrom or a kernel writes them.
	MemAlloc(bytes int64) (Memory, error)

	// BuildKernel compiles the registered kernel with the given name
	// for this backend.
	BuildKernel(name string) (Kernel, error)

	// Finish blocks until all queued device work has completed and
	// surfaces any execution fault reported asynchronously.
	Finish() error

	// Free releases the device. All Memory and Kernel objects it handed
	// out are invalid afterwards.
	Free() error
}

// Memory is a device-resident allocation. Host and device never share
// storage; data moves only through the directional copy calls, and the
// two sides may diverge freely between copies.
type Memory interface {
	// CopyFrom transfers bytes from host storage at src to the device.
	CopyFrom(src unsafe.Pointer, bytes int64) error

	// CopyTo transfers bytes from the device to host storage at dst.
	CopyTo(dst unsafe.Pointer, bytes int64) error

	// Size returns the allocation size in bytes.
	Size() int64

	// Free releases the allocation.
	Free() error
}

// Kernel is a compiled device function. Run launches it over grid and
// returns once the launch has been issued; faults may still surface at
// the next Device.Finish.
type Kernel interface {
	Name() string
	Run(grid Grid, args ...interface{}) error
	Free()
}

// Grid sizes a launch: Count lanes covered by work-groups of GroupSize
// lanes each, rounded up. Lanes with a global id at or beyond Count are
// launched anyway and must mask themselves inside the kernel.
type Grid struct {
	Count     int
	GroupSize int
}

// Groups returns the number of work-groups, by ceiling division. A grid
// with a non-positive group size has no coverage and yields zero groups.
func (g Grid) Groups() int {
	if g.GroupSize <= 0 {
		return 0
	}
	return (g.Count + g.GroupSize - 1) / g.GroupSize
}

func (g Grid) validate() error {
	if g.Count < 0 {
		return fmt.Errorf("device: negative lane count %d", g.Count)
	}
	if g.GroupSize <= 0 {
		return fmt.Errorf("device: work-group size must be positive, got %d", g.GroupSize)
	}
	return nil
}

// New creates a device from an OCCA-style JSON properties string, e.g.
// `{"mode": "OpenMP"}`. Mode "Parallel" selects the in-process backend;
// every other mode is handed to OCCA unchanged.
func New(props string) (Device, error) {
	var p struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal([]byte(props), &p); err != nil {
		return nil, fmt.Errorf("device: bad properties %q: %w", props, err)
	}
	if p.Mode == "" {
		return nil, fmt.Errorf("device: properties %q missing mode", props)
	}
	if p.Mode == ModeParallel {
		return NewParallel(), nil
	}
	return newOCCA(props)
}
