// Package runner orchestrates one-shot offload runs: it owns the host
// and device copies of each vector, moves data across at the points the
// pipeline requires, launches kernels, and tears everything down.
package runner

import (
	"errors"
	"fmt"

	"github.com/pbnjay/memory"

	"github.com/parlab/vecadd/device"
)

// Runner holds the device and the vectors allocated on it for a single
// run. It is not safe for concurrent use; exactly one goroutine issues
// device work, and the write-inputs, compute, read-output phases are
// strictly ordered, never overlapped.
type Runner struct {
	dev     device.Device
	vectors map[string]*Vector
	order   []string
	kernels map[string]device.Kernel
}

// NewRunner creates a Runner on the given device.
func NewRunner(dev device.Device) *Runner {
	if dev == nil {
		panic("runner: nil device")
	}
	return &Runner{
		dev:     dev,
		vectors: make(map[string]*Vector),
		kernels: make(map[string]device.Kernel),
	}
}

// Device returns the device the runner drives.
func (r *Runner) Device() device.Device { return r.dev }

// AllocVector allocates host and device storage for a named vector of n
// float64 elements. Host failure yields an AllocationError, device
// failure a DeviceAllocationError, both naming the buffer.
func (r *Runner) AllocVector(name string, n int) (*Vector, error) {
	if _, dup := r.vectors[name]; dup {
		return nil, fmt.Errorf("runner: vector %s already allocated", name)
	}

	host, err := allocHost(name, n)
	if err != nil {
		return nil, err
	}
	mem, err := r.dev.MemAlloc(int64(n) * 8)
	if err != nil {
		return nil, &DeviceAllocationError{Buffer: name, Err: err}
	}

	v := &Vector{name: name, host: host, dev: mem}
	r.vectors[name] = v
	r.order = append(r.order, name)
	return v, nil
}

// allocHost guards host allocations. The Go runtime aborts instead of
// returning on a true OOM, so requests beyond physical memory are
// refused up front; that is the only detectable host allocation failure.
func allocHost(name string, n int) ([]float64, error) {
	if n <= 0 {
		return nil, &AllocationError{Buffer: name, Bytes: int64(n) * 8}
	}
	bytes := uint64(n) * 8
	if total := memory.TotalMemory(); total > 0 && bytes > total {
		return nil, &AllocationError{Buffer: name, Bytes: int64(bytes)}
	}
	return make([]float64, n), nil
}

// Vector returns a previously allocated vector by name.
func (r *Runner) Vector(name string) (*Vector, bool) {
	v, ok := r.vectors[name]
	return v, ok
}

// RunKernel builds (or reuses) the named kernel, launches it over grid
// and synchronizes. Build and launch failures, and execution faults
// surfacing at the synchronization point, all come back as a
// KernelError carrying the device diagnostic.
func (r *Runner) RunKernel(name string, grid device.Grid, args ...interface{}) error {
	k, ok := r.kernels[name]
	if !ok {
		var err error
		k, err = r.dev.BuildKernel(name)
		if err != nil {
			return &KernelError{Kernel: name, Err: err}
		}
		r.kernels[name] = k
	}

	if err := k.Run(grid, args...); err != nil {
		return &KernelError{Kernel: name, Err: err}
	}
	if err := r.dev.Finish(); err != nil {
		return &KernelError{Kernel: name, Err: err}
	}
	return nil
}

// Free releases every kernel and device allocation the runner acquired,
// in allocation order. Host storage is left to the garbage collector.
// Each device free failure is reported as a DeallocationError; the
// result joins all of them. Free is safe to call after a partial run
// and releases whatever was actually acquired.
func (r *Runner) Free() error {
	for _, k := range r.kernels {
		k.Free()
	}
	r.kernels = make(map[string]device.Kernel)

	var errs []error
	for _, name := range r.order {
		v := r.vectors[name]
		if v.dev == nil {
			continue
		}
		if err := v.dev.Free(); err != nil {
			errs = append(errs, &DeallocationError{Buffer: name, Err: err})
		}
		v.dev = nil
	}
	r.vectors = make(map[string]*Vector)
	r.order = nil
	return errors.Join(errs...)
}
