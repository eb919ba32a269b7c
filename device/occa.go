//go:build cgo

package device

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// occaDevice adapts a gocca device to the Device interface. OCCA reports
// allocation and copy failures by aborting inside the C library rather
// than returning, so every call runs under recover and the caller still
// sees an error value.
type occaDevice struct {
	dev *gocca.OCCADevice
}

func newOCCA(props string) (Device, error) {
	dev, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("device: OCCA device creation failed: %w", err)
	}
	return &occaDevice{dev: dev}, nil
}

func catchOCCA(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("device: %s: %v", op, r)
		}
	}()
	fn()
	return nil
}

func (d *occaDevice) Mode() string { return d.dev.Mode() }

func (d *occaDevice) MemAlloc(bytes int64) (Memory, error) {
	if bytes <= 0 {
		return nil, fmt.Errorf("device: allocation size must be positive, got %d", bytes)
	}
	var mem *gocca.OCCAMemory
	err := catchOCCA(fmt.Sprintf("malloc of %d bytes", bytes), func() {
		mem = d.dev.Malloc(bytes, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &occaMemory{mem: mem, size: bytes}, nil
}

func (d *occaDevice) BuildKernel(name string) (Kernel, error) {
	impl, err := lookup(name)
	if err != nil {
		return nil, err
	}

	var kernel *gocca.OCCAKernel
	if d.dev.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get the default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.dev.BuildKernelFromString(impl.okl, name, props)
	} else {
		kernel, err = d.dev.BuildKernelFromString(impl.okl, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("device: failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("device: kernel build returned nil for %s", name)
	}
	return &occaKernel{name: name, kernel: kernel}, nil
}

func (d *occaDevice) Finish() error {
	return catchOCCA("finish", func() { d.dev.Finish() })
}

func (d *occaDevice) Free() error {
	return catchOCCA("device free", func() { d.dev.Free() })
}

type occaMemory struct {
	mem  *gocca.OCCAMemory
	size int64
}

func (m *occaMemory) Size() int64 { return m.size }

func (m *occaMemory) checkRange(bytes int64) error {
	if bytes < 0 || bytes > m.size {
		return fmt.Errorf("device: copy of %d bytes outside allocation of %d bytes", bytes, m.size)
	}
	return nil
}

func (m *occaMemory) CopyFrom(src unsafe.Pointer, bytes int64) error {
	if err := m.checkRange(bytes); err != nil {
		return err
	}
	return catchOCCA("copy to device", func() { m.mem.CopyFrom(src, bytes) })
}

func (m *occaMemory) CopyTo(dst unsafe.Pointer, bytes int64) error {
	if err := m.checkRange(bytes); err != nil {
		return err
	}
	return catchOCCA("copy from device", func() { m.mem.CopyTo(dst, bytes) })
}

func (m *occaMemory) Free() error {
	return catchOCCA("memory free", func() { m.mem.Free() })
}

type occaKernel struct {
	name   string
	kernel *gocca.OCCAKernel
}

func (k *occaKernel) Name() string { return k.name }

func (k *occaKernel) Free() { k.kernel.Free() }

// Run issues the launch. The OKL source derives its own grid from the
// element-count argument, so grid only undergoes validation here.
func (k *occaKernel) Run(grid Grid, args ...interface{}) error {
	if err := grid.validate(); err != nil {
		return err
	}
	resolved := make([]interface{}, len(args))
	for i, a := range args {
		if m, ok := a.(*occaMemory); ok {
			resolved[i] = m.mem
			continue
		}
		if _, ok := a.(Memory); ok {
			return fmt.Errorf("device: kernel %s: argument %d is memory from another backend", k.name, i)
		}
		resolved[i] = a
	}
	if err := k.kernel.RunWithArgs(resolved...); err != nil {
		return fmt.Errorf("device: kernel %s execution failed: %w", k.name, err)
	}
	return nil
}
