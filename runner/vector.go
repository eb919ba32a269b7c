package runner

import (
	"fmt"
	"unsafe"

	"gonum.org/v1/gonum/mat"

	"github.com/parlab/vecadd/device"
)

// Vector is one logical vector with two independent copies: host
// storage and a device allocation. The two are never synchronized
// implicitly and may diverge at any time; CopyToDevice and
// CopyFromDevice are the only bridge between them.
type Vector struct {
	name string
	host []float64
	dev  device.Memory
}

func (v *Vector) Name() string { return v.name }

func (v *Vector) Len() int { return len(v.host) }

// Host returns the host-side storage for direct reads and writes.
func (v *Vector) Host() []float64 { return v.host }

// Device returns the device-side allocation.
func (v *Vector) Device() device.Memory { return v.dev }

func (v *Vector) bytes() int64 { return int64(len(v.host)) * 8 }

// CopyToDevice pushes the host copy to the device.
func (v *Vector) CopyToDevice() error {
	if err := v.dev.CopyFrom(unsafe.Pointer(&v.host[0]), v.bytes()); err != nil {
		return &TransferError{Buffer: v.name, ToDevice: true, Err: err}
	}
	return nil
}

// CopyFromDevice pulls the device copy back into host storage.
func (v *Vector) CopyFromDevice() error {
	if err := v.dev.CopyTo(unsafe.Pointer(&v.host[0]), v.bytes()); err != nil {
		return &TransferError{Buffer: v.name, ToDevice: false, Err: err}
	}
	return nil
}

// SetFromVec fills the host copy from a gonum vector of the same length.
// The device copy is untouched.
func (v *Vector) SetFromVec(src mat.Vector) error {
	if src.Len() != len(v.host) {
		return fmt.Errorf("runner: vector %s: length mismatch: have %d, got %d",
			v.name, len(v.host), src.Len())
	}
	for i := range v.host {
		v.host[i] = src.AtVec(i)
	}
	return nil
}

// Vec returns the host copy as a gonum vector sharing storage with it.
func (v *Vector) Vec() *mat.VecDense {
	return mat.NewVecDense(len(v.host), v.host)
}
