package runner

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlab/vecadd/device"
	"github.com/parlab/vecadd/kernels"
)

// faultDevice wraps the Parallel backend and arms individual failures,
// so the pipeline's error paths are testable without real device
// faults. Ordinals are 1-based allocation counts.
type faultDevice struct {
	device.Device

	allocCalls  int
	failAllocOn int

	buildCalls int

	failFinish error

	// corruptAlloc/corruptIndex poison one element of that allocation
	// on every device-to-host read.
	corruptAlloc int
	corruptIndex int

	failFreeOn int
	frees      int
}

func newFaultDevice() *faultDevice {
	return &faultDevice{Device: device.NewParallel()}
}

func (d *faultDevice) MemAlloc(bytes int64) (device.Memory, error) {
	d.allocCalls++
	if d.allocCalls == d.failAllocOn {
		return nil, assert.AnError
	}
	mem, err := d.Device.MemAlloc(bytes)
	if err != nil {
		return nil, err
	}
	return &faultMemory{Memory: mem, dev: d, ord: d.allocCalls}, nil
}

func (d *faultDevice) BuildKernel(name string) (device.Kernel, error) {
	d.buildCalls++
	return d.Device.BuildKernel(name)
}

func (d *faultDevice) Finish() error {
	if d.failFinish != nil {
		return d.failFinish
	}
	return d.Device.Finish()
}

type faultMemory struct {
	device.Memory
	dev *faultDevice
	ord int
}

func (m *faultMemory) CopyTo(dst unsafe.Pointer, bytes int64) error {
	if err := m.Memory.CopyTo(dst, bytes); err != nil {
		return err
	}
	if m.ord == m.dev.corruptAlloc {
		vals := unsafe.Slice((*float64)(dst), bytes/8)
		vals[m.dev.corruptIndex] = 42
	}
	return nil
}

func (m *faultMemory) Free() error {
	if m.ord == m.dev.failFreeOn {
		return assert.AnError
	}
	m.dev.frees++
	return m.Memory.Free()
}

// ============================================================================
// Section 1: Success scenarios
// ============================================================================

// Four elements, explicit inputs, exact expected sums.
func TestVectorAdd_SmallExplicitInputs(t *testing.T) {
	dev := device.NewParallel()
	defer dev.Free()

	err := VectorAdd(dev, VectorAddConfig{
		N: 4,
		A: []float64{1, 2, 3, 4},
		B: []float64{10, 20, 30, 40},
	})
	require.NoError(t, err)
}

// The same four-element case through the Runner surface, asserting the
// exact device results element by element.
func TestVectorAdd_SmallResultValues(t *testing.T) {
	dev := device.NewParallel()
	defer dev.Free()

	r := NewRunner(dev)
	defer r.Free()

	a, err := r.AllocVector("a", 4)
	require.NoError(t, err)
	b, err := r.AllocVector("b", 4)
	require.NoError(t, err)
	c, err := r.AllocVector("c", 4)
	require.NoError(t, err)

	copy(a.Host(), []float64{1, 2, 3, 4})
	copy(b.Host(), []float64{10, 20, 30, 40})
	require.NoError(t, a.CopyToDevice())
	require.NoError(t, b.CopyToDevice())

	grid := device.Grid{Count: 4, GroupSize: kernels.AddVectorsGroupSize}
	require.NoError(t, r.RunKernel(kernels.AddVectors, grid,
		int32(4), a.Device(), b.Device(), c.Device()))
	require.NoError(t, c.CopyFromDevice())

	assert.Equal(t, []float64{11, 22, 33, 44}, c.Host())
}

// The reference run: 65536 elements of sin^2 + cos^2, every sum within
// tolerance of 1.
func TestVectorAdd_ReferenceRun(t *testing.T) {
	dev := device.NewParallel()
	defer dev.Free()

	require.NoError(t, VectorAdd(dev, VectorAddConfig{}))
}

func TestVectorAdd_OddGroupSizes(t *testing.T) {
	for _, groupSize := range []int{1, 7, 100, 1024} {
		dev := device.NewParallel()
		err := VectorAdd(dev, VectorAddConfig{N: 1000, GroupSize: groupSize})
		dev.Free()
		require.NoError(t, err, "groupSize=%d", groupSize)
	}
}

// ============================================================================
// Section 2: Failure scenarios
// ============================================================================

// A device allocation failure for the second buffer must surface as a
// DeviceAllocationError naming b, before any kernel work is attempted,
// and must still release the first buffer.
func TestVectorAdd_DeviceAllocFailure(t *testing.T) {
	dev := newFaultDevice()
	defer dev.Device.Free()
	dev.failAllocOn = 2

	err := VectorAdd(dev, VectorAddConfig{N: 256})

	var devAllocErr *DeviceAllocationError
	require.ErrorAs(t, err, &devAllocErr)
	assert.Equal(t, "b", devAllocErr.Buffer)
	assert.Equal(t, 0, dev.buildCalls, "no kernel should be built after an allocation failure")
	assert.Equal(t, 1, dev.frees, "buffer a should still be released")
}

// A value corrupted on the device-to-host read of the result must be
// caught by validation with the exact index and both values.
func TestVectorAdd_ValidationFailure(t *testing.T) {
	dev := newFaultDevice()
	defer dev.Device.Free()
	dev.corruptAlloc = 3 // c is the third allocation
	dev.corruptIndex = 123

	n := 256
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range a {
		a[i] = float64(i)
	}

	err := VectorAdd(dev, VectorAddConfig{N: n, A: a, B: b})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, 123, valErr.Index)
	assert.Equal(t, 123.0, valErr.Expected)
	assert.Equal(t, 42.0, valErr.Actual)
	assert.Equal(t, 3, dev.frees, "all buffers should be released after a validation failure")
}

func TestVectorAdd_FinishFailure(t *testing.T) {
	dev := newFaultDevice()
	defer dev.Device.Free()
	dev.failFinish = assert.AnError

	err := VectorAdd(dev, VectorAddConfig{N: 64})

	var kernelErr *KernelError
	require.ErrorAs(t, err, &kernelErr)
	assert.Equal(t, kernels.AddVectors, kernelErr.Kernel)
}

// A free failure on an otherwise clean run surfaces as a
// DeallocationError naming the buffer.
func TestVectorAdd_DeallocFailure(t *testing.T) {
	dev := newFaultDevice()
	defer dev.Device.Free()
	dev.failFreeOn = 1

	err := VectorAdd(dev, VectorAddConfig{N: 64})

	var deallocErr *DeallocationError
	require.ErrorAs(t, err, &deallocErr)
	assert.Equal(t, "a", deallocErr.Buffer)
}

func TestVectorAdd_InputOverrideLengthMismatch(t *testing.T) {
	dev := device.NewParallel()
	defer dev.Free()

	err := VectorAdd(dev, VectorAddConfig{
		N: 4,
		A: []float64{1, 2},
		B: []float64{1, 2, 3, 4},
	})
	require.Error(t, err)
}

func TestVectorAdd_HostAllocFailure(t *testing.T) {
	dev := device.NewParallel()
	defer dev.Free()

	err := VectorAdd(dev, VectorAddConfig{N: -4})

	var allocErr *AllocationError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "a", allocErr.Buffer)
}
