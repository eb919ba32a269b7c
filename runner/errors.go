package runner

import "fmt"

// Error taxonomy for the offload pipeline. None of these are recovered
// internally: every failure is fatal to the run and the orchestrator
// stops at the first one.

// AllocationError reports a failed host allocation, naming the buffer
// so failures are distinguishable.
type AllocationError struct {
	Buffer string
	Bytes  int64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("host allocation of %d bytes failed for buffer %s", e.Bytes, e.Buffer)
}

// DeviceAllocationError reports a failed device allocation, carrying the
// underlying device diagnostic.
type DeviceAllocationError struct {
	Buffer string
	Err    error
}

func (e *DeviceAllocationError) Error() string {
	return fmt.Sprintf("device allocation failed for buffer %s: %v", e.Buffer, e.Err)
}

func (e *DeviceAllocationError) Unwrap() error { return e.Err }

// TransferError reports a failed host<->device copy.
type TransferError struct {
	Buffer   string
	ToDevice bool
	Err      error
}

func (e *TransferError) Error() string {
	dir := "device to host"
	if e.ToDevice {
		dir = "host to device"
	}
	return fmt.Sprintf("copy %s failed for buffer %s: %v", dir, e.Buffer, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// KernelError reports a failed kernel build, launch, or an execution
// fault surfaced at the synchronization point after the launch.
type KernelError struct {
	Kernel string
	Err    error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel %s failed: %v", e.Kernel, e.Err)
}

func (e *KernelError) Unwrap() error { return e.Err }

// ValidationError reports the first result element outside tolerance.
// Values format with %v, the shortest decimal form that round-trips.
type ValidationError struct {
	Index    int
	Expected float64
	Actual   float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at index %d: expected %v, got %v", e.Index, e.Expected, e.Actual)
}

// DeallocationError reports a failed device memory release.
type DeallocationError struct {
	Buffer string
	Err    error
}

func (e *DeallocationError) Error() string {
	return fmt.Sprintf("device free failed for buffer %s: %v", e.Buffer, e.Err)
}

func (e *DeallocationError) Unwrap() error { return e.Err }
