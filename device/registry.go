package device

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// LaneFunc is the portable form of a kernel: the work of one lane,
// identified by its global id. A lane must mask gids at or beyond the
// logical element count itself, mirroring the bounds check in the OKL
// form, and may only write state owned by its own gid.
type LaneFunc func(gid int, args []interface{})

type kernelImpl struct {
	okl  string
	lane LaneFunc
}

var (
	regMu    sync.RWMutex
	registry = make(map[string]kernelImpl)
)

// Register makes a kernel available to every backend under name. okl is
// the OCCA kernel source, lane the equivalent Go implementation; the
// two must produce identical results for in-range gids. Registering the
// same name twice panics.
func Register(name, okl string, lane LaneFunc) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("device: kernel %s registered twice", name))
	}
	registry[name] = kernelImpl{okl: okl, lane: lane}
}

func lookup(name string) (kernelImpl, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	impl, ok := registry[name]
	if !ok {
		return kernelImpl{}, fmt.Errorf("device: kernel %s not registered", name)
	}
	return impl, nil
}

// RegisteredKernels returns the sorted names of all registered kernels.
func RegisteredKernels() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Float64Arg reinterprets a kernel argument bound to device memory as a
// float64 slice. Only valid inside a LaneFunc on the Parallel backend,
// where memory arguments arrive as raw byte slabs.
func Float64Arg(arg interface{}) []float64 {
	buf, ok := arg.([]byte)
	if !ok {
		panic(fmt.Sprintf("device: argument %T is not device memory", arg))
	}
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&buf[0])), len(buf)/8)
}

// IntArg returns an integer scalar kernel argument.
func IntArg(arg interface{}) int {
	switch v := arg.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		panic(fmt.Sprintf("device: argument %T is not an integer scalar", arg))
	}
}
