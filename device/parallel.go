package device

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// ModeParallel selects the in-process backend: work-groups map to
// goroutines and device memory to ordinary heap slabs. It is always
// available and needs no installed accelerator runtime.
const ModeParallel = "Parallel"

type parallelDevice struct {
	freed atomic.Bool
	live  atomic.Int64 // live allocations
}

// NewParallel returns the in-process goroutine backend.
func NewParallel() Device {
	return &parallelDevice{}
}

func (d *parallelDevice) Mode() string { return ModeParallel }

func (d *parallelDevice) MemAlloc(bytes int64) (Memory, error) {
	if d.freed.Load() {
		return nil, ErrFreed
	}
	if bytes <= 0 {
		return nil, fmt.Errorf("device: allocation size must be positive, got %d", bytes)
	}
	d.live.Add(1)
	return &parallelMemory{dev: d, buf: make([]byte, bytes)}, nil
}

func (d *parallelDevice) BuildKernel(name string) (Kernel, error) {
	if d.freed.Load() {
		return nil, ErrFreed
	}
	impl, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &parallelKernel{name: name, lane: impl.lane}, nil
}

// Finish is a no-op: Run joins every work-group goroutine before it
// returns, so there is never queued work to wait for.
func (d *parallelDevice) Finish() error {
	if d.freed.Load() {
		return ErrFreed
	}
	return nil
}

func (d *parallelDevice) Free() error {
	if d.freed.Swap(true) {
		return ErrFreed
	}
	return nil
}

// LiveAllocations reports allocations not yet freed, for leak checks.
func (d *parallelDevice) LiveAllocations() int64 {
	return d.live.Load()
}

type parallelMemory struct {
	dev   *parallelDevice
	buf   []byte
	freed atomic.Bool
}

func (m *parallelMemory) Size() int64 { return int64(len(m.buf)) }

func (m *parallelMemory) checkRange(bytes int64) error {
	if m.freed.Load() || m.dev.freed.Load() {
		return ErrFreed
	}
	if bytes < 0 || bytes > int64(len(m.buf)) {
		return fmt.Errorf("device: copy of %d bytes outside allocation of %d bytes", bytes, len(m.buf))
	}
	return nil
}

func (m *parallelMemory) CopyFrom(src unsafe.Pointer, bytes int64) error {
	if err := m.checkRange(bytes); err != nil {
		return err
	}
	copy(m.buf[:bytes], unsafe.Slice((*byte)(src), bytes))
	return nil
}

func (m *parallelMemory) CopyTo(dst unsafe.Pointer, bytes int64) error {
	if err := m.checkRange(bytes); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(dst), bytes), m.buf[:bytes])
	return nil
}

func (m *parallelMemory) Free() error {
	if m.freed.Swap(true) {
		return ErrFreed
	}
	m.dev.live.Add(-1)
	return nil
}

type parallelKernel struct {
	name string
	lane LaneFunc
}

func (k *parallelKernel) Name() string { return k.name }
func (k *parallelKernel) Free()        {}

// Run executes one goroutine per work-group, bounded by GOMAXPROCS.
// Lanes within a group run sequentially; groups run in any order, which
// is safe because each lane owns its output element exclusively.
func (k *parallelKernel) Run(grid Grid, args ...interface{}) error {
	if err := grid.validate(); err != nil {
		return err
	}

	// Unwrap memory arguments into their backing slabs once, so lanes
	// see byte slices instead of Memory handles.
	resolved := make([]interface{}, len(args))
	for i, a := range args {
		if m, ok := a.(*parallelMemory); ok {
			if m.freed.Load() {
				return ErrFreed
			}
			resolved[i] = m.buf
			continue
		}
		if _, ok := a.(Memory); ok {
			return fmt.Errorf("device: kernel %s: argument %d is memory from another backend", k.name, i)
		}
		resolved[i] = a
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for grp := 0; grp < grid.Groups(); grp++ {
		lo := grp * grid.GroupSize
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("device: kernel %s: lane fault in group %d: %v", k.name, lo/grid.GroupSize, r)
				}
			}()
			for gid := lo; gid < lo+grid.GroupSize; gid++ {
				k.lane(gid, resolved)
			}
			return nil
		})
	}
	return eg.Wait()
}
