package stallone

import (
	"sync"
)

// Lease pins the memory of a native array while a foreign view over it exists.
// It is taken by ToForeign on the zero-copy path and released by
// ForeignArray.Release. Release is idempotent.
type Lease struct {
	arr  *Array
	once sync.Once
}

func (a *Array) acquireLease() *Lease {
	owner := a.owner()
	owner.leases.Add(1)
	return &Lease{arr: owner}
}

// Release returns the lease. The array may be closed once every lease on it
// has been released.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.arr.leases.Add(-1)
	})
}

// Leases returns the number of outstanding leases on the memory a uses.
func (a *Array) Leases() int {
	return int(a.owner().leases.Load())
}

// NewSharedArray allocates a float64 array of the given shape in named shared
// memory. Shared arrays are the only ones a remote object space can view
// without copying. Close the array when done.
func NewSharedArray(name string, shape ...int) (*Array, error) {
	s := Shape(shape)
	if err := s.Validate(); err != nil {
		return nil, wrapError(PhaseMemory, KindInvalidInput, err, "bad shape %v", shape)
	}
	n := s.NumElements()
	if n == 0 {
		return nil, newError(PhaseMemory, KindInvalidInput, "shared array %q has no elements", name)
	}

	shm, err := CreateSharedMemory(name, n*Float64.Size())
	if err != nil {
		return nil, wrapError(PhaseMemory, KindInvalidInput, err, "create shared memory %q", name)
	}

	a := newArray(Float64, s.Clone(), shm.GetFloat64Slice(0)[:n])
	a.shm = shm
	return a, nil
}

// Shared returns the shared memory backing a, or nil for heap arrays.
func (a *Array) Shared() *SharedMemory {
	return a.owner().shm
}

// Close releases the shared memory behind a shared array. It fails with
// KindLeaseHeld while a foreign view still holds a lease. Closing a heap array
// or a view is a no-op.
func (a *Array) Close() error {
	if a.base != nil || a.shm == nil {
		return nil
	}
	if n := a.leases.Load(); n > 0 {
		return newError(PhaseMemory, KindLeaseHeld, "shared array %q still has %d foreign view(s)", a.shm.Name, n)
	}
	if err := a.shm.Close(); err != nil {
		return wrapError(PhaseMemory, KindInvalidInput, err, "close shared memory %q", a.shm.Name)
	}
	a.shm = nil
	a.data = []float64(nil)
	a.shape = Shape{0}
	a.strides = a.shape.ComputeStrides()
	return nil
}
