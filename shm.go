package stallone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unsafe"
)

// ErrSharedMemoryNotAvailable is returned on platforms without a shared memory
// implementation.
var ErrSharedMemoryNotAvailable = errors.New("shared memory is not available on this platform")

// SharedMemory is a named memory region that another process, the JVM in
// particular, can map by path. It implements io.Reader, io.Writer, io.Seeker,
// io.ReaderAt and io.WriterAt.
//
// The creator owns the region: closing it unmaps the memory and removes the
// backing file. Openers only unmap.
//
//	shm, _ := stallone.CreateSharedMemory("/weights", 8*1024)
//	w := shm.GetFloat64Slice(0)
//	w[0] = 1.5
//	shm.Close()
type SharedMemory struct {
	// m is the platform-specific implementation
	m *shmi

	// pos is the current read/write position
	pos int64

	// Name is the identifier used to create or open the region
	Name string
}

// validateShmName accepts "name" and "/name", never a nested path.
func validateShmName(name string) (string, error) {
	base := strings.TrimPrefix(name, "/")
	if base == "" || strings.ContainsAny(base, `/\`) || base == "." || base == ".." {
		return "", fmt.Errorf("invalid shared memory name %q", name)
	}
	return base, nil
}

// CreateSharedMemory creates a new named region of size bytes. It fails if a
// region with the same name exists.
func CreateSharedMemory(name string, size int) (*SharedMemory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shared memory %q: size must be positive, got %d", name, size)
	}
	m, err := create(name, size)
	if err != nil {
		return nil, err
	}
	return &SharedMemory{m: m, Name: name}, nil
}

// OpenSharedMemory maps an existing region. size must not exceed the size the
// region was created with.
func OpenSharedMemory(name string, size int) (*SharedMemory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shared memory %q: size must be positive, got %d", name, size)
	}
	m, err := open(name, size)
	if err != nil {
		return nil, err
	}
	return &SharedMemory{m: m, Name: name}, nil
}

// Path returns the file another process maps to reach the region.
func (o *SharedMemory) Path() string {
	if o.m == nil {
		return ""
	}
	return o.m.path
}

// GetSize returns the size of the region in bytes.
func (o *SharedMemory) GetSize() int {
	if o.m == nil {
		return 0
	}
	return o.m.size
}

// GetPtr returns a pointer to the start of the region.
func (o *SharedMemory) GetPtr() unsafe.Pointer {
	return o.m.getPtr()
}

// Close unmaps the region. The creator also removes it.
func (o *SharedMemory) Close() (err error) {
	if o.m != nil {
		err = o.m.close()
		if err == nil {
			o.m = nil
		}
	}
	return err
}

func (o *SharedMemory) Read(p []byte) (n int, err error) {
	n, err = o.ReadAt(p, o.pos)
	o.pos += int64(n)
	return n, err
}

func (o *SharedMemory) ReadAt(p []byte, off int64) (n int, err error) {
	if o.m == nil {
		return 0, io.ErrClosedPipe
	}
	return o.m.readAt(p, off)
}

func (o *SharedMemory) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += o.pos
	case io.SeekEnd:
		offset += int64(o.GetSize())
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if offset < 0 || offset > int64(o.GetSize()) {
		return 0, fmt.Errorf("invalid offset %d", offset)
	}
	o.pos = offset
	return offset, nil
}

func (o *SharedMemory) Write(p []byte) (n int, err error) {
	n, err = o.WriteAt(p, o.pos)
	o.pos += int64(n)
	return n, err
}

func (o *SharedMemory) WriteAt(p []byte, off int64) (n int, err error) {
	if o.m == nil {
		return 0, io.ErrClosedPipe
	}
	return o.m.writeAt(p, off)
}

// GetTypedSlice returns a slice over the region starting at byte offset. The
// slice aliases the shared memory and is only valid until Close.
func GetTypedSlice[T any](shm *SharedMemory, offset int) []T {
	elementSize := int(unsafe.Sizeof(*new(T)))
	numElements := (shm.m.size - offset) / elementSize
	if numElements <= 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Add(shm.GetPtr(), uintptr(offset))), numElements)
}

// GetFloat64Slice returns a float64 view of the region at byte offset.
func (o *SharedMemory) GetFloat64Slice(offset int) []float64 {
	return GetTypedSlice[float64](o, offset)
}

// GetInt32Slice returns an int32 view of the region at byte offset.
func (o *SharedMemory) GetInt32Slice(offset int) []int32 {
	return GetTypedSlice[int32](o, offset)
}

// GetByteSlice returns a byte view of the region at byte offset.
func (o *SharedMemory) GetByteSlice(offset int) []byte {
	return GetTypedSlice[byte](o, offset)
}

// nativeByteOrder names the host byte order the way the agent expects it in
// a BufferView.
func nativeByteOrder() string {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return "little"
	}
	return "big"
}
