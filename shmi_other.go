//go:build !(darwin || linux)

package stallone

import (
	"io"
	"unsafe"
)

// shmi is a stub; every constructor returns ErrSharedMemoryNotAvailable.
type shmi struct {
	path string
	size int
}

func create(name string, size int) (*shmi, error) {
	return nil, ErrSharedMemoryNotAvailable
}

func open(name string, size int) (*shmi, error) {
	return nil, ErrSharedMemoryNotAvailable
}

func (o *shmi) getPtr() unsafe.Pointer {
	return nil
}

func (o *shmi) close() error {
	return ErrSharedMemoryNotAvailable
}

func (o *shmi) readAt(p []byte, off int64) (int, error) {
	return 0, io.EOF
}

func (o *shmi) writeAt(p []byte, off int64) (int, error) {
	return 0, io.EOF
}
