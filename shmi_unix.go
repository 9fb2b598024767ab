//go:build darwin || linux

package stallone

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// shmi backs a region with a file in the shared memory directory, mapped
// MAP_SHARED so the JVM can map the same file.
type shmi struct {
	path  string
	data  []byte
	size  int
	owner bool
}

// shmDir prefers the tmpfs at /dev/shm and falls back to the temp directory.
func shmDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func shmPath(name string) (string, error) {
	base, err := validateShmName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(shmDir(), "stallone."+base), nil
}

func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func create(name string, size int) (*shmi, error) {
	path, err := shmPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create shared memory %q: %w", name, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("size shared memory %q: %w", name, err)
	}
	data, err := mapFile(f, size)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("map shared memory %q: %w", name, err)
	}
	return &shmi{path: path, data: data, size: size, owner: true}, nil
}

func open(name string, size int) (*shmi, error) {
	path, err := shmPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open shared memory %q: %w", name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() < int64(size) {
		return nil, fmt.Errorf("shared memory %q holds %d bytes, %d requested", name, fi.Size(), size)
	}
	data, err := mapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("map shared memory %q: %w", name, err)
	}
	return &shmi{path: path, data: data, size: size}, nil
}

func (o *shmi) getPtr() unsafe.Pointer {
	return unsafe.Pointer(&o.data[0])
}

func (o *shmi) close() error {
	if err := unix.Munmap(o.data); err != nil {
		return err
	}
	o.data = nil
	if o.owner {
		if err := os.Remove(o.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (o *shmi) readAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(o.size) {
		return 0, io.EOF
	}
	n := copy(p, o.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (o *shmi) writeAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(o.size) {
		return 0, io.ErrShortWrite
	}
	n := copy(o.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
