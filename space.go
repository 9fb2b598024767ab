package stallone

import "context"

// Class and interface names of the wrapped library that this package relies on.
const (
	// NamespaceRoot is the package every Stallone class lives under.
	NamespaceRoot = "stallone"

	// APIClass is the static factory class resolved at startup.
	APIClass = "stallone.api.API"

	// APIIdentity is the class identity the API root must report. A different
	// identity means a stale or incompatible archive was loaded.
	APIIdentity = "stallone.api.API$$Static"

	DoubleArrayInterface = "stallone.api.doubles.IDoubleArray"
	IntArrayInterface    = "stallone.api.ints.IIntArray"
	ArrayListClass       = "java.util.ArrayList"
)

// ElementKind is the element type of a foreign primitive or object array.
type ElementKind string

const (
	ElementInt    ElementKind = "int"
	ElementDouble ElementKind = "double"
	ElementString ElementKind = "string"
	ElementObject ElementKind = "object"
)

// BufferView describes native float64 memory to be wrapped as a foreign
// double buffer without copying.
type BufferView struct {
	// Name and Path locate the shared memory region for out-of-process spaces.
	// Both are empty for heap memory.
	Name string `msgpack:"name"`
	Path string `msgpack:"path"`

	// Offset is the byte offset of the first element within the region.
	Offset int `msgpack:"offset"`

	// Length is the number of float64 elements.
	Length int `msgpack:"length"`

	// ByteOrder is "little" or "big".
	ByteOrder string `msgpack:"byte_order"`

	// Data is the memory itself, usable by in-process spaces.
	Data []float64 `msgpack:"-"`
}

// ObjectSpace is the bridge to the foreign object space. All access to the
// wrapped library goes through it as dynamic calls.
//
// Fields are read as zero-argument invocations: API.doublesNew is
// Invoke(ctx, api, "doublesNew").
type ObjectSpace interface {
	// Resolve looks up a package or class by its fully qualified name.
	Resolve(ctx context.Context, name string) (Ref, error)

	// ClassOf returns the declared implementation identity of ref.
	ClassOf(ctx context.Context, ref Ref) (string, error)

	// InstanceOf reports whether ref implements the named class or interface.
	InstanceOf(ctx context.Context, ref Ref, class string) (bool, error)

	// Invoke calls method on target with args.
	Invoke(ctx context.Context, target Ref, method string, args ...Value) (Value, error)

	// NewArray creates a Java array with the given element kind. One-dimensional
	// data comes as ints, doubles, strings or items; two-dimensional data as
	// items holding one value per row.
	NewArray(ctx context.Context, elem ElementKind, data Value) (Ref, error)

	// NewList creates an empty java.util.ArrayList.
	NewList(ctx context.Context, capacity int) (Ref, error)

	// WrapBuffer wraps native memory as a foreign DoubleBuffer.
	WrapBuffer(ctx context.Context, view BufferView) (Ref, error)

	// Release drops the space's handle for ref.
	Release(ctx context.Context, ref Ref) error

	// Close shuts the space down.
	Close() error
}

// Launcher starts a foreign runtime and returns its object space.
// javaPath may be empty, meaning the launcher picks the default runtime.
type Launcher func(ctx context.Context, javaPath string, args []string) (ObjectSpace, error)
