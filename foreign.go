package stallone

import (
	"context"
	"sync"
)

// ForeignObject is a reference to an object in a session's object space,
// with helpers for dynamic calls on it.
type ForeignObject struct {
	Ref   Ref
	space ObjectSpace
}

// Call invokes method on the object, converting args with ToValue.
func (o *ForeignObject) Call(ctx context.Context, method string, args ...any) (Value, error) {
	vals := make([]Value, len(args))
	for i, a := range args {
		v, err := ToValue(a)
		if err != nil {
			return Value{}, err
		}
		vals[i] = v
	}
	return o.space.Invoke(ctx, o.Ref, method, vals...)
}

// Object invokes method and returns the resulting object.
func (o *ForeignObject) Object(ctx context.Context, method string, args ...any) (*ForeignObject, error) {
	v, err := o.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	ref, err := v.AsRef()
	if err != nil {
		return nil, err
	}
	return &ForeignObject{Ref: ref, space: o.space}, nil
}

// Int invokes method and returns its integer result.
func (o *ForeignObject) Int(ctx context.Context, method string, args ...any) (int, error) {
	v, err := o.Call(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	return int(n), err
}

// Class returns the object's class identity.
func (o *ForeignObject) Class(ctx context.Context) (string, error) {
	return o.space.ClassOf(ctx, o.Ref)
}

// Release drops the handle. The object stays alive on the foreign side while
// something there still references it.
func (o *ForeignObject) Release(ctx context.Context) error {
	return o.space.Release(ctx, o.Ref)
}

// WarningKind identifies a non-fatal condition met during a conversion.
type WarningKind string

const (
	// WarnWiden: float32 input was widened to float64.
	WarnWiden WarningKind = "widen"
	// WarnNarrow: int64 input was narrowed to int32 and may have lost magnitude.
	WarnNarrow WarningKind = "narrow"
	// WarnDensify: sparse input was converted to dense before crossing.
	WarnDensify WarningKind = "densify"
	// WarnCopyFallback: zero-copy was requested but the data was copied.
	WarnCopyFallback WarningKind = "copy_fallback"
)

// Warning records a non-fatal conversion condition.
type Warning struct {
	Kind   WarningKind
	Detail string
}

// ForeignArray is a handle to a Stallone IDoubleArray or IIntArray.
type ForeignArray struct {
	ForeignObject

	// Kind is the element kind of the array.
	Kind ElementKind

	// Warnings lists the lossy steps taken to build the array, if any.
	Warnings []Warning

	mu    sync.Mutex
	lease *Lease
}

// ZeroCopy reports whether the array is a view over native memory.
func (f *ForeignArray) ZeroCopy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lease != nil
}

// Rows returns rows() of the array.
func (f *ForeignArray) Rows(ctx context.Context) (int, error) {
	return f.Int(ctx, "rows")
}

// Columns returns columns() of the array.
func (f *ForeignArray) Columns(ctx context.Context) (int, error) {
	return f.Int(ctx, "columns")
}

// Order returns the layout discriminant: 0 or 1 for linear arrays, 2 for
// row-major tables, anything else for layouts such as sparse storage.
func (f *ForeignArray) Order(ctx context.Context) (int, error) {
	return f.Int(ctx, "order")
}

// Size returns the number of elements.
func (f *ForeignArray) Size(ctx context.Context) (int, error) {
	return f.Int(ctx, "size")
}

// Get returns the element at the linear index i.
func (f *ForeignArray) Get(ctx context.Context, i int) (float64, error) {
	v, err := f.Call(ctx, "get", i)
	if err != nil {
		return 0, err
	}
	return v.AsDouble()
}

// GetAt returns the element at row i, column j.
func (f *ForeignArray) GetAt(ctx context.Context, i, j int) (float64, error) {
	v, err := f.Call(ctx, "get", i, j)
	if err != nil {
		return 0, err
	}
	return v.AsDouble()
}

// Set stores x at the linear index i. Integer arrays receive x truncated.
func (f *ForeignArray) Set(ctx context.Context, i int, x float64) error {
	_, err := f.Call(ctx, "set", i, f.element(x))
	return err
}

// SetAt stores x at row i, column j.
func (f *ForeignArray) SetAt(ctx context.Context, i, j int, x float64) error {
	_, err := f.Call(ctx, "set", i, j, f.element(x))
	return err
}

func (f *ForeignArray) element(x float64) Value {
	if f.Kind == ElementInt {
		return IntValue(int64(x))
	}
	return DoubleValue(x)
}

// Release drops the foreign handle and, for zero-copy arrays, the lease on
// the native memory. The native array must not be freed before Release.
func (f *ForeignArray) Release(ctx context.Context) error {
	err := f.ForeignObject.Release(ctx)

	f.mu.Lock()
	lease := f.lease
	f.lease = nil
	f.mu.Unlock()
	lease.Release()

	return err
}
