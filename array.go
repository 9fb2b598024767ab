package stallone

import (
	"fmt"
	"sync/atomic"
)

// Shape represents the dimensions of an Array.
// Example: Shape{2, 3} is a 2×3 matrix, Shape{5} a vector of five elements.
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that no dimension is negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major element strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Array is a native numeric buffer: a typed Go slice interpreted through a
// shape and element strides.
//
// Arrays built with FromSlice alias the caller's slice. Views produced by
// Transpose alias their parent and are usually not contiguous.
type Array struct {
	dtype   DType
	shape   Shape
	strides []int
	offset  int
	data    any

	// base is the array owning the memory for views, nil for owners.
	base *Array

	// shm backs arrays created with NewSharedArray.
	shm *SharedMemory

	leases atomic.Int32
}

func newArray(dt DType, shape Shape, data any) *Array {
	return &Array{
		dtype:   dt,
		shape:   shape,
		strides: shape.ComputeStrides(),
		data:    data,
	}
}

// FromSlice wraps data as an array of the given shape without copying.
// With no shape the array is one-dimensional.
func FromSlice[T Element](data []T, shape ...int) (*Array, error) {
	s := Shape(shape)
	if len(shape) == 0 {
		s = Shape{len(data)}
	}
	if err := s.Validate(); err != nil {
		return nil, wrapError(PhaseEncode, KindInvalidInput, err, "bad shape %v", shape)
	}
	if s.NumElements() != len(data) {
		return nil, newError(PhaseEncode, KindInvalidInput, "shape %v needs %d elements, got %d", shape, s.NumElements(), len(data))
	}
	return newArray(dtypeOf[T](), s.Clone(), data), nil
}

// FromRows copies a rectangular slice of rows into a new two-dimensional array.
func FromRows[T Element](rows [][]T) (*Array, error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	flat := make([]T, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, newError(PhaseEncode, KindInvalidInput, "ragged rows: row %d has %d columns, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return newArray(dtypeOf[T](), Shape{len(rows), cols}, flat), nil
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() Shape {
	return a.shape.Clone()
}

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int {
	return len(a.shape)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return a.shape.NumElements()
}

// Strides returns a copy of the element strides.
func (a *Array) Strides() []int {
	out := make([]int, len(a.strides))
	copy(out, a.strides)
	return out
}

// Data returns the backing slice ([]int32, []float64, ...). It is shared with
// the array and may hold elements outside the array for views.
func (a *Array) Data() any {
	return a.data
}

// IsContiguous reports whether the elements are laid out row-major with no gaps.
func (a *Array) IsContiguous() bool {
	expected := 1
	for k := len(a.shape) - 1; k >= 0; k-- {
		if a.shape[k] == 1 {
			continue
		}
		if a.strides[k] != expected {
			return false
		}
		expected *= a.shape[k]
	}
	return true
}

// Transpose returns a view with the axes reversed. The view shares memory with a.
func (a *Array) Transpose() *Array {
	n := len(a.shape)
	shape := make(Shape, n)
	strides := make([]int, n)
	for i := 0; i < n; i++ {
		shape[i] = a.shape[n-1-i]
		strides[i] = a.strides[n-1-i]
	}
	return &Array{
		dtype:   a.dtype,
		shape:   shape,
		strides: strides,
		offset:  a.offset,
		data:    a.data,
		base:    a.owner(),
	}
}

// Contiguous returns a if it is already contiguous, otherwise a row-major copy.
func (a *Array) Contiguous() *Array {
	if a.IsContiguous() {
		return a
	}
	return a.astype(a.dtype)
}

// At returns the element at the given coordinates as a float64.
func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("At: got %d indices for %d dimensions", len(idx), len(a.shape)))
	}
	p := a.offset
	for k, c := range idx {
		if c < 0 || c >= a.shape[k] {
			panic(fmt.Sprintf("At: index %d out of range for dimension %d of size %d", c, k, a.shape[k]))
		}
		p += c * a.strides[k]
	}
	switch src := a.data.(type) {
	case []int8:
		return float64(src[p])
	case []int16:
		return float64(src[p])
	case []int32:
		return float64(src[p])
	case []int64:
		return float64(src[p])
	case []uint8:
		return float64(src[p])
	case []float32:
		return float64(src[p])
	case []float64:
		return src[p]
	case []bool:
		if src[p] {
			return 1
		}
		return 0
	}
	panic("unreachable")
}

// Float64s returns the elements in row-major order converted to float64.
func (a *Array) Float64s() []float64 {
	return castAll[float64](a)
}

// Int32s returns the elements in row-major order converted to int32.
func (a *Array) Int32s() []int32 {
	return castAll[int32](a)
}

// Int64s returns the elements in row-major order converted to int64.
func (a *Array) Int64s() []int64 {
	return castAll[int64](a)
}

// rowsOf returns the array as row slices; a one-dimensional array is one row.
func rowsOf[T number](a *Array) [][]T {
	flat := castAll[T](a)
	if len(a.shape) != 2 {
		return [][]T{flat}
	}
	r, c := a.shape[0], a.shape[1]
	out := make([][]T, r)
	for i := 0; i < r; i++ {
		out[i] = flat[i*c : (i+1)*c : (i+1)*c]
	}
	return out
}

// astype returns a contiguous copy converted to dt.
func (a *Array) astype(dt DType) *Array {
	var data any
	switch dt {
	case Int8:
		data = castAll[int8](a)
	case Int16:
		data = castAll[int16](a)
	case Int32:
		data = castAll[int32](a)
	case Int64:
		data = castAll[int64](a)
	case Uint8:
		data = castAll[uint8](a)
	case Float32:
		data = castAll[float32](a)
	case Float64:
		data = castAll[float64](a)
	case Bool:
		f := castAll[float64](a)
		b := make([]bool, len(f))
		for i, v := range f {
			b[i] = v != 0
		}
		data = b
	}
	return newArray(dt, a.shape.Clone(), data)
}

// owner returns the array that owns the memory a views.
func (a *Array) owner() *Array {
	if a.base != nil {
		return a.base
	}
	return a
}

// each calls fn with the row-major logical index and the physical index of
// every element.
func (a *Array) each(fn func(i, p int)) {
	n := a.Len()
	if n == 0 {
		return
	}
	if a.IsContiguous() {
		for i := 0; i < n; i++ {
			fn(i, a.offset+i)
		}
		return
	}
	idx := make([]int, len(a.shape))
	for i := 0; i < n; i++ {
		p := a.offset
		for k, c := range idx {
			p += c * a.strides[k]
		}
		fn(i, p)
		for k := len(idx) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < a.shape[k] {
				break
			}
			idx[k] = 0
		}
	}
}

type number interface {
	int8 | int16 | int32 | int64 | uint8 | float32 | float64
}

func castAll[T number](a *Array) []T {
	switch src := a.data.(type) {
	case []int8:
		return gather[int8, T](a, src)
	case []int16:
		return gather[int16, T](a, src)
	case []int32:
		return gather[int32, T](a, src)
	case []int64:
		return gather[int64, T](a, src)
	case []uint8:
		return gather[uint8, T](a, src)
	case []float32:
		return gather[float32, T](a, src)
	case []float64:
		return gather[float64, T](a, src)
	case []bool:
		out := make([]T, a.Len())
		a.each(func(i, p int) {
			if src[p] {
				out[i] = 1
			}
		})
		return out
	}
	panic("unreachable")
}

func gather[S, T number](a *Array, src []S) []T {
	out := make([]T, a.Len())
	a.each(func(i, p int) {
		out[i] = T(src[p])
	})
	return out
}
