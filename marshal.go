package stallone

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// Factory fields on the API root.
const (
	doublesFactory = "doublesNew"
	intsFactory    = "intsNew"
)

// ToForeign converts a native array into a Stallone IDoubleArray or IIntArray.
//
// Only int32, int64, float32 and float64 elements and one- or two-dimensional
// shapes are accepted; anything else fails before the foreign space is
// touched. float32 is widened to float64 and int64 narrowed to int32, each
// with a logged warning that is also recorded in ForeignArray.Warnings.
//
// With copyData false a contiguous float64 array is not copied: the foreign
// array is a view over a's memory and holds a lease on it until
// ForeignArray.Release. Other element types fall back to a copy.
func (s *Session) ToForeign(ctx context.Context, a *Array, copyData bool) (*ForeignArray, error) {
	if a == nil {
		return nil, newError(PhaseEncode, KindInvalidInput, "nil array")
	}
	return s.toForeign(ctx, a, copyData, nil)
}

// SparseToForeign densifies m and converts the dense matrix with ToForeign.
// Densifying allocates rows*cols elements regardless of the number of entries.
func (s *Session) SparseToForeign(ctx context.Context, m *SparseMatrix, copyData bool) (*ForeignArray, error) {
	if m == nil {
		return nil, newError(PhaseEncode, KindInvalidInput, "nil sparse matrix")
	}
	dense, err := m.Dense()
	if err != nil {
		return nil, err
	}
	w := warn(WarnDensify, "converting sparse object to dense",
		zap.Int("rows", m.Rows), zap.Int("cols", m.Cols), zap.Int("nnz", m.NNZ()))
	return s.toForeign(ctx, dense, copyData, []Warning{w})
}

func (s *Session) toForeign(ctx context.Context, a *Array, copyData bool, warnings []Warning) (*ForeignArray, error) {
	if !a.dtype.Supported() {
		return nil, newError(PhaseEncode, KindUnsupportedElementType, "element type %s is not mapped in stallone", a.dtype)
	}
	if nd := a.Ndim(); nd != 1 && nd != 2 {
		return nil, newError(PhaseEncode, KindUnsupportedShape, "unsupported shape %v", a.shape)
	}

	src := a
	switch a.dtype {
	case Float32:
		warnings = append(warnings, warn(WarnWiden, "upcasting floats to doubles", zap.Int("elements", a.Len())))
		src = a.astype(Float64)
	case Int64:
		overflow := 0
		for _, v := range a.Int64s() {
			if v > math.MaxInt32 || v < math.MinInt32 {
				overflow++
			}
		}
		warnings = append(warnings, warn(WarnNarrow, "downcasting long to 32 bit integer, precision may be lost",
			zap.Int("elements", a.Len()), zap.Int("overflowing", overflow)))
		src = a.astype(Int32)
	}

	if !copyData {
		if a.dtype == Float64 {
			return s.wrapDoubles(ctx, a, warnings)
		}
		warnings = append(warnings, warn(WarnCopyFallback, "zero-copy is only available for float64 data, copying",
			zap.Stringer("dtype", a.dtype)))
	}

	if src.dtype == Float64 {
		return s.copyDoubles(ctx, src, warnings)
	}
	return s.copyInts(ctx, src, warnings)
}

func (s *Session) wrapDoubles(ctx context.Context, a *Array, warnings []Warning) (*ForeignArray, error) {
	if !a.IsContiguous() {
		return nil, newError(PhaseEncode, KindContiguityRequired, "copy required, buffer not contiguous (strides %v)", a.strides)
	}

	factory, err := s.factory(ctx, doublesFactory)
	if err != nil {
		return nil, err
	}

	rows, cols := matrixDims(a.shape)
	n := a.Len()
	view := BufferView{
		Length:    n,
		ByteOrder: nativeByteOrder(),
		Data:      a.data.([]float64)[a.offset : a.offset+n],
	}
	if shm := a.Shared(); shm != nil {
		view.Name = shm.Name
		view.Path = shm.Path()
		view.Offset = a.offset * Float64.Size()
	}

	lease := a.acquireLease()
	buf, err := s.space.WrapBuffer(ctx, view)
	if err != nil {
		lease.Release()
		return nil, err
	}
	defer s.release(ctx, buf)

	v, err := s.space.Invoke(ctx, factory.Ref, "arrayFrom", RefValue(buf), IntValue(int64(rows)), IntValue(int64(cols)))
	if err != nil {
		lease.Release()
		return nil, err
	}
	ref, err := v.AsRef()
	if err != nil {
		lease.Release()
		return nil, err
	}

	Logger().Debug("wrapped native buffer", zap.Int("rows", rows), zap.Int("cols", cols), zap.Bool("shared", view.Name != ""))
	return &ForeignArray{
		ForeignObject: ForeignObject{Ref: ref, space: s.space},
		Kind:          ElementDouble,
		Warnings:      warnings,
		lease:         lease,
	}, nil
}

func (s *Session) copyDoubles(ctx context.Context, a *Array, warnings []Warning) (*ForeignArray, error) {
	factory, err := s.factory(ctx, doublesFactory)
	if err != nil {
		return nil, err
	}

	var payload Value
	if a.Ndim() == 1 {
		payload = DoublesValue(a.Float64s())
	} else {
		rows := rowsOf[float64](a)
		items := make([]Value, len(rows))
		for i, row := range rows {
			items[i] = DoublesValue(row)
		}
		payload = ItemsValue(items)
	}

	// doublesNew.array accepts both double[] and double[][]
	return s.construct(ctx, factory, "array", ElementDouble, payload, warnings)
}

func (s *Session) copyInts(ctx context.Context, a *Array, warnings []Warning) (*ForeignArray, error) {
	factory, err := s.factory(ctx, intsFactory)
	if err != nil {
		return nil, err
	}

	if a.Ndim() == 1 {
		return s.construct(ctx, factory, "arrayFrom", ElementInt, IntsValue(a.Int32s()), warnings)
	}
	rows := rowsOf[int32](a)
	items := make([]Value, len(rows))
	for i, row := range rows {
		items[i] = IntsValue(row)
	}
	return s.construct(ctx, factory, "table", ElementInt, ItemsValue(items), warnings)
}

// construct builds a Java primitive array from payload and hands it to
// factory.method.
func (s *Session) construct(ctx context.Context, factory *ForeignObject, method string, elem ElementKind, payload Value, warnings []Warning) (*ForeignArray, error) {
	jarr, err := s.space.NewArray(ctx, elem, payload)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, jarr)

	v, err := s.space.Invoke(ctx, factory.Ref, method, RefValue(jarr))
	if err != nil {
		return nil, err
	}
	ref, err := v.AsRef()
	if err != nil {
		return nil, err
	}
	return &ForeignArray{
		ForeignObject: ForeignObject{Ref: ref, space: s.space},
		Kind:          elem,
		Warnings:      warnings,
	}, nil
}

// ToNative copies a Stallone IDoubleArray or IIntArray into a new native array.
//
// Double arrays become float64; integer arrays become int32 or int64 as set by
// the session's IntWidth. The result has shape (rows, cols) when cols > 1 and
// (rows,) otherwise. Only linear and row-major layouts (order 0, 1 or 2) are
// supported.
func (s *Session) ToNative(ctx context.Context, f *ForeignArray) (*Array, error) {
	if f == nil || f.Ref.IsNull() {
		return nil, newError(PhaseDecode, KindInvalidInput, "nil foreign array")
	}

	kind, err := s.arrayKind(ctx, f.Ref)
	if err != nil {
		return nil, err
	}
	f.Kind = kind

	rows, err := f.Rows(ctx)
	if err != nil {
		return nil, err
	}
	cols, err := f.Columns(ctx)
	if err != nil {
		return nil, err
	}
	order, err := f.Order(ctx)
	if err != nil {
		return nil, err
	}
	if order < 0 || order > 2 {
		return nil, newError(PhaseDecode, KindUnsupportedLayout, "unsupported layout: order %d is not implemented", order)
	}

	v, err := f.Call(ctx, "getArray")
	if err != nil {
		return nil, err
	}

	shape := Shape{rows}
	if cols > 1 {
		shape = Shape{rows, cols}
	}

	var out *Array
	switch kind {
	case ElementDouble:
		data, err := doublesOf(v)
		if err != nil {
			return nil, err
		}
		out, err = decodeInto(data, shape, rows*cols)
		if err != nil {
			return nil, err
		}
	case ElementInt:
		ints, err := intsOf(v)
		if err != nil {
			return nil, err
		}
		if s.intWidth == IntWidth32 {
			out, err = decodeInto(ints, shape, rows*cols)
		} else {
			wide := make([]int64, len(ints))
			for i, x := range ints {
				wide[i] = int64(x)
			}
			out, err = decodeInto(wide, shape, rows*cols)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeInto[T Element](data []T, shape Shape, want int) (*Array, error) {
	if len(data) != want {
		return nil, newError(PhaseDecode, KindInvalidInput, "getArray returned %d elements, rows*columns is %d", len(data), want)
	}
	return newArray(dtypeOf[T](), shape, data), nil
}

// arrayKind reports which Stallone array interface ref implements.
func (s *Session) arrayKind(ctx context.Context, ref Ref) (ElementKind, error) {
	isDouble, err := s.space.InstanceOf(ctx, ref, DoubleArrayInterface)
	if err != nil {
		return "", err
	}
	if isDouble {
		return ElementDouble, nil
	}
	isInt, err := s.space.InstanceOf(ctx, ref, IntArrayInterface)
	if err != nil {
		return "", err
	}
	if isInt {
		return ElementInt, nil
	}
	return "", newError(PhaseDecode, KindUnsupportedForeignType, "can only convert IDoubleArray or IIntArray, got %s", ref.Class)
}

func doublesOf(v Value) ([]float64, error) {
	switch v.Kind {
	case ValueDoubles:
		return v.Doubles, nil
	case ValueInts:
		out := make([]float64, len(v.Ints))
		for i, x := range v.Ints {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, newError(PhaseDecode, KindTypeMismatch, "getArray returned %s, want doubles", v.Kind)
}

func intsOf(v Value) ([]int32, error) {
	if v.Kind == ValueInts {
		return v.Ints, nil
	}
	return nil, newError(PhaseDecode, KindTypeMismatch, "getArray returned %s, want ints", v.Kind)
}

// matrixDims returns rows and columns, treating a vector as a column.
func matrixDims(shape Shape) (int, int) {
	if len(shape) == 2 {
		return shape[0], shape[1]
	}
	return shape[0], 1
}

func (s *Session) release(ctx context.Context, ref Ref) {
	if err := s.space.Release(ctx, ref); err != nil {
		Logger().Debug("release foreign handle", zap.Stringer("ref", ref), zap.Error(err))
	}
}

func warn(kind WarningKind, msg string, fields ...zap.Field) Warning {
	Logger().Warn(msg, append(fields, zap.String("warning", string(kind)))...)
	return Warning{Kind: kind, Detail: msg}
}
