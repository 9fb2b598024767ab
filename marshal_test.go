package stallone_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cmb-fu/gostallone"
	"github.com/cmb-fu/gostallone/stallonetest"
)

func newSession(t *testing.T, width stallone.IntWidth) (*stallonetest.Space, *stallone.Session) {
	t.Helper()
	space := stallonetest.New()
	s, err := stallone.NewSession(context.Background(), space, width)
	require.NoError(t, err)
	return space, s
}

func warningKinds(fa *stallone.ForeignArray) []stallone.WarningKind {
	var out []stallone.WarningKind
	for _, w := range fa.Warnings {
		out = append(out, w.Kind)
	}
	return out
}

func TestToForeignDoublesRoundTrip(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	data := []float64{1, 2, 3}
	a, err := stallone.FromSlice(data)
	require.NoError(t, err)

	fa, err := s.ToForeign(ctx, a, true)
	require.NoError(t, err)
	assert.Equal(t, stallone.ElementDouble, fa.Kind)
	assert.False(t, fa.ZeroCopy())
	assert.Empty(t, fa.Warnings)

	rows, err := fa.Rows(ctx)
	require.NoError(t, err)
	cols, err := fa.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, 1, cols)

	// copied, so later native writes stay native
	data[0] = 100
	x, err := fa.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, x)

	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Float64, back.DType())
	assert.Equal(t, stallone.Shape{3}, back.Shape())
	assert.Equal(t, []float64{1, 2, 3}, back.Float64s())

	// namespace, API, the doubles factory and the array; the temporary
	// java array is gone
	assert.Equal(t, 4, space.Live())
	require.NoError(t, fa.Release(ctx))
	assert.Equal(t, 3, space.Live())
}

func TestToForeignTable(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	a, err := stallone.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	fa, err := s.ToForeign(ctx, a, true)
	require.NoError(t, err)

	order, err := fa.Order(ctx)
	require.NoError(t, err)
	assert.Equal(t, stallonetest.OrderTable, order)

	x, err := fa.GetAt(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, x)

	require.NoError(t, fa.SetAt(ctx, 0, 0, -1))

	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{2, 3}, back.Shape())
	assert.Equal(t, []float64{-1, 2, 3, 4, 5, 6}, back.Float64s())

	// the input is untouched by foreign writes on a copy
	assert.Equal(t, 1.0, a.At(0, 0))
}

func TestToForeignWidensFloat32(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	a, err := stallone.FromSlice([]float32{0.5, 1.5})
	require.NoError(t, err)

	fa, err := s.ToForeign(ctx, a, true)
	require.NoError(t, err)
	assert.Equal(t, []stallone.WarningKind{stallone.WarnWiden}, warningKinds(fa))

	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Float64, back.DType())
	assert.Equal(t, []float64{0.5, 1.5}, back.Float64s())
}

func TestToForeignInts(t *testing.T) {
	ctx := context.Background()

	t.Run("vector", func(t *testing.T) {
		_, s := newSession(t, 0)
		a, err := stallone.FromSlice([]int32{4, 5, 6})
		require.NoError(t, err)

		fa, err := s.ToForeign(ctx, a, true)
		require.NoError(t, err)
		assert.Equal(t, stallone.ElementInt, fa.Kind)
		assert.Empty(t, fa.Warnings)

		require.NoError(t, fa.Set(ctx, 2, 7.9))

		back, err := s.ToNative(ctx, fa)
		require.NoError(t, err)
		assert.Equal(t, stallone.Int64, back.DType())
		assert.Equal(t, stallone.Shape{3}, back.Shape())
		assert.Equal(t, []int64{4, 5, 7}, back.Int64s())
	})

	t.Run("table", func(t *testing.T) {
		_, s := newSession(t, stallone.IntWidth32)
		a, err := stallone.FromRows([][]int32{{1, 2}, {3, 4}})
		require.NoError(t, err)

		fa, err := s.ToForeign(ctx, a, true)
		require.NoError(t, err)

		back, err := s.ToNative(ctx, fa)
		require.NoError(t, err)
		assert.Equal(t, stallone.Int32, back.DType())
		assert.Equal(t, stallone.Shape{2, 2}, back.Shape())
		assert.Equal(t, []int32{1, 2, 3, 4}, back.Data())
	})

	t.Run("narrowing", func(t *testing.T) {
		_, s := newSession(t, 0)
		a, err := stallone.FromSlice([]int64{1, -2, math.MaxInt32 + 1})
		require.NoError(t, err)

		fa, err := s.ToForeign(ctx, a, true)
		require.NoError(t, err)
		assert.Equal(t, []stallone.WarningKind{stallone.WarnNarrow}, warningKinds(fa))

		back, err := s.ToNative(ctx, fa)
		require.NoError(t, err)
		got := back.Int64s()
		assert.Equal(t, []int64{1, -2}, got[:2])
		assert.Equal(t, int64(math.MinInt32), got[2])
	})
}

func TestToForeignZeroCopy(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	data := []float64{1, 2, 3, 4}
	a, err := stallone.FromSlice(data, 2, 2)
	require.NoError(t, err)

	fa, err := s.ToForeign(ctx, a, false)
	require.NoError(t, err)
	assert.True(t, fa.ZeroCopy())
	assert.Empty(t, fa.Warnings)
	assert.Equal(t, 1, a.Leases())

	// foreign writes land in native memory and the other way round
	require.NoError(t, fa.SetAt(ctx, 0, 1, 9))
	assert.Equal(t, 9.0, data[1])

	data[3] = 7
	x, err := fa.GetAt(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, x)

	// the intermediate buffer handle is not kept
	assert.Equal(t, 1, space.Calls("arrayFrom"))
	assert.Equal(t, 4, space.Live())

	require.NoError(t, fa.Release(ctx))
	assert.False(t, fa.ZeroCopy())
	assert.Equal(t, 0, a.Leases())

	// a second release is harmless for the lease
	_ = fa.Release(ctx)
	assert.Equal(t, 0, a.Leases())
}

func TestToForeignZeroCopyFallsBackForOtherTypes(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	ints, err := stallone.FromSlice([]int32{1, 2})
	require.NoError(t, err)
	fa, err := s.ToForeign(ctx, ints, false)
	require.NoError(t, err)
	assert.False(t, fa.ZeroCopy())
	assert.Equal(t, []stallone.WarningKind{stallone.WarnCopyFallback}, warningKinds(fa))
	assert.Equal(t, 0, ints.Leases())

	floats, err := stallone.FromSlice([]float32{1, 2})
	require.NoError(t, err)
	fa, err = s.ToForeign(ctx, floats, false)
	require.NoError(t, err)
	assert.False(t, fa.ZeroCopy())
	assert.Equal(t, []stallone.WarningKind{stallone.WarnWiden, stallone.WarnCopyFallback}, warningKinds(fa))
}

func TestToForeignContiguity(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	a, err := stallone.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	tr := a.Transpose()

	_, err = s.ToForeign(ctx, tr, false)
	assert.ErrorIs(t, err, stallone.ErrContiguityRequired)
	assert.Equal(t, 0, a.Leases())
	assert.Equal(t, 0, space.Calls("arrayFrom"))

	// copying gathers the view in logical order
	fa, err := s.ToForeign(ctx, tr, true)
	require.NoError(t, err)
	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{3, 2}, back.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, back.Float64s())
}

func TestToForeignRejects(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	_, err := s.ToForeign(ctx, nil, true)
	assert.ErrorIs(t, err, stallone.ErrInvalidInput)

	small, err := stallone.FromSlice([]int16{1, 2})
	require.NoError(t, err)
	_, err = s.ToForeign(ctx, small, true)
	assert.ErrorIs(t, err, stallone.ErrUnsupportedElementType)

	flags, err := stallone.FromSlice([]bool{true})
	require.NoError(t, err)
	_, err = s.ToForeign(ctx, flags, true)
	assert.ErrorIs(t, err, stallone.ErrUnsupportedElementType)

	cube, err := stallone.FromSlice(make([]float64, 8), 2, 2, 2)
	require.NoError(t, err)
	_, err = s.ToForeign(ctx, cube, true)
	assert.ErrorIs(t, err, stallone.ErrUnsupportedShape)

	// rejected before the foreign side is touched
	assert.Equal(t, 0, space.Calls("doublesNew"))
	assert.Equal(t, 0, space.Calls("newArray"))
}

func TestSparseToForeign(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	m := stallone.NewSparseMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(1, 1, 2)

	fa, err := s.SparseToForeign(ctx, m, true)
	require.NoError(t, err)
	assert.Equal(t, []stallone.WarningKind{stallone.WarnDensify}, warningKinds(fa))

	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 2}, back.Float64s())

	_, err = s.SparseToForeign(ctx, nil, true)
	assert.ErrorIs(t, err, stallone.ErrInvalidInput)
}

func TestSparseToForeignWarnsOnlyWhenDensified(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	core, logs := observer.New(zapcore.WarnLevel)
	stallone.SetLogger(zap.New(core))
	t.Cleanup(func() { stallone.SetLogger(nil) })

	m := stallone.NewSparseMatrix(2, 2)
	m.Set(2, 0, 1)
	_, err := s.SparseToForeign(ctx, m, true)
	require.ErrorIs(t, err, stallone.ErrInvalidInput)
	assert.Zero(t, logs.Len(), "nothing was densified")

	m = stallone.NewSparseMatrix(2, 2)
	m.Set(1, 0, 1)
	_, err = s.SparseToForeign(ctx, m, true)
	require.NoError(t, err)

	densify := logs.FilterField(zap.String("warning", string(stallone.WarnDensify)))
	require.Equal(t, 1, densify.Len())
	assert.Equal(t, int64(1), densify.All()[0].ContextMap()["nnz"])
}

func TestToNativeLayouts(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	col := space.AddDoubleArray([]float64{1, 2, 3}, 3, 1, stallonetest.OrderLinear)
	a, err := s.ToNative(ctx, s.WrapArray(col))
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{3}, a.Shape())

	sparse := space.AddDoubleArray([]float64{1, 0, 0, 1}, 2, 2, stallonetest.OrderSparse)
	_, err = s.ToNative(ctx, s.WrapArray(sparse))
	assert.ErrorIs(t, err, stallone.ErrUnsupportedLayout)

	str := space.AddObject("java.lang.String")
	_, err = s.ToNative(ctx, s.WrapArray(str))
	assert.ErrorIs(t, err, stallone.ErrUnsupportedForeignType)

	ints := space.AddIntArray([]int32{1, 2, 3, 4, 5, 6}, 3, 2)
	fa := s.WrapArray(ints)
	b, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.ElementInt, fa.Kind)
	assert.Equal(t, stallone.Shape{3, 2}, b.Shape())
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, b.Int64s())

	_, err = s.ToNative(ctx, nil)
	assert.ErrorIs(t, err, stallone.ErrInvalidInput)
}

func TestToForeignReportsSize(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	for _, n := range []int{0, 1, 7} {
		data := make([]int64, n)
		for i := range data {
			data[i] = int64(i * 3)
		}
		a, err := stallone.FromSlice(data)
		require.NoError(t, err)

		fa, err := s.ToForeign(ctx, a, true)
		require.NoError(t, err)
		size, err := fa.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, size, "int vector of %d", n)
		rows, err := fa.Rows(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, rows)
	}

	a, err := stallone.FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	fa, err := s.ToForeign(ctx, a, true)
	require.NoError(t, err)
	size, err := fa.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, size)
}

func TestSingleColumnRoundTripFlattens(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, stallone.IntWidth32)

	doubles, err := stallone.FromRows([][]float64{{1.5}, {2.5}, {3.5}})
	require.NoError(t, err)
	require.Equal(t, stallone.Shape{3, 1}, doubles.Shape())

	fa, err := s.ToForeign(ctx, doubles, true)
	require.NoError(t, err)
	cols, err := fa.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cols)

	back, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{3}, back.Shape())
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, back.Float64s())

	ints, err := stallone.FromRows([][]int32{{4}, {5}})
	require.NoError(t, err)
	fa, err = s.ToForeign(ctx, ints, true)
	require.NoError(t, err)

	back, err = s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{2}, back.Shape())
	assert.Equal(t, []int32{4, 5}, back.Data())
}

func TestToNativeOrderZero(t *testing.T) {
	ctx := context.Background()
	space, s := newSession(t, 0)

	ref := space.AddDoubleArray([]float64{9, 8}, 2, 1, 0)
	fa := s.WrapArray(ref)
	order, err := fa.Order(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, order)

	a, err := s.ToNative(ctx, fa)
	require.NoError(t, err)
	assert.Equal(t, stallone.Shape{2}, a.Shape())
	assert.Equal(t, []float64{9, 8}, a.Float64s())

	bad := space.AddDoubleArray([]float64{1}, 1, 1, -1)
	_, err = s.ToNative(ctx, s.WrapArray(bad))
	assert.ErrorIs(t, err, stallone.ErrUnsupportedLayout)
}

func TestForeignExceptionsSurface(t *testing.T) {
	ctx := context.Background()
	_, s := newSession(t, 0)

	a, err := stallone.FromSlice([]float64{1, 2, 3})
	require.NoError(t, err)
	fa, err := s.ToForeign(ctx, a, true)
	require.NoError(t, err)

	_, err = fa.Get(ctx, 10)
	var fe *stallone.ForeignException
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "java.lang.ArrayIndexOutOfBoundsException", fe.Exception)
}
