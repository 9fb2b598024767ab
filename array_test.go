package stallone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.NoError(t, s.Validate())
	assert.Error(t, Shape{2, -1}.Validate())

	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0])

	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestDType(t *testing.T) {
	tests := []struct {
		dt        DType
		name      string
		size      int
		supported bool
	}{
		{Int8, "int8", 1, false},
		{Int16, "int16", 2, false},
		{Int32, "int32", 4, true},
		{Int64, "int64", 8, true},
		{Uint8, "uint8", 1, false},
		{Float32, "float32", 4, true},
		{Float64, "float64", 8, true},
		{Bool, "bool", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dt.String())
			assert.Equal(t, tt.size, tt.dt.Size())
			assert.Equal(t, tt.supported, tt.dt.Supported())
		})
	}
	assert.Equal(t, Float32, dtypeOf[float32]())
	assert.Equal(t, Bool, dtypeOf[bool]())
}

func TestFromSlice(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	a, err := FromSlice(data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Float64, a.DType())
	assert.Equal(t, Shape{2, 3}, a.Shape())
	assert.Equal(t, 2, a.Ndim())
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, []int{3, 1}, a.Strides())
	assert.True(t, a.IsContiguous())
	assert.Equal(t, 6.0, a.At(1, 2))

	// the array aliases the slice
	data[0] = 10
	assert.Equal(t, 10.0, a.At(0, 0))

	v, err := FromSlice([]int32{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, Shape{3}, v.Shape())

	_, err = FromSlice([]float64{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FromSlice([]float64{}, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFromRows(t *testing.T) {
	a, err := FromRows([][]int64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, Int64, a.DType())
	assert.Equal(t, Shape{3, 2}, a.Shape())
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, a.Int64s())

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTransposeIsAView(t *testing.T) {
	a, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	tr := a.Transpose()
	assert.Equal(t, Shape{3, 2}, tr.Shape())
	assert.False(t, tr.IsContiguous())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.Float64s())
	assert.Equal(t, 4.0, tr.At(0, 1))

	c := tr.Contiguous()
	assert.True(t, c.IsContiguous())
	assert.Equal(t, tr.Float64s(), c.Float64s())
	assert.Same(t, a, a.Contiguous())

	// views share the owner's leases
	l := tr.acquireLease()
	assert.Equal(t, 1, a.Leases())
	l.Release()
	l.Release()
	assert.Equal(t, 0, a.Leases())
}

func TestSingletonDimensionsStayContiguous(t *testing.T) {
	a, err := FromSlice([]float64{1, 2, 3}, 3, 1)
	require.NoError(t, err)
	assert.True(t, a.Transpose().IsContiguous())
}

func TestConversions(t *testing.T) {
	a, err := FromSlice([]float32{1.5, -2.5, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.5, 3}, a.Float64s())
	assert.Equal(t, []int32{1, -2, 3}, a.Int32s())

	b, err := FromSlice([]bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 0, 1}, b.Int64s())
	assert.Equal(t, 1.0, b.At(2))

	m, err := FromRows([][]int32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, rowsOf[float64](m))

	wide := m.astype(Int64)
	assert.Equal(t, Int64, wide.DType())
	assert.Equal(t, []int64{1, 2, 3, 4}, wide.Data())
}

func TestAtPanicsOutOfRange(t *testing.T) {
	a, err := FromSlice([]int32{1, 2})
	require.NoError(t, err)
	assert.Panics(t, func() { a.At(2) })
	assert.Panics(t, func() { a.At(0, 0) })
}

func TestSparseMatrixDense(t *testing.T) {
	m := NewSparseMatrix(2, 3)
	m.Set(0, 1, 2)
	m.Set(1, 2, 5)
	m.Set(1, 2, 1)
	assert.Equal(t, 3, m.NNZ())

	d, err := m.Dense()
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3}, d.Shape())
	assert.Equal(t, []float64{0, 2, 0, 0, 0, 6}, d.Float64s())

	m.Set(2, 0, 1)
	_, err = m.Dense()
	assert.ErrorIs(t, err, ErrInvalidInput)
}
