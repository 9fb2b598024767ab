package stallone

// SparseMatrix is a float64 matrix in coordinate (COO) form. Duplicate
// coordinates are summed when densified.
type SparseMatrix struct {
	Rows, Cols int
	RowIdx     []int
	ColIdx     []int
	Values     []float64
}

// NewSparseMatrix returns an empty rows×cols sparse matrix.
func NewSparseMatrix(rows, cols int) *SparseMatrix {
	return &SparseMatrix{Rows: rows, Cols: cols}
}

// Set appends an entry.
func (m *SparseMatrix) Set(i, j int, v float64) {
	m.RowIdx = append(m.RowIdx, i)
	m.ColIdx = append(m.ColIdx, j)
	m.Values = append(m.Values, v)
}

// NNZ returns the number of stored entries.
func (m *SparseMatrix) NNZ() int {
	return len(m.Values)
}

// Dense materializes the matrix as a contiguous rows×cols float64 array.
func (m *SparseMatrix) Dense() (*Array, error) {
	if m.Rows < 0 || m.Cols < 0 {
		return nil, newError(PhaseEncode, KindInvalidInput, "negative sparse shape %dx%d", m.Rows, m.Cols)
	}
	if len(m.RowIdx) != len(m.Values) || len(m.ColIdx) != len(m.Values) {
		return nil, newError(PhaseEncode, KindInvalidInput, "sparse index and value lengths differ")
	}
	data := make([]float64, m.Rows*m.Cols)
	for k, v := range m.Values {
		i, j := m.RowIdx[k], m.ColIdx[k]
		if i < 0 || i >= m.Rows || j < 0 || j >= m.Cols {
			return nil, newError(PhaseEncode, KindInvalidInput, "entry (%d,%d) out of range for %dx%d", i, j, m.Rows, m.Cols)
		}
		data[i*m.Cols+j] += v
	}
	return newArray(Float64, Shape{m.Rows, m.Cols}, data), nil
}
