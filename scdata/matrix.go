package scdata

import (
	"errors"
	"fmt"
)

// ErrNotMatrix is returned by Normalize for values that cannot be reduced
// to one of the canonical matrix layouts.
var ErrNotMatrix = errors.New("not a recognised matrix")

// Matrix is a 2-D numeric matrix in one of the canonical layouts, Dense or
// *CSR. Other representations are reduced to these by Normalize.
type Matrix interface {
	Shape() (rows, cols int)
}

// Dense is a row-major dense matrix.
type Dense struct {
	Rows, Cols int
	Data       []float32
}

// NewDense returns a zero-filled rows x cols matrix.
func NewDense(rows, cols int) *Dense {
	return &Dense{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

func (d *Dense) Shape() (int, int) { return d.Rows, d.Cols }

// At returns the element at row i, column j.
func (d *Dense) At(i, j int) float32 { return d.Data[i*d.Cols+j] }

// Set sets the element at row i, column j.
func (d *Dense) Set(i, j int, v float32) { d.Data[i*d.Cols+j] = v }

// CSR is a compressed sparse row matrix. Row i holds the entries
// Data[Indptr[i]:Indptr[i+1]] in columns Indices[Indptr[i]:Indptr[i+1]].
type CSR struct {
	Rows, Cols int
	Data       []float32
	Indices    []int32
	Indptr     []int32
}

func (m *CSR) Shape() (int, int) { return m.Rows, m.Cols }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.Data) }

// Validate checks the structural invariants of the CSR arrays.
func (m *CSR) Validate() error {
	if m.Rows < 0 || m.Cols < 0 {
		return fmt.Errorf("negative shape (%d, %d)", m.Rows, m.Cols)
	}
	if len(m.Indptr) != m.Rows+1 {
		return fmt.Errorf("indptr has %d entries, want %d", len(m.Indptr), m.Rows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("indices has %d entries, data has %d", len(m.Indices), len(m.Data))
	}
	if m.Indptr[0] != 0 || int(m.Indptr[m.Rows]) != len(m.Data) {
		return fmt.Errorf("indptr must run from 0 to %d", len(m.Data))
	}
	for i := 0; i < m.Rows; i++ {
		if m.Indptr[i] > m.Indptr[i+1] {
			return fmt.Errorf("indptr decreases at row %d", i)
		}
	}
	for k, c := range m.Indices {
		if c < 0 || int(c) >= m.Cols {
			return fmt.Errorf("column index %d out of range at entry %d", c, k)
		}
	}
	return nil
}

// ToDense expands the matrix.
func (m *CSR) ToDense() *Dense {
	d := NewDense(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
			d.Set(i, int(m.Indices[k]), m.Data[k])
		}
	}
	return d
}

// CSC is a compressed sparse column matrix. It is not a canonical layout;
// Normalize converts it to CSR.
type CSC struct {
	Rows, Cols int
	Data       []float32
	Indices    []int32 // row indices
	Indptr     []int32 // length Cols+1
}

func (m *CSC) Shape() (int, int) { return m.Rows, m.Cols }

// Transposed is a lazy transpose of another matrix.
type Transposed struct {
	Of Matrix
}

func (t Transposed) Shape() (int, int) {
	r, c := t.Of.Shape()
	return c, r
}

// RowSubset is a lazy view that selects rows of another matrix, in order.
type RowSubset struct {
	Of   Matrix
	Rows []int
}

func (v RowSubset) Shape() (int, int) {
	_, c := v.Of.Shape()
	return len(v.Rows), c
}

// Normalize reduces a matrix value to a canonical *Dense or *CSR.
// Value forms, lazy views and float64 row slices are accepted.
func Normalize(m any) (Matrix, error) {
	switch v := m.(type) {
	case *Dense:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *Dense", ErrNotMatrix)
		}
		if len(v.Data) != v.Rows*v.Cols {
			return nil, fmt.Errorf("dense data has %d values, shape (%d, %d)", len(v.Data), v.Rows, v.Cols)
		}
		return v, nil
	case Dense:
		return Normalize(&v)
	case *CSR:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *CSR", ErrNotMatrix)
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return v, nil
	case CSR:
		return Normalize(&v)
	case *CSC:
		if v == nil {
			return nil, fmt.Errorf("%w: nil *CSC", ErrNotMatrix)
		}
		return cscToCSR(v)
	case CSC:
		return cscToCSR(&v)
	case Transposed:
		inner, err := Normalize(v.Of)
		if err != nil {
			return nil, err
		}
		return transpose(inner), nil
	case *Transposed:
		return Normalize(*v)
	case RowSubset:
		inner, err := Normalize(v.Of)
		if err != nil {
			return nil, err
		}
		return selectRows(inner, v.Rows)
	case *RowSubset:
		return Normalize(*v)
	case [][]float64:
		return denseFromRows(v)
	case [][]float32:
		rows := make([][]float64, len(v))
		for i, r := range v {
			rows[i] = make([]float64, len(r))
			for j, x := range r {
				rows[i][j] = float64(x)
			}
		}
		return denseFromRows(rows)
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotMatrix)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotMatrix, m)
	}
}

func denseFromRows(rows [][]float64) (*Dense, error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	d := NewDense(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("ragged rows: row %d has %d values, want %d", i, len(r), cols)
		}
		for j, x := range r {
			d.Set(i, j, float32(x))
		}
	}
	return d, nil
}

func cscToCSR(m *CSC) (*CSR, error) {
	// the transpose of a CSC matrix has exactly the CSR arrays of its rows
	t := &CSR{Rows: m.Cols, Cols: m.Rows, Data: m.Data, Indices: m.Indices, Indptr: m.Indptr}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CSC matrix: %w", err)
	}
	return transpose(t).(*CSR), nil
}

func transpose(m Matrix) Matrix {
	switch v := m.(type) {
	case *Dense:
		t := NewDense(v.Cols, v.Rows)
		for i := 0; i < v.Rows; i++ {
			for j := 0; j < v.Cols; j++ {
				t.Set(j, i, v.At(i, j))
			}
		}
		return t
	case *CSR:
		counts := make([]int32, v.Cols+1)
		for _, c := range v.Indices {
			counts[c+1]++
		}
		for j := 0; j < v.Cols; j++ {
			counts[j+1] += counts[j]
		}
		t := &CSR{
			Rows:    v.Cols,
			Cols:    v.Rows,
			Data:    make([]float32, len(v.Data)),
			Indices: make([]int32, len(v.Indices)),
			Indptr:  append([]int32(nil), counts...),
		}
		next := counts[:v.Cols]
		for i := 0; i < v.Rows; i++ {
			for k := v.Indptr[i]; k < v.Indptr[i+1]; k++ {
				c := v.Indices[k]
				dst := next[c]
				t.Indices[dst] = int32(i)
				t.Data[dst] = v.Data[k]
				next[c]++
			}
		}
		return t
	}
	panic(fmt.Sprintf("transpose: unexpected %T", m))
}

func selectRows(m Matrix, rows []int) (Matrix, error) {
	nr, _ := m.Shape()
	for _, r := range rows {
		if r < 0 || r >= nr {
			return nil, fmt.Errorf("row %d out of range [0, %d)", r, nr)
		}
	}
	switch v := m.(type) {
	case *Dense:
		out := NewDense(len(rows), v.Cols)
		for i, r := range rows {
			copy(out.Data[i*v.Cols:(i+1)*v.Cols], v.Data[r*v.Cols:(r+1)*v.Cols])
		}
		return out, nil
	case *CSR:
		out := &CSR{Rows: len(rows), Cols: v.Cols, Indptr: make([]int32, 1, len(rows)+1)}
		for _, r := range rows {
			lo, hi := v.Indptr[r], v.Indptr[r+1]
			out.Data = append(out.Data, v.Data[lo:hi]...)
			out.Indices = append(out.Indices, v.Indices[lo:hi]...)
			out.Indptr = append(out.Indptr, int32(len(out.Data)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotMatrix, m)
}

// SameShape reports whether a and b have equal shapes.
func SameShape(a, b Matrix) bool {
	ar, ac := a.Shape()
	br, bc := b.Shape()
	return ar == br && ac == bc
}
