// Package series holds the columnar time-series representation produced by
// a decode pass: one growable array per field name, one row per accepted
// ensemble, plus a parallel flag marking checksum-valid rows against
// resynchronised/estimated ones.
//
// A Series is the only artefact that outlives a decode call. Field values
// are raw instrument counts; unit and calibration conversion belongs to the
// downstream stage that consumes the series.
package series

import (
	"fmt"
	"math"
	"sort"
)

// Fill is the value padding rows for fields absent from an ensemble
// (optional sections) and short matrix rows.
var Fill = math.NaN()

// Matrix is a per-cell field: one row per ensemble, Cells values per row,
// row-major in Data. Rows decoded with fewer cells are padded with Fill.
type Matrix struct {
	Cells int
	Data  []float64
}

// Row returns the row-th cell vector. The slice aliases Data.
func (m *Matrix) Row(row int) []float64 {
	return m.Data[row*m.Cells : (row+1)*m.Cells]
}

// Rows returns the number of rows in the matrix.
func (m *Matrix) Rows() int {
	if m.Cells == 0 {
		return 0
	}

	return len(m.Data) / m.Cells
}

// Series is the decoded columnar output.
type Series struct {
	timestamps []int64
	valid      []bool
	scalars    map[string][]float64
	matrices   map[string]*Matrix
}

// New creates an empty series with a row-capacity hint.
func New(capacityHint int) *Series {
	return &Series{
		timestamps: make([]int64, 0, capacityHint),
		valid:      make([]bool, 0, capacityHint),
		scalars:    make(map[string][]float64),
		matrices:   make(map[string]*Matrix),
	}
}

// Len returns the number of rows (accepted ensembles).
func (s *Series) Len() int {
	return len(s.timestamps)
}

// AddRow starts a new row at the given timestamp (microseconds since the
// Unix epoch). valid is false for rows recovered by resynchronisation.
// Columns missing a value for the previous row are padded with Fill.
func (s *Series) AddRow(ts int64, valid bool) {
	s.pad()
	s.timestamps = append(s.timestamps, ts)
	s.valid = append(s.valid, valid)
}

// SetScalar sets a scalar field on the current (last added) row.
func (s *Series) SetScalar(name string, v float64) {
	if s.Len() == 0 {
		panic("series: SetScalar before AddRow")
	}

	col := s.scalars[name]
	if len(col) >= s.Len() {
		col[s.Len()-1] = v

		return
	}
	for len(col) < s.Len()-1 {
		col = append(col, Fill)
	}
	s.scalars[name] = append(col, v)
}

// SetMatrixRow sets a per-cell field on the current (last added) row. The
// widest row observed fixes the matrix width; narrower rows are padded.
func (s *Series) SetMatrixRow(name string, cells []float64) {
	if s.Len() == 0 {
		panic("series: SetMatrixRow before AddRow")
	}

	m := s.matrices[name]
	if m == nil {
		m = &Matrix{Cells: len(cells)}
		s.matrices[name] = m
	}
	if len(cells) > m.Cells {
		m.widen(len(cells))
	}

	rows := m.Rows()
	if rows >= s.Len() {
		copy(m.Row(s.Len()-1), cells)

		return
	}
	for rows < s.Len()-1 {
		m.Data = append(m.Data, fillRow(m.Cells)...)
		rows++
	}

	m.Data = append(m.Data, cells...)
	for i := len(cells); i < m.Cells; i++ {
		m.Data = append(m.Data, Fill)
	}
}

// SetMatrixColumn installs a complete per-cell field in one operation, as
// produced by the vectorised decode path: data is row-major with exactly
// Len()*cells values. It panics on a length mismatch; the batch assembler
// computes both sides from the same plan.
func (s *Series) SetMatrixColumn(name string, cells int, data []float64) {
	if len(data) != s.Len()*cells {
		panic(fmt.Sprintf("series: matrix column %q carries %d values, want %d", name, len(data), s.Len()*cells))
	}
	s.matrices[name] = &Matrix{Cells: cells, Data: data}
}

// Timestamps returns the row timestamps in microseconds since the Unix
// epoch, in file order.
func (s *Series) Timestamps() []int64 {
	return s.timestamps
}

// Valid returns the per-row flags: true for checksum-valid rows, false for
// resynchronised/estimated ones.
func (s *Series) Valid() []bool {
	return s.valid
}

// Scalar returns the named scalar column, padded to the series length, or
// nil when the field was never decoded.
func (s *Series) Scalar(name string) []float64 {
	col, ok := s.scalars[name]
	if !ok {
		return nil
	}
	for len(col) < s.Len() {
		col = append(col, Fill)
	}
	s.scalars[name] = col

	return col
}

// Matrix returns the named per-cell column, padded to the series length, or
// nil when the field was never decoded.
func (s *Series) Matrix(name string) *Matrix {
	m, ok := s.matrices[name]
	if !ok {
		return nil
	}
	for m.Rows() < s.Len() {
		m.Data = append(m.Data, fillRow(m.Cells)...)
	}

	return m
}

// ScalarNames returns the decoded scalar field names, sorted.
func (s *Series) ScalarNames() []string {
	names := make([]string, 0, len(s.scalars))
	for name := range s.scalars {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// MatrixNames returns the decoded per-cell field names, sorted.
func (s *Series) MatrixNames() []string {
	names := make([]string, 0, len(s.matrices))
	for name := range s.matrices {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Equal reports whether two series carry bit-identical rows, flags and
// columns. Fill cells compare equal. Used to verify that the vectorised and
// per-frame decode paths agree.
func (s *Series) Equal(other *Series) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i := range s.timestamps {
		if s.timestamps[i] != other.timestamps[i] || s.valid[i] != other.valid[i] {
			return false
		}
	}

	if len(s.ScalarNames()) != len(other.ScalarNames()) || len(s.MatrixNames()) != len(other.MatrixNames()) {
		return false
	}
	for _, name := range s.ScalarNames() {
		if !floatsEqual(s.Scalar(name), other.Scalar(name)) {
			return false
		}
	}
	for _, name := range s.MatrixNames() {
		a, b := s.Matrix(name), other.Matrix(name)
		if b == nil || a.Cells != b.Cells || !floatsEqual(a.Data, b.Data) {
			return false
		}
	}

	return true
}

func (s *Series) String() string {
	return fmt.Sprintf("{Rows:%d Scalars:%d Matrices:%d}", s.Len(), len(s.scalars), len(s.matrices))
}

// pad extends every column to the current length before a new row starts.
func (s *Series) pad() {
	for name, col := range s.scalars {
		for len(col) < s.Len() {
			col = append(col, Fill)
		}
		s.scalars[name] = col
	}
	for _, m := range s.matrices {
		for m.Rows() < s.Len() {
			m.Data = append(m.Data, fillRow(m.Cells)...)
		}
	}
}

func (m *Matrix) widen(cells int) {
	rows := m.Rows()
	widened := make([]float64, 0, rows*cells)
	for r := 0; r < rows; r++ {
		widened = append(widened, m.Row(r)...)
		for i := m.Cells; i < cells; i++ {
			widened = append(widened, Fill)
		}
	}
	m.Cells = cells
	m.Data = widened
}

func fillRow(cells int) []float64 {
	row := make([]float64, cells)
	for i := range row {
		row[i] = Fill
	}

	return row
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}

	return true
}
