package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRowAndScalars(t *testing.T) {
	s := New(4)
	require.Equal(t, 0, s.Len())

	s.AddRow(1_000_000, true)
	s.SetScalar("heading", 123)
	s.SetScalar("pitch", -45)

	s.AddRow(2_000_000, false)
	s.SetScalar("heading", 124)
	// pitch missing on row 2

	require.Equal(t, 2, s.Len())
	require.Equal(t, []int64{1_000_000, 2_000_000}, s.Timestamps())
	require.Equal(t, []bool{true, false}, s.Valid())
	require.Equal(t, []float64{123, 124}, s.Scalar("heading"))

	pitch := s.Scalar("pitch")
	require.Len(t, pitch, 2)
	require.Equal(t, -45.0, pitch[0])
	require.True(t, math.IsNaN(pitch[1]), "missing field padded with Fill")

	require.Nil(t, s.Scalar("absent"))
	require.Equal(t, []string{"heading", "pitch"}, s.ScalarNames())
}

func TestLateScalarBackfills(t *testing.T) {
	s := New(0)
	s.AddRow(1, true)
	s.AddRow(2, true)
	s.SetScalar("temperature", 2015)

	col := s.Scalar("temperature")
	require.Len(t, col, 2)
	require.True(t, math.IsNaN(col[0]))
	require.Equal(t, 2015.0, col[1])
}

func TestMatrixRows(t *testing.T) {
	s := New(0)
	s.AddRow(1, true)
	s.SetMatrixRow("velocity1", []float64{10, 20, 30})
	s.AddRow(2, true)
	s.SetMatrixRow("velocity1", []float64{11, 21, 31})

	m := s.Matrix("velocity1")
	require.NotNil(t, m)
	require.Equal(t, 3, m.Cells)
	require.Equal(t, 2, m.Rows())
	require.Equal(t, []float64{10, 20, 30}, m.Row(0))
	require.Equal(t, []float64{11, 21, 31}, m.Row(1))
	require.Nil(t, s.Matrix("absent"))
}

func TestMatrixWidensForVaryingCellCounts(t *testing.T) {
	s := New(0)
	s.AddRow(1, true)
	s.SetMatrixRow("echo1", []float64{1, 2})
	s.AddRow(2, true)
	s.SetMatrixRow("echo1", []float64{3, 4, 5, 6})

	m := s.Matrix("echo1")
	require.Equal(t, 4, m.Cells)
	require.Equal(t, 2, m.Rows())
	require.Equal(t, []float64{1, 2}, m.Row(0)[:2])
	require.True(t, math.IsNaN(m.Row(0)[2]))
	require.True(t, math.IsNaN(m.Row(0)[3]))
	require.Equal(t, []float64{3, 4, 5, 6}, m.Row(1))
}

func TestMatrixMissingRowPadded(t *testing.T) {
	s := New(0)
	s.AddRow(1, true)
	s.SetMatrixRow("corr1", []float64{7, 8})
	s.AddRow(2, true) // no matrix row

	m := s.Matrix("corr1")
	require.Equal(t, 2, m.Rows())
	require.True(t, math.IsNaN(m.Row(1)[0]))
	require.True(t, math.IsNaN(m.Row(1)[1]))
}

func TestSetMatrixColumn(t *testing.T) {
	perRow := New(0)
	perRow.AddRow(1, true)
	perRow.SetMatrixRow("velocity1", []float64{1, 2})
	perRow.AddRow(2, true)
	perRow.SetMatrixRow("velocity1", []float64{3, 4})

	columnar := New(0)
	columnar.AddRow(1, true)
	columnar.AddRow(2, true)
	columnar.SetMatrixColumn("velocity1", 2, []float64{1, 2, 3, 4})

	require.True(t, perRow.Equal(columnar))
	require.Panics(t, func() { columnar.SetMatrixColumn("velocity1", 2, []float64{1}) })
}

func TestEqual(t *testing.T) {
	build := func() *Series {
		s := New(0)
		s.AddRow(1, true)
		s.SetScalar("heading", 10)
		s.SetMatrixRow("velocity1", []float64{1, 2})
		s.AddRow(2, false)
		s.SetMatrixRow("velocity1", []float64{3, 4})

		return s
	}

	a, b := build(), build()
	require.True(t, a.Equal(b))

	// Fill cells compare equal even though NaN != NaN
	a.AddRow(3, true)
	b.AddRow(3, true)
	require.True(t, a.Equal(b))

	b.SetScalar("heading", 11)
	require.False(t, a.Equal(b))

	c := build()
	c.AddRow(9, true)
	require.False(t, build().Equal(c))
}
