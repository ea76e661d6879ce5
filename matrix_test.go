package hetblas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(t *testing.T) {
	m := NewMatrix[float64](3, 4)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, 4, m.Cols)
	assert.Equal(t, 4, m.Stride)
	assert.Len(t, m.Data, 12)

	empty := NewMatrix[complex64](0, 0)
	assert.Equal(t, 1, empty.Stride, "degenerate shapes keep a positive stride")
	assert.Empty(t, empty.Data)

	assert.Panics(t, func() { NewMatrix[float32](-1, 2) })
}

func TestFromRows(t *testing.T) {
	m := FromRows([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 3, m.Cols)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, m.Data)

	empty := FromRows[complex128](nil)
	assert.Zero(t, empty.Rows)

	assert.PanicsWithValue(t, "hetblas: ragged rows: row 1 has 2 elements, want 3", func() {
		FromRows([][]float32{{1, 2, 3}, {4, 5}})
	})
}

func TestMatrixAtSet(t *testing.T) {
	m := NewMatrix[float32](2, 3)
	m.Set(1, 2, 7)
	assert.Equal(t, float32(7), m.At(1, 2))
	assert.Equal(t, float32(7), m.Data[5])

	assert.Panics(t, func() { m.At(2, 0) })
	assert.Panics(t, func() { m.Set(0, 3, 1) })
	assert.Panics(t, func() { m.At(-1, 0) })
}

func TestMatrixView(t *testing.T) {
	m := NewMatrix[float64](4, 5)
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			m.Set(i, j, float64(10*i+j))
		}
	}

	v := m.View(1, 2, 2, 3)
	assert.Equal(t, 2, v.Rows)
	assert.Equal(t, 3, v.Cols)
	assert.Equal(t, 5, v.Stride, "views keep the parent stride")
	assert.Equal(t, 12.0, v.At(0, 0))
	assert.Equal(t, 24.0, v.At(1, 2))

	// Views alias the parent's storage.
	v.Set(0, 0, -1)
	assert.Equal(t, -1.0, m.At(1, 2))

	empty := m.View(2, 2, 0, 3)
	assert.Equal(t, 0, empty.Rows)
	assert.Nil(t, empty.Data)

	assert.Panics(t, func() { m.View(3, 0, 2, 2) })
	assert.Panics(t, func() { m.View(0, 4, 1, 2) })
}

func TestKindHelpers(t *testing.T) {
	require.Equal(t, kindFloat32, kindOf[float32]())
	require.Equal(t, kindFloat64, kindOf[float64]())
	require.Equal(t, kindComplex64, kindOf[complex64]())
	require.Equal(t, kindComplex128, kindOf[complex128]())

	assert.Equal(t, "float32", kindFloat32.String())
	assert.Equal(t, "complex128", kindComplex128.String())
	assert.Equal(t, 4, kindFloat32.size())
	assert.Equal(t, 8, kindFloat64.size())
	assert.Equal(t, 8, kindComplex64.size())
	assert.Equal(t, 16, kindComplex128.size())
	assert.False(t, kindFloat64.isComplex())
	assert.True(t, kindComplex64.isComplex())
}

func TestByteView(t *testing.T) {
	s := []float64{1, 2, 3}
	bv := byteView(s)
	assert.Len(t, bv, 24)

	// The view aliases the slice, not a copy of it.
	bv[0] = 0xFF
	assert.NotEqual(t, 1.0, s[0])

	assert.Nil(t, byteView[float32](nil))
}
