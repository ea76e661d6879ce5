package hetblas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
)

func TestFreivaldsCheckAcceptsCorrectProduct(t *testing.T) {
	t.Run("float32", func(t *testing.T) { freivaldsAccepts[float32](t) })
	t.Run("float64", func(t *testing.T) { freivaldsAccepts[float64](t) })
	t.Run("complex64", func(t *testing.T) { freivaldsAccepts[complex64](t) })
	t.Run("complex128", func(t *testing.T) { freivaldsAccepts[complex128](t) })
}

func freivaldsAccepts[T Scalar](t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := NewMatrix[T](11, 6)
	b := NewMatrix[T](6, 9)
	c := NewMatrix[T](11, 9)
	fillRandom(a, rng)
	fillRandom(b, rng)

	require.NoError(t, Gemm[T](nil, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c))
	assert.True(t, FreivaldsCheck(a, b, c, 0))
}

func TestFreivaldsCheckRejectsCorruptedProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	a := NewMatrix[float64](12, 8)
	b := NewMatrix[float64](8, 16)
	c := NewMatrix[float64](12, 16)
	fillRandom(a, rng)
	fillRandom(b, rng)
	require.NoError(t, Gemm[float64](nil, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c))

	// Shift a whole row so any probe vector with a nonzero entry sees it.
	for j := 0; j < c.Cols; j++ {
		c.Set(3, j, c.At(3, j)+1)
	}
	assert.False(t, FreivaldsCheck(a, b, c, 20))
}

func TestFreivaldsCheckEmptyReduction(t *testing.T) {
	a := NewMatrix[float64](3, 0)
	b := NewMatrix[float64](0, 4)

	zero := NewMatrix[float64](3, 4)
	assert.True(t, FreivaldsCheck(a, b, zero, 5), "an empty reduction yields the zero matrix")

	nonzero := NewMatrix[float64](3, 4)
	for i := range nonzero.Data {
		nonzero.Data[i] = 1
	}
	assert.False(t, FreivaldsCheck(a, b, nonzero, 20))
}

func TestFreivaldsCheckShapeMismatchPanics(t *testing.T) {
	a := NewMatrix[float64](3, 4)
	b := NewMatrix[float64](5, 2)
	c := NewMatrix[float64](3, 2)
	assert.PanicsWithValue(t,
		"hetblas: product shape mismatch: A is 3x4, B is 5x2, C is 3x2",
		func() { FreivaldsCheck(a, b, c, 1) })
}
