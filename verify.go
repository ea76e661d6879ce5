package hetblas

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
)

// freivaldsRounds is the default number of random probes. An incorrect
// product survives a round with probability at most 1/2, so twenty rounds
// push the false-accept probability below one in a million.
const freivaldsRounds = 20

// FreivaldsCheck probabilistically verifies c = a*b without recomputing
// the product. Each round draws a random 0/1 vector x and compares
// a*(b*x) against c*x, which costs O(m*n) per round instead of the
// O(m*n*k) of a full multiplication. rounds <= 0 selects the default.
// A correct product always passes, up to floating-point tolerance.
func FreivaldsCheck[T Scalar](a, b, c Matrix[T], rounds int) bool {
	checkMatrix(a, "A")
	checkMatrix(b, "B")
	checkMatrix(c, "C")
	if a.Cols != b.Rows || c.Rows != a.Rows || c.Cols != b.Cols {
		panic(fmt.Sprintf("hetblas: product shape mismatch: A is %dx%d, B is %dx%d, C is %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols, c.Rows, c.Cols))
	}
	if rounds <= 0 {
		rounds = freivaldsRounds
	}
	m, k, n := a.Rows, a.Cols, b.Cols
	if m == 0 || n == 0 {
		return true
	}

	tol := 1e-9
	switch kindOf[T]() {
	case kindFloat32, kindComplex64:
		tol = 1e-3
	}

	x := make([]T, n)
	bx := make([]T, k)
	abx := make([]T, m)
	cx := make([]T, m)
	for round := 0; round < rounds; round++ {
		for j := range x {
			if rand.Intn(2) == 1 {
				x[j] = 1
			} else {
				x[j] = 0
			}
		}
		for i := 0; i < k; i++ {
			row := b.Data[i*b.Stride:]
			var s T
			for j := 0; j < n; j++ {
				s += row[j] * x[j]
			}
			bx[i] = s
		}
		// With an empty reduction abx keeps its zeros: a has no stored
		// rows to walk and the true product is the zero matrix.
		for i := 0; k > 0 && i < m; i++ {
			row := a.Data[i*a.Stride:]
			var s T
			for j := 0; j < k; j++ {
				s += row[j] * bx[j]
			}
			abx[i] = s
		}
		for i := 0; i < m; i++ {
			row := c.Data[i*c.Stride:]
			var s T
			for j := 0; j < n; j++ {
				s += row[j] * x[j]
			}
			cx[i] = s
		}
		for i := 0; i < m; i++ {
			if scalarDist(abx[i], cx[i]) > tol {
				return false
			}
		}
	}
	return true
}

// scalarDist is |x - y| as a float64 for any element kind.
func scalarDist[T Scalar](x, y T) float64 {
	switch v := any(x - y).(type) {
	case float32:
		return math.Abs(float64(v))
	case float64:
		return math.Abs(v)
	case complex64:
		return cmplx.Abs(complex128(v))
	default:
		return cmplx.Abs(v.(complex128))
	}
}
