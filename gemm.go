package hetblas

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/gonum"

	"github.com/fxnlabs/hetblas/internal/metrics"
)

// host is the CPU kernel set. gonum's Implementation is stateless, one
// shared value serves every engine.
var host gonum.Implementation

const (
	routeHost        = "host"
	routeAccelerator = "accelerator"
)

// Gemm computes c = alpha*op(a)*op(b) + beta*c, where op is the identity,
// the transpose or the conjugate transpose as selected by the flags. On
// real element kinds ConjTrans behaves as Trans. The engine's policy picks
// the route; a nil engine means Default().
//
// Shape, stride and length inconsistencies among the descriptors are
// caller bugs and panic with the offending values. Errors are only
// produced by the accelerator path, for device failures, and name the
// staging phase that failed; the host path cannot fail. When beta is zero
// c's contents are never read, so an uninitialized result buffer is fine.
func Gemm[T Scalar](e *Engine, transA, transB blas.Transpose, alpha T, a Matrix[T], b Matrix[T], beta T, c Matrix[T]) error {
	if e == nil {
		e = Default()
	}
	checkTranspose(transA, "transA")
	checkTranspose(transB, "transB")
	checkMatrix(a, "A")
	checkMatrix(b, "B")
	checkMatrix(c, "C")

	m, k := opShape(a, transA)
	kb, n := opShape(b, transB)
	if k != kb {
		panic(fmt.Sprintf("hetblas: inner dimension mismatch: op(A) is %dx%d, op(B) is %dx%d", m, k, kb, n))
	}
	if c.Rows != m || c.Cols != n {
		panic(fmt.Sprintf("hetblas: result shape mismatch: C is %dx%d, want %dx%d", c.Rows, c.Cols, m, n))
	}

	if m == 0 || n == 0 {
		return nil
	}
	// An empty reduction degenerates to scaling C in place, with no
	// kernel and no dispatch. Every k > 0 call routes through the
	// policy, zero alpha included.
	if k == 0 {
		scaleMatrix(beta, c)
		e.hostCalls.Add(1)
		metrics.GemmCalls.WithLabelValues(routeHost, kindOf[T]().String()).Inc()
		return nil
	}

	start := time.Now()
	if e.route(m, n, k) {
		if err := deviceGemm(e, transA, transB, m, n, k, alpha, a, b, beta, c); err != nil {
			return err
		}
		e.accelCalls.Add(1)
		observeGemm(routeAccelerator, kindOf[T](), m, n, k, time.Since(start))
		return nil
	}
	hostGemm(transA, transB, m, n, k, alpha, a, b, beta, c)
	e.hostCalls.Add(1)
	observeGemm(routeHost, kindOf[T](), m, n, k, time.Since(start))
	return nil
}

// hostGemm runs the gonum kernel matching T. Scalar is an exact type set,
// so the slice assertions are total.
func hostGemm[T Scalar](tA, tB blas.Transpose, m, n, k int, alpha T, a Matrix[T], b Matrix[T], beta T, c Matrix[T]) {
	switch al := any(alpha).(type) {
	case float32:
		host.Sgemm(tA, tB, m, n, k, al,
			any(a.Data).([]float32), a.Stride,
			any(b.Data).([]float32), b.Stride,
			any(beta).(float32),
			any(c.Data).([]float32), c.Stride)
	case float64:
		host.Dgemm(tA, tB, m, n, k, al,
			any(a.Data).([]float64), a.Stride,
			any(b.Data).([]float64), b.Stride,
			any(beta).(float64),
			any(c.Data).([]float64), c.Stride)
	case complex64:
		host.Cgemm(tA, tB, m, n, k, al,
			any(a.Data).([]complex64), a.Stride,
			any(b.Data).([]complex64), b.Stride,
			any(beta).(complex64),
			any(c.Data).([]complex64), c.Stride)
	case complex128:
		host.Zgemm(tA, tB, m, n, k, al,
			any(a.Data).([]complex128), a.Stride,
			any(b.Data).([]complex128), b.Stride,
			any(beta).(complex128),
			any(c.Data).([]complex128), c.Stride)
	}
}

// scaleMatrix applies c = beta*c row by row. beta == 0 writes zeros
// without reading, so NaN payloads in c cannot leak through.
func scaleMatrix[T Scalar](beta T, c Matrix[T]) {
	if beta == 1 {
		return
	}
	for i := 0; i < c.Rows; i++ {
		row := c.Data[i*c.Stride : i*c.Stride+c.Cols]
		if beta == 0 {
			clear(row)
			continue
		}
		for j := range row {
			row[j] *= beta
		}
	}
}

func checkTranspose(t blas.Transpose, name string) {
	if t != blas.NoTrans && t != blas.Trans && t != blas.ConjTrans {
		panic(fmt.Sprintf("hetblas: invalid %s value %d", name, t))
	}
}

func checkMatrix[T Scalar](m Matrix[T], name string) {
	if m.Rows < 0 || m.Cols < 0 {
		panic(fmt.Sprintf("hetblas: negative dimensions %dx%d for %s", m.Rows, m.Cols, name))
	}
	minStride := m.Cols
	if minStride < 1 {
		minStride = 1
	}
	if m.Stride < minStride {
		panic(fmt.Sprintf("hetblas: stride %d of %s is below its column count %d", m.Stride, name, m.Cols))
	}
	if m.Rows > 0 && m.Cols > 0 {
		if need := (m.Rows-1)*m.Stride + m.Cols; len(m.Data) < need {
			panic(fmt.Sprintf("hetblas: %s needs %d elements, data holds %d", name, need, len(m.Data)))
		}
	}
}

// opShape returns the rows and cols of op(m) under the transpose flag.
func opShape[T Scalar](m Matrix[T], t blas.Transpose) (int, int) {
	if t == blas.NoTrans {
		return m.Rows, m.Cols
	}
	return m.Cols, m.Rows
}

func observeGemm(route string, kd kind, m, n, k int, elapsed time.Duration) {
	metrics.GemmCalls.WithLabelValues(route, kd.String()).Inc()
	metrics.GemmDuration.Observe(float64(elapsed.Nanoseconds()) / 1e6)
	if s := elapsed.Seconds(); s > 0 {
		flops := 2 * float64(m) * float64(n) * float64(k)
		if kd.isComplex() {
			flops *= 4
		}
		metrics.GemmGFLOPS.Set(flops / s / 1e9)
	}
}
