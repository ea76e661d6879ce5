package hetblas

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"

	"github.com/fxnlabs/hetblas/internal/metrics"
)

// carveAlign keeps every operand carved out of the pooled staging block on
// a 64-byte boundary, which Metal's matrix buffers require and the other
// backends tolerate.
const carveAlign = 64

func alignUp(n int) int {
	return (n + carveAlign - 1) &^ (carveAlign - 1)
}

// deviceGemm stages the operands into a single pooled device block, runs
// the backend kernel and copies the product back into c.
//
// The staged copies are packed, so the kernel sees leading dimensions
// equal to the physical column counts regardless of the host strides.
// When beta is zero C is not staged; the kernel overwrites the device
// block, so its prior contents never matter. Real kinds normalize
// ConjTrans to Trans here; complex kinds hand the flag to the backend.
func deviceGemm[T Scalar](e *Engine, tA, tB blas.Transpose, m, n, k int, alpha T, a Matrix[T], b Matrix[T], beta T, c Matrix[T]) error {
	kd := kindOf[T]()
	es := kd.size()
	if !kd.isComplex() {
		if tA == blas.ConjTrans {
			tA = blas.Trans
		}
		if tB == blas.ConjTrans {
			tB = blas.Trans
		}
	}

	aBytes := alignUp(a.Rows * a.Cols * es)
	bBytes := alignUp(b.Rows * b.Cols * es)
	cBytes := m * n * es

	blk, err := e.pool.Get(aBytes + bBytes + cBytes)
	if err != nil {
		metrics.GemmErrors.WithLabelValues("alloc").Inc()
		return fmt.Errorf("hetblas: device alloc for %dx%dx%d %s gemm: %w", m, n, k, kd, err)
	}
	defer func() {
		if perr := e.pool.Put(blk); perr != nil {
			e.log.Warn("returning staging block to pool failed", zap.Error(perr))
		}
	}()

	da := blk
	db := blk.Offset(aBytes)
	dc := blk.Offset(aBytes + bBytes)

	if err := e.dev.SetMatrix(a.Rows, a.Cols, es, byteView(a.Data), a.Stride, da, a.Cols); err != nil {
		metrics.GemmErrors.WithLabelValues("set_a").Inc()
		return fmt.Errorf("hetblas: staging A to %s: %w", e.dev.Name(), err)
	}
	if err := e.dev.SetMatrix(b.Rows, b.Cols, es, byteView(b.Data), b.Stride, db, b.Cols); err != nil {
		metrics.GemmErrors.WithLabelValues("set_b").Inc()
		return fmt.Errorf("hetblas: staging B to %s: %w", e.dev.Name(), err)
	}
	in := int64((a.Rows*a.Cols + b.Rows*b.Cols) * es)
	if beta != 0 {
		if err := e.dev.SetMatrix(m, n, es, byteView(c.Data), c.Stride, dc, n); err != nil {
			metrics.GemmErrors.WithLabelValues("set_c").Inc()
			return fmt.Errorf("hetblas: staging C to %s: %w", e.dev.Name(), err)
		}
		in += int64(m * n * es)
	}
	e.bytesIn.Add(in)
	metrics.DeviceTransferBytes.WithLabelValues("in").Add(float64(in))

	var kerr error
	switch al := any(alpha).(type) {
	case float32:
		kerr = e.dev.Sgemm(tA, tB, m, n, k, al, da, a.Cols, db, b.Cols, any(beta).(float32), dc, n)
	case float64:
		kerr = e.dev.Dgemm(tA, tB, m, n, k, al, da, a.Cols, db, b.Cols, any(beta).(float64), dc, n)
	case complex64:
		kerr = e.dev.Cgemm(tA, tB, m, n, k, al, da, a.Cols, db, b.Cols, any(beta).(complex64), dc, n)
	case complex128:
		kerr = e.dev.Zgemm(tA, tB, m, n, k, al, da, a.Cols, db, b.Cols, any(beta).(complex128), dc, n)
	}
	if kerr != nil {
		metrics.GemmErrors.WithLabelValues("kernel").Inc()
		return fmt.Errorf("hetblas: %s gemm kernel on %s: %w", kd, e.dev.Name(), kerr)
	}

	if err := e.dev.GetMatrix(m, n, es, dc, n, byteView(c.Data), c.Stride); err != nil {
		metrics.GemmErrors.WithLabelValues("get_c").Inc()
		return fmt.Errorf("hetblas: reading C back from %s: %w", e.dev.Name(), err)
	}
	out := int64(m * n * es)
	e.bytesOut.Add(out)
	metrics.DeviceTransferBytes.WithLabelValues("out").Add(float64(out))
	return nil
}
