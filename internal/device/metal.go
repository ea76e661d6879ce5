//go:build metal && darwin

package device

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Metal -framework MetalPerformanceShaders -framework Foundation
#include <stdlib.h>
#include "metal_mps.h"
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
)

// metalDevice is the Metal backend, built on MPSMatrixMultiplication.
// Buffers are MTLBuffer handles in shared storage mode; Ptr.base carries
// the retained handle and Ptr.off the byte offset into it, so the handle
// is never subjected to pointer arithmetic. MPS has no float64 or complex
// GEMM, so only Sgemm is served.
type metalDevice struct {
	log    *zap.Logger
	mu     sync.Mutex
	allocs map[uintptr]unsafe.Pointer
	info   Info
	closed bool
}

// newMetalDevice initializes the system default Metal device and a command
// queue shared by all subsequent calls.
func newMetalDevice(log *zap.Logger) (*metalDevice, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if rc := C.hb_mps_init(); rc != 0 {
		return nil, fmt.Errorf("%w: metal init failed with code %d", ErrNoDevice, int(rc))
	}

	var raw C.HBMetalDeviceInfo
	C.hb_mps_device_info(&raw)

	d := &metalDevice{
		log:    log,
		allocs: make(map[uintptr]unsafe.Pointer),
		info: Info{
			Name:              C.GoString(&raw.name[0]),
			TotalMemory:       int64(raw.total_memory),
			AvailableMemory:   int64(raw.available_memory),
			ComputeCapability: C.GoString(&raw.gpu_family[0]),
			DriverVersion:     "Metal",
		},
	}
	if raw.is_unified_memory == 1 {
		d.info.ComputeCapability += " (Unified Memory)"
	}

	log.Info("Metal device initialized",
		zap.String("device", d.info.Name),
		zap.String("gpu_family", d.info.ComputeCapability),
		zap.Float64("total_memory_gb", float64(d.info.TotalMemory)/(1<<30)))
	return d, nil
}

// Name returns "metal".
func (d *metalDevice) Name() string { return "metal" }

// Info returns device details captured at initialization.
func (d *metalDevice) Info() Info { return d.info }

// Alloc reserves a shared-mode MTLBuffer.
func (d *metalDevice) Alloc(bytes int) (Ptr, error) {
	if bytes <= 0 {
		return Ptr{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, bytes)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Ptr{}, ErrClosed
	}

	raw := C.hb_mps_alloc(C.size_t(bytes))
	if raw == nil {
		return Ptr{}, fmt.Errorf("metal buffer allocation of %d bytes failed", bytes)
	}
	d.allocs[uintptr(raw)] = raw
	return Ptr{base: raw, size: bytes}, nil
}

// Free releases an MTLBuffer.
func (d *metalDevice) Free(p Ptr) error {
	if p.IsNil() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.allocs[p.key()]
	if !ok {
		return fmt.Errorf("free: %w", ErrUnknownPtr)
	}
	C.hb_mps_free(raw)
	delete(d.allocs, p.key())
	return nil
}

// SetMatrix copies a strided host block into buffer contents.
func (d *metalDevice) SetMatrix(rows, cols, elemSize int, src []byte, ldSrc int, dst Ptr, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rc := C.hb_mps_write2d(dst.base, C.size_t(dst.off), C.size_t(ldDst*elemSize),
		unsafe.Pointer(&src[0]), C.size_t(ldSrc*elemSize),
		C.size_t(cols*elemSize), C.size_t(rows))
	if rc != 0 {
		return fmt.Errorf("metal write to buffer failed with code %d", int(rc))
	}
	return nil
}

// GetMatrix copies a strided block from buffer contents back to the host.
func (d *metalDevice) GetMatrix(rows, cols, elemSize int, src Ptr, ldSrc int, dst []byte, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rc := C.hb_mps_read2d(src.base, C.size_t(src.off), C.size_t(ldSrc*elemSize),
		unsafe.Pointer(&dst[0]), C.size_t(ldDst*elemSize),
		C.size_t(cols*elemSize), C.size_t(rows))
	if rc != 0 {
		return fmt.Errorf("metal read from buffer failed with code %d", int(rc))
	}
	return nil
}

// Sgemm encodes an MPSMatrixMultiplication and waits for completion.
// MPS matrices are row-major, so flags and extents pass through directly.
func (d *metalDevice) Sgemm(tA, tB blas.Transpose, m, n, k int, alpha float32, a Ptr, lda int, b Ptr, ldb int, beta float32, c Ptr, ldc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rc := C.hb_mps_sgemm(metalTrans(tA), metalTrans(tB),
		C.int(m), C.int(n), C.int(k), C.float(alpha),
		a.base, C.size_t(a.off), C.int(lda),
		b.base, C.size_t(b.off), C.int(ldb),
		C.float(beta),
		c.base, C.size_t(c.off), C.int(ldc))
	if rc != 0 {
		return fmt.Errorf("mps sgemm failed with code %d", int(rc))
	}
	return nil
}

// Dgemm is not available on Metal.
func (d *metalDevice) Dgemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a Ptr, lda int, b Ptr, ldb int, beta float64, c Ptr, ldc int) error {
	return fmt.Errorf("metal: float64 gemm: %w", ErrKindUnsupported)
}

// Cgemm is not available on Metal.
func (d *metalDevice) Cgemm(tA, tB blas.Transpose, m, n, k int, alpha complex64, a Ptr, lda int, b Ptr, ldb int, beta complex64, c Ptr, ldc int) error {
	return fmt.Errorf("metal: complex64 gemm: %w", ErrKindUnsupported)
}

// Zgemm is not available on Metal.
func (d *metalDevice) Zgemm(tA, tB blas.Transpose, m, n, k int, alpha complex128, a Ptr, lda int, b Ptr, ldb int, beta complex128, c Ptr, ldc int) error {
	return fmt.Errorf("metal: complex128 gemm: %w", ErrKindUnsupported)
}

// Close releases outstanding buffers and the Metal context.
func (d *metalDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	for key, raw := range d.allocs {
		C.hb_mps_free(raw)
		delete(d.allocs, key)
	}
	C.hb_mps_shutdown()
	d.closed = true
	return nil
}

// metalTrans flattens the transpose flag for MPS; float32 is real, so
// ConjTrans means plain transposition.
func metalTrans(t blas.Transpose) C.int {
	if t == blas.Trans || t == blas.ConjTrans {
		return 1
	}
	return 0
}
