// Package device abstracts accelerator memory and GEMM kernels behind a
// backend-neutral interface. Real backends (CUDA, Metal) are compiled in
// behind build tags; HostSim is a pure-Go device that is always available
// and runs the same contract on host memory.
package device

import (
	"errors"
	"unsafe"

	"gonum.org/v1/gonum/blas"
)

// Sentinel errors shared by all backends. Callers match them with errors.Is.
var (
	// ErrNotBuilt is returned by Probe when the binary was compiled without
	// any accelerator build tag (cuda, metal).
	ErrNotBuilt = errors.New("device: accelerator support not compiled in")

	// ErrNoDevice is returned by Probe when support was compiled in but no
	// usable device was found at runtime.
	ErrNoDevice = errors.New("device: no usable accelerator device")

	// ErrKindUnsupported is returned by a gemm entry point when the backend
	// cannot execute that element kind (Metal serves float32 only).
	ErrKindUnsupported = errors.New("device: element kind not supported by backend")

	// ErrInvalidSize is returned by Alloc for a non-positive byte count.
	ErrInvalidSize = errors.New("device: invalid allocation size")

	// ErrUnknownPtr is returned by Free for a pointer this device did not
	// allocate, or that was already freed.
	ErrUnknownPtr = errors.New("device: pointer does not belong to this device")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("device: device closed")
)

// Ptr references a span of device memory. The base pointer identifies the
// allocation; off addresses into it, so a sub-span carved with Offset can
// still be returned to its allocator, which only looks at the base.
type Ptr struct {
	base unsafe.Pointer
	off  int
	size int
}

// Offset returns a Ptr addressing bytes past p within the same allocation.
func (p Ptr) Offset(bytes int) Ptr {
	return Ptr{base: p.base, off: p.off + bytes, size: p.size}
}

// Size reports the total byte size of the underlying allocation.
func (p Ptr) Size() int { return p.size }

// IsNil reports whether p references no allocation.
func (p Ptr) IsNil() bool { return p.base == nil }

// raw resolves the addressed position. Only backends dereference it; for
// CUDA the result is a device address and must never be read from the host.
func (p Ptr) raw() unsafe.Pointer { return unsafe.Add(p.base, p.off) }

// avail reports the bytes remaining between the offset and the end of the
// allocation.
func (p Ptr) avail() int { return p.size - p.off }

// key identifies the allocation independently of the offset.
func (p Ptr) key() uintptr { return uintptr(p.base) }

// Info describes the selected device.
type Info struct {
	Name              string `json:"name"`
	TotalMemory       int64  `json:"totalMemory"`     // in bytes
	AvailableMemory   int64  `json:"availableMemory"` // in bytes
	ComputeCapability string `json:"computeCapability"`
	DriverVersion     string `json:"driverVersion"`
	RuntimeVersion    string `json:"runtimeVersion,omitempty"`
}

// Device is the contract between the dispatch layer and an accelerator
// backend. All leading dimensions are row-major strides counted in elements;
// elemSize carries the element width in bytes for the transfer calls.
//
// Implementation notes:
//   - Backends own their raw memory bookkeeping; pooling happens above them.
//   - Backends must be safe for concurrent use.
//   - A backend that cannot run a kind returns ErrKindUnsupported rather
//     than silently skipping the call.
type Device interface {
	// Name returns a short backend identifier ("cuda", "metal", "hostsim").
	Name() string

	// Info returns device details for logging and the info command.
	Info() Info

	// Alloc reserves bytes of device memory.
	Alloc(bytes int) (Ptr, error)

	// Free releases an allocation made by Alloc. The offset is ignored;
	// any Ptr derived from the allocation identifies it.
	Free(p Ptr) error

	// SetMatrix copies a rows x cols block of elemSize-byte elements from
	// host memory into device memory. src holds the block with stride ldSrc
	// elements between row starts; the device block is written with stride
	// ldDst elements.
	SetMatrix(rows, cols, elemSize int, src []byte, ldSrc int, dst Ptr, ldDst int) error

	// GetMatrix copies a rows x cols block of elemSize-byte elements from
	// device memory back into host memory, the reverse of SetMatrix.
	GetMatrix(rows, cols, elemSize int, src Ptr, ldSrc int, dst []byte, ldDst int) error

	// Sgemm computes c = alpha*op(a)*op(b) + beta*c on float32 operands
	// resident in device memory, row-major with the given strides.
	Sgemm(tA, tB blas.Transpose, m, n, k int, alpha float32, a Ptr, lda int, b Ptr, ldb int, beta float32, c Ptr, ldc int) error

	// Dgemm is Sgemm for float64 operands.
	Dgemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a Ptr, lda int, b Ptr, ldb int, beta float64, c Ptr, ldc int) error

	// Cgemm is Sgemm for complex64 operands. ConjTrans is honored.
	Cgemm(tA, tB blas.Transpose, m, n, k int, alpha complex64, a Ptr, lda int, b Ptr, ldb int, beta complex64, c Ptr, ldc int) error

	// Zgemm is Sgemm for complex128 operands. ConjTrans is honored.
	Zgemm(tA, tB blas.Transpose, m, n, k int, alpha complex128, a Ptr, lda int, b Ptr, ldb int, beta complex128, c Ptr, ldc int) error

	// Close releases everything the backend holds. The device is unusable
	// afterwards.
	Close() error
}
