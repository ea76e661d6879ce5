package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/gonum"
)

// HostSim is a Device that lives entirely in host memory and runs its
// kernels with gonum. It implements the same contract as the hardware
// backends, so the dispatch and staging layers can be exercised on any
// machine. Transfers are real copies between caller memory and the
// simulated device heap, not aliases.
type HostSim struct {
	log    *zap.Logger
	blas   gonum.Implementation
	mu     sync.Mutex
	heap   map[uintptr][]byte
	closed bool

	allocs atomic.Int64
	frees  atomic.Int64
	sets   atomic.Int64
	gets   atomic.Int64
	gemms  atomic.Int64
}

// HostSimCounts is a snapshot of per-operation call counts, used by tests
// to observe staging behavior from the outside.
type HostSimCounts struct {
	Allocs int64
	Frees  int64
	Sets   int64
	Gets   int64
	Gemms  int64
}

// NewHostSim creates a host-memory device.
func NewHostSim(log *zap.Logger) *HostSim {
	if log == nil {
		log = zap.NewNop()
	}
	return &HostSim{
		log:  log,
		heap: make(map[uintptr][]byte),
	}
}

// Name returns "hostsim".
func (h *HostSim) Name() string { return "hostsim" }

// Info reports host memory figures, since the simulated device heap is
// ordinary process memory.
func (h *HostSim) Info() Info {
	return Info{
		Name:              fmt.Sprintf("HostSim (%s)", runtime.GOARCH),
		TotalMemory:       totalSystemMemory(),
		AvailableMemory:   availableSystemMemory(),
		ComputeCapability: "N/A",
		DriverVersion:     runtime.Version(),
	}
}

// Alloc reserves a block on the simulated device heap.
func (h *HostSim) Alloc(bytes int) (Ptr, error) {
	if bytes <= 0 {
		return Ptr{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, bytes)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Ptr{}, ErrClosed
	}

	buf := make([]byte, bytes)
	base := unsafe.Pointer(&buf[0])
	// The heap map keeps buf reachable for as long as the Ptr is live.
	h.heap[uintptr(base)] = buf
	h.allocs.Add(1)
	return Ptr{base: base, size: bytes}, nil
}

// Free releases a block. Any Ptr derived from the allocation identifies it.
func (h *HostSim) Free(p Ptr) error {
	if p.IsNil() {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.heap[p.key()]; !ok {
		return fmt.Errorf("free: %w", ErrUnknownPtr)
	}
	delete(h.heap, p.key())
	h.frees.Add(1)
	return nil
}

// SetMatrix copies a strided host block into the simulated device heap.
func (h *HostSim) SetMatrix(rows, cols, elemSize int, src []byte, ldSrc int, dst Ptr, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rowBytes := cols * elemSize
	srcStride := ldSrc * elemSize
	dstStride := ldDst * elemSize
	if need := (rows-1)*srcStride + rowBytes; len(src) < need {
		return fmt.Errorf("set matrix: host buffer %d bytes, need %d: %w", len(src), need, ErrInvalidSize)
	}
	if need := (rows-1)*dstStride + rowBytes; need > dst.avail() {
		return fmt.Errorf("set matrix: device span %d bytes, need %d: %w", dst.avail(), need, ErrInvalidSize)
	}

	dstBytes := unsafe.Slice((*byte)(dst.raw()), dst.avail())
	for i := 0; i < rows; i++ {
		copy(dstBytes[i*dstStride:i*dstStride+rowBytes], src[i*srcStride:i*srcStride+rowBytes])
	}
	h.sets.Add(1)
	return nil
}

// GetMatrix copies a strided block from the simulated device heap back to
// host memory.
func (h *HostSim) GetMatrix(rows, cols, elemSize int, src Ptr, ldSrc int, dst []byte, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rowBytes := cols * elemSize
	srcStride := ldSrc * elemSize
	dstStride := ldDst * elemSize
	if need := (rows-1)*srcStride + rowBytes; need > src.avail() {
		return fmt.Errorf("get matrix: device span %d bytes, need %d: %w", src.avail(), need, ErrInvalidSize)
	}
	if need := (rows-1)*dstStride + rowBytes; len(dst) < need {
		return fmt.Errorf("get matrix: host buffer %d bytes, need %d: %w", len(dst), need, ErrInvalidSize)
	}

	srcBytes := unsafe.Slice((*byte)(src.raw()), src.avail())
	for i := 0; i < rows; i++ {
		copy(dst[i*dstStride:i*dstStride+rowBytes], srcBytes[i*srcStride:i*srcStride+rowBytes])
	}
	h.gets.Add(1)
	return nil
}

// Sgemm runs the float32 kernel on device-resident operands. Strides and
// lengths were sized by the staging layer; gonum re-validates them and
// panics if that contract was broken, which is a bug, not an input error.
func (h *HostSim) Sgemm(tA, tB blas.Transpose, m, n, k int, alpha float32, a Ptr, lda int, b Ptr, ldb int, beta float32, c Ptr, ldc int) error {
	h.gemms.Add(1)
	h.blas.Sgemm(tA, tB, m, n, k, alpha, floats32(a), lda, floats32(b), ldb, beta, floats32(c), ldc)
	return nil
}

// Dgemm runs the float64 kernel on device-resident operands.
func (h *HostSim) Dgemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a Ptr, lda int, b Ptr, ldb int, beta float64, c Ptr, ldc int) error {
	h.gemms.Add(1)
	h.blas.Dgemm(tA, tB, m, n, k, alpha, floats64(a), lda, floats64(b), ldb, beta, floats64(c), ldc)
	return nil
}

// Cgemm runs the complex64 kernel on device-resident operands.
func (h *HostSim) Cgemm(tA, tB blas.Transpose, m, n, k int, alpha complex64, a Ptr, lda int, b Ptr, ldb int, beta complex64, c Ptr, ldc int) error {
	h.gemms.Add(1)
	h.blas.Cgemm(tA, tB, m, n, k, alpha, complexes64(a), lda, complexes64(b), ldb, beta, complexes64(c), ldc)
	return nil
}

// Zgemm runs the complex128 kernel on device-resident operands.
func (h *HostSim) Zgemm(tA, tB blas.Transpose, m, n, k int, alpha complex128, a Ptr, lda int, b Ptr, ldb int, beta complex128, c Ptr, ldc int) error {
	h.gemms.Add(1)
	h.blas.Zgemm(tA, tB, m, n, k, alpha, complexes128(a), lda, complexes128(b), ldb, beta, complexes128(c), ldc)
	return nil
}

// Close drops the simulated heap. Outstanding Ptrs become invalid.
func (h *HostSim) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heap = make(map[uintptr][]byte)
	h.closed = true
	return nil
}

// Counts returns a snapshot of per-operation call counts.
func (h *HostSim) Counts() HostSimCounts {
	return HostSimCounts{
		Allocs: h.allocs.Load(),
		Frees:  h.frees.Load(),
		Sets:   h.sets.Load(),
		Gets:   h.gets.Load(),
		Gemms:  h.gemms.Load(),
	}
}

func checkTransfer(rows, cols, elemSize, ldSrc, ldDst int) error {
	if rows < 0 || cols < 0 || elemSize <= 0 {
		return fmt.Errorf("transfer block %dx%d elemSize=%d: %w", rows, cols, elemSize, ErrInvalidSize)
	}
	if ldSrc < cols || ldDst < cols {
		return fmt.Errorf("transfer strides ldSrc=%d ldDst=%d for %d columns: %w", ldSrc, ldDst, cols, ErrInvalidSize)
	}
	return nil
}

// Typed views over a device span, valid because HostSim memory is ordinary
// Go heap memory.

func floats32(p Ptr) []float32 {
	return unsafe.Slice((*float32)(p.raw()), p.avail()/4)
}

func floats64(p Ptr) []float64 {
	return unsafe.Slice((*float64)(p.raw()), p.avail()/8)
}

func complexes64(p Ptr) []complex64 {
	return unsafe.Slice((*complex64)(p.raw()), p.avail()/8)
}

func complexes128(p Ptr) []complex128 {
	return unsafe.Slice((*complex128)(p.raw()), p.avail()/16)
}
