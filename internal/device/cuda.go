//go:build cuda

package device

/*
#cgo LDFLAGS: -lcudart -lcublas
#include <cuda_runtime.h>
#include <cublas_v2.h>
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
)

// cudaDevice is the CUDA backend. GEMM calls go straight to cuBLAS; since
// cuBLAS is column-major and this interface is row-major, every call uses
// the standard mapping of swapping the operands and the m/n extents, which
// leaves the transpose flags and leading dimensions unchanged.
type cudaDevice struct {
	log    *zap.Logger
	mu     sync.Mutex
	handle C.cublasHandle_t
	allocs map[uintptr]unsafe.Pointer
	info   Info
	closed bool
}

// newCUDADevice selects device 0 and creates a cuBLAS handle.
func newCUDADevice(log *zap.Logger) (*cudaDevice, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var count C.int
	if rc := C.cudaGetDeviceCount(&count); rc != C.cudaSuccess {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, cudaErrString(rc))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: no CUDA devices present", ErrNoDevice)
	}
	if rc := C.cudaSetDevice(0); rc != C.cudaSuccess {
		return nil, fmt.Errorf("select device 0: %s", cudaErrString(rc))
	}

	d := &cudaDevice{
		log:    log,
		allocs: make(map[uintptr]unsafe.Pointer),
	}
	if st := C.cublasCreate(&d.handle); st != C.CUBLAS_STATUS_SUCCESS {
		return nil, fmt.Errorf("create cublas handle: %s", cublasErrString(st))
	}

	if err := d.readInfo(); err != nil {
		C.cublasDestroy(d.handle)
		return nil, err
	}

	log.Info("CUDA device initialized",
		zap.String("device", d.info.Name),
		zap.String("compute_capability", d.info.ComputeCapability),
		zap.Float64("total_memory_gb", float64(d.info.TotalMemory)/(1<<30)))
	return d, nil
}

func (d *cudaDevice) readInfo() error {
	var prop C.struct_cudaDeviceProp
	if rc := C.cudaGetDeviceProperties(&prop, 0); rc != C.cudaSuccess {
		return fmt.Errorf("get device properties: %s", cudaErrString(rc))
	}

	var free, total C.size_t
	if rc := C.cudaMemGetInfo(&free, &total); rc != C.cudaSuccess {
		return fmt.Errorf("get memory info: %s", cudaErrString(rc))
	}

	var driver, rt C.int
	C.cudaDriverGetVersion(&driver)
	C.cudaRuntimeGetVersion(&rt)

	d.info = Info{
		Name:              C.GoString(&prop.name[0]),
		TotalMemory:       int64(total),
		AvailableMemory:   int64(free),
		ComputeCapability: fmt.Sprintf("%d.%d", int(prop.major), int(prop.minor)),
		DriverVersion:     cudaVersionString(int(driver)),
		RuntimeVersion:    cudaVersionString(int(rt)),
	}
	return nil
}

// Name returns "cuda".
func (d *cudaDevice) Name() string { return "cuda" }

// Info returns device details captured at initialization.
func (d *cudaDevice) Info() Info { return d.info }

// Alloc reserves device memory with cudaMalloc.
func (d *cudaDevice) Alloc(bytes int) (Ptr, error) {
	if bytes <= 0 {
		return Ptr{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, bytes)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Ptr{}, ErrClosed
	}

	var raw unsafe.Pointer
	if rc := C.cudaMalloc(&raw, C.size_t(bytes)); rc != C.cudaSuccess {
		return Ptr{}, fmt.Errorf("cudaMalloc %d bytes: %s", bytes, cudaErrString(rc))
	}
	d.allocs[uintptr(raw)] = raw
	return Ptr{base: raw, size: bytes}, nil
}

// Free releases device memory.
func (d *cudaDevice) Free(p Ptr) error {
	if p.IsNil() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.allocs[p.key()]; !ok {
		return fmt.Errorf("free: %w", ErrUnknownPtr)
	}
	if rc := C.cudaFree(p.base); rc != C.cudaSuccess {
		return fmt.Errorf("cudaFree: %s", cudaErrString(rc))
	}
	delete(d.allocs, p.key())
	return nil
}

// SetMatrix copies a strided host block to the device with cudaMemcpy2D.
func (d *cudaDevice) SetMatrix(rows, cols, elemSize int, src []byte, ldSrc int, dst Ptr, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rc := C.cudaMemcpy2D(dst.raw(), C.size_t(ldDst*elemSize),
		unsafe.Pointer(&src[0]), C.size_t(ldSrc*elemSize),
		C.size_t(cols*elemSize), C.size_t(rows), C.cudaMemcpyHostToDevice)
	if rc != C.cudaSuccess {
		return fmt.Errorf("cudaMemcpy2D host to device: %s", cudaErrString(rc))
	}
	return nil
}

// GetMatrix copies a strided device block back to the host.
func (d *cudaDevice) GetMatrix(rows, cols, elemSize int, src Ptr, ldSrc int, dst []byte, ldDst int) error {
	if err := checkTransfer(rows, cols, elemSize, ldSrc, ldDst); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rc := C.cudaMemcpy2D(unsafe.Pointer(&dst[0]), C.size_t(ldDst*elemSize),
		src.raw(), C.size_t(ldSrc*elemSize),
		C.size_t(cols*elemSize), C.size_t(rows), C.cudaMemcpyDeviceToHost)
	if rc != C.cudaSuccess {
		return fmt.Errorf("cudaMemcpy2D device to host: %s", cudaErrString(rc))
	}
	return nil
}

// Sgemm runs cublasSgemm on device-resident operands.
func (d *cudaDevice) Sgemm(tA, tB blas.Transpose, m, n, k int, alpha float32, a Ptr, lda int, b Ptr, ldb int, beta float32, c Ptr, ldc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	al, be := C.float(alpha), C.float(beta)
	st := C.cublasSgemm(d.handle, cublasOp(tB), cublasOp(tA),
		C.int(n), C.int(m), C.int(k), &al,
		(*C.float)(b.raw()), C.int(ldb),
		(*C.float)(a.raw()), C.int(lda), &be,
		(*C.float)(c.raw()), C.int(ldc))
	return d.finishGemm("cublasSgemm", st)
}

// Dgemm runs cublasDgemm on device-resident operands.
func (d *cudaDevice) Dgemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a Ptr, lda int, b Ptr, ldb int, beta float64, c Ptr, ldc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	al, be := C.double(alpha), C.double(beta)
	st := C.cublasDgemm(d.handle, cublasOp(tB), cublasOp(tA),
		C.int(n), C.int(m), C.int(k), &al,
		(*C.double)(b.raw()), C.int(ldb),
		(*C.double)(a.raw()), C.int(lda), &be,
		(*C.double)(c.raw()), C.int(ldc))
	return d.finishGemm("cublasDgemm", st)
}

// Cgemm runs cublasCgemm on device-resident operands.
func (d *cudaDevice) Cgemm(tA, tB blas.Transpose, m, n, k int, alpha complex64, a Ptr, lda int, b Ptr, ldb int, beta complex64, c Ptr, ldc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	al := C.cuComplex{x: C.float(real(alpha)), y: C.float(imag(alpha))}
	be := C.cuComplex{x: C.float(real(beta)), y: C.float(imag(beta))}
	st := C.cublasCgemm(d.handle, cublasOp(tB), cublasOp(tA),
		C.int(n), C.int(m), C.int(k), &al,
		(*C.cuComplex)(b.raw()), C.int(ldb),
		(*C.cuComplex)(a.raw()), C.int(lda), &be,
		(*C.cuComplex)(c.raw()), C.int(ldc))
	return d.finishGemm("cublasCgemm", st)
}

// Zgemm runs cublasZgemm on device-resident operands.
func (d *cudaDevice) Zgemm(tA, tB blas.Transpose, m, n, k int, alpha complex128, a Ptr, lda int, b Ptr, ldb int, beta complex128, c Ptr, ldc int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	al := C.cuDoubleComplex{x: C.double(real(alpha)), y: C.double(imag(alpha))}
	be := C.cuDoubleComplex{x: C.double(real(beta)), y: C.double(imag(beta))}
	st := C.cublasZgemm(d.handle, cublasOp(tB), cublasOp(tA),
		C.int(n), C.int(m), C.int(k), &al,
		(*C.cuDoubleComplex)(b.raw()), C.int(ldb),
		(*C.cuDoubleComplex)(a.raw()), C.int(lda), &be,
		(*C.cuDoubleComplex)(c.raw()), C.int(ldc))
	return d.finishGemm("cublasZgemm", st)
}

// finishGemm checks the launch status and synchronizes; the Device contract
// is blocking, cuBLAS launches are not.
func (d *cudaDevice) finishGemm(op string, st C.cublasStatus_t) error {
	if st != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("%s: %s", op, cublasErrString(st))
	}
	if rc := C.cudaDeviceSynchronize(); rc != C.cudaSuccess {
		return fmt.Errorf("%s: synchronize: %s", op, cudaErrString(rc))
	}
	return nil
}

// Close frees outstanding allocations and destroys the cuBLAS handle.
func (d *cudaDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}

	for key, raw := range d.allocs {
		C.cudaFree(raw)
		delete(d.allocs, key)
	}
	if st := C.cublasDestroy(d.handle); st != C.CUBLAS_STATUS_SUCCESS {
		return fmt.Errorf("destroy cublas handle: %s", cublasErrString(st))
	}
	d.closed = true
	return nil
}

// cublasOp maps a BLAS transpose flag to the cuBLAS operation enum.
func cublasOp(t blas.Transpose) C.cublasOperation_t {
	switch t {
	case blas.Trans:
		return C.CUBLAS_OP_T
	case blas.ConjTrans:
		return C.CUBLAS_OP_C
	default:
		return C.CUBLAS_OP_N
	}
}

// cudaErrString converts a CUDA runtime error code to its message.
func cudaErrString(rc C.cudaError_t) string {
	return C.GoString(C.cudaGetErrorString(rc))
}

// cublasErrString converts a cuBLAS status code to a string.
func cublasErrString(st C.cublasStatus_t) string {
	switch st {
	case C.CUBLAS_STATUS_SUCCESS:
		return "success"
	case C.CUBLAS_STATUS_NOT_INITIALIZED:
		return "not initialized"
	case C.CUBLAS_STATUS_ALLOC_FAILED:
		return "allocation failed"
	case C.CUBLAS_STATUS_INVALID_VALUE:
		return "invalid value"
	case C.CUBLAS_STATUS_ARCH_MISMATCH:
		return "architecture mismatch"
	case C.CUBLAS_STATUS_MAPPING_ERROR:
		return "mapping error"
	case C.CUBLAS_STATUS_EXECUTION_FAILED:
		return "execution failed"
	case C.CUBLAS_STATUS_INTERNAL_ERROR:
		return "internal error"
	case C.CUBLAS_STATUS_NOT_SUPPORTED:
		return "not supported"
	default:
		return fmt.Sprintf("unknown status (%d)", int(st))
	}
}

// cudaVersionString formats the integer version reported by the runtime,
// e.g. 12040 as "12.4".
func cudaVersionString(v int) string {
	if v <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d", v/1000, (v%1000)/10)
}
