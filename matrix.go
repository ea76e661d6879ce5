package hetblas

import (
	"fmt"
	"unsafe"
)

// Scalar is the set of element types with both a host kernel and a device
// kernel. The four members mirror the classic BLAS prefixes S, D, C and Z.
type Scalar interface {
	float32 | float64 | complex64 | complex128
}

// Matrix describes a dense row-major matrix. Rows and Cols are the stored
// shape; transposition is requested per call and never rewrites the
// descriptor. Stride is the distance in elements between the starts of
// consecutive rows and must be at least Cols. Data is the backing slice,
// which may be shared with a larger matrix when the value is a view.
type Matrix[T Scalar] struct {
	Rows   int
	Cols   int
	Stride int
	Data   []T
}

// NewMatrix returns a zeroed rows by cols matrix with a packed stride.
func NewMatrix[T Scalar](rows, cols int) Matrix[T] {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("hetblas: negative matrix dimensions %dx%d", rows, cols))
	}
	stride := cols
	if stride < 1 {
		stride = 1
	}
	return Matrix[T]{
		Rows:   rows,
		Cols:   cols,
		Stride: stride,
		Data:   make([]T, rows*cols),
	}
}

// FromRows builds a packed matrix by copying row slices. All rows must
// have the same length.
func FromRows[T Scalar](rows [][]T) Matrix[T] {
	if len(rows) == 0 {
		return NewMatrix[T](0, 0)
	}
	cols := len(rows[0])
	m := NewMatrix[T](len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			panic(fmt.Sprintf("hetblas: ragged rows: row %d has %d elements, want %d", i, len(row), cols))
		}
		copy(m.Data[i*m.Stride:], row)
	}
	return m
}

// At returns the element at row i, column j.
func (m Matrix[T]) At(i, j int) T {
	if i < 0 || i >= m.Rows || j < 0 || j >= m.Cols {
		panic(fmt.Sprintf("hetblas: index (%d,%d) out of range for %dx%d matrix", i, j, m.Rows, m.Cols))
	}
	return m.Data[i*m.Stride+j]
}

// Set writes v to row i, column j.
func (m Matrix[T]) Set(i, j int, v T) {
	if i < 0 || i >= m.Rows || j < 0 || j >= m.Cols {
		panic(fmt.Sprintf("hetblas: index (%d,%d) out of range for %dx%d matrix", i, j, m.Rows, m.Cols))
	}
	m.Data[i*m.Stride+j] = v
}

// View returns a rows by cols window of m starting at row i, column j.
// The view shares m's backing slice and keeps m's stride.
func (m Matrix[T]) View(i, j, rows, cols int) Matrix[T] {
	if i < 0 || j < 0 || rows < 0 || cols < 0 || i+rows > m.Rows || j+cols > m.Cols {
		panic(fmt.Sprintf("hetblas: view (%d,%d)+%dx%d out of range for %dx%d matrix", i, j, rows, cols, m.Rows, m.Cols))
	}
	if rows == 0 || cols == 0 {
		return Matrix[T]{Rows: rows, Cols: cols, Stride: m.Stride}
	}
	off := i*m.Stride + j
	end := off + (rows-1)*m.Stride + cols
	return Matrix[T]{
		Rows:   rows,
		Cols:   cols,
		Stride: m.Stride,
		Data:   m.Data[off:end],
	}
}

// kind identifies one of the four element types at run time.
type kind uint8

const (
	kindFloat32 kind = iota
	kindFloat64
	kindComplex64
	kindComplex128
)

// kindOf maps the type parameter to its kind tag.
func kindOf[T Scalar]() kind {
	var zero T
	switch any(zero).(type) {
	case float32:
		return kindFloat32
	case float64:
		return kindFloat64
	case complex64:
		return kindComplex64
	default:
		return kindComplex128
	}
}

func (k kind) String() string {
	switch k {
	case kindFloat32:
		return "float32"
	case kindFloat64:
		return "float64"
	case kindComplex64:
		return "complex64"
	default:
		return "complex128"
	}
}

func (k kind) size() int {
	switch k {
	case kindFloat32:
		return 4
	case kindFloat64, kindComplex64:
		return 8
	default:
		return 16
	}
}

func (k kind) isComplex() bool {
	return k == kindComplex64 || k == kindComplex128
}

// byteView reinterprets a scalar slice as bytes for device transfers.
// The caller must keep s alive for the duration of the copy.
func byteView[T Scalar](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}
