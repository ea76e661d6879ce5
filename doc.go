// Package hetblas routes dense GEMM calls between the host BLAS kernel
// and an accelerator based on problem size.
//
// The host kernel is gonum's blas/gonum implementation and is always
// available. Accelerator backends are compiled in with build tags (cuda,
// metal); without them the accelerator path reports loud errors instead
// of silently computing on the host. Operands live in ordinary Go slices
// described by Matrix values; the accelerator path stages them through
// device memory using a caching allocator, runs the device kernel, and
// copies the result back.
//
// Dispatch is off by default. Enabling it sets the minimum problem sizes
// a call must meet on every dimension to leave the host:
//
//	if err := hetblas.UseAccelerator(512, 512, 256); err != nil {
//		// built without an accelerator, or none present
//	}
//	a := hetblas.NewMatrix[float32](m, k)
//	b := hetblas.NewMatrix[float32](k, n)
//	c := hetblas.NewMatrix[float32](m, n)
//	err := hetblas.Gemm(nil, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)
//
// The package-level calls operate on a process-wide default Engine;
// independent Engines with their own policy, device, and allocator come
// from New.
package hetblas
