package main

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/blas"

	"github.com/fxnlabs/hetblas"
)

func verifyCommand(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Cross-check the accelerator against the host kernel for every element kind",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "size",
				Value: 128,
				Usage: "Square problem size to verify",
			},
			&cli.IntFlag{
				Name:  "rounds",
				Value: 20,
				Usage: "Freivalds probe rounds",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := env.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.UseAccelerator(0, 0, 0); err != nil {
				return fmt.Errorf("nothing to verify: %w (set device.backend: hostsim to exercise the staging path)", err)
			}

			size := c.Int("size")
			rounds := c.Int("rounds")
			failed := false
			check := func(kindName string, run func() (bool, bool, error)) {
				match, probable, err := run()
				switch {
				case errors.Is(err, hetblas.ErrKindUnsupported):
					fmt.Printf("%-11s SKIP (%s does not support this kind)\n", kindName, e.DeviceName())
				case err != nil:
					fmt.Printf("%-11s ERROR %v\n", kindName, err)
					failed = true
				case !match || !probable:
					fmt.Printf("%-11s FAIL (elementwise match %t, freivalds %t)\n", kindName, match, probable)
					failed = true
				default:
					fmt.Printf("%-11s OK\n", kindName)
				}
			}

			check("float32", func() (bool, bool, error) { return verifyKind[float32](e, size, rounds) })
			check("float64", func() (bool, bool, error) { return verifyKind[float64](e, size, rounds) })
			check("complex64", func() (bool, bool, error) { return verifyKind[complex64](e, size, rounds) })
			check("complex128", func() (bool, bool, error) { return verifyKind[complex128](e, size, rounds) })

			if failed {
				return fmt.Errorf("accelerator results diverge from the host kernel")
			}
			return nil
		},
	}
}

// verifyKind runs one problem on both routes and reports whether the
// results agree elementwise and whether the accelerator product passes an
// independent Freivalds probe.
func verifyKind[T hetblas.Scalar](e *hetblas.Engine, size, rounds int) (match, probable bool, err error) {
	rng := rand.New(rand.NewSource(int64(size) + 17))
	a := hetblas.NewMatrix[T](size, size)
	b := hetblas.NewMatrix[T](size, size)
	cHost := hetblas.NewMatrix[T](size, size)
	cDev := hetblas.NewMatrix[T](size, size)
	fillRandom(a, rng)
	fillRandom(b, rng)

	if err := e.UseAccelerator(0, 0, 0); err != nil {
		return false, false, err
	}
	if err := hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, cDev); err != nil {
		return false, false, err
	}
	e.UseHost()
	if err := hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, cHost); err != nil {
		return false, false, err
	}

	tol := 1e-10 * float64(size)
	var zero T
	switch any(zero).(type) {
	case float32, complex64:
		tol = 1e-4 * float64(size)
	}
	match = true
	for i := range cHost.Data {
		if dist(cHost.Data[i], cDev.Data[i]) > tol {
			match = false
			break
		}
	}
	return match, hetblas.FreivaldsCheck(a, b, cDev, rounds), nil
}

func dist[T hetblas.Scalar](x, y T) float64 {
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
