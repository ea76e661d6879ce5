package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"

	"github.com/fxnlabs/hetblas"
)

func benchCommand(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Compare host and accelerator GEMM throughput over a size sweep",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  "size",
				Value: cli.NewIntSlice(128, 256, 512, 1024),
				Usage: "Square problem sizes to sweep",
			},
			&cli.IntFlag{
				Name:  "reps",
				Value: 3,
				Usage: "Repetitions per size, best time wins",
			},
			&cli.StringFlag{
				Name:  "kind",
				Value: "float32",
				Usage: "Element kind: float32, float64, complex64 or complex128",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the sweep runs",
			},
		},
		Action: func(c *cli.Context) error {
			figure.NewFigure("hetblas", "", true).Print()
			fmt.Println("")

			if addr := c.String("metrics-addr"); addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				go func() {
					if err := http.ListenAndServe(addr, mux); err != nil {
						env.log.Error("metrics server stopped", zap.Error(err))
					}
				}()
				env.log.Info("serving metrics", zap.String("addr", addr))
			}

			e, err := env.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			accel := true
			if err := e.UseAccelerator(0, 0, 0); err != nil {
				env.log.Warn("accelerator unavailable, host sweep only", zap.Error(err))
				accel = false
			}
			device := e.DeviceName()

			run := func(size, reps int, accelerated bool) (float64, error) {
				if accelerated {
					if err := e.UseAccelerator(0, 0, 0); err != nil {
						return 0, err
					}
				} else {
					e.UseHost()
				}
				switch c.String("kind") {
				case "float32":
					return benchGemm[float32](e, size, reps)
				case "float64":
					return benchGemm[float64](e, size, reps)
				case "complex64":
					return benchGemm[complex64](e, size, reps)
				case "complex128":
					return benchGemm[complex128](e, size, reps)
				default:
					return 0, fmt.Errorf("unknown element kind %q", c.String("kind"))
				}
			}

			if accel {
				fmt.Printf("%6s  %14s  %14s  %8s\n", "size", "host GFLOPS", device+" GFLOPS", "speedup")
			} else {
				fmt.Printf("%6s  %14s\n", "size", "host GFLOPS")
			}
			reps := c.Int("reps")
			if reps < 1 {
				reps = 1
			}
			for _, size := range c.IntSlice("size") {
				hostRate, err := run(size, reps, false)
				if err != nil {
					return err
				}
				if !accel {
					fmt.Printf("%6d  %14.2f\n", size, hostRate)
					continue
				}
				devRate, err := run(size, reps, true)
				if err != nil {
					return err
				}
				fmt.Printf("%6d  %14.2f  %14.2f  %7.2fx\n", size, hostRate, devRate, devRate/hostRate)
			}

			st := e.Stats()
			fmt.Printf("\nstaged %d MB to the device, %d MB back, %d allocations, %d pool reuses\n",
				st.BytesIn/(1024*1024), st.BytesOut/(1024*1024), st.DeviceAllocs, st.DeviceReuses)
			return nil
		},
	}
}

func benchGemm[T hetblas.Scalar](e *hetblas.Engine, size, reps int) (float64, error) {
	rng := rand.New(rand.NewSource(int64(size)))
	a := hetblas.NewMatrix[T](size, size)
	b := hetblas.NewMatrix[T](size, size)
	cm := hetblas.NewMatrix[T](size, size)
	fillRandom(a, rng)
	fillRandom(b, rng)

	var best time.Duration
	for r := 0; r < reps; r++ {
		start := time.Now()
		if err := hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, cm); err != nil {
			return 0, err
		}
		if d := time.Since(start); best == 0 || d < best {
			best = d
		}
	}

	flops := 2 * float64(size) * float64(size) * float64(size)
	var zero T
	switch any(zero).(type) {
	case complex64, complex128:
		flops *= 4
	}
	return flops / best.Seconds() / 1e9, nil
}

func fillRandom[T hetblas.Scalar](m hetblas.Matrix[T], rng *rand.Rand) {
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			switch p := any(&m.Data[i*m.Stride+j]).(type) {
			case *float32:
				*p = rng.Float32()*2 - 1
			case *float64:
				*p = rng.Float64()*2 - 1
			case *complex64:
				*p = complex(rng.Float32()*2-1, rng.Float32()*2-1)
			case *complex128:
				*p = complex(rng.Float64()*2-1, rng.Float64()*2-1)
			}
		}
	}
}
