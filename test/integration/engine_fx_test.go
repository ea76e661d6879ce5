//go:build integration

package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"

	"github.com/fxnlabs/hetblas"
)

func hostsimOption() hetblas.Option {
	return hetblas.WithBackend("hostsim")
}

func TestEngineLifecycleThroughFx(t *testing.T) {
	var e *hetblas.Engine
	app := fxtest.New(t,
		fx.Provide(zap.NewDevelopment),
		fx.Provide(fx.Annotate(hostsimOption, fx.ResultTags(`group:"hetblas.options"`))),
		hetblas.Module,
		fx.Populate(&e),
	)
	app.RequireStart()
	require.NotNil(t, e)
	require.Equal(t, "hostsim", e.DeviceName())

	require.NoError(t, e.UseAccelerator(64, 64, 64))

	multiply := func(size int) {
		a := hetblas.NewMatrix[float64](size, size)
		b := hetblas.NewMatrix[float64](size, size)
		c := hetblas.NewMatrix[float64](size, size)
		for i := 0; i < size; i++ {
			a.Set(i, i, 1)
			b.Set(i, i, float64(i))
		}
		require.NoError(t, hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, c))
		assert.Equal(t, float64(size-1), c.At(size-1, size-1))
	}

	multiply(16)  // below the thresholds, host route
	multiply(128) // staged through the simulator

	st := e.Stats()
	assert.Equal(t, int64(1), st.HostCalls)
	assert.Equal(t, int64(1), st.AcceleratorCalls)
	assert.Positive(t, st.BytesIn)

	// Stopping the app closes the engine.
	app.RequireStop()
	err := e.UseAccelerator(0, 0, 0)
	require.ErrorIs(t, err, hetblas.ErrEngineClosed)
	assert.Zero(t, e.Stats().DeviceCached, "staging pool drained on shutdown")
}

func TestHostAndStagedResultsAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping route comparison in short mode")
	}

	e, err := hetblas.New(hetblas.WithBackend("hostsim"))
	require.NoError(t, err)
	defer e.Close()

	sizes := []int{64, 128, 256}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			a := hetblas.NewMatrix[float32](size, size)
			b := hetblas.NewMatrix[float32](size, size)
			for i := 0; i < size; i++ {
				for j := 0; j < size; j++ {
					a.Set(i, j, float32((i*31+j)%100)/100.0)
					b.Set(i, j, float32((i+j*17+1)%100)/100.0)
				}
			}

			cHost := hetblas.NewMatrix[float32](size, size)
			e.UseHost()
			start := time.Now()
			require.NoError(t, hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, cHost))
			hostTime := time.Since(start)

			cStaged := hetblas.NewMatrix[float32](size, size)
			require.NoError(t, e.UseAccelerator(0, 0, 0))
			start = time.Now()
			require.NoError(t, hetblas.Gemm(e, blas.NoTrans, blas.NoTrans, 1, a, b, 0, cStaged))
			stagedTime := time.Since(start)

			flops := float64(2 * size * size * size)
			t.Logf("size=%d host=%v (%.2f GFLOPS) staged=%v (%.2f GFLOPS)",
				size, hostTime, flops/hostTime.Seconds()/1e9,
				stagedTime, flops/stagedTime.Seconds()/1e9)

			for i := 0; i < 100 && i < len(cHost.Data); i++ {
				assert.InDelta(t, cHost.Data[i], cStaged.Data[i], 1e-3,
					"Results differ at index %d: host=%f, staged=%f", i, cHost.Data[i], cStaged.Data[i])
			}

			assert.True(t, hetblas.FreivaldsCheck(a, b, cStaged, 10))
		})
	}
}
