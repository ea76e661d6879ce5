package hetblas

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fxnlabs/hetblas/internal/config"
	"github.com/fxnlabs/hetblas/internal/device"
)

// Policy is an engine's dispatch rule. With Accelerated unset every call
// runs on the host. With it set, a call leaves the host only when all
// three problem dimensions meet their minimums.
type Policy struct {
	Accelerated bool
	MinM        int
	MinN        int
	MinK        int
}

func (p Policy) admit(m, n, k int) bool {
	return p.Accelerated && m >= p.MinM && n >= p.MinN && k >= p.MinK
}

// Engine owns a dispatch policy, at most one accelerator device, and the
// caching allocator for that device's staging buffers. Engines are safe
// for concurrent use. The zero value is not usable; call New.
type Engine struct {
	log *zap.Logger

	dev    device.Device
	devErr error
	pool   *device.Pool

	mu     sync.RWMutex
	policy Policy

	closed atomic.Bool

	hostCalls  atomic.Int64
	accelCalls atomic.Int64
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
}

type engineOptions struct {
	log     *zap.Logger
	backend string
	policy  *Policy
}

// Option configures an Engine at construction.
type Option func(*engineOptions)

// WithLogger sets the engine's logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *engineOptions) { o.log = log }
}

// WithBackend selects the accelerator backend by name: "auto" probes for
// compiled-in hardware, "hostsim" attaches the in-process simulator, and
// "none" disables the accelerator path outright.
func WithBackend(name string) Option {
	return func(o *engineOptions) { o.backend = name }
}

// WithPolicy applies a dispatch policy at construction. Thresholds are
// recorded even for a host-only policy; an accelerated policy fails New
// when the chosen backend yields no device.
func WithPolicy(p Policy) Option {
	return func(o *engineOptions) { o.policy = &p }
}

// New builds an engine. Without options it probes for an accelerator and
// starts with host-only dispatch; probe failure is not an error, it just
// leaves the engine without a device and UseAccelerator reporting why.
func New(opts ...Option) (*Engine, error) {
	o := engineOptions{backend: config.BackendAuto}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	e := &Engine{log: o.log}
	switch o.backend {
	case config.BackendAuto:
		dev, err := device.Probe(o.log)
		if err != nil {
			e.devErr = err
		} else {
			e.dev = dev
		}
	case config.BackendHostSim:
		e.dev = device.NewHostSim(o.log)
	case config.BackendNone:
	default:
		return nil, fmt.Errorf("hetblas: unknown device backend %q (want %q, %q or %q)",
			o.backend, config.BackendAuto, config.BackendHostSim, config.BackendNone)
	}
	if e.dev != nil {
		e.pool = device.NewPool(e.dev)
	}

	if o.policy != nil {
		e.policy = Policy{MinM: o.policy.MinM, MinN: o.policy.MinN, MinK: o.policy.MinK}
		if o.policy.Accelerated {
			if err := e.UseAccelerator(o.policy.MinM, o.policy.MinN, o.policy.MinK); err != nil {
				if e.dev != nil {
					e.dev.Close()
				}
				return nil, err
			}
		}
	}
	return e, nil
}

// UseAccelerator enables size-based dispatch. A call routes to the
// accelerator only when m >= minM, n >= minN and k >= minK all hold, so
// thresholds at or below zero send everything there. It fails when the
// engine has no device, wrapping the reason the device is missing.
func (e *Engine) UseAccelerator(minM, minN, minK int) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if e.dev == nil {
		if e.devErr != nil {
			return fmt.Errorf("%w: %w", ErrNoAccelerator, e.devErr)
		}
		return ErrNoAccelerator
	}
	e.mu.Lock()
	e.policy = Policy{Accelerated: true, MinM: minM, MinN: minN, MinK: minK}
	e.mu.Unlock()
	e.log.Info("accelerator dispatch enabled",
		zap.String("device", e.dev.Name()),
		zap.Int("minM", minM),
		zap.Int("minN", minN),
		zap.Int("minK", minK),
	)
	return nil
}

// UseHost routes every call to the host kernel. The recorded thresholds
// stay in place and apply again when accelerated dispatch is re-enabled.
func (e *Engine) UseHost() {
	e.mu.Lock()
	e.policy.Accelerated = false
	e.mu.Unlock()
}

// Policy returns the current dispatch policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Accelerated reports whether size-based dispatch is enabled.
func (e *Engine) Accelerated() bool {
	return e.Policy().Accelerated
}

// DeviceName returns the attached device's name, or "" without one.
func (e *Engine) DeviceName() string {
	if e.dev == nil {
		return ""
	}
	return e.dev.Name()
}

func (e *Engine) route(m, n, k int) bool {
	if e.dev == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy.admit(m, n, k)
}

// Stats is a snapshot of an engine's dispatch and staging counters. The
// call and byte counters accumulate since construction or the last
// ResetStats; the allocator fields reflect the pool's live state.
type Stats struct {
	HostCalls        int64
	AcceleratorCalls int64
	BytesIn          int64
	BytesOut         int64
	DeviceAllocs     int64
	DeviceReuses     int64
	DeviceInUse      int64
	DeviceCached     int64
	DevicePeak       int64
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		HostCalls:        e.hostCalls.Load(),
		AcceleratorCalls: e.accelCalls.Load(),
		BytesIn:          e.bytesIn.Load(),
		BytesOut:         e.bytesOut.Load(),
	}
	if e.pool != nil {
		ps := e.pool.Stats()
		s.DeviceAllocs = ps.Allocs
		s.DeviceReuses = ps.Reuses
		s.DeviceInUse = ps.InUseBytes
		s.DeviceCached = ps.CachedBytes
		s.DevicePeak = ps.PeakBytes
	}
	return s
}

// ResetStats zeroes the engine's call and byte counters. Allocator state
// is owned by the pool and is not touched.
func (e *Engine) ResetStats() {
	e.hostCalls.Store(0)
	e.accelCalls.Store(0)
	e.bytesIn.Store(0)
	e.bytesOut.Store(0)
}

// Close drains the staging pool and releases the device. The engine
// reverts to host-only dispatch and Gemm keeps working on the host path.
// Close is idempotent and must not race in-flight accelerated calls.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	e.policy.Accelerated = false
	e.mu.Unlock()
	if e.dev == nil {
		return nil
	}
	var errs []error
	if e.pool != nil {
		if err := e.pool.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.dev.Close(); err != nil {
		errs = append(errs, err)
	}
	e.log.Info("engine closed", zap.String("device", e.dev.Name()))
	return errors.Join(errs...)
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the process-wide engine behind the package-level calls.
// It is created on first use with the default options.
func Default() *Engine {
	defaultOnce.Do(func() {
		e, err := New()
		if err != nil {
			// New cannot fail with default options.
			panic(err)
		}
		defaultEngine = e
	})
	return defaultEngine
}

// UseAccelerator enables size-based dispatch on the default engine.
func UseAccelerator(minM, minN, minK int) error {
	return Default().UseAccelerator(minM, minN, minK)
}

// UseHost routes every call on the default engine to the host kernel.
func UseHost() {
	Default().UseHost()
}
