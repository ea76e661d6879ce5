package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxnlabs/hetblas/internal/metrics"
)

// blockAlign rounds every request up to a cache-line multiple, which also
// raises the odds that a cached block can serve a slightly different size.
const blockAlign = 64

// Pool is a caching allocator layered over a Device. Get prefers a block
// from the free list over a raw Device.Alloc; Put returns blocks to the
// free list without releasing device memory. Drain hands everything cached
// back to the device.
type Pool struct {
	mu   sync.Mutex
	dev  Device
	free []*block
	live map[uintptr]*block

	allocs  int64
	reuses  int64
	inUse   int64
	cached  int64
	peak    int64
}

type block struct {
	ptr  Ptr
	size int // aligned capacity in bytes
	used bool
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Allocs      int64 // raw device allocations issued
	Reuses      int64 // gets served from the free list
	InUseBytes  int64 // bytes currently handed out
	CachedBytes int64 // bytes parked on the free list
	PeakBytes   int64 // high-water mark of in-use bytes
}

// NewPool creates a pool that allocates from dev.
func NewPool(dev Device) *Pool {
	return &Pool{
		dev:  dev,
		live: make(map[uintptr]*block),
	}
}

// Get returns a device block with capacity of at least size bytes. The
// first free block large enough is reused; otherwise one raw allocation is
// made. The returned Ptr spans the full block capacity.
func (p *Pool) Get(size int) (Ptr, error) {
	if size <= 0 {
		return Ptr{}, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	aligned := (size + blockAlign - 1) &^ (blockAlign - 1)

	for i, blk := range p.free {
		if blk.size >= aligned {
			p.free = append(p.free[:i], p.free[i+1:]...)
			blk.used = true
			p.reuses++
			p.cached -= int64(blk.size)
			p.noteInUse(int64(blk.size))
			metrics.DeviceReuses.Inc()
			metrics.DeviceMemoryInUse.Set(float64(p.inUse))
			return blk.ptr, nil
		}
	}

	ptr, err := p.dev.Alloc(aligned)
	if err != nil {
		return Ptr{}, err
	}
	blk := &block{ptr: ptr, size: aligned, used: true}
	p.live[ptr.key()] = blk
	p.allocs++
	p.noteInUse(int64(aligned))
	metrics.DeviceAllocs.Inc()
	metrics.DeviceMemoryInUse.Set(float64(p.inUse))
	return ptr, nil
}

// Put returns a block obtained from Get to the free list. The offset of
// ptr is irrelevant; the allocation it belongs to is what gets parked.
func (p *Pool) Put(ptr Ptr) error {
	if ptr.IsNil() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	blk, ok := p.live[ptr.key()]
	if !ok {
		return fmt.Errorf("put: %w", ErrUnknownPtr)
	}
	if !blk.used {
		return fmt.Errorf("put: block already returned: %w", ErrUnknownPtr)
	}

	blk.used = false
	p.free = append(p.free, blk)
	p.inUse -= int64(blk.size)
	p.cached += int64(blk.size)
	metrics.DeviceMemoryInUse.Set(float64(p.inUse))
	return nil
}

// Drain releases every cached block back to the device. Blocks still in
// use stay live; draining them would invalidate memory the caller holds.
func (p *Pool) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, blk := range p.free {
		if err := p.dev.Free(blk.ptr); err != nil {
			errs = append(errs, err)
		}
		// The block leaves the pool whether or not the device released
		// it, so it stops counting as cached either way.
		delete(p.live, blk.ptr.key())
		p.cached -= int64(blk.size)
	}
	p.free = p.free[:0]
	return errors.Join(errs...)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Allocs:      p.allocs,
		Reuses:      p.reuses,
		InUseBytes:  p.inUse,
		CachedBytes: p.cached,
		PeakBytes:   p.peak,
	}
}

func (p *Pool) noteInUse(delta int64) {
	p.inUse += delta
	if p.inUse > p.peak {
		p.peak = p.inUse
	}
}
