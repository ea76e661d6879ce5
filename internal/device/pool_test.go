package device

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestPoolReusesReturnedBlock(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	first, err := pool.Get(1024)
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	if err := pool.Put(first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second, err := pool.Get(1024)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if second.key() != first.key() {
		t.Error("second Get should reuse the returned block")
	}

	stats := pool.Stats()
	if stats.Allocs != 1 {
		t.Errorf("expected 1 raw allocation, got %d", stats.Allocs)
	}
	if stats.Reuses != 1 {
		t.Errorf("expected 1 reuse, got %d", stats.Reuses)
	}
}

func TestPoolFirstFitAcceptsOversizedBlock(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	small, err := pool.Get(256)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	large, err := pool.Get(4096)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	pool.Put(small)
	pool.Put(large)

	// 512 does not fit the 256 block; the scan should move on and take
	// the 4096 one rather than allocating.
	mid, err := pool.Get(512)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if mid.key() != large.key() {
		t.Error("expected the oversized cached block to be reused")
	}

	stats := pool.Stats()
	if stats.Allocs != 2 {
		t.Errorf("expected 2 raw allocations, got %d", stats.Allocs)
	}
	if stats.Reuses != 1 {
		t.Errorf("expected 1 reuse, got %d", stats.Reuses)
	}
}

func TestPoolAllocatesWhenNothingFits(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	small, err := pool.Get(64)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	pool.Put(small)

	big, err := pool.Get(1 << 20)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if big.key() == small.key() {
		t.Error("a larger request must not reuse a smaller block")
	}
	if stats := pool.Stats(); stats.Allocs != 2 {
		t.Errorf("expected 2 raw allocations, got %d", stats.Allocs)
	}
}

func TestPoolPutErrors(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	if err := pool.Put(Ptr{}); err != nil {
		t.Errorf("Put of a nil Ptr should be a no-op, got %v", err)
	}

	other := NewHostSim(zap.NewNop())
	defer other.Close()
	foreign, err := other.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if err := pool.Put(foreign); !errors.Is(err, ErrUnknownPtr) {
		t.Errorf("expected ErrUnknownPtr for a foreign Ptr, got %v", err)
	}

	p, err := pool.Get(128)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := pool.Put(p); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := pool.Put(p); !errors.Is(err, ErrUnknownPtr) {
		t.Errorf("expected an error for a double Put, got %v", err)
	}
}

func TestPoolGetInvalidSize(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	if _, err := pool.Get(0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize for 0 bytes, got %v", err)
	}
	if _, err := pool.Get(-8); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize for negative size, got %v", err)
	}
}

// failFreeDevice rejects every Free while delegating the rest.
type failFreeDevice struct {
	Device
}

func (d *failFreeDevice) Free(Ptr) error {
	return errors.New("free rejected")
}

func TestPoolDrainFreeFailure(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(&failFreeDevice{Device: dev})

	p, err := pool.Get(256)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := pool.Put(p); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := pool.Drain(); err == nil {
		t.Fatal("Drain should surface the device free error")
	}
	stats := pool.Stats()
	if stats.CachedBytes != 0 {
		t.Errorf("a block dropped by Drain still counts as cached: %d bytes", stats.CachedBytes)
	}

	// The dropped block never comes back as a reuse.
	if _, err := pool.Get(256); err != nil {
		t.Fatalf("Get after Drain failed: %v", err)
	}
	stats = pool.Stats()
	if stats.Reuses != 0 {
		t.Errorf("expected no reuses after Drain, got %d", stats.Reuses)
	}
	if stats.Allocs != 2 {
		t.Errorf("expected a fresh raw allocation, want 2 allocs, got %d", stats.Allocs)
	}
}

func TestPoolDrain(t *testing.T) {
	dev := NewHostSim(zap.NewNop())
	defer dev.Close()
	pool := NewPool(dev)

	a, _ := pool.Get(256)
	b, _ := pool.Get(512)
	pool.Put(a)
	pool.Put(b)

	if err := pool.Drain(); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if got := dev.Counts().Frees; got != 2 {
		t.Errorf("expected 2 device frees after Drain, got %d", got)
	}
	if stats := pool.Stats(); stats.CachedBytes != 0 {
		t.Errorf("expected no cached bytes after Drain, got %d", stats.CachedBytes)
	}

	// A drained block must not come back.
	if _, err := pool.Get(256); err != nil {
		t.Fatalf("Get after Drain failed: %v", err)
	}
	if got := dev.Counts().Allocs; got != 3 {
		t.Errorf("Get after Drain should hit the device, want 3 allocs, got %d", got)
	}
}
