package sim

import "sync"

// CountingAllocator hands out Go memory and counts live buffers, which lets
// tests check that every report buffer is returned.
type CountingAllocator struct {
	mu     sync.Mutex
	live   int
	bytes  int
	allocs uint64
}

func (a *CountingAllocator) Alloc(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live++
	a.bytes += n
	a.allocs++
	return make([]byte, n)
}

func (a *CountingAllocator) Free(b []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live--
	a.bytes -= len(b)
}

// Live returns the number of buffers not yet freed.
func (a *CountingAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// LiveBytes returns the size of the buffers not yet freed.
func (a *CountingAllocator) LiveBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Allocs returns the total number of allocations.
func (a *CountingAllocator) Allocs() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}
