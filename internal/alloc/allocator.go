// Package alloc hands out file space to the HDF5 writer.
//
// Space is append-only: every block starts where the previous one ended and
// nothing is ever reused, so the end-of-file address only grows. The writer
// stores that address in the superblock when it flushes.
package alloc

import "sync"

// Stats summarises what an Allocator has handed out.
type Stats struct {
	Blocks  int    // non-empty blocks allocated
	Bytes   uint64 // total bytes allocated
	Largest uint64 // largest single block
}

// Allocator reserves consecutive byte ranges past a base address. It is safe
// for concurrent use.
type Allocator struct {
	mu    sync.Mutex
	eof   uint64
	stats Stats
}

// New returns an allocator whose first block starts at base, typically the
// first byte after the superblock.
func New(base uint64) *Allocator {
	return &Allocator{eof: base}
}

// Alloc reserves size bytes and returns their address. A zero-size request
// returns the current end of file without reserving anything.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	addr := a.eof
	if size == 0 {
		return addr
	}
	a.eof += size
	a.stats.Blocks++
	a.stats.Bytes += size
	a.stats.Largest = max(a.stats.Largest, size)
	return addr
}

// EOFAddr returns the address one past the last reserved byte.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eof
}

// Stats returns a snapshot of the allocation counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
