package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocIsAppendOnly(t *testing.T) {
	a := New(96)

	assert.EqualValues(t, 96, a.Alloc(100))
	assert.EqualValues(t, 196, a.Alloc(200))
	assert.EqualValues(t, 396, a.Alloc(0), "empty request reserves nothing")
	assert.EqualValues(t, 396, a.EOFAddr())

	assert.Equal(t, Stats{Blocks: 2, Bytes: 300, Largest: 200}, a.Stats())
}

func TestNewAllocatorIsEmpty(t *testing.T) {
	a := New(48)
	assert.EqualValues(t, 48, a.EOFAddr())
	assert.Zero(t, a.Stats())
}

func TestConcurrentAllocNeverOverlaps(t *testing.T) {
	a := New(0)
	const workers, each = 8, 50

	addrs := make(chan uint64, workers*each)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				addrs <- a.Alloc(16)
			}
		}()
	}
	wg.Wait()
	close(addrs)

	seen := make(map[uint64]bool)
	for addr := range addrs {
		assert.Zero(t, addr%16)
		assert.False(t, seen[addr], "address 0x%x handed out twice", addr)
		seen[addr] = true
	}
	assert.EqualValues(t, workers*each*16, a.EOFAddr())
}
