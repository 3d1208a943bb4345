// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"math/bits"
	"sync"
)

const (
	minClassShift = 9  // 512 B
	maxClassShift = 22 // 4 MiB
)

// SyncPool is a typed sync.Pool. Each size class of a BytePool is one.
type SyncPool[T any] struct {
	p sync.Pool
}

// NewSyncPool creates a pool that calls newFn when it has nothing to reuse.
func NewSyncPool[T any](newFn func() T) *SyncPool[T] {
	sp := &SyncPool[T]{}
	sp.p.New = func() any { return newFn() }
	return sp
}

// Get returns a pooled value or a fresh one.
func (sp *SyncPool[T]) Get() T { return sp.p.Get().(T) }

// Put makes v available for reuse.
func (sp *SyncPool[T]) Put(v T) { sp.p.Put(v) }

// BytePool hands out byte slices from power-of-two size classes. Requests
// above the largest class are allocated directly and never pooled.
type BytePool struct {
	classes [maxClassShift - minClassShift + 1]*SyncPool[*[]byte]
}

// NewBytePool creates an empty pool.
func NewBytePool() *BytePool {
	bp := &BytePool{}
	for i := range bp.classes {
		size := 1 << (minClassShift + i)
		bp.classes[i] = NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		})
	}
	return bp
}

// Default is the process-wide pool used by stream endpoints.
var Default = NewBytePool()

// GetBuffer returns a slice of exactly n bytes. Contents are unspecified.
func (b *BytePool) GetBuffer(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	idx, ok := classIndex(n)
	if !ok {
		return make([]byte, n)
	}
	buf := b.classes[idx].Get()
	return (*buf)[:n]
}

// PutBuffer returns a buffer obtained from GetBuffer. Buffers whose capacity
// is not an exact class size are dropped for the GC.
func (b *BytePool) PutBuffer(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	idx, ok := classIndex(c)
	if !ok || 1<<(minClassShift+idx) != c {
		return
	}
	buf = buf[:c]
	b.classes[idx].Put(&buf)
}

func classIndex(n int) (int, bool) {
	shift := bits.Len(uint(n - 1))
	if shift < minClassShift {
		shift = minClassShift
	}
	if shift > maxClassShift {
		return 0, false
	}
	return shift - minClassShift, true
}
