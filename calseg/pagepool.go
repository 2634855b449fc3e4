package calseg

import "unsafe"

// pagePool is a free list of equal-sized scratch buffers, adapted from
// lfq's SPSCIndirect: a fixed-size ring of free slab indices instead
// of pointer-tagged slots. Every calibration-page mutation is issued
// from the single protocol-dispatch goroutine, so the pool only ever
// needs one producer and one consumer of free indices even though both
// roles are the same goroutine.
type pagePool struct {
	head       uint64
	cachedTail uint64
	tail       uint64
	cachedHead uint64
	free       []uint64
	mask       uint64
	slab       [][]byte
	bufSize    int
}

// newPagePool preallocates n scratch buffers of bufSize bytes each, all
// initially free. n rounds up to the next power of 2.
func newPagePool(n, bufSize int) *pagePool {
	if n < 1 {
		n = 1
	}
	n = roundToPow2(n)
	p := &pagePool{
		free:    make([]uint64, n),
		mask:    uint64(n) - 1,
		slab:    make([][]byte, n),
		bufSize: bufSize,
	}
	arena := make([]byte, n*bufSize)
	for i := 0; i < n; i++ {
		p.slab[i] = arena[i*bufSize : (i+1)*bufSize : (i+1)*bufSize]
	}
	for i := 0; i < n; i++ {
		p.enqueue(uint64(i))
	}
	return p
}

// enqueue and dequeue follow the SPSC cached-cursor shape, on plain
// uint64 fields because the pool is only ever touched by the single
// serialized dispatch goroutine; no cross-goroutine ordering is
// needed here, unlike the transport queue's genuinely concurrent
// producers.
func (p *pagePool) enqueue(idx uint64) bool {
	tail := p.tail
	if tail-p.cachedHead > p.mask {
		p.cachedHead = p.head
		if tail-p.cachedHead > p.mask {
			return false
		}
	}
	p.free[tail&p.mask] = idx
	p.tail = tail + 1
	return true
}

func (p *pagePool) dequeue() (uint64, bool) {
	head := p.head
	if head >= p.cachedTail {
		p.cachedTail = p.tail
		if head >= p.cachedTail {
			return 0, false
		}
	}
	idx := p.free[head&p.mask]
	p.head = head + 1
	return idx, true
}

// Acquire returns a spare scratch buffer, or false if the pool is
// momentarily exhausted (every buffer is either live or retiring).
func (p *pagePool) Acquire() ([]byte, bool) {
	idx, ok := p.dequeue()
	if !ok {
		return nil, false
	}
	return p.slab[idx], true
}

// Release returns a buffer previously handed out by Acquire, recovered
// by pointer identity against the pool's own arena; the same
// slotOf/ptrDiff technique the transport queue uses to map a buffer
// handle back to its owning index. A buffer from outside the arena
// (the segment's boot-time working page retires through here once the
// first republish cycles past it) is dropped instead of recycled.
func (p *pagePool) Release(buf []byte) {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.slab[0])))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if ptr < base {
		return
	}
	off := int(ptr - base)
	if off >= len(p.slab)*p.bufSize || off%p.bufSize != 0 {
		return
	}
	p.enqueue(uint64(off / p.bufSize))
}

// roundToPow2 rounds n up to the next power of 2 (n >= 1), the same
// bit trick as queue/entry.go's roundToPow2 without that function's
// capacity>=2 floor; a pool of exactly one scratch buffer is valid.
func roundToPow2(n int) int {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
