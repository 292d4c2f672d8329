package jit

import (
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
)

// minAllocSize is the smallest region requested from the OS per
// compiled program; small programs share the tail of a previous
// mapping instead of paying for a fresh mmap call each time.
const minAllocSize = 4096

// arena hands out executable memory for compiled programs, growing by
// mmap regions of at least minAllocSize bytes and bump-allocating within
// them.
// Grounded on wagon's native.MMapAllocator: this core keeps its own
// copy because wagon's allocator lives in an internal package and
// cannot be imported directly.
type arena struct {
	last *mmapBlock
}

type mmapBlock struct {
	mem       mmap.MMap
	consumed  int
	remaining int
}

// alloc copies code into a fresh or reused executable mapping and
// returns the address the copy landed at. The returned pointer stays
// valid for the process's lifetime: executable arenas are never
// unmapped (spec.md §5's "blocks
// are never individually returned to the OS", applied here to code
// pages instead of map entries).
func (a *arena) alloc(code []byte) (unsafe.Pointer, error) {
	if a.last != nil && a.last.remaining >= len(code) {
		b := a.last
		dst := b.mem[b.consumed : b.consumed+len(code)]
		copy(dst, code)
		ptr := unsafe.Pointer(&dst[0])
		b.consumed += len(code)
		b.remaining -= len(code)
		return ptr, nil
	}

	size := minAllocSize
	if len(code) > size {
		size = len(code)
	}
	m, err := mmap.MapRegion(nil, size, mmap.EXEC|mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	copy(m[:len(code)], code)
	a.last = &mmapBlock{mem: m, consumed: len(code), remaining: size - len(code)}
	return unsafe.Pointer(&m[0]), nil
}

var global arena
