// Package alloc implements the fixed-block allocator of spec.md §4.1: a
// slab carved from page-sized segments, handed out as aligned blocks of a
// single fixed size, and never individually returned to the OS. Maps call
// into this package on every insertion; the hashtable backend (package
// ebpfmap) draws its entry storage from here.
//
// Individual blocks are never freed back to the segment allocator —
// only pushed onto the free list — because a reader that entered the
// epoch grace period (package epoch) before a concurrent delete may
// still hold an interior pointer into a block that has been unlinked
// from its owning structure but not yet reclaimed.
package alloc

import (
	"sync"
	"unsafe"

	"github.com/gramework/utils/nocopy"
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
)

const defaultPageSize = 4096

// PageSize reports the host page size used to size new segments. A real
// deployment would query this from the OS (spec.md §6 "Page size is
// obtained from the host"); this port hard-codes a conservative default
// since there is no such host collaborator wired into this core.
func PageSize() int { return defaultPageSize }

var ptrSize = int(unsafe.Sizeof(uintptr(0)))

// a block is either linked into the free list (its first ptrSize bytes
// hold the next pointer) or owned by whatever structure allocated it —
// never both at once.
type freeNode struct {
	next unsafe.Pointer
}

// segment is one backing allocation carved into blocks. Segments are
// tracked only so Owns can check that a block came from a recorded
// segment and, in a non-GC'd systems language, so Deinit could release
// them; under the Go runtime the backing array is simply dropped for
// the GC to collect once unreferenced.
type segment struct {
	mem []byte
}

// Allocator hands out fixed-size, pointer-aligned blocks. The free list
// and the segment list are each guarded by their own mutex: the spec's
// "pop protected, push lock-free" split only matters for a lock-free
// bump allocator, which Go's GC makes unnecessary here, so both push and
// pop of the free list share one mutex for straightforward correctness.
type Allocator struct {
	blockSize int

	mu   sync.Mutex
	free unsafe.Pointer // *freeNode, guarded by mu

	segMu    sync.Mutex
	segments []*segment

	nocopy nocopy.NoCopy
}

// New validates blockSize and constructs an Allocator. blockSize must be
// non-zero and a multiple of the pointer size.
func New(blockSize int) (*Allocator, error) {
	if blockSize <= 0 || blockSize%ptrSize != 0 {
		return nil, ebpferr.ErrInvalidArgument
	}
	return &Allocator{blockSize: blockSize}, nil
}

// BlockSize returns the fixed block size this allocator hands out.
func (a *Allocator) BlockSize() int { return a.blockSize }

// Prealloc allocates and immediately frees n blocks, priming the free
// list and the backing segments so that later Alloc calls on a hot path
// do not pay for segment acquisition.
func (a *Allocator) Prealloc(n int) error {
	blocks := make([]unsafe.Pointer, 0, n)
	for i := 0; i < n; i++ {
		b, err := a.Alloc()
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		a.Free(b)
	}
	return nil
}

// Alloc returns one block, pulling from the free list or carving a new
// segment when the free list is empty.
func (a *Allocator) Alloc() (unsafe.Pointer, error) {
	if p := a.popFree(); p != nil {
		return p, nil
	}
	if err := a.growSegment(); err != nil {
		return nil, err
	}
	if p := a.popFree(); p != nil {
		return p, nil
	}
	// growSegment always links at least one block when it succeeds.
	return nil, ebpferr.ErrNoMemory
}

// Free pushes block back onto the free list. Callers guarantee
// single-threaded retirement of any given block under the epoch protocol
// (package epoch): a block is only pushed once no reader can still be
// dereferencing it.
func (a *Allocator) Free(block unsafe.Pointer) {
	node := (*freeNode)(block)
	a.mu.Lock()
	node.next = a.free
	a.free = block
	a.mu.Unlock()
}

// Deinit releases every backing segment. The caller must have reclaimed
// every block it was handed before calling this.
func (a *Allocator) Deinit() {
	a.segMu.Lock()
	defer a.segMu.Unlock()
	dlog.D("alloc: deinit releasing", len(a.segments), "segments")
	a.segments = nil
	a.free = nil
}

// growSegment carves one new segment into aligned blocks and links them
// all onto the free list.
func (a *Allocator) growSegment() error {
	size := PageSize()
	need := a.blockSize
	if need > size {
		size = need
	}
	// round down to a whole number of blocks so every carved block is
	// fully contained in the segment.
	usable := size - (size % a.blockSize)
	if usable < a.blockSize {
		usable = a.blockSize
	}
	mem := make([]byte, usable)
	seg := &segment{mem: mem}

	a.segMu.Lock()
	a.segments = append(a.segments, seg)
	a.segMu.Unlock()

	base := unsafe.Pointer(&mem[0])
	n := usable / a.blockSize
	for i := 0; i < n; i++ {
		block := unsafe.Add(base, i*a.blockSize)
		a.Free(block)
	}
	return nil
}

// popFree pops the head of the free list under the pop mutex.
func (a *Allocator) popFree() unsafe.Pointer {
	a.mu.Lock()
	defer a.mu.Unlock()
	head := a.free
	if head == nil {
		return nil
	}
	node := (*freeNode)(head)
	a.free = node.next
	node.next = nil
	return head
}

// Owns reports whether block lies within some segment this allocator
// carved, used only by tests to check the alignment/segment invariant.
func (a *Allocator) Owns(block unsafe.Pointer) bool {
	a.segMu.Lock()
	defer a.segMu.Unlock()
	addr := uintptr(block)
	for _, seg := range a.segments {
		start := uintptr(unsafe.Pointer(&seg.mem[0]))
		end := start + uintptr(len(seg.mem))
		if addr >= start && addr < end {
			return true
		}
	}
	return false
}
