package ebpfmap

import (
	"bytes"
	"hash/maphash"
	"sync"
	"unsafe"

	"github.com/gramework/utils/nocopy"
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/alloc"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
	"github.com/ethercflow/generic-ebpf/internal/epoch"
)

// entryHeader sits at the front of every block this backend draws from
// its allocator; the key and value bytes follow it in the same block.
// A block is either linked into a bucket chain or sitting on the
// allocator's free list — never both (spec.md §9).
type entryHeader struct {
	next unsafe.Pointer // *entryHeader, next entry in this bucket's chain
	hash uint64
}

var headerSize = int(unsafe.Sizeof(entryHeader{}))

// hashMap is the fixed-capacity, arbitrary-byte-key backend of spec.md
// §4.2. Bucket count is the next power of two at least as large as
// max_entries, chosen once at init since the spec forbids resizing.
// Entry storage is drawn from a block allocator preallocated with
// max_entries blocks (segments are carved in whole pages, so it may hold
// more); the entry count, not the allocator, caps insertion at
// max_entries, failing with ErrBusy instead of growing.
type hashMap struct {
	attr    Attr
	buckets []unsafe.Pointer // *entryHeader chain heads
	mask    uint64
	seed    maphash.Seed
	alloc   *alloc.Allocator
	count   uint32

	mu     sync.RWMutex
	nocopy nocopy.NoCopy
}

func newHashMap(attr Attr) (*hashMap, error) {
	blockSize := headerSize + int(attr.KeySize) + int(attr.ValueSize)
	// round up to pointer alignment, as alloc.New requires.
	if rem := blockSize % int(unsafe.Sizeof(uintptr(0))); rem != 0 {
		blockSize += int(unsafe.Sizeof(uintptr(0))) - rem
	}
	a, err := alloc.New(blockSize)
	if err != nil {
		return nil, err
	}
	if err := a.Prealloc(int(attr.MaxEntries)); err != nil {
		return nil, err
	}

	nb := nextPow2(attr.MaxEntries)
	dlog.D("ebpfmap: hashtable init", attr.MaxEntries, "entries,", nb, "buckets")
	return &hashMap{
		attr:    attr,
		buckets: make([]unsafe.Pointer, nb),
		mask:    uint64(nb - 1),
		seed:    maphash.MakeSeed(),
		alloc:   a,
	}, nil
}

func nextPow2(n uint32) uint32 {
	if n < 8 {
		n = 8
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (m *hashMap) Type() Type { return HashTable }
func (m *hashMap) Attr() Attr { return m.attr }

func (m *hashMap) hash(key []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.Write(key)
	return h.Sum64()
}

func (m *hashMap) bucketIdx(h uint64) uint64 { return h & m.mask }

func (m *hashMap) keyBytes(e unsafe.Pointer) []byte {
	p := unsafe.Add(e, headerSize)
	return unsafe.Slice((*byte)(p), int(m.attr.KeySize))
}

func (m *hashMap) valueBytes(e unsafe.Pointer) []byte {
	p := unsafe.Add(e, headerSize+int(m.attr.KeySize))
	return unsafe.Slice((*byte)(p), int(m.attr.ValueSize))
}

// findLocked returns the entry for key in its bucket chain, or nil if
// absent.
func (m *hashMap) findLocked(key []byte, h uint64) unsafe.Pointer {
	idx := m.bucketIdx(h)
	for e := m.buckets[idx]; e != nil; {
		hdr := (*entryHeader)(e)
		if hdr.hash == h && bytes.Equal(m.keyBytes(e), key) {
			return e
		}
		e = hdr.next
	}
	return nil
}

func (m *hashMap) LookupFromUser(key []byte) ([]byte, error) {
	if len(key) != int(m.attr.KeySize) {
		return nil, ebpferr.ErrInvalidArgument
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.findLocked(key, m.hash(key))
	if e == nil {
		return nil, ebpferr.ErrNotFound
	}
	out := make([]byte, m.attr.ValueSize)
	copy(out, m.valueBytes(e))
	return out, nil
}

func (m *hashMap) LookupFromKern(key []byte) (unsafe.Pointer, error) {
	if len(key) != int(m.attr.KeySize) {
		return nil, ebpferr.ErrInvalidArgument
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.findLocked(key, m.hash(key))
	if e == nil {
		return nil, ebpferr.ErrNotFound
	}
	vb := m.valueBytes(e)
	return unsafe.Pointer(&vb[0]), nil
}

func (m *hashMap) UpdateFromUser(key, value []byte, flag Flag) error {
	if len(key) != int(m.attr.KeySize) || len(value) != int(m.attr.ValueSize) {
		return ebpferr.ErrInvalidArgument
	}
	h := m.hash(key)
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.findLocked(key, h)
	if e != nil {
		if flag == NoExist {
			return ebpferr.ErrExists
		}
		copy(m.valueBytes(e), value)
		return nil
	}
	if flag == Exist {
		return ebpferr.ErrNotFound
	}
	if m.count >= m.attr.MaxEntries {
		return ebpferr.ErrBusy
	}
	block, err := m.alloc.Alloc()
	if err != nil {
		return ebpferr.ErrNoMemory
	}
	hdr := (*entryHeader)(block)
	hdr.hash = h
	idx := m.bucketIdx(h)
	hdr.next = m.buckets[idx]
	copy(m.keyBytes(block), key)
	copy(m.valueBytes(block), value)
	m.buckets[idx] = block
	m.count++
	return nil
}

func (m *hashMap) DeleteFromUser(key []byte) error {
	if len(key) != int(m.attr.KeySize) {
		return ebpferr.ErrInvalidArgument
	}
	h := m.hash(key)
	idx := m.bucketIdx(h)

	m.mu.Lock()
	var prev unsafe.Pointer
	var found unsafe.Pointer
	for e := m.buckets[idx]; e != nil; {
		hdr := (*entryHeader)(e)
		if hdr.hash == h && bytes.Equal(m.keyBytes(e), key) {
			found = e
			break
		}
		prev = e
		e = hdr.next
	}
	if found == nil {
		m.mu.Unlock()
		return ebpferr.ErrNotFound
	}
	hdr := (*entryHeader)(found)
	if prev == nil {
		m.buckets[idx] = hdr.next
	} else {
		(*entryHeader)(prev).next = hdr.next
	}
	m.count--
	m.mu.Unlock()

	// A concurrent reader may have captured an interior pointer into
	// found's value via LookupFromKern before we took the write lock
	// above and released it for the duration of its program execution;
	// only return the block to the allocator once the epoch mechanism
	// confirms that reader has finished.
	epoch.Defer(func() { m.alloc.Free(found) })
	return nil
}

func (m *hashMap) GetNextKey(prev []byte) ([]byte, error) {
	if prev != nil && len(prev) != int(m.attr.KeySize) {
		return nil, ebpferr.ErrInvalidArgument
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	startBucket := uint64(0)
	if prev != nil {
		h := m.hash(prev)
		e := m.findLocked(prev, h)
		if e == nil {
			return nil, ebpferr.ErrNotFound
		}
		hdr := (*entryHeader)(e)
		if hdr.next != nil {
			return m.copyKey(hdr.next), nil
		}
		startBucket = m.bucketIdx(h) + 1
	}
	for b := startBucket; b < uint64(len(m.buckets)); b++ {
		if m.buckets[b] != nil {
			return m.copyKey(m.buckets[b]), nil
		}
	}
	return nil, ebpferr.ErrNotFound
}

func (m *hashMap) copyKey(e unsafe.Pointer) []byte {
	out := make([]byte, m.attr.KeySize)
	copy(out, m.keyBytes(e))
	return out
}

func (m *hashMap) Deinit() {
	epoch.Synchronize()
	m.alloc.Deinit()
	dlog.D("ebpfmap: hashtable deinit")
}
