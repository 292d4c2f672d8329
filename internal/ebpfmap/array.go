package ebpfmap

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/gramework/utils/nocopy"
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
)

// arrayMap is the fixed-capacity, 32-bit-indexed backend of spec.md §4.2.
// Storage is one contiguous byte slice of max_entries*value_size plus an
// occupancy bitmap; there is no allocator or epoch involvement because
// every slot's address is stable for the map's whole lifetime.
type arrayMap struct {
	attr  Attr
	data  []byte
	occ   []uint64 // one bit per index
	mu    sync.RWMutex
	nocopy nocopy.NoCopy
}

func newArrayMap(attr Attr) *arrayMap {
	dlog.D("ebpfmap: array init", attr.MaxEntries, "x", attr.ValueSize)
	return &arrayMap{
		attr: attr,
		data: make([]byte, uint64(attr.MaxEntries)*uint64(attr.ValueSize)),
		occ:  make([]uint64, (attr.MaxEntries+63)/64),
	}
}

func (m *arrayMap) Type() Type { return Array }
func (m *arrayMap) Attr() Attr { return m.attr }

func (m *arrayMap) decodeIndex(key []byte) (uint32, error) {
	if len(key) != 4 {
		return 0, ebpferr.ErrInvalidArgument
	}
	idx := binary.LittleEndian.Uint32(key)
	if idx >= m.attr.MaxEntries {
		return 0, ebpferr.ErrInvalidArgument
	}
	return idx, nil
}

func (m *arrayMap) testBit(idx uint32) bool {
	return m.occ[idx/64]&(1<<(idx%64)) != 0
}

func (m *arrayMap) setBit(idx uint32) {
	m.occ[idx/64] |= 1 << (idx % 64)
}

func (m *arrayMap) clearBit(idx uint32) {
	m.occ[idx/64] &^= 1 << (idx % 64)
}

func (m *arrayMap) slot(idx uint32) []byte {
	sz := uint64(m.attr.ValueSize)
	off := uint64(idx) * sz
	return m.data[off : off+sz]
}

func (m *arrayMap) LookupFromUser(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, err := m.decodeIndex(key)
	if err != nil {
		return nil, err
	}
	if !m.testBit(idx) {
		return nil, ebpferr.ErrNotFound
	}
	out := make([]byte, m.attr.ValueSize)
	copy(out, m.slot(idx))
	return out, nil
}

func (m *arrayMap) LookupFromKern(key []byte) (unsafe.Pointer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, err := m.decodeIndex(key)
	if err != nil {
		return nil, err
	}
	if !m.testBit(idx) {
		return nil, ebpferr.ErrNotFound
	}
	slot := m.slot(idx)
	return unsafe.Pointer(&slot[0]), nil
}

func (m *arrayMap) UpdateFromUser(key, value []byte, flag Flag) error {
	if len(value) != int(m.attr.ValueSize) {
		return ebpferr.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.decodeIndex(key)
	if err != nil {
		return err
	}
	present := m.testBit(idx)
	switch flag {
	case NoExist:
		if present {
			return ebpferr.ErrExists
		}
	case Exist:
		if !present {
			return ebpferr.ErrNotFound
		}
	}
	copy(m.slot(idx), value)
	m.setBit(idx)
	return nil
}

func (m *arrayMap) DeleteFromUser(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.decodeIndex(key)
	if err != nil {
		return err
	}
	if !m.testBit(idx) {
		return ebpferr.ErrNotFound
	}
	m.clearBit(idx)
	return nil
}

func (m *arrayMap) GetNextKey(prev []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := uint32(0)
	if prev != nil {
		idx, err := m.decodeIndex(prev)
		if err != nil {
			return nil, err
		}
		start = idx + 1
	}
	for i := start; i < m.attr.MaxEntries; i++ {
		if m.testBit(i) {
			out := make([]byte, 4)
			binary.LittleEndian.PutUint32(out, i)
			return out, nil
		}
	}
	return nil, ebpferr.ErrNotFound
}

func (m *arrayMap) Deinit() {
	dlog.D("ebpfmap: array deinit")
}
