package vm

import (
	"unsafe"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
	"github.com/ethercflow/generic-ebpf/internal/ebpfmap"
)

// Helper return codes, R0 on a CALL's completion (spec.md §4.5): zero is
// success and nonzero is failure. map_lookup_elem is the exception: it
// returns the value pointer on success and zero (null) on failure. The VM does not propagate Go errors out of Exec — runtime
// faults are folded into R0 per spec.md §7.
const (
	helperOK       = 0
	helperNotFound = 1
	helperExists   = 2
	helperBusy     = 3
	helperNoMemory = 4
	helperInvalid  = 5
)

// callHelper dispatches a CALL instruction's immediate-selected helper.
// Map handles are resolved through the executing program's attached-map
// table by slot index, carried in R1, not by a raw pointer.
func callHelper(m *machine, in asm.Inst) {
	switch uint32(in.Imm) {
	case asm.HelperMapLookupElem:
		m.regs[asm.R0] = helperMapLookupElem(m)
	case asm.HelperMapUpdateElem:
		m.regs[asm.R0] = helperMapUpdateElem(m)
	case asm.HelperMapDeleteElem:
		m.regs[asm.R0] = helperMapDeleteElem(m)
	default:
		m.regs[asm.R0] = helperInvalid
	}
}

func (m *machine) resolveMap() ebpfmap.Map {
	slot := int(m.regs[asm.R1])
	return m.p.Map(slot)
}

func readBytes(addr uintptr, n uint32) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(n))
}

// helperMapLookupElem implements map_lookup_elem(map_slot, key_ptr) ->
// value_ptr. R1 is the slot index, R2 the key's address. The returned
// pointer, if non-null, is valid only for the remainder of this
// execution (spec.md §5, package epoch).
func helperMapLookupElem(m *machine) uint64 {
	mp := m.resolveMap()
	if mp == nil {
		return 0 // null pointer: no map bound to the slot
	}
	key := readBytes(uintptr(m.regs[asm.R2]), mp.Attr().KeySize)
	ptr, err := mp.LookupFromKern(key)
	if err != nil {
		return helperOK // null pointer: not found, same as real eBPF semantics
	}
	return uint64(uintptr(ptr))
}

// helperMapUpdateElem implements
// map_update_elem(map_slot, key_ptr, value_ptr, flags).
func helperMapUpdateElem(m *machine) uint64 {
	mp := m.resolveMap()
	if mp == nil {
		return errCode(ebpferr.ErrInvalidArgument)
	}
	attr := mp.Attr()
	key := readBytes(uintptr(m.regs[asm.R2]), attr.KeySize)
	value := readBytes(uintptr(m.regs[asm.R3]), attr.ValueSize)
	flag := ebpfmap.Flag(m.regs[asm.R4])
	err := mp.UpdateFromUser(key, value, flag)
	return errCode(err)
}

// helperMapDeleteElem implements map_delete_elem(map_slot, key_ptr).
func helperMapDeleteElem(m *machine) uint64 {
	mp := m.resolveMap()
	if mp == nil {
		return errCode(ebpferr.ErrInvalidArgument)
	}
	key := readBytes(uintptr(m.regs[asm.R2]), mp.Attr().KeySize)
	err := mp.DeleteFromUser(key)
	return errCode(err)
}

func errCode(err error) uint64 {
	switch err {
	case nil:
		return helperOK
	case ebpferr.ErrNotFound:
		return helperNotFound
	case ebpferr.ErrExists:
		return helperExists
	case ebpferr.ErrBusy:
		return helperBusy
	case ebpferr.ErrNoMemory:
		return helperNoMemory
	default:
		return helperInvalid
	}
}
