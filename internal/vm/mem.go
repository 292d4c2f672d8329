package vm

import (
	"unsafe"

	"github.com/ethercflow/generic-ebpf/internal/asm"
)

// ctxAddr returns the raw address of ctx's backing array as a register
// value. The VM treats register contents that came from ctxAddr,
// stackTop, or a map helper's returned pointer as opaque addresses —
// memory-safety of what a program does with them is outside this
// core's verifier (spec.md §4.5, §9).
func ctxAddr(ctx []byte) uintptr {
	return uintptr(unsafe.Pointer(&ctx[0]))
}

// stackTop returns the address one past the end of the scratch stack,
// matching the ISA's convention of addressing the stack through R10
// with negative offsets.
func stackTop(stack *[StackSize]byte) uintptr {
	return uintptr(unsafe.Pointer(&stack[0])) + uintptr(StackSize)
}

func effectiveAddr(base uint64, offset int16) uintptr {
	return uintptr(int64(base) + int64(offset))
}

func execLoad(m *machine, in asm.Inst) {
	addr := effectiveAddr(m.regs[in.Src], in.Offset)
	switch in.Op {
	case asm.OpLdXB:
		m.regs[in.Dst] = uint64(*(*uint8)(unsafe.Pointer(addr)))
	case asm.OpLdXH:
		m.regs[in.Dst] = uint64(*(*uint16)(unsafe.Pointer(addr)))
	case asm.OpLdXW:
		m.regs[in.Dst] = uint64(*(*uint32)(unsafe.Pointer(addr)))
	case asm.OpLdXDW:
		m.regs[in.Dst] = *(*uint64)(unsafe.Pointer(addr))
	}
}

func execStoreImm(m *machine, in asm.Inst) {
	addr := effectiveAddr(m.regs[in.Dst], in.Offset)
	switch in.Op {
	case asm.OpStB:
		*(*uint8)(unsafe.Pointer(addr)) = uint8(in.Imm)
	case asm.OpStH:
		*(*uint16)(unsafe.Pointer(addr)) = uint16(in.Imm)
	case asm.OpStW:
		*(*uint32)(unsafe.Pointer(addr)) = uint32(in.Imm)
	case asm.OpStDW:
		*(*uint64)(unsafe.Pointer(addr)) = uint64(int64(in.Imm))
	}
}

func execStoreReg(m *machine, in asm.Inst) {
	addr := effectiveAddr(m.regs[in.Dst], in.Offset)
	v := m.regs[in.Src]
	switch in.Op {
	case asm.OpStXB:
		*(*uint8)(unsafe.Pointer(addr)) = uint8(v)
	case asm.OpStXH:
		*(*uint16)(unsafe.Pointer(addr)) = uint16(v)
	case asm.OpStXW:
		*(*uint32)(unsafe.Pointer(addr)) = uint32(v)
	case asm.OpStXDW:
		*(*uint64)(unsafe.Pointer(addr)) = v
	}
}
