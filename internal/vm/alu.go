package vm

import (
	"math/bits"

	"github.com/ethercflow/generic-ebpf/internal/asm"
)

// execALU executes one ALU32 or ALU64 instruction. ALU32 operates on the
// low 32 bits of its operands and zero-extends the result into the
// 64-bit register (spec.md §4.5).
func execALU(m *machine, in asm.Inst, is64 bool) {
	var src uint64
	if in.Op&asm.SrcMask == asm.SrcReg {
		src = m.regs[in.Src]
	} else {
		src = uint64(uint32(in.Imm))
		if is64 {
			src = uint64(int64(in.Imm))
		}
	}
	dst := m.regs[in.Dst]

	var result uint64
	switch in.Op & asm.OpMask {
	case asm.OpAdd:
		result = dst + src
	case asm.OpSub:
		result = dst - src
	case asm.OpMul:
		result = dst * src
	case asm.OpDiv:
		if is64 {
			if src == 0 {
				result = 0
			} else {
				result = dst / src
			}
		} else if s32 := uint32(src); s32 == 0 {
			result = 0
		} else {
			result = uint64(uint32(dst) / s32)
		}
	case asm.OpOr:
		result = dst | src
	case asm.OpAnd:
		result = dst & src
	case asm.OpLSh:
		result = dst << (src & shiftMask(is64))
	case asm.OpRSh:
		if is64 {
			result = dst >> (src & shiftMask(is64))
		} else {
			result = uint64(uint32(dst) >> (uint32(src) & 31))
		}
	case asm.OpNeg:
		result = uint64(-int64(dst))
	case asm.OpMod:
		if is64 {
			if src == 0 {
				result = dst
			} else {
				result = dst % src
			}
		} else if s32 := uint32(src); s32 == 0 {
			result = uint64(uint32(dst))
		} else {
			result = uint64(uint32(dst) % s32)
		}
	case asm.OpXor:
		result = dst ^ src
	case asm.OpMov:
		result = src
	case asm.OpArSh:
		if is64 {
			result = uint64(int64(dst) >> (src & shiftMask(is64)))
		} else {
			result = uint64(int32(dst) >> (uint32(src) & 31))
		}
	case asm.OpEnd:
		result = endianConvert(dst, in)
	}

	if !is64 {
		result = uint64(uint32(result))
	}
	m.regs[in.Dst] = result
}

func shiftMask(is64 bool) uint64 {
	if is64 {
		return 63
	}
	return 31
}

func endianConvert(v uint64, in asm.Inst) uint64 {
	toBE := in.Op&asm.SrcMask == asm.SrcReg
	switch in.Imm {
	case 16:
		x := uint16(v)
		if toBE {
			x = bits.ReverseBytes16(x)
		}
		return uint64(x)
	case 32:
		x := uint32(v)
		if toBE {
			x = bits.ReverseBytes32(x)
		}
		return uint64(x)
	case 64:
		x := v
		if toBE {
			x = bits.ReverseBytes64(x)
		}
		return x
	default:
		return v
	}
}
