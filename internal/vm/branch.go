package vm

import "github.com/ethercflow/generic-ebpf/internal/asm"

// execJump executes one JMP-class instruction at pc. It returns the next
// PC to execute, the return value and whether the instruction is EXIT
// (done==true), or a resolved branch target.
func execJump(m *machine, in asm.Inst, pc int) (next int, ret uint64, done bool) {
	op := in.Op & asm.OpMask
	switch op &^ asm.SrcMask {
	case asm.JOpExit:
		return 0, m.regs[asm.R0], true
	case asm.JOpCall:
		callHelper(m, in)
		return pc + 1, 0, false
	case asm.JOpJA:
		return pc + 1 + int(in.Offset), 0, false
	}

	dst := m.regs[in.Dst]
	var src uint64
	if in.Op&asm.SrcMask == asm.SrcReg {
		src = m.regs[in.Src]
	} else {
		src = uint64(int64(in.Imm))
	}

	if jumpTaken(op, dst, src) {
		return pc + 1 + int(in.Offset), 0, false
	}
	return pc + 1, 0, false
}

func jumpTaken(op byte, dst, src uint64) bool {
	switch op &^ asm.SrcMask {
	case asm.JOpJEq:
		return dst == src
	case asm.JOpJNE:
		return dst != src
	case asm.JOpJGT:
		return dst > src
	case asm.JOpJGE:
		return dst >= src
	case asm.JOpJLT:
		return dst < src
	case asm.JOpJLE:
		return dst <= src
	case asm.JOpJSet:
		return dst&src != 0
	case asm.JOpJSGT:
		return int64(dst) > int64(src)
	case asm.JOpJSGE:
		return int64(dst) >= int64(src)
	case asm.JOpJSLT:
		return int64(dst) < int64(src)
	case asm.JOpJSLE:
		return int64(dst) <= int64(src)
	default:
		return false
	}
}
