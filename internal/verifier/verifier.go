// Package verifier implements the single-pass structural check of
// spec.md §4.4. It is intentionally structural: it does not prove
// memory safety, only that the instruction vector is internally
// consistent (bounded branches, defined opcodes, read-only frame
// pointer, no literal division by zero).
package verifier

import (
	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
)

const maxInsts = 4096

// Verify runs every structural check of spec.md §4.4 over insts and
// returns ErrInvalidArgument on the first violation found.
func Verify(insts []asm.Inst) error {
	n := len(insts)
	if n == 0 || n > maxInsts {
		return ebpferr.ErrInvalidArgument
	}
	if insts[n-1].Op != asm.OpExit {
		return ebpferr.ErrInvalidArgument
	}

	// pc advances one slot per instruction; LOAD_IMM64 occupies two
	// slots so its fall-through skips one extra.
	pc := 0
	for pc < n {
		in := insts[pc]

		if err := checkOpcode(in); err != nil {
			return err
		}
		if err := checkRegisters(in); err != nil {
			return err
		}
		if err := checkDivByZeroImm(in); err != nil {
			return err
		}

		if in.IsLoadImm64() {
			if pc+1 >= n {
				return ebpferr.ErrInvalidArgument
			}
			pc += 2
			continue
		}

		if isBranch(in) {
			target := pc + 1 + int(in.Offset)
			if target < 0 || target >= n {
				return ebpferr.ErrInvalidArgument
			}
		}

		pc++
	}
	return nil
}

func isBranch(in asm.Inst) bool {
	if in.Class() != asm.JmpClass {
		return false
	}
	switch in.Op & asm.OpMask {
	case asm.JOpCall, asm.JOpExit:
		return false
	}
	return true
}

func checkRegisters(in asm.Inst) error {
	if uint8(in.Dst) > 10 || uint8(in.Src) > 10 {
		return ebpferr.ErrInvalidArgument
	}
	if in.Dst == asm.FP && writesDst(in) {
		return ebpferr.ErrInvalidArgument
	}
	return nil
}

// writesDst reports whether in writes its Dst register; the frame
// pointer (R10) may be read but never written (spec.md §4.4 rule 5).
func writesDst(in asm.Inst) bool {
	switch in.Class() {
	case asm.ALUClass, asm.ALU64Class, asm.LdClass, asm.LdXClass:
		return true
	}
	return false
}

// checkDivByZeroImm rejects DIV/MOD by a literal zero immediate
// (spec.md §4.4 rule 6); division and modulo by a register are admitted
// here and given defined runtime semantics by the VM.
func checkDivByZeroImm(in asm.Inst) error {
	if in.Class() != asm.ALUClass && in.Class() != asm.ALU64Class {
		return nil
	}
	if in.Op&asm.SrcMask != asm.SrcImm {
		return nil
	}
	switch in.Op & asm.OpMask {
	case asm.OpDiv, asm.OpMod:
		if in.Imm == 0 {
			return ebpferr.ErrInvalidArgument
		}
	}
	return nil
}

func checkOpcode(in asm.Inst) error {
	switch in.Class() {
	case asm.LdClass:
		if in.Op != asm.OpLdDW {
			return ebpferr.ErrInvalidArgument
		}
	case asm.LdXClass:
		switch in.Op {
		case asm.OpLdXW, asm.OpLdXH, asm.OpLdXB, asm.OpLdXDW:
		default:
			return ebpferr.ErrInvalidArgument
		}
	case asm.StClass:
		switch in.Op {
		case asm.OpStW, asm.OpStH, asm.OpStB, asm.OpStDW:
		default:
			return ebpferr.ErrInvalidArgument
		}
	case asm.StXClass:
		switch in.Op {
		case asm.OpStXW, asm.OpStXH, asm.OpStXB, asm.OpStXDW:
		default:
			return ebpferr.ErrInvalidArgument
		}
	case asm.ALUClass, asm.ALU64Class:
		if !validALUOp(in.Op) {
			return ebpferr.ErrInvalidArgument
		}
	case asm.JmpClass:
		if !validJmpOp(in.Op) {
			return ebpferr.ErrInvalidArgument
		}
	default:
		return ebpferr.ErrInvalidArgument
	}
	return nil
}

func validALUOp(op byte) bool {
	switch op & asm.OpMask {
	case asm.OpAdd, asm.OpSub, asm.OpMul, asm.OpDiv, asm.OpOr, asm.OpAnd,
		asm.OpLSh, asm.OpRSh, asm.OpNeg, asm.OpMod, asm.OpXor, asm.OpMov,
		asm.OpArSh, asm.OpEnd:
		return true
	default:
		return false
	}
}

func validJmpOp(op byte) bool {
	switch op & asm.OpMask {
	case asm.JOpJA, asm.JOpJEq, asm.JOpJGT, asm.JOpJGE, asm.JOpJSet,
		asm.JOpJNE, asm.JOpJSGT, asm.JOpJSGE, asm.JOpCall, asm.JOpExit,
		asm.JOpJLT, asm.JOpJLE, asm.JOpJSLT, asm.JOpJSLE:
		return true
	default:
		return false
	}
}
