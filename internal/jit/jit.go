// Package jit implements the x86_64 template JIT of spec.md §4.5: a
// native code generator that translates a verified instruction vector
// into a function obeying the interpreter's own entry contract
// (ctxPtr, ctxLen) -> r0, and which must produce bit-equivalent
// results to the interpreter for every program it accepts.
//
// This is deliberately a skeleton, not a complete code generator: it
// recognizes a restricted, common subset of verified programs — a
// straight-line run of 64-bit ALU instructions (MOV/ADD/SUB/OR/AND/XOR,
// immediate or register source) ending in EXIT, with no branches,
// memory access, or helper calls — and emits native code only for
// that subset. Compile returns ErrInvalidArgument for anything outside
// it, which the caller treats as "JIT unavailable" and keeps using the
// interpreter (spec.md §4.5: "the two back-ends are interchangeable at
// the call site").
package jit

import (
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
	"github.com/ethercflow/generic-ebpf/internal/prog"
)

// regSlots is the stack frame reserved for the eleven-register file,
// one qword per register, addressed relative to RBP the same way the
// interpreter addresses its regs array.
const regSlots = 11 * 8

// Compile attempts to translate p's instructions into native code. On
// success it returns a *prog.JITImage ready to pass to (*prog.Program).SetJIT.
func Compile(p *prog.Program) (*prog.JITImage, error) {
	insts := p.Insts()
	code, err := emit(insts)
	if err != nil {
		dlog.D("jit: compile declined, falling back to interpreter:", err)
		return nil, err
	}

	entry, err := install(code)
	if err != nil {
		return nil, err
	}
	dlog.D("jit: compiled", len(insts), "insts to", len(code), "bytes of native code")
	return &prog.JITImage{Code: code, Entry: entry}, nil
}

// emit generates the function body for insts, or reports that insts
// fall outside the subset this skeleton handles.
func emit(insts []asm.Inst) ([]byte, error) {
	for _, in := range insts {
		if !supported(in) {
			return nil, ebpferr.ErrInvalidArgument
		}
	}

	var c codeBuf
	c.prologue()
	for _, in := range insts {
		if in.Op == asm.OpExit {
			c.epilogue()
			continue
		}
		c.aluInst(in)
	}
	return c.buf, nil
}

// supported reports whether in belongs to the subset this skeleton
// compiles: 64-bit ALU with a Mov/Add/Sub/Or/And/Xor operator, or EXIT.
func supported(in asm.Inst) bool {
	if in.Op == asm.OpExit {
		return true
	}
	if in.Class() != asm.ALU64Class {
		return false
	}
	switch in.Op & asm.OpMask {
	case asm.OpMov, asm.OpAdd, asm.OpSub, asm.OpOr, asm.OpAnd, asm.OpXor:
		return true
	default:
		return false
	}
}
