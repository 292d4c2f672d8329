package jit

import (
	"encoding/binary"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/vm"
)

// Native register slots and the scratch stack sit in the same relative
// layout the interpreter uses, just materialized as a real stack frame
// instead of a Go struct: eleven consecutive qwords for the register
// file, immediately followed (at lower addresses) by the scratch
// stack, so R10 points one past the scratch stack's end, the same
// convention vm.Exec uses (the address itself lies in the native frame).
const frameSize = regSlots + vm.StackSize + 8 // +8 pads the frame; emitted code uses no SSE/aligned-load ops, so exact rsp alignment at the CALL in trampoline_amd64.s is not load-bearing today

type codeBuf struct {
	buf []byte
}

func (c *codeBuf) emit(bs ...byte)      { c.buf = append(c.buf, bs...) }
func (c *codeBuf) emitImm32(v int32)    { c.buf = binary.LittleEndian.AppendUint32(c.buf, uint32(v)) }
func (c *codeBuf) emitImm64(v int64)    { c.buf = binary.LittleEndian.AppendUint64(c.buf, uint64(v)) }
func disp8(v int) byte                  { return byte(int8(v)) }

// regOffset is the RBP-relative displacement of register i's slot.
func regOffset(i int) int { return -8 * (i + 1) }

// scratchTopOffset is the RBP-relative displacement of the scratch
// stack's one-past-the-end address, mirroring vm.stackTop's convention.
const scratchTopOffset = -regSlots

func (c *codeBuf) prologue() {
	c.emit(0x55)                   // push rbp
	c.emit(0x48, 0x89, 0xe5)       // mov rbp, rsp
	c.emit(0x48, 0x81, 0xec)       // sub rsp, imm32
	c.emitImm32(int32(frameSize))

	for i := 0; i <= int(asm.R10); i++ {
		// mov qword [rbp+disp8], 0
		c.emit(0x48, 0xc7, 0x45, disp8(regOffset(i)))
		c.emitImm32(0)
	}

	// r1 := ctxPtr (first argument, System V: rdi)
	c.emit(0x48, 0x89, 0x7d, disp8(regOffset(int(asm.R1)))) // mov [rbp+disp], rdi

	// r10 := address one past the scratch buffer's end.
	c.emit(0x48, 0x8d, 0x45, disp8(scratchTopOffset))                 // lea rax, [rbp+disp]
	c.emit(0x48, 0x89, 0x45, disp8(regOffset(int(asm.R10))))          // mov [rbp+disp], rax
}

func (c *codeBuf) epilogue() {
	c.emit(0x48, 0x8b, 0x45, disp8(regOffset(int(asm.R0)))) // mov rax, [rbp+disp]
	c.emit(0xc9)                                            // leave
	c.emit(0xc3)                                            // ret
}

func (c *codeBuf) loadRax(off int) { c.emit(0x48, 0x8b, 0x45, disp8(off)) } // mov rax, [rbp+off]
func (c *codeBuf) loadRcx(off int) { c.emit(0x48, 0x8b, 0x4d, disp8(off)) } // mov rcx, [rbp+off]
func (c *codeBuf) storeRax(off int) { c.emit(0x48, 0x89, 0x45, disp8(off)) } // mov [rbp+off], rax

func (c *codeBuf) movRaxImm64(v int64) {
	c.emit(0x48, 0xb8) // mov rax, imm64
	c.emitImm64(v)
}

// applyRaxRcx emits "<op> rax, rcx" for a register-sourced ALU op.
func (c *codeBuf) applyRaxRcx(op byte) {
	switch op {
	case asm.OpAdd:
		c.emit(0x48, 0x01, 0xc8) // add rax, rcx
	case asm.OpSub:
		c.emit(0x48, 0x29, 0xc8) // sub rax, rcx
	case asm.OpOr:
		c.emit(0x48, 0x09, 0xc8) // or rax, rcx
	case asm.OpAnd:
		c.emit(0x48, 0x21, 0xc8) // and rax, rcx
	case asm.OpXor:
		c.emit(0x48, 0x31, 0xc8) // xor rax, rcx
	case asm.OpMov:
		c.emit(0x48, 0x89, 0xc8) // mov rax, rcx
	}
}

// applyRaxImm32 emits "<op> rax, imm32" (sign-extended by the CPU, the
// same sign-extension the interpreter applies in execALU for ALU64).
func (c *codeBuf) applyRaxImm32(op byte, imm int32) {
	switch op {
	case asm.OpAdd:
		c.emit(0x48, 0x05) // add rax, imm32
	case asm.OpSub:
		c.emit(0x48, 0x2d) // sub rax, imm32
	case asm.OpOr:
		c.emit(0x48, 0x0d) // or rax, imm32
	case asm.OpAnd:
		c.emit(0x48, 0x25) // and rax, imm32
	case asm.OpXor:
		c.emit(0x48, 0x35) // xor rax, imm32
	}
	c.emitImm32(imm)
}

// aluInst emits one ALU64 instruction from the supported subset.
func (c *codeBuf) aluInst(in asm.Inst) {
	dstOff := regOffset(int(in.Dst))
	op := in.Op & asm.OpMask
	isReg := in.Op&asm.SrcMask == asm.SrcReg

	if op == asm.OpMov {
		if isReg {
			c.loadRcx(regOffset(int(in.Src)))
			c.emit(0x48, 0x89, 0xc8) // mov rax, rcx
		} else {
			c.movRaxImm64(int64(in.Imm))
		}
		c.storeRax(dstOff)
		return
	}

	c.loadRax(dstOff)
	if isReg {
		c.loadRcx(regOffset(int(in.Src)))
		c.applyRaxRcx(op)
	} else {
		c.applyRaxImm32(op, in.Imm)
	}
	c.storeRax(dstOff)
}
