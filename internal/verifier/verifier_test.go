package verifier

import (
	"testing"

	"github.com/ethercflow/generic-ebpf/internal/asm"
)

func TestAcceptsMinimalExit(t *testing.T) {
	if err := Verify([]asm.Inst{{Op: asm.OpExit}}); err != nil {
		t.Fatal(err)
	}
}

func TestRejectsEmpty(t *testing.T) {
	if err := Verify(nil); err == nil {
		t.Fatal("expected error for empty program")
	}
}

func TestRejectsMissingTrailingExit(t *testing.T) {
	insts := []asm.Inst{{Op: asm.OpMov64Imm, Dst: asm.R0, Imm: 1}}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for program not ending in EXIT")
	}
}

func TestAcceptsEarlierExit(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpExit},
		{Op: asm.OpMov64Imm, Dst: asm.R0, Imm: 1},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err != nil {
		t.Fatal(err)
	}
}

func TestRejectsOutOfRangeBranch(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpJA, Offset: 10},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for out-of-range branch target")
	}
}

func TestAcceptsInRangeBranch(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpJA, Offset: 0},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImm64CountsAsTwoSlotsForBranchTargets(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpJA, Offset: 2}, // should land on EXIT at index 3, skipping the LDIMM64 pair
		{Op: asm.OpLdDW, Dst: asm.R1, Imm: 1},
		{Op: 0}, // second slot of the LDIMM64 pair
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err != nil {
		t.Fatal(err)
	}
}

func TestRejectsTruncatedLoadImm64(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpLdDW, Dst: asm.R1, Imm: 1},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for truncated LOAD_IMM64")
	}
}

func TestRejectsWriteToFramePointer(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpMov64Imm, Dst: asm.FP, Imm: 1},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for write to r10")
	}
}

func TestRejectsOutOfRangeRegister(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpMov64Imm, Dst: asm.Register(11), Imm: 1},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for register > 10")
	}
}

func TestRejectsDivByLiteralZero(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpDiv64Imm, Dst: asm.R0, Imm: 0},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for div by literal zero")
	}
}

func TestAcceptsDivByRegisterEvenThoughItMayBeZeroAtRuntime(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpDiv64Reg, Dst: asm.R0, Src: asm.R1},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err != nil {
		t.Fatal(err)
	}
}

func TestRejectsUnknownOpcode(t *testing.T) {
	insts := []asm.Inst{
		{Op: 0xff},
		{Op: asm.OpExit},
	}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestRejectsProgramPastMaxInsts(t *testing.T) {
	insts := make([]asm.Inst, maxInsts+1)
	for i := range insts {
		insts[i] = asm.Inst{Op: asm.OpJA, Offset: 0}
	}
	insts[len(insts)-1] = asm.Inst{Op: asm.OpExit}
	if err := Verify(insts); err == nil {
		t.Fatal("expected error for program exceeding MAX_INSTS")
	}
}
