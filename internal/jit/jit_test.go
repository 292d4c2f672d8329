package jit

import (
	"runtime"
	"testing"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/prog"
	"github.com/ethercflow/generic-ebpf/internal/vm"
)

func straightLineALU(t *testing.T) *prog.Program {
	t.Helper()
	insts := []asm.Inst{
		{Op: asm.OpMov64Imm, Dst: asm.R0, Imm: 7},
		{Op: asm.OpAdd64Imm, Dst: asm.R0, Imm: 35},
		{Op: asm.OpMov64Imm, Dst: asm.R1, Imm: 100},
		{Op: asm.OpAdd64Reg, Dst: asm.R0, Src: asm.R1},
		{Op: asm.OpXor64Imm, Dst: asm.R0, Imm: 0},
		{Op: asm.OpExit},
	}
	p, err := prog.Init(prog.Attr{Type: prog.Test, Insts: insts})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCompileAcceptsStraightLineALU(t *testing.T) {
	p := straightLineALU(t)
	img, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile declined a supported program: %v", err)
	}
	if img == nil || img.Entry == nil {
		t.Fatal("Compile returned a nil image or entry")
	}
}

func TestCompileDeclinesUnsupportedInstructions(t *testing.T) {
	insts := []asm.Inst{
		{Op: asm.OpMov64Imm, Dst: asm.R0, Imm: 1},
		{Op: asm.OpJA, Offset: 0},
		{Op: asm.OpExit},
	}
	p, err := prog.Init(prog.Attr{Type: prog.Test, Insts: insts})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Compile(p); err == nil {
		t.Fatal("expected Compile to decline a program with a branch")
	}
}

func TestJITMatchesInterpreter(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("native code generation targets x86_64 only")
	}

	interp := straightLineALU(t)
	want := vm.Exec(interp, nil)

	compiled := straightLineALU(t)
	img, err := Compile(compiled)
	if err != nil {
		t.Fatalf("Compile declined a supported program: %v", err)
	}
	compiled.SetJIT(img)

	got := vm.Exec(compiled, nil)
	if got != want {
		t.Fatalf("JIT result %d does not match interpreter result %d", got, want)
	}
}
