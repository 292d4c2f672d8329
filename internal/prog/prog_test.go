package prog

import (
	"testing"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpfmap"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
)

func TestInitRejectsInvalidType(t *testing.T) {
	_, err := Init(Attr{Type: Type(0xff), Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestInitRejectsEmptyInsts(t *testing.T) {
	_, err := Init(Attr{Type: Test, Insts: nil})
	if err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestInitRejectsOversizedInsts(t *testing.T) {
	insts := make([]asm.Inst, MaxInsts+1)
	for i := range insts {
		insts[i] = asm.Inst{Op: asm.OpJA, Offset: 0}
	}
	insts[len(insts)-1] = asm.Inst{Op: asm.OpExit}
	_, err := Init(Attr{Type: Test, Insts: insts})
	if err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestInitAcceptsMinimalProgram(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Insts()) != 1 {
		t.Fatalf("got %d insts want 1", len(p.Insts()))
	}
}

func TestInitRejectsVerifierFailure(t *testing.T) {
	// Missing trailing EXIT.
	_, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpMov64Imm, Dst: asm.R0, Imm: 1}}})
	if err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestInitCopiesInstsOwned(t *testing.T) {
	insts := []asm.Inst{{Op: asm.OpExit}}
	p, err := Init(Attr{Type: Test, Insts: insts})
	if err != nil {
		t.Fatal(err)
	}
	insts[0].Op = asm.OpJA
	if p.Insts()[0].Op != asm.OpExit {
		t.Fatal("Program.Insts() aliased the caller's slice")
	}
}

func TestAttachMapRejectsOutOfRangeSlot(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	m, err := ebpfmap.New(ebpfmap.Attr{Type: ebpfmap.Array, KeySize: 4, ValueSize: 4, MaxEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Deinit()
	if err := p.AttachMap(-1, m); err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
	if err := p.AttachMap(MaxMapSlots, m); err != ebpferr.ErrInvalidArgument {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestAttachMapRejectsRebind(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	m, err := ebpfmap.New(ebpfmap.Attr{Type: ebpfmap.Array, KeySize: 4, ValueSize: 4, MaxEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Deinit()

	if err := p.AttachMap(0, m); err != nil {
		t.Fatal(err)
	}
	if err := p.AttachMap(0, m); err != ebpferr.ErrExists {
		t.Fatalf("got %v want ErrExists", err)
	}
}

func TestMapReturnsNilForUnboundSlot(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Map(5) != nil {
		t.Fatal("expected nil map for unbound slot")
	}
	if p.Map(-1) != nil {
		t.Fatal("expected nil map for out-of-range slot")
	}
}

func TestSetJITRoundTrip(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	if p.JIT() != nil {
		t.Fatal("expected no JIT image on a fresh program")
	}
	img := &JITImage{Code: []byte{0x90}}
	p.SetJIT(img)
	if p.JIT() != img {
		t.Fatal("JIT() did not return the installed image")
	}
	p.SetJIT(nil)
	if p.JIT() != nil {
		t.Fatal("SetJIT(nil) did not clear the image")
	}
}

func TestDeinitClearsState(t *testing.T) {
	p, err := Init(Attr{Type: Test, Insts: []asm.Inst{{Op: asm.OpExit}}})
	if err != nil {
		t.Fatal(err)
	}
	m, err := ebpfmap.New(ebpfmap.Attr{Type: ebpfmap.Array, KeySize: 4, ValueSize: 4, MaxEntries: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Deinit()
	if err := p.AttachMap(0, m); err != nil {
		t.Fatal(err)
	}
	p.Deinit()
	if p.Insts() != nil {
		t.Fatal("Deinit did not clear instructions")
	}
	if p.Map(0) != nil {
		t.Fatal("Deinit did not clear attached maps")
	}
}
