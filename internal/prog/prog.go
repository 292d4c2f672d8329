// Package prog implements the program object of spec.md §4.3: the
// attribute-carrying envelope that binds bytecode, type, attached maps
// and verifier/JIT output into a loadable unit.
package prog

import (
	"github.com/gramework/utils/nocopy"
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
	"github.com/ethercflow/generic-ebpf/internal/ebpfmap"
	"github.com/ethercflow/generic-ebpf/internal/verifier"
)

// Type is the closed enumeration of program kinds spec.md §3 names.
type Type uint8

const (
	_ Type = iota
	// Test is the only production program type this core defines; the
	// remaining slots mirror the source's BAD/MAX sentinels but, per
	// spec.md §9, are never constructible rather than wired to a stub.
	Test
)

func (t Type) valid() bool { return t == Test }

// MaxInsts bounds an instruction vector's length (spec.md §3).
const MaxInsts = 4096

// MaxMapSlots bounds the attached-map table (spec.md §3).
const MaxMapSlots = 64

// Attr mirrors the prog_attr struct of spec.md §6.
type Attr struct {
	Type  Type
	Insts []asm.Inst
}

// JITImage is the optional native-code output of package jit. Program
// only stores it opaquely; package jit and vm know how to call it.
type JITImage struct {
	Code  []byte
	Entry func(ctxPtr uintptr, ctxLen uint64) uint64
}

// Program is a verified instruction vector plus its type, attached maps
// and optional JIT image (spec.md §3). After construction it is mutated
// only by AttachMap, SetJIT and Deinit.
type Program struct {
	typ   Type
	insts []asm.Inst

	slots [MaxMapSlots]ebpfmap.Map // nil when unbound

	jit *JITImage

	nocopy nocopy.NoCopy
}

// Init validates attr, copies its instructions into owned storage, and
// returns a verified Program. Instructions are passed through the
// verifier (package verifier) before the program is considered loadable.
func Init(attr Attr) (*Program, error) {
	if !attr.Type.valid() {
		return nil, ebpferr.ErrInvalidArgument
	}
	if len(attr.Insts) == 0 || len(attr.Insts) > MaxInsts {
		return nil, ebpferr.ErrInvalidArgument
	}
	if err := verifier.Verify(attr.Insts); err != nil {
		return nil, err
	}

	owned := make([]asm.Inst, len(attr.Insts))
	copy(owned, attr.Insts)

	dlog.D("prog: init type", attr.Type, "insts", len(owned))
	return &Program{typ: attr.Type, insts: owned}, nil
}

// Type returns the program's type tag.
func (p *Program) Type() Type { return p.typ }

// Insts returns the program's owned instruction vector. Callers must not
// mutate the returned slice.
func (p *Program) Insts() []asm.Inst { return p.insts }

// AttachMap binds m into slot. Fails ErrInvalidArgument if slot is out of
// range, ErrExists if the slot is already bound.
func (p *Program) AttachMap(slot int, m ebpfmap.Map) error {
	if slot < 0 || slot >= MaxMapSlots {
		return ebpferr.ErrInvalidArgument
	}
	if p.slots[slot] != nil {
		return ebpferr.ErrExists
	}
	p.slots[slot] = m
	dlog.D("prog: attached map to slot", slot)
	return nil
}

// Map returns the map bound to slot, or nil if unbound. Used by the VM's
// helper dispatch to resolve a CALL's map argument.
func (p *Program) Map(slot int) ebpfmap.Map {
	if slot < 0 || slot >= MaxMapSlots {
		return nil
	}
	return p.slots[slot]
}

// SetJIT installs j as this program's native-code image. A nil j clears
// any existing image, falling back to the interpreter.
func (p *Program) SetJIT(j *JITImage) { p.jit = j }

// JIT returns the program's installed JIT image, or nil if none.
func (p *Program) JIT() *JITImage { return p.jit }

// Deinit releases the instruction buffer, drops the JIT image, and
// releases references to attached maps. It does not deinit the maps
// themselves — they may be shared with other programs.
func (p *Program) Deinit() {
	p.insts = nil
	p.jit = nil
	for i := range p.slots {
		p.slots[i] = nil
	}
	dlog.D("prog: deinit")
}
