// Command ebpfc is a same-process stand-in for the external control
// plane spec.md §6 describes (the character device that multiplexes
// load-program/create-map/attach-map/run-program-test ioctls). It wires
// alloc→ebpfmap→prog→verifier→vm/jit end to end so the core is runnable
// without writing a Go program, the same role the teacher's m.go plays
// for gramework/threadsafe's hashmap package.
package main

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/ebpfmap"
	"github.com/ethercflow/generic-ebpf/internal/jit"
	"github.com/ethercflow/generic-ebpf/internal/prog"
	"github.com/ethercflow/generic-ebpf/internal/vm"
)

const countMapSlot = 0

func main() {
	m, err := ebpfmap.New(ebpfmap.Attr{
		Type:       ebpfmap.HashTable,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1024,
	})
	if err != nil {
		log.Fatalf("create-map: %s", err)
	}
	defer m.Deinit()

	insts := []asm.Inst{
		{Op: asm.OpMov64Imm, Dst: asm.R1, Imm: countMapSlot},
		{Op: asm.OpMov64Reg, Dst: asm.R2, Src: asm.R10},
		{Op: asm.OpSub64Imm, Dst: asm.R2, Imm: 4},
		{Op: asm.OpStW, Dst: asm.R2, Imm: 0, Offset: 0},
		{Op: asm.OpCall, Imm: int32(asm.HelperMapLookupElem)},
		{Op: asm.OpJEqImm, Dst: asm.R0, Imm: 0, Offset: 1},
		{Op: asm.OpLdXDW, Dst: asm.R0, Src: asm.R0, Offset: 0},
		{Op: asm.OpExit},
	}

	p, err := prog.Init(prog.Attr{Type: prog.Test, Insts: insts})
	if err != nil {
		log.Fatalf("load-program: %s", err)
	}
	defer p.Deinit()

	if err := p.AttachMap(countMapSlot, m); err != nil {
		log.Fatalf("attach-map: %s", err)
	}

	if img, err := jit.Compile(p); err == nil {
		p.SetJIT(img)
		dlog.D("ebpfc: running JIT-compiled program")
	} else {
		dlog.D("ebpfc: JIT declined, running interpreter:", err)
	}

	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, 0)
	val := make([]byte, 8)
	binary.LittleEndian.PutUint64(val, 7)
	if err := m.UpdateFromUser(key, val, ebpfmap.Any); err != nil {
		log.Fatalf("map-update: %s", err)
	}

	got := vm.Exec(p, nil)
	fmt.Printf("program returned: %d\n", got)

	for _, i := range insts {
		fmt.Println(asm.Disassemble(i))
	}
}
