// Package vm implements the decode-and-dispatch interpreter of spec.md
// §4.5: eleven 64-bit registers, a scratch stack addressed through R10,
// and byte-addressable memory reached through instruction-provided
// pointer registers. The verifier (package verifier) has already run by
// the time Exec is called; this package assumes its guarantees hold and
// does not re-check them.
package vm

import (
	"github.com/kirillDanshin/dlog"

	"github.com/ethercflow/generic-ebpf/internal/asm"
	"github.com/ethercflow/generic-ebpf/internal/epoch"
	"github.com/ethercflow/generic-ebpf/internal/prog"
)

// StackSize is the scratch stack every execution gets, addressed through
// R10 with negative offsets (spec.md §4.5).
const StackSize = 512

// MaxInstructions bounds the number of decode-dispatch steps a single
// execution may take; spec.md §4.5 mandates a cap since EXIT is the only
// intentional termination and programs may otherwise loop forever.
const MaxInstructions = 1_000_000

// machine holds one execution's register file and scratch stack. It is
// never shared across goroutines: Exec constructs a fresh one per call,
// which is what makes concurrent invocations of the same Program
// reentrant (spec.md §5).
type machine struct {
	regs  [11]uint64
	stack [StackSize]byte
	p     *prog.Program
}

// Exec runs p against ctx and returns R0's value at EXIT, or zero if the
// instruction-count cap was hit first. It is safe to call concurrently
// with other executions of the same Program on distinct ctx buffers.
func Exec(p *prog.Program, ctx []byte) uint64 {
	guard := epoch.Enter()
	defer guard.Exit()

	if img := p.JIT(); img != nil && img.Entry != nil {
		var ctxPtr uintptr
		if len(ctx) > 0 {
			ctxPtr = ctxAddr(ctx)
		}
		return img.Entry(ctxPtr, uint64(len(ctx)))
	}
	return interpret(p, ctx)
}

func interpret(p *prog.Program, ctx []byte) uint64 {
	m := &machine{p: p}
	if len(ctx) > 0 {
		m.regs[asm.R1] = uint64(ctxAddr(ctx))
	}
	m.regs[asm.R10] = uint64(stackTop(&m.stack))

	insts := p.Insts()
	pc := 0
	steps := 0
	for pc < len(insts) {
		steps++
		if steps > MaxInstructions {
			dlog.D("vm: instruction budget exceeded, aborting")
			return 0
		}

		in := insts[pc]
		switch in.Class() {
		case asm.ALUClass:
			execALU(m, in, false)
			pc++
		case asm.ALU64Class:
			execALU(m, in, true)
			pc++
		case asm.LdClass:
			if in.IsLoadImm64() {
				next := insts[pc+1]
				m.regs[in.Dst] = uint64(in.Imm64(next))
				pc += 2
				continue
			}
			pc++
		case asm.LdXClass:
			execLoad(m, in)
			pc++
		case asm.StClass:
			execStoreImm(m, in)
			pc++
		case asm.StXClass:
			execStoreReg(m, in)
			pc++
		case asm.JmpClass:
			next, ret, done := execJump(m, in, pc)
			if done {
				return ret
			}
			pc = next
		default:
			// Unreachable: the verifier rejects unknown classes before
			// a program ever reaches Exec.
			return 0
		}
	}
	return m.regs[asm.R0]
}
