//go:build !amd64

package jit

import "github.com/ethercflow/generic-ebpf/internal/ebpferr"

// install always declines on non-amd64 targets: the code buffer emit
// produces is x86_64 machine code (spec.md §4.5 scopes the JIT to
// x86_64 only), so there is nothing safe to execute here. Compile
// reports this the same way it reports an unsupported instruction
// subset, and the caller falls back to the interpreter.
func install([]byte) (func(ctxPtr uintptr, ctxLen uint64) uint64, error) {
	return nil, ebpferr.ErrInvalidArgument
}
