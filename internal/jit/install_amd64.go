//go:build amd64

package jit

// install copies code into an executable mapping and returns a Go
// function that calls into it via the assembly trampoline in
// trampoline_amd64.s. The trampoline exists because a raw code
// address cannot be called directly as a Go function value: Go's
// calling convention for compiled functions and the System V
// convention this generated code expects are different animals, and
// the trampoline is the stable, documented way to cross that boundary
// without cgo.
func install(code []byte) (func(ctxPtr uintptr, ctxLen uint64) uint64, error) {
	ptr, err := global.alloc(code)
	if err != nil {
		return nil, err
	}
	entry := uintptr(ptr)
	return func(ctxPtr uintptr, ctxLen uint64) uint64 {
		return callNative(entry, ctxPtr, ctxLen)
	}, nil
}

// callNative is implemented in trampoline_amd64.s. It loads entry,
// ctxPtr and ctxLen into the System V argument registers and calls
// into the generated code.
//
//go:noescape
func callNative(entry, ctxPtr uintptr, ctxLen uint64) uint64
