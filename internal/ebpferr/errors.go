// Package ebpferr centralizes the abstract error kinds of spec.md §7 as
// sentinel values, the way the teacher package exposes cache.ErrNotFound.
package ebpferr

import "errors"

var (
	// ErrInvalidArgument covers a null required pointer, an out-of-range
	// enum, a zero length where non-zero is required, verifier
	// rejection, an unknown opcode, or an unaligned/zero block size.
	ErrInvalidArgument = errors.New("ebpf: invalid argument")

	// ErrNotFound is returned when a map key is absent on lookup/delete,
	// an EXIST-flagged update finds no existing key, or get-next-key
	// runs past the last key.
	ErrNotFound = errors.New("ebpf: not found")

	// ErrExists is returned when a NOEXIST-flagged update finds an
	// existing key, or a map is attached to an already-bound slot.
	ErrExists = errors.New("ebpf: already exists")

	// ErrBusy is returned when an update would exceed a map's
	// max_entries.
	ErrBusy = errors.New("ebpf: resource busy")

	// ErrNoMemory is returned when the backing allocator fails to
	// obtain a new segment.
	ErrNoMemory = errors.New("ebpf: out of memory")

	// ErrPermission is reserved; the core never produces it.
	ErrPermission = errors.New("ebpf: permission denied")
)
