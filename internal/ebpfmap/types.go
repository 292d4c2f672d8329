// Package ebpfmap implements the map core and its two production
// backends (spec.md §4.2): a polymorphic, bounded-capacity key→value
// container shared between host code and running programs.
//
// Construction dispatches on Attr.Type the way the teacher's
// hashmap package resolves a type descriptor at LoadMap time, but
// closed over a Go interface instead of a raw function-pointer vtable
// (spec.md §9): there is no "bad" stub implementation to keep branch
// sites uniform, because New simply refuses to construct an invalid
// Type in the first place.
package ebpfmap

import (
	"unsafe"

	"github.com/ethercflow/generic-ebpf/internal/ebpferr"
)

// Type is the closed set of map backends this core implements.
type Type uint8

const (
	_ Type = iota
	// Array is the fixed-capacity, 32-bit-indexed backend.
	Array
	// HashTable is the fixed-capacity, arbitrary-byte-key backend.
	HashTable
)

func (t Type) String() string {
	switch t {
	case Array:
		return "array"
	case HashTable:
		return "hashtable"
	default:
		return "invalid"
	}
}

func (t Type) valid() bool {
	return t == Array || t == HashTable
}

// Flag selects update semantics for UpdateFromUser.
type Flag uint8

const (
	// Any inserts a new key or overwrites an existing one.
	Any Flag = iota
	// NoExist inserts only if the key is absent; ErrExists otherwise.
	NoExist
	// Exist overwrites only if the key is present; ErrNotFound otherwise.
	Exist
)

// Attr mirrors the map_attr struct of spec.md §6.
type Attr struct {
	Type       Type
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      uint32
}

const maxValueSize = 1 << 16 // implementation-defined cap, spec.md §3
const maxKeySize = 64

func (a Attr) validate() error {
	if !a.Type.valid() {
		return ebpferr.ErrInvalidArgument
	}
	if a.KeySize == 0 || a.KeySize > maxKeySize {
		return ebpferr.ErrInvalidArgument
	}
	if a.ValueSize == 0 || a.ValueSize > maxValueSize {
		return ebpferr.ErrInvalidArgument
	}
	if a.MaxEntries == 0 {
		return ebpferr.ErrInvalidArgument
	}
	if a.Type == Array && a.KeySize != 4 {
		return ebpferr.ErrInvalidArgument
	}
	return nil
}

// Map is the public surface every backend implements. Keys and values
// are always copied by value across this boundary — no reference to a
// caller buffer is ever retained past the call that received it.
type Map interface {
	Type() Type
	Attr() Attr

	// LookupFromUser copies the stored value for key into a fresh
	// buffer, or returns ErrNotFound.
	LookupFromUser(key []byte) ([]byte, error)

	// LookupFromKern returns an interior pointer to the stored value,
	// valid only for the duration of the epoch the caller already
	// entered (package epoch) — used by the VM's map-lookup helper.
	LookupFromKern(key []byte) (unsafe.Pointer, error)

	// UpdateFromUser inserts or overwrites key→value according to flag.
	UpdateFromUser(key, value []byte, flag Flag) error

	// DeleteFromUser removes key, or returns ErrNotFound.
	DeleteFromUser(key []byte) error

	// GetNextKey iterates keys; prev == nil yields the first key, and
	// the last key returns ErrNotFound.
	GetNextKey(prev []byte) ([]byte, error)

	// Deinit releases all backend state. Blocks until any deferred
	// reclamation's grace period has elapsed.
	Deinit()
}

// New validates attr and constructs the backend it names.
func New(attr Attr) (Map, error) {
	if err := attr.validate(); err != nil {
		return nil, err
	}
	switch attr.Type {
	case Array:
		return newArrayMap(attr), nil
	case HashTable:
		return newHashMap(attr)
	default:
		return nil, ebpferr.ErrInvalidArgument
	}
}
