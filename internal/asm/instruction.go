package asm

import "encoding/binary"

// Size is the on-wire width of a single instruction slot, little-endian
// packed.
const Size = 8

// Inst is a single 64-bit instruction slot:
//
//	opcode:8 dst_reg:4 src_reg:4 offset:16 imm:32
//
// LOAD_IMM64 spans two consecutive slots; the second slot supplies the
// high 32 bits of the immediate in its Imm field and is otherwise zero.
type Inst struct {
	Op     byte
	Dst    Register
	Src    Register
	Offset int16
	Imm    int32
}

// Decode unpacks one little-endian instruction slot from buf, which must
// be at least Size bytes.
func Decode(buf []byte) Inst {
	regs := buf[1]
	return Inst{
		Op:     buf[0],
		Dst:    Register(regs & 0x0f),
		Src:    Register((regs >> 4) & 0x0f),
		Offset: int16(binary.LittleEndian.Uint16(buf[2:4])),
		Imm:    int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

// Encode packs i into buf, which must be at least Size bytes.
func Encode(i Inst, buf []byte) {
	buf[0] = i.Op
	buf[1] = byte(i.Dst&0x0f) | byte(i.Src&0x0f)<<4
	binary.LittleEndian.PutUint16(buf[2:4], uint16(i.Offset))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(i.Imm))
}

// DecodeAll decodes a flat little-endian byte buffer into instruction
// slots. len(buf) must be a multiple of Size.
func DecodeAll(buf []byte) []Inst {
	n := len(buf) / Size
	out := make([]Inst, n)
	for i := 0; i < n; i++ {
		out[i] = Decode(buf[i*Size : i*Size+Size])
	}
	return out
}

// Class returns the instruction-class bits of Op.
func (i Inst) Class() byte { return i.Op & ClassMask }

// IsLoadImm64 reports whether i is the first slot of a two-slot
// LOAD_IMM64 instruction.
func (i Inst) IsLoadImm64() bool {
	return i.Op == OpLdDW
}

// Imm64 combines this instruction's Imm (low 32 bits) with the Imm of
// the following slot (high 32 bits) for a LOAD_IMM64 pair.
func (i Inst) Imm64(next Inst) int64 {
	return int64(uint64(uint32(next.Imm))<<32 | uint64(uint32(i.Imm)))
}
