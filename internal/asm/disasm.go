package asm

import "fmt"

// Disassemble renders a single instruction in a debugger-friendly form.
// It is a thin internal aid for tests and the cmd/ebpfc harness, not a
// replacement for a standalone disassembler tool.
func Disassemble(i Inst) string {
	switch i.Class() {
	case JmpClass:
		op := i.Op & OpMask
		src := "imm"
		if i.Op&SrcMask == SrcReg {
			src = i.Src.String()
		} else {
			src = fmt.Sprintf("%d", i.Imm)
		}
		switch op &^ SrcMask {
		case JOpJA:
			return fmt.Sprintf("ja %+d", i.Offset)
		case JOpCall:
			return fmt.Sprintf("call %d", i.Imm)
		case JOpExit:
			return "exit"
		}
		return fmt.Sprintf("if %s %s %s goto %+d", i.Dst, jmpMnemonic(op), src, i.Offset)
	case ALUClass, ALU64Class:
		return aluString(i)
	case LdClass:
		if i.IsLoadImm64() {
			return fmt.Sprintf("%s = imm64(lo=%d)", i.Dst, i.Imm)
		}
		return fmt.Sprintf("ld %s, [%d]", i.Dst, i.Imm)
	case LdXClass:
		return fmt.Sprintf("%s = *(%s)(%s%+d)", i.Dst, sizeName(i.Op), i.Src, i.Offset)
	case StClass:
		return fmt.Sprintf("*(%s)(%s%+d) = %d", sizeName(i.Op), i.Dst, i.Offset, i.Imm)
	case StXClass:
		return fmt.Sprintf("*(%s)(%s%+d) = %s", sizeName(i.Op), i.Dst, i.Offset, i.Src)
	default:
		return fmt.Sprintf("unknown(0x%02x)", i.Op)
	}
}

func sizeName(op byte) string {
	switch op & SizeMask {
	case SizeB:
		return "u8"
	case SizeH:
		return "u16"
	case SizeW:
		return "u32"
	default:
		return "u64"
	}
}

func jmpMnemonic(op byte) string {
	switch op &^ SrcMask {
	case JOpJEq:
		return "=="
	case JOpJGT:
		return ">"
	case JOpJGE:
		return ">="
	case JOpJLT:
		return "<"
	case JOpJLE:
		return "<="
	case JOpJSet:
		return "&"
	case JOpJNE:
		return "!="
	case JOpJSGT:
		return "s>"
	case JOpJSGE:
		return "s>="
	case JOpJSLT:
		return "s<"
	case JOpJSLE:
		return "s<="
	default:
		return "?"
	}
}

func aluString(i Inst) string {
	width := "64"
	if i.Class() == ALUClass {
		width = "32"
	}
	rhs := fmt.Sprintf("%d", i.Imm)
	if i.Op&SrcMask == SrcReg {
		rhs = i.Src.String()
	}
	mnem := aluMnemonic(i.Op)
	if mnem == "mov" {
		return fmt.Sprintf("%s = %s (alu%s)", i.Dst, rhs, width)
	}
	if mnem == "neg" {
		return fmt.Sprintf("%s = -%s (alu%s)", i.Dst, i.Dst, width)
	}
	return fmt.Sprintf("%s %s= %s (alu%s)", i.Dst, mnem, rhs, width)
}

func aluMnemonic(op byte) string {
	switch op & OpMask {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpOr:
		return "|"
	case OpAnd:
		return "&"
	case OpLSh:
		return "<<"
	case OpRSh:
		return ">>"
	case OpNeg:
		return "neg"
	case OpMod:
		return "%"
	case OpXor:
		return "^"
	case OpMov:
		return "mov"
	case OpArSh:
		return ">>a"
	case OpEnd:
		return "endian"
	default:
		return "?"
	}
}
