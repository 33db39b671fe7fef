//
// program.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package program defines the compiled encrypted-computation binary:
// its on-disk format, the in-memory validated form, the instruction
// set, a programmatic builder, and the validator that stands between
// attacker-producible bytes and the execution engine.
package program

import (
	"errors"
	"fmt"

	"github.com/fhexec/fhexec/types"
)

// Binary format:
//
//	[MAGIC "FXB1"][VERSION u32][ARCH u8][NSECT u8]
//	section table: NSECT x {KIND u8, OFFSET u32, SIZE u32}
//	sections: entry table, code, constant pool
//
// All integers big-endian. Section offsets are absolute file offsets.
// Instruction branch targets are instruction indices relative to the
// start of the function body.

// Magic identifies the binary format, version 1.
var Magic = [4]byte{'F', 'X', 'B', '1'}

// Version is the current binary format version.
const Version uint32 = 1

// ArchBitGate is the only supported architecture tag: a bit-gate
// machine over ciphertext wires and plaintext counter registers.
const ArchBitGate byte = 1

// Section kinds.
const (
	SectionEntry byte = 1
	SectionCode  byte = 2
	SectionConst byte = 3
)

// NumRegs is the number of plaintext counter registers per run.
const NumRegs = 16

// Validation error kinds. The validator wraps these with positional
// detail; callers match with errors.Is.
var (
	ErrBadMagic            = errors.New("bad magic")
	ErrSectionOverlap      = errors.New("section overlap")
	ErrUnknownEntryPoint   = errors.New("unknown entry point")
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrIllegalBranchTarget = errors.New("illegal branch target")
	ErrUnsupportedOpcode   = errors.New("unsupported opcode")
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Opcode specifies the instruction operation.
type Opcode byte

// Instruction set. Bit gates operate on single wires, word ops on
// LSB-first wire ranges, LDI/ADDI/BNE on plaintext counter registers.
const (
	AND Opcode = iota + 1
	XOR
	OR
	NOT
	MUX
	MOV
	MOVX
	SHL
	ZEXT
	SEXT
	LDC
	ADD
	SUB
	EQ
	GTU
	GTS
	LDI
	ADDI
	JMP
	BNE
	RET
)

func (op Opcode) String() string {
	switch op {
	case AND:
		return "AND"
	case XOR:
		return "XOR"
	case OR:
		return "OR"
	case NOT:
		return "NOT"
	case MUX:
		return "MUX"
	case MOV:
		return "MOV"
	case MOVX:
		return "MOVX"
	case SHL:
		return "SHL"
	case ZEXT:
		return "ZEXT"
	case SEXT:
		return "SEXT"
	case LDC:
		return "LDC"
	case ADD:
		return "ADD"
	case SUB:
		return "SUB"
	case EQ:
		return "EQ"
	case GTU:
		return "GTU"
	case GTS:
		return "GTS"
	case LDI:
		return "LDI"
	case ADDI:
		return "ADDI"
	case JMP:
		return "JMP"
	case BNE:
		return "BNE"
	case RET:
		return "RET"
	default:
		return fmt.Sprintf("{Opcode %d}", byte(op))
	}
}

// Instr is one decoded instruction. Field use depends on the opcode:
//
//	AND, XOR, OR   Dst, A, B           bit wires
//	NOT            Dst, A
//	MUX            Dst, C (select), A, B
//	MOV            Width, Dst, A       wire ranges
//	MOVX           Width, Dst, A (array base), Reg (element index)
//	SHL            Width, Dst, A, Shift
//	ZEXT, SEXT     Width (dst), From (src), Dst, A
//	LDC            Width, Dst, A (constant pool index)
//	ADD, SUB       Width, Dst, A, B
//	EQ, GTU, GTS   Width, Dst (one wire), A, B
//	LDI, ADDI      Reg, Imm
//	JMP            Target
//	BNE            Reg, Imm, Target
//	RET            -
type Instr struct {
	Op     Opcode
	Width  types.BitWidth
	From   types.BitWidth
	Dst    uint32
	A      uint32
	B      uint32
	C      uint32
	Reg    uint8
	Shift  uint8
	Imm    uint64
	Target uint32
}

func (i Instr) String() string {
	switch i.Op {
	case AND, XOR, OR:
		return fmt.Sprintf("%s\tw%d, w%d, w%d", i.Op, i.Dst, i.A, i.B)
	case NOT:
		return fmt.Sprintf("%s\tw%d, w%d", i.Op, i.Dst, i.A)
	case MUX:
		return fmt.Sprintf("%s\tw%d, w%d, w%d, w%d", i.Op, i.Dst, i.C, i.A,
			i.B)
	case MOV:
		return fmt.Sprintf("%s.%d\tw%d, w%d", i.Op, i.Width, i.Dst, i.A)
	case MOVX:
		return fmt.Sprintf("%s.%d\tw%d, w%d[r%d]", i.Op, i.Width, i.Dst, i.A,
			i.Reg)
	case SHL:
		return fmt.Sprintf("%s.%d\tw%d, w%d, %d", i.Op, i.Width, i.Dst, i.A,
			i.Shift)
	case ZEXT, SEXT:
		return fmt.Sprintf("%s.%d.%d\tw%d, w%d", i.Op, i.Width, i.From,
			i.Dst, i.A)
	case LDC:
		return fmt.Sprintf("%s.%d\tw%d, c%d", i.Op, i.Width, i.Dst, i.A)
	case ADD, SUB:
		return fmt.Sprintf("%s.%d\tw%d, w%d, w%d", i.Op, i.Width, i.Dst,
			i.A, i.B)
	case EQ, GTU, GTS:
		return fmt.Sprintf("%s.%d\tw%d, w%d, w%d", i.Op, i.Width, i.Dst,
			i.A, i.B)
	case LDI, ADDI:
		return fmt.Sprintf("%s\tr%d, %d", i.Op, i.Reg, i.Imm)
	case JMP:
		return fmt.Sprintf("%s\t%d", i.Op, i.Target)
	case BNE:
		return fmt.Sprintf("%s\tr%d, %d, %d", i.Op, i.Reg, i.Imm, i.Target)
	case RET:
		return i.Op.String()
	default:
		return i.Op.String()
	}
}

// Output declares one entry point output: a wire range holding the
// result word (or array of words) when the function returns.
type Output struct {
	Width     types.BitWidth
	ArraySize uint32
	WireBase  uint32
}

// Bits returns the total output width in bits.
func (o Output) Bits() int {
	return o.Width.Bits() * int(o.ArraySize)
}

// EntryPoint is one named function of a validated binary.
type EntryPoint struct {
	Name     string
	Operands []types.Operand
	Outputs  []Output
	NumWires uint32
	Code     []Instr
}

// Signature returns the operand signature of the entry point.
func (e *EntryPoint) Signature() types.Signature {
	sig := types.Signature{
		Operands: e.Operands,
	}
	for _, o := range e.Outputs {
		sig.Outputs = append(sig.Outputs, types.Output{
			Width:     o.Width,
			ArraySize: o.ArraySize,
		})
	}
	return sig
}

// InputBits returns the number of wires occupied by the bound
// parameters. Parameters are bound LSB-first starting at wire 0, in
// signature order.
func (e *EntryPoint) InputBits() int {
	var sum int
	for _, op := range e.Operands {
		sum += op.Bits()
	}
	return sum
}

// Binary is the validated, immutable in-memory program. Safe for
// concurrent read-only use across runs.
type Binary struct {
	Version uint32
	Entries []*EntryPoint
	Consts  []uint64

	byName map[string]*EntryPoint
}

// Entry resolves an entry point by name, failing with
// ErrUnknownEntryPoint if absent.
func (b *Binary) Entry(name string) (*EntryPoint, error) {
	e, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryPoint, name)
	}
	return e, nil
}

// EntryNames returns the entry point names in declaration order.
func (b *Binary) EntryNames() []string {
	names := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		names[i] = e.Name
	}
	return names
}
