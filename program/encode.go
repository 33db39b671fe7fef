//
// encode.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package program

import (
	"encoding/binary"
	"fmt"

	"github.com/fhexec/fhexec/types"
)

var bo = binary.BigEndian

// Builder constructs program binaries programmatically. It stands in
// for the external compiler in tests and tooling and performs no
// validation of its own: the produced bytes always go through Validate
// before execution.
type Builder struct {
	funcs      []*Func
	consts     []uint64
	constIndex map[uint64]uint32
}

// NewBuilder creates an empty program builder.
func NewBuilder() *Builder {
	return &Builder{
		constIndex: make(map[uint64]uint32),
	}
}

// Const interns a constant pool value and returns its index.
func (b *Builder) Const(value uint64) uint32 {
	if idx, ok := b.constIndex[value]; ok {
		return idx
	}
	idx := uint32(len(b.consts))
	b.consts = append(b.consts, value)
	b.constIndex[value] = idx
	return idx
}

// Function starts a new entry point.
func (b *Builder) Function(name string) *Func {
	f := &Func{
		b:    b,
		name: name,
	}
	b.funcs = append(b.funcs, f)
	return f
}

// Func builds one entry point: its operand signature, wire layout, and
// instruction stream.
type Func struct {
	b        *Builder
	name     string
	operands []types.Operand
	outputs  []Output
	code     []Instr
	nextWire uint32
}

// Param declares the next operand slot and returns its wire base.
// Parameters occupy wires from 0 up, in declaration order, LSB first.
func (f *Func) Param(kind types.Kind, width types.BitWidth, signed bool,
	arraySize uint32) uint32 {

	f.operands = append(f.operands, types.Operand{
		Kind:      kind,
		Width:     width,
		Signed:    signed,
		ArraySize: arraySize,
	})
	return f.Wires(width.Bits() * int(arraySize))
}

// Output declares the next output and returns its wire base.
func (f *Func) Output(width types.BitWidth, arraySize uint32) uint32 {
	base := f.Wires(width.Bits() * int(arraySize))
	f.outputs = append(f.outputs, Output{
		Width:     width,
		ArraySize: arraySize,
		WireBase:  base,
	})
	return base
}

// Wires allocates a range of intermediate wires and returns its base.
func (f *Func) Wires(bits int) uint32 {
	base := f.nextWire
	f.nextWire += uint32(bits)
	return base
}

// Emit appends an instruction and returns its index.
func (f *Func) Emit(i Instr) uint32 {
	f.code = append(f.code, i)
	return uint32(len(f.code) - 1)
}

// Here returns the index of the next instruction to be emitted, for
// use as a branch target.
func (f *Func) Here() uint32 {
	return uint32(len(f.code))
}

// LDC emits a constant word load, interning the value.
func (f *Func) LDC(width types.BitWidth, dst uint32, value uint64) {
	f.Emit(Instr{Op: LDC, Width: width, Dst: dst, A: f.b.Const(value)})
}

// Bytes serializes the program into the binary format.
func (b *Builder) Bytes() ([]byte, error) {
	var code []byte
	type codeRange struct {
		offset, size uint32
	}
	ranges := make([]codeRange, len(b.funcs))
	for i, f := range b.funcs {
		start := uint32(len(code))
		for _, instr := range f.code {
			var err error
			code, err = encodeInstr(code, instr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.name, err)
			}
		}
		ranges[i] = codeRange{
			offset: start,
			size:   uint32(len(code)) - start,
		}
	}

	var entry []byte
	entry = bo.AppendUint32(entry, uint32(len(b.funcs)))
	for i, f := range b.funcs {
		entry = bo.AppendUint32(entry, uint32(len(f.name)))
		entry = append(entry, f.name...)
		entry = bo.AppendUint32(entry, ranges[i].offset)
		entry = bo.AppendUint32(entry, ranges[i].size)
		entry = bo.AppendUint32(entry, f.nextWire)
		entry = bo.AppendUint32(entry, uint32(len(f.operands)))
		for _, op := range f.operands {
			entry = append(entry, byte(op.Kind), byte(op.Width),
				boolByte(op.Signed))
			entry = bo.AppendUint32(entry, op.ArraySize)
		}
		entry = bo.AppendUint32(entry, uint32(len(f.outputs)))
		for _, out := range f.outputs {
			entry = append(entry, byte(out.Width))
			entry = bo.AppendUint32(entry, out.ArraySize)
			entry = bo.AppendUint32(entry, out.WireBase)
		}
	}

	var consts []byte
	consts = bo.AppendUint32(consts, uint32(len(b.consts)))
	for _, c := range b.consts {
		consts = bo.AppendUint64(consts, c)
	}

	const numSections = 3
	headerSize := uint32(len(Magic)) + 4 + 1 + 1
	tableSize := uint32(numSections * sectionEntrySize)

	var buf []byte
	buf = append(buf, Magic[:]...)
	buf = bo.AppendUint32(buf, Version)
	buf = append(buf, ArchBitGate, numSections)

	offset := headerSize + tableSize
	for _, s := range []struct {
		kind byte
		data []byte
	}{
		{SectionEntry, entry},
		{SectionCode, code},
		{SectionConst, consts},
	} {
		buf = append(buf, s.kind)
		buf = bo.AppendUint32(buf, offset)
		buf = bo.AppendUint32(buf, uint32(len(s.data)))
		offset += uint32(len(s.data))
	}
	buf = append(buf, entry...)
	buf = append(buf, code...)
	return append(buf, consts...), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func encodeInstr(buf []byte, i Instr) ([]byte, error) {
	buf = append(buf, byte(i.Op))
	switch i.Op {
	case AND, XOR, OR:
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
		buf = bo.AppendUint32(buf, i.B)
	case NOT:
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
	case MUX:
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.C)
		buf = bo.AppendUint32(buf, i.A)
		buf = bo.AppendUint32(buf, i.B)
	case MOV:
		buf = append(buf, byte(i.Width))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
	case MOVX:
		buf = append(buf, byte(i.Width))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
		buf = append(buf, i.Reg)
	case SHL:
		buf = append(buf, byte(i.Width))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
		buf = append(buf, i.Shift)
	case ZEXT, SEXT:
		buf = append(buf, byte(i.Width), byte(i.From))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
	case LDC:
		buf = append(buf, byte(i.Width))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
	case ADD, SUB, EQ, GTU, GTS:
		buf = append(buf, byte(i.Width))
		buf = bo.AppendUint32(buf, i.Dst)
		buf = bo.AppendUint32(buf, i.A)
		buf = bo.AppendUint32(buf, i.B)
	case LDI, ADDI:
		buf = append(buf, i.Reg)
		buf = bo.AppendUint64(buf, i.Imm)
	case JMP:
		buf = bo.AppendUint32(buf, i.Target)
	case BNE:
		buf = append(buf, i.Reg)
		buf = bo.AppendUint64(buf, i.Imm)
		buf = bo.AppendUint32(buf, i.Target)
	case RET:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOpcode, i.Op)
	}
	return buf, nil
}
