//
// validate.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package program

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fhexec/fhexec/types"
)

const (
	headerSize       = 4 + 4 + 1 + 1
	sectionEntrySize = 1 + 4 + 4

	// maxNameLen bounds entry point name lengths before any
	// allocation driven by attacker-controlled counts.
	maxNameLen = 4096

	// maxWires bounds the per-function wire count: the engine
	// allocates one bit slot per wire, so the declared count must
	// not drive the allocation.
	maxWires = 1 << 24
)

// reader is a bounds-checked cursor over one section. A read past the
// end sets the sticky error and returns zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("truncated at offset %d", r.pos)
	}
}

func (r *reader) u8() byte {
	if r.err != nil || r.pos+1 > len(r.data) {
		r.fail()
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.data) {
		r.fail()
		return 0
	}
	v := bo.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.pos+8 > len(r.data) {
		r.fail()
		return 0
	}
	v := bo.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.data) {
		r.fail()
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *reader) done() bool {
	return r.err == nil && r.pos == len(r.data)
}

// Validate parses and checks a program binary. It is the security
// boundary over attacker-producible input: the engine only ever sees
// the Binary this function returns.
func Validate(raw []byte) (*Binary, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrBadMagic)
	}
	if !bytes.Equal(raw[:4], Magic[:]) {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, raw[:4])
	}
	version := bo.Uint32(raw[4:8])
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d, expected %d",
			ErrBadMagic, version, Version)
	}
	if raw[8] != ArchBitGate {
		return nil, fmt.Errorf("%w: unsupported architecture %d",
			ErrBadMagic, raw[8])
	}

	sections, err := parseSections(raw)
	if err != nil {
		return nil, err
	}

	consts, err := parseConsts(sections[SectionConst])
	if err != nil {
		return nil, err
	}

	bin := &Binary{
		Version: version,
		Consts:  consts,
		byName:  make(map[string]*EntryPoint),
	}
	if err := parseEntries(bin, sections[SectionEntry],
		sections[SectionCode]); err != nil {
		return nil, err
	}
	return bin, nil
}

func parseSections(raw []byte) (map[byte][]byte, error) {
	numSections := int(raw[9])
	tableEnd := headerSize + numSections*sectionEntrySize
	if tableEnd > len(raw) {
		return nil, fmt.Errorf("%w: truncated section table",
			ErrSectionOverlap)
	}

	type section struct {
		kind         byte
		offset, size uint32
	}
	var table []section
	for i := 0; i < numSections; i++ {
		pos := headerSize + i*sectionEntrySize
		s := section{
			kind:   raw[pos],
			offset: bo.Uint32(raw[pos+1:]),
			size:   bo.Uint32(raw[pos+5:]),
		}
		switch s.kind {
		case SectionEntry, SectionCode, SectionConst:
		default:
			return nil, fmt.Errorf("%w: unknown section kind %d",
				ErrSectionOverlap, s.kind)
		}
		if s.offset < uint32(tableEnd) {
			return nil, fmt.Errorf(
				"%w: section %d overlaps header", ErrSectionOverlap, s.kind)
		}
		end := uint64(s.offset) + uint64(s.size)
		if end > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: section %d out of bounds",
				ErrSectionOverlap, s.kind)
		}
		table = append(table, s)
	}

	sort.Slice(table, func(i, j int) bool {
		return table[i].offset < table[j].offset
	})
	for i := 1; i < len(table); i++ {
		if table[i].offset < table[i-1].offset+table[i-1].size {
			return nil, fmt.Errorf("%w: sections %d and %d",
				ErrSectionOverlap, table[i-1].kind, table[i].kind)
		}
	}

	sections := make(map[byte][]byte)
	for _, s := range table {
		if _, ok := sections[s.kind]; ok {
			return nil, fmt.Errorf("%w: duplicate section %d",
				ErrSectionOverlap, s.kind)
		}
		sections[s.kind] = raw[s.offset : s.offset+s.size]
	}
	for _, kind := range []byte{SectionEntry, SectionCode, SectionConst} {
		if _, ok := sections[kind]; !ok {
			return nil, fmt.Errorf("%w: missing section %d",
				ErrSectionOverlap, kind)
		}
	}
	return sections, nil
}

func parseConsts(data []byte) ([]uint64, error) {
	r := &reader{data: data}
	count := r.u32()
	if r.err == nil && uint64(len(data)) != 4+8*uint64(count) {
		return nil, fmt.Errorf("%w: constant pool size mismatch",
			ErrSectionOverlap)
	}
	consts := make([]uint64, count)
	for i := range consts {
		consts[i] = r.u64()
	}
	if !r.done() {
		return nil, fmt.Errorf("%w: truncated constant pool",
			ErrSectionOverlap)
	}
	return consts, nil
}

func parseEntries(bin *Binary, entryData, codeData []byte) error {
	r := &reader{data: entryData}
	count := r.u32()

	for i := uint32(0); i < count && r.err == nil; i++ {
		nameLen := r.u32()
		if r.err == nil && nameLen > maxNameLen {
			return fmt.Errorf("%w: entry name length %d",
				ErrSignatureMismatch, nameLen)
		}
		e := &EntryPoint{
			Name: string(r.bytes(int(nameLen))),
		}
		codeOffset := r.u32()
		codeLen := r.u32()
		e.NumWires = r.u32()
		if r.err == nil && e.NumWires > maxWires {
			return fmt.Errorf("%w: %s declares %d wires",
				ErrSignatureMismatch, e.Name, e.NumWires)
		}

		numOperands := r.u32()
		for j := uint32(0); j < numOperands && r.err == nil; j++ {
			op := types.Operand{
				Kind:   types.Kind(r.u8()),
				Width:  types.BitWidth(r.u8()),
				Signed: r.u8() != 0,
			}
			op.ArraySize = r.u32()
			if r.err != nil {
				break
			}
			if !op.Kind.Valid() || !op.Width.Valid() || op.ArraySize < 1 {
				return fmt.Errorf("%w: %s operand %d: %s",
					ErrSignatureMismatch, e.Name, j, op)
			}
			e.Operands = append(e.Operands, op)
		}

		numOutputs := r.u32()
		if r.err == nil && numOutputs < 1 {
			return fmt.Errorf("%w: %s declares no outputs",
				ErrSignatureMismatch, e.Name)
		}
		for j := uint32(0); j < numOutputs && r.err == nil; j++ {
			out := Output{
				Width: types.BitWidth(r.u8()),
			}
			out.ArraySize = r.u32()
			out.WireBase = r.u32()
			if r.err != nil {
				break
			}
			if !out.Width.Valid() || out.ArraySize < 1 {
				return fmt.Errorf("%w: %s output %d", ErrSignatureMismatch,
					e.Name, j)
			}
			if uint64(out.WireBase)+uint64(out.Bits()) >
				uint64(e.NumWires) {
				return fmt.Errorf("%w: %s output %d wires out of range",
					ErrSignatureMismatch, e.Name, j)
			}
			e.Outputs = append(e.Outputs, out)
		}
		if r.err != nil {
			break
		}

		if len(e.Name) == 0 {
			return fmt.Errorf("%w: empty entry point name",
				ErrSignatureMismatch)
		}
		if _, ok := bin.byName[e.Name]; ok {
			return fmt.Errorf("%w: duplicate entry point %q",
				ErrSignatureMismatch, e.Name)
		}
		if uint64(e.InputBits()) > uint64(e.NumWires) {
			return fmt.Errorf("%w: %s binds %d input bits over %d wires",
				ErrSignatureMismatch, e.Name, e.InputBits(), e.NumWires)
		}

		end := uint64(codeOffset) + uint64(codeLen)
		if end > uint64(len(codeData)) {
			return fmt.Errorf("%w: %s code out of bounds",
				ErrSectionOverlap, e.Name)
		}
		code, err := decodeCode(codeData[codeOffset:end])
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
		e.Code = code

		if err := checkCode(e, len(bin.Consts)); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}

		bin.Entries = append(bin.Entries, e)
		bin.byName[e.Name] = e
	}
	if !r.done() {
		return fmt.Errorf("%w: malformed entry table", ErrSignatureMismatch)
	}
	return nil
}

func decodeCode(data []byte) ([]Instr, error) {
	var code []Instr
	r := &reader{data: data}
	for r.err == nil && r.pos < len(r.data) {
		i := Instr{
			Op: Opcode(r.u8()),
		}
		switch i.Op {
		case AND, XOR, OR:
			i.Dst = r.u32()
			i.A = r.u32()
			i.B = r.u32()
		case NOT:
			i.Dst = r.u32()
			i.A = r.u32()
		case MUX:
			i.Dst = r.u32()
			i.C = r.u32()
			i.A = r.u32()
			i.B = r.u32()
		case MOV:
			i.Width = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
		case MOVX:
			i.Width = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
			i.Reg = r.u8()
		case SHL:
			i.Width = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
			i.Shift = r.u8()
		case ZEXT, SEXT:
			i.Width = types.BitWidth(r.u8())
			i.From = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
		case LDC:
			i.Width = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
		case ADD, SUB, EQ, GTU, GTS:
			i.Width = types.BitWidth(r.u8())
			i.Dst = r.u32()
			i.A = r.u32()
			i.B = r.u32()
		case LDI, ADDI:
			i.Reg = r.u8()
			i.Imm = r.u64()
		case JMP:
			i.Target = r.u32()
		case BNE:
			i.Reg = r.u8()
			i.Imm = r.u64()
			i.Target = r.u32()
		case RET:
		default:
			return nil, fmt.Errorf("%w: %d at offset %d",
				ErrUnsupportedOpcode, byte(i.Op), r.pos-1)
		}
		code = append(code, i)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: truncated instruction",
			ErrUnsupportedOpcode)
	}
	return code, nil
}

// checkCode verifies every wire, constant, register, and branch
// reference of a decoded function body.
func checkCode(e *EntryPoint, numConsts int) error {
	wires := func(idx uint32, base, bits uint32) error {
		if uint64(base)+uint64(bits) > uint64(e.NumWires) {
			return fmt.Errorf("%w: instruction %d: wires %d..%d of %d",
				ErrUnresolvedReference, idx, base, base+bits-1, e.NumWires)
		}
		return nil
	}
	reg := func(idx uint32, r uint8) error {
		if r >= NumRegs {
			return fmt.Errorf("%w: instruction %d: register r%d",
				ErrUnresolvedReference, idx, r)
		}
		return nil
	}
	target := func(idx, t uint32) error {
		if t >= uint32(len(e.Code)) {
			return fmt.Errorf("%w: instruction %d: target %d of %d",
				ErrIllegalBranchTarget, idx, t, len(e.Code))
		}
		return nil
	}

	if len(e.Code) == 0 {
		return fmt.Errorf("%w: empty function body", ErrIllegalBranchTarget)
	}
	if e.Code[len(e.Code)-1].Op != RET {
		return fmt.Errorf("%w: control flow may fall off the end",
			ErrIllegalBranchTarget)
	}

	for idx32, i := range e.Code {
		idx := uint32(idx32)
		var err error
		switch i.Op {
		case AND, XOR, OR:
			err = firstErr(wires(idx, i.Dst, 1), wires(idx, i.A, 1),
				wires(idx, i.B, 1))
		case NOT:
			err = firstErr(wires(idx, i.Dst, 1), wires(idx, i.A, 1))
		case MUX:
			err = firstErr(wires(idx, i.Dst, 1), wires(idx, i.C, 1),
				wires(idx, i.A, 1), wires(idx, i.B, 1))
		case MOV:
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, uint32(i.Width)),
				wires(idx, i.A, uint32(i.Width)))
		case MOVX:
			// The element index is a run-time register value; the
			// engine bounds-checks the indexed range on each access.
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, uint32(i.Width)),
				wires(idx, i.A, uint32(i.Width)), reg(idx, i.Reg))
		case SHL:
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, uint32(i.Width)),
				wires(idx, i.A, uint32(i.Width)))
			if err == nil && int(i.Shift) >= i.Width.Bits() {
				err = fmt.Errorf("%w: instruction %d: shift %d of %s",
					ErrUnsupportedOpcode, idx, i.Shift, i.Width)
			}
		case ZEXT, SEXT:
			err = firstErr(checkWidth(idx, i.Width), checkWidth(idx, i.From),
				wires(idx, i.Dst, uint32(i.Width)),
				wires(idx, i.A, uint32(i.From)))
			if err == nil && i.From > i.Width {
				err = fmt.Errorf("%w: instruction %d: %s narrows %s to %s",
					ErrUnsupportedOpcode, idx, i.Op, i.From, i.Width)
			}
		case LDC:
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, uint32(i.Width)))
			if err == nil && uint64(i.A) >= uint64(numConsts) {
				err = fmt.Errorf("%w: instruction %d: constant c%d of %d",
					ErrUnresolvedReference, idx, i.A, numConsts)
			}
		case ADD, SUB:
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, uint32(i.Width)),
				wires(idx, i.A, uint32(i.Width)),
				wires(idx, i.B, uint32(i.Width)))
		case EQ, GTU, GTS:
			err = firstErr(checkWidth(idx, i.Width),
				wires(idx, i.Dst, 1),
				wires(idx, i.A, uint32(i.Width)),
				wires(idx, i.B, uint32(i.Width)))
		case LDI, ADDI:
			err = reg(idx, i.Reg)
		case JMP:
			err = target(idx, i.Target)
		case BNE:
			err = firstErr(reg(idx, i.Reg), target(idx, i.Target))
		case RET:
		default:
			err = fmt.Errorf("%w: %d", ErrUnsupportedOpcode, byte(i.Op))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func checkWidth(idx uint32, w types.BitWidth) error {
	if !w.Valid() {
		return fmt.Errorf("%w: instruction %d: invalid width %d",
			ErrUnsupportedOpcode, idx, w)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
