//
// examples.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package program

import (
	"github.com/fhexec/fhexec/types"
)

// Examples builds the canonical test program suite: the programs an
// external compiler would produce for the end-to-end scenarios. The
// result is unvalidated builder output; callers run it through
// Validate like any other binary.
func Examples() ([]byte, error) {
	b := NewBuilder()

	exampleInc(b)
	for _, width := range []types.BitWidth{types.W8, types.W16, types.W32,
		types.W64} {
		exampleAdd(b, width, false)
		exampleAdd(b, width, true)
	}
	exampleSub(b)
	exampleSumArray(b)
	exampleAddArrays(b)
	exampleScale(b)
	exampleGreaterThan(b)
	exampleMax(b)
	exampleMuxSelect(b)
	exampleIsZero(b)

	return b.Bytes()
}

// inc(a: enc u16) -> u16: a + 1
func exampleInc(b *Builder) {
	f := b.Function("inc")
	a := f.Param(types.KindEncrypted, types.W16, false, 1)
	out := f.Output(types.W16, 1)
	one := f.Wires(16)

	f.LDC(types.W16, one, 1)
	f.Emit(Instr{Op: ADD, Width: types.W16, Dst: out, A: a, B: one})
	f.Emit(Instr{Op: RET})
}

// add_<w>(a, b: enc <w>) -> <w>: a + b
func exampleAdd(b *Builder, width types.BitWidth, signed bool) {
	name := "add_u"
	if signed {
		name = "add_i"
	}
	name += map[types.BitWidth]string{
		types.W8: "8", types.W16: "16", types.W32: "32", types.W64: "64",
	}[width]

	f := b.Function(name)
	a := f.Param(types.KindEncrypted, width, signed, 1)
	c := f.Param(types.KindEncrypted, width, signed, 1)
	out := f.Output(width, 1)

	f.Emit(Instr{Op: ADD, Width: width, Dst: out, A: a, B: c})
	f.Emit(Instr{Op: RET})
}

// sub_u8(a, b: enc u8) -> u8: a - b mod 2^8
func exampleSub(b *Builder) {
	f := b.Function("sub_u8")
	a := f.Param(types.KindEncrypted, types.W8, false, 1)
	c := f.Param(types.KindEncrypted, types.W8, false, 1)
	out := f.Output(types.W8, 1)

	f.Emit(Instr{Op: SUB, Width: types.W8, Dst: out, A: a, B: c})
	f.Emit(Instr{Op: RET})
}

// sum_array_u8(arr: enc u8[4]) -> u16: widening sum, looped over a
// plaintext counter register.
func exampleSumArray(b *Builder) {
	f := b.Function("sum_array_u8")
	arr := f.Param(types.KindEncrypted, types.W8, false, 4)
	out := f.Output(types.W16, 1)
	elem := f.Wires(8)
	wide := f.Wires(16)
	acc := f.Wires(16)

	f.LDC(types.W16, acc, 0)
	f.Emit(Instr{Op: LDI, Reg: 0, Imm: 0})
	loop := f.Here()
	f.Emit(Instr{Op: MOVX, Width: types.W8, Dst: elem, A: arr, Reg: 0})
	f.Emit(Instr{Op: ZEXT, Width: types.W16, From: types.W8, Dst: wide,
		A: elem})
	f.Emit(Instr{Op: ADD, Width: types.W16, Dst: acc, A: acc, B: wide})
	f.Emit(Instr{Op: ADDI, Reg: 0, Imm: 1})
	f.Emit(Instr{Op: BNE, Reg: 0, Imm: 4, Target: loop})
	f.Emit(Instr{Op: MOV, Width: types.W16, Dst: out, A: acc})
	f.Emit(Instr{Op: RET})
}

// add_arrays_u8(a, b: enc u8[4]) -> u8[4]: element-wise sum, unrolled.
func exampleAddArrays(b *Builder) {
	f := b.Function("add_arrays_u8")
	a := f.Param(types.KindEncrypted, types.W8, false, 4)
	c := f.Param(types.KindEncrypted, types.W8, false, 4)
	out := f.Output(types.W8, 4)

	for i := uint32(0); i < 4; i++ {
		f.Emit(Instr{Op: ADD, Width: types.W8, Dst: out + 8*i, A: a + 8*i,
			B: c + 8*i})
	}
	f.Emit(Instr{Op: RET})
}

// scale_u8(ct: enc u8, scale: plain u8) -> u16: widening product by
// shift-and-add over the plaintext multiplier's bound bit wires.
func exampleScale(b *Builder) {
	f := b.Function("scale_u8")
	ct := f.Param(types.KindEncrypted, types.W8, false, 1)
	scale := f.Param(types.KindPlaintext, types.W8, false, 1)
	out := f.Output(types.W16, 1)
	wide := f.Wires(16)
	acc := f.Wires(16)
	shifted := f.Wires(16)
	masked := f.Wires(16)

	f.Emit(Instr{Op: ZEXT, Width: types.W16, From: types.W8, Dst: wide,
		A: ct})
	f.LDC(types.W16, acc, 0)
	for i := uint32(0); i < 8; i++ {
		f.Emit(Instr{Op: SHL, Width: types.W16, Dst: shifted, A: wide,
			Shift: uint8(i)})
		for j := uint32(0); j < 16; j++ {
			f.Emit(Instr{Op: AND, Dst: masked + j, A: shifted + j,
				B: scale + i})
		}
		f.Emit(Instr{Op: ADD, Width: types.W16, Dst: acc, A: acc, B: masked})
	}
	f.Emit(Instr{Op: MOV, Width: types.W16, Dst: out, A: acc})
	f.Emit(Instr{Op: RET})
}

// greater_than_u8(a, b: enc u8) -> u8: 1 if a > b, else 0.
func exampleGreaterThan(b *Builder) {
	f := b.Function("greater_than_u8")
	a := f.Param(types.KindEncrypted, types.W8, false, 1)
	c := f.Param(types.KindEncrypted, types.W8, false, 1)
	out := f.Output(types.W8, 1)
	g := f.Wires(1)

	f.Emit(Instr{Op: GTU, Width: types.W8, Dst: g, A: a, B: c})
	f.LDC(types.W8, out, 0)
	f.Emit(Instr{Op: OR, Dst: out, A: g, B: g})
	f.Emit(Instr{Op: RET})
}

// max_u8(a, b: enc u8) -> u8: bitwise select by the comparison wire.
func exampleMax(b *Builder) {
	f := b.Function("max_u8")
	a := f.Param(types.KindEncrypted, types.W8, false, 1)
	c := f.Param(types.KindEncrypted, types.W8, false, 1)
	out := f.Output(types.W8, 1)
	g := f.Wires(1)

	f.Emit(Instr{Op: GTU, Width: types.W8, Dst: g, A: a, B: c})
	for i := uint32(0); i < 8; i++ {
		f.Emit(Instr{Op: MUX, Dst: out + i, C: g, A: a + i, B: c + i})
	}
	f.Emit(Instr{Op: RET})
}

// mux_select_u8(sel: enc u8, a, b: enc u8) -> u8: a if sel is odd,
// else b. Only the low selector bit participates.
func exampleMuxSelect(b *Builder) {
	f := b.Function("mux_select_u8")
	sel := f.Param(types.KindEncrypted, types.W8, false, 1)
	a := f.Param(types.KindEncrypted, types.W8, false, 1)
	c := f.Param(types.KindEncrypted, types.W8, false, 1)
	out := f.Output(types.W8, 1)

	for i := uint32(0); i < 8; i++ {
		f.Emit(Instr{Op: MUX, Dst: out + i, C: sel, A: a + i, B: c + i})
	}
	f.Emit(Instr{Op: RET})
}

// is_zero_u8(a: enc u8) -> u8: 1 if a == 0, else 0.
func exampleIsZero(b *Builder) {
	f := b.Function("is_zero_u8")
	a := f.Param(types.KindEncrypted, types.W8, false, 1)
	out := f.Output(types.W8, 1)
	zero := f.Wires(8)
	e := f.Wires(1)

	f.LDC(types.W8, zero, 0)
	f.Emit(Instr{Op: EQ, Width: types.W8, Dst: e, A: a, B: zero})
	f.LDC(types.W8, out, 0)
	f.Emit(Instr{Op: OR, Dst: out, A: e, B: e})
	f.Emit(Instr{Op: RET})
}
