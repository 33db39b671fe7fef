//
// builder.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package wire

import (
	"fmt"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/types"
)

// Builder stages operand slots and output declarations, then encrypts
// and serializes them into a parameter block. Staging performs no
// crypto; all encryption happens in Build.
type Builder struct {
	slots   []stagedSlot
	outputs []types.Output
}

// stagedSlot holds raw two's-complement values until Build encrypts
// or serializes them.
type stagedSlot struct {
	op     types.Operand
	values []uint64
}

// NewBuilder creates an empty parameter block builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) stage(kind types.Kind, width types.BitWidth, signed bool,
	values []uint64) *Builder {

	b.slots = append(b.slots, stagedSlot{
		op: types.Operand{
			Kind:      kind,
			Width:     width,
			Signed:    signed,
			ArraySize: uint32(len(values)),
		},
		values: values,
	})
	return b
}

// Encrypt stages an encrypted scalar slot. Signed values must already
// be in two's-complement form; EncryptSigned converts.
func (b *Builder) Encrypt(value uint64, width types.BitWidth,
	signed bool) *Builder {

	return b.stage(types.KindEncrypted, width, signed, []uint64{value})
}

// EncryptSigned stages an encrypted signed scalar slot.
func (b *Builder) EncryptSigned(value int64, width types.BitWidth) *Builder {
	return b.Encrypt(width.ToUnsigned(value), width, true)
}

// EncryptArray stages an encrypted array slot.
func (b *Builder) EncryptArray(values []uint64, width types.BitWidth,
	signed bool) *Builder {

	return b.stage(types.KindEncrypted, width, signed, values)
}

// Plain stages a plaintext scalar slot. Signed values must already be
// in two's-complement form; PlainSigned converts.
func (b *Builder) Plain(value uint64, width types.BitWidth,
	signed bool) *Builder {

	return b.stage(types.KindPlaintext, width, signed, []uint64{value})
}

// PlainSigned stages a plaintext signed scalar slot.
func (b *Builder) PlainSigned(value int64, width types.BitWidth) *Builder {
	return b.Plain(width.ToUnsigned(value), width, true)
}

// PlainArray stages a plaintext array slot.
func (b *Builder) PlainArray(values []uint64, width types.BitWidth,
	signed bool) *Builder {

	return b.stage(types.KindPlaintext, width, signed, values)
}

// Output declares the next output the caller expects back.
func (b *Builder) Output(width types.BitWidth, arraySize uint32) *Builder {
	b.outputs = append(b.outputs, types.Output{
		Width:     width,
		ArraySize: arraySize,
	})
	return b
}

// Build encrypts the staged encrypted slots under the public key and
// serializes the parameter block.
func (b *Builder) Build(s fhe.Scheme, pk fhe.PublicKey) ([]byte, error) {
	buf := writeHeader(nil, ParamMagic, s.ID())
	buf = bo.AppendUint32(buf, uint32(len(b.slots)))

	for i, slot := range b.slots {
		op := slot.op
		if !op.Width.Valid() {
			return nil, fmt.Errorf("slot %d: invalid bit width %d", i,
				op.Width)
		}
		if op.ArraySize < 1 {
			return nil, fmt.Errorf("slot %d: empty array", i)
		}
		buf = append(buf, byte(op.Kind), byte(op.Width),
			boolByte(op.Signed))
		buf = bo.AppendUint32(buf, op.ArraySize)

		for _, value := range slot.values {
			switch op.Kind {
			case types.KindEncrypted:
				word, err := fhe.EncryptWord(s, pk, value, op.Width,
					op.Signed)
				if err != nil {
					return nil, fmt.Errorf("slot %d: %w", i, err)
				}
				buf, err = appendWord(buf, s, word)
				if err != nil {
					return nil, fmt.Errorf("slot %d: %w", i, err)
				}
			case types.KindPlaintext:
				if !op.Signed && value > op.Width.MaxUnsigned() {
					return nil, fmt.Errorf(
						"slot %d: value %d exceeds maximum for %s", i,
						value, op.Width)
				}
				buf = bo.AppendUint64(buf, op.Width.Mask(value))
			}
		}
	}

	buf = bo.AppendUint32(buf, uint32(len(b.outputs)))
	for i, out := range b.outputs {
		if !out.Width.Valid() || out.ArraySize < 1 {
			return nil, fmt.Errorf("output %d: invalid declaration %s", i,
				out)
		}
		buf = append(buf, byte(out.Width))
		buf = bo.AppendUint32(buf, out.ArraySize)
	}
	return buf, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
