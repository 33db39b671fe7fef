//
// types.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package types defines the scalar vocabulary shared by the client
// library, the binary validator, and the execution engine: operand bit
// widths, operand kinds, and operand signatures.
package types

import (
	"fmt"
)

// ByteBits defines the byte size in bits.
const ByteBits = 8

// BitWidth specifies the width of a ciphertext or plaintext word in
// bits. Only the widths 8, 16, 32, and 64 are valid.
type BitWidth uint8

// Supported word widths.
const (
	W8  BitWidth = 8
	W16 BitWidth = 16
	W32 BitWidth = 32
	W64 BitWidth = 64
)

// ParseBitWidth converts an integer into a BitWidth.
func ParseBitWidth(val int) (BitWidth, error) {
	switch val {
	case 8, 16, 32, 64:
		return BitWidth(val), nil
	default:
		return 0, fmt.Errorf("bit width must be 8, 16, 32, or 64, got %d",
			val)
	}
}

// Valid tests if the bit width is one of the supported widths.
func (w BitWidth) Valid() bool {
	switch w {
	case W8, W16, W32, W64:
		return true
	default:
		return false
	}
}

// Bits returns the width in bits.
func (w BitWidth) Bits() int {
	return int(w)
}

// Bytes returns the width in bytes.
func (w BitWidth) Bytes() int {
	return int(w) / ByteBits
}

// MaxUnsigned returns the maximum unsigned value representable in the
// width.
func (w BitWidth) MaxUnsigned() uint64 {
	if w == W64 {
		return ^uint64(0)
	}
	return 1<<w - 1
}

// Mask truncates the value into the width.
func (w BitWidth) Mask(value uint64) uint64 {
	return value & w.MaxUnsigned()
}

// ToUnsigned converts a signed value into its two's-complement
// unsigned representation in the width.
func (w BitWidth) ToUnsigned(value int64) uint64 {
	return w.Mask(uint64(value))
}

// ToSigned converts an unsigned value into its two's-complement
// signed interpretation in the width.
func (w BitWidth) ToSigned(value uint64) int64 {
	value = w.Mask(value)
	if value&(1<<(w-1)) != 0 {
		return int64(value | ^w.MaxUnsigned())
	}
	return int64(value)
}

func (w BitWidth) String() string {
	return fmt.Sprintf("u%d", int(w))
}

// Kind specifies how an operand slot is conveyed to the executor.
type Kind uint8

// Operand kinds. The validator and the parameter codec both branch on
// this tag.
const (
	KindEncrypted Kind = iota
	KindPlaintext
)

func (k Kind) String() string {
	switch k {
	case KindEncrypted:
		return "enc"
	case KindPlaintext:
		return "plain"
	default:
		return fmt.Sprintf("{Kind %d}", uint8(k))
	}
}

// Valid tests if the kind is a known operand kind.
func (k Kind) Valid() bool {
	return k == KindEncrypted || k == KindPlaintext
}

// Operand describes one parameter slot of an entry point: its kind,
// word width, signedness, and element count. Scalars have ArraySize 1.
type Operand struct {
	Kind      Kind
	Width     BitWidth
	Signed    bool
	ArraySize uint32
}

func (o Operand) String() string {
	str := o.Kind.String() + " "
	if o.Signed {
		str += "i"
	} else {
		str += "u"
	}
	str += fmt.Sprintf("%d", int(o.Width))
	if o.ArraySize != 1 {
		str += fmt.Sprintf("[%d]", o.ArraySize)
	}
	return str
}

// Bits returns the total number of bits the operand occupies.
func (o Operand) Bits() int {
	return o.Width.Bits() * int(o.ArraySize)
}

// Equal tests if the operands have the same wire shape. Signedness
// affects numeric interpretation only, not shape, but a mismatch is
// still a signature mismatch at the protocol level.
func (o Operand) Equal(other Operand) bool {
	return o.Kind == other.Kind && o.Width == other.Width &&
		o.Signed == other.Signed && o.ArraySize == other.ArraySize
}

// Output describes one declared output of an entry point.
type Output struct {
	Width     BitWidth
	ArraySize uint32
}

func (o Output) String() string {
	if o.ArraySize != 1 {
		return fmt.Sprintf("u%d[%d]", int(o.Width), o.ArraySize)
	}
	return fmt.Sprintf("u%d", int(o.Width))
}

// Bits returns the total number of bits the output occupies.
func (o Output) Bits() int {
	return o.Width.Bits() * int(o.ArraySize)
}

// Signature specifies the ordered operands and outputs of an entry
// point.
type Signature struct {
	Operands []Operand
	Outputs  []Output
}

func (s Signature) String() string {
	str := "("
	for i, op := range s.Operands {
		if i > 0 {
			str += ", "
		}
		str += op.String()
	}
	str += ") -> ("
	for i, out := range s.Outputs {
		if i > 0 {
			str += ", "
		}
		str += out.String()
	}
	return str + ")"
}

// InputBits returns the total number of input bits the signature
// binds.
func (s Signature) InputBits() int {
	var sum int
	for _, op := range s.Operands {
		sum += op.Bits()
	}
	return sum
}

// OutputBits returns the total number of output bits the signature
// declares.
func (s Signature) OutputBits() int {
	var sum int
	for _, out := range s.Outputs {
		sum += out.Bits()
	}
	return sum
}

// Equal tests if two signatures match exactly, operand by operand.
func (s Signature) Equal(other Signature) bool {
	if len(s.Operands) != len(other.Operands) ||
		len(s.Outputs) != len(other.Outputs) {
		return false
	}
	for i, op := range s.Operands {
		if !op.Equal(other.Operands[i]) {
			return false
		}
	}
	for i, out := range s.Outputs {
		if out != other.Outputs[i] {
			return false
		}
	}
	return true
}
