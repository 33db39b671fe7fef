//
// wire.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package wire implements the parameter codec: the wire protocol
// carrying encrypted and plaintext operands from the client to the
// executor, and ciphertext outputs back.
//
// Both directions use a versioned header followed by a
// self-describing, big-endian stream:
//
//	parameter block: [MAGIC "FXPB"][VERSION u32][SCHEME u8]
//	                 slot count, per-slot descriptor + payload,
//	                 output descriptor list
//	output block:    [MAGIC "FXOB"][VERSION u32][SCHEME u8]
//	                 output count, per-output descriptor + payload
//
// Ciphertext bits travel as length-prefixed scheme-opaque blobs, LSB
// first. Plaintext values travel as two's-complement u64 words.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/types"
)

// Block magics.
var (
	ParamMagic  = [4]byte{'F', 'X', 'P', 'B'}
	OutputMagic = [4]byte{'F', 'X', 'O', 'B'}
)

// FormatVersion is the current wire format version.
const FormatVersion uint32 = 1

// ErrMalformedPayload is returned when a block is truncated or its
// fields are inconsistent.
var ErrMalformedPayload = errors.New("malformed payload")

// Limits on attacker-controlled counts, applied before allocation.
const (
	maxSlots      = 1 << 16
	maxArraySize  = 1 << 16
	maxCiphertext = 1 << 26
)

var bo = binary.BigEndian

// Slot is one decoded operand: its descriptor plus either ciphertext
// words (encrypted kind) or raw two's-complement values (plaintext
// kind).
type Slot struct {
	Operand types.Operand
	Words   []fhe.Word
	Values  []uint64
}

// ParameterBlock is the decoded client payload: ordered operand slots
// plus the declared outputs.
type ParameterBlock struct {
	Slots   []Slot
	Outputs []types.Output
}

// Signature returns the operand signature the block claims.
func (p *ParameterBlock) Signature() types.Signature {
	sig := types.Signature{
		Outputs: p.Outputs,
	}
	for _, s := range p.Slots {
		sig.Operands = append(sig.Operands, s.Operand)
	}
	return sig
}

// Output is one decoded engine output: the declared width and one
// ciphertext word per array element.
type Output struct {
	Width types.BitWidth
	Words []fhe.Word
}

func writeHeader(buf []byte, magic [4]byte, scheme byte) []byte {
	buf = append(buf, magic[:]...)
	buf = bo.AppendUint32(buf, FormatVersion)
	return append(buf, scheme)
}

const headerSize = 4 + 4 + 1

func checkHeader(magic [4]byte, scheme byte, data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedPayload)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrMalformedPayload,
			data[:4])
	}
	version := bo.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d, expected %d",
			ErrMalformedPayload, version, FormatVersion)
	}
	if data[8] != scheme {
		return nil, fmt.Errorf("%w: scheme %d, expected %d",
			ErrMalformedPayload, data[8], scheme)
	}
	return data[headerSize:], nil
}

// reader is a bounds-checked cursor; reads past the end set the sticky
// error and return zero values.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated at offset %d",
			ErrMalformedPayload, r.pos)
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

// readWord reads one length-prefixed ciphertext word of the given
// width, LSB first.
func readWord(r *reader, s fhe.Scheme, width types.BitWidth,
	signed bool) (fhe.Word, error) {

	w := fhe.Word{
		Width:  width,
		Signed: signed,
		Bits:   make([]fhe.Bit, width.Bits()),
	}
	for i := range w.Bits {
		size := r.u32()
		if r.err == nil && size > maxCiphertext {
			return fhe.Word{}, fmt.Errorf("%w: ciphertext size %d",
				ErrMalformedPayload, size)
		}
		data := r.bytes(int(size))
		if r.err != nil {
			return fhe.Word{}, r.err
		}
		bit, err := s.UnmarshalBit(data)
		if err != nil {
			return fhe.Word{}, fmt.Errorf("%w: bit %d: %v",
				ErrMalformedPayload, i, err)
		}
		w.Bits[i] = bit
	}
	return w, nil
}

func appendWord(buf []byte, s fhe.Scheme, w fhe.Word) ([]byte, error) {
	if !w.Width.Valid() || len(w.Bits) != w.Width.Bits() {
		return nil, fmt.Errorf("%w: got %d bits, width %d",
			fhe.ErrInvalidCiphertextLength, len(w.Bits), w.Width)
	}
	for _, bit := range w.Bits {
		data, err := s.MarshalBit(bit)
		if err != nil {
			return nil, err
		}
		buf = bo.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	return buf, nil
}

// Decode parses a parameter block, failing with ErrMalformedPayload on
// truncated or inconsistent fields.
func Decode(s fhe.Scheme, data []byte) (*ParameterBlock, error) {
	body, err := checkHeader(ParamMagic, s.ID(), data)
	if err != nil {
		return nil, err
	}
	r := &reader{data: body}

	numSlots := r.u32()
	if r.err == nil && numSlots > maxSlots {
		return nil, fmt.Errorf("%w: %d slots", ErrMalformedPayload, numSlots)
	}
	block := &ParameterBlock{}
	for i := uint32(0); i < numSlots && r.err == nil; i++ {
		op := types.Operand{
			Kind:   types.Kind(r.u8()),
			Width:  types.BitWidth(r.u8()),
			Signed: r.u8() != 0,
		}
		op.ArraySize = r.u32()
		if r.err != nil {
			break
		}
		if !op.Kind.Valid() || !op.Width.Valid() || op.ArraySize < 1 ||
			op.ArraySize > maxArraySize {
			return nil, fmt.Errorf("%w: slot %d: %s", ErrMalformedPayload,
				i, op)
		}
		slot := Slot{
			Operand: op,
		}
		for j := uint32(0); j < op.ArraySize; j++ {
			switch op.Kind {
			case types.KindEncrypted:
				word, err := readWord(r, s, op.Width, op.Signed)
				if err != nil {
					return nil, err
				}
				slot.Words = append(slot.Words, word)
			case types.KindPlaintext:
				value := r.u64()
				if r.err == nil && value != op.Width.Mask(value) {
					return nil, fmt.Errorf(
						"%w: slot %d: value %d exceeds %s",
						ErrMalformedPayload, i, value, op.Width)
				}
				slot.Values = append(slot.Values, value)
			}
		}
		if r.err != nil {
			break
		}
		block.Slots = append(block.Slots, slot)
	}

	numOutputs := r.u32()
	if r.err == nil && numOutputs > maxSlots {
		return nil, fmt.Errorf("%w: %d outputs", ErrMalformedPayload,
			numOutputs)
	}
	for i := uint32(0); i < numOutputs && r.err == nil; i++ {
		out := types.Output{
			Width: types.BitWidth(r.u8()),
		}
		out.ArraySize = r.u32()
		if r.err != nil {
			break
		}
		if !out.Width.Valid() || out.ArraySize < 1 ||
			out.ArraySize > maxArraySize {
			return nil, fmt.Errorf("%w: output %d", ErrMalformedPayload, i)
		}
		block.Outputs = append(block.Outputs, out)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload,
			len(body)-r.pos)
	}
	return block, nil
}

// EncodeOutputs serializes the engine's outputs into an output block.
func EncodeOutputs(s fhe.Scheme, outputs []Output) ([]byte, error) {
	buf := writeHeader(nil, OutputMagic, s.ID())
	buf = bo.AppendUint32(buf, uint32(len(outputs)))
	for _, out := range outputs {
		buf = append(buf, byte(out.Width))
		buf = bo.AppendUint32(buf, uint32(len(out.Words)))
		for _, w := range out.Words {
			var err error
			buf, err = appendWord(buf, s, w)
			if err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

// ReadOutputs decodes an output block into one ciphertext word per
// declared output element, in declaration order. The client decrypts
// the words with fhe.DecryptWord.
func ReadOutputs(s fhe.Scheme, data []byte) ([]Output, error) {
	body, err := checkHeader(OutputMagic, s.ID(), data)
	if err != nil {
		return nil, err
	}
	r := &reader{data: body}

	count := r.u32()
	if r.err == nil && count > maxSlots {
		return nil, fmt.Errorf("%w: %d outputs", ErrMalformedPayload, count)
	}
	var outputs []Output
	for i := uint32(0); i < count && r.err == nil; i++ {
		out := Output{
			Width: types.BitWidth(r.u8()),
		}
		arraySize := r.u32()
		if r.err != nil {
			break
		}
		if !out.Width.Valid() || arraySize < 1 || arraySize > maxArraySize {
			return nil, fmt.Errorf("%w: output %d", ErrMalformedPayload, i)
		}
		for j := uint32(0); j < arraySize; j++ {
			word, err := readWord(r, s, out.Width, false)
			if err != nil {
				return nil, err
			}
			out.Words = append(out.Words, word)
		}
		outputs = append(outputs, out)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPayload,
			len(body)-r.pos)
	}
	return outputs, nil
}
