//
// word.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package fhe

import (
	"fmt"

	"github.com/fhexec/fhexec/types"
)

// Word is an encrypted integer: an ordered, LSB-first sequence of bit
// ciphertexts tagged with its width and signedness.
type Word struct {
	Bits   []Bit
	Width  types.BitWidth
	Signed bool
}

// EncryptWord encrypts an integer value bit by bit under the public
// key. Signed values must be converted into their two's-complement
// representation with BitWidth.ToUnsigned before the call; the signed
// flag only tags the word.
func EncryptWord(s Scheme, pk PublicKey, value uint64, width types.BitWidth,
	signed bool) (Word, error) {

	if !width.Valid() {
		return Word{}, fmt.Errorf("encrypt: invalid bit width %d", width)
	}
	if !signed && value > width.MaxUnsigned() {
		return Word{}, fmt.Errorf("encrypt: value %d exceeds maximum for %s",
			value, width)
	}
	value = width.Mask(value)

	bits := make([]Bit, width.Bits())
	for i := range bits {
		ct, err := s.EncryptBit(pk, byte(value>>i)&1)
		if err != nil {
			return Word{}, err
		}
		bits[i] = ct
	}
	return Word{
		Bits:   bits,
		Width:  width,
		Signed: signed,
	}, nil
}

// EncryptSigned encrypts a signed value in two's complement.
func EncryptSigned(s Scheme, pk PublicKey, value int64,
	width types.BitWidth) (Word, error) {

	return EncryptWord(s, pk, width.ToUnsigned(value), width, true)
}

// DecryptWord decrypts a word with the secret key and returns its
// unsigned value. It fails with ErrInvalidCiphertextLength if the bit
// count does not match the declared width.
func DecryptWord(s Scheme, sk SecretKey, w Word) (uint64, error) {
	if !w.Width.Valid() || len(w.Bits) != w.Width.Bits() {
		return 0, fmt.Errorf("%w: got %d bits, width %d",
			ErrInvalidCiphertextLength, len(w.Bits), w.Width)
	}
	var value uint64
	for i, ct := range w.Bits {
		bit, err := s.DecryptBit(sk, ct)
		if err != nil {
			return 0, err
		}
		if bit > 1 {
			return 0, fmt.Errorf("decrypt: bit %d out of range: %d", i, bit)
		}
		value |= uint64(bit) << i
	}
	return value, nil
}

// DecryptSigned decrypts a word and reconstructs its two's-complement
// signed value.
func DecryptSigned(s Scheme, sk SecretKey, w Word) (int64, error) {
	value, err := DecryptWord(s, sk, w)
	if err != nil {
		return 0, err
	}
	return w.Width.ToSigned(value), nil
}
