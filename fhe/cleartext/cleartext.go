//
// cleartext.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package cleartext implements the fhe.Scheme capability set without
// cryptographic hiding: ciphertexts carry their bit in the clear,
// authenticated with a keyed BLAKE2b MAC and randomized with a fresh
// nonce so that encryption stays probabilistic.
//
// The scheme exists as the deterministic reference backend for tests
// and local development. It preserves every structural property of a
// real backend - explicit key material, MAC-checked ciphertexts,
// compute-key-only gate evaluation - but offers NO confidentiality.
// Never deploy it.
package cleartext

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/fhexec/fhexec/fhe"
)

// SchemeID is the scheme tag in wire and key file headers.
const SchemeID byte = 1

const (
	seedSize  = 32
	nonceSize = 16
	macSize   = 16

	// bit + nonce + mac
	bitSize = 1 + nonceSize + macSize
)

// Key is the key material of the scheme. All three key roles share the
// same MAC seed; the separation between them is structural only.
type Key struct {
	seed [seedSize]byte
}

// Ciphertext is one authenticated bit.
type Ciphertext struct {
	bit   byte
	nonce [nonceSize]byte
	mac   [macSize]byte
}

// Scheme implements fhe.Scheme.
type Scheme struct{}

// New creates the cleartext scheme.
func New() *Scheme {
	return &Scheme{}
}

// ID implements fhe.Scheme.
func (s *Scheme) ID() byte {
	return SchemeID
}

// Name implements fhe.Scheme.
func (s *Scheme) Name() string {
	return "cleartext"
}

// GenerateKeys implements fhe.Scheme.
func (s *Scheme) GenerateKeys() (*fhe.KeySet, error) {
	var key Key
	if _, err := rand.Read(key.seed[:]); err != nil {
		return nil, err
	}
	return &fhe.KeySet{
		Secret:  &key,
		Public:  &key,
		Compute: &key,
	}, nil
}

func seal(key *Key, bit byte) (*Ciphertext, error) {
	ct := &Ciphertext{
		bit: bit & 1,
	}
	if _, err := rand.Read(ct.nonce[:]); err != nil {
		return nil, err
	}
	mac(key, ct.bit, ct.nonce, &ct.mac)
	return ct, nil
}

func open(key *Key, ct *Ciphertext) (byte, error) {
	var sum [macSize]byte
	mac(key, ct.bit, ct.nonce, &sum)
	if subtle.ConstantTimeCompare(sum[:], ct.mac[:]) != 1 {
		return 0, fmt.Errorf("cleartext: ciphertext authentication failed")
	}
	return ct.bit, nil
}

func mac(key *Key, bit byte, nonce [nonceSize]byte, out *[macSize]byte) {
	h, err := blake2b.New256(key.seed[:])
	if err != nil {
		// blake2b.New256 fails only on invalid key sizes.
		panic(err)
	}
	h.Write(nonce[:])
	h.Write([]byte{bit})
	copy(out[:], h.Sum(nil)[:macSize])
}

// EncryptBit implements fhe.Scheme.
func (s *Scheme) EncryptBit(pk fhe.PublicKey, bit byte) (fhe.Bit, error) {
	key, err := asKey(pk)
	if err != nil {
		return nil, err
	}
	return seal(key, bit)
}

// DecryptBit implements fhe.Scheme.
func (s *Scheme) DecryptBit(sk fhe.SecretKey, ct fhe.Bit) (byte, error) {
	key, err := asKey(sk)
	if err != nil {
		return 0, err
	}
	c, err := asBit(ct)
	if err != nil {
		return 0, err
	}
	return open(key, c)
}

// Evaluator implements fhe.Scheme.
func (s *Scheme) Evaluator(ck fhe.ComputeKey) (fhe.Evaluator, error) {
	key, err := asKey(ck)
	if err != nil {
		return nil, err
	}
	return &evaluator{
		key: key,
	}, nil
}

// MarshalBit implements fhe.Scheme.
func (s *Scheme) MarshalBit(ct fhe.Bit) ([]byte, error) {
	c, err := asBit(ct)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, bitSize)
	data = append(data, c.bit)
	data = append(data, c.nonce[:]...)
	return append(data, c.mac[:]...), nil
}

// UnmarshalBit implements fhe.Scheme.
func (s *Scheme) UnmarshalBit(data []byte) (fhe.Bit, error) {
	if len(data) != bitSize {
		return nil, fmt.Errorf("cleartext: invalid ciphertext size %d",
			len(data))
	}
	ct := &Ciphertext{
		bit: data[0],
	}
	copy(ct.nonce[:], data[1:1+nonceSize])
	copy(ct.mac[:], data[1+nonceSize:])
	return ct, nil
}

// MarshalSecretKey implements fhe.Scheme.
func (s *Scheme) MarshalSecretKey(sk fhe.SecretKey) ([]byte, error) {
	return s.marshalKey(sk)
}

// UnmarshalSecretKey implements fhe.Scheme.
func (s *Scheme) UnmarshalSecretKey(data []byte) (fhe.SecretKey, error) {
	return s.unmarshalKey(data)
}

// MarshalPublicKey implements fhe.Scheme.
func (s *Scheme) MarshalPublicKey(pk fhe.PublicKey) ([]byte, error) {
	return s.marshalKey(pk)
}

// UnmarshalPublicKey implements fhe.Scheme.
func (s *Scheme) UnmarshalPublicKey(data []byte) (fhe.PublicKey, error) {
	return s.unmarshalKey(data)
}

// MarshalComputeKey implements fhe.Scheme.
func (s *Scheme) MarshalComputeKey(ck fhe.ComputeKey) ([]byte, error) {
	return s.marshalKey(ck)
}

// UnmarshalComputeKey implements fhe.Scheme.
func (s *Scheme) UnmarshalComputeKey(data []byte) (fhe.ComputeKey, error) {
	return s.unmarshalKey(data)
}

func (s *Scheme) marshalKey(k any) ([]byte, error) {
	key, err := asKey(k)
	if err != nil {
		return nil, err
	}
	data := make([]byte, seedSize)
	copy(data, key.seed[:])
	return data, nil
}

func (s *Scheme) unmarshalKey(data []byte) (*Key, error) {
	if len(data) != seedSize {
		return nil, fmt.Errorf("cleartext: invalid key size %d", len(data))
	}
	var key Key
	copy(key.seed[:], data)
	return &key, nil
}

func asKey(k any) (*Key, error) {
	key, ok := k.(*Key)
	if !ok {
		return nil, fmt.Errorf("cleartext: invalid key type %T", k)
	}
	return key, nil
}

func asBit(ct fhe.Bit) (*Ciphertext, error) {
	c, ok := ct.(*Ciphertext)
	if !ok {
		return nil, fmt.Errorf("cleartext: invalid ciphertext type %T", ct)
	}
	return c, nil
}

type evaluator struct {
	key *Key
}

func (e *evaluator) gate2(a, b fhe.Bit, f func(x, y byte) byte) (
	fhe.Bit, error) {

	ca, err := asBit(a)
	if err != nil {
		return nil, err
	}
	cb, err := asBit(b)
	if err != nil {
		return nil, err
	}
	x, err := open(e.key, ca)
	if err != nil {
		return nil, err
	}
	y, err := open(e.key, cb)
	if err != nil {
		return nil, err
	}
	return seal(e.key, f(x, y))
}

// And implements fhe.Evaluator.
func (e *evaluator) And(a, b fhe.Bit) (fhe.Bit, error) {
	return e.gate2(a, b, func(x, y byte) byte {
		return x & y
	})
}

// Or implements fhe.Evaluator.
func (e *evaluator) Or(a, b fhe.Bit) (fhe.Bit, error) {
	return e.gate2(a, b, func(x, y byte) byte {
		return x | y
	})
}

// Xor implements fhe.Evaluator.
func (e *evaluator) Xor(a, b fhe.Bit) (fhe.Bit, error) {
	return e.gate2(a, b, func(x, y byte) byte {
		return x ^ y
	})
}

// Not implements fhe.Evaluator.
func (e *evaluator) Not(a fhe.Bit) (fhe.Bit, error) {
	ca, err := asBit(a)
	if err != nil {
		return nil, err
	}
	x, err := open(e.key, ca)
	if err != nil {
		return nil, err
	}
	return seal(e.key, x^1)
}

// Mux implements fhe.Evaluator.
func (e *evaluator) Mux(sel, a, b fhe.Bit) (fhe.Bit, error) {
	cs, err := asBit(sel)
	if err != nil {
		return nil, err
	}
	s, err := open(e.key, cs)
	if err != nil {
		return nil, err
	}
	if s == 1 {
		return e.gate2(a, b, func(x, y byte) byte {
			return x
		})
	}
	return e.gate2(a, b, func(x, y byte) byte {
		return y
	})
}

// Constant implements fhe.Evaluator.
func (e *evaluator) Constant(bit byte) (fhe.Bit, error) {
	return seal(e.key, bit)
}
