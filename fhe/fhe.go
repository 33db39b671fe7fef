//
// fhe.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package fhe defines the homomorphic-encryption capability set
// consumed by the client library and the execution engine, and the key
// management on top of it.
//
// The package models bit-level encryption only: a ciphertext is one
// encrypted bit and integer words are ordered bit sequences (LSB
// first). Concrete schemes live in subpackages; everything above them
// is scheme-agnostic and receives key material as explicit values.
package fhe

import (
	"errors"
)

// Key material is opaque to this package; the concrete types belong to
// the scheme. Decryption requires the secret key. The compute key is
// sufficient to evaluate gates but can never decrypt.
type (
	// SecretKey decrypts. It never leaves the client.
	SecretKey any
	// PublicKey encrypts.
	PublicKey any
	// ComputeKey evaluates homomorphic gates on the executor side.
	ComputeKey any
	// Bit is an opaque encrypted bit.
	Bit any
)

// ErrInvalidCiphertextLength is returned when a ciphertext word does
// not contain exactly the number of bits its declared width requires.
var ErrInvalidCiphertextLength = errors.New("invalid ciphertext length")

// KeySet holds the three keys of one client.
type KeySet struct {
	Secret  SecretKey
	Public  PublicKey
	Compute ComputeKey
}

// Scheme is the abstract capability set of a bit-level homomorphic
// encryption scheme. Implementations must be safe for concurrent use;
// all key material is passed explicitly.
type Scheme interface {
	// ID returns the scheme tag used in wire and key file headers.
	ID() byte

	// Name returns the human-readable scheme name.
	Name() string

	// GenerateKeys creates a fresh key set.
	GenerateKeys() (*KeySet, error)

	// EncryptBit encrypts one bit (0 or 1) under the public key.
	// Encryption is probabilistic: two ciphertexts of the same bit
	// are not comparable.
	EncryptBit(pk PublicKey, bit byte) (Bit, error)

	// DecryptBit decrypts one bit with the secret key.
	DecryptBit(sk SecretKey, ct Bit) (byte, error)

	// Evaluator returns a gate evaluator bound to the compute key.
	// The returned evaluator never sees secret key material.
	Evaluator(ck ComputeKey) (Evaluator, error)

	// MarshalBit and UnmarshalBit convert ciphertext bits to and
	// from their wire form.
	MarshalBit(ct Bit) ([]byte, error)
	UnmarshalBit(data []byte) (Bit, error)

	// Key serialization. The secret key codec exists for client-side
	// key storage only; no executor-side path may call it.
	MarshalSecretKey(sk SecretKey) ([]byte, error)
	UnmarshalSecretKey(data []byte) (SecretKey, error)
	MarshalPublicKey(pk PublicKey) ([]byte, error)
	UnmarshalPublicKey(data []byte) (PublicKey, error)
	MarshalComputeKey(ck ComputeKey) ([]byte, error)
	UnmarshalComputeKey(data []byte) (ComputeKey, error)
}

// Evaluator evaluates boolean gates over encrypted bits using only a
// compute key. A single Evaluator must not be shared between
// concurrent runs unless the implementation documents otherwise.
type Evaluator interface {
	// And computes a AND b.
	And(a, b Bit) (Bit, error)

	// Or computes a OR b.
	Or(a, b Bit) (Bit, error)

	// Xor computes a XOR b.
	Xor(a, b Bit) (Bit, error)

	// Not computes NOT a.
	Not(a Bit) (Bit, error)

	// Mux selects a if sel is 1, b otherwise.
	Mux(sel, a, b Bit) (Bit, error)

	// Constant creates a noiseless ciphertext of a known bit. Used
	// to bind plaintext operands and pool constants into wires.
	Constant(bit byte) (Bit, error)
}
