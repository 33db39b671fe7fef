//
// boolean.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package boolean implements the fhe.Scheme capability set with
// TFHE-style gate bootstrapping on top of lattigo's RLWE primitives
// and blind rotation.
//
// A bit is an RLWE ciphertext whose constant coefficient encodes the
// bit at +Q/8 (one) or -Q/8 (zero). A binary gate adds the two input
// ciphertexts and evaluates a programmable bootstrap with a per-gate
// test polynomial, so every gate output carries fresh noise and
// circuits of arbitrary depth stay decryptable. NOT is a free
// negation. The compute key is the blind rotation key set: RGSW
// encryptions of the secret key bits plus the automorphism keys, none
// of which can decrypt.
package boolean

import (
	"encoding/binary"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rgsw"
	"github.com/tuneinsight/lattigo/v6/core/rgsw/blindrot"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/utils"

	"github.com/fhexec/fhexec/fhe"
)

// SchemeID is the scheme tag in wire and key file headers.
const SchemeID byte = 2

// Ring parameters: N=1024, Q=0x7fff801 (~2^27), 131-bit secure. The
// same ring carries both the LWE samples and the blind rotation
// accumulator so that bootstrap outputs chain directly into the next
// gate without key switching.
var paramsLiteral = rlwe.ParametersLiteral{
	LogN:    10,
	Q:       []uint64{0x7fff801},
	NTTFlag: true,
}

const baseTwoDecomposition = 7

// Scheme implements fhe.Scheme.
type Scheme struct {
	params rlwe.Parameters
	q      uint64
}

// New creates the boolean scheme.
func New() (*Scheme, error) {
	params, err := rlwe.NewParametersFromLiteral(paramsLiteral)
	if err != nil {
		return nil, err
	}
	return &Scheme{
		params: params,
		q:      params.Q()[0],
	}, nil
}

// SecretKey wraps the RLWE secret key.
type SecretKey struct {
	SK *rlwe.SecretKey
}

// PublicKey wraps the RLWE public key.
type PublicKey struct {
	PK *rlwe.PublicKey
}

// ComputeKey is the blind rotation evaluation key set.
type ComputeKey struct {
	BRK blindrot.MemBlindRotationEvaluationKeySet
}

// Ciphertext is one encrypted bit.
type Ciphertext struct {
	CT *rlwe.Ciphertext
}

// ID implements fhe.Scheme.
func (s *Scheme) ID() byte {
	return SchemeID
}

// Name implements fhe.Scheme.
func (s *Scheme) Name() string {
	return "boolean"
}

// GenerateKeys implements fhe.Scheme.
func (s *Scheme) GenerateKeys() (*fhe.KeySet, error) {
	kgen := rlwe.NewKeyGenerator(s.params)
	sk := kgen.GenSecretKeyNew()
	pk := kgen.GenPublicKeyNew(sk)

	evkParams := rlwe.EvaluationKeyParameters{
		BaseTwoDecomposition: utils.Pointy(baseTwoDecomposition),
	}
	brk := blindrot.GenEvaluationKeyNew(s.params, sk, s.params, sk,
		evkParams)

	return &fhe.KeySet{
		Secret:  &SecretKey{SK: sk},
		Public:  &PublicKey{PK: pk},
		Compute: &ComputeKey{BRK: brk},
	}, nil
}

// encodeBit returns the constant coefficient encoding the bit:
// +Q/8 for one, -Q/8 for zero.
func (s *Scheme) encodeBit(bit byte) uint64 {
	if bit&1 == 1 {
		return s.q / 8
	}
	return s.q - s.q/8
}

// EncryptBit implements fhe.Scheme.
func (s *Scheme) EncryptBit(pk fhe.PublicKey, bit byte) (fhe.Bit, error) {
	key, ok := pk.(*PublicKey)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid public key type %T", pk)
	}

	pt := rlwe.NewPlaintext(s.params, s.params.MaxLevel())
	pt.Value.Coeffs[0][0] = s.encodeBit(bit)
	if pt.IsNTT {
		s.params.RingQ().NTT(pt.Value, pt.Value)
	}

	ct := rlwe.NewCiphertext(s.params, 1, s.params.MaxLevel())
	if err := rlwe.NewEncryptor(s.params, key.PK).Encrypt(pt, ct); err != nil {
		return nil, err
	}
	return &Ciphertext{CT: ct}, nil
}

// DecryptBit implements fhe.Scheme.
func (s *Scheme) DecryptBit(sk fhe.SecretKey, ct fhe.Bit) (byte, error) {
	key, ok := sk.(*SecretKey)
	if !ok {
		return 0, fmt.Errorf("boolean: invalid secret key type %T", sk)
	}
	c, err := asBit(ct)
	if err != nil {
		return 0, err
	}

	pt := rlwe.NewPlaintext(s.params, s.params.MaxLevel())
	rlwe.NewDecryptor(s.params, key.SK).Decrypt(c.CT, pt)
	if pt.IsNTT {
		s.params.RingQ().INTT(pt.Value, pt.Value)
	}

	// +Q/8 (one) lands in (0, Q/2), -Q/8 (zero) in (Q/2, Q); the
	// decision boundaries at 0 and Q/2 are Q/8 away from both
	// codewords.
	if pt.Value.Coeffs[0][0] < s.q/2 {
		return 1, nil
	}
	return 0, nil
}

// Evaluator implements fhe.Scheme. The returned evaluator owns an
// accumulator pool and must not be shared between concurrent runs.
func (s *Scheme) Evaluator(ck fhe.ComputeKey) (fhe.Evaluator, error) {
	key, ok := ck.(*ComputeKey)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid compute key type %T", ck)
	}

	// Test polynomials output +/-1 at scale Q/8, reproducing the
	// input bit encoding. On the normalized [-1, 1] wheel a bit sits
	// at +/-0.5, so a two-bit sum lands on {-1, 0, +1} and the
	// doubled XOR sum on {-2, 0, +2} (the antipode of 0).
	scale := rlwe.NewScale(float64(s.q) / 8.0)
	ringQ := s.params.RingQ()

	polyAND := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > 0.25 {
			return 1.0
		}
		return -1.0
	}, scale, ringQ, -1, 1)

	polyOR := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > -0.25 {
			return 1.0
		}
		return -1.0
	}, scale, ringQ, -1, 1)

	polyXOR := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > -0.25 && x < 0.25 {
			return 1.0
		}
		return -1.0
	}, scale, ringQ, -1, 1)

	return &evaluator{
		s:       s,
		eval:    blindrot.NewEvaluator(s.params, s.params),
		brk:     key.BRK,
		polyAND: polyAND,
		polyOR:  polyOR,
		polyXOR: polyXOR,
	}, nil
}

// MarshalBit implements fhe.Scheme.
func (s *Scheme) MarshalBit(ct fhe.Bit) ([]byte, error) {
	c, err := asBit(ct)
	if err != nil {
		return nil, err
	}
	return c.CT.MarshalBinary()
}

// UnmarshalBit implements fhe.Scheme.
func (s *Scheme) UnmarshalBit(data []byte) (fhe.Bit, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &Ciphertext{CT: ct}, nil
}

// MarshalSecretKey implements fhe.Scheme.
func (s *Scheme) MarshalSecretKey(sk fhe.SecretKey) ([]byte, error) {
	key, ok := sk.(*SecretKey)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid secret key type %T", sk)
	}
	return key.SK.MarshalBinary()
}

// UnmarshalSecretKey implements fhe.Scheme.
func (s *Scheme) UnmarshalSecretKey(data []byte) (fhe.SecretKey, error) {
	sk := new(rlwe.SecretKey)
	if err := sk.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &SecretKey{SK: sk}, nil
}

// MarshalPublicKey implements fhe.Scheme.
func (s *Scheme) MarshalPublicKey(pk fhe.PublicKey) ([]byte, error) {
	key, ok := pk.(*PublicKey)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid public key type %T", pk)
	}
	return key.PK.MarshalBinary()
}

// UnmarshalPublicKey implements fhe.Scheme.
func (s *Scheme) UnmarshalPublicKey(data []byte) (fhe.PublicKey, error) {
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &PublicKey{PK: pk}, nil
}

// MarshalComputeKey implements fhe.Scheme. The key set is framed as
// two length-prefixed lists: blind rotation keys and automorphism
// keys.
func (s *Scheme) MarshalComputeKey(ck fhe.ComputeKey) ([]byte, error) {
	key, ok := ck.(*ComputeKey)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid compute key type %T", ck)
	}

	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf,
		uint32(len(key.BRK.BlindRotationKeys)))
	for _, brk := range key.BRK.BlindRotationKeys {
		data, err := brk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	buf = binary.BigEndian.AppendUint32(buf,
		uint32(len(key.BRK.AutomorphismKeys)))
	for _, gk := range key.BRK.AutomorphismKeys {
		data, err := gk.MarshalBinary()
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	return buf, nil
}

// UnmarshalComputeKey implements fhe.Scheme.
func (s *Scheme) UnmarshalComputeKey(data []byte) (fhe.ComputeKey, error) {
	var key ComputeKey

	count, data, err := readUint32(data)
	if err != nil {
		return nil, err
	}
	key.BRK.BlindRotationKeys = make([]*rgsw.Ciphertext, count)
	for i := range key.BRK.BlindRotationKeys {
		var chunk []byte
		chunk, data, err = readChunk(data)
		if err != nil {
			return nil, err
		}
		brk := new(rgsw.Ciphertext)
		if err := brk.UnmarshalBinary(chunk); err != nil {
			return nil, err
		}
		key.BRK.BlindRotationKeys[i] = brk
	}

	count, data, err = readUint32(data)
	if err != nil {
		return nil, err
	}
	key.BRK.AutomorphismKeys = make([]*rlwe.GaloisKey, count)
	for i := range key.BRK.AutomorphismKeys {
		var chunk []byte
		chunk, data, err = readChunk(data)
		if err != nil {
			return nil, err
		}
		gk := new(rlwe.GaloisKey)
		if err := gk.UnmarshalBinary(chunk); err != nil {
			return nil, err
		}
		key.BRK.AutomorphismKeys[i] = gk
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("boolean: %d trailing bytes in compute key",
			len(data))
	}
	return &key, nil
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("boolean: truncated compute key")
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], nil
}

func readChunk(data []byte) ([]byte, []byte, error) {
	size, data, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(data)) < size {
		return nil, nil, fmt.Errorf("boolean: truncated compute key")
	}
	return data[:size], data[size:], nil
}

func asBit(ct fhe.Bit) (*Ciphertext, error) {
	c, ok := ct.(*Ciphertext)
	if !ok {
		return nil, fmt.Errorf("boolean: invalid ciphertext type %T", ct)
	}
	return c, nil
}
