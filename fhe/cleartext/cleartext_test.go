//
// cleartext_test.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package cleartext

import (
	"testing"

	"github.com/fhexec/fhexec/fhe"
)

func testSetup(t *testing.T) (*Scheme, *fhe.KeySet, fhe.Evaluator) {
	t.Helper()
	scheme := New()
	keys, err := scheme.GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	eval, err := scheme.Evaluator(keys.Compute)
	if err != nil {
		t.Fatalf("Evaluator: %v", err)
	}
	return scheme, keys, eval
}

func TestGates(t *testing.T) {
	scheme, keys, eval := testSetup(t)

	encrypt := func(bit byte) fhe.Bit {
		ct, err := scheme.EncryptBit(keys.Public, bit)
		if err != nil {
			t.Fatalf("EncryptBit: %v", err)
		}
		return ct
	}
	decrypt := func(ct fhe.Bit) byte {
		bit, err := scheme.DecryptBit(keys.Secret, ct)
		if err != nil {
			t.Fatalf("DecryptBit: %v", err)
		}
		return bit
	}

	for a := byte(0); a <= 1; a++ {
		for b := byte(0); b <= 1; b++ {
			ca, cb := encrypt(a), encrypt(b)

			ct, err := eval.And(ca, cb)
			if err != nil {
				t.Fatalf("And: %v", err)
			}
			if got := decrypt(ct); got != a&b {
				t.Errorf("And(%d, %d) = %d", a, b, got)
			}
			ct, err = eval.Or(ca, cb)
			if err != nil {
				t.Fatalf("Or: %v", err)
			}
			if got := decrypt(ct); got != a|b {
				t.Errorf("Or(%d, %d) = %d", a, b, got)
			}
			ct, err = eval.Xor(ca, cb)
			if err != nil {
				t.Fatalf("Xor: %v", err)
			}
			if got := decrypt(ct); got != a^b {
				t.Errorf("Xor(%d, %d) = %d", a, b, got)
			}
		}
	}
	for a := byte(0); a <= 1; a++ {
		ct, err := eval.Not(encrypt(a))
		if err != nil {
			t.Fatalf("Not: %v", err)
		}
		if got := decrypt(ct); got != a^1 {
			t.Errorf("Not(%d) = %d", a, got)
		}
	}
	for sel := byte(0); sel <= 1; sel++ {
		for a := byte(0); a <= 1; a++ {
			for b := byte(0); b <= 1; b++ {
				ct, err := eval.Mux(encrypt(sel), encrypt(a), encrypt(b))
				if err != nil {
					t.Fatalf("Mux: %v", err)
				}
				expected := b
				if sel == 1 {
					expected = a
				}
				if got := decrypt(ct); got != expected {
					t.Errorf("Mux(%d, %d, %d) = %d", sel, a, b, got)
				}
			}
		}
	}
}

func TestTamperedCiphertext(t *testing.T) {
	scheme, keys, eval := testSetup(t)

	ct, err := scheme.EncryptBit(keys.Public, 1)
	if err != nil {
		t.Fatalf("EncryptBit: %v", err)
	}
	data, err := scheme.MarshalBit(ct)
	if err != nil {
		t.Fatalf("MarshalBit: %v", err)
	}
	data[0] ^= 1
	tampered, err := scheme.UnmarshalBit(data)
	if err != nil {
		t.Fatalf("UnmarshalBit: %v", err)
	}
	if _, err := scheme.DecryptBit(keys.Secret, tampered); err == nil {
		t.Errorf("DecryptBit(tampered) succeeded")
	}
	if _, err := eval.Not(tampered); err == nil {
		t.Errorf("Not(tampered) succeeded")
	}
}

func TestForeignKey(t *testing.T) {
	scheme, keys, _ := testSetup(t)

	other, err := scheme.GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	ct, err := scheme.EncryptBit(keys.Public, 1)
	if err != nil {
		t.Fatalf("EncryptBit: %v", err)
	}
	if _, err := scheme.DecryptBit(other.Secret, ct); err == nil {
		t.Errorf("DecryptBit with foreign key succeeded")
	}
}

func TestBitCodec(t *testing.T) {
	scheme, keys, _ := testSetup(t)

	for bit := byte(0); bit <= 1; bit++ {
		ct, err := scheme.EncryptBit(keys.Public, bit)
		if err != nil {
			t.Fatalf("EncryptBit: %v", err)
		}
		data, err := scheme.MarshalBit(ct)
		if err != nil {
			t.Fatalf("MarshalBit: %v", err)
		}
		if len(data) != bitSize {
			t.Errorf("MarshalBit: got %d bytes, expected %d", len(data),
				bitSize)
		}
		decoded, err := scheme.UnmarshalBit(data)
		if err != nil {
			t.Fatalf("UnmarshalBit: %v", err)
		}
		got, err := scheme.DecryptBit(keys.Secret, decoded)
		if err != nil {
			t.Fatalf("DecryptBit: %v", err)
		}
		if got != bit {
			t.Errorf("bit codec roundtrip: got %d, expected %d", got, bit)
		}
	}
	if _, err := scheme.UnmarshalBit(make([]byte, bitSize-1)); err == nil {
		t.Errorf("UnmarshalBit(short) succeeded")
	}
}
