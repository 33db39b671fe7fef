//
// wire_test.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/fhe/cleartext"
	"github.com/fhexec/fhexec/types"
)

func testKeys(t *testing.T) (*cleartext.Scheme, *fhe.KeySet) {
	t.Helper()
	scheme := cleartext.New()
	keys, err := scheme.GenerateKeys()
	require.NoError(t, err)
	return scheme, keys
}

func TestRoundTrip(t *testing.T) {
	scheme, keys := testKeys(t)

	b := NewBuilder()
	b.Encrypt(100, types.W8, false)
	b.EncryptSigned(-5, types.W16)
	b.EncryptArray([]uint64{1, 2, 3, 4}, types.W8, false)
	b.Plain(7, types.W8, false)
	b.PlainSigned(-2, types.W32)
	b.PlainArray([]uint64{10, 20}, types.W16, false)
	b.Output(types.W16, 1)
	b.Output(types.W8, 4)

	data, err := b.Build(scheme, keys.Public)
	require.NoError(t, err)

	block, err := Decode(scheme, data)
	require.NoError(t, err)

	expected := types.Signature{
		Operands: []types.Operand{
			{Kind: types.KindEncrypted, Width: types.W8, ArraySize: 1},
			{Kind: types.KindEncrypted, Width: types.W16, Signed: true,
				ArraySize: 1},
			{Kind: types.KindEncrypted, Width: types.W8, ArraySize: 4},
			{Kind: types.KindPlaintext, Width: types.W8, ArraySize: 1},
			{Kind: types.KindPlaintext, Width: types.W32, Signed: true,
				ArraySize: 1},
			{Kind: types.KindPlaintext, Width: types.W16, ArraySize: 2},
		},
		Outputs: []types.Output{
			{Width: types.W16, ArraySize: 1},
			{Width: types.W8, ArraySize: 4},
		},
	}
	if diff := cmp.Diff(expected, block.Signature()); diff != "" {
		t.Errorf("signature mismatch (-expected +got):\n%s", diff)
	}

	// Ciphertext payloads compare through decryption only.
	value, err := fhe.DecryptWord(scheme, keys.Secret, block.Slots[0].Words[0])
	require.NoError(t, err)
	require.Equal(t, uint64(100), value)

	signed, err := fhe.DecryptSigned(scheme, keys.Secret,
		block.Slots[1].Words[0])
	require.NoError(t, err)
	require.Equal(t, int64(-5), signed)

	for i, expected := range []uint64{1, 2, 3, 4} {
		value, err := fhe.DecryptWord(scheme, keys.Secret,
			block.Slots[2].Words[i])
		require.NoError(t, err)
		require.Equal(t, expected, value)
	}

	require.Equal(t, []uint64{7}, block.Slots[3].Values)
	require.Equal(t, []uint64{types.W32.ToUnsigned(-2)},
		block.Slots[4].Values)
	require.Equal(t, []uint64{10, 20}, block.Slots[5].Values)
}

func TestProbabilisticPayload(t *testing.T) {
	scheme, keys := testKeys(t)

	build := func() []byte {
		data, err := NewBuilder().
			Encrypt(100, types.W8, false).
			Output(types.W8, 1).
			Build(scheme, keys.Public)
		require.NoError(t, err)
		return data
	}
	require.NotEqual(t, build(), build(),
		"two builds of the same values produced identical payloads")
}

func TestMalformedPayload(t *testing.T) {
	scheme, keys := testKeys(t)

	data, err := NewBuilder().
		Encrypt(100, types.W8, false).
		Plain(7, types.W16, false).
		Output(types.W8, 1).
		Build(scheme, keys.Public)
	require.NoError(t, err)

	// Every truncation point fails cleanly.
	for cut := 0; cut < len(data); cut += 7 {
		_, err := Decode(scheme, data[:cut])
		require.ErrorIs(t, err, ErrMalformedPayload, "cut at %d", cut)
	}

	badMagic := append([]byte{}, data...)
	copy(badMagic, "XXXX")
	_, err = Decode(scheme, badMagic)
	require.ErrorIs(t, err, ErrMalformedPayload)

	badVersion := append([]byte{}, data...)
	badVersion[7] = 99
	_, err = Decode(scheme, badVersion)
	require.ErrorIs(t, err, ErrMalformedPayload)

	badScheme := append([]byte{}, data...)
	badScheme[8] = 0xff
	_, err = Decode(scheme, badScheme)
	require.ErrorIs(t, err, ErrMalformedPayload)

	trailing := append(append([]byte{}, data...), 0)
	_, err = Decode(scheme, trailing)
	require.ErrorIs(t, err, ErrMalformedPayload)

	badKind := append([]byte{}, data...)
	badKind[headerSize+4] = 0xff
	_, err = Decode(scheme, badKind)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestBuildErrors(t *testing.T) {
	scheme, keys := testKeys(t)

	_, err := NewBuilder().
		Encrypt(256, types.W8, false).
		Build(scheme, keys.Public)
	require.Error(t, err)

	_, err = NewBuilder().
		Plain(70000, types.W16, false).
		Build(scheme, keys.Public)
	require.Error(t, err)

	_, err = NewBuilder().
		Encrypt(1, types.BitWidth(9), false).
		Build(scheme, keys.Public)
	require.Error(t, err)

	_, err = NewBuilder().
		Output(types.W8, 0).
		Build(scheme, keys.Public)
	require.Error(t, err)
}

func TestOutputRoundTrip(t *testing.T) {
	scheme, keys := testKeys(t)

	word16, err := fhe.EncryptWord(scheme, keys.Public, 150, types.W16,
		false)
	require.NoError(t, err)
	var array []fhe.Word
	for _, v := range []uint64{5, 6, 7} {
		w, err := fhe.EncryptWord(scheme, keys.Public, v, types.W8, false)
		require.NoError(t, err)
		array = append(array, w)
	}

	data, err := EncodeOutputs(scheme, []Output{
		{Width: types.W16, Words: []fhe.Word{word16}},
		{Width: types.W8, Words: array},
	})
	require.NoError(t, err)

	outputs, err := ReadOutputs(scheme, data)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	require.Len(t, outputs[0].Words, 1)
	require.Len(t, outputs[1].Words, 3)

	value, err := fhe.DecryptWord(scheme, keys.Secret, outputs[0].Words[0])
	require.NoError(t, err)
	require.Equal(t, uint64(150), value)

	for i, expected := range []uint64{5, 6, 7} {
		value, err := fhe.DecryptWord(scheme, keys.Secret,
			outputs[1].Words[i])
		require.NoError(t, err)
		require.Equal(t, expected, value)
	}

	// Output blocks do not decode as parameter blocks.
	_, err = Decode(scheme, data)
	require.ErrorIs(t, err, ErrMalformedPayload)
}
