//
// engine_test.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package engine_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fhexec/fhexec/engine"
	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/fhe/cleartext"
	"github.com/fhexec/fhexec/program"
	"github.com/fhexec/fhexec/types"
	"github.com/fhexec/fhexec/wire"
)

type testEnv struct {
	bin    *program.Binary
	scheme *cleartext.Scheme
	keys   *fhe.KeySet
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	raw, err := program.Examples()
	if err != nil {
		t.Fatalf("Examples: %v", err)
	}
	bin, err := program.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	scheme := cleartext.New()
	keys, err := scheme.GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	return &testEnv{
		bin:    bin,
		scheme: scheme,
		keys:   keys,
	}
}

// run drives the full protocol path: serialize the parameter block,
// decode it executor-side, interpret, and serialize the outputs back.
func (env *testEnv) run(t *testing.T, entry string,
	b *wire.Builder) ([]wire.Output, *engine.Result) {

	t.Helper()
	result, err := env.tryRun(t, entry, b)
	if err != nil {
		t.Fatalf("Run(%s): %v", entry, err)
	}

	data, err := wire.EncodeOutputs(env.scheme, result.Outputs)
	if err != nil {
		t.Fatalf("EncodeOutputs: %v", err)
	}
	outputs, err := wire.ReadOutputs(env.scheme, data)
	if err != nil {
		t.Fatalf("ReadOutputs: %v", err)
	}
	return outputs, result
}

func (env *testEnv) tryRun(t *testing.T, entry string,
	b *wire.Builder) (*engine.Result, error) {

	t.Helper()
	data, err := b.Build(env.scheme, env.keys.Public)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	params, err := wire.Decode(env.scheme, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return engine.Run(env.bin, entry, params, env.scheme, env.keys.Compute)
}

func (env *testEnv) decrypt(t *testing.T, w fhe.Word) uint64 {
	t.Helper()
	value, err := fhe.DecryptWord(env.scheme, env.keys.Secret, w)
	if err != nil {
		t.Fatalf("DecryptWord: %v", err)
	}
	return value
}

func TestAddUnsigned(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		entry   string
		width   types.BitWidth
		a, b    uint64
		outputW types.BitWidth
		result  uint64
	}{
		{"add_u8", types.W8, 100, 50, types.W8, 150},
		{"add_u8", types.W8, 200, 100, types.W8, 44}, // mod 2^8
		{"add_u16", types.W16, 1000, 2000, types.W16, 3000},
		{"add_u32", types.W32, 0xffffffff, 1, types.W32, 0},
		{"add_u64", types.W64, 1 << 62, 1 << 62, types.W64, 1 << 63},
	}
	for _, test := range tests {
		outputs, _ := env.run(t, test.entry, wire.NewBuilder().
			Encrypt(test.a, test.width, false).
			Encrypt(test.b, test.width, false).
			Output(test.outputW, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.result {
			t.Errorf("%s(%d, %d) = %d, expected %d", test.entry, test.a,
				test.b, got, test.result)
		}
	}
}

func TestAddSigned(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		entry  string
		width  types.BitWidth
		a, b   int64
		result int64
	}{
		{"add_i8", types.W8, -5, 3, -2},
		{"add_i8", types.W8, -100, -28, -128},
		{"add_i16", types.W16, 32767, 1, -32768}, // wraps
		{"add_i32", types.W32, -1000000, 999999, -1},
		{"add_i64", types.W64, -42, 42, 0},
	}
	for _, test := range tests {
		outputs, _ := env.run(t, test.entry, wire.NewBuilder().
			EncryptSigned(test.a, test.width).
			EncryptSigned(test.b, test.width).
			Output(test.width, 1))
		word := outputs[0].Words[0]
		word.Signed = true
		got, err := fhe.DecryptSigned(env.scheme, env.keys.Secret, word)
		if err != nil {
			t.Fatalf("DecryptSigned: %v", err)
		}
		if got != test.result {
			t.Errorf("%s(%d, %d) = %d, expected %d", test.entry, test.a,
				test.b, got, test.result)
		}
	}
}

func TestInc(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct{ in, out uint64 }{
		{41, 42},
		{65535, 0},
	} {
		outputs, _ := env.run(t, "inc", wire.NewBuilder().
			Encrypt(test.in, types.W16, false).
			Output(types.W16, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("inc(%d) = %d, expected %d", test.in, got, test.out)
		}
	}
}

func TestSub(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct{ a, b, out uint64 }{
		{7, 5, 2},
		{5, 7, 254}, // mod 2^8
		{0, 1, 255},
	} {
		outputs, _ := env.run(t, "sub_u8", wire.NewBuilder().
			Encrypt(test.a, types.W8, false).
			Encrypt(test.b, types.W8, false).
			Output(types.W8, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("sub_u8(%d, %d) = %d, expected %d", test.a, test.b,
				got, test.out)
		}
	}
}

func TestGreaterThan(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct {
		a, b uint64
		out  uint64
	}{
		{200, 100, 1},
		{100, 200, 0},
		{7, 7, 0},
		{255, 0, 1},
	} {
		outputs, _ := env.run(t, "greater_than_u8", wire.NewBuilder().
			Encrypt(test.a, types.W8, false).
			Encrypt(test.b, types.W8, false).
			Output(types.W8, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("greater_than_u8(%d, %d) = %d, expected %d", test.a,
				test.b, got, test.out)
		}
	}
}

func TestSumArray(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct {
		arr []uint64
		out uint64
	}{
		{[]uint64{1, 2, 3, 4}, 10},
		{[]uint64{255, 255, 255, 255}, 1020}, // widens into u16
		{[]uint64{0, 0, 0, 0}, 0},
	} {
		outputs, _ := env.run(t, "sum_array_u8", wire.NewBuilder().
			EncryptArray(test.arr, types.W8, false).
			Output(types.W16, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("sum_array_u8(%v) = %d, expected %d", test.arr, got,
				test.out)
		}
	}
}

func TestAddArrays(t *testing.T) {
	env := newEnv(t)

	outputs, _ := env.run(t, "add_arrays_u8", wire.NewBuilder().
		EncryptArray([]uint64{1, 2, 3, 4}, types.W8, false).
		EncryptArray([]uint64{10, 20, 30, 40}, types.W8, false).
		Output(types.W8, 4))

	expected := []uint64{11, 22, 33, 44}
	if len(outputs[0].Words) != len(expected) {
		t.Fatalf("got %d output words, expected %d", len(outputs[0].Words),
			len(expected))
	}
	for i, word := range outputs[0].Words {
		if got := env.decrypt(t, word); got != expected[i] {
			t.Errorf("add_arrays_u8[%d] = %d, expected %d", i, got,
				expected[i])
		}
	}
}

func TestScale(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct {
		ct, scale uint64
		out       uint64
	}{
		{20, 6, 120},
		{255, 255, 65025},
		{77, 0, 0},
	} {
		outputs, _ := env.run(t, "scale_u8", wire.NewBuilder().
			Encrypt(test.ct, types.W8, false).
			Plain(test.scale, types.W8, false).
			Output(types.W16, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("scale_u8(%d, %d) = %d, expected %d", test.ct,
				test.scale, got, test.out)
		}
	}
}

func TestMax(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct{ a, b, out uint64 }{
		{3, 9, 9},
		{9, 3, 9},
		{5, 5, 5},
	} {
		outputs, _ := env.run(t, "max_u8", wire.NewBuilder().
			Encrypt(test.a, types.W8, false).
			Encrypt(test.b, types.W8, false).
			Output(types.W8, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("max_u8(%d, %d) = %d, expected %d", test.a, test.b,
				got, test.out)
		}
	}
}

func TestMuxSelect(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct{ sel, a, b, out uint64 }{
		{1, 42, 99, 42},
		{0, 42, 99, 99},
		{3, 7, 8, 7},
	} {
		outputs, _ := env.run(t, "mux_select_u8", wire.NewBuilder().
			Encrypt(test.sel, types.W8, false).
			Encrypt(test.a, types.W8, false).
			Encrypt(test.b, types.W8, false).
			Output(types.W8, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("mux_select_u8(%d, %d, %d) = %d, expected %d",
				test.sel, test.a, test.b, got, test.out)
		}
	}
}

func TestIsZero(t *testing.T) {
	env := newEnv(t)

	for _, test := range []struct{ a, out uint64 }{
		{0, 1},
		{5, 0},
		{255, 0},
	} {
		outputs, _ := env.run(t, "is_zero_u8", wire.NewBuilder().
			Encrypt(test.a, types.W8, false).
			Output(types.W8, 1))
		if got := env.decrypt(t, outputs[0].Words[0]); got != test.out {
			t.Errorf("is_zero_u8(%d) = %d, expected %d", test.a, got,
				test.out)
		}
	}
}

func TestEntryPointNotFound(t *testing.T) {
	env := newEnv(t)

	_, err := env.tryRun(t, "no_such_function", wire.NewBuilder().
		Encrypt(1, types.W8, false).
		Output(types.W8, 1))
	if !errors.Is(err, engine.ErrEntryPointNotFound) {
		t.Errorf("got %v, expected %v", err, engine.ErrEntryPointNotFound)
	}
}

func TestSignatureMismatch(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name    string
		builder *wire.Builder
	}{
		{"wrong width", wire.NewBuilder().
			Encrypt(100, types.W16, false).
			Encrypt(50, types.W16, false).
			Output(types.W8, 1)},
		{"wrong kind", wire.NewBuilder().
			Plain(100, types.W8, false).
			Encrypt(50, types.W8, false).
			Output(types.W8, 1)},
		{"wrong signedness", wire.NewBuilder().
			EncryptSigned(100, types.W8).
			EncryptSigned(50, types.W8).
			Output(types.W8, 1)},
		{"missing slot", wire.NewBuilder().
			Encrypt(100, types.W8, false).
			Output(types.W8, 1)},
		{"wrong output", wire.NewBuilder().
			Encrypt(100, types.W8, false).
			Encrypt(50, types.W8, false).
			Output(types.W16, 1)},
		{"missing output", wire.NewBuilder().
			Encrypt(100, types.W8, false).
			Encrypt(50, types.W8, false)},
	}
	for _, test := range tests {
		result, err := env.tryRun(t, "add_u8", test.builder)
		if !errors.Is(err, program.ErrSignatureMismatch) {
			t.Errorf("%s: got %v, expected %v", test.name, err,
				program.ErrSignatureMismatch)
		}
		if result != nil {
			t.Errorf("%s: partial output returned", test.name)
		}
	}
}

// TestIndependentEncryptions runs the same plaintext inputs through
// two independent encryptions; the decrypted results must agree even
// though the ciphertext payloads differ.
func TestIndependentEncryptions(t *testing.T) {
	env := newEnv(t)

	var results []uint64
	for i := 0; i < 2; i++ {
		outputs, _ := env.run(t, "add_u8", wire.NewBuilder().
			Encrypt(100, types.W8, false).
			Encrypt(50, types.W8, false).
			Output(types.W8, 1))
		results = append(results, env.decrypt(t, outputs[0].Words[0]))
	}
	if results[0] != results[1] {
		t.Errorf("independent encryptions disagree: %d != %d", results[0],
			results[1])
	}
}

// TestConcurrentRuns executes one shared validated Binary and compute
// key from parallel runs; both are read-only during execution and the
// runs must not interfere.
func TestConcurrentRuns(t *testing.T) {
	env := newEnv(t)

	for i := 0; i < 8; i++ {
		a := uint64(i * 31)
		b := uint64(i * 7)
		t.Run(fmt.Sprintf("add_u8_%d", i), func(t *testing.T) {
			t.Parallel()
			outputs, _ := env.run(t, "add_u8", wire.NewBuilder().
				Encrypt(a, types.W8, false).
				Encrypt(b, types.W8, false).
				Output(types.W8, 1))
			expected := (a + b) & 0xff
			if got := env.decrypt(t, outputs[0].Words[0]); got != expected {
				t.Errorf("add_u8(%d, %d) = %d, expected %d", a, b, got,
					expected)
			}
		})
		t.Run(fmt.Sprintf("sum_array_u8_%d", i), func(t *testing.T) {
			t.Parallel()
			arr := []uint64{a & 0xff, b & 0xff, 3, 4}
			outputs, _ := env.run(t, "sum_array_u8", wire.NewBuilder().
				EncryptArray(arr, types.W8, false).
				Output(types.W16, 1))
			expected := arr[0] + arr[1] + arr[2] + arr[3]
			if got := env.decrypt(t, outputs[0].Words[0]); got != expected {
				t.Errorf("sum_array_u8(%v) = %d, expected %d", arr, got,
					expected)
			}
		})
	}
}

func TestStats(t *testing.T) {
	env := newEnv(t)

	_, result := env.run(t, "add_u8", wire.NewBuilder().
		Encrypt(100, types.W8, false).
		Encrypt(50, types.W8, false).
		Output(types.W8, 1))

	if result.Stats[engine.GateAnd] == 0 ||
		result.Stats[engine.GateXor] == 0 {
		t.Errorf("add_u8 stats: %s", result.Stats)
	}
	if result.Stats.Count() == 0 || result.Stats.Cost() == 0 {
		t.Errorf("empty stats: count=%d cost=%d", result.Stats.Count(),
			result.Stats.Cost())
	}
}
