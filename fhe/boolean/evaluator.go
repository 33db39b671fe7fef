//
// evaluator.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package boolean

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rgsw/blindrot"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/fhexec/fhexec/fhe"
)

// evaluator implements fhe.Evaluator with one programmable bootstrap
// per binary gate. NOT is a free negation and MUX is composed from
// AND, OR and NOT. The blind rotation evaluator owns an accumulator
// pool, so an evaluator must not be shared between concurrent runs.
type evaluator struct {
	s       *Scheme
	eval    *blindrot.Evaluator
	brk     blindrot.MemBlindRotationEvaluationKeySet
	polyAND ring.Poly
	polyOR  ring.Poly
	polyXOR ring.Poly
}

func (e *evaluator) newCiphertext(like *rlwe.Ciphertext) *rlwe.Ciphertext {
	ct := rlwe.NewCiphertext(e.s.params, 1, e.s.params.MaxLevel())
	*ct.MetaData = *like.MetaData
	return ct
}

// add returns the coefficient-wise sum of two bit ciphertexts. On the
// normalized wheel the sum of two bits at +/-0.5 lands on {-1, 0, +1},
// which the gate test polynomials discriminate.
func (e *evaluator) add(a, b *Ciphertext) *rlwe.Ciphertext {
	ringQ := e.s.params.RingQ()
	ct := e.newCiphertext(a.CT)
	ringQ.Add(a.CT.Value[0], b.CT.Value[0], ct.Value[0])
	ringQ.Add(a.CT.Value[1], b.CT.Value[1], ct.Value[1])
	return ct
}

// bootstrap blind-rotates the test polynomial by the phase of ct and
// extracts the constant slot, refreshing the noise in the process.
func (e *evaluator) bootstrap(ct *rlwe.Ciphertext, testPoly *ring.Poly) (
	fhe.Bit, error) {

	res, err := e.eval.Evaluate(ct, map[int]*ring.Poly{0: testPoly}, e.brk)
	if err != nil {
		return nil, err
	}
	out, ok := res[0]
	if !ok {
		return nil, fmt.Errorf("boolean: bootstrap produced no output slot")
	}
	return &Ciphertext{CT: out}, nil
}

func (e *evaluator) gate2(a, b fhe.Bit, testPoly *ring.Poly) (fhe.Bit, error) {
	ca, err := asBit(a)
	if err != nil {
		return nil, err
	}
	cb, err := asBit(b)
	if err != nil {
		return nil, err
	}
	return e.bootstrap(e.add(ca, cb), testPoly)
}

// And implements fhe.Evaluator.
func (e *evaluator) And(a, b fhe.Bit) (fhe.Bit, error) {
	return e.gate2(a, b, &e.polyAND)
}

// Or implements fhe.Evaluator.
func (e *evaluator) Or(a, b fhe.Bit) (fhe.Bit, error) {
	return e.gate2(a, b, &e.polyOR)
}

// Xor implements fhe.Evaluator. The sum is doubled before the
// bootstrap: equal bits land on the antipode of zero and differing
// bits on zero itself, which the XOR test polynomial separates.
func (e *evaluator) Xor(a, b fhe.Bit) (fhe.Bit, error) {
	ca, err := asBit(a)
	if err != nil {
		return nil, err
	}
	cb, err := asBit(b)
	if err != nil {
		return nil, err
	}
	sum := e.add(ca, cb)
	doubled := &Ciphertext{CT: sum}
	return e.bootstrap(e.add(doubled, doubled), &e.polyXOR)
}

// Not implements fhe.Evaluator. Negation swaps the +Q/8 and -Q/8
// codewords without touching the noise, so no bootstrap is needed.
func (e *evaluator) Not(a fhe.Bit) (fhe.Bit, error) {
	ca, err := asBit(a)
	if err != nil {
		return nil, err
	}
	ringQ := e.s.params.RingQ()
	ct := e.newCiphertext(ca.CT)
	ringQ.Neg(ca.CT.Value[0], ct.Value[0])
	ringQ.Neg(ca.CT.Value[1], ct.Value[1])
	return &Ciphertext{CT: ct}, nil
}

// Mux implements fhe.Evaluator.
func (e *evaluator) Mux(sel, a, b fhe.Bit) (fhe.Bit, error) {
	hi, err := e.And(sel, a)
	if err != nil {
		return nil, err
	}
	notSel, err := e.Not(sel)
	if err != nil {
		return nil, err
	}
	lo, err := e.And(notSel, b)
	if err != nil {
		return nil, err
	}
	return e.Or(hi, lo)
}

// Constant implements fhe.Evaluator. The result is a trivial
// ciphertext: the mask polynomial is zero and the body carries the
// codeword, so no key material is needed.
func (e *evaluator) Constant(bit byte) (fhe.Bit, error) {
	ct := rlwe.NewCiphertext(e.s.params, 1, e.s.params.MaxLevel())
	ct.Value[0].Coeffs[0][0] = e.s.encodeBit(bit)
	e.s.params.RingQ().NTT(ct.Value[0], ct.Value[0])
	ct.IsNTT = true
	return &Ciphertext{CT: ct}, nil
}
