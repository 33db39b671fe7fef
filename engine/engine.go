//
// engine.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

// Package engine interprets validated program binaries over ciphertext
// wires, using only a compute key. A run is single-threaded over an
// exclusively owned context; the binary and the compute key are shared
// read-only.
package engine

import (
	"errors"
	"fmt"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/program"
	"github.com/fhexec/fhexec/types"
	"github.com/fhexec/fhexec/wire"
)

// Error kinds. Signature mismatches reuse program.ErrSignatureMismatch
// since the engine re-checks the same contract at run time.
var (
	ErrEntryPointNotFound = errors.New("entry point not found")
	ErrExecution          = errors.New("execution error")
)

// maxSteps bounds the interpreted instruction count per run. Plaintext
// counter loops cannot be proven terminating at validation time.
const maxSteps = 1 << 24

// Result is a completed run: the output ciphertext words and the gate
// statistics.
type Result struct {
	Outputs []wire.Output
	Stats   Stats
}

// Run resolves the entry point, re-verifies the parameter block
// against its signature, and interprets the instruction stream. Any
// inconsistency aborts the run; no partial output is ever returned.
func Run(bin *program.Binary, entry string, params *wire.ParameterBlock,
	scheme fhe.Scheme, ck fhe.ComputeKey) (*Result, error) {

	e, err := bin.Entry(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrEntryPointNotFound, entry)
	}

	// The parameter block is untrusted separately from the binary:
	// the validator never saw it, so the signature is checked here
	// even though the client codec produced a self-consistent block.
	if !params.Signature().Equal(e.Signature()) {
		return nil, fmt.Errorf("%w: parameter block %s does not match %s %s",
			program.ErrSignatureMismatch, params.Signature(), e.Name,
			e.Signature())
	}

	eval, err := scheme.Evaluator(ck)
	if err != nil {
		return nil, err
	}

	ctx := &context{
		e:     e,
		bin:   bin,
		eval:  eval,
		wires: make([]fhe.Bit, e.NumWires),
	}
	if err := ctx.bind(params); err != nil {
		return nil, err
	}
	if err := ctx.interpret(); err != nil {
		return nil, err
	}
	outputs, err := ctx.collect()
	if err != nil {
		return nil, err
	}
	return &Result{
		Outputs: outputs,
		Stats:   ctx.stats,
	}, nil
}

// context is the transient per-run state: bound and intermediate
// wires, plaintext counter registers, and the instruction pointer.
type context struct {
	e     *program.EntryPoint
	bin   *program.Binary
	eval  fhe.Evaluator
	wires []fhe.Bit
	regs  [program.NumRegs]uint64
	stats Stats
}

// Gate wrappers count statistics around the scheme evaluator.

func (c *context) and(a, b fhe.Bit) (fhe.Bit, error) {
	c.stats[GateAnd]++
	return c.eval.And(a, b)
}

func (c *context) or(a, b fhe.Bit) (fhe.Bit, error) {
	c.stats[GateOr]++
	return c.eval.Or(a, b)
}

func (c *context) xor(a, b fhe.Bit) (fhe.Bit, error) {
	c.stats[GateXor]++
	return c.eval.Xor(a, b)
}

func (c *context) not(a fhe.Bit) (fhe.Bit, error) {
	c.stats[GateNot]++
	return c.eval.Not(a)
}

func (c *context) mux(sel, a, b fhe.Bit) (fhe.Bit, error) {
	c.stats[GateMux]++
	return c.eval.Mux(sel, a, b)
}

func (c *context) constant(bit byte) (fhe.Bit, error) {
	c.stats[GateConst]++
	return c.eval.Constant(bit)
}

// bind maps the parameter block onto wires 0..InputBits-1 in slot
// order, LSB first. Plaintext values become trivial constant
// ciphertexts so the instruction stream sees a uniform wire model.
func (c *context) bind(params *wire.ParameterBlock) error {
	var next uint32
	for i, slot := range params.Slots {
		switch slot.Operand.Kind {
		case types.KindEncrypted:
			for _, word := range slot.Words {
				if len(word.Bits) != slot.Operand.Width.Bits() {
					return fmt.Errorf("%w: slot %d: got %d bits, width %s",
						fhe.ErrInvalidCiphertextLength, i, len(word.Bits),
						slot.Operand.Width)
				}
				for _, bit := range word.Bits {
					c.wires[next] = bit
					next++
				}
			}
		case types.KindPlaintext:
			for _, value := range slot.Values {
				for j := 0; j < slot.Operand.Width.Bits(); j++ {
					bit, err := c.constant(byte(value>>j) & 1)
					if err != nil {
						return err
					}
					c.wires[next] = bit
					next++
				}
			}
		default:
			return fmt.Errorf("%w: slot %d: unknown kind", ErrExecution, i)
		}
	}
	return nil
}

// interpret runs the function body to its RET.
func (c *context) interpret() error {
	var pc uint32
	var steps int

	for {
		if steps++; steps > maxSteps {
			return fmt.Errorf("%w: step limit exceeded", ErrExecution)
		}
		if pc >= uint32(len(c.e.Code)) {
			return fmt.Errorf("%w: instruction pointer %d out of range",
				ErrExecution, pc)
		}
		i := c.e.Code[pc]

		var err error
		switch i.Op {
		case program.AND, program.XOR, program.OR:
			err = c.bitGate(i)
		case program.NOT:
			err = c.bitNot(i)
		case program.MUX:
			err = c.bitMux(i)
		case program.MOV:
			err = c.mov(i)
		case program.MOVX:
			err = c.movx(i)
		case program.SHL:
			err = c.shl(i)
		case program.ZEXT, program.SEXT:
			err = c.extend(i)
		case program.LDC:
			err = c.ldc(i)
		case program.ADD, program.SUB:
			err = c.addSub(i)
		case program.EQ:
			err = c.eq(i)
		case program.GTU, program.GTS:
			err = c.greaterThan(i)
		case program.LDI:
			c.regs[i.Reg] = i.Imm
		case program.ADDI:
			c.regs[i.Reg] += i.Imm
		case program.JMP:
			pc = i.Target
			continue
		case program.BNE:
			if c.regs[i.Reg] != i.Imm {
				pc = i.Target
				continue
			}
		case program.RET:
			return nil
		default:
			return fmt.Errorf("%w: instruction %d: %s", ErrExecution, pc,
				i.Op)
		}
		if err != nil {
			return fmt.Errorf("%w: instruction %d (%s): %v", ErrExecution,
				pc, i, err)
		}
		pc++
	}
}

// collect gathers the declared output wires into ciphertext words.
func (c *context) collect() ([]wire.Output, error) {
	outputs := make([]wire.Output, 0, len(c.e.Outputs))
	for i, decl := range c.e.Outputs {
		out := wire.Output{
			Width: decl.Width,
		}
		base := decl.WireBase
		for j := uint32(0); j < decl.ArraySize; j++ {
			word := fhe.Word{
				Width: decl.Width,
				Bits:  make([]fhe.Bit, decl.Width.Bits()),
			}
			for k := range word.Bits {
				bit := c.wires[base]
				if bit == nil {
					return nil, fmt.Errorf(
						"%w: output %d reads unset wire w%d", ErrExecution,
						i, base)
				}
				word.Bits[k] = bit
				base++
			}
			out.Words = append(out.Words, word)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
