//
// ops.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package engine

import (
	"fmt"

	"github.com/fhexec/fhexec/fhe"
	"github.com/fhexec/fhexec/program"
)

// wire reads a single wire, failing on use before assignment.
func (c *context) wire(idx uint32) (fhe.Bit, error) {
	bit := c.wires[idx]
	if bit == nil {
		return nil, fmt.Errorf("use of unset wire w%d", idx)
	}
	return bit, nil
}

// word reads a wire range into a fresh slice, LSB first. The copy
// makes word operations safe when destination and source ranges
// alias.
func (c *context) word(base uint32, bits int) ([]fhe.Bit, error) {
	word := make([]fhe.Bit, bits)
	for i := range word {
		bit, err := c.wire(base + uint32(i))
		if err != nil {
			return nil, err
		}
		word[i] = bit
	}
	return word, nil
}

func (c *context) setWord(base uint32, bits []fhe.Bit) {
	for i, bit := range bits {
		c.wires[base+uint32(i)] = bit
	}
}

func (c *context) bitGate(i program.Instr) error {
	a, err := c.wire(i.A)
	if err != nil {
		return err
	}
	b, err := c.wire(i.B)
	if err != nil {
		return err
	}
	var out fhe.Bit
	switch i.Op {
	case program.AND:
		out, err = c.and(a, b)
	case program.XOR:
		out, err = c.xor(a, b)
	case program.OR:
		out, err = c.or(a, b)
	}
	if err != nil {
		return err
	}
	c.wires[i.Dst] = out
	return nil
}

func (c *context) bitNot(i program.Instr) error {
	a, err := c.wire(i.A)
	if err != nil {
		return err
	}
	out, err := c.not(a)
	if err != nil {
		return err
	}
	c.wires[i.Dst] = out
	return nil
}

func (c *context) bitMux(i program.Instr) error {
	sel, err := c.wire(i.C)
	if err != nil {
		return err
	}
	a, err := c.wire(i.A)
	if err != nil {
		return err
	}
	b, err := c.wire(i.B)
	if err != nil {
		return err
	}
	out, err := c.mux(sel, a, b)
	if err != nil {
		return err
	}
	c.wires[i.Dst] = out
	return nil
}

func (c *context) mov(i program.Instr) error {
	word, err := c.word(i.A, i.Width.Bits())
	if err != nil {
		return err
	}
	c.setWord(i.Dst, word)
	return nil
}

// movx copies the array element selected by a plaintext counter
// register. The element index is a run-time value, so the range check
// happens here rather than in the validator.
func (c *context) movx(i program.Instr) error {
	idx := c.regs[i.Reg]
	width := uint64(i.Width.Bits())
	if idx >= uint64(c.e.NumWires) ||
		uint64(i.A)+(idx+1)*width > uint64(c.e.NumWires) {
		return fmt.Errorf("array index r%d=%d out of range", i.Reg, idx)
	}
	word, err := c.word(i.A+uint32(idx)*uint32(width), i.Width.Bits())
	if err != nil {
		return err
	}
	c.setWord(i.Dst, word)
	return nil
}

func (c *context) shl(i program.Instr) error {
	n := i.Width.Bits()
	src, err := c.word(i.A, n)
	if err != nil {
		return err
	}
	out := make([]fhe.Bit, n)
	for j := 0; j < int(i.Shift); j++ {
		bit, err := c.constant(0)
		if err != nil {
			return err
		}
		out[j] = bit
	}
	copy(out[i.Shift:], src[:n-int(i.Shift)])
	c.setWord(i.Dst, out)
	return nil
}

func (c *context) extend(i program.Instr) error {
	src, err := c.word(i.A, i.From.Bits())
	if err != nil {
		return err
	}
	out := make([]fhe.Bit, i.Width.Bits())
	copy(out, src)
	for j := i.From.Bits(); j < i.Width.Bits(); j++ {
		if i.Op == program.SEXT {
			out[j] = src[i.From.Bits()-1]
		} else {
			bit, err := c.constant(0)
			if err != nil {
				return err
			}
			out[j] = bit
		}
	}
	c.setWord(i.Dst, out)
	return nil
}

func (c *context) ldc(i program.Instr) error {
	value := i.Width.Mask(c.bin.Consts[i.A])
	out := make([]fhe.Bit, i.Width.Bits())
	for j := range out {
		bit, err := c.constant(byte(value>>j) & 1)
		if err != nil {
			return err
		}
		out[j] = bit
	}
	c.setWord(i.Dst, out)
	return nil
}

// addSub is a ripple-carry adder. SUB computes a + NOT(b) + 1, the
// two's complement, so both directions share the carry chain.
func (c *context) addSub(i program.Instr) error {
	n := i.Width.Bits()
	a, err := c.word(i.A, n)
	if err != nil {
		return err
	}
	b, err := c.word(i.B, n)
	if err != nil {
		return err
	}

	var carry fhe.Bit
	if i.Op == program.SUB {
		carry, err = c.constant(1)
		if err != nil {
			return err
		}
	}

	sum := make([]fhe.Bit, n)
	for k := 0; k < n; k++ {
		bk := b[k]
		if i.Op == program.SUB {
			bk, err = c.not(bk)
			if err != nil {
				return err
			}
		}
		axb, err := c.xor(a[k], bk)
		if err != nil {
			return err
		}
		if carry == nil {
			sum[k] = axb
			if k < n-1 {
				carry, err = c.and(a[k], bk)
				if err != nil {
					return err
				}
			}
			continue
		}
		sum[k], err = c.xor(axb, carry)
		if err != nil {
			return err
		}
		if k < n-1 {
			ab, err := c.and(a[k], bk)
			if err != nil {
				return err
			}
			ca, err := c.and(carry, axb)
			if err != nil {
				return err
			}
			carry, err = c.xor(ab, ca)
			if err != nil {
				return err
			}
		}
	}
	c.setWord(i.Dst, sum)
	return nil
}

// eq ANDs the per-bit XNORs into a single equality wire.
func (c *context) eq(i program.Instr) error {
	n := i.Width.Bits()
	a, err := c.word(i.A, n)
	if err != nil {
		return err
	}
	b, err := c.word(i.B, n)
	if err != nil {
		return err
	}

	var acc fhe.Bit
	for k := 0; k < n; k++ {
		x, err := c.xor(a[k], b[k])
		if err != nil {
			return err
		}
		xn, err := c.not(x)
		if err != nil {
			return err
		}
		if acc == nil {
			acc = xn
			continue
		}
		acc, err = c.and(acc, xn)
		if err != nil {
			return err
		}
	}
	c.wires[i.Dst] = acc
	return nil
}

// greaterThan walks the bits LSB to MSB, keeping "a greater so far":
// where the bits differ, the higher bit decides. The signed variant
// inverts the sign bits, mapping two's complement onto unsigned order.
func (c *context) greaterThan(i program.Instr) error {
	n := i.Width.Bits()
	a, err := c.word(i.A, n)
	if err != nil {
		return err
	}
	b, err := c.word(i.B, n)
	if err != nil {
		return err
	}

	gt, err := c.constant(0)
	if err != nil {
		return err
	}
	for k := 0; k < n; k++ {
		ak, bk := a[k], b[k]
		if i.Op == program.GTS && k == n-1 {
			ak, err = c.not(ak)
			if err != nil {
				return err
			}
			bk, err = c.not(bk)
			if err != nil {
				return err
			}
		}
		diff, err := c.xor(ak, bk)
		if err != nil {
			return err
		}
		gt, err = c.mux(diff, ak, gt)
		if err != nil {
			return err
		}
	}
	c.wires[i.Dst] = gt
	return nil
}
