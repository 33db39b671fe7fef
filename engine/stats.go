//
// stats.go
//
// Copyright (c) 2025 FHEXEC authors
//
// All rights reserved.
//

package engine

import (
	"fmt"
)

// GateOp identifies a homomorphic gate kind for accounting.
type GateOp byte

// Gate kinds.
const (
	GateAnd GateOp = iota
	GateOr
	GateXor
	GateNot
	GateMux
	GateConst
	numGateOps
)

func (op GateOp) String() string {
	switch op {
	case GateAnd:
		return "AND"
	case GateOr:
		return "OR"
	case GateXor:
		return "XOR"
	case GateNot:
		return "NOT"
	case GateMux:
		return "MUX"
	case GateConst:
		return "CONST"
	default:
		return fmt.Sprintf("{GateOp %d}", byte(op))
	}
}

// Stats counts the homomorphic gates a run evaluated, by kind.
type Stats [numGateOps]uint64

// Add adds the argument statistics.
func (s *Stats) Add(o Stats) {
	for i, count := range o {
		s[i] += count
	}
}

// Count returns the total number of gates evaluated.
func (s Stats) Count() uint64 {
	var sum uint64
	for _, count := range s {
		sum += count
	}
	return sum
}

// Cost computes the relative computational cost of the run. Binary
// gates bootstrap once, MUX three times; NOT and constants are nearly
// free.
func (s Stats) Cost() uint64 {
	return (s[GateAnd]+s[GateOr]+s[GateXor])*4 + s[GateMux]*12 +
		s[GateNot] + s[GateConst]
}

func (s Stats) String() string {
	var str string
	for op := GateAnd; op < numGateOps; op++ {
		if len(str) > 0 {
			str += " "
		}
		str += fmt.Sprintf("%s=%d", op, s[op])
	}
	return str
}
