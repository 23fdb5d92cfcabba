// Package rewrite implements the DAG rewriter (C2 in SPEC_FULL.md
// S4.2): purely functional copy/substitute primitives over the
// interned expression DAG, each visiting a node at most once per call
// via an input-scoped memo table.
package rewrite

import (
	"math/big"

	"peepsolve/internal/ir"
)

// Memo maps a source node to the corresponding node produced by one
// rewrite call. A fresh Memo must be used per call so that rewrites
// of separate sub-expressions in one outer query don't leak into each
// other (spec.md S4.2's "copy_with_substitution" freshening note).
type Memo map[*ir.Inst]*ir.Inst

// NewMemo creates an empty per-call memo table.
func NewMemo() Memo { return make(Memo) }

// CopyWithSubstitution produces a structural copy of n: constants and
// untyped constants pass through unchanged, phis are rebuilt with the
// same block, and variables are rebuilt fresh (via freshen, or left
// identical if freshen is nil) so that multiple copies made in one
// outer query can be decorrelated. The root of the result has the
// same width as n.
func CopyWithSubstitution(c *ir.Context, n *ir.Inst, memo Memo, freshen func(v *ir.Inst) *ir.Inst) *ir.Inst {
	if out, ok := memo[n]; ok {
		return out
	}
	var out *ir.Inst
	switch n.Kind {
	case ir.Const, ir.UntypedConst:
		out = n
	case ir.Var:
		if freshen != nil {
			out = freshen(n)
		} else {
			out = n
		}
	case ir.Phi:
		ops := make([]*ir.Inst, len(n.Operands))
		for i, op := range n.Operands {
			ops[i] = CopyWithSubstitution(c, op, memo, freshen)
		}
		out = c.GetPhi(n.Width, n.Block, ops)
	default:
		ops := make([]*ir.Inst, len(n.Operands))
		for i, op := range n.Operands {
			ops[i] = CopyWithSubstitution(c, op, memo, freshen)
		}
		if n.Kind == ir.ExtractValue {
			out = c.GetExtractValue(n.Width, ops[0], n.Index)
		} else {
			out = c.GetInst(n.Kind, n.Width, ops)
		}
	}
	memo[n] = out
	return out
}

// SetBit replaces every occurrence of the variable named varName with
// (var OR (1 << bitPos)); every other node is copied structurally.
// Contract: memoized, same width at the root as n, equivalent to n
// except at the designated variable (spec.md S4.2).
func SetBit(c *ir.Context, n *ir.Inst, varName string, bitPos int) *ir.Inst {
	memo := NewMemo()
	return copyWithBitOp(c, n, varName, bitPos, memo, true)
}

// ClearBit replaces every occurrence of the variable named varName
// with (var AND ~(1 << bitPos)); analogous to SetBit.
func ClearBit(c *ir.Context, n *ir.Inst, varName string, bitPos int) *ir.Inst {
	memo := NewMemo()
	return copyWithBitOp(c, n, varName, bitPos, memo, false)
}

func copyWithBitOp(c *ir.Context, n *ir.Inst, varName string, bitPos int, memo Memo, set bool) *ir.Inst {
	if out, ok := memo[n]; ok {
		return out
	}
	var out *ir.Inst
	switch n.Kind {
	case ir.Const, ir.UntypedConst:
		out = n
	case ir.Var:
		if n.Name == varName {
			bit := new(big.Int).Lsh(big.NewInt(1), uint(bitPos))
			if set {
				mask := c.GetConst(n.Width, bit)
				out = c.GetInst(ir.Or, n.Width, []*ir.Inst{n, mask})
			} else {
				inv := ir.Mask(new(big.Int).Not(bit), n.Width)
				mask := c.GetConst(n.Width, inv)
				out = c.GetInst(ir.And, n.Width, []*ir.Inst{n, mask})
			}
		} else {
			out = n
		}
	case ir.Phi:
		ops := make([]*ir.Inst, len(n.Operands))
		for i, op := range n.Operands {
			ops[i] = copyWithBitOp(c, op, varName, bitPos, memo, set)
		}
		out = c.GetPhi(n.Width, n.Block, ops)
	default:
		ops := make([]*ir.Inst, len(n.Operands))
		for i, op := range n.Operands {
			ops[i] = copyWithBitOp(c, op, varName, bitPos, memo, set)
		}
		if n.Kind == ir.ExtractValue {
			out = c.GetExtractValue(n.Width, ops[0], n.Index)
		} else {
			out = c.GetInst(n.Kind, n.Width, ops)
		}
	}
	memo[n] = out
	return out
}
