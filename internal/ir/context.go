package ir

import (
	"fmt"
	"math/big"
	"strings"
)

// Context is the interning context (IC in spec.md / original_source):
// the arena that owns every Inst and hash-conses structurally
// identical nodes to the same pointer. It never mutates a node once
// interned. Context itself is one of the spec's declared external
// collaborators, but the rewriter and prober need a concrete one to
// build new nodes against, so peepsolve carries a straightforward
// implementation rather than leaving it abstract.
type Context struct {
	table map[string]*Inst
}

// NewContext creates an empty interning context.
func NewContext() *Context {
	return &Context{table: make(map[string]*Inst)}
}

func keyOf(kind Kind, width int, ops []*Inst, name string, valueStr string, block *Block, index int, harvest HarvestKind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d/%s/%s/%p/%d/%d|", kind, width, name, valueStr, block, index, harvest)
	for _, o := range ops {
		fmt.Fprintf(&b, "%p,", o)
	}
	return b.String()
}

func (c *Context) intern(n *Inst) *Inst {
	valueStr := ""
	if n.Value != nil {
		valueStr = n.Value.String()
	}
	key := keyOf(n.Kind, n.Width, n.Operands, n.Name, valueStr, n.Block, n.Index, n.Harvest)
	if existing, ok := c.table[key]; ok {
		return existing
	}
	c.table[key] = n
	return n
}

// GetConst interns a Const node of value v truncated to width w.
func (c *Context) GetConst(w int, v *big.Int) *Inst {
	return c.intern(&Inst{Kind: Const, Width: w, Value: Mask(v, w)})
}

// GetConstInt64 is a convenience wrapper over GetConst for small literals.
func (c *Context) GetConstInt64(w int, v int64) *Inst {
	return c.GetConst(w, big.NewInt(v))
}

// GetUntypedConst interns an UntypedConst node, used for literals whose
// width is fixed by unification at use sites rather than by the
// literal itself.
func (c *Context) GetUntypedConst(v *big.Int) *Inst {
	return c.intern(&Inst{Kind: UntypedConst, Width: v.BitLen() + 1, Value: new(big.Int).Set(v)})
}

// GetVar interns a Var node of width w and the given name. Demanded
// defaults to all-ones per spec.md S3.
func (c *Context) GetVar(w int, name string) *Inst {
	return c.intern(&Inst{Kind: Var, Width: w, Name: name, Demanded: AllOnes(w)})
}

// GetVarWithDemanded interns a Var node with an explicit demanded-bits mask.
func (c *Context) GetVarWithDemanded(w int, name string, demanded *big.Int) *Inst {
	return c.intern(&Inst{Kind: Var, Width: w, Name: name, Demanded: demanded})
}

// GetPhi interns a Phi node over the given block and operands, one per predecessor.
func (c *Context) GetPhi(w int, block *Block, ops []*Inst) *Inst {
	return c.intern(&Inst{Kind: Phi, Width: w, Operands: ops, Block: block})
}

// GetInst interns a generic non-leaf node. Width must match the
// opcode's typing rule (spec.md S3's invariant); callers in probe/
// rewrite/infer are responsible for picking the right width (1 for
// predicates, operand width otherwise).
func (c *Context) GetInst(kind Kind, w int, ops []*Inst) *Inst {
	return c.intern(&Inst{Kind: kind, Width: w, Operands: ops})
}

// GetExtractValue interns an ExtractValue node selecting field idx out
// of an aggregate-producing operand (e.g. UAddWithOverflow).
func (c *Context) GetExtractValue(w int, agg *Inst, idx int) *Inst {
	return c.intern(&Inst{Kind: ExtractValue, Width: w, Operands: []*Inst{agg}, Index: idx})
}

// WithHarvestKind returns a copy of root tagged with the given harvest
// kind without affecting the interning of root itself — harvest kind
// is a property of how an LHS was obtained, not of the node's
// structural identity, so it is set on an un-interned copy and the
// interned node keeps its default harvest kind.
func WithHarvestKind(root *Inst, hk HarvestKind) *Inst {
	cp := *root
	cp.Harvest = hk
	return &cp
}
