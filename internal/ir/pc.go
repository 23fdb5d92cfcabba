package ir

// PC is one path condition: an equality constraint LHS = RHS assumed
// true when verifying a rewrite. A PCs slice is interpreted as the
// conjunction of its elements.
type PC struct {
	LHS *Inst
	RHS *Inst
}

// BPC is a path condition gated on a specific predecessor of a block —
// it only applies along the control-flow edge it names.
type BPC struct {
	Block *Block
	Pred  int
	PC    PC
}

// Mapping is a candidate rewrite: a pair of equal-width nodes that
// is_valid is asked to prove equivalent.
type Mapping struct {
	LHS *Inst
	RHS *Inst
}

// Vars returns the set of distinct Var nodes reachable from root,
// in a deterministic first-visit order. Shared by the rewriter,
// prober, and cascade, all of which need to enumerate a node's free
// variables.
func Vars(root *Inst) []*Inst {
	seen := make(map[*Inst]bool)
	var order []*Inst
	var walk func(n *Inst)
	walk = func(n *Inst) {
		if seen[n] {
			return
		}
		seen[n] = true
		if n.Kind == Var {
			order = append(order, n)
		}
		for _, op := range n.Operands {
			walk(op)
		}
	}
	walk(root)
	return order
}

// AllVars returns the union, in deterministic order, of the variables
// reachable from root, from every PC's two sides, and from every BPC's
// underlying PC — this is the variable set demanded_bits (spec.md
// S4.3.7) must iterate, and the set oracle/bitvec's evaluator must
// have an assignment for. A variable that appears only inside a BPC
// (never in root or in an unconditional PC) is still free in the
// query and must not be dropped, or Eval fails with "no assignment
// for variable" once it reaches that BPC's condition.
func AllVars(root *Inst, bpcs []BPC, pcs []PC) []*Inst {
	seen := make(map[*Inst]bool)
	var order []*Inst
	add := func(vs []*Inst) {
		for _, v := range vs {
			if !seen[v] {
				seen[v] = true
				order = append(order, v)
			}
		}
	}
	add(Vars(root))
	for _, pc := range pcs {
		add(Vars(pc.LHS))
		add(Vars(pc.RHS))
	}
	for _, bpc := range bpcs {
		add(Vars(bpc.PC.LHS))
		add(Vars(bpc.PC.RHS))
	}
	return order
}
