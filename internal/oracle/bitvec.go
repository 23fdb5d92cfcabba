package oracle

import (
	"context"
	"math/big"
	"time"

	"peepsolve/internal/ir"
	"peepsolve/internal/query"
	"peepsolve/internal/solvererr"
)

// BitVec is a brute-force reference oracle: it decides satisfiability
// by enumerating every assignment to the query's free variables (and
// every predecessor choice for any Phi block it touches) and
// evaluating the predicate directly, in the style of
// internal/database's driver dispatch (pick a concrete backend by a
// bounded parameter, fail loudly outside it) rather than a real
// bit-vector decision procedure. It exists so the rest of the engine
// has something to drive without a production SMT dependency; widths
// and variable counts large enough to need real search are reported
// as oracle_failure, never guessed.
type BitVec struct {
	// MaxWidth bounds the bit width of any single free variable this
	// oracle will attempt to enumerate.
	MaxWidth int
	// MaxEnumeration bounds the total number of (variable x block
	// predecessor) assignments this oracle will enumerate before
	// giving up.
	MaxEnumeration int64
}

// New creates a BitVec oracle with the given limits. Sensible
// defaults: MaxWidth 20, MaxEnumeration 1<<20. maxWidth is clamped to
// [1, 64]: below 1 there is nothing to enumerate, and above 64 the
// brute-force search is never going to finish regardless of what the
// caller asked for.
func New(maxWidth int, maxEnumeration int64) *BitVec {
	return &BitVec{MaxWidth: ir.Clamp(maxWidth, 1, 64), MaxEnumeration: maxEnumeration}
}

func (o *BitVec) SupportsModels() bool { return true }
func (o *BitVec) Name() string         { return "bitvec-bruteforce" }

func (o *BitVec) Ask(ctx context.Context, q query.Query, wantModel bool, timeout time.Duration) (bool, Model, error) {
	deadline := time.Now().Add(timeout)
	if timeout <= 0 {
		deadline = time.Time{}
	}

	for _, v := range q.Vars {
		if v.Width > o.MaxWidth {
			return false, nil, solvererr.OracleFailuref(
				"variable %q has width %d, exceeding the %d-bit limit of the %s reference oracle; a real SMT backend is required",
				v.Name, v.Width, o.MaxWidth, o.Name())
		}
	}
	blocks := collectBlocks(q.Predicate, q.PCs, q.BPCs)

	total := int64(1)
	for _, v := range q.Vars {
		total *= int64(1) << uint(v.Width)
		if total > o.MaxEnumeration {
			return false, nil, solvererr.OracleFailuref(
				"query needs more than %d assignments to enumerate; a real SMT backend is required", o.MaxEnumeration)
		}
	}
	for _, b := range blocks {
		if b.Preds > 0 {
			total *= int64(b.Preds)
		}
		if total > o.MaxEnumeration {
			return false, nil, solvererr.OracleFailuref(
				"query needs more than %d assignments to enumerate; a real SMT backend is required", o.MaxEnumeration)
		}
	}

	env := &ir.Env{Vars: make(map[string]*big.Int, len(q.Vars)), Blocks: make(map[string]int, len(blocks))}
	sat, model, err := enumerate(q, env, q.Vars, blocks, deadline)
	if err != nil {
		return false, nil, err
	}
	if !sat {
		return false, nil, nil
	}
	if wantModel {
		return true, model, nil
	}
	return true, nil, nil
}

func collectBlocks(predicate *ir.Inst, pcs []ir.PC, bpcs []ir.BPC) []*ir.Block {
	seen := make(map[*ir.Block]bool)
	var out []*ir.Block
	var walk func(n *ir.Inst)
	visited := make(map[*ir.Inst]bool)
	walk = func(n *ir.Inst) {
		if visited[n] {
			return
		}
		visited[n] = true
		if n.Kind == ir.Phi && !seen[n.Block] {
			seen[n.Block] = true
			out = append(out, n.Block)
		}
		for _, op := range n.Operands {
			walk(op)
		}
	}
	walk(predicate)
	for _, pc := range pcs {
		walk(pc.LHS)
		walk(pc.RHS)
	}
	for _, bpc := range bpcs {
		walk(bpc.PC.LHS)
		walk(bpc.PC.RHS)
		if !seen[bpc.Block] {
			seen[bpc.Block] = true
			out = append(out, bpc.Block)
		}
	}
	return out
}

// enumerate tries every assignment to vars, then every predecessor
// choice for blocks, checking deadline between leaves.
func enumerate(q query.Query, env *ir.Env, vars []*ir.Inst, blocks []*ir.Block, deadline time.Time) (bool, Model, error) {
	var rec func(vi, bi int) (bool, error)
	rec = func(vi, bi int) (bool, error) {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false, solvererr.OracleFailuref("oracle timed out")
		}
		if vi < len(vars) {
			v := vars[vi]
			limit := new(big.Int).Lsh(big.NewInt(1), uint(v.Width))
			for val := big.NewInt(0); val.Cmp(limit) < 0; val = new(big.Int).Add(val, big.NewInt(1)) {
				env.Vars[v.Name] = new(big.Int).Set(val)
				ok, err := rec(vi+1, bi)
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if bi < len(blocks) {
			b := blocks[bi]
			n := b.Preds
			if n <= 0 {
				n = 1
			}
			for p := 0; p < n; p++ {
				env.Blocks[b.Name] = p
				ok, err := rec(vi, bi+1)
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		return evalLeaf(q, env)
	}
	ok, err := rec(0, 0)
	if err != nil || !ok {
		return ok, nil, err
	}
	model := make(Model, len(vars))
	for _, v := range vars {
		model[v.Name] = new(big.Int).Set(env.Vars[v.Name])
	}
	return true, model, nil
}

func evalLeaf(q query.Query, env *ir.Env) (bool, error) {
	for _, pc := range q.PCs {
		l, err := ir.Eval(pc.LHS, env)
		if err != nil {
			return false, err
		}
		r, err := ir.Eval(pc.RHS, env)
		if err != nil {
			return false, err
		}
		if l.Cmp(r) != 0 {
			return false, nil
		}
	}
	for _, bpc := range q.BPCs {
		if env.Blocks[bpc.Block.Name] != bpc.Pred {
			continue
		}
		l, err := ir.Eval(bpc.PC.LHS, env)
		if err != nil {
			return false, err
		}
		r, err := ir.Eval(bpc.PC.RHS, env)
		if err != nil {
			return false, err
		}
		if l.Cmp(r) != 0 {
			return false, nil
		}
	}
	v, err := ir.Eval(q.Predicate, env)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}
