// Package infer implements the inference cascade (C4 in
// SPEC_FULL.md S4.4) and is_valid (S4.5): the ordered strategies that
// try to turn an LHS into an equivalent, simpler RHS, short-circuiting
// at the first success, plus the direct validity check every strategy
// ultimately reduces to.
package infer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"peepsolve/internal/config"
	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/query"
	"peepsolve/internal/rewrite"
	"peepsolve/internal/solvererr"
	"peepsolve/internal/synth"
)

// Engine is the base solver (BaseSolver in original_source): it owns
// an oracle, an interning context, and the configuration knobs that
// gate each cascade stage. It holds no cache — that is the
// decorators' job (internal/cache/memo, internal/cache/kv).
type Engine struct {
	Oracle  oracle.Oracle
	Context *ir.Context
	Config  config.Config
	Timeout time.Duration
	Synth   *synth.ConstantSynthesizer

	// ExhaustiveSynth and ComponentSynth are the two distinct stage-5
	// collaborators spec.md S4.4 step 5 names: an exhaustive-search
	// synthesizer and a component-based one, gated independently by
	// config.ExhaustiveSynthesis and config.InferInsts respectively.
	// They are kept as separate fields rather than collapsed behind
	// one knob because a caller may enable either, both, or neither,
	// and the exhaustive search takes precedence over the
	// component-based search when both fire.
	ExhaustiveSynth synth.InstructionSynthesizer
	ComponentSynth  synth.InstructionSynthesizer
}

// New builds a base Engine. exhaustiveSynth/componentSynth may each be
// synth.Unimplemented{} when no real synthesizer of that kind is wired in.
func New(o oracle.Oracle, c *ir.Context, cfg config.Config, timeout time.Duration, exhaustiveSynth, componentSynth synth.InstructionSynthesizer) *Engine {
	return &Engine{
		Oracle:          o,
		Context:         c,
		Config:          cfg,
		Timeout:         timeout,
		Synth:           synth.New(o, c, timeout),
		ExhaustiveSynth: exhaustiveSynth,
		ComponentSynth:  componentSynth,
	}
}

// Name identifies this layer for getName()-style diagnostics (spec.md S4.8).
func (e *Engine) Name() string { return e.Oracle.Name() }

func (e *Engine) universallyTrue(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, predicate *ir.Inst) (bool, error) {
	zero := e.Context.GetConstInt64(1, 0)
	violated := e.Context.GetInst(ir.Eq, 1, []*ir.Inst{predicate, zero})
	q := query.BuildQuery(bpcs, pcs, violated, 0)
	if q.IsEmpty() {
		return false, solvererr.ValueTooLargef("query too large to serialize")
	}
	sat, _, err := e.Oracle.Ask(ctx, q, false, e.Timeout)
	if err != nil {
		return false, err
	}
	return !sat, nil
}

// IsValid implements spec.md S4.5: directly prove mapping by negation.
// When a model is requested and the oracle supports them, a
// counter-model is returned on SAT (mapping invalid).
func (e *Engine) IsValid(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping, wantModel bool) (bool, oracle.Model, error) {
	eq := e.Context.GetInst(ir.Eq, 1, []*ir.Inst{m.LHS, m.RHS})
	zero := e.Context.GetConstInt64(1, 0)
	violated := e.Context.GetInst(ir.Eq, 1, []*ir.Inst{eq, zero})
	q := query.BuildQuery(bpcs, pcs, violated, 0)
	if q.IsEmpty() {
		return false, nil, solvererr.ValueTooLargef("is_valid query too large to serialize")
	}
	wantModel = wantModel && e.Oracle.SupportsModels()
	sat, model, err := e.Oracle.Ask(ctx, q, wantModel, e.Timeout)
	if err != nil {
		return false, nil, err
	}
	return !sat, model, nil
}

// Infer implements spec.md S4.4's cascade.
func (e *Engine) Infer(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error) {
	w := lhs.Width

	// Stage 1: cheap-constant guess.
	if e.Config.InferInts || w == 1 {
		guesses := []*big.Int{big.NewInt(0), big.NewInt(1)}
		if w > 1 {
			guesses = append(guesses, ir.AllOnes(w)) // the -1 guess
		}
		for _, g := range guesses {
			c := e.Context.GetConst(w, g)
			eq := ir.Mapping{LHS: lhs, RHS: c}
			ok, _, err := e.IsValid(ctx, bpcs, pcs, eq, false)
			if err != nil {
				return nil, err
			}
			if ok {
				return c, nil
			}
		}
	}

	// Stage 2: model-guided constant synthesis.
	if e.Config.InferInts && e.Oracle.SupportsModels() && w > 1 {
		v, found, err := e.Synth.SynthesizeEqualityConstant(ctx, bpcs, pcs, lhs, 1)
		if err != nil {
			return nil, err
		}
		if found {
			return e.Context.GetConst(w, v), nil
		}
	}

	// Stage 3: early exit for use-harvested LHS.
	if lhs.Harvest == ir.HarvestedFromUse {
		return nil, nil
	}

	// Stage 4: no-op synthesis.
	if e.Config.InferNop {
		rhs, err := e.inferNop(ctx, bpcs, pcs, lhs)
		if err != nil {
			return nil, err
		}
		if rhs != nil {
			return rhs, nil
		}
	}

	// Stage 5: full synthesis. spec.md S4.4 step 5 names two distinct
	// collaborators here, not one knob: an exhaustive-search
	// synthesizer and a component-based synthesizer. Exhaustive search
	// takes precedence — it is tried first and, if it finds nothing,
	// the component-based synthesizer gets its own independent try.
	if e.Oracle.SupportsModels() {
		if e.Config.ExhaustiveSynthesis {
			rhs, err := e.ExhaustiveSynth.Synthesize(ctx, bpcs, pcs, lhs, e.Timeout)
			if err != nil {
				return nil, err
			}
			if rhs != nil {
				return rhs, nil
			}
		}
		if e.Config.InferInsts {
			rhs, err := e.ComponentSynth.Synthesize(ctx, bpcs, pcs, lhs, e.Timeout)
			if err != nil {
				return nil, err
			}
			if rhs != nil {
				return rhs, nil
			}
		}
	}

	return nil, nil
}

// subterms returns, in first-visit (pre-order) order, every distinct
// node reachable from lhs (excluding lhs itself) whose width matches
// lhs's, capped at maxNops entries. Unlike original_source's findVars
// (which only collects Var nodes), spec.md S4.4 step 4 calls these
// "subterms" generically, so any same-width subexpression qualifies.
func subterms(lhs *ir.Inst, maxNops int) []*ir.Inst {
	seen := map[*ir.Inst]bool{lhs: true}
	var out []*ir.Inst
	var walk func(n *ir.Inst)
	walk = func(n *ir.Inst) {
		if len(out) >= maxNops {
			return
		}
		for _, op := range n.Operands {
			if seen[op] {
				continue
			}
			seen[op] = true
			if op.Width == lhs.Width {
				out = append(out, op)
				if len(out) >= maxNops {
					return
				}
			}
			walk(op)
		}
	}
	walk(lhs)
	return out
}

// inferNop implements spec.md S4.4 step 4. See DESIGN.md for the
// reading of "big query" / "small query" this follows: the big query
// is a cheap pre-filter using freshened (decorrelated) copies of each
// candidate, and the small queries are the precise, individually
// proven check that actually picks (or rules out) a winner.
func (e *Engine) inferNop(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error) {
	candidates := subterms(lhs, e.Config.MaxNops)
	if len(candidates) == 0 {
		return nil, nil
	}

	bigQueryFoundNoOverlap, err := e.bigQueryNoOverlap(ctx, bpcs, pcs, lhs, candidates)
	if err != nil {
		return nil, err
	}

	if bigQueryFoundNoOverlap && !e.Config.StressNop {
		return nil, nil
	}

	winner, err := e.smallQueries(ctx, bpcs, pcs, lhs, candidates)
	if err != nil {
		return nil, err
	}

	if bigQueryFoundNoOverlap && winner != nil {
		// The cheap pre-filter said no candidate's value range can
		// ever meet LHS's, yet a precise per-candidate check found a
		// universal match: the serializer or oracle disagree with
		// themselves. This is exactly the invariant spec.md S9 says
		// "must be preserved verbatim": emit and abort rather than
		// silently trusting one answer over the other.
		return nil, solvererr.New(solvererr.Fatal,
			fmt.Sprintf("no-op big/small query disagreement: big query found no possible overlap but small query found a winner %s", winner.Kind)).
			WithFingerprint(query.NewPrinter().FingerprintLHS(bpcs, pcs, lhs))
	}

	return winner, nil
}

// bigQueryNoOverlap asks, for freshened copies of every candidate
// decorrelated both from LHS and from each other, whether LHS can
// ever coincide with any of them. If this is UNSAT's negation (i.e.
// universally true that LHS differs from every freshened copy), no
// candidate's possible value range ever meets LHS's, so no real
// no-op can exist and the expensive small-query loop can be skipped.
func (e *Engine) bigQueryNoOverlap(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, candidates []*ir.Inst) (bool, error) {
	var clauses []*ir.Inst
	for i, cand := range candidates {
		memo := rewrite.NewMemo()
		suffix := fmt.Sprintf("$nop%d$", i)
		fresh := rewrite.CopyWithSubstitution(e.Context, cand, memo, func(v *ir.Inst) *ir.Inst {
			return e.Context.GetVarWithDemanded(v.Width, v.Name+suffix, v.Demanded)
		})
		clauses = append(clauses, e.Context.GetInst(ir.Ne, 1, []*ir.Inst{lhs, fresh}))
	}
	conj := clauses[0]
	for _, cl := range clauses[1:] {
		conj = e.Context.GetInst(ir.And, 1, []*ir.Inst{conj, cl})
	}
	return e.universallyTrue(ctx, bpcs, pcs, conj)
}

// smallQueries checks each candidate individually via a direct
// is_valid-style universal check and returns the first winner.
func (e *Engine) smallQueries(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, candidates []*ir.Inst) (*ir.Inst, error) {
	for _, cand := range candidates {
		ok, _, err := e.IsValid(ctx, bpcs, pcs, ir.Mapping{LHS: lhs, RHS: cand}, false)
		if err != nil {
			return nil, err
		}
		if ok {
			return cand, nil
		}
	}
	return nil, nil
}
