// Package synth realizes the synthesis sub-procedures spec.md treats
// as external collaborators: constant synthesis, used by both
// infer's model-guided stage (S4.4 step 2) and constant_range's
// test_range (S4.3.6), and the stage-5 instruction synthesizers
// (exhaustive-search / component-based), which remain interface-only
// stubs since a real implementation is explicitly out of scope
// (spec.md S1).
package synth

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/query"
	"peepsolve/internal/solvererr"
)

// ConstantSynthesizer runs a counterexample-guided loop against an
// Oracle to find a constant witness. maxTries bounds the number of
// refinement rounds (spec.md calls this "retries": 1 for infer's
// model-guided stage, 30 for constant_range's binary search).
type ConstantSynthesizer struct {
	Oracle  oracle.Oracle
	Context *ir.Context
	Timeout time.Duration
}

// New creates a ConstantSynthesizer bound to the given oracle and interning context.
func New(o oracle.Oracle, c *ir.Context, timeout time.Duration) *ConstantSynthesizer {
	return &ConstantSynthesizer{Oracle: o, Context: c, Timeout: timeout}
}

// FreshConstantVar allocates a uniquely-named placeholder variable of
// width w to stand in for the constant being synthesized (spec.md
// S4.4 step 2's "fresh synthesis constant placeholder C"). The name
// is suffixed with a uuid so that concurrent or retried synthesis
// calls in the same Context never collide on a variable name.
func (s *ConstantSynthesizer) FreshConstantVar(w int) *ir.Inst {
	name := "constant$" + uuid.NewString()
	return s.Context.GetVar(w, name)
}

// SynthesizeEqualityConstant finds a width-W constant c such that
// lhs = c holds for every input satisfying bpcs/pcs (spec.md S4.4
// step 2). It allocates a fresh synthesis-constant placeholder C
// (FreshConstantVar) and asks the oracle for a model of "lhs = C" to
// obtain an initial candidate, then CEGIS-loops up to maxTries times:
// ask for a counterexample to "lhs != candidate"; if none exists the
// candidate is valid; otherwise evaluate lhs at the counterexample
// and use that value as the next candidate.
func (s *ConstantSynthesizer) SynthesizeEqualityConstant(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, maxTries int) (*big.Int, bool, error) {
	cVar := s.FreshConstantVar(lhs.Width)
	seed := s.Context.GetInst(ir.Eq, 1, []*ir.Inst{lhs, cVar})
	seedQuery := query.BuildQuery(bpcs, pcs, seed, 0)
	if seedQuery.IsEmpty() {
		return nil, false, solvererr.ValueTooLargef("equality-constant synthesis query too large")
	}
	sat, model, err := s.Oracle.Ask(ctx, seedQuery, true, s.Timeout)
	if err != nil {
		return nil, false, err
	}
	if !sat {
		// No input satisfies bpcs/pcs at all; there is nothing to synthesize.
		return nil, false, nil
	}
	candidate := model[cVar.Name]

	for try := 0; try < maxTries; try++ {
		c := s.Context.GetConst(lhs.Width, candidate)
		neq := s.Context.GetInst(ir.Ne, 1, []*ir.Inst{lhs, c})
		q := query.BuildQuery(bpcs, pcs, neq, 0)
		if q.IsEmpty() {
			return nil, false, solvererr.ValueTooLargef("equality-constant synthesis query too large")
		}
		sat, model, err := s.Oracle.Ask(ctx, q, true, s.Timeout)
		if err != nil {
			return nil, false, err
		}
		if !sat {
			return candidate, true, nil
		}
		env := &ir.Env{Vars: model}
		next, err := ir.Eval(lhs, env)
		if err != nil {
			return nil, false, err
		}
		candidate = next
	}
	return nil, false, nil
}

// notPred builds NOT(p) for a width-1 node p, expressed as Eq(p, 0)
// since the IR has no dedicated boolean-negation opcode (spec.md S3's
// opcode list has none either).
func notPred(c *ir.Context, p *ir.Inst) *ir.Inst {
	zero := c.GetConstInt64(1, 0)
	return c.GetInst(ir.Eq, 1, []*ir.Inst{p, zero})
}

func uge(c *ir.Context, a, b *ir.Inst) *ir.Inst {
	return notPred(c, c.GetInst(ir.Ult, 1, []*ir.Inst{a, b}))
}

// SynthesizeRangeWitness implements test_range (spec.md S4.3.6): find
// x such that, for all inputs, lhs lies in the circular interval
// [x, x+size) mod 2^W. It CEGIS-loops the same way as
// SynthesizeEqualityConstant, refining x to the most recent
// counterexample's value whenever the current x fails.
func (s *ConstantSynthesizer) SynthesizeRangeWitness(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, size *big.Int, maxTries int) (*big.Int, bool, error) {
	w := lhs.Width
	x := big.NewInt(0)
	for try := 0; try < maxTries; try++ {
		xConst := s.Context.GetConst(w, x)
		sizeConst := s.Context.GetConst(w, size)
		overflow := s.Context.GetInst(ir.UAddO, 1, []*ir.Inst{xConst, sizeConst})
		upperWrap := s.Context.GetConst(w, ir.Mask(new(big.Int).Add(x, size), w))

		noWrap := s.Context.GetInst(ir.And, 1, []*ir.Inst{
			uge(s.Context, lhs, xConst),
			s.Context.GetInst(ir.Ult, 1, []*ir.Inst{lhs, upperWrap}),
		})
		wrap := s.Context.GetInst(ir.Or, 1, []*ir.Inst{
			uge(s.Context, lhs, xConst),
			s.Context.GetInst(ir.Ult, 1, []*ir.Inst{lhs, upperWrap}),
		})
		inRange := s.Context.GetInst(ir.Select, 1, []*ir.Inst{overflow, wrap, noWrap})

		violated := notPred(s.Context, inRange)
		q := query.BuildQuery(bpcs, pcs, violated, 0)
		if q.IsEmpty() {
			return nil, false, solvererr.ValueTooLargef("range-witness synthesis query too large")
		}
		sat, model, err := s.Oracle.Ask(ctx, q, true, s.Timeout)
		if err != nil {
			return nil, false, err
		}
		if !sat {
			return x, true, nil
		}
		env := &ir.Env{Vars: model}
		v, err := ir.Eval(lhs, env)
		if err != nil {
			return nil, false, err
		}
		x = v
	}
	return nil, false, nil
}

// InstructionSynthesizer is the stage-5 "full synthesis" collaborator
// (spec.md S4.4 step 5): given an LHS, propose a whole replacement
// instruction, not just a constant. Both the exhaustive-search and
// component-based variants are genuine external collaborators with no
// in-repo implementation — building either is out of scope per
// spec.md S1 ("supporting ... instruction synthesis" is the hard part
// of souper this module does not attempt to reproduce).
type InstructionSynthesizer interface {
	Synthesize(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, timeout time.Duration) (*ir.Inst, error)
}

// Unimplemented is an InstructionSynthesizer that always reports no
// RHS found without error, so infer's cascade composes correctly
// when no real synthesizer is wired in.
type Unimplemented struct{}

func (Unimplemented) Synthesize(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, timeout time.Duration) (*ir.Inst, error) {
	return nil, nil
}
