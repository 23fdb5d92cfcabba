package engine

import (
	"context"
	"math/big"
	"time"

	"peepsolve/internal/config"
	"peepsolve/internal/infer"
	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/probe"
	"peepsolve/internal/synth"
)

// Base composes the inference cascade (internal/infer) with the
// abstract-domain prober (internal/probe) into a single uncached
// Solver: the bottom of the decorator chain, talking directly to an
// Oracle on every call.
type Base struct {
	infer *infer.Engine
	prober *probe.Prober
}

// NewBase builds the uncached base solver. exhaustiveSynth and
// componentSynth are the two distinct stage-5 collaborators spec.md
// S4.4 step 5 names (exhaustive-search and component-based instruction
// synthesis); either may be synth.Unimplemented{} when not wired in.
func NewBase(o oracle.Oracle, c *ir.Context, cfg config.Config, timeout time.Duration, exhaustiveSynth, componentSynth synth.InstructionSynthesizer) *Base {
	p := probe.New(o, c, timeout)
	p.RangeMaxPrecise = cfg.RangeMaxPrecise
	return &Base{
		infer:  infer.New(o, c, cfg, timeout, exhaustiveSynth, componentSynth),
		prober: p,
	}
}

func (b *Base) Infer(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error) {
	return b.infer.Infer(ctx, bpcs, pcs, lhs)
}

func (b *Base) IsValid(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping, wantModel bool) (bool, oracle.Model, error) {
	return b.infer.IsValid(ctx, bpcs, pcs, m, wantModel)
}

// InferConst implements the infer_const entry point (spec.md S4.6): it
// is Infer restricted to a constant result, so it simply runs the
// cascade and reports whether the winning RHS happens to be a Const.
func (b *Base) InferConst(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, bool, error) {
	rhs, err := b.infer.Infer(ctx, bpcs, pcs, lhs)
	if err != nil {
		return nil, false, err
	}
	if rhs == nil || rhs.Kind != ir.Const {
		return nil, false, nil
	}
	return rhs.Value, true, nil
}

func (b *Base) ConstantRange(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return b.prober.ConstantRange(ctx, bpcs, pcs, lhs, b.infer.Synth)
}

func (b *Base) FindKnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return b.prober.FindKnownBits(ctx, bpcs, pcs, lhs)
}

func (b *Base) KnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return b.prober.KnownBits(ctx, bpcs, pcs, lhs)
}

func (b *Base) Negative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return b.prober.Negative(ctx, bpcs, pcs, lhs)
}

func (b *Base) NonNegative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return b.prober.NonNegative(ctx, bpcs, pcs, lhs)
}

func (b *Base) PowerOfTwo(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return b.prober.PowerOfTwo(ctx, bpcs, pcs, lhs)
}

func (b *Base) NonZero(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return b.prober.NonZero(ctx, bpcs, pcs, lhs)
}

func (b *Base) SignBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (int, error) {
	return b.prober.SignBits(ctx, bpcs, pcs, lhs)
}

func (b *Base) DemandedBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (map[string]*big.Int, error) {
	return b.prober.DemandedBits(ctx, bpcs, pcs, lhs)
}

func (b *Base) Name() string { return b.infer.Name() }
