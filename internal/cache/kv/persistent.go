package kv

import (
	"context"
	"math/big"

	"github.com/dustin/go-humanize"

	"peepsolve/internal/config"
	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/query"
	"peepsolve/internal/solver"
	"peepsolve/internal/solvererr"
	"peepsolve/internal/stats"
)

// Persistent wraps a Solver with a SQL-backed fingerprint cache for
// infer only (spec.md S4.7: "Only infer is cached"), the one operation
// expensive enough to be worth persisting across process runs. Every
// other operation, including is_valid, passes straight through to the
// inner solver.
type Persistent struct {
	inner   solver.Solver
	store   *SQLStore
	context *ir.Context
	printer *query.Printer
	stats   *stats.Counters
	cfg     config.Config
}

// New wraps inner with store, gating admission by cfg.MaxLHSSize and
// short-circuiting infer on a miss when cfg.NoInfer is set. ctx is the
// same interning Context the rest of the engine uses: cached RHS text
// must be parsed back into that Context, not a private one, or the
// returned node would never structurally match anything the caller
// already holds.
func New(inner solver.Solver, store *SQLStore, ctx *ir.Context, cfg config.Config, st *stats.Counters) *Persistent {
	return &Persistent{inner: inner, store: store, context: ctx, printer: query.NewPrinter(), stats: st, cfg: cfg}
}

func (p *Persistent) Name() string { return p.inner.Name() + " + external cache" }

// tooLarge reports whether fingerprint exceeds the configured
// admission size, formatting the human-readable size for diagnostics
// the way sentra's reporting package formats byte counts.
func (p *Persistent) tooLarge(fingerprint string) error {
	if p.cfg.MaxLHSSize > 0 && len(fingerprint) > p.cfg.MaxLHSSize {
		return solvererr.ValueTooLargef(
			"fingerprint %s exceeds cache admission size %s",
			humanize.Bytes(uint64(len(fingerprint))), humanize.Bytes(uint64(p.cfg.MaxLHSSize)))
	}
	return nil
}

// Infer checks the persistent cache before falling through to inner.
// A cached empty value means "previously solved with no RHS" (spec.md
// S4.8) and is returned as (nil, nil) without touching inner. NoInfer
// makes a miss record the empty sentinel and return (nil, nil)
// instead of invoking inner, so a cold persistent cache can be warmed
// read-only without ever running the base engine.
func (p *Persistent) Infer(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error) {
	key := p.printer.FingerprintLHS(bpcs, pcs, lhs)
	if err := p.tooLarge(key); err != nil {
		return nil, err
	}

	val, found, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.OracleFailure, err, "persistent cache read failed")
	}
	if found {
		p.stats.ExternalHits++
		if val == "" {
			return nil, nil
		}
		rhs, perr := query.ParseRHS(p.context, val)
		if perr != nil {
			return nil, solvererr.Wrap(solvererr.ProtocolError, perr, "cached RHS failed to parse").WithFingerprint(key)
		}
		return rhs, nil
	}

	p.stats.ExternalMisses++
	if p.cfg.NoInfer {
		if err := p.store.Set(ctx, key, ""); err != nil {
			return nil, solvererr.Wrap(solvererr.OracleFailure, err, "persistent cache write failed")
		}
		return nil, nil
	}

	rhs, err := p.inner.Infer(ctx, bpcs, pcs, lhs)
	if err != nil {
		return nil, err
	}
	text := ""
	if rhs != nil {
		text = p.printer.SerializeRHS(rhs)
	}
	if err := p.store.Set(ctx, key, text); err != nil {
		return nil, solvererr.Wrap(solvererr.OracleFailure, err, "persistent cache write failed")
	}
	return rhs, nil
}

// IsValid is not cached at this layer (spec.md S4.7: "Only infer is
// cached"), unlike internal/cache/memo which caches both operations;
// it passes straight through to inner.
func (p *Persistent) IsValid(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping, wantModel bool) (bool, oracle.Model, error) {
	return p.inner.IsValid(ctx, bpcs, pcs, m, wantModel)
}

func (p *Persistent) InferConst(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, bool, error) {
	rhs, err := p.Infer(ctx, bpcs, pcs, lhs)
	if err != nil {
		return nil, false, err
	}
	if rhs == nil || rhs.Kind != ir.Const {
		return nil, false, nil
	}
	return rhs.Value, true, nil
}

func (p *Persistent) ConstantRange(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return p.inner.ConstantRange(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) FindKnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return p.inner.FindKnownBits(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) KnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return p.inner.KnownBits(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) Negative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return p.inner.Negative(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) NonNegative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return p.inner.NonNegative(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) PowerOfTwo(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return p.inner.PowerOfTwo(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) NonZero(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return p.inner.NonZero(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) SignBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (int, error) {
	return p.inner.SignBits(ctx, bpcs, pcs, lhs)
}

func (p *Persistent) DemandedBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (map[string]*big.Int, error) {
	return p.inner.DemandedBits(ctx, bpcs, pcs, lhs)
}
