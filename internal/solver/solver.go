// Package solver defines the uniform Solver interface (C7 in
// SPEC_FULL.md S4.7) that the base inference engine and each caching
// layer (internal/cache/memo, internal/cache/kv) implement
// identically, so callers can wrap a base solver in zero, one, or both
// caches without changing call sites. This mirrors sentra's
// module-resolution chain (internal/module's loader wrapping a base
// resolver with caching passthroughs). It is split out from
// internal/engine so the cache decorators can depend on the interface
// without importing the package that assembles them.
package solver

import (
	"context"
	"math/big"

	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
)

// Solver is the operation set every layer of the decorator chain
// exposes (spec.md S4.8's "same operations, decorated").
type Solver interface {
	Infer(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error)
	IsValid(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping, wantModel bool) (bool, oracle.Model, error)
	InferConst(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, bool, error)
	ConstantRange(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (lo, width *big.Int, err error)
	FindKnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (zero, one *big.Int, err error)
	KnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (zero, one *big.Int, err error)
	Negative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error)
	NonNegative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error)
	PowerOfTwo(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error)
	NonZero(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error)
	SignBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (int, error)
	DemandedBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (map[string]*big.Int, error)
	// Name composes this layer's own tag with its inner solver's name,
	// e.g. "bitvec-bruteforce + external cache + internal cache" (spec.md S4.8).
	Name() string
}
