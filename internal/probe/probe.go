// Package probe implements the abstract-domain prober (C3 in
// SPEC_FULL.md S4.3): bit-by-bit SMT-driven extraction of sound
// over-approximations of an expression's value. Every probe follows
// the same pattern spec.md states: build a predicate P(LHS), ask
// whether NOT P is satisfiable; UNSAT proves P holds universally.
package probe

import (
	"context"
	"math/big"
	"time"

	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/query"
	"peepsolve/internal/rewrite"
	"peepsolve/internal/solvererr"
	"peepsolve/internal/synth"
)

// Prober bundles the oracle, interning context, and timeout every
// probe needs; it holds no other state, matching spec.md S5's
// "single-threaded cooperative" model.
type Prober struct {
	Oracle  oracle.Oracle
	Context *ir.Context
	Timeout time.Duration
	// RangeMaxPrecise enables the strict constant_range behavior of
	// spec.md S4.3.6: fail with range_imprecise rather than silently
	// returning "not found" when the constant synthesizer exhausts
	// its retry budget.
	RangeMaxPrecise bool
	// MaxRangeTries bounds constant-synthesis retries inside
	// constant_range's binary search (spec.md S5's MaxTries, default 30).
	MaxRangeTries int
}

// New creates a Prober with spec.md S6's default MaxRangeTries (30).
func New(o oracle.Oracle, c *ir.Context, timeout time.Duration) *Prober {
	return &Prober{Oracle: o, Context: c, Timeout: timeout, MaxRangeTries: 30}
}

// universallyTrue asks whether NOT predicate is UNSAT, i.e. whether
// predicate holds for every input satisfying bpcs/pcs.
func (p *Prober) universallyTrue(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, predicate *ir.Inst) (bool, error) {
	zero := p.Context.GetConstInt64(1, 0)
	violated := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{predicate, zero})
	q := query.BuildQuery(bpcs, pcs, violated, 0)
	if q.IsEmpty() {
		return false, solvererr.ValueTooLargef("probe query too large")
	}
	sat, _, err := p.Oracle.Ask(ctx, q, false, p.Timeout)
	if err != nil {
		return false, err
	}
	return !sat, nil
}

// KnownBits implements spec.md S4.3.1: iterate LSB to MSB, greedily
// proposing each bit as known-zero then known-one.
func (p *Prober) KnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (zero, one *big.Int, err error) {
	w := lhs.Width
	zero = big.NewInt(0)
	one = big.NewInt(0)
	for i := 0; i < w; i++ {
		bit := new(big.Int).Lsh(big.NewInt(1), uint(i))

		zeroGuess := new(big.Int).Or(zero, bit)
		ok, err := p.testKnown(ctx, bpcs, pcs, lhs, zeroGuess, one)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			zero = zeroGuess
			continue
		}

		oneGuess := new(big.Int).Or(one, bit)
		ok, err = p.testKnown(ctx, bpcs, pcs, lhs, zero, oneGuess)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			one = oneGuess
		}
	}
	return zero, one, nil
}

// FindKnownBits is an alias for KnownBits: spec.md S9 leaves their
// identity as an open question and original_source treats them
// identically, so peepsolve does too.
func (p *Prober) FindKnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (zero, one *big.Int, err error) {
	return p.KnownBits(ctx, bpcs, pcs, lhs)
}

func (p *Prober) testKnown(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, zeros, ones *big.Int) (bool, error) {
	w := lhs.Width
	mask := p.Context.GetConst(w, new(big.Int).Or(zeros, ones))
	masked := p.Context.GetInst(ir.And, w, []*ir.Inst{lhs, mask})
	onesConst := p.Context.GetConst(w, ones)
	eq := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{masked, onesConst})
	return p.universallyTrue(ctx, bpcs, pcs, eq)
}

// Negative implements spec.md S4.3.2: a single probe on the MSB.
func (p *Prober) Negative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	w := lhs.Width
	mask := ir.SignBit(w)
	zeroSign, err := p.testSign(ctx, bpcs, pcs, lhs, mask, false)
	if err != nil {
		return false, err
	}
	if zeroSign {
		return false, nil
	}
	oneSign, err := p.testSign(ctx, bpcs, pcs, lhs, mask, true)
	if err != nil {
		return false, err
	}
	return oneSign, nil
}

// NonNegative implements spec.md S4.3.2's complementary probe.
func (p *Prober) NonNegative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	neg, err := p.Negative(ctx, bpcs, pcs, lhs)
	if err != nil {
		return false, err
	}
	if neg {
		return false, nil
	}
	w := lhs.Width
	mask := ir.SignBit(w)
	zeroSign, err := p.testSign(ctx, bpcs, pcs, lhs, mask, false)
	if err != nil {
		return false, err
	}
	if zeroSign {
		return true, nil
	}
	// Ambiguous: sign bit is neither provably 0 nor provably 1.
	// spec.md S4.3.2 is explicit that the ambiguous case returns
	// false, so this does not mirror original_source's NonNegative,
	// which defaults the ambiguous case to true.
	return false, nil
}

func (p *Prober) testSign(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, signMask *big.Int, want bool) (bool, error) {
	w := lhs.Width
	mask := p.Context.GetConst(w, signMask)
	masked := p.Context.GetInst(ir.And, w, []*ir.Inst{lhs, mask})
	var target *ir.Inst
	if want {
		target = mask
	} else {
		target = p.Context.GetConst(w, big.NewInt(0))
	}
	eq := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{masked, target})
	return p.universallyTrue(ctx, bpcs, pcs, eq)
}

// PowerOfTwo implements spec.md S4.3.3.
func (p *Prober) PowerOfTwo(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	w := lhs.Width
	one := p.Context.GetConstInt64(w, 1)
	zero := p.Context.GetConstInt64(w, 0)
	sub := p.Context.GetInst(ir.Sub, w, []*ir.Inst{lhs, one})
	and := p.Context.GetInst(ir.And, w, []*ir.Inst{lhs, sub})
	nonZero := p.Context.GetInst(ir.Ne, 1, []*ir.Inst{lhs, zero})
	isMaskZero := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{and, zero})
	predicate := p.Context.GetInst(ir.And, 1, []*ir.Inst{nonZero, isMaskZero})
	return p.universallyTrue(ctx, bpcs, pcs, predicate)
}

// NonZero implements spec.md S4.3.4.
func (p *Prober) NonZero(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	zero := p.Context.GetConstInt64(lhs.Width, 0)
	predicate := p.Context.GetInst(ir.Ne, 1, []*ir.Inst{lhs, zero})
	return p.universallyTrue(ctx, bpcs, pcs, predicate)
}

// SignBits implements spec.md S4.3.5: the largest k in [1, W] such
// that the top k bits are all equal (sign-extended).
func (p *Prober) SignBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (int, error) {
	w := lhs.Width
	signBits := 1
	allZeros := p.Context.GetConstInt64(w, 0)
	allOnes := p.Context.GetConst(w, ir.AllOnes(w))
	for k := 2; k <= w; k++ {
		shiftAmt := p.Context.GetConstInt64(w, int64(w-k))
		shifted := p.Context.GetInst(ir.AShr, w, []*ir.Inst{lhs, shiftAmt})
		eqZero := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{shifted, allZeros})
		eqOnes := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{shifted, allOnes})
		guess := p.Context.GetInst(ir.Or, 1, []*ir.Inst{eqZero, eqOnes})
		ok, err := p.universallyTrue(ctx, bpcs, pcs, guess)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		signBits = k
	}
	return signBits, nil
}

// DemandedBits implements spec.md S4.3.7: per free variable, the
// mask of bits whose flip is not proven to leave LHS's value
// unchanged (a bit is cleared only when both setting and clearing it
// provably preserve LHS).
func (p *Prober) DemandedBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (map[string]*big.Int, error) {
	working := lhs
	if lhs.Demanded != nil && lhs.Demanded.Cmp(ir.AllOnes(lhs.Width)) != 0 {
		mask := p.Context.GetConst(lhs.Width, lhs.Demanded)
		working = p.Context.GetInst(ir.And, lhs.Width, []*ir.Inst{lhs, mask})
	}
	vars := ir.AllVars(working, bpcs, pcs)
	result := make(map[string]*big.Int, len(vars))
	for _, v := range vars {
		mask := big.NewInt(0)
		for b := 0; b < v.Width; b++ {
			set := rewrite.SetBit(p.Context, working, v.Name, b)
			clr := rewrite.ClearBit(p.Context, working, v.Name, b)
			eqSet := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{working, set})
			eqClr := p.Context.GetInst(ir.Eq, 1, []*ir.Inst{working, clr})
			predicate := p.Context.GetInst(ir.And, 1, []*ir.Inst{eqSet, eqClr})
			notDemanded, err := p.universallyTrue(ctx, bpcs, pcs, predicate)
			if err != nil {
				return nil, err
			}
			if !notDemanded {
				mask.SetBit(mask, b, 1)
			}
		}
		result[v.Name] = mask
	}
	return result, nil
}

// ConstantRange implements spec.md S4.3.6: binary search on interval
// width for the smallest half-open range [lo, lo+c) mod 2^W every
// satisfying value of LHS lies in.
func (p *Prober) ConstantRange(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst, synthesizer *synth.ConstantSynthesizer) (lo *big.Int, width *big.Int, err error) {
	w := lhs.Width
	full := new(big.Int).Lsh(big.NewInt(1), uint(w)) // 2^W

	lowC := big.NewInt(1)
	highC := new(big.Int).Sub(full, big.NewInt(1)) // 2^W - 1
	var bestLo *big.Int
	var bestC *big.Int

	for lowC.Cmp(highC) <= 0 {
		mid := new(big.Int).Add(lowC, highC)
		mid.Rsh(mid, 1)
		if mid.Sign() == 0 {
			mid = big.NewInt(1)
		}
		x, found, err := synthesizer.SynthesizeRangeWitness(ctx, bpcs, pcs, lhs, mid, p.MaxRangeTries)
		if err != nil {
			return nil, nil, err
		}
		if found {
			bestLo = x
			bestC = new(big.Int).Set(mid)
			highC = new(big.Int).Sub(mid, big.NewInt(1))
		} else {
			if p.RangeMaxPrecise {
				return nil, nil, solvererr.New(solvererr.RangeImprecise,
					"constant-synthesis exhausted its retry budget before finding a range witness")
			}
			lowC = new(big.Int).Add(mid, big.NewInt(1))
		}
	}
	if bestLo == nil {
		return big.NewInt(0), full, nil
	}
	return bestLo, bestC, nil
}
