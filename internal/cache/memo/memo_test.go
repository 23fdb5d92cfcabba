package memo

import (
	"context"
	"math/big"
	"testing"

	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/solvererr"
	"peepsolve/internal/stats"
)

// fakeSolver is a minimal solver.Solver stub that counts how many times
// Infer/IsValid are actually invoked, so tests can assert the memo
// layer short-circuits repeat calls instead of re-asking the oracle.
type fakeSolver struct {
	name          string
	inferCalls    int
	isValidCalls  int
	inferResult   *ir.Inst
	inferErr      error
	isValidResult bool
	isValidModel  oracle.Model
	isValidErr    error
	powerOfTwoCalls int
}

func (f *fakeSolver) Infer(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*ir.Inst, error) {
	f.inferCalls++
	return f.inferResult, f.inferErr
}

func (f *fakeSolver) IsValid(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping, wantModel bool) (bool, oracle.Model, error) {
	f.isValidCalls++
	return f.isValidResult, f.isValidModel, f.isValidErr
}

func (f *fakeSolver) InferConst(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, bool, error) {
	return nil, false, nil
}
func (f *fakeSolver) ConstantRange(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return nil, nil, nil
}
func (f *fakeSolver) FindKnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return nil, nil, nil
}
func (f *fakeSolver) KnownBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (*big.Int, *big.Int, error) {
	return nil, nil, nil
}
func (f *fakeSolver) Negative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return false, nil
}
func (f *fakeSolver) NonNegative(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return false, nil
}
func (f *fakeSolver) PowerOfTwo(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	f.powerOfTwoCalls++
	return false, nil
}
func (f *fakeSolver) NonZero(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (bool, error) {
	return false, nil
}
func (f *fakeSolver) SignBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (int, error) {
	return 0, nil
}
func (f *fakeSolver) DemandedBits(ctx context.Context, bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) (map[string]*big.Int, error) {
	return nil, nil
}
func (f *fakeSolver) Name() string { return f.name }

func TestMemoNameComposition(t *testing.T) {
	inner := &fakeSolver{name: "fake"}
	m := New(inner, stats.New())
	if m.Name() != "fake + internal cache" {
		t.Fatalf("Name() = %q, want %q", m.Name(), "fake + internal cache")
	}
}

func TestMemoInferCachesSecondCall(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	rhs := c.GetConstInt64(8, 0)
	inner := &fakeSolver{name: "fake", inferResult: rhs}
	st := stats.New()
	m := New(inner, st)

	got1, err := m.Infer(context.Background(), nil, nil, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got2, err := m.Infer(context.Background(), nil, nil, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got1 != rhs || got2 != rhs {
		t.Fatalf("expected both calls to return the inner result")
	}
	if inner.inferCalls != 1 {
		t.Fatalf("expected exactly 1 call through to the inner solver, got %d", inner.inferCalls)
	}
	if st.MemHitsInfer != 1 || st.MemMissesInfer != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", st.MemHitsInfer, st.MemMissesInfer)
	}
}

func TestMemoIsValidCachesSecondCall(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	zero := c.GetConstInt64(8, 0)
	inner := &fakeSolver{name: "fake", isValidResult: true}
	st := stats.New()
	m := New(inner, st)

	mapping := ir.Mapping{LHS: x, RHS: zero}
	if _, _, err := m.IsValid(context.Background(), nil, nil, mapping, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := m.IsValid(context.Background(), nil, nil, mapping, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.isValidCalls != 1 {
		t.Fatalf("expected exactly 1 call through to the inner solver, got %d", inner.isValidCalls)
	}
	if st.MemHitsIsValid != 1 || st.MemMissesIsValid != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", st.MemHitsIsValid, st.MemMissesIsValid)
	}
}

func TestMemoIsValidBypassesCacheForModelSinkOnInvalidEntry(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	five := c.GetConstInt64(8, 5)
	inner := &fakeSolver{name: "fake", isValidResult: false}
	st := stats.New()
	m := New(inner, st)

	mapping := ir.Mapping{LHS: x, RHS: five}
	if _, _, err := m.IsValid(context.Background(), nil, nil, mapping, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// cached as invalid with no model; a model-sink call must bypass the cache.
	if _, _, err := m.IsValid(context.Background(), nil, nil, mapping, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.isValidCalls != 2 {
		t.Fatalf("expected the model-sink call to bypass the cache and re-invoke inner, got %d calls", inner.isValidCalls)
	}
}

func TestMemoInferCachesErrorResult(t *testing.T) {
	// spec.md S4.6/S7: an erroring outcome is cached and replayed the
	// same way a successful one is, so a repeat query never re-asks
	// the base solver.
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	wantErr := solvererr.OracleFailuref("oracle exploded")
	inner := &fakeSolver{name: "fake", inferErr: wantErr}
	st := stats.New()
	m := New(inner, st)

	_, err1 := m.Infer(context.Background(), nil, nil, x)
	_, err2 := m.Infer(context.Background(), nil, nil, x)
	if err1 != wantErr || err2 != wantErr {
		t.Fatalf("expected both calls to replay the same cached error, got %v and %v", err1, err2)
	}
	if inner.inferCalls != 1 {
		t.Fatalf("expected exactly 1 call through to the inner solver, got %d", inner.inferCalls)
	}
	if st.MemHitsInfer != 1 || st.MemMissesInfer != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", st.MemHitsInfer, st.MemMissesInfer)
	}
}

func TestMemoIsValidCachesErrorResult(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	zero := c.GetConstInt64(8, 0)
	wantErr := solvererr.OracleFailuref("oracle exploded")
	inner := &fakeSolver{name: "fake", isValidErr: wantErr}
	st := stats.New()
	m := New(inner, st)

	mapping := ir.Mapping{LHS: x, RHS: zero}
	_, _, err1 := m.IsValid(context.Background(), nil, nil, mapping, false)
	_, _, err2 := m.IsValid(context.Background(), nil, nil, mapping, false)
	if err1 != wantErr || err2 != wantErr {
		t.Fatalf("expected both calls to replay the same cached error, got %v and %v", err1, err2)
	}
	if inner.isValidCalls != 1 {
		t.Fatalf("expected exactly 1 call through to the inner solver, got %d", inner.isValidCalls)
	}
	if st.MemHitsIsValid != 1 || st.MemMissesIsValid != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", st.MemHitsIsValid, st.MemMissesIsValid)
	}
}

func TestMemoInferConstDerivesFromInfer(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	rhs := c.GetConstInt64(8, 7)
	inner := &fakeSolver{name: "fake", inferResult: rhs}
	m := New(inner, stats.New())

	val, ok, err := m.InferConst(context.Background(), nil, nil, x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || val.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected InferConst to report constant 7, got ok=%v val=%v", ok, val)
	}
}

func TestMemoProbeOperationsPassThroughUncached(t *testing.T) {
	c := ir.NewContext()
	x := c.GetVar(8, "x")
	inner := &fakeSolver{name: "fake"}
	m := New(inner, stats.New())

	if _, err := m.PowerOfTwo(context.Background(), nil, nil, x); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.PowerOfTwo(context.Background(), nil, nil, x); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// probe operations are documented as passthrough only, not cached;
	// this test exists to guard against someone adding a cache for them
	// without updating DESIGN.md's "only infer/is_valid" contract.
	if inner.powerOfTwoCalls != 2 {
		t.Fatalf("expected both PowerOfTwo calls to reach the inner solver uncached, got %d calls", inner.powerOfTwoCalls)
	}
}
