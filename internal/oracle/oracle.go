// Package oracle defines the SMT oracle boundary (C1 in SPEC_FULL.md
// S4.1): the engine submits a serialized bit-vector query and gets
// back SAT/UNSAT plus an optional model. The real SMT backend is an
// external collaborator per spec.md S1; this package only defines the
// interface plus bitvec, a brute-force reference implementation used
// to drive the rest of the engine without a production solver
// dependency.
package oracle

import (
	"context"
	"math/big"
	"time"

	"peepsolve/internal/query"
)

// Model maps a variable name to its value in a satisfying assignment.
type Model map[string]*big.Int

// Oracle is the contract every SMT backend satisfies.
type Oracle interface {
	// Ask decides satisfiability of q.Predicate conjoined with q.BPCs
	// and q.PCs. If wantModel is true and the oracle supports models,
	// a satisfying assignment is returned alongside sat=true.
	// Ask must respect timeout: an oracle that cannot decide within it
	// returns an oracle_failure error, never a guessed answer.
	Ask(ctx context.Context, q query.Query, wantModel bool, timeout time.Duration) (sat bool, model Model, err error)

	// SupportsModels reports whether this backend can return models at all.
	SupportsModels() bool

	// Name identifies the backend for getName()-style diagnostics (spec.md S4.8).
	Name() string
}
