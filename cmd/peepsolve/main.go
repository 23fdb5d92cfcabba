// cmd/peepsolve/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"peepsolve/internal/config"
	"peepsolve/internal/diagnostics"
	"peepsolve/internal/engine"
	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/solvererr"
	"peepsolve/internal/synth"
)

// VERSION tags the engine build; a real CLI driver (harvesting
// LLVM IR, parsing wire queries, talking to an external SMT oracle)
// is out of scope here, per spec.md S1 — this entrypoint just proves
// the decorator chain wires together end to end on a toy example.
const VERSION = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println("peepsolve", VERSION)
		return
	}

	c := ir.NewContext()
	o := oracle.New(20, 1<<20)
	cfg := config.Default()
	cfg.InferNop = true

	base, _ := engine.Build(o, c, cfg, 5*time.Second, synth.Unimplemented{}, synth.Unimplemented{}, nil, true)

	// x & x demo: the cascade should find the no-op RHS "x".
	x := c.GetVar(8, "x")
	lhs := c.GetInst(ir.And, 8, []*ir.Inst{x, x})

	ctx := context.Background()
	rhs, err := base.Infer(ctx, nil, nil, lhs)
	if err != nil {
		// A Fatal solver error is an invariant violation (spec.md
		// S4.4/S7's big-query/small-query consistency check, among
		// others): dump it and abort rather than reporting it as an
		// ordinary failure a caller might retry past.
		if se, ok := err.(*solvererr.SolverError); ok && se.Kind == solvererr.Fatal {
			diagnostics.Abort(os.Stderr, se, nil)
		}
		fmt.Fprintln(os.Stderr, "peepsolve:", err)
		os.Exit(1)
	}
	if rhs == nil {
		fmt.Println("no simplification found")
		return
	}
	fmt.Printf("%s simplifies to %s\n", describe(lhs), describe(rhs))
}

func describe(n *ir.Inst) string {
	if n.Kind == ir.Var {
		return n.Name
	}
	if n.Kind == ir.Const {
		return n.Value.String()
	}
	return n.Kind.String()
}
