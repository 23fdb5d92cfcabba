package engine

import (
	"time"

	"peepsolve/internal/cache/kv"
	"peepsolve/internal/cache/memo"
	"peepsolve/internal/config"
	"peepsolve/internal/ir"
	"peepsolve/internal/oracle"
	"peepsolve/internal/solver"
	"peepsolve/internal/stats"
	"peepsolve/internal/synth"
)

// Build assembles the full decorator chain spec.md S4.8 describes:
// Base, optionally wrapped by a persistent SQL cache, optionally
// wrapped (outermost) by an in-process memo cache. store may be nil to
// skip the persistent layer. exhaustiveSynth and componentSynth are
// the two distinct stage-5 collaborators spec.md S4.4 step 5 names.
func Build(o oracle.Oracle, c *ir.Context, cfg config.Config, timeout time.Duration, exhaustiveSynth, componentSynth synth.InstructionSynthesizer, store *kv.SQLStore, useMemo bool) (solver.Solver, *stats.Counters) {
	st := stats.New()
	var s solver.Solver = NewBase(o, c, cfg, timeout, exhaustiveSynth, componentSynth)
	if store != nil {
		s = kv.New(s, store, c, cfg, st)
	}
	if useMemo {
		s = memo.New(s, st)
	}
	return s, st
}
