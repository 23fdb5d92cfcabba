package engine

import (
	"peepsolve/internal/ir"
	"peepsolve/internal/query"
)

// DedupMappings groups an already-built batch of candidate mappings by
// fingerprint and returns one representative per distinct (BPCs, PCs,
// LHS, RHS) group, in first-seen order. This narrows
// original_source's CandidateMapUtils (which groups harvested LHS
// candidates by width and weight before handing them to the solver,
// to avoid re-asking structurally identical queries across a
// translation unit) to the part that doesn't require the LLVM
// harvesting front-end: a pure function over a slice a driver already
// has in hand.
func DedupMappings(bpcs []ir.BPC, pcs []ir.PC, mappings []ir.Mapping) []ir.Mapping {
	p := query.NewPrinter()
	seen := make(map[string]bool, len(mappings))
	out := make([]ir.Mapping, 0, len(mappings))
	for _, m := range mappings {
		key := p.FingerprintMapping(bpcs, pcs, m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
