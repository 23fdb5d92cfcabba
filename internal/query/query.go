// Package query realizes the two printers and the parser spec.md S1
// lists as external collaborators (BuildQuery, GetReplacementLHSString
// / GetReplacementRHSString, ParseReplacementRHS): a canonical,
// deterministic textual encoding of a node or a full query, used both
// as the oracle wire format and as the cache fingerprint key.
package query

import (
	"fmt"
	"sort"
	"strings"

	"peepsolve/internal/ir"
)

// Query is what BuildQuery hands to the oracle: Text is the
// canonical, deterministic rendering a real SMT backend would consume
// (and what two structurally-identical queries render identically
// to, per spec.md S3's fingerprint invariant); Predicate/Vars/PCs/BPCs
// are the structured payload the in-repo reference oracle
// (internal/oracle.bitvec) evaluates directly, since peepsolve has no
// SMT-LIB parser of its own — parsing Text back into a solvable form
// is exactly the job spec.md S1 assigns to the external oracle binary.
type Query struct {
	Text      string
	Predicate *ir.Inst
	Vars      []*ir.Inst
	PCs       []ir.PC
	BPCs      []ir.BPC
}

// IsEmpty reports whether BuildQuery signaled value_too_large.
func (q Query) IsEmpty() bool { return q.Text == "" }

// Printer renders nodes and queries to the canonical textual form.
// It is stateless; callers share one Printer across calls.
type Printer struct{}

// NewPrinter returns a Printer. There is no configuration: the
// encoding is fixed so that fingerprints are stable across builds.
func NewPrinter() *Printer { return &Printer{} }

// FingerprintLHS renders (BPCs, PCs, lhs) to the canonical fingerprint
// string used as a cache key (spec.md S3).
func (p *Printer) FingerprintLHS(bpcs []ir.BPC, pcs []ir.PC, lhs *ir.Inst) string {
	var b strings.Builder
	p.writeContext(&b, bpcs, pcs)
	b.WriteString("lhs:")
	p.writeNode(&b, lhs)
	return b.String()
}

// FingerprintMapping renders (BPCs, PCs, mapping) to a fingerprint string.
func (p *Printer) FingerprintMapping(bpcs []ir.BPC, pcs []ir.PC, m ir.Mapping) string {
	var b strings.Builder
	p.writeContext(&b, bpcs, pcs)
	b.WriteString("lhs:")
	p.writeNode(&b, m.LHS)
	b.WriteString(";rhs:")
	p.writeNode(&b, m.RHS)
	return b.String()
}

// SerializeRHS renders a single node (typically an inferred RHS) for
// storage in a cache value; ParseRHS is its inverse.
func (p *Printer) SerializeRHS(root *ir.Inst) string {
	var b strings.Builder
	p.writeNode(&b, root)
	return b.String()
}

func (p *Printer) writeContext(b *strings.Builder, bpcs []ir.BPC, pcs []ir.PC) {
	b.WriteString("bpcs:[")
	for i, bpc := range bpcs {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(b, "%s/%d:", bpc.Block.Name, bpc.Pred)
		p.writeNode(b, bpc.PC.LHS)
		b.WriteString("=")
		p.writeNode(b, bpc.PC.RHS)
	}
	b.WriteString("];pcs:[")
	for i, pc := range pcs {
		if i > 0 {
			b.WriteString(",")
		}
		p.writeNode(b, pc.LHS)
		b.WriteString("=")
		p.writeNode(b, pc.RHS)
	}
	b.WriteString("];")
}

// writeNode assigns each distinct subnode a stable id on first visit
// (post-order) and writes a deterministic s-expression; node identity
// (not just value) is what distinguishes two otherwise-equal-looking
// subexpressions, so the ids are keyed by pointer, matching the DAG's
// hash-consing semantics (spec.md S3: "Two queries identical up to
// node-identity yield equal fingerprints").
func (p *Printer) writeNode(b *strings.Builder, n *ir.Inst) {
	ids := make(map[*ir.Inst]int)
	var next int
	var walk func(n *ir.Inst) int
	walk = func(n *ir.Inst) int {
		if id, ok := ids[n]; ok {
			return id
		}
		children := make([]int, len(n.Operands))
		for i, op := range n.Operands {
			children[i] = walk(op)
		}
		id := next
		next++
		ids[n] = id
		fmt.Fprintf(b, "#%d=", id)
		writeOp(b, n, children)
		b.WriteString(";")
		return id
	}
	rootID := walk(n)
	fmt.Fprintf(b, "root=#%d", rootID)
}

func writeOp(b *strings.Builder, n *ir.Inst, children []int) {
	switch n.Kind {
	case ir.Const, ir.UntypedConst:
		fmt.Fprintf(b, "%s:%d:%s", n.Kind, n.Width, n.Value.String())
	case ir.Var:
		fmt.Fprintf(b, "%s:%d:%s:%s", n.Kind, n.Width, n.Name, n.Demanded.String())
	case ir.Phi:
		fmt.Fprintf(b, "%s:%d:%s:%d(", n.Kind, n.Width, n.Block.Name, n.Block.Preds)
		writeIDs(b, children)
		b.WriteString(")")
	case ir.ExtractValue:
		fmt.Fprintf(b, "%s:%d:%d(", n.Kind, n.Width, n.Index)
		writeIDs(b, children)
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "%s:%d(", n.Kind, n.Width)
		writeIDs(b, children)
		b.WriteString(")")
	}
}

func writeIDs(b *strings.Builder, ids []int) {
	for i, id := range ids {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(b, "#%d", id)
	}
}

// BuildQuery renders the query that decides whether predicate is
// satisfiable under (BPCs, PCs). Every strategy in probe/infer builds
// its own width-1 predicate first (e.g. "NOT P" to test whether P is
// universally true) and hands it here; BuildQuery only serializes. When
// maxText > 0 and the rendering is longer than maxText bytes it
// returns an empty Text (maxText <= 0 means no limit), which callers
// must treat as value_too_large per spec.md
// S4.4's "Failure semantics" ("serializer returns empty string").
func BuildQuery(bpcs []ir.BPC, pcs []ir.PC, predicate *ir.Inst, maxText int) Query {
	p := NewPrinter()
	text := p.FingerprintLHS(bpcs, pcs, predicate)
	if maxText > 0 && len(text) > maxText {
		return Query{}
	}
	vars := ir.AllVars(predicate, bpcs, pcs)
	return Query{
		Text:      text,
		Predicate: predicate,
		Vars:      dedupVars(vars),
		PCs:       pcs,
		BPCs:      bpcs,
	}
}

func dedupVars(vs []*ir.Inst) []*ir.Inst {
	seen := make(map[*ir.Inst]bool, len(vs))
	var out []*ir.Inst
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
