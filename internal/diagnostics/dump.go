// Package diagnostics implements the "fatal: emit the fingerprint and
// abort" requirement of spec.md S4.4/S9 — the big-query/small-query
// consistency check (and any other invariant violation) must dump
// enough to debug the serializer or oracle bug that tripped it, never
// paper over it.
package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"peepsolve/internal/solvererr"
)

// Dump renders a fatal SolverError's fingerprint and any structured
// payload to w. When w is a terminal (detected via go-isatty, as
// original_source's diagnostics assume a human is watching stderr),
// the dump is split onto multiple lines for readability; otherwise it
// is written as a single compact line suitable for appending to a bug
// report file.
func Dump(w io.Writer, err *solvererr.SolverError, payload interface{}) {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if tty {
		fmt.Fprintf(w, "peepsolve: fatal: %s\n", err.Message)
		if err.Fingerprint != "" {
			fmt.Fprintf(w, "  fingerprint: %s\n", err.Fingerprint)
		}
		if payload != nil {
			fmt.Fprintf(w, "  payload:\n%# v\n", pretty.Formatter(payload))
		}
		return
	}
	fmt.Fprintf(w, "peepsolve: fatal: %s; fingerprint=%q; payload=%# v\n", err.Message, err.Fingerprint, pretty.Formatter(payload))
}

// Abort dumps err and payload to w, then terminates the process with
// a non-zero status. This is the "aborts the process with a
// replacement dump" behavior spec.md S4.4/S7 requires of a Fatal
// error (the big-query/small-query disagreement and any other
// invariant violation): callers that observe solvererr.Fatal must not
// swallow it or keep running, matching original_source's
// llvm::report_fatal_error calls at the equivalent Solver.cpp sites.
func Abort(w io.Writer, err *solvererr.SolverError, payload interface{}) {
	Dump(w, err, payload)
	os.Exit(2)
}
