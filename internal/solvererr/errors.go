// Package solvererr defines the error kinds that flow up through
// peepsolve's inference cascade and decorators, generalizing the
// ErrorType + struct + constructor pattern from sentra's
// internal/errors package (itself modeled on std::error_code in
// original_source/lib/Extractor/Solver.cpp) to the five kinds spec.md
// S7 names.
package solvererr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the tag of a solver error.
type Kind string

const (
	// OracleFailure: the SMT oracle returned an error or timed out in
	// a way the caller must see.
	OracleFailure Kind = "oracle_failure"
	// ValueTooLarge: serialization produced an empty query string, or
	// an LHS fingerprint exceeded cache admission size.
	ValueTooLarge Kind = "value_too_large"
	// ProtocolError: a cached result failed to parse back to a valid RHS.
	ProtocolError Kind = "protocol_error"
	// RangeImprecise: constant-synthesis bound exceeded during range
	// inference under strict mode.
	RangeImprecise Kind = "range_imprecise"
	// Fatal: an invariant was violated (big/small query disagreement,
	// missing model for a synthesis constant). Callers that see this
	// are expected to abort the process after recording diagnostics.
	Fatal Kind = "fatal"
)

// SolverError is a solver-domain error carrying its Kind plus whatever
// diagnostic context is relevant to that kind (a fingerprint, a
// byte size, the underlying cause).
type SolverError struct {
	Kind        Kind
	Message     string
	Fingerprint string // set for ProtocolError and Fatal
	Cause       error
}

func (e *SolverError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("%s: %s (fingerprint=%q)", e.Kind, e.Message, e.Fingerprint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As (and pkg/errors' Cause) see through
// to the underlying error, e.g. an oracle timeout.
func (e *SolverError) Unwrap() error { return e.Cause }

// New builds a bare SolverError of the given kind.
func New(k Kind, message string) *SolverError {
	return &SolverError{Kind: k, Message: message}
}

// Wrap builds a SolverError of the given kind wrapping cause with pkg/errors
// so the original stack trace survives for diagnostics.
func Wrap(k Kind, cause error, message string) *SolverError {
	return &SolverError{Kind: k, Message: message, Cause: errors.Wrap(cause, message)}
}

// WithFingerprint attaches a fingerprint to an error for diagnostics.
func (e *SolverError) WithFingerprint(fp string) *SolverError {
	cp := *e
	cp.Fingerprint = fp
	return &cp
}

// Is reports whether err is a SolverError of kind k.
func Is(err error, k Kind) bool {
	se, ok := err.(*SolverError)
	return ok && se.Kind == k
}

// OracleFailuref builds an OracleFailure error with a formatted message.
func OracleFailuref(format string, args ...interface{}) *SolverError {
	return New(OracleFailure, fmt.Sprintf(format, args...))
}

// ValueTooLargef builds a ValueTooLarge error with a formatted message.
func ValueTooLargef(format string, args ...interface{}) *SolverError {
	return New(ValueTooLarge, fmt.Sprintf(format, args...))
}
