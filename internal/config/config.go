// Package config holds the configuration knobs spec.md S6 lists,
// mirroring original_source's cl::opt globals as fields on a plain
// struct rather than process-global flags, since CLI flag parsing is
// out of scope (spec.md S1) — a driver populates this struct however
// it likes and hands it to engine.Build.
package config

// Config is the tunable surface of the solver engine. Field names
// follow spec.md S6's table so a reader can match them 1:1.
type Config struct {
	// NoInfer: persistent-cache misses record an empty result without
	// calling the base engine.
	NoInfer bool
	// InferNop enables the no-op strategy (infer stage 4).
	InferNop bool
	// StressNop always runs the no-op small queries, even when the
	// big query was SAT.
	StressNop bool
	// MaxNops caps the number of no-op candidates tried.
	MaxNops int
	// InferInts enables the cheap-constant strategies (infer stages 1, 2) for W > 1.
	InferInts bool
	// InferInsts enables component-based synthesis (infer stage 5).
	InferInsts bool
	// ExhaustiveSynthesis enables exhaustive-search synthesis (infer stage 5).
	ExhaustiveSynthesis bool
	// MaxLHSSize bounds, in bytes, the external-cache admission size.
	MaxLHSSize int
	// RangeMaxPrecise requests strict errors on constant-synthesis
	// exhaustion inside constant_range.
	RangeMaxPrecise bool
}

// Default returns the stable defaults spec.md S6 names.
func Default() Config {
	return Config{
		NoInfer:             false,
		InferNop:            false,
		StressNop:           false,
		MaxNops:             20,
		InferInts:           true,
		InferInsts:          false,
		ExhaustiveSynthesis: false,
		MaxLHSSize:          1024,
		RangeMaxPrecise:     false,
	}
}
