// Package ir implements the interned expression DAG that peepsolve's
// solver engine reasons about: a typed, bit-precise integer IR in the
// style of souper's Inst graph, hash-consed so structurally identical
// subexpressions share one node.
package ir

import (
	"math/big"

	"golang.org/x/exp/constraints"
)

// Kind tags the opcode of an Inst node.
type Kind int

const (
	Var Kind = iota
	Const
	UntypedConst
	Phi

	And
	Or
	Xor
	Add
	Sub
	Mul

	Shl
	LShr
	AShr

	Eq
	Ne
	Ult
	Ule
	Slt
	Sle

	Select
	ExtractValue
	UAddWithOverflow
	UAddO
)

func (k Kind) String() string {
	switch k {
	case Var:
		return "var"
	case Const:
		return "const"
	case UntypedConst:
		return "untypedconst"
	case Phi:
		return "phi"
	case And:
		return "and"
	case Or:
		return "or"
	case Xor:
		return "xor"
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Shl:
		return "shl"
	case LShr:
		return "lshr"
	case AShr:
		return "ashr"
	case Eq:
		return "eq"
	case Ne:
		return "ne"
	case Ult:
		return "ult"
	case Ule:
		return "ule"
	case Slt:
		return "slt"
	case Sle:
		return "sle"
	case Select:
		return "select"
	case ExtractValue:
		return "extractvalue"
	case UAddWithOverflow:
		return "uaddwithoverflow"
	case UAddO:
		return "uaddo"
	default:
		return "unknown"
	}
}

// HarvestKind distinguishes an LHS root harvested verbatim from one
// harvested from a specific use, whose semantics infer's early-exit
// stage must respect (spec.md S4.4 step 3).
type HarvestKind int

const (
	HarvestedNormal HarvestKind = iota
	HarvestedFromUse
)

// Block is the predecessor-block descriptor a Phi's operands are
// keyed against. It is opaque to the solver beyond identity and the
// ordered predecessor list BuildQuery needs to serialize a Phi.
type Block struct {
	Name  string
	Preds int
}

// Inst is one immutable node of the interned DAG. Nodes are never
// mutated after Context.intern places them in the hash-cons table;
// two calls that would build structurally identical nodes return the
// same pointer.
type Inst struct {
	Kind     Kind
	Width    int
	Operands []*Inst

	// Var
	Name     string
	Demanded *big.Int // defaults to all-ones for Width

	// Const / UntypedConst
	Value *big.Int

	// Phi
	Block *Block

	// ExtractValue
	Index int

	// LHS roots only
	Harvest HarvestKind
}

// AllOnes returns the all-ones mask for w bits.
func AllOnes(w int) *big.Int {
	one := big.NewInt(1)
	mask := new(big.Int).Lsh(one, uint(w))
	mask.Sub(mask, one)
	return mask
}

// Mask truncates v to its low w bits, matching APInt's implicit wraparound.
func Mask(v *big.Int, w int) *big.Int {
	r := new(big.Int).And(v, AllOnes(w))
	return r
}

// IsZero reports whether the node is the constant zero of its width.
func (i *Inst) IsZero() bool {
	return (i.Kind == Const || i.Kind == UntypedConst) && i.Value.Sign() == 0
}

// SignBit returns the mask with only bit Width-1 set.
func SignBit(w int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(w-1))
}

// Clamp confines v to [lo, hi], shared by any caller that needs to
// bound a width or a loop index without duplicating the two
// comparisons inline (oracle.New clamps its MaxWidth this way).
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
