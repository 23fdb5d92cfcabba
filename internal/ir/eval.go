package ir

import (
	"math/big"

	"github.com/pkg/errors"
)

// Env is a concrete assignment used to evaluate a DAG: a value per
// variable name, plus (for Phi) which predecessor index was taken on
// each named block, since a pure functional evaluator has no actual
// control flow to resolve that from.
type Env struct {
	Vars   map[string]*big.Int
	Blocks map[string]int
}

// Eval evaluates n under env, truncating every intermediate result to
// its node's declared width (matching APInt's implicit wraparound).
// UAddWithOverflow has no single-value meaning and errors if evaluated
// directly; it must be consumed through ExtractValue.
func Eval(n *Inst, env *Env) (*big.Int, error) {
	switch n.Kind {
	case Const, UntypedConst:
		return new(big.Int).Set(n.Value), nil
	case Var:
		v, ok := env.Vars[n.Name]
		if !ok {
			return nil, errors.Errorf("no assignment for variable %q", n.Name)
		}
		return Mask(v, n.Width), nil
	case Phi:
		idx, ok := env.Blocks[n.Block.Name]
		if !ok || idx < 0 || idx >= len(n.Operands) {
			return nil, errors.Errorf("no predecessor choice for block %q", n.Block.Name)
		}
		return Eval(n.Operands[idx], env)
	case UAddWithOverflow:
		return nil, errors.New("UAddWithOverflow has no scalar value; use ExtractValue")
	case ExtractValue:
		return evalExtractValue(n, env)
	}

	a, err := Eval(n.Operands[0], env)
	if err != nil {
		return nil, err
	}
	if len(n.Operands) == 1 {
		return evalUnary(n, a)
	}
	b, err := Eval(n.Operands[1], env)
	if err != nil {
		return nil, err
	}
	if n.Kind == Select {
		c, err := Eval(n.Operands[2], env)
		if err != nil {
			return nil, err
		}
		if a.Sign() != 0 {
			return Mask(b, n.Width), nil
		}
		return Mask(c, n.Width), nil
	}
	return evalBinary(n, a, b)
}

func evalUnary(n *Inst, a *big.Int) (*big.Int, error) {
	switch n.Kind {
	case UAddO:
		return nil, errors.New("UAddO takes two operands")
	default:
		return nil, errors.Errorf("unsupported unary opcode %s", n.Kind)
	}
}

func evalBinary(n *Inst, a, b *big.Int) (*big.Int, error) {
	w := n.Operands[0].Width
	switch n.Kind {
	case And:
		return Mask(new(big.Int).And(a, b), n.Width), nil
	case Or:
		return Mask(new(big.Int).Or(a, b), n.Width), nil
	case Xor:
		return Mask(new(big.Int).Xor(a, b), n.Width), nil
	case Add:
		return Mask(new(big.Int).Add(a, b), n.Width), nil
	case Sub:
		return Mask(new(big.Int).Sub(a, b), n.Width), nil
	case Mul:
		return Mask(new(big.Int).Mul(a, b), n.Width), nil
	case Shl:
		return Mask(new(big.Int).Lsh(a, uint(b.Uint64())), n.Width), nil
	case LShr:
		return Mask(new(big.Int).Rsh(a, uint(b.Uint64())), n.Width), nil
	case AShr:
		return Mask(arithShr(a, uint(b.Uint64()), w), n.Width), nil
	case Eq:
		return boolInt(a.Cmp(b) == 0), nil
	case Ne:
		return boolInt(a.Cmp(b) != 0), nil
	case Ult:
		return boolInt(a.Cmp(b) < 0), nil
	case Ule:
		return boolInt(a.Cmp(b) <= 0), nil
	case Slt:
		return boolInt(toSigned(a, w).Cmp(toSigned(b, w)) < 0), nil
	case Sle:
		return boolInt(toSigned(a, w).Cmp(toSigned(b, w)) <= 0), nil
	case UAddO:
		sum := new(big.Int).Add(a, b)
		return boolInt(sum.Cmp(AllOnes(w)) > 0), nil
	default:
		return nil, errors.Errorf("unsupported binary opcode %s", n.Kind)
	}
}

func evalExtractValue(n *Inst, env *Env) (*big.Int, error) {
	agg := n.Operands[0]
	if agg.Kind != UAddWithOverflow {
		return nil, errors.Errorf("extractvalue over unsupported aggregate kind %s", agg.Kind)
	}
	a, err := Eval(agg.Operands[0], env)
	if err != nil {
		return nil, err
	}
	b, err := Eval(agg.Operands[1], env)
	if err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(a, b)
	switch n.Index {
	case 0:
		return Mask(sum, agg.Width), nil
	case 1:
		return boolInt(sum.Cmp(AllOnes(agg.Width)) > 0), nil
	default:
		return nil, errors.Errorf("uaddwithoverflow has no field %d", n.Index)
	}
}

func arithShr(a *big.Int, amount uint, w int) *big.Int {
	signed := toSigned(a, w)
	return new(big.Int).Rsh(signed, amount)
}

func toSigned(v *big.Int, w int) *big.Int {
	if v.Bit(w-1) == 0 {
		return new(big.Int).Set(v)
	}
	return new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(w)))
}

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
