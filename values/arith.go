package values

import (
	"fmt"
	"math/big"
)

// BinOp is the set of binary arithmetic operators the VM dispatches
// through Arith; mixed int/flt operations widen to flt.
type BinOp byte

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Arith evaluates a ∘ b for numeric a, b, widening int/flt mixes to flt.
// Division and modulo by zero return a DomainError-flavored plain error;
// callers (vm package) wrap it with provenance into a ferrors.Error.
func Arith(op BinOp, a, b *Value) (*Value, error) {
	if a.Variant == VInt && b.Variant == VInt {
		x, y := a.Payload.(*big.Int), b.Payload.(*big.Int)
		r := new(big.Int)
		switch op {
		case OpAdd:
			r.Add(x, y)
		case OpSub:
			r.Sub(x, y)
		case OpMul:
			r.Mul(x, y)
		case OpDiv:
			if y.Sign() == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			r.Quo(x, y)
		case OpMod:
			if y.Sign() == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			r.Rem(x, y)
		}
		return NewBigInt(r), nil
	}

	x, xok := toFloat(a)
	y, yok := toFloat(b)
	if !xok || !yok {
		return nil, fmt.Errorf("bad operation: arithmetic on non-numeric %s/%s", a.Variant, b.Variant)
	}
	var r float64
	switch op {
	case OpAdd:
		r = x + y
	case OpSub:
		r = x - y
	case OpMul:
		r = x * y
	case OpDiv:
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		r = x / y
	case OpMod:
		if y == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		r = float64(int64(x) % int64(y))
	}
	return NewFlt(r), nil
}

func toFloat(v *Value) (float64, bool) {
	switch v.Variant {
	case VInt:
		f := new(big.Float).SetInt(v.Payload.(*big.Int))
		out, _ := f.Float64()
		return out, true
	case VFlt:
		return *v.Payload.(*float64), true
	default:
		return 0, false
	}
}

// Compare orders two numeric/string values: -1, 0, 1. Used by the VM's
// comparison opcodes.
func Compare(a, b *Value) (int, error) {
	if a.Variant == VStr && b.Variant == VStr {
		sa, sb := string(*a.Payload.(*[]byte)), string(*b.Payload.(*[]byte))
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Variant == VInt && b.Variant == VInt {
		return a.Payload.(*big.Int).Cmp(b.Payload.(*big.Int)), nil
	}
	x, xok := toFloat(a)
	y, yok := toFloat(b)
	if !xok || !yok {
		return 0, fmt.Errorf("bad operation: comparison on non-comparable %s/%s", a.Variant, b.Variant)
	}
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	default:
		return 0, nil
	}
}
