package ir

import (
	"github.com/chazu/garnet/runtime"
)

// FoldableOperators are the operators ComputeValue understands.
var FoldableOperators = map[string]bool{"+": true, "-": true, "*": true, "/": true}

// ComputeValue folds f op other. It returns nil when the operation cannot
// be folded: an unknown operator, a non-numeric operand, or division by
// zero, which is left for the runtime to raise. Integer results wrap at
// 64 bits; division rounds toward negative infinity.
func (f *Fixnum) ComputeValue(op string, other Operand) Operand {
	switch o := other.(type) {
	case *Fixnum:
		a, b := f.Value, o.Value
		switch op {
		case "+":
			return NewFixnum(a + b)
		case "-":
			return NewFixnum(a - b)
		case "*":
			return NewFixnum(a * b)
		case "/":
			if b == 0 {
				return nil
			}
			return NewFixnum(runtime.FloorDiv(a, b))
		}
	case *Float:
		return computeFloat(float64(f.Value), op, o.Value)
	}
	return nil
}

// ComputeValue folds f op other, promoting a Fixnum operand to Float. A
// zero divisor refuses to fold.
func (f *Float) ComputeValue(op string, other Operand) Operand {
	switch o := other.(type) {
	case *Float:
		return computeFloat(f.Value, op, o.Value)
	case *Fixnum:
		return computeFloat(f.Value, op, float64(o.Value))
	}
	return nil
}

func computeFloat(a float64, op string, b float64) Operand {
	switch op {
	case "+":
		return NewFloat(a + b)
	case "-":
		return NewFloat(a - b)
	case "*":
		return NewFloat(a * b)
	case "/":
		if b == 0 {
			return nil
		}
		return NewFloat(a / b)
	}
	return nil
}

// Fold dispatches ComputeValue on a numeric receiver operand.
func Fold(recv Operand, op string, arg Operand) Operand {
	switch r := recv.(type) {
	case *Fixnum:
		return r.ComputeValue(op, arg)
	case *Float:
		return r.ComputeValue(op, arg)
	}
	return nil
}

// FoldOverflows reports whether folding recv op arg would leave the
// 64-bit range, where the runtime promotes to a bignum instead of
// wrapping.
func FoldOverflows(recv Operand, op string, arg Operand) bool {
	a, ok1 := recv.(*Fixnum)
	b, ok2 := arg.(*Fixnum)
	if !ok1 || !ok2 {
		return false
	}
	return runtime.IntegerOverflows(op, a.Value, b.Value)
}
