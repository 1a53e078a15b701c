package ir

import (
	"bytes"
	"math"
)

// Children returns the direct sub-operands of op in evaluation order.
func Children(op Operand) []Operand {
	c, _ := children(op)
	return c
}

func children(op Operand) ([]Operand, bool) {
	switch o := op.(type) {
	case *Array:
		return o.Elems, true
	case *Hash:
		out := make([]Operand, 0, 2*len(o.Pairs))
		for _, p := range o.Pairs {
			out = append(out, p.Key, p.Value)
		}
		return out, true
	case *CompoundString:
		return o.Pieces, true
	case *BacktickString:
		return o.Pieces, true
	case *Range:
		return []Operand{o.Begin, o.End}, true
	case *Regexp:
		return []Operand{o.Source}, true
	case *DynamicSymbol:
		return []Operand{o.Name}, true
	case *DynamicReference:
		return []Operand{o.Name}, true
	case *Splat:
		return []Operand{o.Array}, true
	case *CompoundArray:
		return []Operand{o.A1, o.A2}, true
	case *SValue:
		return []Operand{o.Array}, true
	case *BreakResult:
		return []Operand{o.Value}, true
	case *MethodHandle:
		return []Operand{o.Receiver, o.Name}, true
	}
	return nil, false
}

// Walk visits op and its descendants depth-first, parents before
// children. Returning false from fn skips the node's children.
func Walk(op Operand, fn func(Operand) bool) {
	if !fn(op) {
		return
	}
	for _, c := range Children(op) {
		Walk(c, fn)
	}
}

// Equal reports whether a and b are structurally equal. Variables,
// labels and meta objects compare by identity.
func Equal(a, b Operand) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Fixnum:
		return x.Value == b.(*Fixnum).Value
	case *Bignum:
		return x.Value.Cmp(b.(*Bignum).Value) == 0
	case *Float:
		y := b.(*Float).Value
		return x.Value == y || (math.IsNaN(x.Value) && math.IsNaN(y))
	case *StringLiteral:
		y := b.(*StringLiteral)
		return x.Encoding == y.Encoding && bytes.Equal(x.Bytes, y.Bytes)
	case *Symbol:
		return x.Name == b.(*Symbol).Name
	case *Boolean:
		return x.Value == b.(*Boolean).Value
	case *MethAddr:
		return x.Name == b.(*MethAddr).Name
	case *ArgIndex:
		return x.Index == b.(*ArgIndex).Index
	case *Backref:
		return x.Type == b.(*Backref).Type
	case *NthRef:
		return x.N == b.(*NthRef).N
	case *GlobalVariable:
		return x.name == b.(*GlobalVariable).name
	case *Range:
		if x.Exclusive != b.(*Range).Exclusive {
			return false
		}
	case *Regexp:
		if x.Options != b.(*Regexp).Options {
			return false
		}
	case *CompoundString:
		if x.Encoding != b.(*CompoundString).Encoding {
			return false
		}
	case *CompoundArray:
		if x.ArgsPush != b.(*CompoundArray).ArgsPush {
			return false
		}
	case *BreakResult:
		if x.Target != b.(*BreakResult).Target {
			return false
		}
	}
	ca, composite := children(a)
	if !composite {
		// Leaves without payload compare by identity, handled above.
		return false
	}
	cb, _ := children(b)
	if len(ca) != len(cb) {
		return false
	}
	for i := range ca {
		if !Equal(ca[i], cb[i]) {
			return false
		}
	}
	return true
}
