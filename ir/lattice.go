package ir

import "github.com/chazu/garnet/runtime"

// LatticeValue is a dataflow lattice element. Lattice values only exist
// inside analyses and are never evaluated.
type LatticeValue struct {
	base
	name string
}

var (
	Top    = &LatticeValue{name: "TOP"}
	Bottom = &LatticeValue{name: "BOTTOM"}
	Any    = &LatticeValue{name: "ANY"}
)

func (l *LatticeValue) Kind() OperandKind                    { return KindLattice }
func (l *LatticeValue) IsConstant() bool                     { return false }
func (l *LatticeValue) Simplify(ValueMap) Operand            { return l }
func (l *LatticeValue) CloneForInlining(InlinerInfo) Operand { return l }
func (l *LatticeValue) String() string                       { return l.name }

func (l *LatticeValue) Retrieve(Context) (runtime.Value, error) {
	Internal(l, "lattice value evaluated")
	return nil, nil
}

// Meet combines two lattice facts about a variable. Constants meet to
// themselves when equal and to Bottom otherwise.
func Meet(a, b Operand) Operand {
	switch {
	case a == Top:
		return b
	case b == Top:
		return a
	case a == Bottom || b == Bottom:
		return Bottom
	case a == Any || b == Any:
		return Any
	case Equal(a, b):
		return a
	}
	return Bottom
}
