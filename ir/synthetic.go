package ir

import (
	"fmt"

	"github.com/chazu/garnet/runtime"
)

// ---------------------------------------------------------------------------
// Argument plumbing
// ---------------------------------------------------------------------------

// ArgIndex is the positional argument at Index of the current activation.
type ArgIndex struct {
	base
	Index int
}

// NewArgIndex creates a reference to argument i.
func NewArgIndex(i int) *ArgIndex { return &ArgIndex{Index: i} }

func (a *ArgIndex) Kind() OperandKind         { return KindArgIndex }
func (a *ArgIndex) IsConstant() bool          { return false }
func (a *ArgIndex) Simplify(ValueMap) Operand { return a }
func (a *ArgIndex) String() string            { return fmt.Sprintf("arg(%d)", a.Index) }

func (a *ArgIndex) CloneForInlining(ii InlinerInfo) Operand {
	if op := ii.CallArg(a.Index); op != nil {
		return op
	}
	return a
}

func (a *ArgIndex) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.Arg(a.Index), nil
}

// Splat expands its operand into the surrounding argument list or array.
type Splat struct {
	owned
	Array Operand
}

// NewSplat creates a splat of op.
func NewSplat(op Operand) *Splat { return &Splat{Array: op} }

func (s *Splat) Kind() OperandKind      { return KindSplat }
func (s *Splat) IsConstant() bool       { return s.Array.IsConstant() }
func (s *Splat) IsNonAtomicValue() bool { return true }
func (s *Splat) operand()               {}
func (s *Splat) String() string         { return "*" + s.Array.String() }

func (s *Splat) FetchCompileTimeArrayElement(index int, wantSubArray bool) Operand {
	return s.Array.FetchCompileTimeArrayElement(index, wantSubArray)
}

func (s *Splat) Simplify(vm ValueMap) Operand {
	s.Array = s.Array.Simplify(vm)
	return s
}

func (s *Splat) AddUsedVariables(vars []Variable) []Variable {
	return s.Array.AddUsedVariables(vars)
}

func (s *Splat) CloneForInlining(ii InlinerInfo) Operand {
	return NewSplat(s.Array.CloneForInlining(ii))
}

// Retrieve always produces an array: nil splats to nothing, a value
// without to_a to itself.
func (s *Splat) Retrieve(ctx Context) (runtime.Value, error) {
	v, err := s.Array.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	return splatValue(ctx.Runtime(), v)
}

func splatValue(rt *runtime.Runtime, v runtime.Value) (*runtime.Array, error) {
	switch x := v.(type) {
	case *runtime.Array:
		return runtime.NewArray(append([]runtime.Value(nil), x.Elems...)...), nil
	case runtime.NilValue:
		return runtime.NewArray(), nil
	}
	if rt.ClassOf(v).FindMethod("to_a").Found() {
		r, err := rt.Send(v, "to_a")
		if err != nil {
			return nil, err
		}
		if arr, ok := r.(*runtime.Array); ok {
			return arr, nil
		}
		return nil, rt.TypeError(r, "Array")
	}
	return runtime.NewArray(v), nil
}

// CompoundArray concatenates two argument lists. With ArgsPush set, A2
// is appended as a single element instead of being splatted.
type CompoundArray struct {
	owned
	A1       Operand
	A2       Operand
	ArgsPush bool
}

// NewCompoundArray creates an argument concatenation.
func NewCompoundArray(a1, a2 Operand, argsPush bool) *CompoundArray {
	return &CompoundArray{A1: a1, A2: a2, ArgsPush: argsPush}
}

func (c *CompoundArray) Kind() OperandKind      { return KindCompoundArray }
func (c *CompoundArray) IsConstant() bool       { return c.A1.IsConstant() && c.A2.IsConstant() }
func (c *CompoundArray) IsNonAtomicValue() bool { return true }
func (c *CompoundArray) operand()               {}

func (c *CompoundArray) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

// Simplify merges two literal arrays into one.
func (c *CompoundArray) Simplify(vm ValueMap) Operand {
	c.A1 = c.A1.Simplify(vm)
	c.A2 = c.A2.Simplify(vm)
	a1, ok := c.A1.(*Array)
	if !ok || a1.hasSplat() {
		return c
	}
	elems := append([]Operand(nil), a1.Elems...)
	if c.ArgsPush {
		return NewArray(append(elems, c.A2)...)
	}
	a2, ok := c.A2.(*Array)
	if !ok || a2.hasSplat() {
		return c
	}
	return NewArray(append(elems, a2.Elems...)...)
}

func (c *CompoundArray) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, c.A1, c.A2)
}

func (c *CompoundArray) CloneForInlining(ii InlinerInfo) Operand {
	return NewCompoundArray(c.A1.CloneForInlining(ii), c.A2.CloneForInlining(ii), c.ArgsPush)
}

func (c *CompoundArray) Retrieve(ctx Context) (runtime.Value, error) {
	rt := ctx.Runtime()
	v1, err := c.A1.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	v2, err := c.A2.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	first, err := splatValue(rt, v1)
	if err != nil {
		return nil, err
	}
	if c.ArgsPush {
		return runtime.NewArray(append(first.Elems, v2)...), nil
	}
	second, err := splatValue(rt, v2)
	if err != nil {
		return nil, err
	}
	return runtime.NewArray(append(first.Elems, second.Elems...)...), nil
}

func (c *CompoundArray) String() string {
	op := "cat"
	if c.ArgsPush {
		op = "push"
	}
	return fmt.Sprintf("args%s(%s, %s)", op, c.A1, c.A2)
}

// SValue coerces a possibly multi-element array to a single value: an
// empty array is nil, a one-element array its element.
type SValue struct {
	owned
	Array Operand
}

// NewSValue creates a single-value coercion.
func NewSValue(op Operand) *SValue { return &SValue{Array: op} }

func (s *SValue) Kind() OperandKind      { return KindSValue }
func (s *SValue) IsConstant() bool       { return s.Array.IsConstant() }
func (s *SValue) IsNonAtomicValue() bool { return true }
func (s *SValue) operand()               {}
func (s *SValue) String() string         { return "svalue(" + s.Array.String() + ")" }

func (s *SValue) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

func (s *SValue) Simplify(vm ValueMap) Operand {
	s.Array = s.Array.Simplify(vm)
	if a, ok := s.Array.(*Array); ok && !a.hasSplat() {
		switch len(a.Elems) {
		case 0:
			return Nil
		case 1:
			return a.Elems[0]
		}
		return a
	}
	return s
}

func (s *SValue) AddUsedVariables(vars []Variable) []Variable {
	return s.Array.AddUsedVariables(vars)
}

func (s *SValue) CloneForInlining(ii InlinerInfo) Operand {
	return NewSValue(s.Array.CloneForInlining(ii))
}

func (s *SValue) Retrieve(ctx Context) (runtime.Value, error) {
	v, err := s.Array.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	if a, ok := v.(*runtime.Array); ok {
		switch len(a.Elems) {
		case 0:
			return runtime.Nil, nil
		case 1:
			return a.Elems[0], nil
		}
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// Label is a jump target. Labels are immutable: program counters are
// assigned by linking, which produces a separate table.
type Label struct {
	base
	Name string
}

// NewLabel creates a label. Scope.NewLabel produces unique names.
func NewLabel(name string) *Label { return &Label{Name: name} }

func (l *Label) Kind() OperandKind                       { return KindLabel }
func (l *Label) IsConstant() bool                        { return true }
func (l *Label) Simplify(ValueMap) Operand               { return l }
func (l *Label) CloneForInlining(ii InlinerInfo) Operand { return ii.RenameLabel(l) }
func (l *Label) String() string                          { return l.Name }

func (l *Label) Retrieve(Context) (runtime.Value, error) {
	Internal(l, "label used as a value")
	return nil, nil
}

// BreakResult carries a value out of a closure to the Target label of the
// enclosing scope.
type BreakResult struct {
	base
	Value  Operand
	Target *Label
}

// NewBreakResult creates a break value.
func NewBreakResult(v Operand, target *Label) *BreakResult {
	return &BreakResult{Value: v, Target: target}
}

func (b *BreakResult) Kind() OperandKind { return KindBreakResult }
func (b *BreakResult) IsConstant() bool  { return b.Value.IsConstant() }
func (b *BreakResult) String() string    { return fmt.Sprintf("break(%s -> %s)", b.Value, b.Target) }

func (b *BreakResult) Simplify(vm ValueMap) Operand {
	b.Value = b.Value.Simplify(vm)
	return b
}

func (b *BreakResult) AddUsedVariables(vars []Variable) []Variable {
	return b.Value.AddUsedVariables(vars)
}

func (b *BreakResult) CloneForInlining(ii InlinerInfo) Operand {
	return NewBreakResult(b.Value.CloneForInlining(ii), ii.RenameLabel(b.Target))
}

func (b *BreakResult) Retrieve(ctx Context) (runtime.Value, error) {
	return b.Value.Retrieve(ctx)
}

// MethAddr is a statically known method name.
type MethAddr struct {
	base
	Name string
}

// NewMethAddr creates a static method name.
func NewMethAddr(name string) *MethAddr { return &MethAddr{Name: name} }

func (m *MethAddr) Kind() OperandKind                       { return KindMethAddr }
func (m *MethAddr) IsConstant() bool                        { return true }
func (m *MethAddr) Simplify(ValueMap) Operand               { return m }
func (m *MethAddr) CloneForInlining(InlinerInfo) Operand    { return m }
func (m *MethAddr) String() string                          { return "'" + m.Name + "'" }
func (m *MethAddr) Retrieve(Context) (runtime.Value, error) { return runtime.Symbol(m.Name), nil }

// ---------------------------------------------------------------------------
// Regexp captures
// ---------------------------------------------------------------------------

// Backref is one of the special match variables $&, $`, $' and $+.
type Backref struct {
	base
	Type byte
}

// NewBackref creates a match reference; t is one of '&', '`', '\”, '+'.
func NewBackref(t byte) *Backref { return &Backref{Type: t} }

func (b *Backref) Kind() OperandKind                    { return KindBackref }
func (b *Backref) IsConstant() bool                     { return false }
func (b *Backref) Simplify(ValueMap) Operand            { return b }
func (b *Backref) CloneForInlining(InlinerInfo) Operand { return b }
func (b *Backref) String() string                       { return "$" + string(b.Type) }

func (b *Backref) Retrieve(ctx Context) (runtime.Value, error) {
	m := ctx.LastMatch()
	if m == nil {
		return runtime.Nil, nil
	}
	switch b.Type {
	case '&':
		return m.Group(0), nil
	case '`':
		return m.PreMatch(), nil
	case '\'':
		return m.PostMatch(), nil
	case '+':
		return m.LastGroup(), nil
	}
	Internal(b, "unknown backref type %q", b.Type)
	return nil, nil
}

// NthRef is the numbered capture $n of the last match.
type NthRef struct {
	base
	N int
}

// NewNthRef creates a reference to capture n.
func NewNthRef(n int) *NthRef { return &NthRef{N: n} }

func (n *NthRef) Kind() OperandKind                    { return KindNthRef }
func (n *NthRef) IsConstant() bool                     { return false }
func (n *NthRef) Simplify(ValueMap) Operand            { return n }
func (n *NthRef) CloneForInlining(InlinerInfo) Operand { return n }
func (n *NthRef) String() string                       { return fmt.Sprintf("$%d", n.N) }

func (n *NthRef) Retrieve(ctx Context) (runtime.Value, error) {
	m := ctx.LastMatch()
	if m == nil {
		return runtime.Nil, nil
	}
	return m.Group(n.N), nil
}

// ---------------------------------------------------------------------------
// Well-known exceptions
// ---------------------------------------------------------------------------

// StandardErrorClass is the StandardError class, the default rescue target.
type StandardErrorClass struct{ base }

// StandardError is the default rescue target.
var StandardError = &StandardErrorClass{}

func (s *StandardErrorClass) Kind() OperandKind                    { return KindStandardError }
func (s *StandardErrorClass) IsConstant() bool                     { return true }
func (s *StandardErrorClass) Simplify(ValueMap) Operand            { return s }
func (s *StandardErrorClass) CloneForInlining(InlinerInfo) Operand { return s }
func (s *StandardErrorClass) String() string                       { return "StandardError" }

func (s *StandardErrorClass) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.Runtime().StandardError, nil
}

// IRException is a well-known LocalJumpError raised for misplaced control
// flow. Retrieve creates a fresh exception object.
type IRException struct {
	base
	Reason string
}

var (
	BreakLocalJumpError  = &IRException{Reason: "break"}
	NextLocalJumpError   = &IRException{Reason: "next"}
	RedoLocalJumpError   = &IRException{Reason: "redo"}
	RetryLocalJumpError  = &IRException{Reason: "retry"}
	ReturnLocalJumpError = &IRException{Reason: "return"}
)

func (e *IRException) Kind() OperandKind                    { return KindIRException }
func (e *IRException) IsConstant() bool                     { return true }
func (e *IRException) Simplify(ValueMap) Operand            { return e }
func (e *IRException) CloneForInlining(InlinerInfo) Operand { return e }
func (e *IRException) String() string                       { return "LocalJumpError(" + e.Reason + ")" }

func (e *IRException) Retrieve(ctx Context) (runtime.Value, error) {
	rt := ctx.Runtime()
	return rt.NewException(rt.LocalJumpError, "unexpected %s", e.Reason), nil
}
