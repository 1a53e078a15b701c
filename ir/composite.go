package ir

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chazu/garnet/runtime"
)

// owned records the scope a mutable composite belongs to.
type owned struct {
	owner uuid.UUID
}

func (o *owned) ownerID() uuid.UUID    { return o.owner }
func (o *owned) setOwner(id uuid.UUID) { o.owner = id }

type ownable interface {
	Operand
	ownerID() uuid.UUID
	setOwner(id uuid.UUID)
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is an array literal. Splat elements are expanded on retrieval.
type Array struct {
	owned
	Elems []Operand
}

// NewArray creates an array literal.
func NewArray(elems ...Operand) *Array { return &Array{Elems: elems} }

func (a *Array) Kind() OperandKind      { return KindArray }
func (a *Array) IsConstant() bool       { return allConstant(a.Elems) }
func (a *Array) IsNonAtomicValue() bool { return true }
func (a *Array) operand()               {}

func (a *Array) Simplify(vm ValueMap) Operand {
	simplifyAll(a.Elems, vm)
	return a
}

func (a *Array) hasSplat() bool {
	for _, e := range a.Elems {
		if _, ok := e.(*Splat); ok {
			return true
		}
	}
	return false
}

func (a *Array) FetchCompileTimeArrayElement(index int, wantSubArray bool) Operand {
	if a.hasSplat() || index < 0 {
		return nil
	}
	if wantSubArray {
		if index >= len(a.Elems) {
			return NewArray()
		}
		return NewArray(append([]Operand(nil), a.Elems[index:]...)...)
	}
	if index >= len(a.Elems) {
		return Nil
	}
	return a.Elems[index]
}

func (a *Array) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, a.Elems...)
}

func (a *Array) CloneForInlining(ii InlinerInfo) Operand {
	return NewArray(cloneAll(a.Elems, ii)...)
}

func (a *Array) Retrieve(ctx Context) (runtime.Value, error) {
	out, err := RetrieveArgs(ctx, a.Elems)
	if err != nil {
		return nil, err
	}
	return runtime.NewArray(out...), nil
}

func (a *Array) String() string {
	return "[" + joinOperands(a.Elems, ", ") + "]"
}

func joinOperands(ops []Operand, sep string) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, sep)
}

// ---------------------------------------------------------------------------
// Hash
// ---------------------------------------------------------------------------

// KeyValue is one entry of a hash literal.
type KeyValue struct {
	Key   Operand
	Value Operand
}

// Hash is a hash literal with ordered entries.
type Hash struct {
	owned
	Pairs []KeyValue
}

// NewHash creates a hash literal.
func NewHash(pairs ...KeyValue) *Hash { return &Hash{Pairs: pairs} }

func (h *Hash) Kind() OperandKind      { return KindHash }
func (h *Hash) IsNonAtomicValue() bool { return true }
func (h *Hash) operand()               {}

func (h *Hash) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

func (h *Hash) IsConstant() bool {
	for _, p := range h.Pairs {
		if !p.Key.IsConstant() || !p.Value.IsConstant() {
			return false
		}
	}
	return true
}

func (h *Hash) Simplify(vm ValueMap) Operand {
	for i := range h.Pairs {
		h.Pairs[i].Key = h.Pairs[i].Key.Simplify(vm)
		h.Pairs[i].Value = h.Pairs[i].Value.Simplify(vm)
	}
	return h
}

func (h *Hash) AddUsedVariables(vars []Variable) []Variable {
	for _, p := range h.Pairs {
		vars = usedVariables(vars, p.Key, p.Value)
	}
	return vars
}

func (h *Hash) CloneForInlining(ii InlinerInfo) Operand {
	pairs := make([]KeyValue, len(h.Pairs))
	for i, p := range h.Pairs {
		pairs[i] = KeyValue{Key: p.Key.CloneForInlining(ii), Value: p.Value.CloneForInlining(ii)}
	}
	return NewHash(pairs...)
}

func (h *Hash) Retrieve(ctx Context) (runtime.Value, error) {
	out := runtime.NewHash()
	for _, p := range h.Pairs {
		k, err := p.Key.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		v, err := p.Value.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		out.Put(k, v)
	}
	return out, nil
}

func (h *Hash) String() string {
	parts := make([]string, len(h.Pairs))
	for i, p := range h.Pairs {
		parts[i] = p.Key.String() + " => " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ---------------------------------------------------------------------------
// Compound strings
// ---------------------------------------------------------------------------

// CompoundString is an interpolated string. Non-string pieces are
// converted with to_s when retrieved.
type CompoundString struct {
	owned
	Pieces   []Operand
	Encoding string
}

// NewCompoundString creates a UTF-8 interpolated string.
func NewCompoundString(pieces ...Operand) *CompoundString {
	return &CompoundString{Pieces: pieces, Encoding: UTF8}
}

func (s *CompoundString) Kind() OperandKind      { return KindCompoundString }
func (s *CompoundString) IsConstant() bool       { return allConstant(s.Pieces) }
func (s *CompoundString) IsNonAtomicValue() bool { return true }
func (s *CompoundString) operand()               {}

func (s *CompoundString) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

// Simplify folds the string into a single StringLiteral when every piece
// is a string literal in the same encoding. Pieces that would need a to_s
// dispatch keep the string compound.
func (s *CompoundString) Simplify(vm ValueMap) Operand {
	simplifyAll(s.Pieces, vm)
	if folded := s.fold(); folded != nil {
		return folded
	}
	return s
}

func (s *CompoundString) fold() *StringLiteral {
	var buf bytes.Buffer
	for _, p := range s.Pieces {
		lit, ok := p.(*StringLiteral)
		if !ok || !strings.EqualFold(lit.Encoding, s.Encoding) {
			return nil
		}
		buf.Write(lit.Bytes)
	}
	return NewEncodedString(buf.Bytes(), s.Encoding)
}

func (s *CompoundString) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, s.Pieces...)
}

func (s *CompoundString) CloneForInlining(ii InlinerInfo) Operand {
	return &CompoundString{Pieces: cloneAll(s.Pieces, ii), Encoding: s.Encoding}
}

func (s *CompoundString) Retrieve(ctx Context) (runtime.Value, error) {
	b, err := buildString(ctx, s.Pieces)
	if err != nil {
		return nil, err
	}
	return &runtime.String{Bytes: b, Encoding: s.Encoding}, nil
}

func buildString(ctx Context, pieces []Operand) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range pieces {
		v, err := p.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		str, err := ctx.Runtime().ToS(v)
		if err != nil {
			return nil, err
		}
		buf.Write(str.Bytes)
	}
	return buf.Bytes(), nil
}

func (s *CompoundString) String() string {
	return "\"" + interpolation(s.Pieces) + "\""
}

func interpolation(pieces []Operand) string {
	var sb strings.Builder
	for _, p := range pieces {
		if lit, ok := p.(*StringLiteral); ok {
			q := lit.String()
			sb.WriteString(q[1 : len(q)-1])
			continue
		}
		sb.WriteString("#{" + p.String() + "}")
	}
	return sb.String()
}

// BacktickString runs its interpolated text as a shell command through
// the receiver's backtick method. It is never constant.
type BacktickString struct {
	owned
	Pieces []Operand
}

// NewBacktickString creates a shell-capture string.
func NewBacktickString(pieces ...Operand) *BacktickString {
	return &BacktickString{Pieces: pieces}
}

func (s *BacktickString) Kind() OperandKind      { return KindBacktickString }
func (s *BacktickString) IsConstant() bool       { return false }
func (s *BacktickString) IsNonAtomicValue() bool { return true }
func (s *BacktickString) operand()               {}

func (s *BacktickString) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

func (s *BacktickString) Simplify(vm ValueMap) Operand {
	simplifyAll(s.Pieces, vm)
	return s
}

func (s *BacktickString) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, s.Pieces...)
}

func (s *BacktickString) CloneForInlining(ii InlinerInfo) Operand {
	return NewBacktickString(cloneAll(s.Pieces, ii)...)
}

func (s *BacktickString) Retrieve(ctx Context) (runtime.Value, error) {
	b, err := buildString(ctx, s.Pieces)
	if err != nil {
		return nil, err
	}
	return ctx.Runtime().Send(ctx.Self(), "`", &runtime.String{Bytes: b, Encoding: UTF8})
}

func (s *BacktickString) String() string {
	return "`" + interpolation(s.Pieces) + "`"
}

// ---------------------------------------------------------------------------
// Range
// ---------------------------------------------------------------------------

// Range is a range literal.
type Range struct {
	owned
	Begin     Operand
	End       Operand
	Exclusive bool
}

// NewRange creates a range literal.
func NewRange(begin, end Operand, exclusive bool) *Range {
	return &Range{Begin: begin, End: end, Exclusive: exclusive}
}

func (r *Range) Kind() OperandKind      { return KindRange }
func (r *Range) IsConstant() bool       { return r.Begin.IsConstant() && r.End.IsConstant() }
func (r *Range) IsNonAtomicValue() bool { return true }
func (r *Range) operand()               {}

func (r *Range) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

func (r *Range) Simplify(vm ValueMap) Operand {
	r.Begin = r.Begin.Simplify(vm)
	r.End = r.End.Simplify(vm)
	return r
}

func (r *Range) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, r.Begin, r.End)
}

func (r *Range) CloneForInlining(ii InlinerInfo) Operand {
	return NewRange(r.Begin.CloneForInlining(ii), r.End.CloneForInlining(ii), r.Exclusive)
}

func (r *Range) Retrieve(ctx Context) (runtime.Value, error) {
	b, err := r.Begin.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	e, err := r.End.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	return &runtime.Range{Begin: b, End: e, Exclusive: r.Exclusive}, nil
}

func (r *Range) String() string {
	op := ".."
	if r.Exclusive {
		op = "..."
	}
	return "(" + r.Begin.String() + op + r.End.String() + ")"
}

// ---------------------------------------------------------------------------
// Regexp
// ---------------------------------------------------------------------------

// Regexp is a regexp literal. A constant source, or the once flag, makes
// every evaluation return the same compiled object.
type Regexp struct {
	owned
	Source  Operand
	Options runtime.RegexpOptions

	compiled atomic.Pointer[runtime.Regexp]
}

// NewRegexp creates a regexp literal.
func NewRegexp(source Operand, opts runtime.RegexpOptions) *Regexp {
	return &Regexp{Source: source, Options: opts}
}

func (r *Regexp) Kind() OperandKind      { return KindRegexp }
func (r *Regexp) IsConstant() bool       { return r.Source.IsConstant() }
func (r *Regexp) IsNonAtomicValue() bool { return true }
func (r *Regexp) operand()               {}

func (r *Regexp) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

func (r *Regexp) Simplify(vm ValueMap) Operand {
	r.Source = r.Source.Simplify(vm)
	return r
}

func (r *Regexp) AddUsedVariables(vars []Variable) []Variable {
	return r.Source.AddUsedVariables(vars)
}

func (r *Regexp) CloneForInlining(ii InlinerInfo) Operand {
	return NewRegexp(r.Source.CloneForInlining(ii), r.Options)
}

func (r *Regexp) Retrieve(ctx Context) (runtime.Value, error) {
	cacheable := r.Options&runtime.RegexpOnce != 0
	if _, ok := r.Source.(*StringLiteral); ok {
		cacheable = true
	}
	if cacheable {
		if re := r.compiled.Load(); re != nil {
			return re, nil
		}
	}
	src, err := r.Source.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	s, err := ctx.Runtime().ToS(src)
	if err != nil {
		return nil, err
	}
	re, err := runtime.CompileRegexp(ctx.Runtime(), s.String(), r.Options)
	if err != nil {
		return nil, err
	}
	if cacheable {
		// Concurrent first evaluations may compile twice; the first store wins.
		if !r.compiled.CompareAndSwap(nil, re) {
			return r.compiled.Load(), nil
		}
	}
	return re, nil
}

func (r *Regexp) String() string {
	src := r.Source.String()
	if lit, ok := r.Source.(*StringLiteral); ok {
		src = lit.Text()
	}
	return "/" + src + "/" + r.Options.String()
}

// ---------------------------------------------------------------------------
// Dynamic names
// ---------------------------------------------------------------------------

// DynamicSymbol is a symbol whose name is interpolated.
type DynamicSymbol struct {
	owned
	Name *CompoundString
}

// NewDynamicSymbol creates an interpolated symbol.
func NewDynamicSymbol(name *CompoundString) *DynamicSymbol { return &DynamicSymbol{Name: name} }

func (d *DynamicSymbol) Kind() OperandKind      { return KindDynamicSymbol }
func (d *DynamicSymbol) IsConstant() bool       { return d.Name.IsConstant() }
func (d *DynamicSymbol) IsNonAtomicValue() bool { return false }
func (d *DynamicSymbol) operand()               {}

func (d *DynamicSymbol) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

// Simplify turns the symbol into a Symbol literal once its name folds.
func (d *DynamicSymbol) Simplify(vm ValueMap) Operand {
	switch n := d.Name.Simplify(vm).(type) {
	case *StringLiteral:
		return NewSymbol(n.Text())
	case *CompoundString:
		d.Name = n
	}
	return d
}

func (d *DynamicSymbol) AddUsedVariables(vars []Variable) []Variable {
	return d.Name.AddUsedVariables(vars)
}

func (d *DynamicSymbol) CloneForInlining(ii InlinerInfo) Operand {
	return NewDynamicSymbol(d.Name.CloneForInlining(ii).(*CompoundString))
}

func (d *DynamicSymbol) Retrieve(ctx Context) (runtime.Value, error) {
	v, err := d.Name.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	return runtime.Symbol(v.(*runtime.String).String()), nil
}

func (d *DynamicSymbol) String() string { return ":" + d.Name.String() }

// DynamicReference is a constant reference whose name is interpolated.
// It resolves against the current module, then Object.
type DynamicReference struct {
	owned
	Name *CompoundString
}

// NewDynamicReference creates an interpolated constant reference.
func NewDynamicReference(name *CompoundString) *DynamicReference {
	return &DynamicReference{Name: name}
}

func (d *DynamicReference) Kind() OperandKind      { return KindDynamicReference }
func (d *DynamicReference) IsConstant() bool       { return false }
func (d *DynamicReference) IsNonAtomicValue() bool { return false }
func (d *DynamicReference) operand()               {}

func (d *DynamicReference) FetchCompileTimeArrayElement(int, bool) Operand { return nil }

// Simplify keeps the reference dynamic: a constant can be rebound at
// any time. A name that folds to a literal is stored in folded form.
func (d *DynamicReference) Simplify(vm ValueMap) Operand {
	if n, ok := d.Name.Simplify(vm).(*StringLiteral); ok {
		d.Name = &CompoundString{Pieces: []Operand{n}, Encoding: n.Encoding}
	}
	return d
}

func (d *DynamicReference) AddUsedVariables(vars []Variable) []Variable {
	return d.Name.AddUsedVariables(vars)
}

func (d *DynamicReference) CloneForInlining(ii InlinerInfo) Operand {
	return NewDynamicReference(d.Name.CloneForInlining(ii).(*CompoundString))
}

func (d *DynamicReference) Retrieve(ctx Context) (runtime.Value, error) {
	v, err := d.Name.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	name := v.(*runtime.String).String()
	rt := ctx.Runtime()
	if mod := ctx.CurrentModule(); mod != nil {
		if c, ok := mod.Constant(name); ok {
			return c, nil
		}
	}
	if c, ok := rt.ObjectClass.Constant(name); ok {
		return c, nil
	}
	return nil, rt.NewError(rt.NameError, "uninitialized constant %s", name)
}

func (d *DynamicReference) String() string {
	return fmt.Sprintf("const(%s)", d.Name)
}
