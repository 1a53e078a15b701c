package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// ScopeKind classifies compile-time scopes.
type ScopeKind uint8

const (
	ScriptScope ScopeKind = iota
	ClassScope
	ModuleScope
	MethodScope
	ClosureScope
)

func (k ScopeKind) String() string {
	switch k {
	case ScriptScope:
		return "script"
	case ClassScope:
		return "class"
	case ModuleScope:
		return "module"
	case MethodScope:
		return "method"
	case ClosureScope:
		return "closure"
	}
	return "unknown"
}

// ParseScopeKind is the inverse of ScopeKind.String.
func ParseScopeKind(s string) (ScopeKind, error) {
	for k := ScriptScope; k <= ClosureScope; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown scope kind %q", s)
}

type localKey struct {
	name  string
	depth int
}

// Scope is a compile-time scope: a script, class or module body, method
// or closure. It owns its instructions and the operand graph they
// reference.
type Scope struct {
	ID     uuid.UUID
	Kind   ScopeKind
	Name   string
	Parent *Scope
	// Arity is the number of required positional arguments; -1 accepts
	// any number.
	Arity    int
	Instrs   []Instr
	Children []*Scope

	locals      map[localKey]Variable
	slots       []string
	temps       []Variable
	labels      map[string]*Label
	nextLabel   int
	nextClosure int
	closureID   int
}

// NewScope creates a top-level scope.
func NewScope(kind ScopeKind, name string) *Scope {
	return &Scope{
		ID:     uuid.New(),
		Kind:   kind,
		Name:   name,
		locals: make(map[localKey]Variable),
		labels: make(map[string]*Label),
	}
}

// NewChild creates a nested scope, such as a method inside a class body.
func (s *Scope) NewChild(kind ScopeKind, name string) *Scope {
	c := NewScope(kind, name)
	c.Parent = s
	if kind == ClosureScope {
		root := s.closureRoot()
		root.nextClosure++
		c.closureID = root.nextClosure
	}
	s.Children = append(s.Children, c)
	return c
}

// NewClosure creates a nested closure scope.
func (s *Scope) NewClosure(name string) *Scope {
	return s.NewChild(ClosureScope, name)
}

// RestoreClosure creates a closure child with a known closure number,
// as recorded by an earlier NewClosure. Later NewClosure calls number
// past it.
func (s *Scope) RestoreClosure(name string, id int) *Scope {
	c := NewScope(ClosureScope, name)
	c.Parent = s
	c.closureID = id
	if root := s.closureRoot(); root.nextClosure < id {
		root.nextClosure = id
	}
	s.Children = append(s.Children, c)
	return c
}

func (s *Scope) closureRoot() *Scope {
	r := s
	for r.Kind == ClosureScope && r.Parent != nil {
		r = r.Parent
	}
	return r
}

// ClosureID returns the closure number of a closure scope, 0 otherwise.
func (s *Scope) ClosureID() int { return s.closureID }

func (s *Scope) String() string {
	return fmt.Sprintf("%s %s", s.Kind, s.Name)
}

// ---------------------------------------------------------------------------
// Variables and labels
// ---------------------------------------------------------------------------

// LocalVariable returns the variable name defined depth scopes outward,
// creating its slot on first use. Repeated calls return the same
// variable.
func (s *Scope) LocalVariable(name string, depth int) Variable {
	key := localKey{name, depth}
	if v, ok := s.locals[key]; ok {
		return v
	}
	def := s
	for i := 0; i < depth; i++ {
		if def.Parent == nil {
			panic(&InternalError{Scope: s, Instr: -1, Reason: fmt.Sprintf("variable %s at depth %d escapes the outermost scope", name, depth)})
		}
		def = def.Parent
	}
	offset := def.slot(name)

	var v Variable
	if s.Kind == ClosureScope && depth == 0 {
		v = &ClosureLocalVariable{name: name, depth: depth, offset: offset, closureID: s.closureID}
	} else {
		v = &LocalVariable{name: name, depth: depth, offset: offset}
	}
	s.locals[key] = v
	return v
}

func (s *Scope) slot(name string) int {
	for i, n := range s.slots {
		if n == name {
			return i
		}
	}
	s.slots = append(s.slots, name)
	return len(s.slots) - 1
}

// DeclareLocal reserves a local slot for name and returns its offset.
func (s *Scope) DeclareLocal(name string) int { return s.slot(name) }

// LocalNames returns the names of the local slots, indexed by offset.
func (s *Scope) LocalNames() []string { return s.slots }

// NumLocals is the number of local slots a frame for s needs.
func (s *Scope) NumLocals() int { return len(s.slots) }

// NumTemps is the number of temporary slots a frame for s needs.
func (s *Scope) NumTemps() int { return len(s.temps) }

// Temps returns the temporaries of s, indexed by slot.
func (s *Scope) Temps() []Variable { return s.temps }

// TempAt returns the temporary in slot i, or nil.
func (s *Scope) TempAt(i int) Variable {
	if i < 0 || i >= len(s.temps) {
		return nil
	}
	return s.temps[i]
}

// NewTemporaryVariable allocates a fresh temporary.
func (s *Scope) NewTemporaryVariable() Variable {
	var v Variable
	if s.Kind == ClosureScope {
		v = &TemporaryClosureVariable{closureID: s.closureID, index: len(s.temps)}
	} else {
		v = &TemporaryVariable{index: len(s.temps)}
	}
	s.temps = append(s.temps, v)
	return v
}

// NewRenamedVariable allocates a temporary slot named after prefix.
func (s *Scope) NewRenamedVariable(prefix string) *RenamedVariable {
	v := &RenamedVariable{prefix: prefix, index: len(s.temps)}
	s.temps = append(s.temps, v)
	return v
}

// NewLabel creates a label with a name unique in s.
func (s *Scope) NewLabel(prefix string) *Label {
	for {
		s.nextLabel++
		name := fmt.Sprintf("%s_%d", prefix, s.nextLabel)
		if _, taken := s.labels[name]; !taken {
			return s.Label(name)
		}
	}
}

// Label returns the label called name in s, creating it on first use.
func (s *Scope) Label(name string) *Label {
	if l, ok := s.labels[name]; ok {
		return l
	}
	l := NewLabel(name)
	s.labels[name] = l
	return l
}

// ---------------------------------------------------------------------------
// Ownership
// ---------------------------------------------------------------------------

// Shareable reports whether op may be referenced from more than one
// place: it contains no composite that is rewritten in place.
func Shareable(op Operand) bool {
	shareable := true
	Walk(op, func(o Operand) bool {
		if _, ok := o.(ownable); ok {
			shareable = false
		}
		return shareable
	})
	return shareable
}

// Adopt claims every mutable composite in op for s. A composite already
// owned by another scope is an internal error: in-place simplification
// in one scope would silently rewrite the other.
func (s *Scope) Adopt(op Operand) {
	Walk(op, func(o Operand) bool {
		own, ok := o.(ownable)
		if !ok {
			return true
		}
		switch id := own.ownerID(); id {
		case uuid.Nil:
			own.setOwner(s.ID)
		case s.ID:
		default:
			panic(&InternalError{
				Operand: o,
				Scope:   s,
				Instr:   -1,
				Reason:  fmt.Sprintf("operand owned by scope %s shared into scope %s", id, s.ID),
			})
		}
		return true
	})
}

// Owns reports whether every composite in op is owned by s or unowned.
func (s *Scope) Owns(op Operand) bool {
	ok := true
	Walk(op, func(o Operand) bool {
		if own, isOwnable := o.(ownable); isOwnable {
			if id := own.ownerID(); id != uuid.Nil && id != s.ID {
				ok = false
			}
		}
		return ok
	})
	return ok
}

// AddInstr appends instr and adopts its operands.
func (s *Scope) AddInstr(instr Instr) {
	for _, op := range instr.Operands() {
		s.Adopt(op)
	}
	s.Instrs = append(s.Instrs, instr)
}

// SimplifyInstr simplifies the operands of instr, which must belong to s,
// and adopts anything simplification synthesized.
func (s *Scope) SimplifyInstr(instr Instr, vm ValueMap) {
	for _, op := range instr.Operands() {
		if !s.Owns(op) {
			panic(&InternalError{Operand: op, Scope: s, Instr: -1, Reason: "simplifying an operand owned by another scope"})
		}
	}
	instr.SimplifyOperands(vm)
	for _, op := range instr.Operands() {
		s.Adopt(op)
	}
}

// InstrCount is the number of non-label instructions in s.
func (s *Scope) InstrCount() int {
	n := 0
	for _, i := range s.Instrs {
		if _, ok := i.(*LabelInstr); !ok {
			n++
		}
	}
	return n
}

// Find returns the nested scope with the given kind and name, searching
// depth-first.
func (s *Scope) Find(kind ScopeKind, name string) *Scope {
	if s.Kind == kind && s.Name == name {
		return s
	}
	for _, c := range s.Children {
		if f := c.Find(kind, name); f != nil {
			return f
		}
	}
	return nil
}
