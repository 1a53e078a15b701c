package interp

import (
	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

// Frame is the activation record of one scope. It implements ir.Context.
type Frame struct {
	interp *Interpreter
	scope  *ir.Scope

	// lexical is the frame of the enclosing scope for closures, nil for
	// method, class and script frames.
	lexical *Frame

	self   runtime.Value
	module *runtime.Class
	args   []runtime.Value
	block  runtime.Value
	locals []runtime.Value
	temps  []runtime.Value
	match  *runtime.MatchData
}

func (in *Interpreter) newFrame(s *ir.Scope, lexical *Frame, self runtime.Value, module *runtime.Class, args []runtime.Value, block runtime.Value) *Frame {
	if block == nil {
		block = runtime.Nil
	}
	f := &Frame{
		interp:  in,
		scope:   s,
		lexical: lexical,
		self:    self,
		module:  module,
		args:    args,
		block:   block,
		locals:  make([]runtime.Value, s.NumLocals()),
		temps:   make([]runtime.Value, s.NumTemps()),
	}
	return f
}

// Scope returns the scope the frame runs.
func (f *Frame) Scope() *ir.Scope { return f.scope }

func (f *Frame) Runtime() *runtime.Runtime     { return f.interp.rt }
func (f *Frame) Self() runtime.Value           { return f.self }
func (f *Frame) CurrentModule() *runtime.Class { return f.module }

func (f *Frame) Arg(i int) runtime.Value {
	if i >= 0 && i < len(f.args) {
		return f.args[i]
	}
	return runtime.Undefined
}

// home is the outermost frame of a closure nest. Closures share its
// last match.
func (f *Frame) home() *Frame {
	h := f
	for h.lexical != nil {
		h = h.lexical
	}
	return h
}

func (f *Frame) LastMatch() *runtime.MatchData { return f.home().match }

func (f *Frame) setLastMatch(m *runtime.MatchData) { f.home().match = m }

func (f *Frame) up(depth int) *Frame {
	fr := f
	for i := 0; i < depth; i++ {
		if fr.lexical == nil {
			panic(&ir.InternalError{Scope: f.scope, Instr: -1, Reason: "variable depth escapes the frame chain"})
		}
		fr = fr.lexical
	}
	return fr
}

func grow(vals []runtime.Value, i int) []runtime.Value {
	for len(vals) <= i {
		vals = append(vals, nil)
	}
	return vals
}

// Load reads a variable. Unassigned variables read as nil.
func (f *Frame) Load(v ir.Variable) (runtime.Value, error) {
	var val runtime.Value
	switch x := v.(type) {
	case *ir.SelfVariable:
		return f.self, nil
	case *ir.GlobalVariable:
		return f.interp.rt.Global(x.Name()), nil
	case ir.LocalSlot:
		fr := f.up(x.Depth())
		if x.Offset() < len(fr.locals) {
			val = fr.locals[x.Offset()]
		}
	case ir.TempSlot:
		if x.Slot() < len(f.temps) {
			val = f.temps[x.Slot()]
		}
	default:
		ir.Internal(v, "cannot load %T", v)
	}
	if val == nil {
		return runtime.Nil, nil
	}
	return val, nil
}

// Store writes a variable.
func (f *Frame) Store(v ir.Variable, val runtime.Value) {
	switch x := v.(type) {
	case *ir.GlobalVariable:
		f.interp.rt.SetGlobal(x.Name(), val)
	case ir.LocalSlot:
		fr := f.up(x.Depth())
		fr.locals = grow(fr.locals, x.Offset())
		fr.locals[x.Offset()] = val
	case ir.TempSlot:
		f.temps = grow(f.temps, x.Slot())
		f.temps[x.Slot()] = val
	default:
		ir.Internal(v, "cannot assign %T", v)
	}
}

// ResolveScope maps compile-time scopes to live objects. Closure scopes
// become procs capturing f.
func (f *Frame) ResolveScope(s *ir.Scope) (runtime.Value, error) {
	rt := f.interp.rt
	switch s.Kind {
	case ir.ClassScope, ir.ModuleScope:
		if c := rt.LookupClass(s.Name); c != nil {
			return c, nil
		}
		return nil, rt.NewError(rt.NameError, "uninitialized constant %s", s.Name)
	case ir.MethodScope:
		return runtime.Symbol(s.Name), nil
	case ir.ClosureScope:
		return f.interp.closure(s, f), nil
	}
	return rt.Main, nil
}
