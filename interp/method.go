package interp

import (
	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

// ScopeMethod is a method whose body is an IR scope. It runs with the
// module it was defined in as its lexical module.
type ScopeMethod struct {
	interp *Interpreter
	scope  *ir.Scope
	module *runtime.Class
}

func (m *ScopeMethod) Name() string     { return m.scope.Name }
func (m *ScopeMethod) Arity() int       { return m.scope.Arity }
func (m *ScopeMethod) Scope() *ir.Scope { return m.scope }

func (m *ScopeMethod) Invoke(rt *runtime.Runtime, self runtime.Value, args []runtime.Value, block runtime.Value) (runtime.Value, error) {
	return m.interp.run(m.interp.newFrame(m.scope, nil, self, m.module, args, block))
}

// closure creates a proc for a closure scope, capturing the frame that
// evaluated it. The proc shares the frame's self, module and block.
func (in *Interpreter) closure(s *ir.Scope, f *Frame) *runtime.Proc {
	return &runtime.Proc{
		Self:  f.self,
		Arity: s.Arity,
		Fn: func(args []runtime.Value) (runtime.Value, error) {
			return in.run(in.newFrame(s, f, f.self, f.module, args, f.block))
		},
	}
}
