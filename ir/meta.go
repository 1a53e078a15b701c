package ir

import (
	"github.com/chazu/garnet/runtime"
)

// Meta objects are constant references to compile-time scopes. They
// resolve to the live class, module, method name or closure through the
// evaluation context.

// ClassMetaObject refers to a class body scope.
type ClassMetaObject struct {
	base
	Scope *Scope
}

// NewClassMetaObject wraps a class scope.
func NewClassMetaObject(s *Scope) *ClassMetaObject { return &ClassMetaObject{Scope: s} }

func (m *ClassMetaObject) Kind() OperandKind                    { return KindClassMetaObject }
func (m *ClassMetaObject) IsConstant() bool                     { return true }
func (m *ClassMetaObject) Simplify(ValueMap) Operand            { return m }
func (m *ClassMetaObject) CloneForInlining(InlinerInfo) Operand { return m }
func (m *ClassMetaObject) String() string                       { return "class<" + m.Scope.Name + ">" }

func (m *ClassMetaObject) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.ResolveScope(m.Scope)
}

// ModuleMetaObject refers to a module body scope. CurrentModule is the
// sentinel for the lexically enclosing module.
type ModuleMetaObject struct {
	base
	Scope   *Scope
	current bool
}

// CurrentModule resolves to the module lexically enclosing the code.
var CurrentModule = &ModuleMetaObject{current: true}

// NewModuleMetaObject wraps a module scope.
func NewModuleMetaObject(s *Scope) *ModuleMetaObject { return &ModuleMetaObject{Scope: s} }

// IsCurrentModule reports whether m is the CurrentModule sentinel.
func (m *ModuleMetaObject) IsCurrentModule() bool { return m.current }

func (m *ModuleMetaObject) Kind() OperandKind                    { return KindModuleMetaObject }
func (m *ModuleMetaObject) Simplify(ValueMap) Operand            { return m }
func (m *ModuleMetaObject) CloneForInlining(InlinerInfo) Operand { return m }

// IsConstant is false for CurrentModule: its value depends on where the
// code ends up running.
func (m *ModuleMetaObject) IsConstant() bool { return !m.current }

func (m *ModuleMetaObject) Retrieve(ctx Context) (runtime.Value, error) {
	if m.current {
		return ctx.CurrentModule(), nil
	}
	return ctx.ResolveScope(m.Scope)
}

func (m *ModuleMetaObject) String() string {
	if m.current {
		return "module<CURRENT>"
	}
	return "module<" + m.Scope.Name + ">"
}

// MethodMetaObject refers to a method body scope.
type MethodMetaObject struct {
	base
	Scope *Scope
}

// NewMethodMetaObject wraps a method scope.
func NewMethodMetaObject(s *Scope) *MethodMetaObject { return &MethodMetaObject{Scope: s} }

func (m *MethodMetaObject) Kind() OperandKind                    { return KindMethodMetaObject }
func (m *MethodMetaObject) IsConstant() bool                     { return true }
func (m *MethodMetaObject) Simplify(ValueMap) Operand            { return m }
func (m *MethodMetaObject) CloneForInlining(InlinerInfo) Operand { return m }
func (m *MethodMetaObject) String() string                       { return "method<" + m.Scope.Name + ">" }

func (m *MethodMetaObject) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.ResolveScope(m.Scope)
}

// ClosureMetaObject refers to a closure body. Retrieving it captures the
// current activation, so it is not constant. Inlining keeps the same
// scope: the closure body itself is not copied.
type ClosureMetaObject struct {
	base
	Scope *Scope
}

// NewClosureMetaObject wraps a closure scope.
func NewClosureMetaObject(s *Scope) *ClosureMetaObject { return &ClosureMetaObject{Scope: s} }

func (m *ClosureMetaObject) Kind() OperandKind                    { return KindClosureMetaObject }
func (m *ClosureMetaObject) IsConstant() bool                     { return false }
func (m *ClosureMetaObject) Simplify(ValueMap) Operand            { return m }
func (m *ClosureMetaObject) CloneForInlining(InlinerInfo) Operand { return m }
func (m *ClosureMetaObject) String() string                       { return "closure<" + m.Scope.Name + ">" }

func (m *ClosureMetaObject) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.ResolveScope(m.Scope)
}
