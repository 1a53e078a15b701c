package ir

import (
	"fmt"

	"github.com/chazu/garnet/runtime"
)

type testContext struct {
	rt    *runtime.Runtime
	self  runtime.Value
	vars  map[Variable]runtime.Value
	args  []runtime.Value
	match *runtime.MatchData
}

func newTestContext(rt *runtime.Runtime) *testContext {
	return &testContext{rt: rt, self: rt.Main, vars: make(map[Variable]runtime.Value)}
}

func (c *testContext) Runtime() *runtime.Runtime     { return c.rt }
func (c *testContext) Self() runtime.Value           { return c.self }
func (c *testContext) CurrentModule() *runtime.Class { return c.rt.ObjectClass }
func (c *testContext) LastMatch() *runtime.MatchData { return c.match }

func (c *testContext) Load(v Variable) (runtime.Value, error) {
	if val, ok := c.vars[v]; ok {
		return val, nil
	}
	return runtime.Nil, nil
}

func (c *testContext) Arg(i int) runtime.Value {
	if i < len(c.args) {
		return c.args[i]
	}
	return runtime.Undefined
}

func (c *testContext) ResolveScope(s *Scope) (runtime.Value, error) {
	switch s.Kind {
	case ClassScope, ModuleScope:
		if cls := c.rt.LookupClass(s.Name); cls != nil {
			return cls, nil
		}
		return nil, fmt.Errorf("no class %s", s.Name)
	case MethodScope:
		return runtime.Symbol(s.Name), nil
	}
	return nil, fmt.Errorf("cannot resolve %s", s)
}

// renamer is an InlinerInfo that maps every variable to a fresh renamed
// variable in target.
type renamer struct {
	target *Scope
	vars   map[Variable]Variable
	labels map[*Label]*Label
	args   []Operand
	self   Operand
}

func newRenamer(target *Scope, self Operand, args ...Operand) *renamer {
	return &renamer{
		target: target,
		vars:   make(map[Variable]Variable),
		labels: make(map[*Label]*Label),
		args:   args,
		self:   self,
	}
}

func (r *renamer) RenameVariable(v Variable) Operand {
	if v == Self {
		return r.self
	}
	if _, ok := v.(*GlobalVariable); ok {
		return v
	}
	if nv, ok := r.vars[v]; ok {
		return nv
	}
	nv := r.target.NewRenamedVariable("%i_" + v.Name())
	r.vars[v] = nv
	return nv
}

func (r *renamer) RenameLabel(l *Label) *Label {
	if nl, ok := r.labels[l]; ok {
		return nl
	}
	nl := r.target.NewLabel("inl_" + l.Name)
	r.labels[l] = nl
	return nl
}

func (r *renamer) CallArg(i int) Operand {
	if i < len(r.args) {
		return r.args[i]
	}
	return nil
}
