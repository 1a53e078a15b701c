// Package interp evaluates compile-time scopes against a runtime.
//
// Each activation gets a Frame that implements ir.Context. Scopes are
// linked once, on first execution, and must not be modified afterwards.
package interp

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/opt"
	"github.com/chazu/garnet/runtime"
)

// Interpreter runs IR scopes. It is safe for concurrent use as long as
// the programs it runs do not share mutable values.
type Interpreter struct {
	rt     *runtime.Runtime
	log    commonlog.Logger
	linked sync.Map // *ir.Scope -> *opt.Linked
}

// New creates an interpreter over rt.
func New(rt *runtime.Runtime) *Interpreter {
	return &Interpreter{rt: rt, log: commonlog.GetLogger("garnet.interp")}
}

// Runtime returns the interpreter's runtime.
func (in *Interpreter) Runtime() *runtime.Runtime { return in.rt }

// Run executes a script scope with the main object as self.
func (in *Interpreter) Run(s *ir.Scope) (runtime.Value, error) {
	return in.run(in.newFrame(s, nil, in.rt.Main, in.rt.ObjectClass, nil, nil))
}

func (in *Interpreter) link(s *ir.Scope) (*opt.Linked, error) {
	if l, ok := in.linked.Load(s); ok {
		return l.(*opt.Linked), nil
	}
	l, err := opt.Link(s)
	if err != nil {
		return nil, err
	}
	actual, _ := in.linked.LoadOrStore(s, l)
	return actual.(*opt.Linked), nil
}

// run is the instruction loop. Falling off the end yields nil.
func (in *Interpreter) run(f *Frame) (result runtime.Value, err error) {
	l, err := in.link(f.scope)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", f.scope, err)
	}

	pc := 0
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := ir.AsInternalError(r); ok && ie.Scope == nil {
				ie.Scope = f.scope
				ie.Instr = pc
			}
			panic(r)
		}
	}()

	for pc < l.Len() {
		switch i := l.Instrs[pc].(type) {
		case *ir.Copy:
			v, err := i.Source.Retrieve(f)
			if err != nil {
				return nil, err
			}
			f.Store(i.Dest, v)

		case *ir.Call:
			v, err := in.call(f, i)
			if err != nil {
				return nil, err
			}
			if i.Dest != nil {
				f.Store(i.Dest, v)
			}

		case *ir.ReceiveArg:
			if i.Rest {
				var rest []runtime.Value
				if i.Index < len(f.args) {
					rest = append(rest, f.args[i.Index:]...)
				}
				f.Store(i.Dest, runtime.NewArray(rest...))
			} else {
				f.Store(i.Dest, f.Arg(i.Index))
			}

		case *ir.ReceiveBlock:
			f.Store(i.Dest, f.block)

		case *ir.Return:
			return i.Value.Retrieve(f)

		case *ir.Jump:
			pc = l.Target(i.Target)
			continue

		case *ir.Branch:
			v, err := i.Cond.Retrieve(f)
			if err != nil {
				return nil, err
			}
			if runtime.Truthy(v) == i.IfTrue {
				pc = l.Target(i.Target)
				continue
			}

		case *ir.GuardMethod:
			ok, err := in.guard(f, i)
			if err != nil {
				return nil, err
			}
			if !ok {
				pc = l.Target(i.Else)
				continue
			}

		case *ir.PutGlobal:
			v, err := i.Value.Retrieve(f)
			if err != nil {
				return nil, err
			}
			in.rt.SetGlobal(i.Global.Name(), v)

		case *ir.DefineMethod:
			in.defineMethod(f, i.Method.Scope)

		case *ir.DefineClass:
			v, err := in.defineClass(f, i)
			if err != nil {
				return nil, err
			}
			if i.Dest != nil {
				f.Store(i.Dest, v)
			}

		case *ir.DefineModule:
			m, err := in.rt.DefineModule(i.Module.Scope.Name)
			if err != nil {
				return nil, err
			}
			v, err := in.run(in.newFrame(i.Module.Scope, nil, m, m, nil, nil))
			if err != nil {
				return nil, err
			}
			if i.Dest != nil {
				f.Store(i.Dest, v)
			}

		default:
			panic(&ir.InternalError{Scope: f.scope, Instr: pc, Reason: fmt.Sprintf("unexecutable instruction %s", i)})
		}
		pc++
	}
	return runtime.Nil, nil
}

// defineMethod binds a method scope onto the frame's module. Methods
// defined at the top level are private, like functions.
func (in *Interpreter) defineMethod(f *Frame, s *ir.Scope) {
	vis := runtime.Public
	if f.scope.Kind == ir.ScriptScope {
		vis = runtime.Private
	}
	f.module.DefineMethodWithVisibility(s.Name, &ScopeMethod{interp: in, scope: s, module: f.module}, vis)
	in.log.Debugf("defined %s#%s (%s)", f.module.Name, s.Name, vis)
}

func (in *Interpreter) defineClass(f *Frame, d *ir.DefineClass) (runtime.Value, error) {
	var super *runtime.Class
	if d.Superclass != nil {
		v, err := d.Superclass.Retrieve(f)
		if err != nil {
			return nil, err
		}
		c, ok := v.(*runtime.Class)
		if !ok {
			return nil, in.rt.NewError(in.rt.TypeErrorClass, "superclass must be a Class (%s given)", in.rt.ClassOf(v).Name)
		}
		super = c
	}
	c, err := in.rt.DefineClass(d.Class.Scope.Name, super)
	if err != nil {
		return nil, err
	}
	return in.run(in.newFrame(d.Class.Scope, nil, c, c, nil, nil))
}
