package interp

import (
	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

// call evaluates a call instruction: resolve the handle through its
// call-site cache, evaluate arguments and block, then dispatch.
func (in *Interpreter) call(f *Frame, c *ir.Call) (runtime.Value, error) {
	r, err := c.Handle.ResolveName(f)
	if err != nil {
		return nil, err
	}
	c.Handle.ResolveMethod(in.rt, r)

	args, err := ir.RetrieveArgs(f, c.Args)
	if err != nil {
		return nil, err
	}
	var block runtime.Value = runtime.Nil
	if c.Closure != nil {
		if block, err = c.Closure.Retrieve(f); err != nil {
			return nil, err
		}
	}

	v, err := in.dispatch(f, r, args, block, c.Functional)
	if err != nil {
		return nil, err
	}
	if r.Name == "match" || r.Name == "=~" {
		switch m := v.(type) {
		case *runtime.MatchData:
			f.setLastMatch(m)
		case runtime.NilValue:
			f.setLastMatch(nil)
		}
	}
	return v, nil
}

// dispatch applies the calling convention to a resolved handle: a
// missing method falls back to method_missing, then visibility and
// arity are checked.
func (in *Interpreter) dispatch(f *Frame, r *ir.Resolution, args []runtime.Value, block runtime.Value, functional bool) (runtime.Value, error) {
	rt := in.rt
	if !r.Found() {
		mm := r.Class.FindMethod("method_missing")
		if !mm.Found() {
			return nil, rt.NoMethodError(r.Name, r.Receiver)
		}
		in.log.Debugf("method_missing for %s on %s", r.Name, r.Class.Name)
		return mm.Method.Invoke(rt, r.Receiver, append([]runtime.Value{runtime.Symbol(r.Name)}, args...), block)
	}

	e := r.Entry
	if !in.visible(f, e, functional) {
		return nil, rt.NewError(rt.NoMethodErrorClass, "%s method '%s' called for %s", e.Visibility, r.Name, rt.Inspect(r.Receiver))
	}
	if a := e.Method.Arity(); a >= 0 && a != len(args) {
		return nil, rt.ArgumentError(len(args), a)
	}
	return e.Method.Invoke(rt, r.Receiver, args, block)
}

// visible reports whether e may be called from f. Private methods need a
// functional call; protected ones a caller that is a kind of the owner.
func (in *Interpreter) visible(f *Frame, e *runtime.CacheEntry, functional bool) bool {
	switch e.Visibility {
	case runtime.Private:
		return functional
	case runtime.Protected:
		return functional || in.rt.ClassOf(f.self).IsSubclassOf(e.Owner)
	}
	return true
}

// guard reports whether the guarded call would run the inlined method:
// the handle resolves to the method defined from the guard's scope and
// the call may see it.
func (in *Interpreter) guard(f *Frame, g *ir.GuardMethod) (bool, error) {
	r, err := g.Handle.Resolve(f)
	if err != nil {
		return false, err
	}
	if !r.Found() {
		return false, nil
	}
	m, ok := r.Entry.Method.(*ScopeMethod)
	if !ok || m.scope != g.Method.Scope {
		return false, nil
	}
	return in.visible(f, r.Entry, g.Functional), nil
}
