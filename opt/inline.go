package opt

import (
	"fmt"
	"strings"

	"github.com/chazu/garnet/ir"
)

// Resolver finds the method scope a call site would invoke, or nil when
// the target is unknown at compile time.
type Resolver func(call *ir.Call) *ir.Scope

// Inliner replaces calls with a copy of the callee body.
//
// The receiver and arguments are first copied into fresh variables of
// the caller. A GuardMethod then checks that the call still reaches the
// callee; when it does not, the original call runs on the copies. The
// callee's variables are renamed into the caller, its labels relocated,
// self mapped to the receiver copy and returns turned into a copy to the
// call's destination plus a jump to an exit label. Falling off the end
// of the body yields nil, as it does in a real activation.
type Inliner struct {
	Resolve Resolver
	MaxSize int

	stats *Stats
}

// NewInliner creates the pass.
func NewInliner(resolve Resolver, maxSize int) *Inliner {
	if maxSize <= 0 {
		maxSize = DefaultOptions().InlineMaxSize
	}
	return &Inliner{Resolve: resolve, MaxSize: maxSize, stats: &Stats{}}
}

func (in *Inliner) Name() string { return "inline" }

// Run inlines every call site the resolver can bind to an eligible
// callee. Code spliced in by this run is not revisited until the next
// run.
func (in *Inliner) Run(s *ir.Scope) bool {
	if in.Resolve == nil {
		return false
	}
	fallbacks := guardedCalls(s)
	changed := false
	for i := 0; i < len(s.Instrs); i++ {
		call, ok := s.Instrs[i].(*ir.Call)
		if !ok || fallbacks[call] {
			continue
		}
		callee := in.Resolve(call)
		if callee == nil {
			continue
		}
		if err := in.CanInline(s, call, callee); err != nil {
			log.Debugf("not inlining %s into %s: %s", callee, s, err)
			continue
		}
		n := in.Inline(s, i, callee)
		i += n - 1
		changed = true
	}
	return changed
}

// CanInline reports why callee cannot be spliced into caller at call,
// or nil when it can.
func (in *Inliner) CanInline(caller *ir.Scope, call *ir.Call, callee *ir.Scope) error {
	switch {
	case callee.Kind != ir.MethodScope:
		return fmt.Errorf("%s is not a method", callee)
	case callee == caller:
		return fmt.Errorf("recursive call")
	case len(callee.Children) > 0:
		return fmt.Errorf("callee has nested scopes")
	case callee.InstrCount() > in.MaxSize:
		return fmt.Errorf("callee has %d instructions, limit %d", callee.InstrCount(), in.MaxSize)
	case call.Closure != nil:
		return fmt.Errorf("call passes a block")
	case !hasStaticName(call):
		return fmt.Errorf("call computes its method name")
	case callee.Arity >= 0 && callee.Arity != len(call.Args):
		return fmt.Errorf("callee takes %d arguments, call passes %d", callee.Arity, len(call.Args))
	}
	for _, a := range call.Args {
		if _, ok := a.(*ir.Splat); ok {
			return fmt.Errorf("call splats its arguments")
		}
	}

	var err error
	for _, instr := range callee.Instrs {
		switch i := instr.(type) {
		case *ir.DefineMethod, *ir.DefineClass, *ir.DefineModule:
			return fmt.Errorf("callee defines %s", i)
		case *ir.ReceiveBlock:
			return fmt.Errorf("callee receives a block")
		case *ir.Call:
			if name, ok := i.Handle.StaticName(); ok && name == callee.Name && in.Resolve != nil && in.Resolve(i) == callee {
				return fmt.Errorf("callee is recursive")
			}
		}
		for _, op := range instr.Operands() {
			ir.Walk(op, func(o ir.Operand) bool {
				switch x := o.(type) {
				case *ir.DynamicReference:
					err = fmt.Errorf("callee resolves constants dynamically")
				case *ir.ModuleMetaObject:
					if x.IsCurrentModule() {
						err = fmt.Errorf("callee depends on its lexical module")
					}
				case *ir.Backref, *ir.NthRef:
					err = fmt.Errorf("callee reads the last match")
				case *ir.ArgIndex:
					if x.Index >= len(call.Args) {
						err = fmt.Errorf("callee reads argument %d, call passes %d", x.Index, len(call.Args))
					}
				}
				return err == nil
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Inline splices callee into caller in place of the call at index i and
// returns the number of instructions that replaced it. The call itself
// is kept behind the guard, reading the receiver and argument copies.
// The caller must have checked CanInline.
func (in *Inliner) Inline(caller *ir.Scope, i int, callee *ir.Scope) int {
	call := caller.Instrs[i].(*ir.Call)
	name, _ := call.Handle.StaticName()
	info := newInlineInfo(caller, callee)

	var body []ir.Instr
	self := caller.NewRenamedVariable("%in_self")
	body = append(body, &ir.Copy{Dest: self, Source: call.Handle.Receiver})
	info.self = self
	for _, a := range call.Args {
		v := caller.NewRenamedVariable("%in_arg")
		body = append(body, &ir.Copy{Dest: v, Source: a})
		info.args = append(info.args, v)
	}

	exit := caller.NewLabel("inl_exit")
	slow := caller.NewLabel("inl_slow")
	body = append(body, &ir.GuardMethod{
		Handle:     ir.NewMethodHandle(self, ir.NewMethAddr(name)),
		Method:     ir.NewMethodMetaObject(callee),
		Functional: call.Functional,
		Else:       slow,
	})

	var last ir.Instr
	for _, instr := range callee.Instrs {
		last = instr
		if ret, ok := instr.(*ir.Return); ok {
			if call.Dest != nil {
				body = append(body, &ir.Copy{Dest: call.Dest, Source: ret.Value.CloneForInlining(info)})
			}
			body = append(body, &ir.Jump{Target: exit})
			continue
		}
		body = append(body, instr.CloneForInlining(info))
	}
	switch last.(type) {
	case *ir.Return, *ir.Jump:
	default:
		if call.Dest != nil {
			body = append(body, &ir.Copy{Dest: call.Dest, Source: ir.Nil})
		}
		body = append(body, &ir.Jump{Target: exit})
	}

	call.Handle.Receiver = self
	call.Args = append([]ir.Operand(nil), info.args...)
	body = append(body, &ir.LabelInstr{Label: slow}, call, &ir.LabelInstr{Label: exit})

	replace(caller, i, body...)
	in.stats.Inlined++
	log.Debugf("inlined %s into %s (%d instructions)", callee, caller, len(body))
	return len(body)
}

func hasStaticName(call *ir.Call) bool {
	_, ok := call.Handle.StaticName()
	return ok
}

// guardedCalls returns the calls kept as the slow path of an earlier
// inlining. They are never inlined again.
func guardedCalls(s *ir.Scope) map[*ir.Call]bool {
	elses := make(map[*ir.Label]bool)
	for _, instr := range s.Instrs {
		if g, ok := instr.(*ir.GuardMethod); ok {
			elses[g.Else] = true
		}
	}
	out := make(map[*ir.Call]bool)
	for i := 0; i+1 < len(s.Instrs); i++ {
		if li, ok := s.Instrs[i].(*ir.LabelInstr); ok && elses[li.Label] {
			if call, ok := s.Instrs[i+1].(*ir.Call); ok {
				out[call] = true
			}
		}
	}
	return out
}

// inlineInfo maps callee names into the caller.
type inlineInfo struct {
	caller *ir.Scope
	callee *ir.Scope
	self   ir.Operand
	args   []ir.Operand
	vars   map[ir.Variable]ir.Variable
	labels map[*ir.Label]*ir.Label
}

func newInlineInfo(caller, callee *ir.Scope) *inlineInfo {
	return &inlineInfo{
		caller: caller,
		callee: callee,
		vars:   make(map[ir.Variable]ir.Variable),
		labels: make(map[*ir.Label]*ir.Label),
	}
}

func (ii *inlineInfo) RenameVariable(v ir.Variable) ir.Operand {
	switch v.(type) {
	case *ir.SelfVariable:
		return ii.self
	case *ir.GlobalVariable:
		return v
	}
	if nv, ok := ii.vars[v]; ok {
		return nv
	}
	nv := ii.caller.NewRenamedVariable("%" + ii.callee.Name + "_" + strings.TrimPrefix(v.Name(), "%"))
	ii.vars[v] = nv
	return nv
}

func (ii *inlineInfo) RenameLabel(l *ir.Label) *ir.Label {
	if nl, ok := ii.labels[l]; ok {
		return nl
	}
	nl := ii.caller.NewLabel("inl_" + l.Name)
	ii.labels[l] = nl
	return nl
}

func (ii *inlineInfo) CallArg(i int) ir.Operand {
	if i < len(ii.args) {
		return ii.args[i]
	}
	return nil
}
