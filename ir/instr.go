package ir

import (
	"fmt"
	"strings"
)

// Instr is one IR instruction.
type Instr interface {
	// Operands returns the operands the instruction reads.
	Operands() []Operand
	// SimplifyOperands rewrites the operands against vm in place.
	SimplifyOperands(vm ValueMap)
	CloneForInlining(ii InlinerInfo) Instr
	// Result is the variable the instruction writes, or nil.
	Result() Variable
	String() string
	instr() // marker method
}

func renameDest(ii InlinerInfo, v Variable) Variable {
	if v == nil {
		return nil
	}
	r, ok := ii.RenameVariable(v).(Variable)
	if !ok {
		Internal(v, "result variable renamed to a non-variable")
	}
	return r
}

func resultPrefix(v Variable) string {
	if v == nil {
		return ""
	}
	return v.String() + " = "
}

// Copy assigns Source to Dest.
type Copy struct {
	Dest   Variable
	Source Operand
}

func (c *Copy) Operands() []Operand          { return []Operand{c.Source} }
func (c *Copy) SimplifyOperands(vm ValueMap) { c.Source = c.Source.Simplify(vm) }
func (c *Copy) Result() Variable             { return c.Dest }
func (c *Copy) String() string               { return fmt.Sprintf("%s = copy(%s)", c.Dest, c.Source) }
func (c *Copy) instr()                       {}

func (c *Copy) CloneForInlining(ii InlinerInfo) Instr {
	return &Copy{Dest: renameDest(ii, c.Dest), Source: c.Source.CloneForInlining(ii)}
}

// Call invokes Handle with Args and an optional Closure. Functional calls
// have an implicit self receiver and may reach private methods.
type Call struct {
	Dest       Variable
	Handle     *MethodHandle
	Args       []Operand
	Closure    Operand
	Functional bool
}

// NewCall creates a call of the statically named method on receiver.
func NewCall(dest Variable, receiver Operand, name string, args ...Operand) *Call {
	return &Call{Dest: dest, Handle: NewMethodHandle(receiver, NewMethAddr(name)), Args: args}
}

func (c *Call) Operands() []Operand {
	ops := append([]Operand{c.Handle}, c.Args...)
	if c.Closure != nil {
		ops = append(ops, c.Closure)
	}
	return ops
}

func (c *Call) SimplifyOperands(vm ValueMap) {
	c.Handle.Simplify(vm)
	simplifyAll(c.Args, vm)
	if c.Closure != nil {
		c.Closure = c.Closure.Simplify(vm)
	}
}

func (c *Call) Result() Variable { return c.Dest }
func (c *Call) instr()           {}

func (c *Call) CloneForInlining(ii InlinerInfo) Instr {
	out := &Call{
		Dest:       renameDest(ii, c.Dest),
		Handle:     c.Handle.CloneForInlining(ii).(*MethodHandle),
		Args:       cloneAll(c.Args, ii),
		Functional: c.Functional,
	}
	if c.Closure != nil {
		out.Closure = c.Closure.CloneForInlining(ii)
	}
	return out
}

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString(resultPrefix(c.Dest))
	sb.WriteString("call(")
	sb.WriteString(c.Handle.String())
	sb.WriteString(", [")
	sb.WriteString(joinOperands(c.Args, ", "))
	sb.WriteString("]")
	if c.Closure != nil {
		sb.WriteString(", &" + c.Closure.String())
	}
	if c.Functional {
		sb.WriteString(", fcall")
	}
	sb.WriteString(")")
	return sb.String()
}

// ReceiveArg copies positional argument Index into Dest. With Rest set,
// Dest receives an array of the arguments from Index on.
type ReceiveArg struct {
	Dest  Variable
	Index int
	Rest  bool
}

func (r *ReceiveArg) Operands() []Operand       { return nil }
func (r *ReceiveArg) SimplifyOperands(ValueMap) {}
func (r *ReceiveArg) Result() Variable          { return r.Dest }
func (r *ReceiveArg) instr()                    {}

// CloneForInlining turns the receive into a copy of the caller's
// argument operand.
func (r *ReceiveArg) CloneForInlining(ii InlinerInfo) Instr {
	dest := renameDest(ii, r.Dest)
	if !r.Rest {
		src := ii.CallArg(r.Index)
		if src == nil {
			src = Nil
		}
		return &Copy{Dest: dest, Source: src}
	}
	var rest []Operand
	for i := r.Index; ii.CallArg(i) != nil; i++ {
		rest = append(rest, ii.CallArg(i))
	}
	return &Copy{Dest: dest, Source: NewArray(rest...)}
}

func (r *ReceiveArg) String() string {
	if r.Rest {
		return fmt.Sprintf("%s = recv_rest_arg(%d)", r.Dest, r.Index)
	}
	return fmt.Sprintf("%s = recv_arg(%d)", r.Dest, r.Index)
}

// Return leaves the current activation with Value.
type Return struct {
	Value Operand
}

func (r *Return) Operands() []Operand          { return []Operand{r.Value} }
func (r *Return) SimplifyOperands(vm ValueMap) { r.Value = r.Value.Simplify(vm) }
func (r *Return) Result() Variable             { return nil }
func (r *Return) String() string               { return fmt.Sprintf("return(%s)", r.Value) }
func (r *Return) instr()                       {}

func (r *Return) CloneForInlining(ii InlinerInfo) Instr {
	return &Return{Value: r.Value.CloneForInlining(ii)}
}

// Jump transfers control to Target.
type Jump struct {
	Target *Label
}

func (j *Jump) Operands() []Operand       { return nil }
func (j *Jump) SimplifyOperands(ValueMap) {}
func (j *Jump) Result() Variable          { return nil }
func (j *Jump) String() string            { return fmt.Sprintf("jump(%s)", j.Target) }
func (j *Jump) instr()                    {}

func (j *Jump) CloneForInlining(ii InlinerInfo) Instr {
	return &Jump{Target: ii.RenameLabel(j.Target)}
}

// Branch jumps to Target when the truthiness of Cond equals IfTrue.
type Branch struct {
	Cond   Operand
	Target *Label
	IfTrue bool
}

func (b *Branch) Operands() []Operand          { return []Operand{b.Cond} }
func (b *Branch) SimplifyOperands(vm ValueMap) { b.Cond = b.Cond.Simplify(vm) }
func (b *Branch) Result() Variable             { return nil }
func (b *Branch) instr()                       {}

func (b *Branch) CloneForInlining(ii InlinerInfo) Instr {
	return &Branch{Cond: b.Cond.CloneForInlining(ii), Target: ii.RenameLabel(b.Target), IfTrue: b.IfTrue}
}

func (b *Branch) String() string {
	if b.IfTrue {
		return fmt.Sprintf("btrue(%s, %s)", b.Cond, b.Target)
	}
	return fmt.Sprintf("bfalse(%s, %s)", b.Cond, b.Target)
}

// GuardMethod checks that Handle resolves to the method defined by
// Method and may be called the way the guarded call would call it. When
// it does not, control transfers to Else. The inliner puts one in front
// of every spliced body, with the original call at Else.
type GuardMethod struct {
	Handle     *MethodHandle
	Method     *MethodMetaObject
	Functional bool
	Else       *Label
}

func (g *GuardMethod) Operands() []Operand          { return []Operand{g.Handle, g.Method} }
func (g *GuardMethod) SimplifyOperands(vm ValueMap) { g.Handle.Simplify(vm) }
func (g *GuardMethod) Result() Variable             { return nil }
func (g *GuardMethod) instr()                       {}

func (g *GuardMethod) CloneForInlining(ii InlinerInfo) Instr {
	return &GuardMethod{
		Handle:     g.Handle.CloneForInlining(ii).(*MethodHandle),
		Method:     g.Method,
		Functional: g.Functional,
		Else:       ii.RenameLabel(g.Else),
	}
}

func (g *GuardMethod) String() string {
	fcall := ""
	if g.Functional {
		fcall = ", fcall"
	}
	return fmt.Sprintf("guard(%s, %s%s, else %s)", g.Handle, g.Method, fcall, g.Else)
}

// LabelInstr marks the position of Label.
type LabelInstr struct {
	Label *Label
}

func (l *LabelInstr) Operands() []Operand       { return nil }
func (l *LabelInstr) SimplifyOperands(ValueMap) {}
func (l *LabelInstr) Result() Variable          { return nil }
func (l *LabelInstr) String() string            { return l.Label.Name + ":" }
func (l *LabelInstr) instr()                    {}

func (l *LabelInstr) CloneForInlining(ii InlinerInfo) Instr {
	return &LabelInstr{Label: ii.RenameLabel(l.Label)}
}

// PutGlobal assigns a global variable.
type PutGlobal struct {
	Global *GlobalVariable
	Value  Operand
}

func (p *PutGlobal) Operands() []Operand          { return []Operand{p.Value} }
func (p *PutGlobal) SimplifyOperands(vm ValueMap) { p.Value = p.Value.Simplify(vm) }
func (p *PutGlobal) Result() Variable             { return nil }
func (p *PutGlobal) String() string               { return fmt.Sprintf("put_global(%s, %s)", p.Global, p.Value) }
func (p *PutGlobal) instr()                       {}

func (p *PutGlobal) CloneForInlining(ii InlinerInfo) Instr {
	return &PutGlobal{Global: p.Global, Value: p.Value.CloneForInlining(ii)}
}

// DefineMethod binds a method scope onto the current module.
type DefineMethod struct {
	Method *MethodMetaObject
}

func (d *DefineMethod) Operands() []Operand                { return []Operand{d.Method} }
func (d *DefineMethod) SimplifyOperands(ValueMap)          {}
func (d *DefineMethod) CloneForInlining(InlinerInfo) Instr { return &DefineMethod{Method: d.Method} }
func (d *DefineMethod) Result() Variable                   { return nil }
func (d *DefineMethod) String() string                     { return fmt.Sprintf("def_method(%s)", d.Method) }
func (d *DefineMethod) instr()                             {}

// DefineClass opens or creates a class and runs its body scope with the
// class as self. A nil Superclass means Object.
type DefineClass struct {
	Dest       Variable
	Class      *ClassMetaObject
	Superclass Operand
}

func (d *DefineClass) Operands() []Operand {
	if d.Superclass == nil {
		return []Operand{d.Class}
	}
	return []Operand{d.Class, d.Superclass}
}

func (d *DefineClass) SimplifyOperands(vm ValueMap) {
	if d.Superclass != nil {
		d.Superclass = d.Superclass.Simplify(vm)
	}
}

func (d *DefineClass) CloneForInlining(ii InlinerInfo) Instr {
	out := &DefineClass{Dest: renameDest(ii, d.Dest), Class: d.Class}
	if d.Superclass != nil {
		out.Superclass = d.Superclass.CloneForInlining(ii)
	}
	return out
}

func (d *DefineClass) Result() Variable { return d.Dest }
func (d *DefineClass) instr()           {}

func (d *DefineClass) String() string {
	if d.Superclass == nil {
		return fmt.Sprintf("%sdef_class(%s)", resultPrefix(d.Dest), d.Class)
	}
	return fmt.Sprintf("%sdef_class(%s, %s)", resultPrefix(d.Dest), d.Class, d.Superclass)
}

// DefineModule opens or creates a module and runs its body scope.
type DefineModule struct {
	Dest   Variable
	Module *ModuleMetaObject
}

func (d *DefineModule) Operands() []Operand       { return []Operand{d.Module} }
func (d *DefineModule) SimplifyOperands(ValueMap) {}
func (d *DefineModule) Result() Variable          { return d.Dest }
func (d *DefineModule) instr()                    {}

func (d *DefineModule) CloneForInlining(ii InlinerInfo) Instr {
	return &DefineModule{Dest: renameDest(ii, d.Dest), Module: d.Module}
}

func (d *DefineModule) String() string {
	return fmt.Sprintf("%sdef_module(%s)", resultPrefix(d.Dest), d.Module)
}

// ReceiveBlock copies the block passed to the current activation, or
// nil, into Dest.
type ReceiveBlock struct {
	Dest Variable
}

func (r *ReceiveBlock) Operands() []Operand       { return nil }
func (r *ReceiveBlock) SimplifyOperands(ValueMap) {}
func (r *ReceiveBlock) Result() Variable          { return r.Dest }
func (r *ReceiveBlock) String() string            { return fmt.Sprintf("%s = recv_block()", r.Dest) }
func (r *ReceiveBlock) instr()                    {}

// CloneForInlining yields nil: calls that pass a block are not inlined.
func (r *ReceiveBlock) CloneForInlining(ii InlinerInfo) Instr {
	return &Copy{Dest: renameDest(ii, r.Dest), Source: Nil}
}
