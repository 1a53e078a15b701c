package irtext

import (
	"gopkg.in/yaml.v3"

	"github.com/chazu/garnet/ir"
)

func (b *builder) instr(s *ir.Scope, n *yaml.Node) (ir.Instr, error) {
	n = deref(n)
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, errorf(n, "instruction must be a single-key mapping")
	}
	op, arg := n.Content[0].Value, deref(n.Content[1])

	switch op {
	case "copy":
		parts, err := seq(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		dest, err := b.dest(s, parts[0], false)
		if err != nil {
			return nil, err
		}
		src, err := b.operand(s, parts[1])
		if err != nil {
			return nil, err
		}
		return &ir.Copy{Dest: dest, Source: src}, nil

	case "call", "fcall":
		return b.call(s, arg, op == "fcall")

	case "recv_arg", "recv_rest":
		parts, err := seq(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		dest, err := b.dest(s, parts[0], false)
		if err != nil {
			return nil, err
		}
		var idx int
		if err := parts[1].Decode(&idx); err != nil || idx < 0 {
			return nil, errorf(parts[1], "argument index must be a non-negative integer")
		}
		return &ir.ReceiveArg{Dest: dest, Index: idx, Rest: op == "recv_rest"}, nil

	case "recv_block":
		dest, err := b.dest(s, arg, false)
		if err != nil {
			return nil, err
		}
		return &ir.ReceiveBlock{Dest: dest}, nil

	case "return":
		v, err := b.operand(s, arg)
		if err != nil {
			return nil, err
		}
		return &ir.Return{Value: v}, nil

	case "jump":
		name, err := nameOf(arg)
		if err != nil {
			return nil, err
		}
		return &ir.Jump{Target: s.Label(name)}, nil

	case "branch_true", "branch_false":
		parts, err := seq(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		cond, err := b.operand(s, parts[0])
		if err != nil {
			return nil, err
		}
		target, err := nameOf(parts[1])
		if err != nil {
			return nil, err
		}
		return &ir.Branch{Cond: cond, Target: s.Label(target), IfTrue: op == "branch_true"}, nil

	case "label":
		name, err := nameOf(arg)
		if err != nil {
			return nil, err
		}
		return &ir.LabelInstr{Label: s.Label(name)}, nil

	case "put_global":
		parts, err := seq(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		g, err := b.operand(s, parts[0])
		if err != nil {
			return nil, err
		}
		global, ok := g.(*ir.GlobalVariable)
		if !ok {
			return nil, errorf(parts[0], "%s is not a global variable", g)
		}
		v, err := b.operand(s, parts[1])
		if err != nil {
			return nil, err
		}
		return &ir.PutGlobal{Global: global, Value: v}, nil

	case "def_method":
		target, err := b.scopeRef(s, arg, ir.MethodScope)
		if err != nil {
			return nil, err
		}
		return &ir.DefineMethod{Method: ir.NewMethodMetaObject(target)}, nil

	case "def_class":
		parts, err := seq(arg, 2, 3)
		if err != nil {
			return nil, err
		}
		dest, err := b.dest(s, parts[0], true)
		if err != nil {
			return nil, err
		}
		target, err := b.scopeRef(s, parts[1], ir.ClassScope)
		if err != nil {
			return nil, err
		}
		dc := &ir.DefineClass{Dest: dest, Class: ir.NewClassMetaObject(target)}
		if len(parts) == 3 {
			if dc.Superclass, err = b.operand(s, parts[2]); err != nil {
				return nil, err
			}
		}
		return dc, nil

	case "def_module":
		parts, err := seq(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		dest, err := b.dest(s, parts[0], true)
		if err != nil {
			return nil, err
		}
		target, err := b.scopeRef(s, parts[1], ir.ModuleScope)
		if err != nil {
			return nil, err
		}
		return &ir.DefineModule{Dest: dest, Module: ir.NewModuleMetaObject(target)}, nil
	}
	return nil, errorf(n, "unknown instruction %q", op)
}

// call parses [dest, receiver, name, args...]. A scalar name is a static
// method name; a mapping is evaluated to produce the name. An argument of the form
// {block: x} passes x as the closure.
func (b *builder) call(s *ir.Scope, arg *yaml.Node, functional bool) (ir.Instr, error) {
	parts, err := seq(arg, 3, -1)
	if err != nil {
		return nil, err
	}
	dest, err := b.dest(s, parts[0], true)
	if err != nil {
		return nil, err
	}
	recv, err := b.operand(s, parts[1])
	if err != nil {
		return nil, err
	}
	var meth ir.Operand
	if n := deref(parts[2]); n.Kind == yaml.ScalarNode {
		meth = ir.NewMethAddr(n.Value)
	} else if meth, err = b.operand(s, n); err != nil {
		return nil, err
	}

	c := &ir.Call{Dest: dest, Handle: ir.NewMethodHandle(recv, meth), Functional: functional}
	for _, p := range parts[3:] {
		p = deref(p)
		if key, val, ok := single(p); ok && key == "block" {
			if c.Closure != nil {
				return nil, errorf(p, "call passes two blocks")
			}
			if c.Closure, err = b.block(s, val); err != nil {
				return nil, err
			}
			continue
		}
		a, err := b.operand(s, p)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, a)
	}
	return c, nil
}

// block resolves a closure name to its meta object; other values are
// evaluated and passed as is.
func (b *builder) block(s *ir.Scope, n *yaml.Node) (ir.Operand, error) {
	n = deref(n)
	if n.Kind == yaml.ScalarNode && n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) == 0 && !isToken(n.Value) {
		if target := b.lookup(s, ir.ClosureScope, n.Value); target != nil {
			return ir.NewClosureMetaObject(target), nil
		}
	}
	return b.operand(s, n)
}

func (b *builder) dest(s *ir.Scope, n *yaml.Node, optional bool) (ir.Variable, error) {
	n = deref(n)
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		if optional {
			return nil, nil
		}
		return nil, errorf(n, "missing destination")
	}
	op, err := b.operand(s, n)
	if err != nil {
		return nil, err
	}
	v, ok := op.(ir.Variable)
	if !ok || v == ir.Self {
		return nil, errorf(n, "%s cannot be assigned", op)
	}
	return v, nil
}

func (b *builder) scopeRef(s *ir.Scope, n *yaml.Node, kind ir.ScopeKind) (*ir.Scope, error) {
	nm, err := nameOf(n)
	if err != nil {
		return nil, err
	}
	target := b.lookup(s, kind, nm)
	if target == nil {
		return nil, errorf(n, "no %s scope named %s", kind, nm)
	}
	return target, nil
}

// seq returns the elements of a sequence with between min and max
// entries; max < 0 means unbounded.
func seq(n *yaml.Node, min, max int) ([]*yaml.Node, error) {
	n = deref(n)
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "expected a sequence")
	}
	switch got := len(n.Content); {
	case min == max && got != min:
		return nil, errorf(n, "expected %d entries, got %d", min, got)
	case got < min:
		return nil, errorf(n, "expected at least %d entries, got %d", min, got)
	case max >= 0 && got > max:
		return nil, errorf(n, "expected at most %d entries, got %d", max, got)
	}
	return n.Content, nil
}

func nameOf(n *yaml.Node) (string, error) {
	n = deref(n)
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", errorf(n, "expected a name")
	}
	return n.Value, nil
}

// single returns the key and value of a one-entry mapping.
func single(n *yaml.Node) (string, *yaml.Node, bool) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, false
	}
	return n.Content[0].Value, deref(n.Content[1]), true
}
