// Package irtext reads IR written as YAML.
//
// A document is a scope: kind, name, arity, locals, code and nested
// scopes. Each code entry is a single-key mapping naming the
// instruction:
//
//	name: main
//	scopes:
//	  - kind: method
//	    name: add
//	    arity: 2
//	    code:
//	      - recv_arg: [a, 0]
//	      - recv_arg: [b, 1]
//	      - call: [.sum, a, +, b]
//	      - return: .sum
//	code:
//	  - def_method: add
//	  - fcall: [r, self, add, 2, 3]
//	  - return: r
//
// Plain scalars are tokens: integers, floats, true, false, nil,
// undefined, unexecutable_nil, self, current_module, StandardError,
// :symbol, $global, $& and $1 style match references, .temp, ^outer (one
// scope out per caret) and local variable names. Quoted scalars are
// string literals. Composite operands are mappings whose first key names
// the operand, such as {array: [...]}, {sym: name}, {str: text,
// encoding: ISO-8859-1} or {class: Greeter}. Inside flow sequences YAML
// reads a leading colon as an indicator, so symbols there are written
// {sym: name}.
package irtext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chazu/garnet/ir"
)

// Program is a parsed document.
type Program struct {
	Main *ir.Scope
	// Methods are the method scopes defined directly in Main, by name.
	Methods map[string]*ir.Scope
}

// Resolve returns the top-level method a call statically names, or nil.
// Its signature matches opt.Resolver.
func (p *Program) Resolve(call *ir.Call) *ir.Scope {
	addr, ok := call.Handle.Name.(*ir.MethAddr)
	if !ok {
		return nil
	}
	return p.Methods[addr.Name]
}

type scopeNode struct {
	Kind   string      `yaml:"kind"`
	Name   string      `yaml:"name"`
	Arity  int         `yaml:"arity"`
	Locals []string    `yaml:"locals"`
	Code   []yaml.Node `yaml:"code"`
	Scopes []scopeNode `yaml:"scopes"`
}

// ParseFile reads and parses the program at path.
func ParseFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse builds a program from YAML. Unknown scope fields are rejected.
func Parse(data []byte) (*Program, error) {
	var root scopeNode
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty program")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if root.Kind == "" {
		root.Kind = ir.ScriptScope.String()
	}
	if root.Name == "" {
		root.Name = "main"
	}

	b := &builder{temps: make(map[*ir.Scope]map[string]ir.Variable)}
	main, err := b.build(&root, nil)
	if err != nil {
		return nil, err
	}
	b.main = main
	for _, p := range b.pending {
		if err := b.code(p.scope, p.node.Code); err != nil {
			return nil, err
		}
	}

	prog := &Program{Main: main, Methods: make(map[string]*ir.Scope)}
	for _, c := range main.Children {
		if c.Kind == ir.MethodScope {
			if _, dup := prog.Methods[c.Name]; dup {
				return nil, fmt.Errorf("method %s defined twice", c.Name)
			}
			prog.Methods[c.Name] = c
		}
	}
	return prog, nil
}

type pending struct {
	scope *ir.Scope
	node  *scopeNode
}

type builder struct {
	main    *ir.Scope
	pending []pending
	temps   map[*ir.Scope]map[string]ir.Variable
}

// build creates the scope tree. Code is parsed once every scope exists,
// so meta objects may name scopes declared later in the document.
func (b *builder) build(n *scopeNode, parent *ir.Scope) (*ir.Scope, error) {
	if n.Kind == "" {
		n.Kind = ir.MethodScope.String()
	}
	kind, err := ir.ParseScopeKind(n.Kind)
	if err != nil {
		return nil, err
	}
	if n.Name == "" {
		return nil, fmt.Errorf("%s scope without a name", kind)
	}
	var s *ir.Scope
	switch {
	case parent == nil:
		s = ir.NewScope(kind, n.Name)
	default:
		s = parent.NewChild(kind, n.Name)
	}
	if n.Arity < -1 {
		return nil, fmt.Errorf("%s: arity %d", s, n.Arity)
	}
	s.Arity = n.Arity
	for _, l := range n.Locals {
		s.DeclareLocal(l)
	}
	b.pending = append(b.pending, pending{s, n})
	for i := range n.Scopes {
		if _, err := b.build(&n.Scopes[i], s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (b *builder) code(s *ir.Scope, nodes []yaml.Node) error {
	for i := range nodes {
		in, err := b.instr(s, &nodes[i])
		if err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
		s.AddInstr(in)
	}
	return nil
}

// temp returns the temporary called name in s, allocating it on first use.
func (b *builder) temp(s *ir.Scope, name string) ir.Variable {
	m := b.temps[s]
	if m == nil {
		m = make(map[string]ir.Variable)
		b.temps[s] = m
	}
	if v, ok := m[name]; ok {
		return v
	}
	v := s.NewTemporaryVariable()
	m[name] = v
	return v
}

// lookup finds a scope by kind and name, preferring the innermost
// enclosing definition.
func (b *builder) lookup(s *ir.Scope, kind ir.ScopeKind, name string) *ir.Scope {
	for c := s; c != nil; c = c.Parent {
		for _, ch := range c.Children {
			if ch.Kind == kind && ch.Name == name {
				return ch
			}
		}
		if c.Kind == kind && c.Name == name {
			return c
		}
	}
	return b.main.Find(kind, name)
}

func errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
