package irtext

import (
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

// isToken reports whether a plain scalar is a reserved word or sigil
// rather than a local variable name.
func isToken(v string) bool {
	switch v {
	case "self", "nil", "undefined", "unexecutable_nil", "current_module", "StandardError":
		return true
	}
	return v == "" || strings.ContainsAny(v[:1], ":$.^")
}

func (b *builder) operand(s *ir.Scope, n *yaml.Node) (ir.Operand, error) {
	n = deref(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return b.scalar(s, n)
	case yaml.MappingNode:
		return b.mapping(s, n)
	case yaml.SequenceNode:
		return nil, errorf(n, "bare sequence; use {array: [...]}")
	}
	return nil, errorf(n, "unexpected YAML node")
}

func (b *builder) scalar(s *ir.Scope, n *yaml.Node) (ir.Operand, error) {
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return ir.NewString(n.Value), nil
	}
	switch n.ShortTag() {
	case "!!null":
		return ir.Nil, nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, errorf(n, "%v", err)
		}
		return ir.NewBoolean(v), nil
	case "!!int":
		var v int64
		if err := n.Decode(&v); err == nil {
			return ir.NewFixnum(v), nil
		}
		return bignum(n, n.Value)
	case "!!float":
		// YAML resolves integers too wide for 64 bits as floats.
		if integerText(n.Value) {
			return bignum(n, n.Value)
		}
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, errorf(n, "%v", err)
		}
		return ir.NewFloat(v), nil
	}

	v := n.Value
	switch v {
	case "self":
		return ir.Self, nil
	case "nil":
		return ir.Nil, nil
	case "undefined":
		return ir.Undefined, nil
	case "unexecutable_nil":
		return ir.UnexecutableNil, nil
	case "current_module":
		return ir.CurrentModule, nil
	case "StandardError":
		return ir.StandardError, nil
	}
	switch v[0] {
	case ':':
		if len(v) == 1 {
			return nil, errorf(n, "empty symbol")
		}
		return ir.NewSymbol(v[1:]), nil
	case '$':
		return matchOrGlobal(n, v)
	case '.':
		if len(v) == 1 {
			return nil, errorf(n, "empty temporary name")
		}
		return b.temp(s, v[1:]), nil
	case '^':
		depth := len(v) - len(strings.TrimLeft(v, "^"))
		return b.local(s, n, v[depth:], depth)
	}
	return b.local(s, n, v, 0)
}

func (b *builder) local(s *ir.Scope, n *yaml.Node, name string, depth int) (ir.Operand, error) {
	if name == "" {
		return nil, errorf(n, "empty variable name")
	}
	def := s
	for i := 0; i < depth; i++ {
		if def.Parent == nil {
			return nil, errorf(n, "%s is %d scopes out of %s", name, depth, s)
		}
		def = def.Parent
	}
	return s.LocalVariable(name, depth), nil
}

func matchOrGlobal(n *yaml.Node, v string) (ir.Operand, error) {
	if len(v) == 2 && strings.ContainsRune("&`'+", rune(v[1])) {
		return ir.NewBackref(v[1]), nil
	}
	if k, err := strconv.Atoi(v[1:]); err == nil && k > 0 {
		return ir.NewNthRef(k), nil
	}
	if len(v) == 1 {
		return nil, errorf(n, "empty global name")
	}
	return ir.NewGlobalVariable(v), nil
}

func integerText(v string) bool {
	v = strings.TrimLeft(v, "+-")
	return v != "" && strings.Trim(v, "0123456789_") == ""
}

// encoded converts UTF-8 text to the named encoding.
func encoded(text, enc *yaml.Node) (ir.Operand, error) {
	e, err := ianaindex.IANA.Encoding(enc.Value)
	if err != nil || e == nil {
		return nil, errorf(enc, "unknown encoding %q", enc.Value)
	}
	raw, err := e.NewEncoder().Bytes([]byte(text.Value))
	if err != nil {
		return nil, errorf(text, "cannot encode in %s: %v", enc.Value, err)
	}
	return ir.NewEncodedString(raw, enc.Value), nil
}

func bignum(n *yaml.Node, text string) (ir.Operand, error) {
	v, ok := new(big.Int).SetString(strings.ReplaceAll(text, "_", ""), 0)
	if !ok {
		return nil, errorf(n, "invalid integer %q", text)
	}
	if v.IsInt64() {
		return ir.NewFixnum(v.Int64()), nil
	}
	return ir.NewBignum(v), nil
}

// mapping parses a composite operand. The first key names the operand;
// the remaining keys are its options.
func (b *builder) mapping(s *ir.Scope, n *yaml.Node) (ir.Operand, error) {
	if len(n.Content) == 0 {
		return nil, errorf(n, "empty operand mapping")
	}
	kind, val := n.Content[0].Value, deref(n.Content[1])
	opts := make(map[string]*yaml.Node)
	for i := 2; i+1 < len(n.Content); i += 2 {
		opts[n.Content[i].Value] = deref(n.Content[i+1])
	}
	allow := func(names ...string) error {
	next:
		for k := range opts {
			for _, a := range names {
				if k == a {
					continue next
				}
			}
			return errorf(n, "unknown option %q for %s", k, kind)
		}
		return nil
	}

	switch kind {
	case "str":
		if err := allow("encoding"); err != nil {
			return nil, err
		}
		if enc, ok := opts["encoding"]; ok {
			return encoded(val, enc)
		}
		return ir.NewString(val.Value), nil
	case "sym":
		return ir.NewSymbol(val.Value), nil
	case "big":
		return bignum(val, val.Value)
	case "local":
		if err := allow("depth"); err != nil {
			return nil, err
		}
		depth := 0
		if d, ok := opts["depth"]; ok {
			if err := d.Decode(&depth); err != nil || depth < 0 {
				return nil, errorf(d, "depth must be a non-negative integer")
			}
		}
		return b.local(s, val, val.Value, depth)
	case "arg":
		var i int
		if err := val.Decode(&i); err != nil || i < 0 {
			return nil, errorf(val, "argument index must be a non-negative integer")
		}
		return ir.NewArgIndex(i), nil
	}

	if err := allow("exclusive", "options", "push"); err != nil {
		return nil, err
	}
	switch kind {
	case "array":
		elems, err := b.list(s, val)
		if err != nil {
			return nil, err
		}
		return ir.NewArray(elems...), nil
	case "hash":
		pairs, err := seq(val, 0, -1)
		if err != nil {
			return nil, err
		}
		out := make([]ir.KeyValue, 0, len(pairs))
		for _, p := range pairs {
			kv, err := seq(p, 2, 2)
			if err != nil {
				return nil, err
			}
			k, err := b.operand(s, kv[0])
			if err != nil {
				return nil, err
			}
			v, err := b.operand(s, kv[1])
			if err != nil {
				return nil, err
			}
			out = append(out, ir.KeyValue{Key: k, Value: v})
		}
		return ir.NewHash(out...), nil
	case "dstr", "backtick", "dsym":
		pieces, err := b.list(s, val)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "backtick":
			return ir.NewBacktickString(pieces...), nil
		case "dsym":
			return ir.NewDynamicSymbol(ir.NewCompoundString(pieces...)), nil
		}
		return ir.NewCompoundString(pieces...), nil
	case "range":
		ends, err := b.list(s, val)
		if err != nil {
			return nil, err
		}
		if len(ends) != 2 {
			return nil, errorf(val, "range needs two ends")
		}
		return ir.NewRange(ends[0], ends[1], flag(opts["exclusive"])), nil
	case "regexp":
		src, err := b.operand(s, val)
		if err != nil {
			return nil, err
		}
		var o runtime.RegexpOptions
		if on, ok := opts["options"]; ok {
			for _, c := range on.Value {
				switch c {
				case 'i':
					o |= runtime.RegexpIgnoreCase
				case 'x':
					o |= runtime.RegexpExtended
				case 'm':
					o |= runtime.RegexpMultiline
				case 'o':
					o |= runtime.RegexpOnce
				default:
					return nil, errorf(on, "unknown regexp option %q", c)
				}
			}
		}
		return ir.NewRegexp(src, o), nil
	case "splat", "svalue":
		inner, err := b.operand(s, val)
		if err != nil {
			return nil, err
		}
		if kind == "splat" {
			return ir.NewSplat(inner), nil
		}
		return ir.NewSValue(inner), nil
	case "concat":
		parts, err := b.list(s, val)
		if err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, errorf(val, "concat needs two operands")
		}
		return ir.NewCompoundArray(parts[0], parts[1], flag(opts["push"])), nil
	case "class":
		target, err := b.scopeRef(s, val, ir.ClassScope)
		if err != nil {
			return nil, err
		}
		return ir.NewClassMetaObject(target), nil
	case "module":
		target, err := b.scopeRef(s, val, ir.ModuleScope)
		if err != nil {
			return nil, err
		}
		return ir.NewModuleMetaObject(target), nil
	case "method":
		target, err := b.scopeRef(s, val, ir.MethodScope)
		if err != nil {
			return nil, err
		}
		return ir.NewMethodMetaObject(target), nil
	case "closure":
		target, err := b.scopeRef(s, val, ir.ClosureScope)
		if err != nil {
			return nil, err
		}
		return ir.NewClosureMetaObject(target), nil
	}
	return nil, errorf(n, "unknown operand %q", kind)
}

func (b *builder) list(s *ir.Scope, n *yaml.Node) ([]ir.Operand, error) {
	items, err := seq(n, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Operand, 0, len(items))
	for _, it := range items {
		op, err := b.operand(s, it)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func flag(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	var v bool
	_ = n.Decode(&v)
	return v
}
