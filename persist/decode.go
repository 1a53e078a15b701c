package persist

import (
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"

	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

type detachedKey struct {
	kind ir.ScopeKind
	name string
}

type decoder struct {
	root     *ir.Scope
	detached map[detachedKey]*ir.Scope
}

// build creates s and its children with their local and temporary slots.
// Instructions are decoded afterwards, once every scope a meta object can
// name exists.
func (d *decoder) build(rec *scopeRecord, parent *ir.Scope) (*ir.Scope, error) {
	kind := ir.ScopeKind(rec.Kind)
	if kind > ir.ClosureScope {
		return nil, fmt.Errorf("persist: unknown scope kind %d", rec.Kind)
	}
	var s *ir.Scope
	switch {
	case parent == nil:
		s = ir.NewScope(kind, rec.Name)
	case kind == ir.ClosureScope:
		s = parent.RestoreClosure(rec.Name, rec.ClosureID)
	default:
		s = parent.NewChild(kind, rec.Name)
	}
	if len(rec.ID) > 0 {
		id, err := uuid.FromBytes(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("persist: scope %s: %w", rec.Name, err)
		}
		s.ID = id
	}
	s.Arity = rec.Arity
	for _, name := range rec.Locals {
		s.DeclareLocal(name)
	}
	for _, t := range rec.Temps {
		if t.Renamed {
			s.NewRenamedVariable(t.Prefix)
		} else {
			s.NewTemporaryVariable()
		}
	}
	for i := range rec.Children {
		if _, err := d.build(&rec.Children[i], s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (d *decoder) fill(s *ir.Scope, rec *scopeRecord) error {
	for i := range rec.Instrs {
		in, err := d.instr(s, &rec.Instrs[i])
		if err != nil {
			return fmt.Errorf("persist: %s instr %d: %w", s, i, err)
		}
		s.AddInstr(in)
	}
	for i, c := range s.Children {
		if err := d.fill(c, &rec.Children[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) instr(s *ir.Scope, rec *instrRecord) (ir.Instr, error) {
	var dest ir.Variable
	if rec.Dest != nil {
		op, err := d.operand(s, rec.Dest)
		if err != nil {
			return nil, err
		}
		v, ok := op.(ir.Variable)
		if !ok {
			return nil, fmt.Errorf("destination %s is not a variable", op)
		}
		dest = v
	}
	ops := make([]ir.Operand, len(rec.Ops))
	for i := range rec.Ops {
		op, err := d.operand(s, &rec.Ops[i])
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	want := func(n int) error {
		if len(ops) < n {
			return fmt.Errorf("opcode 0x%02x needs %d operands, got %d", rec.Op, n, len(ops))
		}
		return nil
	}

	switch rec.Op {
	case opCopy:
		if err := want(1); err != nil {
			return nil, err
		}
		return &ir.Copy{Dest: dest, Source: ops[0]}, nil
	case opCall:
		if err := want(1); err != nil {
			return nil, err
		}
		h, ok := ops[0].(*ir.MethodHandle)
		if !ok {
			return nil, fmt.Errorf("call target %s is not a method handle", ops[0])
		}
		c := &ir.Call{Dest: dest, Handle: h, Functional: rec.Flag}
		args := ops[1:]
		if rec.Index == 1 {
			if len(args) == 0 {
				return nil, fmt.Errorf("call without its closure operand")
			}
			c.Closure = args[len(args)-1]
			args = args[:len(args)-1]
		}
		if len(args) > 0 {
			c.Args = args
		}
		return c, nil
	case opReceiveArg:
		return &ir.ReceiveArg{Dest: dest, Index: rec.Index, Rest: rec.Flag}, nil
	case opReceiveBlock:
		return &ir.ReceiveBlock{Dest: dest}, nil
	case opReturn:
		if err := want(1); err != nil {
			return nil, err
		}
		return &ir.Return{Value: ops[0]}, nil
	case opJump:
		return &ir.Jump{Target: s.Label(rec.Label)}, nil
	case opBranch:
		if err := want(1); err != nil {
			return nil, err
		}
		return &ir.Branch{Cond: ops[0], Target: s.Label(rec.Label), IfTrue: rec.Flag}, nil
	case opLabel:
		return &ir.LabelInstr{Label: s.Label(rec.Label)}, nil
	case opPutGlobal:
		if err := want(2); err != nil {
			return nil, err
		}
		g, ok := ops[0].(*ir.GlobalVariable)
		if !ok {
			return nil, fmt.Errorf("put_global target %s is not a global", ops[0])
		}
		return &ir.PutGlobal{Global: g, Value: ops[1]}, nil
	case opDefineMethod:
		if err := want(1); err != nil {
			return nil, err
		}
		m, ok := ops[0].(*ir.MethodMetaObject)
		if !ok {
			return nil, fmt.Errorf("def_method operand %s is not a method", ops[0])
		}
		return &ir.DefineMethod{Method: m}, nil
	case opDefineClass:
		if err := want(1); err != nil {
			return nil, err
		}
		c, ok := ops[0].(*ir.ClassMetaObject)
		if !ok {
			return nil, fmt.Errorf("def_class operand %s is not a class", ops[0])
		}
		dc := &ir.DefineClass{Dest: dest, Class: c}
		if len(ops) > 1 {
			dc.Superclass = ops[1]
		}
		return dc, nil
	case opDefineModule:
		if err := want(1); err != nil {
			return nil, err
		}
		m, ok := ops[0].(*ir.ModuleMetaObject)
		if !ok {
			return nil, fmt.Errorf("def_module operand %s is not a module", ops[0])
		}
		return &ir.DefineModule{Dest: dest, Module: m}, nil
	case opGuardMethod:
		if err := want(2); err != nil {
			return nil, err
		}
		h, ok := ops[0].(*ir.MethodHandle)
		if !ok {
			return nil, fmt.Errorf("guard target %s is not a method handle", ops[0])
		}
		m, ok := ops[1].(*ir.MethodMetaObject)
		if !ok {
			return nil, fmt.Errorf("guard operand %s is not a method", ops[1])
		}
		return &ir.GuardMethod{Handle: h, Method: m, Functional: rec.Flag, Else: s.Label(rec.Label)}, nil
	}
	return nil, fmt.Errorf("unknown opcode 0x%02x", rec.Op)
}

func (d *decoder) operands(s *ir.Scope, recs []operandRecord) ([]ir.Operand, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	out := make([]ir.Operand, len(recs))
	for i := range recs {
		op, err := d.operand(s, &recs[i])
		if err != nil {
			return nil, err
		}
		out[i] = op
	}
	return out, nil
}

// sub decodes exactly n nested operands.
func (d *decoder) sub(s *ir.Scope, rec *operandRecord, n int) ([]ir.Operand, error) {
	if len(rec.Ops) != n {
		return nil, fmt.Errorf("operand tag 0x%02x needs %d parts, got %d", rec.Tag, n, len(rec.Ops))
	}
	return d.operands(s, rec.Ops)
}

func (d *decoder) scopeRef(rec *operandRecord, want ir.ScopeKind) (*ir.Scope, error) {
	if !rec.Flag {
		key := detachedKey{ir.ScopeKind(rec.Int), rec.Str}
		if key.kind != want {
			return nil, fmt.Errorf("scope %s is a %s, want %s", rec.Str, key.kind, want)
		}
		s, ok := d.detached[key]
		if !ok {
			s = ir.NewScope(key.kind, key.name)
			d.detached[key] = s
		}
		return s, nil
	}
	s := d.root
	for _, i := range rec.Path {
		if i < 0 || i >= len(s.Children) {
			return nil, fmt.Errorf("scope path %v leaves the tree", rec.Path)
		}
		s = s.Children[i]
	}
	if s.Kind != want {
		return nil, fmt.Errorf("scope %s is a %s, want %s", s.Name, s.Kind, want)
	}
	return s, nil
}

func (d *decoder) operand(s *ir.Scope, rec *operandRecord) (ir.Operand, error) {
	switch rec.Tag {
	case tagFixnum:
		return ir.NewFixnum(rec.Int), nil
	case tagBignum:
		v := new(big.Int)
		if err := v.GobDecode(rec.Bytes); err != nil {
			return nil, fmt.Errorf("bignum: %w", err)
		}
		return ir.NewBignum(v), nil
	case tagFloat:
		return ir.NewFloat(math.Float64frombits(uint64(rec.Int))), nil
	case tagString:
		return ir.NewEncodedString(rec.Bytes, rec.Str), nil
	case tagSymbol:
		return ir.NewSymbol(rec.Str), nil
	case tagBoolean:
		return ir.NewBoolean(rec.Flag), nil
	case tagNil:
		return ir.Nil, nil
	case tagUndefined:
		return ir.Undefined, nil
	case tagUnexecutableNil:
		return ir.UnexecutableNil, nil

	case tagArray:
		elems, err := d.operands(s, rec.Ops)
		if err != nil {
			return nil, err
		}
		return ir.NewArray(elems...), nil
	case tagHash:
		if len(rec.Ops)%2 != 0 {
			return nil, fmt.Errorf("hash with %d parts", len(rec.Ops))
		}
		ops, err := d.operands(s, rec.Ops)
		if err != nil {
			return nil, err
		}
		pairs := make([]ir.KeyValue, 0, len(ops)/2)
		for i := 0; i < len(ops); i += 2 {
			pairs = append(pairs, ir.KeyValue{Key: ops[i], Value: ops[i+1]})
		}
		return ir.NewHash(pairs...), nil
	case tagCompoundString:
		pieces, err := d.operands(s, rec.Ops)
		if err != nil {
			return nil, err
		}
		cs := ir.NewCompoundString(pieces...)
		if rec.Str != "" {
			cs.Encoding = rec.Str
		}
		return cs, nil
	case tagBacktick:
		pieces, err := d.operands(s, rec.Ops)
		if err != nil {
			return nil, err
		}
		return ir.NewBacktickString(pieces...), nil
	case tagRange:
		ops, err := d.sub(s, rec, 2)
		if err != nil {
			return nil, err
		}
		return ir.NewRange(ops[0], ops[1], rec.Flag), nil
	case tagRegexp:
		ops, err := d.sub(s, rec, 1)
		if err != nil {
			return nil, err
		}
		return ir.NewRegexp(ops[0], runtime.RegexpOptions(rec.Int)), nil
	case tagDynamicSymbol, tagDynamicRef:
		ops, err := d.sub(s, rec, 1)
		if err != nil {
			return nil, err
		}
		name, ok := ops[0].(*ir.CompoundString)
		if !ok {
			return nil, fmt.Errorf("dynamic name %s is not a compound string", ops[0])
		}
		if rec.Tag == tagDynamicSymbol {
			return ir.NewDynamicSymbol(name), nil
		}
		return ir.NewDynamicReference(name), nil

	case tagLocal:
		def := s
		for i := int64(0); i < rec.Int; i++ {
			if def.Parent == nil {
				return nil, fmt.Errorf("variable %s at depth %d escapes %s", rec.Str, rec.Int, s)
			}
			def = def.Parent
		}
		return s.LocalVariable(rec.Str, int(rec.Int)), nil
	case tagTemp:
		v := s.TempAt(int(rec.Int))
		if v == nil {
			return nil, fmt.Errorf("temporary slot %d not declared in %s", rec.Int, s)
		}
		return v, nil
	case tagGlobal:
		return ir.NewGlobalVariable(rec.Str), nil
	case tagSelf:
		return ir.Self, nil

	case tagClassMeta:
		target, err := d.scopeRef(rec, ir.ClassScope)
		if err != nil {
			return nil, err
		}
		return ir.NewClassMetaObject(target), nil
	case tagModuleMeta:
		target, err := d.scopeRef(rec, ir.ModuleScope)
		if err != nil {
			return nil, err
		}
		return ir.NewModuleMetaObject(target), nil
	case tagMethodMeta:
		target, err := d.scopeRef(rec, ir.MethodScope)
		if err != nil {
			return nil, err
		}
		return ir.NewMethodMetaObject(target), nil
	case tagClosureMeta:
		target, err := d.scopeRef(rec, ir.ClosureScope)
		if err != nil {
			return nil, err
		}
		return ir.NewClosureMetaObject(target), nil
	case tagCurrentMod:
		return ir.CurrentModule, nil

	case tagArgIndex:
		return ir.NewArgIndex(int(rec.Int)), nil
	case tagSplat:
		ops, err := d.sub(s, rec, 1)
		if err != nil {
			return nil, err
		}
		return ir.NewSplat(ops[0]), nil
	case tagCompoundArray:
		ops, err := d.sub(s, rec, 2)
		if err != nil {
			return nil, err
		}
		return ir.NewCompoundArray(ops[0], ops[1], rec.Flag), nil
	case tagSValue:
		ops, err := d.sub(s, rec, 1)
		if err != nil {
			return nil, err
		}
		return ir.NewSValue(ops[0]), nil
	case tagBreakResult:
		ops, err := d.sub(s, rec, 1)
		if err != nil {
			return nil, err
		}
		return ir.NewBreakResult(ops[0], ir.NewLabel(rec.Str)), nil
	case tagMethAddr:
		return ir.NewMethAddr(rec.Str), nil
	case tagMethodHandle:
		ops, err := d.sub(s, rec, 2)
		if err != nil {
			return nil, err
		}
		return ir.NewMethodHandle(ops[0], ops[1]), nil
	case tagLabel:
		return s.Label(rec.Str), nil
	case tagBackref:
		return ir.NewBackref(byte(rec.Int)), nil
	case tagNthRef:
		return ir.NewNthRef(int(rec.Int)), nil
	case tagStandardError:
		return ir.StandardError, nil
	case tagIRException:
		for _, e := range []*ir.IRException{
			ir.BreakLocalJumpError,
			ir.NextLocalJumpError,
			ir.RedoLocalJumpError,
			ir.RetryLocalJumpError,
			ir.ReturnLocalJumpError,
		} {
			if e.Reason == rec.Str {
				return e, nil
			}
		}
		return nil, fmt.Errorf("unknown local jump reason %q", rec.Str)
	}
	return nil, fmt.Errorf("unknown operand tag 0x%02x", rec.Tag)
}
