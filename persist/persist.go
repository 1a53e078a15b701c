// Package persist stores IR scopes as canonical CBOR and computes
// content hashes over them.
//
// A document holds a scope tree: locals, temporaries, children and
// instructions. Meta objects refer to scopes in the same tree by child
// index path, so a decoded tree has the same shape as the encoded one.
// Analysis-only operands, such as lattice values, cannot be stored.
package persist

import (
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/garnet/ir"
)

// Encode serializes s and its nested scopes.
func Encode(s *ir.Scope) ([]byte, error) {
	return encode(s, true)
}

// Hash returns the SHA-256 of the encoding of s with scope identities
// left out. Two trees built independently from the same source hash the
// same.
func Hash(s *ir.Scope) ([32]byte, error) {
	data, err := encode(s, false)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

func encode(s *ir.Scope, withIDs bool) ([]byte, error) {
	e := &encoder{root: s, withIDs: withIDs, paths: make(map[*ir.Scope][]int)}
	e.index(s, nil)
	rec, err := e.scope(s)
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(document{Version: FormatVersion, Root: rec})
	if err != nil {
		return nil, fmt.Errorf("persist: marshal: %w", err)
	}
	return data, nil
}

type encoder struct {
	root    *ir.Scope
	withIDs bool
	paths   map[*ir.Scope][]int
}

func (e *encoder) index(s *ir.Scope, path []int) {
	e.paths[s] = path
	for i, c := range s.Children {
		p := make([]int, len(path)+1)
		copy(p, path)
		p[len(path)] = i
		e.index(c, p)
	}
}

func (e *encoder) scope(s *ir.Scope) (scopeRecord, error) {
	rec := scopeRecord{
		Kind:      uint8(s.Kind),
		Name:      s.Name,
		Arity:     s.Arity,
		ClosureID: s.ClosureID(),
		Locals:    append([]string(nil), s.LocalNames()...),
	}
	if e.withIDs {
		id := s.ID
		rec.ID = id[:]
	}
	for _, t := range s.Temps() {
		if r, ok := t.(*ir.RenamedVariable); ok {
			rec.Temps = append(rec.Temps, tempRecord{Renamed: true, Prefix: r.Prefix()})
		} else {
			rec.Temps = append(rec.Temps, tempRecord{})
		}
	}
	for _, c := range s.Children {
		cr, err := e.scope(c)
		if err != nil {
			return rec, err
		}
		rec.Children = append(rec.Children, cr)
	}
	for i, in := range s.Instrs {
		r, err := e.instr(in)
		if err != nil {
			return rec, fmt.Errorf("persist: %s instr %d: %w", s, i, err)
		}
		rec.Instrs = append(rec.Instrs, r)
	}
	return rec, nil
}

func (e *encoder) instr(in ir.Instr) (instrRecord, error) {
	var (
		rec  instrRecord
		ops  []ir.Operand
		dest ir.Variable
	)
	switch x := in.(type) {
	case *ir.Copy:
		rec.Op, dest, ops = opCopy, x.Dest, []ir.Operand{x.Source}
	case *ir.Call:
		rec.Op, dest, rec.Flag = opCall, x.Dest, x.Functional
		ops = append([]ir.Operand{x.Handle}, x.Args...)
		if x.Closure != nil {
			ops = append(ops, x.Closure)
			rec.Index = 1
		}
	case *ir.ReceiveArg:
		rec.Op, dest, rec.Index, rec.Flag = opReceiveArg, x.Dest, x.Index, x.Rest
	case *ir.ReceiveBlock:
		rec.Op, dest = opReceiveBlock, x.Dest
	case *ir.Return:
		rec.Op, ops = opReturn, []ir.Operand{x.Value}
	case *ir.Jump:
		rec.Op, rec.Label = opJump, x.Target.Name
	case *ir.Branch:
		rec.Op, rec.Label, rec.Flag = opBranch, x.Target.Name, x.IfTrue
		ops = []ir.Operand{x.Cond}
	case *ir.LabelInstr:
		rec.Op, rec.Label = opLabel, x.Label.Name
	case *ir.PutGlobal:
		rec.Op, ops = opPutGlobal, []ir.Operand{x.Global, x.Value}
	case *ir.DefineMethod:
		rec.Op, ops = opDefineMethod, []ir.Operand{x.Method}
	case *ir.DefineClass:
		rec.Op, dest, ops = opDefineClass, x.Dest, []ir.Operand{x.Class}
		if x.Superclass != nil {
			ops = append(ops, x.Superclass)
		}
	case *ir.DefineModule:
		rec.Op, dest, ops = opDefineModule, x.Dest, []ir.Operand{x.Module}
	case *ir.GuardMethod:
		rec.Op, rec.Label, rec.Flag = opGuardMethod, x.Else.Name, x.Functional
		ops = []ir.Operand{x.Handle, x.Method}
	default:
		return rec, fmt.Errorf("unsupported instruction %T", in)
	}
	if dest != nil {
		d, err := e.operand(dest)
		if err != nil {
			return rec, err
		}
		rec.Dest = &d
	}
	var err error
	rec.Ops, err = e.operands(ops)
	return rec, err
}

func (e *encoder) operands(ops []ir.Operand) ([]operandRecord, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	out := make([]operandRecord, len(ops))
	for i, op := range ops {
		r, err := e.operand(op)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (e *encoder) scopeRef(tag byte, s *ir.Scope) operandRecord {
	if path, ok := e.paths[s]; ok {
		return operandRecord{Tag: tag, Path: path, Flag: true}
	}
	return operandRecord{Tag: tag, Str: s.Name, Int: int64(s.Kind)}
}

func (e *encoder) operand(op ir.Operand) (operandRecord, error) {
	switch x := op.(type) {
	case *ir.Fixnum:
		return operandRecord{Tag: tagFixnum, Int: x.Value}, nil
	case *ir.Bignum:
		b, err := x.Value.GobEncode()
		if err != nil {
			return operandRecord{}, err
		}
		return operandRecord{Tag: tagBignum, Bytes: b}, nil
	case *ir.Float:
		return operandRecord{Tag: tagFloat, Int: int64(math.Float64bits(x.Value))}, nil
	case *ir.StringLiteral:
		return operandRecord{Tag: tagString, Bytes: x.Bytes, Str: x.Encoding}, nil
	case *ir.Symbol:
		return operandRecord{Tag: tagSymbol, Str: x.Name}, nil
	case *ir.Boolean:
		return operandRecord{Tag: tagBoolean, Flag: x.Value}, nil
	case *ir.NilLiteral:
		return operandRecord{Tag: tagNil}, nil
	case *ir.UndefinedValue:
		return operandRecord{Tag: tagUndefined}, nil
	case *ir.UnexecutableNilValue:
		return operandRecord{Tag: tagUnexecutableNil}, nil

	case *ir.Array:
		return e.composite(tagArray, x.Elems...)
	case *ir.Hash:
		ops := make([]ir.Operand, 0, 2*len(x.Pairs))
		for _, kv := range x.Pairs {
			ops = append(ops, kv.Key, kv.Value)
		}
		return e.composite(tagHash, ops...)
	case *ir.CompoundString:
		r, err := e.composite(tagCompoundString, x.Pieces...)
		r.Str = x.Encoding
		return r, err
	case *ir.BacktickString:
		return e.composite(tagBacktick, x.Pieces...)
	case *ir.Range:
		r, err := e.composite(tagRange, x.Begin, x.End)
		r.Flag = x.Exclusive
		return r, err
	case *ir.Regexp:
		r, err := e.composite(tagRegexp, x.Source)
		r.Int = int64(x.Options)
		return r, err
	case *ir.DynamicSymbol:
		return e.composite(tagDynamicSymbol, x.Name)
	case *ir.DynamicReference:
		return e.composite(tagDynamicRef, x.Name)

	case ir.LocalSlot:
		return operandRecord{Tag: tagLocal, Str: x.Name(), Int: int64(x.Depth())}, nil
	case ir.TempSlot:
		return operandRecord{Tag: tagTemp, Int: int64(x.Slot())}, nil
	case *ir.GlobalVariable:
		return operandRecord{Tag: tagGlobal, Str: x.Name()}, nil
	case *ir.SelfVariable:
		return operandRecord{Tag: tagSelf}, nil

	case *ir.ClassMetaObject:
		return e.scopeRef(tagClassMeta, x.Scope), nil
	case *ir.ModuleMetaObject:
		if x.IsCurrentModule() {
			return operandRecord{Tag: tagCurrentMod}, nil
		}
		return e.scopeRef(tagModuleMeta, x.Scope), nil
	case *ir.MethodMetaObject:
		return e.scopeRef(tagMethodMeta, x.Scope), nil
	case *ir.ClosureMetaObject:
		return e.scopeRef(tagClosureMeta, x.Scope), nil

	case *ir.ArgIndex:
		return operandRecord{Tag: tagArgIndex, Int: int64(x.Index)}, nil
	case *ir.Splat:
		return e.composite(tagSplat, x.Array)
	case *ir.CompoundArray:
		r, err := e.composite(tagCompoundArray, x.A1, x.A2)
		r.Flag = x.ArgsPush
		return r, err
	case *ir.SValue:
		return e.composite(tagSValue, x.Array)
	case *ir.BreakResult:
		r, err := e.composite(tagBreakResult, x.Value)
		r.Str = x.Target.Name
		return r, err
	case *ir.MethAddr:
		return operandRecord{Tag: tagMethAddr, Str: x.Name}, nil
	case *ir.MethodHandle:
		// Call-site caches are runtime state and are not stored.
		return e.composite(tagMethodHandle, x.Receiver, x.Name)
	case *ir.Label:
		return operandRecord{Tag: tagLabel, Str: x.Name}, nil
	case *ir.Backref:
		return operandRecord{Tag: tagBackref, Int: int64(x.Type)}, nil
	case *ir.NthRef:
		return operandRecord{Tag: tagNthRef, Int: int64(x.N)}, nil
	case *ir.StandardErrorClass:
		return operandRecord{Tag: tagStandardError}, nil
	case *ir.IRException:
		return operandRecord{Tag: tagIRException, Str: x.Reason}, nil
	}
	return operandRecord{}, fmt.Errorf("%s operands cannot be stored", op.Kind())
}

func (e *encoder) composite(tag byte, ops ...ir.Operand) (operandRecord, error) {
	sub, err := e.operands(ops)
	return operandRecord{Tag: tag, Ops: sub}, err
}

// Decode rebuilds a scope tree from data produced by Encode.
func Decode(data []byte) (*ir.Scope, error) {
	var doc document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("persist: unmarshal: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("persist: unsupported format version %d (want %d)", doc.Version, FormatVersion)
	}
	d := &decoder{detached: make(map[detachedKey]*ir.Scope)}
	root, err := d.build(&doc.Root, nil)
	if err != nil {
		return nil, err
	}
	d.root = root
	if err := d.fill(root, &doc.Root); err != nil {
		return nil, err
	}
	return root, nil
}
