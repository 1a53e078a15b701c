package persist

import (
	"math"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

// program builds a script with a class, a method, a closure and most
// operand kinds.
func program() *ir.Scope {
	main := ir.NewScope(ir.ScriptScope, "main")
	greeter := main.NewChild(ir.ClassScope, "Greeter")
	hello := greeter.NewChild(ir.MethodScope, "hello")
	hello.Arity = 1

	name := hello.LocalVariable("name", 0)
	hello.AddInstr(&ir.ReceiveArg{Dest: name, Index: 0})
	blk := hello.NewTemporaryVariable()
	hello.AddInstr(&ir.ReceiveBlock{Dest: blk})
	msg := hello.NewTemporaryVariable()
	hello.AddInstr(&ir.Copy{Dest: msg, Source: ir.NewCompoundString(ir.NewString("hi "), name)})
	hello.AddInstr(&ir.Return{Value: msg})

	each := main.NewClosure("each")
	each.Arity = 1
	x := each.LocalVariable("x", 0)
	total := each.LocalVariable("total", 1)
	each.AddInstr(&ir.ReceiveArg{Dest: x, Index: 0})
	each.AddInstr(ir.NewCall(total, total, "+", x))
	each.AddInstr(&ir.Return{Value: total})

	main.AddInstr(&ir.DefineClass{Class: ir.NewClassMetaObject(greeter)})
	main.AddInstr(&ir.DefineMethod{Method: ir.NewMethodMetaObject(hello)})
	t := main.LocalVariable("total", 0)
	main.AddInstr(&ir.Copy{Dest: t, Source: ir.NewFixnum(0)})

	big1, _ := new(big.Int).SetString("-123456789012345678901234567890", 10)
	lit := main.NewTemporaryVariable()
	main.AddInstr(&ir.Copy{Dest: lit, Source: ir.NewArray(
		ir.NewBignum(big1),
		ir.NewFloat(math.Copysign(0, -1)),
		ir.NewFloat(2.5),
		ir.NewEncodedString([]byte{0xe9}, "ISO-8859-1"),
		ir.NewSymbol("sym"),
		ir.True, ir.Nil, ir.Undefined,
		ir.NewRange(ir.NewFixnum(1), ir.NewFixnum(3), true),
		ir.NewHash(ir.KeyValue{Key: ir.NewSymbol("a"), Value: ir.NewFixnum(1)}),
		ir.NewRegexp(ir.NewString("a+"), runtime.RegexpIgnoreCase),
		ir.NewDynamicSymbol(ir.NewCompoundString(ir.NewString("s"), t)),
		ir.NewBackref('&'), ir.NewNthRef(2), ir.StandardError, ir.ReturnLocalJumpError,
		ir.CurrentModule, ir.Self, ir.NewArgIndex(0),
	)})

	list := main.NewTemporaryVariable()
	main.AddInstr(&ir.Copy{Dest: list, Source: ir.NewArray(ir.NewFixnum(1), ir.NewFixnum(2))})
	each0 := main.NewTemporaryVariable()
	main.AddInstr(&ir.Call{
		Dest:    each0,
		Handle:  ir.NewMethodHandle(list, ir.NewMethAddr("each")),
		Closure: ir.NewClosureMetaObject(each),
	})
	renamed := main.NewRenamedVariable("%in_self")
	main.AddInstr(&ir.Copy{Dest: renamed, Source: ir.NewSplat(list)})

	done := main.NewLabel("done")
	main.AddInstr(&ir.GuardMethod{
		Handle:     ir.NewMethodHandle(renamed, ir.NewMethAddr("hello")),
		Method:     ir.NewMethodMetaObject(hello),
		Functional: true,
		Else:       done,
	})
	main.AddInstr(&ir.Branch{Cond: t, Target: done, IfTrue: true})
	main.AddInstr(&ir.PutGlobal{Global: ir.NewGlobalVariable("$total"), Value: t})
	main.AddInstr(&ir.Jump{Target: done})
	main.AddInstr(&ir.LabelInstr{Label: done})
	main.AddInstr(&ir.Return{Value: t})
	return main
}

func TestRoundTrip(t *testing.T) {
	s := program()
	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ir.DumpString(s), ir.DumpString(got))
	assert.Equal(t, s.ID, got.ID)
	require.Len(t, got.Children, 2)
	assert.Equal(t, s.Children[0].Children[0].ID, got.Children[0].Children[0].ID)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding a decoded tree must be byte-identical")
}

func TestRoundTripPreservesStructure(t *testing.T) {
	got, err := Decode(mustEncode(t, program()))
	require.NoError(t, err)

	hello := got.Find(ir.MethodScope, "hello")
	require.NotNil(t, hello)
	assert.Equal(t, 1, hello.Arity)

	def := got.Instrs[1].(*ir.DefineMethod)
	assert.Same(t, hello, def.Method.Scope, "meta objects point into the decoded tree")

	each := got.Children[1]
	assert.Equal(t, ir.ClosureScope, each.Kind)
	assert.Equal(t, 1, each.ClosureID())
	next := got.NewClosure("later")
	assert.Equal(t, 2, next.ClosureID())

	jump := got.Instrs[len(got.Instrs)-3].(*ir.Jump)
	label := got.Instrs[len(got.Instrs)-2].(*ir.LabelInstr)
	assert.Same(t, label.Label, jump.Target)

	var guard *ir.GuardMethod
	for _, in := range got.Instrs {
		if g, ok := in.(*ir.GuardMethod); ok {
			guard = g
		}
	}
	require.NotNil(t, guard)
	assert.Same(t, hello, guard.Method.Scope)
	assert.Same(t, label.Label, guard.Else)
	assert.True(t, guard.Functional)

	lits := got.Instrs[3].(*ir.Copy).Source.(*ir.Array)
	negZero := lits.Elems[1].(*ir.Float)
	assert.True(t, math.Signbit(negZero.Value))
	assert.Same(t, ir.ReturnLocalJumpError, lits.Elems[15])
	assert.Same(t, ir.CurrentModule, lits.Elems[16])
	latin := lits.Elems[3].(*ir.StringLiteral)
	assert.Equal(t, "é", latin.Text())

	for _, in := range got.Instrs {
		for _, op := range in.Operands() {
			assert.True(t, got.Owns(op))
		}
	}
}

func TestHashIgnoresIdentity(t *testing.T) {
	a, b := program(), program()
	require.NotEqual(t, a.ID, b.ID)

	ea, err := Encode(a)
	require.NoError(t, err)
	eb, err := Encode(b)
	require.NoError(t, err)
	assert.NotEqual(t, ea, eb)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.Children[0].Children[0].Instrs[2].(*ir.Copy).Source = ir.NewString("changed")
	hc, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestLatticeValuesAreNotStored(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	s.AddInstr(&ir.Return{Value: ir.Top})

	_, err := Encode(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lattice operands cannot be stored")

	_, err = Hash(s)
	assert.Error(t, err)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)

	future, err := cbor.Marshal(document{Version: FormatVersion + 1})
	require.NoError(t, err)
	_, err = Decode(future)
	assert.ErrorContains(t, err, "unsupported format version")

	badTemp, err := cbor.Marshal(document{Version: FormatVersion, Root: scopeRecord{
		Kind:   uint8(ir.MethodScope),
		Name:   "m",
		Instrs: []instrRecord{{Op: opReturn, Ops: []operandRecord{{Tag: tagTemp, Int: 3}}}},
	}})
	require.NoError(t, err)
	_, err = Decode(badTemp)
	assert.ErrorContains(t, err, "temporary slot 3")

	badTag, err := cbor.Marshal(document{Version: FormatVersion, Root: scopeRecord{
		Kind:   uint8(ir.MethodScope),
		Name:   "m",
		Instrs: []instrRecord{{Op: opReturn, Ops: []operandRecord{{Tag: 0x7f}}}},
	}})
	require.NoError(t, err)
	_, err = Decode(badTag)
	assert.ErrorContains(t, err, "unknown operand tag")
}

func mustEncode(t *testing.T, s *ir.Scope) []byte {
	t.Helper()
	data, err := Encode(s)
	require.NoError(t, err)
	return data
}
