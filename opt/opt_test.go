package opt

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/garnet/ir"
	"github.com/chazu/garnet/runtime"
)

func assertGolden(t *testing.T, name string, s *ir.Scope) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(ir.DumpString(s)))
}

// calcScope builds:
//
//	a = 2; b = 3; return (a + b) * 4
func calcScope() *ir.Scope {
	s := ir.NewScope(ir.MethodScope, "calc")
	a, b := s.LocalVariable("a", 0), s.LocalVariable("b", 0)
	s.AddInstr(&ir.Copy{Dest: a, Source: ir.NewFixnum(2)})
	s.AddInstr(&ir.Copy{Dest: b, Source: ir.NewFixnum(3)})
	t0 := s.NewTemporaryVariable()
	s.AddInstr(ir.NewCall(t0, a, "+", b))
	t1 := s.NewTemporaryVariable()
	s.AddInstr(ir.NewCall(t1, t0, "*", ir.NewFixnum(4)))
	s.AddInstr(&ir.Return{Value: t1})
	return s
}

// program builds a script calling add(1, 2), with add as a child method.
func program() (main, add *ir.Scope, resolve Resolver) {
	main = ir.NewScope(ir.ScriptScope, "main")
	add = main.NewChild(ir.MethodScope, "add")
	add.Arity = 2
	a, b := add.LocalVariable("a", 0), add.LocalVariable("b", 0)
	add.AddInstr(&ir.ReceiveArg{Dest: a, Index: 0})
	add.AddInstr(&ir.ReceiveArg{Dest: b, Index: 1})
	r := add.NewTemporaryVariable()
	add.AddInstr(ir.NewCall(r, a, "+", b))
	add.AddInstr(&ir.Return{Value: r})

	res := main.NewTemporaryVariable()
	call := ir.NewCall(res, ir.Self, "add", ir.NewFixnum(1), ir.NewFixnum(2))
	call.Functional = true
	main.AddInstr(call)
	main.AddInstr(&ir.Return{Value: res})

	resolve = func(c *ir.Call) *ir.Scope {
		if name, ok := c.Handle.StaticName(); ok && c.Functional && name == "add" {
			return add
		}
		return nil
	}
	return main, add, resolve
}

func TestConstantPropagationFolds(t *testing.T) {
	s := calcScope()
	p, err := NewPipeline(DefaultOptions(), runtime.New(), nil)
	require.NoError(t, err)
	stats := p.Run(s)

	assert.Equal(t, 2, stats.Folded)
	assertGolden(t, "calc", s)
}

func TestConstantPropagationRespectsRedefinition(t *testing.T) {
	rt := runtime.New()
	rt.IntegerClass.DefineMethod("+", runtime.NewNative1("+", func(_ *runtime.Runtime, _, _ runtime.Value) (runtime.Value, error) {
		return runtime.Integer(0), nil
	}))
	s := calcScope()
	cp := NewConstantPropagation(rt, 4)
	cp.Run(s)

	call, ok := s.Instrs[2].(*ir.Call)
	require.True(t, ok, "redefined + must stay a call")
	assert.Equal(t, "%v_0 = call(2.'+', [3])", call.String())
	_, ok = s.Instrs[3].(*ir.Call)
	assert.True(t, ok, "the product depends on the unfolded sum")
}

func TestConstantPropagationRespectsProgramDefinitions(t *testing.T) {
	main := ir.NewScope(ir.ScriptScope, "main")
	integer := main.NewChild(ir.ClassScope, "Integer")
	plus := integer.NewChild(ir.MethodScope, "+")
	plus.Arity = 1
	plus.AddInstr(&ir.Return{Value: ir.NewFixnum(42)})
	integer.AddInstr(&ir.DefineMethod{Method: ir.NewMethodMetaObject(plus)})

	main.AddInstr(&ir.DefineClass{Class: ir.NewClassMetaObject(integer)})
	sum, diff := main.NewTemporaryVariable(), main.NewTemporaryVariable()
	main.AddInstr(ir.NewCall(sum, ir.NewFixnum(1), "+", ir.NewFixnum(2)))
	main.AddInstr(ir.NewCall(diff, ir.NewFixnum(5), "-", ir.NewFixnum(2)))
	main.AddInstr(&ir.Return{Value: sum})

	NewConstantPropagation(runtime.New(), 4).Run(main)

	_, ok := main.Instrs[1].(*ir.Call)
	assert.True(t, ok, "+ is defined by the program and must stay a call")
	assert.Equal(t, "%v_1 = copy(3)", main.Instrs[2].String(), "- is untouched")
}

func TestConstantPropagationSkipsOverflow(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "big")
	t0 := s.NewTemporaryVariable()
	s.AddInstr(ir.NewCall(t0, ir.NewFixnum(1<<62), "*", ir.NewFixnum(4)))
	s.AddInstr(&ir.Return{Value: t0})

	NewConstantPropagation(nil, 4).Run(s)
	_, ok := s.Instrs[0].(*ir.Call)
	assert.True(t, ok, "an overflowing product is left to the runtime")
}

func TestConstantPropagationDivision(t *testing.T) {
	for _, tt := range []struct {
		a, b int64
		want string
	}{
		{7, 2, "%v_0 = copy(3)"},
		{-7, 2, "%v_0 = copy(-4)"},
		{7, 0, "%v_0 = call(7.'/', [0])"},
	} {
		s := ir.NewScope(ir.MethodScope, "div")
		t0 := s.NewTemporaryVariable()
		s.AddInstr(ir.NewCall(t0, ir.NewFixnum(tt.a), "/", ir.NewFixnum(tt.b)))
		NewConstantPropagation(nil, 4).Run(s)
		assert.Equal(t, tt.want, s.Instrs[0].String())
	}
}

func TestConstantPropagationBlockBoundary(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x := s.LocalVariable("x", 0)
	l := s.NewLabel("L")
	s.AddInstr(&ir.Copy{Dest: x, Source: ir.NewFixnum(1)})
	s.AddInstr(&ir.LabelInstr{Label: l})
	s.AddInstr(&ir.Return{Value: x})

	NewConstantPropagation(nil, 4).Run(s)
	assert.Equal(t, "return(x)", s.Instrs[2].String(), "a label may be reached from elsewhere")
}

func TestConstantPropagationReassignment(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x, y := s.LocalVariable("x", 0), s.LocalVariable("y", 0)
	s.AddInstr(&ir.Copy{Dest: y, Source: x})
	s.AddInstr(&ir.Copy{Dest: x, Source: ir.NewFixnum(5)})
	s.AddInstr(&ir.Return{Value: y})

	NewConstantPropagation(nil, 4).Run(s)
	assert.Equal(t, "return(y)", s.Instrs[2].String(), "y still holds the old x")
}

func TestConstantPropagationDoesNotShareComposites(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x := s.LocalVariable("x", 0)
	arr := ir.NewArray(ir.NewFixnum(1))
	s.AddInstr(&ir.Copy{Dest: x, Source: arr})
	s.AddInstr(&ir.Return{Value: x})

	NewConstantPropagation(nil, 4).Run(s)
	assert.Equal(t, "return(x)", s.Instrs[1].String())
}

func TestConstantPropagationForgetsLocalsAcrossCalls(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x := s.LocalVariable("x", 0)
	s.AddInstr(&ir.Copy{Dest: x, Source: ir.NewFixnum(1)})
	s.AddInstr(ir.NewCall(nil, ir.Self, "mutate"))
	s.AddInstr(&ir.Return{Value: x})

	NewConstantPropagation(nil, 4).Run(s)
	assert.Equal(t, "return(x)", s.Instrs[2].String())
}

func TestDeadCode(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x := s.LocalVariable("x", 0)
	dead := s.NewTemporaryVariable()
	call := s.NewTemporaryVariable()
	s.AddInstr(&ir.Copy{Dest: dead, Source: ir.NewFixnum(1)})
	s.AddInstr(ir.NewCall(call, ir.Self, "effect"))
	s.AddInstr(&ir.Copy{Dest: x, Source: ir.NewFixnum(2)})
	s.AddInstr(&ir.Return{Value: x})
	s.AddInstr(&ir.Copy{Dest: x, Source: ir.NewFixnum(3)})

	assert.True(t, NewDeadCode().Run(s))
	require.Len(t, s.Instrs, 3)
	assert.IsType(t, &ir.Call{}, s.Instrs[0], "calls have effects even when the result is unused")
	assert.Equal(t, "x = copy(2)", s.Instrs[1].String(), "locals are kept")
	assert.False(t, NewDeadCode().Run(s))
}

func TestDeadCodeKeepsRegexps(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "m")
	x := s.LocalVariable("x", 0)
	bad, dynamic := s.NewTemporaryVariable(), s.NewTemporaryVariable()
	s.AddInstr(&ir.Copy{Dest: bad, Source: ir.NewRegexp(ir.NewString("("), 0)})
	s.AddInstr(&ir.Copy{Dest: dynamic, Source: ir.NewRegexp(ir.NewCompoundString(ir.NewString("a"), x), 0)})
	s.AddInstr(&ir.Return{Value: ir.Nil})

	assert.False(t, NewDeadCode().Run(s), "regexp compilation can raise")
	assert.Len(t, s.Instrs, 3)
}

func TestLink(t *testing.T) {
	s := ir.NewScope(ir.MethodScope, "loop")
	x := s.LocalVariable("x", 0)
	top, done := s.NewLabel("top"), s.NewLabel("done")
	s.AddInstr(&ir.LabelInstr{Label: top})
	s.AddInstr(&ir.Branch{Cond: x, Target: done, IfTrue: true})
	s.AddInstr(&ir.Jump{Target: top})
	s.AddInstr(&ir.LabelInstr{Label: done})
	s.AddInstr(&ir.Return{Value: x})

	l, err := Link(s)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	pc, ok := l.PC(top)
	assert.True(t, ok)
	assert.Equal(t, 0, pc)
	assert.Equal(t, 2, l.Target(done))
	assert.Len(t, s.Instrs, 5, "linking leaves the scope alone")

	s.AddInstr(&ir.Jump{Target: s.NewLabel("nowhere")})
	_, err = Link(s)
	assert.ErrorContains(t, err, "undefined label")

	s2 := ir.NewScope(ir.MethodScope, "dup")
	s2.AddInstr(&ir.LabelInstr{Label: top})
	s2.AddInstr(&ir.LabelInstr{Label: top})
	_, err = Link(s2)
	assert.ErrorContains(t, err, "defined twice")
}

func TestInline(t *testing.T) {
	main, add, resolve := program()
	in := NewInliner(resolve, 10)
	assert.True(t, in.Run(main))
	assertGolden(t, "inline", main)
	assert.Len(t, add.Instrs, 4, "the callee is not modified")
}

func TestInlineThenOptimize(t *testing.T) {
	main, _, resolve := program()
	p, err := NewPipeline(DefaultOptions(), runtime.New(), resolve)
	require.NoError(t, err)
	stats := p.Run(main)

	assert.Equal(t, 1, stats.Inlined)
	assert.Equal(t, 1, stats.Folded)
	assertGolden(t, "inline_opt", main)
}

func TestInlineRejections(t *testing.T) {
	main, add, resolve := program()
	in := NewInliner(resolve, 10)
	call := main.Instrs[0].(*ir.Call)

	require.NoError(t, in.CanInline(main, call, add))

	small := NewInliner(resolve, 2)
	assert.ErrorContains(t, small.CanInline(main, call, add), "limit 2")

	short := ir.NewCall(nil, ir.Self, "add", ir.NewFixnum(1))
	assert.ErrorContains(t, in.CanInline(main, short, add), "takes 2 arguments")

	withBlock := ir.NewCall(nil, ir.Self, "add", ir.NewFixnum(1), ir.NewFixnum(2))
	withBlock.Closure = ir.NewClosureMetaObject(main.NewClosure("blk"))
	assert.ErrorContains(t, in.CanInline(main, withBlock, add), "block")

	add.NewClosure("inner")
	assert.ErrorContains(t, in.CanInline(main, call, add), "nested scopes")

	dyn := ir.NewScope(ir.MethodScope, "dyn")
	dyn.AddInstr(&ir.Return{Value: ir.CurrentModule})
	assert.ErrorContains(t, in.CanInline(main, ir.NewCall(nil, ir.Self, "dyn"), dyn), "lexical module")

	rec := ir.NewScope(ir.MethodScope, "rec")
	rec.AddInstr(ir.NewCall(nil, ir.Self, "rec"))
	recIn := NewInliner(func(*ir.Call) *ir.Scope { return rec }, 10)
	assert.ErrorContains(t, recIn.CanInline(main, ir.NewCall(nil, ir.Self, "rec"), rec), "recursive")
}

func TestPipelineUnknownPass(t *testing.T) {
	_, err := NewPipeline(Options{Passes: []string{"bogus"}}, nil, nil)
	assert.ErrorContains(t, err, "bogus")
}
