package ir

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// treeGen builds random operand trees over a fixed set of variables.
type treeGen struct {
	rng  *rand.Rand
	vars []Variable
}

func (g *treeGen) leaf() Operand {
	switch g.rng.Intn(6) {
	case 0:
		return NewFixnum(g.rng.Int63n(100))
	case 1:
		return NewString(fmt.Sprintf("s%d", g.rng.Intn(10)))
	case 2:
		return NewSymbol("k")
	case 3:
		return Nil
	}
	return g.vars[g.rng.Intn(len(g.vars))]
}

func (g *treeGen) tree(depth int) Operand {
	if depth == 0 || g.rng.Intn(4) == 0 {
		return g.leaf()
	}
	n := g.rng.Intn(4)
	kids := make([]Operand, n)
	for i := range kids {
		kids[i] = g.tree(depth - 1)
	}
	switch g.rng.Intn(6) {
	case 0:
		return NewArray(kids...)
	case 1:
		return NewCompoundString(kids...)
	case 2:
		return NewRange(g.tree(depth-1), g.tree(depth-1), g.rng.Intn(2) == 0)
	case 3:
		var pairs []KeyValue
		for _, k := range kids {
			pairs = append(pairs, KeyValue{Key: k, Value: g.tree(depth - 1)})
		}
		return NewHash(pairs...)
	case 4:
		return NewSValue(NewArray(kids...))
	}
	return NewCompoundArray(NewArray(kids...), g.tree(depth-1), g.rng.Intn(2) == 0)
}

func leavesConstant(op Operand) bool {
	ok := true
	Walk(op, func(o Operand) bool {
		if _, composite := children(o); !composite && !o.IsConstant() {
			ok = false
		}
		return ok
	})
	return ok
}

func TestSimplifyIsIdempotent(t *testing.T) {
	s := NewScope(MethodScope, "m")
	vars := []Variable{s.LocalVariable("a", 0), s.LocalVariable("b", 0), s.NewTemporaryVariable()}
	g := &treeGen{rng: rand.New(rand.NewSource(7)), vars: vars}
	vm := ValueMap{vars[0]: NewFixnum(5), vars[2]: NewString("t")}

	for i := 0; i < 500; i++ {
		op := g.tree(4)
		once := op.Simplify(vm)
		before := once.String()
		twice := once.Simplify(vm)
		require.True(t, Equal(once, twice), "tree %d: %s became %s", i, before, twice)
		require.Equal(t, before, twice.String(), "tree %d", i)
	}
}

func TestConstancyMatchesLeaves(t *testing.T) {
	s := NewScope(MethodScope, "m")
	vars := []Variable{s.LocalVariable("a", 0), s.NewTemporaryVariable()}
	g := &treeGen{rng: rand.New(rand.NewSource(11)), vars: vars}

	for i := 0; i < 500; i++ {
		op := g.tree(4)
		require.Equal(t, leavesConstant(op), op.IsConstant(), "tree %d: %s", i, op)
	}
}

func TestCloneForInliningRenamesVariables(t *testing.T) {
	callee := NewScope(MethodScope, "callee")
	a, b, c := callee.LocalVariable("a", 0), callee.LocalVariable("b", 0), callee.LocalVariable("c", 0)
	tmp := callee.NewTemporaryVariable()
	g := NewGlobalVariable("$g")
	lit := NewArray(NewFixnum(1))
	op := NewArray(a, NewCompoundString(NewString("x"), b), NewRange(a, c, false), tmp, g, lit)

	caller := NewScope(MethodScope, "caller")
	ii := newRenamer(caller, caller.LocalVariable("recv", 0))
	clone := op.CloneForInlining(ii)

	orig := map[Variable]bool{}
	for _, v := range op.AddUsedVariables(nil) {
		orig[v] = true
	}
	renamed := map[Variable]bool{}
	for _, v := range clone.AddUsedVariables(nil) {
		if v == g {
			continue
		}
		assert.False(t, orig[v], "%s aliases the callee", v)
		assert.IsType(t, &RenamedVariable{}, v)
		renamed[v] = true
	}
	assert.Len(t, renamed, 4, "a, b, c and the temporary")
	assert.Len(t, ii.vars, 4)

	assert.NotSame(t, op, clone)
	cloneArr := clone.(*Array)
	assert.NotSame(t, lit, cloneArr.Elems[5], "composites are deep-copied")
	assert.True(t, Equal(lit, cloneArr.Elems[5]))
	assert.Equal(t, len(op.Elems), len(cloneArr.Elems))
	for i := range op.Elems {
		if _, isVar := op.Elems[i].(Variable); isVar {
			continue
		}
		assert.Equal(t, op.Elems[i].Kind(), cloneArr.Elems[i].Kind())
	}
}

func TestCloneForInliningMapsSelfArgsAndLabels(t *testing.T) {
	caller := NewScope(MethodScope, "caller")
	recv := caller.LocalVariable("obj", 0)
	arg := NewFixnum(9)
	ii := newRenamer(caller, recv, arg)

	assert.Same(t, recv, Self.CloneForInlining(ii))
	assert.Same(t, arg, NewArgIndex(0).CloneForInlining(ii))
	second := NewArgIndex(1)
	assert.Same(t, second, second.CloneForInlining(ii))

	l := NewLabel("L")
	br := NewBreakResult(Self, l).CloneForInlining(ii).(*BreakResult)
	assert.NotSame(t, l, br.Target)
	assert.Same(t, ii.RenameLabel(l), br.Target)

	h := NewMethodHandle(Self, NewMethAddr("foo"))
	hc := h.CloneForInlining(ii).(*MethodHandle)
	assert.NotSame(t, h, hc)
	assert.Same(t, recv, hc.Receiver)

	closure := NewClosureMetaObject(caller.NewClosure("blk"))
	assert.Same(t, closure, closure.CloneForInlining(ii))
}

func TestMeet(t *testing.T) {
	one := NewFixnum(1)
	assert.Same(t, one, Meet(Top, one))
	assert.Same(t, one, Meet(one, NewFixnum(1)))
	assert.Same(t, Bottom, Meet(one, NewFixnum(2)))
	assert.Same(t, Bottom, Meet(Bottom, one))
	assert.Same(t, Any, Meet(Any, one))
}
