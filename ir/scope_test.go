package ir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVariableInterning(t *testing.T) {
	m := NewScope(MethodScope, "m")
	a := m.LocalVariable("a", 0)
	b := m.LocalVariable("b", 0)
	assert.Same(t, a, m.LocalVariable("a", 0))
	assert.Equal(t, 0, a.(LocalSlot).Offset())
	assert.Equal(t, 1, b.(LocalSlot).Offset())

	blk := m.NewClosure("blk")
	inner := blk.LocalVariable("x", 0)
	require.IsType(t, &ClosureLocalVariable{}, inner)
	assert.Equal(t, 1, inner.(*ClosureLocalVariable).ClosureID())

	outer := blk.LocalVariable("b", 1)
	require.IsType(t, &LocalVariable{}, outer)
	assert.Equal(t, 1, outer.(LocalSlot).Depth())
	assert.Equal(t, 1, outer.(LocalSlot).Offset(), "depth-1 variables use the defining scope's slot")

	fresh := blk.LocalVariable("c", 1)
	assert.Equal(t, 2, fresh.(LocalSlot).Offset())
	assert.Equal(t, []string{"a", "b", "c"}, m.LocalNames())

	assert.Panics(t, func() { m.LocalVariable("z", 3) })
}

func TestTemporaries(t *testing.T) {
	m := NewScope(MethodScope, "m")
	t0 := m.NewTemporaryVariable()
	r1 := m.NewRenamedVariable("%i_x")
	assert.Equal(t, "%v_0", t0.Name())
	assert.Equal(t, "%i_x_1", r1.Name())
	assert.Equal(t, 2, m.NumTemps())
	assert.Same(t, r1, m.TempAt(1))
	assert.Nil(t, m.TempAt(5))

	blk := m.NewClosure("b1")
	blk2 := m.NewClosure("b2")
	ct := blk2.NewTemporaryVariable()
	assert.Equal(t, "%cl_2_0", ct.Name())
	assert.Equal(t, 1, blk.ClosureID())

	nested := blk.NewClosure("b3")
	assert.Equal(t, 3, nested.ClosureID(), "closure ids are unique per method")
}

func TestLabels(t *testing.T) {
	s := NewScope(MethodScope, "m")
	l1 := s.NewLabel("L")
	l2 := s.NewLabel("L")
	assert.NotEqual(t, l1.Name, l2.Name)
	assert.Same(t, l1, s.Label(l1.Name))

	s.Label("L_3")
	l3 := s.NewLabel("L")
	assert.Equal(t, "L_4", l3.Name, "taken names are skipped")
}

func TestAdoptRejectsSharing(t *testing.T) {
	s1 := NewScope(MethodScope, "one")
	s2 := NewScope(MethodScope, "two")
	x := s1.LocalVariable("x", 0)
	shared := NewArray(x, NewFixnum(1))

	s1.AddInstr(&Copy{Dest: s1.NewTemporaryVariable(), Source: shared})
	assert.True(t, s1.Owns(shared))
	assert.False(t, s2.Owns(shared))

	defer func() {
		ie, ok := AsInternalError(recover())
		require.True(t, ok)
		assert.Same(t, s2, ie.Scope)
		assert.Same(t, shared, ie.Operand)
	}()
	s2.AddInstr(&Copy{Dest: s2.NewTemporaryVariable(), Source: shared})
}

func TestConstantsAreShareable(t *testing.T) {
	s1 := NewScope(MethodScope, "one")
	s2 := NewScope(MethodScope, "two")
	lit := NewFixnum(3)
	s1.AddInstr(&Return{Value: lit})
	s2.AddInstr(&Return{Value: lit})

	assert.True(t, Shareable(lit))
	assert.True(t, Shareable(NewString("x")))
	assert.False(t, Shareable(NewArray()))
}

func TestSimplifyInstrAdoptsSynthesized(t *testing.T) {
	s := NewScope(MethodScope, "m")
	x := s.LocalVariable("x", 0)
	ca := NewCompoundArray(NewArray(NewFixnum(1)), x, false)
	c := &Copy{Dest: s.NewTemporaryVariable(), Source: ca}
	s.AddInstr(c)

	s.SimplifyInstr(c, ValueMap{x: NewArray(NewFixnum(2))})
	merged, ok := c.Source.(*Array)
	require.True(t, ok)
	assert.Equal(t, s.ID, merged.ownerID())
}

func TestDump(t *testing.T) {
	s := NewScope(MethodScope, "add")
	s.Arity = 2
	a, b := s.LocalVariable("a", 0), s.LocalVariable("b", 0)
	s.AddInstr(&ReceiveArg{Dest: a, Index: 0})
	s.AddInstr(&ReceiveArg{Dest: b, Index: 1})
	r := s.NewTemporaryVariable()
	s.AddInstr(NewCall(r, a, "+", b))
	s.AddInstr(&Return{Value: r})

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, s))
	want := "method add (arity 2):\n" +
		"  locals: a, b\n" +
		"    0  a = recv_arg(0)\n" +
		"    1  b = recv_arg(1)\n" +
		"    2  %v_0 = call(a.'+', [b])\n" +
		"    3  return(%v_0)\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 4, s.InstrCount())
}
