package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/garnet/runtime"
)

func handleFixture(t *testing.T) (*runtime.Runtime, *testContext, *runtime.Class, *runtime.Class, Variable) {
	t.Helper()
	rt := runtime.New()
	a, err := rt.DefineClass("A", nil)
	require.NoError(t, err)
	b, err := rt.DefineClass("B", nil)
	require.NoError(t, err)
	for i, c := range []*runtime.Class{a, b} {
		v := runtime.Integer(i + 1)
		c.DefineMethod("foo", runtime.NewNative0("foo", func(*runtime.Runtime, runtime.Value) (runtime.Value, error) {
			return v, nil
		}))
	}
	s := NewScope(MethodScope, "m")
	return rt, newTestContext(rt), a, b, s.LocalVariable("recv", 0)
}

func TestMethodHandleReusesCachedEntry(t *testing.T) {
	rt, ctx, a, _, recv := handleFixture(t)
	h := NewMethodHandle(recv, NewMethAddr("foo"))
	ctx.vars[recv] = runtime.NewObject(a)

	r, err := h.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, MethodResolved, r.State)
	assert.True(t, r.Found())
	assert.Same(t, a, r.Entry.Owner)

	before := rt.Stats().FullLookups
	ctx.vars[recv] = runtime.NewObject(a)
	r2, err := h.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, r.Entry, r2.Entry)
	assert.Equal(t, uint64(0), rt.Stats().FullLookups-before, "same receiver class must not look up again")
}

func TestMethodHandleReceiverClassChange(t *testing.T) {
	rt, ctx, a, b, recv := handleFixture(t)
	h := NewMethodHandle(recv, NewMethAddr("foo"))
	objA, objB := runtime.NewObject(a), runtime.NewObject(b)

	resolve := func(obj runtime.Value) *Resolution {
		ctx.vars[recv] = obj
		r, err := h.Resolve(ctx)
		require.NoError(t, err)
		return r
	}
	resolve(objA)

	before := rt.Stats().FullLookups
	r := resolve(objB)
	assert.Same(t, b, r.Entry.Owner)
	assert.Equal(t, uint64(1), rt.Stats().FullLookups-before)

	before = rt.Stats().FullLookups
	resolve(objB)
	resolve(objB)
	assert.Equal(t, uint64(0), rt.Stats().FullLookups-before)

	before = rt.Stats().FullLookups
	for i := 0; i < 4; i++ {
		resolve(objA)
		resolve(objB)
	}
	assert.Equal(t, uint64(8), rt.Stats().FullLookups-before, "single-entry cache thrashes on alternating receivers")
	assert.Equal(t, runtime.CacheMonomorphic, h.Cache(rt).State())
}

func TestMethodHandlePolymorphicMode(t *testing.T) {
	rt := runtime.New(runtime.WithCacheMode(runtime.Polymorphic, 4))
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", nil)
	ctx := newTestContext(rt)
	s := NewScope(MethodScope, "m")
	recv := s.LocalVariable("recv", 0)
	h := NewMethodHandle(recv, NewMethAddr("to_s"))

	for _, obj := range []runtime.Value{runtime.NewObject(a), runtime.NewObject(b)} {
		ctx.vars[recv] = obj
		_, err := h.Resolve(ctx)
		require.NoError(t, err)
	}
	before := rt.Stats().FullLookups
	for i := 0; i < 3; i++ {
		for _, obj := range []runtime.Value{runtime.NewObject(a), runtime.NewObject(b)} {
			ctx.vars[recv] = obj
			_, err := h.Resolve(ctx)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, uint64(0), rt.Stats().FullLookups-before)
	assert.Equal(t, runtime.CachePolymorphic, h.Cache(rt).State())
}

func TestMethodHandleRedefinition(t *testing.T) {
	rt, ctx, a, _, recv := handleFixture(t)
	c, err := rt.DefineClass("C", nil)
	require.NoError(t, err)
	c.DefineMethod("foo", runtime.NewNative0("foo", func(*runtime.Runtime, runtime.Value) (runtime.Value, error) {
		return runtime.Integer(3), nil
	}))

	hA := NewMethodHandle(recv, NewMethAddr("foo"))
	hC := NewMethodHandle(recv, NewMethAddr("foo"))
	ctx.vars[recv] = runtime.NewObject(a)
	_, err = hA.Resolve(ctx)
	require.NoError(t, err)
	ctx.vars[recv] = runtime.NewObject(c)
	rc, err := hC.Resolve(ctx)
	require.NoError(t, err)

	replacement := runtime.NewNative0("foo", func(*runtime.Runtime, runtime.Value) (runtime.Value, error) {
		return runtime.Integer(10), nil
	})
	a.DefineMethod("foo", replacement)

	before := rt.Stats().FullLookups
	ctx.vars[recv] = runtime.NewObject(c)
	rc2, err := hC.Resolve(ctx)
	require.NoError(t, err)
	assert.Same(t, rc.Entry, rc2.Entry, "C's entry survives a redefinition on A")
	assert.Equal(t, uint64(0), rt.Stats().FullLookups-before)

	ctx.vars[recv] = runtime.NewObject(a)
	ra, err := hA.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rt.Stats().FullLookups-before)
	assert.Same(t, replacement, ra.Entry.Method)
}

func TestMethodHandleDynamicName(t *testing.T) {
	rt, ctx, a, _, recv := handleFixture(t)
	s := NewScope(MethodScope, "m")
	name := s.LocalVariable("name", 0)
	h := NewMethodHandle(recv, name)
	ctx.vars[recv] = runtime.NewObject(a)

	ctx.vars[name] = runtime.Symbol("foo")
	r, err := h.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "foo", r.Name)
	assert.True(t, r.Found())

	ctx.vars[name] = runtime.NewString("class")
	r, err = h.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "class", r.Name)
	assert.Equal(t, rt.KernelModule, r.Entry.Owner)
	assert.Equal(t, uint64(1), h.Cache(rt).Stats().Misses, "name change resets the cache")

	ctx.vars[name] = runtime.Symbol("nope")
	r, err = h.Resolve(ctx)
	require.NoError(t, err, "a missing method is not a resolution error")
	assert.False(t, r.Found())
}

func TestMethodHandleBadNameIsInternal(t *testing.T) {
	_, ctx, a, _, recv := handleFixture(t)
	h := NewMethodHandle(recv, NewFixnum(3))
	ctx.vars[recv] = runtime.NewObject(a)

	defer func() {
		ie, ok := AsInternalError(recover())
		require.True(t, ok)
		assert.Same(t, h, ie.Operand)
		assert.Contains(t, ie.Reason, "Integer")
	}()
	_, _ = h.Resolve(ctx)
}

func TestMethodHandleRetrieve(t *testing.T) {
	rt, ctx, a, _, recv := handleFixture(t)
	obj := runtime.NewObject(a)
	ctx.vars[recv] = obj
	v, err := NewMethodHandle(recv, NewMethAddr("foo")).Retrieve(ctx)
	require.NoError(t, err)
	bm := v.(*runtime.BoundMethod)
	assert.Same(t, obj, bm.Receiver)
	out, err := rt.Send(bm, "call")
	require.NoError(t, err)
	assert.Equal(t, runtime.Integer(1), out)

	name, ok := NewMethodHandle(recv, NewSymbol("foo")).StaticName()
	assert.True(t, ok)
	assert.Equal(t, "foo", name)
	_, ok = NewMethodHandle(recv, recv).StaticName()
	assert.False(t, ok)
}
