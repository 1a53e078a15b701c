package runtime

import (
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func twoClasses(t *testing.T) (*Runtime, *Class, *Class, int) {
	t.Helper()
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", nil)
	a.DefineMethod("foo", constMethod("foo", Integer(1)))
	b.DefineMethod("foo", constMethod("foo", Integer(2)))
	return rt, a, b, rt.Selectors.Intern("foo")
}

func TestCallSiteEmpty(t *testing.T) {
	cs := NewCallSite()
	if cs.State() != CacheEmpty {
		t.Errorf("state = %s, want empty", cs.State())
	}
	if cs.Entry() != nil {
		t.Error("empty call site should have no entry")
	}
}

func TestCallSiteHitAfterMiss(t *testing.T) {
	rt, a, _, sel := twoClasses(t)
	cs := NewCallSite()

	before := rt.Stats().FullLookups
	first := cs.Find(a, sel)
	for i := 0; i < 10; i++ {
		if e := cs.Find(a, sel); e != first {
			t.Fatalf("call %d: got a different entry", i)
		}
	}
	if got := rt.Stats().FullLookups - before; got != 1 {
		t.Errorf("full lookups = %d, want 1", got)
	}
	if s := cs.Stats(); s.Hits != 10 || s.Misses != 1 {
		t.Errorf("stats = %+v, want 10 hits 1 miss", s)
	}
	if cs.State() != CacheMonomorphic {
		t.Errorf("state = %s, want monomorphic", cs.State())
	}
}

func TestCallSiteThrashesOnAlternatingReceivers(t *testing.T) {
	rt, a, b, sel := twoClasses(t)
	cs := NewCallSite()
	cs.Find(a, sel)

	before := rt.Stats().FullLookups
	if e := cs.Find(b, sel); e.Class != b {
		t.Fatalf("entry class = %s, want B", e.Class.Name)
	}
	if got := rt.Stats().FullLookups - before; got != 1 {
		t.Fatalf("switch to B: full lookups = %d, want 1", got)
	}

	before = rt.Stats().FullLookups
	cs.Find(b, sel)
	cs.Find(b, sel)
	if got := rt.Stats().FullLookups - before; got != 0 {
		t.Fatalf("repeated B: full lookups = %d, want 0", got)
	}

	before = rt.Stats().FullLookups
	for i := 0; i < 3; i++ {
		cs.Find(a, sel)
		cs.Find(b, sel)
	}
	if got := rt.Stats().FullLookups - before; got != 6 {
		t.Errorf("interleaved A/B: full lookups = %d, want 6", got)
	}
}

func TestCacheStampInvariant(t *testing.T) {
	rt, a, _, sel := twoClasses(t)
	cs := NewCallSite()

	e1 := cs.Find(a, sel)
	if !e1.ValidFor(a, sel) {
		t.Fatal("fresh entry should be valid")
	}

	redefined := constMethod("foo", Integer(3))
	a.DefineMethod("foo", redefined)
	if e1.ValidFor(a, sel) {
		t.Fatal("entry should be stale after redefinition")
	}

	before := rt.Stats().FullLookups
	e2 := cs.Find(a, sel)
	if got := rt.Stats().FullLookups - before; got != 1 {
		t.Fatalf("after redefinition: full lookups = %d, want 1", got)
	}
	if e2.Method != redefined {
		t.Error("lookup should see the redefined method")
	}
	if e2.Generation <= e1.Generation {
		t.Errorf("stamp %d should be newer than %d", e2.Generation, e1.Generation)
	}

	before = rt.Stats().FullLookups
	for i := 0; i < 5; i++ {
		cs.Find(a, sel)
	}
	if got := rt.Stats().FullLookups - before; got != 0 {
		t.Errorf("after reinstall: full lookups = %d, want 0", got)
	}
}

func TestRedefinitionLeavesUnrelatedClassesValid(t *testing.T) {
	rt, a, _, sel := twoClasses(t)
	c, _ := rt.DefineClass("C", nil)
	c.DefineMethod("foo", constMethod("foo", Integer(9)))

	siteA, siteC := NewCallSite(), NewCallSite()
	siteA.Find(a, sel)
	entryC := siteC.Find(c, sel)
	genC := c.Generation()

	a.DefineMethod("foo", constMethod("foo", Integer(4)))

	if c.Generation() != genC {
		t.Error("redefining on A must not touch C's generation")
	}
	if !entryC.ValidFor(c, sel) {
		t.Error("C's entry should remain valid")
	}
	before := rt.Stats().FullLookups
	siteC.Find(c, sel)
	if got := rt.Stats().FullLookups - before; got != 0 {
		t.Errorf("C lookup after A redefinition: full lookups = %d, want 0", got)
	}
	if siteA.Entry().ValidFor(a, sel) {
		t.Error("A's entry should be stale")
	}
}

func TestSuperclassRedefinitionInvalidatesSubclass(t *testing.T) {
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	a.DefineMethod("m", constMethod("m", Integer(1)))
	sel := rt.Selectors.Intern("m")

	cs := NewCallSite()
	e := cs.Find(b, sel)
	if e.Owner != a {
		t.Fatalf("owner = %v, want A", e.Owner)
	}
	override := constMethod("m", Integer(2))
	a.DefineMethod("m", override)
	if got := cs.Find(b, sel).Method; got != override {
		t.Error("subclass call site should observe superclass redefinition")
	}
}

func TestNotFoundIsCached(t *testing.T) {
	rt, a, _, _ := twoClasses(t)
	sel := rt.Selectors.Intern("missing")
	cs := NewCallSite()

	if cs.Find(a, sel).Found() {
		t.Fatal("missing should not be found")
	}
	searches := rt.Stats().Searches
	if cs.Find(a, sel).Found() {
		t.Fatal("missing should not be found")
	}
	if rt.Stats().Searches != searches {
		t.Error("a cached negative result should not search again")
	}

	a.DefineMethod("missing", constMethod("missing", Nil))
	if !cs.Find(a, sel).Found() {
		t.Error("defining the method must invalidate the negative entry")
	}
}

func TestPolymorphicCallSiteStates(t *testing.T) {
	rt := New()
	sel := rt.Selectors.Intern("foo")
	pic := NewPolymorphicCallSite(2)
	if pic.State() != CacheEmpty {
		t.Fatalf("state = %s, want empty", pic.State())
	}

	var classes []*Class
	for i := 0; i < 3; i++ {
		c, _ := rt.DefineClass(fmt.Sprintf("K%d", i), nil)
		c.DefineMethod("foo", constMethod("foo", Integer(i)))
		classes = append(classes, c)
	}

	pic.Find(classes[0], sel)
	if pic.State() != CacheMonomorphic {
		t.Errorf("state = %s, want monomorphic", pic.State())
	}
	pic.Find(classes[1], sel)
	if pic.State() != CachePolymorphic || pic.Len() != 2 {
		t.Errorf("state = %s len %d, want polymorphic len 2", pic.State(), pic.Len())
	}

	before := rt.Stats().FullLookups
	pic.Find(classes[0], sel)
	pic.Find(classes[1], sel)
	if got := rt.Stats().FullLookups - before; got != 0 {
		t.Errorf("alternating two cached classes: full lookups = %d, want 0", got)
	}

	pic.Find(classes[2], sel)
	if pic.State() != CacheMegamorphic {
		t.Errorf("state = %s, want megamorphic", pic.State())
	}
	before = rt.Stats().FullLookups
	pic.Find(classes[0], sel)
	if got := rt.Stats().FullLookups - before; got != 1 {
		t.Errorf("megamorphic lookup: full lookups = %d, want 1", got)
	}

	pic.Reset()
	if pic.State() != CacheEmpty || pic.Stats().Hits != 0 {
		t.Error("reset should clear state and counters")
	}
}

func TestPolymorphicCallSiteReplacesStaleEntry(t *testing.T) {
	rt, a, b, sel := twoClasses(t)
	pic := NewPolymorphicCallSite(2)
	pic.Find(a, sel)
	pic.Find(b, sel)

	a.DefineMethod("foo", constMethod("foo", Integer(7)))
	pic.Find(a, sel)
	if pic.State() != CachePolymorphic || pic.Len() != 2 {
		t.Errorf("state = %s len %d, want polymorphic len 2", pic.State(), pic.Len())
	}
	if rt.CacheMode() != Monomorphic {
		t.Errorf("default cache mode = %s", rt.CacheMode())
	}
}

func TestNewMethodCacheHonoursMode(t *testing.T) {
	rt := New(WithCacheMode(Polymorphic, 8))
	if _, ok := rt.NewMethodCache().(*PolymorphicCallSite); !ok {
		t.Error("polymorphic mode should create polymorphic call sites")
	}
	if _, ok := New().NewMethodCache().(*CallSite); !ok {
		t.Error("default mode should create monomorphic call sites")
	}
	if _, err := ParseCacheMode("bogus"); err == nil {
		t.Error("expected parse error")
	}
}

func TestConcurrentLookupsAndRedefinition(t *testing.T) {
	rt, a, b, sel := twoClasses(t)
	sites := []MethodCache{NewCallSite(), NewPolymorphicCallSite(4)}
	var current atomic.Int64

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 2000; i++ {
				class := a
				if (i+w)%2 == 0 {
					class = b
				}
				for _, site := range sites {
					e := site.Find(class, sel)
					if !e.Found() {
						return fmt.Errorf("worker %d: foo not found on %s", w, class.Name)
					}
					if e.Class != class {
						return fmt.Errorf("worker %d: entry for %s returned for %s", w, e.Class.Name, class.Name)
					}
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 200; i++ {
			n := current.Add(1)
			a.DefineMethod("foo", constMethod("foo", Integer(n)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	// Once writers stop, every call site converges on the latest definition.
	want, _ := a.FindMethod("foo").Method.Invoke(rt, NewObject(a), nil, Nil)
	for _, site := range sites {
		got, _ := site.Find(a, sel).Method.Invoke(rt, NewObject(a), nil, Nil)
		if got != want {
			t.Errorf("%T converged on %v, want %v", site, got, want)
		}
	}
}
