package runtime

import (
	"strings"
	"testing"
)

func constMethod(name string, v Value) Method {
	return NewNative0(name, func(rt *Runtime, self Value) (Value, error) {
		return v, nil
	})
}

func TestBootstrapHierarchy(t *testing.T) {
	rt := New()

	tests := []struct {
		class *Class
		super *Class
	}{
		{rt.IntegerClass, rt.NumericClass},
		{rt.FloatClass, rt.NumericClass},
		{rt.NoMethodErrorClass, rt.NameError},
		{rt.ZeroDivisionError, rt.StandardError},
		{rt.ClassClass, rt.ModuleClass},
	}
	for _, tt := range tests {
		if tt.class.Superclass != tt.super {
			t.Errorf("%s superclass = %v, want %s", tt.class.Name, tt.class.Superclass, tt.super.Name)
		}
	}

	if !rt.IntegerClass.IsSubclassOf(rt.KernelModule) {
		t.Error("Integer should inherit Kernel through Object")
	}
	if v, ok := rt.ObjectClass.Constant("String"); !ok || v != rt.StringClass {
		t.Errorf("Object::String = %v, want String class", v)
	}
	if rt.ClassOf(rt.Main) != rt.ObjectClass {
		t.Errorf("main is a %s, want Object", rt.ClassOf(rt.Main).Name)
	}
}

func TestAncestorsWithModules(t *testing.T) {
	rt := New()
	m1, _ := rt.DefineModule("M1")
	m2, _ := rt.DefineModule("M2")
	inner, _ := rt.DefineModule("Inner")
	if err := m2.Include(inner); err != nil {
		t.Fatalf("Include: %v", err)
	}
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	if err := b.Include(m1); err != nil {
		t.Fatalf("Include: %v", err)
	}
	if err := b.Include(m2); err != nil {
		t.Fatalf("Include: %v", err)
	}

	var names []string
	for _, c := range b.Ancestors() {
		names = append(names, c.Name)
	}
	got := strings.Join(names, " ")
	want := "B M2 Inner M1 A Object Kernel"
	if got != want {
		t.Errorf("ancestors = %q, want %q", got, want)
	}
}

func TestIncludeRejectsCycles(t *testing.T) {
	rt := New()
	m1, _ := rt.DefineModule("M1")
	m2, _ := rt.DefineModule("M2")
	if err := m1.Include(m2); err != nil {
		t.Fatalf("Include: %v", err)
	}
	if err := m2.Include(m1); err == nil {
		t.Error("expected cyclic include to fail")
	}
	if err := m1.Include(m1); err == nil {
		t.Error("expected self include to fail")
	}
	a, _ := rt.DefineClass("A", nil)
	if err := m1.Include(a); err == nil {
		t.Error("expected including a class to fail")
	}
}

func TestIncludeAlreadyAncestorIsNoop(t *testing.T) {
	rt := New()
	m, _ := rt.DefineModule("M")
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	if err := a.Include(m); err != nil {
		t.Fatal(err)
	}
	gen := b.Generation()
	if err := b.Include(m); err != nil {
		t.Fatal(err)
	}
	if len(b.Includes()) != 0 {
		t.Errorf("B includes = %v, want none", b.Includes())
	}
	if b.Generation() != gen {
		t.Error("no-op include should not bump the generation")
	}
}

func TestLookupThroughModule(t *testing.T) {
	rt := New()
	m, _ := rt.DefineModule("Greeter")
	m.DefineMethod("greet", constMethod("greet", NewString("hi")))
	a, _ := rt.DefineClass("A", nil)

	if a.FindMethod("greet").Found() {
		t.Fatal("greet should not resolve before include")
	}
	if err := a.Include(m); err != nil {
		t.Fatal(err)
	}
	e := a.FindMethod("greet")
	if !e.Found() {
		t.Fatal("greet should resolve after include")
	}
	if e.Owner != m {
		t.Errorf("owner = %s, want Greeter", e.Owner.Name)
	}
}

func TestModuleMutationReachesIncluders(t *testing.T) {
	rt := New()
	m, _ := rt.DefineModule("M")
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	if err := a.Include(m); err != nil {
		t.Fatal(err)
	}
	genA, genB := a.Generation(), b.Generation()

	m.DefineMethod("x", constMethod("x", Integer(1)))

	if a.Generation() == genA || b.Generation() == genB {
		t.Error("defining on an included module must bump every includer and subclass")
	}
	if !b.FindMethod("x").Found() {
		t.Error("x should resolve on B")
	}
}

// A reader that computed the ancestry before an include may publish its
// list after the include has invalidated the memo. The late list must not
// be served under the new generation.
func TestLateAncestryPublishIsIgnored(t *testing.T) {
	rt := New()
	m, _ := rt.DefineModule("M")
	m.DefineMethod("x", constMethod("x", Integer(1)))
	a, _ := rt.DefineClass("A", nil)

	a.Ancestors()
	late := a.ancestors.Load()
	if late == nil {
		t.Fatal("ancestry should be memoized")
	}
	if err := a.Include(m); err != nil {
		t.Fatal(err)
	}
	a.ancestors.Store(late)

	if !a.IsSubclassOf(m) {
		t.Error("A should list M among its ancestors after the include")
	}
	if !a.FindMethod("x").Found() {
		t.Error("x should resolve on A through M")
	}
}

func TestRemoveMethodExposesInherited(t *testing.T) {
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	parent := constMethod("m", Integer(1))
	child := constMethod("m", Integer(2))
	a.DefineMethod("m", parent)
	b.DefineMethod("m", child)

	if got := b.FindMethod("m").Method; got != child {
		t.Fatalf("B#m = %v, want child", got)
	}
	if err := b.RemoveMethod("m"); err != nil {
		t.Fatal(err)
	}
	if got := b.FindMethod("m").Method; got != parent {
		t.Errorf("after remove, B#m = %v, want parent", got)
	}
	if err := b.RemoveMethod("m"); err == nil {
		t.Error("removing a method not defined locally should fail")
	}
}

func TestUndefineMethodHidesInherited(t *testing.T) {
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	a.DefineMethod("m", constMethod("m", Integer(1)))

	if err := b.UndefineMethod("m"); err != nil {
		t.Fatal(err)
	}
	if b.FindMethod("m").Found() {
		t.Error("m should be unresolvable on B after undef")
	}
	if !a.FindMethod("m").Found() {
		t.Error("m should still resolve on A")
	}
	if err := b.UndefineMethod("m"); err == nil {
		t.Error("undefining twice should fail")
	}
}

func TestSetVisibilityCopiesInherited(t *testing.T) {
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", a)
	a.DefineMethod("secret", constMethod("secret", Integer(1)))

	if err := b.SetVisibility("secret", Private); err != nil {
		t.Fatal(err)
	}
	if vis := b.FindMethod("secret").Visibility; vis != Private {
		t.Errorf("B#secret visibility = %s, want private", vis)
	}
	if vis := a.FindMethod("secret").Visibility; vis != Public {
		t.Errorf("A#secret visibility = %s, want public", vis)
	}
	if err := b.SetVisibility("missing", Private); err == nil {
		t.Error("changing visibility of a missing method should fail")
	}
}

func TestDefineClassReopenAndMismatch(t *testing.T) {
	rt := New()
	a, _ := rt.DefineClass("A", nil)
	b, _ := rt.DefineClass("B", nil)

	again, err := rt.DefineClass("A", nil)
	if err != nil || again != a {
		t.Fatalf("reopen A = %v, %v", again, err)
	}
	if _, err := rt.DefineClass("A", b); err == nil {
		t.Error("expected superclass mismatch")
	}
	if _, err := rt.DefineModule("A"); err == nil {
		t.Error("expected A is not a module")
	}
}

func TestRedefined(t *testing.T) {
	rt := New()
	if rt.Redefined("Integer", "+") {
		t.Fatal("Integer#+ should start as the builtin")
	}
	if rt.Redefined("Integer", "<") {
		t.Fatal("Integer#< resolves to the Numeric builtin")
	}
	rt.IntegerClass.DefineMethod("+", constMethod("+", Integer(42)))
	if !rt.Redefined("Integer", "+") {
		t.Error("Integer#+ should report redefined")
	}
	if rt.Redefined("Float", "+") {
		t.Error("Float#+ is untouched")
	}
	if !rt.Redefined("Nope", "+") {
		t.Error("unknown classes are treated as redefined")
	}
}
