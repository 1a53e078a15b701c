package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Class represents a class or a module.
//
// A module is a Class with IsModule set and no superclass. Classes and
// modules are values: the class of a class is Class, the class of a module
// is Module.
type Class struct {
	Name       string
	Superclass *Class
	IsModule   bool

	rt      *Runtime
	methods *MethodTable

	// generation is the method-table stamp caches compare against.
	generation atomic.Uint64

	// lookupCache maps selector ID -> *CacheEntry for this class.
	lookupCache sync.Map

	// ancestors memoizes the linearized ancestry together with the
	// generation it was computed at.
	ancestors atomic.Pointer[ancestry]

	mu         sync.RWMutex
	includes   []*Class // modules included directly, in include order
	dependents []*Class // subclasses and includers
	constants  map[string]Value
}

func newClass(rt *Runtime, name string, superclass *Class, isModule bool) *Class {
	c := &Class{
		Name:       name,
		Superclass: superclass,
		IsModule:   isModule,
		rt:         rt,
		methods:    NewMethodTable(),
		constants:  make(map[string]Value),
	}
	c.generation.Store(rt.nextSerial())
	if superclass != nil {
		superclass.addDependent(c)
	}
	return c
}

func (c *Class) String() string {
	return c.Name
}

// Runtime returns the runtime that owns this class.
func (c *Class) Runtime() *Runtime {
	return c.rt
}

// Methods returns the class's own method table.
func (c *Class) Methods() *MethodTable {
	return c.methods
}

// Generation returns the current method-table stamp.
func (c *Class) Generation() uint64 {
	return c.generation.Load()
}

// IsSubclassOf returns true if c is other or has other among its ancestors.
func (c *Class) IsSubclassOf(other *Class) bool {
	for _, a := range c.Ancestors() {
		if a == other {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func (c *Class) addDependent(d *Class) {
	c.mu.Lock()
	c.dependents = append(c.dependents, d)
	c.mu.Unlock()
}

// Include mixes module into c. Including a module that is already an
// ancestor is a no-op; including c into itself, directly or through
// another module, is rejected.
func (c *Class) Include(module *Class) error {
	if !module.IsModule {
		return fmt.Errorf("wrong argument type %s (expected Module)", module.Name)
	}
	if module == c {
		return fmt.Errorf("cyclic include detected")
	}
	for _, a := range module.Ancestors() {
		if a == c {
			return fmt.Errorf("cyclic include detected")
		}
	}
	for _, a := range c.Ancestors() {
		if a == module {
			return nil
		}
	}

	c.mu.Lock()
	c.includes = append(c.includes, module)
	c.mu.Unlock()
	module.addDependent(c)

	c.invalidate(true)
	return nil
}

// Includes returns the modules included directly into c, in include order.
func (c *Class) Includes() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Class, len(c.includes))
	copy(out, c.includes)
	return out
}

// Ancestors returns the method-resolution order for c: c itself, then
// its included modules (most recently included first, each followed by
// its own includes), then the ancestors of the superclass. A module that
// already appears in the superclass chain is not repeated.
func (c *Class) Ancestors() []*Class {
	// Hierarchy edits happen before the generation bump, so a list
	// computed after loading gen reflects at least that generation. A memo
	// from an older generation is recomputed, never trusted.
	gen := c.generation.Load()
	if p := c.ancestors.Load(); p != nil && p.generation == gen {
		return p.classes
	}

	var supers []*Class
	if c.Superclass != nil {
		supers = c.Superclass.Ancestors()
	}
	seen := make(map[*Class]bool, len(supers)+4)
	for _, s := range supers {
		seen[s] = true
	}

	own := []*Class{c}
	seen[c] = true
	includes := c.Includes()
	for i := len(includes) - 1; i >= 0; i-- {
		for _, m := range includes[i].Ancestors() {
			if !seen[m] {
				seen[m] = true
				own = append(own, m)
			}
		}
	}

	result := make([]*Class, 0, len(own)+len(supers))
	result = append(result, own...)
	result = append(result, supers...)
	c.ancestors.Store(&ancestry{generation: gen, classes: result})
	return result
}

type ancestry struct {
	generation uint64
	classes    []*Class
}

// invalidate bumps the generation of c and of every class that inherits
// from it, which also retires their memoized ancestries. When the
// hierarchy itself changed the memos are dropped eagerly.
func (c *Class) invalidate(hierarchy bool) {
	visited := make(map[*Class]bool)
	var walk func(k *Class)
	walk = func(k *Class) {
		if visited[k] {
			return
		}
		visited[k] = true
		if hierarchy {
			k.ancestors.Store(nil)
		}
		k.generation.Store(k.rt.nextSerial())
		k.mu.RLock()
		deps := make([]*Class, len(k.dependents))
		copy(deps, k.dependents)
		k.mu.RUnlock()
		for _, d := range deps {
			walk(d)
		}
	}
	walk(c)
	c.rt.log.Debugf("invalidated %s (%d classes, hierarchy=%t)", c.Name, len(visited), hierarchy)
}

// ---------------------------------------------------------------------------
// Method table mutation
// ---------------------------------------------------------------------------

// DefineMethod installs method under name with public visibility.
func (c *Class) DefineMethod(name string, method Method) {
	c.DefineMethodWithVisibility(name, method, Public)
}

// DefineMethodWithVisibility installs method under name.
func (c *Class) DefineMethodWithVisibility(name string, method Method, vis Visibility) {
	sel := c.rt.Selectors.Intern(name)
	c.methods.put(sel, &methodEntry{method: method, visibility: vis})
	c.invalidate(false)
}

// RemoveMethod removes a method defined directly on c, exposing any
// inherited definition again.
func (c *Class) RemoveMethod(name string) error {
	sel := c.rt.Selectors.Lookup(name)
	if sel < 0 || !c.methods.remove(sel) {
		return fmt.Errorf("method '%s' not defined in %s", name, c.Name)
	}
	c.invalidate(false)
	return nil
}

// UndefineMethod makes name unresolvable on c and its descendants, even
// when an ancestor defines it.
func (c *Class) UndefineMethod(name string) error {
	sel := c.rt.Selectors.Intern(name)
	if !c.resolve(sel).Found() {
		return fmt.Errorf("undefined method '%s' for class '%s'", name, c.Name)
	}
	c.methods.put(sel, &methodEntry{undefined: true})
	c.invalidate(false)
	return nil
}

// SetVisibility changes the visibility of name as seen from c. An
// inherited method is copied into c with the new visibility.
func (c *Class) SetVisibility(name string, vis Visibility) error {
	sel := c.rt.Selectors.Intern(name)
	if local := c.methods.lookupLocal(sel); local != nil && !local.undefined {
		c.methods.put(sel, &methodEntry{method: local.method, visibility: vis})
		c.invalidate(false)
		return nil
	}
	found := c.resolve(sel)
	if !found.Found() {
		return fmt.Errorf("undefined method '%s' for class '%s'", name, c.Name)
	}
	c.methods.put(sel, &methodEntry{method: found.Method, visibility: vis})
	c.invalidate(false)
	return nil
}

// LocalMethodNames returns the names of methods defined directly on c.
func (c *Class) LocalMethodNames() []string {
	ids := c.methods.selectors()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = c.rt.Selectors.Name(id)
	}
	return names
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// SetConstant binds name in c.
func (c *Class) SetConstant(name string, v Value) {
	c.mu.Lock()
	c.constants[name] = v
	c.mu.Unlock()
}

// Constant looks name up in c and then in its ancestors.
func (c *Class) Constant(name string) (Value, bool) {
	for _, a := range c.Ancestors() {
		a.mu.RLock()
		v, ok := a.constants[name]
		a.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}
