package runtime

// CacheEntry is an immutable snapshot of one method resolution: the
// receiver class and selector it answers for, the method found (nil when
// the name is not resolvable), and the class generation observed before
// the search began. Caches install entries with a single pointer store,
// so a reader never sees a method paired with a foreign stamp.
type CacheEntry struct {
	Class      *Class
	Selector   int
	Method     Method
	Owner      *Class
	Visibility Visibility
	Generation uint64
}

// Found reports whether the lookup resolved to a method.
func (e *CacheEntry) Found() bool {
	return e != nil && e.Method != nil
}

// ValidFor reports whether e still answers for (class, selector).
func (e *CacheEntry) ValidFor(class *Class, selector int) bool {
	return e != nil && e.Class == class && e.Selector == selector && e.Generation == class.Generation()
}

// FindMethod performs the full lookup of name on c. This is the path a
// call-site cache takes on a miss; it is counted in Stats().FullLookups.
func (c *Class) FindMethod(name string) *CacheEntry {
	return c.FindMethodBySelector(c.rt.Selectors.Intern(name))
}

// FindMethodBySelector is FindMethod for an already-interned selector.
func (c *Class) FindMethodBySelector(selector int) *CacheEntry {
	c.rt.fullLookups.Add(1)
	return c.resolve(selector)
}

// resolve consults the class's own lookup cache and falls back to the
// ancestry walk. It is not counted as a full lookup.
func (c *Class) resolve(selector int) *CacheEntry {
	if v, ok := c.lookupCache.Load(selector); ok {
		if e := v.(*CacheEntry); e.ValidFor(c, selector) {
			return e
		}
	}
	// The stamp is read before the walk: a concurrent redefinition during
	// the walk leaves an entry that is already stale.
	gen := c.Generation()
	e := c.search(selector, gen)
	c.lookupCache.Store(selector, e)
	return e
}

// search walks the ancestry in method-resolution order.
func (c *Class) search(selector int, gen uint64) *CacheEntry {
	c.rt.searches.Add(1)
	e := &CacheEntry{Class: c, Selector: selector, Generation: gen}
	for _, a := range c.Ancestors() {
		entry := a.methods.lookupLocal(selector)
		if entry == nil {
			continue
		}
		if entry.undefined {
			return e
		}
		e.Method = entry.method
		e.Owner = a
		e.Visibility = entry.visibility
		return e
	}
	return e
}
