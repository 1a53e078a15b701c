package runtime

import "sync/atomic"

// Inline caching for call sites.
//
// A call site remembers the last resolution it performed. The default is
// a single-entry monomorphic cache: a site that alternates between two
// receiver classes misses on every switch. PolymorphicCallSite keeps a
// small fixed number of entries instead and goes megamorphic once more
// classes than that have been seen.
//
// Both kinds validate an entry by comparing the receiver's class, the
// selector, and the class generation. Entries are immutable and installed
// with one atomic pointer store, so concurrent readers see either the old
// or the new resolution, never a mix.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2..size entries
	CacheMegamorphic                   // Too many classes, always full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// DefaultPolymorphicSize is the entry count used when none is configured.
const DefaultPolymorphicSize = 4

// MethodCache is the per-call-site cache contract.
type MethodCache interface {
	// Find returns the resolution of selector for class, performing a
	// full lookup on a miss. The result may be "not found".
	Find(class *Class, selector int) *CacheEntry
	State() CacheState
	Stats() CacheStats
	Reset()
}

// CacheStats is a snapshot of a cache's counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// HitRate returns the hit rate as a percentage (0-100).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// ---------------------------------------------------------------------------
// Monomorphic call site
// ---------------------------------------------------------------------------

// CallSite is a single-entry cache. A miss evicts the previous entry.
type CallSite struct {
	entry  atomic.Pointer[CacheEntry]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCallSite creates an empty monomorphic call site.
func NewCallSite() *CallSite {
	return &CallSite{}
}

// Find implements MethodCache.
func (cs *CallSite) Find(class *Class, selector int) *CacheEntry {
	if e := cs.entry.Load(); e.ValidFor(class, selector) {
		cs.hits.Add(1)
		return e
	}
	cs.misses.Add(1)
	e := class.FindMethodBySelector(selector)
	cs.entry.Store(e)
	return e
}

// Entry returns the currently installed entry, or nil.
func (cs *CallSite) Entry() *CacheEntry {
	return cs.entry.Load()
}

// State implements MethodCache.
func (cs *CallSite) State() CacheState {
	if cs.entry.Load() == nil {
		return CacheEmpty
	}
	return CacheMonomorphic
}

// Stats implements MethodCache.
func (cs *CallSite) Stats() CacheStats {
	return CacheStats{Hits: cs.hits.Load(), Misses: cs.misses.Load()}
}

// Reset clears the cache back to empty state.
func (cs *CallSite) Reset() {
	cs.entry.Store(nil)
	cs.hits.Store(0)
	cs.misses.Store(0)
}

// ---------------------------------------------------------------------------
// Polymorphic call site
// ---------------------------------------------------------------------------

type picState struct {
	state   CacheState
	entries []*CacheEntry
}

// PolymorphicCallSite caches up to size resolutions, one per receiver
// class. Updates are copy-on-write; a lost race only costs a redundant
// lookup on a later call.
type PolymorphicCallSite struct {
	size   int
	state  atomic.Pointer[picState]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPolymorphicCallSite creates a cache holding at most size entries.
func NewPolymorphicCallSite(size int) *PolymorphicCallSite {
	if size < 1 {
		size = DefaultPolymorphicSize
	}
	pic := &PolymorphicCallSite{size: size}
	pic.state.Store(&picState{state: CacheEmpty})
	return pic
}

// Find implements MethodCache.
func (pic *PolymorphicCallSite) Find(class *Class, selector int) *CacheEntry {
	cur := pic.state.Load()
	for _, e := range cur.entries {
		if e.ValidFor(class, selector) {
			pic.hits.Add(1)
			return e
		}
	}
	pic.misses.Add(1)
	e := class.FindMethodBySelector(selector)
	if cur.state != CacheMegamorphic {
		pic.state.CompareAndSwap(cur, pic.grow(cur, e))
	}
	return e
}

// grow returns a new state with e installed, replacing any stale entry
// for the same receiver class.
func (pic *PolymorphicCallSite) grow(cur *picState, e *CacheEntry) *picState {
	entries := make([]*CacheEntry, 0, len(cur.entries)+1)
	for _, old := range cur.entries {
		if old.Class != e.Class {
			entries = append(entries, old)
		}
	}
	entries = append(entries, e)
	switch {
	case len(entries) > pic.size:
		return &picState{state: CacheMegamorphic}
	case len(entries) == 1:
		return &picState{state: CacheMonomorphic, entries: entries}
	default:
		return &picState{state: CachePolymorphic, entries: entries}
	}
}

// State implements MethodCache.
func (pic *PolymorphicCallSite) State() CacheState {
	return pic.state.Load().state
}

// Len returns the number of cached entries.
func (pic *PolymorphicCallSite) Len() int {
	return len(pic.state.Load().entries)
}

// Stats implements MethodCache.
func (pic *PolymorphicCallSite) Stats() CacheStats {
	return CacheStats{Hits: pic.hits.Load(), Misses: pic.misses.Load()}
}

// Reset clears the cache back to empty state.
func (pic *PolymorphicCallSite) Reset() {
	pic.state.Store(&picState{state: CacheEmpty})
	pic.hits.Store(0)
	pic.misses.Store(0)
}
