package runtime

import "sync"

// methodEntry is one slot of a method table. An undefined entry is a
// tombstone: it stops the ancestry walk and reports "not found".
type methodEntry struct {
	method     Method
	visibility Visibility
	undefined  bool
}

// MethodTable holds the methods defined directly on one class or module.
//
// Entries are stored in a slice indexed by selector ID. The table does not
// know about inheritance; the ancestry walk lives on Class.
type MethodTable struct {
	mu      sync.RWMutex
	entries []*methodEntry
}

// NewMethodTable creates an empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{entries: make([]*methodEntry, 0, 32)}
}

// lookupLocal returns the entry for selector, or nil if the slot is empty.
func (mt *MethodTable) lookupLocal(selector int) *methodEntry {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	if selector >= 0 && selector < len(mt.entries) {
		return mt.entries[selector]
	}
	return nil
}

// put stores entry at selector, growing the slice as needed.
func (mt *MethodTable) put(selector int, entry *methodEntry) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if selector >= len(mt.entries) {
		grown := make([]*methodEntry, selector+1)
		copy(grown, mt.entries)
		mt.entries = grown
	}
	mt.entries[selector] = entry
}

// remove clears the slot and reports whether something was there.
func (mt *MethodTable) remove(selector int) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if selector < 0 || selector >= len(mt.entries) || mt.entries[selector] == nil {
		return false
	}
	mt.entries[selector] = nil
	return true
}

// Len returns the number of defined (non-tombstone) methods.
func (mt *MethodTable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	n := 0
	for _, e := range mt.entries {
		if e != nil && !e.undefined {
			n++
		}
	}
	return n
}

// selectors returns the selector IDs with defined methods, in ID order.
func (mt *MethodTable) selectors() []int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	var ids []int
	for i, e := range mt.entries {
		if e != nil && !e.undefined {
			ids = append(ids, i)
		}
	}
	return ids
}
