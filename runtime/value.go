package runtime

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Value is any runtime value. The concrete types are the ones declared in
// this file, *big.Int for bignums, *Class for classes and modules, and
// *Object for instances of user classes.
type Value interface{}

// NilValue is the type of Nil.
type NilValue struct{}

// UndefinedValue marks an optional argument that was not passed.
type UndefinedValue struct{}

// Bool is true or false.
type Bool bool

// Integer is a fixed-width integer.
type Integer int64

// Float is a double.
type Float float64

// Symbol is an interned name.
type Symbol string

var (
	Nil       Value = NilValue{}
	Undefined Value = UndefinedValue{}
	True      Value = Bool(true)
	False     Value = Bool(false)
)

// Truthy reports whether v counts as true in a condition.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, NilValue:
		return false
	case Bool:
		return bool(x)
	}
	return true
}

// String is a mutable byte string with an encoding name.
type String struct {
	Bytes    []byte
	Encoding string
}

// NewString creates a UTF-8 string.
func NewString(s string) *String {
	return &String{Bytes: []byte(s), Encoding: "UTF-8"}
}

func (s *String) String() string { return string(s.Bytes) }

// Array is an ordered, growable list of values.
type Array struct {
	Elems []Value
}

// NewArray creates an array holding elems.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// Hash is an insertion-ordered map.
type Hash struct {
	keys  []Value
	vals  []Value
	index map[hashKey]int
}

type hashKey struct {
	kind string
	repr string
}

// NewHash creates an empty hash.
func NewHash() *Hash {
	return &Hash{index: make(map[hashKey]int)}
}

func keyOf(v Value) hashKey {
	switch x := v.(type) {
	case *String:
		return hashKey{"s", string(x.Bytes)}
	case *big.Int:
		return hashKey{"i", x.String()}
	case Integer:
		return hashKey{"i", strconv.FormatInt(int64(x), 10)}
	case Symbol, Float, Bool, NilValue:
		return hashKey{fmt.Sprintf("%T", v), fmt.Sprintf("%v", v)}
	}
	return hashKey{fmt.Sprintf("%T", v), fmt.Sprintf("%p", v)}
}

// Put sets key to val, keeping the original insertion position.
func (h *Hash) Put(key, val Value) {
	k := keyOf(key)
	if i, ok := h.index[k]; ok {
		h.vals[i] = val
		return
	}
	h.index[k] = len(h.keys)
	h.keys = append(h.keys, key)
	h.vals = append(h.vals, val)
}

// Get returns the value stored under key.
func (h *Hash) Get(key Value) (Value, bool) {
	if i, ok := h.index[keyOf(key)]; ok {
		return h.vals[i], true
	}
	return nil, false
}

// Len returns the number of pairs.
func (h *Hash) Len() int { return len(h.keys) }

// Each calls fn for every pair in insertion order.
func (h *Hash) Each(fn func(k, v Value)) {
	for i := range h.keys {
		fn(h.keys[i], h.vals[i])
	}
}

// Range is begin..end or begin...end.
type Range struct {
	Begin     Value
	End       Value
	Exclusive bool
}

// RegexpOptions are the compile flags of a regexp literal.
type RegexpOptions uint8

const (
	RegexpIgnoreCase RegexpOptions = 1 << iota
	RegexpExtended
	RegexpMultiline
	RegexpOnce
)

func (o RegexpOptions) String() string {
	var sb strings.Builder
	if o&RegexpMultiline != 0 {
		sb.WriteByte('m')
	}
	if o&RegexpIgnoreCase != 0 {
		sb.WriteByte('i')
	}
	if o&RegexpExtended != 0 {
		sb.WriteByte('x')
	}
	if o&RegexpOnce != 0 {
		sb.WriteByte('o')
	}
	return sb.String()
}

// Regexp is a compiled regular expression.
type Regexp struct {
	Source  string
	Options RegexpOptions
	re      *regexp.Regexp
}

// CompileRegexp compiles source with the given options. Multiline mode
// maps to dot-matches-newline. Extended mode is not supported.
func CompileRegexp(rt *Runtime, source string, opts RegexpOptions) (*Regexp, error) {
	if opts&RegexpExtended != 0 {
		return nil, rt.NewError(rt.RegexpError, "extended mode is not supported: /%s/", source)
	}
	flags := ""
	if opts&RegexpIgnoreCase != 0 {
		flags += "i"
	}
	if opts&RegexpMultiline != 0 {
		flags += "s"
	}
	pattern := source
	if flags != "" {
		pattern = "(?" + flags + ")" + source
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, rt.NewError(rt.RegexpError, "%v: /%s/", err, source)
	}
	return &Regexp{Source: source, Options: opts, re: re}, nil
}

// Match runs the regexp against s, returning nil when there is no match.
func (r *Regexp) Match(s string) *MatchData {
	loc := r.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return nil
	}
	return &MatchData{Subject: s, Offsets: loc}
}

// MatchData is the result of a successful match.
type MatchData struct {
	Subject string
	Offsets []int
}

// Group returns capture group n, or nil if it did not participate.
func (m *MatchData) Group(n int) Value {
	if n < 0 || 2*n+1 >= len(m.Offsets) || m.Offsets[2*n] < 0 {
		return Nil
	}
	return NewString(m.Subject[m.Offsets[2*n]:m.Offsets[2*n+1]])
}

// PreMatch returns the part of the subject before the match.
func (m *MatchData) PreMatch() Value { return NewString(m.Subject[:m.Offsets[0]]) }

// PostMatch returns the part of the subject after the match.
func (m *MatchData) PostMatch() Value { return NewString(m.Subject[m.Offsets[1]:]) }

// LastGroup returns the highest-numbered participating group.
func (m *MatchData) LastGroup() Value {
	for n := len(m.Offsets)/2 - 1; n > 0; n-- {
		if m.Offsets[2*n] >= 0 {
			return m.Group(n)
		}
	}
	return Nil
}

// Object is an instance of a user-defined class.
type Object struct {
	class *Class
	ivars map[string]Value
}

// NewObject creates an instance of class.
func NewObject(class *Class) *Object {
	return &Object{class: class, ivars: make(map[string]Value)}
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// Get returns an instance variable, or Nil.
func (o *Object) Get(name string) Value {
	if v, ok := o.ivars[name]; ok {
		return v
	}
	return Nil
}

// Set assigns an instance variable.
func (o *Object) Set(name string, v Value) { o.ivars[name] = v }

// Proc is a closure. Fn runs the closure body with the given arguments.
type Proc struct {
	Self  Value
	Arity int
	Fn    func(args []Value) (Value, error)
}

// Call invokes the closure.
func (p *Proc) Call(args ...Value) (Value, error) {
	return p.Fn(args)
}

// BoundMethod is a resolved method handle: a receiver, the name that was
// looked up, and the cache entry the lookup produced.
type BoundMethod struct {
	Receiver Value
	Name     string
	Entry    *CacheEntry
}

// Found reports whether the lookup found a method.
func (b *BoundMethod) Found() bool { return b.Entry.Found() }

// Exception is an instance of an exception class.
type Exception struct {
	class   *Class
	Message string
}

// Class returns the exception's class.
func (e *Exception) Class() *Class { return e.class }
