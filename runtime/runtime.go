package runtime

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// CacheMode selects the call-site cache implementation.
type CacheMode uint8

const (
	Monomorphic CacheMode = iota
	Polymorphic
)

// ParseCacheMode parses "monomorphic" or "polymorphic".
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(s) {
	case "", "monomorphic", "mono":
		return Monomorphic, nil
	case "polymorphic", "poly":
		return Polymorphic, nil
	}
	return Monomorphic, fmt.Errorf("unknown cache mode %q", s)
}

func (m CacheMode) String() string {
	if m == Polymorphic {
		return "polymorphic"
	}
	return "monomorphic"
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithCacheMode selects the call-site cache kind and, for polymorphic
// caches, the number of entries.
func WithCacheMode(mode CacheMode, size int) Option {
	return func(rt *Runtime) {
		rt.cacheMode = mode
		rt.picSize = size
	}
}

// WithLogger replaces the runtime logger.
func WithLogger(log commonlog.Logger) Option {
	return func(rt *Runtime) {
		rt.log = log
	}
}

// WithOutput redirects what Kernel#puts writes.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.out = w
	}
}

// Stats are runtime-wide lookup counters.
type Stats struct {
	FullLookups uint64 // call-site misses that reached FindMethod
	Searches    uint64 // ancestry walks (per-class cache misses)
}

// Runtime owns the class hierarchy, the selector table, global variables
// and the generation serial every class draws its stamps from.
type Runtime struct {
	Selectors *SelectorTable
	Main      *Object

	serial      atomic.Uint64
	fullLookups atomic.Uint64
	searches    atomic.Uint64

	cacheMode CacheMode
	picSize   int
	log       commonlog.Logger
	out       io.Writer

	globals sync.Map

	classesMu sync.RWMutex
	classes   map[string]*Class

	builtinsMu sync.RWMutex
	builtins   map[*Class]map[string]Method

	ObjectClass        *Class
	ModuleClass        *Class
	ClassClass         *Class
	KernelModule       *Class
	ComparableModule   *Class
	NilClass           *Class
	TrueClass          *Class
	FalseClass         *Class
	NumericClass       *Class
	IntegerClass       *Class
	FloatClass         *Class
	StringClass        *Class
	SymbolClass        *Class
	ArrayClass         *Class
	HashClass          *Class
	RangeClass         *Class
	RegexpClass        *Class
	MatchDataClass     *Class
	ProcClass          *Class
	MethodClass        *Class
	ExceptionClass     *Class
	StandardError      *Class
	RuntimeError       *Class
	NameError          *Class
	NoMethodErrorClass *Class
	ArgumentErrorClass *Class
	TypeErrorClass     *Class
	ZeroDivisionError  *Class
	RegexpError        *Class
	LocalJumpError     *Class
}

// New creates a runtime with the core classes installed.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		Selectors: NewSelectorTable(),
		classes:   make(map[string]*Class),
		builtins:  make(map[*Class]map[string]Method),
		picSize:   DefaultPolymorphicSize,
		log:       commonlog.GetLogger("garnet.runtime"),
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.bootstrap()
	return rt
}

func (rt *Runtime) nextSerial() uint64 {
	return rt.serial.Add(1)
}

// Stats returns a snapshot of the lookup counters.
func (rt *Runtime) Stats() Stats {
	return Stats{FullLookups: rt.fullLookups.Load(), Searches: rt.searches.Load()}
}

// NewMethodCache creates a call-site cache of the configured kind.
func (rt *Runtime) NewMethodCache() MethodCache {
	if rt.cacheMode == Polymorphic {
		return NewPolymorphicCallSite(rt.picSize)
	}
	return NewCallSite()
}

// CacheMode returns the configured call-site cache kind.
func (rt *Runtime) CacheMode() CacheMode {
	return rt.cacheMode
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

func (rt *Runtime) register(c *Class) {
	rt.classesMu.Lock()
	rt.classes[c.Name] = c
	rt.classesMu.Unlock()
	if rt.ObjectClass != nil {
		rt.ObjectClass.SetConstant(c.Name, c)
	}
}

// LookupClass returns the class or module registered under name.
func (rt *Runtime) LookupClass(name string) *Class {
	rt.classesMu.RLock()
	defer rt.classesMu.RUnlock()
	return rt.classes[name]
}

// DefineClass creates a class, or reopens it when it already exists.
// A nil superclass means Object.
func (rt *Runtime) DefineClass(name string, superclass *Class) (*Class, error) {
	if superclass == nil {
		superclass = rt.ObjectClass
	}
	if existing := rt.LookupClass(name); existing != nil {
		if existing.IsModule {
			return nil, rt.NewError(rt.TypeErrorClass, "%s is not a class", name)
		}
		if existing.Superclass != superclass && superclass != rt.ObjectClass {
			return nil, rt.NewError(rt.TypeErrorClass, "superclass mismatch for class %s", name)
		}
		return existing, nil
	}
	if superclass.IsModule {
		return nil, rt.NewError(rt.TypeErrorClass, "superclass must be a Class (Module given)")
	}
	c := newClass(rt, name, superclass, false)
	rt.register(c)
	return c, nil
}

// DefineModule creates a module, or reopens it when it already exists.
func (rt *Runtime) DefineModule(name string) (*Class, error) {
	if existing := rt.LookupClass(name); existing != nil {
		if !existing.IsModule {
			return nil, rt.NewError(rt.TypeErrorClass, "%s is not a module", name)
		}
		return existing, nil
	}
	m := newClass(rt, name, nil, true)
	rt.register(m)
	return m, nil
}

// ClassOf returns the class used for dispatch on v.
func (rt *Runtime) ClassOf(v Value) *Class {
	switch x := v.(type) {
	case nil, NilValue, UndefinedValue:
		return rt.NilClass
	case Bool:
		if x {
			return rt.TrueClass
		}
		return rt.FalseClass
	case Integer, *big.Int:
		return rt.IntegerClass
	case Float:
		return rt.FloatClass
	case *String:
		return rt.StringClass
	case Symbol:
		return rt.SymbolClass
	case *Array:
		return rt.ArrayClass
	case *Hash:
		return rt.HashClass
	case *Range:
		return rt.RangeClass
	case *Regexp:
		return rt.RegexpClass
	case *MatchData:
		return rt.MatchDataClass
	case *Proc:
		return rt.ProcClass
	case *BoundMethod:
		return rt.MethodClass
	case *Exception:
		return x.class
	case *Object:
		return x.class
	case *Class:
		if x.IsModule {
			return rt.ModuleClass
		}
		return rt.ClassClass
	}
	return rt.ObjectClass
}

// ---------------------------------------------------------------------------
// Dispatch helpers
// ---------------------------------------------------------------------------

// Send performs an uncached dynamic call of name on recv. Visibility is
// not checked.
func (rt *Runtime) Send(recv Value, name string, args ...Value) (Value, error) {
	e := rt.ClassOf(recv).FindMethod(name)
	if !e.Found() {
		return nil, rt.NoMethodError(name, recv)
	}
	if a := e.Method.Arity(); a >= 0 && a != len(args) {
		return nil, rt.ArgumentError(len(args), a)
	}
	return e.Method.Invoke(rt, recv, args, Nil)
}

// ToS converts v to a string through its to_s method.
func (rt *Runtime) ToS(v Value) (*String, error) {
	if s, ok := v.(*String); ok {
		return s, nil
	}
	r, err := rt.Send(v, "to_s")
	if err != nil {
		return nil, err
	}
	s, ok := r.(*String)
	if !ok {
		return nil, rt.TypeError(r, "String")
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// Global returns the value of a global variable, or Nil when unset.
func (rt *Runtime) Global(name string) Value {
	if v, ok := rt.globals.Load(name); ok {
		return v
	}
	return Nil
}

// SetGlobal assigns a global variable.
func (rt *Runtime) SetGlobal(name string, v Value) {
	rt.globals.Store(name, v)
}

// ---------------------------------------------------------------------------
// Builtin tracking
// ---------------------------------------------------------------------------

func (rt *Runtime) defineBuiltin(c *Class, m Method) {
	c.DefineMethod(m.Name(), m)
	rt.builtinsMu.Lock()
	if rt.builtins[c] == nil {
		rt.builtins[c] = make(map[string]Method)
	}
	rt.builtins[c][m.Name()] = m
	rt.builtinsMu.Unlock()
}

// Redefined reports whether name on the named class no longer resolves to
// the builtin implementation. Compile-time folding of core operators asks
// this before assuming builtin semantics.
func (rt *Runtime) Redefined(className, name string) bool {
	c := rt.LookupClass(className)
	if c == nil {
		return true
	}
	var builtin Method
	rt.builtinsMu.RLock()
	for _, a := range c.Ancestors() {
		if m := rt.builtins[a][name]; m != nil {
			builtin = m
			break
		}
	}
	rt.builtinsMu.RUnlock()
	if builtin == nil {
		return true
	}
	e := c.resolve(rt.Selectors.Intern(name))
	return e.Method != builtin
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Inspect renders v for diagnostics and tooling output.
func (rt *Runtime) Inspect(v Value) string {
	switch x := v.(type) {
	case nil, NilValue:
		return "nil"
	case UndefinedValue:
		return "undefined"
	case Bool:
		return strconv.FormatBool(bool(x))
	case Integer:
		return strconv.FormatInt(int64(x), 10)
	case *big.Int:
		return x.String()
	case Float:
		return formatFloat(float64(x))
	case *String:
		return strconv.Quote(string(x.Bytes))
	case Symbol:
		return ":" + string(x)
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = rt.Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Hash:
		var parts []string
		x.Each(func(k, val Value) {
			parts = append(parts, rt.Inspect(k)+" => "+rt.Inspect(val))
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case *Range:
		op := ".."
		if x.Exclusive {
			op = "..."
		}
		return rt.Inspect(x.Begin) + op + rt.Inspect(x.End)
	case *Regexp:
		return "/" + x.Source + "/" + x.Options.String()
	case *Class:
		return x.Name
	case *Exception:
		return fmt.Sprintf("#<%s: %s>", x.class.Name, x.Message)
	case *Object:
		return fmt.Sprintf("#<%s>", x.class.Name)
	case *BoundMethod:
		return fmt.Sprintf("#<Method: %s#%s>", rt.ClassOf(x.Receiver).Name, x.Name)
	case *Proc:
		return "#<Proc>"
	case *MatchData:
		return fmt.Sprintf("#<MatchData %q>", x.Subject[x.Offsets[0]:x.Offsets[1]])
	}
	return fmt.Sprintf("#<%T>", v)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnI") {
		s += ".0"
	}
	return s
}
