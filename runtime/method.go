package runtime

// Method is anything that can be installed in a method table and invoked.
//
// Arity is the exact number of arguments the method accepts, or -1 when it
// accepts any number.
type Method interface {
	Name() string
	Arity() int
	Invoke(rt *Runtime, self Value, args []Value, block Value) (Value, error)
}

// Visibility controls who may call a method. Checking it is a call-time
// concern of the calling convention, not of the caches.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Protected
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Protected:
		return "protected"
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Arity-specialized native methods
// ---------------------------------------------------------------------------

// NativeFunc is a Go function implementing a variadic native method.
type NativeFunc func(rt *Runtime, self Value, args []Value, block Value) (Value, error)

// Native0Func is a native method taking no arguments.
type Native0Func func(rt *Runtime, self Value) (Value, error)

// Native1Func is a native method taking one argument.
type Native1Func func(rt *Runtime, self Value, arg Value) (Value, error)

// Native2Func is a native method taking two arguments.
type Native2Func func(rt *Runtime, self Value, arg1, arg2 Value) (Value, error)

// NativeMethod wraps a variadic NativeFunc.
type NativeMethod struct {
	name string
	fn   NativeFunc
}

// NewNativeMethod wraps fn as a variadic method.
func NewNativeMethod(name string, fn NativeFunc) *NativeMethod {
	return &NativeMethod{name: name, fn: fn}
}

func (m *NativeMethod) Name() string { return m.name }
func (m *NativeMethod) Arity() int   { return -1 }

func (m *NativeMethod) Invoke(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
	return m.fn(rt, self, args, block)
}

// Native0 wraps a zero-argument native method.
type Native0 struct {
	name string
	fn   Native0Func
}

func (m *Native0) Name() string { return m.name }
func (m *Native0) Arity() int   { return 0 }

func (m *Native0) Invoke(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
	return m.fn(rt, self)
}

// Native1 wraps a one-argument native method.
type Native1 struct {
	name string
	fn   Native1Func
}

func (m *Native1) Name() string { return m.name }
func (m *Native1) Arity() int   { return 1 }

func (m *Native1) Invoke(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
	return m.fn(rt, self, args[0])
}

// Native2 wraps a two-argument native method.
type Native2 struct {
	name string
	fn   Native2Func
}

func (m *Native2) Name() string { return m.name }
func (m *Native2) Arity() int   { return 2 }

func (m *Native2) Invoke(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
	return m.fn(rt, self, args[0], args[1])
}

// NewNative0 creates a zero-argument native method.
func NewNative0(name string, fn Native0Func) *Native0 { return &Native0{name: name, fn: fn} }

// NewNative1 creates a one-argument native method.
func NewNative1(name string, fn Native1Func) *Native1 { return &Native1{name: name, fn: fn} }

// NewNative2 creates a two-argument native method.
func NewNative2(name string, fn Native2Func) *Native2 { return &Native2{name: name, fn: fn} }
