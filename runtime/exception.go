package runtime

import "fmt"

// RaiseError carries a language-level exception through Go error returns.
// It is the only error kind user-level rescue handling may intercept.
type RaiseError struct {
	Exception *Exception
}

func (e *RaiseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Exception.class.Name, e.Exception.Message)
}

// Class returns the exception class that was raised.
func (e *RaiseError) Class() *Class {
	return e.Exception.class
}

// NewException creates an exception instance without raising it.
func (rt *Runtime) NewException(class *Class, format string, args ...any) *Exception {
	return &Exception{class: class, Message: fmt.Sprintf(format, args...)}
}

// NewError creates a RaiseError for class with a formatted message.
func (rt *Runtime) NewError(class *Class, format string, args ...any) *RaiseError {
	return &RaiseError{Exception: rt.NewException(class, format, args...)}
}

// NoMethodError reports that name could not be resolved on recv.
func (rt *Runtime) NoMethodError(name string, recv Value) *RaiseError {
	return rt.NewError(rt.NoMethodErrorClass, "undefined method '%s' for %s", name, rt.describe(recv))
}

// ArgumentError reports an arity mismatch.
func (rt *Runtime) ArgumentError(given, expected int) *RaiseError {
	return rt.NewError(rt.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d)", given, expected)
}

// TypeError reports a value of the wrong class.
func (rt *Runtime) TypeError(v Value, expected string) *RaiseError {
	return rt.NewError(rt.TypeErrorClass, "no implicit conversion of %s into %s", rt.ClassOf(v).Name, expected)
}

func (rt *Runtime) describe(v Value) string {
	switch v.(type) {
	case NilValue, nil:
		return "nil"
	case Bool:
		if Truthy(v) {
			return "true"
		}
		return "false"
	case *Class:
		return v.(*Class).Name
	}
	return "an instance of " + rt.ClassOf(v).Name
}
