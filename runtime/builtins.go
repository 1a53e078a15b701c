package runtime

import (
	"bytes"
	"context"
	"math"
	"math/big"
	"os/exec"
	"strconv"
	"strings"
)

// bootstrap creates the core hierarchy and installs the builtin methods.
// Object must exist before anything registers a constant on it, so the
// first three classes are wired by hand.
func (rt *Runtime) bootstrap() {
	rt.ObjectClass = newClass(rt, "Object", nil, false)
	rt.register(rt.ObjectClass)

	rt.ModuleClass = rt.mustClass("Module", rt.ObjectClass)
	rt.ClassClass = rt.mustClass("Class", rt.ModuleClass)
	rt.KernelModule = rt.mustModule("Kernel")
	rt.ComparableModule = rt.mustModule("Comparable")
	if err := rt.ObjectClass.Include(rt.KernelModule); err != nil {
		panic(err)
	}

	rt.NilClass = rt.mustClass("NilClass", nil)
	rt.TrueClass = rt.mustClass("TrueClass", nil)
	rt.FalseClass = rt.mustClass("FalseClass", nil)
	rt.NumericClass = rt.mustClass("Numeric", nil)
	rt.IntegerClass = rt.mustClass("Integer", rt.NumericClass)
	rt.FloatClass = rt.mustClass("Float", rt.NumericClass)
	rt.StringClass = rt.mustClass("String", nil)
	rt.SymbolClass = rt.mustClass("Symbol", nil)
	rt.ArrayClass = rt.mustClass("Array", nil)
	rt.HashClass = rt.mustClass("Hash", nil)
	rt.RangeClass = rt.mustClass("Range", nil)
	rt.RegexpClass = rt.mustClass("Regexp", nil)
	rt.MatchDataClass = rt.mustClass("MatchData", nil)
	rt.ProcClass = rt.mustClass("Proc", nil)
	rt.MethodClass = rt.mustClass("Method", nil)
	for _, c := range []*Class{rt.NumericClass, rt.StringClass} {
		if err := c.Include(rt.ComparableModule); err != nil {
			panic(err)
		}
	}

	rt.ExceptionClass = rt.mustClass("Exception", nil)
	rt.StandardError = rt.mustClass("StandardError", rt.ExceptionClass)
	rt.RuntimeError = rt.mustClass("RuntimeError", rt.StandardError)
	rt.NameError = rt.mustClass("NameError", rt.StandardError)
	rt.NoMethodErrorClass = rt.mustClass("NoMethodError", rt.NameError)
	rt.ArgumentErrorClass = rt.mustClass("ArgumentError", rt.StandardError)
	rt.TypeErrorClass = rt.mustClass("TypeError", rt.StandardError)
	rt.ZeroDivisionError = rt.mustClass("ZeroDivisionError", rt.StandardError)
	rt.RegexpError = rt.mustClass("RegexpError", rt.StandardError)
	rt.LocalJumpError = rt.mustClass("LocalJumpError", rt.StandardError)

	rt.Main = NewObject(rt.ObjectClass)

	rt.installKernel()
	rt.installModule()
	rt.installNumeric()
	rt.installString()
	rt.installCollections()
	rt.installMisc()
}

func (rt *Runtime) mustClass(name string, super *Class) *Class {
	c, err := rt.DefineClass(name, super)
	if err != nil {
		panic(err)
	}
	return c
}

func (rt *Runtime) mustModule(name string) *Class {
	m, err := rt.DefineModule(name)
	if err != nil {
		panic(err)
	}
	return m
}

// Equal implements the default == for builtin values: value equality for
// scalars and strings, identity for everything else.
func (rt *Runtime) Equal(a, b Value) bool {
	switch x := a.(type) {
	case Integer:
		switch y := b.(type) {
		case Integer:
			return x == y
		case Float:
			return Float(x) == y
		}
		return false
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y
		case Integer:
			return x == Float(y)
		}
		return false
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	case *String:
		y, ok := b.(*String)
		return ok && bytes.Equal(x.Bytes, y.Bytes)
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !rt.Equal(x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true
	case nil, NilValue:
		switch b.(type) {
		case nil, NilValue:
			return true
		}
		return false
	}
	return a == b
}

func symbolOrString(v Value) (string, bool) {
	switch x := v.(type) {
	case Symbol:
		return string(x), true
	case *String:
		return x.String(), true
	}
	return "", false
}

func (rt *Runtime) installKernel() {
	k := rt.KernelModule
	rt.defineBuiltin(k, NewNative0("class", func(rt *Runtime, self Value) (Value, error) {
		return rt.ClassOf(self), nil
	}))
	rt.defineBuiltin(k, NewNative1("==", func(rt *Runtime, self, other Value) (Value, error) {
		return Bool(rt.Equal(self, other)), nil
	}))
	rt.defineBuiltin(k, NewNative1("!=", func(rt *Runtime, self, other Value) (Value, error) {
		r, err := rt.Send(self, "==", other)
		if err != nil {
			return nil, err
		}
		return Bool(!Truthy(r)), nil
	}))
	rt.defineBuiltin(k, NewNative0("nil?", func(rt *Runtime, self Value) (Value, error) {
		return False, nil
	}))
	rt.defineBuiltin(k, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(rt.Inspect(self)), nil
	}))
	rt.defineBuiltin(k, NewNative0("inspect", func(rt *Runtime, self Value) (Value, error) {
		return NewString(rt.Inspect(self)), nil
	}))
	rt.defineBuiltin(k, NewNative0("frozen?", func(rt *Runtime, self Value) (Value, error) {
		switch self.(type) {
		case Integer, Float, Symbol, Bool, NilValue:
			return True, nil
		}
		return False, nil
	}))
	rt.defineBuiltin(k, NewNative1("respond_to?", func(rt *Runtime, self, name Value) (Value, error) {
		n, ok := symbolOrString(name)
		if !ok {
			return nil, rt.TypeError(name, "Symbol")
		}
		e := rt.ClassOf(self).FindMethod(n)
		return Bool(e.Found() && e.Visibility == Public), nil
	}))
	rt.defineBuiltin(k, NewNative1("is_a?", func(rt *Runtime, self, mod Value) (Value, error) {
		c, ok := mod.(*Class)
		if !ok {
			return nil, rt.NewError(rt.TypeErrorClass, "class or module required")
		}
		return Bool(rt.ClassOf(self).IsSubclassOf(c)), nil
	}))
	rt.defineBuiltin(k, NewNativeMethod("send", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if len(args) == 0 {
			return nil, rt.NewError(rt.ArgumentErrorClass, "no method name given")
		}
		n, ok := symbolOrString(args[0])
		if !ok {
			return nil, rt.TypeError(args[0], "Symbol")
		}
		e := rt.ClassOf(self).FindMethod(n)
		if !e.Found() {
			return nil, rt.NoMethodError(n, self)
		}
		return e.Method.Invoke(rt, self, args[1:], block)
	}))
	rt.defineBuiltin(k, NewNative1("method", func(rt *Runtime, self, name Value) (Value, error) {
		n, ok := symbolOrString(name)
		if !ok {
			return nil, rt.TypeError(name, "Symbol")
		}
		e := rt.ClassOf(self).FindMethod(n)
		if !e.Found() {
			return nil, rt.NewError(rt.NameError, "undefined method '%s' for %s", n, rt.describe(self))
		}
		return &BoundMethod{Receiver: self, Name: n, Entry: e}, nil
	}))
	rt.defineBuiltin(k, NewNativeMethod("puts", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		if len(args) == 0 {
			_, err := rt.out.Write([]byte("\n"))
			return Nil, err
		}
		for _, a := range args {
			s, err := rt.ToS(a)
			if err != nil {
				return nil, err
			}
			line := s.Bytes
			if !bytes.HasSuffix(line, []byte("\n")) {
				line = append(append([]byte{}, line...), '\n')
			}
			if _, err := rt.out.Write(line); err != nil {
				return nil, err
			}
		}
		return Nil, nil
	}))
	rt.defineBuiltin(k, NewNativeMethod("raise", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		switch len(args) {
		case 0:
			return nil, rt.NewError(rt.RuntimeError, "unhandled exception")
		case 1:
			switch x := args[0].(type) {
			case *String:
				return nil, rt.NewError(rt.RuntimeError, "%s", x.String())
			case *Exception:
				return nil, &RaiseError{Exception: x}
			case *Class:
				return nil, rt.NewError(x, "%s", x.Name)
			}
		case 2:
			c, ok := args[0].(*Class)
			if !ok {
				return nil, rt.NewError(rt.TypeErrorClass, "exception class expected")
			}
			msg, err := rt.ToS(args[1])
			if err != nil {
				return nil, err
			}
			return nil, rt.NewError(c, "%s", msg.String())
		}
		return nil, rt.NewError(rt.TypeErrorClass, "exception class/object expected")
	}))
	// `cmd` runs cmd through the shell and returns its standard output.
	rt.defineBuiltin(k, NewNative1("`", func(rt *Runtime, self, cmd Value) (Value, error) {
		s, ok := cmd.(*String)
		if !ok {
			return nil, rt.TypeError(cmd, "String")
		}
		out, err := exec.CommandContext(context.Background(), "sh", "-c", s.String()).Output()
		if err != nil {
			if _, exited := err.(*exec.ExitError); !exited {
				return nil, rt.NewError(rt.RuntimeError, "%s", err)
			}
		}
		rt.SetGlobal("$?", Integer(exitCode(err)))
		return NewString(string(out)), nil
	}))
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 0
}

func (rt *Runtime) installModule() {
	m := rt.ModuleClass
	rt.defineBuiltin(m, NewNative0("name", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*Class).Name), nil
	}))
	rt.defineBuiltin(m, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*Class).Name), nil
	}))
	rt.defineBuiltin(m, NewNative0("ancestors", func(rt *Runtime, self Value) (Value, error) {
		var out []Value
		for _, a := range self.(*Class).Ancestors() {
			out = append(out, a)
		}
		return NewArray(out...), nil
	}))
	rt.defineBuiltin(m, NewNative1("include", func(rt *Runtime, self, mod Value) (Value, error) {
		target, ok := mod.(*Class)
		if !ok {
			return nil, rt.TypeError(mod, "Module")
		}
		if err := self.(*Class).Include(target); err != nil {
			if target.IsModule {
				return nil, rt.NewError(rt.ArgumentErrorClass, "%s", err)
			}
			return nil, rt.NewError(rt.TypeErrorClass, "%s", err)
		}
		return self, nil
	}))
	rt.defineBuiltin(m, NewNative1("method_defined?", func(rt *Runtime, self, name Value) (Value, error) {
		n, ok := symbolOrString(name)
		if !ok {
			return nil, rt.TypeError(name, "Symbol")
		}
		return Bool(self.(*Class).FindMethod(n).Found()), nil
	}))
	rt.defineBuiltin(m, NewNative1("remove_method", func(rt *Runtime, self, name Value) (Value, error) {
		n, ok := symbolOrString(name)
		if !ok {
			return nil, rt.TypeError(name, "Symbol")
		}
		if err := self.(*Class).RemoveMethod(n); err != nil {
			return nil, rt.NewError(rt.NameError, "%s", err)
		}
		return self, nil
	}))
	rt.defineBuiltin(m, NewNative1("undef_method", func(rt *Runtime, self, name Value) (Value, error) {
		n, ok := symbolOrString(name)
		if !ok {
			return nil, rt.TypeError(name, "Symbol")
		}
		if err := self.(*Class).UndefineMethod(n); err != nil {
			return nil, rt.NewError(rt.NameError, "%s", err)
		}
		return self, nil
	}))
	for _, vis := range []Visibility{Public, Private, Protected} {
		vis := vis
		rt.defineBuiltin(m, NewNativeMethod(vis.String(), func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
			for _, a := range args {
				n, ok := symbolOrString(a)
				if !ok {
					return nil, rt.TypeError(a, "Symbol")
				}
				if err := self.(*Class).SetVisibility(n, vis); err != nil {
					return nil, rt.NewError(rt.NameError, "%s", err)
				}
			}
			return Nil, nil
		}))
	}

	c := rt.ClassClass
	rt.defineBuiltin(c, NewNativeMethod("new", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		class := self.(*Class)
		if class.IsSubclassOf(rt.ExceptionClass) {
			msg := class.Name
			if len(args) > 0 {
				s, err := rt.ToS(args[0])
				if err != nil {
					return nil, err
				}
				msg = s.String()
			}
			return rt.NewException(class, "%s", msg), nil
		}
		obj := NewObject(class)
		if e := class.FindMethod("initialize"); e.Found() {
			if a := e.Method.Arity(); a >= 0 && a != len(args) {
				return nil, rt.ArgumentError(len(args), a)
			}
			if _, err := e.Method.Invoke(rt, obj, args, block); err != nil {
				return nil, err
			}
		} else if len(args) > 0 {
			return nil, rt.ArgumentError(len(args), 0)
		}
		return obj, nil
	}))
	rt.defineBuiltin(c, NewNative0("superclass", func(rt *Runtime, self Value) (Value, error) {
		if s := self.(*Class).Superclass; s != nil {
			return s, nil
		}
		return Nil, nil
	}))
}

func (rt *Runtime) installNumeric() {
	for _, op := range []string{"+", "-", "*", "/", "%"} {
		op := op
		rt.defineBuiltin(rt.IntegerClass, NewNative1(op, func(rt *Runtime, self, other Value) (Value, error) {
			return rt.integerArith(op, self, other)
		}))
		rt.defineBuiltin(rt.FloatClass, NewNative1(op, func(rt *Runtime, self, other Value) (Value, error) {
			return rt.floatArith(op, self, other)
		}))
	}
	cmps := map[string]func(int) bool{
		"<":  func(c int) bool { return c < 0 },
		">":  func(c int) bool { return c > 0 },
		"<=": func(c int) bool { return c <= 0 },
		">=": func(c int) bool { return c >= 0 },
	}
	for op, test := range cmps {
		op, test := op, test
		rt.defineBuiltin(rt.NumericClass, NewNative1(op, func(rt *Runtime, self, other Value) (Value, error) {
			c, err := rt.compare(self, other)
			if err != nil {
				return nil, err
			}
			return Bool(test(c)), nil
		}))
	}
	rt.defineBuiltin(rt.NumericClass, NewNative1("<=>", func(rt *Runtime, self, other Value) (Value, error) {
		c, err := rt.compare(self, other)
		if err != nil {
			return Nil, nil
		}
		return Integer(c), nil
	}))
	rt.defineBuiltin(rt.NumericClass, NewNative0("-@", func(rt *Runtime, self Value) (Value, error) {
		return rt.Send(Integer(0), "-", self)
	}))
	rt.defineBuiltin(rt.IntegerClass, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(rt.Inspect(self)), nil
	}))
	rt.defineBuiltin(rt.IntegerClass, NewNative0("to_i", func(rt *Runtime, self Value) (Value, error) {
		return self, nil
	}))
	rt.defineBuiltin(rt.IntegerClass, NewNative0("to_f", func(rt *Runtime, self Value) (Value, error) {
		f, _ := toFloat(self)
		return Float(f), nil
	}))
	rt.defineBuiltin(rt.FloatClass, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(formatFloat(float64(self.(Float)))), nil
	}))
	rt.defineBuiltin(rt.FloatClass, NewNative0("to_f", func(rt *Runtime, self Value) (Value, error) {
		return self, nil
	}))
	rt.defineBuiltin(rt.FloatClass, NewNative0("to_i", func(rt *Runtime, self Value) (Value, error) {
		f := float64(self.(Float))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, rt.NewError(rt.RuntimeError, "cannot convert %s to Integer", formatFloat(f))
		}
		i, _ := big.NewFloat(f).Int(nil)
		return NormalizeBig(i), nil
	}))
}

func (rt *Runtime) installString() {
	s := rt.StringClass
	rt.defineBuiltin(s, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return self, nil
	}))
	rt.defineBuiltin(s, NewNative0("to_sym", func(rt *Runtime, self Value) (Value, error) {
		return Symbol(self.(*String).String()), nil
	}))
	rt.defineBuiltin(s, NewNative0("length", func(rt *Runtime, self Value) (Value, error) {
		return Integer(len([]rune(self.(*String).String()))), nil
	}))
	rt.defineBuiltin(s, NewNative0("bytesize", func(rt *Runtime, self Value) (Value, error) {
		return Integer(len(self.(*String).Bytes)), nil
	}))
	rt.defineBuiltin(s, NewNative0("encoding", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*String).Encoding), nil
	}))
	rt.defineBuiltin(s, NewNative1("+", func(rt *Runtime, self, other Value) (Value, error) {
		o, ok := other.(*String)
		if !ok {
			return nil, rt.TypeError(other, "String")
		}
		a := self.(*String)
		b := make([]byte, 0, len(a.Bytes)+len(o.Bytes))
		b = append(append(b, a.Bytes...), o.Bytes...)
		return &String{Bytes: b, Encoding: a.Encoding}, nil
	}))
	rt.defineBuiltin(s, NewNative1("*", func(rt *Runtime, self, n Value) (Value, error) {
		count, ok := n.(Integer)
		if !ok {
			return nil, rt.TypeError(n, "Integer")
		}
		if count < 0 {
			return nil, rt.NewError(rt.ArgumentErrorClass, "negative argument")
		}
		a := self.(*String)
		return &String{Bytes: bytes.Repeat(a.Bytes, int(count)), Encoding: a.Encoding}, nil
	}))
	rt.defineBuiltin(s, NewNative1("<=>", func(rt *Runtime, self, other Value) (Value, error) {
		o, ok := other.(*String)
		if !ok {
			return Nil, nil
		}
		return Integer(bytes.Compare(self.(*String).Bytes, o.Bytes)), nil
	}))
	rt.defineBuiltin(s, NewNative0("upcase", func(rt *Runtime, self Value) (Value, error) {
		a := self.(*String)
		return &String{Bytes: []byte(strings.ToUpper(a.String())), Encoding: a.Encoding}, nil
	}))
	rt.defineBuiltin(s, NewNative0("inspect", func(rt *Runtime, self Value) (Value, error) {
		return NewString(strconv.Quote(self.(*String).String())), nil
	}))
	rt.defineBuiltin(s, NewNative1("match", func(rt *Runtime, self, re Value) (Value, error) {
		r, ok := re.(*Regexp)
		if !ok {
			return nil, rt.TypeError(re, "Regexp")
		}
		if md := r.Match(self.(*String).String()); md != nil {
			return md, nil
		}
		return Nil, nil
	}))

	rt.defineBuiltin(rt.SymbolClass, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(string(self.(Symbol))), nil
	}))
	rt.defineBuiltin(rt.SymbolClass, NewNative0("to_sym", func(rt *Runtime, self Value) (Value, error) {
		return self, nil
	}))
}

func (rt *Runtime) installCollections() {
	a := rt.ArrayClass
	rt.defineBuiltin(a, NewNative1("[]", func(rt *Runtime, self, idx Value) (Value, error) {
		i, ok := idx.(Integer)
		if !ok {
			return nil, rt.TypeError(idx, "Integer")
		}
		elems := self.(*Array).Elems
		if i < 0 {
			i += Integer(len(elems))
		}
		if i < 0 || int(i) >= len(elems) {
			return Nil, nil
		}
		return elems[i], nil
	}))
	rt.defineBuiltin(a, NewNative2("[]=", func(rt *Runtime, self, idx, val Value) (Value, error) {
		i, ok := idx.(Integer)
		if !ok {
			return nil, rt.TypeError(idx, "Integer")
		}
		arr := self.(*Array)
		if i < 0 {
			i += Integer(len(arr.Elems))
			if i < 0 {
				return nil, rt.NewError(rt.NameError, "index %d too small for array", i-Integer(len(arr.Elems)))
			}
		}
		for int(i) >= len(arr.Elems) {
			arr.Elems = append(arr.Elems, Nil)
		}
		arr.Elems[i] = val
		return val, nil
	}))
	size := func(rt *Runtime, self Value) (Value, error) {
		return Integer(len(self.(*Array).Elems)), nil
	}
	rt.defineBuiltin(a, NewNative0("size", size))
	rt.defineBuiltin(a, NewNative0("length", size))
	rt.defineBuiltin(a, NewNative0("first", func(rt *Runtime, self Value) (Value, error) {
		if e := self.(*Array).Elems; len(e) > 0 {
			return e[0], nil
		}
		return Nil, nil
	}))
	rt.defineBuiltin(a, NewNative0("last", func(rt *Runtime, self Value) (Value, error) {
		if e := self.(*Array).Elems; len(e) > 0 {
			return e[len(e)-1], nil
		}
		return Nil, nil
	}))
	rt.defineBuiltin(a, NewNative0("to_a", func(rt *Runtime, self Value) (Value, error) {
		return self, nil
	}))
	rt.defineBuiltin(a, NewNative1("+", func(rt *Runtime, self, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return nil, rt.TypeError(other, "Array")
		}
		x := self.(*Array).Elems
		out := make([]Value, 0, len(x)+len(o.Elems))
		return NewArray(append(append(out, x...), o.Elems...)...), nil
	}))
	rt.defineBuiltin(a, NewNative1("<<", func(rt *Runtime, self, v Value) (Value, error) {
		arr := self.(*Array)
		arr.Elems = append(arr.Elems, v)
		return arr, nil
	}))
	rt.defineBuiltin(a, NewNativeMethod("each", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		p, ok := block.(*Proc)
		if !ok {
			return nil, rt.NewError(rt.LocalJumpError, "no block given (yield)")
		}
		for _, e := range self.(*Array).Elems {
			if _, err := p.Call(e); err != nil {
				return nil, err
			}
		}
		return self, nil
	}))
	rt.defineBuiltin(a, NewNativeMethod("map", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		p, ok := block.(*Proc)
		if !ok {
			return nil, rt.NewError(rt.LocalJumpError, "no block given (yield)")
		}
		elems := self.(*Array).Elems
		out := make([]Value, len(elems))
		for i, e := range elems {
			r, err := p.Call(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return NewArray(out...), nil
	}))
	rt.defineBuiltin(a, NewNative1("join", func(rt *Runtime, self, sep Value) (Value, error) {
		sp, ok := sep.(*String)
		if !ok {
			return nil, rt.TypeError(sep, "String")
		}
		var parts []string
		for _, e := range self.(*Array).Elems {
			s, err := rt.ToS(e)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s.String())
		}
		return NewString(strings.Join(parts, sp.String())), nil
	}))

	h := rt.HashClass
	rt.defineBuiltin(h, NewNative1("[]", func(rt *Runtime, self, key Value) (Value, error) {
		if v, ok := self.(*Hash).Get(key); ok {
			return v, nil
		}
		return Nil, nil
	}))
	rt.defineBuiltin(h, NewNative2("[]=", func(rt *Runtime, self, key, val Value) (Value, error) {
		self.(*Hash).Put(key, val)
		return val, nil
	}))
	rt.defineBuiltin(h, NewNative0("size", func(rt *Runtime, self Value) (Value, error) {
		return Integer(self.(*Hash).Len()), nil
	}))
	rt.defineBuiltin(h, NewNative0("keys", func(rt *Runtime, self Value) (Value, error) {
		var keys []Value
		self.(*Hash).Each(func(k, _ Value) { keys = append(keys, k) })
		return NewArray(keys...), nil
	}))

	r := rt.RangeClass
	rt.defineBuiltin(r, NewNative0("first", func(rt *Runtime, self Value) (Value, error) {
		return self.(*Range).Begin, nil
	}))
	rt.defineBuiltin(r, NewNative0("last", func(rt *Runtime, self Value) (Value, error) {
		return self.(*Range).End, nil
	}))
	rt.defineBuiltin(r, NewNative0("exclude_end?", func(rt *Runtime, self Value) (Value, error) {
		return Bool(self.(*Range).Exclusive), nil
	}))
	rt.defineBuiltin(r, NewNative0("to_a", func(rt *Runtime, self Value) (Value, error) {
		rg := self.(*Range)
		lo, ok1 := rg.Begin.(Integer)
		hi, ok2 := rg.End.(Integer)
		if !ok1 || !ok2 {
			return nil, rt.NewError(rt.TypeErrorClass, "can't iterate from %s", rt.ClassOf(rg.Begin).Name)
		}
		if rg.Exclusive {
			hi--
		}
		var out []Value
		for i := lo; i <= hi; i++ {
			out = append(out, i)
		}
		return NewArray(out...), nil
	}))
}

func (rt *Runtime) installMisc() {
	rt.defineBuiltin(rt.NilClass, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(""), nil
	}))
	rt.defineBuiltin(rt.NilClass, NewNative0("nil?", func(rt *Runtime, self Value) (Value, error) {
		return True, nil
	}))
	rt.defineBuiltin(rt.NilClass, NewNative0("to_a", func(rt *Runtime, self Value) (Value, error) {
		return NewArray(), nil
	}))

	rt.defineBuiltin(rt.ProcClass, NewNativeMethod("call", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		return self.(*Proc).Call(args...)
	}))
	rt.defineBuiltin(rt.ProcClass, NewNative0("arity", func(rt *Runtime, self Value) (Value, error) {
		return Integer(self.(*Proc).Arity), nil
	}))

	m := rt.MethodClass
	rt.defineBuiltin(m, NewNativeMethod("call", func(rt *Runtime, self Value, args []Value, block Value) (Value, error) {
		b := self.(*BoundMethod)
		if !b.Found() {
			return nil, rt.NoMethodError(b.Name, b.Receiver)
		}
		if a := b.Entry.Method.Arity(); a >= 0 && a != len(args) {
			return nil, rt.ArgumentError(len(args), a)
		}
		return b.Entry.Method.Invoke(rt, b.Receiver, args, block)
	}))
	rt.defineBuiltin(m, NewNative0("name", func(rt *Runtime, self Value) (Value, error) {
		return Symbol(self.(*BoundMethod).Name), nil
	}))
	rt.defineBuiltin(m, NewNative0("owner", func(rt *Runtime, self Value) (Value, error) {
		if b := self.(*BoundMethod); b.Found() {
			return b.Entry.Owner, nil
		}
		return Nil, nil
	}))
	rt.defineBuiltin(m, NewNative0("receiver", func(rt *Runtime, self Value) (Value, error) {
		return self.(*BoundMethod).Receiver, nil
	}))

	rt.defineBuiltin(rt.RegexpClass, NewNative1("match", func(rt *Runtime, self, subject Value) (Value, error) {
		s, ok := subject.(*String)
		if !ok {
			return nil, rt.TypeError(subject, "String")
		}
		if md := self.(*Regexp).Match(s.String()); md != nil {
			return md, nil
		}
		return Nil, nil
	}))
	rt.defineBuiltin(rt.RegexpClass, NewNative0("source", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*Regexp).Source), nil
	}))

	md := rt.MatchDataClass
	rt.defineBuiltin(md, NewNative1("[]", func(rt *Runtime, self, n Value) (Value, error) {
		i, ok := n.(Integer)
		if !ok {
			return nil, rt.TypeError(n, "Integer")
		}
		return self.(*MatchData).Group(int(i)), nil
	}))
	rt.defineBuiltin(md, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return self.(*MatchData).Group(0), nil
	}))
	rt.defineBuiltin(md, NewNative0("pre_match", func(rt *Runtime, self Value) (Value, error) {
		return self.(*MatchData).PreMatch(), nil
	}))
	rt.defineBuiltin(md, NewNative0("post_match", func(rt *Runtime, self Value) (Value, error) {
		return self.(*MatchData).PostMatch(), nil
	}))

	e := rt.ExceptionClass
	rt.defineBuiltin(e, NewNative0("message", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*Exception).Message), nil
	}))
	rt.defineBuiltin(e, NewNative0("to_s", func(rt *Runtime, self Value) (Value, error) {
		return NewString(self.(*Exception).Message), nil
	}))
}
