package ir

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/garnet/runtime"
)

// ResolutionState is the progress of one MethodHandle resolution.
type ResolutionState uint8

const (
	Unresolved ResolutionState = iota
	NameResolved
	MethodResolved
)

func (s ResolutionState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case NameResolved:
		return "name-resolved"
	case MethodResolved:
		return "method-resolved"
	}
	return "unknown"
}

// Resolution is the per-activation state of a MethodHandle. Each
// activation derives its own; only the call-site cache is shared.
type Resolution struct {
	State    ResolutionState
	Receiver runtime.Value
	Class    *runtime.Class
	Name     string
	Entry    *runtime.CacheEntry // Entry.Method is nil when the name is not defined
}

// Found reports whether the resolved entry holds a method.
func (r *Resolution) Found() bool { return r.Entry.Found() }

// MethodHandle binds a receiver operand and a method name operand. The
// name is a MethAddr when statically known and any string- or
// symbol-producing operand otherwise.
type MethodHandle struct {
	owned
	Receiver Operand
	Name     Operand

	once     sync.Once
	cache    runtime.MethodCache
	lastName atomic.Pointer[string]
}

// NewMethodHandle creates a handle.
func NewMethodHandle(receiver, name Operand) *MethodHandle {
	return &MethodHandle{Receiver: receiver, Name: name}
}

func (h *MethodHandle) Kind() OperandKind                              { return KindMethodHandle }
func (h *MethodHandle) IsConstant() bool                               { return false }
func (h *MethodHandle) IsNonAtomicValue() bool                         { return false }
func (h *MethodHandle) FetchCompileTimeArrayElement(int, bool) Operand { return nil }
func (h *MethodHandle) operand()                                       {}

// Simplify rewrites the receiver and name in place. The call-site cache
// is keyed by runtime class and selector, so it stays valid.
func (h *MethodHandle) Simplify(vm ValueMap) Operand {
	h.Receiver = h.Receiver.Simplify(vm)
	h.Name = h.Name.Simplify(vm)
	return h
}

func (h *MethodHandle) AddUsedVariables(vars []Variable) []Variable {
	return usedVariables(vars, h.Receiver, h.Name)
}

// CloneForInlining gives the copy its own call-site cache.
func (h *MethodHandle) CloneForInlining(ii InlinerInfo) Operand {
	return NewMethodHandle(h.Receiver.CloneForInlining(ii), h.Name.CloneForInlining(ii))
}

// StaticName returns the method name when it is known at compile time.
func (h *MethodHandle) StaticName() (string, bool) {
	switch n := h.Name.(type) {
	case *MethAddr:
		return n.Name, true
	case *Symbol:
		return n.Name, true
	case *StringLiteral:
		return n.Text(), true
	}
	return "", false
}

// Cache returns the handle's call-site cache, creating it on first use
// with the runtime's configured cache kind.
func (h *MethodHandle) Cache(rt *runtime.Runtime) runtime.MethodCache {
	h.once.Do(func() {
		h.cache = rt.NewMethodCache()
	})
	return h.cache
}

// ResolveName evaluates the receiver and the method name. A dynamic name
// that differs from the last one seen drops the cached entry.
func (h *MethodHandle) ResolveName(ctx Context) (*Resolution, error) {
	recv, err := h.Receiver.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	r := &Resolution{State: Unresolved, Receiver: recv}

	if m, ok := h.Name.(*MethAddr); ok {
		r.Name = m.Name
		r.State = NameResolved
		return r, nil
	}
	v, err := h.Name.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case *runtime.String:
		r.Name = n.String()
	case runtime.Symbol:
		r.Name = string(n)
	default:
		panic(&InternalError{
			Operand: h,
			Instr:   -1,
			Reason:  fmt.Sprintf("method name evaluated to %s, want String or Symbol", ctx.Runtime().ClassOf(v).Name),
		})
	}
	if prev := h.lastName.Swap(&r.Name); prev != nil && *prev != r.Name {
		h.Cache(ctx.Runtime()).Reset()
	}
	r.State = NameResolved
	return r, nil
}

// ResolveMethod completes r against the receiver's class. A cached entry
// whose class and generation still match is reused without a lookup; a
// miss performs exactly one full lookup. A missing method is recorded in
// r, not reported as an error.
func (h *MethodHandle) ResolveMethod(rt *runtime.Runtime, r *Resolution) {
	if r.State != NameResolved {
		Internal(h, "resolve method in state %s", r.State)
	}
	r.Class = rt.ClassOf(r.Receiver)
	sel := rt.Selectors.Intern(r.Name)
	r.Entry = h.Cache(rt).Find(r.Class, sel)
	r.State = MethodResolved
}

// Resolve runs both resolution steps.
func (h *MethodHandle) Resolve(ctx Context) (*Resolution, error) {
	r, err := h.ResolveName(ctx)
	if err != nil {
		return nil, err
	}
	h.ResolveMethod(ctx.Runtime(), r)
	return r, nil
}

// Retrieve resolves the handle to a bound method value.
func (h *MethodHandle) Retrieve(ctx Context) (runtime.Value, error) {
	r, err := h.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return &runtime.BoundMethod{Receiver: r.Receiver, Name: r.Name, Entry: r.Entry}, nil
}

func (h *MethodHandle) String() string {
	return fmt.Sprintf("%s.%s", h.Receiver, h.Name)
}
