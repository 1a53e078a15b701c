package ir

import (
	"github.com/chazu/garnet/runtime"
)

// OperandKind tags every concrete operand type.
type OperandKind uint8

const (
	KindFixnum OperandKind = iota
	KindBignum
	KindFloat
	KindString
	KindSymbol
	KindBoolean
	KindNil
	KindUndefined
	KindUnexecutableNil

	KindArray
	KindHash
	KindCompoundString
	KindBacktickString
	KindRange
	KindRegexp
	KindDynamicSymbol
	KindDynamicReference

	KindLocalVariable
	KindClosureLocalVariable
	KindTemporaryVariable
	KindTemporaryClosureVariable
	KindRenamedVariable
	KindGlobalVariable
	KindSelf

	KindClassMetaObject
	KindModuleMetaObject
	KindMethodMetaObject
	KindClosureMetaObject

	KindArgIndex
	KindSplat
	KindCompoundArray
	KindSValue
	KindBreakResult
	KindMethAddr
	KindMethodHandle
	KindLabel
	KindBackref
	KindNthRef
	KindStandardError
	KindIRException

	KindLattice
)

var kindNames = [...]string{
	KindFixnum:                   "Fixnum",
	KindBignum:                   "Bignum",
	KindFloat:                    "Float",
	KindString:                   "StringLiteral",
	KindSymbol:                   "Symbol",
	KindBoolean:                  "Boolean",
	KindNil:                      "Nil",
	KindUndefined:                "UndefinedValue",
	KindUnexecutableNil:          "UnexecutableNil",
	KindArray:                    "Array",
	KindHash:                     "Hash",
	KindCompoundString:           "CompoundString",
	KindBacktickString:           "BacktickString",
	KindRange:                    "Range",
	KindRegexp:                   "Regexp",
	KindDynamicSymbol:            "DynamicSymbol",
	KindDynamicReference:         "DynamicReference",
	KindLocalVariable:            "LocalVariable",
	KindClosureLocalVariable:     "ClosureLocalVariable",
	KindTemporaryVariable:        "TemporaryVariable",
	KindTemporaryClosureVariable: "TemporaryClosureVariable",
	KindRenamedVariable:          "RenamedVariable",
	KindGlobalVariable:           "GlobalVariable",
	KindSelf:                     "Self",
	KindClassMetaObject:          "ClassMetaObject",
	KindModuleMetaObject:         "ModuleMetaObject",
	KindMethodMetaObject:         "MethodMetaObject",
	KindClosureMetaObject:        "ClosureMetaObject",
	KindArgIndex:                 "ArgIndex",
	KindSplat:                    "Splat",
	KindCompoundArray:            "CompoundArray",
	KindSValue:                   "SValue",
	KindBreakResult:              "BreakResult",
	KindMethAddr:                 "MethAddr",
	KindMethodHandle:             "MethodHandle",
	KindLabel:                    "Label",
	KindBackref:                  "Backref",
	KindNthRef:                   "NthRef",
	KindStandardError:            "StandardError",
	KindIRException:              "IRException",
	KindLattice:                  "Lattice",
}

func (k OperandKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Operand is the interface implemented by every IR operand. The set of
// implementations is closed; the marker method keeps other packages from
// adding variants.
type Operand interface {
	Kind() OperandKind

	// IsConstant reports whether the value is fully known at compile time
	// and evaluating it has no side effects.
	IsConstant() bool

	// IsNonAtomicValue reports whether identity matters: a freshly built
	// composite must not be treated as interchangeable with an equal one.
	IsNonAtomicValue() bool

	// Simplify rewrites the operand against vm, children first. Composites
	// update their children in place and return themselves unless they
	// fold into a simpler operand.
	Simplify(vm ValueMap) Operand

	// FetchCompileTimeArrayElement returns element index (or the tail from
	// index when wantSubArray is set) of an array whose structure is known
	// at compile time, Nil when index is past the end, and nil when the
	// structure is unknown. Callers must first rule out a redefined
	// element accessor.
	FetchCompileTimeArrayElement(index int, wantSubArray bool) Operand

	// AddUsedVariables appends every variable this operand reads.
	AddUsedVariables(vars []Variable) []Variable

	// CloneForInlining copies the operand for splicing into another scope.
	CloneForInlining(ii InlinerInfo) Operand

	// Retrieve produces the runtime value.
	Retrieve(ctx Context) (runtime.Value, error)

	String() string

	operand() // marker method
}

// ValueMap maps variables to the operand currently known to be their value.
type ValueMap map[Variable]Operand

// Context is what operands need from the evaluation engine.
type Context interface {
	Runtime() *runtime.Runtime
	Self() runtime.Value
	Load(v Variable) (runtime.Value, error)
	Arg(i int) runtime.Value
	CurrentModule() *runtime.Class
	// ResolveScope returns the live object for a compile-time scope: the
	// class or module for class and module scopes, the method name symbol
	// for method scopes, a closure for closure scopes.
	ResolveScope(s *Scope) (runtime.Value, error)
	LastMatch() *runtime.MatchData
}

// InlinerInfo remaps callee operands into the caller's scope.
type InlinerInfo interface {
	// RenameVariable returns the caller-side operand for a callee variable,
	// including Self.
	RenameVariable(v Variable) Operand
	// RenameLabel returns the relocated label.
	RenameLabel(l *Label) *Label
	// CallArg returns the caller operand passed at position i, or nil.
	CallArg(i int) Operand
}

// base carries the defaults shared by atomic operands.
type base struct{}

func (base) IsNonAtomicValue() bool                         { return false }
func (base) FetchCompileTimeArrayElement(int, bool) Operand { return nil }
func (base) AddUsedVariables(vars []Variable) []Variable    { return vars }
func (base) operand()                                       {}

func simplifyAll(ops []Operand, vm ValueMap) {
	for i, op := range ops {
		ops[i] = op.Simplify(vm)
	}
}

func allConstant(ops []Operand) bool {
	for _, op := range ops {
		if !op.IsConstant() {
			return false
		}
	}
	return true
}

func usedVariables(vars []Variable, ops ...Operand) []Variable {
	for _, op := range ops {
		vars = op.AddUsedVariables(vars)
	}
	return vars
}

func cloneAll(ops []Operand, ii InlinerInfo) []Operand {
	out := make([]Operand, len(ops))
	for i, op := range ops {
		out[i] = op.CloneForInlining(ii)
	}
	return out
}

// RetrieveArgs evaluates an argument list, expanding splats in place.
func RetrieveArgs(ctx Context, ops []Operand) ([]runtime.Value, error) {
	out := make([]runtime.Value, 0, len(ops))
	for _, op := range ops {
		v, err := op.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := op.(*Splat); ok {
			out = append(out, v.(*runtime.Array).Elems...)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
