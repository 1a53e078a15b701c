package ir

import (
	"fmt"

	"github.com/chazu/garnet/runtime"
)

// Variable is a mutable storage location.
type Variable interface {
	Operand
	Name() string
	variable() // marker method
}

// LocalSlot is implemented by variables stored in a frame's local slots.
// Depth counts lexical scopes outward from the scope using the variable.
type LocalSlot interface {
	Variable
	Depth() int
	Offset() int
}

// TempSlot is implemented by variables stored in a frame's temporary slots.
type TempSlot interface {
	Variable
	Slot() int
}

func lookupVar(v Variable, vm ValueMap) Operand {
	if val, ok := vm[v]; ok {
		return val
	}
	return v
}

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// LocalVariable is a source-level local variable.
type LocalVariable struct {
	base
	name   string
	depth  int
	offset int
}

func (v *LocalVariable) Name() string { return v.name }
func (v *LocalVariable) Depth() int   { return v.depth }
func (v *LocalVariable) Offset() int  { return v.offset }
func (v *LocalVariable) variable()    {}

func (v *LocalVariable) Kind() OperandKind                           { return KindLocalVariable }
func (v *LocalVariable) IsConstant() bool                            { return false }
func (v *LocalVariable) Simplify(vm ValueMap) Operand                { return lookupVar(v, vm) }
func (v *LocalVariable) AddUsedVariables(vs []Variable) []Variable   { return append(vs, v) }
func (v *LocalVariable) CloneForInlining(ii InlinerInfo) Operand     { return ii.RenameVariable(v) }
func (v *LocalVariable) Retrieve(ctx Context) (runtime.Value, error) { return ctx.Load(v) }

func (v *LocalVariable) String() string {
	if v.depth == 0 {
		return v.name
	}
	return fmt.Sprintf("%s(%d:%d)", v.name, v.depth, v.offset)
}

// ClosureLocalVariable is a local defined inside a closure body.
type ClosureLocalVariable struct {
	base
	name      string
	depth     int
	offset    int
	closureID int
}

func (v *ClosureLocalVariable) Name() string   { return v.name }
func (v *ClosureLocalVariable) Depth() int     { return v.depth }
func (v *ClosureLocalVariable) Offset() int    { return v.offset }
func (v *ClosureLocalVariable) ClosureID() int { return v.closureID }
func (v *ClosureLocalVariable) variable()      {}

func (v *ClosureLocalVariable) Kind() OperandKind                           { return KindClosureLocalVariable }
func (v *ClosureLocalVariable) IsConstant() bool                            { return false }
func (v *ClosureLocalVariable) Simplify(vm ValueMap) Operand                { return lookupVar(v, vm) }
func (v *ClosureLocalVariable) AddUsedVariables(vs []Variable) []Variable   { return append(vs, v) }
func (v *ClosureLocalVariable) CloneForInlining(ii InlinerInfo) Operand     { return ii.RenameVariable(v) }
func (v *ClosureLocalVariable) Retrieve(ctx Context) (runtime.Value, error) { return ctx.Load(v) }

func (v *ClosureLocalVariable) String() string {
	return fmt.Sprintf("%s(cl%d:%d:%d)", v.name, v.closureID, v.depth, v.offset)
}

// ---------------------------------------------------------------------------
// Temporaries
// ---------------------------------------------------------------------------

// TemporaryVariable is a numbered scope-private temporary.
type TemporaryVariable struct {
	base
	index int
}

func (v *TemporaryVariable) Name() string { return fmt.Sprintf("%%v_%d", v.index) }
func (v *TemporaryVariable) Slot() int    { return v.index }
func (v *TemporaryVariable) variable()    {}

func (v *TemporaryVariable) Kind() OperandKind                           { return KindTemporaryVariable }
func (v *TemporaryVariable) IsConstant() bool                            { return false }
func (v *TemporaryVariable) Simplify(vm ValueMap) Operand                { return lookupVar(v, vm) }
func (v *TemporaryVariable) AddUsedVariables(vs []Variable) []Variable   { return append(vs, v) }
func (v *TemporaryVariable) CloneForInlining(ii InlinerInfo) Operand     { return ii.RenameVariable(v) }
func (v *TemporaryVariable) Retrieve(ctx Context) (runtime.Value, error) { return ctx.Load(v) }
func (v *TemporaryVariable) String() string                              { return v.Name() }

// TemporaryClosureVariable is a temporary of a closure body, named after
// the closure it belongs to.
type TemporaryClosureVariable struct {
	base
	closureID int
	index     int
}

func (v *TemporaryClosureVariable) Name() string {
	return fmt.Sprintf("%%cl_%d_%d", v.closureID, v.index)
}
func (v *TemporaryClosureVariable) Slot() int      { return v.index }
func (v *TemporaryClosureVariable) ClosureID() int { return v.closureID }
func (v *TemporaryClosureVariable) variable()      {}

func (v *TemporaryClosureVariable) Kind() OperandKind                         { return KindTemporaryClosureVariable }
func (v *TemporaryClosureVariable) IsConstant() bool                          { return false }
func (v *TemporaryClosureVariable) Simplify(vm ValueMap) Operand              { return lookupVar(v, vm) }
func (v *TemporaryClosureVariable) AddUsedVariables(vs []Variable) []Variable { return append(vs, v) }
func (v *TemporaryClosureVariable) CloneForInlining(ii InlinerInfo) Operand {
	return ii.RenameVariable(v)
}
func (v *TemporaryClosureVariable) String() string { return v.Name() }

func (v *TemporaryClosureVariable) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.Load(v)
}

// RenamedVariable is a temporary with a custom prefix, created when
// callee variables are spliced into a caller.
type RenamedVariable struct {
	base
	prefix string
	index  int
}

func (v *RenamedVariable) Name() string   { return fmt.Sprintf("%s_%d", v.prefix, v.index) }
func (v *RenamedVariable) Prefix() string { return v.prefix }
func (v *RenamedVariable) Slot() int      { return v.index }
func (v *RenamedVariable) variable()      {}

func (v *RenamedVariable) Kind() OperandKind                           { return KindRenamedVariable }
func (v *RenamedVariable) IsConstant() bool                            { return false }
func (v *RenamedVariable) Simplify(vm ValueMap) Operand                { return lookupVar(v, vm) }
func (v *RenamedVariable) AddUsedVariables(vs []Variable) []Variable   { return append(vs, v) }
func (v *RenamedVariable) CloneForInlining(ii InlinerInfo) Operand     { return ii.RenameVariable(v) }
func (v *RenamedVariable) Retrieve(ctx Context) (runtime.Value, error) { return ctx.Load(v) }
func (v *RenamedVariable) String() string                              { return v.Name() }

// ---------------------------------------------------------------------------
// Globals and self
// ---------------------------------------------------------------------------

// GlobalVariable is a process-wide variable such as $stdout. Its value is
// never propagated: any call may change it.
type GlobalVariable struct {
	base
	name string
}

// NewGlobalVariable creates a reference to the global name, including
// its leading '$'.
func NewGlobalVariable(name string) *GlobalVariable { return &GlobalVariable{name: name} }

func (v *GlobalVariable) Name() string { return v.name }
func (v *GlobalVariable) variable()    {}

func (v *GlobalVariable) Kind() OperandKind                         { return KindGlobalVariable }
func (v *GlobalVariable) IsConstant() bool                          { return false }
func (v *GlobalVariable) Simplify(ValueMap) Operand                 { return v }
func (v *GlobalVariable) AddUsedVariables(vs []Variable) []Variable { return append(vs, v) }
func (v *GlobalVariable) CloneForInlining(InlinerInfo) Operand      { return v }
func (v *GlobalVariable) String() string                            { return v.name }

func (v *GlobalVariable) Retrieve(ctx Context) (runtime.Value, error) {
	return ctx.Runtime().Global(v.name), nil
}

// SelfVariable is the receiver of the current activation. Use Self.
type SelfVariable struct{ base }

// Self is the receiver of the current activation.
var Self = &SelfVariable{}

func (v *SelfVariable) Name() string { return "self" }
func (v *SelfVariable) variable()    {}

func (v *SelfVariable) Kind() OperandKind                           { return KindSelf }
func (v *SelfVariable) IsConstant() bool                            { return false }
func (v *SelfVariable) Simplify(vm ValueMap) Operand                { return lookupVar(v, vm) }
func (v *SelfVariable) AddUsedVariables(vs []Variable) []Variable   { return append(vs, v) }
func (v *SelfVariable) CloneForInlining(ii InlinerInfo) Operand     { return ii.RenameVariable(v) }
func (v *SelfVariable) Retrieve(ctx Context) (runtime.Value, error) { return ctx.Self(), nil }
func (v *SelfVariable) String() string                              { return "self" }
