package ir

import (
	"fmt"
	"strings"
)

// InternalError reports an IR consistency violation: a defect in whatever
// produced the IR, never a user program error. It is raised with panic
// and must not be converted into a language-level exception.
type InternalError struct {
	Operand Operand
	Scope   *Scope
	Instr   int // instruction index, -1 when unknown
	Reason  string
}

func (e *InternalError) Error() string {
	var sb strings.Builder
	sb.WriteString("internal error: ")
	sb.WriteString(e.Reason)
	if e.Operand != nil {
		fmt.Fprintf(&sb, " [operand %s %s]", e.Operand.Kind(), e.Operand)
	}
	if e.Scope != nil {
		fmt.Fprintf(&sb, " [scope %s %s]", e.Scope.Name, e.Scope.ID)
	}
	if e.Instr >= 0 {
		fmt.Fprintf(&sb, " [instr %d]", e.Instr)
	}
	return sb.String()
}

// Internal panics with an InternalError about op.
func Internal(op Operand, format string, args ...any) {
	panic(&InternalError{Operand: op, Instr: -1, Reason: fmt.Sprintf(format, args...)})
}

// AsInternalError extracts an InternalError from a recovered panic value.
func AsInternalError(r any) (*InternalError, bool) {
	ie, ok := r.(*InternalError)
	return ie, ok
}
