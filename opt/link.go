package opt

import (
	"fmt"

	"github.com/chazu/garnet/ir"
)

// Linked is a scope's instruction stream with every label resolved to a
// program counter. Label instructions are dropped; a label's PC is the
// index of the instruction that follows it. A Linked value is never
// modified after Link returns.
type Linked struct {
	Scope  *ir.Scope
	Instrs []ir.Instr
	pcs    map[*ir.Label]int
}

// Link resolves the labels of s. Every jump target must be defined
// exactly once.
func Link(s *ir.Scope) (*Linked, error) {
	l := &Linked{Scope: s, pcs: make(map[*ir.Label]int)}
	for _, instr := range s.Instrs {
		if li, ok := instr.(*ir.LabelInstr); ok {
			if _, dup := l.pcs[li.Label]; dup {
				return nil, fmt.Errorf("%s: label %s defined twice", s, li.Label)
			}
			l.pcs[li.Label] = len(l.Instrs)
			continue
		}
		l.Instrs = append(l.Instrs, instr)
	}
	for pc, instr := range l.Instrs {
		if target := jumpTarget(instr); target != nil {
			if _, ok := l.pcs[target]; !ok {
				return nil, fmt.Errorf("%s: instruction %d (%s) jumps to undefined label %s", s, pc, instr, target)
			}
		}
	}
	return l, nil
}

func jumpTarget(instr ir.Instr) *ir.Label {
	switch i := instr.(type) {
	case *ir.Jump:
		return i.Target
	case *ir.Branch:
		return i.Target
	case *ir.GuardMethod:
		return i.Else
	}
	return nil
}

// PC returns the program counter of label.
func (l *Linked) PC(label *ir.Label) (int, bool) {
	pc, ok := l.pcs[label]
	return pc, ok
}

// Target returns the program counter of a jump target. Link has checked
// that every target exists.
func (l *Linked) Target(label *ir.Label) int {
	return l.pcs[label]
}

// Len is the number of executable instructions.
func (l *Linked) Len() int { return len(l.Instrs) }
