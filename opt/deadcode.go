package opt

import (
	"github.com/chazu/garnet/ir"
)

// DeadCode removes copies into temporaries nobody reads and
// instructions that follow an unconditional jump or return before the
// next label.
type DeadCode struct {
	stats *Stats
}

// NewDeadCode creates the pass.
func NewDeadCode() *DeadCode { return &DeadCode{stats: &Stats{}} }

func (d *DeadCode) Name() string { return "dce" }

func (d *DeadCode) Run(s *ir.Scope) bool {
	changed := d.unreachable(s)
	for d.deadTemps(s) {
		changed = true
	}
	return changed
}

func (d *DeadCode) unreachable(s *ir.Scope) bool {
	out := s.Instrs[:0:0]
	dead := false
	for _, instr := range s.Instrs {
		if _, ok := instr.(*ir.LabelInstr); ok {
			dead = false
		}
		if dead {
			d.stats.Removed++
			continue
		}
		out = append(out, instr)
		switch instr.(type) {
		case *ir.Jump, *ir.Return:
			dead = true
		}
	}
	if len(out) == len(s.Instrs) {
		return false
	}
	s.Instrs = out
	return true
}

// deadTemps makes one liveness sweep. Only side-effect free writes are
// removed: copies and argument or block receives.
func (d *DeadCode) deadTemps(s *ir.Scope) bool {
	var used []ir.Variable
	for _, instr := range s.Instrs {
		for _, op := range instr.Operands() {
			used = op.AddUsedVariables(used)
		}
	}
	live := make(map[ir.Variable]bool, len(used))
	for _, v := range used {
		live[v] = true
	}

	out := s.Instrs[:0:0]
	for _, instr := range s.Instrs {
		if dest := instr.Result(); dest != nil && !live[dest] && removable(instr, dest) {
			d.stats.Removed++
			continue
		}
		out = append(out, instr)
	}
	if len(out) == len(s.Instrs) {
		return false
	}
	s.Instrs = out
	return true
}

func removable(instr ir.Instr, dest ir.Variable) bool {
	if _, ok := dest.(ir.TempSlot); !ok {
		return false
	}
	switch i := instr.(type) {
	case *ir.Copy:
		return pure(i.Source)
	case *ir.ReceiveArg, *ir.ReceiveBlock:
		return true
	}
	return false
}

// pure reports whether evaluating op cannot run user code or raise.
// Regexp compilation raises RegexpError on a bad source or option, so a
// regexp is never dropped.
func pure(op ir.Operand) bool {
	ok := true
	ir.Walk(op, func(o ir.Operand) bool {
		switch o.(type) {
		case *ir.BacktickString, *ir.MethodHandle, *ir.CompoundString, *ir.DynamicSymbol,
			*ir.DynamicReference, *ir.Splat, *ir.CompoundArray, *ir.SValue, *ir.Regexp:
			ok = false
		}
		return ok
	})
	return ok
}
