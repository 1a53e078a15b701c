package opt

import (
	"github.com/chazu/garnet/ir"
)

// ConstantPropagation propagates constants and copies within basic
// blocks and folds numeric arithmetic calls whose operands became
// constant.
//
// A label starts a new block and empties the value map. Folding is
// skipped when the receiver's operator has been redefined, when the
// program being optimized defines a method of that name anywhere, or
// when the integer result would leave the 64-bit range.
type ConstantPropagation struct {
	Oracle         Oracle
	MaxIterations  int
	FoldArithmetic bool

	stats   *Stats
	defined map[string]bool
}

// NewConstantPropagation creates the pass. A nil oracle means the
// operators are never redefined.
func NewConstantPropagation(oracle Oracle, maxIterations int) *ConstantPropagation {
	if maxIterations <= 0 {
		maxIterations = DefaultOptions().MaxIterations
	}
	return &ConstantPropagation{
		Oracle:         oracle,
		MaxIterations:  maxIterations,
		FoldArithmetic: true,
		stats:          &Stats{},
	}
}

func (cp *ConstantPropagation) Name() string { return "constprop" }

// Run sweeps s until a sweep changes nothing.
func (cp *ConstantPropagation) Run(s *ir.Scope) bool {
	cp.defined = programOperators(s)
	changed := false
	n := 0
	for n < cp.MaxIterations {
		n++
		if !cp.sweep(s) {
			break
		}
		changed = true
	}
	log.Debugf("constprop %s: %d sweeps", s, n)
	return changed
}

func (cp *ConstantPropagation) sweep(s *ir.Scope) bool {
	changed := false
	vm := ir.ValueMap{}
	for i := 0; i < len(s.Instrs); i++ {
		instr := s.Instrs[i]
		if _, ok := instr.(*ir.LabelInstr); ok {
			vm = ir.ValueMap{}
			continue
		}

		before := instr.String()
		s.SimplifyInstr(instr, vm)
		if instr.String() != before {
			changed = true
			cp.stats.Propagated++
		}

		if call, ok := instr.(*ir.Call); ok {
			if folded := cp.fold(call); folded != nil {
				instr = &ir.Copy{Dest: call.Dest, Source: folded}
				replace(s, i, instr)
				changed = true
				cp.stats.Folded++
			}
		}

		if dest := instr.Result(); dest != nil {
			kill(vm, dest)
			if c, ok := instr.(*ir.Copy); ok && propagatable(c) {
				vm[dest] = c.Source
			}
		}
		if _, ok := instr.(*ir.Call); ok {
			// A callee may run a closure that assigns captured locals.
			killLocals(vm)
		}
	}
	return changed
}

// fold returns the constant result of an arithmetic call, or nil.
func (cp *ConstantPropagation) fold(call *ir.Call) ir.Operand {
	if !cp.FoldArithmetic || call.Dest == nil || call.Closure != nil || len(call.Args) != 1 {
		return nil
	}
	op, ok := call.Handle.StaticName()
	if !ok || !ir.FoldableOperators[op] {
		return nil
	}
	recv, arg := call.Handle.Receiver, call.Args[0]
	var class string
	switch recv.(type) {
	case *ir.Fixnum:
		class = "Integer"
	case *ir.Float:
		class = "Float"
	default:
		return nil
	}
	if ir.FoldOverflows(recv, op, arg) {
		return nil
	}
	if cp.defined[op] {
		log.Debugf("not folding %s: the program defines it", op)
		return nil
	}
	if cp.Oracle != nil && cp.Oracle.Redefined(class, op) {
		return nil
	}
	return ir.Fold(recv, op, arg)
}

// programOperators returns the foldable operators defined by the
// program s belongs to. The oracle only sees the runtime as it is before
// the program runs, so a reopened Integer defining + must be caught here.
func programOperators(s *ir.Scope) map[string]bool {
	root := s
	for root.Parent != nil {
		root = root.Parent
	}
	out := make(map[string]bool)
	var walk func(sc *ir.Scope)
	walk = func(sc *ir.Scope) {
		if sc.Kind == ir.MethodScope && ir.FoldableOperators[sc.Name] {
			out[sc.Name] = true
		}
		for _, instr := range sc.Instrs {
			if d, ok := instr.(*ir.DefineMethod); ok && ir.FoldableOperators[d.Method.Scope.Name] {
				out[d.Method.Scope.Name] = true
			}
		}
		for _, c := range sc.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// propagatable reports whether the source of c may be substituted for
// its destination. Composites that are rewritten in place cannot be
// referenced from several instructions.
func propagatable(c *ir.Copy) bool {
	if c.Source == ir.Operand(c.Dest) {
		return false
	}
	switch src := c.Source.(type) {
	case *ir.GlobalVariable:
		return false
	case ir.Variable:
		return true
	default:
		return src.IsConstant() && ir.Shareable(src)
	}
}

// kill forgets v and every mapping whose value reads v.
func kill(vm ir.ValueMap, v ir.Variable) {
	delete(vm, v)
	for k, val := range vm {
		for _, used := range val.AddUsedVariables(nil) {
			if used == v {
				delete(vm, k)
				break
			}
		}
	}
}

func killLocals(vm ir.ValueMap) {
	for k, val := range vm {
		if _, ok := k.(ir.LocalSlot); ok {
			delete(vm, k)
			continue
		}
		for _, used := range val.AddUsedVariables(nil) {
			if _, ok := used.(ir.LocalSlot); ok {
				delete(vm, k)
				break
			}
		}
	}
}
