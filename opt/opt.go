// Package opt holds the dataflow passes that run over compile-time
// scopes: constant and copy propagation, dead temporary elimination,
// inlining, and label linking.
package opt

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/ir"
)

var log = commonlog.GetLogger("garnet.opt")

// Oracle answers whether a core operator still has its builtin
// definition. *runtime.Runtime implements it.
type Oracle interface {
	Redefined(className, name string) bool
}

// Pass rewrites one scope in place and reports whether it changed
// anything.
type Pass interface {
	Name() string
	Run(s *ir.Scope) bool
}

// Options configure the pipeline. Zero values are replaced by defaults.
type Options struct {
	Passes         []string
	MaxIterations  int
	FoldArithmetic bool
	InlineMaxSize  int
}

// DefaultOptions returns the options used when no configuration exists.
func DefaultOptions() Options {
	return Options{
		Passes:         []string{"inline", "constprop", "dce"},
		MaxIterations:  8,
		FoldArithmetic: true,
		InlineMaxSize:  24,
	}
}

// Stats counts what a pipeline run did.
type Stats struct {
	Scopes     int
	Iterations int
	Folded     int
	Propagated int
	Removed    int
	Inlined    int
}

// Pipeline runs a fixed sequence of passes over a scope tree.
type Pipeline struct {
	passes  []Pass
	maxIter int
	stats   *Stats
}

// NewPipeline builds the passes named in opts. resolve may be nil, in
// which case the inline pass finds no callees.
func NewPipeline(opts Options, oracle Oracle, resolve Resolver) (*Pipeline, error) {
	def := DefaultOptions()
	if opts.Passes == nil {
		opts.Passes = def.Passes
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.InlineMaxSize <= 0 {
		opts.InlineMaxSize = def.InlineMaxSize
	}

	p := &Pipeline{maxIter: opts.MaxIterations, stats: &Stats{}}
	for _, name := range opts.Passes {
		switch name {
		case "constprop":
			cp := NewConstantPropagation(oracle, opts.MaxIterations)
			cp.FoldArithmetic = opts.FoldArithmetic
			cp.stats = p.stats
			p.passes = append(p.passes, cp)
		case "dce":
			p.passes = append(p.passes, &DeadCode{stats: p.stats})
		case "inline":
			in := NewInliner(resolve, opts.InlineMaxSize)
			in.stats = p.stats
			p.passes = append(p.passes, in)
		default:
			return nil, fmt.Errorf("unknown pass %q", name)
		}
	}
	return p, nil
}

// Run applies the passes to s and every nested scope, repeating the
// sequence on a scope until it stops changing or the iteration bound is
// reached.
func (p *Pipeline) Run(s *ir.Scope) Stats {
	p.run(s)
	return *p.stats
}

func (p *Pipeline) run(s *ir.Scope) {
	p.stats.Scopes++
	for i := 0; i < p.maxIter; i++ {
		p.stats.Iterations++
		changed := false
		for _, pass := range p.passes {
			if pass.Run(s) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for _, c := range s.Children {
		p.run(c)
	}
}

// replace swaps the instruction at i for repl, adopting the operands of
// the new instructions into s.
func replace(s *ir.Scope, i int, repl ...ir.Instr) {
	for _, in := range repl {
		for _, op := range in.Operands() {
			s.Adopt(op)
		}
	}
	out := make([]ir.Instr, 0, len(s.Instrs)-1+len(repl))
	out = append(out, s.Instrs[:i]...)
	out = append(out, repl...)
	out = append(out, s.Instrs[i+1:]...)
	s.Instrs = out
}
