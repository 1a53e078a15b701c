// Package ir is the operand model of the intermediate representation.
//
// Every value, reference and synthetic control construct a front end can
// produce is an Operand. Operands answer constancy questions, simplify
// themselves against a dataflow value map, clone themselves for inlining
// and, at evaluation time, retrieve their runtime value from a Context.
//
// Composite operands (arrays, hashes, compound strings, ranges) rewrite
// their children in place when simplified. Each compile-time Scope owns
// its operand graph; Scope.Adopt records ownership and rejects graphs that
// are already owned by another scope.
package ir
