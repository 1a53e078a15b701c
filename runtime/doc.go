// Package runtime is the object model the IR core dispatches against.
//
// It provides classes and modules with per-class method tables, the
// ancestry walk used for method resolution, and the call-site caches that
// remember the last resolved method for a receiver class.
//
// Every method table mutation (definition, removal, undefinition,
// visibility change, module inclusion) bumps the owning class's generation
// and the generation of every class that inherits from it. Caches store the
// generation they observed when the entry was installed and compare stamps
// on every hit; they never scan.
//
// The hit path of every cache is lock-free. Method tables and the class
// hierarchy are guarded by per-class locks that are only taken on a miss
// or a mutation.
package runtime
