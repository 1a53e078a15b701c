// Garnet CLI - inspects, optimizes, runs and stores IR programs written
// as YAML.
package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/garnet/ir"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the exit code: 0 on success, 1 for
// ordinary errors and raised exceptions, 2 when the IR is internally
// inconsistent.
func execute(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := ir.AsInternalError(r)
		if !ok {
			panic(r)
		}
		fmt.Fprintf(stderr, "garnet: %v\n", ie)
		if ie.Scope != nil {
			_ = ir.Dump(stderr, ie.Scope)
		}
		code = 2
	}()

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
