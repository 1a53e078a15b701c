package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a readable listing of s and its nested scopes.
func Dump(w io.Writer, s *Scope) error {
	return dump(w, s, 0)
}

func dump(w io.Writer, s *Scope, depth int) error {
	indent := strings.Repeat("  ", depth)
	header := fmt.Sprintf("%s%s %s", indent, s.Kind, s.Name)
	if s.Kind == MethodScope || s.Kind == ClosureScope {
		header += fmt.Sprintf(" (arity %d)", s.Arity)
	}
	if _, err := fmt.Fprintln(w, header+":"); err != nil {
		return err
	}
	if len(s.slots) > 0 {
		if _, err := fmt.Fprintf(w, "%s  locals: %s\n", indent, strings.Join(s.slots, ", ")); err != nil {
			return err
		}
	}
	for i, in := range s.Instrs {
		var err error
		if _, isLabel := in.(*LabelInstr); isLabel {
			_, err = fmt.Fprintf(w, "%s  %s\n", indent, in)
		} else {
			_, err = fmt.Fprintf(w, "%s  %3d  %s\n", indent, i, in)
		}
		if err != nil {
			return err
		}
	}
	for _, c := range s.Children {
		if err := dump(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// DumpString returns the Dump listing as a string.
func DumpString(s *Scope) string {
	var sb strings.Builder
	_ = Dump(&sb, s)
	return sb.String()
}
