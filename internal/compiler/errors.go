package compiler

import "fmt"

// CompileError reports malformed markup in a document body.
type CompileError struct {
	Path   string
	Line   int
	Reason string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}
