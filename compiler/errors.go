package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by CompileError.
var (
	ErrSyntax       = errors.New("orchestra syntax errors")
	ErrRateMismatch = errors.New("inconsistent sr, kr and ksmps")
	ErrInternal     = errors.New("internal compiler error")
)

// Diagnostic is one compile-time message.
type Diagnostic struct {
	Line  int
	Scope string // "header", "instr 3", "opcode foo"
	Msg   string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s, line %d: %s", d.Scope, d.Line, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Scope, d.Msg)
}

// CompileError reports a failed compilation. Count is the number of syntax
// errors found in the full scan; Cause is ErrSyntax, ErrRateMismatch or
// ErrInternal.
type CompileError struct {
	Count       int
	Diagnostics []Diagnostic
	Cause       error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	switch {
	case errors.Is(e.Cause, ErrRateMismatch):
		b.WriteString(e.Cause.Error())
	case e.Count > 0:
		fmt.Fprintf(&b, "%d syntax error", e.Count)
		if e.Count != 1 {
			b.WriteString("s")
		}
		b.WriteString(" in orchestra")
	default:
		b.WriteString(e.Cause.Error())
	}
	for _, d := range e.Diagnostics {
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	return b.String()
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}
