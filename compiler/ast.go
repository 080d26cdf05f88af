package compiler

import "strings"

// ---------------------------------------------------------------------------
// Parsed orchestra: the statement lists the layout engine consumes
// ---------------------------------------------------------------------------

// Statement is one orchestra line after parsing: an optional label, an opcode
// name and the raw output and input argument texts. A statement with a label
// and no opcode marks the position of the next statement.
type Statement struct {
	Label   string
	Opcode  string
	Outputs []string
	Inputs  []string
	Line    int // 1-based source line
}

// InstrDef is an instrument block. An instrument may be declared under several
// numbers and names that all alias the same template.
type InstrDef struct {
	Numbers []int
	Names   []string
	Body    []*Statement
	Line    int
}

// OpcodeDef is a user-defined opcode block. OutTypes and InTypes use the
// opcode type alphabet; "0" or "" means no arguments.
type OpcodeDef struct {
	Name     string
	OutTypes string
	InTypes  string
	Body     []*Statement
	Line     int
}

// Orchestra is a whole parsed orchestra. Header holds the global statements
// that precede the first instrument (instrument 0).
type Orchestra struct {
	Header      []*Statement
	Instruments []*InstrDef
	Opcodes     []*OpcodeDef
}

// String renders the statement in orchestra syntax.
func (s *Statement) String() string {
	out := strings.Join(s.Outputs, ",")
	in := strings.Join(s.Inputs, ", ")
	switch {
	case out == "" && in == "":
		return s.Opcode
	case out == "":
		return s.Opcode + " " + in
	}
	return out + " " + s.Opcode + " " + in
}
