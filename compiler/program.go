package compiler

import (
	"fmt"

	"github.com/chazu/orc/opcode"
)

// ---------------------------------------------------------------------------
// Program: compiled templates and pool layout
// ---------------------------------------------------------------------------

// Counts holds the number of variables of each class in one scope.
type Counts [numClasses]int

// Of returns the count for class c.
func (c Counts) Of(class VarClass) int {
	return c[class]
}

// Layout is the size of one data space: the fixed pool of float words, the
// audio vectors and the string slots, and the total byte length.
//
//	Len == align8(Fixed*8 + ACount*ksmps*8 + SCount*strVarMaxLen)
type Layout struct {
	Fixed  int // words in the fixed pool
	ACount int // audio vectors
	SCount int // string slots
	Len    int // bytes
}

// align8 rounds n up to a multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}

// ComputeLayout sizes a data space from its fixed word count and vector and
// string counts.
func ComputeLayout(fixed, acnt, scnt, ksmps, strVarMaxLen int) Layout {
	return Layout{
		Fixed:  fixed,
		ACount: acnt,
		SCount: scnt,
		Len:    align8(fixed*FloatSize + acnt*ksmps*FloatSize + scnt*strVarMaxLen),
	}
}

// AudioBase returns the byte offset of the first audio vector.
func (l Layout) AudioBase() int {
	return l.Fixed * FloatSize
}

// StringBase returns the byte offset of the first string slot.
func (l Layout) StringBase(ksmps int) int {
	return l.Fixed*FloatSize + l.ACount*ksmps*FloatSize
}

// OpText is one opcode of a template: the entry, the raw argument texts and
// the resolved operands.
type OpText struct {
	EntryNum int
	Entry    *opcode.Entry
	Outputs  []string
	Inputs   []string
	Out      []Operand
	In       []Operand
	Label    string
	Line     int
}

// Template is a compiled instrument or user-defined opcode body.
type Template struct {
	Number  int
	Numbers []int
	Names   []string
	Ops     []*OpText

	Counts Counts
	Layout Layout // local block; Layout.Len is localen
	PMax   int    // highest p-field referenced, at least 3

	// IsOpcode marks user-defined opcode bodies.
	IsOpcode   bool
	OpcodeName string
	OutTypes   string
	InTypes    string
	Line       int
}

// Localen returns the local block size in bytes.
func (t *Template) Localen() int {
	return t.Layout.Len
}

// LclFixed returns the fixed-pool word count of the local block.
func (t *Template) LclFixed() int {
	return t.Layout.Fixed
}

// Name returns a printable name for diagnostics.
func (t *Template) Name() string {
	switch {
	case t.IsOpcode:
		return "opcode " + t.OpcodeName
	case len(t.Names) > 0:
		return fmt.Sprintf("instr %d (%s)", t.Number, t.Names[0])
	}
	return fmt.Sprintf("instr %d", t.Number)
}

// Rates are the resolved sample rate, control rate and block size.
type Rates struct {
	Sr    float64
	Kr    float64
	Ksmps int
}

// Program is a compiled orchestra.
type Program struct {
	Rates        Rates
	Nchnls       int
	ZeroDBFS     float64
	StrVarMaxLen int

	// Templates is indexed by instrument number; unused numbers are nil.
	// Index 0 is the header, user-defined opcodes follow MaxInsNo.
	Templates []*Template
	MaxInsNo  int
	MaxOpcNo  int

	Globals      Layout
	GlobalCounts Counts
	FloatConsts  []float64
	ConstBase    int // word index of the first numeric constant
	StringConsts []byte
	StrOffsets   []int

	Entries *opcode.Table
	names   map[string]int
	opcodes map[string]int
}

// Instr returns the template of instrument number n.
func (p *Program) Instr(n int) (*Template, bool) {
	if n < 0 || n >= len(p.Templates) || p.Templates[n] == nil {
		return nil, false
	}
	return p.Templates[n], true
}

// InstrByName returns the template of a named instrument.
func (p *Program) InstrByName(name string) (*Template, bool) {
	n, ok := p.names[name]
	if !ok {
		return nil, false
	}
	return p.Instr(n)
}

// InstrNumber returns the number assigned to a named instrument.
func (p *Program) InstrNumber(name string) (int, bool) {
	n, ok := p.names[name]
	return n, ok
}

// Opcode returns the template of a user-defined opcode.
func (p *Program) Opcode(name string) (*Template, bool) {
	n, ok := p.opcodes[name]
	if !ok {
		return nil, false
	}
	return p.Instr(n)
}

// Header returns the instrument 0 template.
func (p *Program) Header() *Template {
	return p.Templates[0]
}

// Instruments returns the instrument templates (not the header, not
// user-defined opcodes) in number order.
func (p *Program) Instruments() []*Template {
	var out []*Template
	for n := 1; n <= p.MaxInsNo && n < len(p.Templates); n++ {
		t := p.Templates[n]
		if t != nil && t.Number == n {
			out = append(out, t)
		}
	}
	return out
}

// ReservedAddr returns the global byte offset of a reserved global.
func ReservedAddr(idx int) int {
	return idx * FloatSize
}
