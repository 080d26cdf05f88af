// Package opcode defines the opcode entry table the orchestra compiler type-checks
// against and the engine dispatches through, plus the small set of built-in leaf
// opcodes the engine ships with.
package opcode

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Entry: one row of the opcode dispatch table
// ---------------------------------------------------------------------------

// Thread is a bit set naming the passes an opcode takes part in.
type Thread uint8

const (
	ThreadInit Thread = 1 << iota // runs once when a note is activated
	ThreadK                       // runs once per control period
	ThreadA                       // runs once per control period over ksmps samples
)

// Has reports whether all bits of other are set.
func (t Thread) Has(other Thread) bool {
	return t&other == other
}

// Func is an opcode entry point. A zero return means success; anything else is
// an error the engine reports against the calling note.
type Func func(op *Op) int

// Return codes used by the built-in opcodes.
const (
	OK    = 0
	NotOK = -1
)

// Entry describes an opcode: its name, the passes it runs in, its argument type
// grammar and its three entry points.
type Entry struct {
	Name     string
	Thread   Thread
	OutTypes string // output type codes, e.g. "k" or "m"
	InTypes  string // input type codes, e.g. "kki" or "Tiim"

	Init  Func
	KPerf Func
	APerf Func

	// RefersInstr marks entries whose first input names an instrument.
	RefersInstr bool

	// UDO is set on the synthetic entries created for user-defined opcodes.
	// Instr is the instrument number assigned to the opcode body.
	UDO   bool
	Instr int
}

// BaseName returns the name without any ".T" polymorphic suffix.
func (e *Entry) BaseName() string {
	if i := strings.IndexByte(e.Name, '.'); i > 0 {
		return e.Name[:i]
	}
	return e.Name
}

// IsPerf reports whether the entry takes part in the performance pass.
func (e *Entry) IsPerf() bool {
	return e.Thread&(ThreadK|ThreadA) != 0
}

// PerfFunc returns the function the performance pass should call.
func (e *Entry) PerfFunc() Func {
	if e.Thread.Has(ThreadA) && e.APerf != nil {
		return e.APerf
	}
	return e.KPerf
}

// ---------------------------------------------------------------------------
// Table: name-indexed opcode entries
// ---------------------------------------------------------------------------

// Table is an ordered opcode entry table. Entry numbers are stable indices.
type Table struct {
	entries []*Entry
	byName  map[string]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byName: make(map[string]int)}
}

// Add appends an entry and returns its number. A later entry with the same
// name shadows the earlier one for lookups.
func (t *Table) Add(e *Entry) int {
	idx := len(t.entries)
	t.entries = append(t.entries, e)
	t.byName[e.Name] = idx
	return idx
}

// Lookup finds an entry by exact name.
func (t *Table) Lookup(name string) (*Entry, int, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return nil, -1, false
	}
	return t.entries[idx], idx, true
}

// Variants returns the polymorphic variants "name.X" of a base name, ordered
// by entry number.
func (t *Table) Variants(name string) []int {
	prefix := name + "."
	var out []int
	for n, idx := range t.byName {
		if strings.HasPrefix(n, prefix) {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// Entry returns entry number i.
func (t *Table) Entry(i int) *Entry {
	return t.entries[i]
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clone returns a copy that can be extended without touching t.
func (t *Table) Clone() *Table {
	c := &Table{
		entries: make([]*Entry, len(t.entries)),
		byName:  make(map[string]int, len(t.byName)),
	}
	copy(c.entries, t.entries)
	for k, v := range t.byName {
		c.byName[k] = v
	}
	return c
}
