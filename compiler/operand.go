package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Operand: a resolved opcode argument
// ---------------------------------------------------------------------------

// OperandKind says which address space an operand refers to.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota
	OperandGlobal               // global data space
	OperandLocal                // the note's local block
	OperandConst                // numeric constant, global data space once final
	OperandStrConst             // string-constant area
	OperandPField               // the note's p-field array
	OperandLabel                // opcode index in the same template
)

var operandKindNames = [...]string{"none", "global", "local", "const", "strconst", "pfield", "label"}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Operand is an opcode argument after layout. Layout is two-phase: the first
// pass fills Kind, Type, Class and the provisional Index (ordinal within the
// class, or pool index for constants); the final pass sets Addr, a byte
// offset for data-space operands, the p-field number for p-fields and the
// target opcode index for labels.
type Operand struct {
	Kind     OperandKind
	Type     byte // 'i','k','a','S','w','f','t', 'c' numeric constant, 'p' p-field, 'l' label
	Class    VarClass
	Index    int
	Addr     int
	Resolved bool
}

func (o Operand) String() string {
	if !o.Resolved {
		return fmt.Sprintf("%s:%c#%d?", o.Kind, o.Type, o.Index)
	}
	return fmt.Sprintf("%s:%c@%d", o.Kind, o.Type, o.Addr)
}

func (o *Operand) resolve(addr int) {
	o.Addr = addr
	o.Resolved = true
}

// IsVariable reports whether the operand names a writable variable.
func (o Operand) IsVariable() bool {
	return o.Kind == OperandGlobal || o.Kind == OperandLocal
}
