package opcode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Control flow, event generation and user-defined opcode plumbing
// ---------------------------------------------------------------------------

func jump(op *Op) int {
	op.Note.Goto(op.In[0].Label)
	return OK
}

func condJump(op *Op) int {
	if op.In[0].Float() != 0 {
		op.Note.Goto(op.In[1].Label)
	}
	return OK
}

func turnoff(op *Op) int {
	op.Note.Turnoff()
	return OK
}

// schedule queues a note. The first input is an instrument number or the name
// of a named instrument.
func schedule(op *Op) int {
	p := make([]float64, len(op.In)+1)
	name := ""
	if op.In[0].IsString() {
		name = op.In[0].String()
	} else {
		p[1] = op.In[0].Float()
	}
	for i := 1; i < len(op.In); i++ {
		p[i+1] = op.In[i].Float()
	}
	if err := op.Host.Schedule(name, p); err != nil {
		op.Host.Warning("instr %d line %d: schedule: %v", op.Note.InsNo(), op.Line, err)
		return NotOK
	}
	return OK
}

func printValues(op *Op) int {
	var b strings.Builder
	fmt.Fprintf(&b, "instr %d:", op.Note.InsNo())
	for i, in := range op.In {
		name := ""
		if i < len(op.InNames) {
			name = op.InNames[i]
		}
		fmt.Fprintf(&b, "  %s = %.3f", name, in.Float())
	}
	op.Host.Message("%s", b.String())
	return OK
}

// xin copies the caller's inputs into the opcode body's variables.
func xin(op *Op) int {
	caller := op.Note.Caller()
	if caller == nil {
		return NotOK
	}
	for i := range op.Out {
		if i < len(caller.In) {
			op.Out[i].CopyFrom(caller.In[i])
		}
	}
	return OK
}

// xout copies the opcode body's results into the caller's outputs.
func xout(op *Op) int {
	caller := op.Note.Caller()
	if caller == nil {
		return NotOK
	}
	for i, in := range op.In {
		if i < len(caller.Out) {
			caller.Out[i].CopyFrom(in)
		}
	}
	return OK
}
