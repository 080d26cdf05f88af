package engine

import (
	"fmt"

	"github.com/chazu/orc/opcode"
	pkgerrors "github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// User-defined opcodes
// ---------------------------------------------------------------------------

// udoInit allocates a body instance for the calling opcode op and runs its
// init pass. The body belongs to the caller and is released with it.
func (e *Engine) udoInit(in *Instance, op *opcode.Op) error {
	t, ok := e.Layout.Instr(op.Entry.Instr)
	if !ok || !t.IsOpcode {
		return pkgerrors.WithStack(fmt.Errorf("%w: opcode %s has no body", ErrInitFailed, op.Entry.Name))
	}
	body, err := e.newNote(t)
	if err != nil {
		return err
	}
	copy(body.p, in.p)
	body.caller = op
	in.children = append(in.children, body)
	op.State = body
	return e.runInit(body)
}

// udoPerf runs one performance pass of the body started by udoInit.
func (e *Engine) udoPerf(op *opcode.Op) error {
	body, ok := op.State.(*Instance)
	if !ok {
		return fmt.Errorf("%w: opcode %s was not initialised", ErrPerf, op.Entry.Name)
	}
	return e.runPerf(body)
}
