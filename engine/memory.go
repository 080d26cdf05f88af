package engine

import (
	"bytes"
	"unsafe"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/opcode"
)

// ---------------------------------------------------------------------------
// Data spaces
// ---------------------------------------------------------------------------

// dataSpace is the global data space: reserved globals, numeric constants,
// global variables, then the string-constant area kept separately.
type dataSpace struct {
	words   []float64
	bytes   []byte
	strings []byte
}

func newDataSpace(p *compiler.Program) dataSpace {
	d := dataSpace{
		words:   make([]float64, p.Globals.Len/compiler.FloatSize),
		strings: bytes.Clone(p.StringConsts),
	}
	d.bytes = byteView(d.words)
	d.words[compiler.ReservedSr] = p.Rates.Sr
	d.words[compiler.ReservedKr] = p.Rates.Kr
	d.words[compiler.ReservedKsmps] = float64(p.Rates.Ksmps)
	d.words[compiler.ReservedNchnls] = float64(p.Nchnls)
	d.words[compiler.Reserved0dbfs] = p.ZeroDBFS
	copy(d.words[p.ConstBase:], p.FloatConsts)
	return d
}

// byteView returns the bytes backing words. String slots are laid out by
// byte offset inside the same block as the float words.
func byteView(words []float64) []byte {
	if len(words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*compiler.FloatSize)
}

// space is one addressable block: a note's local block or the globals.
type space struct {
	words []float64
	bytes []byte
}

// bind turns a resolved operand into an argument view.
func (e *Engine) bind(o compiler.Operand, local space, p []float64) opcode.Arg {
	switch o.Kind {
	case compiler.OperandLocal:
		return e.bindSlot(o, local)
	case compiler.OperandGlobal:
		return e.bindSlot(o, space{words: e.mem.words, bytes: e.mem.bytes})
	case compiler.OperandConst:
		w := o.Addr / compiler.FloatSize
		return opcode.FloatArg('c', e.mem.words[w:w+1])
	case compiler.OperandStrConst:
		s := e.mem.strings[o.Addr:]
		if i := bytes.IndexByte(s, 0); i >= 0 {
			s = s[:i+1]
		}
		return opcode.StringArg('S', s)
	case compiler.OperandPField:
		if o.Addr < len(p) {
			return opcode.FloatArg('p', p[o.Addr:o.Addr+1])
		}
	case compiler.OperandLabel:
		return opcode.LabelArg(o.Addr)
	}
	return opcode.FloatArg(o.Type, nil)
}

func (e *Engine) bindSlot(o compiler.Operand, s space) opcode.Arg {
	switch o.Class {
	case compiler.ClassAudio:
		w := o.Addr / compiler.FloatSize
		return opcode.FloatArg('a', s.words[w:w+e.Ksmps()])
	case compiler.ClassString:
		return opcode.StringArg('S', s.bytes[o.Addr:o.Addr+e.Layout.StrVarMaxLen])
	}
	w := o.Addr / compiler.FloatSize
	return opcode.FloatArg(o.Type, s.words[w:w+o.Class.Words()])
}
