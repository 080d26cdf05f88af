package opcode

import "bytes"

// ---------------------------------------------------------------------------
// Arg: a resolved view of one opcode argument
// ---------------------------------------------------------------------------

// Arg is an opcode's window onto one data-space slot. Scalars and vectors are
// views over float64 words, strings are views over a fixed-size byte slot and
// labels carry the index of their target opcode.
type Arg struct {
	Type  byte // type code of the bound operand ('i', 'k', 'a', 'S', 'c', 'p', 'l', ...)
	f     []float64
	s     []byte
	Label int
}

// FloatArg binds a scalar or vector argument to words.
func FloatArg(typ byte, words []float64) Arg {
	return Arg{Type: typ, f: words, Label: -1}
}

// StringArg binds a string argument to a byte slot.
func StringArg(typ byte, slot []byte) Arg {
	return Arg{Type: typ, s: slot, Label: -1}
}

// LabelArg binds a branch target.
func LabelArg(target int) Arg {
	return Arg{Type: 'l', Label: target}
}

// Float returns the scalar value (the first sample of an audio vector).
func (a Arg) Float() float64 {
	if len(a.f) == 0 {
		return 0
	}
	return a.f[0]
}

// Set stores a scalar value.
func (a Arg) Set(v float64) {
	if len(a.f) > 0 {
		a.f[0] = v
	}
}

// Vector returns the backing words: ksmps samples for audio arguments, the
// slot words otherwise.
func (a Arg) Vector() []float64 {
	return a.f
}

// IsAudio reports whether the argument is an audio-rate vector.
func (a Arg) IsAudio() bool {
	return a.Type == 'a'
}

// Sample returns sample i of an audio argument or the scalar value of a
// control argument, for inputs typed 'x'.
func (a Arg) Sample(i int) float64 {
	if a.Type == 'a' {
		return a.f[i]
	}
	return a.Float()
}

// IsString reports whether the argument is a string slot.
func (a Arg) IsString() bool {
	return a.s != nil
}

// String returns the NUL-terminated contents of a string slot.
func (a Arg) String() string {
	if i := bytes.IndexByte(a.s, 0); i >= 0 {
		return string(a.s[:i])
	}
	return string(a.s)
}

// SetString stores s, truncated to the slot size.
func (a Arg) SetString(s string) {
	if len(a.s) == 0 {
		return
	}
	n := copy(a.s[:len(a.s)-1], s)
	a.s[n] = 0
}

// CopyFrom copies src into a, converting between scalar and vector shapes.
func (a Arg) CopyFrom(src Arg) {
	switch {
	case a.IsString():
		if src.IsString() {
			a.SetString(src.String())
		}
	case a.IsAudio() && !src.IsAudio():
		v := src.Float()
		for i := range a.f {
			a.f[i] = v
		}
	default:
		copy(a.f, src.f)
	}
}
