package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Variable classes and argument classification
// ---------------------------------------------------------------------------

// Slot sizes. Values are float64, so every fixed slot is a multiple of 8 bytes.
const (
	FloatSize           = 8
	WFloats             = 8  // words per spectral (w) slot
	PFloats             = 12 // words per streaming spectral (f) slot
	ArrayFloats         = 4  // words per array (t) header slot
	DefaultStrVarMaxLen = 256
)

// VarClass is the storage class a variable's slot is laid out in.
type VarClass uint8

const (
	ClassScalar   VarClass = iota // i- and k-rate scalars
	ClassSpectral                 // w
	ClassFsig                     // f
	ClassArray                    // t
	ClassAudio                    // a, ksmps words
	ClassString                   // S, strVarMaxLen bytes
	numClasses
)

var classNames = [numClasses]string{"scalar", "spectral", "fsig", "array", "audio", "string"}

func (c VarClass) String() string {
	if c < numClasses {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}

// Words returns the fixed-pool words one slot of the class occupies. Audio and
// string slots live outside the fixed pool and report 0.
func (c VarClass) Words() int {
	switch c {
	case ClassScalar:
		return 1
	case ClassSpectral:
		return WFloats
	case ClassFsig:
		return PFloats
	case ClassArray:
		return ArrayFloats
	}
	return 0
}

// classOfType maps a variable type code to its storage class.
func classOfType(t byte) (VarClass, bool) {
	switch t {
	case 'i', 'k':
		return ClassScalar, true
	case 'w':
		return ClassSpectral, true
	case 'f':
		return ClassFsig, true
	case 't':
		return ClassArray, true
	case 'a':
		return ClassAudio, true
	case 'S':
		return ClassString, true
	}
	return 0, false
}

// Reserved globals occupy the first slots of the global scalar pool.
var reservedGlobals = []string{"sr", "kr", "ksmps", "nchnls", "0dbfs"}

const (
	ReservedSr = iota
	ReservedKr
	ReservedKsmps
	ReservedNchnls
	Reserved0dbfs
	numReserved
)

func reservedIndex(name string) int {
	for i, r := range reservedGlobals {
		if r == name {
			return i
		}
	}
	return -1
}

// argKind is the first-pass classification of an argument text.
type argKind uint8

const (
	argInvalid argKind = iota
	argNumber
	argString
	argPField
	argReserved
	argGlobal
	argLocal
)

// argInfo is what classifyArg learns about an argument text.
type argInfo struct {
	kind  argKind
	typ   byte // variable type code, 'c' for numbers, 'S' for strings, 'p' for p-fields
	value float64
	pnum  int
	err   string
}

// classifyArg decides what an argument text denotes. Errors are reported in
// argInfo.err and counted by the caller.
func classifyArg(text string) argInfo {
	if text == "" {
		return argInfo{err: "empty argument"}
	}
	if idx := reservedIndex(text); idx >= 0 {
		return argInfo{kind: argReserved, typ: 'i', pnum: idx}
	}
	c := text[0]
	switch {
	case c == '"':
		if len(text) < 2 || text[len(text)-1] != '"' || escapedQuote(text) {
			return argInfo{err: fmt.Sprintf("unterminated string literal %s", text)}
		}
		return argInfo{kind: argString, typ: 'S'}
	case isDigit(c) || c == '.' || ((c == '+' || c == '-') && len(text) > 1 && (isDigit(text[1]) || text[1] == '.')):
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return argInfo{err: fmt.Sprintf("malformed number %q", text)}
		}
		return argInfo{kind: argNumber, typ: 'c', value: v}
	}
	if !validName(text) {
		return argInfo{err: fmt.Sprintf("illegal name %q", text)}
	}
	if c == 'p' && len(text) > 1 && allDigits(text[1:]) {
		n, _ := strconv.Atoi(text[1:])
		if n < 1 {
			return argInfo{err: fmt.Sprintf("illegal p-field %s", text)}
		}
		return argInfo{kind: argPField, typ: 'p', pnum: n}
	}
	if c == 'g' && len(text) > 1 {
		if _, ok := classOfType(text[1]); ok {
			return argInfo{kind: argGlobal, typ: text[1]}
		}
		return argInfo{err: fmt.Sprintf("global %q has no type", text)}
	}
	if _, ok := classOfType(c); ok {
		return argInfo{kind: argLocal, typ: c}
	}
	return argInfo{err: fmt.Sprintf("unknown variable type for %q", text)}
}

// escapedQuote reports whether the closing quote of a string literal is
// itself escaped, which leaves the literal unterminated.
func escapedQuote(text string) bool {
	n := 0
	for i := len(text) - 2; i > 0 && text[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func validName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && isDigit(c)) {
			continue
		}
		return false
	}
	return true
}
