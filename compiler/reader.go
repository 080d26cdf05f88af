package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/orc/opcode"
)

// ---------------------------------------------------------------------------
// Reader: line-oriented orchestra statements
// ---------------------------------------------------------------------------

// Read splits orchestra text into header statements, instrument bodies and
// user-defined opcode bodies. It recognises one statement per line:
//
//	instr 1, 2, name      endin
//	opcode name, a, kk    endop
//	label:
//	out1, out2  opcode  in1, in2
//
// Comments start with ';' or '//' and run to the end of the line; '/* */'
// comments may span lines. A statement whose first word is a built-in
// opcode has no outputs.
func Read(src string) (*Orchestra, error) {
	return ReadWith(src, opcode.Builtins())
}

// ReadWith is Read with the opcode names taken from entries.
func ReadWith(src string, entries *opcode.Table) (*Orchestra, error) {
	r := &reader{known: map[string]bool{}}
	for i := 0; i < entries.Len(); i++ {
		r.known[entries.Entry(i).BaseName()] = true
	}
	lines := r.split(src)
	for _, ln := range lines {
		if words := fields(ln.text); len(words) > 1 && words[0] == "opcode" {
			r.known[strings.TrimSuffix(words[1], ",")] = true
		}
	}
	for _, ln := range lines {
		r.line(ln)
	}
	switch {
	case r.instr != nil:
		r.errorf(r.openLine, "missing endin")
	case r.udo != nil:
		r.errorf(r.openLine, "missing endop")
	}
	if len(r.diags) > 0 {
		return nil, &CompileError{Count: len(r.diags), Diagnostics: r.diags, Cause: ErrSyntax}
	}
	return &r.orc, nil
}

type srcLine struct {
	text string
	num  int
}

type reader struct {
	orc      Orchestra
	known    map[string]bool
	instr    *InstrDef
	udo      *OpcodeDef
	openLine int
	diags    []Diagnostic
}

func (r *reader) errorf(line int, format string, args ...any) {
	r.diags = append(r.diags, Diagnostic{Line: line, Scope: "reader", Msg: fmt.Sprintf(format, args...)})
}

// split removes comments and returns the non-blank lines with their numbers.
func (r *reader) split(src string) []srcLine {
	var out []srcLine
	inBlock := false
	for i, raw := range strings.Split(src, "\n") {
		var b strings.Builder
		inStr := false
		for j := 0; j < len(raw); j++ {
			ch := raw[j]
			if inBlock {
				if ch == '*' && j+1 < len(raw) && raw[j+1] == '/' {
					inBlock = false
					j++
				}
				continue
			}
			if inStr {
				b.WriteByte(ch)
				if ch == '\\' && j+1 < len(raw) {
					j++
					b.WriteByte(raw[j])
				} else if ch == '"' {
					inStr = false
				}
				continue
			}
			if ch == ';' || ch == '/' && j+1 < len(raw) && raw[j+1] == '/' {
				break
			}
			if ch == '/' && j+1 < len(raw) && raw[j+1] == '*' {
				inBlock = true
				j++
				b.WriteByte(' ')
				continue
			}
			if ch == '"' {
				inStr = true
			}
			b.WriteByte(ch)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			out = append(out, srcLine{text: text, num: i + 1})
		}
	}
	return out
}

func (r *reader) line(ln srcLine) {
	words := fields(ln.text)
	switch words[0] {
	case "instr":
		r.openInstr(ln, words[1:])
		return
	case "endin":
		if r.instr == nil {
			r.errorf(ln.num, "endin without instr")
			return
		}
		r.orc.Instruments = append(r.orc.Instruments, r.instr)
		r.instr = nil
		return
	case "opcode":
		r.openOpcode(ln, strings.TrimSpace(strings.TrimPrefix(ln.text, "opcode")))
		return
	case "endop":
		if r.udo == nil {
			r.errorf(ln.num, "endop without opcode")
			return
		}
		r.orc.Opcodes = append(r.orc.Opcodes, r.udo)
		r.udo = nil
		return
	}

	s, err := r.statement(ln)
	if err != nil {
		r.errorf(ln.num, "%s", err)
		return
	}
	switch {
	case r.instr != nil:
		r.instr.Body = append(r.instr.Body, s)
	case r.udo != nil:
		r.udo.Body = append(r.udo.Body, s)
	case len(r.orc.Instruments) > 0 || len(r.orc.Opcodes) > 0:
		r.errorf(ln.num, "statement outside of instr or opcode")
	default:
		r.orc.Header = append(r.orc.Header, s)
	}
}

func (r *reader) openInstr(ln srcLine, words []string) {
	if r.instr != nil || r.udo != nil {
		r.errorf(ln.num, "instr inside another definition")
		return
	}
	def := &InstrDef{Line: ln.num}
	for _, w := range splitArgs(strings.Join(words, " ")) {
		if n, err := strconv.Atoi(w); err == nil {
			def.Numbers = append(def.Numbers, n)
			continue
		}
		if !validName(w) {
			r.errorf(ln.num, "illegal instrument name %q", w)
			continue
		}
		def.Names = append(def.Names, w)
	}
	if len(def.Numbers) == 0 && len(def.Names) == 0 {
		r.errorf(ln.num, "instr needs a number or name")
	}
	r.instr = def
	r.openLine = ln.num
}

func (r *reader) openOpcode(ln srcLine, rest string) {
	if r.instr != nil || r.udo != nil {
		r.errorf(ln.num, "opcode inside another definition")
		return
	}
	parts := strings.Split(rest, ",")
	if len(parts) != 3 {
		r.errorf(ln.num, "opcode needs name, output types and input types")
		parts = append(parts, "", "", "")
	}
	def := &OpcodeDef{
		Name:     strings.TrimSpace(parts[0]),
		OutTypes: strings.TrimSpace(parts[1]),
		InTypes:  strings.TrimSpace(parts[2]),
		Line:     ln.num,
	}
	if !validName(def.Name) {
		r.errorf(ln.num, "illegal opcode name %q", def.Name)
	}
	r.udo = def
	r.openLine = ln.num
}

// statement parses "label: outs opcode ins".
func (r *reader) statement(ln srcLine) (*Statement, error) {
	text := ln.text
	s := &Statement{Line: ln.num}
	if i := strings.IndexByte(text, ':'); i > 0 && validName(text[:i]) && !strings.ContainsAny(text[:i], " \t\"") {
		s.Label = text[:i]
		text = strings.TrimSpace(text[i+1:])
		if text == "" {
			return s, nil
		}
	}

	groups, err := groupArgs(text)
	if err != nil {
		return nil, err
	}
	first := groups[0]
	switch {
	case len(first) == 1 && (r.known[first[0]] || len(groups) == 1 || len(groups) == 2 && len(groups[1]) > 1):
		s.Opcode = first[0]
		groups = groups[1:]
	case len(groups) >= 2 && len(groups[1]) == 1:
		s.Outputs = first
		s.Opcode = groups[1][0]
		groups = groups[2:]
	default:
		return nil, fmt.Errorf("cannot find opcode in %q", text)
	}
	for _, g := range groups {
		s.Inputs = append(s.Inputs, g...)
	}
	return s, nil
}

// groupArgs splits text into whitespace-separated groups of comma-separated
// arguments, keeping string literals intact.
func groupArgs(text string) ([][]string, error) {
	var groups [][]string
	var cur []string
	var tok strings.Builder
	comma := false
	flush := func() {
		if tok.Len() > 0 {
			cur = append(cur, tok.String())
			tok.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '"':
			end := i + 1
			for end < len(text) && text[end] != '"' {
				if text[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(text) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tok.WriteString(text[i : end+1])
			i = end
			comma = false
		case ch == ',':
			flush()
			comma = true
		case ch == ' ' || ch == '\t':
			flush()
			if !comma && len(cur) > 0 && next(text, i) != ',' {
				groups = append(groups, cur)
				cur = nil
			}
		default:
			comma = false
			tok.WriteByte(ch)
		}
	}
	flush()
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	return groups, nil
}

// next returns the first non-blank byte after position i.
func next(text string, i int) byte {
	for ; i < len(text); i++ {
		if text[i] != ' ' && text[i] != '\t' {
			return text[i]
		}
	}
	return 0
}

func fields(text string) []string {
	return strings.Fields(text)
}

func splitArgs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
