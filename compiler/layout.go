package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/orc/opcode"
	pkgerrors "github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orc.compiler")

// Options control a compilation. Zero values mean "not set".
type Options struct {
	// Rate overrides, taking precedence over the orchestra header.
	Sr    float64
	Kr    float64
	Ksmps float64

	Nchnls   int
	ZeroDBFS float64

	StrVarMaxLen int

	// Entries is the opcode table to compile against. Nil selects
	// opcode.Builtins().
	Entries *opcode.Table
}

// Compile lays out a parsed orchestra. Syntax errors are collected over the
// whole orchestra; if any were found, or the rates are inconsistent, the
// result is a *CompileError and no program.
func Compile(orc *Orchestra, opts Options) (*Program, error) {
	c := newCompiler(opts)
	return c.compile(orc)
}

// ---------------------------------------------------------------------------
// compiler state
// ---------------------------------------------------------------------------

type compiler struct {
	opts    Options
	prog    *Program
	globals *NameTable
	locals  *NameTable
	floats  *FloatPool
	strs    *StringPool

	headerRates RateSpec
	nchnls      float64
	zerodbfs    float64
	rateErr     error

	instrs map[*InstrDef]*Template
	udos   map[*OpcodeDef]*Template

	scope   string
	current *Template
	udo     *OpcodeDef
	labels  map[string]int

	diags []Diagnostic
	count int
}

func newCompiler(opts Options) *compiler {
	if opts.StrVarMaxLen <= 0 {
		opts.StrVarMaxLen = DefaultStrVarMaxLen
	}
	entries := opts.Entries
	if entries == nil {
		entries = opcode.Builtins()
	}
	return &compiler{
		opts: opts,
		prog: &Program{
			StrVarMaxLen: opts.StrVarMaxLen,
			Entries:      entries.Clone(),
			names:        make(map[string]int),
			opcodes:      make(map[string]int),
		},
		globals: NewNameTable(),
		locals:  NewNameTable(),
		floats:  NewFloatPool(),
		strs:    NewStringPool(),
		instrs:  make(map[*InstrDef]*Template),
		udos:    make(map[*OpcodeDef]*Template),
	}
}

func (c *compiler) errorf(line int, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Line: line, Scope: c.scope, Msg: fmt.Sprintf(format, args...)})
	c.count++
}

func (c *compiler) compile(orc *Orchestra) (*Program, error) {
	c.number(orc)

	c.compileHeader(orc.Header)

	for _, def := range orc.Opcodes {
		if t, ok := c.udos[def]; ok {
			c.compileTemplate(t, def.Body, def)
		}
	}
	for _, def := range orc.Instruments {
		if t, ok := c.instrs[def]; ok {
			c.compileTemplate(t, def.Body, nil)
		}
	}

	if c.rateErr != nil || c.count > 0 {
		cause := ErrSyntax
		if c.rateErr != nil {
			cause = c.rateErr
		}
		log.Errorf("compilation failed: %d syntax errors", c.count)
		return nil, &CompileError{Count: c.count, Diagnostics: c.diags, Cause: cause}
	}

	if err := c.finalizeGlobals(); err != nil {
		return nil, err
	}

	p := c.prog
	log.Infof("compiled %d instruments, %d opcodes; sr=%g kr=%g ksmps=%d; globals %d bytes",
		len(p.Instruments()), p.MaxOpcNo-p.MaxInsNo, p.Rates.Sr, p.Rates.Kr, p.Rates.Ksmps, p.Globals.Len)
	return p, nil
}

// ---------------------------------------------------------------------------
// Numbering
// ---------------------------------------------------------------------------

// number assigns instrument numbers. Declared numbers are kept; named-only
// instruments are numbered after the largest declared number, and
// user-defined opcodes after those.
func (c *compiler) number(orc *Orchestra) {
	p := c.prog
	owner := map[int]*InstrDef{}
	maxNo := 0

	c.scope = "orchestra"
	for _, def := range orc.Instruments {
		for _, n := range def.Numbers {
			if n < 1 {
				c.errorf(def.Line, "illegal instrument number %d", n)
				continue
			}
			if _, dup := owner[n]; dup {
				c.errorf(def.Line, "instrument %d redefined", n)
				continue
			}
			owner[n] = def
			maxNo = max(maxNo, n)
		}
	}

	next := maxNo
	named := map[*InstrDef]int{}
	for _, def := range orc.Instruments {
		if len(def.Numbers) == 0 {
			next++
			named[def] = next
		}
	}
	p.MaxInsNo = next
	for _, def := range orc.Opcodes {
		if _, dup := p.opcodes[def.Name]; dup {
			c.errorf(def.Line, "opcode %s redefined", def.Name)
			continue
		}
		next++
		p.opcodes[def.Name] = next
	}
	p.MaxOpcNo = next
	p.Templates = make([]*Template, next+1)
	p.Templates[0] = &Template{Number: 0}

	for _, def := range orc.Instruments {
		var t *Template
		nums := def.Numbers
		if n, ok := named[def]; ok {
			nums = []int{n}
		}
		for _, n := range nums {
			if n < 1 || owner[n] != nil && owner[n] != def {
				continue
			}
			if t == nil {
				t = &Template{Number: n, Line: def.Line}
			}
			t.Numbers = append(t.Numbers, n)
			p.Templates[n] = t
		}
		if t == nil {
			continue
		}
		c.instrs[def] = t
		for _, name := range def.Names {
			if _, dup := p.names[name]; dup {
				c.errorf(def.Line, "instrument %s redefined", name)
				continue
			}
			p.names[name] = t.Number
			t.Names = append(t.Names, name)
		}
	}

	for _, def := range orc.Opcodes {
		n := p.opcodes[def.Name]
		if p.Templates[n] != nil {
			continue
		}
		outs, ins := udoTypes(def.OutTypes), udoTypes(def.InTypes)
		p.Templates[n] = &Template{
			Number:     n,
			Numbers:    []int{n},
			IsOpcode:   true,
			OpcodeName: def.Name,
			OutTypes:   outs,
			InTypes:    ins,
			Line:       def.Line,
		}
		c.udos[def] = p.Templates[n]
		thread := opcode.ThreadInit | opcode.ThreadK
		if strings.ContainsRune(outs+ins, 'a') {
			thread |= opcode.ThreadA
		}
		p.Entries.Add(&opcode.Entry{
			Name:     def.Name,
			Thread:   thread,
			OutTypes: outs,
			InTypes:  ins,
			UDO:      true,
			Instr:    n,
		})
		log.Debugf("opcode %s assigned number %d", def.Name, n)
	}
}

// udoTypes normalizes a user-defined opcode signature; "0" means none.
func udoTypes(s string) string {
	s = strings.TrimSpace(s)
	if s == "0" {
		return ""
	}
	return s
}

// ---------------------------------------------------------------------------
// Header
// ---------------------------------------------------------------------------

// compileHeader compiles instrument 0. Assignments of literals to the
// reserved globals set the rates and are not emitted; everything else in the
// header must run at init time only.
func (c *compiler) compileHeader(body []*Statement) {
	c.scope = "header"
	var rest []*Statement
	for _, s := range body {
		if s.Opcode == "=" && len(s.Outputs) == 1 && reservedIndex(s.Outputs[0]) >= 0 {
			c.headerAssign(s)
			continue
		}
		rest = append(rest, s)
	}

	rates, err := ResolveRates(
		RateSpec{Sr: c.opts.Sr, Kr: c.opts.Kr, Ksmps: c.opts.Ksmps},
		c.headerRates,
	)
	c.prog.Rates = rates
	c.rateErr = err
	if err != nil {
		log.Errorf("%s", err)
	}

	c.prog.Nchnls = DefaultNchnls
	if c.nchnls > 0 {
		c.prog.Nchnls = int(c.nchnls)
	}
	if c.opts.Nchnls > 0 {
		c.prog.Nchnls = c.opts.Nchnls
	}
	c.prog.ZeroDBFS = DefaultZeroDBFS
	if c.zerodbfs > 0 {
		c.prog.ZeroDBFS = c.zerodbfs
	}
	if c.opts.ZeroDBFS > 0 {
		c.prog.ZeroDBFS = c.opts.ZeroDBFS
	}

	c.compileTemplate(c.prog.Templates[0], rest, nil)
}

func (c *compiler) headerAssign(s *Statement) {
	name := s.Outputs[0]
	if len(s.Inputs) != 1 {
		c.errorf(s.Line, "%s needs exactly one value", name)
		return
	}
	info := classifyArg(s.Inputs[0])
	if info.kind != argNumber {
		c.errorf(s.Line, "%s must be assigned a numeric constant, not %s", name, s.Inputs[0])
		return
	}
	if info.value <= 0 {
		c.errorf(s.Line, "%s must be positive", name)
		return
	}
	switch reservedIndex(name) {
	case ReservedSr:
		c.headerRates.Sr = info.value
	case ReservedKr:
		c.headerRates.Kr = info.value
	case ReservedKsmps:
		c.headerRates.Ksmps = info.value
	case ReservedNchnls:
		if info.value != float64(int(info.value)) {
			c.errorf(s.Line, "nchnls must be an integer")
			return
		}
		c.nchnls = info.value
	case Reserved0dbfs:
		c.zerodbfs = info.value
	}
}

// ---------------------------------------------------------------------------
// Template bodies
// ---------------------------------------------------------------------------

// compileTemplate runs the first pass over one body and finalizes its local
// layout. udo is non-nil for user-defined opcode bodies.
func (c *compiler) compileTemplate(t *Template, body []*Statement, udo *OpcodeDef) {
	if t.Number != 0 {
		c.scope = t.Name()
	}
	c.current = t
	c.udo = udo
	c.locals.Reset()
	c.collectLabels(body)

	for _, s := range body {
		if s.Opcode == "" {
			continue
		}
		if op := c.compileStatement(s); op != nil {
			t.Ops = append(t.Ops, op)
		}
	}

	c.finalizeLocals(t)
	c.current = nil
	c.udo = nil
}

// collectLabels maps every label to the index of the opcode following it.
func (c *compiler) collectLabels(body []*Statement) {
	c.labels = make(map[string]int)
	idx := 0
	for _, s := range body {
		if s.Label != "" {
			if _, dup := c.labels[s.Label]; dup {
				c.errorf(s.Line, "duplicate label %s", s.Label)
			} else {
				c.labels[s.Label] = idx
			}
		}
		if s.Opcode != "" {
			idx++
		}
	}
}

func (c *compiler) compileStatement(s *Statement) *OpText {
	errs := c.count

	entry, num, ok := c.selectEntry(s)
	if !ok {
		return nil
	}
	if c.current.Number == 0 && entry.Init == nil {
		c.errorf(s.Line, "%s is not an init-time opcode and cannot appear in the header", s.Opcode)
		return nil
	}
	if entry.UDO && c.udo != nil && entry.Instr == c.current.Number {
		c.errorf(s.Line, "opcode %s calls itself", s.Opcode)
		return nil
	}

	op := &OpText{
		EntryNum: num,
		Entry:    entry,
		Outputs:  s.Outputs,
		Inputs:   s.Inputs,
		Label:    s.Label,
		Line:     s.Line,
	}

	switch entry.Name {
	case "xin":
		c.checkUDOSignature(s, "xin", s.Outputs, true)
	case "xout":
		c.checkUDOSignature(s, "xout", s.Inputs, false)
	}

	op.In = c.bindInputs(s, entry)
	op.Out = c.bindOutputs(s, entry)

	if c.count > errs {
		return nil
	}
	return op
}

// selectEntry finds the entry for a statement. Polymorphic opcodes are
// registered as "name.T" and chosen by the type of the first output, or of
// the first input when there are no outputs.
func (c *compiler) selectEntry(s *Statement) (*opcode.Entry, int, bool) {
	table := c.prog.Entries
	if e, idx, ok := table.Lookup(s.Opcode); ok {
		return e, idx, true
	}
	variants := table.Variants(s.Opcode)
	if len(variants) == 0 {
		c.errorf(s.Line, "unknown opcode %s", s.Opcode)
		return nil, -1, false
	}

	var typ byte
	switch {
	case len(s.Outputs) > 0:
		typ = c.argType(s.Outputs[0])
	case len(s.Inputs) > 0:
		typ = c.argType(s.Inputs[0])
	}
	if typ == 0 {
		c.errorf(s.Line, "cannot select a variant of %s", s.Opcode)
		return nil, -1, false
	}
	if e, idx, ok := table.Lookup(s.Opcode + "." + string(typ)); ok {
		return e, idx, true
	}
	c.errorf(s.Line, "%s has no variant for type %c", s.Opcode, typ)
	return nil, -1, false
}

// argType returns the rate type an argument text selects variants by.
// Constants, p-fields and reserved globals count as i-rate.
func (c *compiler) argType(text string) byte {
	info := classifyArg(text)
	switch info.kind {
	case argNumber, argPField, argReserved:
		return 'i'
	case argString:
		return 'S'
	case argGlobal, argLocal:
		return info.typ
	}
	return 0
}

// checkUDOSignature matches xin outputs against the opcode's input types, or
// xout inputs against its output types.
func (c *compiler) checkUDOSignature(s *Statement, name string, args []string, in bool) {
	if c.udo == nil {
		c.errorf(s.Line, "%s used outside of a user-defined opcode", name)
		return
	}
	want := udoTypes(c.udo.OutTypes)
	if in {
		want = udoTypes(c.udo.InTypes)
	}
	if len(args) != len(want) {
		c.errorf(s.Line, "%s has %d arguments, opcode %s declares %d", name, len(args), c.udo.Name, len(want))
		return
	}
	for i, a := range args {
		typ := c.argType(a)
		if !acceptsInput(want[i], typ, classifyArg(a).kind) {
			c.errorf(s.Line, "%s argument %d (%s) does not match declared type %c", name, i+1, a, want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Argument binding
// ---------------------------------------------------------------------------

// Optional input defaults.
var optionalDefaults = map[byte]float64{
	'o': 0,
	'p': 1,
	'q': 10,
	'v': 0.5,
	'j': -1,
	'h': 127,
}

func isVariadicIn(code byte) bool {
	switch code {
	case 'm', 'z', 'y', 'M', '*':
		return true
	}
	return false
}

// acceptsInput reports whether an argument of rate type typ satisfies an
// input code.
func acceptsInput(code, typ byte, kind argKind) bool {
	scalar := typ == 'i' || kind == argNumber || kind == argPField || kind == argReserved
	switch code {
	case 'i', 'm', 'o', 'p', 'q', 'v', 'j', 'h':
		return scalar
	case 'k', 'z':
		return scalar || typ == 'k'
	case 'a', 'y':
		return typ == 'a'
	case 'x':
		return scalar || typ == 'k' || typ == 'a'
	case 'S':
		return typ == 'S'
	case 'T':
		return typ == 'S' || scalar
	case 'U':
		return typ == 'S' || typ == 'k' || scalar
	case 'w', 'f', 't':
		return typ == code
	case 'M', '*':
		return true
	}
	return false
}

// bindInputs checks the inputs of s against the entry's grammar and returns
// their provisional operands, with defaults appended for omitted optional
// arguments.
func (c *compiler) bindInputs(s *Statement, e *opcode.Entry) []Operand {
	codes := e.InTypes
	var out []Operand
	i := 0
	for ci := 0; ci < len(codes); ci++ {
		code := codes[ci]
		if isVariadicIn(code) {
			for ; i < len(s.Inputs); i++ {
				out = append(out, c.bindInput(s, code, s.Inputs[i]))
			}
			break
		}
		if i >= len(s.Inputs) {
			if def, ok := optionalDefaults[code]; ok {
				out = append(out, Operand{Kind: OperandConst, Type: 'c', Index: c.floats.Intern(def)})
				continue
			}
			c.errorf(s.Line, "too few input arguments for %s", s.Opcode)
			return out
		}
		out = append(out, c.bindInput(s, code, s.Inputs[i]))
		i++
	}
	if i < len(s.Inputs) {
		c.errorf(s.Line, "too many input arguments for %s", s.Opcode)
	}

	if e.RefersInstr && len(s.Inputs) > 0 {
		if info := classifyArg(s.Inputs[0]); info.kind == argString {
			name := Unquote(s.Inputs[0])
			if _, ok := c.prog.names[name]; !ok {
				c.errorf(s.Line, "undefined instrument %s", name)
			}
		}
	}
	return out
}

func (c *compiler) bindInput(s *Statement, code byte, text string) Operand {
	if code == 'l' {
		target, ok := c.labels[text]
		if !ok {
			c.errorf(s.Line, "undefined label %s", text)
			return Operand{}
		}
		o := Operand{Kind: OperandLabel, Type: 'l', Index: target}
		o.resolve(target)
		return o
	}

	info := classifyArg(text)
	if info.err != "" {
		c.errorf(s.Line, "%s", info.err)
		return Operand{}
	}
	typ := c.argType(text)
	if !acceptsInput(code, typ, info.kind) {
		c.errorf(s.Line, "argument %s of %s has type %c, expected %c", text, s.Opcode, typ, code)
		return Operand{}
	}

	switch info.kind {
	case argNumber:
		return Operand{Kind: OperandConst, Type: 'c', Index: c.floats.Intern(info.value)}
	case argString:
		return Operand{Kind: OperandStrConst, Type: 'S', Class: ClassString, Index: c.strs.Intern(text)}
	case argPField:
		c.current.PMax = max(c.current.PMax, info.pnum)
		o := Operand{Kind: OperandPField, Type: 'p', Index: info.pnum}
		o.resolve(info.pnum)
		return o
	case argReserved:
		o := Operand{Kind: OperandGlobal, Type: 'i', Class: ClassScalar, Index: info.pnum}
		o.resolve(ReservedAddr(info.pnum))
		return o
	case argGlobal:
		ent := c.globals.Lookup(text)
		if ent == nil {
			c.errorf(s.Line, "global %s used before defined", text)
			return Operand{}
		}
		return Operand{Kind: OperandGlobal, Type: ent.Type, Class: ent.Class, Index: ent.Index}
	case argLocal:
		ent := c.locals.Lookup(text)
		if ent == nil {
			c.errorf(s.Line, "%s used before defined", text)
			return Operand{}
		}
		return Operand{Kind: OperandLocal, Type: ent.Type, Class: ent.Class, Index: ent.Index}
	}
	return Operand{}
}

// Output codes accepted for each argument type.
func acceptsOutput(code, typ byte) bool {
	switch code {
	case 'X':
		return typ == 'a' || typ == 'k' || typ == 'i'
	case 'm':
		return typ == 'a'
	case 'z':
		return typ == 'k'
	case '*':
		return true
	}
	return code == typ
}

// bindOutputs checks the outputs of s and declares new variables.
func (c *compiler) bindOutputs(s *Statement, e *opcode.Entry) []Operand {
	codes := e.OutTypes
	variadic := len(codes) > 0 && strings.IndexByte("mz*", codes[len(codes)-1]) >= 0
	switch {
	case !variadic && len(s.Outputs) > len(codes):
		c.errorf(s.Line, "too many output arguments for %s", s.Opcode)
		return nil
	case variadic && len(s.Outputs) < len(codes)-1, !variadic && len(s.Outputs) < len(codes):
		c.errorf(s.Line, "too few output arguments for %s", s.Opcode)
		return nil
	}

	var out []Operand
	for i, text := range s.Outputs {
		code := codes[min(i, len(codes)-1)]
		out = append(out, c.bindOutput(s, code, text))
	}
	return out
}

func (c *compiler) bindOutput(s *Statement, code byte, text string) Operand {
	info := classifyArg(text)
	switch info.kind {
	case argInvalid:
		c.errorf(s.Line, "%s", info.err)
		return Operand{}
	case argNumber, argString:
		c.errorf(s.Line, "cannot assign to constant %s", text)
		return Operand{}
	case argPField:
		c.errorf(s.Line, "cannot assign to p-field %s", text)
		return Operand{}
	case argReserved:
		c.errorf(s.Line, "cannot assign to %s outside the header", text)
		return Operand{}
	}
	if !acceptsOutput(code, info.typ) {
		c.errorf(s.Line, "output %s of %s has type %c, expected %c", text, s.Opcode, info.typ, code)
		return Operand{}
	}

	table := c.locals
	kind := OperandLocal
	if info.kind == argGlobal {
		table = c.globals
		kind = OperandGlobal
	}
	ent := table.Lookup(text)
	if ent == nil {
		class, _ := classOfType(info.typ)
		ent = table.Add(text, info.typ, class)
	}
	ent.Defined = true
	return Operand{Kind: kind, Type: ent.Type, Class: ent.Class, Index: ent.Index}
}

// ---------------------------------------------------------------------------
// Final layout
// ---------------------------------------------------------------------------

// classBases returns the fixed-pool word offset of each fixed class, given
// per-class counts and the words preceding the first class.
func classBases(counts Counts, start int) (bases [numClasses]int, fixed int) {
	w := start
	for _, cl := range []VarClass{ClassScalar, ClassSpectral, ClassFsig, ClassArray} {
		bases[cl] = w
		w += counts[cl] * cl.Words()
	}
	return bases, w
}

// slotAddr returns the byte address of slot idx of a class.
func slotAddr(class VarClass, idx int, bases [numClasses]int, l Layout, ksmps, strLen int) int {
	switch class {
	case ClassAudio:
		return l.AudioBase() + idx*ksmps*FloatSize
	case ClassString:
		return l.StringBase(ksmps) + idx*strLen
	}
	return (bases[class] + idx*class.Words()) * FloatSize
}

// finalizeLocals freezes the local counts of t, computes its layout and
// resolves every local operand.
func (c *compiler) finalizeLocals(t *Template) {
	ksmps := c.prog.Rates.Ksmps
	for cl := VarClass(0); cl < numClasses; cl++ {
		t.Counts[cl] = c.locals.Count(cl)
	}
	bases, fixed := classBases(t.Counts, 0)
	t.Layout = ComputeLayout(fixed, t.Counts[ClassAudio], t.Counts[ClassString], ksmps, c.prog.StrVarMaxLen)
	t.PMax = max(t.PMax, 3)

	for _, op := range t.Ops {
		for _, ops := range [][]Operand{op.Out, op.In} {
			for i := range ops {
				if ops[i].Kind == OperandLocal {
					ops[i].resolve(slotAddr(ops[i].Class, ops[i].Index, bases, t.Layout, ksmps, c.prog.StrVarMaxLen))
				}
			}
		}
	}
	log.Debugf("%s: %d ops, lclfixed=%d acnt=%d scnt=%d localen=%d",
		t.Name(), len(t.Ops), t.Layout.Fixed, t.Layout.ACount, t.Layout.SCount, t.Layout.Len)
}

// finalizeGlobals lays out the global data space and resolves every global,
// constant and string-constant operand. Any operand left unresolved, or a
// label outside its template, is an internal error.
//
// Global words: reserved | numeric constants | scalars | w | f | t, then the
// audio vectors and string slots.
func (c *compiler) finalizeGlobals() error {
	p := c.prog
	ksmps := p.Rates.Ksmps

	for cl := VarClass(0); cl < numClasses; cl++ {
		p.GlobalCounts[cl] = c.globals.Count(cl)
	}
	p.FloatConsts = c.floats.Values()
	p.ConstBase = numReserved
	bases, fixed := classBases(p.GlobalCounts, numReserved+len(p.FloatConsts))
	p.Globals = ComputeLayout(fixed, p.GlobalCounts[ClassAudio], p.GlobalCounts[ClassString], ksmps, p.StrVarMaxLen)
	p.StringConsts, p.StrOffsets = c.strs.Decode()

	seen := map[*Template]bool{}
	for _, t := range p.Templates {
		if t == nil || seen[t] {
			continue
		}
		seen[t] = true
		for oi, op := range t.Ops {
			for _, ops := range [][]Operand{op.Out, op.In} {
				for i := range ops {
					o := &ops[i]
					switch o.Kind {
					case OperandGlobal:
						if !o.Resolved {
							o.resolve(slotAddr(o.Class, o.Index, bases, p.Globals, ksmps, p.StrVarMaxLen))
						}
					case OperandConst:
						o.resolve((p.ConstBase + o.Index) * FloatSize)
					case OperandStrConst:
						o.resolve(p.StrOffsets[o.Index])
					case OperandLabel:
						if o.Addr < 0 || o.Addr > len(t.Ops) {
							return pkgerrors.WithStack(fmt.Errorf("%w: %s op %d: label target %d out of range",
								ErrInternal, t.Name(), oi, o.Addr))
						}
					}
					if !o.Resolved {
						return pkgerrors.WithStack(fmt.Errorf("%w: %s op %d (%s): operand %s unresolved",
							ErrInternal, t.Name(), oi, op.Entry.Name, o))
					}
				}
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Dump
// ---------------------------------------------------------------------------

// Dump writes a readable listing of the layout, one template per block.
func (p *Program) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sr=%g kr=%g ksmps=%d nchnls=%d 0dbfs=%g\n",
		p.Rates.Sr, p.Rates.Kr, p.Rates.Ksmps, p.Nchnls, p.ZeroDBFS)
	fmt.Fprintf(&b, "globals: fixed=%d acnt=%d scnt=%d len=%d consts=%v\n",
		p.Globals.Fixed, p.Globals.ACount, p.Globals.SCount, p.Globals.Len, p.FloatConsts)
	nums := make([]int, 0, len(p.Templates))
	for n, t := range p.Templates {
		if t != nil && t.Number == n {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	for _, n := range nums {
		t := p.Templates[n]
		fmt.Fprintf(&b, "%s: localen=%d lclfixed=%d pmax=%d\n", t.Name(), t.Layout.Len, t.Layout.Fixed, t.PMax)
		for i, op := range t.Ops {
			fmt.Fprintf(&b, "  %3d %-10s", i, op.Entry.Name)
			for _, o := range op.Out {
				b.WriteString(" " + o.String())
			}
			b.WriteString(" <-")
			for _, o := range op.In {
				b.WriteString(" " + o.String())
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
