package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/orc/opcode"
	"github.com/nalgeon/be"
)

func compileText(t *testing.T, src string, opts Options) (*Program, error) {
	t.Helper()
	orc, err := Read(src)
	be.Err(t, err, nil)
	return Compile(orc, opts)
}

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := compileText(t, src, Options{})
	be.Err(t, err, nil)
	return p
}

const twoInstr = `
sr = 44100
ksmps = 10
nchnls = 1

instr 1
k1 line 0, p3, 1
a1 line 0, p3, 1
out a1
endin

instr 2
i1 = p4
print i1
endin
`

func TestCompileRatesFromHeader(t *testing.T) {
	p := mustCompile(t, twoInstr)
	be.Equal(t, p.Rates.Sr, 44100.0)
	be.Equal(t, p.Rates.Kr, 4410.0)
	be.Equal(t, p.Rates.Ksmps, 10)
	be.Equal(t, p.Nchnls, 1)
	be.Equal(t, p.ZeroDBFS, float64(DefaultZeroDBFS))
	// rate assignments are captured, not emitted
	be.Equal(t, len(p.Header().Ops), 0)
}

func TestCompileLocalLayout(t *testing.T) {
	p := mustCompile(t, twoInstr)
	t1, ok := p.Instr(1)
	be.True(t, ok)

	be.Equal(t, t1.Counts.Of(ClassScalar), 1)
	be.Equal(t, t1.Counts.Of(ClassAudio), 1)
	be.Equal(t, t1.LclFixed(), 1)
	be.Equal(t, t1.Localen(), 88) // 1 word + 10 samples

	k1 := t1.Ops[0].Out[0]
	a1 := t1.Ops[1].Out[0]
	be.Equal(t, k1.Kind, OperandLocal)
	be.Equal(t, k1.Addr, 0)
	be.Equal(t, a1.Kind, OperandLocal)
	be.Equal(t, a1.Addr, 8)
	be.Equal(t, t1.Ops[2].In[0].Addr, 8)

	p3 := t1.Ops[0].In[1]
	be.Equal(t, p3.Kind, OperandPField)
	be.Equal(t, p3.Addr, 3)

	t2, _ := p.Instr(2)
	be.Equal(t, t2.PMax, 4)
	be.Equal(t, t2.Ops[0].Entry.Name, "=.i")
}

func TestCompileConstants(t *testing.T) {
	p := mustCompile(t, twoInstr)
	be.Equal(t, p.FloatConsts, []float64{0, 1})
	t1, _ := p.Instr(1)
	zero := t1.Ops[0].In[0]
	one := t1.Ops[0].In[2]
	be.Equal(t, zero.Kind, OperandConst)
	be.Equal(t, zero.Addr, (numReserved+0)*FloatSize)
	be.Equal(t, one.Addr, (numReserved+1)*FloatSize)
}

func TestConstantDedup(t *testing.T) {
	p := mustCompile(t, `
instr 1
k1 line 1.0, p3, 1.0
k2 line 1.0, 2, 3
endin
`)
	t1, _ := p.Instr(1)
	a := t1.Ops[0].In[0]
	b := t1.Ops[0].In[2]
	c := t1.Ops[1].In[0]
	be.Equal(t, a.Index, b.Index)
	be.Equal(t, a.Addr, b.Addr)
	be.Equal(t, a.Addr, c.Addr)
	be.Equal(t, len(p.FloatConsts), 3)
}

func TestLocalenInvariant(t *testing.T) {
	src := `
ksmps = 32
instr 1
S1 = "hello"
a1 line 0, 1, 1
a2 line 1, 1, 0
k1 line 0, 1, 1
i1 = 4
out a1, a2
endin
instr 2
k1 line 0, 1, 1
endin
`
	for _, strLen := range []int{16, 256, 100} {
		p, err := compileText(t, src, Options{StrVarMaxLen: strLen})
		be.Err(t, err, nil)
		for _, tm := range p.Instruments() {
			l := tm.Layout
			want := align8(l.Fixed*FloatSize + l.ACount*p.Rates.Ksmps*FloatSize + l.SCount*strLen)
			be.Equal(t, l.Len, want)
		}
	}
}

func TestLayoutDeterministic(t *testing.T) {
	src := `
gk1 init 0
instr 1
k1 line 0, p3, 1
k2 = k1
a1 line 0, p3, 1
S1 = "x"
chnset k2, "gain"
out a1
endin
instr 2, lead
i1 = p4
endin
`
	a := mustCompile(t, src)
	b := mustCompile(t, src)
	be.Equal(t, a.Dump(), b.Dump())
	be.Equal(t, a.Globals, b.Globals)
	be.Equal(t, a.FloatConsts, b.FloatConsts)
}

func TestGlobalLayout(t *testing.T) {
	p := mustCompile(t, `
gk1 init 0.5
ga1 init 0
instr 1
k1 = gk1
endin
`)
	be.Equal(t, p.ConstBase, numReserved)
	be.Equal(t, p.FloatConsts, []float64{0.5, 0})
	be.Equal(t, p.GlobalCounts.Of(ClassScalar), 1)
	be.Equal(t, p.GlobalCounts.Of(ClassAudio), 1)
	be.Equal(t, p.Globals.Fixed, numReserved+2+1)
	be.Equal(t, p.Globals.Len, align8(8*FloatSize+10*FloatSize))

	hdr := p.Header()
	be.Equal(t, len(hdr.Ops), 2)
	be.Equal(t, hdr.Ops[0].Out[0].Addr, 7*FloatSize)
	be.Equal(t, hdr.Ops[1].Out[0].Addr, 8*FloatSize)

	t1, _ := p.Instr(1)
	be.Equal(t, t1.Ops[0].In[0].Kind, OperandGlobal)
	be.Equal(t, t1.Ops[0].In[0].Addr, 7*FloatSize)
}

func TestReservedGlobalRead(t *testing.T) {
	p := mustCompile(t, `
instr 1
i1 = sr
endin
`)
	t1, _ := p.Instr(1)
	be.Equal(t, t1.Ops[0].In[0].Addr, ReservedAddr(ReservedSr))
}

func TestStringConstants(t *testing.T) {
	p := mustCompile(t, `
instr 1
fprints "out.txt", "a\tb\n"
fprints "out.txt", "%d\n", 1
endin
`)
	be.Equal(t, p.StrOffsets, []int{0, 8, 13})
	be.Equal(t, string(p.StringConsts[:8]), "out.txt\x00")
	be.Equal(t, string(p.StringConsts[8:13]), "a\tb\n\x00")

	t1, _ := p.Instr(1)
	be.Equal(t, t1.Ops[0].In[0].Kind, OperandStrConst)
	be.Equal(t, t1.Ops[0].In[0].Addr, 0)
	be.Equal(t, t1.Ops[1].In[0].Addr, 0)
	be.Equal(t, t1.Ops[0].In[1].Addr, 8)
}

func TestLocalStringSlots(t *testing.T) {
	p := mustCompile(t, `
ksmps = 4
instr 1
S1 = "a"
S2 = "b"
a1 line 0, 1, 1
k1 line 0, 1, 1
endin
`)
	t1, _ := p.Instr(1)
	be.Equal(t, t1.Layout.SCount, 2)
	// fixed: k1; audio: 4 samples; strings follow
	be.Equal(t, t1.Ops[0].Out[0].Addr, 8+4*8)
	be.Equal(t, t1.Ops[1].Out[0].Addr, 8+4*8+DefaultStrVarMaxLen)
}

func TestOptionalDefaults(t *testing.T) {
	entries := opcode.Builtins()
	entries.Add(&opcode.Entry{
		Name:    "opt",
		Thread:  opcode.ThreadInit,
		InTypes: "iopq",
		Init:    func(*opcode.Op) int { return opcode.OK },
	})
	orc, err := ReadWith("instr 1\nopt 5, 7\nendin\n", entries)
	be.Err(t, err, nil)
	p, err := Compile(orc, Options{Entries: entries})
	be.Err(t, err, nil)
	_, _, extended := entries.Lookup("dbl")
	be.True(t, !extended)

	t1, _ := p.Instr(1)
	in := t1.Ops[0].In
	be.Equal(t, len(in), 4)
	be.Equal(t, p.FloatConsts, []float64{5, 7, 1, 10})
	be.Equal(t, in[2].Addr, (numReserved+2)*FloatSize)
}

func TestCompileOpcodes(t *testing.T) {
	p := mustCompile(t, `
opcode dbl, k, k
kin xin
kout mul kin, 2
xout kout
endop

instr 1
k1 dbl 3
endin
`)
	be.Equal(t, p.MaxInsNo, 1)
	be.Equal(t, p.MaxOpcNo, 2)

	udo, ok := p.Opcode("dbl")
	be.True(t, ok)
	be.Equal(t, udo.Number, 2)
	be.True(t, udo.IsOpcode)
	be.Equal(t, udo.InTypes, "k")
	be.Equal(t, len(udo.Ops), 3)

	e, _, ok := p.Entries.Lookup("dbl")
	be.True(t, ok)
	be.True(t, e.UDO)
	be.Equal(t, e.Instr, 2)

	t1, _ := p.Instr(1)
	be.Equal(t, t1.Ops[0].Entry, e)
}

func TestNamedInstrumentNumbers(t *testing.T) {
	p := mustCompile(t, `
instr 3
schedule "lead", 0, 1
endin
instr lead
k1 line 0, 1, 1
endin
instr pad
k1 line 0, 1, 1
endin
`)
	be.Equal(t, p.MaxInsNo, 5)
	n, ok := p.InstrNumber("lead")
	be.True(t, ok)
	be.Equal(t, n, 4)
	pad, ok := p.InstrByName("pad")
	be.True(t, ok)
	be.Equal(t, pad.Number, 5)
	be.Equal(t, len(p.Instruments()), 3)
}

func TestAliasedInstrument(t *testing.T) {
	p := mustCompile(t, `
instr 1, 2, both
k1 line 0, 1, 1
endin
`)
	a, _ := p.Instr(1)
	b, _ := p.Instr(2)
	be.True(t, a == b)
	be.Equal(t, a.Numbers, []int{1, 2})
	be.Equal(t, len(p.Instruments()), 1)
}

func TestCompileRateMismatch(t *testing.T) {
	_, err := compileText(t, `
sr = 44100
kr = 441
ksmps = 99
instr 1
k1 line 0, 1, 1
endin
`, Options{})
	be.Err(t, err, ErrRateMismatch)
	var ce *CompileError
	be.True(t, errors.As(err, &ce))
	be.Equal(t, ce.Count, 0)
}

func TestCompileRateOverride(t *testing.T) {
	p, err := compileText(t, twoInstr, Options{Ksmps: 100, Kr: 441})
	be.Err(t, err, nil)
	be.Equal(t, p.Rates.Ksmps, 100)
	t1, _ := p.Instr(1)
	be.Equal(t, t1.Localen(), 8+100*8)
}
