package opcode

// ---------------------------------------------------------------------------
// Assignment, arithmetic and simple generators
// ---------------------------------------------------------------------------

func assign(op *Op) int {
	op.Out[0].Set(op.In[0].Float())
	return OK
}

func assignAudio(op *Op) int {
	op.Out[0].CopyFrom(op.In[0])
	return OK
}

func assignString(op *Op) int {
	op.Out[0].SetString(op.In[0].String())
	return OK
}

type binop int

const (
	opAdd binop = iota
	opSub
	opMul
	opDiv
)

func (b binop) apply(x, y float64) (float64, bool) {
	switch b {
	case opAdd:
		return x + y, true
	case opSub:
		return x - y, true
	case opMul:
		return x * y, true
	case opDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	}
	return 0, false
}

func arith(b binop) Func {
	return func(op *Op) int {
		v, ok := b.apply(op.In[0].Float(), op.In[1].Float())
		if !ok {
			op.Host.Warning("instr %d line %d: division by zero", op.Note.InsNo(), op.Line)
			return NotOK
		}
		op.Out[0].Set(v)
		return OK
	}
}

func arithAudio(b binop) Func {
	return func(op *Op) int {
		out := op.Out[0].Vector()
		x, y := op.In[0], op.In[1]
		for i := range out {
			v, ok := b.apply(x.Sample(i), y.Sample(i))
			if !ok {
				v = 0
			}
			out[i] = v
		}
		return OK
	}
}

type lineState struct {
	val  float64
	incr float64
}

// lineInit sets up a ramp from ia to ib over idur seconds. The increment is per
// control period for the k-rate form and per sample for the audio form.
func lineInit(op *Op) int {
	ia, idur, ib := op.In[0].Float(), op.In[1].Float(), op.In[2].Float()
	st := &lineState{val: ia}
	if idur > 0 {
		rate := op.Host.Kr()
		if op.Out[0].IsAudio() {
			rate = op.Host.Sr()
		}
		st.incr = (ib - ia) / (idur * rate)
	}
	op.State = st
	return OK
}

func lineK(op *Op) int {
	st := op.State.(*lineState)
	op.Out[0].Set(st.val)
	st.val += st.incr
	return OK
}

func lineA(op *Op) int {
	st := op.State.(*lineState)
	out := op.Out[0].Vector()
	for i := range out {
		out[i] = st.val
		st.val += st.incr
	}
	return OK
}

// out mixes each input into the output bus channel of the same position.
func out(op *Op) int {
	spout := op.Host.Spout()
	nch := op.Host.Nchnls()
	for ch, in := range op.In {
		if ch >= nch {
			break
		}
		sig := in.Vector()
		for i, v := range sig {
			spout[i*nch+ch] += v
		}
	}
	return OK
}

type delayState struct {
	buf []float64
	pos int
}

func delayInit(op *Op) int {
	n := int(op.In[1].Float()*op.Host.Sr() + 0.5)
	if n < 0 {
		op.Host.Warning("instr %d line %d: negative delay time", op.Note.InsNo(), op.Line)
		return NotOK
	}
	st := &delayState{}
	if n > 0 {
		st.buf = op.Note.AuxAlloc(n)
	}
	op.State = st
	return OK
}

func delayPerf(op *Op) int {
	st := op.State.(*delayState)
	in := op.In[0].Vector()
	out := op.Out[0].Vector()
	if len(st.buf) == 0 {
		copy(out, in)
		return OK
	}
	for i := range out {
		out[i] = st.buf[st.pos]
		st.buf[st.pos] = in[i]
		st.pos++
		if st.pos == len(st.buf) {
			st.pos = 0
		}
	}
	return OK
}
