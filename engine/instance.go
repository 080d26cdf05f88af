package engine

import (
	"io"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/opcode"
)

// ---------------------------------------------------------------------------
// Instance: one sounding note
// ---------------------------------------------------------------------------

// InstState is the lifecycle state of an instance.
type InstState uint8

const (
	Free InstState = iota
	Active
	Deactivating
)

func (s InstState) String() string {
	switch s {
	case Free:
		return "free"
	case Active:
		return "active"
	case Deactivating:
		return "deactivating"
	}
	return "unknown"
}

// nilHandle terminates the index-linked lists.
const nilHandle = -1

// Instance is a concrete note allocated from a template. Its local block is
// sized exactly Template.Localen() and is kept across reuse.
type Instance struct {
	handle int
	tmpl   *compiler.Template
	engine *Engine

	insno int
	p1    float64
	p     []float64
	block []float64
	local space
	ops   []*opcode.Op
	state InstState

	start      float64 // seconds
	startBeat  float64
	offtim     float64 // seconds
	offbt      float64 // beats
	indefinite bool

	// active list (doubly linked) and turnoff list (singly linked)
	prev, next int
	nextOff    int
	onOff      bool

	aux      [][]float64
	files    []io.Closer
	children []*Instance
	caller   *opcode.Op
	jump     int
}

// Handle is the instance's arena index.
func (in *Instance) Handle() int { return in.handle }

// State returns the lifecycle state.
func (in *Instance) State() InstState { return in.state }

// Template returns the template the instance was allocated from.
func (in *Instance) Template() *compiler.Template { return in.tmpl }

// Block returns the local data block.
func (in *Instance) Block() []float64 { return in.block }

// OffTime returns the scheduled off-time in seconds, and false for
// indefinite notes.
func (in *Instance) OffTime() (float64, bool) {
	return in.offtim, !in.indefinite
}

// opcode.Note

func (in *Instance) InsNo() int { return in.insno }

func (in *Instance) P(n int) float64 {
	if n < 0 || n >= len(in.p) {
		return 0
	}
	return in.p[n]
}

func (in *Instance) Goto(target int) {
	in.jump = target
}

func (in *Instance) Turnoff() {
	if in.state != Active {
		return
	}
	if in.caller != nil {
		in.caller.Note.Turnoff()
		return
	}
	in.state = Deactivating
	in.engine.deferred = append(in.engine.deferred, in.handle)
}

func (in *Instance) AuxAlloc(n int) []float64 {
	buf := make([]float64, n)
	in.aux = append(in.aux, buf)
	in.engine.stats.AuxBytes += int64(n * compiler.FloatSize)
	return buf
}

func (in *Instance) RegisterFile(c io.Closer) {
	in.files = append(in.files, c)
}

func (in *Instance) Caller() *opcode.Op {
	return in.caller
}

// ---------------------------------------------------------------------------
// Creation and release
// ---------------------------------------------------------------------------

// newNote takes an instance of t from its free list, or allocates one, and
// clears it for a new activation.
func (e *Engine) newNote(t *compiler.Template) (*Instance, error) {
	in, reused, err := e.alloc.get(t, e.makeInstance)
	if err != nil {
		return nil, err
	}
	if reused {
		e.stats.Reuses++
		clear(in.block)
		clear(in.p)
	} else {
		e.stats.Allocations++
		e.stats.InstanceBytes += int64(t.Localen())
	}
	in.state = Active
	in.insno = t.Number
	in.p1 = 0
	in.start, in.startBeat = e.CurTime(), e.sched.curBeat
	in.offtim, in.offbt, in.indefinite = 0, 0, true
	in.prev, in.next, in.nextOff, in.onOff = nilHandle, nilHandle, nilHandle, false
	in.caller = nil
	in.jump = -1
	for _, op := range in.ops {
		op.State = nil
	}
	return in, nil
}

// makeInstance allocates a local block of exactly localen bytes and binds
// every opcode of t to it.
func (e *Engine) makeInstance(t *compiler.Template, handle int) *Instance {
	in := &Instance{
		handle: handle,
		tmpl:   t,
		engine: e,
		p:      make([]float64, t.PMax+1),
		block:  make([]float64, t.Localen()/compiler.FloatSize),
	}
	in.local = space{words: in.block, bytes: byteView(in.block)}
	in.ops = make([]*opcode.Op, len(t.Ops))
	for i, ot := range t.Ops {
		op := &opcode.Op{
			Entry:   ot.Entry,
			Out:     make([]opcode.Arg, len(ot.Out)),
			In:      make([]opcode.Arg, len(ot.In)),
			InNames: ot.Inputs,
			Line:    ot.Line,
			Note:    in,
			Host:    e,
		}
		for j, o := range ot.Out {
			op.Out[j] = e.bind(o, in.local, in.p)
		}
		for j, o := range ot.In {
			op.In[j] = e.bind(o, in.local, in.p)
		}
		in.ops[i] = op
	}
	return in
}

// release frees the note's aux memory, closes its files, releases any
// user-defined opcode bodies it called and returns it to the free list.
func (e *Engine) release(in *Instance) {
	for _, c := range in.children {
		e.release(c)
	}
	in.children = in.children[:0]
	for _, buf := range in.aux {
		e.stats.AuxBytes -= int64(len(buf) * compiler.FloatSize)
	}
	in.aux = nil
	for _, f := range in.files {
		if err := f.Close(); err != nil {
			log.Warningf("instr %d: closing file: %s", in.insno, err)
		}
	}
	in.files = nil
	in.state = Free
	in.caller = nil
	e.alloc.put(in)
}
