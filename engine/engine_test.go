package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/opcode"
)

const testOrc = `
sr = 100
ksmps = 10
nchnls = 1

instr 1
a1 line 0, p3, 1
out a1
endin

instr 2
i1 table 0, 99
endin

instr 3
k1 div 1, 0
endin

instr 4
i1 table 3, 1
chnset i1, "tab"
endin
`

func compileOrc(t *testing.T, src string) *compiler.Program {
	t.Helper()
	orc, err := compiler.Read(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	prog, err := compiler.Compile(orc, compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func newTestEngine(t *testing.T, orc, score string, opts Options) *Engine {
	t.Helper()
	if score != "" {
		s, err := ReadScore(score)
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		opts.Score = s
	}
	e, err := New(compileOrc(t, orc), opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func perform(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Perform(context.Background()); err != nil {
		t.Fatalf("perform: %v", err)
	}
}

func cycles(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := e.PerformKsmps(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewEngineRates(t *testing.T) {
	e := newTestEngine(t, testOrc, "", Options{})
	if e.Sr() != 100 || e.Kr() != 10 || e.Ksmps() != 10 || e.Nchnls() != 1 {
		t.Errorf("rates: sr=%g kr=%g ksmps=%d nchnls=%d", e.Sr(), e.Kr(), e.Ksmps(), e.Nchnls())
	}
	if len(e.Spout()) != 10 {
		t.Errorf("spout length = %d, want 10", len(e.Spout()))
	}
	if e.RunID().String() == "" {
		t.Error("missing run id")
	}
	// reserved globals are readable from the data space
	if e.mem.words[compiler.ReservedSr] != 100 || e.mem.words[compiler.ReservedKsmps] != 10 {
		t.Errorf("reserved globals: %v", e.mem.words[:5])
	}
}

func TestFreeListReuse(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\ni1 2 1\ne\n", Options{})

	cycles(t, e, 1)
	first := e.alloc.insts[e.alloc.actHead]
	block := &first.Block()[0]
	if len(first.Block())*compiler.FloatSize != first.Template().Localen() {
		t.Errorf("block is %d words, localen %d", len(first.Block()), first.Template().Localen())
	}

	cycles(t, e, 20)
	if e.alloc.actHead == nilHandle {
		t.Fatal("second note not active")
	}
	second := e.alloc.insts[e.alloc.actHead]
	if second != first || &second.Block()[0] != block {
		t.Error("second note did not reuse the first instance")
	}

	perform(t, e)
	st := e.Stats()
	if st.Allocations != 1 || st.Reuses != 1 || st.Notes != 2 {
		t.Errorf("allocations=%d reuses=%d notes=%d", st.Allocations, st.Reuses, st.Notes)
	}
	if !near(e.CurTime(), 3) {
		t.Errorf("ended at %g, want 3", e.CurTime())
	}
}

func TestReusedNoteIsCleared(t *testing.T) {
	e := newTestEngine(t, testOrc, "", Options{Realtime: true})
	tmpl, ok := e.Layout.Instr(1)
	if !ok {
		t.Fatal("instr 1 missing")
	}
	a, err := e.newNote(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.block {
		a.block[i] = 99
	}
	for i := range a.p {
		a.p[i] = 99
	}
	for _, op := range a.ops {
		op.State = "stale"
	}
	a.AuxAlloc(4)[0] = 99
	e.release(a)

	b, err := e.newNote(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if b != a {
		t.Fatal("free instance not reused")
	}
	for i, w := range b.block {
		if w != 0 {
			t.Errorf("block[%d] = %g after reuse", i, w)
		}
	}
	for i, w := range b.p {
		if w != 0 {
			t.Errorf("p[%d] = %g after reuse", i, w)
		}
	}
	for i, op := range b.ops {
		if op.State != nil {
			t.Errorf("op %d (%s) kept state %v", i, op.Entry.Name, op.State)
		}
	}
	if len(b.aux) != 0 || e.Stats().AuxBytes != 0 {
		t.Errorf("%d aux buffers, %d aux bytes", len(b.aux), e.Stats().AuxBytes)
	}
	if b.state != Active || !b.indefinite {
		t.Errorf("state %s, indefinite %v", b.state, b.indefinite)
	}
}

func TestTurnoffBeforeActivation(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\ni1 1 1\n", Options{})
	perform(t, e)
	st := e.Stats()
	if st.Allocations != 1 || st.Reuses != 1 {
		t.Errorf("allocations=%d reuses=%d, want 1 and 1", st.Allocations, st.Reuses)
	}
}

func TestZeroDurationIsInitOnly(t *testing.T) {
	e := newTestEngine(t, testOrc, "f1 0 4 2 7 7 7 9\ni4 0 0\ni1 0 0\n", Options{Realtime: true})
	cycles(t, e, 1)
	if e.alloc.active != 0 || e.alloc.firstOff() != nil {
		t.Fatalf("%d notes active after init-only events", e.alloc.active)
	}
	ch, status := e.GetChannelPtr("tab", opcode.ControlChannel)
	if status != opcode.ChanOK || ch.Data[0] != 9 {
		t.Errorf("tab = %v (%v), init pass did not run", ch, status)
	}
	st := e.Stats()
	if st.Notes != 2 || st.Allocations != 2 {
		t.Errorf("notes=%d allocations=%d", st.Notes, st.Allocations)
	}
	if len(e.alloc.free[1]) != 1 || len(e.alloc.free[4]) != 1 {
		t.Errorf("free lists: %v", e.alloc.free)
	}
}

func TestActiveListOrder(t *testing.T) {
	e := newTestEngine(t, testOrc, "i4 0 1\ni1 0 1\ni4 0 1\ni1 0 1\nf1 0 4 2 7 7 7 7\n", Options{})
	cycles(t, e, 1)
	var got []int
	e.alloc.each(func(in *Instance) error {
		got = append(got, in.InsNo())
		return nil
	})
	want := []int{1, 1, 4, 4}
	if len(got) != len(want) {
		t.Fatalf("active = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("active = %v, want %v", got, want)
		}
	}
}

func TestInitErrorDiscardsNote(t *testing.T) {
	e := newTestEngine(t, testOrc, "i2 0 1\n", Options{Realtime: true})
	cycles(t, e, 1)
	st := e.Stats()
	if st.InitErrors != 1 || st.Notes != 0 {
		t.Errorf("init errors=%d notes=%d", st.InitErrors, st.Notes)
	}
	if e.alloc.active != 0 {
		t.Errorf("%d active notes after init error", e.alloc.active)
	}
	if e.alloc.freeCount(2) != 1 {
		t.Errorf("discarded note not returned to the free list")
	}
}

func TestPerfErrorIsFatal(t *testing.T) {
	e := newTestEngine(t, testOrc, "i3 0 1\n", Options{})
	err := e.Perform(context.Background())
	if !errors.Is(err, ErrPerf) {
		t.Fatalf("err = %v, want ErrPerf", err)
	}
	if _, err := e.PerformKsmps(); !errors.Is(err, ErrPerf) {
		t.Errorf("after failure err = %v", err)
	}
}

func TestMaxInstances(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 2\ni1 0 2\n", Options{MaxInstances: 1})
	perform(t, e)
	st := e.Stats()
	if st.Notes != 1 || st.PerfErrors != 1 {
		t.Errorf("notes=%d perf errors=%d", st.Notes, st.PerfErrors)
	}
}

func TestAmplitudeStats(t *testing.T) {
	e := newTestEngine(t, "0dbfs = 0.5\n"+testOrc, "i1 0 1\n", Options{})
	perform(t, e)
	st := e.Stats()
	if len(st.Sections) != 1 {
		t.Fatalf("%d sections", len(st.Sections))
	}
	sec := st.Sections[0]
	if sec.MaxAmp[0] < 0.9 || sec.MaxAmp[0] > 1 {
		t.Errorf("max amp = %g", sec.MaxAmp[0])
	}
	if sec.OutOfRange[0] == 0 {
		t.Error("no out-of-range samples above 0dbfs 0.5")
	}
	if st.MaxAmp[0] != sec.MaxAmp[0] || st.OutOfRange[0] != sec.OutOfRange[0] {
		t.Error("overall stats not rolled up")
	}
	if st.Cycles != 10 || sec.Cycles != 10 {
		t.Errorf("cycles = %d, section cycles = %d", st.Cycles, sec.Cycles)
	}
}

func TestRewind(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\ni1 2 1\n", Options{})
	perform(t, e)
	e.Rewind()
	if e.CurTime() != 0 || e.CurBeat() != 0 || e.State() != ReadingScoreEvent {
		t.Fatalf("after rewind: time %g beat %g state %s", e.CurTime(), e.CurBeat(), e.State())
	}
	perform(t, e)
	if !near(e.CurTime(), 3) {
		t.Errorf("second run ended at %g", e.CurTime())
	}
	if st := e.Stats(); st.Notes != 4 {
		t.Errorf("notes = %d, want 4", st.Notes)
	}
}

func TestReset(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\n", Options{})
	perform(t, e)
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	st := e.Stats()
	if st.Notes != 0 || st.Cycles != 0 || len(st.Sections) != 0 {
		t.Errorf("stats not cleared: %+v", st)
	}
	perform(t, e)
	if e.Stats().Notes != 1 {
		t.Error("score not replayed after reset")
	}
}

func TestCallbacks(t *testing.T) {
	e := newTestEngine(t, testOrc, "", Options{Realtime: true})
	n := 0
	e.AddSenseCallback(func(e *Engine, data any) {
		*(data.(*int))++
	}, &n)
	e.SetYieldCallback(func() bool { return false })

	perform(t, e)
	if n != 1 {
		t.Errorf("sense callback ran %d times", n)
	}
	if st := e.Stats(); st.Yields != 1 {
		t.Errorf("yields = %d", st.Yields)
	}
}

type captureSink struct {
	frames int
}

func (s *captureSink) Write(spout []float64, nchnls int) error {
	s.frames += len(spout) / nchnls
	return nil
}

func TestAudioSink(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(t, testOrc, "i1 0 1\n", Options{Sink: sink})
	perform(t, e)
	if sink.frames != 100 {
		t.Errorf("sink received %d frames, want 100", sink.frames)
	}
}

func TestCleanup(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\n", Options{Realtime: true})
	cycles(t, e, 3)
	st := e.Cleanup()
	if e.alloc.active != 0 {
		t.Error("notes left active after cleanup")
	}
	if len(st.Sections) != 1 || st.Sections[0].Cycles != 3 {
		t.Errorf("sections = %+v", st.Sections)
	}
	if done, _ := e.PerformKsmps(); !done {
		t.Error("performance continued after cleanup")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, StatusOK},
		{ErrMissingPFields, StatusMissingPFields},
		{ErrUnknownInstrument, StatusUnknownInstrument},
		{ErrBadOpcode, StatusBadOpcode},
		{ErrOutOfMemory, StatusOutOfMemory},
		{errors.New("other"), StatusError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
