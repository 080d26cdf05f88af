package engine

import (
	"testing"
)

func TestSections(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 1\ns\ni1 0 1\ne\n", Options{})
	perform(t, e)

	if e.Section() != 2 {
		t.Errorf("section = %d, want 2", e.Section())
	}
	if !near(e.CurTime(), 2) {
		t.Errorf("ended at %g, want 2", e.CurTime())
	}
	st := e.Stats()
	if len(st.Sections) != 2 {
		t.Fatalf("%d sections", len(st.Sections))
	}
	for i, sec := range st.Sections {
		if sec.Number != i+1 || sec.Cycles != 10 {
			t.Errorf("section %d: number %d, %d cycles", i, sec.Number, sec.Cycles)
		}
	}
	// the free instance is purged at the section end since nothing was killed
	if st.Allocations != 2 || st.Reuses != 0 {
		t.Errorf("allocations=%d reuses=%d", st.Allocations, st.Reuses)
	}
}

func TestSectionWaitsForNotes(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 2\ns\n", Options{})
	cycles(t, e, 15)
	if e.Section() != 1 || e.alloc.active != 1 {
		t.Fatalf("section %d with %d active at 1.5s", e.Section(), e.alloc.active)
	}
	if e.State() != SectionBoundary {
		t.Errorf("state = %s", e.State())
	}
	perform(t, e)
	if !near(e.CurTime(), 2) {
		t.Errorf("ended at %g", e.CurTime())
	}
}

func TestScoreEndSweepsHeldNotes(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1 0 -1\ne\n", Options{})
	perform(t, e)
	if e.alloc.active != 0 {
		t.Errorf("%d notes still active", e.alloc.active)
	}
	if e.CurTime() != 0 {
		t.Errorf("score ended at %g", e.CurTime())
	}
}

func TestCscoreReplay(t *testing.T) {
	note := Event{Opcode: 'i', P: []float64{0, 1, 0, 1}}
	live, err := ReadScore("i1 0 5\n")
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(compileOrc(t, testOrc), Options{
		Score:      live,
		CscoreList: NewCscoreList([][]Event{{note}, {note}}),
		Cscore:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	perform(t, e)

	if e.Section() != 1 {
		t.Errorf("section = %d, 'l' must not advance it", e.Section())
	}
	st := e.Stats()
	if st.Notes != 2 {
		t.Errorf("notes = %d, live score must not be merged", st.Notes)
	}
	if len(st.Sections) != 3 {
		t.Errorf("%d sections", len(st.Sections))
	}
	if !near(e.CurTime(), 2) {
		t.Errorf("ended at %g", e.CurTime())
	}
}

func TestTempo(t *testing.T) {
	e := newTestEngine(t, testOrc, "w 0 0 120\ni1 0 2\n", Options{})
	perform(t, e)
	if !near(e.CurTime(), 1) || !near(e.CurBeat(), 2) {
		t.Errorf("ended at %gs, beat %g", e.CurTime(), e.CurBeat())
	}
}

func TestBeatMode(t *testing.T) {
	e := newTestEngine(t, testOrc, "w 0 0 120\ni1 0 2\n", Options{BeatMode: true})
	cycles(t, e, 1)
	in := e.alloc.firstOff()
	if in == nil || !near(in.offbt, 2) {
		t.Fatalf("turnoff list head %v", in)
	}
	perform(t, e)
	if !near(e.CurTime(), 1) {
		t.Errorf("ended at %g", e.CurTime())
	}
}

func TestAdvance(t *testing.T) {
	e := newTestEngine(t, testOrc, "a 0 0 2\ni1 0 1\n", Options{})
	perform(t, e)
	if !near(e.CurTime(), 3) {
		t.Errorf("ended at %g, want 3", e.CurTime())
	}
	if st := e.Stats(); st.Cycles != 10 {
		t.Errorf("performed %d cycles, skipped time must not be performed", st.Cycles)
	}
}

func TestMute(t *testing.T) {
	e := newTestEngine(t, testOrc, "q1 0 0 0\ni1 0 1\nq1 1 0 1\ni1 1 1\n", Options{})
	perform(t, e)
	if st := e.Stats(); st.Notes != 1 {
		t.Errorf("notes = %d, want 1", st.Notes)
	}
}

func TestHeldNoteTurnoff(t *testing.T) {
	e := newTestEngine(t, testOrc, "i1.1 0 -1\ni1.2 0 -1\ni-1.1 1 0\n", Options{Realtime: true})
	cycles(t, e, 1)
	if e.alloc.active != 2 {
		t.Fatalf("%d active", e.alloc.active)
	}
	cycles(t, e, 10)
	if e.alloc.active != 1 {
		t.Fatalf("%d active after turnoff", e.alloc.active)
	}
	if in := e.alloc.insts[e.alloc.actHead]; in.P(1) != 1.2 {
		t.Errorf("wrong note turned off, p1 %g left", in.P(1))
	}
}

func TestBadEventsAreSkipped(t *testing.T) {
	e := newTestEngine(t, testOrc, "i9 0 1\nf1 0 4 99\ni1 0 1\n", Options{})
	perform(t, e)
	st := e.Stats()
	if st.PerfErrors != 2 || st.Notes != 1 {
		t.Errorf("perf errors=%d notes=%d", st.PerfErrors, st.Notes)
	}
	if st.Sections[0].PerfErrors != 2 {
		t.Errorf("section perf errors = %d", st.Sections[0].PerfErrors)
	}
}
