package engine

import (
	"testing"

	"github.com/chazu/orc/opcode"
)

func fEvent(p ...float64) Event {
	return Event{Opcode: 'f', P: append([]float64{0}, p...)}
}

func TestTableEvents(t *testing.T) {
	e := newTestEngine(t, testOrc, "", Options{Realtime: true})

	if err := e.tableEvent(fEvent(1, 0, 8, 7, 0, 4, 1, 4, 0)); err != nil {
		t.Fatal(err)
	}
	tab, ok := e.Table(1)
	if !ok {
		t.Fatal("table 1 missing")
	}
	want := []float64{0, 0.25, 0.5, 0.75, 1, 0.75, 0.5, 0.25}
	for i, w := range want {
		if !near(tab[i], w) {
			t.Errorf("gen7[%d] = %g, want %g", i, tab[i], w)
		}
	}

	if err := e.tableEvent(fEvent(2, 0, 5, 2, 1, 2, 3)); err != nil {
		t.Fatal(err)
	}
	tab, _ = e.Table(2)
	for i, w := range []float64{1, 2, 3, 0, 0} {
		if tab[i] != w {
			t.Errorf("gen2[%d] = %g, want %g", i, tab[i], w)
		}
	}

	if err := e.tableEvent(fEvent(3, 0, 8, 10, 1)); err != nil {
		t.Fatal(err)
	}
	tab, _ = e.Table(3)
	if !near(tab[0], 0) || !near(tab[2], 1) || !near(tab[6], -1) {
		t.Errorf("gen10 = %v", tab)
	}

	if err := e.tableEvent(fEvent(-2)); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Table(2); ok {
		t.Error("table 2 not deleted")
	}
}

func TestTableEventErrors(t *testing.T) {
	e := newTestEngine(t, testOrc, "", Options{Realtime: true})
	for _, ev := range []Event{
		fEvent(1, 0, 8, 99),
		fEvent(1, 0, 0, 2),
		fEvent(1, 0, 8),
		fEvent(-5),
	} {
		if err := e.tableEvent(ev); err == nil {
			t.Errorf("%s: no error", ev)
		}
	}
}

func TestTableOpcode(t *testing.T) {
	e := newTestEngine(t, testOrc, "f1 0 4 2 7 7 7 9\ni4 0 1\n", Options{Realtime: true})
	cycles(t, e, 1)
	ch, status := e.GetChannelPtr("tab", opcode.ControlChannel)
	if status != opcode.ChanOK {
		t.Fatal(status)
	}
	if ch.Data[0] != 9 {
		t.Errorf("tab = %g, want 9", ch.Data[0])
	}
}
