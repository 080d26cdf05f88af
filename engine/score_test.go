package engine

import (
	"errors"
	"testing"
)

func TestReadScore(t *testing.T) {
	s, err := ReadScore(`
; a comment
i1 2 1 0.5
i1 0 1      ; trailing comment
f1 0 8 7 0 8 1
i "lead" 0 1
s
i2 1 1
i2 0 1
e
`)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for ev, ok := s.Next(); ok; ev, ok = s.Next() {
		got = append(got, ev.String())
	}
	want := []string{
		"f 1 0 8 7 0 8 1",
		"i 1 0 1",
		`i "lead" 0 1`,
		"i 1 2 1 0.5",
		"s",
		"i 2 0 1",
		"i 2 1 1",
		"e",
	}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}

	s.Rewind()
	if ev, ok := s.Next(); !ok || ev.Opcode != 'f' {
		t.Errorf("after rewind: %v", ev)
	}
}

func TestReadScoreErrors(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"x 0 1", ErrBadOpcode},
		{"i1 0", ErrMissingPFields},
		{"i1 0 one", nil},
		{`i "lead 0 1`, nil},
	}
	for _, tt := range tests {
		_, err := ReadScore(tt.text)
		if err == nil {
			t.Errorf("%q: no error", tt.text)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%q: err = %v, want %v", tt.text, err, tt.want)
		}
	}
}

func TestNewCscoreList(t *testing.T) {
	note := Event{Opcode: 'i', P: []float64{0, 1, 0, 1}}
	l := NewCscoreList([][]Event{{note}, {note, {Opcode: 'l'}}})
	var ops []byte
	for _, ev := range l.Events() {
		ops = append(ops, ev.Opcode)
	}
	if string(ops) != "ilile" {
		t.Errorf("opcodes = %q", ops)
	}
}

func TestNamedInstrumentEvent(t *testing.T) {
	e := newTestEngine(t, `
sr = 100
ksmps = 10

instr 1
k1 = p4
endin

instr lead
k1 = p4
endin
`, `i "lead" 0 1 3`+"\n", Options{Realtime: true})
	cycles(t, e, 1)
	if e.alloc.active != 1 {
		t.Fatalf("%d active", e.alloc.active)
	}
	in := e.alloc.insts[e.alloc.actHead]
	if in.InsNo() != 2 || in.P(1) != 2 || in.P(4) != 3 {
		t.Errorf("insno %d p1 %g p4 %g", in.InsNo(), in.P(1), in.P(4))
	}
}
