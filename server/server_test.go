package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/engine"
	"github.com/chazu/orc/wire"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure
// ---------------------------------------------------------------------------

const testOrc = `
sr = 100
ksmps = 10

instr 1
k1 = p4
endin
`

type testEnv struct {
	Server *OrcServer
	Done   chan engine.Stats

	insert *connect.Client[wire.InsertRequest, wire.InsertResponse]
	stats  *connect.Client[wire.StatsRequest, wire.StatsResponse]
	rewind *connect.Client[wire.RewindRequest, wire.RewindResponse]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	orc, err := compiler.Read(testOrc)
	if err != nil {
		t.Fatal(err)
	}
	prog, err := compiler.Compile(orc, compiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.New(prog, engine.Options{Realtime: true})
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{Done: make(chan engine.Stats, 4)}
	env.Server = New(e, WithPacing(false), WithOnDone(func(st engine.Stats, err error) {
		env.Done <- st
	}))
	hs := httptest.NewServer(env.Server.Handler())
	t.Cleanup(func() {
		hs.Close()
		env.Server.Stop()
	})

	env.insert = connect.NewClient[wire.InsertRequest, wire.InsertResponse](hs.Client(), hs.URL+InsertEventProcedure, WithCBOR())
	env.stats = connect.NewClient[wire.StatsRequest, wire.StatsResponse](hs.Client(), hs.URL+StatsProcedure, WithCBOR())
	env.rewind = connect.NewClient[wire.RewindRequest, wire.RewindResponse](hs.Client(), hs.URL+RewindProcedure, WithCBOR())
	return env
}

func bg() context.Context { return context.Background() }

func (env *testEnv) waitDone(t *testing.T) engine.Stats {
	t.Helper()
	select {
	case st := <-env.Done:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("performance did not end")
	}
	return engine.Stats{}
}

// ---------------------------------------------------------------------------
// InsertEvent
// ---------------------------------------------------------------------------

func TestInsertEvent_Status(t *testing.T) {
	env := newTestEnv(t)
	runID := env.Server.Worker().Engine().RunID().String()

	tests := []struct {
		name string
		ev   wire.Event
		want int
	}{
		{"note", wire.Event{Opcode: "i", P: []float64{0, 1, 0, 1, 3}}, engine.StatusOK},
		{"unknown instrument", wire.Event{Opcode: "i", P: []float64{0, 9, 0, 1}}, engine.StatusUnknownInstrument},
		{"missing p3", wire.Event{Opcode: "i", P: []float64{0, 1, 0}}, engine.StatusMissingPFields},
		{"bad opcode", wire.Event{Opcode: "x", P: []float64{0, 1}}, engine.StatusBadOpcode},
	}
	for _, tt := range tests {
		resp, err := env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{Event: tt.ev}))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if resp.Msg.Status != tt.want {
			t.Errorf("%s: status %d, want %d (%s)", tt.name, resp.Msg.Status, tt.want, resp.Msg.Message)
		}
		if resp.Msg.RunID != runID {
			t.Errorf("%s: run id %q", tt.name, resp.Msg.RunID)
		}
		if tt.want != engine.StatusOK && resp.Msg.Message == "" {
			t.Errorf("%s: no message", tt.name)
		}
	}
}

func TestInsertEvent_InvalidArgument(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty event: %v", err)
	}
	_, err = env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{
		Event:  wire.Event{Opcode: "e"},
		Offset: -1,
	}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("negative offset: %v", err)
	}
}

// ---------------------------------------------------------------------------
// A performance driven over the wire
// ---------------------------------------------------------------------------

func TestPerformance(t *testing.T) {
	env := newTestEnv(t)

	for _, ev := range []wire.Event{
		{Opcode: "i", P: []float64{0, 1, 0, 1, 3}},
		{Opcode: "e", P: []float64{0, 0, 0.5}},
	} {
		resp, err := env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{Event: ev}))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Msg.Status != engine.StatusOK {
			t.Fatalf("%s: %s", ev.Opcode, resp.Msg.Message)
		}
	}

	before, err := env.stats.CallUnary(bg(), connect.NewRequest(&wire.StatsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if before.Msg.Cycles != 0 || before.Msg.Notes != 0 {
		t.Errorf("performed before Start: %+v", before.Msg)
	}

	env.Server.Start()
	st := env.waitDone(t)
	if st.Notes != 1 {
		t.Errorf("notes = %d, want 1", st.Notes)
	}

	after, err := env.stats.CallUnary(bg(), connect.NewRequest(&wire.StatsRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if after.Msg.Notes != 1 || after.Msg.Cycles == 0 {
		t.Errorf("stats = %+v", after.Msg)
	}
	if after.Msg.CurTime < 0.4 {
		t.Errorf("ended at %gs, want about 0.5s", after.Msg.CurTime)
	}
}

func TestRewind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{
		Event: wire.Event{Opcode: "e", P: []float64{0, 0, 0.2}},
	}))
	if err != nil {
		t.Fatal(err)
	}
	env.Server.Start()
	env.waitDone(t)

	resp, err := env.rewind.CallUnary(bg(), connect.NewRequest(&wire.RewindRequest{}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Msg.CurTime != 0 {
		t.Errorf("cur time after rewind = %g", resp.Msg.CurTime)
	}

	// The rewound performance runs again until another end event arrives.
	_, err = env.insert.CallUnary(bg(), connect.NewRequest(&wire.InsertRequest{
		Event: wire.Event{Opcode: "e"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	env.waitDone(t)
}

// ---------------------------------------------------------------------------
// EngineWorker
// ---------------------------------------------------------------------------

func TestWorker_DoRecoversPanics(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Server.Worker().Do(func(*engine.Engine) any {
		panic("boom")
	})
	if err == nil {
		t.Fatal("panic not reported")
	}

	v, err := env.Server.Worker().Do(func(e *engine.Engine) any { return e.Ksmps() })
	if err != nil || v.(int) != 10 {
		t.Errorf("worker unusable after panic: %v %v", v, err)
	}
}

func TestWorker_DoAfterStop(t *testing.T) {
	env := newTestEnv(t)
	env.Server.Stop()
	if _, err := env.Server.Worker().Do(func(*engine.Engine) any { return nil }); err == nil {
		t.Error("Do succeeded on a stopped worker")
	}
}
