package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/config"
	"github.com/chazu/orc/engine"
	"github.com/chazu/orc/rtaudio"
	"github.com/chazu/orc/server"
	"github.com/chazu/orc/statsdb"
	"github.com/chazu/orc/wire"
)

// run is one invocation of the performer.
type run struct {
	cfg   *config.Config
	orc   string
	sco   string
	rt    bool
	serve bool

	prog        *compiler.Program
	fingerprint string
}

func (r *run) execute(ctx context.Context) error {
	if err := r.compile(); err != nil {
		return err
	}
	if r.cfg.Output.LayoutDump != "" {
		if err := r.dumpLayout(r.cfg.Output.LayoutDump); err != nil {
			return err
		}
	}

	opts, err := r.engineOptions()
	if err != nil {
		return err
	}
	if r.rt {
		sink, err := rtaudio.Open(r.prog.Rates.Sr, r.prog.Rates.Ksmps, r.prog.Nchnls, r.prog.ZeroDBFS)
		if err != nil {
			return err
		}
		defer sink.Close()
		opts.Sink = sink
	}

	e, err := engine.New(r.prog, opts)
	if err != nil {
		return err
	}
	e.SetYieldCallback(func() bool { return ctx.Err() == nil })
	log.Noticef("run %s: %s, sr %g, kr %g, ksmps %d, %d channels",
		e.RunID(), r.orc, e.Sr(), e.Kr(), e.Ksmps(), e.Nchnls())

	var st engine.Stats
	if r.serve {
		st, err = r.serveEngine(ctx, e)
	} else {
		err = e.Perform(ctx)
		st = e.Cleanup()
	}
	if r.cfg.Output.StatsDB != "" {
		if serr := r.saveStats(st); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func (r *run) compile() error {
	src, err := os.ReadFile(r.orc)
	if err != nil {
		return err
	}
	orc, err := compiler.Read(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", r.orc, err)
	}
	r.prog, err = compiler.Compile(orc, r.cfg.CompilerOptions())
	if err != nil {
		return fmt.Errorf("%s: %w", r.orc, err)
	}
	r.fingerprint, err = wire.FingerprintHex(r.prog)
	if err != nil {
		return err
	}
	log.Infof("compiled %s: %d instruments, global data space %s, layout %s",
		r.orc, len(r.prog.Instruments()), humanize.Bytes(uint64(r.prog.Globals.Len)), r.fingerprint[:12])
	return nil
}

func (r *run) dumpLayout(path string) error {
	data, err := wire.MarshalSnapshot(wire.SnapshotOf(r.prog))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Infof("wrote layout snapshot to %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return nil
}

func (r *run) engineOptions() (engine.Options, error) {
	opts := r.cfg.EngineOptions()
	opts.RunID = uuid.New()
	if r.sco == "" {
		if !opts.Realtime {
			return opts, fmt.Errorf("no score given; use -realtime to perform without one")
		}
		return opts, nil
	}

	text, err := os.ReadFile(r.sco)
	if err != nil {
		return opts, err
	}
	score, err := engine.ReadScore(string(text))
	if err != nil {
		return opts, fmt.Errorf("%s: %w", r.sco, err)
	}
	if opts.Cscore {
		opts.CscoreList = engine.NewCscoreList(scoreSegments(score.Events()))
	} else {
		opts.Score = score
	}
	return opts, nil
}

// scoreSegments splits a sorted score at its section boundaries, dropping
// the boundary events themselves.
func scoreSegments(events []engine.Event) [][]engine.Event {
	var segs [][]engine.Event
	var cur []engine.Event
	for _, ev := range events {
		switch ev.Opcode {
		case 's', 'l', 'e':
			if len(cur) > 0 {
				segs = append(segs, cur)
			}
			cur = nil
		default:
			cur = append(cur, ev)
		}
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// serveEngine hands the engine to a paced server worker and waits until
// the performance ends or ctx is cancelled.
func (r *run) serveEngine(ctx context.Context, e *engine.Engine) (engine.Stats, error) {
	type result struct {
		err error
	}
	done := make(chan result, 1)
	srv := server.New(e, server.WithOnDone(func(_ engine.Stats, err error) {
		select {
		case done <- result{err}:
		default:
		}
	}))
	defer srv.Stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(r.cfg.Server.Listen) }()
	srv.Start()

	var err error
	select {
	case res := <-done:
		err = res.err
	case err = <-errc:
	case <-ctx.Done():
	}

	v, derr := srv.Worker().Do(func(e *engine.Engine) any { return e.Cleanup() })
	if derr != nil {
		return engine.Stats{}, derr
	}
	return v.(engine.Stats), err
}

func (r *run) saveStats(st engine.Stats) error {
	db, err := statsdb.Open(r.cfg.Output.StatsDB)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveRun(statsdb.Run{
		ID:          st.RunID,
		Orchestra:   r.orc,
		Fingerprint: r.fingerprint,
		FinishedAt:  time.Now(),
		Stats:       st,
	})
}
