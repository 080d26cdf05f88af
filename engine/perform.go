package engine

import (
	"context"
	"fmt"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/opcode"
	"github.com/dustin/go-humanize"
)

// ---------------------------------------------------------------------------
// Activation and deactivation
// ---------------------------------------------------------------------------

// activate starts a note of t for ev with duration dur seconds (negative is
// indefinite). A zero duration note runs its init pass only and is released
// without joining the active list. A failed init pass discards the note.
func (e *Engine) activate(t *compiler.Template, ev Event, dur float64) (*Instance, error) {
	in, err := e.newNote(t)
	if err != nil {
		return nil, err
	}
	copy(in.p, ev.P)
	in.p1 = ev.P[1]
	if ev.Name != "" {
		in.p1 = float64(t.Number)
		in.p[1] = in.p1
	} else {
		in.insno = int(in.p1)
	}
	if len(in.p) > 3 {
		in.p[3] = dur
	}

	if err := e.runInit(in); err != nil {
		e.stats.initError()
		log.Warningf("instr %d: %s, note discarded (%d init errors)", in.insno, err, e.stats.InitErrors)
		e.release(in)
		return nil, err
	}
	if dur == 0 {
		e.stats.noteOn(e.alloc.active + 1)
		e.release(in)
		return in, nil
	}

	e.alloc.link(in)
	if dur > 0 {
		in.indefinite = false
		in.offtim = in.start + dur
		in.offbt = in.startBeat + dur/e.sched.beatTime
		e.alloc.schedOff(in, e.offKey)
	}
	e.stats.noteOn(e.alloc.active)
	return in, nil
}

// deactivate removes an active note from the active and turnoff lists and
// returns it to its template's free list.
func (e *Engine) deactivate(in *Instance) {
	if in.state == Free {
		return
	}
	e.alloc.unschedOff(in)
	e.alloc.unlink(in)
	e.release(in)
}

// deactivateAll sweeps the active list and returns the number of notes
// deactivated.
func (e *Engine) deactivateAll() int {
	n := 0
	for h := e.alloc.actHead; h != nilHandle; h = e.alloc.actHead {
		e.deactivate(e.alloc.insts[h])
		n++
	}
	e.deferred = e.deferred[:0]
	return n
}

// flushDeferred deactivates the notes turned off during this cycle.
func (e *Engine) flushDeferred() {
	for _, h := range e.deferred {
		if in := e.alloc.insts[h]; in != nil && in.state == Deactivating {
			e.deactivate(in)
		}
	}
	e.deferred = e.deferred[:0]
}

// ---------------------------------------------------------------------------
// Init and performance passes
// ---------------------------------------------------------------------------

// runInit calls every init entry point in chain order.
func (e *Engine) runInit(in *Instance) error {
	for i := 0; i < len(in.ops); {
		op := in.ops[i]
		in.jump = -1
		rc := opcode.OK
		switch {
		case op.Entry.UDO:
			if err := e.udoInit(in, op); err != nil {
				return err
			}
		case op.Entry.Init != nil:
			rc = op.Entry.Init(op)
		}
		if rc != opcode.OK {
			return fmt.Errorf("%w in %s, line %d", ErrInitFailed, op.Entry.Name, op.Line)
		}
		if in.jump >= 0 {
			i = in.jump
		} else {
			i++
		}
	}
	return nil
}

// runPerf calls every performance entry point in chain order.
func (e *Engine) runPerf(in *Instance) error {
	for i := 0; i < len(in.ops); {
		op := in.ops[i]
		in.jump = -1
		rc := opcode.OK
		switch {
		case op.Entry.UDO:
			if err := e.udoPerf(op); err != nil {
				return err
			}
		case op.Entry.IsPerf():
			if f := op.Entry.PerfFunc(); f != nil {
				rc = f(op)
			}
		}
		if rc != opcode.OK {
			return fmt.Errorf("%w: instr %d, %s line %d", ErrPerf, in.insno, op.Entry.Name, op.Line)
		}
		if in.jump >= 0 {
			i = in.jump
		} else {
			i++
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// The control cycle
// ---------------------------------------------------------------------------

// PerformKsmps runs one control cycle: sense events, run the performance
// pass over the active list, deactivate notes turned off during the cycle,
// measure amplitudes, hand the output to the sink and advance the clocks.
// done is true once the score has ended. A failing performance entry point
// is fatal.
func (e *Engine) PerformKsmps() (done bool, err error) {
	if e.perfErr != nil {
		return true, e.perfErr
	}
	if e.sched.done {
		return true, nil
	}
	clear(e.spout)

	e.sense()
	if e.sched.done {
		return true, nil
	}

	err = e.alloc.each(func(in *Instance) error {
		if in.state != Active {
			return nil
		}
		return e.runPerf(in)
	})
	if err != nil {
		e.perfErr = err
		log.Errorf("%s at %.3fs", err, e.CurTime())
		return true, err
	}
	e.flushDeferred()

	e.stats.measure(e.spout, e.Layout.Nchnls, e.Layout.ZeroDBFS)
	if e.opts.Sink != nil {
		if err := e.opts.Sink.Write(e.spout, e.Layout.Nchnls); err != nil {
			e.perfErr = fmt.Errorf("audio output: %w", err)
			return true, e.perfErr
		}
	}
	e.sched.advance()

	if e.yield != nil && e.limiter.Allow() {
		e.stats.Yields++
		if !e.yield() {
			e.stop("host yield")
		}
	}
	return e.sched.done, nil
}

// Perform runs cycles until the score ends, a cycle fails or ctx is done.
func (e *Engine) Perform(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := e.PerformKsmps()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Rewind flushes pending events, deactivates every note, rewinds the score
// and resets both clocks and the tempo.
func (e *Engine) Rewind() {
	n := e.sched.pending.flush()
	killed := e.deactivateAll()
	if r := e.reader(); r != nil {
		r.Rewind()
	}
	e.sched.reset(e.reader(), e.Layout.Rates.Kr)
	e.perfErr = nil
	log.Infof("rewound: %d pending events flushed, %d notes deactivated", n, killed)
}

// Cleanup ends the performance, rolls up the last section and logs the
// final summary.
func (e *Engine) Cleanup() Stats {
	if !e.sched.done {
		e.stop("cleanup")
	}
	st := e.Stats()
	log.Noticef("run %s: %d cycles, overall amps: %s", e.runID, st.Cycles, st.overallAmps())
	log.Noticef("%d sections, %d notes (%d allocations, %d reused), %d performance errors, %d init errors, %d extra note-offs",
		len(st.Sections), st.Notes, st.Allocations, st.Reuses, st.PerfErrors, st.InitErrors, st.ExtraNoteOffs)
	log.Noticef("instance memory %s, aux memory %s, global data space %s",
		humanize.Bytes(uint64(st.InstanceBytes)), humanize.Bytes(uint64(max(st.AuxBytes, 0))),
		humanize.Bytes(uint64(e.Layout.Globals.Len)))
	return st
}
