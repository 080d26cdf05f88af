package engine

import (
	"errors"
	"math"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Scheduler state
// ---------------------------------------------------------------------------

// SchedState is the state of the event-sensing state machine.
type SchedState uint8

const (
	ReadingScoreEvent SchedState = iota
	WaitingForTime
	DispatchingEvent
	HandlingRealtime
	SectionBoundary
	ScoreEnd
)

var schedStateNames = [...]string{
	"reading-score-event", "waiting-for-time", "dispatching-event",
	"handling-realtime", "section-boundary", "score-end",
}

func (s SchedState) String() string {
	if int(s) < len(schedStateNames) {
		return schedStateNames[s]
	}
	return "unknown"
}

// schedState holds the clocks, the score reader and the pending list.
type schedState struct {
	state  SchedState
	reader ScoreReader
	next   Event
	have   bool

	kr       float64
	cycle    atomic.Int64 // control cycles since the start
	curBeat  float64
	beatTime float64 // seconds per beat

	sectStartBeat float64
	section       int
	boundary      byte
	done          bool

	muted   map[int]bool
	pending *eventQueue
	drained []Event
}

func (s *schedState) reset(r ScoreReader, kr float64) {
	s.state = ReadingScoreEvent
	s.reader = r
	s.have = false
	s.kr = kr
	s.cycle.Store(0)
	s.curBeat = 0
	s.beatTime = 1
	s.sectStartBeat = 0
	s.section = 1
	s.boundary = 0
	s.done = false
	s.muted = make(map[int]bool)
}

func (s *schedState) curTime() float64 {
	return float64(s.cycle.Load()) / s.kr
}

// beatsPerCycle is the beat increment of one control period.
func (s *schedState) beatsPerCycle() float64 {
	return 1 / (s.kr * s.beatTime)
}

// advance moves both clocks forward by one control period.
func (s *schedState) advance() {
	s.cycle.Add(1)
	s.curBeat += s.beatsPerCycle()
}

// State returns the state of the event-sensing state machine.
func (e *Engine) State() SchedState {
	return e.sched.state
}

// Done reports whether the performance has ended. Rewind and Reset start it
// again.
func (e *Engine) Done() bool {
	return e.sched.done
}

// Section returns the current section number, starting at 1.
func (e *Engine) Section() int {
	return e.sched.section
}

// ---------------------------------------------------------------------------
// sensevents
// ---------------------------------------------------------------------------

// sense runs at the start of every cycle: host callbacks, then due
// turnoffs, then due score events, then due real-time events.
func (e *Engine) sense() {
	for _, cb := range e.callbacks {
		cb.fn(e, cb.data)
	}
	e.turnoffs()
	e.scoreEvents()
	if !e.sched.done {
		e.realtimeEvents()
	}
}

// turnoffs deactivates every note whose off-time falls within half a
// control period of now.
func (e *Engine) turnoffs() {
	s := &e.sched
	limit := s.curTime() + 0.5/s.kr
	if e.opts.BeatMode {
		limit = s.curBeat + 0.5*s.beatsPerCycle()
	}
	for in := e.alloc.firstOff(); in != nil && e.offKey(in) <= limit; in = e.alloc.firstOff() {
		e.deactivate(in)
	}
}

func (e *Engine) offKey(in *Instance) float64 {
	if e.opts.BeatMode {
		return in.offbt
	}
	return in.offtim
}

// due reports whether a score event starts within half a control period.
func (e *Engine) due(ev *Event) bool {
	s := &e.sched
	return s.sectStartBeat+ev.P2() <= s.curBeat+0.5*s.beatsPerCycle()
}

func (e *Engine) scoreEvents() {
	s := &e.sched
	for !s.done {
		switch s.state {
		case ReadingScoreEvent:
			if s.reader == nil {
				s.state = ScoreEnd
				continue
			}
			ev, ok := s.reader.Next()
			if !ok {
				s.state = ScoreEnd
				continue
			}
			s.next, s.have = ev, true
			s.state = WaitingForTime

		case WaitingForTime:
			if !e.due(&s.next) {
				return
			}
			s.state = DispatchingEvent

		case DispatchingEvent:
			ev := s.next
			s.have = false
			s.state = ReadingScoreEvent
			switch ev.Opcode {
			case 's', 'l', 'e':
				s.boundary = ev.Opcode
				s.state = SectionBoundary
			default:
				e.dispatch(ev, true)
			}

		case SectionBoundary:
			if e.alloc.firstOff() != nil {
				return
			}
			e.endSection(s.boundary)
			switch {
			case s.done:
			case s.have:
				s.state = WaitingForTime
			default:
				s.state = ReadingScoreEvent
			}

		case ScoreEnd:
			if e.opts.Realtime || e.alloc.firstOff() != nil {
				return
			}
			e.endSection('e')

		default:
			return
		}
	}
}

// realtimeEvents drains the pending list once, oldest first.
func (e *Engine) realtimeEvents() {
	s := &e.sched
	s.drained = s.pending.drain(s.cycle.Load(), s.drained[:0])
	if len(s.drained) == 0 {
		return
	}
	prev := s.state
	s.state = HandlingRealtime
	for _, ev := range s.drained {
		if s.done {
			break
		}
		switch ev.Opcode {
		case 'e':
			e.stop("real-time end event")
		case 's', 'l':
			// a boundary the score already reached keeps its opcode
			if prev != SectionBoundary {
				s.boundary = ev.Opcode
				prev = SectionBoundary
			}
		default:
			e.dispatch(ev, false)
		}
	}
	if !s.done {
		s.state = prev
	}
}

// stop ends the performance now: the pending list is flushed and every
// active note is deactivated.
func (e *Engine) stop(reason string) {
	n := e.sched.pending.flush()
	killed := e.deactivateAll()
	e.stats.closeSection(e.sched.section)
	e.sched.done = true
	e.sched.state = ScoreEnd
	log.Noticef("%s at %.3fs: %d pending events flushed, %d notes deactivated", reason, e.CurTime(), n, killed)
}

// endSection closes a section: remaining notes are swept, inactive memory
// is purged when nothing had to be killed, statistics are rolled up and the
// clocks become the new section origin.
func (e *Engine) endSection(op byte) {
	s := &e.sched
	killed := e.deactivateAll()
	if killed == 0 {
		if n := e.alloc.purge(); n > 0 {
			log.Debugf("section %d: released %d inactive instances", s.section, n)
		}
	}
	sec := e.stats.closeSection(s.section)
	log.Noticef("end of section %d (%c) at %.3fs: %s, %d errors", s.section, op, e.CurTime(),
		sec.amps(), sec.PerfErrors)

	switch op {
	case 's':
		s.section++
	case 'e':
		e.sched.pending.flush()
		s.done = true
		s.state = ScoreEnd
	}
	s.sectStartBeat = s.curBeat
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// dispatch performs one event. Score times and durations are in beats,
// real-time ones in seconds. Bad events are reported and skipped.
func (e *Engine) dispatch(ev Event, score bool) {
	s := &e.sched
	switch ev.Opcode {
	case 'i':
		e.noteEvent(ev, score)
	case 'f':
		if err := e.tableEvent(ev); err != nil {
			e.skip(ev, err)
		}
	case 'q':
		if len(ev.P) < 2 {
			e.skip(ev, ErrMissingPFields)
			return
		}
		n, ok := e.instrNumber(&ev)
		if !ok {
			e.skip(ev, ErrUnknownInstrument)
			return
		}
		mute := len(ev.P) < 5 || ev.P[4] == 0
		s.muted[n] = mute
		if mute {
			log.Infof("instr %d muted", n)
		} else {
			log.Infof("instr %d unmuted", n)
		}
	case 'a':
		e.advanceEvent(ev, score)
	case 'w':
		if bpm := ev.P3(); bpm > 0 {
			s.beatTime = 60 / bpm
			log.Debugf("tempo %g bpm", bpm)
		}
	default:
		e.skip(ev, ErrBadOpcode)
	}
}

// skip reports a bad event and counts it.
func (e *Engine) skip(ev Event, err error) {
	e.stats.perfError()
	log.Warningf("event %s skipped: %s", ev, err)
}

func (e *Engine) noteEvent(ev Event, score bool) {
	s := &e.sched
	if ev.PCount() < 3 {
		e.skip(ev, ErrMissingPFields)
		return
	}
	n, ok := e.instrNumber(&ev)
	if !ok {
		e.skip(ev, ErrUnknownInstrument)
		return
	}
	if ev.P[1] < 0 {
		e.heldOff(-ev.P[1], n, ev.midi)
		return
	}
	if s.muted[n] {
		log.Infof("instr %d muted, event %s ignored", n, ev)
		return
	}

	dur := ev.P[3]
	if score && dur > 0 {
		dur *= s.beatTime
	}
	t, _ := e.Layout.Instr(n)
	if _, err := e.activate(t, ev, dur); err != nil {
		if errors.Is(err, ErrInitFailed) {
			return
		}
		e.skip(ev, err)
	}
}

// heldOff turns off the oldest indefinite note whose p1 matches.
func (e *Engine) heldOff(p1 float64, n int, midi bool) {
	var found *Instance
	e.alloc.each(func(in *Instance) error {
		if found == nil && in.state == Active && in.indefinite && in.insno == n && in.p1 == p1 {
			found = in
		}
		return nil
	})
	if found != nil {
		e.deactivate(found)
		return
	}
	if midi {
		e.stats.extraNoteOff()
		return
	}
	log.Warningf("instr %g: no held note to turn off", p1)
}

// advanceEvent skips p3 beats (seconds for real-time events) of time.
func (e *Engine) advanceEvent(ev Event, score bool) {
	s := &e.sched
	d := ev.P3()
	if d <= 0 {
		return
	}
	secs := d
	if score {
		secs = d * s.beatTime
	}
	s.cycle.Add(int64(math.Round(secs * s.kr)))
	s.curBeat += secs / s.beatTime
	log.Debugf("advanced %.3fs to %.3fs", secs, e.CurTime())
}
