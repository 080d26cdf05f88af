// Package engine runs a compiled orchestra: it allocates instrument instances
// from per-template free lists, merges score and real-time events cycle by
// cycle and drives the opcode init and performance passes.
package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/opcode"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/time/rate"
)

var log = commonlog.GetLogger("orc.engine")

// ---------------------------------------------------------------------------
// Errors and status codes
// ---------------------------------------------------------------------------

var (
	ErrMissingPFields    = errors.New("missing p-fields")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrBadOpcode         = errors.New("bad event opcode")
	ErrPerf              = errors.New("performance error")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrInitFailed        = errors.New("init error")
)

// Status codes returned by the event insertion surfaces.
const (
	StatusOK                = 0
	StatusMissingPFields    = -1
	StatusUnknownInstrument = -2
	StatusBadOpcode         = -3
	StatusOutOfMemory       = -4
	StatusError             = -5
)

// StatusOf maps an error to its status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrMissingPFields):
		return StatusMissingPFields
	case errors.Is(err, ErrUnknownInstrument):
		return StatusUnknownInstrument
	case errors.Is(err, ErrBadOpcode):
		return StatusBadOpcode
	case errors.Is(err, ErrOutOfMemory):
		return StatusOutOfMemory
	}
	return StatusError
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// DefaultHostYieldRate is the number of host-yield callbacks per second.
const DefaultHostYieldRate = 250

// AudioSink receives the output bus after every control cycle. spout is
// interleaved, ksmps frames of nchnls samples.
type AudioSink interface {
	Write(spout []float64, nchnls int) error
}

// Options configure an engine.
type Options struct {
	// Score is the live score. CscoreList is the replay list used instead
	// when Cscore is set; the two are never merged.
	Score      ScoreReader
	CscoreList ScoreReader
	Cscore     bool

	// BeatMode orders pending turnoffs by beats instead of seconds.
	BeatMode bool

	// Realtime keeps the performance running after the score is exhausted,
	// until an 'e' event arrives.
	Realtime bool

	// HostYieldRate bounds the host-yield callback rate; at most 250.
	HostYieldRate float64

	// MaxInstances, MaxPendingEvents and MaxChannels bound the arenas and the
	// channel bus; zero is unbounded.
	MaxInstances     int
	MaxPendingEvents int
	MaxChannels      int

	Sink  AudioSink
	RunID uuid.UUID
}

type senseCallback struct {
	fn   func(e *Engine, data any)
	data any
}

// Engine is one performance of a compiled orchestra. PerformKsmps and the
// methods it reaches must be called from a single goroutine; InsertScoreEvent,
// the MIDI entry points and GetChannelPtr may be called from any goroutine.
type Engine struct {
	Layout *compiler.Program

	opts  Options
	runID uuid.UUID

	mem    dataSpace
	alloc  allocator
	sched  schedState
	stats  statsState
	tables map[int][]float64

	chanMu sync.Mutex
	chans  map[string]*opcode.Channel

	spout     []float64
	deferred  []int
	callbacks []senseCallback
	yield     func() bool
	limiter   *rate.Limiter
	perfErr   error
	header    *Instance
}

// New creates an engine for prog and runs the orchestra header.
func New(prog *compiler.Program, opts Options) (*Engine, error) {
	if opts.HostYieldRate <= 0 || opts.HostYieldRate > DefaultHostYieldRate {
		opts.HostYieldRate = DefaultHostYieldRate
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	e := &Engine{
		Layout:  prog,
		opts:    opts,
		runID:   opts.RunID,
		limiter: rate.NewLimiter(rate.Limit(opts.HostYieldRate), 1),
	}
	e.spout = make([]float64, prog.Rates.Ksmps*prog.Nchnls)
	e.sched.pending = newEventQueue(opts.MaxPendingEvents)
	if err := e.start(); err != nil {
		return nil, err
	}
	log.Infof("run %s: %d instruments, sr=%g kr=%g ksmps=%d nchnls=%d",
		e.runID, len(prog.Instruments()), prog.Rates.Sr, prog.Rates.Kr, prog.Rates.Ksmps, prog.Nchnls)
	return e, nil
}

// start brings the engine to its just-constructed state.
func (e *Engine) start() error {
	e.mem = newDataSpace(e.Layout)
	e.alloc = newAllocator(e.Layout, e.opts.MaxInstances)
	e.sched.reset(e.reader(), e.Layout.Rates.Kr)
	e.stats = newStatsState(e.runID, e.Layout.Nchnls)
	e.tables = make(map[int][]float64)
	e.chanMu.Lock()
	e.chans = make(map[string]*opcode.Channel)
	e.chanMu.Unlock()
	e.deferred = e.deferred[:0]
	e.perfErr = nil
	return e.runHeader()
}

func (e *Engine) reader() ScoreReader {
	if e.opts.Cscore {
		return e.opts.CscoreList
	}
	return e.opts.Score
}

// runHeader runs the init pass of instrument 0.
func (e *Engine) runHeader() error {
	t := e.Layout.Header()
	if len(t.Ops) == 0 {
		return nil
	}
	in, err := e.newNote(t)
	if err != nil {
		return err
	}
	in.p[1] = 0
	e.header = in
	err = e.runInit(in)
	e.release(in)
	e.header = nil
	if err != nil {
		return fmt.Errorf("orchestra header: %w", err)
	}
	return nil
}

// Reset tears the engine down to the state New left it in. The score reader
// is rewound.
func (e *Engine) Reset() error {
	e.sched.pending.flush()
	e.deactivateAll()
	if r := e.reader(); r != nil {
		r.Rewind()
	}
	return e.start()
}

// RunID identifies this performance.
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// SetAudioSink replaces the output sink.
func (e *Engine) SetAudioSink(sink AudioSink) {
	e.opts.Sink = sink
}

// AddSenseCallback registers fn to run once per cycle before events are
// sensed, in registration order.
func (e *Engine) AddSenseCallback(fn func(e *Engine, data any), data any) {
	e.callbacks = append(e.callbacks, senseCallback{fn: fn, data: data})
}

// SetYieldCallback sets the host-yield callback. It is called at most
// HostYieldRate times per second; returning false ends the performance.
func (e *Engine) SetYieldCallback(fn func() bool) {
	e.yield = fn
}

// ---------------------------------------------------------------------------
// opcode.Host
// ---------------------------------------------------------------------------

func (e *Engine) Sr() float64       { return e.Layout.Rates.Sr }
func (e *Engine) Kr() float64       { return e.Layout.Rates.Kr }
func (e *Engine) Ksmps() int        { return e.Layout.Rates.Ksmps }
func (e *Engine) Nchnls() int       { return e.Layout.Nchnls }
func (e *Engine) ZeroDBFS() float64 { return e.Layout.ZeroDBFS }
func (e *Engine) Spout() []float64  { return e.spout }

// CurTime returns the performance time in seconds.
func (e *Engine) CurTime() float64 {
	return e.sched.curTime()
}

// CurBeat returns the performance time in beats.
func (e *Engine) CurBeat() float64 {
	return e.sched.curBeat
}

// Table returns function table n.
func (e *Engine) Table(n int) ([]float64, bool) {
	t, ok := e.tables[n]
	return t, ok
}

// Schedule queues a note p[2] seconds from now.
func (e *Engine) Schedule(name string, p []float64) error {
	return e.InsertScoreEvent(Event{Opcode: 'i', P: p, Name: name}, e.CurTime())
}

// OpenFile opens name for appending.
func (e *Engine) OpenFile(name string) (io.WriteCloser, error) {
	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (e *Engine) Message(format string, args ...any) {
	log.Infof(format, args...)
}

func (e *Engine) Warning(format string, args ...any) {
	log.Warningf(format, args...)
}

// instrNumber resolves the instrument an event names.
func (e *Engine) instrNumber(ev *Event) (int, bool) {
	if ev.Name != "" {
		return e.Layout.InstrNumber(ev.Name)
	}
	if len(ev.P) < 2 {
		return 0, false
	}
	n := int(math.Abs(ev.P[1]))
	if n < 1 || n > e.Layout.MaxInsNo {
		return n, false
	}
	_, ok := e.Layout.Instr(n)
	return n, ok
}
