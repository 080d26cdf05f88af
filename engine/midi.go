package engine

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// MIDI note routing
// ---------------------------------------------------------------------------

// midiTag is the fractional p1 that tags a held MIDI note: channel n plays
// instrument n, and the note number goes in the fraction.
func midiTag(channel, note int) float64 {
	return float64(channel) + float64(note)/1000
}

// MidiNoteOn queues an indefinite note on the instrument numbered after the
// channel (1-16). p4 is the note number and p5 the velocity. A zero velocity
// is a note-off. Safe for concurrent use.
func (e *Engine) MidiNoteOn(channel, note, velocity int) error {
	if velocity == 0 {
		return e.MidiNoteOff(channel, note)
	}
	if err := e.midiCheck(channel, note); err != nil {
		return err
	}
	ev := Event{
		Opcode: 'i',
		P:      []float64{0, midiTag(channel, note), 0, -1, float64(note), float64(velocity)},
		midi:   true,
	}
	return e.sched.pending.push(ev, e.sched.cycle.Load())
}

// MidiNoteOff queues the turnoff of the held note started by the matching
// note-on. A note-off with nothing to turn off is counted, not reported.
func (e *Engine) MidiNoteOff(channel, note int) error {
	if err := e.midiCheck(channel, note); err != nil {
		return err
	}
	ev := Event{
		Opcode: 'i',
		P:      []float64{0, -midiTag(channel, note), 0, 0},
		midi:   true,
	}
	return e.sched.pending.push(ev, e.sched.cycle.Load())
}

func (e *Engine) midiCheck(channel, note int) error {
	if note < 0 || note > 127 {
		return fmt.Errorf("note number %d out of range", note)
	}
	if _, ok := e.Layout.Instr(channel); !ok || channel < 1 || channel > e.Layout.MaxInsNo {
		return fmt.Errorf("%w: MIDI channel %d", ErrUnknownInstrument, channel)
	}
	return nil
}
