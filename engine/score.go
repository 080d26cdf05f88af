package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Score readers
// ---------------------------------------------------------------------------

// ScoreReader yields score events in performance order. Times are in beats
// relative to the start of the event's section.
type ScoreReader interface {
	Next() (Event, bool)
	Rewind()
}

// scoreOpcodes are the opcodes a score may contain.
const scoreOpcodes = "iqfaelsw"

// Score is a sorted in-memory score.
type Score struct {
	events []Event
	pos    int
}

// opRank orders events sharing a start time: tempo, then tables, then
// mutes, then notes.
func opRank(op byte) int {
	switch op {
	case 'w':
		return 0
	case 'f':
		return 1
	case 'q':
		return 2
	case 'a':
		return 3
	case 'i':
		return 4
	}
	return 5
}

// NewScore sorts events within each section by start time, keeping section
// boundaries ('s', 'l', 'e') in place. Events with equal times are ordered
// tables first and then in input order.
func NewScore(events []Event) *Score {
	out := make([]Event, 0, len(events))
	section := make([]Event, 0, len(events))
	flush := func() {
		sort.SliceStable(section, func(i, j int) bool {
			a, b := section[i], section[j]
			if a.P2() != b.P2() {
				return a.P2() < b.P2()
			}
			return opRank(a.Opcode) < opRank(b.Opcode)
		})
		out = append(out, section...)
		section = section[:0]
	}
	for _, ev := range events {
		switch ev.Opcode {
		case 's', 'l', 'e':
			flush()
			out = append(out, ev.clone())
		default:
			section = append(section, ev.clone())
		}
	}
	flush()
	return &Score{events: out}
}

func (s *Score) Next() (Event, bool) {
	if s.pos >= len(s.events) {
		return Event{}, false
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true
}

func (s *Score) Rewind() {
	s.pos = 0
}

// Events returns the sorted events.
func (s *Score) Events() []Event {
	return s.events
}

// ReadScore parses score text, one event per line:
//
//	i1 0 1 0.5      note
//	i "lead" 0 1    named instrument
//	f1 0 8 7 0 8 1  function table
//	w 0 0 120       tempo (p3 beats per minute)
//	s / e           section end / score end
//
// ';' starts a comment.
func ReadScore(text string) (*Score, error) {
	var events []Event
	for n, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ev, err := parseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("score line %d: %w", n+1, err)
		}
		events = append(events, ev)
	}
	return NewScore(events), nil
}

func parseEvent(line string) (Event, error) {
	op := line[0]
	if strings.IndexByte(scoreOpcodes, op) < 0 {
		return Event{}, fmt.Errorf("%w: %q", ErrBadOpcode, op)
	}
	ev := Event{Opcode: op, P: []float64{0}}
	rest := strings.TrimSpace(line[1:])
	if op == 'i' && strings.HasPrefix(rest, `"`) {
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return Event{}, fmt.Errorf("unterminated instrument name")
		}
		ev.Name = rest[1 : end+1]
		rest = rest[end+2:]
		ev.P = append(ev.P, 0)
	}
	for _, f := range strings.Fields(rest) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Event{}, fmt.Errorf("bad p-field %q", f)
		}
		ev.P = append(ev.P, v)
	}
	if op == 'i' && ev.PCount() < 3 {
		return Event{}, fmt.Errorf("%w: %s", ErrMissingPFields, line)
	}
	return ev, nil
}

// CscoreList replays score segments. Each segment ends with an 'l' event and
// the last is followed by 'e'.
type CscoreList struct {
	Score
}

// NewCscoreList builds a replay list from segments.
func NewCscoreList(segments [][]Event) *CscoreList {
	var events []Event
	for _, seg := range segments {
		events = append(events, seg...)
		if n := len(seg); n == 0 || seg[n-1].Opcode != 'l' {
			events = append(events, Event{Opcode: 'l'})
		}
	}
	events = append(events, Event{Opcode: 'e'})
	return &CscoreList{Score: *NewScore(events)}
}
