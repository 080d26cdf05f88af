package engine

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// Event is a score or real-time event. P[0] is unused; P[1] is p1. Name is
// the instrument name for named instruments.
type Event struct {
	Opcode byte
	P      []float64
	Name   string

	midi bool
}

// PCount returns the number of p-fields.
func (ev Event) PCount() int {
	if len(ev.P) == 0 {
		return 0
	}
	return len(ev.P) - 1
}

// P2 returns the start time field, or 0.
func (ev Event) P2() float64 {
	if len(ev.P) > 2 {
		return ev.P[2]
	}
	return 0
}

// P3 returns the duration field, or 0.
func (ev Event) P3() float64 {
	if len(ev.P) > 3 {
		return ev.P[3]
	}
	return 0
}

func (ev Event) String() string {
	var b strings.Builder
	b.WriteByte(ev.Opcode)
	if ev.Name != "" {
		fmt.Fprintf(&b, " %q", ev.Name)
	}
	for i := 1; i < len(ev.P); i++ {
		if i == 1 && ev.Name != "" {
			continue
		}
		fmt.Fprintf(&b, " %g", ev.P[i])
	}
	return b.String()
}

func (ev Event) clone() Event {
	c := ev
	c.P = append([]float64(nil), ev.P...)
	return c
}

// realtimeOpcodes are the event opcodes accepted for real-time insertion.
const realtimeOpcodes = "iqfaels"

// ---------------------------------------------------------------------------
// Pending real-time events
// ---------------------------------------------------------------------------

type evtNode struct {
	ev    Event
	start int64 // cycle
	next  int
}

// eventQueue is the pending real-time event list: nodes live in an arena,
// linked in start order, and spent nodes go back on a free stack. Producers
// on any goroutine splice under mu; only the performance goroutine drains.
type eventQueue struct {
	mu    sync.Mutex
	nodes []evtNode
	free  []int
	head  int
	n     int
	max   int
}

func newEventQueue(max int) *eventQueue {
	return &eventQueue{head: nilHandle, max: max}
}

// push inserts ev after every queued event starting at or before start.
func (q *eventQueue) push(ev Event, start int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var idx int
	if n := len(q.free); n > 0 {
		idx = q.free[n-1]
		q.free = q.free[:n-1]
	} else {
		if q.max > 0 && len(q.nodes) >= q.max {
			return fmt.Errorf("%w: %d pending events", ErrOutOfMemory, q.n)
		}
		idx = len(q.nodes)
		q.nodes = append(q.nodes, evtNode{})
	}
	q.nodes[idx] = evtNode{ev: ev, start: start, next: nilHandle}

	prev := nilHandle
	cur := q.head
	for cur != nilHandle && q.nodes[cur].start <= start {
		prev = cur
		cur = q.nodes[cur].next
	}
	q.nodes[idx].next = cur
	if prev == nilHandle {
		q.head = idx
	} else {
		q.nodes[prev].next = idx
	}
	q.n++
	return nil
}

// drain appends to out every event due at cycle now, oldest first, and
// recycles their nodes.
func (q *eventQueue) drain(now int64, out []Event) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head != nilHandle && q.nodes[q.head].start <= now {
		idx := q.head
		out = append(out, q.nodes[idx].ev)
		q.head = q.nodes[idx].next
		q.nodes[idx] = evtNode{next: nilHandle}
		q.free = append(q.free, idx)
		q.n--
	}
	return out
}

// flush discards every pending event.
func (q *eventQueue) flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.n
	for q.head != nilHandle {
		idx := q.head
		q.head = q.nodes[idx].next
		q.nodes[idx] = evtNode{next: nilHandle}
		q.free = append(q.free, idx)
	}
	q.n = 0
	return n
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// ---------------------------------------------------------------------------
// Insertion API
// ---------------------------------------------------------------------------

// InsertScoreEvent queues a copy of ev to start p2 seconds after offset,
// where offset is measured from the start of the performance. Events due in
// the past start in the current cycle. Safe for concurrent use.
func (e *Engine) InsertScoreEvent(ev Event, offset float64) error {
	if strings.IndexByte(realtimeOpcodes, ev.Opcode) < 0 {
		return fmt.Errorf("%w: %q", ErrBadOpcode, ev.Opcode)
	}
	if ev.Opcode == 'i' {
		if ev.PCount() < 3 {
			return fmt.Errorf("%w: i event needs p1, p2 and p3, got %d", ErrMissingPFields, ev.PCount())
		}
		if _, ok := e.instrNumber(&ev); !ok {
			if ev.Name != "" {
				return fmt.Errorf("%w: %s", ErrUnknownInstrument, ev.Name)
			}
			return fmt.Errorf("%w: %g", ErrUnknownInstrument, ev.P[1])
		}
	}
	if ev.Opcode == 'f' && ev.PCount() < 1 {
		return fmt.Errorf("%w: f event needs a table number", ErrMissingPFields)
	}

	start := int64(math.Round((ev.P2() + offset) * e.Kr()))
	if now := e.sched.cycle.Load(); start < now {
		start = now
	}
	return e.sched.pending.push(ev.clone(), start)
}
