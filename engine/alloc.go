package engine

import (
	"fmt"

	"github.com/chazu/orc/compiler"
)

// ---------------------------------------------------------------------------
// Allocator: instance arena, free lists, active and turnoff lists
// ---------------------------------------------------------------------------

// allocator owns every instance. Handles are arena indices; per-template free
// lists are index stacks, the active list is doubly linked in instrument
// number order and the turnoff list is singly linked in off-time order.
type allocator struct {
	insts []*Instance
	holes []int
	free  [][]int // by template number
	all   [][]int // by template number
	max   int
	live  int

	actHead, actTail int
	offHead          int
	active           int
}

func newAllocator(p *compiler.Program, max int) allocator {
	return allocator{
		free:    make([][]int, len(p.Templates)),
		all:     make([][]int, len(p.Templates)),
		max:     max,
		actHead: nilHandle,
		actTail: nilHandle,
		offHead: nilHandle,
	}
}

// get pops a free instance of t or creates one with mk.
func (a *allocator) get(t *compiler.Template, mk func(*compiler.Template, int) *Instance) (*Instance, bool, error) {
	if fl := a.free[t.Number]; len(fl) > 0 {
		h := fl[len(fl)-1]
		a.free[t.Number] = fl[:len(fl)-1]
		return a.insts[h], true, nil
	}
	if a.max > 0 && a.live >= a.max {
		return nil, false, fmt.Errorf("%w: %d instances allocated", ErrOutOfMemory, a.live)
	}
	var h int
	if n := len(a.holes); n > 0 {
		h = a.holes[n-1]
		a.holes = a.holes[:n-1]
	} else {
		h = len(a.insts)
		a.insts = append(a.insts, nil)
	}
	in := mk(t, h)
	a.insts[h] = in
	a.all[t.Number] = append(a.all[t.Number], h)
	a.live++
	return in, false, nil
}

// put pushes in onto its template's free list.
func (a *allocator) put(in *Instance) {
	a.free[in.tmpl.Number] = append(a.free[in.tmpl.Number], in.handle)
}

// purge drops every free instance so its memory can be reclaimed. It returns
// the number of instances dropped.
func (a *allocator) purge() int {
	n := 0
	for num, fl := range a.free {
		if len(fl) == 0 {
			continue
		}
		dropped := make(map[int]bool, len(fl))
		for _, h := range fl {
			dropped[h] = true
			a.insts[h] = nil
			a.holes = append(a.holes, h)
			n++
		}
		kept := a.all[num][:0]
		for _, h := range a.all[num] {
			if !dropped[h] {
				kept = append(kept, h)
			}
		}
		a.all[num] = kept
		a.free[num] = fl[:0]
	}
	a.live -= n
	return n
}

// freeCount returns the number of free instances of template number n.
func (a *allocator) freeCount(n int) int {
	return len(a.free[n])
}

// ---------------------------------------------------------------------------
// Active list
// ---------------------------------------------------------------------------

// link inserts in after the last active instance with the same or a lower
// instrument number.
func (a *allocator) link(in *Instance) {
	after := a.actTail
	for after != nilHandle && a.insts[after].insno > in.insno {
		after = a.insts[after].prev
	}
	in.prev = after
	if after == nilHandle {
		in.next = a.actHead
		a.actHead = in.handle
	} else {
		in.next = a.insts[after].next
		a.insts[after].next = in.handle
	}
	if in.next == nilHandle {
		a.actTail = in.handle
	} else {
		a.insts[in.next].prev = in.handle
	}
	a.active++
}

func (a *allocator) unlink(in *Instance) {
	if in.prev == nilHandle {
		a.actHead = in.next
	} else {
		a.insts[in.prev].next = in.next
	}
	if in.next == nilHandle {
		a.actTail = in.prev
	} else {
		a.insts[in.next].prev = in.prev
	}
	in.prev, in.next = nilHandle, nilHandle
	a.active--
}

// each calls fn for every active instance in list order. fn may not unlink
// instances other than the one it is given.
func (a *allocator) each(fn func(*Instance) error) error {
	for h := a.actHead; h != nilHandle; {
		in := a.insts[h]
		next := in.next
		if err := fn(in); err != nil {
			return err
		}
		h = next
	}
	return nil
}

// ---------------------------------------------------------------------------
// Turnoff list
// ---------------------------------------------------------------------------

// schedOff inserts in into the turnoff list by key; equal keys keep
// insertion order.
func (a *allocator) schedOff(in *Instance, key func(*Instance) float64) {
	k := key(in)
	prev := nilHandle
	cur := a.offHead
	for cur != nilHandle && key(a.insts[cur]) <= k {
		prev = cur
		cur = a.insts[cur].nextOff
	}
	in.nextOff = cur
	if prev == nilHandle {
		a.offHead = in.handle
	} else {
		a.insts[prev].nextOff = in.handle
	}
	in.onOff = true
}

func (a *allocator) unschedOff(in *Instance) {
	if !in.onOff {
		return
	}
	prev := nilHandle
	for cur := a.offHead; cur != nilHandle; cur = a.insts[cur].nextOff {
		if cur == in.handle {
			if prev == nilHandle {
				a.offHead = in.nextOff
			} else {
				a.insts[prev].nextOff = in.nextOff
			}
			break
		}
		prev = cur
	}
	in.nextOff = nilHandle
	in.onOff = false
}

// firstOff returns the head of the turnoff list, or nil.
func (a *allocator) firstOff() *Instance {
	if a.offHead == nilHandle {
		return nil
	}
	return a.insts[a.offHead]
}
