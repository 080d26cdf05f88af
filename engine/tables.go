package engine

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Function tables
// ---------------------------------------------------------------------------

// tableEvent handles an 'f' event: p1 is the table number (negative
// deletes), p3 the size, p4 the GEN routine and p5 onwards its arguments.
func (e *Engine) tableEvent(ev Event) error {
	if ev.PCount() < 1 {
		return ErrMissingPFields
	}
	n := int(ev.P[1])
	if n < 0 {
		if _, ok := e.tables[-n]; !ok {
			return fmt.Errorf("table %d not found", -n)
		}
		delete(e.tables, -n)
		log.Debugf("table %d deleted", -n)
		return nil
	}
	if n == 0 || ev.PCount() < 4 {
		return fmt.Errorf("%w: f %d needs size and GEN", ErrMissingPFields, n)
	}
	size := int(ev.P[3])
	if size <= 0 {
		return fmt.Errorf("table %d: illegal size %d", n, size)
	}
	args := ev.P[5:]
	tab := make([]float64, size)
	switch gen := int(ev.P[4]); gen {
	case 2:
		copy(tab, args)
	case 7:
		gen7(tab, args)
	case 10:
		gen10(tab, args)
	default:
		return fmt.Errorf("table %d: unknown GEN %d", n, gen)
	}
	if _, ok := e.tables[n]; ok {
		log.Debugf("table %d replaced", n)
	}
	e.tables[n] = tab
	return nil
}

// gen7 fills tab with straight line segments: value, length, value, ...
// The last value holds to the end of the table.
func gen7(tab []float64, args []float64) {
	if len(args) == 0 {
		return
	}
	i := 0
	v := args[0]
	for k := 1; k+1 < len(args) && i < len(tab); k += 2 {
		seglen := int(args[k])
		next := args[k+1]
		for j := 0; j < seglen && i < len(tab); j++ {
			tab[i] = v + (next-v)*float64(j)/float64(seglen)
			i++
		}
		v = next
	}
	for ; i < len(tab); i++ {
		tab[i] = v
	}
}

// gen10 fills tab with one cycle of a sum of harmonic sines; args are the
// relative strengths of partials 1, 2, ...
func gen10(tab []float64, args []float64) {
	size := float64(len(tab))
	for h, amp := range args {
		if amp == 0 {
			continue
		}
		w := 2 * math.Pi * float64(h+1) / size
		for i := range tab {
			tab[i] += amp * math.Sin(w*float64(i))
		}
	}
}
