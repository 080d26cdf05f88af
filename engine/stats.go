package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// SectionStats are the amplitude statistics of one score section.
type SectionStats struct {
	Number     int
	Cycles     int64
	MaxAmp     []float64 // per channel
	OutOfRange []int64   // per channel, samples beyond 0dbfs
	PerfErrors int
}

func newSectionStats(nchnls int) SectionStats {
	return SectionStats{
		MaxAmp:     make([]float64, nchnls),
		OutOfRange: make([]int64, nchnls),
	}
}

func (s SectionStats) clone() SectionStats {
	c := s
	c.MaxAmp = append([]float64(nil), s.MaxAmp...)
	c.OutOfRange = append([]int64(nil), s.OutOfRange...)
	return c
}

func (s SectionStats) amps() string {
	return formatAmps(s.MaxAmp, s.OutOfRange)
}

func formatAmps(maxAmp []float64, over []int64) string {
	var b strings.Builder
	b.WriteString("amps:")
	for _, a := range maxAmp {
		fmt.Fprintf(&b, " %9.1f", a)
	}
	var total int64
	for _, n := range over {
		total += n
	}
	if total > 0 {
		b.WriteString(", out of range:")
		for _, n := range over {
			fmt.Fprintf(&b, " %d", n)
		}
	}
	return b.String()
}

// Stats is a snapshot of the counters of one performance run.
type Stats struct {
	RunID  uuid.UUID
	Cycles int64

	Notes       int
	MaxActive   int
	Allocations int
	Reuses      int

	InstanceBytes int64
	AuxBytes      int64

	PerfErrors    int
	InitErrors    int
	ExtraNoteOffs int
	Yields        int

	// Overall amplitude statistics, rolled up from the closed sections.
	MaxAmp     []float64
	OutOfRange []int64
	Sections   []SectionStats
}

func (s Stats) overallAmps() string {
	return formatAmps(s.MaxAmp, s.OutOfRange)
}

// statsState accumulates the counters; cur is the open section.
type statsState struct {
	Stats
	cur SectionStats
}

func newStatsState(runID uuid.UUID, nchnls int) statsState {
	return statsState{
		Stats: Stats{
			RunID:      runID,
			MaxAmp:     make([]float64, nchnls),
			OutOfRange: make([]int64, nchnls),
		},
		cur: newSectionStats(nchnls),
	}
}

func (s *statsState) perfError() {
	s.PerfErrors++
	s.cur.PerfErrors++
}

func (s *statsState) initError() {
	s.InitErrors++
}

func (s *statsState) extraNoteOff() {
	s.ExtraNoteOffs++
}

func (s *statsState) noteOn(active int) {
	s.Notes++
	s.MaxActive = max(s.MaxActive, active)
}

// measure folds one cycle of interleaved output into the open section.
func (s *statsState) measure(spout []float64, nchnls int, zeroDBFS float64) {
	s.Cycles++
	s.cur.Cycles++
	for i, v := range spout {
		ch := i % nchnls
		a := math.Abs(v)
		if a > s.cur.MaxAmp[ch] {
			s.cur.MaxAmp[ch] = a
		}
		if a > zeroDBFS {
			s.cur.OutOfRange[ch]++
		}
	}
}

// closeSection rolls the open section into the overall statistics and
// starts a new one.
func (s *statsState) closeSection(n int) SectionStats {
	sec := s.cur.clone()
	sec.Number = n
	for ch := range sec.MaxAmp {
		s.MaxAmp[ch] = max(s.MaxAmp[ch], sec.MaxAmp[ch])
		s.OutOfRange[ch] += sec.OutOfRange[ch]
	}
	s.Sections = append(s.Sections, sec)
	s.cur = newSectionStats(len(s.cur.MaxAmp))
	return sec
}

// Stats returns a snapshot of the run's counters.
func (e *Engine) Stats() Stats {
	st := e.stats.Stats
	st.MaxAmp = append([]float64(nil), st.MaxAmp...)
	st.OutOfRange = append([]int64(nil), st.OutOfRange...)
	st.Sections = make([]SectionStats, len(e.stats.Sections))
	for i, sec := range e.stats.Sections {
		st.Sections[i] = sec.clone()
	}
	return st
}
