// Package wire holds the canonical CBOR encodings of engine events, service
// messages and compiled-layout snapshots.
package wire

import (
	"fmt"

	"github.com/chazu/orc/engine"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode is canonical so equal values always encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes v in canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// Event is the wire form of an engine event.
type Event struct {
	Opcode string    `cbor:"1,keyasint"`
	P      []float64 `cbor:"2,keyasint"`
	Name   string    `cbor:"3,keyasint,omitempty"`
}

// FromEvent converts an engine event.
func FromEvent(ev engine.Event) Event {
	return Event{
		Opcode: string(ev.Opcode),
		P:      append([]float64(nil), ev.P...),
		Name:   ev.Name,
	}
}

// Engine converts the event back. An empty opcode becomes 0, which the
// engine rejects as a bad opcode.
func (e Event) Engine() engine.Event {
	ev := engine.Event{P: append([]float64(nil), e.P...), Name: e.Name}
	if len(e.Opcode) == 1 {
		ev.Opcode = e.Opcode[0]
	}
	return ev
}

// MarshalEvent serializes an event to CBOR bytes.
func MarshalEvent(e *Event) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEvent deserializes an event from CBOR bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("wire: unmarshal event: %w", err)
	}
	return &e, nil
}

// ---------------------------------------------------------------------------
// Service messages
// ---------------------------------------------------------------------------

// InsertRequest asks the engine to queue an event Offset seconds after the
// start of the performance.
type InsertRequest struct {
	Event  Event   `cbor:"1,keyasint"`
	Offset float64 `cbor:"2,keyasint"`
}

// InsertResponse carries the engine status code of an insertion.
type InsertResponse struct {
	Status  int    `cbor:"1,keyasint"`
	RunID   string `cbor:"2,keyasint"`
	Message string `cbor:"3,keyasint,omitempty"`
}

// StatsRequest asks for the statistics of the current run.
type StatsRequest struct{}

// SectionReport is the wire form of engine.SectionStats.
type SectionReport struct {
	Number     int       `cbor:"1,keyasint"`
	Cycles     int64     `cbor:"2,keyasint"`
	MaxAmp     []float64 `cbor:"3,keyasint"`
	OutOfRange []int64   `cbor:"4,keyasint"`
	PerfErrors int       `cbor:"5,keyasint"`
}

// StatsResponse is the wire form of engine.Stats.
type StatsResponse struct {
	RunID         string          `cbor:"1,keyasint"`
	Cycles        int64           `cbor:"2,keyasint"`
	CurTime       float64         `cbor:"3,keyasint"`
	Notes         int             `cbor:"4,keyasint"`
	MaxActive     int             `cbor:"5,keyasint"`
	Allocations   int             `cbor:"6,keyasint"`
	Reuses        int             `cbor:"7,keyasint"`
	PerfErrors    int             `cbor:"8,keyasint"`
	InitErrors    int             `cbor:"9,keyasint"`
	ExtraNoteOffs int             `cbor:"10,keyasint"`
	MaxAmp        []float64       `cbor:"11,keyasint"`
	OutOfRange    []int64         `cbor:"12,keyasint"`
	Sections      []SectionReport `cbor:"13,keyasint"`
}

// FromStats converts an engine statistics snapshot taken at curTime.
func FromStats(st engine.Stats, curTime float64) *StatsResponse {
	r := &StatsResponse{
		RunID:         st.RunID.String(),
		Cycles:        st.Cycles,
		CurTime:       curTime,
		Notes:         st.Notes,
		MaxActive:     st.MaxActive,
		Allocations:   st.Allocations,
		Reuses:        st.Reuses,
		PerfErrors:    st.PerfErrors,
		InitErrors:    st.InitErrors,
		ExtraNoteOffs: st.ExtraNoteOffs,
		MaxAmp:        st.MaxAmp,
		OutOfRange:    st.OutOfRange,
	}
	for _, sec := range st.Sections {
		r.Sections = append(r.Sections, SectionReport{
			Number:     sec.Number,
			Cycles:     sec.Cycles,
			MaxAmp:     sec.MaxAmp,
			OutOfRange: sec.OutOfRange,
			PerfErrors: sec.PerfErrors,
		})
	}
	return r
}

// RewindRequest asks the engine to rewind its score.
type RewindRequest struct{}

// RewindResponse acknowledges a rewind.
type RewindResponse struct {
	RunID   string  `cbor:"1,keyasint"`
	CurTime float64 `cbor:"2,keyasint"`
}
