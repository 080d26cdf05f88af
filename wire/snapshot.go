package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/chazu/orc/compiler"
)

// ---------------------------------------------------------------------------
// Layout snapshots
// ---------------------------------------------------------------------------

// LayoutSnapshot is the deterministic, address-resolved view of a compiled
// orchestra: rates, global pool layout, constants and every template's
// opcode chain.
type LayoutSnapshot struct {
	Sr           float64            `cbor:"1,keyasint"`
	Kr           float64            `cbor:"2,keyasint"`
	Ksmps        int                `cbor:"3,keyasint"`
	Nchnls       int                `cbor:"4,keyasint"`
	ZeroDBFS     float64            `cbor:"5,keyasint"`
	StrVarMaxLen int                `cbor:"6,keyasint"`
	Globals      PoolLayout         `cbor:"7,keyasint"`
	FloatConsts  []float64          `cbor:"8,keyasint"`
	StringConsts []byte             `cbor:"9,keyasint"`
	StrOffsets   []int              `cbor:"10,keyasint"`
	MaxInsNo     int                `cbor:"11,keyasint"`
	Templates    []TemplateSnapshot `cbor:"12,keyasint"`
}

// PoolLayout mirrors compiler.Layout.
type PoolLayout struct {
	Fixed  int `cbor:"1,keyasint"`
	ACount int `cbor:"2,keyasint"`
	SCount int `cbor:"3,keyasint"`
	Len    int `cbor:"4,keyasint"`
}

// TemplateSnapshot is one instrument or user-defined opcode body.
type TemplateSnapshot struct {
	Number     int          `cbor:"1,keyasint"`
	Numbers    []int        `cbor:"2,keyasint,omitempty"`
	Names      []string     `cbor:"3,keyasint,omitempty"`
	OpcodeName string       `cbor:"4,keyasint,omitempty"`
	Local      PoolLayout   `cbor:"5,keyasint"`
	PMax       int          `cbor:"6,keyasint"`
	Ops        []OpSnapshot `cbor:"7,keyasint"`
}

// OpSnapshot is one opcode of a template with its resolved operands.
type OpSnapshot struct {
	Opcode string            `cbor:"1,keyasint"`
	Out    []OperandSnapshot `cbor:"2,keyasint,omitempty"`
	In     []OperandSnapshot `cbor:"3,keyasint,omitempty"`
	Line   int               `cbor:"4,keyasint"`
}

// OperandSnapshot is a resolved operand: its address space, type code and
// final address.
type OperandSnapshot struct {
	Kind uint8 `cbor:"1,keyasint"`
	Type uint8 `cbor:"2,keyasint"`
	Addr int   `cbor:"3,keyasint"`
}

func poolLayout(l compiler.Layout) PoolLayout {
	return PoolLayout{Fixed: l.Fixed, ACount: l.ACount, SCount: l.SCount, Len: l.Len}
}

func operands(ops []compiler.Operand) []OperandSnapshot {
	if len(ops) == 0 {
		return nil
	}
	out := make([]OperandSnapshot, len(ops))
	for i, o := range ops {
		out[i] = OperandSnapshot{Kind: uint8(o.Kind), Type: o.Type, Addr: o.Addr}
	}
	return out
}

// SnapshotOf builds the layout snapshot of p. Templates appear once, in
// number order, with their aliases listed in Numbers.
func SnapshotOf(p *compiler.Program) *LayoutSnapshot {
	s := &LayoutSnapshot{
		Sr:           p.Rates.Sr,
		Kr:           p.Rates.Kr,
		Ksmps:        p.Rates.Ksmps,
		Nchnls:       p.Nchnls,
		ZeroDBFS:     p.ZeroDBFS,
		StrVarMaxLen: p.StrVarMaxLen,
		Globals:      poolLayout(p.Globals),
		FloatConsts:  p.FloatConsts,
		StringConsts: p.StringConsts,
		StrOffsets:   p.StrOffsets,
		MaxInsNo:     p.MaxInsNo,
	}
	for n, t := range p.Templates {
		if t == nil || t.Number != n {
			continue
		}
		ts := TemplateSnapshot{
			Number:  t.Number,
			Numbers: t.Numbers,
			Names:   t.Names,
			Local:   poolLayout(t.Layout),
			PMax:    t.PMax,
		}
		if t.IsOpcode {
			ts.OpcodeName = t.OpcodeName
		}
		for _, op := range t.Ops {
			ts.Ops = append(ts.Ops, OpSnapshot{
				Opcode: op.Entry.Name,
				Out:    operands(op.Out),
				In:     operands(op.In),
				Line:   op.Line,
			})
		}
		s.Templates = append(s.Templates, ts)
	}
	return s
}

// MarshalSnapshot serializes a snapshot to canonical CBOR bytes.
func MarshalSnapshot(s *LayoutSnapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*LayoutSnapshot, error) {
	var s LayoutSnapshot
	if err := Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Fingerprint is the SHA-256 of the canonical snapshot encoding. Compiling
// the same text twice yields the same fingerprint.
func Fingerprint(p *compiler.Program) ([32]byte, error) {
	data, err := MarshalSnapshot(SnapshotOf(p))
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// FingerprintHex returns the fingerprint as a hex string.
func FingerprintHex(p *compiler.Program) (string, error) {
	fp, err := Fingerprint(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(fp[:]), nil
}
