package server

import (
	"connectrpc.com/connect"

	"github.com/chazu/orc/wire"
)

// cborCodec carries the wire package's canonical CBOR messages over Connect.
// Requests use the content type application/cbor.
type cborCodec struct{}

var _ connect.Codec = cborCodec{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Marshal(v any) ([]byte, error) { return wire.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return wire.Unmarshal(data, v) }

// WithCBOR is the codec option for clients of the engine service.
func WithCBOR() connect.Option {
	return connect.WithCodec(cborCodec{})
}
