package engine

import (
	"github.com/chazu/orc/opcode"
)

// ---------------------------------------------------------------------------
// Channel bus
// ---------------------------------------------------------------------------

func validChannelName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || c == '"' {
			return false
		}
	}
	return true
}

// GetChannelPtr returns the named bus channel, creating it with the given
// type on first use. A channel keeps its type for the life of the engine.
// Safe for concurrent use; the channel data itself is not synchronized.
func (e *Engine) GetChannelPtr(name string, typ opcode.ChannelType) (*opcode.Channel, opcode.ChannelStatus) {
	if !validChannelName(name) {
		return nil, opcode.ChanInvalidName
	}
	e.chanMu.Lock()
	defer e.chanMu.Unlock()
	if ch, ok := e.chans[name]; ok {
		if ch.Type != typ {
			return nil, opcode.ChanTypeConflict
		}
		return ch, opcode.ChanOK
	}

	ch := &opcode.Channel{Name: name, Type: typ}
	switch typ {
	case opcode.ControlChannel:
		ch.Data = make([]float64, 1)
	case opcode.AudioChannel:
		ch.Data = make([]float64, e.Ksmps())
	case opcode.StringChannel:
	default:
		return nil, opcode.ChanTypeConflict
	}
	if e.opts.MaxChannels > 0 && len(e.chans) >= e.opts.MaxChannels {
		return nil, opcode.ChanMemory
	}
	e.chans[name] = ch
	log.Debugf("created %s channel %q", typ, name)
	return ch, opcode.ChanOK
}
