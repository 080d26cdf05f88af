package opcode

import "io"

// ---------------------------------------------------------------------------
// Op: one opcode bound to one note
// ---------------------------------------------------------------------------

// Op is the per-note record an opcode entry point receives: its bound
// arguments, the note it belongs to, the engine services and private state.
type Op struct {
	Entry   *Entry
	Out     []Arg
	In      []Arg
	InNames []string
	Line    int

	Note Note
	Host Host

	// State is opcode-private data. It is reset to nil every time the note
	// is activated.
	State any
}

// Note is the view an opcode has of the instrument instance running it.
type Note interface {
	InsNo() int
	P(n int) float64
	// Goto transfers control to the opcode at index target when the
	// current entry point returns.
	Goto(target int)
	// Turnoff deactivates the note at the end of the current cycle.
	Turnoff()
	// AuxAlloc allocates n words owned by the note and released with it.
	AuxAlloc(n int) []float64
	// RegisterFile adds c to the files closed when the note is released.
	RegisterFile(c io.Closer)
	// Caller returns the opcode invoking this note when the note is the body
	// of a user-defined opcode, or nil.
	Caller() *Op
}

// ChannelType selects the kind of a named bus channel.
type ChannelType uint8

const (
	ControlChannel ChannelType = iota + 1
	AudioChannel
	StringChannel
)

func (t ChannelType) String() string {
	switch t {
	case ControlChannel:
		return "control"
	case AudioChannel:
		return "audio"
	case StringChannel:
		return "string"
	}
	return "unknown"
}

// ChannelStatus is the result code of a channel query.
type ChannelStatus int

const (
	ChanOK           ChannelStatus = 0
	ChanMemory       ChannelStatus = -1
	ChanInvalidName  ChannelStatus = -2
	ChanTypeConflict ChannelStatus = -3
)

func (s ChannelStatus) String() string {
	switch s {
	case ChanOK:
		return "ok"
	case ChanMemory:
		return "memory failure"
	case ChanInvalidName:
		return "invalid channel name"
	case ChanTypeConflict:
		return "channel type conflict"
	}
	return "unknown channel status"
}

// Channel is a named bus slot. Data holds one word for control channels and
// ksmps words for audio channels.
type Channel struct {
	Name string
	Type ChannelType
	Data []float64
	Str  string
}

// Host is the set of engine services opcodes may use.
type Host interface {
	Sr() float64
	Kr() float64
	Ksmps() int
	Nchnls() int
	ZeroDBFS() float64
	CurTime() float64

	// Spout is the interleaved output bus for the current cycle.
	Spout() []float64

	Table(n int) ([]float64, bool)
	GetChannelPtr(name string, typ ChannelType) (*Channel, ChannelStatus)

	// Schedule queues a note event from inside the orchestra. p[0] is unused,
	// p[1] is the instrument (ignored when name is set), p[2] the start offset
	// from now and p[3] the duration.
	Schedule(name string, p []float64) error

	OpenFile(name string) (io.WriteCloser, error)
	Message(format string, args ...any)
	Warning(format string, args ...any)
}
