package opcode

import (
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Bus channels, function tables and file output
// ---------------------------------------------------------------------------

func channelFor(op *Op, nameArg Arg, typ ChannelType) (*Channel, bool) {
	ch, status := op.Host.GetChannelPtr(nameArg.String(), typ)
	if status != ChanOK {
		op.Host.Warning("instr %d line %d: channel %q: %v", op.Note.InsNo(), op.Line, nameArg.String(), status)
		return nil, false
	}
	op.State = ch
	return ch, true
}

func chngetInit(op *Op) int {
	ch, ok := channelFor(op, op.In[0], ControlChannel)
	if !ok {
		return NotOK
	}
	op.Out[0].Set(ch.Data[0])
	return OK
}

func chngetPerf(op *Op) int {
	op.Out[0].Set(op.State.(*Channel).Data[0])
	return OK
}

func chngetAudioInit(op *Op) int {
	if _, ok := channelFor(op, op.In[0], AudioChannel); !ok {
		return NotOK
	}
	return OK
}

func chngetAudio(op *Op) int {
	copy(op.Out[0].Vector(), op.State.(*Channel).Data)
	return OK
}

func chngetStrInit(op *Op) int {
	ch, ok := channelFor(op, op.In[0], StringChannel)
	if !ok {
		return NotOK
	}
	op.Out[0].SetString(ch.Str)
	return OK
}

func chngetStr(op *Op) int {
	op.Out[0].SetString(op.State.(*Channel).Str)
	return OK
}

func chnsetInit(op *Op) int {
	ch, ok := channelFor(op, op.In[1], ControlChannel)
	if !ok {
		return NotOK
	}
	ch.Data[0] = op.In[0].Float()
	return OK
}

func chnsetPerf(op *Op) int {
	op.State.(*Channel).Data[0] = op.In[0].Float()
	return OK
}

func chnsetAudioInit(op *Op) int {
	if _, ok := channelFor(op, op.In[1], AudioChannel); !ok {
		return NotOK
	}
	return OK
}

func chnsetAudio(op *Op) int {
	copy(op.State.(*Channel).Data, op.In[0].Vector())
	return OK
}

func chnsetStrInit(op *Op) int {
	ch, ok := channelFor(op, op.In[1], StringChannel)
	if !ok {
		return NotOK
	}
	ch.Str = op.In[0].String()
	return OK
}

func chnsetStr(op *Op) int {
	op.State.(*Channel).Str = op.In[0].String()
	return OK
}

// tableRead reads index In[0] of table In[1], clamping to the table bounds.
func tableRead(op *Op) int {
	fn := int(op.In[1].Float())
	tab, ok := op.Host.Table(fn)
	if !ok || len(tab) == 0 {
		op.Host.Warning("instr %d line %d: table %d not found", op.Note.InsNo(), op.Line, fn)
		return NotOK
	}
	i := int(op.In[0].Float())
	if i < 0 {
		i = 0
	}
	if i >= len(tab) {
		i = len(tab) - 1
	}
	op.Out[0].Set(tab[i])
	return OK
}

// fprints writes a formatted line to a file. The file stays open for the life
// of the note and is closed when the note is released.
func fprints(op *Op) int {
	w, err := op.Host.OpenFile(op.In[0].String())
	if err != nil {
		op.Host.Warning("instr %d line %d: fprints: %v", op.Note.InsNo(), op.Line, err)
		return NotOK
	}
	op.Note.RegisterFile(w)
	args := make([]float64, 0, len(op.In)-2)
	for _, in := range op.In[2:] {
		args = append(args, in.Float())
	}
	if _, err := io.WriteString(w, FormatC(op.In[1].String(), args)); err != nil {
		op.Host.Warning("instr %d line %d: fprints: %v", op.Note.InsNo(), op.Line, err)
		return NotOK
	}
	return OK
}

// FormatC formats numeric arguments with a printf-style format string. The
// integer verbs %d, %i, %x and %c receive truncated values.
func FormatC(format string, args []float64) string {
	var b strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("+- #0123456789.", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			b.WriteString(format[i:])
			break
		}
		verb := format[j]
		spec := format[i:j]
		if verb == '%' {
			b.WriteByte('%')
			i = j
			continue
		}
		var v float64
		if next < len(args) {
			v = args[next]
			next++
		}
		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&b, spec+"d", int64(v))
		case 'x', 'X', 'c', 'o':
			fmt.Fprintf(&b, spec+string(verb), int64(v))
		default:
			fmt.Fprintf(&b, spec+string(verb), v)
		}
		i = j
	}
	return b.String()
}
