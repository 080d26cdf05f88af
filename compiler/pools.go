package compiler

import "strings"

// ---------------------------------------------------------------------------
// Constant pools
// ---------------------------------------------------------------------------

// FloatPool interns numeric constants. Two literals share a slot when their
// parsed values are equal; the first literal inserted owns the slot.
type FloatPool struct {
	values []float64
	index  map[float64]int
}

// NewFloatPool creates an empty pool.
func NewFloatPool() *FloatPool {
	return &FloatPool{index: make(map[float64]int)}
}

// Intern returns the pool index of v, adding it if needed.
func (p *FloatPool) Intern(v float64) int {
	if idx, ok := p.index[v]; ok {
		return idx
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.index[v] = idx
	return idx
}

// Len returns the number of distinct constants.
func (p *FloatPool) Len() int {
	return len(p.values)
}

// Values returns the constants in pool order.
func (p *FloatPool) Values() []float64 {
	out := make([]float64, len(p.values))
	copy(out, p.values)
	return out
}

// StringPool interns quoted string literals by exact source text.
type StringPool struct {
	raw   []string
	index map[string]int
}

// NewStringPool creates an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]int)}
}

// Intern returns the pool index of the quoted literal text.
func (p *StringPool) Intern(text string) int {
	if idx, ok := p.index[text]; ok {
		return idx
	}
	idx := len(p.raw)
	p.raw = append(p.raw, text)
	p.index[text] = idx
	return idx
}

// Len returns the number of distinct literals.
func (p *StringPool) Len() int {
	return len(p.raw)
}

// Decode builds the string-constant area: every literal unquoted and
// escape-decoded, stored NUL-terminated back to back. offsets[i] is the byte
// offset of literal i.
func (p *StringPool) Decode() (data []byte, offsets []int) {
	offsets = make([]int, len(p.raw))
	for i, raw := range p.raw {
		offsets[i] = len(data)
		data = append(data, Unquote(raw)...)
		data = append(data, 0)
	}
	return data, offsets
}

// Unquote strips the surrounding quotes of a string literal and decodes its
// escapes: \n \t \r \a \b \f \v \\ \" \' and octal \ooo. Unknown escapes are
// kept as written.
func Unquote(text string) string {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	if strings.IndexByte(text, '\\') < 0 {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := text[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '"', '\'':
			b.WriteByte(e)
		default:
			if e >= '0' && e <= '7' {
				v := 0
				n := 0
				for n < 3 && i < len(text) && text[i] >= '0' && text[i] <= '7' {
					v = v*8 + int(text[i]-'0')
					i++
					n++
				}
				i--
				b.WriteByte(byte(v))
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}
