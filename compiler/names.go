package compiler

// ---------------------------------------------------------------------------
// NameTable: hashed variable names
// ---------------------------------------------------------------------------

// NameEntry is one variable known to a scope. Index is the ordinal of the
// variable within its class, assigned in order of first appearance.
type NameEntry struct {
	Name    string
	Type    byte // declared type code ('i', 'k', 'a', 'S', 'w', 'f', 't')
	Class   VarClass
	Index   int
	Defined bool // has appeared as an output
	next    int32
}

// NameTable maps variable names to entries through 256 hash buckets, each a
// singly linked chain of entry indices. Entries live in one slice so a table
// can be emptied and reused for the next instrument without reallocating.
type NameTable struct {
	buckets [256]int32
	entries []NameEntry
	counts  [numClasses]int
}

// NewNameTable creates an empty table.
func NewNameTable() *NameTable {
	t := &NameTable{}
	t.Reset()
	return t
}

// Reset empties the table and its per-class counters.
func (t *NameTable) Reset() {
	for i := range t.buckets {
		t.buckets[i] = -1
	}
	t.entries = t.entries[:0]
	t.counts = [numClasses]int{}
}

// Lookup returns the entry for name, or nil.
func (t *NameTable) Lookup(name string) *NameEntry {
	for i := t.buckets[nameHash(name)]; i >= 0; i = t.entries[i].next {
		if t.entries[i].Name == name {
			return &t.entries[i]
		}
	}
	return nil
}

// Add creates an entry for name with the next ordinal of its class. The
// caller must have checked that name is not present.
func (t *NameTable) Add(name string, typ byte, class VarClass) *NameEntry {
	h := nameHash(name)
	t.entries = append(t.entries, NameEntry{
		Name:  name,
		Type:  typ,
		Class: class,
		Index: t.counts[class],
		next:  t.buckets[h],
	})
	t.counts[class]++
	t.buckets[h] = int32(len(t.entries) - 1)
	return &t.entries[len(t.entries)-1]
}

// Count returns the number of variables of a class.
func (t *NameTable) Count(c VarClass) int {
	return t.counts[c]
}

// Len returns the number of entries.
func (t *NameTable) Len() int {
	return len(t.entries)
}

// Entries returns the entries in order of creation.
func (t *NameTable) Entries() []NameEntry {
	out := make([]NameEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// pearson is a fixed permutation of 0..255 used by nameHash.
var pearson [256]byte

func init() {
	for i := range pearson {
		pearson[i] = byte(i)
	}
	// Fisher-Yates with a fixed xorshift seed, so the permutation is the
	// same on every run.
	x := uint32(0x9e3779b9)
	for i := 255; i > 0; i-- {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		j := int(x % uint32(i+1))
		pearson[i], pearson[j] = pearson[j], pearson[i]
	}
}

// nameHash is an 8-bit Pearson hash.
func nameHash(s string) byte {
	var h byte
	for i := 0; i < len(s); i++ {
		h = pearson[h^s[i]]
	}
	return h
}
