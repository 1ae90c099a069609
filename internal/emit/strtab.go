package emit

import (
	"fmt"
	"sort"
	"strings"
)

// String is a buffered text value owned by a StringTable. It has no
// valid Offset until the table it belongs to has been laid out; until
// then it is open for further Append calls (used to accumulate encoded
// parameter-type and return-type signatures while the function's AST is
// walked).
type String struct {
	text   string
	offset string
}

// Append adds more text to the string.
func (s *String) Append(more string) {
	s.text += more
}

// Text returns the string's current text.
func (s *String) Text() string {
	return s.text
}

// Offset returns the assembler expression for this string's byte
// distance from its table's start label. Panics if the table has not
// been laid out yet.
func (s *String) Offset() string {
	assertf(s.offset != "", "String.Offset called before layout")
	return s.offset
}

type stringEntry struct {
	label *Label
	text  string
}

// StringTable accumulates requested strings, deduplicates and
// suffix-merges them, and assigns each distinct text a byte offset
// within a single emitted pool.
type StringTable struct {
	strings []*String
	entries []stringEntry
	laidOut bool
}

// NewStringTable creates an empty table.
func NewStringTable() *StringTable {
	return &StringTable{}
}

// New registers a String with the given initial text. Always returns a
// fresh handle, even for a text seen before: duplicates are deduplicated
// at layout time, not here. Panics if the table is already laid out.
func (t *StringTable) New(text string) *String {
	assertf(!t.laidOut, "StringTable.New called after layout")
	s := &String{text: text}
	t.strings = append(t.strings, s)
	return s
}

// StartLabel returns the label of the table's first emitted entry, the
// base every offset in the table is measured from. Valid only after
// Layout.
func (t *StringTable) StartLabel() *Label {
	assertf(t.laidOut, "StringTable.StartLabel called before layout")
	return t.entries[0].label
}

// Layout freezes the table: every distinct text value registered via New
// is assigned a label (or shares one with a longer string it is a suffix
// of), and every String handle's Offset becomes valid.
//
// Texts are placed in order of decreasing length, with a lexicographic
// tie-break; both the order and the tie-break are observable in the
// resulting offsets and must be reproduced exactly (spec.md §4.3).
func (t *StringTable) Layout(newLabel func() *Label) {
	assertf(!t.laidOut, "StringTable.Layout called twice")

	seen := make(map[string]bool)
	unique := make([]string, 0, len(t.strings))
	for _, s := range t.strings {
		if !seen[s.text] {
			seen[s.text] = true
			unique = append(unique, s.text)
		}
	}
	sort.Slice(unique, func(i, j int) bool {
		if len(unique[i]) != len(unique[j]) {
			return len(unique[i]) > len(unique[j])
		}
		return unique[i] < unique[j]
	})

	offsets := make(map[string]string, len(unique))
	for _, text := range unique {
		shared := false
		for _, e := range t.entries {
			if strings.HasSuffix(e.text, text) {
				delta := len(e.text) - len(text)
				if delta == 0 {
					offsets[text] = offsets[e.text]
				} else {
					offsets[text] = fmt.Sprintf("%s+%d", offsets[e.text], delta)
				}
				shared = true
				break
			}
		}
		if shared {
			continue
		}
		label := newLabel()
		t.entries = append(t.entries, stringEntry{label, text})
		offsets[text] = diff(label, t.entries[0].label)
	}

	t.laidOut = true
	for _, s := range t.strings {
		s.offset = offsets[s.text]
	}
}

// Emit writes each distinct entry's label followed by its `.string`
// directive, in the order entries were allocated during Layout.
func (t *StringTable) Emit(w *Writer) {
	for _, e := range t.entries {
		w.MarkLabel(e.label)
		w.Str(e.text)
	}
}
