package emit

import "strconv"

// Label is a symbolic position in the output stream, in the style of a
// GNU assembler local label: referenced as "<name>f" before it has been
// emitted and "<name>b" after, so the assembler - not this package -
// resolves it to a concrete address.
type Label struct {
	name    string
	emitted bool
}

// ref renders the label's current reference form. It must be computed at
// the point a reference is appended to the writer's buffer, not later:
// the same Label renders differently before and after its own emission.
func (l *Label) ref() string {
	if l.emitted {
		return l.name + "b"
	}
	return l.name + "f"
}

// diff renders the assembler expression for (a - b): the literal "0" if
// they are the same label (by identity, not name), else "<a.ref>-<b.ref>".
func diff(a, b *Label) string {
	if a == b {
		return "0"
	}
	return a.ref() + "-" + b.ref()
}

// newLabel mints a label with a fresh, monotonically increasing numeric
// name. Labels are never reused or recycled within one Emitter.
func (e *Emitter) newLabel() *Label {
	e.labelCount++
	return &Label{name: strconv.Itoa(e.labelCount)}
}
