package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// errWriter wraps an io.Writer and latches the first write error, so
// Writer's emit helpers don't need an error return on every call; the
// caller checks once, at Flush. Grounded on the same pattern used to wrap
// VM output in the pack's db47h/ngaro (internal/ngi.ErrWriter).
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	if err != nil {
		w.err = errors.Wrap(err, "write failed")
	}
	return n, w.err
}

// Writer is the sole sink for emitted assembly text. Lines beginning
// with "." are indented one tab to read as assembler directives; a
// pending label is prefixed onto the next line that is neither a
// standalone comment nor a preprocessor line, or flushed
// on its own line if another label arrives first. At most one label is
// pending at a time.
type Writer struct {
	out     *bufio.Writer
	errw    *errWriter
	pending *Label
}

// NewWriter wraps sink in a buffered Writer.
func NewWriter(sink io.Writer) *Writer {
	ew := &errWriter{w: sink}
	return &Writer{out: bufio.NewWriter(ew), errw: ew}
}

// Flush flushes buffered output and returns the first write error
// encountered, if any.
func (w *Writer) Flush() error {
	if err := w.out.Flush(); err != nil {
		return errors.Wrap(err, "flush failed")
	}
	return w.errw.err
}

// raw appends line, indenting directive lines, attaching any pending
// label (unless line is a preprocessor line, which must appear before
// any label it might otherwise swallow, or a standalone comment line),
// appending comment in block form, and terminating with a newline.
func (w *Writer) raw(line, comment string) {
	if len(line) > 0 && line[0] == '.' {
		line = "\t" + line
	}
	commentOnly := line == "" && comment != ""
	if !commentOnly && (len(line) == 0 || line[0] != '#') {
		if w.pending != nil {
			line = w.pending.name + ":" + line
			w.pending = nil
		}
	}
	if comment != "" {
		line += "\t/* " + comment + " */"
	}
	fmt.Fprintln(w.out, line)
}

// Blank emits an empty line.
func (w *Writer) Blank() {
	w.raw("", "")
}

// Comment emits a standalone comment line.
func (w *Writer) Comment(text string) {
	w.raw("", text)
}

// Define emits a "#define name value" preprocessor line.
func (w *Writer) Define(name, value string) {
	w.raw(fmt.Sprintf("#define %s %s", name, value), "")
}

// Directive emits a bare assembler directive, e.g. ".balign 4" or
// `.section .note.infinity, "", "note"`.
func (w *Writer) Directive(text string) {
	w.raw("."+text, "")
}

// Str emits a `.string "text"` directive. text is embedded verbatim: the
// upstream frontend is responsible for escaping it, per spec.md §6.
func (w *Writer) Str(text string) {
	w.raw(".string \""+text+"\"", "")
}

// MarkLabel attaches l to the next emitted line (or, if another label is
// already pending, flushes that one onto its own line first) and marks l
// emitted. References to l rendered after this call use its "backward"
// form.
func (w *Writer) MarkLabel(l *Label) {
	if w.pending != nil {
		fmt.Fprintln(w.out, w.pending.name+":")
	}
	w.pending = l
	l.emitted = true
}

// byteDirective emits one of .byte/.2byte/.4byte/.8byte with value
// rendered via fmt's default formatting, so callers can pass either an
// integer or a pre-rendered symbolic expression (a label difference or a
// #define'd name) exactly as the assembler expects.
func (w *Writer) byteDirective(width string, value interface{}, comment string) {
	w.raw(fmt.Sprintf(".%sbyte %v", width, value), comment)
}

func (w *Writer) Byte(value interface{}, comment string)      { w.byteDirective("", value, comment) }
func (w *Writer) TwoByte(value interface{}, comment string)   { w.byteDirective("2", value, comment) }
func (w *Writer) FourByte(value interface{}, comment string)  { w.byteDirective("4", value, comment) }
func (w *Writer) EightByte(value interface{}, comment string) { w.byteDirective("8", value, comment) }

// Uleb128 emits a `.uleb128 value` directive.
func (w *Writer) Uleb128(value uint64, comment string) {
	w.raw(fmt.Sprintf(".uleb128 %d", value), comment)
}

// Sleb128 emits a `.sleb128 value` directive.
func (w *Writer) Sleb128(value int64, comment string) {
	w.raw(fmt.Sprintf(".sleb128 %d", value), comment)
}
