package emit

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupportedDeref is returned, wrapped with the offending file/line,
// when a deref operation carries a sized type: widening a deref into a
// typed load sequence is an upstream design decision this package does
// not make (spec.md §9, Open Questions).
var ErrUnsupportedDeref = errors.New("deref with sized type is not implemented")

// assertf panics with a formatted message. It marks invariant violations
// that indicate a bug in visit order (a string requested after layout,
// an autos entry emitted before its offsets resolve) rather than
// anything malformed input could trigger - the same distinction the
// source draws with a plain Python assert.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
