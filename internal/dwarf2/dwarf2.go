// Package dwarf2 holds the subset of the DWARF2 expression opcode table
// that the Infinity-notes bytecode uses, plus the one vendor extension
// (DW_OP_call) the notes need and standard DWARF has no equivalent for.
package dwarf2

import "strconv"

// Opcode is a DWARF expression operation code.
type Opcode byte

// Stack-manipulation and dereference opcodes.
const (
	DW_OP_deref Opcode = 0x06
	DW_OP_dup   Opcode = 0x12
	DW_OP_drop  Opcode = 0x13
	DW_OP_over  Opcode = 0x14
	DW_OP_pick  Opcode = 0x15
	DW_OP_swap  Opcode = 0x16
	DW_OP_rot   Opcode = 0x17
)

// Constant-push opcodes, one per encoding width in the §4.5 ladder.
const (
	DW_OP_const1u Opcode = 0x08
	DW_OP_const1s Opcode = 0x09
	DW_OP_const2u Opcode = 0x0a
	DW_OP_const2s Opcode = 0x0b
	DW_OP_const4u Opcode = 0x0c
	DW_OP_const4s Opcode = 0x0d
	DW_OP_const8u Opcode = 0x0e
	DW_OP_const8s Opcode = 0x0f
	DW_OP_constu  Opcode = 0x10
	DW_OP_consts  Opcode = 0x11
)

// DW_OP_lit0 is the base of the 32 contiguous "push literal N" opcodes
// (lit0..lit31 = 0x30..0x4f).
const DW_OP_lit0 Opcode = 0x30

// Branching. DW_OP_bra pops a value and branches if it is nonzero;
// DW_OP_skip branches unconditionally. Both take a 2-byte signed
// PC-relative operand, measured from the byte following the operand.
const (
	DW_OP_bra  Opcode = 0x28
	DW_OP_skip Opcode = 0x2f
)

// Comparison opcodes. DWARF2 stack comparisons leave 1 (true) or 0
// (false) on the stack; there is no separate signed/unsigned encoding,
// since the operands are already in the representation the comparison
// needs by the time they reach these ops.
const (
	DW_OP_le Opcode = 0x2c
	DW_OP_ge Opcode = 0x2a
	DW_OP_gt Opcode = 0x2b
	DW_OP_eq Opcode = 0x29
	DW_OP_lt Opcode = 0x2d
	DW_OP_ne Opcode = 0x2e
)

// DW_OP_lo_user begins the vendor-extension range (0xe0-0xff). Infinity
// notes use the first slot in it for calling an autos-resolved external
// callable; DWARF expressions have no native call operator.
const (
	DW_OP_lo_user Opcode = 0xe0
	DW_OP_call    Opcode = DW_OP_lo_user
)

// byName maps a bare opcode name (without the "DW_OP_" prefix), from
// which the emitter builds its DW_OP_ #define and byte lines, to its
// numeric code, for every
// opcode that is actually emitted as a byte in the bytecode stream.
// lit0..lit31 are synthesized, not listed, since their name carries the
// operand.
var byName = map[string]Opcode{
	"deref":   DW_OP_deref,
	"dup":     DW_OP_dup,
	"drop":    DW_OP_drop,
	"over":    DW_OP_over,
	"pick":    DW_OP_pick,
	"swap":    DW_OP_swap,
	"rot":     DW_OP_rot,
	"const1u": DW_OP_const1u,
	"const1s": DW_OP_const1s,
	"const2u": DW_OP_const2u,
	"const2s": DW_OP_const2s,
	"const4u": DW_OP_const4u,
	"const4s": DW_OP_const4s,
	"const8u": DW_OP_const8u,
	"const8s": DW_OP_const8s,
	"constu":  DW_OP_constu,
	"consts":  DW_OP_consts,
	"bra":     DW_OP_bra,
	"skip":    DW_OP_skip,
	"le":      DW_OP_le,
	"ge":      DW_OP_ge,
	"gt":      DW_OP_gt,
	"eq":      DW_OP_eq,
	"lt":      DW_OP_lt,
	"ne":      DW_OP_ne,
	"call":    DW_OP_call,
}

// Lookup returns the numeric code for a bare opcode name, e.g. "dup" or
// "const2u". ok is false for names this package does not know, which is
// always a programmer error in the caller (an unreachable opcode name),
// never something user input can trigger.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// LitName returns the DW_OP_litN name for 0 <= n < 32.
func LitName(n int) string {
	if n < 0 || n > 31 {
		panic("dwarf2: lit index out of range")
	}
	return "lit" + strconv.Itoa(n)
}

// LitOpcode returns the numeric code for DW_OP_litN.
func LitOpcode(n int) Opcode {
	return DW_OP_lit0 + Opcode(n)
}
