// Package emit walks a parsed Infinity-notes function AST (package ir)
// and writes the assembly listing described in spec.md: a section
// preamble, then one ELF note per function carrying a type-signature
// header, DWARF-expression bytecode, an autos table, and an interned
// string pool.
package emit

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gmofishsauce/i8gen/internal/dwarf2"
	"github.com/gmofishsauce/i8gen/internal/ir"
)

// Emitter drives emission for one compilation. It owns the label counter
// and the per-stream "opcode already #define'd" bookkeeping; nothing
// about it is shared between independent Emitters, so independent
// compilations running concurrently in separate goroutines each with
// their own Emitter share no mutable state (spec.md §5).
type Emitter struct {
	w             *Writer
	labelCount    int
	opcodeDefined map[string]bool
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w *Writer) *Emitter {
	return &Emitter{w: w, opcodeDefined: make(map[string]bool)}
}

// EmitProgram emits the top-level driver preamble and then every
// function in prog, in source order.
func (e *Emitter) EmitProgram(prog *ir.Program) error {
	e.w.Define("NT_GNU_INFINITY", "5")
	e.w.Define("ELF_NOTE_I8_FUNCTION", "1")
	e.w.Blank()
	e.w.Directive(`section .note.infinity, "", "note"`)
	e.w.Directive("balign 4")
	for _, fn := range prog.Functions {
		if err := e.emitFunction(fn); err != nil {
			return errors.Wrapf(err, "function %s.%s", fn.Name.Provider, fn.Name.ShortName)
		}
	}
	return nil
}

// emitFunction lays out the ELF note framing around one function: name
// field ("GNU"), descriptor, and the 4-byte alignment padding each
// requires. The Infinity-specific part is the descriptor, handled by
// emitFunctionBody.
func (e *Emitter) emitFunction(fn *ir.Function) error {
	namestart := e.newLabel()
	namelimit := e.newLabel()
	descstart := e.newLabel()
	desclimit := e.newLabel()

	e.w.Blank()
	e.w.Comment(fn.Name.Provider + "." + fn.Name.ShortName)
	e.w.FourByte(diff(namelimit, namestart), "namesz")
	e.w.FourByte(diff(desclimit, descstart), "descsz")
	e.w.FourByte("NT_GNU_INFINITY", "")
	e.w.MarkLabel(namestart)
	e.w.Str("GNU")
	e.w.MarkLabel(namelimit)
	e.w.Directive("balign 4")
	e.w.MarkLabel(descstart)
	if err := e.emitFunctionBody(fn); err != nil {
		return err
	}
	e.w.MarkLabel(desclimit)
	e.w.Directive("balign 4")
	return nil
}

// emitFunctionBody populates the string and autos tables from the
// function's parameters, autos, and return types, lays the string table
// out, and only then emits the header (whose offsets depend on that
// layout), the bytecode, the autos records, and the string pool - in
// that order, so every label-difference size evaluates correctly
// (spec.md §4.6's ordering discipline).
func (e *Emitter) emitFunctionBody(fn *ir.Function) error {
	headerstart := e.newLabel()
	codestart := e.newLabel()
	autosstart := e.newLabel()

	strtab := NewStringTable()
	autos := NewAutosTable(strtab)

	provider := strtab.New(fn.Name.Provider)
	name := strtab.New(fn.Name.ShortName)
	userptypes := strtab.New("")
	autoptypes := strtab.New("")
	returntypes := strtab.New("")

	for _, p := range fn.Params {
		userptypes.Append(string(p.Encoding))
	}
	for _, a := range fn.Autos {
		switch a.Kind {
		case ir.AutoFuncRef:
			autoptypes.Append("f")
			autos.AddFuncRef(a.Name, string(a.ParamTypes), string(a.ReturnTypes))
		case ir.AutoSymbolRef:
			autoptypes.Append("s")
			autos.AddSymbolRef(a.Name)
		default:
			panic(fmt.Sprintf("emit: unknown auto kind %d", a.Kind))
		}
	}
	for _, r := range fn.ReturnType {
		returntypes.Append(string(r))
	}

	strtab.Layout(e.newLabel)

	e.w.TwoByte("ELF_NOTE_I8_FUNCTION", "")
	e.w.TwoByte(1, "version")

	e.w.MarkLabel(headerstart)
	e.w.TwoByte(diff(codestart, headerstart), "header size")
	e.w.TwoByte(diff(autosstart, codestart), "code size")
	e.w.TwoByte(diff(strtab.StartLabel(), autosstart), "autos size")
	e.w.TwoByte(provider.Offset(), "provider offset")
	e.w.TwoByte(name.Offset(), "name offset")
	e.w.TwoByte(userptypes.Offset(), "param types offset")
	e.w.TwoByte(returntypes.Offset(), "return types offset")
	e.w.TwoByte(autoptypes.Offset(), "autos types offset")
	e.w.TwoByte(fn.MaxStack, "max stack")

	e.w.MarkLabel(codestart)
	if err := e.emitOps(fn.Ops); err != nil {
		return err
	}

	e.w.MarkLabel(autosstart)
	autos.Emit(e.w)

	strtab.Emit(e.w)
	return nil
}

// emitOps allocates one label per branch target in the stream, then
// walks the operations in order, marking each target's label as it is
// reached and emitting the operation itself.
func (e *Emitter) emitOps(stream *ir.OperationStream) error {
	labels := make(map[*ir.Operation]*Label)
	for _, op := range stream.Ops {
		if stream.IsBranchTarget(op) {
			labels[op] = e.newLabel()
		}
	}
	for _, op := range stream.Ops {
		if l, ok := labels[op]; ok {
			e.w.MarkLabel(l)
		}
		if err := e.emitOp(op, labels); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitOp(op *ir.Operation, labels map[*ir.Operation]*Label) error {
	switch op.Kind {
	case ir.OpBranch, ir.OpGoto:
		return e.emitBranch(op, labels)
	case ir.OpCall:
		e.emitSimple("call", op.FileLine)
	case ir.OpCompare:
		e.emitSimple(compareOpName(op.Compare), op.FileLine)
	case ir.OpConst:
		e.emitConst(op)
	case ir.OpDeref:
		if op.Sized {
			return errors.Wrapf(ErrUnsupportedDeref, "at %s", op.FileLine)
		}
		e.emitSimple("deref", op.FileLine)
	case ir.OpDrop:
		e.emitSimple("drop", op.FileLine)
	case ir.OpDup:
		e.emitSimple("dup", op.FileLine)
	case ir.OpOver:
		e.emitSimple("over", op.FileLine)
	case ir.OpPick:
		e.emitPick(op)
	case ir.OpSwap:
		e.emitSimple("swap", op.FileLine)
	case ir.OpRot:
		e.emitSimple("rot", op.FileLine)
	case ir.OpName, ir.OpStop:
		// Both are no-ops: nothing reaches the bytecode stream for them.
	default:
		panic(fmt.Sprintf("emit: unknown operation kind %d", op.Kind))
	}
	return nil
}

func compareOpName(c ir.CompareKind) string {
	switch c {
	case ir.CmpEq:
		return "eq"
	case ir.CmpNe:
		return "ne"
	case ir.CmpLt:
		return "lt"
	case ir.CmpLe:
		return "le"
	case ir.CmpGt:
		return "gt"
	case ir.CmpGe:
		return "ge"
	default:
		panic(fmt.Sprintf("emit: unknown compare kind %d", c))
	}
}

// emitBranch emits a branch or goto: the opcode, then a 16-bit signed
// field computed as target-source, where source is a fresh label placed
// immediately after the 2-byte operand - a PC-relative displacement
// measured from the byte following the instruction's operand, exactly as
// the assembler will resolve it at assembly time.
func (e *Emitter) emitBranch(op *ir.Operation, labels map[*ir.Operation]*Label) error {
	target, ok := labels[op.Target]
	assertf(ok, "branch target has no allocated label")

	name := "bra"
	if op.Kind == ir.OpGoto {
		name = "skip"
	}
	e.emitSimple(name, op.FileLine)

	source := e.newLabel()
	e.w.TwoByte(diff(target, source), "")
	e.w.MarkLabel(source)
	return nil
}

// emitPick emits a pick: slot 0 and 1 have dedicated single-byte
// opcodes (dup, over); any other slot emits the general pick opcode
// followed by the slot number.
func (e *Emitter) emitPick(op *ir.Operation) {
	switch op.Slot {
	case 0:
		e.emitSimple("dup", op.FileLine)
	case 1:
		e.emitSimple("over", op.FileLine)
	default:
		e.emitSimple("pick", op.FileLine)
		e.w.Byte(op.Slot, "")
	}
}

// emitConst chooses the narrowest legal encoding for value, per the
// ladder in spec.md §4.5.
//
// Operation.Value is a Go int64, so it cannot represent the full
// unsigned range up to 2^64 the original ladder enumerates; the top
// rung of each ladder (the literal "constu"/"consts" ULEB/SLEB fallback
// at 2^64 and above, and below -2^63) is consequently unreachable here and folds into the
// preceding const8u/const8s case. Real constant operands come from
// either literal syntax or constant folding over machine words, neither
// of which produces a value outside int64's range, so this does not
// narrow what the emitter can actually be asked to encode.
func (e *Emitter) emitConst(op *ir.Operation) {
	v := op.Value
	fl := op.FileLine
	if v >= 0 {
		switch {
		case v < 0x20:
			e.emitSimple(dwarf2.LitName(int(v)), fl)
		case v < 1<<8:
			e.emitSimple("const1u", fl)
			e.w.Byte(v, "")
		case v < 1<<16:
			e.emitSimple("const2u", fl)
			e.w.TwoByte(v, "")
		case v < 1<<21:
			e.emitSimple("constu", fl)
			e.w.Uleb128(uint64(v), "")
		case v < 1<<32:
			e.emitSimple("const4u", fl)
			e.w.FourByte(v, "")
		case v < 1<<49:
			e.emitSimple("constu", fl)
			e.w.Uleb128(uint64(v), "")
		default:
			e.emitSimple("const8u", fl)
			e.w.EightByte(uint64(v), "")
		}
		return
	}
	switch {
	case v >= -(1 << 7):
		e.emitSimple("const1s", fl)
		e.w.Byte(v, "")
	case v >= -(1 << 15):
		e.emitSimple("const2s", fl)
		e.w.TwoByte(v, "")
	case v >= -(1 << 20):
		e.emitSimple("consts", fl)
		e.w.Sleb128(v, "")
	case v >= -(1 << 31):
		e.emitSimple("const4s", fl)
		e.w.FourByte(v, "")
	case v >= -(1 << 48):
		e.emitSimple("consts", fl)
		e.w.Sleb128(v, "")
	default:
		e.emitSimple("const8s", fl)
		e.w.EightByte(v, "")
	}
}

// emitSimple emits the #define the first time name is used in this
// Emitter's output stream, then the opcode byte itself annotated with
// the source file/line comment.
func (e *Emitter) emitSimple(name, comment string) {
	if !e.opcodeDefined[name] {
		code, ok := resolveOpcode(name)
		assertf(ok, "unknown opcode name %q", name)
		e.w.Define("DW_OP_"+name, "0x"+hex2(byte(code)))
		e.opcodeDefined[name] = true
	}
	e.w.Byte("DW_OP_"+name, comment)
}

func resolveOpcode(name string) (dwarf2.Opcode, bool) {
	if len(name) > 3 && name[:3] == "lit" {
		n, err := strconv.Atoi(name[3:])
		if err != nil || n < 0 || n > 31 {
			return 0, false
		}
		return dwarf2.LitOpcode(n), true
	}
	return dwarf2.Lookup(name)
}

func hex2(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}
