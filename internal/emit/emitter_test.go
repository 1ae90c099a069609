package emit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gmofishsauce/i8gen/internal/ir"
)

func emitProgram(t *testing.T, prog *ir.Program) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	e := NewEmitter(w)
	if err := e.EmitProgram(prog); err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.String()
}

func op(kind ir.OpKind, fileline string) *ir.Operation {
	return &ir.Operation{Kind: kind, FileLine: fileline}
}

func TestEmitEmptyFunctionFraming(t *testing.T) {
	fn := &ir.Function{
		Name: ir.FuncName{Provider: "test", ShortName: "empty"},
		Ops:  ir.NewOperationStream(nil),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})

	for _, want := range []string{
		"NT_GNU_INFINITY", "ELF_NOTE_I8_FUNCTION",
		".string \"GNU\"", ".string \"test\"", ".string \"empty\"",
		"namesz", "descsz", "header size", "code size", "autos size",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestEmitConstEncodingLadder(t *testing.T) {
	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "c"},
		MaxStack: 1,
		Ops: ir.NewOperationStream([]*ir.Operation{
			{Kind: ir.OpConst, Value: 5, FileLine: "f:1"},
			{Kind: ir.OpConst, Value: 256, FileLine: "f:2"},
			{Kind: ir.OpConst, Value: -1, FileLine: "f:3"},
		}),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})

	if !strings.Contains(out, "DW_OP_lit5") {
		t.Errorf("5 should encode as lit5\noutput:\n%s", out)
	}
	if !strings.Contains(out, "DW_OP_const2u") {
		t.Errorf("256 should encode as const2u\noutput:\n%s", out)
	}
	if !strings.Contains(out, "DW_OP_const1s") {
		t.Errorf("-1 should encode as const1s\noutput:\n%s", out)
	}
}

func TestEmitPickSlots(t *testing.T) {
	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "p"},
		MaxStack: 3,
		Ops: ir.NewOperationStream([]*ir.Operation{
			{Kind: ir.OpPick, Slot: 0, FileLine: "f:1"},
			{Kind: ir.OpPick, Slot: 1, FileLine: "f:2"},
			{Kind: ir.OpPick, Slot: 2, FileLine: "f:3"},
		}),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})

	if !strings.Contains(out, "DW_OP_dup") {
		t.Errorf("pick slot 0 should encode as dup\noutput:\n%s", out)
	}
	if !strings.Contains(out, "DW_OP_over") {
		t.Errorf("pick slot 1 should encode as over\noutput:\n%s", out)
	}
	if !strings.Contains(out, "DW_OP_pick") {
		t.Errorf("pick slot 2 should encode as pick\noutput:\n%s", out)
	}
}

func TestEmitFuncRefAndSymbolRefAutos(t *testing.T) {
	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "caller"},
		MaxStack: 1,
		Autos: []ir.Auto{
			{Kind: ir.AutoFuncRef, Name: ir.FuncName{Provider: "o", ShortName: "callee"},
				ParamTypes: []byte("ii"), ReturnTypes: []byte("i")},
			{Kind: ir.AutoSymbolRef, Name: ir.FuncName{Provider: "o", ShortName: "g"}},
		},
		Ops: ir.NewOperationStream(nil),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})

	for _, want := range []string{"\"callee\"", "\"g\"", "\"ii\""} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestEmitBranchDisplacement(t *testing.T) {
	stop := op(ir.OpStop, "f:4")
	branch := &ir.Operation{Kind: ir.OpBranch, FileLine: "f:2", Target: stop}
	top := op(ir.OpDup, "f:1")
	goTo := &ir.Operation{Kind: ir.OpGoto, FileLine: "f:3", Target: top}

	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "loop"},
		MaxStack: 1,
		Ops:      ir.NewOperationStream([]*ir.Operation{top, branch, goTo, stop}),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})

	if !strings.Contains(out, "DW_OP_bra") {
		t.Errorf("missing forward branch opcode\noutput:\n%s", out)
	}
	if !strings.Contains(out, "DW_OP_skip") {
		t.Errorf("missing backward goto opcode\noutput:\n%s", out)
	}
	// Both displacements are label-difference expressions, not literal
	// numbers: the assembler, not this package, resolves them.
	if !strings.Contains(out, "-") {
		t.Errorf("expected a label-difference expression in the output\noutput:\n%s", out)
	}
}

func TestEmitSizedDerefIsUnsupported(t *testing.T) {
	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "d"},
		MaxStack: 1,
		Ops: ir.NewOperationStream([]*ir.Operation{
			{Kind: ir.OpDeref, Sized: true, FileLine: "f:9"},
		}),
	}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	e := NewEmitter(w)
	err := e.EmitProgram(&ir.Program{Functions: []*ir.Function{fn}})
	if err == nil {
		t.Fatal("expected error for sized deref")
	}
	if !strings.Contains(err.Error(), "f:9") {
		t.Errorf("error should mention the file:line, got %v", err)
	}
}

func TestEmitOpcodeDefinedOnce(t *testing.T) {
	fn := &ir.Function{
		Name:     ir.FuncName{Provider: "t", ShortName: "dupes"},
		MaxStack: 1,
		Ops: ir.NewOperationStream([]*ir.Operation{
			op(ir.OpDup, "f:1"),
			op(ir.OpDup, "f:2"),
		}),
	}
	out := emitProgram(t, &ir.Program{Functions: []*ir.Function{fn}})
	if countOccurrences(out, "#define DW_OP_dup") != 1 {
		t.Errorf("DW_OP_dup should be #define'd exactly once\noutput:\n%s", out)
	}
}
