package emit

import (
	"bytes"
	"testing"

	"github.com/gmofishsauce/i8gen/internal/ir"
)

func TestAutosTableFuncRefAndSymbolRef(t *testing.T) {
	strtab := NewStringTable()
	autos := NewAutosTable(strtab)

	autos.AddFuncRef(ir.FuncName{Provider: "other", ShortName: "callee"}, "ii", "i")
	autos.AddSymbolRef(ir.FuncName{Provider: "other", ShortName: "counter"})

	if len(autos.entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(autos.entries))
	}
	if autos.entries[0].args == nil || autos.entries[0].rets == nil {
		t.Errorf("funcref entry missing args/rets strings")
	}
	if autos.entries[1].args != nil || autos.entries[1].rets != nil {
		t.Errorf("symbolref entry should have nil args/rets")
	}

	strtab.Layout(newLabeler())

	var buf bytes.Buffer
	w := NewWriter(&buf)
	autos.Emit(w)
	w.Flush()

	// Each record is 8 bytes: 4 TwoByte directives for a funcref,
	// or 2 TwoByte directives plus one FourByte reserved field for a
	// symbolref - both fixed at 8 bytes regardless of entry kind.
	out := buf.String()
	wantFields := []string{
		".2byte", // provider offset, entry 0
		".2byte", // name offset, entry 0
		".2byte", // ptypes offset, entry 0
		".2byte", // rtypes offset, entry 0
		".2byte", // provider offset, entry 1
		".2byte", // name offset, entry 1
		".4byte", // reserved, entry 1
	}
	for _, field := range wantFields {
		if countOccurrences(out, field) == 0 {
			t.Errorf("output missing expected directive %q\noutput:\n%s", field, out)
		}
	}
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
