package emit

import (
	"fmt"

	"github.com/gmofishsauce/i8gen/internal/ir"
)

type autosEntry struct {
	provider *String
	name     *String
	args     *String // nil for a symbol reference
	rets     *String
}

// AutosTable collects a function's automatic-parameter entries: external
// callables and symbols the loader resolves at load time.
type AutosTable struct {
	strings *StringTable
	entries []autosEntry
}

// NewAutosTable creates a table that interns its entries' text into
// strings.
func NewAutosTable(strings *StringTable) *AutosTable {
	return &AutosTable{strings: strings}
}

// AddFuncRef interns a callable reference: provider, short name, and its
// encoded parameter/return type strings.
func (a *AutosTable) AddFuncRef(name ir.FuncName, paramTypes, returnTypes string) {
	a.entries = append(a.entries, autosEntry{
		provider: a.strings.New(name.Provider),
		name:     a.strings.New(name.ShortName),
		args:     a.strings.New(paramTypes),
		rets:     a.strings.New(returnTypes),
	})
}

// AddSymbolRef interns a plain external-symbol reference: provider and
// short name only, no type signature.
func (a *AutosTable) AddSymbolRef(name ir.FuncName) {
	a.entries = append(a.entries, autosEntry{
		provider: a.strings.New(name.Provider),
		name:     a.strings.New(name.ShortName),
	})
}

// Emit writes one fixed-width record per entry, in the order entries
// were added: a symbol reference reserves the trailing 4 bytes rather
// than writing args/rets offsets, so every record is exactly 8 bytes.
func (a *AutosTable) Emit(w *Writer) {
	for i, e := range a.entries {
		prefix := fmt.Sprintf("auto %d ", i)
		w.TwoByte(e.provider.Offset(), prefix+"provider offset")
		w.TwoByte(e.name.Offset(), prefix+"name offset")
		if e.args == nil {
			assertf(e.rets == nil, "autos entry %d has return types without parameter types", i)
			w.FourByte(0, prefix+"reserved bytes")
			continue
		}
		w.TwoByte(e.args.Offset(), prefix+"ptypes offset")
		w.TwoByte(e.rets.Offset(), prefix+"rtypes offset")
	}
}
