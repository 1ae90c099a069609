// i8gen reads the textual Infinity IR described in SPEC_FULL.md §11 and
// writes the corresponding assembly listing: one ELF note per function,
// each carrying a DWARF-expression encoding of its bytecode.
//
// Usage: i8gen [-o file] [-config file] [input-file]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gmofishsauce/i8gen/internal/config"
	"github.com/gmofishsauce/i8gen/internal/emit"
	"github.com/gmofishsauce/i8gen/internal/ir"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	output := flag.String("o", "", "output file (default stdout)")
	configPath := flag.String("config", "", "YAML config file (default none)")
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
			return 1
		}
	}

	in := os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}

	parser := ir.NewParser(in)
	parser.DefaultProvider = cfg.DefaultProvider
	prog, err := parser.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
		return 1
	}

	if cfg.MaxStackWarn > 0 {
		for _, fn := range prog.Functions {
			if int(fn.MaxStack) > cfg.MaxStackWarn {
				fmt.Fprintf(os.Stderr, "i8gen: warning: %s.%s declares MAXSTACK %d, above %d\n",
					fn.Name.Provider, fn.Name.ShortName, fn.MaxStack, cfg.MaxStackWarn)
			}
		}
	}

	w := emit.NewWriter(out)
	e := emit.NewEmitter(w)
	if err := e.EmitProgram(prog); err != nil {
		fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
		return 1
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "i8gen: %v\n", err)
		return 1
	}
	return 0
}
