package ir

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parser reads the textual IR format described in SPEC_FULL.md §11 and
// builds a Program. It is the stand-in for the external lexer, parser,
// and semantic analyzer spec.md §1 places out of scope: something has to
// hand the emitter an AST, and this is the minimal text format that
// exercises every node kind the emitter consumes.
type Parser struct {
	scanner *bufio.Scanner
	lineNum int
	line    string

	// DefaultProvider, when non-empty, replaces a literal "-" in any
	// provider field: the config file's default_provider lets an IR
	// source omit a repeated project-wide prefix.
	DefaultProvider string
}

// NewParser creates a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{scanner: bufio.NewScanner(r)}
}

func (p *Parser) provider(field string) string {
	if field == "-" && p.DefaultProvider != "" {
		return p.DefaultProvider
	}
	return field
}

// Parse reads and parses the entire IR, returning the resulting Program.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	for p.nextLine() {
		if p.line == "" {
			continue
		}
		fields := tokenize(p.line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] != "FUNC" {
			return nil, p.errorf("expected FUNC, got %q", fields[0])
		}
		fn, err := p.parseFunc(fields)
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

func (p *Parser) nextLine() bool {
	for p.scanner.Scan() {
		p.lineNum++
		line := strings.TrimSpace(p.scanner.Text())
		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		p.line = line
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.Errorf(format, args...), "line %d", p.lineNum)
}

// tokenize splits a line on spaces/commas, honoring double-quoted spans.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuote = !inQuote
			cur.WriteRune(ch)
		case !inQuote && (ch == ' ' || ch == '\t' || ch == ','):
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func (p *Parser) parseFunc(fields []string) (*Function, error) {
	// FUNC <provider> <shortname>
	if len(fields) != 3 {
		return nil, p.errorf("FUNC requires provider and short name")
	}
	fn := &Function{Name: FuncName{Provider: p.provider(fields[1]), ShortName: fields[2]}}

	labels := make(map[string]*Operation)
	// pending is the set of {label, op} placeholders whose Target needs
	// resolving once the whole function has been read: branch/goto
	// operations recorded by the label they name, not yet the operation
	// they point to.
	type pendingJump struct {
		op     *Operation
		target string
	}
	var pending []pendingJump
	var ops []*Operation
	var nextLabel string

	attach := func(op *Operation) {
		if nextLabel != "" {
			labels[nextLabel] = op
			nextLabel = ""
		}
		ops = append(ops, op)
	}

	for p.nextLine() {
		if p.line == "" {
			continue
		}
		fields := tokenize(p.line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "ENDFUNC":
			for _, pj := range pending {
				target, ok := labels[pj.target]
				if !ok {
					return nil, p.errorf("undefined label %q", pj.target)
				}
				pj.op.Target = target
			}
			fn.Ops = NewOperationStream(ops)
			return fn, nil

		case "PARAM":
			if len(fields) != 2 || len(fields[1]) != 1 {
				return nil, p.errorf("PARAM requires a single type character")
			}
			fn.Params = append(fn.Params, Parameter{Encoding: fields[1][0]})

		case "RETURN":
			if len(fields) != 2 || len(fields[1]) != 1 {
				return nil, p.errorf("RETURN requires a single type character")
			}
			fn.ReturnType = append(fn.ReturnType, fields[1][0])

		case "MAXSTACK":
			if len(fields) != 2 {
				return nil, p.errorf("MAXSTACK requires a value")
			}
			n, err := strconv.ParseUint(fields[1], 10, 16)
			if err != nil {
				return nil, p.errorf("invalid MAXSTACK value %q", fields[1])
			}
			fn.MaxStack = uint16(n)

		case "AUTO":
			auto, err := p.parseAuto(fields)
			if err != nil {
				return nil, err
			}
			fn.Autos = append(fn.Autos, auto)

		case "LABEL":
			if len(fields) != 2 {
				return nil, p.errorf("LABEL requires a name")
			}
			nextLabel = fields[1]

		default:
			op, jump, err := p.parseOp(fields)
			if err != nil {
				return nil, err
			}
			attach(op)
			if jump != "" {
				pending = append(pending, pendingJump{op, jump})
			}
		}
	}
	return nil, p.errorf("unexpected EOF inside FUNC %s.%s", fn.Name.Provider, fn.Name.ShortName)
}

func (p *Parser) parseAuto(fields []string) (Auto, error) {
	if len(fields) < 2 {
		return Auto{}, p.errorf("AUTO requires a kind")
	}
	switch fields[1] {
	case "FUNCREF":
		if len(fields) != 6 {
			return Auto{}, p.errorf("AUTO FUNCREF requires provider, name, paramtypes, rettypes")
		}
		return Auto{
			Kind:        AutoFuncRef,
			Name:        FuncName{Provider: p.provider(fields[2]), ShortName: fields[3]},
			ParamTypes:  []byte(fields[4]),
			ReturnTypes: []byte(fields[5]),
		}, nil
	case "SYMBOLREF":
		if len(fields) != 4 {
			return Auto{}, p.errorf("AUTO SYMBOLREF requires provider, name")
		}
		return Auto{Kind: AutoSymbolRef, Name: FuncName{Provider: p.provider(fields[2]), ShortName: fields[3]}}, nil
	default:
		return Auto{}, p.errorf("unknown AUTO kind %q", fields[1])
	}
}

// parseOp parses one bytecode line. It returns the operation and, for
// BRANCH/GOTO, the label name it targets (resolved by the caller once the
// whole function is read).
func (p *Parser) parseOp(fields []string) (*Operation, string, error) {
	switch fields[0] {
	case "BRANCH", "GOTO":
		if len(fields) != 3 {
			return nil, "", p.errorf("%s requires a label and file:line", fields[0])
		}
		kind := OpBranch
		if fields[0] == "GOTO" {
			kind = OpGoto
		}
		return &Operation{Kind: kind, FileLine: fields[2]}, fields[1], nil

	case "CONST":
		if len(fields) != 3 {
			return nil, "", p.errorf("CONST requires a value and file:line")
		}
		v, err := strconv.ParseInt(fields[1], 0, 64)
		if err != nil {
			return nil, "", p.errorf("invalid CONST value %q", fields[1])
		}
		return &Operation{Kind: OpConst, Value: v, FileLine: fields[2]}, "", nil

	case "CALL":
		return p.simpleOp(OpCall, fields)

	case "COMPARE":
		if len(fields) != 3 {
			return nil, "", p.errorf("COMPARE requires an operator and file:line")
		}
		cmp, ok := map[string]CompareKind{
			"eq": CmpEq, "ne": CmpNe, "lt": CmpLt, "le": CmpLe, "gt": CmpGt, "ge": CmpGe,
		}[fields[1]]
		if !ok {
			return nil, "", p.errorf("unknown compare operator %q", fields[1])
		}
		return &Operation{Kind: OpCompare, Compare: cmp, FileLine: fields[2]}, "", nil

	case "DEREF":
		if len(fields) < 2 {
			return nil, "", p.errorf("DEREF requires a file:line")
		}
		sized := len(fields) >= 3 && fields[2] == "SIZED"
		return &Operation{Kind: OpDeref, FileLine: fields[1], Sized: sized}, "", nil

	case "DROP":
		return p.simpleOp(OpDrop, fields)
	case "DUP":
		return p.simpleOp(OpDup, fields)
	case "OVER":
		return p.simpleOp(OpOver, fields)
	case "SWAP":
		return p.simpleOp(OpSwap, fields)
	case "ROT":
		return p.simpleOp(OpRot, fields)
	case "NAME":
		return p.simpleOp(OpName, fields)
	case "STOP":
		return p.simpleOp(OpStop, fields)

	case "PICK":
		if len(fields) != 3 {
			return nil, "", p.errorf("PICK requires a slot and file:line")
		}
		slot, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, "", p.errorf("invalid PICK slot %q", fields[1])
		}
		return &Operation{Kind: OpPick, Slot: slot, FileLine: fields[2]}, "", nil

	default:
		return nil, "", p.errorf("unknown operation %q", fields[0])
	}
}

func (p *Parser) simpleOp(kind OpKind, fields []string) (*Operation, string, error) {
	if len(fields) != 2 {
		return nil, "", p.errorf("%s requires a file:line", fields[0])
	}
	return &Operation{Kind: kind, FileLine: fields[1]}, "", nil
}
