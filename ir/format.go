package ir

import (
	"fmt"
	"strings"
)

// Format renders f as human-readable text for debugging and golden-file
// tests, in the prior art's style (ssa/basic_block.go FormatHeader):
// "block3(v4: i32, v5: i32):" headers followed by one indented
// instruction per line.
func (f *Function) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s %s {\n", f.Name, f.signature.CallConv)
	for b := f.layout.FirstBlock(); b.Valid(); b = f.layout.NextBlock(b) {
		sb.WriteString(f.formatBlockHeader(b))
		sb.WriteString(":\n")
		for i := f.layout.FirstInst(b); i.Valid(); i = f.layout.NextInst(i) {
			sb.WriteString("    ")
			sb.WriteString(f.formatInst(i))
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Function) formatBlockHeader(b Block) string {
	params := f.dfg.Params(b)
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = fmt.Sprintf("%s: %s", p, p.Type())
	}
	return fmt.Sprintf("%s(%s)", b, strings.Join(ps, ", "))
}

func (f *Function) formatBlockCall(bc BlockCall) string {
	args := f.dfg.Operands(bc.args)
	as := make([]string, len(args))
	for i, a := range args {
		as[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", bc.Block, strings.Join(as, ", "))
}

func (f *Function) formatInst(i Inst) string {
	d := f.dfg.InstData(i)
	result := ""
	if results := f.dfg.Results(i); len(results) > 0 && results[0].Valid() {
		result = results[0].String() + " = "
	}
	switch d.Opcode {
	case OpcodeJump:
		return fmt.Sprintf("jump %s", f.formatBlockCall(d.Blocks[0]))
	case OpcodeBranch:
		return fmt.Sprintf("branch %s, %s, %s", d.Args[0], f.formatBlockCall(d.Blocks[0]), f.formatBlockCall(d.Blocks[1]))
	case OpcodeReturn:
		vs := f.dfg.Operands(d.VarArgs)
		ss := make([]string, len(vs))
		for i, v := range vs {
			ss[i] = v.String()
		}
		return fmt.Sprintf("return %s", strings.Join(ss, ", "))
	case OpcodeIconst:
		return fmt.Sprintf("%s%s %s, %d", result, d.Opcode, d.Type, d.Imm)
	case OpcodeIcmp:
		return fmt.Sprintf("%s%s %s, %s, %s", result, d.Opcode, intCmpCondName(IntCmpCond(d.Cond)), d.Args[0], d.Args[1])
	case OpcodeCall, OpcodeCallIndirect:
		vs := f.dfg.Operands(d.VarArgs)
		ss := make([]string, len(vs))
		for i, v := range vs {
			ss[i] = v.String()
		}
		return fmt.Sprintf("%s%s fn%d(%s)", result, d.Opcode, d.Aux, strings.Join(ss, ", "))
	default:
		args := f.formatArgs(d)
		if args == "" {
			return fmt.Sprintf("%s%s", result, d.Opcode)
		}
		return fmt.Sprintf("%s%s %s", result, d.Opcode, args)
	}
}

func (f *Function) formatArgs(d *InstructionData) string {
	var parts []string
	for _, a := range d.Args {
		if a.Valid() {
			parts = append(parts, a.String())
		}
	}
	return strings.Join(parts, ", ")
}

func intCmpCondName(c IntCmpCond) string {
	names := [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}
	if int(c) < len(names) {
		return names[c]
	}
	return "?"
}
