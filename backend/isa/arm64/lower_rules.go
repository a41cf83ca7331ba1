package arm64

import (
	_ "embed"

	"github.com/corewind/xc/ir"
	"github.com/corewind/xc/selectordsl"
)

//go:embed rules.lisp
var rulesSrc string

// ruleMatcher is compiled once and shared by every Machine instance,
// the way the prior art compiles its lowering switch once at package init
// (lower_instr.go's giant switch is the DSL-free equivalent).
var ruleMatcher = mustCompileRules()

func mustCompileRules() *selectordsl.Matcher {
	m, err := selectordsl.Compile(rulesSrc)
	if err != nil {
		panic("arm64: rules.lisp failed to compile: " + err.Error())
	}
	return m
}

// valMatchInput adapts one ir.Value into selectordsl.MatchInput, letting
// the DSL matcher look through to a value's producing instruction when
// that instruction has exactly one use and no side effects -- the same
// single-use-fold condition the prior art's lower_instr.go checks by hand
// before folding an extend or immediate into its consumer.
type valMatchInput struct {
	m *Machine
	v ir.Value
}

func (vi valMatchInput) Opcode() string {
	def := vi.m.cc.Function().DFG().DefinitionOf(vi.v)
	if def.Kind != ir.ValueDefInst {
		return ""
	}
	data := vi.m.cc.Function().DFG().InstData(def.Inst)
	if !vi.foldable(def.Inst, data) {
		return ""
	}
	return opcodeName(data.Opcode)
}

func (vi valMatchInput) foldable(inst ir.Inst, data *ir.InstructionData) bool {
	if vi.m.cc.IsLowered(inst) {
		return false
	}
	if data.HasSideEffects() {
		return false
	}
	return vi.m.cc.ValueDefinition(vi.v).RefCount <= 1
}

func (vi valMatchInput) inst() (ir.Inst, *ir.InstructionData, bool) {
	def := vi.m.cc.Function().DFG().DefinitionOf(vi.v)
	if def.Kind != ir.ValueDefInst {
		return 0, nil, false
	}
	data := vi.m.cc.Function().DFG().InstData(def.Inst)
	if !vi.foldable(def.Inst, data) {
		return 0, nil, false
	}
	return def.Inst, data, true
}

func (vi valMatchInput) NumArgs() int {
	_, data, ok := vi.inst()
	if !ok {
		return 0
	}
	return numOperands(data)
}

func (vi valMatchInput) Arg(i int) selectordsl.MatchInput {
	_, data, _ := vi.inst()
	return valMatchInput{m: vi.m, v: data.Args[i]}
}

func (vi valMatchInput) Imm() (int64, bool) {
	def := vi.m.cc.Function().DFG().DefinitionOf(vi.v)
	if def.Kind != ir.ValueDefInst {
		return 0, false
	}
	data := vi.m.cc.Function().DFG().InstData(def.Inst)
	if data.Opcode != ir.OpcodeIconst {
		return 0, false
	}
	return data.Imm, true
}

func (vi valMatchInput) Token() any { return vi.v.ID() }

// instMatchInput adapts an ir.Inst (an instruction considered as a whole
// match root, rather than one of its operands) to MatchInput.
type instMatchInput struct {
	m    *Machine
	data *ir.InstructionData
}

func (ii instMatchInput) Opcode() string { return opcodeName(ii.data.Opcode) }
func (ii instMatchInput) NumArgs() int   { return numOperands(ii.data) }
func (ii instMatchInput) Arg(i int) selectordsl.MatchInput {
	return valMatchInput{m: ii.m, v: ii.data.Args[i]}
}
func (ii instMatchInput) Imm() (int64, bool) { return 0, false }
func (ii instMatchInput) Token() any         { return nil }

// numOperands returns how many of data.Args are meaningful pattern-match
// operands, by opcode arity -- the same per-opcode arity this module's
// InstructionData flattening documents, since Args is always a fixed
// [3]Value array regardless of how many of its slots a given opcode uses.
func numOperands(data *ir.InstructionData) int {
	switch data.Opcode {
	case ir.OpcodeIconst, ir.OpcodeFconst, ir.OpcodeFuncAddr, ir.OpcodeGlobalAddr,
		ir.OpcodeCall, ir.OpcodeReturn, ir.OpcodeJump, ir.OpcodeTrap, ir.OpcodeStackLoad, ir.OpcodeFence:
		return 0
	case ir.OpcodeIneg, ir.OpcodeBnot, ir.OpcodeFneg, ir.OpcodeFabs,
		ir.OpcodeSextend, ir.OpcodeUextend, ir.OpcodeIreduce,
		ir.OpcodeFdemote, ir.OpcodeFpromote, ir.OpcodeFcvtToSint, ir.OpcodeFcvtToUint,
		ir.OpcodeFcvtFromSint, ir.OpcodeFcvtFromUint, ir.OpcodeBitcast,
		ir.OpcodeIaddImm, ir.OpcodeIshlImm, ir.OpcodeTrapz, ir.OpcodeTrapnz,
		ir.OpcodeSplat, ir.OpcodeLoad, ir.OpcodeBranch, ir.OpcodeCallIndirect,
		ir.OpcodeExtractLane, ir.OpcodeStackStore:
		return 1
	case ir.OpcodeSelect, ir.OpcodeFma, ir.OpcodeIaddCin:
		return 3
	default:
		return 2
	}
}

// opcodeName renders an ir.Opcode the way rule files spell it, reusing
// ir.Opcode's own String() (e.g. OpcodeIadd.String() == "iadd").
func opcodeName(op ir.Opcode) string { return op.String() }
