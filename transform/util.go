package transform

import "github.com/corewind/xc/ir"

// constValueBefore materializes a fresh iconst spliced immediately
// before existing, used when a rewrite needs a constant operand it
// didn't already have a Value for (strength reduction's shift amount,
// peephole's synthesized zero).
func constValueBefore(f *ir.Function, existing ir.Inst, t ir.Type, imm int64) ir.Value {
	dfg := f.DFG()
	inst := dfg.NewInst(ir.InstructionData{Opcode: ir.OpcodeIconst, Type: t, Imm: imm})
	f.Layout().InsertInstBefore(existing, inst)
	v := dfg.NewValue(t)
	dfg.DefineResult(v, inst, 0)
	return v
}
