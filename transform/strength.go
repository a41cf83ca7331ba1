package transform

import "github.com/corewind/xc/ir"

// StrengthReduction rewrites a multiplication by a constant power of two
// into an IshlImm, an unsigned division by a constant power of two into
// a Ushr, and an Iadd with exactly one constant operand into the
// IaddImm immediate form the selector DSL matches more cheaply than a
// general register-register op. Signed division and Ishl by a constant
// are left unchanged.
type StrengthReduction struct{}

func (StrengthReduction) Name() string { return "strength-reduction" }

func (StrengthReduction) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			switch d.Opcode {
			case ir.OpcodeImul:
				if shift, ok := constShiftAmount(f, d.Args[1]); ok {
					*d = ir.InstructionData{Opcode: ir.OpcodeIshlImm, Type: d.Type, Args: [3]ir.Value{d.Args[0]}, Imm: shift, Pos: d.Pos}
					changed = true
				} else if shift, ok := constShiftAmount(f, d.Args[0]); ok {
					*d = ir.InstructionData{Opcode: ir.OpcodeIshlImm, Type: d.Type, Args: [3]ir.Value{d.Args[1]}, Imm: shift, Pos: d.Pos}
					changed = true
				}
			case ir.OpcodeUdiv:
				if shift, ok := constShiftAmount(f, d.Args[1]); ok {
					shiftVal := constValueBefore(f, i, d.Args[0].Type(), shift)
					*d = ir.InstructionData{Opcode: ir.OpcodeUshr, Type: d.Type, Args: [3]ir.Value{d.Args[0], shiftVal}, Pos: d.Pos}
					changed = true
				}
			case ir.OpcodeIadd:
				if imm, v, ok := oneConstOperand(f, d); ok {
					*d = ir.InstructionData{Opcode: ir.OpcodeIaddImm, Type: d.Type, Args: [3]ir.Value{v}, Imm: imm, Pos: d.Pos}
					changed = true
				}
			}
		}
	}
	return changed, nil
}

// constShiftAmount reports whether v resolves to an integer constant
// that is a power of two, returning log2 of it.
func constShiftAmount(f *ir.Function, v ir.Value) (int64, bool) {
	dfg := f.DFG()
	def := dfg.DefinitionOf(dfg.ResolveAlias(v))
	if def.Kind != ir.ValueDefInst {
		return 0, false
	}
	d := dfg.InstData(def.Inst)
	if d.Opcode != ir.OpcodeIconst || d.Imm <= 0 {
		return 0, false
	}
	n := d.Imm
	if n&(n-1) != 0 {
		return 0, false
	}
	shift := int64(0)
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift, true
}

// oneConstOperand reports whether exactly one of d's two binary
// operands is a constant, returning (constant value, the other operand).
func oneConstOperand(f *ir.Function, d *ir.InstructionData) (int64, ir.Value, bool) {
	dfg := f.DFG()
	asConst := func(v ir.Value) (int64, bool) {
		def := dfg.DefinitionOf(dfg.ResolveAlias(v))
		if def.Kind != ir.ValueDefInst {
			return 0, false
		}
		cd := dfg.InstData(def.Inst)
		if cd.Opcode != ir.OpcodeIconst {
			return 0, false
		}
		return cd.Imm, true
	}
	if imm, ok := asConst(d.Args[1]); ok {
		if _, ok := asConst(d.Args[0]); !ok {
			return imm, d.Args[0], true
		}
	}
	if imm, ok := asConst(d.Args[0]); ok {
		if _, ok := asConst(d.Args[1]); !ok {
			return imm, d.Args[1], true
		}
	}
	return 0, ir.ValueInvalid, false
}
