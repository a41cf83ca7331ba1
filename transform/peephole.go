package transform

import "github.com/corewind/xc/ir"

// Peephole applies small algebraic identities that GVN and strength
// reduction don't cover: x+0, x*1, x*0, x-x, x^x, x&x, x|x, x<<0, select
// with a constant-true/false condition folding to one branch. These are
// the single-instruction rewrites every optimizing compiler in the
// corpus performs somewhere in its lowering or mid-level pipeline; here
// they run as one dedicated pass so the pattern list stays auditable in
// one place rather than smeared across the selector DSL's rule files.
type Peephole struct{}

func (Peephole) Name() string { return "peephole" }

func (Peephole) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		for i := layout.FirstInst(b); i.Valid(); i = layout.NextInst(i) {
			d := dfg.InstData(i)
			results := dfg.Results(i)
			if len(results) == 0 || !results[0].Valid() {
				continue
			}
			if replacement, ok := fold(f, i, d); ok {
				dfg.SetAlias(results[0], replacement)
				changed = true
			}
		}
	}
	return changed, nil
}

func fold(f *ir.Function, i ir.Inst, d *ir.InstructionData) (ir.Value, bool) {
	dfg := f.DFG()
	constOf := func(v ir.Value) (int64, bool) {
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

	x, y := d.Args[0], d.Args[1]
	switch d.Opcode {
	case ir.OpcodeIadd, ir.OpcodeBor, ir.OpcodeBxor, ir.OpcodeIshl, ir.OpcodeUshr, ir.OpcodeSshr:
		if imm, ok := constOf(y); ok && imm == 0 {
			return x, true
		}
		if d.Opcode == ir.OpcodeBxor && dfg.ResolveAlias(x) == dfg.ResolveAlias(y) {
			return constValueBefore(f, i, d.Type, 0), true
		}
		if d.Opcode == ir.OpcodeBor && dfg.ResolveAlias(x) == dfg.ResolveAlias(y) {
			return x, true
		}
	case ir.OpcodeImul:
		if imm, ok := constOf(y); ok && imm == 1 {
			return x, true
		}
		if imm, ok := constOf(x); ok && imm == 1 {
			return y, true
		}
		if imm, ok := constOf(y); ok && imm == 0 {
			return y, true
		}
		if imm, ok := constOf(x); ok && imm == 0 {
			return x, true
		}
	case ir.OpcodeIsub:
		if dfg.ResolveAlias(x) == dfg.ResolveAlias(y) {
			return constValueBefore(f, i, d.Type, 0), true
		}
	case ir.OpcodeBand:
		if dfg.ResolveAlias(x) == dfg.ResolveAlias(y) {
			return x, true
		}
	case ir.OpcodeSelect:
		cond := dfg.ResolveAlias(d.Args[0])
		def := dfg.DefinitionOf(cond)
		if def.Kind == ir.ValueDefInst {
			cd := dfg.InstData(def.Inst)
			if cd.Opcode == ir.OpcodeIconst {
				if cd.Imm != 0 {
					return d.Args[1], true
				}
				return d.Args[2], true
			}
		}
	}
	return ir.ValueInvalid, false
}
