package transform

import "github.com/corewind/xc/ir"

// Legalization widens scalar integer arithmetic narrower than i32 to
// i32 before the operation and truncates back afterward: the selector DSL's AArch64 rule file only
// pattern-matches arithmetic opcodes at i32/i64/f32/f64/vector widths,
// matching the native encodings each target actually offers, so an i8
// or i16 Iadd/Isub/Imul/Band/Bor/Bxor/Ishl/Ushr/Sshr reaching lowering
// would otherwise have no matching rule. This is the same
// widen-then-truncate legalization every production backend applies to
// sub-register-width integer ops; grounded on the prior art's general
// legalization discipline in backend/lower.go (SSA ops that don't map
// 1:1 onto a target instruction get rewritten before matching), adapted
// here to width legalization specifically since wazevo's source
// language (Wasm) has no i8/i16 arithmetic to legalize in the first
// place.
type Legalization struct{}

func (Legalization) Name() string { return "legalization" }

func (Legalization) Run(f *ir.Function) (bool, error) {
	layout := f.Layout()
	dfg := f.DFG()
	changed := false

	for blk := layout.FirstBlock(); blk.Valid(); blk = layout.NextBlock(blk) {
		for i := layout.FirstInst(blk); i.Valid(); {
			next := layout.NextInst(i)
			d := dfg.InstData(i)
			if needsWidthLegalization(d) {
				widenNarrowArith(f, i)
				changed = true
			}
			i = next
		}
	}
	return changed, nil
}

func needsWidthLegalization(d *ir.InstructionData) bool {
	if d.Type != ir.TypeI8 && d.Type != ir.TypeI16 {
		return false
	}
	switch d.Opcode {
	case ir.OpcodeIadd, ir.OpcodeIsub, ir.OpcodeImul, ir.OpcodeBand, ir.OpcodeBor,
		ir.OpcodeBxor, ir.OpcodeIshl, ir.OpcodeUshr, ir.OpcodeSshr:
		return true
	default:
		return false
	}
}

// widenNarrowArith rewrites the binary op at inst in place: it splices
// two extend instructions and a widened op before inst, then overwrites
// inst itself with an Ireduce back to the original width. inst keeps
// its identity and its already-bound result Value, so every existing
// use of that value keeps working unmodified.
func widenNarrowArith(f *ir.Function, inst ir.Inst) {
	dfg := f.DFG()
	layout := f.Layout()
	d := *dfg.InstData(inst)
	narrowType := d.Type

	extend := func(v ir.Value, signed bool) ir.Value {
		op := ir.OpcodeUextend
		if signed {
			op = ir.OpcodeSextend
		}
		extInst := dfg.NewInst(ir.InstructionData{Opcode: op, Type: ir.TypeI32, Args: [3]ir.Value{v}})
		layout.InsertInstBefore(inst, extInst)
		extVal := dfg.NewValue(ir.TypeI32)
		dfg.DefineResult(extVal, extInst, 0)
		return extVal
	}

	// Sshr (arithmetic right shift) needs the value sign-extended but
	// the shift amount left as an ordinary (unsigned) i32 so the shift
	// count itself is unaffected; every other op widens both operands
	// the same way since add/sub/mul/bitwise results agree modulo 2^n
	// regardless of which extension was used before truncation.
	signedValue := d.Opcode == ir.OpcodeSshr
	wide0 := extend(d.Args[0], signedValue)
	wide1 := extend(d.Args[1], false)

	wideInst := dfg.NewInst(ir.InstructionData{Opcode: d.Opcode, Type: ir.TypeI32, Args: [3]ir.Value{wide0, wide1}})
	layout.InsertInstBefore(inst, wideInst)
	wideResult := dfg.NewValue(ir.TypeI32)
	dfg.DefineResult(wideResult, wideInst, 0)

	*dfg.InstData(inst) = ir.InstructionData{Opcode: ir.OpcodeIreduce, Type: narrowType, Args: [3]ir.Value{wideResult}, Pos: d.Pos}
}
