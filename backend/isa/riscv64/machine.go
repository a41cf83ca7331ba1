package riscv64

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/internal/xerrors"
	"github.com/corewind/xc/ir"
)

// Machine implements backend.Machine for a reduced RV64GC integer and
// scalar-double-float subset. Like amd64.Machine, every opcode is
// hand-lowered rather than dispatched through selectordsl: RISC-V's
// lack of a flags register (branches compare two registers directly,
// see cond.go) and lack of a conditional-move instruction (select is
// synthesized branchlessly below) both need control flow the DSL's
// emit side was never generalized to produce (see DESIGN.md).
type Machine struct {
	cc  backend.CompilationContext
	f   *ir.Function
	vc  *backend.VCode
	cur *backend.VBlock
}

func NewMachine() *Machine { return &Machine{} }

func (m *Machine) SetCompilationContext(cc backend.CompilationContext) { m.cc = cc }

func (m *Machine) StartFunction(f *ir.Function) {
	m.f = f
	m.vc = backend.NewVCode()
}

func (m *Machine) StartBlock(blk ir.Block) {
	m.cur = m.vc.AppendBlock(blk)
	m.cur.IsEntry = blk == m.f.EntryBlock()
}

func (m *Machine) EndBlock()             {}
func (m *Machine) EndFunction()          {}
func (m *Machine) VCode() *backend.VCode { return m.vc }
func (m *Machine) Reset()                { *m = Machine{} }

func (m *Machine) emit(instr *backend.VInstr) { instr.Block = m.cur.Source; m.cur.Append(instr) }
func (m *Machine) dfg() *ir.DFG               { return m.f.DFG() }
func (m *Machine) materialize(v ir.Value) backend.VReg { return m.cc.VRegOf(v) }

func (m *Machine) copyInto(dest, src backend.VReg) {
	m.emit(&backend.VInstr{
		Opcode:   uint16(opMovRR),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: src, Role: backend.RoleUse}},
	})
}

func (m *Machine) LowerInstr(inst ir.Inst) error {
	if m.cc.IsLowered(inst) {
		return nil
	}
	data := m.dfg().InstData(inst)

	switch data.Opcode {
	case ir.OpcodeIconst:
		return m.lowerIconst(inst, data)
	case ir.OpcodeFconst:
		return m.lowerFconst(inst, data)
	case ir.OpcodeIadd, ir.OpcodeIsub, ir.OpcodeBand, ir.OpcodeBor, ir.OpcodeBxor:
		return m.lowerAluReg(inst, data)
	case ir.OpcodeIaddImm:
		return m.lowerAluImm(inst, data, AluAdd)
	case ir.OpcodeImul:
		return m.lowerMul(inst, data)
	case ir.OpcodeSdiv, ir.OpcodeUdiv, ir.OpcodeSrem, ir.OpcodeUrem:
		return m.lowerDivRem(inst, data)
	case ir.OpcodeIneg:
		return m.lowerNeg(inst, data)
	case ir.OpcodeBnot:
		return m.lowerNot(inst, data)
	case ir.OpcodeIshl:
		return m.lowerShiftReg(inst, data, ShiftLeft)
	case ir.OpcodeUshr:
		return m.lowerShiftReg(inst, data, ShiftRightLogical)
	case ir.OpcodeSshr:
		return m.lowerShiftReg(inst, data, ShiftRightArith)
	case ir.OpcodeIshlImm:
		return m.lowerShiftImm(inst, data, ShiftLeft)
	case ir.OpcodeFadd, ir.OpcodeFsub, ir.OpcodeFmul, ir.OpcodeFdiv:
		return m.lowerFpuReg(inst, data)
	case ir.OpcodeFneg:
		return m.lowerFUnary(inst, data, opFpuNeg)
	case ir.OpcodeFabs:
		return m.lowerFUnary(inst, data, opFpuAbs)
	case ir.OpcodeIcmp:
		return m.lowerIcmp(inst, data)
	case ir.OpcodeFcmp:
		return m.lowerFcmp(inst, data)
	case ir.OpcodeSelect:
		return m.lowerSelect(inst, data)
	case ir.OpcodeLoad:
		return m.lowerLoad(inst, data)
	case ir.OpcodeStore:
		return m.lowerStore(inst, data)
	case ir.OpcodeStackLoad:
		return m.lowerStackLoad(inst, data)
	case ir.OpcodeStackStore:
		return m.lowerStackStore(inst, data)
	case ir.OpcodeCall, ir.OpcodeCallIndirect:
		return m.lowerCall(inst, data)
	case ir.OpcodeFuncAddr, ir.OpcodeGlobalAddr:
		return m.lowerAddr(inst, data)
	case ir.OpcodeSextend, ir.OpcodeUextend, ir.OpcodeIreduce:
		return m.lowerExtend(inst, data)
	case ir.OpcodeTrap, ir.OpcodeTrapz, ir.OpcodeTrapnz:
		return m.lowerTrap(inst, data)
	case ir.OpcodeFence:
		m.emit(&backend.VInstr{Opcode: uint16(opEbreak), Data: int64(0)})
		return nil
	default:
		return xerrors.New(xerrors.CategoryLowering, data.Opcode.String(), "riscv64: %s lowering not yet implemented", data.Opcode)
	}
}

func (m *Machine) LowerBranches(term ir.Inst) {
	data := m.dfg().InstData(term)
	switch data.Opcode {
	case ir.OpcodeJump:
		m.emitEdgeMoves(data.Blocks[0])
		m.emit(&backend.VInstr{Opcode: uint16(opJump), Data: data.Blocks[0].Block})
	case ir.OpcodeBranch:
		if len(m.f.BlockCallArgs(data.Blocks[0])) > 0 || len(m.f.BlockCallArgs(data.Blocks[1])) > 0 {
			panic("riscv64: conditional branch carrying block arguments, critical edge splitting should have removed this")
		}
		condReg := m.materialize(data.Args[0])
		zero := m.vc.NewVReg(backend.RegClassInt)
		m.emit(&backend.VInstr{Opcode: uint16(opLi), Operands: []backend.Operand{{Reg: zero, Role: backend.RoleDef}}, Data: int64(0)})
		m.emit(&backend.VInstr{
			Opcode:   uint16(opBranch),
			Operands: []backend.Operand{{Reg: condReg, Role: backend.RoleUse}, {Reg: zero, Role: backend.RoleUse}},
			Data:     branchData{Kind: brNe, Target: data.Blocks[0].Block, Else: data.Blocks[1].Block},
		})
	case ir.OpcodeReturn:
		m.lowerReturn(data)
	default:
		panic("riscv64: block terminator is not Jump/Branch/Return: " + data.Opcode.String())
	}
}

// emitEdgeMoves copies bc's argument values into the target block's
// parameter VRegs ahead of a Jump to bc.Block. Only Jump ever reaches
// here with a non-empty argument list: critical edge splitting routes
// every argument-carrying Branch arm through a synthesized block ending
// in one of these, so the moves always land on a single successor with
// no other path skipping them.
func (m *Machine) emitEdgeMoves(bc ir.BlockCall) {
	args := m.f.BlockCallArgs(bc)
	if len(args) == 0 {
		return
	}
	params := m.dfg().Params(bc.Block)
	for i, arg := range args {
		src := m.materialize(arg)
		dst := m.cc.VRegOf(params[i])
		m.emit(&backend.VInstr{Opcode: uint16(opMovRR), IsCopy: true, Operands: []backend.Operand{{Reg: dst, Role: backend.RoleDef}, {Reg: src, Role: backend.RoleUse}}})
	}
}

func (m *Machine) lowerIconst(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	m.emit(&backend.VInstr{Opcode: uint16(opLi), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}}, Data: data.Imm})
	return nil
}

func (m *Machine) lowerFconst(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	tmp := m.vc.NewVReg(backend.RegClassInt)
	m.emit(&backend.VInstr{Opcode: uint16(opLi), Operands: []backend.Operand{{Reg: tmp, Role: backend.RoleDef}}, Data: data.Imm})
	m.emit(&backend.VInstr{Opcode: uint16(opFmvToFloat), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: tmp, Role: backend.RoleUse}}})
	return nil
}

func aluOpFor(opcode ir.Opcode) AluOp {
	switch opcode {
	case ir.OpcodeIadd, ir.OpcodeIaddImm:
		return AluAdd
	case ir.OpcodeIsub:
		return AluSub
	case ir.OpcodeBand:
		return AluAnd
	case ir.OpcodeBor:
		return AluOr
	default:
		return AluXor
	}
}

func (m *Machine) lowerAluReg(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opALUReg),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     AluRegData{Op: aluOpFor(data.Opcode)},
	})
	return nil
}

func (m *Machine) lowerAluImm(inst ir.Inst, data *ir.InstructionData, op AluOp) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opALUImm),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}},
		Data:     AluImmData{Op: op, Imm: int32(data.Imm)},
	})
	return nil
}

func (m *Machine) lowerMul(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opMul),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
	})
	return nil
}

// lowerDivRem lowers sdiv/udiv/srem/urem directly to DIV/DIVU/REM/REMU;
// unlike amd64's IDIV, RV64M's division instructions take any two GPRs
// and need no fixed dividend/quotient register pair.
func (m *Machine) lowerDivRem(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	signed := data.Opcode == ir.OpcodeSdiv || data.Opcode == ir.OpcodeSrem
	rem := data.Opcode == ir.OpcodeSrem || data.Opcode == ir.OpcodeUrem
	m.emit(&backend.VInstr{
		Opcode:   uint16(opDivRem),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     DivRemData{Signed: signed, Rem: rem},
	})
	return nil
}

func (m *Machine) lowerNeg(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{Opcode: uint16(opNeg), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}}})
	return nil
}

func (m *Machine) lowerNot(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{Opcode: uint16(opNot), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}}})
	return nil
}

func (m *Machine) lowerShiftReg(inst ir.Inst, data *ir.InstructionData, kind ShiftKind) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opShift),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     ShiftData{Kind: kind, ByReg: true},
	})
	return nil
}

func (m *Machine) lowerShiftImm(inst ir.Inst, data *ir.InstructionData, kind ShiftKind) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opShift),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}},
		Data:     ShiftData{Kind: kind, Imm: uint8(data.Imm)},
	})
	return nil
}

func fpuOpFor(opcode ir.Opcode) FpuOp {
	switch opcode {
	case ir.OpcodeFadd:
		return FpuAdd
	case ir.OpcodeFsub:
		return FpuSub
	case ir.OpcodeFmul:
		return FpuMul
	default:
		return FpuDiv
	}
}

func (m *Machine) lowerFpuReg(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opFpuRRR),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     FpuData{Op: fpuOpFor(data.Opcode)},
	})
	return nil
}

// lowerFUnary handles fneg/fabs, both single FSGNJ-family instructions
// that take the same register as both source operands (see
// encode.go), unlike amd64's mask-materialization approach.
func (m *Machine) lowerFUnary(inst ir.Inst, data *ir.InstructionData, o op) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{Opcode: uint16(o), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}}})
	return nil
}

func (m *Machine) lowerIcmp(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	c := ir.IntCmpCond(data.Cond)
	switch c {
	case ir.IntEq, ir.IntNe:
		// (a == b) synthesized as (a ^ b) == 0, checked via sltu tmp, 1.
		tmp := m.vc.NewVReg(backend.RegClassInt)
		m.emit(&backend.VInstr{
			Opcode:   uint16(opALUReg),
			Operands: []backend.Operand{{Reg: tmp, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
			Data:     AluRegData{Op: AluXor},
		})
		one := m.vc.NewVReg(backend.RegClassInt)
		m.emit(&backend.VInstr{Opcode: uint16(opLi), Operands: []backend.Operand{{Reg: one, Role: backend.RoleDef}}, Data: int64(1)})
		eq := m.vc.NewVReg(backend.RegClassInt)
		m.emit(&backend.VInstr{
			Opcode:   uint16(opSlt),
			Operands: []backend.Operand{{Reg: eq, Role: backend.RoleDef}, {Reg: tmp, Role: backend.RoleUse}, {Reg: one, Role: backend.RoleUse}},
			Data:     SltData{Signed: false},
		})
		if c == ir.IntEq {
			m.copyInto(dest, eq)
		} else {
			m.emit(&backend.VInstr{
				Opcode:   uint16(opALUImm),
				Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: eq, Role: backend.RoleUse}},
				Data:     AluImmData{Op: AluXor, Imm: 1},
			})
		}
		return nil
	case ir.IntSgt, ir.IntSle, ir.IntUgt, ir.IntUle:
		rn, rm = rm, rn
	}
	signed := c == ir.IntSlt || c == ir.IntSgt || c == ir.IntSle || c == ir.IntSge
	lt := m.vc.NewVReg(backend.RegClassInt)
	m.emit(&backend.VInstr{
		Opcode:   uint16(opSlt),
		Operands: []backend.Operand{{Reg: lt, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     SltData{Signed: signed},
	})
	switch c {
	case ir.IntSlt, ir.IntUlt, ir.IntSgt, ir.IntUgt:
		m.copyInto(dest, lt)
	default: // Sle/Sge/Ule/Uge: not (opposite strict compare)
		m.emit(&backend.VInstr{
			Opcode:   uint16(opALUImm),
			Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: lt, Role: backend.RoleUse}},
			Data:     AluImmData{Op: AluXor, Imm: 1},
		})
	}
	return nil
}

func (m *Machine) lowerFcmp(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	rn, rm := m.materialize(data.Args[0]), m.materialize(data.Args[1])
	c := ir.FloatCmpCond(data.Cond)
	var kind FcmpKind
	swap, invert := false, false
	switch c {
	case ir.FloatEq:
		kind = FcmpEq
	case ir.FloatNe:
		kind, invert = FcmpEq, true
	case ir.FloatLt:
		kind = FcmpLt
	case ir.FloatLe:
		kind = FcmpLe
	case ir.FloatGt:
		kind, swap = FcmpLt, true
	case ir.FloatGe:
		kind, swap = FcmpLe, true
	default:
		panic("unknown float comparison condition")
	}
	if swap {
		rn, rm = rm, rn
	}
	res := dest
	if invert {
		res = m.vc.NewVReg(backend.RegClassInt)
	}
	m.emit(&backend.VInstr{
		Opcode:   uint16(opFcmp),
		Operands: []backend.Operand{{Reg: res, Role: backend.RoleDef}, {Reg: rn, Role: backend.RoleUse}, {Reg: rm, Role: backend.RoleUse}},
		Data:     FcmpData{Kind: kind},
	})
	if invert {
		m.emit(&backend.VInstr{
			Opcode:   uint16(opALUImm),
			Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: res, Role: backend.RoleUse}},
			Data:     AluImmData{Op: AluXor, Imm: 1},
		})
	}
	return nil
}

// lowerSelect synthesizes a branchless select since RV64I has no
// conditional-move instruction (the Zicond extension is not assumed):
// mask := 0 - cond (all-ones if cond==1, all-zero if cond==0), then
// dest := else ^ ((then ^ else) & mask).
func (m *Machine) lowerSelect(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	condReg := m.materialize(data.Args[0])
	thenReg, elseReg := m.materialize(data.Args[1]), m.materialize(data.Args[2])

	mask := m.vc.NewVReg(backend.RegClassInt)
	m.emit(&backend.VInstr{Opcode: uint16(opNeg), Operands: []backend.Operand{{Reg: mask, Role: backend.RoleDef}, {Reg: condReg, Role: backend.RoleUse}}})

	diff := m.vc.NewVReg(backend.RegClassInt)
	m.emit(&backend.VInstr{
		Opcode:   uint16(opALUReg),
		Operands: []backend.Operand{{Reg: diff, Role: backend.RoleDef}, {Reg: thenReg, Role: backend.RoleUse}, {Reg: elseReg, Role: backend.RoleUse}},
		Data:     AluRegData{Op: AluXor},
	})
	masked := m.vc.NewVReg(backend.RegClassInt)
	m.emit(&backend.VInstr{
		Opcode:   uint16(opALUReg),
		Operands: []backend.Operand{{Reg: masked, Role: backend.RoleDef}, {Reg: diff, Role: backend.RoleUse}, {Reg: mask, Role: backend.RoleUse}},
		Data:     AluRegData{Op: AluAnd},
	})
	m.emit(&backend.VInstr{
		Opcode:   uint16(opALUReg),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: elseReg, Role: backend.RoleUse}, {Reg: masked, Role: backend.RoleUse}},
		Data:     AluRegData{Op: AluXor},
	})
	return nil
}

func (m *Machine) lowerLoad(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	base := m.materialize(data.Args[0])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opLoad),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: base, Role: backend.RoleUse}},
		Data:     LoadStoreInfo{Offset: int32(data.Imm), Size: uint8(data.Type.Bytes()), Float: data.Type.IsFloat()},
	})
	return nil
}

func (m *Machine) lowerStore(inst ir.Inst, data *ir.InstructionData) error {
	base := m.materialize(data.Args[0])
	val := m.materialize(data.Args[1])
	valType := data.Args[1].Type()
	m.emit(&backend.VInstr{
		Opcode:   uint16(opStore),
		Operands: []backend.Operand{{Reg: val, Role: backend.RoleUse}, {Reg: base, Role: backend.RoleUse}},
		Data:     LoadStoreInfo{Offset: int32(data.Imm), Size: uint8(valType.Bytes()), Float: valType.IsFloat()},
	})
	return nil
}

func (m *Machine) lowerStackLoad(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	m.emit(&backend.VInstr{
		Opcode:   uint16(opLoad),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}},
		Data:     stackSlotData{Slot: ir.StackSlot(data.Aux), Offset: int32(data.Imm), Size: uint8(data.Type.Bytes()), Float: data.Type.IsFloat()},
	})
	return nil
}

func (m *Machine) lowerStackStore(inst ir.Inst, data *ir.InstructionData) error {
	val := m.materialize(data.Args[0])
	valType := data.Args[0].Type()
	m.emit(&backend.VInstr{
		Opcode:   uint16(opStore),
		Operands: []backend.Operand{{Reg: val, Role: backend.RoleUse}},
		Data:     stackSlotData{Slot: ir.StackSlot(data.Aux), Offset: int32(data.Imm), Size: uint8(valType.Bytes()), Float: valType.IsFloat()},
	})
	return nil
}

func (m *Machine) lowerCall(inst ir.Inst, data *ir.InstructionData) error {
	results := m.dfg().Results(inst)

	var argOps []backend.Operand
	nInt, nFloat := 0, 0
	for _, v := range m.dfg().Operands(data.VarArgs) {
		if v.Type().IsFloat() {
			if nFloat < len(floatArgRegs) {
				argOps = append(argOps, backend.Operand{Reg: m.materialize(v), Role: backend.RoleFixedUse, Fixed: floatArgRegs[nFloat]})
				nFloat++
			}
		} else {
			if nInt < len(intArgRegs) {
				argOps = append(argOps, backend.Operand{Reg: m.materialize(v), Role: backend.RoleFixedUse, Fixed: intArgRegs[nInt]})
				nInt++
			}
		}
	}

	nIntRes, nFloatRes := 0, 0
	var resultTmps []backend.VReg
	for _, res := range results {
		class := backend.RegClassInt
		var fixed backend.RealReg
		if res.Type().IsFloat() {
			class = backend.RegClassFloat
			fixed = floatArgRegs[nFloatRes]
			nFloatRes++
		} else {
			fixed = intArgRegs[nIntRes]
			nIntRes++
		}
		tmp := m.vc.NewVReg(class)
		resultTmps = append(resultTmps, tmp)
		argOps = append(argOps, backend.Operand{Reg: tmp, Role: backend.RoleFixedDef, Fixed: fixed})
	}

	call := &backend.VInstr{Opcode: uint16(opCall), IsCall: true, Operands: argOps}
	if data.Opcode == ir.OpcodeCallIndirect {
		callee := m.materialize(data.Args[0])
		call.Operands = append(call.Operands, backend.Operand{Reg: callee, Role: backend.RoleUse})
		call.Data = CallData{Indirect: true}
	} else {
		call.Data = CallData{Symbol: m.f.FuncRefInfo(ir.FuncRef(data.Aux)).Name}
	}
	m.emit(call)

	for i, res := range results {
		dest := m.cc.VRegOf(res)
		m.emit(&backend.VInstr{Opcode: uint16(opMovRR), IsCopy: true, Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: resultTmps[i], Role: backend.RoleUse}}})
	}
	return nil
}

func (m *Machine) lowerAddr(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	sym := ""
	if data.Opcode == ir.OpcodeFuncAddr {
		sym = m.f.FuncRefInfo(ir.FuncRef(data.Aux)).Name
	} else {
		sym = m.f.GlobalValueInfo(ir.GlobalValue(data.Aux)).Name
	}
	m.emit(&backend.VInstr{Opcode: uint16(opLea), Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}}, Data: symbolData{Symbol: sym}})
	return nil
}

func (m *Machine) lowerExtend(inst ir.Inst, data *ir.InstructionData) error {
	dest := m.cc.VRegOf(m.dfg().Results(inst)[0])
	src := m.materialize(data.Args[0])
	signed := data.Opcode == ir.OpcodeSextend
	m.emit(&backend.VInstr{
		Opcode:   uint16(opExtend),
		Operands: []backend.Operand{{Reg: dest, Role: backend.RoleDef}, {Reg: src, Role: backend.RoleUse}},
		Data:     ExtendInfo{FromBits: uint8(data.Args[0].Type().Bits()), ToBits: uint8(data.Type.Bits()), Signed: signed},
	})
	return nil
}

func (m *Machine) lowerTrap(inst ir.Inst, data *ir.InstructionData) error {
	switch data.Opcode {
	case ir.OpcodeTrap:
		m.emit(&backend.VInstr{Opcode: uint16(opEbreak), Data: int64(data.Imm)})
	case ir.OpcodeTrapz, ir.OpcodeTrapnz:
		cond := m.materialize(data.Args[0])
		zero := m.vc.NewVReg(backend.RegClassInt)
		m.emit(&backend.VInstr{Opcode: uint16(opLi), Operands: []backend.Operand{{Reg: zero, Role: backend.RoleDef}}, Data: int64(0)})
		k := brNe
		if data.Opcode == ir.OpcodeTrapz {
			k = brEq
		}
		m.emit(&backend.VInstr{
			Opcode:   uint16(opBranch),
			Operands: []backend.Operand{{Reg: cond, Role: backend.RoleUse}, {Reg: zero, Role: backend.RoleUse}},
			Data:     branchData{Kind: k, Target: ir.BlockInvalid, Else: ir.BlockInvalid},
		})
		m.emit(&backend.VInstr{Opcode: uint16(opEbreak), Data: int64(data.Imm)})
	}
	return nil
}

func (m *Machine) lowerReturn(data *ir.InstructionData) {
	nInt, nFloat := 0, 0
	var ops []backend.Operand
	for _, v := range m.dfg().Operands(data.VarArgs) {
		reg := m.materialize(v)
		if v.Type().IsFloat() {
			ops = append(ops, backend.Operand{Reg: reg, Role: backend.RoleFixedUse, Fixed: floatArgRegs[nFloat]})
			nFloat++
		} else {
			ops = append(ops, backend.Operand{Reg: reg, Role: backend.RoleFixedUse, Fixed: intArgRegs[nInt]})
			nInt++
		}
	}
	m.emit(&backend.VInstr{Opcode: uint16(opRet), IsReturn: true, Operands: ops})
}
