package riscv64

import (
	"encoding/binary"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/ir"
)

// Encoder implements emit.Encoder for RV64GC. Like amd64.Encoder, every
// branch is always encoded against its resolved target distance rather
// than choosing a compressed (RVC) form, so Size() stays a pure
// function of instruction shape (see DESIGN.md).
type Encoder struct {
	vc         *backend.VCode
	blockLabel map[ir.Block]emit.Label
	first      map[*backend.VInstr]emit.Label
}

func NewEncoder(vc *backend.VCode) *Encoder {
	e := &Encoder{vc: vc, blockLabel: map[ir.Block]emit.Label{}, first: map[*backend.VInstr]emit.Label{}}
	for i, vb := range vc.Blocks {
		l := emit.Label(i)
		e.blockLabel[vb.Source] = l
		if len(vb.Instrs) > 0 {
			e.first[vb.Instrs[0]] = l
		}
	}
	return e
}

func (e *Encoder) LabelOf(instr *backend.VInstr) (emit.Label, bool) {
	l, ok := e.first[instr]
	return l, ok
}

func (e *Encoder) BranchTarget(instr *backend.VInstr) (emit.Label, bool) {
	switch op(instr.Opcode) {
	case opJump:
		return e.blockLabel[instr.Data.(ir.Block)], true
	case opBranch:
		d := instr.Data.(branchData)
		if d.Target == ir.BlockInvalid {
			return 0, false
		}
		return e.blockLabel[d.Target], true
	}
	return 0, false
}

func wordBytes(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

func reg5(r backend.RealReg) uint32 { return uint32(r) & 0x1f }

func operandReg(instr *backend.VInstr, idx int) backend.RealReg { return instr.Operands[idx].Reg.RealReg() }

func rType(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func sType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

func bType(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 1
	b10_5 := (u >> 5) & 0x3F
	b4_1 := (u >> 1) & 0xF
	b11 := (u >> 11) & 1
	return b12<<31 | b10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}

func uType(opcode, rd uint32, imm int32) uint32 {
	return uint32(imm)<<12 | rd<<7 | opcode
}

func jType(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	b20 := (u >> 20) & 1
	b10_1 := (u >> 1) & 0x3FF
	b11 := (u >> 11) & 1
	b19_12 := (u >> 12) & 0xFF
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | rd<<7 | opcode
}

const (
	opcOP     = 0b0110011
	opcOPIMM  = 0b0010011
	opcLOAD   = 0b0000011
	opcSTORE  = 0b0100011
	opcBRANCH = 0b1100011
	opcJAL    = 0b1101111
	opcJALR   = 0b1100111
	opcLUI    = 0b0110111
	opcOPFP   = 0b1010011
	opcLOADFP = 0b0000111
	opcSTOREFP = 0b0100111
	opcSYSTEM = 0b1110011
)

// liParts splits imm into a LUI upper-20 and ADDI lower-12 that
// reconstruct imm's low 32 bits, sign-extended -- the standard "li"
// pseudo-instruction algorithm. Values outside the sign-extended 32-bit
// range are truncated (see DESIGN.md on this reduced backend's
// materialization ceiling, unlike amd64/arm64's full 64-bit immediates).
func liParts(imm int64) (hi, lo int32, single bool) {
	v := int32(imm)
	if v >= -2048 && v < 2048 {
		return 0, v, true
	}
	hi = (v + 0x800) >> 12
	lo = v - (hi << 12)
	return hi, lo, false
}

func (e *Encoder) Size(instr *backend.VInstr, resolveLabel func(emit.Label) int64) int {
	switch op(instr.Opcode) {
	case opLi:
		_, _, single := liParts(instr.Data.(int64))
		if single {
			return 4
		}
		return 8
	case opMovRR, opALUReg, opNeg, opNot, opMul, opDivRem, opSlt, opFpuRRR, opFpuNeg, opFpuAbs, opFcmp, opFmvToInt, opFmvToFloat, opBranch, opJump, opRet:
		return 4
	case opALUImm:
		return 4
	case opShift:
		return 4
	case opLoad, opStore:
		return 4
	case opLea:
		if _, ok := instr.Data.(stackSlotData); ok {
			return 4 // single ADDI, frame pointer relative.
		}
		return 8 // LUI + ADDI against a relocated symbol.
	case opExtend:
		d := instr.Data.(ExtendInfo)
		if d.FromBits >= 64 {
			return 4 // plain register copy, src already occupies the full width.
		}
		return 8 // SLLI+SRLI (zero-extend) or SLLI+SRAI (sign-extend).
	case opCall:
		if instr.Data.(CallData).Indirect {
			return 4
		}
		return 4
	case opEbreak:
		return 4
	}
	return 0
}

func (e *Encoder) Encode(buf []byte, instr *backend.VInstr, pc int64, resolveLabel func(emit.Label) int64) ([]byte, []emit.Relocation) {
	switch op(instr.Opcode) {
	case opLi:
		dest := operandReg(instr, 0)
		hi, lo, single := liParts(instr.Data.(int64))
		if single {
			return append(buf, wordBytes(iType(opcOPIMM, 0, reg5(dest), 0, lo))...), nil
		}
		out := wordBytes(uType(opcLUI, reg5(dest), hi))
		out = append(out, wordBytes(iType(opcOPIMM, 0, reg5(dest), reg5(dest), lo))...)
		return append(buf, out...), nil

	case opMovRR:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		if instr.Operands[0].Reg.Class() == backend.RegClassFloat {
			return append(buf, wordBytes(rType(opcOPFP, 0, 0b0010001, reg5(dest), reg5(src), reg5(src)))...), nil
		}
		return append(buf, wordBytes(iType(opcOPIMM, 0, reg5(dest), reg5(src), 0))...), nil

	case opALUReg:
		d := instr.Data.(AluRegData)
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		f3, f7 := aluRegEncoding(d.Op)
		return append(buf, wordBytes(rType(opcOP, f3, f7, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opALUImm:
		d := instr.Data.(AluImmData)
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		f3 := aluImmEncoding(d.Op)
		return append(buf, wordBytes(iType(opcOPIMM, f3, reg5(dest), reg5(rn), d.Imm))...), nil

	case opNeg:
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(rType(opcOP, 0, 0b0100000, reg5(dest), reg5(zero), reg5(rn)))...), nil

	case opNot:
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(iType(opcOPIMM, 0b100, reg5(dest), reg5(rn), -1))...), nil

	case opMul:
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		return append(buf, wordBytes(rType(opcOP, 0, 0b0000001, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opDivRem:
		d := instr.Data.(DivRemData)
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		var f3 uint32
		switch {
		case !d.Rem && d.Signed:
			f3 = 0b100
		case !d.Rem && !d.Signed:
			f3 = 0b101
		case d.Rem && d.Signed:
			f3 = 0b110
		default:
			f3 = 0b111
		}
		return append(buf, wordBytes(rType(opcOP, f3, 0b0000001, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opShift:
		d := instr.Data.(ShiftData)
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		f7 := uint32(0)
		f3 := shiftFunct3(d.Kind)
		if d.Kind == ShiftRightArith {
			f7 = 0b0100000
		}
		if d.ByReg {
			rm := operandReg(instr, 2)
			return append(buf, wordBytes(rType(opcOP, f3, f7, reg5(dest), reg5(rn), reg5(rm)))...), nil
		}
		return append(buf, wordBytes(rType(opcOPIMM, f3, f7, reg5(dest), reg5(rn), uint32(d.Imm)&0x3F))...), nil

	case opSlt:
		d := instr.Data.(SltData)
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		f3 := uint32(0b010)
		if !d.Signed {
			f3 = 0b011
		}
		return append(buf, wordBytes(rType(opcOP, f3, 0, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opFpuRRR:
		d := instr.Data.(FpuData)
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		f7 := fpuFunct7(d.Op)
		return append(buf, wordBytes(rType(opcOPFP, 0, f7, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opFpuNeg:
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(rType(opcOPFP, 0b001, 0b0010001, reg5(dest), reg5(rn), reg5(rn)))...), nil

	case opFpuAbs:
		dest, rn := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(rType(opcOPFP, 0b010, 0b0010001, reg5(dest), reg5(rn), reg5(rn)))...), nil

	case opFcmp:
		d := instr.Data.(FcmpData)
		dest, rn, rm := operandReg(instr, 0), operandReg(instr, 1), operandReg(instr, 2)
		var f3 uint32
		switch d.Kind {
		case FcmpEq:
			f3 = 0b010
		case FcmpLt:
			f3 = 0b001
		default:
			f3 = 0b000
		}
		return append(buf, wordBytes(rType(opcOPFP, f3, 0b1010001, reg5(dest), reg5(rn), reg5(rm)))...), nil

	case opFmvToInt:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(rType(opcOPFP, 0, 0b1110001, reg5(dest), reg5(src), 0))...), nil

	case opFmvToFloat:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, wordBytes(rType(opcOPFP, 0, 0b1111001, reg5(dest), reg5(src), 0))...), nil

	case opLoad:
		return e.encodeLoadStore(buf, instr, true)
	case opStore:
		return e.encodeLoadStore(buf, instr, false)

	case opLea:
		dest := operandReg(instr, 0)
		switch d := instr.Data.(type) {
		case stackSlotData:
			off := e.vc.StackSlots[d.Slot] + d.Offset
			return append(buf, wordBytes(iType(opcOPIMM, 0, reg5(dest), reg5(fp), off))...), nil
		case symbolData:
			out := wordBytes(uType(opcLUI, reg5(dest), 0))
			out = append(out, wordBytes(iType(opcOPIMM, 0, reg5(dest), reg5(dest), 0))...)
			reloc := emit.Relocation{Offset: pc, Kind: emit.RelocPCRel32, Symbol: d.Symbol}
			return append(buf, out...), []emit.Relocation{reloc}
		}
		return buf, nil

	case opExtend:
		d := instr.Data.(ExtendInfo)
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		if d.FromBits >= 64 {
			return append(buf, wordBytes(iType(opcOPIMM, 0, reg5(dest), reg5(src), 0))...), nil
		}
		shamt := int32(64 - d.FromBits)
		out := wordBytes(rType(opcOPIMM, 0b001, 0, reg5(dest), reg5(src), uint32(shamt)&0x3F))
		f7 := uint32(0b0000000)
		if d.Signed {
			f7 = 0b0100000
		}
		out = append(out, wordBytes(rType(opcOPIMM, 0b101, f7, reg5(dest), reg5(dest), uint32(shamt)&0x3F))...)
		return append(buf, out...), nil

	case opBranch:
		d := instr.Data.(branchData)
		kind := d.Kind
		var rel int32
		if d.Target == ir.BlockInvalid {
			// lowerTrap's conditional trap: d.Kind is the trap condition
			// and EBREAK immediately follows, so the branch takes the
			// inverted condition 8 bytes ahead, past the EBREAK.
			kind = kind.invert()
			rel = 8
		} else {
			target := resolveLabel(e.blockLabel[d.Target])
			rel = int32(target - pc)
		}
		a, b := operandReg(instr, 0), operandReg(instr, 1)
		f3 := branchFunct3(kind)
		return append(buf, wordBytes(bType(opcBRANCH, f3, reg5(a), reg5(b), rel))...), nil

	case opJump:
		blk := instr.Data.(ir.Block)
		target := resolveLabel(e.blockLabel[blk])
		rel := int32(target - pc)
		return append(buf, wordBytes(jType(opcJAL, 0, rel))...), nil

	case opCall:
		d := instr.Data.(CallData)
		if d.Indirect {
			callee := instr.Operands[len(instr.Operands)-1].Reg.RealReg()
			return append(buf, wordBytes(iType(opcJALR, 0, reg5(ra), reg5(callee), 0))...), nil
		}
		reloc := emit.Relocation{Offset: pc, Kind: emit.RelocCall26, Symbol: d.Symbol}
		return append(buf, wordBytes(jType(opcJAL, reg5(ra), 0))...), []emit.Relocation{reloc}

	case opRet:
		return append(buf, wordBytes(iType(opcJALR, 0, 0, reg5(ra), 0))...), nil

	case opEbreak:
		return append(buf, wordBytes(uint32(opcSYSTEM)|1<<20)...), nil
	}
	panic("riscv64: Encode: unhandled opcode")
}

func (e *Encoder) encodeLoadStore(buf []byte, instr *backend.VInstr, isLoad bool) ([]byte, []emit.Relocation) {
	var float bool
	var size uint8
	var signed bool
	var off int32
	var base backend.RealReg
	switch d := instr.Data.(type) {
	case LoadStoreInfo:
		float, size, signed, off = d.Float, d.Size, d.Signed, d.Offset
		base = operandReg(instr, 1)
	case stackSlotData:
		float, size = d.Float, d.Size
		off = e.vc.StackSlots[d.Slot] + d.Offset
		base = fp
	case spillSlotData:
		float, size = d.Float, d.Size
		off = e.vc.SpillSlots[d.VReg]
		base = fp
	}
	val := operandReg(instr, 0)

	opcode := uint32(opcLOAD)
	if !isLoad {
		opcode = opcSTORE
	}
	if float {
		opcode = opcLOADFP
		if !isLoad {
			opcode = opcSTOREFP
		}
	}
	f3 := loadStoreFunct3(size, signed, float, isLoad)

	if isLoad {
		return append(buf, wordBytes(iType(opcode, f3, reg5(val), reg5(base), off))...), nil
	}
	return append(buf, wordBytes(sType(opcode, f3, reg5(base), reg5(val), off))...), nil
}

// loadStoreFunct3 picks LB/LH/LW/LD (or their unsigned LBU/LHU/LWU load
// forms) and SB/SH/SW/SD by transfer size; FLD/FSD only have a
// doubleword form.
func loadStoreFunct3(size uint8, signed, float, isLoad bool) uint32 {
	if float {
		return 0b011
	}
	switch size {
	case 1:
		if isLoad && !signed {
			return 0b100
		}
		return 0b000
	case 2:
		if isLoad && !signed {
			return 0b101
		}
		return 0b001
	case 4:
		if isLoad && !signed {
			return 0b110
		}
		return 0b010
	default:
		return 0b011
	}
}

func aluRegEncoding(op AluOp) (funct3, funct7 uint32) {
	switch op {
	case AluAdd:
		return 0b000, 0
	case AluSub:
		return 0b000, 0b0100000
	case AluAnd:
		return 0b111, 0
	case AluOr:
		return 0b110, 0
	default:
		return 0b100, 0
	}
}

func aluImmEncoding(op AluOp) uint32 {
	switch op {
	case AluAdd:
		return 0b000
	case AluAnd:
		return 0b111
	case AluOr:
		return 0b110
	default:
		return 0b100
	}
}

func shiftFunct3(k ShiftKind) uint32 {
	if k == ShiftLeft {
		return 0b001
	}
	return 0b101
}

func fpuFunct7(op FpuOp) uint32 {
	switch op {
	case FpuAdd:
		return 0b0000001
	case FpuSub:
		return 0b0000101
	case FpuMul:
		return 0b0001001
	default:
		return 0b0001101
	}
}

func branchFunct3(k branchKind) uint32 {
	switch k {
	case brEq:
		return 0b000
	case brNe:
		return 0b001
	case brLt:
		return 0b100
	case brGe:
		return 0b101
	case brLtu:
		return 0b110
	default:
		return 0b111
	}
}
