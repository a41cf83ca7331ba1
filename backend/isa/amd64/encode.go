package amd64

import (
	"encoding/binary"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/ir"
)

// Encoder implements emit.Encoder for x86-64. Every branch/call is
// always encoded in its widest (rel32) form rather than iterating to a
// shorter rel8 encoding when the target is close, so no instruction's
// size depends on its branch distance.
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
	case opJmp:
		return e.blockLabel[instr.Data.(ir.Block)], true
	case opJcc:
		d := instr.Data.(condJmpData)
		if d.Target == ir.BlockInvalid {
			return 0, false
		}
		return e.blockLabel[d.Target], true
	}
	return 0, false
}

// Size returns the exact byte count Encode will produce for instr. This
// module always emits the REX prefix and a full disp32/imm32/rel32 (no
// distance-dependent encoding choice, see DESIGN.md), so every opcode's
// length is a pure function of its data shape and operand count --
// except opMovRR, which encodes to nothing when its source and
// destination are the same register -- computed here without building
// the bytes.
func (e *Encoder) Size(instr *backend.VInstr, resolveLabel func(emit.Label) int64) int {
	switch op(instr.Opcode) {
	case opMovRR:
		if operandReg(instr, 0) == operandReg(instr, 1) {
			return 0
		}
		return 3
	case opMovImm:
		return 10
	case opALU:
		return 3
	case opALUImm:
		return 7
	case opIMul:
		return 4
	case opCdq:
		return 2
	case opXorZeroRdx:
		return 3
	case opIDiv, opNeg, opNot:
		return 3
	case opShift:
		if instr.Data.(ShiftData).ByReg {
			return 3
		}
		return 4
	case opSetCC:
		return 8
	case opCmp:
		if len(instr.Operands) == 2 {
			return 3
		}
		return 7
	case opJcc:
		return 6
	case opJmp:
		return 5
	case opCMov:
		return 4
	case opLoad, opStore:
		if loadStoreIsFloat(instr) {
			return 9
		}
		return 7
	case opLea:
		return 7
	case opMovExtend:
		d := instr.Data.(ExtendInfo)
		if !d.Signed || d.FromBits == 64 {
			if d.FromBits >= 32 {
				return 3
			}
			return 4
		}
		if d.FromBits == 32 {
			return 3
		}
		return 4
	case opCall:
		return callSize(instr)
	case opRet:
		return 1
	case opFpuRRR, opFpuNeg, opFpuAbs, opUcomisd, opMovq:
		return 5
	case opMFence:
		return 3
	case opUD2:
		return 2
	default:
		return 0
	}
}

func loadStoreIsFloat(instr *backend.VInstr) bool {
	switch d := instr.Data.(type) {
	case LoadStoreInfo:
		return d.Float
	case stackSlotData:
		return d.Float
	case spillSlotData:
		return d.Float
	}
	return false
}

func callSize(instr *backend.VInstr) int {
	if instr.Data.(CallData).Indirect {
		return 3
	}
	return 5
}

func regField(r backend.RealReg) (field byte, ext bool) {
	return byte(r) & 7, r >= 8
}

func rex(w, r, x, b bool) byte {
	var v byte = 0x40
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | (rm & 7) }

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func operandReg(instr *backend.VInstr, idx int) backend.RealReg { return instr.Operands[idx].Reg.RealReg() }

// regRegOp encodes the common REX.W + opcode + ModRM(mod=11) register
// direct form: "opcode reg, rm" per Intel's own operand-order naming.
func regRegOp(opcode byte, regOperand, rmOperand backend.RealReg, w bool) []byte {
	rf, rext := regField(regOperand)
	mf, mext := regField(rmOperand)
	return []byte{rex(w, rext, false, mext), opcode, modrm(3, rf, mf)}
}

func (e *Encoder) Encode(buf []byte, instr *backend.VInstr, pc int64, resolveLabel func(emit.Label) int64) ([]byte, []emit.Relocation) {
	switch op(instr.Opcode) {
	case opMovRR:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		if dest == src {
			return buf, nil
		}
		return append(buf, regRegOp(0x89, src, dest, true)...), nil

	case opMovImm:
		dest := operandReg(instr, 0)
		_, ext := regField(dest)
		imm := uint64(instr.Data.(int64))
		out := []byte{rex(true, false, false, ext), 0xB8 + byte(dest)&7}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], imm)
		return append(append(buf, out...), b[:]...), nil

	case opALU:
		d := instr.Data.(AluRegData)
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		return append(buf, regRegOp(aluOpcodeReg(d.Op), src, dest, true)...), nil

	case opALUImm:
		d := instr.Data.(AluImmData)
		dest := operandReg(instr, 0)
		_, rext := regField(dest)
		out := []byte{rex(true, false, false, rext), 0x81, modrm(3, aluOpcodeExt(d.Op), byte(dest))}
		out = append(out, u32le(uint32(d.Imm))...)
		return append(buf, out...), nil

	case opCmp:
		dest := operandReg(instr, 0)
		if len(instr.Operands) == 2 {
			// Register-register CMP r/m64, r64 -- the destination-ish
			// first operand lands in ModRM.rm, the comparand in ModRM.reg,
			// so the flags reflect instr.Operands[0] - instr.Operands[1].
			return append(buf, regRegOp(0x39, operandReg(instr, 1), dest, true)...), nil
		}
		d := instr.Data.(AluImmData)
		_, rext := regField(dest)
		out := []byte{rex(true, false, false, rext), 0x81, modrm(3, 7, byte(dest))}
		out = append(out, u32le(uint32(d.Imm))...)
		return append(buf, out...), nil

	case opIMul:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		sf, sext := regField(src)
		out := []byte{rex(true, dext, false, sext), 0x0F, 0xAF, modrm(3, df, sf)}
		return append(buf, out...), nil

	case opCdq:
		return append(buf, rex(true, false, false, false), 0x99), nil

	case opXorZeroRdx:
		return append(buf, regRegOp(0x31, rdx, rdx, true)...), nil

	case opIDiv:
		d := instr.Data.(DivData)
		divisor := operandReg(instr, 2)
		ext := byte(7)
		if !d.Signed {
			ext = 6
		}
		_, dext := regField(divisor)
		return append(buf, rex(true, false, false, dext), 0xF7, modrm(3, ext, byte(divisor))), nil

	case opNeg:
		r := operandReg(instr, 0)
		_, ext := regField(r)
		return append(buf, rex(true, false, false, ext), 0xF7, modrm(3, 3, byte(r))), nil

	case opNot:
		r := operandReg(instr, 0)
		_, ext := regField(r)
		return append(buf, rex(true, false, false, ext), 0xF7, modrm(3, 2, byte(r))), nil

	case opShift:
		d := instr.Data.(ShiftData)
		r := operandReg(instr, 0)
		_, ext := regField(r)
		extDigit := shiftExt(d.Kind)
		if d.ByReg {
			return append(buf, rex(true, false, false, ext), 0xD3, modrm(3, extDigit, byte(r))), nil
		}
		return append(buf, rex(true, false, false, ext), 0xC1, modrm(3, extDigit, byte(r)), d.Imm), nil

	case opSetCC:
		d := instr.Data.(CondData)
		dest := operandReg(instr, 0)
		_, ext := regField(dest)
		// SETcc on dest's own low byte, then MOVZX dest, that low byte to
		// zero-extend into the full register -- SETcc itself can only
		// write a byte register; the REX prefix emitted on both makes the
		// low byte of every GPR (sil, dil, r8b-r15b) addressable.
		out := []byte{rex(false, false, false, ext), 0x0F, 0x90 + byte(d.Cond), modrm(3, 0, byte(dest))}
		out = append(out, rex(true, ext, false, ext), 0x0F, 0xB6, modrm(3, byte(dest)&7, byte(dest)&7))
		return append(buf, out...), nil

	case opJcc:
		d := instr.Data.(condJmpData)
		var rel int32
		c := d.Cond
		if d.Target == ir.BlockInvalid {
			// lowerTrap's conditional trap: d.Cond is the trap condition
			// and the 2-byte UD2 immediately follows, so the jump takes the
			// inverted condition (low bit flipped) past the UD2.
			c ^= 1
			rel = 2
		} else {
			target := resolveLabel(e.blockLabel[d.Target])
			rel = int32(target - (pc + 6))
		}
		return append(buf, append([]byte{0x0F, 0x80 + byte(c)}, u32le(uint32(rel))...)...), nil

	case opJmp:
		blk := instr.Data.(ir.Block)
		target := resolveLabel(e.blockLabel[blk])
		rel := int32(target - (pc + 5))
		return append(buf, append([]byte{0xE9}, u32le(uint32(rel))...)...), nil

	case opCMov:
		d := instr.Data.(CondData)
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		sf, sext := regField(src)
		return append(buf, rex(true, dext, false, sext), 0x0F, 0x40+byte(d.Cond), modrm(3, df, sf)), nil

	case opLoad:
		return e.encodeLoadStore(buf, instr, true)
	case opStore:
		return e.encodeLoadStore(buf, instr, false)

	case opLea:
		dest := operandReg(instr, 0)
		df, dext := regField(dest)
		switch d := instr.Data.(type) {
		case stackSlotData:
			base := rbp
			_, bext := regField(base)
			off := e.vc.StackSlots[d.Slot] + d.Offset
			out := []byte{rex(true, dext, false, bext), 0x8D, modrm(2, df, byte(base)&7)}
			out = append(out, u32le(uint32(off))...)
			return append(buf, out...), nil
		case symbolData:
			out := []byte{rex(true, dext, false, false), 0x8D, modrm(0, df, 5)}
			out = append(out, 0, 0, 0, 0)
			reloc := emit.Relocation{Offset: int64(len(buf)) + int64(len(out)) - 4, Kind: emit.RelocPCRel32, Symbol: d.Symbol}
			return append(buf, out...), []emit.Relocation{reloc}
		}
		return buf, nil

	case opMovExtend:
		d := instr.Data.(ExtendInfo)
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		sf, sext := regField(src)
		if !d.Signed || d.FromBits == 64 {
			if d.FromBits >= 32 {
				// Upper bits already well-defined; a plain copy is enough.
				return append(buf, regRegOp(0x89, src, dest, true)...), nil
			}
			op2 := byte(0xB6)
			if d.FromBits == 16 {
				op2 = 0xB7
			}
			return append(buf, rex(true, dext, false, sext), 0x0F, op2, modrm(3, df, sf)), nil
		}
		if d.FromBits == 32 {
			return append(buf, rex(true, dext, false, sext), 0x63, modrm(3, df, sf)), nil
		}
		op2 := byte(0xBE)
		if d.FromBits == 16 {
			op2 = 0xBF
		}
		return append(buf, rex(true, dext, false, sext), 0x0F, op2, modrm(3, df, sf)), nil

	case opCall:
		d := instr.Data.(CallData)
		if d.Indirect {
			callee := instr.Operands[len(instr.Operands)-1].Reg.RealReg()
			_, ext := regField(callee)
			out := []byte{rex(false, false, false, ext), 0xFF, modrm(3, 2, byte(callee))}
			return append(buf, out...), nil
		}
		out := append([]byte{0xE8}, u32le(0)...)
		reloc := emit.Relocation{Offset: int64(len(buf)) + 1, Kind: emit.RelocCall26, Symbol: d.Symbol}
		return append(buf, out...), []emit.Relocation{reloc}

	case opRet:
		return append(buf, 0xC3), nil

	case opFpuRRR:
		d := instr.Data.(FpuData)
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		sf, sext := regField(src)
		return append(buf, 0xF2, rex(false, dext, false, sext), 0x0F, fpuOpcode(d.Op), modrm(3, df, sf)), nil

	case opFpuNeg:
		dest, mask := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		mf, mext := regField(mask)
		return append(buf, 0x66, rex(false, dext, false, mext), 0x0F, 0x57, modrm(3, df, mf)), nil

	case opFpuAbs:
		dest, mask := operandReg(instr, 0), operandReg(instr, 1)
		df, dext := regField(dest)
		mf, mext := regField(mask)
		return append(buf, 0x66, rex(false, dext, false, mext), 0x0F, 0x54, modrm(3, df, mf)), nil

	case opUcomisd:
		a, b := operandReg(instr, 0), operandReg(instr, 1)
		af, aext := regField(a)
		bf, bext := regField(b)
		return append(buf, 0x66, rex(false, aext, false, bext), 0x0F, 0x2E, modrm(3, af, bf)), nil

	case opMovq:
		dest, src := operandReg(instr, 0), operandReg(instr, 1)
		if instr.Operands[0].Reg.Class() == backend.RegClassFloat {
			df, dext := regField(dest)
			sf, sext := regField(src)
			return append(buf, 0x66, rex(true, dext, false, sext), 0x0F, 0x6E, modrm(3, df, sf)), nil
		}
		df, dext := regField(dest)
		sf, sext := regField(src)
		return append(buf, 0x66, rex(true, sext, false, dext), 0x0F, 0x7E, modrm(3, sf, df)), nil

	case opMFence:
		return append(buf, 0x0F, 0xAE, 0xF0), nil

	case opUD2:
		return append(buf, 0x0F, 0x0B), nil
	}
	panic("amd64: Encode: unhandled opcode")
}

func (e *Encoder) encodeLoadStore(buf []byte, instr *backend.VInstr, isLoad bool) ([]byte, []emit.Relocation) {
	var float bool
	var size uint8
	var off int32
	var base backend.RealReg
	var valIdx int
	switch d := instr.Data.(type) {
	case LoadStoreInfo:
		// Operand 0 is the value (dest for a load, source for a store) and
		// operand 1 is the base register in both lowerLoad and lowerStore,
		// so the value/base indices don't actually depend on isLoad.
		float, size, off = d.Float, d.Size, d.Offset
		base, valIdx = operandReg(instr, 1), 0
	case stackSlotData:
		float, size = d.Float, d.Size
		off = e.vc.StackSlots[d.Slot] + d.Offset
		base, valIdx = rbp, 0
	case spillSlotData:
		float, size = d.Float, d.Size
		off = e.vc.SpillSlots[d.VReg]
		base, valIdx = rbp, 0
	}
	val := operandReg(instr, valIdx)
	vf, vext := regField(val)
	_, bext := regField(base)

	if float {
		op2 := byte(0x10)
		if !isLoad {
			op2 = 0x11
		}
		out := []byte{0xF2, rex(false, vext, false, bext), 0x0F, op2, modrm(2, vf, byte(base)&7)}
		out = append(out, u32le(uint32(off))...)
		return append(buf, out...), nil
	}

	opcode := byte(0x8B)
	if !isLoad {
		opcode = 0x89
	}
	w := size == 8
	out := []byte{rex(w, vext, false, bext), opcode, modrm(2, vf, byte(base)&7)}
	out = append(out, u32le(uint32(off))...)
	return append(buf, out...), nil
}

func aluOpcodeReg(op AluOp) byte {
	switch op {
	case AluAdd:
		return 0x01
	case AluOr:
		return 0x09
	case AluAnd:
		return 0x21
	case AluSub:
		return 0x29
	default:
		return 0x31
	}
}

func aluOpcodeExt(op AluOp) byte {
	switch op {
	case AluAdd:
		return 0
	case AluOr:
		return 1
	case AluAnd:
		return 4
	case AluSub:
		return 5
	default:
		return 6
	}
}

func shiftExt(k ShiftKind) byte {
	switch k {
	case ShiftLeft:
		return 4
	case ShiftRightLogical:
		return 5
	default:
		return 7
	}
}

func fpuOpcode(op FpuOp) byte {
	switch op {
	case FpuAdd:
		return 0x58
	case FpuSub:
		return 0x5C
	case FpuMul:
		return 0x59
	default:
		return 0x5E
	}
}
