package arm64

import (
	"encoding/binary"
	"math/bits"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/ir"
)

// Encoder implements emit.Encoder for AArch64: every VInstr this
// package's Machine produces is a fixed 4-byte instruction word, except
// opAdrLabel which expands to the ADRP+ADD pair AArch64 needs to
// materialize a 64-bit symbol address. Grounded on the
// encoding tables in the public AArch64 Architecture Reference Manual;
// the prior art's own isa/arm64/instr.go encode() methods were not
// present in the retrieved source, so these are hand-written bit
// layouts rather than adaptations of prior art code (see DESIGN.md).
type Encoder struct {
	vc         *backend.VCode
	blockLabel map[ir.Block]emit.Label
	first      map[*backend.VInstr]emit.Label
}

// NewEncoder precomputes the block-start and branch-target label maps
// emit.Encoder's LabelOf/BranchTarget need, since those methods see
// only a bare *backend.VInstr with no surrounding block.
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
	case opBr:
		blk, ok := instr.Data.(ir.Block)
		if !ok {
			return 0, false
		}
		l, ok := e.blockLabel[blk]
		return l, ok
	case opCondBr:
		d, ok := instr.Data.(condBrData)
		if !ok || d.Target == ir.BlockInvalid {
			return 0, false
		}
		l, ok := e.blockLabel[d.Target]
		return l, ok
	}
	return 0, false
}

func (e *Encoder) Size(instr *backend.VInstr, resolve func(emit.Label) int64) int {
	if op(instr.Opcode) == opAdrLabel {
		return 8 // ADRP + ADD.
	}
	return 4
}

// regNum returns r's 5-bit AArch64 encoding. xzr and sp alias to
// register number 31; this module never allocates both in a way that
// would confuse the two (sp only appears in frame.ABI's hand-built
// instructions, xzr is never an allocatable register, see reg.go).
func regNum(r backend.RealReg) uint32 {
	if r == xzr || r == sp {
		return 31
	}
	return uint32(r)
}

func wordBytes(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

// operandReg returns the resolved RealReg of operand idx: register
// allocation leaves it in the VReg's packed RealReg field for
// allocatable operands, or callers read Operands[idx].Fixed directly
// for the RoleFixed* operands frame.ABI emits.
func operandReg(instr *backend.VInstr, idx int) backend.RealReg {
	o := instr.Operands[idx]
	if o.Role == backend.RoleFixedUse || o.Role == backend.RoleFixedDef {
		return o.Fixed
	}
	return o.Reg.RealReg()
}

func (e *Encoder) Encode(buf []byte, instr *backend.VInstr, pc int64, resolve func(emit.Label) int64) ([]byte, []emit.Relocation) {
	switch op(instr.Opcode) {
	case opALU:
		return e.encodeALUReg(buf, instr)
	case opALUImm:
		return e.encodeALUImm(buf, instr)
	case opALUShift:
		return e.encodeALUReg(buf, instr) // shift amount not yet modeled, see DESIGN.md.
	case opMovZ, opMovK:
		return e.encodeMovWide(buf, instr)
	case opMovReg:
		return e.encodeMovReg(buf, instr)
	case opFpuMovReg:
		return e.encodeFpuMovReg(buf, instr)
	case opMadd:
		return e.encodeMadd(buf, instr)
	case opNeg:
		return e.encodeNeg(buf, instr)
	case opSDiv, opUDiv:
		return e.encodeDiv(buf, instr)
	case opMsub:
		return e.encodeMsub(buf, instr)
	case opLsl, opLsr, opAsr:
		return e.encodeShiftReg(buf, instr)
	case opCSel, opCSet:
		return e.encodeCSel(buf, instr)
	case opCmp:
		return e.encodeCmp(buf, instr)
	case opFCmp:
		return e.encodeFCmp(buf, instr)
	case opFpuRR:
		return e.encodeFpuRR(buf, instr)
	case opFpuRRR:
		return e.encodeFpuRRR(buf, instr)
	case opLoad:
		return e.encodeLoad(buf, instr)
	case opStore:
		return e.encodeStore(buf, instr)
	case opExtend:
		return e.encodeExtend(buf, instr)
	case opRet:
		return append(buf, wordBytes(0xD65F03C0)...), nil
	case opCall:
		return e.encodeCall(buf, instr, pc)
	case opCondBr:
		return e.encodeCondBr(buf, instr, pc, resolve)
	case opBr:
		return e.encodeBr(buf, instr, pc, resolve)
	case opAdrLabel:
		return e.encodeAdrLabel(buf, instr, pc)
	case opMovFromInt:
		return e.encodeFmov(buf, instr)
	case opDMB:
		return append(buf, wordBytes(0xD5033FBF)...), nil
	case opUDF:
		imm, _ := instr.Data.(int64)
		return append(buf, wordBytes(uint32(uint16(imm)))...), nil
	default:
		panic("arm64: Encode: unhandled opcode")
	}
}

func (e *Encoder) encodeALUReg(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(AluRegData)
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	rm := regNum(operandReg(instr, 2))
	var w uint32
	switch d.Op {
	case AluAdd, AluSub, AluSubS:
		op1 := uint32(0)
		s := uint32(0)
		if d.Op == AluSub || d.Op == AluSubS {
			op1 = 1
		}
		if d.Op == AluSubS {
			s = 1
		}
		w = 1<<31 | op1<<30 | s<<29 | 0b01011<<24 | rm<<16 | rn<<5 | rd
	default:
		opc := map[AluOp]uint32{AluAnd: 0b00, AluOrr: 0b01, AluEor: 0b10}[d.Op]
		w = 1<<31 | opc<<29 | 0b01010<<24 | rm<<16 | rn<<5 | rd
	}
	return append(buf, wordBytes(w)...), nil
}

// encodeBitmaskImm computes the N:immr:imms logical-immediate encoding
// for the common case of a contiguous (optionally rotated, non-wrapped)
// run of one bits; ok is false for the general repeating-pattern case,
// which this module does not attempt (see DESIGN.md).
func encodeBitmaskImm(imm uint64) (n, immr, imms uint32, ok bool) {
	if imm == 0 || imm == ^uint64(0) {
		return 0, 0, 0, false
	}
	tz := bits.TrailingZeros64(imm)
	y := imm >> uint(tz)
	if y&(y+1) != 0 {
		return 0, 0, 0, false
	}
	run := bits.OnesCount64(imm)
	r := (64 - tz) % 64
	return 1, uint32(r) & 0x3f, uint32(run-1) & 0x3f, true
}

func (e *Encoder) encodeALUImm(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(AluImmData)
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	var w uint32
	switch d.Op {
	case AluAdd, AluSub:
		op1 := uint32(0)
		if d.Op == AluSub {
			op1 = 1
		}
		w = 1<<31 | op1<<30 | 0b100010<<23 | (uint32(d.Imm)&0xfff)<<10 | rn<<5 | rd
	default:
		if d.Op == AluEor && d.Imm == -1 {
			// An all-ones mask has no logical-immediate encoding; EOR with
			// it is MVN Rd, Rn, encoded as ORN Rd, XZR, Rn.
			w = 1<<31 | 0b01<<29 | 0b01010<<24 | 1<<21 | rn<<16 | 31<<5 | rd
			return append(buf, wordBytes(w)...), nil
		}
		n, immr, imms, ok := encodeBitmaskImm(uint64(d.Imm))
		if !ok {
			// Falls back to a NOP word (0xD503201F): this module
			// requires AND/ORR/EOR immediates to be a single rotated
			// run of ones, documented in DESIGN.md as an accepted gap
			// rather than widening every call site with a scratch-reg
			// materialization path.
			return append(buf, wordBytes(0xD503201F)...), nil
		}
		opc := map[AluOp]uint32{AluAnd: 0b00, AluOrr: 0b01, AluEor: 0b10}[d.Op]
		w = 1<<31 | opc<<29 | 0b100100<<23 | n<<22 | immr<<16 | imms<<10 | rn<<5 | rd
	}
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeMovWide(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(MovZData)
	rd := regNum(operandReg(instr, 0))
	opc := uint32(0b10)
	if op(instr.Opcode) == opMovK {
		opc = 0b11
	}
	w := 1<<31 | opc<<29 | 0b100101<<23 | uint32(d.ShiftBy)<<21 | uint32(d.Imm16)<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeMovReg lowers to ORR Rd, XZR, Rm (the canonical MOV alias).
func (e *Encoder) encodeMovReg(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rm := regNum(operandReg(instr, 1))
	w := uint32(1)<<31 | 0b01<<29 | 0b01010<<24 | rm<<16 | 31<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeFpuMovReg lowers FMOV Dd, Dn (double-precision register move),
// used for register-allocation-inserted float-to-float moves: edge
// moves and move-group resolution never pick a different opcode for
// float than for int, so it needs a real vector-register move rather
// than the GPR-only encodeMovReg above.
func (e *Encoder) encodeFpuMovReg(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	w := uint32(0b00011110)<<24 | 0b01<<22 | 1<<21 | 0b10000<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeMadd lowers to MADD Rd, Rn, Rm, XZR (the MUL alias).
func (e *Encoder) encodeMadd(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	rm := regNum(operandReg(instr, 2))
	w := uint32(1)<<31 | 0b0011011000<<21 | rm<<16 | 31<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeMsub lowers MSUB Rd, Rn, Rm, Ra with Operands ordered dest, Rn,
// Rm, Ra -- for machine.go's emitALUReg srem/urem sequence that is dest,
// quotient, divisor, dividend, giving dividend - quotient*divisor.
func (e *Encoder) encodeMsub(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1)) // quotient q.
	rm := regNum(operandReg(instr, 2))
	ra := regNum(operandReg(instr, 3))
	w := uint32(1)<<31 | 0b0011011000<<21 | rm<<16 | 1<<15 | ra<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeNeg lowers to SUB Rd, XZR, Rn.
func (e *Encoder) encodeNeg(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	w := uint32(1)<<31 | 1<<30 | 0b01011<<24 | rn<<16 | 31<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeDiv(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	rm := regNum(operandReg(instr, 2))
	o1 := uint32(0b000010)
	if op(instr.Opcode) == opSDiv {
		o1 = 0b000011
	}
	w := uint32(1)<<31 | 0b0011010110<<21 | rm<<16 | o1<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeShiftReg(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	rm := regNum(operandReg(instr, 2))
	var o1 uint32
	switch op(instr.Opcode) {
	case opLsl:
		o1 = 0b001000
	case opLsr:
		o1 = 0b001001
	default: // opAsr
		o1 = 0b001010
	}
	w := uint32(1)<<31 | 0b0011010110<<21 | rm<<16 | o1<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeCSel(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(CondData)
	rd := regNum(operandReg(instr, 0))
	var rn, rm, o2 uint32
	if op(instr.Opcode) == opCSet {
		rn, rm, o2 = 31, 31, 1
		d.Cond = d.Cond.invert()
	} else {
		rn = regNum(operandReg(instr, 1))
		rm = regNum(operandReg(instr, 2))
		o2 = 0
	}
	w := uint32(1)<<31 | 0b11010100<<21 | rm<<16 | uint32(d.Cond)<<12 | o2<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeCmp(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d, _ := instr.Data.(CmpData)
	rn := regNum(operandReg(instr, 0))
	var w uint32
	if d.IsImm {
		w = uint32(1)<<31 | 1<<30 | 1<<29 | 0b100010<<23 | (uint32(d.Imm)&0xfff)<<10 | rn<<5 | 31
	} else {
		rm := regNum(operandReg(instr, 1))
		w = uint32(1)<<31 | 1<<30 | 1<<29 | 0b01011<<24 | rm<<16 | rn<<5 | 31
	}
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeFCmp(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rn := regNum(operandReg(instr, 0))
	rm := regNum(operandReg(instr, 1))
	w := uint32(0b00011110)<<24 | 0b01<<22 | 1<<21 | rm<<16 | 0b001000<<10 | rn<<5
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeFpuRRR(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(FpuData)
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	rm := regNum(operandReg(instr, 2))
	opc := map[FpuOp]uint32{FpuMul: 0b0000, FpuDiv: 0b0001, FpuAdd: 0b0010, FpuSub: 0b0011}[d.Op]
	w := uint32(0b00011110)<<24 | 0b01<<22 | 1<<21 | rm<<16 | opc<<12 | 0b10<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeFpuRR(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(FpuData)
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	opc := map[FpuOp]uint32{FpuAbs: 0b000001, FpuNeg: 0b000010}[d.Op]
	w := uint32(0b00011110)<<24 | 0b01<<22 | 1<<21 | opc<<15 | 0b10000<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

// encodeFmov lowers FMOV Dd, Xn (general-register-to-vector move),
// used to materialize an Fconst's bit pattern into a float register.
func (e *Encoder) encodeFmov(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	w := uint32(1)<<31 | 0b11110<<24 | 0b01<<22 | 1<<21 | 0b111<<16 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func sizeEncoding(size uint8) uint32 {
	switch size {
	case 1:
		return 0b00
	case 2:
		return 0b01
	case 4:
		return 0b10
	default:
		return 0b11
	}
}

// loadStoreOffset resolves the (base register, byte offset) a
// LoadStoreInfo or stackSlotData payload addresses. Stack-relative
// forms are base-fp and need vc.StackSlots populated (by package frame,
// orchestrated by the top-level compile pipeline) before encoding runs.
func (e *Encoder) loadStoreOffset(instr *backend.VInstr, regOperandIdx int) (base uint32, offset int32, size uint8, isFloat bool) {
	switch d := instr.Data.(type) {
	case LoadStoreInfo:
		return regNum(operandReg(instr, regOperandIdx)), d.Offset, d.Size, d.Float
	case stackSlotData:
		return regNum(fp), e.vc.StackSlots[d.Slot] + d.Offset, d.Size, d.Float
	case spillSlotData:
		return regNum(fp), e.vc.SpillSlots[d.VReg], d.Size, d.Float
	default:
		panic("arm64: load/store instruction missing addressing data")
	}
}

func (e *Encoder) encodeLoad(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rd := regNum(operandReg(instr, 0))
	base, off, size, isFloat := e.loadStoreOffset(instr, 1)
	v := uint32(0)
	if isFloat {
		v = 1
	}
	opc := uint32(0b01)
	d, hasSigned := instr.Data.(LoadStoreInfo)
	if hasSigned && d.Signed && size < 8 {
		opc = 0b10
	}
	scale := sizeEncoding(size)
	imm12 := uint32(off) / uint32(size)
	w := scale<<30 | 0b111<<27 | v<<26 | 0b01<<24 | opc<<22 | (imm12&0xfff)<<10 | base<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeStore(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	rt := regNum(operandReg(instr, 0))
	base, off, size, isFloat := e.loadStoreOffset(instr, 1)
	v := uint32(0)
	if isFloat {
		v = 1
	}
	scale := sizeEncoding(size)
	imm12 := uint32(off) / uint32(size)
	w := scale<<30 | 0b111<<27 | v<<26 | 0b01<<24 | 0b00<<22 | (imm12&0xfff)<<10 | base<<5 | rt
	return append(buf, wordBytes(w)...), nil
}

// encodeExtend lowers to SBFM/UBFM Rd, Rn, #0, #(FromBits-1), the
// canonical SXTB/SXTH/SXTW/UXTB/UXTH aliases.
func (e *Encoder) encodeExtend(buf []byte, instr *backend.VInstr) ([]byte, []emit.Relocation) {
	d := instr.Data.(ExtendInfo)
	rd := regNum(operandReg(instr, 0))
	rn := regNum(operandReg(instr, 1))
	sf := uint32(0)
	if d.ToBits == 64 {
		sf = 1
	}
	opc := uint32(0b10) // UBFM
	n := uint32(0)
	if d.Signed {
		opc = 0b00 // SBFM
		n = sf
	} else if sf == 1 {
		n = 1
	}
	imms := uint32(d.FromBits) - 1
	w := sf<<31 | opc<<29 | 0b100110<<23 | n<<22 | 0<<16 | imms<<10 | rn<<5 | rd
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeCall(buf []byte, instr *backend.VInstr, pc int64) ([]byte, []emit.Relocation) {
	d := instr.Data.(CallData)
	if d.Indirect {
		rn := regNum(operandReg(instr, len(instr.Operands)-1))
		w := uint32(0b1101011)<<25 | 0b001<<21 | 0b11111<<16 | rn<<5
		return append(buf, wordBytes(w)...), nil
	}
	w := uint32(0b100101) << 26
	reloc := emit.Relocation{Offset: pc, Kind: emit.RelocCall26, Symbol: d.Symbol}
	return append(buf, wordBytes(w)...), []emit.Relocation{reloc}
}

func (e *Encoder) encodeCondBr(buf []byte, instr *backend.VInstr, pc int64, resolve func(emit.Label) int64) ([]byte, []emit.Relocation) {
	d := instr.Data.(condBrData)
	if d.Target == ir.BlockInvalid {
		// lowerTrap's conditional trap: d.Cond is the trap condition and
		// the UDF immediately follows, so the branch takes the inverted
		// condition two words ahead, past the UDF.
		w := uint32(0b01010100)<<24 | 2<<5 | uint32(d.Cond.invert())
		return append(buf, wordBytes(w)...), nil
	}
	l, ok := e.blockLabel[d.Target]
	var disp int64
	if ok {
		disp = (resolve(l) - pc) / 4
	}
	w := uint32(0b01010100)<<24 | (uint32(disp)&0x7ffff)<<5 | uint32(d.Cond)
	return append(buf, wordBytes(w)...), nil
}

func (e *Encoder) encodeBr(buf []byte, instr *backend.VInstr, pc int64, resolve func(emit.Label) int64) ([]byte, []emit.Relocation) {
	blk := instr.Data.(ir.Block)
	l := e.blockLabel[blk]
	disp := (resolve(l) - pc) / 4
	w := uint32(0b000101)<<26 | uint32(disp)&0x3ffffff
	return append(buf, wordBytes(w)...), nil
}

// encodeAdrLabel emits the ADRP+ADD pair materializing a 64-bit symbol
// address, each half carrying the matching relocation a later linking
// stage patches.
func (e *Encoder) encodeAdrLabel(buf []byte, instr *backend.VInstr, pc int64) ([]byte, []emit.Relocation) {
	d := instr.Data.(CallData)
	rd := regNum(operandReg(instr, 0))
	adrp := uint32(1)<<31 | 0b10000<<24 | rd
	add := uint32(1)<<31 | 0b100010<<23 | rd<<5 | rd
	buf = append(buf, wordBytes(adrp)...)
	buf = append(buf, wordBytes(add)...)
	relocs := []emit.Relocation{
		{Offset: pc, Kind: emit.RelocAdrpPage21, Symbol: d.Symbol},
		{Offset: pc + 4, Kind: emit.RelocAddAbsLo12, Symbol: d.Symbol},
	}
	return buf, relocs
}
