// Package emit turns a register-allocated, frame-finalized VCode into a
// byte sequence and its relocation list, via a two-pass scheme: pass 1
// sizes every instruction and resolves intra-function labels to a fixed
// point (since a branch's chosen encoding can depend on the distance to
// its target, which itself depends on other instructions' chosen
// encodings), pass 2 encodes and records relocations for anything the
// linker must patch later.
package emit

import "github.com/corewind/xc/backend"

// RelocKind is the closed enumeration covering the AArch64, x86-64, and
// RISC-V forms the isa/* encoders need; it is never extended at
// runtime.
type RelocKind int

const (
	RelocAbs64 RelocKind = iota
	RelocPCRel32
	RelocAdrpPage21
	RelocAddAbsLo12
	RelocCall26
	RelocBranch19
)

func (k RelocKind) String() string {
	switch k {
	case RelocAbs64:
		return "Abs64"
	case RelocPCRel32:
		return "PCRel32"
	case RelocAdrpPage21:
		return "AdrpPage21"
	case RelocAddAbsLo12:
		return "AddAbsLo12"
	case RelocCall26:
		return "Call26"
	case RelocBranch19:
		return "Branch19"
	default:
		return "unknown"
	}
}

// Relocation instructs a later linking stage to patch the emitted bytes
// at Offset with a value derived from Symbol.
type Relocation struct {
	Offset int64
	Kind   RelocKind
	Symbol string
	Addend int64
}

// Label identifies an intra-function branch target, one per VBlock.
type Label int

// Encoder is implemented by each isa/* package: it knows how to size
// and encode one VInstr, and to decide (during pass 1's fixed-point
// iteration) whether a branch needs a wider encoding given the
// currently-known distance to its target.
type Encoder interface {
	// Size returns the number of bytes instr will encode to, given the
	// current resolveLabel function (labels not yet finalized on the
	// first iteration report their previous iteration's offset, or 0).
	Size(instr *backend.VInstr, resolveLabel func(Label) int64) int
	// Encode appends instr's bytes to buf and returns relocations for any
	// operand that could not be resolved to a concrete byte value yet
	// (external symbols, position-dependent data). pc is instr's own
	// start offset, used to compute PC-relative immediates that target
	// intra-function labels inline instead of via a Relocation.
	Encode(buf []byte, instr *backend.VInstr, pc int64, resolveLabel func(Label) int64) ([]byte, []Relocation)
	// LabelOf returns the Label a VInstr defines (the start of its
	// block), or false if it does not begin a block.
	LabelOf(instr *backend.VInstr) (Label, bool)
	// BranchTarget returns the Label a branch-shaped VInstr targets, or
	// false if instr is not a branch.
	BranchTarget(instr *backend.VInstr) (Label, bool)
}

// Result is the emitted form of one function.
type Result struct {
	Bytes       []byte
	Relocations []Relocation
	Size        int64
}

// Emit runs the two-pass scheme over vc's instructions in block order.
func Emit(vc *backend.VCode, enc Encoder) *Result {
	offsets := sizeToFixedPoint(vc, enc)

	resolve := func(l Label) int64 { return offsets[l] }
	var buf []byte
	var relocs []Relocation
	var pc int64
	for _, vb := range vc.Blocks {
		for _, instr := range vb.Instrs {
			before := len(buf)
			var rs []Relocation
			buf, rs = enc.Encode(buf, instr, pc, resolve)
			pc += int64(len(buf) - before)
			relocs = append(relocs, rs...)
		}
	}
	return &Result{Bytes: buf, Relocations: relocs, Size: pc}
}

// sizeToFixedPoint computes each label's byte offset, re-sizing every
// instruction each round until no label moves, since a branch-range
// variant can change an instruction's size once its target's offset
// is known.
func sizeToFixedPoint(vc *backend.VCode, enc Encoder) map[Label]int64 {
	offsets := map[Label]int64{}
	resolve := func(l Label) int64 { return offsets[l] }

	for iter := 0; iter < 16; iter++ {
		var pc int64
		next := map[Label]int64{}
		changed := false
		for _, vb := range vc.Blocks {
			for _, instr := range vb.Instrs {
				if l, ok := enc.LabelOf(instr); ok {
					next[l] = pc
				}
				pc += int64(enc.Size(instr, resolve))
			}
		}
		for l, off := range next {
			if offsets[l] != off {
				changed = true
			}
		}
		offsets = next
		if !changed && iter > 0 {
			break
		}
	}
	return offsets
}
