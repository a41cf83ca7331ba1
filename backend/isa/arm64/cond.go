package arm64

import "github.com/corewind/xc/ir"

// cond is an AArch64 condition code, used by conditional branches, CSEL,
// and CSET. Grounded on the prior art's isa/arm64/cond.go, unchanged.
type cond uint8

const (
	eq cond = iota
	ne
	hs
	lo
	mi
	pl
	vs
	vc
	hi
	ls
	ge
	lt
	gt
	le
	al
	nv
)

func (c cond) invert() cond {
	switch c {
	case eq:
		return ne
	case ne:
		return eq
	case hs:
		return lo
	case lo:
		return hs
	case mi:
		return pl
	case pl:
		return mi
	case vs:
		return vc
	case vc:
		return vs
	case hi:
		return ls
	case ls:
		return hi
	case ge:
		return lt
	case lt:
		return ge
	case gt:
		return le
	case le:
		return gt
	case al:
		return nv
	case nv:
		return al
	default:
		panic(c)
	}
}

// intCondFromIR maps the IR's unsigned/signed integer comparison
// conditions onto AArch64 condition codes.
func intCondFromIR(c ir.IntCmpCond) cond {
	switch c {
	case ir.IntEq:
		return eq
	case ir.IntNe:
		return ne
	case ir.IntUlt:
		return lo
	case ir.IntUle:
		return ls
	case ir.IntUgt:
		return hi
	case ir.IntUge:
		return hs
	case ir.IntSlt:
		return lt
	case ir.IntSle:
		return le
	case ir.IntSgt:
		return gt
	case ir.IntSge:
		return ge
	default:
		panic("unknown integer comparison condition")
	}
}

// floatCondFromIR maps the IR's floating-point comparison conditions
// onto AArch64 condition codes produced by FCMP (unordered results
// clear or set per IEEE 754 semantics, matching AArch64's FCMP flags).
func floatCondFromIR(c ir.FloatCmpCond) cond {
	switch c {
	case ir.FloatEq:
		return eq
	case ir.FloatNe:
		return ne
	case ir.FloatLt:
		return mi
	case ir.FloatLe:
		return ls
	case ir.FloatGt:
		return gt
	case ir.FloatGe:
		return ge
	default:
		panic("unknown float comparison condition")
	}
}
