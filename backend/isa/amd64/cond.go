package amd64

import "github.com/corewind/xc/ir"

// cond is an x86-64 condition code, the 4-bit field Jcc/SETcc/CMOVcc
// share. Grounded on the public Intel SDM condition-code encoding.
type cond uint8

const (
	ccO cond = iota
	ccNO
	ccB
	ccAE
	ccE
	ccNE
	ccBE
	ccA
	ccS
	ccNS
	ccP
	ccNP
	ccL
	ccGE
	ccLE
	ccG
)

func intCondFromIR(c ir.IntCmpCond) cond {
	switch c {
	case ir.IntEq:
		return ccE
	case ir.IntNe:
		return ccNE
	case ir.IntUlt:
		return ccB
	case ir.IntUle:
		return ccBE
	case ir.IntUgt:
		return ccA
	case ir.IntUge:
		return ccAE
	case ir.IntSlt:
		return ccL
	case ir.IntSle:
		return ccLE
	case ir.IntSgt:
		return ccG
	case ir.IntSge:
		return ccGE
	default:
		panic("unknown integer comparison condition")
	}
}

// floatCondFromIR maps the IR's float comparisons onto the condition
// UCOMISD's flags produce. There is no additional parity check: an
// unordered result (a NaN operand) sets ZF, PF and CF together, so
// Eq/Lt/Le evaluate to true and Ne/Gt/Ge to false for it.
func floatCondFromIR(c ir.FloatCmpCond) cond {
	switch c {
	case ir.FloatEq:
		return ccE
	case ir.FloatNe:
		return ccNE
	case ir.FloatLt:
		return ccB
	case ir.FloatLe:
		return ccBE
	case ir.FloatGt:
		return ccA
	case ir.FloatGe:
		return ccAE
	default:
		panic("unknown float comparison condition")
	}
}
