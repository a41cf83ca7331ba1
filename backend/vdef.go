package backend

import "github.com/corewind/xc/ir"

// SSAValueDefinition records how one ir.Value came to exist, carried
// alongside its assigned VReg so lowering can decide, cheaply, whether
// to fold the defining instruction directly into the consumer (e.g. an
// Iconst operand folded into an immediate field) instead of emitting it
// standalone. Grounded on the prior art's SSAValueDefinition
// (backend/vdef.go).
type SSAValueDefinition struct {
	Value ir.Value
	VReg  VReg

	// Inst is the defining instruction, valid when the value is not a
	// block parameter.
	Inst      ir.Inst
	IsBlockParam bool
	ResultIdx int

	// RefCount is the number of uses of Value across the whole function,
	// used by the selector to decide whether folding the definition into
	// a single consumer is safe (RefCount == 1) or would duplicate work.
	RefCount int
}

func (d *SSAValueDefinition) IsFromInstr() bool { return !d.IsBlockParam }
