package ir

import "strconv"

// CallConv identifies a calling convention. The core never interprets
// these beyond passing them to the target's ABI code; the set of valid
// values is defined by the target description the caller supplies.
type CallConv uint8

const (
	CallConvDefault CallConv = iota
	// CallConvSystemV is the standard AArch64/x86-64 SysV convention.
	CallConvSystemV
	// CallConvFastPreferInRegs requests the target pack as many
	// parameters into registers as its ABI permits, spilling the rest,
	// for internal functions that never cross a module boundary.
	CallConvFastPreferInRegs
)

// ParamPurpose classifies a Signature parameter beyond its Type: most
// parameters are plain values, but some carry ABI-significant meaning
// the lowering and frame-finalization stages must special-case.
type ParamPurpose uint8

const (
	PurposeNormal ParamPurpose = iota
	// PurposeVMContext marks an implicit context-pointer parameter
	// threaded through every call in embedding-style calling
	// conventions.
	PurposeVMContext
	// PurposeStructReturn marks a pointer to caller-allocated storage
	// for an oversized return value.
	PurposeStructReturn
)

// Param is one parameter or return value of a Signature.
type Param struct {
	Type    Type
	Purpose ParamPurpose
}

// Signature describes a callable's calling convention and value list.
// Signatures are immutable after creation: once interned
// via Function.DeclareSignature, the Params/Returns slices must not be
// mutated by the caller.
type Signature struct {
	id      SignatureID
	CallConv CallConv
	Params  []Param
	Returns []Param
}

// SignatureID identifies a Signature declared on a Function.
type SignatureID uint32

func (s SignatureID) String() string { return "sig" + strconv.Itoa(int(s)) }
