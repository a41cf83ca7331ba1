package ir

import (
	"fmt"
	"math"
)

// Value represents an SSA value carrying its own Type, grounded on the prior art's ssa.Value (vs.go): the low 32 bits are the ValueID, the high
// 32 bits are the Type. Packing the type alongside the id means every
// consumer of a Value already knows its type without a DFG lookup, which
// matters a lot in the selector DSL and lowering where type is
// consulted on nearly every pattern match.
type Value uint64

// ValueID is the identity-only portion of a Value.
type ValueID uint32

const valueIDInvalid ValueID = math.MaxUint32

// ValueInvalid is the zero value of interest: an invalid Value.
var ValueInvalid = Value(valueIDInvalid)

// ID returns the ValueID portion of v.
func (v Value) ID() ValueID { return ValueID(v) }

// Type returns the Type carried by v.
func (v Value) Type() Type { return Type(v >> 32) }

// Valid reports whether v refers to a real value.
func (v Value) Valid() bool { return v.ID() != valueIDInvalid }

func (v Value) String() string {
	if !v.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("v%d", v.ID())
}

func valueWithType(id ValueID, t Type) Value {
	return Value(id) | Value(t)<<32
}

// Inst identifies one instruction, owned by the DFG.
type Inst uint32

const InstInvalid Inst = math.MaxUint32

func (i Inst) Valid() bool { return i != InstInvalid }
func (i Inst) String() string {
	if !i.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("inst%d", uint32(i))
}

// Block identifies an extended basic block, owned jointly by the DFG
// (parameters) and the Layout (instruction order, block order).
type Block uint32

const BlockInvalid Block = math.MaxUint32

func (b Block) Valid() bool { return b != BlockInvalid }
func (b Block) String() string {
	if !b.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("block%d", uint32(b))
}

// StackSlot identifies a stack-allocated memory region, owned by the
// Function.
type StackSlot uint32

func (s StackSlot) String() string { return fmt.Sprintf("ss%d", uint32(s)) }

// FuncRef identifies an external or local callable, owned by the
// Function.
type FuncRef uint32

func (f FuncRef) String() string { return fmt.Sprintf("fn%d", uint32(f)) }

// GlobalValue identifies an external data address, owned by the
// Function.
type GlobalValue uint32

func (g GlobalValue) String() string { return fmt.Sprintf("gv%d", uint32(g)) }

// SourceOffset is an opaque, frontend-assigned position marker attached
// to instructions for diagnostics. It carries no semantics of its own;
// the frontend decides what "line 12" means for its source language.
type SourceOffset int64

// SourceOffsetUnknown (-1) means "no position available"; the zero
// value is an ordinary, valid offset.
const SourceOffsetUnknown SourceOffset = -1

func (s SourceOffset) Valid() bool { return s != SourceOffsetUnknown }
