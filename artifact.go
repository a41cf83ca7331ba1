package xc

import "github.com/corewind/xc/backend/emit"

// FrameInfo is the caller-visible summary of the function's stack
// frame, useful to an object-file writer that needs to emit
// unwind/debug info alongside the machine code.
type FrameInfo struct {
	// TotalSize is the fully aligned byte size of the frame, including
	// saved registers, explicit stack slots, spill slots, and any
	// outgoing-argument area.
	TotalSize int32
	// Clobbered lists the callee-saved physical registers (in the
	// target's own RealReg numbering) the prologue/epilogue saves and
	// restores.
	Clobbered []uint16
}

// Artifact is the result of a successful Compile. The core never
// writes files; the caller receives the bytes and relocations and
// feeds them to an object-file writer.
type Artifact struct {
	Bytes       []byte
	Relocations []emit.Relocation
	FrameInfo   FrameInfo
}
