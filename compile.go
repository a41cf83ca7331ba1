// Package xc is the top-level entry point: it strings together
// verification, mid-level optimization, instruction selection, register
// allocation, frame layout, and binary emission into a single Compile
// call, selecting the isa/* package that implements
// TargetDescription.Arch.
package xc

import (
	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
	"github.com/corewind/xc/backend/frame"
	"github.com/corewind/xc/backend/isa/amd64"
	"github.com/corewind/xc/backend/isa/arm64"
	"github.com/corewind/xc/backend/isa/riscv64"
	"github.com/corewind/xc/backend/regalloc"
	"github.com/corewind/xc/internal/xerrors"
	"github.com/corewind/xc/ir"
	"github.com/corewind/xc/transform"
	"github.com/corewind/xc/verify"
)

// target bundles the four isa/*-supplied pieces Compile needs for one
// architecture, so the Arch switch in Compile has exactly one place
// that knows about isa/* package names.
type target struct {
	machine func() backend.Machine
	abi     frame.ABI
	regs    regalloc.Config
	encoder func(*backend.VCode) emit.Encoder
}

func targetFor(td TargetDescription) (*target, error) {
	switch td.Arch {
	case ArchARM64:
		return &target{
			machine: func() backend.Machine { return arm64.NewMachine() },
			abi:     arm64.ABI{},
			regs:    arm64.RegallocConfig(),
			encoder: func(vc *backend.VCode) emit.Encoder { return arm64.NewEncoder(vc) },
		}, nil
	case ArchAMD64:
		return &target{
			machine: func() backend.Machine { return amd64.NewMachine() },
			abi:     amd64.ABI{},
			regs:    amd64.RegallocConfig(),
			encoder: func(vc *backend.VCode) emit.Encoder { return amd64.NewEncoder(vc) },
		}, nil
	case ArchRISCV64:
		return &target{
			machine: func() backend.Machine { return riscv64.NewMachine() },
			abi:     riscv64.ABI{},
			regs:    riscv64.RegallocConfig(),
			encoder: func(vc *backend.VCode) emit.Encoder { return riscv64.NewEncoder(vc) },
		}, nil
	default:
		return nil, xerrors.New(xerrors.CategoryLegalization, "", "unsupported architecture %v", td.Arch)
	}
}

// Compile lowers f to relocatable machine code for td: bytes,
// relocations, and frame info. f is mutated in place by the
// optimization pipeline; callers that need the pre-optimization
// Function should compile a copy.
func Compile(f *ir.Function, td TargetDescription, opts Options) (*Artifact, error) {
	t, err := targetFor(td)
	if err != nil {
		return nil, err
	}

	if opts.Verify != VerifySkip {
		if err := verify.Run(f); err != nil {
			return nil, err
		}
	}

	if err := transform.NewPipeline(opts.OptLevel).Run(f); err != nil {
		return nil, err
	}

	if opts.Verify != VerifySkip {
		// Legalize-then-verify: the optimized Function must still satisfy
		// every invariant the pre-optimization Function did.
		if err := verify.Run(f); err != nil {
			return nil, err
		}
	}

	mach := t.machine()
	compiler := backend.NewCompiler(f, mach)
	if err := compiler.Compile(); err != nil {
		return nil, err
	}
	vc := mach.VCode()

	regFn := regalloc.NewFunction(vc, f, t.abi)
	alloc := regalloc.NewAllocator(t.regs)
	allocResult, err := alloc.Run(regFn)
	if err != nil {
		return nil, err
	}

	// No isa/* Machine in this module emits stack-passed call arguments
	// (lowerCall drops arguments past the argument-register count rather
	// than spilling them to an outgoing-argument area -- see DESIGN.md),
	// so the outgoing-argument area is always empty.
	const outgoingArgBytes = 0
	layout := frame.Compute(f, t.abi, vc.Clobbered, allocResult.SpillSlots, outgoingArgBytes)
	for slot, off := range layout.StackSlotOffsets {
		vc.StackSlots[slot] = off
	}
	for id, off := range layout.SpillOffsets {
		vc.SpillSlots[id] = off
	}
	vc.FrameSize = layout.TotalSize
	frame.EmitPrologueEpilogue(vc, t.abi, layout, vc.Clobbered)

	result := emit.Emit(vc, t.encoder(vc))

	clobbered := make([]uint16, len(vc.Clobbered))
	for i, r := range vc.Clobbered {
		clobbered[i] = uint16(r)
	}

	return &Artifact{
		Bytes:       result.Bytes,
		Relocations: result.Relocations,
		FrameInfo: FrameInfo{
			TotalSize: layout.TotalSize,
			Clobbered: clobbered,
		},
	}, nil
}
