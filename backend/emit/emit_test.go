package emit_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/emit"
)

// fixedSizeEncoder emits every instruction as a 4-byte little-endian
// word equal to instr.Opcode, except a branch-shaped instruction (Data
// set to an *instrData with branchesTo set) whose 4-byte word is the
// PC-relative displacement to its target label instead.
type fixedSizeEncoder struct{}

type instrData struct {
	label      *emit.Label // set when this VInstr begins a block.
	branchesTo *emit.Label // set when this VInstr is a branch.
}

func (fixedSizeEncoder) Size(instr *backend.VInstr, resolve func(emit.Label) int64) int {
	return 4
}

func (fixedSizeEncoder) Encode(buf []byte, instr *backend.VInstr, pc int64, resolve func(emit.Label) int64) ([]byte, []emit.Relocation) {
	word := make([]byte, 4)
	if d, ok := instr.Data.(*instrData); ok && d.branchesTo != nil {
		disp := int32(resolve(*d.branchesTo) - pc)
		binary.LittleEndian.PutUint32(word, uint32(disp))
	} else {
		binary.LittleEndian.PutUint32(word, uint32(instr.Opcode))
	}
	return append(buf, word...), nil
}

func (fixedSizeEncoder) LabelOf(instr *backend.VInstr) (emit.Label, bool) {
	if d, ok := instr.Data.(*instrData); ok && d.label != nil {
		return *d.label, true
	}
	return 0, false
}

func (fixedSizeEncoder) BranchTarget(instr *backend.VInstr) (emit.Label, bool) {
	if d, ok := instr.Data.(*instrData); ok && d.branchesTo != nil {
		return *d.branchesTo, true
	}
	return 0, false
}

func TestEmit_ComputesSequentialOffsetsAndPatchesBranch(t *testing.T) {
	label0 := emit.Label(0)
	vc := backend.NewVCode()
	vb := vc.AppendBlock(0)
	vb.Append(&backend.VInstr{Opcode: 1, Data: &instrData{label: &label0}})
	vb.Append(&backend.VInstr{Opcode: 2})
	vb.Append(&backend.VInstr{Data: &instrData{branchesTo: &label0}})

	res := emit.Emit(vc, fixedSizeEncoder{})
	require.Equal(t, int64(12), res.Size)
	require.Len(t, res.Bytes, 12)
	require.Empty(t, res.Relocations)

	// The branch at pc=8 targets label 0 (offset 0), so its displacement
	// word must encode -8.
	disp := int32(binary.LittleEndian.Uint32(res.Bytes[8:12]))
	require.Equal(t, int32(-8), disp)
}
