package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corewind/xc/backend"
	"github.com/corewind/xc/backend/frame"
	"github.com/corewind/xc/ir"
)

type fakeABI struct {
	calleeSavedInt []backend.RealReg
}

func (a *fakeABI) CalleeSaved(class backend.RegClass) []backend.RealReg {
	if class == backend.RegClassInt {
		return a.calleeSavedInt
	}
	return nil
}
func (a *fakeABI) FramePointer() backend.RealReg { return 29 }
func (a *fakeABI) LinkRegister() backend.RealReg { return 30 }
func (a *fakeABI) StackAlignment() int32         { return 16 }
func (a *fakeABI) SlotSize(backend.RegClass) int32 { return 8 }
func (a *fakeABI) EmitSaveRestore(vb *backend.VBlock, reg backend.RealReg, class backend.RegClass, off int32, isSave bool, prepend bool) {
}
func (a *fakeABI) EmitFrameSetup(vb *backend.VBlock, frameSize int32)    {}
func (a *fakeABI) EmitFrameTeardown(vb *backend.VBlock, frameSize int32, before *backend.VInstr) {}
func (a *fakeABI) EmitSpillLoad(vb *backend.VBlock, before *backend.VInstr, dst backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
}
func (a *fakeABI) EmitSpillStore(vb *backend.VBlock, after *backend.VInstr, src backend.RealReg, class backend.RegClass, spilled backend.VRegID) {
}
func (a *fakeABI) EmitMove(vb *backend.VBlock, before *backend.VInstr, dst, src backend.RealReg, class backend.RegClass) {
}

func TestCompute_AlignsToSixteenBytes(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{CallConv: ir.CallConvSystemV})
	abi := &fakeABI{calleeSavedInt: []backend.RealReg{19, 20}}
	clobbered := []backend.RealReg{19}
	spills := map[backend.VRegID]int{0: 0, 1: 1, 2: 2}

	layout := frame.Compute(f, abi, clobbered, spills, 0)
	require.Equal(t, int32(8), layout.SavedRegsBytes)
	require.Equal(t, int32(24), layout.SpillBytes)
	require.Zero(t, layout.TotalSize%16)
}

func TestCompute_PlacesExplicitSlotsAfterSavedRegs(t *testing.T) {
	f := ir.NewFunction("f", ir.Signature{CallConv: ir.CallConvSystemV})
	slot := f.CreateStackSlot(4, 4, ir.StackSlotExplicit)
	abi := &fakeABI{calleeSavedInt: []backend.RealReg{19}}
	layout := frame.Compute(f, abi, []backend.RealReg{19}, nil, 0)
	require.Equal(t, int32(8), layout.StackSlotOffsets[slot])
}
