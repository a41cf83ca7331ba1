package ir

import "github.com/corewind/xc/internal/container"

// StackSlotKind classifies a StackSlot.
type StackSlotKind uint8

const (
	StackSlotExplicit StackSlotKind = iota
	StackSlotSpill
)

type stackSlotData struct {
	Size  uint32
	Align uint8
	Kind  StackSlotKind
}

// FuncRefData describes one callable a Function may reference.
type FuncRefData struct {
	Name      string
	Signature SignatureID
	// External is true for a callable defined outside this Function's
	// translation unit.
	External bool
}

// GlobalValueData describes one external data address a Function may
// reference.
type GlobalValueData struct {
	Name string
}

// Function is the unit of compilation and the unit of destruction
//: it owns every table referenced by the
// entities it hands out, and dropping a Function releases all of them
// at once. There are no pointer relationships that outlive a Function —
// every cross-reference is an index into one of these tables.
type Function struct {
	Name string

	dfg    DFG
	layout Layout

	signature  Signature
	signatures []*Signature // declared via DeclareSignature, referenced by OpcodeCall.

	stackSlots   container.Table[stackSlotData]
	funcRefs     container.Table[FuncRefData]
	globalValues container.Table[GlobalValueData]

	entry Block
}

// NewFunction creates an empty Function with the given signature. The
// entry block is not created automatically; the caller uses Builder to
// create it and must give it exactly sig.Params as its parameters.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		dfg:       newDFG(),
		layout:    newLayout(),
		signature: sig,
		entry:     BlockInvalid,
	}
}

// Signature returns the function's own calling-convention signature.
func (f *Function) Signature() *Signature { return &f.signature }

// DFG returns the function's data-flow graph.
func (f *Function) DFG() *DFG { return &f.dfg }

// Layout returns the function's instruction/block order.
func (f *Function) Layout() *Layout { return &f.layout }

// EntryBlock returns the function's entry block, or BlockInvalid if none
// has been created yet.
func (f *Function) EntryBlock() Block { return f.entry }

// setEntryBlock is called once by the Builder when the first block is
// appended to the layout.
func (f *Function) setEntryBlock(b Block) { f.entry = b }

// CreateStackSlot allocates a new StackSlot of the given size (bytes),
// alignment (bytes, must be a power of two), and kind.
func (f *Function) CreateStackSlot(size uint32, align uint8, kind StackSlotKind) StackSlot {
	ptr, idx := f.stackSlots.Allocate()
	*ptr = stackSlotData{Size: size, Align: align, Kind: kind}
	return StackSlot(idx)
}

// StackSlotInfo returns the size/alignment/kind of slot.
func (f *Function) StackSlotInfo(slot StackSlot) (size uint32, align uint8, kind StackSlotKind) {
	d := f.stackSlots.View(int(slot))
	return d.Size, d.Align, d.Kind
}

// NumStackSlots returns the number of stack slots created so far.
func (f *Function) NumStackSlots() int { return f.stackSlots.Len() }

// DeclareFuncRef registers a callable and returns its FuncRef handle.
func (f *Function) DeclareFuncRef(d FuncRefData) FuncRef {
	ptr, idx := f.funcRefs.Allocate()
	*ptr = d
	return FuncRef(idx)
}

// FuncRefInfo returns the data for ref.
func (f *Function) FuncRefInfo(ref FuncRef) FuncRefData { return *f.funcRefs.View(int(ref)) }

// DeclareGlobalValue registers an external data address and returns its
// GlobalValue handle.
func (f *Function) DeclareGlobalValue(d GlobalValueData) GlobalValue {
	ptr, idx := f.globalValues.Allocate()
	*ptr = d
	return GlobalValue(idx)
}

// GlobalValueInfo returns the data for gv.
func (f *Function) GlobalValueInfo(gv GlobalValue) GlobalValueData {
	return *f.globalValues.View(int(gv))
}

// DeclareSignature appends sig to the list referenced by OpcodeCall
// instructions and returns its id.
func (f *Function) DeclareSignature(sig *Signature) SignatureID {
	id := SignatureID(len(f.signatures))
	sig.id = id
	f.signatures = append(f.signatures, sig)
	return id
}

// ResolveSignature returns the Signature previously declared with id.
func (f *Function) ResolveSignature(id SignatureID) *Signature { return f.signatures[id] }
