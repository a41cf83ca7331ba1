package ir

import "github.com/corewind/xc/internal/container"

// instLink is the Layout's intrusive doubly-linked-list node for one
// Inst: the DFG owns instruction *data*, the Layout owns instruction
// *order*, and moving an instruction only ever touches this table.
type instLink struct {
	prev, next Inst
	block      Block
	// inBlock is false for an instruction that was removed from the
	// Layout and must be
	// skipped by every iterator.
	inBlock bool
}

// blockLink is the Layout's record of one Block's position in the
// function-wide block order and its head/tail instruction.
type blockLink struct {
	prev, next   Block
	head, tail   Inst
	numInsts     int
	inLayout     bool
}

// Layout independently maintains the emission order of Blocks and, per
// block, of Insts.
type Layout struct {
	insts  container.Table[instLink]
	blocks container.Table[blockLink]

	firstBlock, lastBlock Block
	numBlocks             int
}

func newLayout() Layout {
	return Layout{
		insts:      container.NewTable[instLink](),
		blocks:     container.NewTable[blockLink](),
		firstBlock: BlockInvalid,
		lastBlock:  BlockInvalid,
	}
}

// ensureInst grows the link table until it has an entry for i and
// returns that entry.
func (l *Layout) ensureInst(i Inst) *instLink {
	for int(i) >= l.insts.Len() {
		l.insts.Allocate()
	}
	return l.insts.View(int(i))
}

func (l *Layout) ensureBlock(b Block) *blockLink {
	for int(b) >= l.blocks.Len() {
		ptr, _ := l.blocks.Allocate()
		ptr.next, ptr.prev = BlockInvalid, BlockInvalid
		ptr.head, ptr.tail = InstInvalid, InstInvalid
	}
	return l.blocks.View(int(b))
}

// AppendBlock appends b to the end of the block order.
func (l *Layout) AppendBlock(b Block) {
	bl := l.ensureBlock(b)
	bl.inLayout = true
	bl.prev, bl.next = l.lastBlock, BlockInvalid
	if l.lastBlock.Valid() {
		l.blocks.View(int(l.lastBlock)).next = b
	} else {
		l.firstBlock = b
	}
	l.lastBlock = b
	l.numBlocks++
}

// RemoveBlock logically removes b from the layout; its Insts become
// orphans.
func (l *Layout) RemoveBlock(b Block) {
	bl := l.blocks.View(int(b))
	if !bl.inLayout {
		return
	}
	if bl.prev.Valid() {
		l.blocks.View(int(bl.prev)).next = bl.next
	} else {
		l.firstBlock = bl.next
	}
	if bl.next.Valid() {
		l.blocks.View(int(bl.next)).prev = bl.prev
	} else {
		l.lastBlock = bl.prev
	}
	bl.inLayout = false
	l.numBlocks--
}

// AppendInst appends inst to the tail of block's instruction list.
func (l *Layout) AppendInst(block Block, inst Inst) {
	bl := l.ensureBlock(block)
	il := l.ensureInst(inst)
	il.block = block
	il.inBlock = true
	il.prev, il.next = bl.tail, InstInvalid
	if bl.tail.Valid() {
		l.insts.View(int(bl.tail)).next = inst
	} else {
		bl.head = inst
	}
	bl.tail = inst
	bl.numInsts++
}

// InsertInstBefore inserts inst immediately before existing in
// existing's block. Used by mid-level passes (legalization) that
// rewrite one instruction into a short sequence ending in the original
// opcode, where Builder's tail-only cursor is the wrong tool.
func (l *Layout) InsertInstBefore(existing, inst Inst) {
	el := l.insts.View(int(existing))
	bl := l.blocks.View(int(el.block))
	il := l.ensureInst(inst)
	il.block = el.block
	il.inBlock = true
	il.prev, il.next = el.prev, existing
	if el.prev.Valid() {
		l.insts.View(int(el.prev)).next = inst
	} else {
		bl.head = inst
	}
	el.prev = inst
	bl.numInsts++
}

// RemoveInst logically removes inst from its Block.
func (l *Layout) RemoveInst(inst Inst) {
	il := l.insts.View(int(inst))
	if !il.inBlock {
		return
	}
	bl := l.blocks.View(int(il.block))
	if il.prev.Valid() {
		l.insts.View(int(il.prev)).next = il.next
	} else {
		bl.head = il.next
	}
	if il.next.Valid() {
		l.insts.View(int(il.next)).prev = il.prev
	} else {
		bl.tail = il.prev
	}
	bl.numInsts--
	il.inBlock = false
}

// FirstBlock / NextBlock iterate the block order.
func (l *Layout) FirstBlock() Block { return l.firstBlock }
func (l *Layout) NextBlock(b Block) Block {
	return l.blocks.View(int(b)).next
}
func (l *Layout) LastBlock() Block { return l.lastBlock }
func (l *Layout) PrevBlock(b Block) Block {
	return l.blocks.View(int(b)).prev
}

// NumBlocks returns the number of blocks currently in the layout.
func (l *Layout) NumBlocks() int { return l.numBlocks }

// FirstInst / NextInst iterate one block's instruction order.
func (l *Layout) FirstInst(b Block) Inst { return l.blocks.View(int(b)).head }
func (l *Layout) LastInst(b Block) Inst  { return l.blocks.View(int(b)).tail }
func (l *Layout) NextInst(i Inst) Inst   { return l.insts.View(int(i)).next }
func (l *Layout) PrevInst(i Inst) Inst   { return l.insts.View(int(i)).prev }

// NumInsts returns the number of live instructions in b.
func (l *Layout) NumInsts(b Block) int { return l.blocks.View(int(b)).numInsts }

// BlockOf returns the Block that currently owns inst, or BlockInvalid if
// inst has been removed from the layout.
func (l *Layout) BlockOf(inst Inst) Block {
	il := l.insts.View(int(inst))
	if !il.inBlock {
		return BlockInvalid
	}
	return il.block
}

// InLayout reports whether b is currently part of the block order.
func (l *Layout) InLayout(b Block) bool {
	if int(b) >= l.blocks.Len() {
		return false
	}
	return l.blocks.View(int(b)).inLayout
}
