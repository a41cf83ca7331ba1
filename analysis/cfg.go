// Package analysis computes the control-flow facts lowering and the
// transform passes need but the ir package itself does not maintain:
// successors/predecessors, reverse postorder, dominance, and natural
// loops. It is grounded on the prior art's ssa/pass_cfg.go
// (passCalculateImmediateDominators, calculateDominators, intersect,
// subPassLoopDetection), generalized from wazevo's internal *basicBlock
// graph to ir.Function's Block/BlockCall representation.
package analysis

import "github.com/corewind/xc/ir"

// CFG is the successor/predecessor graph of a Function's blocks,
// computed once from the BlockCall targets in each block's terminator.
type CFG struct {
	f     *ir.Function
	succs map[ir.Block][]ir.Block
	preds map[ir.Block][]ir.Block
	// rpo is the reverse-postorder block order from the entry block,
	// computed the way the prior art's passCalculateImmediateDominators
	// does: an iterative postorder DFS over successors, reversed.
	rpo   []ir.Block
	index map[ir.Block]int
}

// BuildCFG computes the control-flow graph of f. f must have already
// passed verify.Run.
func BuildCFG(f *ir.Function) *CFG {
	c := &CFG{
		f:     f,
		succs: map[ir.Block][]ir.Block{},
		preds: map[ir.Block][]ir.Block{},
		index: map[ir.Block]int{},
	}
	layout := f.Layout()
	dfg := f.DFG()
	for b := layout.FirstBlock(); b.Valid(); b = layout.NextBlock(b) {
		last := layout.LastInst(b)
		if !last.Valid() {
			continue
		}
		d := dfg.InstData(last)
		add := func(bc ir.BlockCall) {
			if !bc.Block.Valid() {
				return
			}
			c.succs[b] = append(c.succs[b], bc.Block)
			c.preds[bc.Block] = append(c.preds[bc.Block], b)
		}
		add(d.Blocks[0])
		add(d.Blocks[1])
	}
	c.rpo = reversePostorder(f.EntryBlock(), c.succs)
	for i, b := range c.rpo {
		c.index[b] = i
	}
	return c
}

// Successors returns b's successor blocks in program order.
func (c *CFG) Successors(b ir.Block) []ir.Block { return c.succs[b] }

// Predecessors returns b's predecessor blocks, in the order they were
// discovered while building the graph.
func (c *CFG) Predecessors(b ir.Block) []ir.Block { return c.preds[b] }

// ReversePostorder returns the function's blocks in reverse-postorder
// from the entry block. Unreachable blocks are omitted.
func (c *CFG) ReversePostorder() []ir.Block { return c.rpo }

// RPOIndex returns b's position in ReversePostorder(), or -1 if b is
// unreachable from the entry block.
func (c *CFG) RPOIndex(b ir.Block) int {
	if idx, ok := c.index[b]; ok {
		return idx
	}
	return -1
}

// reversePostorder performs the iterative explicit-stack postorder walk
// the prior art uses (pass_cfg.go) rather than recursion, since Functions
// may have arbitrarily long chains of blocks that would blow a
// recursive call stack.
func reversePostorder(entry ir.Block, succs map[ir.Block][]ir.Block) []ir.Block {
	if !entry.Valid() {
		return nil
	}
	type frame struct {
		b   ir.Block
		idx int
	}
	visited := map[ir.Block]bool{entry: true}
	stack := []frame{{entry, 0}}
	var postorder []ir.Block

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := succs[top.b]
		if top.idx < len(children) {
			next := children[top.idx]
			top.idx++
			if !visited[next] {
				visited[next] = true
				stack = append(stack, frame{next, 0})
			}
			continue
		}
		postorder = append(postorder, top.b)
		stack = stack[:len(stack)-1]
	}

	rpo := make([]ir.Block, len(postorder))
	for i, b := range postorder {
		rpo[len(postorder)-1-i] = b
	}
	return rpo
}
