package analysis

import "github.com/corewind/xc/ir"

// Loop is one natural loop: a header block plus the set of blocks that
// can reach the header without leaving the loop, discovered from a
// single back edge (a CFG edge whose target dominates its source — the prior art's subPassLoopDetection test, ssa/pass_cfg.go: "if
// b.isDominatedBy(pred, blk) { blk.loopHeader = true }").
type Loop struct {
	Header ir.Block
	Body   map[ir.Block]bool
	// Latch is the block containing the back edge into Header.
	Latch ir.Block
}

// LoopForest is the set of natural loops in a Function, keyed by header
// block. A header with multiple back edges (a loop with multiple
// latches) is represented by merging their bodies into one Loop, which
// is the standard treatment for irreducible-free CFGs like the ones
// this IR's Builder can construct (every edge is an explicit BlockCall,
// there is no unstructured goto).
type LoopForest struct {
	byHeader map[ir.Block]*Loop
}

// BuildLoopForest finds every natural loop in cfg's function using dom.
func BuildLoopForest(cfg *CFG, dom *DomTree) *LoopForest {
	lf := &LoopForest{byHeader: map[ir.Block]*Loop{}}

	for _, b := range cfg.ReversePostorder() {
		for _, pred := range cfg.Predecessors(b) {
			if !dom.Dominates(b, pred) {
				continue // not a back edge.
			}
			loop := lf.byHeader[b]
			if loop == nil {
				loop = &Loop{Header: b, Body: map[ir.Block]bool{b: true}, Latch: pred}
				lf.byHeader[b] = loop
			}
			collectLoopBody(cfg, loop, pred)
		}
	}
	return lf
}

// collectLoopBody walks predecessors backward from latch until it
// reaches blocks already known to be in the loop, adding every block it
// crosses (the standard natural-loop body construction: the loop body
// is every block that can reach the latch without going through the
// header from outside).
func collectLoopBody(cfg *CFG, loop *Loop, latch ir.Block) {
	if loop.Body[latch] {
		return
	}
	worklist := []ir.Block{latch}
	loop.Body[latch] = true
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range cfg.Predecessors(b) {
			if loop.Body[p] {
				continue
			}
			loop.Body[p] = true
			worklist = append(worklist, p)
		}
	}
}

// IsHeader reports whether b is the header of some natural loop.
func (lf *LoopForest) IsHeader(b ir.Block) bool {
	_, ok := lf.byHeader[b]
	return ok
}

// LoopOf returns the loop headed by b, or nil if b is not a loop header.
func (lf *LoopForest) LoopOf(b ir.Block) *Loop { return lf.byHeader[b] }

// Loops returns every loop in the forest, in no particular order.
func (lf *LoopForest) Loops() []*Loop {
	loops := make([]*Loop, 0, len(lf.byHeader))
	for _, l := range lf.byHeader {
		loops = append(loops, l)
	}
	return loops
}

// Contains reports whether b is part of l's body (including the header).
func (l *Loop) Contains(b ir.Block) bool { return l.Body[b] }
