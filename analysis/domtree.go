package analysis

import "github.com/corewind/xc/ir"

// DomTree is the immediate-dominator tree of a Function's reachable
// blocks, computed with the Cooper-Harvey-Kennedy "simple, fast
// dominance" algorithm (the same one the prior art names and implements
// in ssa/pass_cfg.go: calculateDominators + intersect, iterating to a
// fixpoint over the reverse-postorder block list).
type DomTree struct {
	cfg  *CFG
	idom map[ir.Block]ir.Block // idom[entry] == entry, by convention.
}

// BuildDomTree computes the dominator tree of cfg's function.
func BuildDomTree(cfg *CFG) *DomTree {
	rpo := cfg.rpo
	if len(rpo) == 0 {
		return &DomTree{cfg: cfg, idom: map[ir.Block]ir.Block{}}
	}
	entry := rpo[0]
	idom := map[ir.Block]ir.Block{entry: entry}

	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			var u ir.Block
			uSet := false
			for _, p := range cfg.Predecessors(b) {
				if _, ok := idom[p]; !ok {
					continue // predecessor not yet reached in this pass.
				}
				if !uSet {
					u, uSet = p, true
					continue
				}
				u = intersect(idom, cfg.index, u, p)
			}
			if !uSet {
				continue // unreachable.
			}
			if cur, ok := idom[b]; !ok || cur != u {
				idom[b] = u
				changed = true
			}
		}
	}
	return &DomTree{cfg: cfg, idom: idom}
}

// intersect returns the common dominator of a and b, per the paper's
// `intersect` (ssa/pass_cfg.go's intersect, generalized to ir.Block).
func intersect(idom map[ir.Block]ir.Block, rpoIndex map[ir.Block]int, a, b ir.Block) ir.Block {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

// ImmediateDominator returns b's immediate dominator, or BlockInvalid if
// b is unreachable or is the entry block.
func (t *DomTree) ImmediateDominator(b ir.Block) ir.Block {
	idom, ok := t.idom[b]
	if !ok {
		return ir.BlockInvalid
	}
	if idom == b { // entry block.
		return ir.BlockInvalid
	}
	return idom
}

// Dominates reports whether a dominates b (every path from the entry to
// b passes through a). A block always dominates itself.
func (t *DomTree) Dominates(a, b ir.Block) bool {
	if a == b {
		_, ok := t.idom[a]
		return ok
	}
	cur, ok := t.idom[b]
	for ok {
		if cur == a {
			return true
		}
		if cur == t.idom[cur] {
			break // reached the entry without finding a.
		}
		cur, ok = t.idom[cur]
	}
	return false
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *DomTree) StrictlyDominates(a, b ir.Block) bool {
	return a != b && t.Dominates(a, b)
}
