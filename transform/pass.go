// Package transform implements the mid-level optimization pipeline of
// this module: a sequence of passes over an ir.Function, each either a
// required correctness pass (legalization, alias resolution, dead-code
// elimination) or an optional optimization gated by the caller's chosen
// level. The pass list and per-pass signature are grounded on the prior art's ssa/opt.go (Optimize, optimizationPass, defaultOptimizationPasses).
package transform

import "github.com/corewind/xc/ir"

// Pass is one mid-level transformation. Run reports whether it mutated
// f, which lets Pipeline re-run passes that can expose further
// opportunities to earlier ones (e.g. DCE after GVN) without an
// unconditional fixed-point loop over the whole pipeline.
type Pass interface {
	Name() string
	Run(f *ir.Function) (changed bool, err error)
}

// Level selects which optional passes Pipeline includes, mirroring the
// optimization-level knob this module's compile.Options exposes.
type Level int

const (
	// LevelNone runs only the passes required for correctness:
	// legalization, unreachable-block elimination, alias resolution,
	// constant-phi removal, and dead-code elimination.
	LevelNone Level = iota
	// LevelDefault additionally runs GVN, copy propagation, and branch
	// simplification.
	LevelDefault
	// LevelAggressive additionally runs LICM, strength reduction, and
	// peephole rewrites, and iterates the whole pipeline to a fixpoint.
	LevelAggressive
)

// Pipeline runs an ordered list of passes, re-running to a fixpoint at
// LevelAggressive the way the prior art's Optimize runs its list once
// (ssa/opt.go) but generalized since this module's pipeline has passes
// that can re-expose each other's opportunities (GVN -> DCE -> GVN).
type Pipeline struct {
	passes []Pass
	level  Level
}

// NewPipeline builds the pass list for the given optimization level.
// CriticalEdgeSplitting always runs last, after every pass that can
// still fold or rewrite a Branch (branch simplification included), so
// it never splits an edge a later pass would have simplified away.
func NewPipeline(level Level) *Pipeline {
	required := []Pass{
		Legalization{},
		UnreachableBlockElimination{},
		ConstantPhiElimination{},
		AliasResolution{},
		DeadCodeElimination{},
	}
	if level == LevelNone {
		return &Pipeline{passes: append(required, CriticalEdgeSplitting{}), level: level}
	}

	optional := []Pass{
		GlobalValueNumbering{},
		AliasResolution{},
		CopyPropagation{},
		BranchSimplification{},
		DeadCodeElimination{},
	}
	if level == LevelAggressive {
		optional = append(optional,
			LoopInvariantCodeMotion{},
			StrengthReduction{},
			Peephole{},
			DeadCodeElimination{},
		)
	}
	passes := append(required, optional...)
	passes = append(passes, CriticalEdgeSplitting{})
	return &Pipeline{passes: passes, level: level}
}

// Run executes every pass in order once, or to a fixpoint at
// LevelAggressive.
func (p *Pipeline) Run(f *ir.Function) error {
	const maxIterations = 8
	for iter := 0; iter < maxIterations; iter++ {
		anyChanged := false
		for _, pass := range p.passes {
			changed, err := pass.Run(f)
			if err != nil {
				return err
			}
			anyChanged = anyChanged || changed
		}
		if p.level != LevelAggressive || !anyChanged {
			break
		}
	}
	return nil
}
