package xc

import "github.com/corewind/xc/transform"

// VerifyLevel selects how strictly Compile checks the incoming Function
// before lowering it.
type VerifyLevel int

const (
	// VerifyFull runs the complete verifier (dominance, block-call arity
	// and type matching, terminator well-formedness) before every
	// compile. The default: correctness bugs in a frontend should be
	// caught here, not as a miscompile three passes later.
	VerifyFull VerifyLevel = iota
	// VerifySkip runs no verification at all, for callers that already
	// verified the Function once and are recompiling it unchanged (e.g.
	// under a different TargetDescription).
	VerifySkip
)

// Options carries the per-call knobs: a calling convention override
// for the function, the optimization level, and a verification
// strictness level.
type Options struct {
	// CallConvOverride is carried on Options but Compile does not read
	// it: the Function's own signature calling convention is always used.
	CallConvOverride string
	// OptLevel selects which of package transform's optional passes run.
	OptLevel transform.Level
	// Verify selects how strictly the incoming Function is checked.
	Verify VerifyLevel
}

// DefaultOptions returns the Options a caller gets by not specifying
// any: full verification, the default (non-aggressive) optimization
// pipeline, and the Function's own calling convention.
func DefaultOptions() Options {
	return Options{OptLevel: transform.LevelDefault, Verify: VerifyFull}
}
