// Package xerrors defines the closed error taxonomy used across the
// pipeline: every pass returns either success or one of these typed
// errors, each naming a category, a short message, and (where available)
// a source position or offending entity. Wrapping with fmt.Errorf's %w
// keeps errors.Is/errors.As working through the chain without pulling in
// a third-party stack-trace library (see DESIGN.md).
package xerrors

import "fmt"

// Category is the closed set of failure categories.
type Category int

const (
	// CategoryVerifier is raised when IR violates an invariant.
	CategoryVerifier Category = iota
	// CategoryLegalization is raised when an IR operation cannot be
	// expressed on the target.
	CategoryLegalization
	// CategoryLowering is raised when no selector-DSL rule matched.
	CategoryLowering
	// CategoryRegalloc is raised on unsatisfiable fixed-register
	// constraints or unspillable pressure.
	CategoryRegalloc
	// CategoryEncoding is raised when an immediate or offset does not
	// fit its encoding after fixed-point iteration.
	CategoryEncoding
	// CategoryDSL is raised by the selector-DSL build-time compiler:
	// parse, type, overlap-ambiguity, unbound-variable errors.
	CategoryDSL
)

func (c Category) String() string {
	switch c {
	case CategoryVerifier:
		return "verifier"
	case CategoryLegalization:
		return "legalization"
	case CategoryLowering:
		return "lowering"
	case CategoryRegalloc:
		return "regalloc"
	case CategoryEncoding:
		return "encoding"
	case CategoryDSL:
		return "dsl"
	default:
		return "unknown"
	}
}

// Position is a source position hint, set by whichever layer has one:
// an ir.SourceOffset-derived line/column for verifier and DSL errors, or
// empty when no frontend position is available.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" && p.Line == 0 {
		return ""
	}
	if p.Col == 0 {
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Error is the concrete type every pass in the pipeline returns on
// failure. It is never partially populated on a successful return: a
// pass either returns (mutated, nil) or (false, *Error), and the
// Function it was called on is left exactly as it was before the call.
type Error struct {
	Category Category
	Message  string
	Pos      Position
	// Entity, when non-empty, names the offending entity in the form
	// the owning package chooses (e.g. "v12", "block3", "inst7").
	Entity string
	Err    error // wrapped cause, if any.
}

func (e *Error) Error() string {
	pos := e.Pos.String()
	switch {
	case pos != "" && e.Entity != "":
		return fmt.Sprintf("%s: %s [%s]: %s", pos, e.Category, e.Entity, e.Message)
	case pos != "":
		return fmt.Sprintf("%s: %s: %s", pos, e.Category, e.Message)
	case e.Entity != "":
		return fmt.Sprintf("%s [%s]: %s", e.Category, e.Entity, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error with no position or wrapped cause.
func New(cat Category, entity, format string, args ...any) *Error {
	return &Error{Category: cat, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that wraps cause.
func Wrap(cat Category, entity string, cause error, format string, args ...any) *Error {
	return &Error{Category: cat, Entity: entity, Message: fmt.Sprintf(format, args...), Err: cause}
}

// At sets the Position on an Error and returns it, for chaining at the
// call site: `return xerrors.New(...).At(pos)`.
func (e *Error) At(pos Position) *Error {
	e.Pos = pos
	return e
}
