package selectordsl

import "github.com/corewind/xc/internal/xerrors"

// DSLError is returned by Compile for any parse, semantic, or
// overlap-ambiguity failure in a rule file; always CategoryDSL.
type DSLError = xerrors.Error

func newErr(line int, format string, args ...any) *DSLError {
	e := xerrors.New(xerrors.CategoryDSL, "", format, args...)
	if line > 0 {
		e = e.At(xerrors.Position{Line: line})
	}
	return e
}
