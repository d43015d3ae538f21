package interp

import "fmt"

// HomeScriptError is the canonical interpreter failure: every syntax,
// semantic, and wrapped host failure surfaces as one of these, carrying the
// statement line it happened on.
type HomeScriptError struct {
	Message string
	Line    int
}

func (e *HomeScriptError) Error() string {
	return fmt.Sprintf("%s (line %d)", e.Message, e.Line)
}

func newErr(line int, format string, args ...any) *HomeScriptError {
	return &HomeScriptError{Message: fmt.Sprintf(format, args...), Line: line}
}

// abortSignal is BREAK's internal control-transfer value: it unwinds the
// run loop without being a HomeScriptError, since BREAK is operator-
// requested termination, not a failure.
type abortSignal struct {
	code    int
	message string
}

func (a *abortSignal) Error() string { return a.message }
