package core

import "fmt"

// ErrorKind is one of the stable error kinds from the error taxonomy.
// Kinds are stable identifiers, not Go type names, so they can be
// compared and reported consistently regardless of where they're raised.
type ErrorKind string

// The closed set of error kinds the engine can raise.
const (
	ParseError             ErrorKind = "ParseError"
	AmbiguousName           ErrorKind = "AmbiguousName"
	EscapesSandbox          ErrorKind = "EscapesSandbox"
	DuplicateTarget         ErrorKind = "DuplicateTarget"
	UnknownTarget           ErrorKind = "UnknownTarget"
	CycleDetected           ErrorKind = "CycleDetected"
	PolicyViolation         ErrorKind = "PolicyViolation"
	BuilderFailed           ErrorKind = "BuilderFailed"
	CacheCorrupt            ErrorKind = "CacheCorrupt"
	RemoteCacheUnavailable  ErrorKind = "RemoteCacheUnavailable"
)

// Fatal reports whether an error of this kind always aborts the run
// (independent of flags like --continue-after-fail or --no-policies).
func (k ErrorKind) Fatal() bool {
	switch k {
	case ParseError, AmbiguousName, EscapesSandbox, DuplicateTarget, UnknownTarget, CycleDetected:
		return true
	default:
		return false
	}
}

// Error is the engine's typed error. It's always raised with a Kind so
// callers can branch on the taxonomy rather than string-matching.
type Error struct {
	Kind    ErrorKind
	Target  string // qualified name the error pertains to, if any
	File    string // build file, if any
	Line    int    // line within File, if any
	Message string
}

func (e *Error) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", e.Kind, e.File, e.Line, e.Message)
	}
	if e.Target != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Target, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError constructs an *Error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewTargetError constructs an *Error of the given kind, attributed to a target.
func NewTargetError(kind ErrorKind, target, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Target: target, Message: fmt.Sprintf(format, args...)}
}

// NewParseError constructs a ParseError attributed to a source location.
func NewParseError(file string, line int, format string, args ...interface{}) *Error {
	return &Error{Kind: ParseError, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err if it's one of ours, or "" if not.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
