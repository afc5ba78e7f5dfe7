// Package ferrors defines the error taxonomy shared across the Feral core:
// module loading, parsing (reported by the external parser, surfaced here),
// runtime dispatch, arithmetic/domain checks, user-raised values, and
// resource exhaustion.
package ferrors

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Kind classifies an Error so callers can branch on intent rather than
// parsing message text.
type Kind int

const (
	// LoadError covers module-not-found, load failure, missing init symbol.
	LoadError Kind = iota
	// ParseError wraps diagnostics from the external lexer/parser/compiler.
	ParseError
	// DispatchError covers unknown method, wrong arity/type, non-callable target.
	DispatchError
	// DomainError covers div-by-zero, bad subscript, out-of-range.
	DomainError
	// UserRaised wraps a script-raised value (from RAISE).
	UserRaised
	// ResourceError covers stack-depth exceeded and similar bounds.
	ResourceError
)

func (k Kind) String() string {
	switch k {
	case LoadError:
		return "load error"
	case ParseError:
		return "parse error"
	case DispatchError:
		return "dispatch error"
	case DomainError:
		return "domain error"
	case UserRaised:
		return "raised"
	case ResourceError:
		return "resource error"
	default:
		return "error"
	}
}

// Error is a formatted, source-located diagnostic. SrcID/Idx give the
// provenance (source file id, byte offset) used for the driver's
// "source file, line, column, snippet, message" report.
type Error struct {
	Kind  Kind
	Msg   string
	SrcID uint32
	Idx   uint32
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (src %d @ %d): %v", e.Kind, e.Msg, e.SrcID, e.Idx, e.Err)
	}
	return fmt.Sprintf("%s: %s (src %d @ %d)", e.Kind, e.Msg, e.SrcID, e.Idx)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a located Error with a plain message.
func New(kind Kind, srcID, idx uint32, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), SrcID: srcID, Idx: idx}
}

// Wrap builds a located Error around an underlying cause.
func Wrap(kind Kind, srcID, idx uint32, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), SrcID: srcID, Idx: idx, Err: cause}
}

// StackExceeded formats the resource error raised when the call-frame
// depth reaches its configured bound. Humanized so large bounds read
// cleanly in driver output.
func StackExceeded(srcID, idx uint32, depth, max int) *Error {
	return New(ResourceError, srcID, idx,
		"call stack depth exceeded: %s of %s frames",
		humanize.Comma(int64(depth)), humanize.Comma(int64(max)))
}

// Exit codes returned by the driver: 0 on success, else one of these
// generic codes unless the script itself called exit with an explicit
// code.
const (
	ExitOK        = 0
	ExitFail      = 1
	ExitParseFail = 2
	ExitExecFail  = 3
)

// ExitCode maps an error surfaced by the driver to one of the exit
// codes above. A nil error is success; a ParseError reports
// ExitParseFail; anything else reports ExitExecFail.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var fe *Error
	if e, ok := err.(*Error); ok {
		fe = e
	}
	if fe != nil && fe.Kind == ParseError {
		return ExitParseFail
	}
	return ExitExecFail
}
