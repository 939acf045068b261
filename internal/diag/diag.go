// Package diag implements the error-kind model described for the module
// loader and interpreter: recoverable diagnostics versus fatal failures.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the five error kinds.
type Kind uint8

const (
	// UnreachableCode is recoverable: the offending block is dropped and
	// compilation continues.
	UnreachableCode Kind = iota
	// InvalidModule is fatal for the module currently being loaded.
	InvalidModule
	// InvalidIR is a debug-only assertion; it is fatal only while
	// SetDebugAssertions(true) is in effect (the default).
	InvalidIR
	// EndOfStream is fatal: the byte stream ended mid-record.
	EndOfStream
	// InterpreterTrap is reported to the caller; the frame stack unwinds.
	InterpreterTrap
)

func (k Kind) String() string {
	switch k {
	case UnreachableCode:
		return "unreachable code"
	case InvalidModule:
		return "invalid module"
	case InvalidIR:
		return "invalid IR"
	case EndOfStream:
		return "end of stream"
	case InterpreterTrap:
		return "interpreter trap"
	default:
		return "unknown"
	}
}

// Span locates a diagnostic within a function/block, mirroring
// SentraError's {File, Line, Column} but keyed to IR position rather than
// source text, since the frontend that owns source spans is out of scope.
type Span struct {
	Function string
	Block    string
	Index    int
}

func (s Span) String() string {
	if s.Function == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s#%d", s.Function, s.Block, s.Index)
}

// Diagnostic is a single reported event.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    Span
	Cause   error
}

func (d Diagnostic) Error() string {
	if d.Span.Function == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s (at %s)", d.Kind, d.Message, d.Span)
}

func (d Diagnostic) Unwrap() error { return d.Cause }

// Fatal reports whether the diagnostic kind halts the operation that
// raised it.
func (d Diagnostic) Fatal() bool {
	switch d.Kind {
	case UnreachableCode:
		return false
	case InvalidIR:
		return debugAssertionsEnabled
	default:
		return true
	}
}

// debugAssertionsEnabled gates whether InvalidIR is fatal; it is switched
// at run time by SetDebugAssertions.
var debugAssertionsEnabled = true

func SetDebugAssertions(enabled bool) { debugAssertionsEnabled = enabled }

// Sink receives diagnostics as they are raised.
type Sink interface {
	Report(Diagnostic)
}

// CollectingSink accumulates every diagnostic reported to it; tests use it
// to assert on exact diagnostic sequences.
type CollectingSink struct {
	Diagnostics []Diagnostic
}

func (s *CollectingSink) Report(d Diagnostic) { s.Diagnostics = append(s.Diagnostics, d) }

func (s *CollectingSink) HasFatal() bool {
	for _, d := range s.Diagnostics {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// Wrapf raises an InvalidModule/EndOfStream-style fatal diagnostic with a
// stack-carrying cause, for the reader/writer's untrusted-input paths.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   errors.WithStack(cause),
	}
}
