package stallone

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseBootstrap Phase = "bootstrap" // runtime start and handle resolution
	PhaseEncode    Phase = "encode"    // Go to foreign
	PhaseDecode    Phase = "decode"    // foreign to Go
	PhaseList      Phase = "list"      // list and collection coercion
	PhaseBridge    Phase = "bridge"    // object-space RPC
	PhaseMemory    Phase = "memory"    // shared memory and leases
	PhaseConfig    Phase = "config"    // configuration loading
)

// Kind categorizes the error.
type Kind string

const (
	KindUnsupportedElementType Kind = "unsupported_element_type"
	KindUnsupportedShape       Kind = "unsupported_shape"
	KindUnsupportedLayout      Kind = "unsupported_layout"
	KindUnsupportedForeignType Kind = "unsupported_foreign_type"
	KindMissingArchive         Kind = "missing_archive"
	KindRuntimeStart           Kind = "runtime_start"
	KindIdentityMismatch       Kind = "identity_mismatch"
	KindNotAList               Kind = "not_a_list"
	KindContiguityRequired     Kind = "contiguity_required"
	KindTypeMismatch           Kind = "type_mismatch"
	KindNotShared              Kind = "not_shared"
	KindLeaseHeld              Kind = "lease_held"
	KindInvalidInput           Kind = "invalid_input"
	KindForeign                Kind = "foreign"
	KindTransport              Kind = "transport"
	KindConfig                 Kind = "config"
)

// Error is the structured error returned by every operation in this package.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a Phase
// matches on Kind alone, so the package sentinels match errors from any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for use with errors.Is.
var (
	ErrUnsupportedElementType = &Error{Kind: KindUnsupportedElementType}
	ErrUnsupportedShape       = &Error{Kind: KindUnsupportedShape}
	ErrUnsupportedLayout      = &Error{Kind: KindUnsupportedLayout}
	ErrUnsupportedForeignType = &Error{Kind: KindUnsupportedForeignType}
	ErrMissingArchive         = &Error{Kind: KindMissingArchive}
	ErrRuntimeStart           = &Error{Kind: KindRuntimeStart}
	ErrIdentityMismatch       = &Error{Kind: KindIdentityMismatch}
	ErrNotAList               = &Error{Kind: KindNotAList}
	ErrContiguityRequired     = &Error{Kind: KindContiguityRequired}
	ErrTypeMismatch           = &Error{Kind: KindTypeMismatch}
	ErrNotShared              = &Error{Kind: KindNotShared}
	ErrLeaseHeld              = &Error{Kind: KindLeaseHeld}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrForeign                = &Error{Kind: KindForeign}
	ErrTransport              = &Error{Kind: KindTransport}
	ErrConfig                 = &Error{Kind: KindConfig}
)

func newError(phase Phase, kind Kind, format string, args ...any) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func wrapError(phase Phase, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Phase: phase, Kind: kind, Cause: cause, Detail: fmt.Sprintf(format, args...)}
}
