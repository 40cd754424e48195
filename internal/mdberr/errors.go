// Package mdberr defines the error-kind taxonomy shared by every mdb
// subsystem, grounded on the teacher's sentinel-error style
// (libs/database/errors.go) plus its fmt.Errorf("...: %w", err) wrapping
// convention, generalized into a structured Kind so callers can switch on
// failure class without string matching.
package mdberr

import (
	"errors"
	"fmt"
)

// Kind classifies an mdb error per the spec's error handling design.
type Kind int

const (
	// OutOfMemory is any allocation failure. Propagated immediately;
	// partial multi-subsystem insertions are unwound by the caller so
	// FI, RI, and STO remain mutually consistent.
	OutOfMemory Kind = iota
	// InvalidArgument covers null required input, malformed labels, or an
	// unknown metric type.
	InvalidArgument
	// NotFound is returned by lookups only; it is never fatal.
	NotFound
	// Unsupported marks operations not implemented in this revision
	// (delete_metric, delete_match, the disk storage backend).
	Unsupported
	// InternalCorruption marks an invariant violation (e.g. a forward-index
	// id that does not match its slot position). Fatal: callers should log
	// and abort rather than attempt to continue.
	InternalCorruption
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out_of_memory"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Unsupported:
		return "unsupported"
	case InternalCorruption:
		return "internal_corruption"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the mdb API boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. err may be nil when the kind alone is sufficient
// (e.g. NotFound).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// errors.As does.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
