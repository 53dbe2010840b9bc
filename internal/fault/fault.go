// Package fault classifies service errors so transport layers can map them
// to a response without inspecting error strings. Every mutating operation in
// the core reports failures through one of these kinds.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the failure classification shared across the core's operations.
type Kind string

const (
	// KindNotFound indicates a referenced entity is absent.
	KindNotFound Kind = "NOT_FOUND"
	// KindConflict indicates a uniqueness violation.
	KindConflict Kind = "CONFLICT"
	// KindForbidden indicates the caller may not perform the operation.
	KindForbidden Kind = "FORBIDDEN"
	// KindBadRequest indicates invalid input or an invalid target state.
	KindBadRequest Kind = "BAD_REQUEST"
	// KindInternal indicates an unexpected persistence or infrastructure failure.
	KindInternal Kind = "INTERNAL"
)

// Error carries a classification, the operation that failed, and the cause.
type Error struct {
	kind      Kind
	operation string
	err       error
}

// New wraps cause with a classification and the failing operation name.
func New(kind Kind, operation string, cause error) error {
	return &Error{kind: kind, operation: operation, err: cause}
}

// Errorf is New with a formatted cause and no underlying error to unwrap.
func Errorf(kind Kind, operation, format string, args ...interface{}) error {
	return &Error{kind: kind, operation: operation, err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.operation, e.kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.operation, e.kind, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Operation returns the name of the operation that failed.
func (e *Error) Operation() string {
	return e.operation
}

// KindOf extracts the classification from an error chain. Unclassified
// non-nil errors report KindInternal; nil reports an empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
