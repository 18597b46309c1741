// Package apperrors defines the machine-readable error kinds surfaced by
// the code-generation and hierarchy engine. Every business-rule violation
// carries a Kind so callers can branch without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of engine error
type Kind string

const (
	// KindRuleNotFound - the requested code rule does not exist
	KindRuleNotFound Kind = "RuleNotFound"
	// KindInvalidRuleDefinition - a rule failed registration-time validation
	KindInvalidRuleDefinition Kind = "InvalidRuleDefinition"
	// KindUnknownCategory - a token could not be resolved in its dictionary category
	KindUnknownCategory Kind = "UnknownCategory"
	// KindGuardRejected - the rule's guard expression evaluated to false
	KindGuardRejected Kind = "GuardRejected"
	// KindInvalidParent - declared parent missing or not exactly one level above
	KindInvalidParent Kind = "InvalidParent"
	// KindDuplicateCode - the code collides with a sibling under the same parent
	KindDuplicateCode Kind = "DuplicateCode"
	// KindHasChildren - deletion refused while children reference the node
	KindHasChildren Kind = "HasChildren"
	// KindAllocationConflict - transient storage contention, safe to retry
	KindAllocationConflict Kind = "AllocationConflict"
	// KindImmutableFieldChange - attempt to change code, level or parent post-creation
	KindImmutableFieldChange Kind = "ImmutableFieldChange"
	// KindNodeNotFound - the requested node does not exist
	KindNodeNotFound Kind = "NodeNotFound"
	// KindInvalidInput - malformed request outside the named business rules
	KindInvalidInput Kind = "InvalidInput"
)

// Error is an engine error with a machine-readable kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an engine error with the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a kind and message to an underlying cause
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf extracts the kind from an error chain; empty when none is present
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
