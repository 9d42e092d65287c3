package quickentity

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failure modes the core can surface. Every
// operation reports its failure as one of these (ValidateRTPair may
// combine several); no partial output is ever returned alongside an error.
type ErrorKind int

const (
	// DuplicateEntityID is returned when an RT blueprint's sub-entities
	// do not carry pairwise-unique entity IDs.
	DuplicateEntityID ErrorKind = iota + 1

	// InvalidReference is returned when an RT reference combines its
	// index/flag fields inconsistently (e.g. entity_index == -2 without
	// an external scene).
	InvalidReference

	// IndexOutOfRange is returned when an entity_index, external_scene_index
	// or entity_type_resource_index has no corresponding element in the
	// sibling array or meta table.
	IndexOutOfRange

	// UnknownEntityID is returned when a QN reference names an ID absent
	// from the entities map.
	UnknownEntityID

	// UnknownExternalScene is returned when a full reference names an
	// external scene hash absent from the document's external-scene list.
	UnknownExternalScene

	// TypeMismatch is returned when a property value's JSON shape does
	// not match what its declared type demands.
	TypeMismatch

	// VersionMismatch is returned when two QN documents being diffed
	// disagree on quickEntityVersion.
	VersionMismatch

	// PatchNotApplicable is returned when a patch op references an
	// element absent from the document it is being applied to.
	PatchNotApplicable

	// UnknownOp is returned when a patch carries an operation tag the
	// engine does not recognize.
	UnknownOp
)

func (k ErrorKind) String() string {
	switch k {
	case DuplicateEntityID:
		return "DuplicateEntityID"
	case InvalidReference:
		return "InvalidReference"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case UnknownEntityID:
		return "UnknownEntityID"
	case UnknownExternalScene:
		return "UnknownExternalScene"
	case TypeMismatch:
		return "TypeMismatch"
	case VersionMismatch:
		return "VersionMismatch"
	case PatchNotApplicable:
		return "PatchNotApplicable"
	case UnknownOp:
		return "UnknownOp"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every core operation.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, SomeKind) style checks by comparing Kind when
// the target is itself an *Error; the target's Msg and Err are ignored,
// so an &Error{Kind: k} works as a sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newErr(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// IsKind reports whether err is (or wraps) a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
