// Package ioerr provides the structured error type shared by every package
// in this module.
package ioerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories an IDML operation can fail with.
type Kind int

const (
	// KindMalformedPackage means a part is missing, unparsable, or violates a
	// structural invariant of the package format itself.
	KindMalformedPackage Kind = iota
	// KindBrokenReference means a token referenced by one part (XMLContent,
	// ParentStory, StoryList, ...) does not resolve to any part or element.
	KindBrokenReference
	// KindTokenCollision means a prefix or splice would produce two elements
	// sharing the same Self token within one package.
	KindTokenCollision
	// KindIncompatibleSlot means a splice target cannot accept the donor
	// subtree (wrong element kind, non-empty slot, etc).
	KindIncompatibleSlot
	// KindUnknownPath means a caller referenced a part path, XPath-lite path
	// or page number that doesn't resolve in the package.
	KindUnknownPath
	// KindIOFailure means the underlying archive codec failed to read or
	// write bytes.
	KindIOFailure
)

func (k Kind) String() string {
	switch k {
	case KindMalformedPackage:
		return "malformed package"
	case KindBrokenReference:
		return "broken reference"
	case KindTokenCollision:
		return "token collision"
	case KindIncompatibleSlot:
		return "incompatible slot"
	case KindUnknownPath:
		return "unknown path"
	case KindIOFailure:
		return "I/O failure"
	default:
		return "unknown error kind"
	}
}

// Sentinel errors, one per Kind, so callers can match with errors.Is without
// depending on a specific Error value.
var (
	ErrMalformedPackage = errors.New("malformed package")
	ErrBrokenReference  = errors.New("broken reference")
	ErrTokenCollision   = errors.New("token collision")
	ErrIncompatibleSlot = errors.New("incompatible slot")
	ErrUnknownPath      = errors.New("unknown path")
	ErrIOFailure        = errors.New("I/O failure")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindMalformedPackage:
		return ErrMalformedPackage
	case KindBrokenReference:
		return ErrBrokenReference
	case KindTokenCollision:
		return ErrTokenCollision
	case KindIncompatibleSlot:
		return ErrIncompatibleSlot
	case KindUnknownPath:
		return ErrUnknownPath
	case KindIOFailure:
		return ErrIOFailure
	default:
		return nil
	}
}

// Error is the unified error type used across every package in this module.
//
// It captures enough context (package, operation, path, kind) to both
// pattern-match programmatically via errors.Is/As and print a readable
// message, without each package inventing its own error shape.
type Error struct {
	// Package identifies the package where the error originated, e.g. "prefixer".
	Package string
	// Op describes the operation in progress, e.g. "resolve story".
	Op string
	// Path is the part or XPath-lite path involved, if any.
	Path string
	// Kind classifies the failure per the module's error taxonomy.
	Kind Kind
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var msg string
	if e.Package != "" {
		msg = e.Package + ": "
	}
	if e.Op != "" {
		msg += e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += " (" + e.Kind.String() + ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As, and also lets
// errors.Is match the Kind's sentinel even when Err is nil.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelFor(e.Kind)
}

// Is lets errors.Is(err, ioerr.ErrBrokenReference) succeed whenever err wraps
// an *Error of the matching Kind, regardless of what Err holds.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// New builds an *Error with the given context.
func New(pkg, op, path string, kind Kind, err error) *Error {
	return &Error{Package: pkg, Op: op, Path: path, Kind: kind, Err: err}
}

// Wrap is a convenience constructor for the common case of an IOFailure
// wrapping a lower-level error. Returns nil if err is nil.
func Wrap(pkg, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Package: pkg, Op: op, Path: path, Kind: KindIOFailure, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(pkg, op, path string, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Package: pkg, Op: op, Path: path, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsBrokenReference reports whether err is or wraps a BrokenReference error.
func IsBrokenReference(err error) bool { return errors.Is(err, ErrBrokenReference) }

// IsTokenCollision reports whether err is or wraps a TokenCollision error.
func IsTokenCollision(err error) bool { return errors.Is(err, ErrTokenCollision) }

// IsIncompatibleSlot reports whether err is or wraps an IncompatibleSlot error.
func IsIncompatibleSlot(err error) bool { return errors.Is(err, ErrIncompatibleSlot) }

// IsMalformedPackage reports whether err is or wraps a MalformedPackage error.
func IsMalformedPackage(err error) bool { return errors.Is(err, ErrMalformedPackage) }

// IsUnknownPath reports whether err is or wraps an UnknownPath error.
func IsUnknownPath(err error) bool { return errors.Is(err, ErrUnknownPath) }
