/*
NAME
  errkind.go

DESCRIPTION
  errkind classifies the error kinds of §7: Invalid, Unsupported, Internal,
  Transient and CacheMiss. Components wrap a causal error with the
  appropriate kind using the Wrap* helpers; callers at a recovery boundary
  (frame boundary for the decoder, packet boundary for the transport, top
  of the event loop for Unsupported/Internal) use Is/KindOf to decide whether
  to recover locally or propagate.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package errkind classifies core errors into the kinds described by the
// error handling design: Invalid, Unsupported, Internal, Transient and
// CacheMiss.
package errkind

import (
	"github.com/pkg/errors"
)

// Kind is one of the five error kinds recognised by the core.
type Kind int

const (
	// Invalid input violates a stated invariant. Recovered at the frame or
	// packet boundary: drop the current unit, leave state unchanged.
	Invalid Kind = iota

	// Unsupported input is well formed but names a feature the core does
	// not implement. Fatal for the affected operation.
	Unsupported

	// Internal marks a violated invariant that indicates a bug in the core
	// itself. Fatal; callers should abort with a diagnostic.
	Internal

	// Transient marks a retryable I/O condition (EAGAIN, camera frame not
	// yet ready).
	Transient

	// CacheMiss marks a decoder or encoder state-cache lookup failure,
	// recovered at the protocol layer per §4.10.
	CacheMiss
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Unsupported:
		return "unsupported"
	case Internal:
		return "internal"
	case Transient:
		return "transient"
	case CacheMiss:
		return "cache miss"
	default:
		return "unknown"
	}
}

// coreError pairs a Kind with the causal error and the operation it
// occurred during, so that a stderr message can name "the operation
// attempted and the error kind" per §7.
type coreError struct {
	kind op
	err  error
}

type op struct {
	kind      Kind
	operation string
}

func (e *coreError) Error() string {
	return e.kind.operation + ": " + e.kind.kind.String() + ": " + e.err.Error()
}

func (e *coreError) Unwrap() error { return e.err }

// Wrap annotates err with kind and the operation name, e.g.
// Wrap(Invalid, "parse frame header", err).
func Wrap(kind Kind, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &coreError{kind: op{kind: kind, operation: operation}, err: errors.WithStack(err)}
}

// Is reports whether err (or any error it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var ce *coreError
	for err != nil {
		if errors.As(err, &ce) {
			if ce.kind.kind == kind {
				return true
			}
			err = ce.err
			continue
		}
		return false
	}
	return false
}

// KindOf returns the Kind carried by err and whether one was found.
func KindOf(err error) (Kind, bool) {
	var ce *coreError
	if errors.As(err, &ce) {
		return ce.kind.kind, true
	}
	return 0, false
}

// Invalidf builds an Invalid error for operation.
func Invalidf(operation, format string, args ...interface{}) error {
	return Wrap(Invalid, operation, errors.Errorf(format, args...))
}

// Unsupportedf builds an Unsupported error for operation.
func Unsupportedf(operation, format string, args ...interface{}) error {
	return Wrap(Unsupported, operation, errors.Errorf(format, args...))
}

// Internalf builds an Internal error for operation.
func Internalf(operation, format string, args ...interface{}) error {
	return Wrap(Internal, operation, errors.Errorf(format, args...))
}

// Transientf builds a Transient error for operation.
func Transientf(operation, format string, args ...interface{}) error {
	return Wrap(Transient, operation, errors.Errorf(format, args...))
}

// CacheMissf builds a CacheMiss error for operation.
func CacheMissf(operation, format string, args ...interface{}) error {
	return Wrap(CacheMiss, operation, errors.Errorf(format, args...))
}
