package uefi

import (
	"errors"
	"fmt"
)

// Boot failure kinds. Every firmware-call failure surfaced by the loader
// matches exactly one of these with errors.Is.
var (
	ErrProtocolUnavailable = errors.New("protocol unavailable")
	ErrVolumeOpenFailed    = errors.New("volume open failed")
	ErrFileNotFound        = errors.New("file not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInfoUnavailable     = errors.New("file info unavailable")
	ErrAllocationFailed    = errors.New("allocation failed")
	ErrMapBufferTooSmall   = errors.New("memory map buffer too small")
	ErrTerminationStale    = errors.New("exit boot services: stale map key")
	ErrTerminationFailed   = errors.New("exit boot services failed")
	ErrMalformedImage      = errors.New("malformed image")
)

// OpError records the failing operation, its kind and the underlying cause
// (usually a Status).
type OpError struct {
	Op    string
	Kind  error
	Cause error
}

// Fail returns an *OpError. A nil cause is allowed for failures detected by
// the loader itself.
func Fail(kind error, op string, cause error) error {
	return &OpError{Op: op, Kind: kind, Cause: cause}
}

func (e *OpError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause, so errors.Is matches the
// kind and errors.As finds the Status.
func (e *OpError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

// StatusOf returns the first Status found in err's chain, or Success when
// there is none.
func StatusOf(err error) Status {
	var s Status

	if errors.As(err, &s) {
		return s
	}

	return Success
}
