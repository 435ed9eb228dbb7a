package xerrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies walgo errors.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidConfig
	KindInvalidIdentifier
	KindEmptyQuilt
	KindNotFound
	KindHTTP
	KindUnexpectedShape
	KindPatchCountMismatch
	KindTransport
)

// Error wraps an underlying error with additional metadata.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "walrus.StoreBlob"
	Ref     string // identifier or URL involved, if any
	Status  int    // HTTP status for KindHTTP and KindNotFound
	Excerpt string // leading bytes of an error response body
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := kindString(e.Kind)
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Status != 0 {
		base += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Ref != "" {
		base += " " + e.Ref
	}
	if e.Excerpt != "" {
		base += ": " + e.Excerpt
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

func kindString(kind Kind) string {
	switch kind {
	case KindInvalidConfig:
		return "invalid configuration"
	case KindInvalidIdentifier:
		return "invalid identifier"
	case KindEmptyQuilt:
		return "empty quilt input"
	case KindNotFound:
		return "not found"
	case KindHTTP:
		return "http error"
	case KindUnexpectedShape:
		return "unexpected response shape"
	case KindPatchCountMismatch:
		return "quilt patch count mismatch"
	case KindTransport:
		return "transport error"
	default:
		return "internal error"
	}
}

// Wrap annotates err with the given metadata. If err is nil, Wrap returns nil.
func Wrap(kind Kind, op, ref string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Ref: ref, Err: err}
}

// E creates a new error with the provided metadata (no underlying error).
func E(kind Kind, op, ref string) error {
	return &Error{Kind: kind, Op: op, Ref: ref}
}

// HTTP builds an error for a non-2xx response, keying NotFound off the status.
func HTTP(op string, status int, excerpt string) error {
	kind := KindHTTP
	if status == 404 {
		kind = KindNotFound
	}
	return &Error{Kind: kind, Op: op, Status: status, Excerpt: excerpt}
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransport
	}
	return KindInternal
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
