// Package dberr defines the typed error taxonomy the store surfaces to its
// callers. Every failure that should reach a front end carries a numeric
// code from the external protocol's error-code dictionary (spec §6) plus a
// human-readable message; nothing below this layer's error type ever
// escapes past the store boundary unwrapped.
package dberr

import "fmt"

// Code mirrors the numeric codes spec.md §6 says front ends translate.
type Code int

const (
	CodeOK                Code = 0
	CodeInternalError     Code = 1
	CodeBadValue          Code = 2
	CodeInvalidLength     Code = 21
	CodeNamespaceNotFound Code = 26
	CodeIndexNotFound     Code = 27
	CodeNamespaceInvalid  Code = 73
	CodeDuplicateKey      Code = 11000
	CodeDocumentTooLarge  Code = 10334
)

// Error is the typed error every store, index manager, planner, and
// executor failure is ultimately expressed as.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap lets errors.Is/errors.As see through to a wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error with no underlying cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around an underlying cause, preserving it for
// errors.As/errors.Is while presenting a stable message and code upward.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the code from err if it is (or wraps) a *Error, and
// CodeInternalError otherwise — the fallback spec §7 prescribes for
// substrate failures that were never typed at their origin.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if asError(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NamespaceInvalid reports an invalid collection name.
func NamespaceInvalid(name, reason string) *Error {
	return New(CodeNamespaceInvalid, "invalid namespace %q: %s", name, reason)
}

// BadValue reports a validation failure in a document, filter, or update.
func BadValue(format string, args ...any) *Error {
	return New(CodeBadValue, format, args...)
}

// DuplicateKeyErr reports a unique-index violation, citing the offending
// value per spec §7 ("messages cite the offending value").
func DuplicateKeyErr(collection, index, field, value string) *Error {
	return New(CodeDuplicateKey, "E11000 duplicate key error collection: %s index: %s dup key: { %s: %q }", collection, index, field, value)
}

// DocumentTooLargeErr reports a document exceeding the configured size limit.
func DocumentTooLargeErr(size, limit int) *Error {
	return New(CodeDocumentTooLarge, "document size %d exceeds maximum %d", size, limit)
}

// InvalidLengthErr reports an attempt to drop the immutable _id_ index.
func InvalidLengthErr(msg string) *Error {
	return New(CodeInvalidLength, "%s", msg)
}

// NamespaceNotFoundErr reports an operation against a collection with no metadata.
func NamespaceNotFoundErr(name string) *Error {
	return New(CodeNamespaceNotFound, "namespace not found: %s", name)
}

// IndexNotFoundErr reports a drop/lookup of an index that does not exist.
func IndexNotFoundErr(collection, index string) *Error {
	return New(CodeIndexNotFound, "index not found: %s.%s", collection, index)
}

// Internal wraps an unexpected KV substrate failure.
func Internal(cause error, context string) *Error {
	return Wrap(CodeInternalError, cause, "internal error: %s", context)
}
