package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-facing classification of a failure.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInvalidQuantity   Code = "INVALID_QUANTITY"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeLockBusy          Code = "LOCK_BUSY"
	CodeShopMismatch      Code = "SHOP_MISMATCH"
)

// Metadata drives how a code is rendered at the HTTP edge.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	final     = false
	retryable = true
	opaque    = false
	detailed  = true
)

func meta(status int, retry bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, final, "validation failed", detailed),
	CodeUnauthorized:  meta(http.StatusUnauthorized, final, "authentication required", opaque),
	CodeForbidden:     meta(http.StatusForbidden, final, "access denied", opaque),
	CodeNotFound:      meta(http.StatusNotFound, final, "resource not found", opaque),
	CodeConflict:      meta(http.StatusConflict, final, "conflict detected", opaque),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, final, "state transition disallowed", detailed),
	CodeIdempotency:   meta(http.StatusConflict, final, "idempotency key reused", detailed),
	CodeInternal:      meta(http.StatusInternalServerError, retryable, "internal server error", opaque),
	CodeDependency:    meta(http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed),

	CodeInvalidQuantity:   meta(http.StatusBadRequest, final, "quantity must be a positive integer", detailed),
	CodeInsufficientStock: meta(http.StatusConflict, final, "not enough stock", detailed),
	// nothing was applied, so the caller may resend the whole request
	CodeLockBusy:     meta(http.StatusConflict, retryable, "inventory unit is busy, retry later", opaque),
	CodeShopMismatch: meta(http.StatusConflict, final, "payment belongs to orders of another shop", detailed),
}

// MetadataFor returns the rendering rules for code. Unknown codes render as
// internal errors.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure with an optional cause and client details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the typed code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a caller may retry the operation that produced
// err. Untyped errors are treated as internal failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
