// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the one error type the API exposes to clients.

An [AppError] pairs a stable machine code with a client-safe message and the
HTTP status it renders as. The underlying cause travels with it for logs and
is never serialized. Services return AppErrors; anything else that reaches
[respond.Error] is treated as an internal failure.
*/
package apperr

import (
	"errors"
	"net/http"
)

// # Error Codes

const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

// AppError is rendered by [respond.Error] as {success,error,code,details}.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"error"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns the client-safe message, never the cause.
func (e *AppError) Error() string { return e.Message }

// Unwrap exposes the cause to [errors.Is] and [errors.As].
func (e *AppError) Unwrap() error { return e.Cause }

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// # 4xx

// Unauthorized is a 401 with a caller-chosen message.
func Unauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// TokenExpired is the 401 that tells the client to refresh rather than re-login.
func TokenExpired() *AppError {
	return newError(http.StatusUnauthorized, CodeTokenExpired, "Token expired")
}

func Forbidden(message string) *AppError {
	return newError(http.StatusForbidden, CodeForbidden, message)
}

func Conflict(message string) *AppError {
	return newError(http.StatusConflict, CodeConflict, message)
}

// ValidationError is a 400 carrying per-field details when there are any.
func ValidationError(message string, details ...FieldError) *AppError {
	err := newError(http.StatusBadRequest, CodeValidation, message)
	err.Details = details
	return err
}

// RateLimited never says how many attempts remain or when the block lifts.
func RateLimited() *AppError {
	return newError(http.StatusTooManyRequests, CodeRateLimited, "Too many attempts. Please try again later.")
}

// # 5xx

// Internal hides cause behind a generic message.
func Internal(cause error) *AppError {
	err := newError(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
	err.Cause = cause
	return err
}

// NotImplemented reports an operation the current configuration does not offer.
func NotImplemented(message string) *AppError {
	return newError(http.StatusNotImplemented, CodeNotImplemented, message)
}

// As returns the first [*AppError] in err's chain, or nil.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
