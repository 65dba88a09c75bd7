// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate accumulates field errors for a request body and turns them
// into one VALIDATION_ERROR. Messages are fixed strings; parser output is
// never echoed to clients.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
)

// ErrInvalidJSON is returned when a request body does not decode.
var ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")

// Validator collects failures from chained rules. The zero value is ready to
// use; it is not safe for concurrent use.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails on an empty or whitespace-only value.
func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(field, strings.TrimSpace(value) == "", "This field is required")
}

// MinLen counts characters, not bytes.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	return v.Custom(field, utf8.RuneCountInString(value) < min, fmt.Sprintf("Minimum %d characters", min))
}

// MaxLen counts characters, not bytes.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	return v.Custom(field, utf8.RuneCountInString(value) > max, fmt.Sprintf("Maximum %d characters", max))
}

// MaxBytes bounds the encoded length, for sinks such as bcrypt that truncate.
func (v *Validator) MaxBytes(field, value string, max int) *Validator {
	return v.Custom(field, len(value) > max, fmt.Sprintf("Maximum %d bytes", max))
}

// Email accepts a bare address only; "Name <a@b.c>" is rejected.
func (v *Validator) Email(field, value string) *Validator {
	address, err := mail.ParseAddress(value)
	return v.Custom(field, err != nil || address.Address != value, "Must be a valid email address")
}

// Custom records message against field when failed is true.
//
//	v.Custom("password", !hasDigit, "Must contain a digit")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
	}
	return v
}

// HasErrors reports whether any rule has failed so far.
func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

// Err ends the chain: nil when every rule passed, otherwise a
// VALIDATION_ERROR carrying each failure in the order recorded.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}
