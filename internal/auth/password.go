// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"unicode"

	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

// bcryptMaxBytes is the longest input bcrypt accepts.
const bcryptMaxBytes = 72

// PasswordPolicy is the one password rule set every entry point applies
// (registration and password change).
type PasswordPolicy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

// DefaultPasswordPolicy is 8 characters with upper, lower and digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireDigit: true}
}

// Check adds a field error to validator for every rule password breaks.
func (policy PasswordPolicy) Check(validator *validate.Validator, field, password string) *validate.Validator {
	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	return validator.
		MinLen(field, password, policy.MinLength).
		MaxBytes(field, password, bcryptMaxBytes).
		Custom(field, policy.RequireUpper && !hasUpper, "Must contain an uppercase letter").
		Custom(field, policy.RequireLower && !hasLower, "Must contain a lowercase letter").
		Custom(field, policy.RequireDigit && !hasDigit, "Must contain a digit")
}

// Validate returns a VALIDATION_ERROR listing every broken rule, or nil.
func (policy PasswordPolicy) Validate(field, password string) error {
	return policy.Check(&validate.Validator{}, field, password).Err()
}
