// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

func TestValidator_Rules(t *testing.T) {
	tests := []struct {
		name   string
		rule   func(v *validate.Validator) *validate.Validator
		failed bool
	}{
		{"required_present", func(v *validate.Validator) *validate.Validator { return v.Required("f", "x") }, false},
		{"required_blank", func(v *validate.Validator) *validate.Validator { return v.Required("f", "  ") }, true},
		{"min_len_runes", func(v *validate.Validator) *validate.Validator { return v.MinLen("f", "ñañ", 3) }, false},
		{"min_len_short", func(v *validate.Validator) *validate.Validator { return v.MinLen("f", "ab", 3) }, true},
		{"max_len_runes", func(v *validate.Validator) *validate.Validator { return v.MaxLen("f", "ñañ", 3) }, false},
		{"max_len_long", func(v *validate.Validator) *validate.Validator { return v.MaxLen("f", "abcd", 3) }, true},
		{"max_bytes_multibyte", func(v *validate.Validator) *validate.Validator { return v.MaxBytes("f", "ñañ", 3) }, true},
		{"max_bytes_ascii", func(v *validate.Validator) *validate.Validator { return v.MaxBytes("f", "abc", 3) }, false},
		{"email_bare", func(v *validate.Validator) *validate.Validator { return v.Email("f", "test@example.com") }, false},
		{"email_no_domain", func(v *validate.Validator) *validate.Validator { return v.Email("f", "test@") }, true},
		{"email_display_name", func(v *validate.Validator) *validate.Validator { return v.Email("f", "Test <test@example.com>") }, true},
		{"email_empty", func(v *validate.Validator) *validate.Validator { return v.Email("f", "") }, true},
		{"custom_passes", func(v *validate.Validator) *validate.Validator { return v.Custom("f", false, "nope") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.rule(&validate.Validator{})
			assert.Equal(t, tt.failed, v.HasErrors())

			if !tt.failed {
				assert.NoError(t, v.Err())
				return
			}
			appErr := apperr.As(v.Err())
			require.NotNil(t, appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			assert.Equal(t, "f", appErr.Details[0].Field)
		})
	}
}

func TestValidator_AccumulatesInOrder(t *testing.T) {
	err := (&validate.Validator{}).
		Required("name", "").
		MinLen("password", "a", 5).
		Email("email", "not-an-email").
		Custom("password", false, "unchanged").
		Err()

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	require.Len(t, appErr.Details, 3)

	fields := []string{appErr.Details[0].Field, appErr.Details[1].Field, appErr.Details[2].Field}
	assert.Equal(t, []string{"name", "password", "email"}, fields)
}
