// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
)

/*
TestPasswordPolicy_Default exercises each complexity rule.
*/
func TestPasswordPolicy_Default(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		failures int
	}{
		{"valid", "Secret123", 0},
		{"too_short", "Ab1", 1},
		{"no_upper", "secret123", 1},
		{"no_lower", "SECRET123", 1},
		{"no_digit", "SecretPass", 1},
		{"legacy_six_chars", "abcdef", 3},
		{"too_long_for_bcrypt", "Aa1" + strings.Repeat("x", 70), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate("password", tt.password)
			if tt.failures == 0 {
				assert.NoError(t, err)
				return
			}
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apperr.CodeValidation, ae.Code)
			assert.Len(t, ae.Details, tt.failures)
		})
	}
}

/*
TestPasswordPolicy_LegacyIsConfigurable shows the 6-character rule is only reachable through config.
*/
func TestPasswordPolicy_LegacyIsConfigurable(t *testing.T) {
	legacy := PasswordPolicy{MinLength: 6}
	assert.NoError(t, legacy.Validate("password", "abcdef"))
	assert.Error(t, legacy.Validate("password", "abcde"))
}
