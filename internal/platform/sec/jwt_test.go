// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func newTokenService(t *testing.T) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService(testSecret, "extcontrol.test", 24*time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	return service
}

func samplePrincipal() sec.Principal {
	expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return sec.Principal{
		UserID:                "8b1a4c1e-0000-7000-8000-000000000001",
		Email:                 "tai@example.com",
		Role:                  sec.RoleAdmin,
		SubscriptionTier:      sec.TierPremium,
		SubscriptionExpiresAt: &expiresAt,
	}
}

/*
TestNewTokenService_MissingSecret verifies that an unset secret is a construction failure.
*/
func TestNewTokenService_MissingSecret(t *testing.T) {
	service, err := sec.NewTokenService("", "extcontrol.test", time.Hour, time.Hour)

	assert.Nil(t, service)
	assert.ErrorIs(t, err, sec.ErrSigningSecretMissing)
}

/*
TestTokenService_AccessRoundTrip checks that verified claims equal the issued principal.
*/
func TestTokenService_AccessRoundTrip(t *testing.T) {
	service := newTokenService(t)
	principal := samplePrincipal()

	token, err := service.IssueAccessToken(principal)
	require.NoError(t, err)

	claims := service.Verify(token)
	require.NotNil(t, claims)

	got := claims.Principal()
	assert.Equal(t, principal.UserID, got.UserID)
	assert.Equal(t, principal.Email, got.Email)
	assert.Equal(t, principal.Role, got.Role)
	assert.Equal(t, principal.SubscriptionTier, got.SubscriptionTier)
	require.NotNil(t, got.SubscriptionExpiresAt)
	assert.True(t, principal.SubscriptionExpiresAt.Equal(*got.SubscriptionExpiresAt))
	assert.NotEmpty(t, got.TokenID)

	// Lifetime is exactly the configured access TTL
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

/*
TestTokenService_AccessRoundTrip_NoExpiry keeps a non-expiring subscription absent.
*/
func TestTokenService_AccessRoundTrip_NoExpiry(t *testing.T) {
	service := newTokenService(t)
	principal := samplePrincipal()
	principal.SubscriptionExpiresAt = nil

	token, err := service.IssueAccessToken(principal)
	require.NoError(t, err)

	claims := service.Verify(token)
	require.NotNil(t, claims)
	assert.Nil(t, claims.Principal().SubscriptionExpiresAt)
}

/*
TestTokenService_TamperDetection flips every byte of a valid token.
*/
func TestTokenService_TamperDetection(t *testing.T) {
	service := newTokenService(t)

	token, err := service.IssueAccessToken(samplePrincipal())
	require.NoError(t, err)
	require.NotNil(t, service.Verify(token))

	for i := 0; i < len(token); i++ {
		tampered := []byte(token)
		tampered[i] ^= 0x01

		assert.Nil(t, service.Verify(string(tampered)), "byte %d flipped", i)
	}
}

/*
TestTokenService_ExpiredToken rejects a token whose exp is in the past.
*/
func TestTokenService_ExpiredToken(t *testing.T) {
	service := newTokenService(t)
	past := service.WithClock(func() time.Time { return time.Now().Add(-25 * time.Hour) })

	token, err := past.IssueAccessToken(samplePrincipal())
	require.NoError(t, err)

	assert.Nil(t, service.Verify(token))

	_, err = service.Inspect(token)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestTokenService_Inspect_Invalid classifies malformed and foreign-signed tokens.
*/
func TestTokenService_Inspect_Invalid(t *testing.T) {
	service := newTokenService(t)

	other, err := sec.NewTokenService("another-secret-that-is-also-32-bytes!", "extcontrol.test", time.Hour, time.Hour)
	require.NoError(t, err)
	foreign, err := other.IssueAccessToken(samplePrincipal())
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"two_segments", "abc.def"},
		{"foreign_signature", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Inspect(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, sec.ErrTokenInvalid)
		})
	}
}

/*
TestTokenService_RefreshIsMinimal checks refresh tokens carry no entitlement claims
and cannot be used as access tokens.
*/
func TestTokenService_RefreshIsMinimal(t *testing.T) {
	service := newTokenService(t)
	principal := samplePrincipal()

	refresh, err := service.IssueRefreshToken(principal.UserID)
	require.NoError(t, err)

	// 1. Refresh verifies as refresh
	claims := service.VerifyRefresh(refresh)
	require.NotNil(t, claims)
	assert.Equal(t, principal.UserID, claims.UserID)
	assert.Equal(t, 7*24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))

	// 2. Refresh never verifies as access
	assert.Nil(t, service.Verify(refresh))

	// 3. Payload has no role or tier
	segments := strings.Split(refresh, ".")
	require.Len(t, segments, 3)
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.NotContains(t, raw, "rol")
	assert.NotContains(t, raw, "tier")
	assert.NotContains(t, raw, "email")
	assert.Equal(t, "refresh", raw["typ"])
}

/*
TestTokenService_AccessIsNotRefresh keeps the two token types apart.
*/
func TestTokenService_AccessIsNotRefresh(t *testing.T) {
	service := newTokenService(t)

	access, err := service.IssueAccessToken(samplePrincipal())
	require.NoError(t, err)

	assert.Nil(t, service.VerifyRefresh(access))
}
