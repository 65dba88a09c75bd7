// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing) from
// the domain logic. It acts as an infrastructure service injected into the
// application layer through small interfaces declared by the consumers.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Token Errors

var (
	// ErrSigningSecretMissing is returned at construction time when no
	// signing secret is configured. It is a startup failure.
	ErrSigningSecretMissing = errors.New("sec: signing secret is not configured")

	// ErrTokenExpired reports a well-formed, correctly signed token past its exp.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// # Token Types

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessClaims represents the payload embedded inside an access token.
//
// # Why custom claims?
//
// Embedding identity and entitlement fields lets [auth.Gate] rebuild the
// principal without a database round-trip. The entitlement fields are a
// snapshot and go stale until the token is reissued.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID                string           `json:"uid"`
	Email                 string           `json:"email"`
	Role                  UserRole         `json:"rol"`
	Tier                  Tier             `json:"tier"`
	SubscriptionExpiresAt *jwt.NumericDate `json:"sub_exp,omitempty"`
	Type                  string           `json:"typ"`
}

// Principal converts the claims into the request principal.
func (claims *AccessClaims) Principal() Principal {
	principal := Principal{
		UserID:           claims.UserID,
		Email:            claims.Email,
		Role:             claims.Role,
		SubscriptionTier: claims.Tier,
		TokenID:          claims.ID,
	}
	if claims.SubscriptionExpiresAt != nil {
		expiresAt := claims.SubscriptionExpiresAt.Time
		principal.SubscriptionExpiresAt = &expiresAt
	}
	if claims.ExpiresAt != nil {
		principal.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return principal
}

// RefreshClaims carries only the user id. A refresh token cannot authorize
// resource access; it must be exchanged for a new access token.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
	Type   string `json:"typ"`
}

// TokenService issues and verifies HS256 access and refresh tokens.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

// NewTokenService creates a new TokenService.
//
// It fails with [ErrSigningSecretMissing] when secret is empty.
func NewTokenService(secret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrSigningSecretMissing
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("sec: token lifetimes must be positive (access=%s, refresh=%s)", accessTTL, refreshTTL)
	}

	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowFunc:    time.Now,
	}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *service
	clone.nowFunc = now
	return &clone
}

// AccessTTL returns the configured access-token lifetime.
func (service *TokenService) AccessTTL() time.Duration { return service.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// # Issuance

// IssueAccessToken signs an access token embedding the principal's identity
// and entitlement snapshot.
func (service *TokenService) IssueAccessToken(principal Principal) (string, error) {
	currentTime := service.nowFunc()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.UserID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.accessTTL)),
		},
		UserID: principal.UserID,
		Email:  principal.Email,
		Role:   principal.Role,
		Tier:   principal.SubscriptionTier,
		Type:   TokenTypeAccess,
	}
	if principal.SubscriptionExpiresAt != nil {
		claims.SubscriptionExpiresAt = jwt.NewNumericDate(*principal.SubscriptionExpiresAt)
	}

	return service.sign(claims)
}

// IssueRefreshToken signs a refresh token carrying only the user id.
func (service *TokenService) IssueRefreshToken(userID string) (string, error) {
	currentTime := service.nowFunc()

	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.refreshTTL)),
		},
		UserID: userID,
		Type:   TokenTypeRefresh,
	}

	return service.sign(claims)
}

func (service *TokenService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signedToken, nil
}

// # Verification

// Verify validates an access token and returns its claims, or nil on any
// failure. Callers treat nil uniformly as unauthenticated.
func (service *TokenService) Verify(tokenString string) *AccessClaims {
	claims, err := service.Inspect(tokenString)
	if err != nil {
		return nil
	}
	return claims
}

// Inspect validates an access token like [TokenService.Verify] but reports
// the failure class: [ErrTokenExpired] or [ErrTokenInvalid].
func (service *TokenService) Inspect(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.Type != TokenTypeAccess || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims, or nil on failure.
func (service *TokenService) VerifyRefresh(tokenString string) *RefreshClaims {
	claims := &RefreshClaims{}
	if err := service.parse(tokenString, claims); err != nil {
		return nil
	}

	if claims.Type != TokenTypeRefresh || claims.UserID == "" {
		return nil
	}

	return claims
}

func (service *TokenService) parse(tokenString string, claims jwt.Claims) error {
	if tokenString == "" {
		return ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(service.nowFunc),
	}
	if service.issuer != "" {
		options = append(options, jwt.WithIssuer(service.issuer))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}
