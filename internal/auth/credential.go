// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
)

// # Credential Verification

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	// The two cases are never distinguished.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrProviderUnavailable means the credential backend could not answer:
	// timeout, network failure, 5xx, or an open circuit breaker.
	ErrProviderUnavailable = errors.New("auth: credential provider unavailable")

	// ErrEnrollmentRejected is returned when the backend refuses a sign-up for
	// a reason other than a duplicate email.
	ErrEnrollmentRejected = errors.New("auth: enrollment rejected")

	// ErrPasswordChangeUnsupported is returned by backends that do not manage passwords locally.
	ErrPasswordChangeUnsupported = errors.New("auth: password change not supported by this backend")
)

// VerifiedIdentity is what a credential backend vouches for.
type VerifiedIdentity struct {
	ExternalUserID string
	Email          string
}

// CredentialVerifier exchanges an email and password for a verified identity.
//
// Implementations return [ErrInvalidCredentials] or [ErrProviderUnavailable]
// (possibly wrapped). Backend error text stays in logs.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*VerifiedIdentity, error)
}

// AccountEnroller creates credentials for a new user.
type AccountEnroller interface {
	Enroll(ctx context.Context, email, password, name string) (*VerifiedIdentity, error)
}

// PasswordChanger replaces a user's password after checking the current one.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// CredentialBackend is implemented by both the identity provider adapter and
// the self-managed store.
type CredentialBackend interface {
	CredentialVerifier
	AccountEnroller
	PasswordChanger
}
