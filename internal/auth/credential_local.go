// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/pkg/uuid"
)

// LocalCredentials is the self-managed [CredentialBackend].
//
// Passwords are stored as bcrypt hashes on users.account. When the email is
// unknown a dummy hash is still compared so response time does not reveal
// whether the account exists.
type LocalCredentials struct {
	accounts AccountRepository
}

// NewLocalCredentials creates a backend over the account repository.
func NewLocalCredentials(accounts AccountRepository) *LocalCredentials {
	return &LocalCredentials{accounts: accounts}
}

func (credentials *LocalCredentials) Verify(ctx context.Context, email, password string) (*VerifiedIdentity, error) {
	account, err := credentials.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			sec.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	// Accounts provisioned from the identity provider carry no local hash.
	if account.PasswordHash == "" {
		sec.BurnPasswordCheck(password)
		return nil, ErrInvalidCredentials
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &VerifiedIdentity{ExternalUserID: account.ID, Email: account.Email}, nil
}

func (credentials *LocalCredentials) Enroll(ctx context.Context, email, password, name string) (*VerifiedIdentity, error) {
	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth_local_hash_failed: %w", err)
	}

	account := &Account{
		ID:               uuid.New(),
		Email:            email,
		Name:             name,
		PasswordHash:     hashedPassword,
		SubscriptionTier: sec.TierFree,
	}

	if err := credentials.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth_local_enroll_failed: %w", err)
	}

	return &VerifiedIdentity{ExternalUserID: account.ID, Email: account.Email}, nil
}

func (credentials *LocalCredentials) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	account, err := credentials.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("auth_local_change_password_lookup_failed: %w", err)
	}

	if account.PasswordHash == "" || !sec.CheckPasswordHash(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_local_hash_failed: %w", err)
	}

	if err := credentials.accounts.UpdatePasswordHash(ctx, account.ID, hashedPassword); err != nil {
		return fmt.Errorf("auth_local_change_password_failed: %w", err)
	}
	return nil
}
