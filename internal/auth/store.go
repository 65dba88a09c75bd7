// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

var (
	// ErrAccountNotFound is returned when no live account matches the lookup.
	ErrAccountNotFound = errors.New("auth: account not found")

	// ErrEmailTaken is returned when an email is already registered.
	ErrEmailTaken = errors.New("auth: email already registered")
)

// # Account Data Access

// AccountRepository defines the data access contract for user accounts.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Returns:
		  - *Account: Hydrated entity (Role left empty)
		  - error: [ErrAccountNotFound] or storage failures
	*/
	FindByID(ctx context.Context, id string) (*Account, error)

	/*
		FindByEmail returns the account with the given email, case-insensitively.

		Returns:
		  - *Account: Hydrated entity including PasswordHash
		  - error: [ErrAccountNotFound] or storage failures
	*/
	FindByEmail(ctx context.Context, email string) (*Account, error)

	/*
		Create persists a brand-new account.

		Returns:
		  - error: [ErrEmailTaken] on a duplicate email, or storage failures
	*/
	Create(ctx context.Context, account *Account) error

	// UpdatePasswordHash replaces only the stored password hash.
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// IsAdmin reports whether an admin_role marker exists for the user.
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// # Authoritative Directory

// AccountDirectory resolves the current account state for a user id.
//
// It is the single source of truth for roles: both token issuance and fresh
// entitlement checks read the admin_role marker through it, so the token
// claim and the marker cannot drift apart beyond one token lifetime.
type AccountDirectory struct {
	accounts AccountRepository
}

// NewAccountDirectory creates a directory over the given repository.
func NewAccountDirectory(accounts AccountRepository) *AccountDirectory {
	return &AccountDirectory{accounts: accounts}
}

// Resolve loads the account and derives its role from the admin_role marker.
func (directory *AccountDirectory) Resolve(ctx context.Context, userID string) (*Account, error) {
	account, err := directory.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := directory.applyRole(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ResolvePrincipal is [AccountDirectory.Resolve] projected onto a principal.
func (directory *AccountDirectory) ResolvePrincipal(ctx context.Context, userID string) (sec.Principal, error) {
	account, err := directory.Resolve(ctx, userID)
	if err != nil {
		return sec.Principal{}, err
	}
	return account.Principal(), nil
}

func (directory *AccountDirectory) applyRole(ctx context.Context, account *Account) error {
	isAdmin, err := directory.accounts.IsAdmin(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("auth_directory_admin_lookup_failed: %w", err)
	}

	account.Role = sec.RoleUser
	if isAdmin {
		account.Role = sec.RoleAdmin
	}
	return nil
}
