// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/extcontrol/internal/platform/dberr"
	"github.com/taibuivan/extcontrol/internal/platform/postgres"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/pkg/uuid"
)

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] over users.account
// and users.admin_role.
//
// # Error Mapping
//
// pgx.ErrNoRows becomes [ErrAccountNotFound] and a unique violation on the
// email index becomes [ErrEmailTaken]. Everything else is wrapped and returned.
type PostgresAccountRepository struct {
	db      postgres.DBTX
	nowFunc func() time.Time
}

// NewPostgresAccountRepository creates a repository over a pool, transaction or mock.
func NewPostgresAccountRepository(db postgres.DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db, nowFunc: time.Now}
}

const accountColumns = `id, email, name, passwordhash, subscriptiontier, subscriptionexpiresat, createdat, updatedat`

/*
FindByID fetches a live account by primary key. An id that is not a UUID
cannot match the column and is reported as not found without a query.
*/
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	if !uuid.Valid(id) {
		return nil, ErrAccountNotFound
	}
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE id = $1 AND deletedat IS NULL`
	return repository.scanOne(ctx, "find_by_id", query, id)
}

/*
FindByEmail fetches a live account by email, ignoring case.
*/
func (repository *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users.account WHERE lower(email) = lower($1) AND deletedat IS NULL`
	return repository.scanOne(ctx, "find_by_email", query, email)
}

func (repository *PostgresAccountRepository) scanOne(ctx context.Context, operation, query string, argument string) (*Account, error) {
	var (
		account   Account
		tier      string
		expiresAt *time.Time
	)

	err := repository.db.QueryRow(ctx, query, argument).Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&tier,
		&expiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("postgres_account_repo_%s_failed: %w", operation, err)
	}

	account.SubscriptionTier = sec.Tier(tier)
	account.SubscriptionExpiresAt = expiresAt
	return &account, nil
}

/*
Create inserts a new account row. New accounts always start on the free tier
unless the caller sets a tier explicitly.
*/
func (repository *PostgresAccountRepository) Create(ctx context.Context, account *Account) error {
	const query = `
		INSERT INTO users.account (
			id, email, name, passwordhash, subscriptiontier, subscriptionexpiresat, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := repository.nowFunc()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.SubscriptionTier == "" {
		account.SubscriptionTier = sec.TierFree
	}

	_, err := repository.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Name,
		account.PasswordHash,
		string(account.SubscriptionTier),
		account.SubscriptionExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
UpdatePasswordHash replaces the stored hash for a live account.
*/
func (repository *PostgresAccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users.account SET passwordhash = $2, updatedat = $3 WHERE id = $1 AND deletedat IS NULL`

	tag, err := repository.db.Exec(ctx, query, id, passwordHash, repository.nowFunc())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

/*
IsAdmin checks the admin_role marker table.
*/
func (repository *PostgresAccountRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if !uuid.Valid(userID) {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM users.admin_role WHERE userid = $1)`

	var exists bool
	if err := repository.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_account_repo_is_admin_failed: %w", err)
	}
	return exists, nil
}
