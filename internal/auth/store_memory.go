// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

// MemoryAccountRepository keeps accounts in process memory.
//
// It backs development runs without DATABASE_URL and the service tests.
// Returned accounts are copies, so callers cannot mutate stored state.
type MemoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
	admins  map[string]struct{}
	nowFunc func() time.Time
}

// NewMemoryAccountRepository creates an empty in-memory repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
		admins:  make(map[string]struct{}),
		nowFunc: time.Now,
	}
}

func (repository *MemoryAccountRepository) FindByID(_ context.Context, id string) (*Account, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	account, ok := repository.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (repository *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	repository.mu.RLock()
	id, ok := repository.byEmail[strings.ToLower(email)]
	repository.mu.RUnlock()

	if !ok {
		return nil, ErrAccountNotFound
	}
	return repository.FindByID(ctx, id)
}

func (repository *MemoryAccountRepository) Create(_ context.Context, account *Account) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	key := strings.ToLower(account.Email)
	if _, taken := repository.byEmail[key]; taken {
		return ErrEmailTaken
	}

	now := repository.nowFunc()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	clone := *account
	repository.byID[account.ID] = &clone
	repository.byEmail[key] = account.ID
	return nil
}

func (repository *MemoryAccountRepository) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = repository.nowFunc()
	return nil
}

func (repository *MemoryAccountRepository) IsAdmin(_ context.Context, userID string) (bool, error) {
	repository.mu.RLock()
	defer repository.mu.RUnlock()

	_, ok := repository.admins[userID]
	return ok, nil
}

// GrantAdmin adds the admin_role marker for a user.
func (repository *MemoryAccountRepository) GrantAdmin(userID string) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	repository.admins[userID] = struct{}{}
}

// RevokeAdmin removes the admin_role marker for a user.
func (repository *MemoryAccountRepository) RevokeAdmin(userID string) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	delete(repository.admins, userID)
}

// SetSubscription overwrites the subscription state of an account.
func (repository *MemoryAccountRepository) SetSubscription(userID string, tier sec.Tier, expiresAt *time.Time) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	account, ok := repository.byID[userID]
	if !ok {
		return ErrAccountNotFound
	}
	account.SubscriptionTier = tier
	account.SubscriptionExpiresAt = expiresAt
	account.UpdatedAt = repository.nowFunc()
	return nil
}
