// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
)

// # Token Revocation

// RevocationList records token ids that must be rejected before their natural expiry.
type RevocationList interface {
	// Revoke denylists tokenID until expiresAt. It reports false when the id
	// was already revoked, which lets refresh rotation detect reuse atomically.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether tokenID is currently denylisted.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationList is a process-local [RevocationList].
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	nowFunc func() time.Time
}

// NewMemoryRevocationList creates an empty denylist.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{entries: make(map[string]time.Time), nowFunc: time.Now}
}

// WithClock replaces the time source. It must be called before the list is shared.
func (list *MemoryRevocationList) WithClock(now func() time.Time) *MemoryRevocationList {
	list.nowFunc = now
	return list
}

func (list *MemoryRevocationList) Revoke(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	now := list.nowFunc()

	list.mu.Lock()
	defer list.mu.Unlock()

	if existing, ok := list.entries[tokenID]; ok && existing.After(now) {
		return false, nil
	}
	if !expiresAt.After(now) {
		// Already expired tokens are rejected by the verifier anyway.
		return true, nil
	}
	list.entries[tokenID] = expiresAt
	return true, nil
}

func (list *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	now := list.nowFunc()

	list.mu.Lock()
	defer list.mu.Unlock()

	expiresAt, ok := list.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(now) {
		delete(list.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Run drops expired ids every interval until ctx is cancelled.
func (list *MemoryRevocationList) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := list.nowFunc()
			list.mu.Lock()
			for tokenID, expiresAt := range list.entries {
				if !expiresAt.After(now) {
					delete(list.entries, tokenID)
				}
			}
			list.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// RedisRevocationList shares the denylist across processes. Keys expire with
// the token, so the list never outgrows the set of live revoked tokens.
type RedisRevocationList struct {
	client  redis.UniversalClient
	prefix  string
	nowFunc func() time.Time
}

// NewRedisRevocationList creates a denylist under [constants.RedisPrefixRevokedToken].
func NewRedisRevocationList(client redis.UniversalClient) *RedisRevocationList {
	return &RedisRevocationList{client: client, prefix: constants.RedisPrefixRevokedToken, nowFunc: time.Now}
}

func (list *RedisRevocationList) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	remaining := expiresAt.Sub(list.nowFunc())
	if remaining <= 0 {
		return true, nil
	}

	// Sub-millisecond remainders would round to "no expiry" in Redis.
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}

	created, err := list.client.SetNX(ctx, list.prefix+tokenID, 1, remaining).Result()
	if err != nil {
		return false, fmt.Errorf("redis_revocation_set_failed: %w", err)
	}
	return created, nil
}

func (list *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := list.client.Exists(ctx, list.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis_revocation_lookup_failed: %w", err)
	}
	return count > 0, nil
}
