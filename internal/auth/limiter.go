// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"container/list"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// # Attempt Limiting

// Policy holds the attempt-limiting knobs.
type Policy struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultPolicy returns 5 attempts per 15 minute window with a 30 minute block.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 30 * time.Minute,
	}
}

// AttemptLimiter tracks failed authentication attempts per identifier.
//
// All three operations are atomic per identifier. A missing entry is a valid,
// not-blocked state.
type AttemptLimiter interface {
	IsBlocked(ctx context.Context, identifier string) (bool, error)
	RecordAttempt(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Identifier builds the limiter key for a client address and email.
// Email case is folded so "A@x.io" and "a@x.io" share a counter.
func Identifier(clientIP, email string) string {
	return clientIP + "-" + strings.ToLower(strings.TrimSpace(email))
}

// # In-Memory Limiter

type attemptEntry struct {
	identifier  string
	count       int
	lastAttempt time.Time
}

// MemoryLimiter is the process-local [AttemptLimiter].
//
// Entries live in a map plus a recency list. A full table evicts the stalest
// entry that is not blocking, which bounds memory under identifier flooding
// without lifting live blocks. When only blocked entries remain, the new
// identifier goes untracked. [MemoryLimiter.Run] sweeps expired entries.
type MemoryLimiter struct {
	mu         sync.Mutex
	policy     Policy
	maxEntries int
	entries    map[string]*list.Element
	recency    *list.List
	nowFunc    func() time.Time
}

// NewMemoryLimiter creates a limiter holding at most maxEntries identifiers.
// A non-positive maxEntries disables the bound.
func NewMemoryLimiter(policy Policy, maxEntries int) *MemoryLimiter {
	return &MemoryLimiter{
		policy:     policy,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		recency:    list.New(),
		nowFunc:    time.Now,
	}
}

// WithClock replaces the time source. It must be called before the limiter is shared.
func (limiter *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	limiter.nowFunc = now
	return limiter
}

// IsBlocked reports whether identifier has reached MaxAttempts within the
// block duration. An entry whose window has elapsed is deleted on the spot.
func (limiter *MemoryLimiter) IsBlocked(_ context.Context, identifier string) (bool, error) {
	now := limiter.nowFunc()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	element, ok := limiter.entries[identifier]
	if !ok {
		return false, nil
	}

	entry := element.Value.(*attemptEntry)
	if now.Sub(entry.lastAttempt) > limiter.policy.Window {
		limiter.remove(element)
		return false, nil
	}

	return limiter.blocks(entry, now), nil
}

func (limiter *MemoryLimiter) blocks(entry *attemptEntry, now time.Time) bool {
	return entry.count >= limiter.policy.MaxAttempts && now.Sub(entry.lastAttempt) < limiter.policy.BlockDuration
}

// RecordAttempt counts one failed attempt. A missing or expired entry
// restarts at 1.
func (limiter *MemoryLimiter) RecordAttempt(_ context.Context, identifier string) error {
	now := limiter.nowFunc()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	if element, ok := limiter.entries[identifier]; ok {
		entry := element.Value.(*attemptEntry)
		if now.Sub(entry.lastAttempt) > limiter.policy.Window {
			entry.count = 0
		}
		entry.count++
		entry.lastAttempt = now
		limiter.recency.MoveToFront(element)
		return nil
	}

	if limiter.maxEntries > 0 && len(limiter.entries) >= limiter.maxEntries {
		limiter.sweepLocked(now)
		if len(limiter.entries) >= limiter.maxEntries && !limiter.evictUnblocked(now) {
			// Every candidate is a live block; dropping one would lift it.
			return nil
		}
	}

	entry := &attemptEntry{identifier: identifier, count: 1, lastAttempt: now}
	limiter.entries[identifier] = limiter.recency.PushFront(entry)
	return nil
}

// Reset deletes the entry for identifier.
func (limiter *MemoryLimiter) Reset(_ context.Context, identifier string) error {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	if element, ok := limiter.entries[identifier]; ok {
		limiter.remove(element)
	}
	return nil
}

// Len returns the number of tracked identifiers.
func (limiter *MemoryLimiter) Len() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.entries)
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (limiter *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes every entry whose window has elapsed.
func (limiter *MemoryLimiter) Sweep() int {
	now := limiter.nowFunc()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return limiter.sweepLocked(now)
}

// sweepLocked walks from the stalest entry and stops at the first live one.
func (limiter *MemoryLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for element := limiter.recency.Back(); element != nil; {
		entry := element.Value.(*attemptEntry)
		if now.Sub(entry.lastAttempt) <= limiter.policy.Window {
			break
		}
		previous := element.Prev()
		limiter.remove(element)
		removed++
		element = previous
	}
	return removed
}

// evictionScanLimit caps how far a full table looks for an unblocked victim.
const evictionScanLimit = 64

// evictUnblocked removes the stalest entry that is not currently blocking,
// looking at most evictionScanLimit entries from the back.
func (limiter *MemoryLimiter) evictUnblocked(now time.Time) bool {
	element := limiter.recency.Back()
	for scanned := 0; element != nil && scanned < evictionScanLimit; scanned++ {
		if !limiter.blocks(element.Value.(*attemptEntry), now) {
			limiter.remove(element)
			return true
		}
		element = element.Prev()
	}
	return false
}

func (limiter *MemoryLimiter) remove(element *list.Element) {
	entry := limiter.recency.Remove(element).(*attemptEntry)
	delete(limiter.entries, entry.identifier)
}

// # Fallback

// FallbackLimiter prefers a shared limiter and degrades to a local one when
// the shared store errors. It never returns an error, so callers keep the
// "limiter cannot fail" contract even while Redis is down.
type FallbackLimiter struct {
	primary  AttemptLimiter
	fallback AttemptLimiter
	logger   *slog.Logger
}

// NewFallbackLimiter wraps primary with fallback.
func NewFallbackLimiter(primary, fallback AttemptLimiter, logger *slog.Logger) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, fallback: fallback, logger: logger}
}

func (limiter *FallbackLimiter) IsBlocked(ctx context.Context, identifier string) (bool, error) {
	blocked, err := limiter.primary.IsBlocked(ctx, identifier)
	if err == nil {
		return blocked, nil
	}
	limiter.degraded(ctx, "is_blocked", err)
	return limiter.fallback.IsBlocked(ctx, identifier)
}

func (limiter *FallbackLimiter) RecordAttempt(ctx context.Context, identifier string) error {
	// The local table always counts, so it is warm if the primary drops out.
	_ = limiter.fallback.RecordAttempt(ctx, identifier)
	if err := limiter.primary.RecordAttempt(ctx, identifier); err != nil {
		limiter.degraded(ctx, "record_attempt", err)
	}
	return nil
}

func (limiter *FallbackLimiter) Reset(ctx context.Context, identifier string) error {
	_ = limiter.fallback.Reset(ctx, identifier)
	if err := limiter.primary.Reset(ctx, identifier); err != nil {
		limiter.degraded(ctx, "reset", err)
	}
	return nil
}

func (limiter *FallbackLimiter) degraded(ctx context.Context, operation string, err error) {
	limiterFallbackTotal.WithLabelValues(operation).Inc()
	limiter.logger.WarnContext(ctx, "login_limiter_degraded",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
