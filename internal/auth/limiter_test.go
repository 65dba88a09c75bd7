// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// limiterFactory lets the memory and Redis limiters share one behavioural suite.
type limiterFactory func(t *testing.T, policy Policy, clock *fakeClock) AttemptLimiter

func memoryFactory(_ *testing.T, policy Policy, clock *fakeClock) AttemptLimiter {
	return NewMemoryLimiter(policy, 0).WithClock(clock.Now)
}

func redisFactory(t *testing.T, policy Policy, clock *fakeClock) AttemptLimiter {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, policy).WithClock(clock.Now)
}

func limiterFactories() map[string]limiterFactory {
	return map[string]limiterFactory{"memory": memoryFactory, "redis": redisFactory}
}

func recordN(t *testing.T, limiter AttemptLimiter, identifier string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, limiter.RecordAttempt(context.Background(), identifier))
	}
}

func blocked(t *testing.T, limiter AttemptLimiter, identifier string) bool {
	t.Helper()
	isBlocked, err := limiter.IsBlocked(context.Background(), identifier)
	require.NoError(t, err)
	return isBlocked
}

/*
TestLimiter_Threshold checks that exactly MaxAttempts failures block and one fewer does not.
*/
func TestLimiter_Threshold(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			limiter := factory(t, DefaultPolicy(), clock)
			id := Identifier("203.0.113.1", "tai@example.com")

			recordN(t, limiter, id, 4)
			assert.False(t, blocked(t, limiter, id))

			clock.Advance(time.Minute)
			recordN(t, limiter, id, 1)
			assert.True(t, blocked(t, limiter, id))

			// Other identifiers are unaffected
			assert.False(t, blocked(t, limiter, Identifier("203.0.113.2", "tai@example.com")))
		})
	}
}

/*
TestLimiter_WindowReset verifies lazy expiry and a fresh count after the window elapses.
*/
func TestLimiter_WindowReset(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			policy := DefaultPolicy()
			limiter := factory(t, policy, clock)
			id := Identifier("203.0.113.1", "tai@example.com")

			recordN(t, limiter, id, policy.MaxAttempts)
			require.True(t, blocked(t, limiter, id))

			clock.Advance(policy.Window + time.Millisecond)
			assert.False(t, blocked(t, limiter, id))

			// Fresh count: MaxAttempts-1 more does not block, one more does
			recordN(t, limiter, id, policy.MaxAttempts-1)
			assert.False(t, blocked(t, limiter, id))
			recordN(t, limiter, id, 1)
			assert.True(t, blocked(t, limiter, id))
		})
	}
}

/*
TestLimiter_RecordAfterWindowRestartsAtOne covers recordAttempt on an elapsed entry
without an intervening IsBlocked call.
*/
func TestLimiter_RecordAfterWindowRestartsAtOne(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			policy := Policy{MaxAttempts: 2, Window: time.Minute, BlockDuration: time.Minute}
			limiter := factory(t, policy, clock)

			recordN(t, limiter, "id", 1)
			clock.Advance(2 * time.Minute)
			recordN(t, limiter, "id", 1)

			assert.False(t, blocked(t, limiter, "id"))
		})
	}
}

/*
TestLimiter_BlockShorterThanWindow lifts the block when BlockDuration elapses first.
*/
func TestLimiter_BlockShorterThanWindow(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			policy := Policy{MaxAttempts: 3, Window: time.Hour, BlockDuration: 10 * time.Minute}
			limiter := factory(t, policy, clock)

			recordN(t, limiter, "id", 3)
			clock.Advance(9 * time.Minute)
			assert.True(t, blocked(t, limiter, "id"))

			clock.Advance(time.Minute)
			assert.False(t, blocked(t, limiter, "id"))
		})
	}
}

/*
TestLimiter_Reset deletes the entry.
*/
func TestLimiter_Reset(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			limiter := factory(t, DefaultPolicy(), newFakeClock())

			recordN(t, limiter, "id", 5)
			require.True(t, blocked(t, limiter, "id"))

			require.NoError(t, limiter.Reset(context.Background(), "id"))
			assert.False(t, blocked(t, limiter, "id"))

			// Resetting an unknown identifier is not an error
			assert.NoError(t, limiter.Reset(context.Background(), "unknown"))
		})
	}
}

/*
TestLimiter_ConcurrentAttemptsAreNotUndercounted races many goroutines on one identifier.
*/
func TestLimiter_ConcurrentAttemptsAreNotUndercounted(t *testing.T) {
	for name, factory := range limiterFactories() {
		t.Run(name, func(t *testing.T) {
			const workers = 50
			policy := Policy{MaxAttempts: workers, Window: time.Hour, BlockDuration: time.Hour}
			limiter := factory(t, policy, newFakeClock())

			var wg sync.WaitGroup
			for i := 0; i < workers-1; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, limiter.RecordAttempt(context.Background(), "id"))
				}()
			}
			wg.Wait()

			assert.False(t, blocked(t, limiter, "id"))
			recordN(t, limiter, "id", 1)
			assert.True(t, blocked(t, limiter, "id"))
		})
	}
}

/*
TestIdentifier folds email case and keeps the ip-email shape.
*/
func TestIdentifier(t *testing.T) {
	assert.Equal(t, "10.0.0.1-tai@example.com", Identifier("10.0.0.1", " Tai@Example.COM "))
}

/*
TestMemoryLimiter_EvictsStalestWhenFull bounds the table size.
*/
func TestMemoryLimiter_EvictsStalestWhenFull(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultPolicy(), 3).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		recordN(t, limiter, fmt.Sprintf("id-%d", i), 1)
		clock.Advance(time.Second)
	}

	// Touch id-0 so id-1 becomes the stalest
	recordN(t, limiter, "id-0", 1)
	recordN(t, limiter, "id-3", 1)

	assert.Equal(t, 3, limiter.Len())
	_, stillTracked := limiter.entries["id-1"]
	assert.False(t, stillTracked)
	_, touched := limiter.entries["id-0"]
	assert.True(t, touched)
}

/*
TestMemoryLimiter_FullTableKeepsBlocks never evicts a live block to make room.
*/
func TestMemoryLimiter_FullTableKeepsBlocks(t *testing.T) {
	clock := newFakeClock()
	policy := DefaultPolicy()
	limiter := NewMemoryLimiter(policy, 2).WithClock(clock.Now)

	recordN(t, limiter, "victim", policy.MaxAttempts)
	clock.Advance(time.Second)
	recordN(t, limiter, "flood-0", 1)

	for i := 1; i <= 10; i++ {
		clock.Advance(time.Second)
		recordN(t, limiter, fmt.Sprintf("flood-%d", i), 1)
	}

	assert.True(t, blocked(t, limiter, "victim"))
	assert.Equal(t, 2, limiter.Len())

	recordN(t, limiter, "second-victim", policy.MaxAttempts)
	clock.Advance(time.Second)

	// Both slots now hold blocks; a newcomer is not tracked.
	recordN(t, limiter, "newcomer", 1)
	_, tracked := limiter.entries["newcomer"]
	assert.False(t, tracked)

	assert.True(t, blocked(t, limiter, "victim"))
	assert.True(t, blocked(t, limiter, "second-victim"))
}

/*
TestMemoryLimiter_Sweep drops only entries whose window elapsed.
*/
func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	policy := DefaultPolicy()
	limiter := NewMemoryLimiter(policy, 0).WithClock(clock.Now)

	recordN(t, limiter, "old", 1)
	clock.Advance(policy.Window)
	recordN(t, limiter, "fresh", 1)
	clock.Advance(time.Millisecond)

	assert.Equal(t, 1, limiter.Sweep())
	assert.Equal(t, 1, limiter.Len())
}

/*
TestRedisLimiter_KeyHasTTL ensures entries are garbage collected by Redis.
*/
func TestRedisLimiter_KeyHasTTL(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	defer client.Close()

	limiter := NewRedisLimiter(client, DefaultPolicy())
	require.NoError(t, limiter.RecordAttempt(context.Background(), "10.0.0.1-tai@example.com"))

	key := constants.RedisPrefixLoginAttempts + "10.0.0.1-tai@example.com"
	assert.True(t, server.Exists(key))
	assert.Greater(t, server.TTL(key), time.Duration(0))
}

type failingLimiter struct{}

var errLimiterDown = errors.New("redis: connection refused")

func (failingLimiter) IsBlocked(context.Context, string) (bool, error) { return false, errLimiterDown }
func (failingLimiter) RecordAttempt(context.Context, string) error     { return errLimiterDown }
func (failingLimiter) Reset(context.Context, string) error             { return errLimiterDown }

/*
TestFallbackLimiter_KeepsLimitingWhenPrimaryFails checks the degraded path.
*/
func TestFallbackLimiter_KeepsLimitingWhenPrimaryFails(t *testing.T) {
	local := NewMemoryLimiter(DefaultPolicy(), 0)
	limiter := NewFallbackLimiter(failingLimiter{}, local, discardLogger())

	for i := 0; i < 5; i++ {
		assert.NoError(t, limiter.RecordAttempt(context.Background(), "id"))
	}

	isBlocked, err := limiter.IsBlocked(context.Background(), "id")
	require.NoError(t, err)
	assert.True(t, isBlocked)

	assert.NoError(t, limiter.Reset(context.Background(), "id"))
	isBlocked, _ = limiter.IsBlocked(context.Background(), "id")
	assert.False(t, isBlocked)
}

/*
TestFallbackLimiter_PrefersPrimary answers from the shared store when healthy.
*/
func TestFallbackLimiter_PrefersPrimary(t *testing.T) {
	primary := NewMemoryLimiter(DefaultPolicy(), 0)
	local := NewMemoryLimiter(DefaultPolicy(), 0)
	limiter := NewFallbackLimiter(primary, local, discardLogger())

	recordN(t, primary, "id", 5)

	isBlocked, err := limiter.IsBlocked(context.Background(), "id")
	require.NoError(t, err)
	assert.True(t, isBlocked)
}
