// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
)

/*
TestMemoryRevocationList_RevokeOnceAndExpire covers reuse detection and natural expiry.
*/
func TestMemoryRevocationList_RevokeOnceAndExpire(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	list := NewMemoryRevocationList().WithClock(clock.Now)

	first, err := list.Revoke(ctx, "jti-1", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, first)

	again, err := list.Revoke(ctx, "jti-1", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, again)

	revoked, _ := list.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)

	clock.Advance(time.Hour)
	revoked, _ = list.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
}

/*
TestRedisRevocationList_TTLMatchesRemainingLifetime checks the key expiry in Redis.
*/
func TestRedisRevocationList_TTLMatchesRemainingLifetime(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	defer client.Close()

	list := NewRedisRevocationList(client)

	first, err := list.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, first)

	again, err := list.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, again)

	ttl := server.TTL(constants.RedisPrefixRevokedToken + "jti-1")
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 2)

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	server.FastForward(11 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Expired tokens are not stored
	created, err := list.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, server.Exists(constants.RedisPrefixRevokedToken+"jti-old"))
}
