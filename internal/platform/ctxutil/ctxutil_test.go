// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/ctxkey"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

/*
TestContext_EmptyDefaults returns zero values on a bare context.
*/
func TestContext_EmptyDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, ctxutil.GetRequestID(ctx))
	assert.Same(t, slog.Default(), ctxutil.GetLogger(ctx))
	assert.Nil(t, ctxutil.GetPrincipal(ctx))
	assert.Empty(t, ctxutil.LoggedUser(ctx))
}

/*
TestContext_RoundTrip stores and reads back each value.
*/
func TestContext_RoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	principal := &sec.Principal{UserID: "user-123", Role: sec.RoleAdmin}

	ctx := ctxutil.WithRequestID(context.Background(), "req-1")
	ctx = ctxutil.WithLogger(ctx, logger)
	ctx = ctxutil.WithPrincipal(ctx, principal)

	assert.Equal(t, "req-1", ctxutil.GetRequestID(ctx))
	assert.Same(t, logger, ctxutil.GetLogger(ctx))

	retrieved := ctxutil.GetPrincipal(ctx)
	require.NotNil(t, retrieved)
	assert.Equal(t, sec.RoleAdmin, retrieved.Role)
}

/*
TestContext_LoggedUserSlot is visible to the parent context after a child writes it.
*/
func TestContext_LoggedUserSlot(t *testing.T) {
	ctxutil.SetLoggedUser(context.Background(), "ignored")

	parent := ctxutil.WithLoggedUserSlot(context.Background())
	child := ctxutil.WithPrincipal(parent, &sec.Principal{UserID: "user-9"})

	ctxutil.SetLoggedUser(child, "user-9")
	assert.Equal(t, "user-9", ctxutil.LoggedUser(parent))
}

/*
TestKey_String names known keys.
*/
func TestKey_String(t *testing.T) {
	assert.Equal(t, "ctxkey.principal", ctxkey.KeyPrincipal.String())
	assert.Equal(t, "ctxkey.unknown", ctxkey.Key(0).String())
}
