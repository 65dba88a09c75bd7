// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil stores and reads request-scoped values on [context.Context].
//
// Getters never fail: a missing value yields the zero value, or the default
// logger for [GetLogger].
package ctxutil

import (
	"context"
	"log/slog"
	"sync"

	"github.com/taibuivan/extcontrol/internal/platform/ctxkey"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

// # Request Tracing

// WithRequestID attaches the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID returns the correlation id, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// WithClientIP attaches the resolved client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyClientIP, ip)
}

// GetClientIP returns the resolved client address, or "".
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ctxkey.KeyClientIP).(string)
	return ip
}

// # Structured Logging

// WithLogger attaches a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger returns the request logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// loggedUser is written by the auth gate deep in the handler chain and read by
// the access log after the chain returns, hence a shared pointer.
type loggedUser struct {
	mu     sync.Mutex
	userID string
}

// WithLoggedUserSlot installs an empty slot for [SetLoggedUser].
func WithLoggedUserSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLoggedUser, &loggedUser{})
}

// SetLoggedUser records userID on the slot. It is a no-op without a slot.
func SetLoggedUser(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(ctxkey.KeyLoggedUser).(*loggedUser); ok {
		slot.mu.Lock()
		slot.userID = userID
		slot.mu.Unlock()
	}
}

// LoggedUser returns the user id recorded on the slot, or "".
func LoggedUser(ctx context.Context) string {
	slot, ok := ctx.Value(ctxkey.KeyLoggedUser).(*loggedUser)
	if !ok {
		return ""
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.userID
}

// # Identity & Access

// WithPrincipal attaches the authenticated principal.
func WithPrincipal(ctx context.Context, principal *sec.Principal) context.Context {
	return context.WithValue(ctx, ctxkey.KeyPrincipal, principal)
}

// GetPrincipal returns the principal, or nil for anonymous requests.
func GetPrincipal(ctx context.Context) *sec.Principal {
	principal, _ := ctx.Value(ctxkey.KeyPrincipal).(*sec.Principal)
	return principal
}
