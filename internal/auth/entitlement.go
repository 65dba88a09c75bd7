// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

// # Entitlements

// HasPremiumAccess reports whether principal holds an unexpired premium tier at now.
// A nil expiry means the subscription does not expire.
func HasPremiumAccess(principal sec.Principal, now time.Time) bool {
	if principal.SubscriptionTier != sec.TierPremium {
		return false
	}
	return principal.SubscriptionExpiresAt == nil || principal.SubscriptionExpiresAt.After(now)
}

// Resolver answers "can this principal do X".
//
// Claim-based checks trust the token snapshot, which may be up to one access
// token lifetime stale. [Resolver.Fresh] re-reads the account for routes that
// cannot accept that.
type Resolver struct {
	directory *AccountDirectory
	nowFunc   func() time.Time
}

// NewResolver creates a resolver reading live state from directory.
func NewResolver(directory *AccountDirectory) *Resolver {
	return &Resolver{directory: directory, nowFunc: time.Now}
}

// WithClock returns a copy of the resolver that reads time from now.
func (resolver *Resolver) WithClock(now func() time.Time) *Resolver {
	clone := *resolver
	clone.nowFunc = now
	return &clone
}

// HasPermission checks a named permission against the principal.
func (resolver *Resolver) HasPermission(principal sec.Principal, permission sec.Permission) bool {
	switch permission {
	case sec.PermissionAdmin:
		return principal.Role == sec.RoleAdmin
	case sec.PermissionPremium:
		return resolver.HasPremiumAccess(principal)
	default:
		return false
	}
}

// HasPremiumAccess is [HasPremiumAccess] at the resolver's clock.
func (resolver *Resolver) HasPremiumAccess(principal sec.Principal) bool {
	return HasPremiumAccess(principal, resolver.nowFunc())
}

// Fresh replaces the role and subscription fields of principal with the
// authoritative values. Token metadata is kept.
func (resolver *Resolver) Fresh(ctx context.Context, principal sec.Principal) (sec.Principal, error) {
	live, err := resolver.directory.ResolvePrincipal(ctx, principal.UserID)
	if err != nil {
		return sec.Principal{}, err
	}

	live.TokenID = principal.TokenID
	live.TokenExpiresAt = principal.TokenExpiresAt
	return live, nil
}
