// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

// # Domain Entities

// Account is the authoritative user record entitlements are derived from.
//
// Role is not stored on the account row. It is filled in by the
// [AccountDirectory] from the admin_role marker.
type Account struct {
	ID                    string       `json:"id"`
	Email                 string       `json:"email"`
	Name                  string       `json:"name"`
	PasswordHash          string       `json:"-"`
	Role                  sec.UserRole `json:"role"`
	SubscriptionTier      sec.Tier     `json:"subscription_tier"`
	SubscriptionExpiresAt *time.Time   `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// Principal projects the account onto the identity carried in access tokens.
func (account *Account) Principal() sec.Principal {
	role := account.Role
	if !role.Valid() {
		role = sec.RoleUser
	}
	tier := account.SubscriptionTier
	if !tier.Valid() {
		tier = sec.TierFree
	}

	return sec.Principal{
		UserID:                account.ID,
		Email:                 account.Email,
		Role:                  role,
		SubscriptionTier:      tier,
		SubscriptionExpiresAt: account.SubscriptionExpiresAt,
	}
}

// # Transport Views

// UserView is the public shape of a user in auth responses.
type UserView struct {
	ID                    string       `json:"id"`
	Email                 string       `json:"email"`
	Name                  string       `json:"name,omitempty"`
	Role                  sec.UserRole `json:"role"`
	SubscriptionTier      sec.Tier     `json:"subscriptionTier"`
	SubscriptionExpiresAt *time.Time   `json:"subscriptionExpiresAt,omitempty"`
	Premium               bool         `json:"premium"`
}

func newUserView(principal sec.Principal, name string, premium bool) UserView {
	return UserView{
		ID:                    principal.UserID,
		Email:                 principal.Email,
		Name:                  name,
		Role:                  principal.Role,
		SubscriptionTier:      principal.SubscriptionTier,
		SubscriptionExpiresAt: principal.SubscriptionExpiresAt,
		Premium:               premium,
	}
}
