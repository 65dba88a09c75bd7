// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "time"

// Principal is the authenticated identity attached to a request.
//
// Role, Tier and SubscriptionExpiresAt are a snapshot taken when the access
// token was issued. They are trusted only while that token is valid.
type Principal struct {
	UserID                string     `json:"id"`
	Email                 string     `json:"email"`
	Role                  UserRole   `json:"role"`
	SubscriptionTier      Tier       `json:"subscription_tier"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`

	// TokenID is the jti of the access token the principal was read from.
	TokenID string `json:"-"`
	// TokenExpiresAt is when that token stops being accepted.
	TokenExpiresAt time.Time `json:"-"`
}
