// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants collects the fixed values shared across layers: server
timing, throttle defaults, header names and storage key prefixes. Anything an
operator may want to change belongs in config instead.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "extcontrol-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	DefaultReadHeaderTimeout = 2 * time.Second
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute

	// GlobalRequestTimeout bounds a whole request, database statements included.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is the grace period for in-flight requests.
	ShutdownTimeout = 30 * time.Second
)

// # Request Throttling

const (
	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40

	// RateLimitCleanupInterval is the throttle sweep period.
	RateLimitCleanupInterval = time.Minute

	// RateLimitClientTTL is how long an idle IP keeps its bucket.
	RateLimitClientTTL = 3 * time.Minute

	// MaxRequestBodyBytes caps JSON bodies on the auth endpoints.
	MaxRequestBodyBytes = 1 << 20
)

// AuthIssuer is the default iss claim.
const AuthIssuer = "extcontrol"

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderOrigin        = "Origin"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXRequestID    = "X-Request-ID"
)

// # Probe Fields

const (
	FieldStatus = "status"
	FieldChecks = "checks"
)

// # Redis Key Prefixes

const (
	RedisPrefixLoginAttempts = "auth:attempts:"
	RedisPrefixRevokedToken  = "auth:revoked:"
)
