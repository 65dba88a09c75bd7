// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// Login outcomes recorded on auth_login_attempts_total.
const (
	outcomeSuccess       = "success"
	outcomeInvalid       = "invalid_credentials"
	outcomeBlocked       = "blocked"
	outcomeUpstreamError = "upstream_error"
)

var (
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	gateDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_gate_denials_total",
			Help: "Requests rejected by the auth gate, by reason",
		},
		[]string{"reason"},
	)

	limiterFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_limiter_fallback_total",
			Help: "Limiter operations served by the local fallback after a shared store error",
		},
		[]string{"operation"},
	)

	identityProviderBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auth_identity_provider_breaker_state",
			Help: "Identity provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// breakerStateValue maps gobreaker states to gauge values.
func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
