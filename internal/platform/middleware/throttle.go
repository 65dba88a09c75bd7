// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/respond"
)

// CodeThrottled differs from the login limiter's RATE_LIMITED so clients can
// tell a request flood from a locked-out identifier.
const CodeThrottled = "TOO_MANY_REQUESTS"

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle keeps one token bucket per client IP. It shields the process from
// floods and knows nothing about credentials.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*bucket
	rps     rate.Limit
	burst   int
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewThrottle allows rps sustained requests per IP with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	return &Throttle{
		clients: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     constants.RateLimitClientTTL,
		nowFunc: time.Now,
	}
}

// Allow spends one token from clientIP's bucket.
func (throttle *Throttle) Allow(clientIP string) bool {
	now := throttle.nowFunc()

	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	entry, ok := throttle.clients[clientIP]
	if !ok {
		entry = &bucket{limiter: rate.NewLimiter(throttle.rps, throttle.burst)}
		throttle.clients[clientIP] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Run drops buckets idle longer than the client TTL, every interval, until
// ctx is done.
func (throttle *Throttle) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			throttle.sweep()
		}
	}
}

func (throttle *Throttle) sweep() {
	cutoff := throttle.nowFunc().Add(-throttle.ttl)

	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	for ip, entry := range throttle.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(throttle.clients, ip)
		}
	}
}

// RateLimit rejects requests over the caller's bucket with 429.
func RateLimit(throttle *Throttle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if throttle.Allow(RealIP(request)) {
				next.ServeHTTP(writer, request)
				return
			}
			respond.JSON(writer, http.StatusTooManyRequests, respond.ErrorEnvelope{
				Error: "Rate limit exceeded",
				Code:  CodeThrottled,
			})
		})
	}
}
