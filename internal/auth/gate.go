// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	"github.com/taibuivan/extcontrol/internal/platform/middleware"
	"github.com/taibuivan/extcontrol/internal/platform/respond"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

// Denial reasons recorded on auth_gate_denials_total.
const (
	reasonNoHeader        = "no_header"
	reasonMalformedHeader = "malformed_header"
	reasonExpired         = "expired"
	reasonInvalid         = "invalid"
	reasonRevoked         = "revoked"
	reasonAccountMissing  = "account_missing"
	reasonForbidden       = "forbidden"
	reasonInternal        = "internal"
)

// TokenInspector verifies an access token and classifies failures.
// [sec.TokenService] satisfies it.
type TokenInspector interface {
	Inspect(tokenString string) (*sec.AccessClaims, error)
}

// Verdict is the outcome of authenticating one request.
type Verdict struct {
	Authorized bool
	Principal  *sec.Principal
	Err        *apperr.AppError

	reason string
}

func denied(err *apperr.AppError, reason string) Verdict {
	return Verdict{Err: err, reason: reason}
}

// Gate is the single choke point protected handlers sit behind.
//
// # Flow
//
//  1. NoHeader: no Authorization header yields 401 "Authentication required".
//  2. Extract: anything but "Bearer <token>" yields 401.
//  3. Verify: a bad token yields 401 "Invalid token", an expired one 401 "Token expired".
//  4. Revoked: a denylisted jti yields 401 "Invalid token".
//  5. Authorize: a missing route permission yields 403.
//  6. Dispatch: the principal is attached to the request context.
//
// Panics and backend errors inside the gate become a generic 401 or 500.
type Gate struct {
	tokens      TokenInspector
	resolver    *Resolver
	revocations RevocationList
	strict      bool
}

// NewGate creates a gate. revocations may be nil when no denylist is wired.
func NewGate(tokens TokenInspector, resolver *Resolver, revocations RevocationList) *Gate {
	return &Gate{tokens: tokens, resolver: resolver, revocations: revocations}
}

// WithStrictEntitlements makes every permission-gated route re-read the account.
func (gate *Gate) WithStrictEntitlements(strict bool) *Gate {
	clone := *gate
	clone.strict = strict
	return &clone
}

// # Options

type requirement struct {
	permission sec.Permission
	fresh      bool
}

// RequireOption configures a [Gate.Require] middleware.
type RequireOption func(*requirement)

// WithPermission requires the principal to hold permission.
func WithPermission(permission sec.Permission) RequireOption {
	return func(req *requirement) { req.permission = permission }
}

// WithFreshEntitlements re-reads role and subscription from the account
// store instead of trusting the token snapshot.
func WithFreshEntitlements() RequireOption {
	return func(req *requirement) { req.fresh = true }
}

// # Verification

// VerifyRequest authenticates request without authorizing it.
// It never panics and never returns a nil Err on denial.
func (gate *Gate) VerifyRequest(request *http.Request) (verdict Verdict) {
	defer func() {
		if recovered := recover(); recovered != nil {
			ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "auth_gate_panic",
				slog.Any("error", recovered),
			)
			verdict = denied(apperr.Unauthorized("Authentication failed"), reasonInternal)
		}
	}()

	header := request.Header.Get(constants.HeaderAuthorization)
	if header == "" {
		return denied(apperr.Unauthorized("Authentication required"), reasonNoHeader)
	}

	token, ok := sec.ExtractBearer(header)
	if !ok {
		return denied(apperr.Unauthorized("Authentication required"), reasonMalformedHeader)
	}

	claims, err := gate.tokens.Inspect(token)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return denied(apperr.TokenExpired(), reasonExpired)
		}
		return denied(apperr.Unauthorized("Invalid token"), reasonInvalid)
	}

	principal := claims.Principal()

	if gate.revocations != nil {
		revoked, err := gate.revocations.IsRevoked(request.Context(), principal.TokenID)
		if err != nil {
			return denied(apperr.Internal(fmt.Errorf("auth_gate_revocation_check_failed: %w", err)), reasonInternal)
		}
		if revoked {
			return denied(apperr.Unauthorized("Invalid token"), reasonRevoked)
		}
	}

	return Verdict{Authorized: true, Principal: &principal}
}

// Require returns middleware that admits only authenticated requests meeting opts.
func (gate *Gate) Require(opts ...RequireOption) func(http.Handler) http.Handler {
	req := requirement{}
	for _, opt := range opts {
		opt(&req)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			verdict := gate.VerifyRequest(request)
			if verdict.Authorized {
				verdict = gate.authorize(request, *verdict.Principal, req)
			}

			if !verdict.Authorized {
				gate.deny(writer, request, verdict)
				return
			}

			ctx := ctxutil.WithPrincipal(request.Context(), verdict.Principal)
			middleware.SetLoggedUser(ctx, verdict.Principal.UserID)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

func (gate *Gate) authorize(request *http.Request, principal sec.Principal, req requirement) (verdict Verdict) {
	defer func() {
		if recovered := recover(); recovered != nil {
			ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "auth_gate_panic",
				slog.Any("error", recovered),
			)
			verdict = denied(apperr.Internal(fmt.Errorf("auth_gate_panic: %v", recovered)), reasonInternal)
		}
	}()

	if req.fresh || (gate.strict && req.permission != "") {
		live, err := gate.resolver.Fresh(request.Context(), principal)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return denied(apperr.Unauthorized("Invalid token"), reasonAccountMissing)
			}
			return denied(apperr.Internal(fmt.Errorf("auth_gate_fresh_entitlements_failed: %w", err)), reasonInternal)
		}
		principal = live
	}

	if req.permission != "" && !gate.resolver.HasPermission(principal, req.permission) {
		return denied(apperr.Forbidden(forbiddenMessage(req.permission)), reasonForbidden)
	}

	return Verdict{Authorized: true, Principal: &principal}
}

func forbiddenMessage(permission sec.Permission) string {
	switch permission {
	case sec.PermissionAdmin:
		return "Admin access required"
	case sec.PermissionPremium:
		return "Premium access required"
	default:
		return "Access required"
	}
}

func (gate *Gate) deny(writer http.ResponseWriter, request *http.Request, verdict Verdict) {
	gateDenialsTotal.WithLabelValues(verdict.reason).Inc()
	ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "auth_gate_denied",
		slog.String("reason", verdict.reason),
		slog.Int("status", verdict.Err.HTTPStatus),
	)
	respond.Error(writer, request, verdict.Err)
}
