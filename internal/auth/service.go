// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements credential verification, session tokens and the
access gate for the extcontrol API.

Architecture:

  - Service: Orchestrates login, registration and session lifecycle.
  - Limiter: Throttles repeated failures per client IP and email.
  - CredentialBackend: Identity provider adapter or the self-managed store.
  - Gate: The middleware every protected route sits behind.

Role and subscription are always derived from the [AccountDirectory] when a
token is issued, so a token never carries more than the account held at
issue time.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

// Limiter namespaces. Login uses the bare identifier.
const (
	registerIdentifierPrefix       = "register:"
	changePasswordIdentifierPrefix = "password:"
)

const maxNameLength = 100

// # Contracts & Types

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Backend     CredentialBackend
	Accounts    AccountRepository
	Directory   *AccountDirectory
	Limiter     AttemptLimiter
	Tokens      *sec.TokenService
	Revocations RevocationList
	Resolver    *Resolver
	Policy      PasswordPolicy
	Audit       AuditPublisher
}

// Service implements the authentication use cases.
//
// # Security
//
// Responses for unknown emails and wrong passwords are identical. Provider
// outages never count as failed attempts, so an outage cannot lock users out.
type Service struct {
	backend     CredentialBackend
	accounts    AccountRepository
	directory   *AccountDirectory
	limiter     AttemptLimiter
	tokens      *sec.TokenService
	revocations RevocationList
	resolver    *Resolver
	policy      PasswordPolicy
	audit       AuditPublisher
	nowFunc     func() time.Time
}

// NewService constructs a [Service]. Directory and Resolver default to ones
// built over Accounts, Audit defaults to the structured log.
func NewService(deps Dependencies) *Service {
	if deps.Directory == nil {
		deps.Directory = NewAccountDirectory(deps.Accounts)
	}
	if deps.Resolver == nil {
		deps.Resolver = NewResolver(deps.Directory)
	}
	if deps.Audit == nil {
		deps.Audit = NewLogAuditPublisher(slog.Default())
	}
	if deps.Policy.MinLength == 0 {
		deps.Policy = DefaultPasswordPolicy()
	}

	return &Service{
		backend:     deps.Backend,
		accounts:    deps.Accounts,
		directory:   deps.Directory,
		limiter:     deps.Limiter,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		resolver:    deps.Resolver,
		policy:      deps.Policy,
		audit:       deps.Audit,
		nowFunc:     time.Now,
	}
}

// WithClock returns a copy of the service that stamps audit events with now.
func (service *Service) WithClock(now func() time.Time) *Service {
	clone := *service
	clone.nowFunc = now
	return &clone
}

// Session is an issued token pair plus the user it belongs to.
type Session struct {
	User         UserView
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

/*
Login verifies credentials and issues a session.

Description: Consults the limiter before the backend is called. Wrong
credentials count as an attempt, a successful login clears the counter.

Returns:
  - *Session: The issued tokens and user view
  - err: RateLimited, Unauthorized or internal failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	logger := ctxutil.GetLogger(ctx)
	email := normalizeEmail(input.Email)
	identifier := Identifier(input.ClientIP, email)

	if service.isBlocked(ctx, identifier) {
		loginAttemptsTotal.WithLabelValues(outcomeBlocked).Inc()
		logger.WarnContext(ctx, "login_blocked", slog.String("client_ip", input.ClientIP))
		service.emit(ctx, AuditEvent{Type: EventLoginBlocked, Email: email, ClientIP: input.ClientIP})
		return nil, apperr.RateLimited()
	}

	identity, err := service.backend.Verify(ctx, email, input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			loginAttemptsTotal.WithLabelValues(outcomeInvalid).Inc()
			service.recordAttempt(ctx, identifier)
			logger.InfoContext(ctx, "login_failed", slog.String("client_ip", input.ClientIP))
			service.emit(ctx, AuditEvent{Type: EventLoginFailed, Email: email, ClientIP: input.ClientIP})
			return nil, apperr.Unauthorized("Invalid email or password")
		}

		loginAttemptsTotal.WithLabelValues(outcomeUpstreamError).Inc()
		logger.ErrorContext(ctx, "login_backend_failed", slog.String("error", err.Error()))
		return nil, apperr.Unauthorized("Authentication failed")
	}

	if err := service.limiter.Reset(ctx, identifier); err != nil {
		logger.WarnContext(ctx, "login_limiter_reset_failed", slog.String("error", err.Error()))
	}

	account, err := service.ensureAccount(ctx, identity, "")
	if err != nil {
		return nil, err
	}

	session, err := service.issueSession(account)
	if err != nil {
		return nil, err
	}

	loginAttemptsTotal.WithLabelValues(outcomeSuccess).Inc()
	logger.InfoContext(ctx, "login_succeeded", slog.String("user_id", account.ID))
	service.emit(ctx, AuditEvent{Type: EventLoginSucceeded, UserID: account.ID, ClientIP: input.ClientIP})
	return session, nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	ClientIP string
}

/*
Register validates and enrolls a new account, then issues a session.

Description: Registration shares the limiter with login under its own
namespace. Validation failures and duplicate emails count as attempts.

Returns:
  - *Session: Tokens for the new account
  - err: RateLimited, ValidationError, Conflict or internal failures
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	logger := ctxutil.GetLogger(ctx)
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	identifier := registerIdentifierPrefix + Identifier(input.ClientIP, email)

	if service.isBlocked(ctx, identifier) {
		logger.WarnContext(ctx, "register_blocked", slog.String("client_ip", input.ClientIP))
		return nil, apperr.RateLimited()
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Email(FieldEmail, email).
		MaxLen(FieldName, name, maxNameLength)
	service.policy.Check(validator, FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		service.recordAttempt(ctx, identifier)
		return nil, err
	}

	identity, err := service.backend.Enroll(ctx, email, input.Password, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			service.recordAttempt(ctx, identifier)
			return nil, apperr.Conflict("Email is already registered")
		case errors.Is(err, ErrEnrollmentRejected):
			service.recordAttempt(ctx, identifier)
			return nil, apperr.ValidationError("Registration was rejected")
		default:
			return nil, apperr.Internal(fmt.Errorf("auth_service_register_failed: %w", err))
		}
	}

	account, err := service.ensureAccount(ctx, identity, name)
	if err != nil {
		return nil, err
	}

	session, err := service.issueSession(account)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "account_registered", slog.String("user_id", account.ID))
	service.emit(ctx, AuditEvent{Type: EventAccountRegistered, UserID: account.ID, ClientIP: input.ClientIP})
	return session, nil
}

// # Session Lifecycle

/*
Refresh exchanges a refresh token for a new token pair.

Description: Role and subscription are re-read from the directory and the
new pair is signed first. The presented token is then revoked atomically,
so a second exchange of the same token fails while a lookup error leaves
it usable.
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	logger := ctxutil.GetLogger(ctx)

	claims := service.tokens.VerifyRefresh(refreshToken)
	if claims == nil {
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	account, err := service.directory.Resolve(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, apperr.Unauthorized("Invalid refresh token")
		}
		return nil, apperr.Internal(fmt.Errorf("auth_service_refresh_lookup_failed: %w", err))
	}

	session, err := service.issueSession(account)
	if err != nil {
		return nil, err
	}

	// The old token is spent only once a replacement exists, so a failed
	// lookup or signing step leaves it usable for a retry.
	first, err := service.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_refresh_revoke_failed: %w", err))
	}
	if !first {
		logger.WarnContext(ctx, "refresh_token_reused", slog.String("user_id", claims.UserID))
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	service.emit(ctx, AuditEvent{Type: EventSessionRefreshed, UserID: account.ID})
	return session, nil
}

/*
Logout revokes the access token the principal was read from and, when it
belongs to the same user, the supplied refresh token.

An unparsable refresh token is ignored; the access token is still revoked.
*/
func (service *Service) Logout(ctx context.Context, principal sec.Principal, refreshToken string) error {
	if principal.TokenID != "" {
		if _, err := service.revocations.Revoke(ctx, principal.TokenID, principal.TokenExpiresAt); err != nil {
			return apperr.Internal(fmt.Errorf("auth_service_logout_revoke_failed: %w", err))
		}
	}

	if refreshToken != "" {
		claims := service.tokens.VerifyRefresh(refreshToken)
		if claims != nil && claims.UserID == principal.UserID {
			if _, err := service.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				return apperr.Internal(fmt.Errorf("auth_service_logout_revoke_failed: %w", err))
			}
		}
	}

	service.emit(ctx, AuditEvent{Type: EventSessionRevoked, UserID: principal.UserID})
	return nil
}

// ChangePasswordInput holds the data for a password change.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ClientIP        string
}

/*
ChangePassword replaces the principal's password after checking the current one.

Description: Wrong current passwords count as attempts in their own limiter
namespace. Backends that do not manage passwords answer 501.
*/
func (service *Service) ChangePassword(ctx context.Context, principal sec.Principal, input ChangePasswordInput) error {
	identifier := changePasswordIdentifierPrefix + Identifier(input.ClientIP, principal.Email)

	if service.isBlocked(ctx, identifier) {
		return apperr.RateLimited()
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword)
	service.policy.Check(validator, FieldNewPassword, input.NewPassword)
	if err := validator.Err(); err != nil {
		return err
	}

	err := service.backend.ChangePassword(ctx, principal.UserID, input.CurrentPassword, input.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		service.recordAttempt(ctx, identifier)
		return apperr.Forbidden("Current password is incorrect")
	case errors.Is(err, ErrPasswordChangeUnsupported):
		return apperr.NotImplemented("Password changes are managed by the identity provider")
	default:
		return apperr.Internal(fmt.Errorf("auth_service_change_password_failed: %w", err))
	}

	if err := service.limiter.Reset(ctx, identifier); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "password_limiter_reset_failed", slog.String("error", err.Error()))
	}
	service.emit(ctx, AuditEvent{Type: EventPasswordChanged, UserID: principal.UserID, ClientIP: input.ClientIP})
	return nil
}

// # Queries

// Me returns the token-backed view of the principal.
func (service *Service) Me(principal sec.Principal) UserView {
	return newUserView(principal, "", service.resolver.HasPremiumAccess(principal))
}

// Entitlements is the live answer to what a user may access.
type Entitlements struct {
	UserID                string     `json:"userId"`
	Admin                 bool       `json:"admin"`
	Premium               bool       `json:"premium"`
	SubscriptionTier      sec.Tier   `json:"subscriptionTier"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
}

// Entitlements evaluates principal against its current account state.
//
// The principal is expected to be fresh already when the route uses
// [WithFreshEntitlements].
func (service *Service) Entitlements(principal sec.Principal) Entitlements {
	return Entitlements{
		UserID:                principal.UserID,
		Admin:                 service.resolver.HasPermission(principal, sec.PermissionAdmin),
		Premium:               service.resolver.HasPermission(principal, sec.PermissionPremium),
		SubscriptionTier:      principal.SubscriptionTier,
		SubscriptionExpiresAt: principal.SubscriptionExpiresAt,
	}
}

// # Administration

// UnlockIdentifier clears the limiter entry for identifier.
func (service *Service) UnlockIdentifier(ctx context.Context, admin sec.Principal, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return apperr.ValidationError("Validation failed", apperr.FieldError{Field: FieldIdentifier, Message: "This field is required"})
	}

	if err := service.limiter.Reset(ctx, identifier); err != nil {
		return apperr.Internal(fmt.Errorf("auth_service_unlock_failed: %w", err))
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "login_block_cleared",
		slog.String("admin_id", admin.UserID),
		slog.String("identifier", identifier),
	)
	service.emit(ctx, AuditEvent{Type: EventLoginUnblocked, UserID: admin.UserID})
	return nil
}

// # Helpers

// ensureAccount returns the local account for a verified identity, creating
// it on first sight. Identity-provider users have no row until their first
// login or registration.
func (service *Service) ensureAccount(ctx context.Context, identity *VerifiedIdentity, name string) (*Account, error) {
	account, err := service.directory.Resolve(ctx, identity.ExternalUserID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, apperr.Internal(fmt.Errorf("auth_service_account_lookup_failed: %w", err))
	}

	provisioned := &Account{
		ID:               identity.ExternalUserID,
		Email:            normalizeEmail(identity.Email),
		Name:             name,
		SubscriptionTier: sec.TierFree,
	}
	if err := service.accounts.Create(ctx, provisioned); err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			return nil, apperr.Internal(fmt.Errorf("auth_service_account_provision_failed: %w", err))
		}

		// A concurrent first login wins the same row; a different id owning
		// the email is a linking conflict no retry will fix.
		existing, err := service.accounts.FindByEmail(ctx, provisioned.Email)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("auth_service_account_lookup_failed: %w", err))
		}
		if existing.ID != identity.ExternalUserID {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "account_identity_conflict",
				slog.String("external_user_id", identity.ExternalUserID),
				slog.String("account_id", existing.ID),
			)
			return nil, apperr.Conflict("Email is linked to a different account")
		}
	}

	account, err = service.directory.Resolve(ctx, identity.ExternalUserID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_account_lookup_failed: %w", err))
	}
	return account, nil
}

func (service *Service) issueSession(account *Account) (*Session, error) {
	principal := account.Principal()

	accessToken, err := service.tokens.IssueAccessToken(principal)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_issue_access_failed: %w", err))
	}

	refreshToken, err := service.tokens.IssueRefreshToken(principal.UserID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_issue_refresh_failed: %w", err))
	}

	return &Session{
		User:         newUserView(principal, account.Name, service.resolver.HasPremiumAccess(principal)),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    service.tokens.AccessTTL(),
	}, nil
}

// isBlocked fails open: a limiter that cannot answer must not lock everyone out.
func (service *Service) isBlocked(ctx context.Context, identifier string) bool {
	blocked, err := service.limiter.IsBlocked(ctx, identifier)
	if err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "login_limiter_check_failed", slog.String("error", err.Error()))
		return false
	}
	return blocked
}

func (service *Service) recordAttempt(ctx context.Context, identifier string) {
	if err := service.limiter.RecordAttempt(ctx, identifier); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "login_limiter_record_failed", slog.String("error", err.Error()))
	}
}

func (service *Service) emit(ctx context.Context, event AuditEvent) {
	event.OccurredAt = service.nowFunc()
	event.RequestID = ctxutil.GetRequestID(ctx)
	service.audit.Publish(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
