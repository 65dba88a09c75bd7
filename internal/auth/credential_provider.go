// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// providerErrorBodyLimit caps how much of an error body is read for logging.
const providerErrorBodyLimit = 4 << 10

// ProviderConfig configures the hosted identity provider adapter.
type ProviderConfig struct {
	// BaseURL is the provider's auth API root, e.g. https://idp.example.com/auth/v1.
	BaseURL string
	// APIKey is sent as the "apikey" header on every call.
	APIKey string
	// Timeout bounds each call, including connection setup.
	Timeout time.Duration
}

// ProviderCredentials is a [CredentialBackend] that delegates to a hosted
// identity provider over JSON/HTTP.
//
// # Failure Policy
//
// 4xx answers to a sign-in are wrong credentials. Timeouts, transport errors
// and 5xx answers are [ErrProviderUnavailable] and count toward the circuit
// breaker. Wrong credentials never trip the breaker.
type ProviderCredentials struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*VerifiedIdentity]
	logger  *slog.Logger
}

// NewProviderCredentials creates the adapter with its own circuit breaker.
func NewProviderCredentials(cfg ProviderConfig, logger *slog.Logger) *ProviderCredentials {
	const breakerName = "identity_provider"

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("identity_provider_breaker_state_changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			identityProviderBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	}
	identityProviderBreakerState.WithLabelValues(breakerName).Set(0)

	return &ProviderCredentials{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*VerifiedIdentity](settings),
		logger:  logger,
	}
}

type providerCredentialsRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type providerUserResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Verify signs in with POST {base}/token?grant_type=password.
func (provider *ProviderCredentials) Verify(ctx context.Context, email, password string) (*VerifiedIdentity, error) {
	return provider.execute(ctx, "verify", "/token?grant_type=password",
		providerCredentialsRequest{Email: email, Password: password},
		func(int) error { return ErrInvalidCredentials })
}

// Enroll signs up with POST {base}/signup.
func (provider *ProviderCredentials) Enroll(ctx context.Context, email, password, name string) (*VerifiedIdentity, error) {
	payload := providerCredentialsRequest{Email: email, Password: password}
	if name != "" {
		payload.Data = map[string]string{"name": name}
	}

	return provider.execute(ctx, "enroll", "/signup", payload, func(status int) error {
		if status == http.StatusConflict {
			return ErrEmailTaken
		}
		return ErrEnrollmentRejected
	})
}

// ChangePassword is not available: the provider needs the user's own provider
// session, which this service never holds.
func (provider *ProviderCredentials) ChangePassword(context.Context, string, string, string) error {
	return ErrPasswordChangeUnsupported
}

// State returns the current breaker state.
func (provider *ProviderCredentials) State() gobreaker.State {
	return provider.breaker.State()
}

func (provider *ProviderCredentials) execute(
	ctx context.Context,
	operation, path string,
	payload providerCredentialsRequest,
	clientError func(status int) error,
) (*VerifiedIdentity, error) {
	identity, err := provider.breaker.Execute(func() (*VerifiedIdentity, error) {
		return provider.call(ctx, operation, path, payload, clientError)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			provider.logger.WarnContext(ctx, "identity_provider_short_circuited",
				slog.String("operation", operation),
				slog.String("state", provider.breaker.State().String()),
			)
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}
		return nil, err
	}
	return identity, nil
}

func (provider *ProviderCredentials) call(
	ctx context.Context,
	operation, path string,
	payload providerCredentialsRequest,
	clientError func(status int) error,
) (*VerifiedIdentity, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("auth_provider_encode_failed: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrProviderUnavailable, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if provider.apiKey != "" {
		request.Header.Set("apikey", provider.apiKey)
	}

	response, err := provider.client.Do(request)
	if err != nil {
		provider.logger.ErrorContext(ctx, "identity_provider_request_failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		var decoded providerUserResponse
		if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil || decoded.User.ID == "" {
			provider.logger.ErrorContext(ctx, "identity_provider_response_malformed",
				slog.String("operation", operation),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("%w: malformed response", ErrProviderUnavailable)
		}
		return &VerifiedIdentity{ExternalUserID: decoded.User.ID, Email: decoded.User.Email}, nil

	case response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests:
		detail, _ := io.ReadAll(io.LimitReader(response.Body, providerErrorBodyLimit))
		provider.logger.InfoContext(ctx, "identity_provider_rejected",
			slog.String("operation", operation),
			slog.Int("status", response.StatusCode),
			slog.String("detail", string(detail)),
		)
		return nil, clientError(response.StatusCode)

	default:
		detail, _ := io.ReadAll(io.LimitReader(response.Body, providerErrorBodyLimit))
		provider.logger.ErrorContext(ctx, "identity_provider_server_error",
			slog.String("operation", operation),
			slog.Int("status", response.StatusCode),
			slog.String("detail", string(detail)),
		)
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, response.StatusCode)
	}
}
