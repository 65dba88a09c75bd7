// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/api"
	"github.com/taibuivan/extcontrol/internal/auth"
	"github.com/taibuivan/extcontrol/internal/platform/config"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/middleware"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

func newTestServer(t *testing.T, deps api.HealthDependencies) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{ServerPort: "0", Environment: "development"}

	tokens, err := sec.NewTokenService("server-test-secret-with-32-bytes!!", constants.AuthIssuer, time.Hour, 24*time.Hour)
	require.NoError(t, err)

	accounts := auth.NewMemoryAccountRepository()
	directory := auth.NewAccountDirectory(accounts)
	revocations := auth.NewMemoryRevocationList()
	resolver := auth.NewResolver(directory)

	service := auth.NewService(auth.Dependencies{
		Backend:     auth.NewLocalCredentials(accounts),
		Accounts:    accounts,
		Directory:   directory,
		Limiter:     auth.NewMemoryLimiter(auth.DefaultPolicy(), 100),
		Tokens:      tokens,
		Revocations: revocations,
		Resolver:    resolver,
		Audit:       auth.NewLogAuditPublisher(logger),
	})
	gate := auth.NewGate(tokens, resolver, revocations)

	liveness, readiness := api.NewHealthHandlers(deps, logger)
	server := api.NewServer(cfg, logger, &middleware.ProxyTrust{}, middleware.NewThrottle(1000, 1000), api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   promhttp.Handler(),
		Auth:      auth.NewHandler(service, gate),
	})
	return server.Handler()
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

/*
TestServer_Probes checks liveness, readiness and the metrics endpoint.
*/
func TestServer_Probes(t *testing.T) {
	handler := newTestServer(t, api.HealthDependencies{
		CheckDatabase: func(context.Context) error { return nil },
	})

	recorder := get(t, handler, "/health")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(constants.HeaderXRequestID))

	recorder = get(t, handler, "/ready")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = get(t, handler, "/metrics")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "http_requests_total")
}

/*
TestServer_ReadinessDegraded reports 503 without leaking driver errors.
*/
func TestServer_ReadinessDegraded(t *testing.T) {
	handler := newTestServer(t, api.HealthDependencies{
		CheckDatabase: func(context.Context) error { return nil },
		CheckCache:    func(context.Context) error { return errors.New("dial tcp 10.0.0.7:6379: connection refused") },
	})

	recorder := get(t, handler, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "10.0.0.7")

	var body struct {
		Data struct {
			Status string `json:"status"`
			Checks []struct {
				Name string `json:"name"`
				OK   bool   `json:"ok"`
			} `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Data.Status)
	require.Len(t, body.Data.Checks, 2)
	assert.False(t, body.Data.Checks[1].OK)
}

/*
TestServer_AuthRoutesMounted reaches the login handler and the gate through the root router.
*/
func TestServer_AuthRoutesMounted(t *testing.T) {
	handler := newTestServer(t, api.HealthDependencies{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"ghost@example.com","password":"Whatever1"}`))
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = get(t, handler, "/api/v1/auth/me")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = get(t, handler, "/api/v1/entitlements")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
