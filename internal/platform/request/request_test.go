// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/extcontrol/internal/platform/request"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Email string `json:"email"`
	}

	request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}`))
	require.NoError(t, requestutil.DecodeJSON(httptest.NewRecorder(), request, &target))
	assert.Equal(t, "a@b.co", target.Email)

	for name, body := range map[string]string{"truncated": `{"email":`, "empty": ""} {
		request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.ErrorIs(t, requestutil.DecodeJSON(httptest.NewRecorder(), request, &target), validate.ErrInvalidJSON, name)
	}
}

func TestDecodeJSON_Oversize(t *testing.T) {
	var target map[string]string
	body := `{"pad":"` + strings.Repeat("x", constants.MaxRequestBodyBytes) + `"}`

	request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	assert.ErrorIs(t, requestutil.DecodeJSON(httptest.NewRecorder(), request, &target), validate.ErrInvalidJSON)
}

func TestRequiredPrincipal(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := requestutil.RequiredPrincipal(request)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.As(err).Code)
	assert.Nil(t, requestutil.Principal(request))

	principal := &sec.Principal{UserID: "u-1", Role: sec.RoleUser}
	request = request.WithContext(ctxutil.WithPrincipal(request.Context(), principal))

	got, err := requestutil.RequiredPrincipal(request)
	require.NoError(t, err)
	assert.Same(t, principal, got)
}
