// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package requestutil reads bodies, path parameters and the authenticated
// principal off an incoming request.
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/extcontrol/internal/platform/apperr"
	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

// DecodeJSON decodes at most [constants.MaxRequestBodyBytes] of the body into
// target. Every failure, oversize bodies included, is [validate.ErrInvalidJSON];
// decoder messages stay server-side.
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	if request.Body == nil || request.Body == http.NoBody {
		return validate.ErrInvalidJSON
	}

	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, constants.MaxRequestBodyBytes))
	if decoder.Decode(target) != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

// Param returns the chi path parameter name, or "".
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

// Principal is nil on anonymous requests.
func Principal(request *http.Request) *sec.Principal {
	return ctxutil.GetPrincipal(request.Context())
}

// RequiredPrincipal fails with 401 when the handler was mounted outside the
// auth gate by mistake.
func RequiredPrincipal(request *http.Request) (*sec.Principal, error) {
	if principal := Principal(request); principal != nil {
		return principal, nil
	}
	return nil, apperr.Unauthorized("Authentication required")
}
