// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/extcontrol/internal/platform/middleware"
	requestutil "github.com/taibuivan/extcontrol/internal/platform/request"
	"github.com/taibuivan/extcontrol/internal/platform/respond"
	"github.com/taibuivan/extcontrol/internal/platform/sec"
	"github.com/taibuivan/extcontrol/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// # Scope
//
// Public entry points (login, register, refresh) plus the session endpoints
// that sit behind the [Gate].
type Handler struct {
	authService *Service
	gate        *Gate
}

// NewHandler constructs a [Handler].
func NewHandler(service *Service, gate *Gate) *Handler {
	return &Handler{authService: service, gate: gate}
}

// Routes returns the /api/v1/auth router.
//
// # Endpoints
//   - POST /login           : Verifies credentials and issues tokens.
//   - POST /register        : Creates an account and issues tokens.
//   - POST /refresh         : Exchanges a refresh token for a new pair.
//   - POST /logout          : Revokes the presented tokens.
//   - GET  /me              : Returns the authenticated user.
//   - POST /change-password : Replaces the password (self-managed mode).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/register", handler.register)
	router.Post("/refresh", handler.refresh)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.gate.Require())
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// EntitlementRoutes returns the /api/v1/entitlements router.
// Entitlements are always read from the account store.
func (handler *Handler) EntitlementRoutes() chi.Router {
	router := chi.NewRouter()
	router.With(handler.gate.Require(WithFreshEntitlements())).Get("/", handler.entitlements)
	return router
}

// AdminRoutes returns the /api/v1/admin router.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(handler.gate.Require(WithPermission(sec.PermissionAdmin), WithFreshEntitlements()))
	router.Delete("/login-blocks/{identifier}", handler.unlock)
	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// # Response Payloads

// sessionResponse is the login, register and refresh body the extension reads.
type sessionResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message,omitempty"`
	User         UserView `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
}

func newSessionResponse(session *Session, message string) sessionResponse {
	return sessionResponse{
		Success:      true,
		Message:      message,
		User:         session.User,
		Token:        session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    int64(session.ExpiresIn / time.Second),
	}
}

type userResponse struct {
	Success bool     `json:"success"`
	User    UserView `json:"user"`
}

/*
Login authenticates a user and issues a token pair.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: sessionResponse
  - 400: Missing email or password
  - 401: Invalid credentials or provider failure
  - 429: Too many failed attempts
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		ClientIP: middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	middleware.SetLoggedUser(request.Context(), session.User.ID)
	respond.JSON(writer, http.StatusOK, newSessionResponse(session, ""))
}

/*
Register creates a new account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, Name)

Response:
  - 200: sessionResponse with a message
  - 400: Validation or password policy failure
  - 409: Email already registered
  - 429: Too many failed attempts
  - 500: Identity provider failure
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
		ClientIP: middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	middleware.SetLoggedUser(request.Context(), session.User.ID)
	respond.JSON(writer, http.StatusOK, newSessionResponse(session, "Registration successful"))
}

/*
Refresh rotates a refresh token.

POST /api/v1/auth/refresh

Response:
  - 200: sessionResponse
  - 401: Missing, invalid, expired or already used refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	if err := validator.Required(FieldRefreshToken, input.RefreshToken).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusOK, newSessionResponse(session, ""))
}

/*
Logout revokes the access token used for this request.

POST /api/v1/auth/logout

Description: The body is optional. When it carries the refresh token of the
same user, that token is revoked too.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input refreshRequest
	if request.ContentLength != 0 {
		if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
			respond.Error(writer, request, validate.ErrInvalidJSON)
			return
		}
	}

	if err := handler.authService.Logout(request.Context(), *principal, input.RefreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Me returns the authenticated user as carried by the access token.

GET /api/v1/auth/me
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusOK, userResponse{Success: true, User: handler.authService.Me(*principal)})
}

/*
ChangePassword replaces the caller's password.

POST /api/v1/auth/change-password

Response:
  - 204: Password changed
  - 400: Policy failure
  - 403: Current password is incorrect
  - 501: Passwords are managed by the identity provider
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), *principal, ChangePasswordInput{
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
		ClientIP:        middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Entitlements answers whether the caller currently holds premium or admin access.

GET /api/v1/entitlements
*/
func (handler *Handler) entitlements(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.authService.Entitlements(*principal))
}

/*
Unlock clears a login block.

DELETE /api/v1/admin/login-blocks/{identifier}

Response:
  - 204: Entry cleared (or none existed)
  - 403: Caller is not an admin
*/
func (handler *Handler) unlock(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.UnlockIdentifier(request.Context(), *principal, requestutil.Param(request, "identifier")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
