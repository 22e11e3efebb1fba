// Copyright (c) 2026 NoteHub. All rights reserved.

/*
HTTP delivery layer for user identity management.

It implements the gateway for the authentication lifecycle, from account
creation to bearer token exchange and interactive browser sessions.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Handles JWT orchestration and session cookie injection.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notehub/notehub/internal/platform/apperr"
	"github.com/notehub/notehub/internal/platform/constants"
	"github.com/notehub/notehub/internal/platform/middleware"
	requestutil "github.com/notehub/notehub/internal/platform/request"
	"github.com/notehub/notehub/internal/platform/respond"
	"github.com/notehub/notehub/internal/platform/validate"
)

// # Definitions & Constructors

// SessionStore manages interactive browser sessions and pending second-factor
// markers. Implemented by the redis-backed session manager.
type SessionStore interface {
	// Start creates a full session for an authenticated user and returns its ID.
	Start(context context.Context, user *User) (string, error)

	// MarkPending parks a password-verified user behind a short-lived marker,
	// distinct from a full session, until the second factor is presented.
	MarkPending(context context.Context, userID string) (string, error)

	// ResolvePending returns the userID behind a pending marker.
	ResolvePending(context context.Context, marker string) (string, error)

	// ClearPending removes a pending marker.
	ClearPending(context context.Context, marker string) error

	// Current returns the display snapshot behind a full session, re-fetching
	// it from the credential store when the cached view has been invalidated.
	Current(context context.Context, sessionID string) (*Snapshot, error)

	// End destroys a full session.
	End(context context.Context, sessionID string) error
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages everything related to the user lifecycle entry points
// (Registration, Login, Token exchange, Password Reset, Invitations) plus the
// cookie-based interactive session flow.
type Handler struct {
	authService *Service
	sessions    SessionStore
}

// NewHandler constructs a new [Handler] with its dependencies.
func NewHandler(service *Service, sessions SessionStore) *Handler {
	return &Handler{authService: service, sessions: sessions}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register        : Creates a new account.
//   - POST /login           : Authenticates and returns a bearer pair.
//   - POST /refresh         : Exchanges a refresh token for a new access token.
//   - GET  /validate        : Verifies a bearer token and returns its principal.
//   - POST /forgot-password : Issues a single-use reset token.
//   - POST /reset-password  : Consumes a reset token and rotates the password.
//   - POST /invitations     : Issues a single-use invitation token.
//   - POST /session, /session/second-factor, DELETE /session : interactive flow.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Interactive (cookie) session flow
	router.Post("/session", handler.startSession)
	router.Get("/session", handler.currentSession)
	router.Post("/session/second-factor", handler.sessionSecondFactor)
	router.Delete("/session", handler.endSession)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/validate", handler.validateToken)
		r.Post("/invitations", handler.createInvitation)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	InvitationToken string `json:"invitation_token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
	TOTPCode string `json:"totp_code"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type invitationRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type secondFactorRequest struct {
	Code string `json:"code"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Description: Validates input, optionally checks an invitation token, and
persists a new user profile to the database.

Request:
  - Body: registerRequest (Username, Password, Email?, InvitationToken?)

Response:
  - 201: User: Created user profile
  - 400: VALIDATION_ERROR / TOKEN_NOT_FOUND: Bad input or unknown invitation
  - 409: DUPLICATE_IDENTITY / TOKEN_ALREADY_USED
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, 3).
		MaxLen(FieldUsername, input.Username, 64).
		Required(FieldPassword, input.Password)

	// Email is optional but must be well-formed when present.
	if input.Email != "" {
		validator.Email(FieldEmail, input.Email)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username:        input.Username,
		Email:           input.Email,
		Password:        input.Password,
		InvitationToken: input.InvitationToken,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and issues a bearer token pair.

POST /api/v1/auth/login

Description: Runs the full credential + second-factor state machine in one
round trip. An account enrolled in a second factor that omits totp_code
receives a 401 SECOND_FACTOR_REQUIRED with requires_2fa set, telling the
client to re-submit the same credentials plus a code.

Request:
  - Body: loginRequest (Username, Password, TOTPCode?)

Response:
  - 200: TokenPair: access_token, refresh_token, token_type, expires_in, user
  - 401: INVALID_CREDENTIALS / SECOND_FACTOR_REQUIRED / INVALID_SECOND_FACTOR
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.Login(request.Context(), LoginInput{
		Identifier: input.Username,
		Password:   input.Password,
		TOTPCode:   input.TOTPCode,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken:  pair.AccessToken,
		FieldRefreshToken: pair.RefreshToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    pair.ExpiresIn,
		FieldUser:         pair.User,
	})
}

/*
Refresh issues a new access token using a valid refresh token.

POST /api/v1/auth/refresh

Description: Exchanges the refresh token from the request body for a fresh
access token. The refresh token itself is not rotated.

Request:
  - Body: refreshRequest (RefreshToken)

Response:
  - 200: access_token, token_type, expires_in
  - 401: TOKEN_EXPIRED or invalid refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.RefreshToken == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "This field is required"))
		return
	}

	accessToken, err := handler.authService.Refresh(request.Context(), input.RefreshToken)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: accessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(AccessTokenTTL.Seconds()),
	})
}

/*
ValidateToken reports whether the presented bearer token is valid.

GET /api/v1/auth/validate

Description: The Authenticate middleware has already verified the token by the
time this handler runs; it resolves the principal for the client.

Response:
  - 200: valid flag and the user profile
  - 401: Missing or invalid bearer token
*/
func (handler *Handler) validateToken(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Profile(request.Context(), claims.UserID)
	if err != nil {
		respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
		return
	}

	respond.OK(writer, map[string]any{
		"valid":   true,
		FieldUser: user,
	})
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Issues a single-use reset token, superseding any outstanding one.
Accounts enrolled in a second factor must include a valid totp_code. The token
is surfaced directly in the response; there is no mail delivery pipeline.

Request:
  - Body: forgotPasswordRequest (Username, TOTPCode?)

Response:
  - 200: Generic message, plus reset_token when the account exists
  - 401: SECOND_FACTOR_REQUIRED / INVALID_SECOND_FACTOR
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldUsername, input.Username)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.authService.RequestPasswordReset(request.Context(), input.Username, input.TOTPCode)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload := map[string]any{
		FieldMessage: "If this account exists, a reset token has been issued.",
	}
	if token != "" {
		payload["reset_token"] = token
	}

	respond.OK(writer, payload)
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Description: Consumes the reset token and rotates the password in one
transaction. Re-submitting a consumed token yields TOKEN_ALREADY_USED.

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success: Password updated
  - 400: VALIDATION_ERROR / TOKEN_NOT_FOUND
  - 401: TOKEN_EXPIRED
  - 409: TOKEN_ALREADY_USED
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password updated successfully",
	})
}

/*
CreateInvitation issues a single-use invitation token.

POST /api/v1/auth/invitations

Description: Any authenticated member may invite others. The token is returned
to the inviter for out-of-band delivery.

Request:
  - Body: invitationRequest (Email?, Message?)

Response:
  - 201: Invitation with its token
  - 401: Authentication required
*/
func (handler *Handler) createInvitation(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input invitationRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	if input.Email != "" {
		v.Email(FieldEmail, input.Email)
	}
	v.MaxLen(FieldMessage, input.Message, 500)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	invitation, err := handler.authService.CreateInvitation(request.Context(), userID, input.Email, input.Message)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, map[string]any{
		FieldToken:   invitation.Token,
		"invitation": invitation,
	})
}

// # Interactive Session Flow

/*
StartSession runs phase one of the interactive (cookie) login.

POST /api/v1/auth/session

Description: Verifies the password. For accounts without a second factor, a
full session is created immediately. Enrolled accounts are parked behind a
short-lived pending marker and receive 401 SECOND_FACTOR_REQUIRED; the marker
cookie is NOT a session and grants no access.

Request:
  - Body: loginRequest (Username, Password)

Response:
  - 200: user profile, session cookie set
  - 401: INVALID_CREDENTIALS or SECOND_FACTOR_REQUIRED (pending cookie set)
*/
func (handler *Handler) startSession(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, needsSecondFactor, err := handler.authService.BeginInteractiveLogin(
		request.Context(), input.Username, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if needsSecondFactor {
		marker, err := handler.sessions.MarkPending(request.Context(), user.ID)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		setSessionCookie(writer, marker, int(PendingSecondFactorTTL.Seconds()))
		respond.Error(writer, request, apperr.SecondFactorRequired())
		return
	}

	sessionID, err := handler.sessions.Start(request.Context(), user)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setSessionCookie(writer, sessionID, int(InteractiveSessionTTL.Seconds()))
	respond.OK(writer, map[string]any{FieldUser: user})
}

/*
SessionSecondFactor runs phase two of the interactive login.

POST /api/v1/auth/session/second-factor

Description: Promotes a pending marker into a full session once a valid TOTP
code is presented, then clears the marker.

Request:
  - Body: secondFactorRequest (Code)

Response:
  - 200: user profile, session cookie replaced
  - 401: INVALID_SECOND_FACTOR or missing/expired pending marker
*/
func (handler *Handler) sessionSecondFactor(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.Unauthorized("No pending login"))
		return
	}

	var input secondFactorRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Code == "" {
		respond.Error(writer, request, validate.RequiredError(FieldCode, "This field is required"))
		return
	}

	userID, err := handler.sessions.ResolvePending(request.Context(), cookie.Value)
	if err != nil {
		respond.Error(writer, request, apperr.Unauthorized("No pending login"))
		return
	}

	user, err := handler.authService.CompleteSecondFactor(request.Context(), userID, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID, err := handler.sessions.Start(request.Context(), user)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	_ = handler.sessions.ClearPending(request.Context(), cookie.Value)

	setSessionCookie(writer, sessionID, int(InteractiveSessionTTL.Seconds()))
	respond.OK(writer, map[string]any{FieldUser: user})
}

/*
CurrentSession returns the display snapshot for the active session.

GET /api/v1/auth/session

Description: Served from the redis session cache, re-fetched from the
credential store when the snapshot has been invalidated; never used for
authorization decisions.

Response:
  - 200: Display snapshot
  - 401: No active session
*/
func (handler *Handler) currentSession(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.Unauthorized("No active session"))
		return
	}

	snapshot, err := handler.sessions.Current(request.Context(), cookie.Value)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, snapshot)
}

/*
EndSession terminates the interactive session.

DELETE /api/v1/auth/session

Description: Destroys the server-side session (idempotent) and clears the
cookie from the client.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) endSession(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.SessionCookieName)

	if err == nil && cookie != nil && cookie.Value != "" {
		_ = handler.sessions.End(request.Context(), cookie.Value)
	}

	setSessionCookie(writer, "", -1)
	respond.NoContent(writer)
}

// setSessionCookie writes the interactive session cookie with standard flags.
func setSessionCookie(writer http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     constants.SessionCookiePath,
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
